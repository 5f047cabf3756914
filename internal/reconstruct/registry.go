package reconstruct

import (
	"fmt"
	"sort"
	"strings"
)

// MethodOptions carries the options of every strategy so that a strategy can
// be chosen by name at run time.
type MethodOptions struct {
	Grid       GridOptions
	Gradient   GradientOptions
	ThreePoint ThreePointOptions
	Minimizer  MinimizerOptions
}

func DefaultMethodOptions() MethodOptions {
	return MethodOptions{
		Grid:       DefaultGridOptions(),
		Gradient:   DefaultGradientOptions(),
		ThreePoint: DefaultThreePointOptions(),
		Minimizer:  DefaultMinimizerOptions(),
	}
}

var methods = map[string]func(MethodOptions) Strategy{
	"grid":       func(o MethodOptions) Strategy { return NewGrid(o.Grid) },
	"gd":         func(o MethodOptions) Strategy { return NewGradient(o.Gradient) },
	"threepoint": func(o MethodOptions) Strategy { return NewThreePoint(o.ThreePoint) },
	"minimizer":  func(o MethodOptions) Strategy { return NewMinimizer(o.Minimizer) },
}

var aliases = map[string]string{
	"minuit":   "minimizer",
	"gradient": "gd",
	"3point":   "threepoint",
}

// NewStrategy builds the strategy registered under name.
func NewStrategy(name string, o MethodOptions) (Strategy, error) {
	key := strings.ToLower(strings.TrimSpace(name))
	if canonical, ok := aliases[key]; ok {
		key = canonical
	}
	ctor, ok := methods[key]
	if !ok {
		return nil, fmt.Errorf("%w: %q (available: %s)", ErrUnknownMethod, name, strings.Join(Methods(), ", "))
	}
	return ctor(o), nil
}

// Methods lists the canonical strategy names.
func Methods() []string {
	names := make([]string, 0, len(methods))
	for name := range methods {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}
