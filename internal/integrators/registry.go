package integrators

import (
	"fmt"
	"sort"

	"github.com/san-kum/tgtreco/internal/dynamo"
)

var steppers = map[string]func() dynamo.Stepper{
	"rk4":   func() dynamo.Stepper { return NewRK4() },
	"euler": func() dynamo.Stepper { return NewEuler() },
}

// New returns a fresh stepper for name. Each call allocates, so callers may
// hand the result to a single goroutine without further copying.
func New(name string) (dynamo.Stepper, error) {
	fn, ok := steppers[name]
	if !ok {
		return nil, fmt.Errorf("%w: %s", dynamo.ErrUnknownStepper, name)
	}
	return fn(), nil
}

// Names lists the registered steppers in sorted order.
func Names() []string {
	names := make([]string, 0, len(steppers))
	for name := range steppers {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}
