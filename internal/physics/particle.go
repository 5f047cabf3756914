package physics

import (
	"fmt"
	"sort"
	"strings"
)

// ProtonMass in MeV/c².
const ProtonMass = 938.272

// Particle is a tracked species. Charge is in units of e.
type Particle struct {
	Name   string
	Mass   float64
	Charge float64
}

var particles = map[string]Particle{
	"proton":   {Name: "proton", Mass: ProtonMass, Charge: 1},
	"neutron":  {Name: "neutron", Mass: 939.565, Charge: 0},
	"deuteron": {Name: "deuteron", Mass: 1875.613, Charge: 1},
	"triton":   {Name: "triton", Mass: 2808.921, Charge: 1},
	"alpha":    {Name: "alpha", Mass: 3727.379, Charge: 2},
	"pi+":      {Name: "pi+", Mass: 139.570, Charge: 1},
	"pi-":      {Name: "pi-", Mass: 139.570, Charge: -1},
}

func Proton() Particle { return particles["proton"] }

// LookupParticle finds a species by case-insensitive name.
func LookupParticle(name string) (Particle, error) {
	p, ok := particles[strings.ToLower(name)]
	if !ok {
		return Particle{}, fmt.Errorf("unknown particle: %s", name)
	}
	return p, nil
}

func ParticleNames() []string {
	names := make([]string, 0, len(particles))
	for name := range particles {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

func (p Particle) IsNeutral() bool { return p.Charge == 0 }
