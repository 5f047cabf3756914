package field

import (
	"testing"

	"gonum.org/v1/gonum/spatial/r3"
)

func BenchmarkFieldRaw(b *testing.B) {
	m, err := Build(testLattice(), linearField)
	if err != nil {
		b.Fatal(err)
	}

	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		_ = m.FieldRaw(-37.5, 12.5, 61.25)
	}
}

func BenchmarkFieldRotated(b *testing.B) {
	m, err := Build(testLattice(), linearField)
	if err != nil {
		b.Fatal(err)
	}
	m.SetRotationAngle(30)
	p := r3.Vec{X: -37.5, Y: 12.5, Z: 61.25}

	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		_ = m.FieldAt(p)
	}
}
