// Package dynamo provides the numerical primitives shared by particle
// tracking: phase-space states, ODE systems and fixed-step steppers.
//
//   - [State]: phase-space vector, [x y z px py pz] for a tracked particle
//   - [System]: interface for ODE systems (dX/dt = f(X, t))
//   - [Stepper]: fixed-step numerical integrator interface
//   - [ParallelFor]: chunked fan-out for independent evaluations
//
// # Example
//
//	sys := physics.NewLorentz(fieldMap, 1, physics.ProtonMass)
//	step := integrators.NewRK4()
//	step.Step(sys, next, x, t, dt)
//	x, next = next, x
//
// # Thread Safety
//
// Steppers keep scratch buffers and are NOT thread-safe. Allocate one per
// goroutine; systems backed by a loaded field map are read-only and may be
// shared.
package dynamo
