// Package reconstruct finds the momentum of a particle at a known target
// from two downstream track points and a field map.
//
// The measured track fixes a launch point (the track point farther from the
// target) and a direction (towards the nearer point). A trial momentum is
// propagated backwards from the launch point with the charge reversed, and
// the minimum distance between the sampled path and the target is the
// quantity every strategy minimizes:
//
//   - [Grid]: coarse-to-fine bracketing over |p|, evaluated in parallel
//   - [Gradient]: finite-difference descent over |p|
//   - [ThreePoint]: descent over the full launch vector, weighting the
//     near-point and target residuals by their resolutions
//   - [Minimizer]: Nelder-Mead over |p| via gonum/optimize
//
// All strategies return the same [Result]. A result with Success false still
// carries the best momentum found.
//
// # Example
//
//	tr, _ := trajectory.New(fieldMap, trajectory.DefaultConfig())
//	rec, _ := reconstruct.New(tr, reconstruct.DefaultOptions())
//	res, err := rec.Reconstruct(ctx, reconstruct.NewGrid(reconstruct.DefaultGridOptions()), track, target)
package reconstruct
