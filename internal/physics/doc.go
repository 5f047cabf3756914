// Package physics provides the equations of motion for tracking a charged
// particle through a static magnetic field.
//
// The state is the 6-D phase vector [x y z px py pz] in mm and MeV/c, time
// is in ns and fields are in tesla. [Lorentz] implements [dynamo.System]:
//
//	dr/dt = p c / E
//	dp/dt = q (p × B) · 0.299792458 c / E
//
// Fields are supplied through [FieldSource], which a loaded field map
// satisfies; [UniformField] is a constant field for checks and tests.
package physics
