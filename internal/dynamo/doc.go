// Package dynamo provides the core contract for generated ODE system modules.
//
// A generated module is stateless: every vector lives in caller-owned storage
// and the module exposes a fixed pipeline over it:
//
//   - [Module.CreateStatesArray], [Module.CreateVariablesArray]: NaN-filled vectors
//   - [Module.InitializeStatesAndConstants]: initial states and CONSTANT entries
//   - [Module.ComputeComputedConstants]: COMPUTED_CONSTANT entries, once
//   - [Module.ComputeRates]: d(state)/d(voi), any number of times
//   - [Module.ComputeVariables]: ALGEBRAIC entries at reporting points
//
// [Instance] bundles the vectors of one run with its module and tracks how far
// the pipeline has progressed, so calls made out of order return
// [ErrPhaseOrder] instead of producing numbers.
//
// # Example
//
//	inst := dynamo.NewInstance(predatorprey.New())
//	_ = inst.Initialize()
//	_ = inst.ComputeComputedConstants()
//	rates, _ := inst.ComputeRates(0)
//
// # Thread Safety
//
// Modules hold no global state. An Instance is NOT thread-safe; parallel runs
// (parameter sweeps) must each own their Instance, see [Sweep].
package dynamo
