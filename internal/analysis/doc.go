// Package analysis characterizes trajectories of the ODE modules.
//
//   - [PowerSpectrum], [DominantPeriod]: oscillation period of a sampled series
//   - [GeneratePhasePortrait]: 2D phase space trajectory of a prepared instance
//   - [GeneratePoincareSection]: states at upward threshold crossings
//
// # Population cycles
//
// The predator-prey populations cycle with a period that depends on the
// initial state. Both estimates below should agree to within a sample:
//
//	period, _ := analysis.DominantPeriod(result.Series(1), dt)
//	section := analysis.GeneratePoincareSection(inst, integ, 1, 1.0, 0, 1, dt, 100)
//	period2 := section.MeanPeriod()
package analysis
