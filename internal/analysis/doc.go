// Package analysis post-processes simulated and measured signals.
//
//   - [AccelerationAnalyzer]: continuous peak |z̈| from a cubic spline and the
//     roots of its derivative
//   - [Brent]: bracketing scalar root finder
//   - [PowerSpectrum]: one-sided FFT power spectrum of a uniformly sampled
//     signal, and its dominant frequency
//
// The peak estimate is never below the largest sampled magnitude:
//
//	peak, err := analysis.NewAccelerationAnalyzer(analysis.DefaultSubdivisions).Peak(res.Time, res.ZDDot)
package analysis
