// Package metrics holds streaming evaluators fed one output sample at a
// time by the simulator.
package metrics
