// Package viz renders optimization and simulation results in the terminal.
//
// Summaries are styled with lipgloss and charted with asciigraph. [Progress]
// is a Bubble Tea model that follows a running search generation by
// generation.
//
// # Key Bindings
//
//	q, Esc, Ctrl+C - stop the search
package viz
