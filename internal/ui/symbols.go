package ui

// Unicode symbols for status indicators.
const (
	SymbolFail     = "✗" // Step failed
	SymbolPending  = "○" // Step not yet started
	SymbolProgress = "◐" // Step in progress
	SymbolComplete = "●" // Step done
	SymbolSkipped  = "⊘" // Step skipped
	SymbolWarning  = "⚠" // Step failed but the run continues
)
