// Package ui renders deploy progress for the terminal.
//
// Each deploy step becomes one line:
//
//	● Built (12.3s)
//	⚠ Backup failed (exit 2)
//	⊘ Migrate (no --migrate given)
//
// Colors are ANSI codes rendered through Lip Gloss. ConfigureColors drops
// styling for --no-color, NO_COLOR, or output that isn't a terminal.
package ui
