package ui

import (
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/charmbracelet/lipgloss"
)

// DividerWidth is the default width for divider lines.
const DividerWidth = 64

// PhaseDisplay renders one line per deploy step.
// In live mode an in-progress line is drawn and later overwritten; otherwise
// only final lines are written so logs and pipes stay clean.
type PhaseDisplay struct {
	w    io.Writer
	live bool
}

// NewPhaseDisplay creates a new phase display writing to w.
// Live mode is on when w is a terminal.
func NewPhaseDisplay(w io.Writer) *PhaseDisplay {
	return &PhaseDisplay{w: w, live: IsTerminal(w)}
}

// SetLive overrides terminal detection.
func (pd *PhaseDisplay) SetLive(live bool) {
	pd.live = live
}

// RenderProgress renders a phase in progress.
// Shows: ◐ Building...
func (pd *PhaseDisplay) RenderProgress(name string) {
	if !pd.live {
		return
	}
	style := lipgloss.NewStyle().Foreground(ColorSecondary)
	fmt.Fprintf(pd.w, "\r%s %s...", style.Render(SymbolProgress), name)
}

// RenderSuccess renders a completed phase.
// Shows: ● Built (12.3s)
func (pd *PhaseDisplay) RenderSuccess(name string, duration time.Duration) {
	pd.renderFinal(SymbolComplete, ColorSuccess, name, formatDuration(duration))
}

// RenderFailed renders a failed phase.
// Shows: ✗ Sync failed (2.3s)
func (pd *PhaseDisplay) RenderFailed(name string, duration time.Duration) {
	pd.renderFinal(SymbolFail, ColorError, name, formatDuration(duration))
}

// RenderWarning renders a phase that failed without stopping the run.
// Shows: ⚠ Backup failed (exit 2)
func (pd *PhaseDisplay) RenderWarning(name string, detail string) {
	if detail != "" {
		detail = "(" + detail + ")"
	}
	pd.renderFinal(SymbolWarning, ColorWarning, name, detail)
}

// RenderSkipped renders a skipped phase.
// Shows: ⊘ Migrate (no --migrate given)
func (pd *PhaseDisplay) RenderSkipped(name string, reason string) {
	if reason != "" {
		reason = "(" + reason + ")"
	}
	pd.renderFinal(SymbolSkipped, ColorWarning, name, reason)
}

// RenderSubStatus renders an indented sub-status line.
// Shows:   ○ would back up /var/www/site to backups/backup_20240101_120000.tar.gz
func (pd *PhaseDisplay) RenderSubStatus(symbol string, name string, status string) {
	style := lipgloss.NewStyle().Foreground(ColorMuted)
	line := fmt.Sprintf("  %s %s", style.Render(symbol), name)
	if status != "" {
		line += " " + style.Render(status)
	}
	fmt.Fprintln(pd.w, line)
}

// Divider renders a horizontal line to separate phases from command output.
func (pd *PhaseDisplay) Divider() {
	style := lipgloss.NewStyle().Foreground(ColorMuted)
	fmt.Fprintf(pd.w, "\n%s\n\n", style.Render(strings.Repeat("━", DividerWidth)))
}

// CommandPrompt renders the command about to be executed.
// Shows: $ npm install && npm run build
func (pd *PhaseDisplay) CommandPrompt(cmd string) {
	style := lipgloss.NewStyle().Foreground(ColorMuted)
	fmt.Fprintf(pd.w, "%s %s\n", style.Render("$"), cmd)
}

func (pd *PhaseDisplay) renderFinal(symbol string, color lipgloss.Color, name string, trailer string) {
	pd.clearLine()
	fmt.Fprintln(pd.w, FormatPhase(symbol, color, name, trailer))
}

// clearLine clears the current line (for overwriting progress output).
func (pd *PhaseDisplay) clearLine() {
	if !pd.live {
		return
	}
	fmt.Fprint(pd.w, "\r"+strings.Repeat(" ", 80)+"\r")
}

// FormatPhase returns a formatted phase line as a string.
func FormatPhase(symbol string, symbolColor lipgloss.Color, name string, trailer string) string {
	symbolStyle := lipgloss.NewStyle().Foreground(symbolColor)
	trailerStyle := lipgloss.NewStyle().Foreground(ColorMuted)

	if trailer == "" {
		return fmt.Sprintf("%s %s", symbolStyle.Render(symbol), name)
	}
	return fmt.Sprintf("%s %s %s", symbolStyle.Render(symbol), name, trailerStyle.Render(trailer))
}

// formatDuration renders d with one decimal, or two below 100ms.
func formatDuration(d time.Duration) string {
	secs := d.Seconds()
	if secs < 0.1 {
		return fmt.Sprintf("(%.2fs)", secs)
	}
	return fmt.Sprintf("(%.1fs)", secs)
}
