package ui

import (
	"bytes"
	"os"
	"testing"

	"github.com/charmbracelet/lipgloss"
	"github.com/muesli/termenv"
	"github.com/stretchr/testify/assert"
)

func TestIsTerminal_NonFile(t *testing.T) {
	assert.False(t, IsTerminal(&bytes.Buffer{}))
}

func TestIsTerminal_RegularFile(t *testing.T) {
	f, err := os.CreateTemp(t.TempDir(), "out")
	assert.NoError(t, err)
	defer f.Close()

	assert.False(t, IsTerminal(f))
}

func TestConfigureColors_DisablesForBuffers(t *testing.T) {
	orig := lipgloss.ColorProfile()
	t.Cleanup(func() { lipgloss.SetColorProfile(orig) })
	lipgloss.SetColorProfile(termenv.ANSI)

	ConfigureColors(&bytes.Buffer{}, false)

	assert.Equal(t, termenv.Ascii, lipgloss.ColorProfile())
	styled := lipgloss.NewStyle().Foreground(ColorError).Render("boom")
	assert.Equal(t, "boom", styled)
}

func TestDisableColors(t *testing.T) {
	orig := lipgloss.ColorProfile()
	t.Cleanup(func() { lipgloss.SetColorProfile(orig) })
	lipgloss.SetColorProfile(termenv.ANSI256)

	DisableColors()

	assert.Equal(t, termenv.Ascii, lipgloss.ColorProfile())
}
