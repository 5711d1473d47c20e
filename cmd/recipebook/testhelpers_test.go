package main

import (
	"testing"

	"github.com/fatih/color"
)

func disableColor(t *testing.T) {
	t.Helper()
	old := color.NoColor
	color.NoColor = true
	t.Cleanup(func() { color.NoColor = old })
}
