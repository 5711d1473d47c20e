// Package pdf renders markdown documents as PDF files.
package pdf

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/mandolyte/mdtopdf"
)

// Render writes markdown as a portrait A4 PDF to pdfPath, creating its directory.
func Render(markdown []byte, pdfPath string) error {
	if dir := filepath.Dir(pdfPath); dir != "" {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("os.MkdirAll(%s) > %w", dir, err)
		}
	}
	renderer := mdtopdf.NewPdfRenderer("P", "A4", pdfPath, "", nil, mdtopdf.LIGHT)
	if err := renderer.Process(markdown); err != nil {
		return fmt.Errorf("renderer.Process() > %w", err)
	}
	return nil
}
