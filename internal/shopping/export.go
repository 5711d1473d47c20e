package shopping

import (
	"bytes"
	"fmt"
	"time"

	"github.com/at-ishikawa/recipebook/internal/pdf"
)

// RenderMarkdown renders the list as a markdown checklist.
func RenderMarkdown(list List) []byte {
	var buf bytes.Buffer
	fmt.Fprintf(&buf, "# %s\n\n", list.Title())
	if list.CreatedAt != nil {
		fmt.Fprintf(&buf, "Generated %s\n\n", list.CreatedAt.Format(time.DateOnly))
	}
	if len(list.Items) == 0 {
		buf.WriteString("Nothing to buy.\n")
		return buf.Bytes()
	}
	for _, it := range list.Items {
		mark := " "
		if it.IsPurchased {
			mark = "x"
		}
		fmt.Fprintf(&buf, "- [%s] %s\n", mark, it.DisplayName())
	}
	return buf.Bytes()
}

func ExportPDF(list List, pdfPath string) error {
	if err := pdf.Render(RenderMarkdown(list), pdfPath); err != nil {
		return fmt.Errorf("export shopping list %d: %w", list.ID, err)
	}
	return nil
}
