package invoice

import (
	"encoding/json"
	"fmt"
	"strings"
)

// ExportArtifact is a downloadable JSON document of form values
type ExportArtifact struct {
	FileName string
	Content  []byte
}

// ExportForm serializes form values to a pretty-printed JSON artifact named
// after the uploaded file. A pure transformation: nothing is read from or
// written to the store.
func ExportForm(uploadFileName string, form InvoiceForm) (*ExportArtifact, error) {
	content, err := json.MarshalIndent(form.ExtractedData(), "", "  ")
	if err != nil {
		return nil, fmt.Errorf("encoding export: %w", err)
	}

	base, _, _ := strings.Cut(uploadFileName, ".")
	if base == "" {
		base = "invoice"
	}

	return &ExportArtifact{
		FileName: base + "_quickbooks.json",
		Content:  content,
	}, nil
}
