package invoice

import "github.com/invoicepilot/invoicepilot/internal/extraction"

// Status is the lifecycle state of a stored invoice
type Status string

const (
	StatusPending    Status = "Pending"
	StatusProcessing Status = "Processing"
	StatusCompleted  Status = "Completed"
	StatusError      Status = "Error"
)

// StoredInvoice tracks one uploaded file's lifecycle and extracted data.
// A record with StatusCompleted always carries ExtractedData; a record with
// StatusError carries ErrorMessage and no ExtractedData.
type StoredInvoice struct {
	ID            string                  `json:"id"`
	FileName      string                  `json:"fileName"`
	UploadDate    string                  `json:"uploadDate"` // ISO 8601
	Status        Status                  `json:"status"`
	ExtractedData *extraction.InvoiceData `json:"extractedData,omitempty"`
	ErrorMessage  string                  `json:"errorMessage,omitempty"`
}
