package extraction

import "fmt"

// LineItem is one billed line on an invoice.
type LineItem struct {
	Description string  `json:"description"`
	Amount      float64 `json:"amount"`
}

// InvoiceData contains the structured fields extracted from an invoice.
// Date is kept as the free-form string the model returned; it is not
// guaranteed to be parseable.
type InvoiceData struct {
	InvoiceNumber  string     `json:"invoiceNumber"`
	VendorName     string     `json:"vendorName"`
	Date           string     `json:"date"`
	LineItems      []LineItem `json:"lineItems"`
	TotalAmount    float64    `json:"totalAmount"`
	TaxInformation string     `json:"taxInformation,omitempty"`
}

// Correction is the result of a correction pass over previously extracted
// data: the corrected record plus a confidence score in [0,1].
type Correction struct {
	CorrectedData map[string]any `json:"correctedData"`
	Confidence    float64        `json:"confidence"`
}

// Extractor defines the interface for AI-backed invoice analysis
type Extractor interface {
	// ExtractInvoice analyzes an invoice given as a data URI (MIME type +
	// base64 payload) and returns its structured fields
	ExtractInvoice(invoiceDataURI string) (*InvoiceData, error)

	// SuggestCorrections reviews an arbitrary extracted record and returns
	// a corrected version with a confidence score
	SuggestCorrections(invoiceData map[string]any) (*Correction, error)

	// Close closes the extractor and releases resources
	Close() error
}

// Error is the typed failure returned for every extraction or correction
// problem: the provider call failed, timed out, or replied with data that
// does not match the expected schema.
type Error struct {
	Op  string // "extract" or "correct"
	Msg string
	Err error
}

func (e *Error) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %s: %v", e.Op, e.Msg, e.Err)
	}
	return fmt.Sprintf("%s: %s", e.Op, e.Msg)
}

func (e *Error) Unwrap() error {
	return e.Err
}

func extractErr(msg string, err error) *Error {
	return &Error{Op: "extract", Msg: msg, Err: err}
}

func correctErr(msg string, err error) *Error {
	return &Error{Op: "correct", Msg: msg, Err: err}
}
