package invoice

import (
	"fmt"

	"github.com/invoicepilot/invoicepilot/internal/extraction"
)

// LineItemForm is one editable line item in the review form
type LineItemForm struct {
	Description string  `json:"description"`
	Amount      float64 `json:"amount"`
}

// InvoiceForm holds the editable field values of the review form. Its shape
// matches extraction.InvoiceData so a saved or exported form round-trips.
type InvoiceForm struct {
	InvoiceNumber  string         `json:"invoiceNumber"`
	VendorName     string         `json:"vendorName"`
	Date           string         `json:"date"`
	LineItems      []LineItemForm `json:"lineItems"`
	TotalAmount    float64        `json:"totalAmount"`
	TaxInformation string         `json:"taxInformation,omitempty"`
}

// ValidationError describes a form field that fails validation. It blocks
// submission and never reaches the store.
type ValidationError struct {
	Field  string
	Reason string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("%s: %s", e.Field, e.Reason)
}

// Validate checks the form against the submission rules. The total is not
// required to equal the sum of line item amounts.
func (f *InvoiceForm) Validate() error {
	if f.InvoiceNumber == "" {
		return &ValidationError{Field: "invoiceNumber", Reason: "Invoice number is required."}
	}
	if f.VendorName == "" {
		return &ValidationError{Field: "vendorName", Reason: "Vendor name is required."}
	}
	if f.Date == "" {
		return &ValidationError{Field: "date", Reason: "Date is required."}
	}
	if len(f.LineItems) == 0 {
		return &ValidationError{Field: "lineItems", Reason: "At least one line item is required."}
	}
	for i, item := range f.LineItems {
		if item.Description == "" {
			return &ValidationError{Field: fmt.Sprintf("lineItems[%d].description", i), Reason: "Description is required."}
		}
		if item.Amount <= 0 {
			return &ValidationError{Field: fmt.Sprintf("lineItems[%d].amount", i), Reason: "Amount must be positive."}
		}
	}
	if f.TotalAmount <= 0 {
		return &ValidationError{Field: "totalAmount", Reason: "Total amount must be positive."}
	}
	return nil
}

// ExtractedData coerces the form values into the extracted-data shape
func (f *InvoiceForm) ExtractedData() *extraction.InvoiceData {
	items := make([]extraction.LineItem, 0, len(f.LineItems))
	for _, item := range f.LineItems {
		items = append(items, extraction.LineItem{
			Description: item.Description,
			Amount:      item.Amount,
		})
	}
	return &extraction.InvoiceData{
		InvoiceNumber:  f.InvoiceNumber,
		VendorName:     f.VendorName,
		Date:           f.Date,
		LineItems:      items,
		TotalAmount:    f.TotalAmount,
		TaxInformation: f.TaxInformation,
	}
}

// FormFromExtractedData populates a review form from persisted extracted
// data, defaulting to one empty line item so the form is editable.
func FormFromExtractedData(data *extraction.InvoiceData) InvoiceForm {
	form := InvoiceForm{
		LineItems: []LineItemForm{{}},
	}
	if data == nil {
		return form
	}
	form.InvoiceNumber = data.InvoiceNumber
	form.VendorName = data.VendorName
	form.Date = data.Date
	form.TotalAmount = data.TotalAmount
	form.TaxInformation = data.TaxInformation
	if len(data.LineItems) > 0 {
		form.LineItems = make([]LineItemForm, 0, len(data.LineItems))
		for _, item := range data.LineItems {
			form.LineItems = append(form.LineItems, LineItemForm{
				Description: item.Description,
				Amount:      item.Amount,
			})
		}
	}
	return form
}
