package extraction

import (
	"encoding/json"
	"fmt"
	"strings"
)

// jsonPayload isolates the JSON object in a model reply, stripping markdown
// code fences and any surrounding prose.
func jsonPayload(text string) (string, error) {
	text = strings.TrimSpace(text)
	text = strings.TrimPrefix(text, "```json")
	text = strings.TrimPrefix(text, "```")
	text = strings.TrimSpace(text)

	startIdx := strings.Index(text, "{")
	if startIdx == -1 {
		return "", fmt.Errorf("no JSON object found in response")
	}

	endIdx := strings.LastIndex(text, "}")
	if endIdx == -1 || endIdx < startIdx {
		return "", fmt.Errorf("invalid JSON object in response")
	}

	return text[startIdx : endIdx+1], nil
}

// rawInvoice mirrors InvoiceData with pointer fields so a missing field can
// be told apart from a zero value during schema validation.
type rawInvoice struct {
	InvoiceNumber *string `json:"invoiceNumber"`
	VendorName    *string `json:"vendorName"`
	Date          *string `json:"date"`
	LineItems     []struct {
		Description *string  `json:"description"`
		Amount      *float64 `json:"amount"`
	} `json:"lineItems"`
	TotalAmount    *float64 `json:"totalAmount"`
	TaxInformation *string  `json:"taxInformation"`
}

// parseInvoiceJSON parses and schema-validates the JSON reply of an
// extraction call. A reply missing any required field is rejected rather
// than silently accepted with zero values.
func parseInvoiceJSON(text string) (*InvoiceData, error) {
	payload, err := jsonPayload(text)
	if err != nil {
		return nil, err
	}

	var raw rawInvoice
	if err := json.Unmarshal([]byte(payload), &raw); err != nil {
		return nil, fmt.Errorf("unmarshaling json: %w", err)
	}

	switch {
	case raw.InvoiceNumber == nil:
		return nil, fmt.Errorf("response missing required field invoiceNumber")
	case raw.VendorName == nil:
		return nil, fmt.Errorf("response missing required field vendorName")
	case raw.Date == nil:
		return nil, fmt.Errorf("response missing required field date")
	case raw.LineItems == nil:
		return nil, fmt.Errorf("response missing required field lineItems")
	case raw.TotalAmount == nil:
		return nil, fmt.Errorf("response missing required field totalAmount")
	}

	data := &InvoiceData{
		InvoiceNumber: strings.TrimSpace(*raw.InvoiceNumber),
		VendorName:    strings.TrimSpace(*raw.VendorName),
		Date:          strings.TrimSpace(*raw.Date),
		LineItems:     make([]LineItem, 0, len(raw.LineItems)),
		TotalAmount:   *raw.TotalAmount,
	}
	if raw.TaxInformation != nil {
		data.TaxInformation = strings.TrimSpace(*raw.TaxInformation)
	}

	for i, item := range raw.LineItems {
		if item.Description == nil || item.Amount == nil {
			return nil, fmt.Errorf("line item %d missing description or amount", i)
		}
		data.LineItems = append(data.LineItems, LineItem{
			Description: strings.TrimSpace(*item.Description),
			Amount:      *item.Amount,
		})
	}

	return data, nil
}

// rawCorrection mirrors Correction with pointer fields for validation.
type rawCorrection struct {
	CorrectedData map[string]any `json:"correctedData"`
	Confidence    *float64       `json:"confidence"`
}

// parseCorrectionJSON parses and validates the JSON reply of a correction
// call. Confidence is clamped into [0,1] the same way the date normalization
// tolerates sloppy model output elsewhere.
func parseCorrectionJSON(text string) (*Correction, error) {
	payload, err := jsonPayload(text)
	if err != nil {
		return nil, err
	}

	var raw rawCorrection
	if err := json.Unmarshal([]byte(payload), &raw); err != nil {
		return nil, fmt.Errorf("unmarshaling json: %w", err)
	}

	if raw.CorrectedData == nil {
		return nil, fmt.Errorf("response missing required field correctedData")
	}
	if raw.Confidence == nil {
		return nil, fmt.Errorf("response missing required field confidence")
	}

	confidence := *raw.Confidence
	if confidence < 0 {
		confidence = 0
	}
	if confidence > 1 {
		confidence = 1
	}

	return &Correction{
		CorrectedData: raw.CorrectedData,
		Confidence:    confidence,
	}, nil
}
