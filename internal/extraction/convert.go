package extraction

import (
	"bytes"
	"fmt"
	"image"
	_ "image/jpeg" // Register JPEG decoder
	"image/png"

	"github.com/gen2brain/go-fitz"
	_ "golang.org/x/image/webp" // Register WEBP decoder
)

// invoiceScanPrompt is the shared prompt used by all LLM providers for extracting invoice data
const invoiceScanPrompt = `You are an expert AI assistant specializing in extracting data from invoices. Carefully read all text in the document and extract the following information:

1. **Invoice Number**: The invoice number or reference, usually near the top, labeled "Invoice #", "Invoice No.", "Reference" or similar.

2. **Vendor Name**: The name of the vendor or business issuing the invoice, usually the largest text or in a header.

3. **Date**: The invoice date as printed on the document.

4. **Line Items**: Every billed line with its description and amount. Extract only the numeric value for each amount (e.g., 42.75 for $42.75).

5. **Total Amount**: The final total or amount due, usually at the bottom, labeled "TOTAL", "Amount Due", "Grand Total" or similar.

6. **Tax Information**: Any tax details (tax ID, VAT number, tax amount), if present.

Return ONLY valid JSON in this exact format:
{
  "invoiceNumber": "INV-123",
  "vendorName": "Vendor Name",
  "date": "2024-01-15",
  "lineItems": [
    {"description": "Item description", "amount": 0.00}
  ],
  "totalAmount": 0.00,
  "taxInformation": "optional tax details"
}

Important:
- Every amount must be a number (not a string)
- Omit taxInformation if the invoice has no tax details
- Do not include any text before or after the JSON
- Do not use markdown code blocks`

// correctionPrompt is the shared prompt used by all LLM providers for reviewing extracted data
const correctionPrompt = `You are an AI assistant specialized in reviewing extracted invoice data and suggesting corrections.
Review the following extracted invoice data and provide suggestions for corrections, if any.

Return ONLY valid JSON in this exact format:
{
  "correctedData": { ... the invoice data with suggested corrections ... },
  "confidence": 0.0
}

The confidence must be a number between 0 and 1 scoring the suggested corrections.
Do not include any text before or after the JSON. Do not use markdown code blocks.

Extracted Invoice Data: %s`

// pdfToImage converts a PDF to a PNG image
func pdfToImage(pdfData []byte) ([]byte, error) {
	doc, err := fitz.NewFromMemory(pdfData)
	if err != nil {
		return nil, fmt.Errorf("opening PDF: %w", err)
	}
	defer doc.Close()

	// Render the first page (most invoices fit on one page)
	img, err := doc.Image(0)
	if err != nil {
		return nil, fmt.Errorf("rendering PDF page: %w", err)
	}

	var buf bytes.Buffer
	if err := png.Encode(&buf, img); err != nil {
		return nil, fmt.Errorf("encoding PNG: %w", err)
	}

	return buf.Bytes(), nil
}

// imageToPNG converts any registered image format (JPEG, WEBP) to PNG
func imageToPNG(imageData []byte) ([]byte, error) {
	img, _, err := image.Decode(bytes.NewReader(imageData))
	if err != nil {
		return nil, fmt.Errorf("decoding image: %w", err)
	}

	var buf bytes.Buffer
	if err := png.Encode(&buf, img); err != nil {
		return nil, fmt.Errorf("encoding PNG: %w", err)
	}

	return buf.Bytes(), nil
}

// preparePNG normalizes an accepted upload to PNG bytes for the vision model.
// PDFs are rasterized, JPEG/WEBP are re-encoded, PNG passes through.
func preparePNG(data []byte, contentType string) ([]byte, error) {
	switch normalizeContentType(contentType) {
	case "application/pdf":
		pngData, err := pdfToImage(data)
		if err != nil {
			return nil, fmt.Errorf("converting PDF to image: %w", err)
		}
		return pngData, nil
	case "image/png":
		return data, nil
	default:
		pngData, err := imageToPNG(data)
		if err != nil {
			return nil, fmt.Errorf("converting image to PNG: %w", err)
		}
		return pngData, nil
	}
}
