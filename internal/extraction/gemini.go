package extraction

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/google/generative-ai-go/genai"
	"google.golang.org/api/option"
)

// Gemini implements the Extractor interface using Google Gemini
type Gemini struct {
	client *genai.Client
	model  *genai.GenerativeModel
}

// NewGemini creates a new Gemini Extractor instance
func NewGemini(apiKey string, modelName string) (*Gemini, error) {
	if apiKey == "" {
		return nil, fmt.Errorf("gemini api key is required")
	}
	if modelName == "" {
		modelName = "gemini-2.5-pro"
	}

	ctx := context.Background()
	client, err := genai.NewClient(ctx, option.WithAPIKey(apiKey))
	if err != nil {
		return nil, fmt.Errorf("creating gemini client: %w", err)
	}

	model := client.GenerativeModel(modelName)

	return &Gemini{
		client: client,
		model:  model,
	}, nil
}

// ExtractInvoice analyzes an invoice data URI and extracts its structured fields
func (g *Gemini) ExtractInvoice(invoiceDataURI string) (*InvoiceData, error) {
	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	contentType, fileData, err := DecodeDataURI(invoiceDataURI)
	if err != nil {
		return nil, extractErr("decoding invoice data URI", err)
	}

	// The vision model gets PNG regardless of the upload format
	pngData, err := preparePNG(fileData, contentType)
	if err != nil {
		return nil, extractErr("preparing invoice image", err)
	}

	parts := []genai.Part{
		genai.ImageData("png", pngData),
		genai.Text(invoiceScanPrompt),
	}

	resp, err := g.model.GenerateContent(ctx, parts...)
	if err != nil {
		return nil, extractErr("generating content", err)
	}

	text, err := responseText(resp)
	if err != nil {
		return nil, extractErr("reading response", err)
	}

	data, err := parseInvoiceJSON(text)
	if err != nil {
		return nil, extractErr("parsing invoice data", err)
	}

	return data, nil
}

// SuggestCorrections reviews extracted invoice data and returns a corrected
// version with a confidence score
func (g *Gemini) SuggestCorrections(invoiceData map[string]any) (*Correction, error) {
	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	encoded, err := json.Marshal(invoiceData)
	if err != nil {
		return nil, correctErr("encoding invoice data", err)
	}

	prompt := fmt.Sprintf(correctionPrompt, string(encoded))

	resp, err := g.model.GenerateContent(ctx, genai.Text(prompt))
	if err != nil {
		return nil, correctErr("generating content", err)
	}

	text, err := responseText(resp)
	if err != nil {
		return nil, correctErr("reading response", err)
	}

	correction, err := parseCorrectionJSON(text)
	if err != nil {
		return nil, correctErr("parsing correction data", err)
	}

	return correction, nil
}

// Close closes the Gemini client
func (g *Gemini) Close() error {
	return g.client.Close()
}

// responseText collects the text parts of a Gemini response
func responseText(resp *genai.GenerateContentResponse) (string, error) {
	if len(resp.Candidates) == 0 || len(resp.Candidates[0].Content.Parts) == 0 {
		return "", fmt.Errorf("no response from gemini")
	}

	var builder strings.Builder
	for _, part := range resp.Candidates[0].Content.Parts {
		if text, ok := part.(genai.Text); ok {
			builder.WriteString(string(text))
		}
	}

	return strings.TrimSpace(builder.String()), nil
}
