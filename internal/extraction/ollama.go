package extraction

import (
	"bytes"
	"context"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"
)

// Ollama implements the Extractor interface using a local Ollama server
type Ollama struct {
	baseURL string
	model   string
	client  *http.Client
}

// NewOllama creates a new Ollama Extractor instance.
// Vision-capable models work best for extraction (llava, qwen2-vl, bakllava).
func NewOllama(baseURL string, modelName string) (*Ollama, error) {
	if baseURL == "" {
		baseURL = "http://localhost:11434"
	}
	if modelName == "" {
		modelName = "llava"
	}

	return &Ollama{
		baseURL: baseURL,
		model:   modelName,
		client: &http.Client{
			Timeout: 120 * time.Second, // vision models can be slow
		},
	}, nil
}

// ollamaChatRequest represents the request body for Ollama's chat API
type ollamaChatRequest struct {
	Model    string          `json:"model"`
	Messages []ollamaMessage `json:"messages"`
	Stream   bool            `json:"stream"`
	Images   []string        `json:"images,omitempty"`
}

type ollamaMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

// ollamaChatResponse represents the response from Ollama's chat API
type ollamaChatResponse struct {
	Message ollamaMessage `json:"message"`
	Done    bool          `json:"done"`
}

// ExtractInvoice analyzes an invoice data URI and extracts its structured fields
func (o *Ollama) ExtractInvoice(invoiceDataURI string) (*InvoiceData, error) {
	contentType, fileData, err := DecodeDataURI(invoiceDataURI)
	if err != nil {
		return nil, extractErr("decoding invoice data URI", err)
	}

	pngData, err := preparePNG(fileData, contentType)
	if err != nil {
		return nil, extractErr("preparing invoice image", err)
	}

	reqBody := ollamaChatRequest{
		Model:  o.model,
		Stream: false,
		Messages: []ollamaMessage{
			{
				Role:    "system",
				Content: "You are an expert at reading and extracting information from invoices. You must carefully read all text in images and extract accurate information.",
			},
			{
				Role:    "user",
				Content: invoiceScanPrompt,
			},
		},
		Images: []string{base64.StdEncoding.EncodeToString(pngData)},
	}

	text, err := o.chat(reqBody)
	if err != nil {
		return nil, extractErr("calling ollama API", err)
	}

	data, err := parseInvoiceJSON(text)
	if err != nil {
		return nil, extractErr("parsing invoice data", err)
	}

	return data, nil
}

// SuggestCorrections reviews extracted invoice data and returns a corrected
// version with a confidence score
func (o *Ollama) SuggestCorrections(invoiceData map[string]any) (*Correction, error) {
	encoded, err := json.Marshal(invoiceData)
	if err != nil {
		return nil, correctErr("encoding invoice data", err)
	}

	reqBody := ollamaChatRequest{
		Model:  o.model,
		Stream: false,
		Messages: []ollamaMessage{
			{
				Role:    "user",
				Content: fmt.Sprintf(correctionPrompt, string(encoded)),
			},
		},
	}

	text, err := o.chat(reqBody)
	if err != nil {
		return nil, correctErr("calling ollama API", err)
	}

	correction, err := parseCorrectionJSON(text)
	if err != nil {
		return nil, correctErr("parsing correction data", err)
	}

	return correction, nil
}

// chat posts one chat request and returns the reply text
func (o *Ollama) chat(reqBody ollamaChatRequest) (string, error) {
	ctx, cancel := context.WithTimeout(context.Background(), 120*time.Second)
	defer cancel()

	jsonData, err := json.Marshal(reqBody)
	if err != nil {
		return "", fmt.Errorf("marshaling request: %w", err)
	}

	url := fmt.Sprintf("%s/api/chat", o.baseURL)
	req, err := http.NewRequestWithContext(ctx, "POST", url, bytes.NewBuffer(jsonData))
	if err != nil {
		return "", fmt.Errorf("creating request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := o.client.Do(req)
	if err != nil {
		return "", err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(resp.Body)
		return "", fmt.Errorf("ollama API error (status %d): %s", resp.StatusCode, string(body))
	}

	var chatResp ollamaChatResponse
	if err := json.NewDecoder(resp.Body).Decode(&chatResp); err != nil {
		return "", fmt.Errorf("decoding response: %w", err)
	}

	return chatResp.Message.Content, nil
}

// Close closes the Ollama client (no-op for HTTP client)
func (o *Ollama) Close() error {
	return nil
}
