package invoice

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"path/filepath"
	"strings"
)

// maxFormSize caps a whole multipart upload. Individual files are bounded
// separately at 5MB before extraction.
const maxFormSize = int64(64 << 20) // 64MB

// setCORSHeaders sets CORS headers on a response
func setCORSHeaders(w http.ResponseWriter) {
	w.Header().Set("Access-Control-Allow-Origin", "*")
	w.Header().Set("Access-Control-Allow-Methods", "GET, POST, PUT, DELETE, OPTIONS")
	w.Header().Set("Access-Control-Allow-Headers", "Content-Type, Authorization")
	w.Header().Set("Access-Control-Max-Age", "3600")
}

// jsonError writes a JSON error response with CORS headers set
func jsonError(w http.ResponseWriter, message string, code int) {
	setCORSHeaders(w)
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	json.NewEncoder(w).Encode(map[string]string{"error": message})
}

// handleIndex serves the HTML interface
func (s *Server) handleIndex(w http.ResponseWriter, r *http.Request) {
	setCORSHeaders(w)
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	w.Write(indexHTML)
}

// handleStaticCSS serves the CSS file
func (s *Server) handleStaticCSS(w http.ResponseWriter, r *http.Request) {
	setCORSHeaders(w)
	w.Header().Set("Content-Type", "text/css")
	w.Write(appCSS)
}

// handleStaticJS serves the JavaScript file
func (s *Server) handleStaticJS(w http.ResponseWriter, r *http.Request) {
	setCORSHeaders(w)
	w.Header().Set("Content-Type", "application/javascript; charset=utf-8")
	w.Write(appJS)
}

// handleListInvoices returns all invoices, newest-first
func (s *Server) handleListInvoices(w http.ResponseWriter, r *http.Request) {
	invoices, err := s.service.ListInvoices()
	if err != nil {
		slog.Error("Error listing invoices", "error", err)
		jsonError(w, "Internal server error", http.StatusInternalServerError)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	if err := json.NewEncoder(w).Encode(invoices); err != nil {
		slog.Error("Error encoding response", "error", err)
	}
}

// handleUploadInvoices accepts one or more invoice files and processes them
// sequentially in submission order
func (s *Server) handleUploadInvoices(w http.ResponseWriter, r *http.Request) {
	if err := r.ParseMultipartForm(maxFormSize); err != nil {
		slog.Error("Error parsing multipart form", "error", err)
		jsonError(w, "Error parsing form", http.StatusBadRequest)
		return
	}

	headers := r.MultipartForm.File["files"]
	if len(headers) == 0 {
		jsonError(w, "At least one file is required.", http.StatusBadRequest)
		return
	}

	uploads := make([]Upload, 0, len(headers))
	for _, header := range headers {
		upload := Upload{
			FileName:    header.Filename,
			ContentType: uploadContentType(header.Header.Get("Content-Type"), header.Filename),
		}

		f, err := header.Open()
		if err != nil {
			upload.ReadErr = err
			uploads = append(uploads, upload)
			continue
		}
		upload.Data, upload.ReadErr = io.ReadAll(f)
		f.Close()
		uploads = append(uploads, upload)
	}

	results := s.service.ProcessUploads(uploads)

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusCreated)
	if err := json.NewEncoder(w).Encode(results); err != nil {
		slog.Error("Error encoding response", "error", err)
	}
}

// uploadContentType resolves a file's MIME type, falling back to its extension
func uploadContentType(contentType, filename string) string {
	contentType = strings.ToLower(strings.TrimSpace(contentType))
	if contentType != "" && contentType != "application/octet-stream" {
		return contentType
	}
	switch strings.ToLower(filepath.Ext(filename)) {
	case ".jpg", ".jpeg":
		return "image/jpeg"
	case ".png":
		return "image/png"
	case ".webp":
		return "image/webp"
	case ".pdf":
		return "application/pdf"
	default:
		return "application/octet-stream"
	}
}

// handleGetInvoice returns a single invoice
func (s *Server) handleGetInvoice(w http.ResponseWriter, r *http.Request) {
	id := r.PathValue("id")
	if id == "" {
		jsonError(w, "Invoice ID required", http.StatusBadRequest)
		return
	}
	inv, err := s.service.GetInvoice(id)
	if err != nil {
		jsonError(w, "Invoice not found", http.StatusNotFound)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	if err := json.NewEncoder(w).Encode(inv); err != nil {
		slog.Error("Error encoding response", "error", err)
	}
}

// handleSaveInvoice commits edited form values for an invoice
func (s *Server) handleSaveInvoice(w http.ResponseWriter, r *http.Request) {
	id := r.PathValue("id")
	if id == "" {
		jsonError(w, "Invoice ID required", http.StatusBadRequest)
		return
	}

	var form InvoiceForm
	if err := json.NewDecoder(r.Body).Decode(&form); err != nil {
		jsonError(w, "Invalid request body", http.StatusBadRequest)
		return
	}

	inv, err := s.service.SaveInvoice(id, form)
	if err != nil {
		var validationErr *ValidationError
		switch {
		case errors.As(err, &validationErr):
			jsonError(w, validationErr.Reason, http.StatusUnprocessableEntity)
		case errors.Is(err, ErrNotFound):
			jsonError(w, "Invoice not found", http.StatusNotFound)
		default:
			slog.Error("Error saving invoice", "id", id, "error", err)
			jsonError(w, "Internal server error", http.StatusInternalServerError)
		}
		return
	}

	w.Header().Set("Content-Type", "application/json")
	if err := json.NewEncoder(w).Encode(inv); err != nil {
		slog.Error("Error encoding response", "error", err)
	}
}

// handleDeleteInvoice deletes an invoice
func (s *Server) handleDeleteInvoice(w http.ResponseWriter, r *http.Request) {
	id := r.PathValue("id")
	if id == "" {
		jsonError(w, "Invoice ID required", http.StatusBadRequest)
		return
	}
	if err := s.service.DeleteInvoice(id); err != nil {
		slog.Error("Error deleting invoice", "id", id, "error", err)
		jsonError(w, "Error deleting invoice", http.StatusInternalServerError)
		return
	}

	w.WriteHeader(http.StatusNoContent)
}

// handleExportInvoice serializes form values to a downloadable JSON artifact.
// The request body holds the current form values; an empty body falls back
// to the persisted extracted data.
func (s *Server) handleExportInvoice(w http.ResponseWriter, r *http.Request) {
	id := r.PathValue("id")
	if id == "" {
		jsonError(w, "Invoice ID required", http.StatusBadRequest)
		return
	}

	inv, err := s.service.GetInvoice(id)
	if err != nil {
		jsonError(w, "Invoice not found", http.StatusNotFound)
		return
	}

	body, err := io.ReadAll(r.Body)
	if err != nil {
		jsonError(w, "Error reading request body", http.StatusBadRequest)
		return
	}

	var form InvoiceForm
	if len(strings.TrimSpace(string(body))) == 0 {
		if inv.ExtractedData == nil {
			jsonError(w, "No data to export.", http.StatusUnprocessableEntity)
			return
		}
		form = FormFromExtractedData(inv.ExtractedData)
	} else if err := json.Unmarshal(body, &form); err != nil {
		jsonError(w, "Invalid request body", http.StatusBadRequest)
		return
	}

	artifact, err := ExportForm(inv.FileName, form)
	if err != nil {
		slog.Error("Error exporting invoice", "id", id, "error", err)
		jsonError(w, "Internal server error", http.StatusInternalServerError)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	w.Header().Set("Content-Disposition", fmt.Sprintf("attachment; filename=%q", artifact.FileName))
	w.Write(artifact.Content)
}

// handleSuggestCorrections runs a correction pass over an extracted record
func (s *Server) handleSuggestCorrections(w http.ResponseWriter, r *http.Request) {
	var req struct {
		InvoiceData map[string]any `json:"invoiceData"`
	}

	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		jsonError(w, "Invalid request body", http.StatusBadRequest)
		return
	}
	if req.InvoiceData == nil {
		jsonError(w, "invoiceData is required", http.StatusBadRequest)
		return
	}

	correction, err := s.service.SuggestCorrections(req.InvoiceData)
	if err != nil {
		jsonError(w, err.Error(), http.StatusBadGateway)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	if err := json.NewEncoder(w).Encode(correction); err != nil {
		slog.Error("Error encoding response", "error", err)
	}
}
