package invoice

import (
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"github.com/invoicepilot/invoicepilot/internal/extraction"
)

// IDGenerator generates unique IDs for invoices
type IDGenerator interface {
	Generate() string
}

// TimeSource provides the current time
type TimeSource interface {
	Now() time.Time
}

// defaultIDGenerator generates random UUIDs
type defaultIDGenerator struct{}

func (g *defaultIDGenerator) Generate() string {
	return uuid.NewString()
}

// defaultTimeSource provides the current time
type defaultTimeSource struct{}

func (t *defaultTimeSource) Now() time.Time {
	return time.Now()
}

// Upload is one file submitted for processing. ReadErr carries a failure
// from reading the raw file bytes so the batch can record it per-file.
type Upload struct {
	FileName    string
	ContentType string
	Data        []byte
	ReadErr     error
}

// Service handles invoice upload, review and export operations
type Service struct {
	store       Store
	extractor   extraction.Extractor
	idGenerator IDGenerator
	timeSource  TimeSource
}

// NewService creates a new Service with default ID generator and time source
func NewService(store Store, extractor extraction.Extractor) *Service {
	return &Service{
		store:       store,
		extractor:   extractor,
		idGenerator: &defaultIDGenerator{},
		timeSource:  &defaultTimeSource{},
	}
}

// NewServiceWithDeps creates a new Service with custom dependencies for testing
func NewServiceWithDeps(store Store, extractor extraction.Extractor, idGen IDGenerator, timeSrc TimeSource) *Service {
	return &Service{
		store:       store,
		extractor:   extractor,
		idGenerator: idGen,
		timeSource:  timeSrc,
	}
}

// ProcessUploads runs the extraction pipeline for a batch of files, strictly
// one at a time in submission order. A failing file is recorded with
// StatusError and does not abort the rest of the batch.
func (s *Service) ProcessUploads(uploads []Upload) []StoredInvoice {
	results := make([]StoredInvoice, 0, len(uploads))
	for _, upload := range uploads {
		results = append(results, s.processUpload(upload))
	}
	return results
}

// processUpload walks one file through Pending -> Processing -> Completed/Error
func (s *Service) processUpload(upload Upload) StoredInvoice {
	inv := StoredInvoice{
		ID:         s.idGenerator.Generate(),
		FileName:   upload.FileName,
		UploadDate: s.timeSource.Now().UTC().Format(time.RFC3339),
		Status:     StatusPending,
	}
	s.persist(inv)

	if upload.ReadErr != nil {
		slog.Error("Failed to read file", "filename", upload.FileName, "error", upload.ReadErr)
		return s.fail(inv, "Failed to read file.")
	}

	if err := extraction.ValidateUpload(upload.ContentType, int64(len(upload.Data))); err != nil {
		slog.Error("Rejected upload", "filename", upload.FileName, "error", err)
		return s.fail(inv, err.Error())
	}

	inv.Status = StatusProcessing
	s.persist(inv)

	dataURI := extraction.EncodeDataURI(upload.ContentType, upload.Data)
	data, err := s.extractor.ExtractInvoice(dataURI)
	if err != nil {
		slog.Error("Failed to extract invoice data",
			"filename", upload.FileName,
			"content_type", upload.ContentType,
			"file_size", len(upload.Data),
			"error", err,
		)
		return s.fail(inv, "AI processing failed. "+err.Error())
	}

	inv.Status = StatusCompleted
	inv.ExtractedData = data
	s.persist(inv)
	return inv
}

// fail marks an invoice as failed and persists it. ExtractedData is cleared
// so an Error record never carries data.
func (s *Service) fail(inv StoredInvoice, message string) StoredInvoice {
	inv.Status = StatusError
	inv.ErrorMessage = message
	inv.ExtractedData = nil
	s.persist(inv)
	return inv
}

// persist writes a record's current state, adding it on first write. Storage
// here is a convenience layer: a write failure is logged, not fatal to the
// batch.
func (s *Service) persist(inv StoredInvoice) {
	var err error
	if inv.Status == StatusPending {
		err = s.store.Add(inv)
	} else {
		err = s.store.Update(inv)
	}
	if err != nil {
		slog.Warn("Failed to persist invoice", "id", inv.ID, "status", inv.Status, "error", err)
	}
}

// GetInvoice retrieves an invoice by ID
func (s *Service) GetInvoice(id string) (*StoredInvoice, error) {
	inv, err := s.store.GetByID(id)
	if err != nil {
		return nil, fmt.Errorf("getting invoice: %w", err)
	}
	return inv, nil
}

// ListInvoices returns all invoices, newest-first
func (s *Service) ListInvoices() ([]StoredInvoice, error) {
	invoices, err := s.store.List()
	if err != nil {
		return nil, fmt.Errorf("listing invoices: %w", err)
	}
	return invoices, nil
}

// SaveInvoice commits edited form values to a stored invoice. The persisted
// record is never mutated in place: a snapshot is loaded, the copy updated
// and the copy committed. Saving forces StatusCompleted.
func (s *Service) SaveInvoice(id string, form InvoiceForm) (*StoredInvoice, error) {
	if err := form.Validate(); err != nil {
		return nil, err
	}

	inv, err := s.store.GetByID(id)
	if err != nil {
		return nil, fmt.Errorf("getting invoice for save: %w", err)
	}

	updated := *inv
	updated.ExtractedData = form.ExtractedData()
	updated.Status = StatusCompleted
	updated.ErrorMessage = ""

	if err := s.store.Update(updated); err != nil {
		return nil, fmt.Errorf("saving invoice: %w", err)
	}
	return &updated, nil
}

// DeleteInvoice removes an invoice; deleting an unknown ID changes nothing
func (s *Service) DeleteInvoice(id string) error {
	if err := s.store.Delete(id); err != nil {
		return fmt.Errorf("deleting invoice: %w", err)
	}
	return nil
}

// SuggestCorrections runs a correction pass over an extracted record
func (s *Service) SuggestCorrections(invoiceData map[string]any) (*extraction.Correction, error) {
	correction, err := s.extractor.SuggestCorrections(invoiceData)
	if err != nil {
		slog.Error("Failed to suggest corrections", "error", err)
		return nil, fmt.Errorf("suggesting corrections: %w", err)
	}
	return correction, nil
}
