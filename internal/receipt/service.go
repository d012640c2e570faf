package receipt

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"path/filepath"
	"regexp"
	"strings"
	"time"

	"github.com/google/uuid"

	"receipt-ocr-service/internal/recognition"
)

// ErrUnsupportedFileType is returned when an upload declares a content
// type the recognizer cannot accept.
var ErrUnsupportedFileType = errors.New("unsupported file type")

// recognizeTimeout bounds one external recognition call. Vision providers
// can be slow on dense multi-column receipts.
const recognizeTimeout = 120 * time.Second

// allowedContentTypes are the document types accepted for recognition.
// Anything else is rejected before the recognizer or the normalization
// core ever runs.
var allowedContentTypes = map[string]struct{}{
	"image/jpeg":      {},
	"image/jpg":       {},
	"image/png":       {},
	"application/pdf": {},
}

// IDGenerator generates unique IDs for extractions
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

// Service handles receipt extraction operations
type Service struct {
	db          DB
	recognizer  recognition.Recognizer
	storage     Storage
	normalizer  *Normalizer
	idGenerator IDGenerator
	timeSource  TimeSource
}

// NewService creates a new Service with default ID generator and time source
func NewService(db DB, recognizer recognition.Recognizer, storage Storage, normalizer *Normalizer) *Service {
	return &Service{
		db:          db,
		recognizer:  recognizer,
		storage:     storage,
		normalizer:  normalizer,
		idGenerator: &defaultIDGenerator{},
		timeSource:  &defaultTimeSource{},
	}
}

// NewServiceWithDeps creates a new Service with custom dependencies for testing
func NewServiceWithDeps(db DB, recognizer recognition.Recognizer, storage Storage, normalizer *Normalizer, idGen IDGenerator, timeSrc TimeSource) *Service {
	return &Service{
		db:          db,
		recognizer:  recognizer,
		storage:     storage,
		normalizer:  normalizer,
		idGenerator: idGen,
		timeSource:  timeSrc,
	}
}

// sanitizeFilename cleans up a filename by removing special characters and truncating length
func sanitizeFilename(filename string) string {
	ext := filepath.Ext(filename)
	base := strings.TrimSuffix(filename, ext)

	// Keep only alphanumeric, spaces, hyphens, and underscores
	reg := regexp.MustCompile(`[^a-zA-Z0-9\s\-_]`)
	base = reg.ReplaceAllString(base, "")

	reg = regexp.MustCompile(`\s+`)
	base = reg.ReplaceAllString(base, " ")

	base = strings.TrimSpace(base)

	// Truncate to a reasonable length, phone-generated names get long
	maxLen := 50
	if len(base) > maxLen {
		base = base[:maxLen]
	}

	if base == "" {
		base = "receipt"
	}

	return base + ext
}

// ProcessReceipt stores the uploaded document, delegates recognition to the
// external provider and normalizes the raw output into a validated record.
// Boundary failures (unsupported file type, provider failure) return an
// error; anything the recognizer did return degrades to a flagged record,
// never to a failure.
func (s *Service) ProcessReceipt(ctx context.Context, filename string, data []byte, contentType string) (*Extraction, error) {
	contentType = strings.ToLower(strings.TrimSpace(contentType))
	if _, ok := allowedContentTypes[contentType]; !ok {
		return nil, fmt.Errorf("%w: %s", ErrUnsupportedFileType, contentType)
	}

	id := s.idGenerator.Generate()
	now := s.timeSource.Now()

	cleanFilename := sanitizeFilename(filename)

	savedPath, err := s.storage.Save(fmt.Sprintf("%s_%s", id, cleanFilename), data)
	if err != nil {
		return nil, fmt.Errorf("saving file: %w", err)
	}

	recognizeCtx, cancel := context.WithTimeout(ctx, recognizeTimeout)
	defer cancel()

	raw, err := s.recognizer.Recognize(recognizeCtx, data, contentType)
	if err != nil {
		slog.Error("Failed to recognize receipt",
			"filename", filename,
			"content_type", contentType,
			"file_size", len(data),
			"error", err,
		)
		// Clean up the saved file since recognition failed
		s.storage.Delete(savedPath)
		return nil, fmt.Errorf("recognizing receipt: %w", err)
	}

	record := s.normalizer.Normalize(raw)

	extraction := &Extraction{
		ID:          id,
		Filename:    savedPath,
		ContentType: contentType,
		CreatedAt:   now,
		Record:      record,
	}

	if err := s.db.SaveExtraction(extraction); err != nil {
		// Clean up file if database save fails
		s.storage.Delete(savedPath)
		return nil, fmt.Errorf("saving extraction to database: %w", err)
	}

	return extraction, nil
}

// GetExtraction retrieves an extraction by ID
func (s *Service) GetExtraction(id string) (*Extraction, error) {
	extraction, err := s.db.GetExtraction(id)
	if err != nil {
		return nil, fmt.Errorf("getting extraction: %w", err)
	}
	return extraction, nil
}

// ListExtractions returns all extractions
func (s *Service) ListExtractions() ([]*Extraction, error) {
	extractions, err := s.db.ListExtractions()
	if err != nil {
		return nil, fmt.Errorf("listing extractions: %w", err)
	}
	return extractions, nil
}

// DeleteExtraction removes an extraction and its stored document
func (s *Service) DeleteExtraction(id string) error {
	extraction, err := s.db.GetExtraction(id)
	if err != nil {
		return fmt.Errorf("getting extraction for deletion: %w", err)
	}

	if err := s.storage.Delete(extraction.Filename); err != nil {
		// Log error but continue with database deletion
		slog.Warn("Failed to delete file", "filename", extraction.Filename, "error", err)
	}

	if err := s.db.DeleteExtraction(id); err != nil {
		return fmt.Errorf("deleting extraction from database: %w", err)
	}
	return nil
}

// GetDocument retrieves the stored source document for an extraction
func (s *Service) GetDocument(id string) ([]byte, string, error) {
	extraction, err := s.db.GetExtraction(id)
	if err != nil {
		return nil, "", fmt.Errorf("getting extraction: %w", err)
	}

	data, err := s.storage.Get(extraction.Filename)
	if err != nil {
		return nil, "", fmt.Errorf("getting document file: %w", err)
	}

	return data, extraction.ContentType, nil
}
