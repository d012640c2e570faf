package receipt

import (
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"path/filepath"
	"strings"
)

// ExtractResponse is the envelope returned by the extraction endpoint. A
// failed boundary call (bad file type, provider failure) yields
// success=false with an error message, distinct from a successfully
// normalized-but-flagged record.
type ExtractResponse struct {
	Success     bool    `json:"success"`
	ID          string  `json:"id,omitempty"`
	ReceiptData *Record `json:"receipt_data,omitempty"`
	Error       string  `json:"error,omitempty"`
}

// corsError writes an error response with CORS headers set
func corsError(w http.ResponseWriter, message string, code int) {
	setCORSHeaders(w)
	http.Error(w, message, code)
}

// setCORSHeaders sets CORS headers on a response
func setCORSHeaders(w http.ResponseWriter) {
	w.Header().Set("Access-Control-Allow-Origin", "*")
	w.Header().Set("Access-Control-Allow-Methods", "GET, POST, DELETE, OPTIONS")
	w.Header().Set("Access-Control-Allow-Headers", "Content-Type, Authorization")
	w.Header().Set("Access-Control-Max-Age", "3600")
}

func writeExtractError(w http.ResponseWriter, code int, message string) {
	setCORSHeaders(w)
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	json.NewEncoder(w).Encode(ExtractResponse{
		Success: false,
		Error:   message,
	})
}

// handleInfo reports basic service information
func (s *Server) handleInfo(w http.ResponseWriter, r *http.Request) {
	setCORSHeaders(w)
	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(map[string]string{
		"status":  "running",
		"service": "receipt-ocr-service",
		"version": s.version,
	})
}

// handleHealth is the health check endpoint
func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	setCORSHeaders(w)
	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(map[string]string{"status": "healthy"})
}

// handleListExtractions returns a list of all extractions
func (s *Server) handleListExtractions(w http.ResponseWriter, r *http.Request) {
	extractions, err := s.service.ListExtractions()
	if err != nil {
		slog.Error("Error listing extractions", "error", err)
		corsError(w, "Internal server error", http.StatusInternalServerError)
		return
	}

	// Ensure we always return an array, not nil
	if extractions == nil {
		extractions = []*Extraction{}
	}

	w.Header().Set("Content-Type", "application/json")
	if err := json.NewEncoder(w).Encode(extractions); err != nil {
		slog.Error("Error encoding response", "error", err)
	}
}

// handleExtractReceipt handles a receipt document upload
func (s *Server) handleExtractReceipt(w http.ResponseWriter, r *http.Request) {
	// 50MB to handle high-resolution phone photos
	maxFormSize := int64(50 << 20)
	if err := r.ParseMultipartForm(maxFormSize); err != nil {
		slog.Error("Error parsing multipart form", "error", err)
		errorMsg := "Error parsing form"
		if err.Error() == "http: request body too large" {
			errorMsg = "File is too large. Maximum size is 50MB."
		}
		writeExtractError(w, http.StatusBadRequest, errorMsg)
		return
	}

	f, header, err := r.FormFile("file")
	if err != nil {
		slog.Error("Error getting file from form", "error", err)
		writeExtractError(w, http.StatusBadRequest, "No file provided")
		return
	}
	defer f.Close()

	if header.Size > maxFormSize {
		writeExtractError(w, http.StatusBadRequest, "File is too large. Maximum size is 50MB.")
		return
	}

	data, err := io.ReadAll(f)
	if err != nil {
		slog.Error("Error reading file data", "error", err, "filename", header.Filename)
		writeExtractError(w, http.StatusInternalServerError, "Error reading file. Please try again.")
		return
	}

	// Multipart writers default the part type to application/octet-stream,
	// so fall back to the filename extension in that case too.
	contentType := header.Header.Get("Content-Type")
	if contentType == "" || contentType == "application/octet-stream" {
		contentType = contentTypeFromExtension(header.Filename)
	}

	extraction, err := s.service.ProcessReceipt(r.Context(), header.Filename, data, contentType)
	if err != nil {
		slog.Error("Error processing receipt", "filename", header.Filename, "error", err)
		code := http.StatusBadGateway
		if errors.Is(err, ErrUnsupportedFileType) {
			code = http.StatusBadRequest
		}
		writeExtractError(w, code, err.Error())
		return
	}

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusCreated)
	err = json.NewEncoder(w).Encode(ExtractResponse{
		Success:     true,
		ID:          extraction.ID,
		ReceiptData: extraction.Record,
	})
	if err != nil {
		slog.Error("Error encoding response", "error", err)
	}
}

// contentTypeFromExtension guesses a content type for uploads whose part
// header carries none.
func contentTypeFromExtension(filename string) string {
	switch strings.ToLower(filepath.Ext(filename)) {
	case ".jpg", ".jpeg":
		return "image/jpeg"
	case ".png":
		return "image/png"
	case ".pdf":
		return "application/pdf"
	default:
		return "application/octet-stream"
	}
}

// handleGetExtraction returns a single extraction
func (s *Server) handleGetExtraction(w http.ResponseWriter, r *http.Request) {
	id := r.PathValue("id")
	if id == "" {
		corsError(w, "Extraction ID required", http.StatusBadRequest)
		return
	}
	extraction, err := s.service.GetExtraction(id)
	if err != nil {
		corsError(w, "Extraction not found", http.StatusNotFound)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	if err := json.NewEncoder(w).Encode(extraction); err != nil {
		slog.Error("Error encoding response", "error", err)
	}
}

// handleGetDocument returns the stored source document for an extraction
func (s *Server) handleGetDocument(w http.ResponseWriter, r *http.Request) {
	id := r.PathValue("id")
	if id == "" {
		corsError(w, "Extraction ID required", http.StatusBadRequest)
		return
	}
	data, contentType, err := s.service.GetDocument(id)
	if err != nil {
		corsError(w, "File not found", http.StatusNotFound)
		return
	}

	w.Header().Set("Content-Type", contentType)
	w.Write(data)
}

// handleDeleteExtraction deletes an extraction
func (s *Server) handleDeleteExtraction(w http.ResponseWriter, r *http.Request) {
	id := r.PathValue("id")
	if id == "" {
		corsError(w, "Extraction ID required", http.StatusBadRequest)
		return
	}
	if err := s.service.DeleteExtraction(id); err != nil {
		corsError(w, "Error deleting extraction", http.StatusInternalServerError)
		return
	}

	w.WriteHeader(http.StatusNoContent)
}
