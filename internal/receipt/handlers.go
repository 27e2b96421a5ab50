package receipt

import (
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"net/http"

	"github.com/shopspring/decimal"

	"github.com/zombor/receipt-sorter/internal/ledger"
)

const maxUploadSize = int64(50 << 20) // 50MB for high-resolution phone photos

// corsError writes an error response with CORS headers set
func corsError(w http.ResponseWriter, message string, code int) {
	setCORSHeaders(w)
	http.Error(w, message, code)
}

// setCORSHeaders sets CORS headers on a response
func setCORSHeaders(w http.ResponseWriter) {
	w.Header().Set("Access-Control-Allow-Origin", "*")
	w.Header().Set("Access-Control-Allow-Methods", "GET, POST, OPTIONS")
	w.Header().Set("Access-Control-Allow-Headers", "Content-Type, Authorization")
	w.Header().Set("Access-Control-Max-Age", "3600")
}

func writeJSON(w http.ResponseWriter, code int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		slog.Error("Error encoding response", "error", err)
	}
}

func writeJSONError(w http.ResponseWriter, code int, message string) {
	writeJSON(w, code, map[string]string{"error": message})
}

// handleListDocuments returns every processed document
func (s *Server) handleListDocuments(w http.ResponseWriter, r *http.Request) {
	docs, err := s.service.ListDocuments()
	if err != nil {
		slog.Error("Error listing documents", "error", err)
		corsError(w, "Internal server error", http.StatusInternalServerError)
		return
	}
	writeJSON(w, http.StatusOK, docs)
}

// handleGetDocument returns a single document
func (s *Server) handleGetDocument(w http.ResponseWriter, r *http.Request) {
	doc, err := s.service.GetDocument(r.PathValue("id"))
	if errors.Is(err, ErrNotFound) {
		corsError(w, "Document not found", http.StatusNotFound)
		return
	}
	if err != nil {
		slog.Error("Error getting document", "error", err)
		corsError(w, "Internal server error", http.StatusInternalServerError)
		return
	}
	writeJSON(w, http.StatusOK, doc)
}

// handleUploadDocument stores an uploaded receipt and runs it through the pipeline
func (s *Server) handleUploadDocument(w http.ResponseWriter, r *http.Request) {
	r.Body = http.MaxBytesReader(w, r.Body, maxUploadSize)
	if err := r.ParseMultipartForm(maxUploadSize); err != nil {
		slog.Error("Error parsing multipart form", "error", err)
		errorMsg := "Error parsing form"
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			errorMsg = "File is too large. Maximum size is 50MB."
		}
		writeJSONError(w, http.StatusBadRequest, errorMsg)
		return
	}

	f, header, err := r.FormFile("file")
	if err != nil {
		slog.Error("Error getting file from form", "error", err)
		writeJSONError(w, http.StatusBadRequest, "No file provided")
		return
	}
	defer f.Close()

	data, err := io.ReadAll(f)
	if err != nil {
		slog.Error("Error reading file data", "error", err, "filename", header.Filename)
		writeJSONError(w, http.StatusInternalServerError, "Error reading file. Please try again.")
		return
	}

	doc, err := s.service.Upload(r.Context(), header.Filename, data)
	switch {
	case errors.Is(err, ErrAlreadyProcessed):
		writeJSON(w, http.StatusOK, doc)
	case err != nil && doc != nil:
		slog.Error("Error processing document", "filename", header.Filename, "error", err)
		writeJSON(w, http.StatusUnprocessableEntity, doc)
	case err != nil:
		slog.Error("Error storing document", "filename", header.Filename, "error", err)
		writeJSONError(w, http.StatusBadRequest, err.Error())
	default:
		writeJSON(w, http.StatusCreated, doc)
	}
}

type ledgerResponse struct {
	*ledger.Book
	Total     decimal.Decimal        `json:"total"`
	Breakdown []ledger.CategoryTotal `json:"breakdown"`
}

// handleGetLedger returns the rows and totals of one currency ledger
func (s *Server) handleGetLedger(w http.ResponseWriter, r *http.Request) {
	book, err := s.service.Ledger(r.PathValue("currency"))
	if err != nil {
		slog.Error("Error loading ledger", "error", err)
		corsError(w, "Internal server error", http.StatusInternalServerError)
		return
	}
	if book.Rows == nil {
		book.Rows = []ledger.Row{}
	}
	writeJSON(w, http.StatusOK, ledgerResponse{Book: book, Total: book.Total(), Breakdown: book.Breakdown()})
}

// handleSummary returns totals across every ledger
func (s *Server) handleSummary(w http.ResponseWriter, r *http.Request) {
	summary, err := s.service.Summary()
	if err != nil {
		slog.Error("Error summarizing ledgers", "error", err)
		corsError(w, "Internal server error", http.StatusInternalServerError)
		return
	}
	writeJSON(w, http.StatusOK, summary)
}
