// SPDX-License-Identifier: MIT

package api

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/ManuGH/filechain/internal/blobstore"
	"github.com/ManuGH/filechain/internal/ledger"
	"github.com/ManuGH/filechain/internal/log"
)

// errorResponse is the JSON body of every API error.
type errorResponse struct {
	Error     string `json:"error"`
	Detail    string `json:"detail"`
	RequestID string `json:"requestId,omitempty"`
}

// writeJSON writes a JSON response with the given status code
func writeJSON(w http.ResponseWriter, code int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	_ = json.NewEncoder(w).Encode(v)
}

// writeError writes an error body correlated with the request ID.
func writeError(w http.ResponseWriter, r *http.Request, status int, code, detail string) {
	writeJSON(w, status, errorResponse{
		Error:     code,
		Detail:    detail,
		RequestID: log.RequestID(r.Context()),
	})
}

// writeLedgerError maps ledger and storage errors to HTTP statuses.
func (s *Server) writeLedgerError(w http.ResponseWriter, r *http.Request, err error) {
	var invalid *ledger.ChainInvalidError
	var tooBig *http.MaxBytesError
	switch {
	case errors.Is(err, ledger.ErrNoFilename):
		writeError(w, r, http.StatusBadRequest, "no_selected_file", "No selected file")
	case errors.Is(err, ledger.ErrFileNotFound):
		writeError(w, r, http.StatusNotFound, "file_not_found", "File not found")
	case errors.Is(err, ledger.ErrIntegrity):
		writeError(w, r, http.StatusConflict, "integrity_check_failed",
			"File integrity check failed! The file may have been tampered with.")
	case errors.As(err, &invalid):
		writeError(w, r, http.StatusConflict, "chain_invalid", invalid.Error())
	case errors.Is(err, blobstore.ErrTooLarge), errors.As(err, &tooBig):
		writeError(w, r, http.StatusRequestEntityTooLarge, "file_too_large", "File exceeds upload limit")
	default:
		logger := log.Enrich(r.Context(), s.logger)
		logger.Error().Err(err).
			Str(log.FieldEvent, "api.internal_error").
			Str("path", r.URL.Path).
			Msg("request failed")
		writeError(w, r, http.StatusInternalServerError, "internal_error", "An unexpected error occurred.")
	}
}
