// SPDX-License-Identifier: MIT

package api

import (
	"net/http"
	"net/url"

	"github.com/go-chi/chi/v5"
	"github.com/oapi-codegen/runtime"

	"github.com/ManuGH/filechain/internal/chain"
	"github.com/ManuGH/filechain/internal/ratelimit"
)

func (s *Server) apiListFiles(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, s.ledger.List(r.Context()))
}

func (s *Server) apiUploadFile(w http.ResponseWriter, r *http.Request) {
	if !s.uploads.Allow(ratelimit.ClientKey(r)) {
		w.Header().Set("Retry-After", "60")
		writeError(w, r, http.StatusTooManyRequests, "upload_rate_limited", "Too many uploads. Please try again later.")
		return
	}
	part, err := s.filePart(w, r)
	if err != nil {
		writeError(w, r, http.StatusBadRequest, "no_file_part", "No file part")
		return
	}
	defer func() { _ = part.Close() }()

	filename := uploadFilename(part)
	if filename == "" {
		writeError(w, r, http.StatusBadRequest, "no_selected_file", "No selected file")
		return
	}

	block, err := s.ledger.Upload(r.Context(), filename, part)
	if err != nil {
		s.writeLedgerError(w, r, err)
		return
	}
	w.Header().Set("Location", "/api/v1/files/"+url.PathEscape(block.FileData.Filename))
	writeJSON(w, http.StatusCreated, block)
}

func (s *Server) apiAuditFiles(w http.ResponseWriter, r *http.Request) {
	results, err := s.ledger.AuditFiles(r.Context())
	if err != nil {
		s.writeLedgerError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"files": results})
}

func (s *Server) apiDownloadFile(w http.ResponseWriter, r *http.Request) {
	var name string
	err := runtime.BindStyledParameterWithOptions("simple", "filename", chi.URLParam(r, "filename"), &name,
		runtime.BindStyledParameterOptions{ParamLocation: runtime.ParamLocationPath, Required: true})
	if err != nil {
		writeError(w, r, http.StatusBadRequest, "invalid_filename", err.Error())
		return
	}
	dl, err := s.ledger.Download(r.Context(), name)
	if err != nil {
		s.writeLedgerError(w, r, err)
		return
	}
	defer func() { _ = dl.File.Close() }()
	serveAttachment(w, r, name, dl)
}

// chainPage is the body of GET /api/v1/chain.
type chainPage struct {
	Chain []chain.Block `json:"chain"`
	Total int           `json:"total"`
}

func (s *Server) apiGetChain(w http.ResponseWriter, r *http.Request) {
	var offset, limit *int
	q := r.URL.Query()
	if err := runtime.BindQueryParameter("form", true, false, "offset", q, &offset); err != nil {
		writeError(w, r, http.StatusBadRequest, "invalid_parameter", err.Error())
		return
	}
	if err := runtime.BindQueryParameter("form", true, false, "limit", q, &limit); err != nil {
		writeError(w, r, http.StatusBadRequest, "invalid_parameter", err.Error())
		return
	}

	if (offset != nil && *offset < 0) || (limit != nil && *limit < 1) {
		writeError(w, r, http.StatusBadRequest, "invalid_parameter", "offset must be >= 0 and limit >= 1")
		return
	}

	blocks := s.ledger.Blocks(r.Context())
	page := chainPage{Chain: blocks, Total: len(blocks)}
	if offset != nil {
		page.Chain = page.Chain[min(*offset, len(page.Chain)):]
	}
	if limit != nil && *limit < len(page.Chain) {
		page.Chain = page.Chain[:*limit]
	}
	writeJSON(w, http.StatusOK, page)
}

func (s *Server) apiVerifyChain(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, s.ledger.Verify(r.Context()))
}

func (s *Server) apiRepairChain(w http.ResponseWriter, r *http.Request) {
	res, err := s.ledger.Repair(r.Context())
	if err != nil {
		s.writeLedgerError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, res)
}

func (s *Server) apiResetChain(w http.ResponseWriter, r *http.Request) {
	if err := s.ledger.Reset(r.Context()); err != nil {
		s.writeLedgerError(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}
