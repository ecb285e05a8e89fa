// SPDX-License-Identifier: MIT

package api

import (
	"embed"
	"errors"
	"fmt"
	"html/template"
	"mime"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/ManuGH/filechain/internal/blobstore"
	"github.com/ManuGH/filechain/internal/ledger"
	"github.com/ManuGH/filechain/internal/log"
	"github.com/ManuGH/filechain/internal/ratelimit"
)

//go:embed templates/*.html
var templateFS embed.FS

// Flash messages shown by the UI.
const (
	msgNoFilePart     = "No file part"
	msgNoSelectedFile = "No selected file"
	msgUploaded       = "File %s uploaded and added to blockchain"
	msgUploadFailed   = "Error: %s"
	msgIntegrityOK    = "File integrity verified"
	msgTampered       = "File integrity check failed! The file may have been tampered with."
	msgNotFound       = "File not found"
	msgChainValid     = "Blockchain integrity verified. All data is intact."
	msgChainInvalid   = "Blockchain integrity check failed! Issues detected: %s"
	msgAlreadyValid   = "Blockchain is already valid. No repair needed."
	msgRepaired       = "Blockchain has been successfully repaired. Previous issues: %s"
	msgRepairFailed   = "Failed to repair blockchain. Issues remain: %s"
	msgReset          = "Blockchain has been reset to initial state."
	msgThrottled      = "Too many uploads. Please try again later."
)

const timestampLayout = "2006-01-02 15:04:05"

func parseTemplates(loc *time.Location) (*template.Template, error) {
	funcs := template.FuncMap{
		"localtime": func(t time.Time) string { return t.In(loc).Format(timestampLayout) },
	}
	tmpl, err := template.New("").Funcs(funcs).ParseFS(templateFS, "templates/*.html")
	if err != nil {
		return nil, fmt.Errorf("parse templates: %w", err)
	}
	return tmpl, nil
}

type indexPage struct {
	Overview ledger.Overview
	Messages []string
}

func (s *Server) redirectHome(w http.ResponseWriter, r *http.Request) {
	http.Redirect(w, r, "/", http.StatusFound)
}

func (s *Server) handleIndex(w http.ResponseWriter, r *http.Request) {
	page := indexPage{
		Overview: s.ledger.List(r.Context()),
		Messages: s.popFlashes(w, r),
	}
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	w.Header().Set("Cache-Control", "no-store")
	if err := s.tmpl.ExecuteTemplate(w, "index.html", page); err != nil {
		logger := log.Enrich(r.Context(), s.logger)
		logger.Error().Err(err).
			Str(log.FieldEvent, "ui.render_failed").Msg("failed to render index")
	}
}

func (s *Server) handleUpload(w http.ResponseWriter, r *http.Request) {
	defer s.redirectHome(w, r)

	if !s.uploads.Allow(ratelimit.ClientKey(r)) {
		s.addFlash(w, r, msgThrottled)
		return
	}

	part, err := s.filePart(w, r)
	if err != nil {
		s.addFlash(w, r, msgNoFilePart)
		return
	}
	defer func() { _ = part.Close() }()

	filename := uploadFilename(part)
	if filename == "" {
		s.addFlash(w, r, msgNoSelectedFile)
		return
	}

	block, err := s.ledger.Upload(r.Context(), filename, part)
	var invalid *ledger.ChainInvalidError
	var tooBig *http.MaxBytesError
	switch {
	case err == nil:
		s.addFlash(w, r, fmt.Sprintf(msgUploaded, block.FileData.Filename))
	case errors.Is(err, ledger.ErrNoFilename):
		s.addFlash(w, r, msgNoSelectedFile)
	case errors.As(err, &invalid):
		s.addFlash(w, r, fmt.Sprintf(msgUploadFailed, invalid.Error()))
	case errors.Is(err, blobstore.ErrTooLarge), errors.As(err, &tooBig):
		s.addFlash(w, r, fmt.Sprintf(msgUploadFailed, "File exceeds upload limit"))
	default:
		logger := log.Enrich(r.Context(), s.logger)
		logger.Error().Err(err).
			Str(log.FieldEvent, "ui.upload_failed").Msg("upload failed")
		s.addFlash(w, r, fmt.Sprintf(msgUploadFailed, "Upload failed"))
	}
}

func (s *Server) handleDownload(w http.ResponseWriter, r *http.Request) {
	name, err := url.PathUnescape(chi.URLParam(r, "filename"))
	if err != nil {
		s.addFlash(w, r, msgNotFound)
		s.redirectHome(w, r)
		return
	}

	dl, err := s.ledger.Download(r.Context(), name)
	switch {
	case err == nil:
	case errors.Is(err, ledger.ErrFileNotFound):
		s.addFlash(w, r, msgNotFound)
		s.redirectHome(w, r)
		return
	case errors.Is(err, ledger.ErrIntegrity):
		s.addFlash(w, r, msgTampered)
		s.redirectHome(w, r)
		return
	default:
		logger := log.Enrich(r.Context(), s.logger)
		logger.Error().Err(err).
			Str(log.FieldEvent, "ui.download_failed").Str(log.FieldFilename, name).Msg("download failed")
		s.addFlash(w, r, msgNotFound)
		s.redirectHome(w, r)
		return
	}
	defer func() { _ = dl.File.Close() }()

	s.addFlash(w, r, msgIntegrityOK)
	serveAttachment(w, r, name, dl)
}

func serveAttachment(w http.ResponseWriter, r *http.Request, name string, dl *ledger.Download) {
	w.Header().Set("Content-Disposition", mime.FormatMediaType("attachment", map[string]string{"filename": name}))
	w.Header().Set("Cache-Control", "no-store")
	http.ServeContent(w, r, name, dl.Info.ModTime(), dl.File)
}

func (s *Server) handleVerify(w http.ResponseWriter, r *http.Request) {
	report := s.ledger.Verify(r.Context())
	if report.Valid {
		s.addFlash(w, r, msgChainValid)
	} else {
		s.addFlash(w, r, fmt.Sprintf(msgChainInvalid, strings.Join(report.Errors, ", ")))
	}
	s.redirectHome(w, r)
}

func (s *Server) handleRepair(w http.ResponseWriter, r *http.Request) {
	defer s.redirectHome(w, r)

	res, err := s.ledger.Repair(r.Context())
	switch {
	case err != nil:
		logger := log.Enrich(r.Context(), s.logger)
		logger.Error().Err(err).
			Str(log.FieldEvent, "ui.repair_failed").Msg("repair failed")
		s.addFlash(w, r, fmt.Sprintf(msgRepairFailed, err.Error()))
	case res.AlreadyValid:
		s.addFlash(w, r, msgAlreadyValid)
	case res.Repaired:
		s.addFlash(w, r, fmt.Sprintf(msgRepaired, strings.Join(res.PreviousErrors, ", ")))
	default:
		s.addFlash(w, r, fmt.Sprintf(msgRepairFailed, strings.Join(res.RemainingErrors, ", ")))
	}
}

func (s *Server) handleReset(w http.ResponseWriter, r *http.Request) {
	defer s.redirectHome(w, r)

	if err := s.ledger.Reset(r.Context()); err != nil {
		logger := log.Enrich(r.Context(), s.logger)
		logger.Error().Err(err).
			Str(log.FieldEvent, "ui.reset_failed").Msg("reset failed")
		s.addFlash(w, r, fmt.Sprintf(msgUploadFailed, "Reset failed"))
		return
	}
	s.addFlash(w, r, msgReset)
}
