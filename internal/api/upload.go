// SPDX-License-Identifier: MIT

package api

import (
	"errors"
	"io"
	"mime"
	"mime/multipart"
	"net/http"
)

// uploadField is the multipart field carrying the file.
const uploadField = "file"

var errNoFilePart = errors.New("no file part")

// filePart streams the request's multipart body up to the upload field.
// Parts before it are skipped without buffering. The caller closes the part.
func (s *Server) filePart(w http.ResponseWriter, r *http.Request) (*multipart.Part, error) {
	if s.cfg.MaxUploadBytes > 0 {
		r.Body = http.MaxBytesReader(w, r.Body, s.cfg.MaxUploadBytes+multipartOverhead)
	}
	mr, err := r.MultipartReader()
	if err != nil {
		return nil, errNoFilePart
	}
	for {
		part, err := mr.NextPart()
		if errors.Is(err, io.EOF) {
			return nil, errNoFilePart
		}
		if err != nil {
			return nil, err
		}
		if part.FormName() == uploadField {
			return part, nil
		}
		_ = part.Close()
	}
}

// uploadFilename returns the filename parameter as the client sent it.
// multipart.Part.FileName drops any directory part; SecureFilename folds it
// into the stored name instead.
func uploadFilename(p *multipart.Part) string {
	_, params, err := mime.ParseMediaType(p.Header.Get("Content-Disposition"))
	if err != nil {
		return p.FileName()
	}
	return params["filename"]
}
