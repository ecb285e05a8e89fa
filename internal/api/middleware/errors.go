// SPDX-License-Identifier: MIT

package middleware

import (
	"encoding/json"
	"net/http"

	"github.com/ManuGH/filechain/internal/log"
)

// writeJSONError answers with the same error envelope the JSON API uses.
func writeJSONError(w http.ResponseWriter, r *http.Request, status int, code, detail string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(struct {
		Error     string `json:"error"`
		Detail    string `json:"detail"`
		RequestID string `json:"requestId,omitempty"`
	}{code, detail, log.RequestID(r.Context())})
}
