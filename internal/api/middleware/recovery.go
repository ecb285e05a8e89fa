// SPDX-License-Identifier: MIT

package middleware

import (
	"net/http"
	"runtime/debug"
	"strings"

	"github.com/ManuGH/filechain/internal/log"
)

// Recoverer turns a handler panic into a logged 500 response.
// http.ErrAbortHandler is re-raised so net/http can drop the connection.
func Recoverer(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		defer func() {
			rec := recover()
			if rec == nil {
				return
			}
			if rec == http.ErrAbortHandler {
				panic(rec)
			}

			logger := log.For(r.Context(), "recoverer")
			logger.Error().
				Str(log.FieldEvent, "panic.recovered").
				Str("method", r.Method).
				Str("path", strings.ToValidUTF8(r.URL.Path, "")).
				Interface("panic", rec).
				Bytes("stack", debug.Stack()).
				Msg("handler panicked")

			writeJSONError(w, r, http.StatusInternalServerError, "internal_error",
				"An unexpected error occurred. Please try again later.")
		}()
		next.ServeHTTP(w, r)
	})
}
