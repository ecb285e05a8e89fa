// SPDX-License-Identifier: MIT

package middleware

import (
	"net/http"

	"github.com/ManuGH/filechain/internal/log"
)

// Surface tags every request context with the named entry point so logs and
// audit events can tell the HTML UI from the JSON API.
func Surface(name string) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			next.ServeHTTP(w, r.WithContext(log.WithSurface(r.Context(), name)))
		})
	}
}
