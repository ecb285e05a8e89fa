// SPDX-License-Identifier: MIT

package middleware

import (
	"net/http"
	"net/url"
	"strings"
)

// CSRFProtection guards the form endpoints of the HTML UI. Unsafe methods must
// name their origin through Origin or, failing that, Referer, and it must be
// the ledger's own origin or one of allowedOrigins.
func CSRFProtection(allowedOrigins ...string) func(http.Handler) http.Handler {
	trusted := make(map[string]struct{}, len(allowedOrigins))
	for _, o := range allowedOrigins {
		trusted[strings.TrimRight(o, "/")] = struct{}{}
	}

	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if isSafeMethod(r.Method) {
				next.ServeHTTP(w, r)
				return
			}
			origin := sourceOrigin(r)
			switch {
			case origin == "":
				http.Error(w, "Forbidden: Missing origin information", http.StatusForbidden)
				return
			case origin == ownOrigin(r):
			default:
				if _, ok := trusted[origin]; !ok {
					http.Error(w, "Forbidden: Cross-origin request not allowed", http.StatusForbidden)
					return
				}
			}
			next.ServeHTTP(w, r)
		})
	}
}

func isSafeMethod(m string) bool {
	return m == http.MethodGet || m == http.MethodHead || m == http.MethodOptions
}

// sourceOrigin returns scheme://host of the page that issued r.
func sourceOrigin(r *http.Request) string {
	if o := r.Header.Get("Origin"); o != "" {
		return strings.TrimRight(o, "/")
	}
	ref, err := url.Parse(r.Header.Get("Referer"))
	if err != nil || ref.Host == "" {
		return ""
	}
	return ref.Scheme + "://" + ref.Host
}

// ownOrigin is the origin the client used to reach this server.
func ownOrigin(r *http.Request) string {
	if r.Host == "" {
		return "\x00"
	}
	scheme := "http"
	switch {
	case r.Header.Get("X-Forwarded-Proto") != "":
		scheme = r.Header.Get("X-Forwarded-Proto")
	case r.TLS != nil:
		scheme = "https"
	}
	return scheme + "://" + r.Host
}
