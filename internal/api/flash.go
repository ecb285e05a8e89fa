// SPDX-License-Identifier: MIT

package api

import (
	"crypto/hmac"
	"crypto/sha256"
	"encoding/base64"
	"encoding/json"
	"net/http"
	"strings"
)

const flashCookieName = "filechain_flash"

// flashCodec signs flash cookies so clients cannot forge messages.
type flashCodec struct {
	key []byte
}

func (c flashCodec) sign(payload string) string {
	mac := hmac.New(sha256.New, c.key)
	mac.Write([]byte(flashCookieName))
	mac.Write([]byte{0})
	mac.Write([]byte(payload))
	return base64.RawURLEncoding.EncodeToString(mac.Sum(nil))
}

func (c flashCodec) encode(msgs []string) (string, error) {
	raw, err := json.Marshal(msgs)
	if err != nil {
		return "", err
	}
	payload := base64.RawURLEncoding.EncodeToString(raw)
	return payload + "." + c.sign(payload), nil
}

func (c flashCodec) decode(value string) ([]string, bool) {
	payload, sig, ok := strings.Cut(value, ".")
	if !ok || !hmac.Equal([]byte(sig), []byte(c.sign(payload))) {
		return nil, false
	}
	raw, err := base64.RawURLEncoding.DecodeString(payload)
	if err != nil {
		return nil, false
	}
	var msgs []string
	if err := json.Unmarshal(raw, &msgs); err != nil {
		return nil, false
	}
	return msgs, true
}

func (s *Server) readFlashes(r *http.Request) []string {
	c, err := r.Cookie(flashCookieName)
	if err != nil {
		return nil
	}
	msgs, _ := s.flash.decode(c.Value)
	return msgs
}

// addFlash queues msg for display on the next page view, keeping any
// messages not yet shown.
func (s *Server) addFlash(w http.ResponseWriter, r *http.Request, msg string) {
	msgs := append(s.readFlashes(r), msg)
	value, err := s.flash.encode(msgs)
	if err != nil {
		return
	}
	http.SetCookie(w, &http.Cookie{
		Name:     flashCookieName,
		Value:    value,
		Path:     "/",
		HttpOnly: true,
		Secure:   r.TLS != nil,
		SameSite: http.SameSiteLaxMode,
	})
}

// popFlashes returns the queued messages and clears them.
func (s *Server) popFlashes(w http.ResponseWriter, r *http.Request) []string {
	msgs := s.readFlashes(r)
	if _, err := r.Cookie(flashCookieName); err == nil {
		http.SetCookie(w, &http.Cookie{
			Name:     flashCookieName,
			Value:    "",
			Path:     "/",
			MaxAge:   -1,
			HttpOnly: true,
			SameSite: http.SameSiteLaxMode,
		})
	}
	return msgs
}
