// SPDX-License-Identifier: MIT

package blobstore

import (
	"strings"

	"golang.org/x/text/unicode/norm"
)

var windowsDeviceNames = func() map[string]struct{} {
	m := map[string]struct{}{"CON": {}, "PRN": {}, "AUX": {}, "NUL": {}}
	for i := 0; i <= 9; i++ {
		d := string(rune('0' + i))
		m["COM"+d] = struct{}{}
		m["LPT"+d] = struct{}{}
	}
	return m
}()

// SecureFilename reduces an uploaded filename to a flat, ASCII-only name that
// is safe to join onto the upload directory. The result may be empty.
//
//	SecureFilename("My cool movie.mov")              == "My_cool_movie.mov"
//	SecureFilename("../../../etc/passwd")            == "etc_passwd"
//	SecureFilename("i contain cool ümläuts.txt")     == "i_contain_cool_umlauts.txt"
func SecureFilename(name string) string {
	decomposed := norm.NFKD.String(name)

	var ascii strings.Builder
	ascii.Grow(len(decomposed))
	for _, r := range decomposed {
		if r < 0x80 {
			ascii.WriteRune(r)
		}
	}

	flat := strings.ReplaceAll(ascii.String(), "/", " ")
	joined := strings.Join(strings.Fields(flat), "_")

	var kept strings.Builder
	kept.Grow(len(joined))
	for i := 0; i < len(joined); i++ {
		c := joined[i]
		switch {
		case c >= 'A' && c <= 'Z', c >= 'a' && c <= 'z', c >= '0' && c <= '9', c == '_', c == '.', c == '-':
			kept.WriteByte(c)
		}
	}

	out := strings.Trim(kept.String(), "._")
	if out == "" {
		return ""
	}
	stem := strings.ToUpper(strings.SplitN(out, ".", 2)[0])
	if _, reserved := windowsDeviceNames[stem]; reserved {
		out = "_" + out
	}
	return out
}
