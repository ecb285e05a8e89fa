// SPDX-License-Identifier: MIT

package chain

import (
	"math"
	"strconv"
	"strings"
	"unicode/utf8"
)

// canonicalPayload renders the hashed fields of a block as sorted-key JSON with
// ", " and ": " separators, ASCII-only string escapes and shortest round-trip
// floats. Ledgers written by earlier deployments hash exactly these bytes, so
// the layout must not change.
func canonicalPayload(index int, timestamp float64, fd FileData, previousHash string) []byte {
	var sb strings.Builder
	sb.Grow(160 + len(fd.Filename) + len(fd.FileHash) + len(previousHash))

	sb.WriteString(`{"file_data": {"file_hash": `)
	writeASCIIString(&sb, fd.FileHash)
	sb.WriteString(`, "filename": `)
	writeASCIIString(&sb, fd.Filename)
	sb.WriteString(`}, "index": `)
	sb.WriteString(strconv.Itoa(index))
	sb.WriteString(`, "previous_hash": `)
	writeASCIIString(&sb, previousHash)
	sb.WriteString(`, "timestamp": `)
	sb.WriteString(formatFloat(timestamp))
	sb.WriteByte('}')

	return []byte(sb.String())
}

const hexDigits = "0123456789abcdef"

func writeASCIIString(sb *strings.Builder, s string) {
	sb.WriteByte('"')
	for i := 0; i < len(s); {
		r, size := utf8.DecodeRuneInString(s[i:])
		i += size
		switch r {
		case '"':
			sb.WriteString(`\"`)
		case '\\':
			sb.WriteString(`\\`)
		case '\n':
			sb.WriteString(`\n`)
		case '\r':
			sb.WriteString(`\r`)
		case '\t':
			sb.WriteString(`\t`)
		case '\b':
			sb.WriteString(`\b`)
		case '\f':
			sb.WriteString(`\f`)
		default:
			switch {
			case r < 0x20 || (r >= 0x7f && r <= 0xffff):
				writeUnicodeEscape(sb, r)
			case r > 0xffff:
				r -= 0x10000
				writeUnicodeEscape(sb, 0xd800+(r>>10)&0x3ff)
				writeUnicodeEscape(sb, 0xdc00+r&0x3ff)
			default:
				sb.WriteRune(r)
			}
		}
	}
	sb.WriteByte('"')
}

func writeUnicodeEscape(sb *strings.Builder, r rune) {
	sb.WriteString(`\u`)
	sb.WriteByte(hexDigits[(r>>12)&0xf])
	sb.WriteByte(hexDigits[(r>>8)&0xf])
	sb.WriteByte(hexDigits[(r>>4)&0xf])
	sb.WriteByte(hexDigits[r&0xf])
}

// formatFloat uses the repr rules of the ledger's original encoder: fixed
// notation with a trailing ".0" for integral values, exponent notation outside
// [1e-4, 1e16).
func formatFloat(f float64) string {
	switch {
	case math.IsNaN(f):
		return "NaN"
	case math.IsInf(f, 1):
		return "Infinity"
	case math.IsInf(f, -1):
		return "-Infinity"
	}

	abs := math.Abs(f)
	if abs != 0 && (abs < 1e-4 || abs >= 1e16) {
		s := strconv.FormatFloat(f, 'e', -1, 64)
		return s
	}

	s := strconv.FormatFloat(f, 'f', -1, 64)
	if !strings.ContainsRune(s, '.') {
		s += ".0"
	}
	return s
}
