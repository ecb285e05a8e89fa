// SPDX-License-Identifier: MIT

package audit

import (
	"strconv"
	"strings"
)

func join(items []string) string {
	return strings.Join(items, ", ")
}

func formatInt(n int) string {
	return strconv.Itoa(n)
}
