// SPDX-License-Identifier: MIT

package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/ManuGH/filechain/internal/log"
)

// fromEnv returns parse(value) for a non-empty variable and def otherwise.
// Unparseable values keep def and log a warning. Values of keys that look
// like secrets are never logged.
func fromEnv[T any](key string, def T, parse func(string) (T, error)) T {
	raw, ok := os.LookupEnv(key)
	if !ok || raw == "" {
		return def
	}
	logger := log.WithComponent("config")
	shown := raw
	if isSensitive(key) {
		shown = "[redacted]"
	}
	v, err := parse(raw)
	if err != nil {
		logger.Warn().Str("key", key).Str("value", shown).Str("default", fmt.Sprint(def)).
			Msg("ignoring unparseable environment variable")
		return def
	}
	logger.Debug().Str("key", key).Str("value", shown).Msg("using environment variable")
	return v
}

func isSensitive(key string) bool {
	k := strings.ToLower(key)
	return strings.Contains(k, "secret") || strings.Contains(k, "password")
}

func ParseString(key, def string) string {
	return fromEnv(key, def, func(s string) (string, error) { return s, nil })
}

func ParseInt(key string, def int) int {
	return fromEnv(key, def, strconv.Atoi)
}

// ParseInt64 reads byte sizes and other 64-bit counts.
func ParseInt64(key string, def int64) int64 {
	return fromEnv(key, def, func(s string) (int64, error) { return strconv.ParseInt(s, 10, 64) })
}

// ParseDuration expects Go duration syntax such as "750ms".
func ParseDuration(key string, def time.Duration) time.Duration {
	return fromEnv(key, def, time.ParseDuration)
}

// ParseBool accepts true/false, 1/0 and yes/no in any case.
func ParseBool(key string, def bool) bool {
	return fromEnv(key, def, func(s string) (bool, error) {
		switch strings.ToLower(s) {
		case "true", "1", "yes":
			return true, nil
		case "false", "0", "no":
			return false, nil
		}
		return false, fmt.Errorf("not a boolean: %q", s)
	})
}

func ParseFloat(key string, def float64) float64 {
	return fromEnv(key, def, func(s string) (float64, error) { return strconv.ParseFloat(s, 64) })
}
