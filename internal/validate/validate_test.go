// SPDX-License-Identifier: MIT

package validate

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestValidator_AccumulatesErrors(t *testing.T) {
	v := New()
	v.NotEmpty("SecretKey", "  ")
	v.OneOf("Backend", "mongo", []string{"json", "bolt"})
	v.Positive("MaxBytes", 0)
	v.NonNegative("RPM", -1)
	v.Fraction("SamplingRate", 1.5)
	v.MinLen("SecretKey", "short", 16)

	assert.False(t, v.IsValid())
	require.Len(t, v.Errors(), 6)

	err := v.Err()
	var verr ValidationError
	require.True(t, errors.As(err, &verr))
	assert.Len(t, verr.Errors(), 6)
	assert.Contains(t, err.Error(), `validation failed for Backend: value must be one of [json bolt], got "mongo"`)
	assert.Contains(t, err.Error(), "; ")
}

func TestValidator_ValidReturnsNil(t *testing.T) {
	v := New()
	v.NotEmpty("a", "x")
	v.OneOf("b", "json", []string{"json"})
	v.Positive("c", 1)
	v.NonNegative("d", 0)
	v.Fraction("e", 0.5)
	v.ListenAddr("f", ":5000")
	v.Directory("g", "data/uploads")
	assert.True(t, v.IsValid())
	assert.NoError(t, v.Err())
}

func TestListenAddr(t *testing.T) {
	for addr, ok := range map[string]bool{
		":8080":          true,
		"127.0.0.1:5000": true,
		"[::1]:0":        true,
		"localhost":      false,
		":http":          false,
		":70000":         false,
	} {
		v := New()
		v.ListenAddr("Listen", addr)
		assert.Equal(t, ok, v.IsValid(), addr)
	}
}

func TestDirectory(t *testing.T) {
	for path, ok := range map[string]bool{
		"":             false,
		"uploads":      true,
		"/var/lib/x":   true,
		"../escape":    false,
		"a/../b":       false,
		"dots..inside": true,
	} {
		v := New()
		v.Directory("Dir", path)
		assert.Equal(t, ok, v.IsValid(), path)
	}
}

func TestMinLen_HidesValue(t *testing.T) {
	v := New()
	v.MinLen("security.secret_key", "hunter2", 16)
	require.Len(t, v.Errors(), 1)
	assert.Equal(t, 7, v.Errors()[0].Value)
	assert.NotContains(t, v.Err().Error(), "hunter2")
}
