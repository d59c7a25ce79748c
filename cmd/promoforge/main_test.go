package main

import (
	"bytes"
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/JakeFAU/promoforge/internal/config"
)

func TestReportCredentialsValid(t *testing.T) {
	t.Parallel()

	var stdout, stderr bytes.Buffer
	code := reportCredentials(&stdout, &stderr, config.ShotstackConfig{
		APIKey: "sk_test_0123456789abcdef",
		Env:    "v1",
	})

	assert.Equal(t, 0, code)
	assert.Empty(t, stderr.String())
	assert.Contains(t, stdout.String(), "Host: https://api.shotstack.io/v1")
	assert.Contains(t, stdout.String(), "Key:  sk_t...cdef")
	assert.Contains(t, stdout.String(), "Length: 24 chars")
	assert.NotContains(t, stdout.String(), "0123456789")
}

func TestReportCredentialsMissingKey(t *testing.T) {
	t.Parallel()

	var stdout, stderr bytes.Buffer
	code := reportCredentials(&stdout, &stderr, config.ShotstackConfig{})

	assert.Equal(t, 1, code)
	assert.Empty(t, stdout.String())
	assert.Contains(t, stderr.String(), "SHOTSTACK_API_KEY")
}
