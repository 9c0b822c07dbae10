package dispatch

import (
	"context"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewSMTPChannel_Validation(t *testing.T) {
	_, err := NewSMTPChannel("", 25, "", "")
	assert.Error(t, err)

	_, err = NewSMTPChannel("mail.example.com", 0, "", "")
	assert.Error(t, err)

	ch, err := NewSMTPChannel("mail.example.com", 25, "", "")
	require.NoError(t, err)
	assert.Equal(t, "smtp", ch.Name())
}

func TestSMTPChannel_RejectsInvalidAddresses(t *testing.T) {
	ch, err := NewSMTPChannel("mail.example.com", 25, "", "")
	require.NoError(t, err)

	err = ch.Send(context.Background(), "not an address", "a@x.com", "s", "b")
	assert.Error(t, err)

	err = ch.Send(context.Background(), "ops@example.com", "not an address", "s", "b")
	assert.Error(t, err)
}

func TestSMTPChannel_HonorsCanceledContext(t *testing.T) {
	ch, err := NewSMTPChannel("mail.example.com", 25, "", "")
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	err = ch.Send(ctx, "ops@example.com", "a@x.com", "s", "b")
	assert.ErrorIs(t, err, context.Canceled)
}

func TestBuildMessage(t *testing.T) {
	msg := string(buildMessage("ops@example.com", "a@x.com", "quota warning", "line one\nline two"))

	assert.True(t, strings.HasPrefix(msg, "From: ops@example.com\r\n"))
	assert.Contains(t, msg, "To: a@x.com\r\n")
	assert.Contains(t, msg, "Subject: quota warning\r\n")
	assert.Contains(t, msg, "Content-Type: text/plain; charset=utf-8\r\n")

	// Headers end at the first blank line; the body uses CRLF line endings.
	_, body, found := strings.Cut(msg, "\r\n\r\n")
	require.True(t, found)
	assert.Equal(t, "line one\r\nline two", body)
}
