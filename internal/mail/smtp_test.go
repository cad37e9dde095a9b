package mail

import (
	"context"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	xerrors "MathAgent/internal/errors"
)

func TestNewSMTPSenderDefaults(t *testing.T) {
	s, err := NewSMTPSender(Config{Username: "agent@gmail.com", Password: "secret", To: []string{"a@example.com"}})
	require.NoError(t, err)
	assert.Equal(t, "smtp.gmail.com", s.cfg.Host)
	assert.Equal(t, 465, s.cfg.Port)
	assert.Equal(t, "agent@gmail.com", s.cfg.From)
	assert.Equal(t, []string{"a@example.com"}, s.Recipients())

	_, err = NewSMTPSender(Config{Username: "agent@gmail.com"})
	assert.Equal(t, xerrors.CodeInvalidArgument, xerrors.CodeOf(err))
}

func TestSendRejectsBadRecipients(t *testing.T) {
	s, err := NewSMTPSender(Config{Username: "agent@gmail.com", Password: "secret"})
	require.NoError(t, err)
	assert.Error(t, s.Send(context.Background(), "s", "c", nil))
	assert.Error(t, s.Send(context.Background(), "s", "c", []string{"nobody"}))
}

func TestCompose(t *testing.T) {
	msg := string(Compose("a@gmail.com", []string{"b@x.com", "c@x.com"}, "Math Agent Result", "line1\nline2"))
	assert.True(t, strings.HasPrefix(msg, "From: a@gmail.com\r\nTo: b@x.com, c@x.com\r\nSubject: Math Agent Result\r\n"))
	assert.True(t, strings.HasSuffix(msg, "\r\n\r\nline1\r\nline2"))
}
