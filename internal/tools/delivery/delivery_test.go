package delivery

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"MathAgent/internal/tools"
)

type recordingSender struct {
	subject string
	content string
	to      []string
	err     error
}

func (r *recordingSender) Send(_ context.Context, subject, content string, to []string) error {
	r.subject, r.content, r.to = subject, content, to
	return r.err
}

func TestSendGmail(t *testing.T) {
	sender := &recordingSender{}
	catalog := tools.NewCatalog()
	require.NoError(t, catalog.Register(Tools(sender, []string{"me@example.com"})...))
	d := tools.NewDispatcher(catalog)

	res := d.Dispatch(context.Background(), "send_gmail", map[string]any{"content": "Result: 5"})
	require.True(t, res.Success)
	assert.Equal(t, "Email sent to me@example.com", res.Value)
	assert.Equal(t, Subject, sender.subject)
	assert.Equal(t, "Result: 5", sender.content)

	sender.err = errors.New("smtp down")
	res = d.Dispatch(context.Background(), "send_gmail", map[string]any{"content": "x"})
	assert.False(t, res.Success)
}

func TestSendGmailUnconfigured(t *testing.T) {
	catalog := tools.NewCatalog()
	require.NoError(t, catalog.Register(Tools(nil, nil)...))
	res := tools.NewDispatcher(catalog).Dispatch(context.Background(), "send_gmail", map[string]any{"content": "x"})
	assert.False(t, res.Success)
}
