package notify

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/pgsentry/pgsentry/internal/logger"
	"github.com/pgsentry/pgsentry/internal/run"
)

// fakeTransport either succeeds or always fails.
type fakeTransport struct {
	name  string
	err   error
	calls int
}

func (t *fakeTransport) Name() string { return t.name }

func (t *fakeTransport) Send(_ context.Context, _ []string, _, _ string) error {
	t.calls++
	return t.err
}

func testRunContext() run.Context {
	return run.Context{Recipients: []string{"ops@example.com"}}
}

func TestNotify_FirstTransportWins(t *testing.T) {
	primary := &fakeTransport{name: "primary"}
	secondary := &fakeTransport{name: "secondary"}

	n := NewNotifier([]Transport{primary, secondary}, time.Second, "", logger.Nop())
	err := n.Notify(context.Background(), sampleReport(), testRunContext())

	require.NoError(t, err)
	assert.Equal(t, 1, primary.calls)
	assert.Equal(t, 0, secondary.calls)
}

func TestNotify_FallsBackInOrder(t *testing.T) {
	primary := &fakeTransport{name: "primary", err: errors.New("smtp down")}
	secondary := &fakeTransport{name: "secondary"}

	n := NewNotifier([]Transport{primary, secondary}, time.Second, "", logger.Nop())
	err := n.Notify(context.Background(), sampleReport(), testRunContext())

	require.NoError(t, err)
	assert.Equal(t, 1, primary.calls)
	assert.Equal(t, 1, secondary.calls)
}

func TestNotify_AllTransportsFailed(t *testing.T) {
	primary := &fakeTransport{name: "primary", err: errors.New("smtp down")}
	secondary := &fakeTransport{name: "secondary", err: errors.New("sendmail missing")}

	n := NewNotifier([]Transport{primary, secondary}, time.Second, "", logger.Nop())
	err := n.Notify(context.Background(), sampleReport(), testRunContext())

	assert.ErrorIs(t, err, ErrAllTransportsFailed)
}

func TestNotify_NoTransports(t *testing.T) {
	n := NewNotifier(nil, time.Second, "", logger.Nop())
	err := n.Notify(context.Background(), sampleReport(), testRunContext())
	assert.ErrorIs(t, err, ErrAllTransportsFailed)
}

func TestFileTransport_PersistsReport(t *testing.T) {
	dir := t.TempDir()
	ft := NewFileTransport(dir)

	err := ft.Send(context.Background(), []string{"ops@example.com"}, "subject line", "body text")
	require.NoError(t, err)

	entries, err := os.ReadDir(dir)
	require.NoError(t, err)
	require.Len(t, entries, 1)

	content, err := os.ReadFile(filepath.Join(dir, entries[0].Name()))
	require.NoError(t, err)
	assert.Contains(t, string(content), "To: ops@example.com")
	assert.Contains(t, string(content), "Subject: subject line")
	assert.Contains(t, string(content), "body text")
}

func TestFileTransportAsLastResort(t *testing.T) {
	dir := t.TempDir()

	smtp := &fakeTransport{name: "smtp", err: errors.New("connection refused")}
	sendmail := &fakeTransport{name: "sendmail", err: errors.New("executable not found")}
	file := NewFileTransport(dir)

	n := NewNotifier([]Transport{smtp, sendmail, file}, time.Second, "", logger.Nop())
	err := n.Notify(context.Background(), sampleReport(), testRunContext())

	require.NoError(t, err)
	entries, err := os.ReadDir(dir)
	require.NoError(t, err)
	assert.Len(t, entries, 1)
}

func TestBuildMessage(t *testing.T) {
	msg := buildMessage("backup@example.com", []string{"a@example.com", "b@example.com"}, "subj", "body")

	assert.Contains(t, msg, "From: backup@example.com\r\n")
	assert.Contains(t, msg, "To: a@example.com, b@example.com\r\n")
	assert.Contains(t, msg, "Subject: subj\r\n")
	assert.Contains(t, msg, "\r\n\r\nbody")
}
