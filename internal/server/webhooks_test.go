package server

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"fiscalia/internal/config"
	"fiscalia/internal/db"
	"fiscalia/internal/domain"
	"fiscalia/internal/engine"
	"fiscalia/internal/migrate"
)

type recordedHook struct {
	Header http.Header
	Event  webhookEvent
}

type hookSink struct {
	mu     sync.Mutex
	status int
	calls  []recordedHook
}

func (s *hookSink) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	data, _ := io.ReadAll(r.Body)
	var evt webhookEvent
	_ = json.Unmarshal(data, &evt)
	s.mu.Lock()
	defer s.mu.Unlock()
	status := s.status
	if status == 0 {
		status = http.StatusNoContent
	}
	if status < 300 {
		s.calls = append(s.calls, recordedHook{Header: r.Header.Clone(), Event: evt})
	}
	w.WriteHeader(status)
}

func (s *hookSink) setStatus(code int) {
	s.mu.Lock()
	s.status = code
	s.mu.Unlock()
}

func (s *hookSink) received() []recordedHook {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]recordedHook(nil), s.calls...)
}

func newWebhookEngine(t *testing.T, hooks ...config.WebhookConfig) engine.Engine {
	t.Helper()
	conn, err := db.Open(db.Config{Workspace: t.TempDir()})
	require.NoError(t, err)
	t.Cleanup(func() { conn.Close() })
	_, err = migrate.Migrate(conn)
	require.NoError(t, err)
	cfg := config.Default()
	cfg.Webhooks = hooks
	e := engine.New(conn, cfg)
	require.NoError(t, e.SeedFiscalias(context.Background()))
	return e
}

func reassignOnce(t *testing.T, e engine.Engine) domain.ReassignmentLogEntry {
	t.Helper()
	ctx := context.Background()
	fiscales, err := e.ListFiscales(ctx)
	require.NoError(t, err)
	if len(fiscales) == 0 {
		for _, name := range []string{"a", "b"} {
			_, err := e.RegisterFiscal(ctx, engine.RegisterFiscalRequest{Name: name, Email: name + "@mp.gob", FiscaliaID: 1})
			require.NoError(t, err)
		}
		_, err = e.CreateCase(ctx, engine.CreateCaseRequest{Description: "robo", Status: "Pendiente", FiscalID: 1})
		require.NoError(t, err)
	}
	c, err := e.GetCase(ctx, 1)
	require.NoError(t, err)
	target := int64(2)
	if c.FiscalID == 2 {
		target = 1
	}
	entry, err := e.ReassignCase(ctx, engine.ReassignCaseRequest{CaseID: 1, NewFiscalID: target, Reason: "turno"})
	require.NoError(t, err)
	return entry
}

func TestNewWebhookDispatcherWithoutHooks(t *testing.T) {
	e := newWebhookEngine(t)
	d := NewWebhookDispatcher(e, nil)
	assert.Nil(t, d)
	assert.NoError(t, d.Run(context.Background()))
}

func TestWebhookDeliversNewEntriesOnly(t *testing.T) {
	sink := &hookSink{}
	ts := httptest.NewServer(sink)
	defer ts.Close()

	e := newWebhookEngine(t, config.WebhookConfig{URL: ts.URL, Secret: "s3cret"})
	reassignOnce(t, e)

	d := NewWebhookDispatcher(e, nil)
	require.NotNil(t, d)
	ctx := context.Background()
	d.dispatchAll(ctx)
	assert.Empty(t, sink.received(), "entries older than the dispatcher are not replayed")

	entry := reassignOnce(t, e)
	d.dispatchAll(ctx)
	calls := sink.received()
	require.Len(t, calls, 1)
	assert.Equal(t, "caso.reasignado", calls[0].Header.Get("X-Fiscalia-Event"))
	assert.Equal(t, "s3cret", calls[0].Header.Get("X-Fiscalia-Secret"))
	assert.NotEmpty(t, calls[0].Header.Get("X-Fiscalia-Delivery"))
	assert.Equal(t, "2", calls[0].Header.Get("X-Fiscalia-Log-Id"))
	assert.Equal(t, entry, calls[0].Event.Reassignment)
	assert.Equal(t, engine.ConfirmationMessage(entry), calls[0].Event.Message)

	d.dispatchAll(ctx)
	assert.Len(t, sink.received(), 1)
	assert.Equal(t, 1.0, testutil.ToFloat64(e.Metrics.WebhookDeliveries.WithLabelValues("ok")))
}

func TestWebhookRetriesFailedEntry(t *testing.T) {
	sink := &hookSink{}
	ts := httptest.NewServer(sink)
	defer ts.Close()

	e := newWebhookEngine(t, config.WebhookConfig{URL: ts.URL})
	d := NewWebhookDispatcher(e, nil)
	ctx := context.Background()
	d.dispatchAll(ctx)

	sink.setStatus(http.StatusServiceUnavailable)
	reassignOnce(t, e)
	d.dispatchAll(ctx)
	assert.Empty(t, sink.received())
	assert.Equal(t, 1.0, testutil.ToFloat64(e.Metrics.WebhookDeliveries.WithLabelValues("error")))

	sink.setStatus(http.StatusOK)
	d.dispatchAll(ctx)
	require.Len(t, sink.received(), 1)
}

func TestWebhookSkipsDisabledHooks(t *testing.T) {
	sink := &hookSink{}
	ts := httptest.NewServer(sink)
	defer ts.Close()

	off := false
	e := newWebhookEngine(t, config.WebhookConfig{URL: ts.URL, Enabled: &off})
	d := NewWebhookDispatcher(e, nil)
	d.dispatchAll(context.Background())
	reassignOnce(t, e)
	d.dispatchAll(context.Background())
	assert.Empty(t, sink.received())
}

func TestWebhookRunStopsOnCancel(t *testing.T) {
	e := newWebhookEngine(t, config.WebhookConfig{URL: "http://127.0.0.1:1/hook"})
	d := NewWebhookDispatcher(e, nil)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	assert.NoError(t, d.Run(ctx))
}
