package server

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"fiscalia/internal/config"
	"fiscalia/internal/domain"
	"fiscalia/internal/engine"
)

const (
	defaultWebhookInterval = 2 * time.Second
	defaultWebhookTimeout  = 5 * time.Second
	defaultWebhookBatch    = 100

	eventCaseReassigned = "caso.reasignado"
)

// WebhookDispatcher polls the reassignment log and POSTs each new entry to
// the configured endpoints. Delivery is at least once per endpoint; a failed
// endpoint is retried from the same entry on the next tick.
type WebhookDispatcher struct {
	Interval time.Duration

	engine   engine.Engine
	webhooks []config.WebhookConfig
	client   *http.Client
	log      *zap.Logger
	mu       sync.Mutex
	cursors  map[int]int64
}

// NewWebhookDispatcher returns nil when no webhook is configured.
func NewWebhookDispatcher(e engine.Engine, log *zap.Logger) *WebhookDispatcher {
	if e.Config == nil || len(e.Config.Webhooks) == 0 {
		return nil
	}
	if log == nil {
		log = zap.NewNop()
	}
	return &WebhookDispatcher{
		Interval: defaultWebhookInterval,
		engine:   e,
		webhooks: e.Config.Webhooks,
		client:   &http.Client{Timeout: defaultWebhookTimeout},
		log:      log.Named("webhooks"),
		cursors:  make(map[int]int64),
	}
}

// Run dispatches until ctx is done. Entries logged before the first tick are
// not replayed.
func (d *WebhookDispatcher) Run(ctx context.Context) error {
	if d == nil {
		return nil
	}
	interval := d.Interval
	if interval <= 0 {
		interval = defaultWebhookInterval
	}
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		d.dispatchAll(ctx)
		select {
		case <-ctx.Done():
			return nil
		case <-ticker.C:
		}
	}
}

func (d *WebhookDispatcher) dispatchAll(ctx context.Context) {
	for i, hook := range d.webhooks {
		if hook.Enabled != nil && !*hook.Enabled {
			continue
		}
		if strings.TrimSpace(hook.URL) == "" {
			continue
		}
		d.dispatchWebhook(ctx, i, hook)
	}
}

func (d *WebhookDispatcher) dispatchWebhook(ctx context.Context, idx int, hook config.WebhookConfig) {
	cursor, ok := d.cursorFor(ctx, idx)
	if !ok {
		return
	}
	entries, err := d.engine.ReassignmentsAfter(ctx, cursor, defaultWebhookBatch)
	if err != nil {
		d.log.Warn("fetch reassignments failed", zap.Error(err))
		return
	}
	for _, entry := range entries {
		if err := d.post(ctx, hook, entry); err != nil {
			d.engine.Metrics.WebhookDeliveries.WithLabelValues("error").Inc()
			d.log.Warn("delivery failed", zap.String("url", hook.URL), zap.Int64("log_id", entry.ID), zap.Error(err))
			return
		}
		d.engine.Metrics.WebhookDeliveries.WithLabelValues("ok").Inc()
		d.setCursor(idx, entry.ID)
	}
}

func (d *WebhookDispatcher) cursorFor(ctx context.Context, idx int) (int64, bool) {
	d.mu.Lock()
	defer d.mu.Unlock()
	if cur, ok := d.cursors[idx]; ok {
		return cur, true
	}
	cur, err := d.engine.LatestReassignmentID(ctx)
	if err != nil {
		d.log.Warn("init cursor failed", zap.Error(err))
		return 0, false
	}
	d.cursors[idx] = cur
	return cur, true
}

func (d *WebhookDispatcher) setCursor(idx int, value int64) {
	d.mu.Lock()
	d.cursors[idx] = value
	d.mu.Unlock()
}

type webhookEvent struct {
	Type         string                      `json:"type"`
	Message      string                      `json:"mensaje"`
	Reassignment domain.ReassignmentLogEntry `json:"reasignacion"`
}

func (d *WebhookDispatcher) post(ctx context.Context, hook config.WebhookConfig, entry domain.ReassignmentLogEntry) error {
	data, err := json.Marshal(webhookEvent{
		Type:         eventCaseReassigned,
		Message:      engine.ConfirmationMessage(entry),
		Reassignment: entry,
	})
	if err != nil {
		return err
	}
	timeout := defaultWebhookTimeout
	if hook.TimeoutSeconds > 0 {
		timeout = time.Duration(hook.TimeoutSeconds) * time.Second
	}
	client := d.client
	if timeout != d.client.Timeout {
		client = &http.Client{Timeout: timeout}
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, hook.URL, bytes.NewReader(data))
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("X-Fiscalia-Event", eventCaseReassigned)
	req.Header.Set("X-Fiscalia-Delivery", uuid.NewString())
	req.Header.Set("X-Fiscalia-Log-Id", strconv.FormatInt(entry.ID, 10))
	if strings.TrimSpace(hook.Secret) != "" {
		req.Header.Set("X-Fiscalia-Secret", hook.Secret)
	}
	res, err := client.Do(req)
	if err != nil {
		return err
	}
	defer res.Body.Close()
	if res.StatusCode < 200 || res.StatusCode >= 300 {
		bodyBytes, _ := io.ReadAll(io.LimitReader(res.Body, 4096))
		return fmt.Errorf("status %d: %s", res.StatusCode, strings.TrimSpace(string(bodyBytes)))
	}
	return nil
}
