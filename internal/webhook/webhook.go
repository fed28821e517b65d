package webhook

import (
	"bytes"
	"context"
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"sync"
	"time"

	"hoppscotch-backup/internal/config"
	"hoppscotch-backup/internal/logger"
	"hoppscotch-backup/internal/model"

	"go.uber.org/zap"
)

// HMACHeaderName carries the hex-encoded SHA-256 signature of the
// payload when a secret is configured.
const HMACHeaderName = "X-HoppBackup-Signature-SHA256"

// Notifier delivers run reports. A no-op implementation is used when
// no webhook is configured.
type Notifier interface {
	Enqueue(report model.RunReport)
	Stop()
}

// NopNotifier discards every report.
type NopNotifier struct{}

func (NopNotifier) Enqueue(model.RunReport) {}
func (NopNotifier) Stop()                   {}

// Sender posts run reports to a configured URL asynchronously, with
// exponential-backoff retries and optional HMAC signing.
type Sender struct {
	httpClient *http.Client
	url        string
	secret     string
	maxRetries int
	queue      chan model.RunReport
	stopChan   chan struct{}
	wg         sync.WaitGroup
}

var _ Notifier = (*Sender)(nil)

// NewNotifier returns a Sender when a webhook URL is configured and a
// NopNotifier otherwise.
func NewNotifier(cfg config.WebhookSettings) Notifier {
	if cfg.URL == "" {
		return NopNotifier{}
	}
	return NewSender(cfg)
}

// NewSender creates a Sender and starts its delivery worker.
func NewSender(cfg config.WebhookSettings) *Sender {
	timeout := time.Duration(cfg.TimeoutSeconds) * time.Second
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	maxRetries := cfg.MaxRetries
	if maxRetries < 0 {
		maxRetries = 0
	}

	s := &Sender{
		httpClient: &http.Client{Timeout: timeout},
		url:        cfg.URL,
		secret:     cfg.Secret,
		maxRetries: maxRetries,
		queue:      make(chan model.RunReport, 16),
		stopChan:   make(chan struct{}),
	}

	s.wg.Add(1)
	go s.worker()

	logger.Log.Info("Webhook notifier initialized",
		zap.String("url", s.url),
		zap.Int("maxRetries", s.maxRetries),
		zap.Bool("hmacSecretConfigured", s.secret != ""),
	)
	return s
}

// Enqueue adds a report to the delivery queue. A full queue drops the
// report rather than blocking the pipeline.
func (s *Sender) Enqueue(report model.RunReport) {
	select {
	case s.queue <- report:
		logger.Log.Debug("Enqueued run report", zap.Bool("success", report.Success))
	default:
		logger.Log.Warn("Webhook queue full, dropping run report")
	}
}

func (s *Sender) worker() {
	defer s.wg.Done()
	for {
		select {
		case report := <-s.queue:
			s.sendWithRetries(report)
		case <-s.stopChan:
			// One-shot mode stops right after the final Enqueue, so
			// anything still queued is delivered before exiting.
			for {
				select {
				case report := <-s.queue:
					s.sendWithRetries(report)
				default:
					return
				}
			}
		}
	}
}

func (s *Sender) sendWithRetries(report model.RunReport) {
	var lastErr error
	for attempt := 0; attempt <= s.maxRetries; attempt++ {
		lastErr = s.sendAttempt(report)
		if lastErr == nil {
			logger.Log.Info("Run report delivered", zap.Int("attempt", attempt+1))
			return
		}
		logger.Log.Warn("Run report delivery failed",
			zap.Int("attempt", attempt+1),
			zap.Int("maxAttempts", s.maxRetries+1),
			zap.Error(lastErr),
		)
		if attempt < s.maxRetries {
			time.Sleep(time.Duration(2<<attempt) * time.Second)
		}
	}
	logger.Log.Error("Run report delivery failed after all retries", zap.Error(lastErr))
}

func (s *Sender) sendAttempt(report model.RunReport) error {
	body, err := json.Marshal(report)
	if err != nil {
		return fmt.Errorf("failed to marshal run report: %w", err)
	}

	ctx, cancel := context.WithTimeout(context.Background(), s.httpClient.Timeout)
	defer cancel()

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, s.url, bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("failed to create webhook request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("User-Agent", "hoppscotch-backup/1.0")

	if s.secret != "" {
		mac := hmac.New(sha256.New, []byte(s.secret))
		mac.Write(body)
		req.Header.Set(HMACHeaderName, hex.EncodeToString(mac.Sum(nil)))
	}

	resp, err := s.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("webhook request failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		snippet, _ := io.ReadAll(io.LimitReader(resp.Body, 1024))
		return fmt.Errorf("webhook returned %s: %s", resp.Status, string(snippet))
	}
	return nil
}

// Stop signals the worker, which delivers any queued reports and then
// exits. Blocks until the worker is done.
func (s *Sender) Stop() {
	close(s.stopChan)
	s.wg.Wait()
}
