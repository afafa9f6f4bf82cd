package worker

import (
	"bytes"
	"context"
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/elgomatiae/muslim-space-sub000/internal/domain"
	"github.com/elgomatiae/muslim-space-sub000/internal/infrastructure/logging"
)

const (
	milestoneEvent   = "score_milestone"
	signatureHeader  = "X-Spirit-Signature"
	eventHeader      = "X-Spirit-Event"
	deliveryIDHeader = "X-Spirit-Delivery"
)

// delivery outcomes reported to metrics.
const (
	OutcomeDelivered = "delivered"
	OutcomeFailed    = "failed"
	OutcomeDropped   = "dropped"
)

var (
	// ErrQueueFull is returned when the buffer cannot take another crossing.
	ErrQueueFull = errors.New("milestone queue full")

	// ErrWorkerStopped is returned after Stop.
	ErrWorkerStopped = errors.New("milestone worker stopped")
)

// DeliveryMetrics receives queue and delivery measurements.
type DeliveryMetrics interface {
	SetMilestoneQueueSize(size int)
	RecordMilestoneDelivery(outcome string)
}

// MilestoneWorkerConfig holds configuration for the milestone dispatcher.
type MilestoneWorkerConfig struct {
	// TargetURL receives every crossing. the achievement evaluator listens here.
	TargetURL string

	// Secret signs payloads with HMAC-SHA256.
	Secret string

	// BufferSize is the size of the notification channel buffer.
	BufferSize int

	// WorkerCount is the number of concurrent workers dispatching webhooks.
	WorkerCount int

	// RequestTimeout is the max time to wait for each outgoing HTTP request.
	RequestTimeout time.Duration

	// MaxAttempts bounds delivery retries of one crossing.
	MaxAttempts int
	RetryDelay  time.Duration
}

// DefaultMilestoneWorkerConfig returns sensible defaults.
func DefaultMilestoneWorkerConfig() MilestoneWorkerConfig {
	return MilestoneWorkerConfig{
		BufferSize:     1000,
		WorkerCount:    2,
		RequestTimeout: 5 * time.Second,
		MaxAttempts:    3,
		RetryDelay:     500 * time.Millisecond,
	}
}

// MilestoneWorker delivers milestone crossings over a signed webhook.
// implements domain.NotificationService.
type MilestoneWorker struct {
	queue      chan domain.MilestoneCrossing
	httpClient *http.Client
	config     MilestoneWorkerConfig
	metrics    DeliveryMetrics
	logger     *logging.Logger

	mu     sync.RWMutex
	closed bool

	wg       sync.WaitGroup
	stopOnce sync.Once
	stopped  chan struct{}
}

// NewMilestoneWorker creates a new milestone worker.
func NewMilestoneWorker(config MilestoneWorkerConfig, logger *logging.Logger) *MilestoneWorker {
	if config.WorkerCount < 1 {
		config.WorkerCount = 1
	}
	if config.MaxAttempts < 1 {
		config.MaxAttempts = 1
	}
	return &MilestoneWorker{
		queue: make(chan domain.MilestoneCrossing, config.BufferSize),
		httpClient: &http.Client{
			Timeout: config.RequestTimeout,
		},
		config:  config,
		logger:  logger.WithComponent("milestone_worker"),
		stopped: make(chan struct{}),
	}
}

// WithMetrics sets the metrics sink.
func (w *MilestoneWorker) WithMetrics(m DeliveryMetrics) *MilestoneWorker {
	w.metrics = m
	return w
}

// WithHTTPClient replaces the http client used for deliveries.
func (w *MilestoneWorker) WithHTTPClient(c *http.Client) *MilestoneWorker {
	w.httpClient = c
	return w
}

// Start begins the worker goroutines.
func (w *MilestoneWorker) Start(ctx context.Context) {
	w.logger.Info("milestone worker starting",
		"buffer_size", w.config.BufferSize,
		"worker_count", w.config.WorkerCount,
		"request_timeout", w.config.RequestTimeout.String(),
		"max_attempts", w.config.MaxAttempts,
	)

	for i := 0; i < w.config.WorkerCount; i++ {
		w.wg.Add(1)
		go w.runWorker(ctx, i)
	}
}

// Stop closes the queue and waits for queued crossings to be delivered.
func (w *MilestoneWorker) Stop() {
	w.stopOnce.Do(func() {
		w.logger.Info("milestone worker stopping, draining buffer", "pending", len(w.queue))

		w.mu.Lock()
		w.closed = true
		close(w.queue)
		w.mu.Unlock()

		w.wg.Wait()
		close(w.stopped)
		w.logger.Info("milestone worker stopped")
	})
}

// Stopped returns a channel that closes when the worker has fully stopped.
func (w *MilestoneWorker) Stopped() <-chan struct{} {
	return w.stopped
}

// NotifyMilestone queues a crossing for delivery without blocking on the network.
// a full buffer drops the crossing and returns ErrQueueFull.
func (w *MilestoneWorker) NotifyMilestone(ctx context.Context, crossing domain.MilestoneCrossing) error {
	w.mu.RLock()
	defer w.mu.RUnlock()
	if w.closed {
		return ErrWorkerStopped
	}

	select {
	case w.queue <- crossing:
		w.reportQueueSize()
		w.logger.Debug("milestone queued",
			"user_id", crossing.UserID.String(),
			"milestone", crossing.Milestone.Int(),
		)
		return nil
	case <-ctx.Done():
		return ctx.Err()
	default:
		w.recordOutcome(OutcomeDropped)
		w.logger.Warn("milestone buffer full, crossing dropped",
			"user_id", crossing.UserID.String(),
			"milestone", crossing.Milestone.Int(),
		)
		return ErrQueueFull
	}
}

func (w *MilestoneWorker) runWorker(ctx context.Context, workerID int) {
	defer w.wg.Done()

	for {
		select {
		case crossing, ok := <-w.queue:
			if !ok {
				w.logger.Debug("worker exiting after drain", "worker_id", workerID)
				return
			}
			w.reportQueueSize()
			w.dispatch(ctx, crossing, workerID)

		case <-ctx.Done():
			w.logger.Debug("worker exiting on context cancel", "worker_id", workerID)
			return
		}
	}
}

// dispatch delivers one crossing, retrying transport errors and 5xx answers.
func (w *MilestoneWorker) dispatch(ctx context.Context, crossing domain.MilestoneCrossing, workerID int) {
	payload, err := json.Marshal(newMilestonePayload(crossing))
	if err != nil {
		w.recordOutcome(OutcomeFailed)
		w.logger.Error("failed to marshal payload",
			"worker_id", workerID,
			"error", err.Error(),
		)
		return
	}
	deliveryID := uuid.NewString()

	for attempt := 1; attempt <= w.config.MaxAttempts; attempt++ {
		retry, err := w.send(ctx, payload, deliveryID)
		if err == nil {
			w.recordOutcome(OutcomeDelivered)
			w.logger.Info("milestone delivered",
				"worker_id", workerID,
				"user_id", crossing.UserID.String(),
				"milestone", crossing.Milestone.Int(),
				"delivery_id", deliveryID,
				"attempt", attempt,
			)
			return
		}

		w.logger.Warn("milestone delivery attempt failed",
			"worker_id", workerID,
			"delivery_id", deliveryID,
			"attempt", attempt,
			"retry", retry && attempt < w.config.MaxAttempts,
			"error", err.Error(),
		)
		if !retry || attempt == w.config.MaxAttempts {
			break
		}

		select {
		case <-time.After(w.config.RetryDelay * time.Duration(attempt)):
		case <-ctx.Done():
			w.recordOutcome(OutcomeFailed)
			return
		}
	}

	w.recordOutcome(OutcomeFailed)
	w.logger.Error("milestone not delivered",
		"worker_id", workerID,
		"user_id", crossing.UserID.String(),
		"milestone", crossing.Milestone.Int(),
		"delivery_id", deliveryID,
	)
}

// send posts one signed payload. retry is true when another attempt may succeed.
func (w *MilestoneWorker) send(ctx context.Context, payload []byte, deliveryID string) (retry bool, err error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, w.config.TargetURL, bytes.NewReader(payload))
	if err != nil {
		return false, fmt.Errorf("creating request: %w", err)
	}

	req.Header.Set("Content-Type", "application/json")
	req.Header.Set(signatureHeader, Sign(payload, w.config.Secret))
	req.Header.Set(eventHeader, milestoneEvent)
	req.Header.Set(deliveryIDHeader, deliveryID)
	req.Header.Set("User-Agent", "Spirit-Webhook/1.0")

	resp, err := w.httpClient.Do(req)
	if err != nil {
		return true, err
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 200 && resp.StatusCode < 300 {
		return false, nil
	}
	return resp.StatusCode >= 500 || resp.StatusCode == http.StatusTooManyRequests,
		fmt.Errorf("webhook returned status %d", resp.StatusCode)
}

func (w *MilestoneWorker) reportQueueSize() {
	if w.metrics != nil {
		w.metrics.SetMilestoneQueueSize(len(w.queue))
	}
}

func (w *MilestoneWorker) recordOutcome(outcome string) {
	if w.metrics != nil {
		w.metrics.RecordMilestoneDelivery(outcome)
	}
}

// Sign computes the HMAC-SHA256 signature header value for payload.
func Sign(payload []byte, secret string) string {
	mac := hmac.New(sha256.New, []byte(secret))
	mac.Write(payload)
	return "sha256=" + hex.EncodeToString(mac.Sum(nil))
}

// MilestonePayload is the JSON structure sent to the webhook endpoint.
type MilestonePayload struct {
	Event      string `json:"event"`
	UserID     string `json:"user_id"`
	Milestone  int    `json:"milestone"`
	OldOverall int    `json:"old_overall"`
	NewOverall int    `json:"new_overall"`
	Status     string `json:"status"`
	Timestamp  string `json:"timestamp"`
}

func newMilestonePayload(c domain.MilestoneCrossing) MilestonePayload {
	return MilestonePayload{
		Event:      milestoneEvent,
		UserID:     c.UserID.String(),
		Milestone:  c.Milestone.Int(),
		OldOverall: c.OldOverall.Int(),
		NewOverall: c.NewOverall.Int(),
		Status:     string(c.Status),
		Timestamp:  c.Timestamp.UTC().Format(time.RFC3339),
	}
}
