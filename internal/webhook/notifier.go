// Package webhook delivers terminal job events to caller-supplied callback
// URLs. Delivery is best-effort: one attempt, failures logged, never
// retried. Callers that need guarantees poll the job endpoint instead.
package webhook

import (
	"bytes"
	"context"
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/shreed27/AgentHub-sub004/internal/domain"
)

// SignatureHeader carries the envelope signature for out-of-band
// verification alongside the body's signature field.
const SignatureHeader = "X-Webhook-Signature"

// Event is the envelope POSTed to the callback URL. The signature is a hex
// HMAC-SHA256 over the serialized envelope without the signature field, with
// the per-job key jobID + ":" + wallet.
type Event struct {
	Event     string      `json:"event"`
	Job       *domain.Job `json:"job"`
	Timestamp time.Time   `json:"timestamp"`
	Signature string      `json:"signature,omitempty"`
}

// Notifier signs and POSTs terminal job events.
type Notifier struct {
	client *http.Client
	logger *slog.Logger
}

// New creates a notifier with the given delivery timeout.
func New(timeout time.Duration, logger *slog.Logger) *Notifier {
	return &Notifier{
		client: &http.Client{Timeout: timeout},
		logger: logger,
	}
}

// NotifyTerminal delivers a job.<status> event to the job's callback URL.
// Jobs without a callback URL are ignored.
func (n *Notifier) NotifyTerminal(ctx context.Context, job *domain.Job) {
	if job.Request.CallbackURL == "" {
		return
	}

	event := &Event{
		Event:     "job." + string(job.Status),
		Job:       job,
		Timestamp: time.Now().UTC(),
	}

	body, signature, err := SignEvent(event, job.ID, job.Request.Wallet)
	if err != nil {
		n.logger.Error("Failed to build webhook payload",
			slog.String("job_id", job.ID),
			slog.String("error", err.Error()),
		)
		return
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, job.Request.CallbackURL, bytes.NewReader(body))
	if err != nil {
		n.logger.Error("Failed to build webhook request",
			slog.String("job_id", job.ID),
			slog.String("error", err.Error()),
		)
		return
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set(SignatureHeader, signature)

	resp, err := n.client.Do(req)
	if err != nil {
		n.logger.Warn("Webhook delivery failed",
			slog.String("job_id", job.ID),
			slog.String("url", job.Request.CallbackURL),
			slog.String("error", err.Error()),
		)
		return
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		n.logger.Warn("Webhook receiver rejected delivery",
			slog.String("job_id", job.ID),
			slog.String("url", job.Request.CallbackURL),
			slog.Int("status", resp.StatusCode),
		)
		return
	}

	n.logger.Info("Webhook delivered",
		slog.String("job_id", job.ID),
		slog.String("event", event.Event),
	)
}

// SignEvent serializes the envelope, signs it, and returns the final body
// with the signature embedded, plus the signature itself.
func SignEvent(event *Event, jobID, wallet string) (body []byte, signature string, err error) {
	unsigned := *event
	unsigned.Signature = ""

	payload, err := json.Marshal(&unsigned)
	if err != nil {
		return nil, "", fmt.Errorf("failed to marshal webhook event: %w", err)
	}

	signature = Sign(payload, jobID, wallet)

	signed := *event
	signed.Signature = signature
	body, err = json.Marshal(&signed)
	if err != nil {
		return nil, "", fmt.Errorf("failed to marshal signed webhook event: %w", err)
	}

	return body, signature, nil
}

// Sign computes the hex HMAC-SHA256 of payload with the per-job key
// jobID + ":" + wallet. Receivers recompute this to authenticate deliveries.
func Sign(payload []byte, jobID, wallet string) string {
	mac := hmac.New(sha256.New, []byte(jobID+":"+wallet))
	mac.Write(payload)
	return hex.EncodeToString(mac.Sum(nil))
}
