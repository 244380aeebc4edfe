package webhook

import (
	"context"
	"crypto/hmac"
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/shreed27/AgentHub-sub004/internal/domain"
)

func discardLogger() *slog.Logger {
	return slog.New(slog.DiscardHandler)
}

func terminalJob(callbackURL string) *domain.Job {
	now := time.Now().UTC()
	done := now
	return &domain.Job{
		ID: "4f5a9d0e-0000-0000-0000-000000000001",
		Request: domain.Request{
			Prompt:      "What is the price of BTC?",
			Wallet:      "0xabc",
			CallbackURL: callbackURL,
		},
		Status:      domain.JobStatusCompleted,
		Tier:        "basic",
		CostUSD:     0.05,
		Result:      "the price is 50000",
		CreatedAt:   now,
		UpdatedAt:   now,
		CompletedAt: &done,
	}
}

func TestNotifyTerminalDeliversSignedEvent(t *testing.T) {
	type delivery struct {
		headerSig string
		body      []byte
	}
	received := make(chan delivery, 1)

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		body, err := io.ReadAll(r.Body)
		require.NoError(t, err)
		assert.Equal(t, "application/json", r.Header.Get("Content-Type"))
		received <- delivery{headerSig: r.Header.Get(SignatureHeader), body: body}
		w.WriteHeader(http.StatusOK)
	}))
	defer srv.Close()

	job := terminalJob(srv.URL)
	n := New(5*time.Second, discardLogger())
	n.NotifyTerminal(context.Background(), job)

	var got delivery
	select {
	case got = <-received:
	case <-time.After(5 * time.Second):
		t.Fatal("webhook was not delivered")
	}

	var event Event
	require.NoError(t, json.Unmarshal(got.body, &event))
	assert.Equal(t, "job.completed", event.Event)
	require.NotNil(t, event.Job)
	assert.Equal(t, job.ID, event.Job.ID)
	assert.Equal(t, "the price is 50000", event.Job.Result)
	assert.NotEmpty(t, event.Signature)
	assert.Equal(t, event.Signature, got.headerSig)

	// Recompute the signature the way a receiver would: strip the signature
	// field, re-serialize, HMAC with jobID + ":" + wallet.
	unsigned := event
	unsigned.Signature = ""
	payload, err := json.Marshal(&unsigned)
	require.NoError(t, err)
	want := Sign(payload, job.ID, job.Request.Wallet)
	assert.True(t, hmac.Equal([]byte(want), []byte(event.Signature)))
}

func TestNotifyTerminalEventNameFollowsStatus(t *testing.T) {
	events := make(chan string, 1)
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		var event Event
		require.NoError(t, json.NewDecoder(r.Body).Decode(&event))
		events <- event.Event
		w.WriteHeader(http.StatusOK)
	}))
	defer srv.Close()

	n := New(5*time.Second, discardLogger())

	for _, status := range []domain.JobStatus{
		domain.JobStatusFailed,
		domain.JobStatusCancelled,
	} {
		job := terminalJob(srv.URL)
		job.Status = status
		job.Result = ""
		n.NotifyTerminal(context.Background(), job)

		select {
		case got := <-events:
			assert.Equal(t, "job."+string(status), got)
		case <-time.After(5 * time.Second):
			t.Fatalf("no delivery for status %s", status)
		}
	}
}

func TestNotifyTerminalSkipsJobsWithoutCallback(t *testing.T) {
	called := false
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		called = true
	}))
	defer srv.Close()

	n := New(5*time.Second, discardLogger())
	n.NotifyTerminal(context.Background(), terminalJob(""))

	assert.False(t, called)
}

func TestNotifyTerminalDoesNotRetry(t *testing.T) {
	var hits int
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		hits++
		w.WriteHeader(http.StatusInternalServerError)
	}))
	defer srv.Close()

	n := New(5*time.Second, discardLogger())
	n.NotifyTerminal(context.Background(), terminalJob(srv.URL))

	assert.Equal(t, 1, hits, "a rejected delivery must not be retried")
}

func TestNotifyTerminalSurvivesUnreachableReceiver(t *testing.T) {
	n := New(100*time.Millisecond, discardLogger())

	// Must log and return, not panic or block.
	n.NotifyTerminal(context.Background(), terminalJob("http://127.0.0.1:1/hook"))
}

func TestSignIsDeterministicAndKeyed(t *testing.T) {
	payload := []byte(`{"event":"job.completed"}`)

	a := Sign(payload, "job-1", "0xabc")
	b := Sign(payload, "job-1", "0xabc")
	assert.Equal(t, a, b)

	assert.NotEqual(t, a, Sign(payload, "job-2", "0xabc"))
	assert.NotEqual(t, a, Sign(payload, "job-1", "0xdef"))
	assert.NotEqual(t, a, Sign([]byte(`{"event":"job.failed"}`), "job-1", "0xabc"))
}
