package handler_test

import (
	"bytes"
	"context"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/shreed27/AgentHub-sub004/internal/admission"
	"github.com/shreed27/AgentHub-sub004/internal/api/dto"
	"github.com/shreed27/AgentHub-sub004/internal/api/handler"
	"github.com/shreed27/AgentHub-sub004/internal/api/router"
	"github.com/shreed27/AgentHub-sub004/internal/domain"
	"github.com/shreed27/AgentHub-sub004/internal/executor"
	"github.com/shreed27/AgentHub-sub004/internal/scheduler"
)

const testTxHash = "0x" + "ab12cd34ef56ab12cd34ef56ab12cd34ef56ab12cd34ef56ab12cd34ef56ab12"

func init() {
	gin.SetMode(gin.TestMode)
}

type env struct {
	router    *gin.Engine
	scheduler *scheduler.Scheduler
}

// newEnv wires the full gateway stack the way main does, with payment
// verification in bypass mode and a fast simulated executor.
func newEnv(t *testing.T, ipLimit int) *env {
	t.Helper()

	logger := slog.New(slog.DiscardHandler)

	sched := scheduler.New(&scheduler.Config{
		Concurrency:   2,
		JobTimeout:    time.Second,
		DrainInterval: 20 * time.Millisecond,
		Retention:     time.Hour,
		Executor:      executor.NewSimulated(10 * time.Millisecond),
		Logger:        logger,
	})
	require.NoError(t, sched.Start())
	t.Cleanup(sched.Stop)

	payments := admission.NewPaymentService(&admission.PaymentServiceConfig{
		Verifier: admission.VerifierFunc(func(ctx context.Context, p *admission.Proof) error {
			return nil
		}),
		FreshnessWindow: 10 * time.Minute,
		CacheTTL:        5 * time.Minute,
		AllowUnverified: true,
		Logger:          logger,
	})
	t.Cleanup(payments.Close)

	pricing := admission.NewPricing("basic", map[string]float64{
		"basic":    0.05,
		"standard": 0.10,
		"complex":  0.25,
	})

	ctrl := admission.NewController(&admission.ControllerConfig{
		Pricing:         pricing,
		Limiter:         admission.NewMemoryLimiter(time.Minute),
		Payments:        payments,
		IPLimit:         ipLimit,
		WalletLimit:     ipLimit,
		PaymentAddress:  "0x000000000000000000000000000000000000dEaD",
		Token:           "USDC",
		Network:         "base",
		Currency:        "USD",
		Facilitator:     "x402.org/facilitator",
		ProtocolVersion: "1",
		Logger:          logger,
	})

	r := router.SetupRouter(&handler.Dependencies{
		Logger:    logger,
		Admission: ctrl,
		Scheduler: sched,
		Pricing:   pricing,
		Payment: dto.PaymentInfo{
			Address:  "0x000000000000000000000000000000000000dEaD",
			Token:    "USDC",
			Network:  "base",
			Currency: "USD",
			Protocol: "x402",
			Version:  "1",
		},
	})

	return &env{router: r, scheduler: sched}
}

func (e *env) do(method, path string, body any, headers map[string]string) *httptest.ResponseRecorder {
	var reader *bytes.Reader
	if body != nil {
		raw, _ := json.Marshal(body)
		reader = bytes.NewReader(raw)
	} else {
		reader = bytes.NewReader(nil)
	}

	req := httptest.NewRequest(method, path, reader)
	req.Header.Set("Content-Type", "application/json")
	for k, v := range headers {
		req.Header.Set(k, v)
	}

	w := httptest.NewRecorder()
	e.router.ServeHTTP(w, req)
	return w
}

func proofHeader(t *testing.T, amountUSD float64) string {
	t.Helper()
	raw, err := json.Marshal(map[string]any{
		"txHash":    testTxHash,
		"network":   "base",
		"amountUsd": amountUSD,
		"token":     "USDC",
		"timestamp": time.Now().UnixMilli(),
	})
	require.NoError(t, err)
	return base64.StdEncoding.EncodeToString(raw)
}

func (e *env) submitPaid(t *testing.T, prompt string, amountUSD float64) string {
	t.Helper()
	w := e.do(http.MethodPost, "/api/v1/prompts", gin.H{
		"prompt": prompt,
		"wallet": "0xabc",
	}, map[string]string{handler.PaymentProofHeader: proofHeader(t, amountUSD)})
	require.Equal(t, http.StatusAccepted, w.Code, w.Body.String())

	var resp dto.SubmitPromptResponse
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	require.NotEmpty(t, resp.JobID)
	return resp.JobID
}

func (e *env) waitForStatus(t *testing.T, jobID string, want domain.JobStatus) *domain.Job {
	t.Helper()
	var job *domain.Job
	require.Eventually(t, func() bool {
		got, ok := e.scheduler.Get(jobID)
		if !ok {
			return false
		}
		job = got
		return got.Status == want
	}, 5*time.Second, 10*time.Millisecond)
	return job
}

func TestSubmitWithoutProofReturnsChallenge(t *testing.T) {
	e := newEnv(t, 100)

	w := e.do(http.MethodPost, "/api/v1/prompts", gin.H{
		"prompt": "What is the price of BTC?",
		"wallet": "0xabc",
	}, nil)

	require.Equal(t, http.StatusPaymentRequired, w.Code)

	assert.Equal(t, "true", w.Header().Get("X-Payment-Required"))
	assert.Equal(t, "basic", w.Header().Get("X-Payment-Tier"))
	assert.Equal(t, "0.050000", w.Header().Get("X-Payment-Amount"))
	assert.Equal(t, "USDC", w.Header().Get("X-Payment-Token"))
	assert.Equal(t, "base", w.Header().Get("X-Payment-Network"))
	assert.Equal(t, "x402", w.Header().Get("X-Payment-Protocol"))
	assert.NotEmpty(t, w.Header().Get("X-Payment-Nonce"))

	var resp dto.PaymentChallengeResponse
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	assert.Equal(t, "basic", resp.Tier)
	assert.Equal(t, 0.05, resp.AmountUSD)
	assert.Equal(t, "0x000000000000000000000000000000000000dEaD", resp.Address)
}

func TestChallengePriceFollowsTier(t *testing.T) {
	e := newEnv(t, 100)

	w := e.do(http.MethodPost, "/api/v1/prompts", gin.H{
		"prompt": "Set up a recurring DCA strategy for ETH",
	}, nil)

	require.Equal(t, http.StatusPaymentRequired, w.Code)
	assert.Equal(t, "complex", w.Header().Get("X-Payment-Tier"))
	assert.Equal(t, "0.250000", w.Header().Get("X-Payment-Amount"))
}

func TestSubmitWithProofRunsJobToCompletion(t *testing.T) {
	e := newEnv(t, 100)

	jobID := e.submitPaid(t, "What is the price of BTC?", 0.05)
	e.waitForStatus(t, jobID, domain.JobStatusCompleted)

	w := e.do(http.MethodGet, "/api/v1/jobs/"+jobID, nil, nil)
	require.Equal(t, http.StatusOK, w.Code)

	var job domain.Job
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &job))
	assert.Equal(t, domain.JobStatusCompleted, job.Status)
	assert.Equal(t, "basic", job.Tier)
	assert.Equal(t, 0.05, job.CostUSD)
	assert.NotEmpty(t, job.Result)
}

func TestSubmitWithInsufficientProofIsDenied(t *testing.T) {
	e := newEnv(t, 100)

	w := e.do(http.MethodPost, "/api/v1/prompts", gin.H{
		"prompt": "What is the price of BTC?",
	}, map[string]string{handler.PaymentProofHeader: proofHeader(t, 0.01)})

	require.Equal(t, http.StatusPaymentRequired, w.Code)

	var resp dto.PaymentChallengeResponse
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	assert.Contains(t, resp.Reason, "insufficient payment")
}

func TestSubmitWithoutPromptIsRejected(t *testing.T) {
	e := newEnv(t, 100)

	w := e.do(http.MethodPost, "/api/v1/prompts", gin.H{"wallet": "0xabc"}, nil)
	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestRateLimitedSubmitReturns429(t *testing.T) {
	e := newEnv(t, 2)

	body := gin.H{"prompt": "What is the price of BTC?"}
	for i := 0; i < 2; i++ {
		w := e.do(http.MethodPost, "/api/v1/prompts", body, nil)
		require.Equal(t, http.StatusPaymentRequired, w.Code)
	}

	w := e.do(http.MethodPost, "/api/v1/prompts", body, nil)
	assert.Equal(t, http.StatusTooManyRequests, w.Code)
	assert.Empty(t, w.Header().Get("X-Payment-Required"),
		"rate limited responses carry no payment challenge")
}

func TestGetJobValidation(t *testing.T) {
	e := newEnv(t, 100)

	w := e.do(http.MethodGet, "/api/v1/jobs/not-a-uuid", nil, nil)
	assert.Equal(t, http.StatusBadRequest, w.Code)

	w = e.do(http.MethodGet, "/api/v1/jobs/"+uuid.NewString(), nil, nil)
	assert.Equal(t, http.StatusNotFound, w.Code)
}

func TestListJobsFiltersByStatus(t *testing.T) {
	e := newEnv(t, 100)

	first := e.submitPaid(t, "What is the price of BTC?", 0.05)
	second := e.submitPaid(t, "What is the price of ETH?", 0.05)
	e.waitForStatus(t, first, domain.JobStatusCompleted)
	e.waitForStatus(t, second, domain.JobStatusCompleted)

	w := e.do(http.MethodGet, "/api/v1/jobs?status=completed", nil, nil)
	require.Equal(t, http.StatusOK, w.Code)

	var resp struct {
		Jobs  []*domain.Job `json:"jobs"`
		Count int           `json:"count"`
	}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	assert.Equal(t, 2, resp.Count)

	w = e.do(http.MethodGet, "/api/v1/jobs?status=failed", nil, nil)
	require.Equal(t, http.StatusOK, w.Code)
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	assert.Zero(t, resp.Count)
}

func TestCancelEndpoint(t *testing.T) {
	e := newEnv(t, 100)

	w := e.do(http.MethodPost, fmt.Sprintf("/api/v1/jobs/%s/cancel", uuid.NewString()), nil, nil)
	assert.Equal(t, http.StatusNotFound, w.Code)

	jobID := e.submitPaid(t, "What is the price of BTC?", 0.05)
	e.waitForStatus(t, jobID, domain.JobStatusCompleted)

	// Terminal jobs cannot be cancelled.
	w = e.do(http.MethodPost, fmt.Sprintf("/api/v1/jobs/%s/cancel", jobID), nil, nil)
	assert.Equal(t, http.StatusConflict, w.Code)
}

func TestDeleteEndpoint(t *testing.T) {
	e := newEnv(t, 100)

	jobID := e.submitPaid(t, "What is the price of BTC?", 0.05)
	e.waitForStatus(t, jobID, domain.JobStatusCompleted)

	w := e.do(http.MethodDelete, "/api/v1/jobs/"+jobID, nil, nil)
	assert.Equal(t, http.StatusNoContent, w.Code)

	w = e.do(http.MethodGet, "/api/v1/jobs/"+jobID, nil, nil)
	assert.Equal(t, http.StatusNotFound, w.Code)

	w = e.do(http.MethodDelete, "/api/v1/jobs/"+jobID, nil, nil)
	assert.Equal(t, http.StatusNotFound, w.Code)
}

func TestPricingEndpoint(t *testing.T) {
	e := newEnv(t, 100)

	w := e.do(http.MethodGet, "/api/v1/pricing", nil, nil)
	require.Equal(t, http.StatusOK, w.Code)

	var resp dto.PricingResponse
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	assert.Equal(t, "basic", resp.DefaultTier)
	assert.Equal(t, 0.05, resp.Tiers["basic"])
	assert.Equal(t, 0.25, resp.Tiers["complex"])
	assert.Equal(t, "USDC", resp.Payment.Token)
}

func TestHealthEndpoint(t *testing.T) {
	e := newEnv(t, 100)

	w := e.do(http.MethodGet, "/health", nil, nil)
	require.Equal(t, http.StatusOK, w.Code)

	var resp map[string]any
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	assert.Equal(t, "healthy", resp["status"])
}
