package handler

import (
	"log/slog"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"

	"github.com/shreed27/AgentHub-sub004/internal/admission"
	"github.com/shreed27/AgentHub-sub004/internal/api/dto"
	"github.com/shreed27/AgentHub-sub004/internal/domain"
)

// PaymentProofHeader carries the base64-JSON payment proof envelope.
const PaymentProofHeader = "X-Payment-Proof"

// SubmitPrompt handles POST /api/v1/prompts
// Runs the admission pipeline and, on a grant, enqueues the job.
func (h *GatewayHandler) SubmitPrompt(c *gin.Context) {
	var req dto.SubmitPromptRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		h.logger.Info("Invalid submit request", slog.String("error", err.Error()))
		c.JSON(http.StatusBadRequest, gin.H{
			"error": "Invalid request body",
		})
		return
	}

	admReq := &admission.Request{
		Prompt:      req.Prompt,
		Wallet:      req.Wallet,
		ClientIP:    c.ClientIP(),
		ProofHeader: c.GetHeader(PaymentProofHeader),
	}

	grant, denial, err := h.admission.Admit(c.Request.Context(), admReq)
	if err != nil {
		h.logger.Error("Admission failed", slog.String("error", err.Error()))
		c.JSON(http.StatusInternalServerError, gin.H{
			"error": "Failed to process request",
		})
		return
	}

	if denial != nil {
		h.renderDenial(c, denial)
		return
	}

	job, err := h.scheduler.Enqueue(c.Request.Context(), domain.Request{
		Prompt:      req.Prompt,
		Wallet:      req.Wallet,
		CallbackURL: req.CallbackURL,
		ClientIP:    c.ClientIP(),
	}, string(grant.Tier), grant.PriceUSD)
	if err != nil {
		h.logger.Error("Failed to enqueue job", slog.String("error", err.Error()))
		c.JSON(http.StatusInternalServerError, gin.H{
			"error": "Failed to enqueue job",
		})
		return
	}

	c.JSON(http.StatusAccepted, dto.SubmitPromptResponse{
		JobID:   job.ID,
		Status:  string(job.Status),
		Tier:    job.Tier,
		CostUSD: job.CostUSD,
	})
}

func (h *GatewayHandler) renderDenial(c *gin.Context, denial *admission.Denial) {
	if denial.RateLimited {
		c.JSON(http.StatusTooManyRequests, gin.H{
			"error": denial.Reason,
		})
		return
	}

	challenge := denial.Challenge
	for key, value := range challenge.Headers() {
		c.Header(key, value)
	}

	amount, _ := strconv.ParseFloat(challenge.Amount, 64)
	c.JSON(http.StatusPaymentRequired, dto.PaymentChallengeResponse{
		Error:       "payment required",
		Reason:      denial.Reason,
		Tier:        string(challenge.Tier),
		AmountUSD:   amount,
		Address:     challenge.Address,
		Currency:    challenge.Currency,
		Token:       challenge.Token,
		Network:     challenge.Network,
		Nonce:       challenge.Nonce,
		Protocol:    challenge.Protocol,
		Version:     challenge.Version,
		Facilitator: challenge.Facilitator,
	})
}

// GetPricing handles GET /api/v1/pricing
// Advertises the tier table and payment parameters.
func (h *GatewayHandler) GetPricing(c *gin.Context) {
	tiers := make(map[string]float64, len(h.pricing.Tiers))
	for tier, price := range h.pricing.Tiers {
		tiers[string(tier)] = price
	}

	c.JSON(http.StatusOK, dto.PricingResponse{
		DefaultTier: string(h.pricing.DefaultTier),
		Tiers:       tiers,
		Payment:     h.payment,
	})
}
