package admission

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/google/uuid"
)

// ProtocolID identifies the payment challenge protocol.
const ProtocolID = "x402"

// Request is the admission view of an incoming priced request.
type Request struct {
	Prompt      string
	Wallet      string
	ClientIP    string
	ProofHeader string // raw X-Payment-Proof value, empty if absent
}

// Grant admits a request at a tier and price.
type Grant struct {
	Tier     Tier
	PriceUSD float64
}

// Denial rejects a request. RateLimited denials carry no challenge; payment
// denials carry the 402 challenge to return to the caller.
type Denial struct {
	Reason      string
	RateLimited bool
	Challenge   *Challenge
}

// Challenge is the structured 402 payment challenge. The nonce is generated
// per challenge and is informational only; it is not checked on a later
// verification.
type Challenge struct {
	Address     string
	Amount      string // fixed-point USD string
	Currency    string
	Token       string
	Network     string
	Tier        Tier
	Nonce       string
	Protocol    string
	Version     string
	Facilitator string
}

// Headers renders the challenge as the X-Payment-* response header set.
func (c *Challenge) Headers() map[string]string {
	return map[string]string{
		"X-Payment-Required":    "true",
		"X-Payment-Address":     c.Address,
		"X-Payment-Amount":      c.Amount,
		"X-Payment-Currency":    c.Currency,
		"X-Payment-Token":       c.Token,
		"X-Payment-Network":     c.Network,
		"X-Payment-Tier":        string(c.Tier),
		"X-Payment-Nonce":       c.Nonce,
		"X-Payment-Protocol":    c.Protocol,
		"X-Payment-Version":     c.Version,
		"X-Payment-Facilitator": c.Facilitator,
	}
}

// ControllerConfig configures an admission Controller.
type ControllerConfig struct {
	Pricing  *Pricing
	Limiter  Limiter
	Payments *PaymentService

	IPLimit     int
	WalletLimit int

	PaymentAddress  string
	Token           string
	Network         string
	Currency        string
	Facilitator     string
	ProtocolVersion string

	Logger *slog.Logger
}

// Controller gates incoming requests: rate limits first, then tier
// classification and pricing, then payment verification. The outcome is
// either a Grant or a Denial; error is reserved for internal failures.
type Controller struct {
	cfg    *ControllerConfig
	logger *slog.Logger
}

// NewController creates an admission controller.
func NewController(cfg *ControllerConfig) *Controller {
	return &Controller{
		cfg:    cfg,
		logger: cfg.Logger,
	}
}

// Admit runs the admission pipeline for a request.
func (c *Controller) Admit(ctx context.Context, req *Request) (*Grant, *Denial, error) {
	if limited := c.rateLimited(ctx, req); limited != nil {
		return nil, limited, nil
	}

	tier := c.cfg.Pricing.Classify(req.Prompt)
	price := c.cfg.Pricing.Price(tier)

	if req.ProofHeader == "" {
		c.logger.Info("admission denied: no payment proof",
			slog.String("tier", string(tier)),
			slog.Float64("price_usd", price),
		)
		return nil, c.deny(ErrPaymentRequired.Error(), tier, price), nil
	}

	proof, err := DecodeProof(req.ProofHeader)
	if err != nil {
		c.logger.Info("admission denied: undecodable payment proof",
			slog.String("error", err.Error()),
		)
		return nil, c.deny(err.Error(), tier, price), nil
	}

	if err := c.cfg.Payments.Verify(ctx, proof, price); err != nil {
		if isPaymentDenial(err) {
			c.logger.Info("admission denied: payment rejected",
				slog.String("tx_hash", proof.TxHash),
				slog.String("error", err.Error()),
			)
			return nil, c.deny(err.Error(), tier, price), nil
		}
		return nil, nil, fmt.Errorf("payment verification failed: %w", err)
	}

	c.logger.Info("admission granted",
		slog.String("tier", string(tier)),
		slog.Float64("price_usd", price),
		slog.String("wallet", req.Wallet),
	)

	return &Grant{Tier: tier, PriceUSD: price}, nil, nil
}

func (c *Controller) rateLimited(ctx context.Context, req *Request) *Denial {
	keys := []struct {
		key   string
		limit int
	}{
		{"ip:" + req.ClientIP, c.cfg.IPLimit},
	}
	if req.Wallet != "" {
		keys = append(keys, struct {
			key   string
			limit int
		}{"wallet:" + req.Wallet, c.cfg.WalletLimit})
	}

	for _, k := range keys {
		ok, err := c.cfg.Limiter.Allow(ctx, k.key, k.limit)
		if err != nil {
			// Fail open: an unreachable limiter backend must not take the
			// gateway down with it.
			c.logger.Warn("rate limiter check failed",
				slog.String("key", k.key),
				slog.String("error", err.Error()),
			)
			continue
		}
		if !ok {
			c.logger.Info("admission denied: rate limited",
				slog.String("key", k.key),
				slog.Int("limit", k.limit),
			)
			return &Denial{
				Reason:      "rate limit exceeded",
				RateLimited: true,
			}
		}
	}

	return nil
}

func (c *Controller) deny(reason string, tier Tier, price float64) *Denial {
	return &Denial{
		Reason: reason,
		Challenge: &Challenge{
			Address:     c.cfg.PaymentAddress,
			Amount:      fmt.Sprintf("%.6f", price),
			Currency:    c.cfg.Currency,
			Token:       c.cfg.Token,
			Network:     c.cfg.Network,
			Tier:        tier,
			Nonce:       uuid.NewString(),
			Protocol:    ProtocolID,
			Version:     c.cfg.ProtocolVersion,
			Facilitator: c.cfg.Facilitator,
		},
	}
}

// isPaymentDenial distinguishes caller-facing payment rejections from
// internal verification failures.
func isPaymentDenial(err error) bool {
	return errors.Is(err, ErrMalformedProof) ||
		errors.Is(err, ErrStaleProof) ||
		errors.Is(err, ErrInsufficientPayment) ||
		errors.Is(err, ErrPaymentNotVerified)
}
