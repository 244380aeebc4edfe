package admission

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"log/slog"
	"regexp"
	"sync"
	"time"
)

// amountTolerance absorbs rounding between the quoted price and the settled
// on-chain amount: paid >= required*amountTolerance is accepted.
const amountTolerance = 0.99

var txHashPattern = regexp.MustCompile(`^0x[0-9a-fA-F]{64}$`)

// Proof is the payment evidence a caller presents, base64-JSON encoded in
// the X-Payment-Proof header. Immutable once presented.
type Proof struct {
	TxHash    string          `json:"txHash"`
	Network   string          `json:"network"`
	AmountUSD float64         `json:"amountUsd"`
	Token     string          `json:"token"`
	Timestamp int64           `json:"timestamp"` // unix milliseconds
	Payload   json.RawMessage `json:"payload,omitempty"`
}

// Time returns the proof timestamp as a time.Time.
func (p *Proof) Time() time.Time {
	return time.UnixMilli(p.Timestamp)
}

// DecodeProof parses the base64-JSON proof envelope from a request header.
func DecodeProof(header string) (*Proof, error) {
	raw, err := base64.StdEncoding.DecodeString(header)
	if err != nil {
		return nil, fmt.Errorf("%w: invalid base64: %v", ErrMalformedProof, err)
	}

	var proof Proof
	if err := json.Unmarshal(raw, &proof); err != nil {
		return nil, fmt.Errorf("%w: invalid JSON: %v", ErrMalformedProof, err)
	}

	return &proof, nil
}

// Verifier performs the authoritative payment check, e.g. confirming a
// transaction receipt on-chain and matching the recipient against the
// configured treasury address. Implementations live outside this module.
type Verifier interface {
	Verify(ctx context.Context, proof *Proof) error
}

// VerifierFunc adapts a plain function to the Verifier interface.
type VerifierFunc func(ctx context.Context, proof *Proof) error

func (f VerifierFunc) Verify(ctx context.Context, proof *Proof) error {
	return f(ctx, proof)
}

type cacheEntry struct {
	verifiedAt time.Time
}

// PaymentService checks payment proofs against the pricing table. Verified
// transaction hashes are cached for a TTL so repeated polls with the same
// proof skip the authoritative check; the cache is an optimization, never a
// source of truth.
type PaymentService struct {
	verifier        Verifier
	freshnessWindow time.Duration
	cacheTTL        time.Duration
	allowUnverified bool
	logger          *slog.Logger
	now             func() time.Time

	mu    sync.Mutex
	cache map[string]cacheEntry

	stopPurge chan struct{}
	purgeOnce sync.Once
}

// PaymentServiceConfig configures a PaymentService.
type PaymentServiceConfig struct {
	Verifier        Verifier
	FreshnessWindow time.Duration
	CacheTTL        time.Duration
	// AllowUnverified skips the authoritative check for structurally valid
	// proofs. The caller must hard-gate this on a non-production
	// environment before setting it.
	AllowUnverified bool
	Logger          *slog.Logger
}

// NewPaymentService creates a payment service and starts its cache purge
// loop. Call Close to stop it.
func NewPaymentService(cfg *PaymentServiceConfig) *PaymentService {
	s := &PaymentService{
		verifier:        cfg.Verifier,
		freshnessWindow: cfg.FreshnessWindow,
		cacheTTL:        cfg.CacheTTL,
		allowUnverified: cfg.AllowUnverified,
		logger:          cfg.Logger,
		now:             time.Now,
		cache:           make(map[string]cacheEntry),
		stopPurge:       make(chan struct{}),
	}

	if s.allowUnverified {
		s.logger.Warn("PAYMENT VERIFICATION BYPASS ENABLED - structurally valid proofs are accepted without on-chain checks")
	}

	go s.purgeLoop()

	return s
}

// Verify validates a proof against the required USD price. A cached hash
// skips straight to the amount check; otherwise structural checks run,
// followed by the authoritative verifier (or the non-production bypass).
func (s *PaymentService) Verify(ctx context.Context, proof *Proof, requiredUSD float64) error {
	if s.cached(proof.TxHash) {
		return s.checkAmount(proof, requiredUSD)
	}

	if err := s.checkStructure(proof); err != nil {
		return err
	}

	if err := s.checkAmount(proof, requiredUSD); err != nil {
		return err
	}

	if s.allowUnverified {
		s.logger.Warn("accepting unverified payment proof",
			slog.String("tx_hash", proof.TxHash),
			slog.String("network", proof.Network),
		)
		s.remember(proof.TxHash)
		return nil
	}

	if err := s.verifier.Verify(ctx, proof); err != nil {
		s.logger.Info("payment verification rejected proof",
			slog.String("tx_hash", proof.TxHash),
			slog.String("error", err.Error()),
		)
		return fmt.Errorf("%w: %v", ErrPaymentNotVerified, err)
	}

	s.remember(proof.TxHash)
	return nil
}

// Close stops the cache purge loop.
func (s *PaymentService) Close() {
	s.purgeOnce.Do(func() {
		close(s.stopPurge)
	})
}

func (s *PaymentService) checkStructure(proof *Proof) error {
	if !txHashPattern.MatchString(proof.TxHash) {
		return fmt.Errorf("%w: transaction hash must be 0x-prefixed 32-byte hex", ErrMalformedProof)
	}

	if proof.AmountUSD <= 0 {
		return fmt.Errorf("%w: amount must be positive", ErrMalformedProof)
	}

	age := s.now().Sub(proof.Time())
	if age > s.freshnessWindow || age < -s.freshnessWindow {
		return fmt.Errorf("%w: proof timestamp outside %s freshness window", ErrStaleProof, s.freshnessWindow)
	}

	return nil
}

func (s *PaymentService) checkAmount(proof *Proof, requiredUSD float64) error {
	if proof.AmountUSD < requiredUSD*amountTolerance {
		return fmt.Errorf("%w: paid %.6f USD, required %.6f USD", ErrInsufficientPayment, proof.AmountUSD, requiredUSD)
	}
	return nil
}

func (s *PaymentService) cached(txHash string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	entry, ok := s.cache[txHash]
	if !ok {
		return false
	}
	if s.now().Sub(entry.verifiedAt) > s.cacheTTL {
		delete(s.cache, txHash)
		return false
	}
	return true
}

func (s *PaymentService) remember(txHash string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.cache[txHash] = cacheEntry{verifiedAt: s.now()}
}

func (s *PaymentService) purgeLoop() {
	ticker := time.NewTicker(s.cacheTTL)
	defer ticker.Stop()

	for {
		select {
		case <-s.stopPurge:
			return
		case <-ticker.C:
			s.purgeExpired()
		}
	}
}

func (s *PaymentService) purgeExpired() {
	s.mu.Lock()
	defer s.mu.Unlock()

	now := s.now()
	for hash, entry := range s.cache {
		if now.Sub(entry.verifiedAt) > s.cacheTTL {
			delete(s.cache, hash)
		}
	}
}
