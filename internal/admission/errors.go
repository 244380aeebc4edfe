package admission

import "errors"

var (
	// ErrPaymentRequired is returned when no payment proof accompanies a
	// priced request.
	ErrPaymentRequired = errors.New("payment required")

	// ErrMalformedProof is returned when the proof envelope cannot be
	// decoded or fails structural checks.
	ErrMalformedProof = errors.New("malformed payment proof")

	// ErrStaleProof is returned when the proof timestamp falls outside the
	// freshness window.
	ErrStaleProof = errors.New("payment proof is stale")

	// ErrInsufficientPayment is returned when the paid amount does not cover
	// the required price within tolerance.
	ErrInsufficientPayment = errors.New("insufficient payment")

	// ErrPaymentNotVerified is returned when the authoritative verifier
	// rejects an otherwise well-formed proof.
	ErrPaymentNotVerified = errors.New("payment could not be verified")
)
