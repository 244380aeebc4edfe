package dto

// SubmitPromptRequest is the body of POST /api/v1/prompts.
type SubmitPromptRequest struct {
	Prompt      string `json:"prompt" binding:"required"`
	Wallet      string `json:"wallet"`
	CallbackURL string `json:"callback_url" binding:"omitempty,url"`
}

// SubmitPromptResponse is returned when a request is admitted.
type SubmitPromptResponse struct {
	JobID   string  `json:"job_id"`
	Status  string  `json:"status"`
	Tier    string  `json:"tier"`
	CostUSD float64 `json:"cost_usd"`
}

// PaymentChallengeResponse is the 402 body accompanying the X-Payment-*
// challenge headers.
type PaymentChallengeResponse struct {
	Error       string  `json:"error"`
	Reason      string  `json:"reason"`
	Tier        string  `json:"tier"`
	AmountUSD   float64 `json:"amount_usd"`
	Address     string  `json:"address"`
	Currency    string  `json:"currency"`
	Token       string  `json:"token"`
	Network     string  `json:"network"`
	Nonce       string  `json:"nonce"`
	Protocol    string  `json:"protocol"`
	Version     string  `json:"version"`
	Facilitator string  `json:"facilitator"`
}

// ListJobsRequest holds the query parameters of GET /api/v1/jobs.
type ListJobsRequest struct {
	Status string `form:"status"`
	Limit  int    `form:"limit"`
}

// PricingResponse describes the tier table and payment parameters.
type PricingResponse struct {
	DefaultTier string             `json:"default_tier"`
	Tiers       map[string]float64 `json:"tiers"`
	Payment     PaymentInfo        `json:"payment"`
}

// PaymentInfo is the static payment surface advertised to callers.
type PaymentInfo struct {
	Address     string `json:"address"`
	Token       string `json:"token"`
	Network     string `json:"network"`
	Currency    string `json:"currency"`
	Protocol    string `json:"protocol"`
	Version     string `json:"version"`
	Facilitator string `json:"facilitator"`
}
