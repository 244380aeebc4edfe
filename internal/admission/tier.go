package admission

import "strings"

// Tier is a pricing/complexity bucket applied to a request.
type Tier string

const (
	TierBasic    Tier = "basic"
	TierStandard Tier = "standard"
	TierComplex  Tier = "complex"
)

// Pattern groups are checked in order: complex intents win over basic ones,
// and a basic match that also carries an action verb is promoted to standard.
var (
	complexPatterns = []string{
		"automat",
		"batch",
		"copy trad",
		"copytrad",
		"strategy",
		"strategies",
		"schedule",
		"recurring",
		"rebalanc",
		"portfolio",
		"every ",
		"dca",
	}

	basicPatterns = []string{
		"price",
		"balance",
		"what is",
		"what's",
		"how much",
		"show",
		"check",
		"status",
		"list",
		"quote",
		"history",
	}

	actionVerbs = []string{
		"buy",
		"sell",
		"swap",
		"transfer",
		"stake",
		"unstake",
		"send",
		"bridge",
		"withdraw",
		"deposit",
		"mint",
		"burn",
	}
)

// Pricing maps tiers to USD prices. Prompts that match no pattern group fall
// back to DefaultTier.
type Pricing struct {
	DefaultTier Tier
	Tiers       map[Tier]float64
}

// NewPricing builds a pricing table from configuration values.
func NewPricing(defaultTier string, tiers map[string]float64) *Pricing {
	table := make(map[Tier]float64, len(tiers))
	for name, price := range tiers {
		table[Tier(name)] = price
	}
	return &Pricing{
		DefaultTier: Tier(defaultTier),
		Tiers:       table,
	}
}

// Classify maps prompt text to a tier. Pure: the same prompt always yields
// the same tier.
func (p *Pricing) Classify(prompt string) Tier {
	text := strings.ToLower(prompt)

	for _, pat := range complexPatterns {
		if strings.Contains(text, pat) {
			return TierComplex
		}
	}

	for _, pat := range basicPatterns {
		if strings.Contains(text, pat) {
			// A read-looking prompt that also asks to act is standard work.
			if containsActionVerb(text) {
				return TierStandard
			}
			return TierBasic
		}
	}

	return p.DefaultTier
}

// Price looks up the USD price for a tier. Unknown tiers fall back to the
// standard price.
func (p *Pricing) Price(tier Tier) float64 {
	if price, ok := p.Tiers[tier]; ok {
		return price
	}
	return p.Tiers[TierStandard]
}

func containsActionVerb(text string) bool {
	for _, verb := range actionVerbs {
		if strings.Contains(text, verb) {
			return true
		}
	}
	return false
}
