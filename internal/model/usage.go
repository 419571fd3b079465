package model

// ProviderUsage tracks one provider's calls against its free tier for a
// billing period. Process-wide state; reset only by an explicit
// administrative action.
type ProviderUsage struct {
	Provider    string  `json:"provider"`
	Period      string  `json:"period"` // YYYY-MM
	CallsMade   int     `json:"calls_made"`
	FreeCeiling int     `json:"free_ceiling"`
	PerCallUSD  float64 `json:"per_call_usd"`
	Failures    int     `json:"failures"`
}

// Remaining returns how many no-cost calls are left this period.
func (u ProviderUsage) Remaining() int {
	r := u.FreeCeiling - u.CallsMade
	if r < 0 {
		return 0
	}
	return r
}

// CostUSD is the accrued charge: only calls beyond the free ceiling bill.
func (u ProviderUsage) CostUSD() float64 {
	over := u.CallsMade - u.FreeCeiling
	if over <= 0 {
		return 0
	}
	return float64(over) * u.PerCallUSD
}
