package model

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestProviderUsage_CostUSD(t *testing.T) {
	tests := []struct {
		name    string
		calls   int
		ceiling int
		price   float64
		want    float64
	}{
		{"under free tier", 50, 100, 0.005, 0},
		{"exactly at ceiling", 100, 100, 0.005, 0},
		{"over ceiling", 130, 100, 0.005, 0.15},
		{"zero ceiling bills everything", 10, 0, 0.01, 0.10},
		{"no calls", 0, 100, 0.005, 0},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			u := ProviderUsage{CallsMade: tt.calls, FreeCeiling: tt.ceiling, PerCallUSD: tt.price}
			assert.InDelta(t, tt.want, u.CostUSD(), 1e-9)
		})
	}
}

func TestProviderUsage_Remaining(t *testing.T) {
	assert.Equal(t, 40, ProviderUsage{CallsMade: 60, FreeCeiling: 100}.Remaining())
	assert.Equal(t, 0, ProviderUsage{CallsMade: 120, FreeCeiling: 100}.Remaining())
}

func TestPatternEntry_SuccessRate(t *testing.T) {
	assert.Equal(t, 0.0, PatternEntry{}.SuccessRate())
	assert.InDelta(t, 0.9, PatternEntry{UsageCount: 10, SuccessCount: 9}.SuccessRate(), 1e-9)
}

func TestDispatchError_Message(t *testing.T) {
	err := &DispatchError{
		Query: "matematika kelas 1",
		Failures: []ProviderFailure{
			{Provider: "serper", Reason: "quota exhausted"},
			{Provider: "brave", Reason: "status 503"},
		},
	}
	assert.Contains(t, err.Error(), "serper: quota exhausted")
	assert.Contains(t, err.Error(), "brave: status 503")
	assert.ErrorIs(t, err, ErrProvider)
}
