package model

import (
	"fmt"
	"strings"

	"github.com/rotisserie/eris"
)

// Error taxonomy for the curation core. ErrProvider is fatal for the whole
// query, ErrJudge is recovered per result, ErrResolution degrades a verdict
// to indeterminate. None of them terminate the process.
var (
	ErrProvider   = eris.New("provider error")
	ErrJudge      = eris.New("judge error")
	ErrResolution = eris.New("resolution error")
)

// ProviderFailure is one provider's reason for not serving a dispatch.
type ProviderFailure struct {
	Provider string `json:"provider"`
	Reason   string `json:"reason"`
}

// DispatchError aggregates per-provider failures after the fallback chain
// is exhausted. It wraps ErrProvider so callers can classify it.
type DispatchError struct {
	Query    string
	Failures []ProviderFailure
}

func (e *DispatchError) Error() string {
	parts := make([]string, 0, len(e.Failures))
	for _, f := range e.Failures {
		parts = append(parts, fmt.Sprintf("%s: %s", f.Provider, f.Reason))
	}
	return fmt.Sprintf("all providers failed for %q: %s", e.Query, strings.Join(parts, "; "))
}

func (e *DispatchError) Unwrap() error {
	return ErrProvider
}
