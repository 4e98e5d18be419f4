package topup

import (
	"strings"

	"github.com/alovak/topup-playground/internal/failure"
)

// DefaultReversalProviders may be reversed automatically.
var DefaultReversalProviders = []string{"CLARO", "MOVISTAR", "CNT", "TUENTI"}

// ReversalPolicy decides whether a failed send gets a compensating reversal.
type ReversalPolicy interface {
	Eligible(provider string, kind failure.Kind) bool
}

// ProviderPolicy reverses timeouts for allow-listed providers only. Any
// other failure kind tells us the charge was not applied.
type ProviderPolicy struct {
	providers map[string]struct{}
}

func NewProviderPolicy(providers []string) *ProviderPolicy {
	p := &ProviderPolicy{providers: make(map[string]struct{}, len(providers))}
	for _, name := range providers {
		name = strings.ToUpper(strings.TrimSpace(name))
		if name != "" {
			p.providers[name] = struct{}{}
		}
	}
	return p
}

func (p *ProviderPolicy) Eligible(provider string, kind failure.Kind) bool {
	if kind != failure.KindTimeout {
		return false
	}
	_, ok := p.providers[strings.ToUpper(strings.TrimSpace(provider))]
	return ok
}
