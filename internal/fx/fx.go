package fx

import (
	"context"
	"fmt"
	"strings"
)

// RateProvider converts tendered currencies into an order's currency. The
// engine only ever multiplies by the returned rate; where the rates come
// from (static table, external feed) is the implementation's business.
type RateProvider interface {
	Rate(ctx context.Context, from string, to string) (float64, error)
}

// Identity only resolves same-currency pairs. It is the default until a real
// rate source is wired in, so foreign tenders are rejected rather than
// silently converted 1:1.
type Identity struct{}

func (Identity) Rate(_ context.Context, from string, to string) (float64, error) {
	if !strings.EqualFold(strings.TrimSpace(from), strings.TrimSpace(to)) {
		return 0, fmt.Errorf("no exchange rate configured for %s/%s", from, to)
	}
	return 1, nil
}

// Static serves rates from a fixed table keyed "FROM/TO". Same-currency
// pairs are always 1 without a table entry.
type Static struct {
	rates map[string]float64
}

func NewStatic(rates map[string]float64) *Static {
	normalized := make(map[string]float64, len(rates))
	for pair, rate := range rates {
		normalized[strings.ToUpper(strings.TrimSpace(pair))] = rate
	}
	return &Static{rates: normalized}
}

func (s *Static) Rate(_ context.Context, from string, to string) (float64, error) {
	from = strings.ToUpper(strings.TrimSpace(from))
	to = strings.ToUpper(strings.TrimSpace(to))
	if from == "" || from == to {
		return 1, nil
	}
	rate, ok := s.rates[from+"/"+to]
	if !ok || rate <= 0 {
		return 0, fmt.Errorf("no exchange rate configured for %s/%s", from, to)
	}
	return rate, nil
}
