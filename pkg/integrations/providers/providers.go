package providers

import (
	"fmt"
	"time"

	"coinwatch/pkg/integrations/providers/binance"
	"coinwatch/pkg/integrations/providers/coingecko"
	"coinwatch/pkg/types/prices"

	"github.com/pkg/errors"
)

var (
	_ prices.QuoteProvider = (*Service)(nil)
)

// Service chains the individual providers, trying each in order until one
// answers.
type Service struct {
	chain []prices.QuoteProvider
}

func NewService() *Service {
	return &Service{
		chain: []prices.QuoteProvider{
			binance.NewProvider(),
			coingecko.NewProvider(),
		},
	}
}

// NewServiceWith builds a chain from explicit providers, mainly for tests.
func NewServiceWith(chain ...prices.QuoteProvider) *Service {
	return &Service{chain: chain}
}

func (s *Service) Quote(pair prices.Pair) (prices.PricePoint, error) {
	errs := make([]error, 0, len(s.chain))
	for _, provider := range s.chain {
		point, err := provider.Quote(pair)
		if err == nil {
			return point, nil
		}
		errs = append(errs, err)
	}
	return prices.PricePoint{}, classify(errs)
}

// QuoteMany returns every pair that any provider in the chain could quote.
// It fails only when no pair could be resolved at all.
func (s *Service) QuoteMany(pairs ...prices.Pair) (map[prices.Pair]prices.PricePoint, error) {
	points := make(map[prices.Pair]prices.PricePoint, len(pairs))
	errs := make([]error, 0)

	remaining := pairs
	for _, provider := range s.chain {
		if len(remaining) == 0 {
			break
		}
		resolved, err := provider.QuoteMany(remaining...)
		if err != nil {
			errs = append(errs, err)
			continue
		}
		missing := make([]prices.Pair, 0)
		for _, pair := range remaining {
			if point, ok := resolved[pair]; ok {
				points[pair] = point
			} else {
				missing = append(missing, pair)
			}
		}
		remaining = missing
	}

	if len(points) == 0 && len(errs) > 0 {
		return nil, classify(errs)
	}
	return points, nil
}

func (s *Service) History(pair prices.Pair, from, to time.Time) ([]prices.PricePoint, error) {
	errs := make([]error, 0, len(s.chain))
	for _, provider := range s.chain {
		points, err := provider.History(pair, from, to)
		if err == nil {
			return points, nil
		}
		errs = append(errs, err)
	}
	return nil, classify(errs)
}

// classify collapses per-provider failures into a single sentinel: rate
// limiting wins so callers back off, a pair no provider knows is invalid,
// anything else means the providers are unreachable.
func classify(errs []error) error {
	rateLimited := false
	allInvalid := len(errs) > 0

	msg := ""
	for i, err := range errs {
		if errors.Is(err, prices.ErrRateLimited) {
			rateLimited = true
		}
		if !errors.Is(err, prices.ErrInvalidPair) {
			allInvalid = false
		}
		if i > 0 {
			msg += "; "
		}
		msg += err.Error()
	}

	switch {
	case allInvalid:
		return fmt.Errorf("%w: %s", prices.ErrInvalidPair, msg)
	case rateLimited:
		return fmt.Errorf("%w: %s", prices.ErrRateLimited, msg)
	default:
		return fmt.Errorf("%w: %s", prices.ErrProviderUnavailable, msg)
	}
}
