package pairs

import (
	"strings"

	"coinwatch/pkg/types/prices"

	"github.com/pkg/errors"
)

// quote currencies accepted by the tracked providers
var knownQuotes = map[string]struct{}{
	"USD": {},
	"EUR": {},
	"GBP": {},
	"JPY": {},
	"TRY": {},
	"BRL": {},
	"AUD": {},
	"PLN": {},
	"UAH": {},
	"ZAR": {},
	"MXN": {},
	"USDT": {},
	"USDC": {},
}

// Parse converts "btc-usd" or "BTC/USD" into a canonical pair.
func Parse(s string) (prices.Pair, error) {
	s = strings.ToUpper(strings.TrimSpace(s))
	sep := "-"
	if strings.Contains(s, "/") {
		sep = "/"
	}

	parts := strings.Split(s, sep)
	if len(parts) != 2 {
		return prices.Pair{}, errors.Wrap(prices.ErrInvalidPair, s)
	}

	pair := prices.Pair{Base: parts[0], Quote: parts[1]}
	if err := Validate(pair); err != nil {
		return prices.Pair{}, err
	}
	return pair, nil
}

// New builds a canonical pair from raw base and quote symbols.
func New(base, quote string) (prices.Pair, error) {
	pair := prices.Pair{
		Base:  strings.ToUpper(strings.TrimSpace(base)),
		Quote: strings.ToUpper(strings.TrimSpace(quote)),
	}
	if err := Validate(pair); err != nil {
		return prices.Pair{}, err
	}
	return pair, nil
}

func Validate(pair prices.Pair) error {
	switch {
	case pair.Base == "":
		return errors.Wrap(prices.ErrInvalidPair, "base symbol cannot be empty")
	case pair.Quote == "":
		return errors.Wrap(prices.ErrInvalidPair, "quote symbol cannot be empty")
	case pair.Base != strings.ToUpper(pair.Base):
		return errors.Wrap(prices.ErrInvalidPair, "base symbol must be upper-case: "+pair.Base)
	case pair.Base == pair.Quote:
		return errors.Wrap(prices.ErrInvalidPair, "base and quote must differ: "+pair.String())
	}
	if _, ok := knownQuotes[pair.Quote]; !ok {
		return errors.Wrap(prices.ErrInvalidPair, "unsupported quote currency: "+pair.Quote)
	}
	return nil
}

// Dedupe keeps the first occurrence of each pair, preserving order.
func Dedupe(list []prices.Pair) []prices.Pair {
	seen := make(map[prices.Pair]struct{}, len(list))
	out := make([]prices.Pair, 0, len(list))
	for _, p := range list {
		if _, ok := seen[p]; ok {
			continue
		}
		seen[p] = struct{}{}
		out = append(out, p)
	}
	return out
}
