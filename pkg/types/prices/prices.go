package prices

import (
	"time"

	"github.com/pkg/errors"
)

const (
	SourceCoinGecko = "coingecko"
	SourceBinance   = "binance"
)

var (
	ErrProviderUnavailable = errors.New("price provider unavailable")
	ErrRateLimited         = errors.New("price provider rate limited")
	ErrInvalidPair         = errors.New("unsupported symbol pair")
)

// Pair is a (base crypto, quote fiat) tuple, e.g. BTC-USD.
type Pair struct {
	Base  string `json:"base"`
	Quote string `json:"quote"`
}

func (p Pair) String() string {
	return p.Base + "-" + p.Quote
}

// PricePoint is immutable once created.
type PricePoint struct {
	Pair      Pair      `json:"pair"`
	Price     float64   `json:"price"`
	Timestamp time.Time `json:"timestamp"`
	Source    string    `json:"source,omitempty"`
}

type QuoteProvider interface {
	Quote(pair Pair) (PricePoint, error)
	QuoteMany(pairs ...Pair) (map[Pair]PricePoint, error)
	History(pair Pair, from, to time.Time) ([]PricePoint, error)
}

var (
	SamplePair  = Pair{Base: "BTC", Quote: "USD"}
	SamplePairs = []Pair{
		{Base: "BTC", Quote: "USD"},
		{Base: "ETH", Quote: "USD"},
	}
)
