package binance

import (
	"encoding/json"
	"fmt"
	"net/http"
	"strconv"
	"time"

	"coinwatch/pkg/types/prices"

	"github.com/pkg/errors"
)

var (
	_ prices.QuoteProvider = (*Provider)(nil)
)

type Provider struct {
	BaseURL string
	Client  *http.Client
}

func NewProvider() *Provider {
	return &Provider{
		BaseURL: "https://api.binance.com/api/v3",
		Client:  &http.Client{Timeout: 10 * time.Second},
	}
}

// Binance has no plain USD markets; USD quotes map to the USDT book.
func symbol(pair prices.Pair) string {
	quote := pair.Quote
	if quote == "USD" {
		quote = "USDT"
	}
	return pair.Base + quote
}

func (p *Provider) Quote(pair prices.Pair) (prices.PricePoint, error) {
	endpoint := fmt.Sprintf("%s/ticker/price?symbol=%s", p.BaseURL, symbol(pair))

	resp, err := p.Client.Get(endpoint)
	if err != nil {
		return prices.PricePoint{}, errors.Wrap(prices.ErrProviderUnavailable, err.Error())
	}
	defer resp.Body.Close()

	if resp.StatusCode == http.StatusBadRequest {
		return prices.PricePoint{}, errors.Wrap(prices.ErrInvalidPair, pair.String())
	}
	if err := checkStatus(resp.StatusCode); err != nil {
		return prices.PricePoint{}, err
	}

	var result struct {
		Symbol string `json:"symbol"`
		Price  string `json:"price"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&result); err != nil {
		return prices.PricePoint{}, errors.Wrap(prices.ErrProviderUnavailable, "failed to decode response: "+err.Error())
	}

	value, err := strconv.ParseFloat(result.Price, 64)
	if err != nil {
		return prices.PricePoint{}, errors.Wrap(prices.ErrProviderUnavailable, "invalid price format: "+result.Price)
	}

	return prices.PricePoint{
		Pair:      pair,
		Price:     value,
		Timestamp: time.Now(),
		Source:    prices.SourceBinance,
	}, nil
}

func (p *Provider) QuoteMany(pairs ...prices.Pair) (map[prices.Pair]prices.PricePoint, error) {
	endpoint := fmt.Sprintf("%s/ticker/price", p.BaseURL)

	resp, err := p.Client.Get(endpoint)
	if err != nil {
		return nil, errors.Wrap(prices.ErrProviderUnavailable, err.Error())
	}
	defer resp.Body.Close()

	if err := checkStatus(resp.StatusCode); err != nil {
		return nil, err
	}

	var results []struct {
		Symbol string `json:"symbol"`
		Price  string `json:"price"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&results); err != nil {
		return nil, errors.Wrap(prices.ErrProviderUnavailable, "failed to decode response: "+err.Error())
	}

	bySymbol := make(map[string]float64, len(results))
	for _, result := range results {
		value, err := strconv.ParseFloat(result.Price, 64)
		if err != nil {
			continue
		}
		bySymbol[result.Symbol] = value
	}

	now := time.Now()
	points := make(map[prices.Pair]prices.PricePoint, len(pairs))
	for _, pair := range pairs {
		value, ok := bySymbol[symbol(pair)]
		if !ok {
			continue
		}
		points[pair] = prices.PricePoint{
			Pair:      pair,
			Price:     value,
			Timestamp: now,
			Source:    prices.SourceBinance,
		}
	}

	return points, nil
}

func (p *Provider) History(pair prices.Pair, from, to time.Time) ([]prices.PricePoint, error) {
	endpoint := fmt.Sprintf("%s/klines?symbol=%s&interval=1h&startTime=%d&endTime=%d",
		p.BaseURL, symbol(pair), from.UnixMilli(), to.UnixMilli())

	resp, err := p.Client.Get(endpoint)
	if err != nil {
		return nil, errors.Wrap(prices.ErrProviderUnavailable, err.Error())
	}
	defer resp.Body.Close()

	if resp.StatusCode == http.StatusBadRequest {
		return nil, errors.Wrap(prices.ErrInvalidPair, pair.String())
	}
	if err := checkStatus(resp.StatusCode); err != nil {
		return nil, err
	}

	// kline rows are [openTime, open, high, low, close, ...]
	var rows [][]json.RawMessage
	if err := json.NewDecoder(resp.Body).Decode(&rows); err != nil {
		return nil, errors.Wrap(prices.ErrProviderUnavailable, "failed to decode response: "+err.Error())
	}

	points := make([]prices.PricePoint, 0, len(rows))
	for _, row := range rows {
		if len(row) < 5 {
			continue
		}
		var openTime int64
		if err := json.Unmarshal(row[0], &openTime); err != nil {
			continue
		}
		var closeStr string
		if err := json.Unmarshal(row[4], &closeStr); err != nil {
			continue
		}
		value, err := strconv.ParseFloat(closeStr, 64)
		if err != nil {
			continue
		}
		points = append(points, prices.PricePoint{
			Pair:      pair,
			Price:     value,
			Timestamp: time.UnixMilli(openTime),
			Source:    prices.SourceBinance,
		})
	}

	return points, nil
}

func checkStatus(code int) error {
	switch code {
	case http.StatusOK:
		return nil
	case http.StatusTooManyRequests, http.StatusTeapot:
		// 418 is Binance's auto-ban response for clients that keep
		// hammering after a 429
		return errors.Wrap(prices.ErrRateLimited, "binance throttled the request")
	default:
		return errors.Wrapf(prices.ErrProviderUnavailable, "unexpected status code: %d", code)
	}
}
