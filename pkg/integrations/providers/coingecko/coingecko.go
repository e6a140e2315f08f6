package coingecko

import (
	"encoding/json"
	"fmt"
	"net/http"
	"strings"
	"time"

	"coinwatch/pkg/types/prices"

	"github.com/pkg/errors"
)

var (
	_ prices.QuoteProvider = (*Provider)(nil)
)

// symbol -> CoinGecko coin id for the majors; anything else falls back
// to the lower-cased symbol
var coinIDs = map[string]string{
	"BTC":  "bitcoin",
	"ETH":  "ethereum",
	"BNB":  "binancecoin",
	"SOL":  "solana",
	"XRP":  "ripple",
	"ADA":  "cardano",
	"DOGE": "dogecoin",
	"DOT":  "polkadot",
	"LTC":  "litecoin",
	"TRX":  "tron",
	"AVAX": "avalanche-2",
	"LINK": "chainlink",
}

type Provider struct {
	BaseURL string
	Client  *http.Client
}

func NewProvider() *Provider {
	return &Provider{
		BaseURL: "https://api.coingecko.com/api/v3",
		Client:  &http.Client{Timeout: 10 * time.Second},
	}
}

func coinID(symbol string) string {
	if id, ok := coinIDs[symbol]; ok {
		return id
	}
	return strings.ToLower(symbol)
}

func (p *Provider) Quote(pair prices.Pair) (prices.PricePoint, error) {
	points, err := p.QuoteMany(pair)
	if err != nil {
		return prices.PricePoint{}, err
	}
	point, ok := points[pair]
	if !ok {
		return prices.PricePoint{}, errors.Wrap(prices.ErrInvalidPair, pair.String())
	}
	return point, nil
}

func (p *Provider) QuoteMany(pairs ...prices.Pair) (map[prices.Pair]prices.PricePoint, error) {
	ids := make([]string, 0, len(pairs))
	vsCurrencies := make([]string, 0, len(pairs))
	for _, pair := range pairs {
		ids = append(ids, coinID(pair.Base))
		vsCurrencies = append(vsCurrencies, strings.ToLower(pair.Quote))
	}

	endpoint := fmt.Sprintf("%s/simple/price?ids=%s&vs_currencies=%s&include_last_updated_at=true",
		p.BaseURL,
		strings.Join(ids, ","),
		strings.Join(vsCurrencies, ","),
	)

	resp, err := p.Client.Get(endpoint)
	if err != nil {
		return nil, errors.Wrap(prices.ErrProviderUnavailable, err.Error())
	}
	defer resp.Body.Close()

	if err := checkStatus(resp.StatusCode); err != nil {
		return nil, err
	}

	var result map[string]map[string]float64
	if err := json.NewDecoder(resp.Body).Decode(&result); err != nil {
		return nil, errors.Wrap(prices.ErrProviderUnavailable, "failed to decode response: "+err.Error())
	}

	points := make(map[prices.Pair]prices.PricePoint, len(pairs))
	for _, pair := range pairs {
		quotes, ok := result[coinID(pair.Base)]
		if !ok {
			continue
		}
		value, ok := quotes[strings.ToLower(pair.Quote)]
		if !ok {
			continue
		}

		ts := time.Now()
		if updatedAt, ok := quotes["last_updated_at"]; ok && updatedAt > 0 {
			ts = time.Unix(int64(updatedAt), 0)
		}

		points[pair] = prices.PricePoint{
			Pair:      pair,
			Price:     value,
			Timestamp: ts,
			Source:    prices.SourceCoinGecko,
		}
	}

	return points, nil
}

func (p *Provider) History(pair prices.Pair, from, to time.Time) ([]prices.PricePoint, error) {
	endpoint := fmt.Sprintf("%s/coins/%s/market_chart/range?vs_currency=%s&from=%d&to=%d",
		p.BaseURL,
		coinID(pair.Base),
		strings.ToLower(pair.Quote),
		from.Unix(),
		to.Unix(),
	)

	resp, err := p.Client.Get(endpoint)
	if err != nil {
		return nil, errors.Wrap(prices.ErrProviderUnavailable, err.Error())
	}
	defer resp.Body.Close()

	if resp.StatusCode == http.StatusNotFound {
		return nil, errors.Wrap(prices.ErrInvalidPair, pair.String())
	}
	if err := checkStatus(resp.StatusCode); err != nil {
		return nil, err
	}

	var result struct {
		Prices [][]float64 `json:"prices"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&result); err != nil {
		return nil, errors.Wrap(prices.ErrProviderUnavailable, "failed to decode response: "+err.Error())
	}

	points := make([]prices.PricePoint, 0, len(result.Prices))
	for _, row := range result.Prices {
		if len(row) != 2 {
			continue
		}
		points = append(points, prices.PricePoint{
			Pair:      pair,
			Price:     row[1],
			Timestamp: time.UnixMilli(int64(row[0])),
			Source:    prices.SourceCoinGecko,
		})
	}

	return points, nil
}

func checkStatus(code int) error {
	switch {
	case code == http.StatusOK:
		return nil
	case code == http.StatusTooManyRequests:
		return errors.Wrap(prices.ErrRateLimited, "coingecko throttled the request")
	default:
		return errors.Wrapf(prices.ErrProviderUnavailable, "unexpected status code: %d", code)
	}
}
