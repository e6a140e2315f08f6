package sink

import (
	"context"

	"coinwatch/pkg/types/prices"
)

// Sink receives every successfully refreshed price point, e.g. for
// publishing snapshots to an external store.
type Sink interface {
	Record(ctx context.Context, point prices.PricePoint) error
}
