package fx

import (
	"context"
	"fmt"
	"math"

	pkgerrors "github.com/mkasongo/kembo-wallet/pkg/errors"
)

// RateMicrosIdentity is the stored rate for same-currency operations.
const RateMicrosIdentity int64 = 1_000_000

// Converter turns an amount in one currency into another. Amounts are
// integers in minor units; the effective from→to rate is reported in
// micro-units for the ledger.
type Converter struct {
	source RateSource
}

func NewConverter(source RateSource) *Converter {
	return &Converter{source: source}
}

// Convert maps amount from one currency to the other via the canonical
// base. Same-currency calls short-circuit without touching the rate
// source. A rate failure aborts the caller: never guess a rate.
func (c *Converter) Convert(ctx context.Context, amount int64, from, to string) (int64, int64, error) {
	if amount < 0 {
		return 0, 0, fmt.Errorf("%w: amount must not be negative", pkgerrors.ErrInvalidArgument)
	}
	if from == to {
		return amount, RateMicrosIdentity, nil
	}

	fromRate, err := c.source.Rate(ctx, from)
	if err != nil {
		return 0, 0, err
	}
	toRate, err := c.source.Rate(ctx, to)
	if err != nil {
		return 0, 0, err
	}
	if fromRate <= 0 || toRate <= 0 {
		return 0, 0, fmt.Errorf("%w: non-positive rate", pkgerrors.ErrRateUnavailable)
	}

	effective := toRate / fromRate
	converted := int64(math.Round(float64(amount) * effective))
	rateMicros := int64(math.Round(effective * float64(RateMicrosIdentity)))
	return converted, rateMicros, nil
}
