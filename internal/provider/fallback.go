package provider

import (
	"context"

	"github.com/rs/zerolog/log"

	"github.com/nzpropertytax/MaxPayroll.SiteEvaluator-sub000/internal/models"
)

// LookupFunc is the shape shared by every single-payload lookup.
type LookupFunc[T any] func(ctx context.Context, q Query) (*T, models.Source, error)

// WithFallback runs primary and, if it fails, answers from estimate instead.
// Adapters use it to serve a static or estimated answer before giving up; the
// orchestrator never falls back on its own. Cancellation is not masked: if ctx is
// done the primary error is returned as is.
func WithFallback[T any](providerName string, primary LookupFunc[T], estimate func(q Query) (*T, models.Source)) LookupFunc[T] {
	return func(ctx context.Context, q Query) (*T, models.Source, error) {
		data, src, err := primary(ctx, q)
		if err == nil || estimate == nil || ctx.Err() != nil {
			return data, src, err
		}

		fallback, fbSrc := estimate(q)
		if fallback == nil {
			return nil, src, err
		}
		log.Warn().
			Err(err).
			Str("provider", providerName).
			Msg("provider: primary lookup failed, using estimate")
		if fbSrc.Notes == "" {
			fbSrc.Notes = "estimated: primary lookup failed"
		}
		return fallback, fbSrc, nil
	}
}
