package service

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"

	"github.com/nzpropertytax/MaxPayroll.SiteEvaluator-sub000/internal/models"
	"github.com/nzpropertytax/MaxPayroll.SiteEvaluator-sub000/internal/provider"
	"github.com/nzpropertytax/MaxPayroll.SiteEvaluator-sub000/internal/repository"
)

// TitleRepository finds the address registered against a title.
type TitleRepository interface {
	FindAddressByTitle(ctx context.Context, titleReference string) (*models.AddressPoint, error)
}

// TitleRecord is what the title registry knows about a title. Address has no
// coordinates when the title was only found in a title provider.
type TitleRecord struct {
	Address models.AddressPoint
	Land    *models.LandData
	Source  models.Source
}

// TitleService answers title lookups from the address register first and then
// from the registered title providers.
type TitleService struct {
	repo      TitleRepository
	providers []provider.TitleLookup
	timeout   time.Duration
	logger    zerolog.Logger
}

// NewTitleService creates a title service. Title providers are taken from the
// registry in registration order; region is ignored because a bare title has no
// coordinates to dispatch on.
func NewTitleService(repo TitleRepository, registry *provider.Registry, timeout time.Duration) *TitleService {
	s := &TitleService{
		repo:    repo,
		timeout: timeout,
		logger:  log.With().Str("component", "titles").Logger(),
	}
	if registry != nil {
		for _, p := range registry.All() {
			if t, ok := p.(provider.TitleLookup); ok {
				s.providers = append(s.providers, t)
			}
		}
	}
	return s
}

// LookupTitle resolves a title reference.
func (s *TitleService) LookupTitle(ctx context.Context, titleReference string) (*TitleRecord, error) {
	titleReference = strings.TrimSpace(titleReference)
	if titleReference == "" {
		return nil, fmt.Errorf("%w: title reference cannot be empty", ErrInvalidInput)
	}

	point, err := s.repo.FindAddressByTitle(ctx, titleReference)
	switch {
	case err == nil:
		return &TitleRecord{Address: *point}, nil
	case !errors.Is(err, repository.ErrNotFound):
		return nil, fmt.Errorf("service: failed to find title %s: %w", titleReference, err)
	}

	for _, p := range s.providers {
		record, err := s.fromProvider(ctx, p, titleReference)
		if err != nil {
			if ctx.Err() != nil {
				return nil, ctx.Err()
			}
			s.logger.Warn().
				Err(err).
				Str("provider", p.Name()).
				Str("error_category", string(provider.Categorize(err))).
				Msg("title lookup failed")
			continue
		}
		if record != nil {
			return record, nil
		}
	}
	return nil, fmt.Errorf("%w: title %s", ErrNotFound, titleReference)
}

func (s *TitleService) fromProvider(ctx context.Context, p provider.TitleLookup, titleReference string) (*TitleRecord, error) {
	if s.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, s.timeout)
		defer cancel()
	}

	land, src, err := callProvider(p.Name(), func() (*models.LandData, models.Source, error) {
		return p.LookupTitle(ctx, provider.Query{TitleReference: titleReference})
	})
	if err != nil || land == nil {
		return nil, err
	}
	if land.TitleReference == "" {
		land.TitleReference = titleReference
	}
	return &TitleRecord{
		Address: models.AddressPoint{
			TitleReference:   land.TitleReference,
			LegalDescription: land.LegalDescription,
		},
		Land:   land,
		Source: src,
	}, nil
}
