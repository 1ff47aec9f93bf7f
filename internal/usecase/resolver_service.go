package usecase

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/rs/zerolog"
	"golang.org/x/sync/errgroup"

	"github.com/oakley-grocery/backend/internal/domain"
	"github.com/oakley-grocery/backend/internal/metrics"
)

// ResolverConfig holds the resolution thresholds and limits
type ResolverConfig struct {
	AutoResolveMinScore float64
	AutoResolveGap      float64
	FuzzyMatchThreshold float64
	SearchPageSize      int
	MaxCandidates       int
	BatchConcurrency    int
}

// DefaultResolverConfig returns the production thresholds
func DefaultResolverConfig() ResolverConfig {
	return ResolverConfig{
		AutoResolveMinScore: 0.4,
		AutoResolveGap:      0.1,
		FuzzyMatchThreshold: 0.6,
		SearchPageSize:      10,
		MaxCandidates:       5,
		BatchConcurrency:    4,
	}
}

// ResolverService maps generic grocery items to concrete products, first
// from learned preferences and otherwise by searching and ranking the
// provider's catalogue.
type ResolverService struct {
	prefs    domain.PreferenceRepository
	provider domain.ProductProvider
	cfg      ResolverConfig
	log      zerolog.Logger
}

// NewResolverService creates a resolver. Zero config fields take their defaults.
func NewResolverService(
	prefs domain.PreferenceRepository,
	provider domain.ProductProvider,
	config ResolverConfig,
	log zerolog.Logger,
) *ResolverService {
	def := DefaultResolverConfig()
	if config.AutoResolveMinScore <= 0 {
		config.AutoResolveMinScore = def.AutoResolveMinScore
	}
	if config.AutoResolveGap <= 0 {
		config.AutoResolveGap = def.AutoResolveGap
	}
	if config.FuzzyMatchThreshold <= 0 {
		config.FuzzyMatchThreshold = def.FuzzyMatchThreshold
	}
	if config.SearchPageSize <= 0 {
		config.SearchPageSize = def.SearchPageSize
	}
	if config.MaxCandidates <= 0 {
		config.MaxCandidates = def.MaxCandidates
	}
	if config.BatchConcurrency <= 0 {
		config.BatchConcurrency = def.BatchConcurrency
	}

	return &ResolverService{
		prefs:    prefs,
		provider: provider,
		cfg:      config,
		log:      log.With().Str("component", "resolver").Logger(),
	}
}

// Resolve maps one generic item to a product.
// Flow: exact preference -> fuzzy preference -> provider search -> rank -> gate.
//
// Provider failures and empty searches yield an Unresolved outcome with no
// candidates. Only preference store failures are returned as errors.
func (s *ResolverService) Resolve(ctx context.Context, req domain.ResolveRequest) (*domain.ResolutionResult, error) {
	generic := domain.NormalizeGenericName(req.GenericName)
	if generic == "" {
		return nil, fmt.Errorf("%w: generic name is required", domain.ErrInvalidRequest)
	}

	quantity := req.Quantity
	if quantity <= 0 {
		quantity = 1
	}

	start := time.Now()
	outcome, err := s.resolve(ctx, generic, req)
	if err != nil {
		return nil, err
	}
	metrics.ResolutionDuration.Observe(time.Since(start).Seconds())

	result := &domain.ResolutionResult{
		GenericName: generic,
		Quantity:    quantity,
		Outcome:     outcome,
	}
	metrics.ResolutionsTotal.WithLabelValues(string(result.Source())).Inc()

	s.log.Info().
		Str("generic_name", generic).
		Str("source", string(result.Source())).
		Int("candidates", len(result.Candidates())).
		Dur("took", time.Since(start)).
		Msg("item resolved")

	return result, nil
}

func (s *ResolverService) resolve(ctx context.Context, generic string, req domain.ResolveRequest) (domain.Outcome, error) {
	// 1. exact preference
	pref, err := s.prefs.Get(ctx, generic)
	switch {
	case err == nil:
		return domain.Resolved{Product: pref.Product(), Source: domain.SourcePreference}, nil
	case !errors.Is(err, domain.ErrPreferenceNotFound):
		return nil, fmt.Errorf("failed to look up preference: %w", err)
	}

	// 2. fuzzy preference, first hit in most-used order
	all, err := s.prefs.List(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to list preferences: %w", err)
	}
	queryTokens := tokenize(generic)
	for i := range all {
		overlap := jaccard(queryTokens, tokenize(all[i].GenericName))
		if overlap+scoreEpsilon >= s.cfg.FuzzyMatchThreshold {
			s.log.Debug().
				Str("generic_name", generic).
				Str("matched", all[i].GenericName).
				Float64("overlap", overlap).
				Msg("fuzzy preference match")
			return domain.Resolved{Product: all[i].Product(), Source: domain.SourcePreference}, nil
		}
	}

	// 3. provider search
	query := domain.SearchQuery{
		Query:    buildSearchQuery(generic, req.PreferBrand, req.PreferSize),
		Page:     1,
		PageSize: s.cfg.SearchPageSize,
		Sort:     domain.SortRelevance,
	}
	candidates, err := s.provider.Search(ctx, query)
	if err != nil {
		s.log.Warn().Err(err).Str("query", query.Query).Msg("provider search failed")
		return domain.Unresolved{}, nil
	}
	if len(candidates) == 0 {
		return domain.Unresolved{}, nil
	}

	// 4. score and rank
	history, err := s.history(ctx, generic)
	if err != nil {
		return nil, err
	}
	hints := ScoreHints{PreferBrand: req.PreferBrand, PreferSize: req.PreferSize}
	ranked := rankCandidates(candidates, generic, hints, history)

	if s.log.Debug().Enabled() {
		for _, c := range ranked {
			s.log.Debug().Int64("code", c.Code).Str("name", c.Name).Float64("score", c.Score).Msg("candidate scored")
		}
	}

	// 5. confidence gate
	shortlist := ranked
	if len(shortlist) > s.cfg.MaxCandidates {
		shortlist = shortlist[:s.cfg.MaxCandidates]
	}
	if shouldAutoResolve(ranked, s.cfg.AutoResolveMinScore, s.cfg.AutoResolveGap) {
		return domain.Resolved{
			Product:    ranked[0].CandidateProduct,
			Source:     domain.SourceSearch,
			Candidates: shortlist,
		}, nil
	}
	return domain.Unresolved{Candidates: shortlist}, nil
}

// history reads the stored preference used for the purchase-history bonus
func (s *ResolverService) history(ctx context.Context, generic string) (*domain.Preference, error) {
	pref, err := s.prefs.Get(ctx, generic)
	if errors.Is(err, domain.ErrPreferenceNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to look up purchase history: %w", err)
	}
	return pref, nil
}

// ResolveBatch resolves every request independently, returning one result
// per request in input order. An item whose resolution fails gets an empty
// Unresolved result and its error is joined into the returned error; the
// other items are unaffected.
func (s *ResolverService) ResolveBatch(ctx context.Context, reqs []domain.ResolveRequest) ([]*domain.ResolutionResult, error) {
	results := make([]*domain.ResolutionResult, len(reqs))
	errs := make([]error, len(reqs))

	var g errgroup.Group
	g.SetLimit(s.cfg.BatchConcurrency)

	for i, req := range reqs {
		g.Go(func() error {
			res, err := s.Resolve(ctx, req)
			if err != nil {
				errs[i] = fmt.Errorf("item %d (%q): %w", i, req.GenericName, err)
				quantity := req.Quantity
				if quantity <= 0 {
					quantity = 1
				}
				res = &domain.ResolutionResult{
					GenericName: domain.NormalizeGenericName(req.GenericName),
					Quantity:    quantity,
					Outcome:     domain.Unresolved{},
				}
			}
			results[i] = res
			return nil
		})
	}
	_ = g.Wait()

	return results, errors.Join(errs...)
}

// LearnPreference records a confirmed product choice for a generic name so
// later resolutions hit it directly.
func (s *ResolverService) LearnPreference(ctx context.Context, input domain.PreferenceInput) (uint, error) {
	if domain.NormalizeGenericName(input.GenericName) == "" || input.ProductCode <= 0 || input.ProductName == "" {
		return 0, domain.ErrInvalidRequest
	}

	id, err := s.prefs.Save(ctx, input)
	if err != nil {
		return 0, err
	}

	s.log.Info().
		Str("generic_name", domain.NormalizeGenericName(input.GenericName)).
		Int64("product_code", input.ProductCode).
		Uint("id", id).
		Msg("preference learned")
	return id, nil
}

// GetPreference returns the stored preference for a generic name
func (s *ResolverService) GetPreference(ctx context.Context, genericName string) (*domain.Preference, error) {
	if domain.NormalizeGenericName(genericName) == "" {
		return nil, domain.ErrInvalidRequest
	}
	return s.prefs.Get(ctx, genericName)
}

// ListPreferences returns every preference, most used first
func (s *ResolverService) ListPreferences(ctx context.Context) ([]domain.Preference, error) {
	return s.prefs.List(ctx)
}

// SearchPreferences returns preferences whose generic name contains
// substring. A blank substring lists everything.
func (s *ResolverService) SearchPreferences(ctx context.Context, substring string) ([]domain.Preference, error) {
	if domain.NormalizeGenericName(substring) == "" {
		return s.prefs.List(ctx)
	}
	return s.prefs.Search(ctx, substring)
}

// DeletePreference forgets a generic name and reports whether it was known
func (s *ResolverService) DeletePreference(ctx context.Context, genericName string) (bool, error) {
	if domain.NormalizeGenericName(genericName) == "" {
		return false, domain.ErrInvalidRequest
	}

	deleted, err := s.prefs.Delete(ctx, genericName)
	if err != nil {
		return false, err
	}
	if deleted {
		s.log.Info().Str("generic_name", domain.NormalizeGenericName(genericName)).Msg("preference deleted")
	}
	return deleted, nil
}

// ProductDetails returns a single product from the provider
func (s *ResolverService) ProductDetails(ctx context.Context, code int64) (*domain.CandidateProduct, error) {
	if code <= 0 {
		return nil, domain.ErrInvalidRequest
	}
	return s.provider.GetDetails(ctx, code)
}

// Specials returns one page of products currently on special
func (s *ResolverService) Specials(ctx context.Context, page, pageSize int) ([]domain.CandidateProduct, error) {
	if page < 0 || pageSize < 0 {
		return nil, domain.ErrInvalidRequest
	}
	return s.provider.Specials(ctx, page, pageSize)
}
