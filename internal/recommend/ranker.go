// cinelingua-service/internal/recommend/ranker.go
package recommend

import (
	"cmp"
	"context"
	"fmt"
	"log/slog"
	"slices"
	"time"

	"cinelingua-service/internal/domain"
	"cinelingua-service/internal/filter"
	"cinelingua-service/internal/metrics"
)

// Catalog - часть хранилища каталога, нужная ранжировщику.
type Catalog interface {
	Query(ctx context.Context, spec filter.Spec, order domain.SortMode, limit, offset int) ([]domain.Movie, int, error)
	GetByIDs(ctx context.Context, ids []string) ([]domain.Movie, error)
}

// PoolConfig задает размер пула кандидатов перед персональным ранжированием:
// max(Floor, Multiplier * requested).
type PoolConfig struct {
	Floor      int `koanf:"floor"`
	Multiplier int `koanf:"multiplier"`
}

// DefaultPool - размер пула кандидатов по умолчанию.
var DefaultPool = PoolConfig{Floor: 200, Multiplier: 8}

// Size возвращает размер пула для запроса n результатов.
func (c PoolConfig) Size(n int) int {
	return max(c.Floor, c.Multiplier*n)
}

// RankRequest - запрос одной ранжированной страницы.
type RankRequest struct {
	Spec        filter.Spec
	Mode        domain.SortMode
	FavoriteIDs []string
}

// RankResult - ранжированная страница. Mode - фактически примененный порядок; он
// отличается от запрошенного, если персонализация откатилась к популярности.
type RankResult struct {
	Movies []domain.Movie
	Total  int
	Mode   domain.SortMode
}

// Ranker упорядочивает результаты каталога, при запросе - персонально.
type Ranker struct {
	catalog Catalog
	scorer  Scorer
	pool    PoolConfig
	logger  *slog.Logger
	metrics *metrics.Metrics
}

// NewRanker создает Ranker. Нулевые настройки пула означают DefaultPool.
func NewRanker(catalog Catalog, scorer Scorer, pool PoolConfig, logger *slog.Logger, m *metrics.Metrics) *Ranker {
	if pool.Floor <= 0 {
		pool.Floor = DefaultPool.Floor
	}
	if pool.Multiplier <= 0 {
		pool.Multiplier = DefaultPool.Multiplier
	}
	w := scorer.Weights()
	logger.Info("Ranker configured",
		slog.Int("pool_floor", pool.Floor), slog.Int("pool_multiplier", pool.Multiplier),
		slog.Float64("w_genre", w.Genre), slog.Float64("w_year", w.Year), slog.Float64("w_rating", w.Rating),
		slog.Float64("w_runtime", w.Runtime), slog.Float64("w_popularity", w.Popularity))
	return &Ranker{catalog: catalog, scorer: scorer, pool: pool, logger: logger, metrics: m}
}

// Rank возвращает страницу req.Spec (Limit, Offset) в запрошенном порядке.
func (r *Ranker) Rank(ctx context.Context, req RankRequest) (RankResult, error) {
	start := time.Now()
	mode := req.Mode
	if mode == "" {
		mode = domain.SortPopularity
	}

	var (
		res RankResult
		err error
	)
	if mode == domain.SortPersonalized {
		res, err = r.personalized(ctx, req)
	} else {
		res, err = r.delegated(ctx, req.Spec, mode)
	}
	if err != nil {
		return RankResult{}, err
	}
	r.metrics.ObserveRank(string(res.Mode), time.Since(start))
	return res, nil
}

// delegated оставляет сортировку каталогу.
func (r *Ranker) delegated(ctx context.Context, spec filter.Spec, mode domain.SortMode) (RankResult, error) {
	movies, total, err := r.catalog.Query(ctx, spec, mode, spec.Limit, spec.Offset)
	if err != nil {
		return RankResult{}, fmt.Errorf("failed to query catalog: %w", err)
	}
	if len(movies) > spec.Limit {
		movies = movies[:spec.Limit]
	}
	return RankResult{Movies: movies, Total: total, Mode: mode}, nil
}

func (r *Ranker) personalized(ctx context.Context, req RankRequest) (RankResult, error) {
	if len(req.FavoriteIDs) == 0 {
		return r.fallback(ctx, req.Spec, "no favorites supplied")
	}

	favorites, err := r.catalog.GetByIDs(ctx, req.FavoriteIDs)
	if err != nil {
		return RankResult{}, fmt.Errorf("failed to resolve favorites: %w", err)
	}
	profile, ok := BuildProfile(favorites)
	if !ok {
		return r.fallback(ctx, req.Spec, "no favorite resolved")
	}

	spec := req.Spec
	poolSize := r.pool.Size(spec.Offset + spec.Limit)
	candidates, total, err := r.catalog.Query(ctx, spec, domain.SortPopularity, poolSize, 0)
	if err != nil {
		return RankResult{}, fmt.Errorf("failed to load candidate pool: %w", err)
	}

	type scored struct {
		movie domain.Movie
		score float64
	}
	ranked := make([]scored, len(candidates))
	for i, m := range candidates {
		ranked[i] = scored{movie: m, score: r.scorer.Score(m, profile)}
	}
	slices.SortStableFunc(ranked, func(a, b scored) int {
		if c := cmp.Compare(b.score, a.score); c != 0 {
			return c
		}
		return cmp.Compare(b.movie.PopularityOrZero(), a.movie.PopularityOrZero())
	})

	r.logger.DebugContext(ctx, "Personalized ranking computed",
		slog.Int("favorites", len(favorites)), slog.Any("top_genres", profile.TopGenres()),
		slog.Int("pool", len(candidates)), slog.Int("pool_size", poolSize))

	lo := min(spec.Offset, len(ranked))
	hi := min(lo+spec.Limit, len(ranked))
	out := make([]domain.Movie, 0, hi-lo)
	for _, s := range ranked[lo:hi] {
		out = append(out, s.movie)
	}
	return RankResult{Movies: out, Total: total, Mode: domain.SortPersonalized}, nil
}

func (r *Ranker) fallback(ctx context.Context, spec filter.Spec, reason string) (RankResult, error) {
	r.logger.DebugContext(ctx, "Personalized ranking falling back to popularity", slog.String("reason", reason))
	r.metrics.RankFallback()
	return r.delegated(ctx, spec, domain.SortPopularity)
}
