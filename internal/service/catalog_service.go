// cinelingua-service/internal/service/catalog_service.go
package service

import (
	"context"
	"fmt"
	"log/slog"

	"cinelingua-service/internal/cache"
	"cinelingua-service/internal/domain"
	"cinelingua-service/internal/filter"
	"cinelingua-service/internal/recommend"
	"cinelingua-service/internal/store"
)

// Пространства имен кэша, они же метки метрик.
const (
	nsLanguages = "languages"
	nsLevels    = "linguistic_levels"
	nsRegisters = "linguistic_registers"
	nsGenres    = "genres"
	nsStats     = "stats"
	nsPicks     = "booth_picks"
)

// CuratedOptions задает размер пула для booth picks.
type CuratedOptions struct {
	PoolSize  int
	MinRating float64
	Selector  recommend.CuratedConfig
}

// CatalogService вызывается транспортами. Агрегаты идут через кэш,
// рекомендации всегда считаются заново.
type CatalogService struct {
	catalog store.CatalogStore
	cache   *cache.Store
	ranker  *recommend.Ranker
	curated CuratedOptions
	logger  *slog.Logger
}

// NewCatalogService создает новый экземпляр сервиса.
func NewCatalogService(catalog store.CatalogStore, c *cache.Store, ranker *recommend.Ranker, curated CuratedOptions, logger *slog.Logger) *CatalogService {
	if curated.Selector.Target <= 0 {
		curated.Selector = recommend.DefaultCuratedConfig()
	}
	if curated.PoolSize <= 0 {
		curated.PoolSize = 1200
	}
	return &CatalogService{catalog: catalog, cache: c, ranker: ranker, curated: curated, logger: logger}
}

// Languages возвращает языки каталога.
func (s *CatalogService) Languages(ctx context.Context, refresh bool) ([]string, error) {
	return cache.Fetch(ctx, s.cache, nsLanguages, nsLanguages, refresh, func(ctx context.Context) ([]string, error) {
		return nonNil(s.catalog.DistinctLanguages(ctx))
	})
}

// LinguisticLevels возвращает языковые уровни каталога.
func (s *CatalogService) LinguisticLevels(ctx context.Context, refresh bool) ([]string, error) {
	return cache.Fetch(ctx, s.cache, nsLevels, nsLevels, refresh, func(ctx context.Context) ([]string, error) {
		return nonNil(s.catalog.DistinctLinguisticLevels(ctx))
	})
}

// LinguisticRegisters возвращает языковые регистры каталога.
func (s *CatalogService) LinguisticRegisters(ctx context.Context, refresh bool) ([]string, error) {
	return cache.Fetch(ctx, s.cache, nsRegisters, nsRegisters, refresh, func(ctx context.Context) ([]string, error) {
		return nonNil(s.catalog.DistinctLinguisticRegisters(ctx))
	})
}

// Genres возвращает жанры одного языка. Для пустого языка жанров нет, и
// каталог не запрашивается.
func (s *CatalogService) Genres(ctx context.Context, lang string, refresh bool) ([]string, error) {
	lang = filter.NormalizeText(lang)
	if lang == "" {
		return []string{}, nil
	}
	key := cache.GenerateKey(nsGenres, lang)
	return cache.Fetch(ctx, s.cache, nsGenres, key, refresh, func(ctx context.Context) ([]string, error) {
		return nonNil(s.catalog.DistinctGenresForLanguage(ctx, lang))
	})
}

// Stats возвращает сводку каталога.
func (s *CatalogService) Stats(ctx context.Context, refresh bool) (domain.Stats, error) {
	return cache.Fetch(ctx, s.cache, nsStats, nsStats, refresh, s.catalog.Stats)
}

// BoothPicks возвращает подборку, сбалансированную по жанрам.
func (s *CatalogService) BoothPicks(ctx context.Context, refresh bool) (domain.PicksResponse, error) {
	key := cache.GenerateKey(nsPicks, s.curated)
	picks, err := cache.Fetch(ctx, s.cache, nsPicks, key, refresh, func(ctx context.Context) ([]domain.Movie, error) {
		pool, err := s.catalog.PopularPoolWithPoster(ctx, s.curated.PoolSize, s.curated.MinRating)
		if err != nil {
			return nil, fmt.Errorf("failed to load picks pool: %w", err)
		}
		picks := recommend.SelectCurated(pool, s.curated.Selector)
		s.logger.InfoContext(ctx, "Booth picks recomputed", slog.Int("pool", len(pool)), slog.Int("picks", len(picks)))
		return picks, nil
	})
	if err != nil {
		return domain.PicksResponse{}, err
	}
	if picks == nil {
		picks = []domain.Movie{}
	}
	return domain.PicksResponse{Results: picks, Count: len(picks)}, nil
}

// Movie возвращает фильм или store.ErrMovieNotFound.
func (s *CatalogService) Movie(ctx context.Context, id string) (*domain.Movie, error) {
	return s.catalog.GetByID(ctx, id)
}

// Recommend возвращает лучшие результаты по запросу. Поле offset игнорируется.
func (s *CatalogService) Recommend(ctx context.Context, req domain.RecommendationRequest) (domain.RecommendationResponse, error) {
	spec, err := filter.Build(req)
	if err != nil {
		return domain.RecommendationResponse{}, err
	}
	spec = spec.WithPage(spec.Limit, 0)
	res, err := s.rank(ctx, spec, req)
	if err != nil {
		return domain.RecommendationResponse{}, err
	}
	return domain.RecommendationResponse{Results: res.Movies, Count: len(res.Movies), SortBy: res.Mode}, nil
}

// Browse возвращает страницу результатов с данными пагинации.
func (s *CatalogService) Browse(ctx context.Context, req domain.RecommendationRequest) (domain.PageResponse, error) {
	spec, err := filter.Build(req)
	if err != nil {
		return domain.PageResponse{}, err
	}
	res, err := s.rank(ctx, spec, req)
	if err != nil {
		return domain.PageResponse{}, err
	}
	return domain.PageResponse{
		Results: res.Movies,
		Count:   len(res.Movies),
		SortBy:  res.Mode,
		Total:   res.Total,
		Limit:   spec.Limit,
		Offset:  spec.Offset,
		HasMore: filter.HasMore(spec.Offset, len(res.Movies), res.Total),
	}, nil
}

func (s *CatalogService) rank(ctx context.Context, spec filter.Spec, req domain.RecommendationRequest) (recommend.RankResult, error) {
	if len(spec.Defaulted) > 0 {
		s.logger.DebugContext(ctx, "Filter inputs replaced by defaults", slog.Any("fields", spec.Defaulted))
	}
	res, err := s.ranker.Rank(ctx, recommend.RankRequest{
		Spec:        spec,
		Mode:        domain.ParseSortMode(req.SortBy),
		FavoriteIDs: req.FavoriteIDs(),
	})
	if err != nil {
		return recommend.RankResult{}, err
	}
	if res.Movies == nil {
		res.Movies = []domain.Movie{}
	}
	return res, nil
}

func nonNil(values []string, err error) ([]string, error) {
	if err != nil {
		return nil, err
	}
	if values == nil {
		values = []string{}
	}
	return values, nil
}
