// cinelingua-service/internal/store/postgres_movie_store.go
package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	"strings"

	"cinelingua-service/internal/domain"
	"cinelingua-service/internal/filter"

	"github.com/jmoiron/sqlx"
	"github.com/lib/pq"
)

// DefaultImageBase - префикс для poster_path при сборке poster_url.
const DefaultImageBase = "https://image.tmdb.org/t/p/w342"

const movieColumns = `id::text AS id, title, original_title, release_date::text AS release_date,
       LOWER(original_language) AS original_language, genres, overview, runtime, popularity,
       vote_average, poster_path, linguistic_level, linguistic_register`

// yearExpr извлекает первую четырехзначную группу из release_date как число.
// Годы вне допустимого диапазона дают NULL, как и в domain.YearFromDate.
var yearExpr = fmt.Sprintf(
	`(CASE WHEN substring(release_date::text from '(\d{4})')::int BETWEEN %d AND %d
       THEN substring(release_date::text from '(\d{4})')::int END)`,
	domain.MinReleaseYear, domain.MaxReleaseYear)

// movieRow - строка таблицы movies до нормализации.
type movieRow struct {
	ID                 string          `db:"id"`
	Title              sql.NullString  `db:"title"`
	OriginalTitle      sql.NullString  `db:"original_title"`
	ReleaseDate        sql.NullString  `db:"release_date"`
	OriginalLanguage   sql.NullString  `db:"original_language"`
	Genres             pq.StringArray  `db:"genres"`
	Overview           sql.NullString  `db:"overview"`
	Runtime            sql.NullFloat64 `db:"runtime"`
	Popularity         sql.NullFloat64 `db:"popularity"`
	VoteAverage        sql.NullFloat64 `db:"vote_average"`
	PosterPath         sql.NullString  `db:"poster_path"`
	LinguisticLevel    sql.NullString  `db:"linguistic_level"`
	LinguisticRegister sql.NullString  `db:"linguistic_register"`
}

// toDomain нормализует строку в domain.Movie.
func (r movieRow) toDomain(imageBase string) domain.Movie {
	m := domain.Movie{
		ID:                 r.ID,
		Title:              strings.TrimSpace(r.Title.String),
		OriginalTitle:      r.OriginalTitle.String,
		ReleaseDate:        nullString(r.ReleaseDate),
		OriginalLanguage:   strings.ToLower(strings.TrimSpace(r.OriginalLanguage.String)),
		Genres:             domain.NormalizeGenres(r.Genres),
		Overview:           nullString(r.Overview),
		Runtime:            nullFloat(r.Runtime),
		Popularity:         nullFloat(r.Popularity),
		VoteAverage:        nullFloat(r.VoteAverage),
		PosterPath:         nullString(r.PosterPath),
		LinguisticLevel:    domain.NormalizeTag(nullString(r.LinguisticLevel)),
		LinguisticRegister: domain.NormalizeTag(nullString(r.LinguisticRegister)),
	}
	if m.Title == "" {
		m.Title = "Unknown title"
	}
	if m.ReleaseDate != nil {
		if y, ok := domain.YearFromDate(*m.ReleaseDate); ok {
			m.ReleaseYear = &y
		}
	}
	if m.PosterPath != nil && strings.HasPrefix(*m.PosterPath, "/") {
		u := imageBase + *m.PosterPath
		m.PosterURL = &u
	}
	return m
}

// PostgresCatalogStore реализует CatalogStore для PostgreSQL.
type PostgresCatalogStore struct {
	db        *sqlx.DB
	logger    *slog.Logger
	table     string
	imageBase string
}

// NewPostgresCatalogStore создает новый PostgresCatalogStore, читающий из table.
func NewPostgresCatalogStore(db *sqlx.DB, logger *slog.Logger, table, imageBase string) (*PostgresCatalogStore, error) {
	if db == nil {
		return nil, errors.New("database connection (db) cannot be nil")
	}
	if strings.TrimSpace(table) == "" {
		return nil, errors.New("movies table name cannot be empty")
	}
	if imageBase == "" {
		imageBase = DefaultImageBase
	}
	return &PostgresCatalogStore{
		db:        db,
		logger:    logger,
		table:     pq.QuoteIdentifier(table),
		imageBase: strings.TrimRight(imageBase, "/"),
	}, nil
}

// whereClause строит параметризованные условия для spec. Плейсхолдеры
// начинаются с $1; возвращается индекс следующего свободного.
func whereClause(spec filter.Spec) (string, []any, int) {
	conditions := []string{"LOWER(original_language) = $1"}
	args := []any{spec.Language}
	argID := 2

	add := func(cond string, arg any) {
		conditions = append(conditions, fmt.Sprintf(cond, argID))
		args = append(args, arg)
		argID++
	}
	if len(spec.Genres) > 0 {
		add("ARRAY(SELECT LOWER(TRIM(x)) FROM unnest(genres) x) && $%d::text[]", pq.Array(spec.Genres))
	}
	if spec.MinRating != nil {
		add("COALESCE(vote_average, -1) >= $%d", *spec.MinRating)
	}
	if spec.MaxRuntime != nil {
		add("COALESCE(runtime, 1000000000) <= $%d", *spec.MaxRuntime)
	}
	if spec.LinguisticLevel != "" {
		add("LOWER(TRIM(COALESCE(linguistic_level, ''))) = $%d", spec.LinguisticLevel)
	}
	if spec.LinguisticRegister != "" {
		add("LOWER(TRIM(COALESCE(linguistic_register, ''))) = $%d", spec.LinguisticRegister)
	}
	if spec.YearMin != nil {
		add("COALESCE("+yearExpr+", -1) >= $%d", *spec.YearMin)
	}
	if spec.YearMax != nil {
		add("COALESCE("+yearExpr+", 1000000) <= $%d", *spec.YearMax)
	}
	return strings.Join(conditions, " AND "), args, argID
}

// orderClause отображает режим сортировки в фиксированный ORDER BY. В SQL
// подставляются только эти литералы.
func orderClause(order domain.SortMode) string {
	switch order {
	case domain.SortRating:
		return "COALESCE(vote_average, -1) DESC, COALESCE(popularity, 0) DESC, id ASC"
	case domain.SortNewest:
		return yearExpr + " DESC NULLS LAST, COALESCE(popularity, 0) DESC, id ASC"
	case domain.SortOldest:
		return yearExpr + " ASC NULLS LAST, COALESCE(popularity, 0) DESC, id ASC"
	default:
		return "COALESCE(popularity, 0) DESC, id ASC"
	}
}

// Query возвращает страницу подходящих фильмов и общее число совпадений.
func (s *PostgresCatalogStore) Query(ctx context.Context, spec filter.Spec, order domain.SortMode, limit, offset int) ([]domain.Movie, int, error) {
	total, err := s.Count(ctx, spec)
	if err != nil {
		return nil, 0, err
	}
	if total == 0 || limit <= 0 {
		return []domain.Movie{}, total, nil
	}

	where, args, argID := whereClause(spec)
	query := fmt.Sprintf(`SELECT %s FROM %s WHERE %s ORDER BY %s LIMIT $%d OFFSET $%d`,
		movieColumns, s.table, where, orderClause(order), argID, argID+1)
	args = append(args, limit, max(0, offset))

	s.logger.DebugContext(ctx, "Executing catalog select query", slog.String("query", query), slog.Any("args", args))
	var rows []movieRow
	if err := s.db.SelectContext(ctx, &rows, query, args...); err != nil {
		s.logger.ErrorContext(ctx, "Failed to query movies from DB", slog.String("error", err.Error()))
		return nil, 0, fmt.Errorf("failed to query movies: %w", err)
	}
	return s.toMovies(rows), total, nil
}

// Count возвращает число фильмов, подходящих под spec.
func (s *PostgresCatalogStore) Count(ctx context.Context, spec filter.Spec) (int, error) {
	where, args, _ := whereClause(spec)
	query := fmt.Sprintf(`SELECT COUNT(*) FROM %s WHERE %s`, s.table, where)

	s.logger.DebugContext(ctx, "Executing catalog count query", slog.String("query", query), slog.Any("args", args))
	var total int
	if err := s.db.GetContext(ctx, &total, query, args...); err != nil {
		s.logger.ErrorContext(ctx, "Failed to count movies in DB", slog.String("error", err.Error()))
		return 0, fmt.Errorf("failed to count movies: %w", err)
	}
	return total, nil
}

// GetByID находит фильм по ID.
func (s *PostgresCatalogStore) GetByID(ctx context.Context, id string) (*domain.Movie, error) {
	query := fmt.Sprintf(`SELECT %s FROM %s WHERE id::text = $1 LIMIT 1`, movieColumns, s.table)

	s.logger.DebugContext(ctx, "Executing GetMovieByID query", slog.String("movieID", id))
	var row movieRow
	if err := s.db.GetContext(ctx, &row, query, id); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			s.logger.WarnContext(ctx, "Movie not found by ID in DB", slog.String("movieID", id))
			return nil, ErrMovieNotFound
		}
		s.logger.ErrorContext(ctx, "Failed to get movie by ID from DB", slog.String("movieID", id), slog.String("error", err.Error()))
		return nil, fmt.Errorf("failed to get movie by ID: %w", err)
	}
	m := row.toDomain(s.imageBase)
	return &m, nil
}

// GetByIDs получает несколько фильмов за один запрос.
func (s *PostgresCatalogStore) GetByIDs(ctx context.Context, ids []string) ([]domain.Movie, error) {
	if len(ids) == 0 {
		return []domain.Movie{}, nil
	}
	query := fmt.Sprintf(`SELECT %s FROM %s WHERE id::text = ANY($1)`, movieColumns, s.table)

	s.logger.DebugContext(ctx, "Executing GetMoviesByIDs query", slog.Int("ids", len(ids)))
	var rows []movieRow
	if err := s.db.SelectContext(ctx, &rows, query, pq.Array(ids)); err != nil {
		s.logger.ErrorContext(ctx, "Failed to get movies by IDs from DB", slog.String("error", err.Error()))
		return nil, fmt.Errorf("failed to get movies by IDs: %w", err)
	}
	return s.toMovies(rows), nil
}

// DistinctLanguages возвращает все коды языков в каталоге.
func (s *PostgresCatalogStore) DistinctLanguages(ctx context.Context) ([]string, error) {
	return s.distinct(ctx, "languages", fmt.Sprintf(`SELECT DISTINCT LOWER(TRIM(original_language)) AS v FROM %s
        WHERE original_language IS NOT NULL AND TRIM(original_language) <> '' ORDER BY v ASC`, s.table))
}

// DistinctLinguisticLevels возвращает все языковые уровни в каталоге.
func (s *PostgresCatalogStore) DistinctLinguisticLevels(ctx context.Context) ([]string, error) {
	return s.distinct(ctx, "linguistic levels", fmt.Sprintf(`SELECT DISTINCT LOWER(TRIM(linguistic_level)) AS v FROM %s
        WHERE linguistic_level IS NOT NULL AND TRIM(linguistic_level) <> '' ORDER BY v ASC`, s.table))
}

// DistinctLinguisticRegisters возвращает все языковые регистры в каталоге.
func (s *PostgresCatalogStore) DistinctLinguisticRegisters(ctx context.Context) ([]string, error) {
	return s.distinct(ctx, "linguistic registers", fmt.Sprintf(`SELECT DISTINCT LOWER(TRIM(linguistic_register)) AS v FROM %s
        WHERE linguistic_register IS NOT NULL AND TRIM(linguistic_register) <> '' ORDER BY v ASC`, s.table))
}

// DistinctGenresForLanguage возвращает жанры фильмов на языке lang.
func (s *PostgresCatalogStore) DistinctGenresForLanguage(ctx context.Context, lang string) ([]string, error) {
	return s.distinct(ctx, "genres", fmt.Sprintf(`SELECT DISTINCT LOWER(TRIM(g)) AS v FROM %s
        CROSS JOIN LATERAL unnest(genres) AS g
        WHERE LOWER(original_language) = $1 AND g IS NOT NULL AND TRIM(g) <> '' ORDER BY v ASC`, s.table), lang)
}

func (s *PostgresCatalogStore) distinct(ctx context.Context, what, query string, args ...any) ([]string, error) {
	s.logger.DebugContext(ctx, "Executing distinct query", slog.String("what", what))
	var values []string
	if err := s.db.SelectContext(ctx, &values, query, args...); err != nil {
		s.logger.ErrorContext(ctx, "Failed to list distinct values from DB", slog.String("what", what), slog.String("error", err.Error()))
		return nil, fmt.Errorf("failed to list %s: %w", what, err)
	}
	out := make([]string, 0, len(values))
	for _, v := range values {
		if v != "" && v != "nan" {
			out = append(out, v)
		}
	}
	return out, nil
}

// PopularPoolWithPoster возвращает пул кандидатов для подборки booth picks.
func (s *PostgresCatalogStore) PopularPoolWithPoster(ctx context.Context, limit int, minRating float64) ([]domain.Movie, error) {
	query := fmt.Sprintf(`SELECT %s FROM %s
        WHERE poster_path IS NOT NULL AND TRIM(poster_path) <> '' AND COALESCE(vote_average, -1) >= $1
        ORDER BY COALESCE(popularity, 0) DESC, id ASC LIMIT $2`, movieColumns, s.table)

	s.logger.DebugContext(ctx, "Executing popular pool query", slog.Int("limit", limit), slog.Float64("min_rating", minRating))
	var rows []movieRow
	if err := s.db.SelectContext(ctx, &rows, query, minRating, limit); err != nil {
		s.logger.ErrorContext(ctx, "Failed to load popular pool from DB", slog.String("error", err.Error()))
		return nil, fmt.Errorf("failed to load popular pool: %w", err)
	}
	return s.toMovies(rows), nil
}

// Stats считает сводку каталога для страницы статистики.
func (s *PostgresCatalogStore) Stats(ctx context.Context) (domain.Stats, error) {
	stats := domain.EmptyStats()
	if err := s.db.GetContext(ctx, &stats.TotalMovies, fmt.Sprintf(`SELECT COUNT(*) FROM %s`, s.table)); err != nil {
		s.logger.ErrorContext(ctx, "Failed to count catalog", slog.String("error", err.Error()))
		return stats, fmt.Errorf("failed to count catalog: %w", err)
	}
	if stats.TotalMovies == 0 {
		return stats, nil
	}

	queries := []struct {
		name string
		dst  *[]domain.LabelCount
		sql  string
	}{
		{"languages_top", &stats.LanguagesTop, fmt.Sprintf(`SELECT LOWER(original_language) AS label, COUNT(*)::int AS value FROM %s
            WHERE original_language IS NOT NULL AND TRIM(original_language) <> ''
            GROUP BY LOWER(original_language) ORDER BY value DESC, label ASC LIMIT %d`, s.table, statsLanguagesTop)},
		{"levels_top", &stats.LevelsTop, fmt.Sprintf(`SELECT LOWER(linguistic_level) AS label, COUNT(*)::int AS value FROM %s
            WHERE linguistic_level IS NOT NULL AND TRIM(linguistic_level) <> ''
            GROUP BY LOWER(linguistic_level) ORDER BY value DESC, label ASC LIMIT %d`, s.table, statsLevelsTop)},
		{"genres_top", &stats.GenresTop, fmt.Sprintf(`SELECT LOWER(g) AS label, COUNT(*)::int AS value FROM %s
            CROSS JOIN LATERAL unnest(genres) AS g
            WHERE g IS NOT NULL AND TRIM(g) <> ''
            GROUP BY LOWER(g) ORDER BY value DESC, label ASC LIMIT %d`, s.table, statsGenresTop)},
		{"years_distribution", &stats.YearsDistribution, fmt.Sprintf(`SELECT y::text AS label, COUNT(*)::int AS value
            FROM (SELECT %s AS y FROM %s WHERE release_date IS NOT NULL) t
            WHERE y BETWEEN %d AND %d GROUP BY y ORDER BY y ASC`, yearExpr, s.table, statsYearMin, statsYearMax)},
	}
	for _, q := range queries {
		var rows []domain.LabelCount
		if err := s.db.SelectContext(ctx, &rows, q.sql); err != nil {
			s.logger.ErrorContext(ctx, "Failed to compute stats", slog.String("stat", q.name), slog.String("error", err.Error()))
			return stats, fmt.Errorf("failed to compute %s: %w", q.name, err)
		}
		out := make([]domain.LabelCount, 0, len(rows))
		for _, r := range rows {
			if r.Label != "" {
				out = append(out, r)
			}
		}
		*q.dst = out
	}
	stats.YearsDistribution = lastN(stats.YearsDistribution, statsYearBuckets)
	return stats, nil
}

func (s *PostgresCatalogStore) toMovies(rows []movieRow) []domain.Movie {
	out := make([]domain.Movie, 0, len(rows))
	for _, r := range rows {
		out = append(out, r.toDomain(s.imageBase))
	}
	return out
}

func nullString(v sql.NullString) *string {
	if !v.Valid {
		return nil
	}
	s := v.String
	return &s
}

func nullFloat(v sql.NullFloat64) *float64 {
	if !v.Valid {
		return nil
	}
	f := v.Float64
	return &f
}

// maskDSN скрывает пароль в URL postgres для логирования.
func maskDSN(dsn string) string {
	at := strings.LastIndex(dsn, "@")
	scheme := strings.Index(dsn, "://")
	if at < 0 || scheme < 0 {
		return dsn
	}
	creds := dsn[scheme+3 : at]
	if colon := strings.Index(creds, ":"); colon >= 0 {
		return dsn[:scheme+3] + creds[:colon] + ":********" + dsn[at:]
	}
	return dsn
}

// Connect открывает пул соединений PostgreSQL и проверяет его пингом.
func Connect(ctx context.Context, dsn string, maxOpen, maxIdle int, logger *slog.Logger) (*sqlx.DB, error) {
	logger.InfoContext(ctx, "Attempting to connect to catalog database", slog.String("dsn", maskDSN(dsn)))

	db, err := sqlx.ConnectContext(ctx, "postgres", dsn)
	if err != nil {
		logger.ErrorContext(ctx, "Failed to connect to PostgreSQL", slog.String("error", err.Error()))
		return nil, fmt.Errorf("failed to connect to postgres: %w", err)
	}
	if maxOpen > 0 {
		db.SetMaxOpenConns(maxOpen)
	}
	if maxIdle > 0 {
		db.SetMaxIdleConns(maxIdle)
	}
	logger.InfoContext(ctx, "Successfully connected to catalog database", slog.Int("pool_max_open", maxOpen))
	return db, nil
}
