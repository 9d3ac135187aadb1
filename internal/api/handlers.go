// cinelingua-service/internal/api/handlers.go
package api

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"strings"

	"github.com/goccy/go-json"
	"github.com/gorilla/mux"

	"cinelingua-service/internal/domain"
	"cinelingua-service/internal/filter"
	"cinelingua-service/internal/metrics"
	"cinelingua-service/internal/store"
)

// maxBodyBytes ограничивает размер тела запроса рекомендаций.
const maxBodyBytes = 1 << 20

// CatalogService - то, что вызывают HTTP обработчики.
type CatalogService interface {
	Languages(ctx context.Context, refresh bool) ([]string, error)
	LinguisticLevels(ctx context.Context, refresh bool) ([]string, error)
	LinguisticRegisters(ctx context.Context, refresh bool) ([]string, error)
	Genres(ctx context.Context, lang string, refresh bool) ([]string, error)
	Stats(ctx context.Context, refresh bool) (domain.Stats, error)
	BoothPicks(ctx context.Context, refresh bool) (domain.PicksResponse, error)
	Movie(ctx context.Context, id string) (*domain.Movie, error)
	Recommend(ctx context.Context, req domain.RecommendationRequest) (domain.RecommendationResponse, error)
	Browse(ctx context.Context, req domain.RecommendationRequest) (domain.PageResponse, error)
}

// Handler содержит зависимости для HTTP обработчиков.
type Handler struct {
	service CatalogService
	logger  *slog.Logger
	metrics *metrics.Metrics
}

// NewHandler создает новый экземпляр Handler. m может быть nil.
func NewHandler(s CatalogService, l *slog.Logger, m *metrics.Metrics) *Handler {
	return &Handler{service: s, logger: l, metrics: m}
}

// --- Вспомогательные функции ---

func (h *Handler) respondJSON(w http.ResponseWriter, r *http.Request, status int, data any) {
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(status)
	if data != nil {
		if err := json.NewEncoder(w).Encode(data); err != nil {
			h.logger.ErrorContext(r.Context(), "Failed to encode JSON response", slog.String("error", err.Error()), slog.String("path", r.URL.Path))
		}
	}
}

func (h *Handler) respondError(w http.ResponseWriter, r *http.Request, status int, message string) {
	h.respondJSON(w, r, status, map[string]string{"error": message})
}

// respondServiceError отображает ошибки сервиса в HTTP статусы.
func (h *Handler) respondServiceError(w http.ResponseWriter, r *http.Request, op string, err error) {
	ctx := r.Context()
	switch {
	case errors.Is(err, filter.ErrLanguageRequired):
		h.respondError(w, r, http.StatusBadRequest, err.Error())
	case errors.Is(err, store.ErrMovieNotFound):
		h.respondError(w, r, http.StatusNotFound, "not found")
	case errors.Is(err, store.ErrCatalogUnavailable):
		h.logger.WarnContext(ctx, "Catalog unavailable", slog.String("op", op), slog.String("error", err.Error()))
		h.respondError(w, r, http.StatusServiceUnavailable, "catalog temporarily unavailable")
	case errors.Is(err, context.Canceled):
		h.logger.InfoContext(ctx, "Request canceled by client", slog.String("op", op))
	default:
		h.logger.ErrorContext(ctx, "Request failed", slog.String("op", op), slog.String("error", err.Error()))
		h.respondError(w, r, http.StatusInternalServerError, "internal error")
	}
}

func refreshRequested(r *http.Request) bool {
	switch strings.ToLower(strings.TrimSpace(r.URL.Query().Get("refresh"))) {
	case "1", "true", "yes":
		return true
	}
	return false
}

// decodeRequest читает запрос рекомендаций. Пустое тело - пустой запрос.
func decodeRequest(r *http.Request) (domain.RecommendationRequest, error) {
	var req domain.RecommendationRequest
	body, err := io.ReadAll(io.LimitReader(r.Body, maxBodyBytes))
	if err != nil {
		return req, err
	}
	if len(strings.TrimSpace(string(body))) == 0 {
		return req, nil
	}
	err = json.Unmarshal(body, &req)
	return req, err
}

// --- Обработчики ---

// Health сообщает, что сервис жив.
func (h *Handler) Health(w http.ResponseWriter, r *http.Request) {
	h.respondJSON(w, r, http.StatusOK, map[string]string{"status": "ok"})
}

func (h *Handler) GetLanguages(w http.ResponseWriter, r *http.Request) {
	langs, err := h.service.Languages(r.Context(), refreshRequested(r))
	if err != nil {
		h.respondServiceError(w, r, "languages", err)
		return
	}
	h.respondJSON(w, r, http.StatusOK, map[string][]string{"languages": langs})
}

func (h *Handler) GetLinguisticLevels(w http.ResponseWriter, r *http.Request) {
	levels, err := h.service.LinguisticLevels(r.Context(), refreshRequested(r))
	if err != nil {
		h.respondServiceError(w, r, "linguistic_levels", err)
		return
	}
	h.respondJSON(w, r, http.StatusOK, map[string][]string{"levels": levels})
}

func (h *Handler) GetLinguisticRegisters(w http.ResponseWriter, r *http.Request) {
	registers, err := h.service.LinguisticRegisters(r.Context(), refreshRequested(r))
	if err != nil {
		h.respondServiceError(w, r, "linguistic_registers", err)
		return
	}
	h.respondJSON(w, r, http.StatusOK, map[string][]string{"registers": registers})
}

// GetGenres возвращает жанры для ?lang=. Без языка список пуст.
func (h *Handler) GetGenres(w http.ResponseWriter, r *http.Request) {
	genres, err := h.service.Genres(r.Context(), r.URL.Query().Get("lang"), refreshRequested(r))
	if err != nil {
		h.respondServiceError(w, r, "genres", err)
		return
	}
	h.respondJSON(w, r, http.StatusOK, map[string][]string{"genres": genres})
}

func (h *Handler) GetStats(w http.ResponseWriter, r *http.Request) {
	stats, err := h.service.Stats(r.Context(), refreshRequested(r))
	if err != nil {
		h.respondServiceError(w, r, "stats", err)
		return
	}
	h.respondJSON(w, r, http.StatusOK, stats)
}

func (h *Handler) GetBoothPicks(w http.ResponseWriter, r *http.Request) {
	picks, err := h.service.BoothPicks(r.Context(), refreshRequested(r))
	if err != nil {
		h.respondServiceError(w, r, "booth_picks", err)
		return
	}
	h.respondJSON(w, r, http.StatusOK, picks)
}

// GetMovieByID получает фильм по ID.
func (h *Handler) GetMovieByID(w http.ResponseWriter, r *http.Request) {
	id := strings.TrimSpace(mux.Vars(r)["movieId"])
	if id == "" {
		h.respondError(w, r, http.StatusBadRequest, "movie id is required")
		return
	}
	movie, err := h.service.Movie(r.Context(), id)
	if err != nil {
		h.respondServiceError(w, r, "movie", err)
		return
	}
	h.respondJSON(w, r, http.StatusOK, movie)
}

// Recommend возвращает лучшие результаты по телу запроса.
func (h *Handler) Recommend(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	req, err := decodeRequest(r)
	if err != nil {
		h.logger.WarnContext(ctx, "Failed to decode recommendation request", slog.String("error", err.Error()))
		h.respondError(w, r, http.StatusBadRequest, "invalid request payload")
		return
	}
	resp, err := h.service.Recommend(ctx, req)
	if err != nil {
		h.respondServiceError(w, r, "recommend", err)
		return
	}
	h.logger.DebugContext(ctx, "Recommendations served", slog.Int("count", resp.Count), slog.String("sort_by", string(resp.SortBy)))
	h.respondJSON(w, r, http.StatusOK, resp)
}

// Browse возвращает страницу результатов с данными пагинации.
func (h *Handler) Browse(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	req, err := decodeRequest(r)
	if err != nil {
		h.logger.WarnContext(ctx, "Failed to decode browse request", slog.String("error", err.Error()))
		h.respondError(w, r, http.StatusBadRequest, "invalid request payload")
		return
	}
	resp, err := h.service.Browse(ctx, req)
	if err != nil {
		h.respondServiceError(w, r, "browse", err)
		return
	}
	h.respondJSON(w, r, http.StatusOK, resp)
}
