// cinelingua-service/internal/api/router.go
package api

import (
	"net/http"

	"github.com/gorilla/mux"
)

// NewRouter регистрирует все HTTP маршруты.
func NewRouter(handler *Handler) *mux.Router {
	router := mux.NewRouter()
	router.Use(handler.RequestID, handler.AccessLog)

	router.HandleFunc("/healthz", handler.Health).Methods(http.MethodGet)
	router.Handle("/metrics", handler.metrics.Handler()).Methods(http.MethodGet)

	apiRouter := router.PathPrefix("/api").Subrouter()

	// агрегаты каталога
	apiRouter.HandleFunc("/languages", handler.GetLanguages).Methods(http.MethodGet)
	apiRouter.HandleFunc("/linguistic_levels", handler.GetLinguisticLevels).Methods(http.MethodGet)
	apiRouter.HandleFunc("/linguistic_registers", handler.GetLinguisticRegisters).Methods(http.MethodGet)
	apiRouter.HandleFunc("/genres", handler.GetGenres).Methods(http.MethodGet)
	apiRouter.HandleFunc("/stats", handler.GetStats).Methods(http.MethodGet)
	apiRouter.HandleFunc("/booth_picks", handler.GetBoothPicks).Methods(http.MethodGet)

	apiRouter.HandleFunc("/movie/{movieId}", handler.GetMovieByID).Methods(http.MethodGet)

	apiRouter.HandleFunc("/recommendations", handler.Recommend).Methods(http.MethodPost)
	apiRouter.HandleFunc("/recommendations/browse", handler.Browse).Methods(http.MethodPost)

	return router
}
