package clients

import (
	"context"
	"log/slog"
	"net"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"google.golang.org/grpc"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"
	"google.golang.org/grpc/test/bufconn"

	"cinelingua-service/internal/cache"
	"cinelingua-service/internal/domain"
	catalogrpc "cinelingua-service/internal/grpc"
	"cinelingua-service/internal/recommend"
	"cinelingua-service/internal/service"
	"cinelingua-service/internal/store"
)

func ptr[T any](v T) *T { return &v }

func newTestClient(t *testing.T) CatalogClient {
	t.Helper()
	logger := slog.New(slog.DiscardHandler)
	catalog := store.NewMockCatalogStore(logger,
		domain.Movie{ID: "7", Title: "Le Samouraï", OriginalLanguage: "fr", Genres: []string{"crime"}, ReleaseYear: ptr(1967), VoteAverage: ptr(7.9), Popularity: ptr(12.0), PosterPath: ptr("/s.jpg")},
		domain.Movie{ID: "8", Title: "Playtime", OriginalLanguage: "fr", Genres: []string{"comedy"}, ReleaseYear: ptr(1967), VoteAverage: ptr(7.7), Popularity: ptr(9.0), PosterPath: ptr("/p.jpg")},
	)
	ranker := recommend.NewRanker(catalog, recommend.NewScorer(recommend.DefaultWeights), recommend.DefaultPool, logger, nil)
	svc := service.NewCatalogService(catalog, cache.New(time.Hour), ranker, service.CuratedOptions{}, logger)

	lis := bufconn.Listen(1 << 20)
	srv := grpc.NewServer()
	catalogrpc.Register(srv, catalogrpc.NewServer(svc, logger))
	go func() { _ = srv.Serve(lis) }()
	t.Cleanup(srv.Stop)

	client, err := NewCatalogGRPCClient("passthrough:///bufnet", logger,
		grpc.WithContextDialer(func(ctx context.Context, _ string) (net.Conn, error) { return lis.DialContext(ctx) }))
	require.NoError(t, err)
	t.Cleanup(func() { client.Close() })
	return client
}

func TestGetMovieInfo(t *testing.T) {
	client := newTestClient(t)
	ctx := context.Background()

	movie, err := client.GetMovieInfo(ctx, "7")
	require.NoError(t, err)
	assert.Equal(t, "Le Samouraï", movie.Title)
	require.NotNil(t, movie.ReleaseYear)
	assert.Equal(t, 1967, *movie.ReleaseYear)
	assert.Equal(t, []string{"crime"}, movie.Genres)

	_, err = client.GetMovieInfo(ctx, "404")
	assert.Equal(t, codes.NotFound, status.Code(err))

	_, err = client.GetMovieInfo(ctx, " ")
	assert.Equal(t, codes.InvalidArgument, status.Code(err))
}

func TestCheckMovieExists(t *testing.T) {
	client := newTestClient(t)
	ctx := context.Background()

	ok, err := client.CheckMovieExists(ctx, "8")
	require.NoError(t, err)
	assert.True(t, ok)

	ok, err = client.CheckMovieExists(ctx, "9")
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestRecommend(t *testing.T) {
	client := newTestClient(t)

	resp, err := client.Recommend(context.Background(), domain.RecommendationRequest{
		Lang:   "fr",
		SortBy: "personalized",
		FavIDs: domain.StringList{"8"},
		TopN:   domain.NumberOf("5"),
	})
	require.NoError(t, err)
	assert.Equal(t, domain.SortPersonalized, resp.SortBy)
	require.Equal(t, 2, resp.Count)
	assert.Equal(t, "8", resp.Results[0].ID, "the favourite scores highest against its own profile")

	_, err = client.Recommend(context.Background(), domain.RecommendationRequest{})
	assert.Equal(t, codes.InvalidArgument, status.Code(err))
}

func TestBoothPicks(t *testing.T) {
	client := newTestClient(t)

	picks, err := client.BoothPicks(context.Background(), false)
	require.NoError(t, err)
	assert.Equal(t, 2, picks.Count)
	assert.Len(t, picks.Results, 2)
}
