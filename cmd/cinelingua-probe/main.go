// cinelingua-service/cmd/cinelingua-probe/main.go
package main

import (
	"context"
	"flag"
	"fmt"
	"log/slog"
	"os"
	"time"

	"github.com/goccy/go-json"

	"cinelingua-service/internal/clients"
	"cinelingua-service/internal/domain"
)

// Утилита вызывает работающий каталог по gRPC и печатает JSON ответ.
//
//	cinelingua-probe -movie 550
//	cinelingua-probe -lang fr -genres drama -sort personalized -fav 550,13
//	cinelingua-probe -picks
func main() {
	addr := flag.String("addr", "localhost:9092", "catalog gRPC address")
	movieID := flag.String("movie", "", "look up one movie by id")
	picks := flag.Bool("picks", false, "fetch the curated booth picks")
	lang := flag.String("lang", "", "original language for recommendations")
	genres := flag.String("genres", "", "comma separated genres")
	sortBy := flag.String("sort", "", "sort mode")
	favs := flag.String("fav", "", "comma separated favourite ids")
	topN := flag.String("top", "", "number of results")
	timeout := flag.Duration("timeout", 5*time.Second, "overall call timeout")
	flag.Parse()

	logger := slog.New(slog.NewJSONHandler(os.Stderr, &slog.HandlerOptions{Level: slog.LevelWarn}))
	client, err := clients.NewCatalogGRPCClient(*addr, logger)
	if err != nil {
		logger.Error("Failed to create client", slog.String("error", err.Error()))
		os.Exit(1)
	}
	defer client.Close()

	ctx, cancel := context.WithTimeout(context.Background(), *timeout)
	defer cancel()

	var out any
	switch {
	case *movieID != "":
		out, err = client.GetMovieInfo(ctx, *movieID)
	case *picks:
		out, err = client.BoothPicks(ctx, false)
	case *lang != "":
		out, err = client.Recommend(ctx, domain.RecommendationRequest{
			Lang:   *lang,
			Genres: domain.SplitList(*genres),
			SortBy: *sortBy,
			FavIDs: domain.SplitList(*favs),
			TopN:   domain.NumberOf(*topN),
		})
	default:
		flag.Usage()
		os.Exit(2)
	}
	if err != nil {
		logger.Error("Call failed", slog.String("error", err.Error()))
		os.Exit(1)
	}

	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")
	if err := enc.Encode(out); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}
