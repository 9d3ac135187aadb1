// cinelingua-service/internal/clients/catalog_client.go
package clients

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"google.golang.org/grpc"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/credentials/insecure"
	"google.golang.org/grpc/status"
	"google.golang.org/protobuf/types/known/structpb"

	"cinelingua-service/internal/domain"
	catalogrpc "cinelingua-service/internal/grpc"
)

// DefaultCallTimeout ограничивает вызов, если у контекста нет дедлайна.
const DefaultCallTimeout = 3 * time.Second

// CatalogClient - типизированный клиент gRPC сервиса каталога.
type CatalogClient interface {
	GetMovieInfo(ctx context.Context, movieID string) (*domain.Movie, error)
	CheckMovieExists(ctx context.Context, movieID string) (bool, error)
	Recommend(ctx context.Context, req domain.RecommendationRequest) (domain.RecommendationResponse, error)
	BoothPicks(ctx context.Context, refresh bool) (domain.PicksResponse, error)
	Close() error
}

type catalogGRPCClient struct {
	conn    *grpc.ClientConn
	logger  *slog.Logger
	timeout time.Duration
}

// NewCatalogGRPCClient подключается к сервису каталога по addr. Доп. опции
// добавляются после insecure credentials.
func NewCatalogGRPCClient(addr string, logger *slog.Logger, opts ...grpc.DialOption) (CatalogClient, error) {
	opts = append([]grpc.DialOption{grpc.WithTransportCredentials(insecure.NewCredentials())}, opts...)
	conn, err := grpc.NewClient(addr, opts...)
	if err != nil {
		return nil, fmt.Errorf("failed to create catalog client for %s: %w", addr, err)
	}
	logger.Info("catalog gRPC client created", slog.String("address", addr))
	return &catalogGRPCClient{conn: conn, logger: logger, timeout: DefaultCallTimeout}, nil
}

func (c *catalogGRPCClient) invoke(ctx context.Context, method string, req any, dst any) error {
	in, err := catalogrpc.EncodeStruct(req)
	if err != nil {
		return fmt.Errorf("failed to encode %s request: %w", method, err)
	}
	if _, ok := ctx.Deadline(); !ok {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, c.timeout)
		defer cancel()
	}

	out := new(structpb.Struct)
	if err := c.conn.Invoke(ctx, method, in, out); err != nil {
		st, _ := status.FromError(err)
		c.logger.WarnContext(ctx, "catalog gRPC call failed",
			slog.String("method", method),
			slog.String("code", st.Code().String()),
			slog.String("message", st.Message()))
		return fmt.Errorf("grpc %s failed: %w", method, err)
	}
	if err := catalogrpc.DecodeStruct(out, dst); err != nil {
		return fmt.Errorf("failed to decode %s response: %w", method, err)
	}
	return nil
}

func (c *catalogGRPCClient) GetMovieInfo(ctx context.Context, movieID string) (*domain.Movie, error) {
	if strings.TrimSpace(movieID) == "" {
		return nil, status.Error(codes.InvalidArgument, "movieID cannot be empty")
	}
	var resp struct {
		Movie *domain.Movie `json:"movie"`
	}
	if err := c.invoke(ctx, catalogrpc.MethodGetMovieInfo, map[string]string{"movie_id": movieID}, &resp); err != nil {
		return nil, err
	}
	if resp.Movie == nil {
		return nil, status.Errorf(codes.NotFound, "movie %s not found", movieID)
	}
	return resp.Movie, nil
}

func (c *catalogGRPCClient) CheckMovieExists(ctx context.Context, movieID string) (bool, error) {
	if strings.TrimSpace(movieID) == "" {
		return false, status.Error(codes.InvalidArgument, "movieID cannot be empty")
	}
	var resp struct {
		Exists bool `json:"exists"`
	}
	if err := c.invoke(ctx, catalogrpc.MethodCheckMovieExists, map[string]string{"movie_id": movieID}, &resp); err != nil {
		return false, err
	}
	return resp.Exists, nil
}

func (c *catalogGRPCClient) Recommend(ctx context.Context, req domain.RecommendationRequest) (domain.RecommendationResponse, error) {
	var resp domain.RecommendationResponse
	err := c.invoke(ctx, catalogrpc.MethodRecommend, req, &resp)
	return resp, err
}

func (c *catalogGRPCClient) BoothPicks(ctx context.Context, refresh bool) (domain.PicksResponse, error) {
	var resp domain.PicksResponse
	err := c.invoke(ctx, catalogrpc.MethodBoothPicks, map[string]bool{"refresh": refresh}, &resp)
	return resp, err
}

func (c *catalogGRPCClient) Close() error {
	if c.conn == nil {
		return nil
	}
	c.logger.Info("closing catalog gRPC connection")
	return c.conn.Close()
}
