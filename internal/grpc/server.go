// cinelingua-service/internal/grpc/server.go
package grpc

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"

	"github.com/goccy/go-json"
	"github.com/google/uuid"
	"google.golang.org/grpc"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"
	"google.golang.org/protobuf/types/known/structpb"

	"cinelingua-service/internal/domain"
	"cinelingua-service/internal/filter"
	"cinelingua-service/internal/metrics"
	"cinelingua-service/internal/store"
)

// ServiceName - полное имя gRPC сервиса.
const ServiceName = "cinelingua.v1.Catalog"

// Полные имена методов.
const (
	MethodGetMovieInfo     = "/" + ServiceName + "/GetMovieInfo"
	MethodCheckMovieExists = "/" + ServiceName + "/CheckMovieExists"
	MethodRecommend        = "/" + ServiceName + "/Recommend"
	MethodBoothPicks       = "/" + ServiceName + "/BoothPicks"
)

// CatalogService - то, что вызывают gRPC методы.
type CatalogService interface {
	Movie(ctx context.Context, id string) (*domain.Movie, error)
	Recommend(ctx context.Context, req domain.RecommendationRequest) (domain.RecommendationResponse, error)
	BoothPicks(ctx context.Context, refresh bool) (domain.PicksResponse, error)
}

// Server реализует сервис каталога для других внутренних сервисов.
// Сообщения - значения google.protobuf.Struct с теми же JSON структурами,
// что и в HTTP API.
type Server struct {
	service CatalogService
	logger  *slog.Logger
}

// NewServer создает новый экземпляр gRPC сервера каталога.
func NewServer(s CatalogService, logger *slog.Logger) *Server {
	return &Server{service: s, logger: logger}
}

type movieIDRequest struct {
	MovieID string `json:"movie_id"`
}

type picksRequest struct {
	Refresh bool `json:"refresh"`
}

// GetMovieInfo реализует gRPC метод GetMovieInfo: {"movie_id"} -> {"movie": {...}}.
func (s *Server) GetMovieInfo(ctx context.Context, in *structpb.Struct) (*structpb.Struct, error) {
	var req movieIDRequest
	if err := fromStruct(in, &req); err != nil {
		return nil, status.Errorf(codes.InvalidArgument, "invalid request: %v", err)
	}
	id := strings.TrimSpace(req.MovieID)
	if id == "" {
		return nil, status.Error(codes.InvalidArgument, "movie_id cannot be empty")
	}

	movie, err := s.service.Movie(ctx, id)
	if err != nil {
		return nil, s.toStatus(ctx, "GetMovieInfo", err)
	}
	return toStruct(map[string]any{"movie": movie})
}

// CheckMovieExists реализует gRPC метод CheckMovieExists: {"movie_id"} -> {"exists": bool}.
func (s *Server) CheckMovieExists(ctx context.Context, in *structpb.Struct) (*structpb.Struct, error) {
	var req movieIDRequest
	if err := fromStruct(in, &req); err != nil {
		return nil, status.Errorf(codes.InvalidArgument, "invalid request: %v", err)
	}
	id := strings.TrimSpace(req.MovieID)
	if id == "" {
		return nil, status.Error(codes.InvalidArgument, "movie_id cannot be empty")
	}

	_, err := s.service.Movie(ctx, id)
	switch {
	case err == nil:
		return toStruct(map[string]any{"exists": true})
	case errors.Is(err, store.ErrMovieNotFound):
		return toStruct(map[string]any{"exists": false})
	default:
		return nil, s.toStatus(ctx, "CheckMovieExists", err)
	}
}

// Recommend принимает запрос рекомендаций и возвращает
// {"results", "count", "sort_by"}.
func (s *Server) Recommend(ctx context.Context, in *structpb.Struct) (*structpb.Struct, error) {
	var req domain.RecommendationRequest
	if err := fromStruct(in, &req); err != nil {
		return nil, status.Errorf(codes.InvalidArgument, "invalid request: %v", err)
	}
	resp, err := s.service.Recommend(ctx, req)
	if err != nil {
		return nil, s.toStatus(ctx, "Recommend", err)
	}
	return toStruct(resp)
}

// BoothPicks возвращает подборку booth picks.
func (s *Server) BoothPicks(ctx context.Context, in *structpb.Struct) (*structpb.Struct, error) {
	var req picksRequest
	if err := fromStruct(in, &req); err != nil {
		return nil, status.Errorf(codes.InvalidArgument, "invalid request: %v", err)
	}
	resp, err := s.service.BoothPicks(ctx, req.Refresh)
	if err != nil {
		return nil, s.toStatus(ctx, "BoothPicks", err)
	}
	return toStruct(resp)
}

func (s *Server) toStatus(ctx context.Context, method string, err error) error {
	switch {
	case errors.Is(err, filter.ErrLanguageRequired):
		return status.Error(codes.InvalidArgument, err.Error())
	case errors.Is(err, store.ErrMovieNotFound):
		return status.Error(codes.NotFound, "movie not found")
	case errors.Is(err, store.ErrCatalogUnavailable):
		return status.Error(codes.Unavailable, "catalog temporarily unavailable")
	case errors.Is(err, context.Canceled):
		return status.Error(codes.Canceled, err.Error())
	case errors.Is(err, context.DeadlineExceeded):
		return status.Error(codes.DeadlineExceeded, err.Error())
	}
	s.logger.ErrorContext(ctx, "gRPC call failed", slog.String("method", method), slog.String("error", err.Error()))
	return status.Errorf(codes.Internal, "failed to %s", strings.ToLower(method))
}

func toStruct(v any) (*structpb.Struct, error) {
	out, err := EncodeStruct(v)
	if err != nil {
		return nil, status.Errorf(codes.Internal, "failed to encode response: %v", err)
	}
	return out, nil
}

func fromStruct(in *structpb.Struct, dst any) error {
	return DecodeStruct(in, dst)
}

// EncodeStruct преобразует любое JSON-кодируемое значение в сообщение Struct.
func EncodeStruct(v any) (*structpb.Struct, error) {
	raw, err := json.Marshal(v)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal struct: %w", err)
	}
	var m map[string]any
	if err := json.Unmarshal(raw, &m); err != nil {
		return nil, fmt.Errorf("failed to marshal struct: %w", err)
	}
	return structpb.NewStruct(m)
}

// DecodeStruct заполняет dst из сообщения Struct по JSON тегам dst.
func DecodeStruct(in *structpb.Struct, dst any) error {
	if in == nil {
		return nil
	}
	raw, err := json.Marshal(in.AsMap())
	if err != nil {
		return fmt.Errorf("failed to read struct: %w", err)
	}
	return json.Unmarshal(raw, dst)
}

// CatalogServer - тип обработчика, привязанный к ServiceDesc.
type CatalogServer interface {
	GetMovieInfo(context.Context, *structpb.Struct) (*structpb.Struct, error)
	CheckMovieExists(context.Context, *structpb.Struct) (*structpb.Struct, error)
	Recommend(context.Context, *structpb.Struct) (*structpb.Struct, error)
	BoothPicks(context.Context, *structpb.Struct) (*structpb.Struct, error)
}

func unaryHandler(method string, call func(CatalogServer, context.Context, *structpb.Struct) (*structpb.Struct, error)) grpc.MethodHandler {
	return func(srv any, ctx context.Context, dec func(any) error, interceptor grpc.UnaryServerInterceptor) (any, error) {
		in := new(structpb.Struct)
		if err := dec(in); err != nil {
			return nil, err
		}
		if interceptor == nil {
			return call(srv.(CatalogServer), ctx, in)
		}
		info := &grpc.UnaryServerInfo{Server: srv, FullMethod: method}
		handler := func(ctx context.Context, req any) (any, error) {
			return call(srv.(CatalogServer), ctx, req.(*structpb.Struct))
		}
		return interceptor(ctx, in, info, handler)
	}
}

// ServiceDesc описывает сервис каталога для grpc.Server.RegisterService.
var ServiceDesc = grpc.ServiceDesc{
	ServiceName: ServiceName,
	HandlerType: (*CatalogServer)(nil),
	Methods: []grpc.MethodDesc{
		{MethodName: "GetMovieInfo", Handler: unaryHandler(MethodGetMovieInfo, CatalogServer.GetMovieInfo)},
		{MethodName: "CheckMovieExists", Handler: unaryHandler(MethodCheckMovieExists, CatalogServer.CheckMovieExists)},
		{MethodName: "Recommend", Handler: unaryHandler(MethodRecommend, CatalogServer.Recommend)},
		{MethodName: "BoothPicks", Handler: unaryHandler(MethodBoothPicks, CatalogServer.BoothPicks)},
	},
	Streams:  []grpc.StreamDesc{},
	Metadata: "cinelingua/v1/catalog.proto",
}

// Register регистрирует srv в registrar.
func Register(registrar grpc.ServiceRegistrar, srv CatalogServer) {
	registrar.RegisterService(&ServiceDesc, srv)
}

// LoggingInterceptor логирует каждый unary вызов с request id и записывает его код.
func LoggingInterceptor(logger *slog.Logger, m *metrics.Metrics) grpc.UnaryServerInterceptor {
	return func(ctx context.Context, req any, info *grpc.UnaryServerInfo, handler grpc.UnaryHandler) (any, error) {
		requestID := uuid.NewString()
		resp, err := handler(ctx, req)
		code := status.Code(err)
		m.ObserveGRPC(info.FullMethod, code.String())

		attrs := []any{
			slog.String("request_id", requestID),
			slog.String("method", info.FullMethod),
			slog.String("code", code.String()),
		}
		if err != nil && code == codes.Internal {
			logger.ErrorContext(ctx, "gRPC call finished", append(attrs, slog.String("error", err.Error()))...)
		} else {
			logger.InfoContext(ctx, "gRPC call finished", attrs...)
		}
		return resp, err
	}
}
