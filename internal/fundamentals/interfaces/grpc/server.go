package grpc

import (
	"context"
	"encoding/json"
	"errors"

	"google.golang.org/grpc"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"
	"google.golang.org/protobuf/encoding/protojson"
	"google.golang.org/protobuf/types/known/emptypb"
	"google.golang.org/protobuf/types/known/structpb"

	"github.com/wyfcoding/insurancefundamentals/internal/fundamentals/application"
	"github.com/wyfcoding/insurancefundamentals/internal/fundamentals/domain"
	"github.com/wyfcoding/insurancefundamentals/pkg/logger"
)

// Server gRPC 服务实现
type Server struct {
	app *application.SimulationService
}

// NewServer 创建并注册 gRPC 服务
func NewServer(s *grpc.Server, app *application.SimulationService) *Server {
	srv := &Server{app: app}
	RegisterSimulationServiceServer(s, srv)
	return srv
}

// Run 运行一次计算
func (s *Server) Run(ctx context.Context, req *structpb.Struct) (*structpb.Struct, error) {
	module, err := domain.ParseModule(req.GetFields()["module"].GetStringValue())
	if err != nil {
		return nil, status.Error(codes.NotFound, err.Error())
	}

	var params json.RawMessage
	if p := req.GetFields()["params"]; p != nil {
		if _, ok := p.GetKind().(*structpb.Value_StructValue); !ok {
			return nil, status.Error(codes.InvalidArgument, "params must be an object")
		}
		if params, err = protojson.Marshal(p.GetStructValue()); err != nil {
			return nil, status.Error(codes.InvalidArgument, err.Error())
		}
	}

	report, err := s.app.Run(ctx, module, params)
	if err != nil {
		return nil, toStatus(ctx, err)
	}
	return toStruct(report)
}

// ListModules 列出计算单元及默认参数
func (s *Server) ListModules(_ context.Context, _ *emptypb.Empty) (*structpb.Struct, error) {
	modules := make([]any, 0, len(domain.Modules()))
	for _, m := range domain.Modules() {
		modules = append(modules, map[string]any{
			"module":   string(m),
			"title":    m.Title(),
			"defaults": s.app.DefaultRequest(m),
		})
	}
	return toStruct(map[string]any{"modules": modules})
}

// toStruct 经 JSON 转换为 Struct，保留 decimal 与 seed 的字符串编码
func toStruct(v any) (*structpb.Struct, error) {
	raw, err := json.Marshal(v)
	if err != nil {
		return nil, status.Error(codes.Internal, err.Error())
	}
	out := new(structpb.Struct)
	if err := protojson.Unmarshal(raw, out); err != nil {
		return nil, status.Error(codes.Internal, err.Error())
	}
	return out, nil
}

func toStatus(ctx context.Context, err error) error {
	var ve *domain.ValidationError
	if errors.As(err, &ve) {
		return status.Error(codes.InvalidArgument, err.Error())
	}
	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return status.FromContextError(err).Err()
	}
	logger.Error(ctx, "Simulation request failed", "error", err)
	return status.Error(codes.Internal, err.Error())
}
