// Package grpc 以 gRPC 暴露计算服务，请求与响应均为 google.protobuf.Struct
package grpc

import (
	"context"

	"google.golang.org/grpc"
	"google.golang.org/protobuf/types/known/emptypb"
	"google.golang.org/protobuf/types/known/structpb"
)

const (
	// ServiceName 服务全名
	ServiceName = "insurance.fundamentals.v1.SimulationService"
	// RunMethod 运行一次计算
	RunMethod = "/" + ServiceName + "/Run"
	// ListModulesMethod 列出计算单元及默认参数
	ListModulesMethod = "/" + ServiceName + "/ListModules"
)

// SimulationServiceServer 服务端接口
//
// Run 的请求形如 {"module": "capital", "params": {...}}，响应为报告 JSON 对应的 Struct。
type SimulationServiceServer interface {
	Run(context.Context, *structpb.Struct) (*structpb.Struct, error)
	ListModules(context.Context, *emptypb.Empty) (*structpb.Struct, error)
}

// SimulationServiceDesc 服务描述
var SimulationServiceDesc = grpc.ServiceDesc{
	ServiceName: ServiceName,
	HandlerType: (*SimulationServiceServer)(nil),
	Methods: []grpc.MethodDesc{
		{MethodName: "Run", Handler: runHandler},
		{MethodName: "ListModules", Handler: listModulesHandler},
	},
	Streams:  []grpc.StreamDesc{},
	Metadata: "insurance/fundamentals/v1/simulation.proto",
}

// RegisterSimulationServiceServer 注册服务实现
func RegisterSimulationServiceServer(s grpc.ServiceRegistrar, srv SimulationServiceServer) {
	s.RegisterService(&SimulationServiceDesc, srv)
}

func runHandler(srv any, ctx context.Context, dec func(any) error, interceptor grpc.UnaryServerInterceptor) (any, error) {
	in := new(structpb.Struct)
	if err := dec(in); err != nil {
		return nil, err
	}
	if interceptor == nil {
		return srv.(SimulationServiceServer).Run(ctx, in)
	}
	info := &grpc.UnaryServerInfo{Server: srv, FullMethod: RunMethod}
	handler := func(ctx context.Context, req any) (any, error) {
		return srv.(SimulationServiceServer).Run(ctx, req.(*structpb.Struct))
	}
	return interceptor(ctx, in, info, handler)
}

func listModulesHandler(srv any, ctx context.Context, dec func(any) error, interceptor grpc.UnaryServerInterceptor) (any, error) {
	in := new(emptypb.Empty)
	if err := dec(in); err != nil {
		return nil, err
	}
	if interceptor == nil {
		return srv.(SimulationServiceServer).ListModules(ctx, in)
	}
	info := &grpc.UnaryServerInfo{Server: srv, FullMethod: ListModulesMethod}
	handler := func(ctx context.Context, req any) (any, error) {
		return srv.(SimulationServiceServer).ListModules(ctx, req.(*emptypb.Empty))
	}
	return interceptor(ctx, in, info, handler)
}
