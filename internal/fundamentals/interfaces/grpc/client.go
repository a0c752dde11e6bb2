package grpc

import (
	"context"
	"encoding/json"
	"fmt"

	"google.golang.org/grpc"
	"google.golang.org/protobuf/encoding/protojson"
	"google.golang.org/protobuf/types/known/emptypb"
	"google.golang.org/protobuf/types/known/structpb"

	"github.com/wyfcoding/insurancefundamentals/internal/fundamentals/domain"
)

// Client 计算服务客户端
type Client struct {
	cc grpc.ClientConnInterface
}

// NewClient 基于已有连接创建客户端
func NewClient(cc grpc.ClientConnInterface) *Client {
	return &Client{cc: cc}
}

// Run 远程运行一次计算，返回报告 JSON
func (c *Client) Run(ctx context.Context, module domain.Module, params json.RawMessage) (json.RawMessage, error) {
	in, err := structpb.NewStruct(map[string]any{"module": string(module)})
	if err != nil {
		return nil, err
	}
	if len(params) > 0 {
		p := new(structpb.Struct)
		if err := protojson.Unmarshal(params, p); err != nil {
			return nil, fmt.Errorf("params must be a JSON object: %w", err)
		}
		in.Fields["params"] = structpb.NewStructValue(p)
	}

	out := new(structpb.Struct)
	if err := c.cc.Invoke(ctx, RunMethod, in, out); err != nil {
		return nil, err
	}
	return protojson.Marshal(out)
}

// ListModules 列出远端支持的计算单元
func (c *Client) ListModules(ctx context.Context) (json.RawMessage, error) {
	out := new(structpb.Struct)
	if err := c.cc.Invoke(ctx, ListModulesMethod, new(emptypb.Empty), out); err != nil {
		return nil, err
	}
	return protojson.Marshal(out)
}
