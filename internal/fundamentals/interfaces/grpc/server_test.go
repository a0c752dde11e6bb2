package grpc

import (
	"context"
	"encoding/json"
	"net"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"google.golang.org/grpc"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/health"
	healthpb "google.golang.org/grpc/health/grpc_health_v1"
	"google.golang.org/grpc/status"
	"google.golang.org/grpc/test/bufconn"

	"github.com/wyfcoding/insurancefundamentals/internal/fundamentals/application"
	"github.com/wyfcoding/insurancefundamentals/internal/fundamentals/domain"
	"github.com/wyfcoding/insurancefundamentals/pkg/grpcclient"
	"github.com/wyfcoding/insurancefundamentals/pkg/middleware"
)

func newTestClient(t *testing.T) (*Client, *grpc.ClientConn) {
	t.Helper()

	lis := bufconn.Listen(1 << 20)
	s := grpc.NewServer(grpc.ChainUnaryInterceptor(
		middleware.GRPCRecoveryInterceptor(),
		middleware.GRPCLoggingInterceptor(),
	))
	NewServer(s, application.NewSimulationService())
	healthpb.RegisterHealthServer(s, health.NewServer())

	go func() { _ = s.Serve(lis) }()
	t.Cleanup(s.Stop)

	conn, err := grpcclient.NewClient(grpcclient.ClientConfig{
		Target:         "passthrough:///bufnet",
		RequestTimeout: 10,
	}, grpc.WithContextDialer(func(ctx context.Context, _ string) (net.Conn, error) {
		return lis.DialContext(ctx)
	}))
	require.NoError(t, err)
	t.Cleanup(func() { _ = conn.Close() })

	return NewClient(conn), conn
}

func TestRun_Premium(t *testing.T) {
	client, _ := newTestClient(t)

	raw, err := client.Run(context.Background(), domain.ModulePremium,
		json.RawMessage(`{"convention":"additive","frequency":"0.05","severity":"1000","expense_load":"10","profit_load":"5","risk_margin":"5"}`))
	require.NoError(t, err)

	var report struct {
		Module string `json:"module"`
		Result struct {
			Breakdown struct {
				Total string `json:"total"`
			} `json:"breakdown"`
		} `json:"result"`
	}
	require.NoError(t, json.Unmarshal(raw, &report))
	assert.Equal(t, "premium", report.Module)
	assert.Equal(t, "70", report.Result.Breakdown.Total)
}

func TestRun_SeedEchoed(t *testing.T) {
	client, _ := newTestClient(t)

	params := json.RawMessage(`{"seed":42,"trials":50,"years":5}`)
	first, err := client.Run(context.Background(), domain.ModuleCapital, params)
	require.NoError(t, err)
	second, err := client.Run(context.Background(), domain.ModuleCapital, params)
	require.NoError(t, err)

	var a, b struct {
		Seed   string          `json:"seed"`
		Result json.RawMessage `json:"result"`
	}
	require.NoError(t, json.Unmarshal(first, &a))
	require.NoError(t, json.Unmarshal(second, &b))
	assert.Equal(t, "42", a.Seed)
	assert.JSONEq(t, string(a.Result), string(b.Result))
}

func TestRun_Errors(t *testing.T) {
	client, _ := newTestClient(t)

	tests := []struct {
		name   string
		module domain.Module
		params string
		code   codes.Code
	}{
		{"validation", domain.ModuleCapital, `{"trials":0}`, codes.InvalidArgument},
		{"unknown field", domain.ModuleLawOfLargeNumbers, `{"drivers":10}`, codes.InvalidArgument},
		{"unknown module", domain.Module("reinsurance"), ``, codes.NotFound},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := client.Run(context.Background(), tt.module, json.RawMessage(tt.params))
			require.Error(t, err)
			assert.Equal(t, tt.code, status.Code(err))
		})
	}
}

func TestListModules(t *testing.T) {
	client, _ := newTestClient(t)

	raw, err := client.ListModules(context.Background())
	require.NoError(t, err)

	var out struct {
		Modules []struct {
			Module string `json:"module"`
			Title  string `json:"title"`
		} `json:"modules"`
	}
	require.NoError(t, json.Unmarshal(raw, &out))
	require.Len(t, out.Modules, len(domain.Modules()))
	assert.Equal(t, "Role of Capital", out.Modules[4].Title)
}

func TestHealth(t *testing.T) {
	_, conn := newTestClient(t)

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	resp, err := healthpb.NewHealthClient(conn).Check(ctx, &healthpb.HealthCheckRequest{})
	require.NoError(t, err)
	assert.Equal(t, healthpb.HealthCheckResponse_SERVING, resp.GetStatus())
}
