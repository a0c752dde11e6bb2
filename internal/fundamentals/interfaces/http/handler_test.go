package http

import (
	"bufio"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/wyfcoding/insurancefundamentals/internal/fundamentals/application"
	"github.com/wyfcoding/insurancefundamentals/internal/fundamentals/domain"
)

func init() {
	gin.SetMode(gin.TestMode)
}

type envelope struct {
	Code    int             `json:"code"`
	Message string          `json:"message"`
	Data    json.RawMessage `json:"data"`
	Detail  string          `json:"detail"`
}

func newRouter(t *testing.T) (*gin.Engine, *application.Dashboard) {
	t.Helper()
	svc := application.NewSimulationService()
	dashboard := application.NewDashboard(svc, 4)

	r := gin.New()
	NewFundamentalsHandler(svc, dashboard).RegisterRoutes(&r.RouterGroup)
	return r, dashboard
}

func do(r http.Handler, method, path, body string) (*httptest.ResponseRecorder, envelope) {
	req := httptest.NewRequest(method, path, strings.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)

	var env envelope
	_ = json.Unmarshal(w.Body.Bytes(), &env)
	return w, env
}

func TestRun_Premium(t *testing.T) {
	r, _ := newRouter(t)

	w, env := do(r, http.MethodPost, "/api/v1/fundamentals/premium", `{"convention":"additive","frequency":"0.05","severity":"1000","expense_load":"10","profit_load":"5","risk_margin":"5"}`)
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())

	var report struct {
		Module string `json:"module"`
		Result struct {
			Breakdown struct {
				Total string `json:"total"`
			} `json:"breakdown"`
		} `json:"result"`
		Interpretation []string `json:"interpretation"`
	}
	require.NoError(t, json.Unmarshal(env.Data, &report))
	assert.Equal(t, "premium", report.Module)
	assert.Equal(t, "70", report.Result.Breakdown.Total)
	assert.Contains(t, report.Interpretation, "Final Premium: $70.00")
}

func TestRun_EmptyBodyUsesDefaults(t *testing.T) {
	r, _ := newRouter(t)

	w, env := do(r, http.MethodPost, "/api/v1/fundamentals/balance-sheet", "")
	require.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, string(env.Data), `"equity":"45"`)
}

func TestRun_ValidationError(t *testing.T) {
	r, _ := newRouter(t)

	w, env := do(r, http.MethodPost, "/api/v1/fundamentals/capital", `{"trials": 0}`)
	assert.Equal(t, http.StatusBadRequest, w.Code)
	assert.Equal(t, "trials", env.Detail)
	assert.Contains(t, env.Message, "invalid trials")
}

func TestRun_UnknownModule(t *testing.T) {
	r, _ := newRouter(t)

	w, env := do(r, http.MethodPost, "/api/v1/fundamentals/reinsurance", `{}`)
	assert.Equal(t, http.StatusNotFound, w.Code)
	assert.Equal(t, "module", env.Detail)
}

func TestChart(t *testing.T) {
	r, _ := newRouter(t)

	req := httptest.NewRequest(http.MethodGet, "/api/v1/fundamentals/capital/chart?initial_capital=30&trials=50&seed=9&capital_levels=10,20,40", nil)
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)

	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	assert.Contains(t, w.Header().Get("Content-Type"), "text/html")
	assert.Contains(t, w.Body.String(), "Probability of ruin by initial capital")
	assert.Contains(t, w.Body.String(), "Initial capital $30.0M")
}

func TestChart_BadQuery(t *testing.T) {
	r, _ := newRouter(t)

	w, env := do(r, http.MethodGet, "/api/v1/fundamentals/lln/chart?max_sample_size=abc", "")
	assert.Equal(t, http.StatusBadRequest, w.Code)
	assert.Equal(t, "params", env.Detail)
}

func TestDashboardPage(t *testing.T) {
	r, _ := newRouter(t)

	req := httptest.NewRequest(http.MethodGet, "/", nil)
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)

	require.Equal(t, http.StatusOK, w.Code)
	body := w.Body.String()
	for _, m := range domain.Modules() {
		assert.Contains(t, body, `id="`+string(m)+`"`)
		assert.Contains(t, body, m.Title())
	}
}

func TestListModules(t *testing.T) {
	r, _ := newRouter(t)

	w, env := do(r, http.MethodGet, "/api/v1/fundamentals/modules", "")
	require.Equal(t, http.StatusOK, w.Code)

	var modules []map[string]any
	require.NoError(t, json.Unmarshal(env.Data, &modules))
	assert.Len(t, modules, len(domain.Modules()))
}

func TestSubmitEvent_Validation(t *testing.T) {
	r, _ := newRouter(t)

	w, _ := do(r, http.MethodPost, "/api/v1/fundamentals/events", `{"module":"reinsurance"}`)
	assert.Equal(t, http.StatusBadRequest, w.Code)

	w, _ = do(r, http.MethodPost, "/api/v1/fundamentals/events", `{}`)
	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestEventsRoundTrip(t *testing.T) {
	r, dashboard := newRouter(t)
	srv := httptest.NewServer(r)
	defer srv.Close()

	ctx, cancel := context.WithCancel(context.Background())
	stopped := make(chan error, 1)
	go func() { stopped <- dashboard.Run(ctx) }()
	defer func() {
		cancel()
		<-stopped
	}()

	streamCtx, stopStream := context.WithTimeout(context.Background(), 10*time.Second)
	defer stopStream()
	req, err := http.NewRequestWithContext(streamCtx, http.MethodGet, srv.URL+"/api/v1/fundamentals/events", nil)
	require.NoError(t, err)
	resp, err := http.DefaultClient.Do(req)
	require.NoError(t, err)
	defer resp.Body.Close()
	require.Equal(t, http.StatusOK, resp.StatusCode)

	// 订阅建立后再提交事件
	require.Eventually(t, func() bool {
		submit, err := http.Post(srv.URL+"/api/v1/fundamentals/events", "application/json",
			strings.NewReader(`{"module":"premium","params":{"frequency":"0.1"}}`))
		if err != nil {
			return false
		}
		defer submit.Body.Close()
		return submit.StatusCode == http.StatusAccepted
	}, 5*time.Second, 50*time.Millisecond)

	scanner := bufio.NewScanner(resp.Body)
	scanner.Buffer(make([]byte, 1<<20), 1<<20)
	var data string
	for scanner.Scan() {
		line := scanner.Text()
		if strings.HasPrefix(line, "data:") {
			data = strings.TrimSpace(strings.TrimPrefix(line, "data:"))
			break
		}
	}
	require.NotEmpty(t, data)

	var update UpdateDTO
	require.NoError(t, json.Unmarshal([]byte(data), &update))
	assert.Equal(t, domain.ModulePremium, update.Module)
	assert.Empty(t, update.Error)

	w, env := do(r, http.MethodGet, "/api/v1/fundamentals/premium/latest", "")
	require.Equal(t, http.StatusOK, w.Code)
	assert.NotEmpty(t, env.Data)
}

func TestLatest_NotFound(t *testing.T) {
	r, _ := newRouter(t)

	w, _ := do(r, http.MethodGet, "/api/v1/fundamentals/lln/latest", "")
	assert.Equal(t, http.StatusNotFound, w.Code)
}

func TestQueryParams(t *testing.T) {
	c, _ := gin.CreateTestContext(httptest.NewRecorder())
	c.Request = httptest.NewRequest(http.MethodGet, "/?loss_ratios=0.4,%201.2&seed=18446744073709551615&convention=gross_up", nil)

	raw, err := queryParams(c)
	require.NoError(t, err)
	assert.JSONEq(t, `{"loss_ratios":[0.4,1.2],"seed":18446744073709551615,"convention":"gross_up"}`, string(raw))
}
