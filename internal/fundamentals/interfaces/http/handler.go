package http

import (
	"bytes"
	"embed"
	"encoding/json"
	"errors"
	"html/template"
	"io"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/wyfcoding/insurancefundamentals/internal/fundamentals/application"
	"github.com/wyfcoding/insurancefundamentals/internal/fundamentals/domain"
	"github.com/wyfcoding/insurancefundamentals/internal/fundamentals/infrastructure/chart"
	"github.com/wyfcoding/insurancefundamentals/pkg/logger"
	"github.com/wyfcoding/insurancefundamentals/pkg/response"
)

//go:embed templates/dashboard.html
var templatesFS embed.FS

var dashboardTemplate = template.Must(template.ParseFS(templatesFS, "templates/dashboard.html"))

// maxBodyBytes 请求体上限
const maxBodyBytes = 1 << 20

// SubmitEventRequest 仪表盘参数变更请求
type SubmitEventRequest struct {
	Module string          `json:"module" binding:"required,oneof=lln risk-pooling balance-sheet premium capital"`
	Params json.RawMessage `json:"params"`
}

// UpdateDTO 推送给浏览器的重算结果
type UpdateDTO struct {
	Module domain.Module  `json:"module"`
	Report *domain.Report `json:"report,omitempty"`
	Error  string         `json:"error,omitempty"`
	Field  string         `json:"field,omitempty"`
}

// FundamentalsHandler 负责处理仪表盘与计算接口的 HTTP 请求
type FundamentalsHandler struct {
	service   *application.SimulationService
	dashboard *application.Dashboard
}

// NewFundamentalsHandler 创建 HTTP 处理器
func NewFundamentalsHandler(service *application.SimulationService, dashboard *application.Dashboard) *FundamentalsHandler {
	return &FundamentalsHandler{service: service, dashboard: dashboard}
}

// RegisterRoutes 注册路由
func (h *FundamentalsHandler) RegisterRoutes(router *gin.RouterGroup) {
	router.GET("/", h.Dashboard)

	api := router.Group("/api/v1/fundamentals")
	{
		api.GET("/modules", h.ListModules)
		api.POST("/events", h.SubmitEvent)
		api.GET("/events", h.StreamEvents)
		api.POST("/:module", h.Run)
		api.GET("/:module/chart", h.Chart)
		api.GET("/:module/latest", h.Latest)
	}
}

type moduleView struct {
	Name     domain.Module
	Title    string
	Defaults string
}

// Dashboard 仪表盘页面
func (h *FundamentalsHandler) Dashboard(c *gin.Context) {
	views := make([]moduleView, 0, len(domain.Modules()))
	for _, m := range domain.Modules() {
		defaults, err := json.MarshalIndent(h.service.DefaultRequest(m), "", "  ")
		if err != nil {
			response.Error(c, err)
			return
		}
		views = append(views, moduleView{Name: m, Title: m.Title(), Defaults: string(defaults)})
	}

	var buf bytes.Buffer
	if err := dashboardTemplate.Execute(&buf, gin.H{"Modules": views}); err != nil {
		logger.Error(c.Request.Context(), "Failed to render dashboard", "error", err)
		response.Error(c, err)
		return
	}
	c.Data(http.StatusOK, "text/html; charset=utf-8", buf.Bytes())
}

// ListModules 返回全部模块及其默认参数
func (h *FundamentalsHandler) ListModules(c *gin.Context) {
	out := make([]gin.H, 0, len(domain.Modules()))
	for _, m := range domain.Modules() {
		out = append(out, gin.H{"module": m, "title": m.Title(), "defaults": h.service.DefaultRequest(m)})
	}
	response.Success(c, out)
}

// Run 以请求体 JSON 参数运行计算，空请求体使用默认参数
func (h *FundamentalsHandler) Run(c *gin.Context) {
	module, ok := h.module(c)
	if !ok {
		return
	}

	body, err := io.ReadAll(io.LimitReader(c.Request.Body, maxBodyBytes))
	if err != nil {
		response.ErrorWithStatus(c, http.StatusBadRequest, err.Error(), "")
		return
	}

	report, err := h.service.Run(c.Request.Context(), module, body)
	if err != nil {
		h.fail(c, err)
		return
	}
	response.Success(c, report)
}

// Chart 以查询参数运行计算并返回图表页
func (h *FundamentalsHandler) Chart(c *gin.Context) {
	module, ok := h.module(c)
	if !ok {
		return
	}

	params, err := queryParams(c)
	if err != nil {
		response.ErrorWithStatus(c, http.StatusBadRequest, err.Error(), "")
		return
	}

	report, err := h.service.Run(c.Request.Context(), module, params)
	if err != nil {
		h.fail(c, err)
		return
	}

	var buf bytes.Buffer
	if err := chart.Render(&buf, report); err != nil {
		logger.Error(c.Request.Context(), "Failed to render chart", "module", module, "error", err)
		response.Error(c, err)
		return
	}
	c.Data(http.StatusOK, "text/html; charset=utf-8", buf.Bytes())
}

// Latest 返回仪表盘上模块最近一次成功的报告
func (h *FundamentalsHandler) Latest(c *gin.Context) {
	module, ok := h.module(c)
	if !ok {
		return
	}
	report, found := h.dashboard.Latest(module)
	if !found {
		response.ErrorWithStatus(c, http.StatusNotFound, "no report yet", string(module))
		return
	}
	response.Success(c, report)
}

// SubmitEvent 提交参数变更事件，结果通过事件流推送
func (h *FundamentalsHandler) SubmitEvent(c *gin.Context) {
	var req SubmitEventRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.ErrorWithStatus(c, http.StatusBadRequest, err.Error(), "")
		return
	}

	ev := application.ParameterChanged{Module: domain.Module(req.Module), Params: req.Params}
	if err := h.dashboard.Submit(c.Request.Context(), ev); err != nil {
		if errors.Is(err, application.ErrDashboardStopped) {
			response.ErrorWithStatus(c, http.StatusServiceUnavailable, err.Error(), "")
			return
		}
		h.fail(c, err)
		return
	}
	response.Accepted(c, gin.H{"module": req.Module})
}

// StreamEvents 以 Server-Sent Events 推送重算结果
func (h *FundamentalsHandler) StreamEvents(c *gin.Context) {
	updates, unsubscribe := h.dashboard.Subscribe()
	defer unsubscribe()

	// 事件流为长连接，清除服务端写超时
	if err := http.NewResponseController(c.Writer).SetWriteDeadline(time.Time{}); err != nil {
		logger.Debug(c.Request.Context(), "write deadline not cleared", "error", err)
	}

	c.Header("Content-Type", "text/event-stream")
	c.Header("Cache-Control", "no-cache")
	c.Header("X-Accel-Buffering", "no")
	c.Status(http.StatusOK)
	c.Writer.Flush()
	c.Stream(func(w io.Writer) bool {
		select {
		case u, ok := <-updates:
			if !ok {
				return false
			}
			c.SSEvent("update", toUpdateDTO(u))
			return true
		case <-c.Request.Context().Done():
			return false
		}
	})
}

func (h *FundamentalsHandler) module(c *gin.Context) (domain.Module, bool) {
	module, err := domain.ParseModule(c.Param("module"))
	if err != nil {
		response.ErrorWithStatus(c, http.StatusNotFound, err.Error(), "module")
		return "", false
	}
	return module, true
}

func (h *FundamentalsHandler) fail(c *gin.Context, err error) {
	var ve *domain.ValidationError
	if errors.As(err, &ve) {
		response.ErrorWithStatus(c, http.StatusBadRequest, err.Error(), ve.Field)
		return
	}
	logger.Error(c.Request.Context(), "Simulation request failed", "path", c.FullPath(), "error", err)
	response.Error(c, err)
}

func toUpdateDTO(u application.Update) UpdateDTO {
	dto := UpdateDTO{Module: u.Module, Report: u.Report}
	if u.Err != nil {
		dto.Error = u.Err.Error()
		var ve *domain.ValidationError
		if errors.As(u.Err, &ve) {
			dto.Field = ve.Field
		}
	}
	return dto
}

// queryParams 将查询参数转换为 JSON 对象，同名参数取最后一个
func queryParams(c *gin.Context) (json.RawMessage, error) {
	query := c.Request.URL.Query()
	values := make(map[string]string, len(query))
	for key, v := range query {
		values[key] = v[len(v)-1]
	}
	return application.ParamsFromStrings(values)
}
