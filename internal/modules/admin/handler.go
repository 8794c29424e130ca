package admin

import (
	"context"
	"log/slog"
	"net/http"
	"time"

	"github.com/danielgtaylor/huma/v2"
)

type Handler struct {
	service Service
	logger  *slog.Logger
}

func NewHandler(service Service, logger *slog.Logger) *Handler {
	return &Handler{service: service, logger: logger}
}

// RegisterRoutes mounts the admin routes behind requireAdmin.
func (h *Handler) RegisterRoutes(api huma.API, requireAdmin huma.Middleware) {
	huma.Register(api, huma.Operation{
		OperationID: "admin-diagnostics",
		Method:      http.MethodGet,
		Path:        "/admin/diagnostics",
		Summary:     "Report the status of the database, cache and notification senders",
		Tags:        []string{"admin"},
		Middlewares: huma.Middlewares{requireAdmin},
	}, h.DiagnosticsHandler)
}

// --- DTOs ---

type DiagnosticsRequest struct{}

type CheckBody struct {
	Name      string `json:"name"`
	Status    string `json:"status" enum:"ok,down"`
	LatencyMS int64  `json:"latencyMs"`
	Error     string `json:"error,omitempty"`
}

type DiagnosticsResponse struct {
	Body struct {
		Status        string            `json:"status" enum:"ok,degraded"`
		Checks        []CheckBody       `json:"checks"`
		Notifications map[string]string `json:"notifications,omitempty"`
		CheckedAt     time.Time         `json:"checkedAt"`
	}
}

// --- Handlers ---

// DiagnosticsHandler always answers 200; the body says what is down.
func (h *Handler) DiagnosticsHandler(ctx context.Context, _ *DiagnosticsRequest) (*DiagnosticsResponse, error) {
	report := h.service.Diagnostics(ctx)

	out := &DiagnosticsResponse{}
	out.Body.Status = "ok"
	if !report.Healthy {
		out.Body.Status = "degraded"
	}
	out.Body.Checks = make([]CheckBody, 0, len(report.Checks))
	for _, c := range report.Checks {
		status := "ok"
		if !c.Healthy {
			status = "down"
		}
		out.Body.Checks = append(out.Body.Checks, CheckBody{
			Name:      c.Name,
			Status:    status,
			LatencyMS: c.Latency.Milliseconds(),
			Error:     c.Error,
		})
	}
	out.Body.Notifications = report.Backends
	out.Body.CheckedAt = report.CheckedAt
	return out, nil
}
