package api

import (
	"context"
	"errors"
	"net/http"
	"time"

	models "MarketSignal/internal/domain/models"
	domrepo "MarketSignal/internal/domain/repository"
	"MarketSignal/internal/services/backtest"
	"MarketSignal/internal/usecase"
	xhttp "MarketSignal/pkg/http"
	xlogger "MarketSignal/pkg/logger"

	"github.com/labstack/echo/v4"
)

type Analyzer interface {
	Analyze(ctx context.Context, p usecase.AnalyzeParams) (*models.AnalyticsResult, error)
}

type Backtester interface {
	Run(ctx context.Context, p backtest.Params) (*models.BacktestResult, error)
}

type ModelManager interface {
	TrainFromHistory(ctx context.Context, symbol string, start, end time.Time) (*models.Model, error)
	CurrentModel(ctx context.Context) (*models.Model, error)
}

// HealthCheck pings one dependency.
type HealthCheck func(ctx context.Context) error

// AnalyticsHandler serves the signal, backtest and model endpoints.
type AnalyticsHandler struct {
	logger   *xlogger.Logger
	analyzer Analyzer
	bt       Backtester
	models   ModelManager
	checks   map[string]HealthCheck
	now      func() time.Time
}

func NewAnalyticsHandler(logger *xlogger.Logger, analyzer Analyzer, bt Backtester, mm ModelManager, checks map[string]HealthCheck) *AnalyticsHandler {
	return &AnalyticsHandler{
		logger:   logger,
		analyzer: analyzer,
		bt:       bt,
		models:   mm,
		checks:   checks,
		now:      time.Now,
	}
}

func (h *AnalyticsHandler) RegisterRoutes(e *echo.Echo) {
	g := e.Group("/api")
	g.GET("/signal/analytics", h.SignalAnalytics)
	g.GET("/backtest", h.Backtest)
	g.POST("/model/train", h.TrainModel)
	g.GET("/model", h.CurrentModel)
	e.GET("/healthz", h.Health)
}

// SignalAnalytics returns the analytics payload unwrapped.
func (h *AnalyticsHandler) SignalAnalytics(c echo.Context) error {
	req := &models.AnalyticsRequest{}
	if verr := xhttp.ReadAndValidateRequest(c, req); verr != nil {
		return xhttp.BadRequestResponse(c, verr)
	}
	p := usecase.AnalyzeParams{
		Symbol:   req.Symbol,
		Pair:     req.Pair,
		Interval: domrepo.NormalizeInterval(req.TF),
	}
	if req.At != "" {
		at, ok := xhttp.ParseTime(req.At)
		if !ok {
			return xhttp.AppErrorResponse(c, xhttp.BadRequestErrorf("invalid at %q", req.At).WithField("at"))
		}
		p.At = &at
	}

	res, err := h.analyzer.Analyze(c.Request().Context(), p)
	if err != nil {
		h.logger.Error("signal analytics failed", xlogger.String("symbol", req.Symbol), xlogger.Error(err))
		return xhttp.AppErrorResponse(c, err)
	}
	if p.At == nil {
		c.Response().Header().Set(echo.HeaderCacheControl, "private, max-age=15")
	}
	return c.JSON(http.StatusOK, res)
}

func (h *AnalyticsHandler) Backtest(c echo.Context) error {
	req := &models.BacktestRequest{}
	if verr := xhttp.ReadAndValidateRequest(c, req); verr != nil {
		return xhttp.BadRequestResponse(c, verr)
	}
	start, end, err := xhttp.ParseRange(req.Start, req.End, h.now())
	if err != nil {
		return xhttp.AppErrorResponse(c, err)
	}

	res, err := h.bt.Run(c.Request().Context(), backtest.Params{Symbol: req.Symbol, Start: start, End: end})
	if err != nil {
		h.logger.Error("backtest failed", xlogger.String("symbol", req.Symbol), xlogger.Error(err))
		return xhttp.AppErrorResponse(c, err)
	}
	return xhttp.SuccessResponse(c, res)
}

func (h *AnalyticsHandler) TrainModel(c echo.Context) error {
	req := &models.TrainRequest{}
	if verr := xhttp.ReadAndValidateRequest(c, req); verr != nil {
		return xhttp.BadRequestResponse(c, verr)
	}
	start, end, err := xhttp.ParseRange(req.Start, req.End, h.now())
	if err != nil {
		return xhttp.AppErrorResponse(c, err)
	}

	m, err := h.models.TrainFromHistory(c.Request().Context(), req.Symbol, start, end)
	switch {
	case errors.Is(err, models.ErrInsufficientData):
		return xhttp.AppErrorResponse(c, xhttp.UnprocessableError("not enough labelled snapshots to train").WithError(err))
	case errors.Is(err, models.ErrVersionConflict):
		return xhttp.AppErrorResponse(c, xhttp.ConflictError("model was replaced concurrently, retry").WithError(err))
	case err != nil:
		h.logger.Error("model training failed", xlogger.String("symbol", req.Symbol), xlogger.Error(err))
		return xhttp.AppErrorResponse(c, err)
	}
	return xhttp.CreatedResponse(c, summarize(m))
}

func (h *AnalyticsHandler) CurrentModel(c echo.Context) error {
	m, err := h.models.CurrentModel(c.Request().Context())
	if errors.Is(err, models.ErrModelNotFound) {
		return xhttp.AppErrorResponse(c, xhttp.NotFoundError("no model trained yet"))
	}
	if err != nil {
		h.logger.Error("load model failed", xlogger.Error(err))
		return xhttp.AppErrorResponse(c, err)
	}
	return xhttp.SuccessResponse(c, summarize(m))
}

// Health reports every dependency and answers 503 if any of them fails.
func (h *AnalyticsHandler) Health(c echo.Context) error {
	ctx, cancel := context.WithTimeout(c.Request().Context(), 2*time.Second)
	defer cancel()

	status := http.StatusOK
	out := make(map[string]string, len(h.checks))
	for name, check := range h.checks {
		if err := check(ctx); err != nil {
			h.logger.Warn("health check failed", xlogger.String("dependency", name), xlogger.Error(err))
			out[name] = err.Error()
			status = http.StatusServiceUnavailable
			continue
		}
		out[name] = "ok"
	}
	return xhttp.DataResponse(c, status, out)
}

func summarize(m *models.Model) models.ModelSummary {
	return models.ModelSummary{
		Version:      m.Version,
		Samples:      m.Samples,
		Epochs:       m.Epochs,
		LearningRate: m.LearningRate,
		FeatureNames: m.FeatureNames,
		Weights:      m.Weights,
		TrainedAt:    m.TrainedAt.UTC().Format(time.RFC3339),
	}
}
