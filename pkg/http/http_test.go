package http

import (
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/labstack/echo/v4"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type sampleRequest struct {
	Symbol string `query:"symbol" validate:"required,alphanum"`
	TF     string `query:"tf" default:"1h" validate:"oneof=1h 4h"`
}

func TestReadAndValidateRequest(t *testing.T) {
	e := echo.New()

	req := httptest.NewRequest(http.MethodGet, "/?symbol=BTC", nil)
	c := e.NewContext(req, httptest.NewRecorder())
	var ok sampleRequest
	assert.Nil(t, ReadAndValidateRequest(c, &ok))
	assert.Equal(t, "1h", ok.TF)

	req = httptest.NewRequest(http.MethodGet, "/?tf=2h", nil)
	c = e.NewContext(req, httptest.NewRecorder())
	var bad sampleRequest
	errs := ReadAndValidateRequest(c, &bad)
	require.Len(t, errs, 2)
	assert.Equal(t, "ERR_REQUIRED", errs[0].Code)
	assert.Equal(t, "ERR_ONEOF", errs[1].Code)
	assert.Equal(t, "TF must be one of: 1h, 4h", errs[1].Message)
}

func TestAppErrorResponse(t *testing.T) {
	e := echo.New()
	rec := httptest.NewRecorder()
	c := e.NewContext(httptest.NewRequest(http.MethodGet, "/", nil), rec)

	wrapped := errors.Join(errors.New("ctx"), NotFoundError("model not found"))
	require.NoError(t, AppErrorResponse(c, wrapped))
	assert.Equal(t, http.StatusNotFound, rec.Code)

	var body struct {
		Status int        `json:"status"`
		Data   []AppError `json:"data"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	assert.Equal(t, http.StatusNotFound, body.Status)
	require.Len(t, body.Data, 1)
	assert.Equal(t, "ERR_NOT_FOUND", body.Data[0].Code)

	rec = httptest.NewRecorder()
	c = e.NewContext(httptest.NewRequest(http.MethodGet, "/", nil), rec)
	require.NoError(t, AppErrorResponse(c, errors.New("db down")))
	assert.Equal(t, http.StatusInternalServerError, rec.Code)
	assert.NotContains(t, rec.Body.String(), "db down")
}

func TestParseRange(t *testing.T) {
	now := time.Date(2024, 6, 1, 0, 0, 0, 0, time.UTC)

	from, to, err := ParseRange("2024-05-01", "", now)
	require.NoError(t, err)
	assert.Equal(t, time.Date(2024, 5, 1, 0, 0, 0, 0, time.UTC), from)
	assert.Equal(t, now, to)

	_, _, err = ParseRange("", "", now)
	var appErr *AppError
	require.ErrorAs(t, err, &appErr)
	assert.Equal(t, "start", appErr.Field)

	_, _, err = ParseRange("2024-05-02", "2024-05-01", now)
	require.ErrorAs(t, err, &appErr)
	assert.Equal(t, http.StatusBadRequest, appErr.Status)

	_, _, err = ParseRange("2024-05-01", "soon", now)
	require.ErrorAs(t, err, &appErr)
	assert.Equal(t, "end", appErr.Field)
}

type pingHandler struct{}

func (pingHandler) RegisterRoutes(e *echo.Echo) {
	e.GET("/ping", func(c echo.Context) error { return SuccessResponse(c, "pong") })
	e.GET("/panic", func(c echo.Context) error { panic("boom") })
}

func TestServerRoutes(t *testing.T) {
	s := NewServer(nil, []Handler{pingHandler{}}, WithMetricsPath("/metrics"))

	rec := httptest.NewRecorder()
	s.Echo().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/ping", nil))
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.True(t, strings.Contains(rec.Body.String(), "pong"))

	rec = httptest.NewRecorder()
	s.Echo().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/panic", nil))
	assert.Equal(t, http.StatusInternalServerError, rec.Code)

	rec = httptest.NewRecorder()
	s.Echo().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/metrics", nil))
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), "http_requests_total")
}
