package middleware

import (
	"net/http"
	"slices"
	"strconv"
	"strings"

	"github.com/labstack/echo/v4"
)

// CORSConfig holds CORS configuration. An empty AllowOrigins allows every origin.
type CORSConfig struct {
	AllowOrigins  []string
	AllowMethods  []string
	AllowHeaders  []string
	ExposeHeaders []string
	MaxAge        int
}

// CORS answers preflight requests and decorates simple ones for allowed origins.
func CORS(cfg CORSConfig) echo.MiddlewareFunc {
	methods := strings.Join(cfg.AllowMethods, ", ")
	headers := strings.Join(cfg.AllowHeaders, ", ")
	expose := strings.Join(cfg.ExposeHeaders, ", ")
	wildcard := len(cfg.AllowOrigins) == 0 || slices.Contains(cfg.AllowOrigins, "*")

	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			req := c.Request()
			h := c.Response().Header()
			origin := req.Header.Get(echo.HeaderOrigin)
			h.Add(echo.HeaderVary, echo.HeaderOrigin)

			if origin == "" || (!wildcard && !slices.Contains(cfg.AllowOrigins, origin)) {
				return next(c)
			}
			if wildcard {
				h.Set(echo.HeaderAccessControlAllowOrigin, "*")
			} else {
				h.Set(echo.HeaderAccessControlAllowOrigin, origin)
			}

			preflight := req.Method == http.MethodOptions && req.Header.Get(echo.HeaderAccessControlRequestMethod) != ""
			if !preflight {
				if expose != "" {
					h.Set(echo.HeaderAccessControlExposeHeaders, expose)
				}
				return next(c)
			}

			if methods != "" {
				h.Set(echo.HeaderAccessControlAllowMethods, methods)
			}
			if headers != "" {
				h.Set(echo.HeaderAccessControlAllowHeaders, headers)
			}
			if cfg.MaxAge > 0 {
				h.Set(echo.HeaderAccessControlMaxAge, strconv.Itoa(cfg.MaxAge))
			}
			return c.NoContent(http.StatusNoContent)
		}
	}
}
