package server

import (
	"log/slog"
	"net/http"

	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"

	"github.com/shouni/go-coloring-kit/internal/builder"
)

// Server は塗り絵生成パイプラインをHTTP経由で公開します。
// 認証やレート制限は外側のゲートウェイに委ねます。
type Server struct {
	appCtx *builder.AppContext
	echo   *echo.Echo
}

// New は Server を生成し、ミドルウェアとルートを登録します。
func New(appCtx *builder.AppContext) *Server {
	s := &Server{
		appCtx: appCtx,
		echo:   echo.New(),
	}
	s.echo.HideBanner = true
	s.setupMiddleware()
	s.setupRoutes()
	return s
}

// Start はHTTPサーバーを起動します。
func (s *Server) Start(addr string) error {
	return s.echo.Start(addr)
}

func (s *Server) setupMiddleware() {
	e := s.echo

	e.HTTPErrorHandler = s.httpErrorHandler

	e.Use(middleware.RequestLoggerWithConfig(middleware.RequestLoggerConfig{
		LogStatus:  true,
		LogURI:     true,
		LogMethod:  true,
		LogLatency: true,
		LogValuesFunc: func(c echo.Context, v middleware.RequestLoggerValues) error {
			slog.InfoContext(c.Request().Context(), "リクエストを処理しました",
				"method", v.Method, "uri", v.URI, "status", v.Status, "latency", v.Latency)
			return nil
		},
	}))

	e.Use(middleware.Recover())
}

func (s *Server) setupRoutes() {
	api := s.echo.Group("/api/v1")
	api.POST("/batch", s.handleBatch)
	api.POST("/pages/regenerate", s.handleRegenerate)
	api.POST("/assets", s.handlePersistAsset)
	api.POST("/assets/sweep", s.handleSweep)
}

// errorResponse は失敗時の共通レスポンスです。
type errorResponse struct {
	OK        bool   `json:"ok"`
	Error     string `json:"error"`
	ErrorCode string `json:"errorCode,omitempty"`
}

func (s *Server) httpErrorHandler(err error, c echo.Context) {
	if c.Response().Committed {
		return
	}

	code := http.StatusInternalServerError
	msg := err.Error()
	if he, ok := err.(*echo.HTTPError); ok {
		code = he.Code
		msg = he.Error()
		if m, ok := he.Message.(string); ok {
			msg = m
		}
	}

	slog.ErrorContext(c.Request().Context(), "リクエストの処理に失敗しました",
		"status", code, "error", err)

	_ = c.JSON(code, errorResponse{OK: false, Error: msg, ErrorCode: errorCodeFor(code)})
}

func errorCodeFor(status int) string {
	switch {
	case status == http.StatusBadRequest:
		return "invalid_request"
	case status >= 500:
		return "internal"
	default:
		return ""
	}
}
