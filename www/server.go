package www

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/icodeforyou/solarbank-forecast/config"
	"github.com/icodeforyou/solarbank-forecast/forecast"
)

// Deps are the parts of the application the server exposes.
type Deps struct {
	Latest       *forecast.Latest
	Logs         forecast.LogProvider
	Adapters     AdapterSource
	Runs         RunReader
	Settings     func() forecast.Settings
	Bucket       func() time.Duration
	ForecastTask func()
	LogReader    LogReader
	Location     *time.Location
	SysInfo      SysInfo
}

type Server struct {
	logger  *slog.Logger
	config  config.AppConfigApi
	hub     *Hub
	handler http.Handler
}

func NewServer(config config.AppConfigApi, deps Deps) *Server {
	logger := slog.Default().With("module", "www")

	s := &Server{
		logger: logger,
		config: config,
		hub:    NewHub(logger),
	}

	go s.hub.Run()

	logReqMW := func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			s.logger.Debug("http request",
				slog.String("method", r.Method),
				slog.String("url", r.URL.String()),
				slog.String("remoteAddr", r.RemoteAddr))
			next.ServeHTTP(w, r)
		})
	}

	mux := http.NewServeMux()

	mux.Handle("/forecast", logReqMW(NewForecastHandler(
		logger.With(slog.String("handler", "forecast")),
		deps.Latest,
		deps.Bucket,
		deps.ForecastTask)))

	mux.Handle("/forecast_run", logReqMW(NewForecastRunHandler(
		logger.With(slog.String("handler", "forecast_run")),
		deps.Runs)))

	mux.Handle("/closest_days", logReqMW(NewClosestDaysHandler(
		logger.With(slog.String("handler", "closest_days")),
		deps.Logs,
		deps.Settings,
		deps.Location)))

	mux.Handle("/adapter", logReqMW(NewAdapterHandler(
		logger.With(slog.String("handler", "adapter")),
		deps.Adapters)))

	mux.Handle("/log", logReqMW(NewLogHandler(
		logger.With(slog.String("handler", "log")),
		deps.LogReader)))

	mux.Handle("/sys_info", logReqMW(NewSysInfoHandler(
		logger.With(slog.String("handler", "sys_info")),
		deps.SysInfo)))

	mux.HandleFunc("/ws", func(w http.ResponseWriter, r *http.Request) {
		name := r.Header.Get("User-Agent")
		client, err := NewClient(s.hub, w, r, name)
		if err != nil {
			s.logger.Error("new websocket client failed", slog.Any("error", err))
			return
		}
		s.hub.Register <- client
		go client.WritePump()
		go client.ReadPump()
	})

	s.handler = mux
	return s
}

func (s *Server) Hub() *Hub {
	return s.hub
}

func (s *Server) Handler() http.Handler {
	return s.handler
}

func (s *Server) Run(ctx context.Context) {
	s.logger.Info("starting server...", "port", s.config.Port)
	srv := &http.Server{
		Addr:    fmt.Sprintf("%s:%d", s.config.Address, s.config.Port),
		Handler: s.handler,
	}

	srvErrors := make(chan error, 1)

	go func() {
		srvErrors <- srv.ListenAndServe()
	}()

	for {
		select {
		case err := <-srvErrors:
			if err != nil && !errors.Is(err, http.ErrServerClosed) {
				s.logger.Error("server error", slog.Any("error", err))
			}
			return

		case <-ctx.Done():
			shutdownCtx, cancel := context.WithTimeout(context.Background(), time.Second*5)
			defer cancel()
			if err := srv.Shutdown(shutdownCtx); err != nil {
				s.logger.Error("server shutdown failed", slog.Any("error", err))
			}
			return
		}
	}
}
