package router

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gorilla/mux"

	"caudal-api/internal/domain"
	"caudal-api/internal/endpoints"
	"caudal-api/internal/util"
)

func NewRouter(store domain.MeasurementStore, logger *util.AppLogger, limits endpoints.Limits) *mux.Router {
	r := mux.NewRouter()

	addRoutes(r, store, logger, limits)

	r.Use(loggingMiddleware(logger))
	r.Use(corsMiddleware)

	return r
}

func addRoutes(r *mux.Router, store domain.MeasurementStore, logger *util.AppLogger, limits endpoints.Limits) {

	obrasHandler := &endpoints.Obras{}
	obrasHandler.Init(store, logger, limits)

	r.MethodNotAllowedHandler = http.HandlerFunc(obrasHandler.MethodNotAllowedHandler)

	r.HandleFunc("/obras/count", obrasHandler.GetCountHandler).Methods("GET", "OPTIONS")
	r.HandleFunc("/ubicaciones", obrasHandler.GetLocationsHandler).Methods("GET", "OPTIONS")
	r.HandleFunc("/coordenadas_unicas", obrasHandler.GetUniqueCoordinatesHandler).Methods("GET", "OPTIONS")
	r.HandleFunc("/analisis_cuenca", obrasHandler.GetBasinAnalysisHandler).Methods("GET", "OPTIONS")
	r.HandleFunc("/informantes_por_cuenca", obrasHandler.GetReportersByBasinHandler).Methods("GET", "OPTIONS")
	r.HandleFunc("/caudal_por_tiempo_por_cuenca", obrasHandler.GetFlowOverTimeHandler).Methods("GET", "OPTIONS")
	r.HandleFunc("/healthz", obrasHandler.HealthHandler).Methods("GET", "OPTIONS")
}

func NewServer(addr string, handler http.Handler) *http.Server {
	return &http.Server{
		Addr:         addr,
		Handler:      handler,
		ReadTimeout:  5 * time.Second,
		WriteTimeout: 30 * time.Second,
		IdleTimeout:  120 * time.Second,
	}
}

// Run serves until SIGINT/SIGTERM, then drains in-flight requests.
func Run(addr string, store domain.MeasurementStore, logger *util.AppLogger, limits endpoints.Limits) error {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	return serve(ctx, NewServer(addr, NewRouter(store, logger, limits)), logger)
}

func serve(ctx context.Context, server *http.Server, logger *util.AppLogger) error {
	errCh := make(chan error, 1)
	go func() {
		logger.LogEvent(util.LOG_LEVEL_INFO, "Listening on", server.Addr)
		errCh <- server.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return err
	case <-ctx.Done():
	}

	logger.LogEvent(util.LOG_LEVEL_INFO, "Shutting down server...")
	if err := gracefulShutdown(server, 25*time.Second); err != nil {
		logger.LogEvent(util.LOG_LEVEL_ERROR, "Server stopped with error:", err)
		return err
	}
	logger.LogEvent(util.LOG_LEVEL_INFO, "Server stopped gracefully.")
	return nil
}

func gracefulShutdown(server *http.Server, maximumTime time.Duration) error {
	ctx, cancel := context.WithTimeout(context.Background(), maximumTime)
	defer cancel()

	return server.Shutdown(ctx)
}

type statusRecorder struct {
	http.ResponseWriter
	status int
}

func (s *statusRecorder) WriteHeader(code int) {
	s.status = code
	s.ResponseWriter.WriteHeader(code)
}

func loggingMiddleware(logger *util.AppLogger) mux.MiddlewareFunc {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			start := time.Now()
			rec := &statusRecorder{ResponseWriter: w, status: http.StatusOK}
			next.ServeHTTP(rec, r)
			logger.LogEvent(util.LOG_LEVEL_INFO, fmt.Sprintf("Request: %s %s -> %d (%s)", r.Method, r.RequestURI, rec.status, time.Since(start)))
		})
	}
}

func corsMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Access-Control-Allow-Origin", "*")
		w.Header().Set("Access-Control-Allow-Methods", "GET, OPTIONS")
		w.Header().Set("Access-Control-Allow-Headers", "Content-Type, Authorization")

		if r.Method == http.MethodOptions {
			w.WriteHeader(http.StatusNoContent)
			return
		}

		next.ServeHTTP(w, r)
	})
}
