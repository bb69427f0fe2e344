package api

import (
	"context"
	"log"
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus/promhttp"

	"stallcast/internal/calendar"
	"stallcast/internal/metrics"
	"stallcast/internal/narrative"
	"stallcast/internal/predict"
	"stallcast/internal/store"
)

type Server struct {
	store    *store.Store
	engine   *predict.Engine
	cal      *calendar.Calendar
	port     string
	loc      *time.Location
	narrator *narrative.Generator
}

func NewServer(store *store.Store, engine *predict.Engine, cal *calendar.Calendar, port string, loc *time.Location) *Server {
	// Narrative summaries are optional - may not have API key
	var narrator *narrative.Generator
	if gen, err := narrative.NewGenerator(); err != nil {
		log.Printf("Narrative summaries disabled: %v", err)
	} else {
		narrator = gen
	}

	return &Server{
		store:    store,
		engine:   engine,
		cal:      cal,
		port:     port,
		loc:      loc,
		narrator: narrator,
	}
}

func (s *Server) Handler() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("/health", s.handleHealth)
	mux.Handle("/metrics", promhttp.Handler())
	mux.HandleFunc("POST /api/observations", s.timed("observations", s.handleCreateObservation))
	mux.HandleFunc("DELETE /api/observations/{id}", s.timed("observations", s.handleDeleteObservation))
	mux.HandleFunc("GET /api/observations", s.timed("observations", s.handleListObservations))
	mux.HandleFunc("GET /api/locations", s.timed("locations", s.handleListLocations))
	mux.HandleFunc("POST /api/locations", s.timed("locations", s.handleCreateLocation))
	mux.HandleFunc("GET /api/predict", s.timed("predict", s.handlePredict))
	mux.HandleFunc("GET /api/predict/batch", s.timed("predict_batch", s.handlePredictBatch))
	mux.HandleFunc("GET /api/best-times", s.timed("best_times", s.handleBestTimes))
	mux.HandleFunc("GET /api/current", s.timed("current", s.handleCurrent))
	mux.HandleFunc("GET /api/progress", s.timed("progress", s.handleProgress))
	mux.HandleFunc("GET /api/holidays", s.timed("holidays", s.handleHolidays))
	mux.HandleFunc("GET /api/settings", s.timed("settings", s.handleGetSettings))
	mux.HandleFunc("PUT /api/settings", s.timed("settings", s.handlePutSettings))
	mux.HandleFunc("GET /api/export", s.timed("export", s.handleExport))
	mux.HandleFunc("POST /api/import", s.timed("import", s.handleImport))
	return mux
}

// timed wraps a handler with latency instrumentation.
func (s *Server) timed(endpoint string, h http.HandlerFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		h(w, r)
		metrics.APILatency.WithLabelValues(endpoint).Observe(time.Since(start).Seconds())
	}
}

func (s *Server) Run(ctx context.Context) error {
	server := &http.Server{
		Addr:    ":" + s.port,
		Handler: s.Handler(),
	}

	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		server.Shutdown(shutdownCtx)
	}()

	if err := server.ListenAndServe(); err != http.ErrServerClosed {
		return err
	}
	return nil
}
