package api

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log"
	"net/http"
	"strconv"
	"time"

	"github.com/google/uuid"

	"stallcast/internal/export"
	"stallcast/internal/metrics"
	"stallcast/internal/models"
	"stallcast/internal/predict"
	"stallcast/internal/store"
)

const (
	defaultBatchHours  = 4
	defaultBestResults = 5
)

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, map[string]any{
		"status": "ok",
		"time":   time.Now().In(s.loc),
	})
}

func (s *Server) handleCreateObservation(w http.ResponseWriter, r *http.Request) {
	var obs models.Observation
	if err := json.NewDecoder(r.Body).Decode(&obs); err != nil {
		http.Error(w, fmt.Sprintf("invalid request body: %v", err), http.StatusBadRequest)
		return
	}

	if obs.ID == "" {
		obs.ID = uuid.NewString()
	}
	if obs.Timestamp.IsZero() {
		obs.Timestamp = time.Now().In(s.loc)
	}
	obs.CreatedAt = time.Now().UTC()

	if obs.LocationID == "" {
		def, err := s.store.GetDefaultLocation()
		if err != nil {
			http.Error(w, err.Error(), http.StatusInternalServerError)
			return
		}
		if def == nil {
			http.Error(w, "no location specified and no default location configured", http.StatusBadRequest)
			return
		}
		obs.LocationID = def.ID
	}

	if err := s.store.AppendObservation(obs); err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}
	if err := s.store.LastCompactionError(); err != nil {
		log.Printf("api: background compaction failed: %v", err)
	}

	metrics.ObservationsIngested.WithLabelValues(obs.LocationID, string(obs.Result)).Inc()

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusCreated)
	json.NewEncoder(w).Encode(obs)
}

func (s *Server) handleDeleteObservation(w http.ResponseWriter, r *http.Request) {
	id := r.PathValue("id")
	if err := s.store.DeleteObservation(id); err != nil {
		http.Error(w, err.Error(), http.StatusNotFound)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (s *Server) handleListObservations(w http.ResponseWriter, r *http.Request) {
	var (
		observations []models.Observation
		err          error
	)
	if locationID := r.URL.Query().Get("location"); locationID != "" {
		observations, err = s.store.GetObservationsByLocation(locationID)
	} else {
		observations, err = s.store.GetAllObservations()
	}
	if err != nil {
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}
	writeJSON(w, observations)
}

func (s *Server) handleListLocations(w http.ResponseWriter, r *http.Request) {
	locations, err := s.store.GetLocations()
	if err != nil {
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}
	writeJSON(w, locations)
}

func (s *Server) handleCreateLocation(w http.ResponseWriter, r *http.Request) {
	var loc models.Location
	if err := json.NewDecoder(r.Body).Decode(&loc); err != nil {
		http.Error(w, fmt.Sprintf("invalid request body: %v", err), http.StatusBadRequest)
		return
	}
	if loc.Name == "" {
		http.Error(w, "location name is required", http.StatusBadRequest)
		return
	}
	if loc.ID == "" {
		loc.ID = uuid.NewString()
	}
	loc.CreatedAt = time.Now().UTC()

	if err := s.store.UpsertLocation(loc); err != nil {
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusCreated)
	json.NewEncoder(w).Encode(loc)
}

func (s *Server) handlePredict(w http.ResponseWriter, r *http.Request) {
	loc, ok := s.resolveLocation(w, r)
	if !ok {
		return
	}

	target := time.Now().In(s.loc)
	if raw := r.URL.Query().Get("time"); raw != "" {
		t, err := time.Parse(time.RFC3339, raw)
		if err != nil {
			http.Error(w, fmt.Sprintf("invalid time %q: %v", raw, err), http.StatusBadRequest)
			return
		}
		target = t.In(s.loc)
	}

	history, err := s.store.GetObservationsByLocation(loc.ID)
	if err != nil {
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}

	pred := s.engine.Predict(target, loc.ID, history)
	metrics.PredictionsServed.WithLabelValues(string(pred.Source)).Inc()
	writeJSON(w, pred)
}

func (s *Server) handlePredictBatch(w http.ResponseWriter, r *http.Request) {
	loc, ok := s.resolveLocation(w, r)
	if !ok {
		return
	}

	hours := defaultBatchHours
	if raw := r.URL.Query().Get("hours"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil || n < 1 || n > 24 {
			http.Error(w, fmt.Sprintf("invalid hours %q", raw), http.StatusBadRequest)
			return
		}
		hours = n
	}

	history, err := s.store.GetObservationsByLocation(loc.ID)
	if err != nil {
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}

	predictions := s.engine.PredictBatch(loc.ID, hours, history)
	for _, p := range predictions {
		metrics.PredictionsServed.WithLabelValues(string(p.Source)).Inc()
	}
	writeJSON(w, predictions)
}

// BestTimesResponse is the ranked recommendation list, optionally with a
// generated prose summary when narrative support is configured.
type BestTimesResponse struct {
	Slots     []predict.BestSlot `json:"slots"`
	Narrative string             `json:"narrative,omitempty"`
}

func (s *Server) handleBestTimes(w http.ResponseWriter, r *http.Request) {
	loc, ok := s.resolveLocation(w, r)
	if !ok {
		return
	}

	limit := defaultBestResults
	if raw := r.URL.Query().Get("limit"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil || n < 1 || n > 20 {
			http.Error(w, fmt.Sprintf("invalid limit %q", raw), http.StatusBadRequest)
			return
		}
		limit = n
	}

	history, err := s.store.GetObservationsByLocation(loc.ID)
	if err != nil {
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}

	resp := BestTimesResponse{
		Slots: s.engine.BestTimeSlots(history, loc.TotalStalls, limit),
	}

	if s.narrator != nil && r.URL.Query().Get("narrative") == "true" && len(resp.Slots) > 0 {
		summary, err := s.narrator.Summarize(r.Context(), resp.Slots)
		if err != nil {
			log.Printf("api: narrative summary failed: %v", err)
		} else {
			resp.Narrative = summary
		}
	}

	writeJSON(w, resp)
}

func (s *Server) handleCurrent(w http.ResponseWriter, r *http.Request) {
	loc, ok := s.resolveLocation(w, r)
	if !ok {
		return
	}

	history, err := s.store.GetObservationsByLocation(loc.ID)
	if err != nil {
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}

	writeJSON(w, s.engine.CurrentPrediction(history, loc.TotalStalls))
}

func (s *Server) handleProgress(w http.ResponseWriter, r *http.Request) {
	count, err := s.store.CountObservations()
	if err != nil {
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}
	writeJSON(w, predict.Progress(count))
}

func (s *Server) handleHolidays(w http.ResponseWriter, r *http.Request) {
	count := 5
	if raw := r.URL.Query().Get("count"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil || n < 1 || n > 50 {
			http.Error(w, fmt.Sprintf("invalid count %q", raw), http.StatusBadRequest)
			return
		}
		count = n
	}
	writeJSON(w, s.cal.UpcomingHolidays(time.Now().In(s.loc), count))
}

func (s *Server) handleGetSettings(w http.ResponseWriter, r *http.Request) {
	settings, err := s.store.GetSettings()
	if err != nil {
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}
	writeJSON(w, settings)
}

func (s *Server) handlePutSettings(w http.ResponseWriter, r *http.Request) {
	var settings models.Settings
	if err := json.NewDecoder(r.Body).Decode(&settings); err != nil {
		http.Error(w, fmt.Sprintf("invalid request body: %v", err), http.StatusBadRequest)
		return
	}
	if err := s.store.SaveSettings(settings); err != nil {
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}
	writeJSON(w, settings)
}

func (s *Server) handleExport(w http.ResponseWriter, r *http.Request) {
	locations, err := s.store.GetLocations()
	if err != nil {
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}
	records, err := s.store.GetAllObservations()
	if err != nil {
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}
	settings, err := s.store.GetSettings()
	if err != nil {
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}

	bundle, err := export.New(time.Now(), locations, records, settings)
	if err != nil {
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	w.Header().Set("Content-Disposition", `attachment; filename="stallcast-export.json"`)
	json.NewEncoder(w).Encode(bundle)
}

// ImportResult reports what an import actually applied.
type ImportResult struct {
	Locations int `json:"locationsImported"`
	Records   int `json:"recordsImported"`
	Skipped   int `json:"recordsSkipped"`
}

func (s *Server) handleImport(w http.ResponseWriter, r *http.Request) {
	raw, err := io.ReadAll(http.MaxBytesReader(w, r.Body, 32<<20))
	if err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}

	bundle, err := export.Decode(raw)
	if err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}

	var result ImportResult
	for _, loc := range bundle.Locations {
		if err := s.store.UpsertLocation(loc); err != nil {
			http.Error(w, err.Error(), http.StatusInternalServerError)
			return
		}
		result.Locations++
	}
	for _, obs := range bundle.Records {
		existing, err := s.store.GetObservation(obs.ID)
		if err != nil {
			http.Error(w, err.Error(), http.StatusInternalServerError)
			return
		}
		if existing != nil {
			result.Skipped++
			continue
		}
		if err := s.store.AppendObservation(obs); err != nil {
			if errors.Is(err, store.ErrInvalidObservation) {
				result.Skipped++
				continue
			}
			http.Error(w, err.Error(), http.StatusInternalServerError)
			return
		}
		result.Records++
	}
	if err := s.store.SaveSettings(bundle.Settings); err != nil {
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}

	log.Printf("api: imported %d locations, %d records (%d skipped)",
		result.Locations, result.Records, result.Skipped)
	writeJSON(w, result)
}

// resolveLocation picks the location from the query string, falling back to
// the configured default. Writes the error response itself when it fails.
func (s *Server) resolveLocation(w http.ResponseWriter, r *http.Request) (*models.Location, bool) {
	if id := r.URL.Query().Get("location"); id != "" {
		loc, err := s.store.GetLocation(id)
		if err != nil {
			http.Error(w, err.Error(), http.StatusInternalServerError)
			return nil, false
		}
		if loc == nil {
			http.Error(w, fmt.Sprintf("unknown location %q", id), http.StatusNotFound)
			return nil, false
		}
		return loc, true
	}

	loc, err := s.store.GetDefaultLocation()
	if err != nil {
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return nil, false
	}
	if loc == nil {
		http.Error(w, "no default location configured", http.StatusBadRequest)
		return nil, false
	}
	return loc, true
}

func writeJSON(w http.ResponseWriter, v any) {
	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(v)
}
