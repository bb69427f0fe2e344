package api_test

import (
	"bytes"
	"database/sql"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"stallcast/internal/api"
	"stallcast/internal/calendar"
	"stallcast/internal/export"
	"stallcast/internal/models"
	"stallcast/internal/predict"
	"stallcast/internal/store"

	_ "modernc.org/sqlite"
)

func setupTestServer(t *testing.T) (*api.Server, *store.Store) {
	t.Helper()
	db, err := sql.Open("sqlite", ":memory:")
	if err != nil {
		t.Fatal(err)
	}
	t.Cleanup(func() { db.Close() })

	loc := time.UTC
	s := store.New(db, loc, store.DefaultCompactionPolicy())
	if err := s.Migrate(); err != nil {
		t.Fatal(err)
	}

	cal := calendar.Default()
	engine := predict.New(cal)
	return api.NewServer(s, engine, cal, "8080", loc), s
}

func seedLocation(t *testing.T, s *store.Store) models.Location {
	t.Helper()
	loc := models.Location{
		ID:          "office-3f",
		Name:        "3rd Floor",
		TotalStalls: 4,
		CreatedAt:   time.Now().UTC(),
		IsDefault:   true,
	}
	if err := s.UpsertLocation(loc); err != nil {
		t.Fatal(err)
	}
	return loc
}

func doJSON(t *testing.T, srv *api.Server, method, path string, body any) *httptest.ResponseRecorder {
	t.Helper()
	var buf bytes.Buffer
	if body != nil {
		if err := json.NewEncoder(&buf).Encode(body); err != nil {
			t.Fatal(err)
		}
	}
	req := httptest.NewRequest(method, path, &buf)
	w := httptest.NewRecorder()
	srv.Handler().ServeHTTP(w, req)
	return w
}

func TestHealthEndpoint(t *testing.T) {
	t.Parallel()
	srv, _ := setupTestServer(t)

	w := doJSON(t, srv, "GET", "/health", nil)
	if w.Code != 200 {
		t.Fatalf("expected 200, got %d", w.Code)
	}
	if !strings.Contains(w.Body.String(), `"status"`) {
		t.Error("expected status field in JSON response")
	}
}

func TestMetricsEndpoint(t *testing.T) {
	t.Parallel()
	srv, _ := setupTestServer(t)

	w := doJSON(t, srv, "GET", "/metrics", nil)
	if w.Code != 200 {
		t.Fatalf("expected 200, got %d", w.Code)
	}
}

func TestCreateObservation(t *testing.T) {
	t.Parallel()
	srv, s := setupTestServer(t)
	seedLocation(t, s)

	w := doJSON(t, srv, "POST", "/api/observations", map[string]any{
		"locationId": "office-3f",
		"result":     "available",
	})
	if w.Code != http.StatusCreated {
		t.Fatalf("expected 201, got %d: %s", w.Code, w.Body.String())
	}

	var obs models.Observation
	if err := json.NewDecoder(w.Body).Decode(&obs); err != nil {
		t.Fatal(err)
	}
	if obs.ID == "" {
		t.Error("expected server-assigned id")
	}
	if obs.Timestamp.IsZero() {
		t.Error("expected server-assigned timestamp")
	}

	list := doJSON(t, srv, "GET", "/api/observations?location=office-3f", nil)
	if list.Code != 200 {
		t.Fatalf("expected 200, got %d", list.Code)
	}
	var got []models.Observation
	if err := json.NewDecoder(list.Body).Decode(&got); err != nil {
		t.Fatal(err)
	}
	if len(got) != 1 || got[0].ID != obs.ID {
		t.Fatalf("expected the created observation back, got %+v", got)
	}
}

func TestCreateObservationDefaultsLocation(t *testing.T) {
	t.Parallel()
	srv, s := setupTestServer(t)
	seedLocation(t, s)

	w := doJSON(t, srv, "POST", "/api/observations", map[string]any{
		"result": "occupied",
	})
	if w.Code != http.StatusCreated {
		t.Fatalf("expected 201, got %d: %s", w.Code, w.Body.String())
	}
	var obs models.Observation
	if err := json.NewDecoder(w.Body).Decode(&obs); err != nil {
		t.Fatal(err)
	}
	if obs.LocationID != "office-3f" {
		t.Errorf("expected default location, got %q", obs.LocationID)
	}
}

func TestCreateObservationRejectsBadResult(t *testing.T) {
	t.Parallel()
	srv, s := setupTestServer(t)
	seedLocation(t, s)

	w := doJSON(t, srv, "POST", "/api/observations", map[string]any{
		"locationId": "office-3f",
		"result":     "crowded",
	})
	if w.Code != http.StatusBadRequest {
		t.Fatalf("expected 400, got %d", w.Code)
	}
}

func TestDeleteObservation(t *testing.T) {
	t.Parallel()
	srv, s := setupTestServer(t)
	seedLocation(t, s)

	w := doJSON(t, srv, "POST", "/api/observations", map[string]any{
		"locationId": "office-3f",
		"result":     "available",
	})
	var obs models.Observation
	if err := json.NewDecoder(w.Body).Decode(&obs); err != nil {
		t.Fatal(err)
	}

	del := doJSON(t, srv, "DELETE", "/api/observations/"+obs.ID, nil)
	if del.Code != http.StatusNoContent {
		t.Fatalf("expected 204, got %d", del.Code)
	}

	again := doJSON(t, srv, "DELETE", "/api/observations/"+obs.ID, nil)
	if again.Code != http.StatusNotFound {
		t.Fatalf("expected 404 for missing observation, got %d", again.Code)
	}
}

func TestCreateLocationRequiresName(t *testing.T) {
	t.Parallel()
	srv, _ := setupTestServer(t)

	w := doJSON(t, srv, "POST", "/api/locations", map[string]any{"totalStalls": 2})
	if w.Code != http.StatusBadRequest {
		t.Fatalf("expected 400, got %d", w.Code)
	}
}

func TestPredictNoHistoryIsNeutral(t *testing.T) {
	t.Parallel()
	srv, s := setupTestServer(t)
	seedLocation(t, s)

	w := doJSON(t, srv, "GET", "/api/predict", nil)
	if w.Code != 200 {
		t.Fatalf("expected 200, got %d: %s", w.Code, w.Body.String())
	}
	var pred predict.Prediction
	if err := json.NewDecoder(w.Body).Decode(&pred); err != nil {
		t.Fatal(err)
	}
	if pred.Source != predict.SourceNeutral {
		t.Errorf("expected neutral prediction with no history, got %q", pred.Source)
	}
}

func TestPredictUnknownLocation(t *testing.T) {
	t.Parallel()
	srv, s := setupTestServer(t)
	seedLocation(t, s)

	w := doJSON(t, srv, "GET", "/api/predict?location=nope", nil)
	if w.Code != http.StatusNotFound {
		t.Fatalf("expected 404, got %d", w.Code)
	}
}

func TestPredictNoDefaultLocation(t *testing.T) {
	t.Parallel()
	srv, _ := setupTestServer(t)

	w := doJSON(t, srv, "GET", "/api/predict", nil)
	if w.Code != http.StatusBadRequest {
		t.Fatalf("expected 400, got %d", w.Code)
	}
}

func TestPredictRejectsBadTime(t *testing.T) {
	t.Parallel()
	srv, s := setupTestServer(t)
	seedLocation(t, s)

	w := doJSON(t, srv, "GET", "/api/predict?time=tomorrowish", nil)
	if w.Code != http.StatusBadRequest {
		t.Fatalf("expected 400, got %d", w.Code)
	}
}

func TestPredictBatchLength(t *testing.T) {
	t.Parallel()
	srv, s := setupTestServer(t)
	seedLocation(t, s)

	w := doJSON(t, srv, "GET", "/api/predict/batch?hours=3", nil)
	if w.Code != 200 {
		t.Fatalf("expected 200, got %d", w.Code)
	}
	var preds []predict.Prediction
	if err := json.NewDecoder(w.Body).Decode(&preds); err != nil {
		t.Fatal(err)
	}
	if len(preds) != 6 {
		t.Fatalf("expected 6 slots for 3 hours, got %d", len(preds))
	}
}

func TestBestTimes(t *testing.T) {
	t.Parallel()
	srv, s := setupTestServer(t)
	seedLocation(t, s)

	w := doJSON(t, srv, "GET", "/api/best-times?limit=3", nil)
	if w.Code != 200 {
		t.Fatalf("expected 200, got %d", w.Code)
	}
	var resp struct {
		Slots []predict.BestSlot `json:"slots"`
	}
	if err := json.NewDecoder(w.Body).Decode(&resp); err != nil {
		t.Fatal(err)
	}
	if len(resp.Slots) == 0 || len(resp.Slots) > 3 {
		t.Fatalf("expected between 1 and 3 slots, got %d", len(resp.Slots))
	}
}

func TestProgressEndpoint(t *testing.T) {
	t.Parallel()
	srv, _ := setupTestServer(t)

	w := doJSON(t, srv, "GET", "/api/progress", nil)
	if w.Code != 200 {
		t.Fatalf("expected 200, got %d", w.Code)
	}
	var prog predict.CollectionProgress
	if err := json.NewDecoder(w.Body).Decode(&prog); err != nil {
		t.Fatal(err)
	}
	if prog.TargetRecords != 50 {
		t.Errorf("target records = %d, want 50", prog.TargetRecords)
	}
}

func TestSettingsRoundTrip(t *testing.T) {
	t.Parallel()
	srv, _ := setupTestServer(t)

	put := doJSON(t, srv, "PUT", "/api/settings", models.Settings{
		Theme:             "dark",
		Notifications:     false,
		DefaultTimeOffset: 4,
	})
	if put.Code != 200 {
		t.Fatalf("expected 200, got %d", put.Code)
	}

	get := doJSON(t, srv, "GET", "/api/settings", nil)
	var settings models.Settings
	if err := json.NewDecoder(get.Body).Decode(&settings); err != nil {
		t.Fatal(err)
	}
	if settings.Theme != "dark" || settings.DefaultTimeOffset != 4 {
		t.Errorf("settings did not round-trip: %+v", settings)
	}
}

func TestHolidaysEndpoint(t *testing.T) {
	t.Parallel()
	srv, _ := setupTestServer(t)

	w := doJSON(t, srv, "GET", "/api/holidays?count=2", nil)
	if w.Code != 200 {
		t.Fatalf("expected 200, got %d", w.Code)
	}
}

func TestExportImportRoundTrip(t *testing.T) {
	t.Parallel()
	srv, s := setupTestServer(t)
	seedLocation(t, s)

	for _, result := range []string{"available", "occupied", "full"} {
		w := doJSON(t, srv, "POST", "/api/observations", map[string]any{
			"locationId": "office-3f",
			"result":     result,
		})
		if w.Code != http.StatusCreated {
			t.Fatalf("seed observation failed: %d", w.Code)
		}
	}

	exp := doJSON(t, srv, "GET", "/api/export", nil)
	if exp.Code != 200 {
		t.Fatalf("export failed: %d", exp.Code)
	}

	srv2, _ := setupTestServer(t)
	req := httptest.NewRequest("POST", "/api/import", bytes.NewReader(exp.Body.Bytes()))
	w := httptest.NewRecorder()
	srv2.Handler().ServeHTTP(w, req)
	if w.Code != 200 {
		t.Fatalf("import failed: %d: %s", w.Code, w.Body.String())
	}

	var result struct {
		Locations int `json:"locationsImported"`
		Records   int `json:"recordsImported"`
		Skipped   int `json:"recordsSkipped"`
	}
	if err := json.NewDecoder(w.Body).Decode(&result); err != nil {
		t.Fatal(err)
	}
	if result.Locations != 1 || result.Records != 3 || result.Skipped != 0 {
		t.Fatalf("unexpected import result: %+v", result)
	}
}

func TestImportSkipsInvalidRecordsOnly(t *testing.T) {
	t.Parallel()
	srv, s := setupTestServer(t)
	loc := seedLocation(t, s)

	now := time.Now().UTC()
	bundle, err := export.New(now, []models.Location{loc}, []models.Observation{
		{ID: "good", Timestamp: now, LocationID: loc.ID, Result: models.ResultAvailable},
		{ID: "bad", Timestamp: now, LocationID: loc.ID, Result: "crowded"},
	}, models.DefaultSettings())
	if err != nil {
		t.Fatal(err)
	}

	w := doJSON(t, srv, "POST", "/api/import", bundle)
	if w.Code != 200 {
		t.Fatalf("expected 200, got %d: %s", w.Code, w.Body.String())
	}

	var result struct {
		Records int `json:"recordsImported"`
		Skipped int `json:"recordsSkipped"`
	}
	if err := json.NewDecoder(w.Body).Decode(&result); err != nil {
		t.Fatal(err)
	}
	if result.Records != 1 || result.Skipped != 1 {
		t.Fatalf("expected 1 imported and 1 skipped, got %+v", result)
	}
}

func TestImportAbortsOnStoreFailure(t *testing.T) {
	t.Parallel()
	db, err := sql.Open("sqlite", ":memory:")
	if err != nil {
		t.Fatal(err)
	}
	s := store.New(db, time.UTC, store.DefaultCompactionPolicy())
	if err := s.Migrate(); err != nil {
		t.Fatal(err)
	}
	cal := calendar.Default()
	srv := api.NewServer(s, predict.New(cal), cal, "8080", time.UTC)

	now := time.Now().UTC()
	bundle, err := export.New(now, []models.Location{{ID: "l1", Name: "L1"}}, []models.Observation{
		{ID: "good", Timestamp: now, LocationID: "l1", Result: models.ResultAvailable},
	}, models.DefaultSettings())
	if err != nil {
		t.Fatal(err)
	}

	db.Close()

	w := doJSON(t, srv, "POST", "/api/import", bundle)
	if w.Code != http.StatusInternalServerError {
		t.Fatalf("expected 500 when the store is down, got %d", w.Code)
	}
}

func TestImportRejectsTamperedBundle(t *testing.T) {
	t.Parallel()
	srv, s := setupTestServer(t)
	seedLocation(t, s)

	exp := doJSON(t, srv, "GET", "/api/export", nil)
	tampered := bytes.Replace(exp.Body.Bytes(), []byte("3rd Floor"), []byte("4th Floor"), 1)

	req := httptest.NewRequest("POST", "/api/import", bytes.NewReader(tampered))
	w := httptest.NewRecorder()
	srv.Handler().ServeHTTP(w, req)
	if w.Code != http.StatusBadRequest {
		t.Fatalf("expected 400 for tampered bundle, got %d", w.Code)
	}
}
