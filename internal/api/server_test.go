package api

import (
	"bytes"
	"encoding/json"
	"errors"
	"math"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/gin-gonic/gin"

	"github.com/mrcode/bioclear/internal/estimator"
	"github.com/mrcode/bioclear/internal/models"
	"github.com/mrcode/bioclear/internal/study"
)

func init() {
	gin.SetMode(gin.TestMode)
}

func newTestServer(t *testing.T, model estimator.Regressor) *Server {
	t.Helper()

	var est study.HalfLifeEstimator
	if model != nil {
		e, err := estimator.New(model, estimator.ModeDirect, nil)
		if err != nil {
			t.Fatalf("estimator.New failed: %v", err)
		}
		est = e
	}

	svc := study.NewService(est, models.DefaultSettings(), nil)
	return NewServer(Config{Addr: ":0"}, svc, nil, nil)
}

// flatModel predicts 24h for everyone
var flatModel = estimator.RegressorFunc(func(estimator.Features) float64 { return 24 })

func do(t *testing.T, s *Server, method, path string, body interface{}) *httptest.ResponseRecorder {
	t.Helper()

	var reader *bytes.Reader
	if body != nil {
		data, err := json.Marshal(body)
		if err != nil {
			t.Fatal(err)
		}
		reader = bytes.NewReader(data)
	} else {
		reader = bytes.NewReader(nil)
	}

	req := httptest.NewRequest(method, path, reader)
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	rec := httptest.NewRecorder()
	s.Handler().ServeHTTP(rec, req)
	return rec
}

func TestHealth(t *testing.T) {
	tests := []struct {
		name       string
		model      estimator.Regressor
		wantStatus string
		wantAvail  bool
	}{
		{"available", flatModel, "ok", true},
		{"unavailable", nil, "degraded", false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec := do(t, newTestServer(t, tt.model), http.MethodGet, "/healthz", nil)
			if rec.Code != http.StatusOK {
				t.Fatalf("Expected 200, got %d", rec.Code)
			}

			var resp HealthResponse
			if err := json.Unmarshal(rec.Body.Bytes(), &resp); err != nil {
				t.Fatal(err)
			}
			if resp.Status != tt.wantStatus || resp.EstimatorAvailable != tt.wantAvail {
				t.Errorf("Unexpected health %+v", resp)
			}
		})
	}
}

func TestDrugs(t *testing.T) {
	rec := do(t, newTestServer(t, flatModel), http.MethodGet, "/drugs", nil)

	var drugs []models.ReferenceDrug
	if err := json.Unmarshal(rec.Body.Bytes(), &drugs); err != nil {
		t.Fatal(err)
	}
	if len(drugs) != 4 {
		t.Errorf("Expected 4 drugs, got %d", len(drugs))
	}
}

func TestAddPatient_StatusCodes(t *testing.T) {
	negative := estimator.RegressorFunc(func(estimator.Features) float64 { return -1 })

	tests := []struct {
		name  string
		model estimator.Regressor
		body  interface{}
		want  int
	}{
		{"created", flatModel, models.PatientProfile{Name: "A", Drug: "THC", BMI: 22, Age: 25, Dose: 100}, http.StatusCreated},
		{"bad json", flatModel, "not an object", http.StatusBadRequest},
		{"invalid profile", flatModel, models.PatientProfile{Name: "A", BMI: 22, Age: 25, Dose: -5}, http.StatusBadRequest},
		{"unknown drug", flatModel, models.PatientProfile{Name: "A", Drug: "Mystery", BMI: 22, Age: 25, Dose: 100}, http.StatusBadRequest},
		{"unavailable", nil, models.PatientProfile{Name: "A", BMI: 22, Age: 25, Dose: 100}, http.StatusServiceUnavailable},
		{"invalid half-life", negative, models.PatientProfile{Name: "A", BMI: 22, Age: 25, Dose: 100}, http.StatusUnprocessableEntity},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec := do(t, newTestServer(t, tt.model), http.MethodPost, "/patients", tt.body)
			if rec.Code != tt.want {
				t.Errorf("Expected %d, got %d: %s", tt.want, rec.Code, rec.Body.String())
			}
		})
	}
}

func TestPatientsLifecycle(t *testing.T) {
	s := newTestServer(t, flatModel)

	for _, p := range []models.PatientProfile{
		{Name: "A", Drug: "THC", BMI: 22, Age: 25, Dose: 100},
		{BMI: 30, Age: 40},
	} {
		if rec := do(t, s, http.MethodPost, "/patients", p); rec.Code != http.StatusCreated {
			t.Fatalf("AddPatient failed: %d %s", rec.Code, rec.Body.String())
		}
	}

	rec := do(t, s, http.MethodGet, "/patients", nil)
	var records []models.StudyRecord
	if err := json.Unmarshal(rec.Body.Bytes(), &records); err != nil {
		t.Fatal(err)
	}
	if len(records) != 2 || records[1].Name != "Patient 2" {
		t.Fatalf("Unexpected records %+v", records)
	}

	rec = do(t, s, http.MethodGet, "/patients/export.csv", nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("Export failed: %d", rec.Code)
	}
	if !strings.Contains(rec.Header().Get("Content-Disposition"), "bioclear_study_results.csv") {
		t.Errorf("Missing attachment filename: %q", rec.Header().Get("Content-Disposition"))
	}
	lines := strings.Split(strings.TrimSpace(rec.Body.String()), "\n")
	if len(lines) != 3 || lines[0] != "name,drug,bmi,age,half_life_hours,dose,clear_time_hours" {
		t.Errorf("Unexpected CSV:\n%s", rec.Body.String())
	}

	rec = do(t, s, http.MethodDelete, "/patients", nil)
	if !strings.Contains(rec.Body.String(), `"cleared":2`) {
		t.Errorf("Unexpected clear response %s", rec.Body.String())
	}

	rec = do(t, s, http.MethodGet, "/patients", nil)
	if strings.TrimSpace(rec.Body.String()) != "[]" {
		t.Errorf("Expected empty study, got %s", rec.Body.String())
	}
}

func TestCurvesAndChart(t *testing.T) {
	s := newTestServer(t, flatModel)
	do(t, s, http.MethodPost, "/patients", models.PatientProfile{Name: "A", BMI: 22, Age: 25, Dose: 100})

	rec := do(t, s, http.MethodGet, "/curves?horizon=48&samples=3", nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("Curves failed: %d %s", rec.Code, rec.Body.String())
	}
	var curves []models.PatientCurve
	if err := json.Unmarshal(rec.Body.Bytes(), &curves); err != nil {
		t.Fatal(err)
	}
	pts := curves[0].Curve.Points
	if len(pts) != 3 || pts[1].TimeHours != 24 || math.Abs(pts[1].Concentration-50) > 1e-9 {
		t.Errorf("Unexpected curve points %+v", pts)
	}

	for _, bad := range []string{"/curves?horizon=abc", "/curves?samples=1.5", "/curves?horizon=-1", "/curves?samples=1000000000", "/chart.png?samples=35184372088832"} {
		if rec := do(t, s, http.MethodGet, bad, nil); rec.Code != http.StatusBadRequest {
			t.Errorf("%s: expected 400, got %d", bad, rec.Code)
		}
	}

	rec = do(t, s, http.MethodGet, "/chart.png", nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("Chart failed: %d %s", rec.Code, rec.Body.String())
	}
	if rec.Header().Get("Content-Type") != "image/png" {
		t.Errorf("Unexpected content type %q", rec.Header().Get("Content-Type"))
	}
	if !bytes.HasPrefix(rec.Body.Bytes(), []byte("\x89PNG")) {
		t.Error("Body is not a PNG")
	}
}

func TestSummaryEndpoint(t *testing.T) {
	s := newTestServer(t, flatModel)
	do(t, s, http.MethodPost, "/patients", models.PatientProfile{Name: "A", BMI: 22, Age: 25, Dose: 100})

	rec := do(t, s, http.MethodGet, "/summary?threshold=25", nil)
	var sum study.Summary
	if err := json.Unmarshal(rec.Body.Bytes(), &sum); err != nil {
		t.Fatal(err)
	}
	if sum.Count != 1 || sum.Threshold != 25 || math.Abs(sum.ClearTime.Max-48) > 1e-9 {
		t.Errorf("Unexpected summary %+v", sum)
	}

	if rec := do(t, s, http.MethodGet, "/summary?threshold=-1", nil); rec.Code != http.StatusBadRequest {
		t.Errorf("Expected 400 for negative threshold, got %d", rec.Code)
	}
}

func TestDecayEndpoints(t *testing.T) {
	s := newTestServer(t, nil) // Pure decay works without an estimator

	rec := do(t, s, http.MethodPost, "/decay/threshold", ThresholdRequest{Dose: 100, HalfLifeHours: 2, Threshold: 10})
	if rec.Code != http.StatusOK {
		t.Fatalf("Expected 200, got %d", rec.Code)
	}
	var resp ThresholdResponse
	if err := json.Unmarshal(rec.Body.Bytes(), &resp); err != nil {
		t.Fatal(err)
	}
	if math.Abs(resp.Hours-6.643856189774724) > 1e-9 {
		t.Errorf("Expected 6.6439 hours, got %v", resp.Hours)
	}

	tests := []struct {
		name string
		path string
		body interface{}
		want int
	}{
		{"unreachable", "/decay/threshold", ThresholdRequest{Dose: 5, HalfLifeHours: 2, Threshold: 10}, http.StatusConflict},
		{"zero half-life", "/decay/threshold", ThresholdRequest{Dose: 100, HalfLifeHours: 0, Threshold: 10}, http.StatusUnprocessableEntity},
		{"curve ok", "/decay/curve", CurveRequest{Dose: 100, HalfLifeHours: 24, HorizonHours: 100, Samples: 500}, http.StatusOK},
		{"curve no samples", "/decay/curve", CurveRequest{Dose: 100, HalfLifeHours: 24, HorizonHours: 100}, http.StatusBadRequest},
		{"curve bad dose", "/decay/curve", CurveRequest{Dose: -1, HalfLifeHours: 24, HorizonHours: 100, Samples: 5}, http.StatusBadRequest},
		{"curve too many samples", "/decay/curve", CurveRequest{Dose: 100, HalfLifeHours: 24, HorizonHours: 100, Samples: 1000000000}, http.StatusBadRequest},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if rec := do(t, s, http.MethodPost, tt.path, tt.body); rec.Code != tt.want {
				t.Errorf("Expected %d, got %d: %s", tt.want, rec.Code, rec.Body.String())
			}
		})
	}
}

func TestMetricsEndpoint(t *testing.T) {
	s := newTestServer(t, flatModel)
	do(t, s, http.MethodPost, "/patients", models.PatientProfile{Name: "A", BMI: 22, Age: 25, Dose: 100})

	rec := do(t, s, http.MethodGet, "/metrics", nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("Expected 200, got %d", rec.Code)
	}
	if !strings.Contains(rec.Body.String(), "bioclear_patients_added_total") {
		t.Error("Expected patients counter in metrics output")
	}
}

func TestGetPatient(t *testing.T) {
	s := newTestServer(t, flatModel)
	do(t, s, http.MethodPost, "/patients", models.PatientProfile{Name: "A", BMI: 22, Age: 25, Dose: 100})

	rec := do(t, s, http.MethodGet, "/patients/0", nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("Expected 200, got %d", rec.Code)
	}
	var r models.StudyRecord
	if err := json.Unmarshal(rec.Body.Bytes(), &r); err != nil {
		t.Fatal(err)
	}
	if r.Name != "A" || r.HalfLifeHours != 24 {
		t.Errorf("Unexpected record %+v", r)
	}

	if rec := do(t, s, http.MethodGet, "/patients/1", nil); rec.Code != http.StatusNotFound {
		t.Errorf("Expected 404 past the end, got %d", rec.Code)
	}
	if rec := do(t, s, http.MethodGet, "/patients/x", nil); rec.Code != http.StatusBadRequest {
		t.Errorf("Expected 400 for a bad index, got %d", rec.Code)
	}
}

type memorySettings struct {
	saved *models.Settings
}

func (m *memorySettings) GetSettings() *models.Settings       { return m.saved.Clone() }
func (m *memorySettings) EffectiveSettings() *models.Settings { return m.saved.Clone() }
func (m *memorySettings) SaveSettings(s *models.Settings) error {
	if err := s.Validate(); err != nil {
		return err
	}
	m.saved.Update(s)
	return nil
}

type recordingAlerts struct {
	tests  int
	resets []string
	err    error
}

func (r *recordingAlerts) SendTestNotification() error {
	r.tests++
	return r.err
}

func (r *recordingAlerts) ResetAlerts(alertType string) {
	r.resets = append(r.resets, alertType)
}

func TestSettingsEndpoints(t *testing.T) {
	s := newTestServer(t, flatModel)
	if rec := do(t, s, http.MethodGet, "/settings", nil); rec.Code != http.StatusNotFound {
		t.Errorf("Expected 404 without a store, got %d", rec.Code)
	}

	store := &memorySettings{saved: models.DefaultSettings()}
	s.SetSettingsStore(store)

	rec := do(t, s, http.MethodPut, "/settings", map[string]interface{}{"horizonHours": 48})
	if rec.Code != http.StatusOK {
		t.Fatalf("PUT /settings = %d: %s", rec.Code, rec.Body.String())
	}
	var resp SettingsResponse
	if err := json.Unmarshal(rec.Body.Bytes(), &resp); err != nil {
		t.Fatal(err)
	}
	if resp.Saved.HorizonHours != 48 || resp.Saved.DetectionThreshold != 10 {
		t.Errorf("Unexpected saved settings %+v", resp.Saved)
	}

	tests := []struct {
		name string
		body string
	}{
		{"malformed", `{"horizonHours":`},
		{"invalid", `{"detectionThreshold": -1}`},
		{"too many samples", `{"sampleCount": 100001}`},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := httptest.NewRequest(http.MethodPut, "/settings", strings.NewReader(tt.body))
			rec := httptest.NewRecorder()
			s.Handler().ServeHTTP(rec, req)
			if rec.Code != http.StatusBadRequest {
				t.Errorf("Expected 400, got %d", rec.Code)
			}
		})
	}
	if store.saved.HorizonHours != 48 {
		t.Errorf("Rejected updates should not change settings, horizon = %v", store.saved.HorizonHours)
	}
}

func TestNotificationEndpoints(t *testing.T) {
	s := newTestServer(t, flatModel)
	alerts := &recordingAlerts{}
	s.SetAlerts(alerts)

	if rec := do(t, s, http.MethodPost, "/notifications/test", nil); rec.Code != http.StatusOK {
		t.Errorf("Expected 200, got %d", rec.Code)
	}
	alerts.err = errors.New("no notification daemon")
	if rec := do(t, s, http.MethodPost, "/notifications/test", nil); rec.Code != http.StatusBadGateway {
		t.Errorf("Expected 502 on send failure, got %d", rec.Code)
	}
	if alerts.tests != 2 {
		t.Errorf("Expected 2 test sends, got %d", alerts.tests)
	}

	do(t, s, http.MethodDelete, "/notifications/alerts?type=prolonged_clearance", nil)
	do(t, s, http.MethodDelete, "/notifications/alerts", nil)
	if len(alerts.resets) != 2 || alerts.resets[0] != "prolonged_clearance" || alerts.resets[1] != "" {
		t.Errorf("Unexpected resets %v", alerts.resets)
	}
}
