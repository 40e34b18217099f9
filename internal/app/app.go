// Package app provides the main application logic
package app

import (
	"bytes"
	"context"
	"fmt"
	"net/http"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/mrcode/bioclear/internal/api"
	"github.com/mrcode/bioclear/internal/chart"
	"github.com/mrcode/bioclear/internal/config"
	"github.com/mrcode/bioclear/internal/estimator"
	"github.com/mrcode/bioclear/internal/logger"
	"github.com/mrcode/bioclear/internal/metrics"
	"github.com/mrcode/bioclear/internal/models"
	"github.com/mrcode/bioclear/internal/notifications"
	"github.com/mrcode/bioclear/internal/storage"
	"github.com/mrcode/bioclear/internal/study"
)

const (
	// ShutdownTimeout bounds how long in-flight requests may run after cancel
	ShutdownTimeout = 10 * time.Second

	// ChartFilename is the name of the chart written next to the CSV export
	ChartFilename = "bioclear_study_chart.png"
)

// App wires configuration, the estimator, the study and the HTTP server
type App struct {
	cfg           *config.Config
	log           *logger.Logger
	saved         *models.Settings // File layer, the only one persisted
	settings      *models.Settings // saved plus BIOCLEAR_* overrides
	drugs         *models.DrugTable
	svc           *study.Service
	notifyManager *notifications.Manager
	uploader      *storage.Uploader
	server        *api.Server

	mu        sync.RWMutex
	isRunning bool
}

// New builds the application. A missing or broken model artifact does not
// fail construction: the study service stays unavailable for the process
// lifetime and the failure is logged and notified.
func New(ctx context.Context, cfg *config.Config, log *logger.Logger) (*App, error) {
	if log == nil {
		log = logger.NewNop()
	}
	log = log.With("component", "app")

	saved := models.DefaultSettings()
	if err := loadSettings(saved, cfg.SettingsPath); err != nil {
		// Log error but continue with defaults
		log.Warn("Error loading settings", "error", err)
		saved = models.DefaultSettings()
	}
	settings, err := effectiveSettings(saved)
	if err != nil {
		return nil, err
	}

	mode, err := estimator.ParseMode(settings.EstimationMode)
	if err != nil {
		return nil, err
	}

	drugs := models.DefaultDrugTable()
	if cfg.DrugTablePath != "" {
		if drugs, err = models.LoadDrugTable(cfg.DrugTablePath); err != nil {
			return nil, fmt.Errorf("loading drug table: %w", err)
		}
	}

	a := &App{
		cfg:           cfg,
		log:           log,
		saved:         saved,
		settings:      settings,
		drugs:         drugs,
		notifyManager: notifications.NewManager(settings, log),
	}

	// Keep the interface nil when loading fails so the service reports unavailable
	var est study.HalfLifeEstimator
	if e, err := estimator.Open(cfg.ModelPath, mode, drugs); err != nil {
		log.Error("Half-life estimator unavailable", "path", cfg.ModelPath, "error", err)
		a.notifyManager.EstimatorUnavailable(err)
	} else {
		log.Info("Loaded half-life model", "path", cfg.ModelPath, "kind", e.Artifact().Kind, "mode", mode)
		est = e
	}

	a.svc = study.NewService(est, settings, log)
	a.svc.SetNotifier(a.notifyManager)

	if cfg.S3Enabled() {
		if a.uploader, err = storage.NewUploader(ctx, cfg); err != nil {
			return nil, fmt.Errorf("configuring export storage: %w", err)
		}
	}

	a.server = api.NewServer(api.Config{Addr: ":" + cfg.HTTPPort}, a.svc, drugs, log)
	a.server.SetSettingsStore(a)
	a.server.SetAlerts(a)

	return a, nil
}

// effectiveSettings layers the environment over a copy of saved
func effectiveSettings(saved *models.Settings) (*models.Settings, error) {
	s := saved.Clone()
	if err := s.ApplyEnv(); err != nil {
		return nil, fmt.Errorf("applying settings overrides: %w", err)
	}
	if err := s.Validate(); err != nil {
		return nil, fmt.Errorf("invalid settings: %w", err)
	}
	return s, nil
}

func loadSettings(s *models.Settings, path string) error {
	if path != "" {
		return s.LoadFrom(path)
	}
	return s.Load()
}

func saveSettings(s *models.Settings, path string) error {
	if path != "" {
		return s.SaveTo(path)
	}
	return s.Save()
}

// Run serves HTTP until ctx is cancelled, then shuts down gracefully
func (a *App) Run(ctx context.Context) error {
	a.mu.Lock()
	if a.isRunning {
		a.mu.Unlock()
		return fmt.Errorf("already running")
	}
	a.isRunning = true
	a.mu.Unlock()

	errCh := make(chan error, 1)
	go func() {
		errCh <- a.server.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		a.markStopped()
		return err
	case <-ctx.Done():
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), ShutdownTimeout)
	defer cancel()
	return a.Shutdown(shutdownCtx)
}

func (a *App) markStopped() {
	a.mu.Lock()
	a.isRunning = false
	a.mu.Unlock()
}

// Shutdown is called when the app is closing
func (a *App) Shutdown(ctx context.Context) error {
	a.log.Info("Shutting down")
	a.markStopped()

	var shutdownErr error
	if err := a.server.Shutdown(ctx); err != nil {
		shutdownErr = fmt.Errorf("stopping server: %w", err)
	}

	// Save settings
	if err := saveSettings(a.saved, a.cfg.SettingsPath); err != nil {
		a.log.Error("Error saving settings", "error", err)
	}

	return shutdownErr
}

// Service returns the study service
func (a *App) Service() *study.Service {
	return a.svc
}

// Handler returns the HTTP handler
func (a *App) Handler() http.Handler {
	return a.server.Handler()
}

// Drugs returns the reference drug table in use
func (a *App) Drugs() *models.DrugTable {
	return a.drugs
}

// GetSettings returns the saved settings, without environment overrides
func (a *App) GetSettings() *models.Settings {
	return a.saved.Clone()
}

// EffectiveSettings returns the settings in use, environment overrides included
func (a *App) EffectiveSettings() *models.Settings {
	return a.settings.Clone()
}

// SaveSettings validates and persists the provided settings. Environment
// overrides stay in force for this process but are never written. A changed
// estimation mode applies from the next start.
func (a *App) SaveSettings(settings *models.Settings) error {
	if err := settings.Validate(); err != nil {
		return err
	}
	effective, err := effectiveSettings(settings)
	if err != nil {
		return err
	}

	a.mu.Lock()
	defer a.mu.Unlock()

	if err := saveSettings(settings, a.cfg.SettingsPath); err != nil {
		return fmt.Errorf("saving settings: %w", err)
	}
	a.saved.Update(settings)

	// The service and notification manager share this pointer
	a.settings.Update(effective)
	if mode := a.svc.Mode(); mode != "" && string(mode) != effective.EstimationMode {
		a.log.Info("Estimation mode change applies after restart", "current", mode, "saved", effective.EstimationMode)
	}
	return nil
}

// SendTestNotification sends a test notification
func (a *App) SendTestNotification() error {
	return a.notifyManager.SendTestNotification()
}

// ResetAlerts forgets when alerts were last sent so they may fire again.
// An empty alertType resets every type.
func (a *App) ResetAlerts(alertType string) {
	a.notifyManager.ClearAlertState(alertType)
}

// ExportResult lists the files written by Export
type ExportResult struct {
	CSVPath string
	PNGPath string
	CSVLink string // Empty unless uploads are configured
	PNGLink string
}

// Export writes the study CSV and chart into dir and, when configured,
// uploads both to object storage
func (a *App) Export(ctx context.Context, dir string) (*ExportResult, error) {
	var csvBuf bytes.Buffer
	if err := a.svc.ExportCSV(&csvBuf, 0); err != nil {
		return nil, err
	}

	curves, err := a.svc.Curves(0, 0)
	if err != nil {
		return nil, err
	}
	settings := a.svc.Settings()
	var pngBuf bytes.Buffer
	if err := chart.RenderPNG(&pngBuf, curves, settings.DetectionThreshold, chart.OptionsFromSettings(settings)); err != nil {
		return nil, fmt.Errorf("rendering chart: %w", err)
	}

	if err := os.MkdirAll(dir, 0750); err != nil {
		return nil, err
	}

	res := &ExportResult{
		CSVPath: filepath.Join(dir, study.ExportFilename),
		PNGPath: filepath.Join(dir, ChartFilename),
	}
	if err := os.WriteFile(res.CSVPath, csvBuf.Bytes(), 0600); err != nil {
		return nil, fmt.Errorf("writing csv: %w", err)
	}
	if err := os.WriteFile(res.PNGPath, pngBuf.Bytes(), 0600); err != nil {
		return nil, fmt.Errorf("writing chart: %w", err)
	}
	metrics.ExportsWritten.WithLabelValues("png").Inc()

	if a.uploader == nil {
		return res, nil
	}

	now := time.Now()
	if res.CSVLink, err = a.uploader.Upload(ctx, a.uploader.ExportKey(now, "csv"), "text/csv", csvBuf.Bytes()); err != nil {
		return res, fmt.Errorf("uploading csv: %w", err)
	}
	if res.PNGLink, err = a.uploader.Upload(ctx, a.uploader.ExportKey(now, "png"), "image/png", pngBuf.Bytes()); err != nil {
		return res, fmt.Errorf("uploading chart: %w", err)
	}
	a.log.Info("Uploaded study export", "csv", res.CSVLink, "png", res.PNGLink)

	return res, nil
}
