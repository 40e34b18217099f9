// Package models contains data structures used throughout the application
package models

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"runtime"
	"sync"

	"github.com/kelseyhightower/envconfig"
)

// Clearance status values returned by Settings.GetClearanceStatus
const (
	ClearanceFast        = "fast"
	ClearanceModerate    = "moderate"
	ClearanceProlonged   = "prolonged"
	ClearanceUnreachable = "unreachable"
)

// MaxSampleCount is the largest number of points sampled for one curve
const MaxSampleCount = 100000

// Settings contains all user-facing simulation settings
type Settings struct {
	mu sync.RWMutex `json:"-"`

	// Simulation settings
	DefaultDose        float64 `json:"defaultDose" envconfig:"DEFAULT_DOSE"`               // mg
	DetectionThreshold float64 `json:"detectionThreshold" envconfig:"DETECTION_THRESHOLD"` // ng/mL
	HorizonHours       float64 `json:"horizonHours" envconfig:"HORIZON_HOURS"`
	SampleCount        int     `json:"sampleCount" envconfig:"SAMPLE_COUNT"`
	EstimationMode     string  `json:"estimationMode" envconfig:"ESTIMATION_MODE"` // "direct" or "hybrid"

	// Chart settings
	ChartWidth          int      `json:"chartWidth" envconfig:"CHART_WIDTH"`
	ChartHeight         int      `json:"chartHeight" envconfig:"CHART_HEIGHT"`
	ChartColorThreshold string   `json:"chartColorThreshold" envconfig:"CHART_COLOR_THRESHOLD"` // Hex color
	ChartPalette        []string `json:"chartPalette" envconfig:"CHART_PALETTE"`
	ChartShowLegend     bool     `json:"chartShowLegend" envconfig:"CHART_SHOW_LEGEND"`

	// Alert settings
	EnableNotifications bool    `json:"enableNotifications" envconfig:"ENABLE_NOTIFICATIONS"`
	RepeatAlertMinutes  int     `json:"repeatAlertMinutes" envconfig:"REPEAT_ALERT_MINUTES"` // 0 = no repeat
	ClearanceAlertHours float64 `json:"clearanceAlertHours" envconfig:"CLEARANCE_ALERT_HOURS"`
}

// DefaultSettings returns settings with default values
func DefaultSettings() *Settings {
	return &Settings{
		DefaultDose:        100,
		DetectionThreshold: 10,
		HorizonHours:       100,
		SampleCount:        500,
		EstimationMode:     "direct",

		ChartWidth:          1000,
		ChartHeight:         600,
		ChartColorThreshold: "#ef4444", // Red
		ChartPalette: []string{
			"#1f77b4", "#ff7f0e", "#2ca02c", "#9467bd",
			"#8c564b", "#e377c2", "#7f7f7f", "#bcbd22", "#17becf",
		},
		ChartShowLegend: true,

		EnableNotifications: false,
		RepeatAlertMinutes:  15,
		ClearanceAlertHours: 72,
	}
}

// GetConfigDir returns the configuration directory path
func GetConfigDir() (string, error) {
	var configDir string

	switch runtime.GOOS {
	case "windows":
		configDir = os.Getenv("APPDATA")
		if configDir == "" {
			configDir = filepath.Join(os.Getenv("USERPROFILE"), "AppData", "Roaming")
		}
	case "darwin":
		home, err := os.UserHomeDir()
		if err != nil {
			return "", err
		}
		configDir = filepath.Join(home, "Library", "Application Support")
	default: // Linux and others
		configDir = os.Getenv("XDG_CONFIG_HOME")
		if configDir == "" {
			home, err := os.UserHomeDir()
			if err != nil {
				return "", err
			}
			configDir = filepath.Join(home, ".config")
		}
	}

	appDir := filepath.Join(configDir, "bioclear")
	if err := os.MkdirAll(appDir, 0750); err != nil {
		return "", err
	}

	return appDir, nil
}

// GetConfigPath returns the full path to the default settings file
func GetConfigPath() (string, error) {
	dir, err := GetConfigDir()
	if err != nil {
		return "", err
	}
	return filepath.Join(dir, "settings.json"), nil
}

// Load loads settings from the default location
func (s *Settings) Load() error {
	path, err := GetConfigPath()
	if err != nil {
		return err
	}
	return s.LoadFrom(path)
}

// LoadFrom loads settings from the given file. A missing file resets to defaults.
func (s *Settings) LoadFrom(path string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	data, err := os.ReadFile(path) //nolint:gosec // Config path is controlled by the app, not user input
	if err != nil {
		if os.IsNotExist(err) {
			s.copySettingsFields(DefaultSettings())
			return nil
		}
		return err
	}

	if err := json.Unmarshal(data, s); err != nil {
		return fmt.Errorf("parsing settings: %w", err)
	}

	return nil
}

// ApplyEnv overrides fields from BIOCLEAR_* environment variables
func (s *Settings) ApplyEnv() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	return envconfig.Process("bioclear", s)
}

// Save saves settings to the default location
func (s *Settings) Save() error {
	path, err := GetConfigPath()
	if err != nil {
		return err
	}
	return s.SaveTo(path)
}

// SaveTo writes settings to the given file
func (s *Settings) SaveTo(path string) error {
	s.mu.RLock()
	defer s.mu.RUnlock()

	data, err := json.MarshalIndent(s, "", "  ")
	if err != nil {
		return err
	}

	if err := os.MkdirAll(filepath.Dir(path), 0750); err != nil {
		return err
	}

	return os.WriteFile(path, data, 0600)
}

// Clone creates a copy of the settings
func (s *Settings) Clone() *Settings {
	s.mu.RLock()
	defer s.mu.RUnlock()

	// Create a new Settings struct with copied values (not the mutex)
	clone := &Settings{}
	clone.copySettingsFields(s)
	return clone
}

// Update updates settings from another Settings object
func (s *Settings) Update(other *Settings) {
	s.mu.Lock()
	defer s.mu.Unlock()
	other.mu.RLock()
	defer other.mu.RUnlock()

	s.copySettingsFields(other)
}

// copySettingsFields copies all fields from other to s, excluding the mutex
// The caller must hold the necessary locks on s and other (if other is shared)
func (s *Settings) copySettingsFields(other *Settings) {
	s.DefaultDose = other.DefaultDose
	s.DetectionThreshold = other.DetectionThreshold
	s.HorizonHours = other.HorizonHours
	s.SampleCount = other.SampleCount
	s.EstimationMode = other.EstimationMode
	s.ChartWidth = other.ChartWidth
	s.ChartHeight = other.ChartHeight
	s.ChartColorThreshold = other.ChartColorThreshold
	s.ChartPalette = append([]string(nil), other.ChartPalette...)
	s.ChartShowLegend = other.ChartShowLegend
	s.EnableNotifications = other.EnableNotifications
	s.RepeatAlertMinutes = other.RepeatAlertMinutes
	s.ClearanceAlertHours = other.ClearanceAlertHours
}

// Validate reports settings that would make every simulation fail
func (s *Settings) Validate() error {
	s.mu.RLock()
	defer s.mu.RUnlock()

	switch {
	case !(s.DefaultDose > 0):
		return fmt.Errorf("default dose must be positive, got %v", s.DefaultDose)
	case !(s.DetectionThreshold > 0):
		return fmt.Errorf("detection threshold must be positive, got %v", s.DetectionThreshold)
	case s.HorizonHours < 0:
		return fmt.Errorf("horizon must not be negative, got %v", s.HorizonHours)
	case s.SampleCount < 1 || s.SampleCount > MaxSampleCount:
		return fmt.Errorf("sample count must be between 1 and %d, got %d", MaxSampleCount, s.SampleCount)
	}
	return nil
}

// GetClearanceStatus classifies a clearance time in hours
func (s *Settings) GetClearanceStatus(hours float64, reachable bool) string {
	s.mu.RLock()
	defer s.mu.RUnlock()

	switch {
	case !reachable:
		return ClearanceUnreachable
	case hours >= s.ClearanceAlertHours:
		return ClearanceProlonged
	case hours < 24:
		return ClearanceFast
	default:
		return ClearanceModerate
	}
}
