// Package notifications raises desktop alerts about the study
package notifications

import (
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/gen2brain/beeep"

	"github.com/mrcode/bioclear/internal/logger"
	"github.com/mrcode/bioclear/internal/models"
)

// Alert type constants
const (
	AlertEstimatorUnavailable = "estimator_unavailable"
	AlertOutOfRange           = "out_of_range"
	AlertProlongedClearance   = "prolonged_clearance"
)

// Sender delivers a notification
type Sender func(title, message string) error

// Manager handles study alerts and notifications
type Manager struct {
	settings      *models.Settings
	lastAlertTime map[string]time.Time
	send          Sender
	now           func() time.Time
	log           *logger.Logger
	mu            sync.Mutex
}

// NewManager creates a new notification manager using desktop notifications
func NewManager(settings *models.Settings, log *logger.Logger) *Manager {
	if log == nil {
		log = logger.NewNop()
	}
	return &Manager{
		settings:      settings,
		lastAlertTime: make(map[string]time.Time),
		send:          desktopNotify,
		now:           time.Now,
		log:           log.With("component", "notifications"),
	}
}

// SetSender replaces the delivery function
func (m *Manager) SetSender(s Sender) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.send = s
}

// EstimatorUnavailable reports that no model could be loaded
func (m *Manager) EstimatorUnavailable(err error) {
	m.notify(AlertEstimatorUnavailable, fmt.Sprintf("No half-life model loaded: %v", err))
}

// OutOfRange reports a patient outside the training distribution
func (m *Manager) OutOfRange(patient string, warnings []string) {
	m.notify(AlertOutOfRange, fmt.Sprintf("%s: %s", patient, strings.Join(warnings, "; ")))
}

// ProlongedClearance reports a patient whose detection window exceeds the alert limit
func (m *Manager) ProlongedClearance(patient string, hours float64) {
	m.notify(AlertProlongedClearance, fmt.Sprintf("%s stays detectable for %.1f hours (%.1f days)", patient, hours, hours/24))
}

func (m *Manager) notify(alertType, message string) {
	if err := m.checkAndNotify(alertType, message); err != nil {
		m.log.Warn("Notification failed", "alert", alertType, "error", err)
	}
}

// checkAndNotify sends the alert unless disabled or still inside the repeat window
func (m *Manager) checkAndNotify(alertType, message string) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	// Settings may be updated concurrently; read a snapshot
	if m.settings == nil {
		return nil
	}
	settings := m.settings.Clone()
	if !settings.EnableNotifications {
		return nil
	}

	// Check if we should repeat the alert
	if lastTime, ok := m.lastAlertTime[alertType]; ok {
		if settings.RepeatAlertMinutes > 0 {
			repeatDuration := time.Duration(settings.RepeatAlertMinutes) * time.Minute
			if m.now().Sub(lastTime) < repeatDuration {
				return nil
			}
		} else {
			// No repeat, only alert once per type
			return nil
		}
	}

	if err := m.send(formatTitle(alertType), message); err != nil {
		return err
	}

	m.lastAlertTime[alertType] = m.now()
	return nil
}

// formatTitle returns the notification title for an alert type
func formatTitle(alertType string) string {
	switch alertType {
	case AlertEstimatorUnavailable:
		return "⚠️ BioClear: estimator unavailable"
	case AlertOutOfRange:
		return "BioClear: input outside training range"
	case AlertProlongedClearance:
		return "⏳ BioClear: prolonged clearance"
	default:
		return "BioClear"
	}
}

// ClearAlertState clears the alert state for a specific type or all types
func (m *Manager) ClearAlertState(alertType string) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if alertType == "" {
		m.lastAlertTime = make(map[string]time.Time)
	} else {
		delete(m.lastAlertTime, alertType)
	}
}

// SendTestNotification sends a test notification regardless of settings
func (m *Manager) SendTestNotification() error {
	m.mu.Lock()
	send := m.send
	m.mu.Unlock()
	return send("BioClear", "Test notification - alerts are working!")
}

func desktopNotify(title, message string) error {
	return beeep.Notify(title, message, "")
}
