package api

import (
	"encoding/json"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/mrcode/bioclear/internal/models"
)

// SettingsStore reads and persists user settings
type SettingsStore interface {
	GetSettings() *models.Settings
	EffectiveSettings() *models.Settings
	SaveSettings(settings *models.Settings) error
}

// Alerts controls desktop notifications
type Alerts interface {
	SendTestNotification() error
	ResetAlerts(alertType string)
}

// SettingsResponse is returned by GET and PUT /settings
type SettingsResponse struct {
	Saved     *models.Settings `json:"saved"`
	Effective *models.Settings `json:"effective"` // Saved plus environment overrides
}

// SetSettingsStore enables the /settings routes
func (s *Server) SetSettingsStore(store SettingsStore) {
	s.settings = store
}

// SetAlerts enables the /notifications routes
func (s *Server) SetAlerts(alerts Alerts) {
	s.alerts = alerts
}

func (s *Server) settingsResponse() SettingsResponse {
	return SettingsResponse{
		Saved:     s.settings.GetSettings(),
		Effective: s.settings.EffectiveSettings(),
	}
}

func (s *Server) handleGetSettings(c *gin.Context) {
	if s.settings == nil {
		c.AbortWithStatusJSON(http.StatusNotFound, gin.H{"error": "settings are not configurable"})
		return
	}
	c.JSON(http.StatusOK, s.settingsResponse())
}

// handleUpdateSettings merges the body into the saved settings; absent fields keep their values
func (s *Server) handleUpdateSettings(c *gin.Context) {
	if s.settings == nil {
		c.AbortWithStatusJSON(http.StatusNotFound, gin.H{"error": "settings are not configurable"})
		return
	}

	updated := s.settings.GetSettings()
	if err := json.NewDecoder(c.Request.Body).Decode(updated); err != nil {
		c.AbortWithStatusJSON(http.StatusBadRequest, gin.H{"error": "invalid body: " + err.Error()})
		return
	}

	if err := s.settings.SaveSettings(updated); err != nil {
		c.AbortWithStatusJSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	s.log.Info("Settings updated")
	c.JSON(http.StatusOK, s.settingsResponse())
}

func (s *Server) handleTestNotification(c *gin.Context) {
	if s.alerts == nil {
		c.AbortWithStatusJSON(http.StatusNotFound, gin.H{"error": "notifications are not configured"})
		return
	}
	if err := s.alerts.SendTestNotification(); err != nil {
		s.log.Warn("Test notification failed", "error", err)
		c.AbortWithStatusJSON(http.StatusBadGateway, gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusOK, gin.H{"sent": true})
}

func (s *Server) handleResetAlerts(c *gin.Context) {
	if s.alerts == nil {
		c.AbortWithStatusJSON(http.StatusNotFound, gin.H{"error": "notifications are not configured"})
		return
	}
	alertType := c.Query("type")
	s.alerts.ResetAlerts(alertType)
	c.JSON(http.StatusOK, gin.H{"reset": alertType})
}
