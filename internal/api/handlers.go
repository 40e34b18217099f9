package api

import (
	"bytes"
	"fmt"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"

	"github.com/mrcode/bioclear/internal/chart"
	"github.com/mrcode/bioclear/internal/decay"
	"github.com/mrcode/bioclear/internal/models"
	"github.com/mrcode/bioclear/internal/study"
)

// HealthResponse is returned by GET /healthz
type HealthResponse struct {
	Status             string `json:"status"`
	EstimatorAvailable bool   `json:"estimatorAvailable"`
	Mode               string `json:"mode,omitempty"`
	Patients           int    `json:"patients"`
}

func (s *Server) handleHealth(c *gin.Context) {
	resp := HealthResponse{
		Status:             "ok",
		EstimatorAvailable: s.svc.Available(),
		Mode:               string(s.svc.Mode()),
		Patients:           s.svc.Study().Len(),
	}
	if !resp.EstimatorAvailable {
		resp.Status = "degraded"
	}
	c.JSON(http.StatusOK, resp)
}

func (s *Server) handleDrugs(c *gin.Context) {
	c.JSON(http.StatusOK, s.drugs.All())
}

func (s *Server) handleListPatients(c *gin.Context) {
	c.JSON(http.StatusOK, s.svc.Study().Records())
}

// handleGetPatient returns one record by its 0-based position
func (s *Server) handleGetPatient(c *gin.Context) {
	raw := c.Param("index")
	i, err := strconv.Atoi(raw)
	if err != nil {
		c.AbortWithStatusJSON(http.StatusBadRequest, gin.H{"error": fmt.Sprintf("invalid index %q", raw)})
		return
	}
	r, ok := s.svc.Study().At(i)
	if !ok {
		c.AbortWithStatusJSON(http.StatusNotFound, gin.H{"error": fmt.Sprintf("no record at index %d", i)})
		return
	}
	c.JSON(http.StatusOK, r)
}

func (s *Server) handleAddPatient(c *gin.Context) {
	var p models.PatientProfile
	if err := c.ShouldBindJSON(&p); err != nil {
		c.AbortWithStatusJSON(http.StatusBadRequest, gin.H{"error": "invalid body: " + err.Error()})
		return
	}

	res, err := s.svc.AddPatient(p)
	if err != nil {
		s.fail(c, err)
		return
	}
	c.JSON(http.StatusCreated, res)
}

func (s *Server) handleClearPatients(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"cleared": s.svc.Clear()})
}

func (s *Server) handleExportCSV(c *gin.Context) {
	threshold, ok := queryFloat(c, "threshold")
	if !ok {
		return
	}

	var buf bytes.Buffer
	if err := s.svc.ExportCSV(&buf, threshold); err != nil {
		s.fail(c, err)
		return
	}

	c.Header("Content-Disposition", fmt.Sprintf("attachment; filename=%q", study.ExportFilename))
	c.Data(http.StatusOK, "text/csv; charset=utf-8", buf.Bytes())
}

func (s *Server) curvesFromQuery(c *gin.Context) ([]models.PatientCurve, bool) {
	horizon, ok := queryFloat(c, "horizon")
	if !ok {
		return nil, false
	}
	samples, ok := queryInt(c, "samples")
	if !ok {
		return nil, false
	}

	curves, err := s.svc.Curves(horizon, samples)
	if err != nil {
		s.fail(c, err)
		return nil, false
	}
	return curves, true
}

func (s *Server) handleCurves(c *gin.Context) {
	curves, ok := s.curvesFromQuery(c)
	if !ok {
		return
	}
	c.JSON(http.StatusOK, curves)
}

func (s *Server) handleClearance(c *gin.Context) {
	threshold, ok := queryFloat(c, "threshold")
	if !ok {
		return
	}
	out, err := s.svc.ClearanceTimes(threshold)
	if err != nil {
		s.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, out)
}

func (s *Server) handleChart(c *gin.Context) {
	curves, ok := s.curvesFromQuery(c)
	if !ok {
		return
	}

	settings := s.svc.Settings()
	var buf bytes.Buffer
	if err := chart.RenderPNG(&buf, curves, settings.DetectionThreshold, chart.OptionsFromSettings(settings)); err != nil {
		s.fail(c, err)
		return
	}
	c.Data(http.StatusOK, "image/png", buf.Bytes())
}

func (s *Server) handleSummary(c *gin.Context) {
	threshold, ok := queryFloat(c, "threshold")
	if !ok {
		return
	}
	sum, err := s.svc.Summary(threshold)
	if err != nil {
		s.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, sum)
}

// CurveRequest is the body of POST /decay/curve
type CurveRequest struct {
	Dose          float64 `json:"dose"`
	HalfLifeHours float64 `json:"halfLifeHours"`
	HorizonHours  float64 `json:"horizonHours"`
	Samples       int     `json:"samples"`
}

func (s *Server) handleDecayCurve(c *gin.Context) {
	var req CurveRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.AbortWithStatusJSON(http.StatusBadRequest, gin.H{"error": "invalid body: " + err.Error()})
		return
	}

	curve, err := decay.Curve(req.Dose, req.HalfLifeHours, req.HorizonHours, req.Samples)
	if err != nil {
		s.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, curve)
}

// ThresholdRequest is the body of POST /decay/threshold
type ThresholdRequest struct {
	Dose          float64 `json:"dose"`
	HalfLifeHours float64 `json:"halfLifeHours"`
	Threshold     float64 `json:"threshold"`
}

// ThresholdResponse is the result of POST /decay/threshold
type ThresholdResponse struct {
	Hours float64 `json:"hours"`
	Days  float64 `json:"days"`
}

func (s *Server) handleDecayThreshold(c *gin.Context) {
	var req ThresholdRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.AbortWithStatusJSON(http.StatusBadRequest, gin.H{"error": "invalid body: " + err.Error()})
		return
	}

	hours, err := decay.TimeToThreshold(req.Dose, req.HalfLifeHours, req.Threshold)
	if err != nil {
		s.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, ThresholdResponse{Hours: hours, Days: hours / 24})
}

// queryFloat parses an optional float query parameter; missing means 0
func queryFloat(c *gin.Context, name string) (float64, bool) {
	raw := c.Query(name)
	if raw == "" {
		return 0, true
	}
	v, err := strconv.ParseFloat(raw, 64)
	if err != nil {
		c.AbortWithStatusJSON(http.StatusBadRequest, gin.H{"error": fmt.Sprintf("invalid %s %q", name, raw)})
		return 0, false
	}
	return v, true
}

func queryInt(c *gin.Context, name string) (int, bool) {
	raw := c.Query(name)
	if raw == "" {
		return 0, true
	}
	v, err := strconv.Atoi(raw)
	if err != nil {
		c.AbortWithStatusJSON(http.StatusBadRequest, gin.H{"error": fmt.Sprintf("invalid %s %q", name, raw)})
		return 0, false
	}
	return v, true
}
