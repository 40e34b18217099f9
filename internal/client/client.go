// Package client talks to a running bioclear server
package client

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/mrcode/bioclear/internal/api"
	"github.com/mrcode/bioclear/internal/models"
	"github.com/mrcode/bioclear/internal/study"
)

// APIError is a non-2xx response from the server
type APIError struct {
	StatusCode int
	Body       string
}

func (e *APIError) Error() string {
	return fmt.Sprintf("API error %d: %s", e.StatusCode, e.Body)
}

// Client handles communication with the bioclear API
type Client struct {
	baseURL    string
	httpClient *http.Client
}

// NewClient creates a new client
func NewClient(baseURL string) *Client {
	return &Client{
		baseURL: strings.TrimRight(baseURL, "/"),
		httpClient: &http.Client{
			Timeout: 30 * time.Second,
		},
	}
}

// buildRequest creates an HTTP request with the JSON headers set
func (c *Client) buildRequest(method, endpoint string, params url.Values, body io.Reader) (*http.Request, error) {
	fullURL := c.baseURL + endpoint
	if len(params) > 0 {
		fullURL += "?" + params.Encode()
	}

	req, err := http.NewRequest(method, fullURL, body)
	if err != nil {
		return nil, err
	}

	req.Header.Set("Accept", "application/json")
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	return req, nil
}

// doRequest executes an HTTP request and returns the response body
func (c *Client) doRequest(req *http.Request) ([]byte, error) {
	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("request failed: %w", err)
	}
	defer func() {
		_ = resp.Body.Close()
	}()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("reading response: %w", err)
	}

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return nil, &APIError{StatusCode: resp.StatusCode, Body: strings.TrimSpace(string(body))}
	}

	return body, nil
}

// getJSON performs a GET and decodes the response into out
func (c *Client) getJSON(endpoint string, params url.Values, what string, out interface{}) error {
	req, err := c.buildRequest(http.MethodGet, endpoint, params, nil)
	if err != nil {
		return err
	}

	body, err := c.doRequest(req)
	if err != nil {
		return err
	}

	if err := json.Unmarshal(body, out); err != nil {
		return fmt.Errorf("parsing %s: %w", what, err)
	}
	return nil
}

func thresholdParams(threshold float64) url.Values {
	params := url.Values{}
	if threshold > 0 {
		params.Set("threshold", strconv.FormatFloat(threshold, 'f', -1, 64))
	}
	return params
}

// Health retrieves the server health
func (c *Client) Health() (*api.HealthResponse, error) {
	var h api.HealthResponse
	if err := c.getJSON("/healthz", nil, "health", &h); err != nil {
		return nil, err
	}
	return &h, nil
}

// Drugs retrieves the reference drug table
func (c *Client) Drugs() ([]models.ReferenceDrug, error) {
	var drugs []models.ReferenceDrug
	if err := c.getJSON("/drugs", nil, "drugs", &drugs); err != nil {
		return nil, err
	}
	return drugs, nil
}

// AddPatient submits a profile and returns the stored record
func (c *Client) AddPatient(p models.PatientProfile) (*study.AddResult, error) {
	data, err := json.Marshal(p)
	if err != nil {
		return nil, fmt.Errorf("encoding patient: %w", err)
	}

	req, err := c.buildRequest(http.MethodPost, "/patients", nil, bytes.NewReader(data))
	if err != nil {
		return nil, err
	}

	body, err := c.doRequest(req)
	if err != nil {
		return nil, err
	}

	var res study.AddResult
	if err := json.Unmarshal(body, &res); err != nil {
		return nil, fmt.Errorf("parsing add result: %w", err)
	}
	return &res, nil
}

// ListPatients retrieves every study record in insertion order
func (c *Client) ListPatients() ([]models.StudyRecord, error) {
	var records []models.StudyRecord
	if err := c.getJSON("/patients", nil, "patients", &records); err != nil {
		return nil, err
	}
	return records, nil
}

// ClearPatients empties the study and returns how many records were removed
func (c *Client) ClearPatients() (int, error) {
	req, err := c.buildRequest(http.MethodDelete, "/patients", nil, nil)
	if err != nil {
		return 0, err
	}

	body, err := c.doRequest(req)
	if err != nil {
		return 0, err
	}

	var res struct {
		Cleared int `json:"cleared"`
	}
	if err := json.Unmarshal(body, &res); err != nil {
		return 0, fmt.Errorf("parsing clear result: %w", err)
	}
	return res.Cleared, nil
}

// ExportCSV downloads the study as CSV. A zero threshold uses the server default.
func (c *Client) ExportCSV(threshold float64) ([]byte, error) {
	req, err := c.buildRequest(http.MethodGet, "/patients/export.csv", thresholdParams(threshold), nil)
	if err != nil {
		return nil, err
	}
	req.Header.Set("Accept", "text/csv")
	return c.doRequest(req)
}

// ChartPNG downloads the rendered concentration chart
func (c *Client) ChartPNG() ([]byte, error) {
	req, err := c.buildRequest(http.MethodGet, "/chart.png", nil, nil)
	if err != nil {
		return nil, err
	}
	req.Header.Set("Accept", "image/png")
	return c.doRequest(req)
}

// Summary retrieves study statistics
func (c *Client) Summary(threshold float64) (*study.Summary, error) {
	var sum study.Summary
	if err := c.getJSON("/summary", thresholdParams(threshold), "summary", &sum); err != nil {
		return nil, err
	}
	return &sum, nil
}

// TestConnection tests if the server is reachable
func (c *Client) TestConnection() error {
	_, err := c.Health()
	return err
}

// Patient retrieves the record at a 0-based index
func (c *Client) Patient(index int) (*models.StudyRecord, error) {
	var r models.StudyRecord
	if err := c.getJSON("/patients/"+strconv.Itoa(index), nil, "patient", &r); err != nil {
		return nil, err
	}
	return &r, nil
}

// Settings retrieves the saved and effective settings
func (c *Client) Settings() (*api.SettingsResponse, error) {
	var s api.SettingsResponse
	if err := c.getJSON("/settings", nil, "settings", &s); err != nil {
		return nil, err
	}
	return &s, nil
}

// UpdateSettings saves the given fields, keyed by their JSON names
func (c *Client) UpdateSettings(changes map[string]interface{}) (*api.SettingsResponse, error) {
	data, err := json.Marshal(changes)
	if err != nil {
		return nil, fmt.Errorf("encoding settings: %w", err)
	}

	req, err := c.buildRequest(http.MethodPut, "/settings", nil, bytes.NewReader(data))
	if err != nil {
		return nil, err
	}

	body, err := c.doRequest(req)
	if err != nil {
		return nil, err
	}

	var s api.SettingsResponse
	if err := json.Unmarshal(body, &s); err != nil {
		return nil, fmt.Errorf("parsing settings: %w", err)
	}
	return &s, nil
}

// TestNotification asks the server to show a desktop notification
func (c *Client) TestNotification() error {
	req, err := c.buildRequest(http.MethodPost, "/notifications/test", nil, nil)
	if err != nil {
		return err
	}
	_, err = c.doRequest(req)
	return err
}

// ResetAlerts lets alerts of the given type fire again; empty resets all
func (c *Client) ResetAlerts(alertType string) error {
	params := url.Values{}
	if alertType != "" {
		params.Set("type", alertType)
	}
	req, err := c.buildRequest(http.MethodDelete, "/notifications/alerts", params, nil)
	if err != nil {
		return err
	}
	_, err = c.doRequest(req)
	return err
}
