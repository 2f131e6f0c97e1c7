// Package submit sends finished reports and anonymous usage beacons to a
// remote endpoint.
package submit

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"net/http"
	"time"

	"github.com/opscart/k8s-waste-audit/pkg/models"
	"github.com/pkg/errors"
)

// ErrRejected is returned when the server answers with a non-2xx status.
var ErrRejected = errors.New("report rejected")

type Config struct {
	URL          string        `mapstructure:"url"`
	Token        string        `mapstructure:"token"`
	Timeout      time.Duration `mapstructure:"timeout"`
	TelemetryURL string        `mapstructure:"telemetry-url"`
}

type Client struct {
	http   *http.Client
	config Config
}

func NewClient(config Config) *Client {
	if config.Timeout <= 0 {
		config.Timeout = 5 * time.Second
	}
	return &Client{
		http:   &http.Client{Timeout: config.Timeout},
		config: config,
	}
}

// Submit posts the report as JSON with the configured bearer token.
func (c *Client) Submit(ctx context.Context, report *models.Report) error {
	if c.config.URL == "" {
		return errors.New("no submission URL configured")
	}
	if c.config.Token == "" {
		return errors.New("no submission token configured")
	}

	return c.post(ctx, c.config.URL, c.config.Token, report)
}

// Stats are the anonymous counters of a beacon. They carry no names.
type Stats struct {
	Pods      int    `json:"pods"`
	Nodes     int    `json:"nodes"`
	Findings  int    `json:"findings"`
	Mode      string `json:"mode"`
	Estimated bool   `json:"estimated"`
	Provider  string `json:"provider"`
}

// StatsOf extracts beacon counters from a report.
func StatsOf(report *models.Report) Stats {
	return Stats{
		Pods:      report.TotalPods,
		Nodes:     report.TotalNodes,
		Findings:  len(report.Findings),
		Mode:      report.Details.Mode,
		Estimated: report.Costs.Estimated,
		Provider:  report.Pricing.Provider,
	}
}

// Beacon posts stats to the telemetry endpoint. Without an endpoint it is a
// no-op.
func (c *Client) Beacon(ctx context.Context, stats Stats) error {
	if c.config.TelemetryURL == "" {
		return nil
	}
	return c.post(ctx, c.config.TelemetryURL, "", stats)
}

func (c *Client) post(ctx context.Context, url, token string, payload interface{}) error {
	data, err := json.Marshal(payload)
	if err != nil {
		return errors.Wrap(err, "marshal payload failed")
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(data))
	if err != nil {
		return errors.Wrap(err, "can't build request")
	}
	req.Header.Set("Content-Type", "application/json")
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return errors.Wrap(err, "post failed")
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return errors.Wrapf(ErrRejected, "status %d%s", resp.StatusCode, serverMessage(resp.Body))
	}

	return nil
}

// serverMessage extracts the "error" or "message" field of a JSON error body.
func serverMessage(body io.Reader) string {
	var payload struct {
		Error   string `json:"error"`
		Message string `json:"message"`
	}
	if err := json.NewDecoder(io.LimitReader(body, 64<<10)).Decode(&payload); err != nil {
		return ""
	}
	if payload.Error != "" {
		return ": " + payload.Error
	}
	if payload.Message != "" {
		return ": " + payload.Message
	}
	return ""
}
