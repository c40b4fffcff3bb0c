// Package influx writes solve metrics to InfluxDB and queries hash rate history.
package influx

import (
	"context"
	"fmt"
	"strconv"
	"time"

	influxdb2 "github.com/influxdata/influxdb-client-go/v2"
	"github.com/influxdata/influxdb-client-go/v2/api"
	"github.com/influxdata/influxdb-client-go/v2/api/write"
)

const (
	measurementSolves   = "solves"
	measurementFailures = "solve_failures"
)

// Client wraps InfluxDB operations for time-series metrics
type Client struct {
	client   influxdb2.Client
	writeAPI api.WriteAPI
	queryAPI api.QueryAPI
	bucket   string
	org      string
}

// Config holds InfluxDB connection configuration
type Config struct {
	URL    string
	Token  string
	Org    string
	Bucket string
}

// SolveMetric is one solve as written to the solves measurement
type SolveMetric struct {
	WebsiteID     string
	Threads       int
	Multithreaded bool
	Elapsed       time.Duration
	Attempts      uint64
	HashRate      uint64
	Difficulty    uint64
	At            time.Time
}

// NewClient creates a new InfluxDB client
func NewClient(cfg *Config) (*Client, error) {
	client := influxdb2.NewClient(cfg.URL, cfg.Token)

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	health, err := client.Health(ctx)
	if err != nil {
		client.Close()
		return nil, fmt.Errorf("failed to check InfluxDB health: %w", err)
	}

	if health.Status != "pass" {
		client.Close()
		msg := ""
		if health.Message != nil {
			msg = *health.Message
		}
		return nil, fmt.Errorf("InfluxDB health check failed: %s", msg)
	}

	return &Client{
		client:   client,
		writeAPI: client.WriteAPI(cfg.Org, cfg.Bucket),
		queryAPI: client.QueryAPI(cfg.Org),
		bucket:   cfg.Bucket,
		org:      cfg.Org,
	}, nil
}

// Close flushes pending points and closes the InfluxDB connection
func (c *Client) Close() {
	c.writeAPI.Flush()
	c.client.Close()
}

// Health checks InfluxDB connectivity
func (c *Client) Health(ctx context.Context) error {
	health, err := c.client.Health(ctx)
	if err != nil {
		return fmt.Errorf("failed to check health: %w", err)
	}

	if health.Status != "pass" {
		msg := ""
		if health.Message != nil {
			msg = *health.Message
		}
		return fmt.Errorf("health check failed: %s", msg)
	}

	return nil
}

// WriteSolveMetric writes a completed solve
func (c *Client) WriteSolveMetric(m SolveMetric) {
	c.writeAPI.WritePoint(SolvePoint(m))
}

// WriteFailureMetric writes a failed solve attempt tagged with its reason
func (c *Client) WriteFailureMetric(websiteID, reason string, at time.Time) {
	c.writeAPI.WritePoint(FailurePoint(websiteID, reason, at))
}

// SolvePoint builds the point written by WriteSolveMetric
func SolvePoint(m SolveMetric) *write.Point {
	tags := map[string]string{
		"website_id":    m.WebsiteID,
		"multithreaded": strconv.FormatBool(m.Multithreaded),
	}

	fields := map[string]interface{}{
		"threads":    int64(m.Threads),
		"elapsed_ms": m.Elapsed.Milliseconds(),
		"attempts":   m.Attempts,
		"hash_rate":  m.HashRate,
		"difficulty": m.Difficulty,
		"count":      int64(1),
	}

	return write.NewPoint(measurementSolves, tags, fields, m.At)
}

// FailurePoint builds the point written by WriteFailureMetric
func FailurePoint(websiteID, reason string, at time.Time) *write.Point {
	tags := map[string]string{
		"website_id": websiteID,
		"reason":     reason,
	}
	fields := map[string]interface{}{
		"count": int64(1),
	}
	return write.NewPoint(measurementFailures, tags, fields, at)
}

// GetHashrateHistory retrieves the mean hash rate per five minute window
func (c *Client) GetHashrateHistory(ctx context.Context, websiteID string, duration time.Duration) ([]HashratePoint, error) {
	query := fmt.Sprintf(`
		from(bucket: "%s")
		|> range(start: -%s)
		|> filter(fn: (r) => r._measurement == "%s")
		|> filter(fn: (r) => r.website_id == "%s")
		|> filter(fn: (r) => r._field == "hash_rate")
		|> aggregateWindow(every: 5m, fn: mean, createEmpty: false)
	`, c.bucket, duration.String(), measurementSolves, websiteID)

	result, err := c.queryAPI.Query(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("failed to query hashrate history: %w", err)
	}
	defer func() { _ = result.Close() }()

	var points []HashratePoint
	for result.Next() {
		record := result.Record()
		if value, ok := record.Value().(float64); ok {
			points = append(points, HashratePoint{
				Time:     record.Time(),
				Hashrate: value,
			})
		}
	}

	if result.Err() != nil {
		return nil, fmt.Errorf("error reading query result: %w", result.Err())
	}

	return points, nil
}

// Flush forces a write of all pending points
func (c *Client) Flush() {
	c.writeAPI.Flush()
}

// HashratePoint represents a hash rate measurement at a point in time
type HashratePoint struct {
	Time     time.Time `json:"time"`
	Hashrate float64   `json:"hashrate"`
}
