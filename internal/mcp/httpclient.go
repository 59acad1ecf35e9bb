package mcp

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/claude/heytrainer/internal/models"
	"github.com/claude/heytrainer/internal/session"
	"github.com/claude/heytrainer/internal/storage"
	"github.com/google/uuid"
)

// HTTPClient implements DataSource by calling the HeyTrainer REST API.
// Used for remote MCP mode where the binary runs locally (stdio) but
// data lives on the remote server (accessed over Tailscale).
type HTTPClient struct {
	baseURL    string
	httpClient *http.Client
}

// Compile-time check: HTTPClient satisfies DataSource.
var _ DataSource = (*HTTPClient)(nil)

// NewHTTPClient creates an HTTPClient targeting the given base URL.
func NewHTTPClient(baseURL string) *HTTPClient {
	return &HTTPClient{
		baseURL:    strings.TrimRight(baseURL, "/"),
		httpClient: &http.Client{Timeout: 30 * time.Second},
	}
}

func (c *HTTPClient) get(ctx context.Context, path string, params url.Values, v any) error {
	u := c.baseURL + path
	if len(params) > 0 {
		u += "?" + params.Encode()
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u, nil)
	if err != nil {
		return fmt.Errorf("httpclient: create request: %w", err)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("httpclient: %s: %w", path, err)
	}
	defer func() { _ = resp.Body.Close() }()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return fmt.Errorf("httpclient: read body: %w", err)
	}

	switch {
	case resp.StatusCode == http.StatusNotFound:
		return fmt.Errorf("httpclient: %s: %w", path, storage.ErrNotFound)
	case resp.StatusCode != http.StatusOK:
		return fmt.Errorf("httpclient: %s returned %d: %s", path, resp.StatusCode, body)
	}

	if err := json.Unmarshal(body, v); err != nil {
		return fmt.Errorf("httpclient: decode %s: %w", path, err)
	}
	return nil
}

func timeParams(start, end time.Time) url.Values {
	v := url.Values{}
	v.Set("start", start.Format(time.RFC3339))
	v.Set("end", end.Format(time.RFC3339))
	return v
}

func (c *HTTPClient) QueryWorkoutLogs(ctx context.Context, start, end time.Time, _ int) ([]storage.WorkoutLogSummary, error) {
	var logs []storage.WorkoutLogSummary
	if err := c.get(ctx, "/api/v1/workout-logs", timeParams(start, end), &logs); err != nil {
		return nil, err
	}
	return logs, nil
}

func (c *HTTPClient) GetWorkoutLog(ctx context.Context, id uuid.UUID, _ int) (*models.WorkoutLog, error) {
	var wl models.WorkoutLog
	if err := c.get(ctx, "/api/v1/workout-logs/"+id.String(), nil, &wl); err != nil {
		return nil, err
	}
	return &wl, nil
}

func (c *HTTPClient) QueryExerciseHistory(ctx context.Context, exercise string, _, limit int) ([]storage.ExerciseSet, error) {
	params := url.Values{}
	if limit > 0 {
		params.Set("limit", strconv.Itoa(limit))
	}
	var sets []storage.ExerciseSet
	if err := c.get(ctx, "/api/v1/exercises/"+url.PathEscape(exercise)+"/history", params, &sets); err != nil {
		return nil, err
	}
	return sets, nil
}

func (c *HTTPClient) ListRoutines(ctx context.Context, _ int) ([]models.Routine, error) {
	var routines []models.Routine
	if err := c.get(ctx, "/api/v1/routines", nil, &routines); err != nil {
		return nil, err
	}
	return routines, nil
}

func (c *HTTPClient) ListTriggerPhrases(ctx context.Context, _ int) ([]string, error) {
	var resp struct {
		Custom []string `json:"custom"`
	}
	if err := c.get(ctx, "/api/v1/settings/trigger-phrases", nil, &resp); err != nil {
		return nil, err
	}
	return resp.Custom, nil
}

func (c *HTTPClient) LiveSessions(ctx context.Context, _ int) ([]session.Snapshot, error) {
	var views []struct {
		Snapshot session.Snapshot `json:"snapshot"`
	}
	if err := c.get(ctx, "/api/v1/sessions", nil, &views); err != nil {
		return nil, err
	}
	out := make([]session.Snapshot, 0, len(views))
	for _, v := range views {
		out = append(out, v.Snapshot)
	}
	return out, nil
}

func (c *HTTPClient) GetDataStats(ctx context.Context, _ int) (*storage.DataStats, error) {
	var stats storage.DataStats
	if err := c.get(ctx, "/api/v1/stats", nil, &stats); err != nil {
		return nil, err
	}
	return &stats, nil
}

func (c *HTTPClient) GetTrainingSummary(ctx context.Context, start, end time.Time, bucket string, _ int) ([]storage.TrainingSummaryPeriod, error) {
	params := timeParams(start, end)
	switch bucket {
	case "1 day":
		params.Set("agg", "daily")
	case "1 month":
		params.Set("agg", "monthly")
	default:
		params.Set("agg", "weekly")
	}
	var periods []storage.TrainingSummaryPeriod
	if err := c.get(ctx, "/api/v1/training-summary", params, &periods); err != nil {
		return nil, err
	}
	return periods, nil
}
