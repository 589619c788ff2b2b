package upstream

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

	"github.com/yungbote/capacity-checker/internal/observability"
	errs "github.com/yungbote/capacity-checker/internal/pkg/errors"
	"github.com/yungbote/capacity-checker/internal/pkg/logger"
)

const (
	DefaultUnitsResourceID      = "25a5fa2e-873d-41c5-8aaf-fbc2b06d79e6"
	DefaultComponentsResourceID = "790f5fa0-f8eb-4d82-b98d-0d34d3e404e8"

	maxPageSize = 1000
)

type Config struct {
	BaseURL              string
	UnitsResourceID      string
	ComponentsResourceID string
	APIKey               string
	Timeout              time.Duration
}

// Record is one raw datastore row keyed by the source's column titles.
type Record map[string]interface{}

type Page struct {
	Total   int
	Records []Record
}

// Client reads the public capacity register datastore. Calls are never retried; a failed
// call surfaces as a TransientIOError and the caller decides what to do.
type Client interface {
	ListUnits(ctx context.Context, limit, offset int) (Page, error)
	SearchComponents(ctx context.Context, query string, limit, offset int) (Page, error)
	ComponentsForUnit(ctx context.Context, unitID string) ([]Record, error)
}

type client struct {
	log        *logger.Logger
	metrics    *observability.Metrics
	httpClient *http.Client
	cfg        Config
}

type HTTPError struct {
	StatusCode int
	Body       string
}

func (e *HTTPError) Error() string {
	return fmt.Sprintf("upstream http %d: %s", e.StatusCode, e.Body)
}

// NewClient validates configuration up front: a missing base URL or resource id is a
// ConfigurationError, not a runtime failure.
func NewClient(log *logger.Logger, metrics *observability.Metrics, cfg Config) (Client, error) {
	if log == nil {
		return nil, fmt.Errorf("logger required")
	}
	cfg.BaseURL = strings.TrimRight(strings.TrimSpace(cfg.BaseURL), "/")
	cfg.UnitsResourceID = strings.TrimSpace(cfg.UnitsResourceID)
	cfg.ComponentsResourceID = strings.TrimSpace(cfg.ComponentsResourceID)

	var missing []string
	if cfg.BaseURL == "" {
		missing = append(missing, "UPSTREAM_BASE_URL")
	}
	if cfg.UnitsResourceID == "" {
		missing = append(missing, "UPSTREAM_UNITS_RESOURCE_ID")
	}
	if cfg.ComponentsResourceID == "" {
		missing = append(missing, "UPSTREAM_COMPONENTS_RESOURCE_ID")
	}
	if len(missing) > 0 {
		return nil, errs.MissingConfig(missing...)
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = 20 * time.Second
	}
	return &client{
		log:        log.With("client", "UpstreamClient"),
		metrics:    metrics,
		httpClient: &http.Client{Timeout: cfg.Timeout},
		cfg:        cfg,
	}, nil
}

type datastoreResponse struct {
	Success *bool `json:"success"`
	Result  *struct {
		Total   int      `json:"total"`
		Records []Record `json:"records"`
	} `json:"result"`
	Error json.RawMessage `json:"error,omitempty"`
}

func (c *client) ListUnits(ctx context.Context, limit, offset int) (Page, error) {
	params := url.Values{}
	return c.search(ctx, "units", c.cfg.UnitsResourceID, params, limit, offset)
}

func (c *client) SearchComponents(ctx context.Context, query string, limit, offset int) (Page, error) {
	params := url.Values{}
	if q := strings.TrimSpace(query); q != "" {
		params.Set("q", q)
	}
	return c.search(ctx, "components", c.cfg.ComponentsResourceID, params, limit, offset)
}

func (c *client) ComponentsForUnit(ctx context.Context, unitID string) ([]Record, error) {
	unitID = strings.TrimSpace(unitID)
	if unitID == "" {
		return []Record{}, nil
	}
	filters, err := json.Marshal(map[string]string{FieldUnitID: strings.ToUpper(unitID)})
	if err != nil {
		return nil, err
	}
	out := []Record{}
	offset := 0
	for {
		params := url.Values{}
		params.Set("filters", string(filters))
		page, err := c.search(ctx, "components", c.cfg.ComponentsResourceID, params, maxPageSize, offset)
		if err != nil {
			return nil, err
		}
		out = append(out, page.Records...)
		offset += len(page.Records)
		if len(page.Records) == 0 || offset >= page.Total {
			return out, nil
		}
	}
}

func (c *client) search(ctx context.Context, resource, resourceID string, params url.Values, limit, offset int) (page Page, err error) {
	start := time.Now()
	defer func() { c.metrics.ObserveUpstream(resource, err == nil, time.Since(start)) }()

	if limit <= 0 || limit > maxPageSize {
		limit = maxPageSize
	}
	if offset < 0 {
		offset = 0
	}
	params.Set("resource_id", resourceID)
	params.Set("limit", strconv.Itoa(limit))
	params.Set("offset", strconv.Itoa(offset))

	op := "datastore_search " + resource
	raw, err := c.doOnce(ctx, c.cfg.BaseURL+"/datastore_search?"+params.Encode())
	if err != nil {
		return Page{}, errs.Transient("upstream", op, err)
	}
	var body datastoreResponse
	if err := json.Unmarshal(raw, &body); err != nil {
		return Page{}, errs.Transient("upstream", op, fmt.Errorf("decode response: %w", err))
	}
	if body.Success == nil || !*body.Success {
		return Page{}, errs.Transient("upstream", op, fmt.Errorf("datastore reported failure: %s", string(body.Error)))
	}
	if body.Result == nil {
		return Page{}, errs.Transient("upstream", op, fmt.Errorf("response missing result"))
	}
	c.log.Debug("upstream page fetched", "resource", resource, "offset", offset, "records", len(body.Result.Records), "total", body.Result.Total)
	return Page{Total: body.Result.Total, Records: body.Result.Records}, nil
}

func (c *client) doOnce(ctx context.Context, rawURL string) ([]byte, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, rawURL, nil)
	if err != nil {
		return nil, err
	}
	req.Header.Set("Accept", "application/json")
	if c.cfg.APIKey != "" {
		req.Header.Set("Authorization", c.cfg.APIKey)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, err
	}
	raw, readErr := io.ReadAll(io.LimitReader(resp.Body, 64<<20))
	_ = resp.Body.Close()
	if readErr != nil {
		return nil, readErr
	}
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		body := string(raw)
		if len(body) > 512 {
			body = body[:512]
		}
		return nil, &HTTPError{StatusCode: resp.StatusCode, Body: body}
	}
	return raw, nil
}
