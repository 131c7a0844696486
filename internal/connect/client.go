// Package connect provides a client for the Kafka Connect REST API
package connect

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/goccy/go-json"
	"github.com/sony/gobreaker/v2"
	"github.com/tidwall/gjson"

	"github.com/stacklok/dbsync-orchestrator/internal/logger"
)

const (
	// DefaultTimeout is the default timeout for REST calls
	DefaultTimeout = 10 * time.Second

	// MaxResponseSize is the maximum accepted response body (8MB)
	MaxResponseSize = 8 * 1024 * 1024

	// UserAgent is the user agent string for REST calls
	UserAgent = "dbsync-orchestrator/1.0"

	// DefaultBreakerFailures is the number of consecutive transient failures that opens the breaker
	DefaultBreakerFailures = 5

	// DefaultBreakerOpenDuration is how long the breaker stays open before probing again
	DefaultBreakerOpenDuration = 30 * time.Second
)

//go:generate mockgen -destination=mocks/mock_client.go -package=mocks -source=client.go Client

// Client manages connectors through the Kafka Connect REST API
type Client interface {
	// CreateConnector creates a connector with the given configuration
	CreateConnector(ctx context.Context, name string, config map[string]string) (*ConnectorInfo, error)
	// GetConnectorInfo returns the connector definition, or an error matching ErrNotFound
	GetConnectorInfo(ctx context.Context, name string) (*ConnectorInfo, error)
	// GetConnectorStatus returns the run state of a connector, or an error matching ErrNotFound
	GetConnectorStatus(ctx context.Context, name string) (*ConnectorStatus, error)
	// UpdateConnectorConfig replaces the configuration of a connector
	UpdateConnectorConfig(ctx context.Context, name string, config map[string]string) (*ConnectorInfo, error)
	// DeleteConnector removes a connector. Deleting a missing connector succeeds.
	DeleteConnector(ctx context.Context, name string) error
	// PauseConnector suspends a connector and its tasks
	PauseConnector(ctx context.Context, name string) error
	// ResumeConnector resumes a paused connector
	ResumeConnector(ctx context.Context, name string) error
	// RestartConnector restarts a connector and its failed tasks
	RestartConnector(ctx context.Context, name string) error
	// ListConnectors returns the names of all connectors
	ListConnectors(ctx context.Context) ([]string, error)
	// ValidateConfig validates a configuration against the connector plugin
	ValidateConfig(ctx context.Context, connectorClass string, config map[string]string) (*ValidationResult, error)
	// ServerInfo returns the version of the Kafka Connect worker
	ServerInfo(ctx context.Context) (*ServerInfo, error)
}

// Option configures the REST client
type Option func(*restClient)

// WithHTTPClient replaces the underlying HTTP client
func WithHTTPClient(hc *http.Client) Option {
	return func(c *restClient) {
		c.http = hc
	}
}

// WithTimeout sets the per-call timeout. Zero keeps DefaultTimeout.
func WithTimeout(timeout time.Duration) Option {
	return func(c *restClient) {
		if timeout > 0 {
			c.timeout = timeout
		}
	}
}

// WithBreaker configures the circuit breaker. Zero failures disables it.
func WithBreaker(consecutiveFailures uint32, openDuration time.Duration) Option {
	return func(c *restClient) {
		c.breakerFailures = consecutiveFailures
		if openDuration > 0 {
			c.breakerOpen = openDuration
		}
	}
}

// restClient is the HTTP implementation of Client
type restClient struct {
	baseURL         string
	http            *http.Client
	timeout         time.Duration
	breakerFailures uint32
	breakerOpen     time.Duration
	breaker         *gobreaker.CircuitBreaker[[]byte]
}

// NewClient creates a Kafka Connect client for the REST API at baseURL
func NewClient(baseURL string, opts ...Option) (Client, error) {
	u, err := url.Parse(baseURL)
	if err != nil {
		return nil, fmt.Errorf("invalid kafka connect url: %w", err)
	}
	if u.Scheme != "http" && u.Scheme != "https" {
		return nil, fmt.Errorf("invalid kafka connect url %q: scheme must be http or https", baseURL)
	}

	c := &restClient{
		baseURL:         strings.TrimRight(baseURL, "/"),
		timeout:         DefaultTimeout,
		breakerFailures: DefaultBreakerFailures,
		breakerOpen:     DefaultBreakerOpenDuration,
	}
	for _, opt := range opts {
		opt(c)
	}
	if c.http == nil {
		c.http = &http.Client{Timeout: c.timeout}
	}
	if c.breakerFailures > 0 {
		c.breaker = newBreaker(c.baseURL, c.breakerFailures, c.breakerOpen)
	}
	return c, nil
}

func newBreaker(name string, failures uint32, open time.Duration) *gobreaker.CircuitBreaker[[]byte] {
	return gobreaker.NewCircuitBreaker[[]byte](gobreaker.Settings{
		Name:        name,
		MaxRequests: 1,
		Timeout:     open,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			return counts.ConsecutiveFailures >= failures
		},
		// Only failures of the remote side count; 4xx answers prove Connect is up.
		IsSuccessful: func(err error) bool {
			return err == nil || !IsTransient(err)
		},
		OnStateChange: func(name string, from, to gobreaker.State) {
			logger.Warnw("kafka connect circuit breaker changed state",
				"endpoint", name, "from", from.String(), "to", to.String())
		},
	})
}

// CreateConnector implements Client
func (c *restClient) CreateConnector(
	ctx context.Context, name string, config map[string]string,
) (*ConnectorInfo, error) {
	body, err := c.do(ctx, http.MethodPost, "/connectors", map[string]any{
		"name":   name,
		"config": config,
	})
	if err != nil {
		return nil, err
	}
	return decodeInfo(body, http.MethodPost, "/connectors")
}

// GetConnectorInfo implements Client
func (c *restClient) GetConnectorInfo(ctx context.Context, name string) (*ConnectorInfo, error) {
	path := connectorPath(name, "")
	body, err := c.do(ctx, http.MethodGet, path, nil)
	if err != nil {
		return nil, err
	}
	return decodeInfo(body, http.MethodGet, path)
}

// GetConnectorStatus implements Client
func (c *restClient) GetConnectorStatus(ctx context.Context, name string) (*ConnectorStatus, error) {
	body, err := c.do(ctx, http.MethodGet, connectorPath(name, "status"), nil)
	if err != nil {
		return nil, err
	}
	return parseStatus(body), nil
}

// UpdateConnectorConfig implements Client
func (c *restClient) UpdateConnectorConfig(
	ctx context.Context, name string, config map[string]string,
) (*ConnectorInfo, error) {
	path := connectorPath(name, "config")
	body, err := c.do(ctx, http.MethodPut, path, config)
	if err != nil {
		return nil, err
	}
	return decodeInfo(body, http.MethodPut, path)
}

// DeleteConnector implements Client
func (c *restClient) DeleteConnector(ctx context.Context, name string) error {
	_, err := c.do(ctx, http.MethodDelete, connectorPath(name, ""), nil)
	if IsNotFound(err) {
		logger.FromContext(ctx).Debugw("connector already absent", "connector", name)
		return nil
	}
	return err
}

// PauseConnector implements Client
func (c *restClient) PauseConnector(ctx context.Context, name string) error {
	_, err := c.do(ctx, http.MethodPut, connectorPath(name, "pause"), nil)
	return err
}

// ResumeConnector implements Client
func (c *restClient) ResumeConnector(ctx context.Context, name string) error {
	_, err := c.do(ctx, http.MethodPut, connectorPath(name, "resume"), nil)
	return err
}

// RestartConnector implements Client
func (c *restClient) RestartConnector(ctx context.Context, name string) error {
	_, err := c.do(ctx, http.MethodPost, connectorPath(name, "restart")+"?includeTasks=true&onlyFailed=true", nil)
	return err
}

// ListConnectors implements Client
func (c *restClient) ListConnectors(ctx context.Context) ([]string, error) {
	body, err := c.do(ctx, http.MethodGet, "/connectors", nil)
	if err != nil {
		return nil, err
	}
	var names []string
	if err := json.Unmarshal(body, &names); err != nil {
		return nil, &Error{Method: http.MethodGet, Path: "/connectors", Err: fmt.Errorf("invalid response: %w", err)}
	}
	return names, nil
}

// ValidateConfig implements Client
func (c *restClient) ValidateConfig(
	ctx context.Context, connectorClass string, config map[string]string,
) (*ValidationResult, error) {
	payload := make(map[string]string, len(config)+1)
	for k, v := range config {
		payload[k] = v
	}
	if _, ok := payload["connector.class"]; !ok {
		payload["connector.class"] = connectorClass
	}

	path := "/connector-plugins/" + url.PathEscape(connectorClass) + "/config/validate"
	body, err := c.do(ctx, http.MethodPut, path, payload)
	if err != nil {
		return nil, err
	}
	return parseValidation(body), nil
}

// ServerInfo implements Client
func (c *restClient) ServerInfo(ctx context.Context) (*ServerInfo, error) {
	body, err := c.do(ctx, http.MethodGet, "/", nil)
	if err != nil {
		return nil, err
	}
	var info ServerInfo
	if err := json.Unmarshal(body, &info); err != nil {
		return nil, &Error{Method: http.MethodGet, Path: "/", Err: fmt.Errorf("invalid response: %w", err)}
	}
	return &info, nil
}

func connectorPath(name, sub string) string {
	p := "/connectors/" + url.PathEscape(name)
	if sub != "" {
		p += "/" + sub
	}
	return p
}

// do runs a request through the circuit breaker, returning the response body of 2xx answers
func (c *restClient) do(ctx context.Context, method, path string, payload any) ([]byte, error) {
	if c.breaker == nil {
		return c.roundTrip(ctx, method, path, payload)
	}
	body, err := c.breaker.Execute(func() ([]byte, error) {
		return c.roundTrip(ctx, method, path, payload)
	})
	if err != nil {
		if _, ok := err.(*Error); !ok {
			return nil, &Error{Method: method, Path: path, Err: err}
		}
		return nil, err
	}
	return body, nil
}

func (c *restClient) roundTrip(ctx context.Context, method, path string, payload any) ([]byte, error) {
	var reqBody io.Reader
	if payload != nil {
		data, err := json.Marshal(payload)
		if err != nil {
			return nil, fmt.Errorf("failed to encode request: %w", err)
		}
		reqBody = bytes.NewReader(data)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, reqBody)
	if err != nil {
		return nil, &Error{Method: method, Path: path, Err: fmt.Errorf("failed to create request: %w", err)}
	}
	req.Header.Set("User-Agent", UserAgent)
	req.Header.Set("Accept", "application/json")
	if payload != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	start := time.Now()
	resp, err := c.http.Do(req)
	if err != nil {
		return nil, &Error{Method: method, Path: path, Err: err}
	}
	defer func() {
		_ = resp.Body.Close()
	}()

	body, err := io.ReadAll(io.LimitReader(resp.Body, MaxResponseSize+1))
	if err != nil {
		return nil, &Error{Method: method, Path: path, Err: fmt.Errorf("failed to read response body: %w", err)}
	}
	if int64(len(body)) > MaxResponseSize {
		return nil, &Error{
			Method: method, Path: path,
			Err: fmt.Errorf("response exceeds maximum allowed size of %d bytes", MaxResponseSize),
		}
	}

	logger.FromContext(ctx).Debugw("kafka connect call",
		"method", method, "path", path, "status", resp.StatusCode, "duration", time.Since(start))

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return nil, &Error{
			Method:     method,
			Path:       path,
			StatusCode: resp.StatusCode,
			Message:    errorMessage(body, resp.Status),
		}
	}
	return body, nil
}

// errorMessage extracts the "message" field Kafka Connect puts in error bodies
func errorMessage(body []byte, fallback string) string {
	if msg := gjson.GetBytes(body, "message"); msg.Exists() && msg.String() != "" {
		return msg.String()
	}
	if len(body) > 0 && !gjson.ValidBytes(body) {
		return strings.TrimSpace(string(body))
	}
	return fallback
}

func decodeInfo(body []byte, method, path string) (*ConnectorInfo, error) {
	var info ConnectorInfo
	if err := json.Unmarshal(body, &info); err != nil {
		return nil, &Error{Method: method, Path: path, Err: fmt.Errorf("invalid response: %w", err)}
	}
	return &info, nil
}

func parseStatus(body []byte) *ConnectorStatus {
	doc := gjson.ParseBytes(body)
	status := &ConnectorStatus{
		Name: doc.Get("name").String(),
		Type: doc.Get("type").String(),
		Connector: WorkerState{
			State:    doc.Get("connector.state").String(),
			WorkerID: doc.Get("connector.worker_id").String(),
			Trace:    doc.Get("connector.trace").String(),
		},
	}
	doc.Get("tasks").ForEach(func(_, t gjson.Result) bool {
		status.Tasks = append(status.Tasks, TaskState{
			ID:       int(t.Get("id").Int()),
			State:    t.Get("state").String(),
			WorkerID: t.Get("worker_id").String(),
			Trace:    t.Get("trace").String(),
		})
		return true
	})
	return status
}

func parseValidation(body []byte) *ValidationResult {
	doc := gjson.ParseBytes(body)
	result := &ValidationResult{
		Name:       doc.Get("name").String(),
		ErrorCount: int(doc.Get("error_count").Int()),
	}
	for _, g := range doc.Get("groups").Array() {
		result.Groups = append(result.Groups, g.String())
	}
	doc.Get("configs").ForEach(func(_, cfg gjson.Result) bool {
		v := cfg.Get("value")
		cv := ConfigValidation{
			Name:  v.Get("name").String(),
			Value: v.Get("value").String(),
		}
		for _, e := range v.Get("errors").Array() {
			cv.Errors = append(cv.Errors, e.String())
		}
		result.Configs = append(result.Configs, cv)
		return true
	})
	return result
}
