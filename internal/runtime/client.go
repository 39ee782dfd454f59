package runtime

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"os"
	"strconv"
	"strings"
	"time"

	"golang.org/x/time/rate"

	"github.com/livinlefevreloca/qrun/internal/backend"
	"github.com/livinlefevreloca/qrun/internal/circuit"
)

const (
	samplerProgram = "sampler"
	instanceHeader = "Service-CRN"

	// Extra time granted to a wait request beyond the requested timeout so
	// the server gets to answer before the client gives up.
	waitSlack = 30 * time.Second

	maxErrorBody = 512
)

// Config holds settings for the HTTP runtime client.
type Config struct {
	BaseURL string `toml:"base_url"`
	// TokenEnv names the environment variable holding the API token.
	TokenEnv string `toml:"token_env"`
	Instance string `toml:"instance"`

	RequestsPerSecond float64       `toml:"requests_per_second"`
	Burst             int           `toml:"burst"`
	HTTPTimeout       time.Duration `toml:"http_timeout"`
}

// DefaultConfig returns default runtime client settings.
func DefaultConfig() Config {
	return Config{
		BaseURL:           "https://quantum.cloud.ibm.com/api/v1",
		TokenEnv:          "IBM_QUANTUM_TOKEN",
		Instance:          "QRITA",
		RequestsPerSecond: 2,
		Burst:             4,
		HTTPTimeout:       30 * time.Second,
	}
}

// Token resolves the API token from the environment.
func (c Config) Token() string {
	if c.TokenEnv == "" {
		return ""
	}
	return strings.TrimSpace(os.Getenv(c.TokenEnv))
}

// Client talks to the runtime REST API.
type Client struct {
	baseURL string
	// http is used for short calls; wait uses the same transport without a
	// client-side timeout and relies on the request context instead.
	http   *http.Client
	wait   *http.Client
	logger *slog.Logger
}

// authRoundTripper paces requests and injects credentials into each of them.
type authRoundTripper struct {
	base     http.RoundTripper
	limiter  *rate.Limiter
	token    string
	instance string
}

func (t *authRoundTripper) RoundTrip(req *http.Request) (*http.Response, error) {
	if err := t.limiter.Wait(req.Context()); err != nil {
		return nil, err
	}
	req = req.Clone(req.Context())
	if t.token != "" {
		req.Header.Set("Authorization", "Bearer "+t.token)
	}
	if t.instance != "" {
		req.Header.Set(instanceHeader, t.instance)
	}
	return t.base.RoundTrip(req)
}

// NewClient builds a client from cfg.
func NewClient(cfg Config, logger *slog.Logger) (*Client, error) {
	if cfg.BaseURL == "" {
		return nil, fmt.Errorf("runtime base_url must be specified")
	}
	if _, err := url.Parse(cfg.BaseURL); err != nil {
		return nil, fmt.Errorf("invalid runtime base_url: %w", err)
	}

	limit := rate.Inf
	if cfg.RequestsPerSecond > 0 {
		limit = rate.Limit(cfg.RequestsPerSecond)
	}
	burst := cfg.Burst
	if burst <= 0 {
		burst = 1
	}

	transport := &authRoundTripper{
		base:     http.DefaultTransport,
		limiter:  rate.NewLimiter(limit, burst),
		token:    cfg.Token(),
		instance: cfg.Instance,
	}

	if transport.token == "" {
		logger.Warn("no runtime token in environment", "token_env", cfg.TokenEnv)
	}

	return &Client{
		baseURL: strings.TrimRight(cfg.BaseURL, "/"),
		http:    &http.Client{Transport: transport, Timeout: cfg.HTTPTimeout},
		wait:    &http.Client{Transport: transport},
		logger:  logger,
	}, nil
}

type submitRequest struct {
	ProgramID string       `json:"program_id"`
	Backend   string       `json:"backend"`
	Params    submitParams `json:"params"`
}

type submitParams struct {
	Pubs    [][]string    `json:"pubs"`
	Shots   int           `json:"shots"`
	Options submitOptions `json:"options"`
}

type submitOptions struct {
	OptimizationLevel int    `json:"optimization_level"`
	SeedTranspiler    *int64 `json:"seed_transpiler,omitempty"`
}

type submitResponse struct {
	ID string `json:"id"`
}

type statusResponse struct {
	Status any `json:"status"`
}

// Submit implements Service.
func (c *Client) Submit(ctx context.Context, target backend.Descriptor, circ circuit.Circuit, opts SubmitOptions) (Job, error) {
	body, err := json.Marshal(submitRequest{
		ProgramID: samplerProgram,
		Backend:   target.Name,
		Params: submitParams{
			Pubs:  [][]string{{circ.Source}},
			Shots: opts.Shots,
			Options: submitOptions{
				OptimizationLevel: opts.OptimizationLevel,
				SeedTranspiler:    opts.Seed,
			},
		},
	})
	if err != nil {
		return nil, fmt.Errorf("encode submit request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/jobs", bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("build submit request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	var resp submitResponse
	if err := c.doJSON(c.http, req, &resp); err != nil {
		return nil, fmt.Errorf("submit to %s: %w", target.Name, err)
	}
	if resp.ID == "" {
		return nil, fmt.Errorf("submit to %s: response carried no job id", target.Name)
	}

	c.logger.Debug("job submitted", "job_id", resp.ID, "backend", target.Name, "circuit", circ.Name)
	return &httpJob{client: c, id: resp.ID}, nil
}

// doJSON executes req and decodes a 2xx JSON body into out.
func (c *Client) doJSON(hc *http.Client, req *http.Request, out any) error {
	data, err := c.do(hc, req)
	if err != nil {
		return err
	}
	if err := json.Unmarshal(data, out); err != nil {
		return fmt.Errorf("decode response: %w", err)
	}
	return nil
}

// statusError is returned for non-2xx responses.
type statusError struct {
	Code int
	Body string
}

func (e *statusError) Error() string {
	return fmt.Sprintf("unexpected status %d: %s", e.Code, e.Body)
}

func (c *Client) do(hc *http.Client, req *http.Request) ([]byte, error) {
	req.Header.Set("Accept", "application/json")

	resp, err := hc.Do(req)
	if err != nil {
		return nil, fmt.Errorf("http %s: %w", req.Method, err)
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("read response: %w", err)
	}

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		snippet := string(data)
		if len(snippet) > maxErrorBody {
			snippet = snippet[:maxErrorBody]
		}
		return nil, &statusError{Code: resp.StatusCode, Body: strings.TrimSpace(snippet)}
	}
	return data, nil
}

type httpJob struct {
	client *Client
	id     string
}

func (j *httpJob) ID() string { return j.id }

func (j *httpJob) jobURL(suffix string) string {
	return j.client.baseURL + "/jobs/" + url.PathEscape(j.id) + suffix
}

func (j *httpJob) Status(ctx context.Context) (any, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, j.jobURL(""), nil)
	if err != nil {
		return nil, err
	}
	var resp statusResponse
	if err := j.client.doJSON(j.client.http, req, &resp); err != nil {
		return nil, fmt.Errorf("job %s status: %w", j.id, err)
	}
	return resp.Status, nil
}

// WaitForFinalState long-polls the service until the job is terminal or
// timeout elapses. Deployments without the wait endpoint yield
// ErrUnsupported.
func (j *httpJob) WaitForFinalState(ctx context.Context, timeout time.Duration) error {
	ctx, cancel := context.WithTimeout(ctx, timeout+waitSlack)
	defer cancel()

	u := j.jobURL("/wait") + "?timeout=" + strconv.FormatFloat(timeout.Seconds(), 'f', -1, 64)
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u, nil)
	if err != nil {
		return err
	}

	var resp statusResponse
	err = j.client.doJSON(j.client.wait, req, &resp)
	var se *statusError
	if errors.As(err, &se) {
		switch se.Code {
		case http.StatusNotFound, http.StatusMethodNotAllowed, http.StatusNotImplemented:
			return fmt.Errorf("job %s wait: %w", j.id, ErrUnsupported)
		}
	}
	if err != nil {
		return fmt.Errorf("job %s wait: %w", j.id, err)
	}
	if !NormalizeStatus(resp.Status).Terminal() {
		return fmt.Errorf("job %s wait returned non-terminal status %v", j.id, resp.Status)
	}
	return nil
}

func (j *httpJob) Result(ctx context.Context) (Result, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, j.jobURL("/results"), nil)
	if err != nil {
		return nil, err
	}
	data, err := j.client.do(j.client.http, req)
	if err != nil {
		return nil, fmt.Errorf("job %s results: %w", j.id, err)
	}
	return &httpResult{body: data}, nil
}
