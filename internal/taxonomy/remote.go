package taxonomy

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/trapwatch/trapwatch/internal/errors"
	"github.com/trapwatch/trapwatch/internal/httpclient"
	"github.com/trapwatch/trapwatch/internal/logger"
)

// ErrNoCommonAncestor is returned by RemoteClient.Ancestor when the service
// knows the labels but reports no shared ancestor.
var ErrNoCommonAncestor = errors.NewStd("no common ancestor")

const (
	ancestorPath         = "/api/v1/tags/common-ancestor"
	defaultRemoteTimeout = 5 * time.Second
	maxAncestorBodyBytes = 64 << 10
)

// RemoteConfig configures RemoteClient.
type RemoteConfig struct {
	BaseURL string
	Timeout time.Duration
}

// RemoteClient queries a hosted taxonomy service.
type RemoteClient struct {
	baseURL    string
	timeout    time.Duration
	httpClient *httpclient.Client
	log        logger.Logger
}

type ancestorResponse struct {
	Ancestor string `json:"ancestor"`
}

// NewRemoteClient creates a client for the service at cfg.BaseURL.
func NewRemoteClient(cfg RemoteConfig, log logger.Logger) (*RemoteClient, error) {
	if cfg.BaseURL == "" {
		return nil, errors.Newf("taxonomy service URL is required").
			Component("taxonomy").
			Category(errors.CategoryConfiguration).
			Build()
	}
	if _, err := url.Parse(cfg.BaseURL); err != nil {
		return nil, errors.New(err).
			Component("taxonomy").
			Category(errors.CategoryConfiguration).
			Context("url", cfg.BaseURL).
			Build()
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = defaultRemoteTimeout
	}
	if log == nil {
		log = logger.Global().Module("taxonomy")
	}

	client := httpclient.New(&httpclient.Config{DefaultTimeout: cfg.Timeout})
	client.SetAfterResponseHook(func(req *http.Request, resp *http.Response, elapsed time.Duration, err error) {
		if err == nil {
			log.Trace("taxonomy service responded",
				logger.Int("status", resp.StatusCode),
				logger.Duration("elapsed", elapsed))
		}
	})

	return &RemoteClient{
		baseURL:    strings.TrimRight(cfg.BaseURL, "/"),
		timeout:    cfg.Timeout,
		httpClient: client,
		log:        log,
	}, nil
}

// HTTPClient returns the underlying client, for transport overrides.
func (c *RemoteClient) HTTPClient() *http.Client {
	return c.httpClient.HTTPClient()
}

// Ancestor asks the service for the common ancestor of labels.
func (c *RemoteClient) Ancestor(ctx context.Context, labels []string) (string, error) {
	q := url.Values{}
	for _, l := range labels {
		q.Add("tags", l)
	}
	endpoint := c.baseURL + ancestorPath + "?" + q.Encode()

	start := time.Now()
	resp, err := c.httpClient.Get(ctx, endpoint, "application/json")
	if err != nil {
		return "", errors.New(err).
			Component("taxonomy").
			Category(errors.CategoryNetwork).
			Context("labels", labels).
			Timing("common_ancestor", time.Since(start)).
			Build()
	}
	defer func() {
		if err := resp.Body.Close(); err != nil {
			c.log.Debug("failed to close response body", logger.Error(err))
		}
	}()

	if resp.StatusCode != http.StatusOK {
		return "", errors.Newf("taxonomy service returned non-OK response: %d", resp.StatusCode).
			Component("taxonomy").
			Category(errors.CategoryHTTP).
			Context("status_code", resp.StatusCode).
			Context("labels", labels).
			Build()
	}

	var body ancestorResponse
	if err := json.NewDecoder(io.LimitReader(resp.Body, maxAncestorBodyBytes)).Decode(&body); err != nil {
		return "", errors.New(err).
			Component("taxonomy").
			Category(errors.CategoryFileParsing).
			Context("labels", labels).
			Build()
	}
	if body.Ancestor == "" {
		return "", ErrNoCommonAncestor
	}
	return body.Ancestor, nil
}

// CommonAncestor implements Finder. Failures are logged and reported as "".
func (c *RemoteClient) CommonAncestor(labels []string) string {
	return c.CommonAncestorContext(context.Background(), labels)
}

// CommonAncestorContext is CommonAncestor bounded by ctx as well as the
// client timeout. Nothing is requested once ctx is done.
func (c *RemoteClient) CommonAncestorContext(ctx context.Context, labels []string) string {
	if len(labels) == 0 || ctx.Err() != nil {
		return ""
	}
	ctx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()

	ancestor, err := c.Ancestor(ctx, labels)
	if err != nil {
		if !errors.Is(err, ErrNoCommonAncestor) {
			c.log.Warn("common ancestor lookup failed",
				logger.Any("labels", labels),
				logger.Error(err))
		}
		return ""
	}
	return ancestor
}
