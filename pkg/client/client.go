// Package client queues API calls, sends them singly or as a multi-request
// batch, and decodes the results.
package client

import (
	"context"
	"net/http"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/rexliu/ksdk/pkg/core"
	"github.com/rexliu/ksdk/pkg/decode"
	"github.com/rexliu/ksdk/pkg/params"
	"github.com/rexliu/ksdk/pkg/session"
)

const (
	DefaultServiceURL = "https://www.kaltura.com"
	DefaultTimeout    = 120 * time.Second

	ProxyHTTP   = "HTTP"
	ProxySOCKS5 = "SOCKS5"

	apiPath = "/api_v3/service"
)

// Logger receives debug output. *logging.Logger satisfies it.
type Logger interface {
	Printf(format string, args ...any)
}

// Journal records every flush.
type Journal interface {
	Record(ctx context.Context, rec core.CallRecord) error
}

// Config holds transport settings.
type Config struct {
	ServiceURL     string
	Format         core.Format
	Timeout        time.Duration
	UserAgent      string
	ProxyHost      string
	ProxyPort      int
	ProxyType      string
	ProxyUser      string
	ProxyPassword  string
	VerifySSL      bool
	RequestHeaders map[string]string
	Logger         Logger
	Journal        Journal
}

// DefaultConfig returns the settings used when a field is left empty.
func DefaultConfig() Config {
	return Config{
		ServiceURL: DefaultServiceURL,
		Format:     core.FormatXML,
		Timeout:    DefaultTimeout,
		ProxyType:  ProxyHTTP,
		VerifySSL:  true,
	}
}

type pending struct {
	call     *ActionCall
	expected string
}

// Client owns one request queue. It is not safe for concurrent use; run one
// client per logical session.
type Client struct {
	cfg     Config
	reg     *core.Registry
	decoder *decode.Decoder

	httpClient   *http.Client
	uploadClient *http.Client

	clientConfig  map[string]any
	requestConfig map[string]any

	queue   []pending
	batch   bool
	headers http.Header
}

// New builds a client. reg resolves the type tags of decoded results.
func New(cfg Config, reg *core.Registry) (*Client, error) {
	if cfg.ServiceURL == "" {
		cfg.ServiceURL = DefaultServiceURL
	}
	cfg.ServiceURL = strings.TrimRight(cfg.ServiceURL, "/")
	if cfg.Format == 0 {
		cfg.Format = core.FormatXML
	}
	if !cfg.Format.Valid() {
		return nil, core.Errorf(core.CodeFormatNotSupported, "Response format not supported - %d", int(cfg.Format))
	}
	if cfg.ProxyType == "" {
		cfg.ProxyType = ProxyHTTP
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = DefaultTimeout
	}
	transport, err := newTransport(cfg)
	if err != nil {
		return nil, err
	}
	return &Client{
		cfg:           cfg,
		reg:           reg,
		decoder:       decode.New(reg),
		httpClient:    &http.Client{Transport: transport, Timeout: cfg.Timeout},
		uploadClient:  &http.Client{Transport: transport},
		clientConfig:  make(map[string]any),
		requestConfig: make(map[string]any),
	}, nil
}

// Config returns the effective settings.
func (c *Client) Config() Config {
	return c.cfg
}

// Registry returns the type registry results are decoded against.
func (c *Client) Registry() *core.Registry {
	return c.reg
}

// StartBatch turns on multi-request mode. Calls queued from now on return a
// SubResult and are sent together by DoBatch or Flush.
func (c *Client) StartBatch() {
	c.batch = true
}

// IsBatch reports whether multi-request mode is on.
func (c *Client) IsBatch() bool {
	return c.batch
}

// BatchSize returns the number of queued calls.
func (c *Client) BatchSize() int {
	return len(c.queue)
}

// ResponseHeaders returns the headers of the last response.
func (c *Client) ResponseHeaders() http.Header {
	return c.headers.Clone()
}

// SetClientConfiguration merges client-level parameters (clientTag,
// apiVersion, ...) sent with every request. A nil value removes the key.
func (c *Client) SetClientConfiguration(values map[string]any) {
	mergeConfig(c.clientConfig, values)
}

// ClientConfiguration returns a copy of the client-level parameters.
func (c *Client) ClientConfiguration() map[string]any {
	return copyConfig(c.clientConfig)
}

// SetRequestConfiguration merges per-request parameters (ks, partnerId,
// responseProfile, ...) added to each queued call. A nil value removes the key.
func (c *Client) SetRequestConfiguration(values map[string]any) {
	mergeConfig(c.requestConfig, values)
}

// RequestConfiguration returns a copy of the per-request parameters.
func (c *Client) RequestConfiguration() map[string]any {
	return copyConfig(c.requestConfig)
}

// SetKS sets the session token sent with every call.
func (c *Client) SetKS(ks string) {
	c.SetRequestConfiguration(map[string]any{"ks": ks})
}

// GenerateSession builds a v1 session token.
func (c *Client) GenerateSession(secret, userID string, typ session.Type, partnerID int, expiry int64, privileges string) (string, error) {
	return session.GenerateV1(secret, userID, typ, partnerID, expiry, privileges)
}

// GenerateSessionV2 builds an encrypted v2 session token.
func (c *Client) GenerateSessionV2(secret, userID string, typ session.Type, partnerID int, expiry int64, privileges string) (string, error) {
	return session.GenerateV2(secret, userID, typ, partnerID, expiry, privileges)
}

// RequireNotBatch fails for actions that cannot be part of a multi-request.
// The whole pending batch is discarded.
func (c *Client) RequireNotBatch(service, action string) error {
	if !c.batch {
		return nil
	}
	c.reset()
	return core.Errorf(core.CodeActionInBatch, "Action %s.%s is not supported as part of multi-request", service, action)
}

// QueueCall appends a call. In batch mode it returns a reference to the
// call's future result; otherwise the reference is nil and only one call may
// be pending.
func (c *Client) QueueCall(service, action, expectedType string, p *params.Params, files map[string]File) (*SubResult, error) {
	if !c.batch && len(c.queue) > 0 {
		pendingName := c.queue[0].call.name()
		c.reset()
		return nil, core.Errorf(core.CodeGeneric, "call %s.%s queued while %s is pending outside multi-request", service, action, pendingName)
	}
	if p == nil {
		p = params.New()
	}
	call := NewActionCall(service, action, p, files)
	for _, key := range sortedConfigKeys(c.requestConfig) {
		call.Params.Add(key, c.requestConfig[key])
	}
	c.queue = append(c.queue, pending{call: call, expected: expectedType})
	if !c.batch {
		return nil, nil
	}
	ref := newSubResult(len(c.queue) - 1)
	return &ref, nil
}

// Do sends the single pending call and decodes its result. A server error is
// returned as *core.APIError.
func (c *Client) Do(ctx context.Context) (any, error) {
	if c.batch {
		c.reset()
		return nil, core.Errorf(core.CodeGeneric, "Do called in multi-request mode, use DoBatch")
	}
	if len(c.queue) == 0 {
		return nil, nil
	}
	expected := c.queue[0].expected
	body, err := c.Flush(ctx)
	if err != nil {
		return nil, err
	}
	result, err := c.decoder.Decode(body, c.cfg.Format, expected)
	if err != nil {
		return nil, err
	}
	if err := core.ValidateObjectType(c.reg, result, expected); err != nil {
		return nil, err
	}
	return result, nil
}

// DoBatch sends every queued call as one multi-request. Results keep the
// queued order; a failed call holds a *core.APIError at its position.
func (c *Client) DoBatch(ctx context.Context) ([]any, error) {
	if len(c.queue) == 0 {
		c.reset()
		return nil, nil
	}
	if !c.batch {
		c.reset()
		return nil, core.Errorf(core.CodeGeneric, "DoBatch called without StartBatch")
	}
	fallbacks := make([]string, len(c.queue))
	for i, p := range c.queue {
		fallbacks[i] = p.expected
	}
	body, err := c.Flush(ctx)
	if err != nil {
		return nil, err
	}
	return c.decoder.DecodeBatch(body, c.cfg.Format, fallbacks)
}

// Flush signs and sends the queue and returns the raw response body. The
// queue and batch mode are reset whatever the outcome. An empty queue
// returns nil.
func (c *Client) Flush(ctx context.Context) ([]byte, error) {
	defer c.reset()
	if len(c.queue) == 0 {
		return nil, nil
	}
	started := time.Now()
	traceID := core.NewTraceID()
	c.logf("[%s] service url: [%s]", traceID, c.cfg.ServiceURL)

	p := c.baseParams()
	p.Add("ignoreNull", true)

	url := c.cfg.ServiceURL + apiPath
	files := make(map[string]File)
	actions := make([]string, 0, len(c.queue))
	if c.batch {
		url += "/multirequest"
		for i, entry := range c.queue {
			p.Merge(entry.call.ParamsForBatch(i))
			for key, f := range entry.call.FilesForBatch(i) {
				files[key] = f
			}
			actions = append(actions, entry.call.name())
		}
	} else {
		call := c.queue[0].call
		url += "/" + call.Service + "/action/" + call.Action
		p.Merge(call.Params)
		files = call.Files
		actions = append(actions, call.name())
	}

	signature, err := p.Signature()
	if err != nil {
		return nil, core.Wrap(core.CodeGeneric, err, "sign request")
	}
	p.Add("kalsig", signature)

	resp, err := c.post(ctx, url, p, files)
	rec := core.CallRecord{
		ID:        traceID,
		URL:       url,
		Actions:   actions,
		Batch:     c.batch,
		CreatedAt: started.Unix(),
	}
	defer func() {
		rec.DurationMS = time.Since(started).Milliseconds()
		c.journal(ctx, rec)
	}()
	if err != nil {
		rec.Error = err.Error()
		return nil, core.Wrap(core.CodeConnectionFailed, err, "request failed")
	}
	rec.Status = resp.status
	rec.Body = resp.body
	c.headers = resp.header
	if resp.status != http.StatusOK {
		rec.Error = "RC : " + strconv.Itoa(resp.status)
		return nil, core.Wrap(core.CodeGeneric, core.ErrTransport, "unexpected response. RC : "+strconv.Itoa(resp.status))
	}

	server, sess := resp.header.Get("X-Me"), resp.header.Get("X-Kaltura-Session")
	if server != "" || sess != "" {
		c.logf("[%s] server: [%s], session: [%s]", traceID, server, sess)
	}
	c.logf("[%s] result (serialized): %s", traceID, resp.body)
	c.logf("[%s] execution time for [%s]: [%s]", traceID, url, time.Since(started))
	return resp.body, nil
}

// ServeURL returns a signed GET URL for the single pending call instead of
// sending it. It returns false, and leaves the queue alone, in batch mode or
// when exactly one call is not pending.
func (c *Client) ServeURL() (string, bool) {
	if c.batch || len(c.queue) != 1 {
		return "", false
	}
	call := c.queue[0].call
	c.queue = nil

	c.logf("service url: [%s]", c.cfg.ServiceURL)
	p := c.baseParams()
	p.Merge(call.Params)
	signature, err := p.Signature()
	if err != nil {
		c.logf("sign serve url: %v", err)
		return "", false
	}
	p.Add("kalsig", signature)

	url := c.cfg.ServiceURL + apiPath + "/" + call.Service + "/action/" + call.Action + "?" + p.QueryString()
	c.logf("Returned url [%s]", url)
	return url, true
}

func (c *Client) baseParams() *params.Params {
	p := params.New()
	p.Add("format", c.cfg.Format.Param())
	for _, key := range sortedConfigKeys(c.clientConfig) {
		p.Add(key, c.clientConfig[key])
	}
	return p
}

func (c *Client) reset() {
	c.queue = nil
	c.batch = false
}

func (c *Client) journal(ctx context.Context, rec core.CallRecord) {
	if c.cfg.Journal == nil {
		return
	}
	if err := c.cfg.Journal.Record(ctx, rec); err != nil {
		c.logf("[%s] journal: %v", rec.ID, err)
	}
}

func (c *Client) logf(format string, args ...any) {
	if c.cfg.Logger != nil {
		c.cfg.Logger.Printf(format, args...)
	}
}

func mergeConfig(dst, values map[string]any) {
	for key, value := range values {
		if value == nil {
			delete(dst, key)
			continue
		}
		dst[key] = value
	}
}

func copyConfig(src map[string]any) map[string]any {
	out := make(map[string]any, len(src))
	for key, value := range src {
		out[key] = value
	}
	return out
}

func sortedConfigKeys(m map[string]any) []string {
	keys := make([]string, 0, len(m))
	for key := range m {
		keys = append(keys, key)
	}
	sort.Strings(keys)
	return keys
}
