package client

import (
	"bytes"
	"context"
	"crypto/tls"
	"fmt"
	"io"
	"mime/multipart"
	"net"
	"net/http"
	"net/url"
	"os"
	"path/filepath"
	"sort"
	"strconv"
	"strings"

	"github.com/rexliu/ksdk/pkg/core"
	"github.com/rexliu/ksdk/pkg/params"
)

type response struct {
	status int
	header http.Header
	body   []byte
}

func newTransport(cfg Config) (*http.Transport, error) {
	transport := http.DefaultTransport.(*http.Transport).Clone()
	if !cfg.VerifySSL {
		transport.TLSClientConfig = &tls.Config{InsecureSkipVerify: true}
	}
	if cfg.ProxyHost == "" {
		return transport, nil
	}
	proxyURL, err := proxyURL(cfg)
	if err != nil {
		return nil, err
	}
	transport.Proxy = http.ProxyURL(proxyURL)
	return transport, nil
}

func proxyURL(cfg Config) (*url.URL, error) {
	scheme := "http"
	switch strings.ToUpper(cfg.ProxyType) {
	case "", ProxyHTTP:
	case ProxySOCKS5:
		scheme = "socks5"
	default:
		return nil, core.Errorf(core.CodeGeneric, "unsupported proxy type %q", cfg.ProxyType)
	}
	host := cfg.ProxyHost
	if i := strings.Index(host, "://"); i >= 0 {
		host = host[i+3:]
	}
	if cfg.ProxyPort > 0 {
		if h, _, err := net.SplitHostPort(host); err == nil {
			host = h
		}
		host = net.JoinHostPort(host, strconv.Itoa(cfg.ProxyPort))
	}
	u := &url.URL{Scheme: scheme, Host: host}
	if cfg.ProxyUser != "" {
		u.User = url.UserPassword(cfg.ProxyUser, cfg.ProxyPassword)
	}
	return u, nil
}

// post sends p as a JSON body, or as a multipart form with a "json" field
// when files are attached. Uploads run without a client timeout.
func (c *Client) post(ctx context.Context, target string, p *params.Params, files map[string]File) (*response, error) {
	body, err := p.MarshalJSON()
	if err != nil {
		return nil, fmt.Errorf("encode params: %w", err)
	}
	c.logf("curl: %s", target)
	c.logf("post: %s", body)

	var (
		reader      io.Reader
		contentType string
		httpClient  = c.httpClient
	)
	if len(files) > 0 {
		pr, pw := io.Pipe()
		mw := multipart.NewWriter(pw)
		go func() {
			pw.CloseWithError(writeMultipart(mw, body, files))
		}()
		reader = pr
		contentType = mw.FormDataContentType()
		httpClient = c.uploadClient
	} else {
		reader = bytes.NewReader(body)
		contentType = "application/json"
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, target, reader)
	if err != nil {
		if closer, ok := reader.(io.Closer); ok {
			closer.Close()
		}
		return nil, err
	}
	for name, value := range c.cfg.RequestHeaders {
		req.Header.Set(name, value)
	}
	switch c.cfg.Format {
	case core.FormatJSON:
		req.Header.Set("Accept", "application/json")
	case core.FormatXML:
		req.Header.Set("Accept", "application/xml")
	}
	req.Header.Set("Content-Type", contentType)
	if c.cfg.UserAgent != "" {
		req.Header.Set("User-Agent", c.cfg.UserAgent)
	}

	resp, err := httpClient.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()
	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, core.Wrap(core.CodeReadFailed, err, "read response")
	}
	return &response{status: resp.StatusCode, header: resp.Header, body: data}, nil
}

func writeMultipart(mw *multipart.Writer, body []byte, files map[string]File) error {
	if err := mw.WriteField("json", string(body)); err != nil {
		return err
	}
	keys := make([]string, 0, len(files))
	for key := range files {
		keys = append(keys, key)
	}
	sort.Strings(keys)
	for _, key := range keys {
		if err := writeFile(mw, key, files[key]); err != nil {
			return err
		}
	}
	return mw.Close()
}

func writeFile(mw *multipart.Writer, key string, f File) error {
	name := f.Name
	if name == "" && f.Path != "" {
		name = filepath.Base(f.Path)
	}
	if name == "" {
		name = key
	}
	part, err := mw.CreateFormFile(key, name)
	if err != nil {
		return err
	}
	src := f.Content
	if src == nil {
		file, err := os.Open(f.Path)
		if err != nil {
			return core.Wrap(core.CodeUploadNotSupported, err, "open upload "+key)
		}
		defer file.Close()
		src = file
	}
	_, err = io.Copy(part, src)
	return err
}
