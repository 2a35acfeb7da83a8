// Package client is a small HTTP client for the AdGate API, used by the CLI
// and by integration consumers.
package client

import (
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"time"
)

type Client struct {
	baseURL    string
	authToken  string
	httpClient *http.Client
}

type Option func(*Client)

// WithAuthToken sets the bearer token sent on every request.
func WithAuthToken(token string) Option {
	return func(c *Client) {
		c.authToken = token
	}
}

// WithHTTPClient replaces the underlying HTTP client.
func WithHTTPClient(httpClient *http.Client) Option {
	return func(c *Client) {
		c.httpClient = httpClient
	}
}

func New(baseURL string, opts ...Option) *Client {
	c := &Client{
		baseURL: strings.TrimSuffix(baseURL, "/"),
		httpClient: &http.Client{
			Timeout: 30 * time.Second,
		},
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

type urlBuilder struct {
	base  string
	path  string
	query url.Values
}

func (c *Client) url() urlBuilder {
	return urlBuilder{base: c.baseURL, query: url.Values{}}
}

func (u urlBuilder) setPath(path string) urlBuilder {
	u.path = path
	return u
}

// withPathValue substitutes a {name} segment of a route pattern.
func (u urlBuilder) withPathValue(name, value string) urlBuilder {
	u.path = strings.ReplaceAll(u.path, "{"+name+"}", url.PathEscape(value))
	return u
}

func (u urlBuilder) addQueryParam(key string, value any) urlBuilder {
	u.query.Add(key, fmt.Sprint(value))
	return u
}

func (u urlBuilder) build() string {
	s := u.base + u.path
	if len(u.query) > 0 {
		s += "?" + u.query.Encode()
	}
	return s
}
