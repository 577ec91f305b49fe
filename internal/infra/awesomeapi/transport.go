package awesomeapi

import (
	"net"
	"net/http"
	"time"
)

// TokenTransport appends the API token as a query parameter to every request.
type TokenTransport struct {
	Token string
	Base  http.RoundTripper
}

// RoundTrip implements http.RoundTripper. The caller's request is not modified.
func (t *TokenTransport) RoundTrip(req *http.Request) (*http.Response, error) {
	base := t.Base
	if base == nil {
		base = http.DefaultTransport
	}
	if t.Token == "" {
		return base.RoundTrip(req)
	}

	r := req.Clone(req.Context())
	q := r.URL.Query()
	q.Set("token", t.Token)
	r.URL.RawQuery = q.Encode()
	return base.RoundTrip(r)
}

// NewHTTPClient returns an http.Client that signs requests with token.
func NewHTTPClient(token string, timeout time.Duration) *http.Client {
	transport := &http.Transport{
		Proxy:                 http.ProxyFromEnvironment,
		DialContext:           (&net.Dialer{Timeout: 5 * time.Second, KeepAlive: 30 * time.Second}).DialContext,
		MaxIdleConns:          20,
		MaxIdleConnsPerHost:   10,
		ForceAttemptHTTP2:     true,
		IdleConnTimeout:       90 * time.Second,
		TLSHandshakeTimeout:   5 * time.Second,
		ExpectContinueTimeout: 1 * time.Second,
	}

	return &http.Client{
		Timeout:   timeout,
		Transport: &TokenTransport{Token: token, Base: transport},
	}
}
