package gateway

import (
	"context"
	"net/http"
)

// forwardedHeaders are copied from the client request to the upstream one.
// Everything else, cookies included, stays at the edge.
var forwardedHeaders = []string{
	"Content-Type",
	"Stripe-Signature",
	"X-Request-Id",
	"X-User-ID",
	"X-User-Email",
	"X-User-Role",
}

type ServiceProxy struct {
	baseURL string
	client  *http.Client
}

func NewServiceProxy(baseURL string, client *http.Client) *ServiceProxy {
	return &ServiceProxy{
		baseURL: baseURL,
		client:  client,
	}
}

// ForwardRequest replays r against the upstream service at path, keeping the
// query string and the forwarded headers.
func (p *ServiceProxy) ForwardRequest(ctx context.Context, r *http.Request, path string) (*http.Response, error) {
	target := p.baseURL + path
	if r.URL.RawQuery != "" {
		target += "?" + r.URL.RawQuery
	}

	req, err := http.NewRequestWithContext(ctx, r.Method, target, r.Body)
	if err != nil {
		return nil, err
	}

	for _, name := range forwardedHeaders {
		if value := r.Header.Get(name); value != "" {
			req.Header.Set(name, value)
		}
	}

	return p.client.Do(req)
}
