package client

import (
	"io"
	"net/http"
)

// round tripper that attaches the managed bearer token and replays once after a shared refresh on 401
type Transport struct {
	manager *Manager
	base    http.RoundTripper
}

func NewTransport(m *Manager, base http.RoundTripper) *Transport {
	if base == nil {
		base = http.DefaultTransport
	}

	return &Transport{manager: m, base: base}
}

func (t *Transport) RoundTrip(req *http.Request) (*http.Response, error) {
	ctx := req.Context()

	token, err := t.manager.EnsureValidToken(ctx)
	if err != nil {
		// a round tripper owns the request body even when it fails early
		closeBody(req)
		return nil, err
	}

	resp, err := t.base.RoundTrip(withBearer(req, token))
	if err != nil || resp.StatusCode != http.StatusUnauthorized || token == "" {
		return resp, err
	}

	// body already consumed and cannot be rebuilt
	if req.Body != nil && req.Body != http.NoBody && req.GetBody == nil {
		return resp, nil
	}

	fresh, err := t.manager.refreshAfterUnauthorized(ctx, token)
	if err != nil {
		resp.Body.Close() //nolint:errcheck,gosec
		return nil, err
	}

	io.Copy(io.Discard, resp.Body) //nolint:errcheck,gosec
	resp.Body.Close()              //nolint:errcheck,gosec

	retry := withBearer(req, fresh)
	if req.GetBody != nil {
		body, err := req.GetBody()
		if err != nil {
			return nil, err
		}
		retry.Body = body
	}

	return t.base.RoundTrip(retry)
}

func closeBody(req *http.Request) {
	if req.Body != nil && req.Body != http.NoBody {
		req.Body.Close() //nolint:errcheck,gosec
	}
}

func withBearer(req *http.Request, token string) *http.Request {
	out := req.Clone(req.Context())

	if token != "" {
		out.Header.Set("Authorization", "Bearer "+token)
	}

	return out
}
