package fetch

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
)

// Method is the category of network path that produced a payload.
type Method string

const (
	MethodDirect  Method = "direct"
	MethodRelayed Method = "relayed"
	MethodNone    Method = "none"
)

// Strategy turns a resource URL into a decoded JSON payload over one network path.
// Implementations must not share mutable state.
type Strategy interface {
	Name() string
	Method() Method
	Attempt(ctx context.Context, resource string) (json.RawMessage, error)
}

// maxBody caps how much of a response is read.
const maxBody = 4 << 20

type direct struct {
	client *http.Client
}

// Direct fetches the resource itself with caching disabled.
func Direct(client *http.Client) Strategy {
	return &direct{client: client}
}

func (d *direct) Name() string   { return "direct" }
func (d *direct) Method() Method { return MethodDirect }

func (d *direct) Attempt(ctx context.Context, resource string) (json.RawMessage, error) {
	body, err := doGet(ctx, d.client, resource, http.Header{"Cache-Control": {"no-store"}})
	if err != nil {
		return nil, err
	}
	return asJSON(body)
}

type relay struct {
	name   string
	prefix string
	client *http.Client
}

// Relay fetches through a pass-through service that returns the upstream body
// untouched. The escaped resource URL is appended to prefix.
func Relay(name, prefix string, client *http.Client) Strategy {
	return &relay{name: name, prefix: prefix, client: client}
}

func (r *relay) Name() string   { return r.name }
func (r *relay) Method() Method { return MethodRelayed }

func (r *relay) Attempt(ctx context.Context, resource string) (json.RawMessage, error) {
	body, err := doGet(ctx, r.client, r.prefix+url.QueryEscape(resource), nil)
	if err != nil {
		return nil, err
	}
	return asJSON(body)
}

type envelopeRelay struct {
	name   string
	prefix string
	client *http.Client
}

// EnvelopeRelay fetches through a relay that wraps the upstream body as a
// string in {"contents": "..."}; the contents are parsed a second time.
func EnvelopeRelay(name, prefix string, client *http.Client) Strategy {
	return &envelopeRelay{name: name, prefix: prefix, client: client}
}

func (r *envelopeRelay) Name() string   { return r.name }
func (r *envelopeRelay) Method() Method { return MethodRelayed }

type envelope struct {
	Contents *string `json:"contents"`
	Status   *struct {
		HTTPCode int `json:"http_code"`
	} `json:"status"`
}

func (r *envelopeRelay) Attempt(ctx context.Context, resource string) (json.RawMessage, error) {
	body, err := doGet(ctx, r.client, r.prefix+url.QueryEscape(resource), nil)
	if err != nil {
		return nil, err
	}

	var env envelope
	if err := json.Unmarshal(body, &env); err != nil {
		return nil, fmt.Errorf("decode envelope: %w", err)
	}
	if env.Status != nil && env.Status.HTTPCode != 0 &&
		(env.Status.HTTPCode < 200 || env.Status.HTTPCode > 299) {
		return nil, fmt.Errorf("upstream HTTP %d behind relay", env.Status.HTTPCode)
	}
	if env.Contents == nil {
		return nil, errors.New("envelope has no contents")
	}
	payload, err := asJSON([]byte(*env.Contents))
	if err != nil {
		return nil, fmt.Errorf("envelope contents: %w", err)
	}
	return payload, nil
}

func doGet(ctx context.Context, client *http.Client, rawURL string, header http.Header) ([]byte, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, rawURL, nil)
	if err != nil {
		return nil, err
	}
	for k, vs := range header {
		for _, v := range vs {
			req.Header.Add(k, v)
		}
	}
	req.Header.Set("Accept", "application/json")

	resp, err := client.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return nil, fmt.Errorf("HTTP %d from %s", resp.StatusCode, req.URL.Host)
	}

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxBody))
	if err != nil {
		return nil, fmt.Errorf("read body: %w", err)
	}
	return body, nil
}

func asJSON(b []byte) (json.RawMessage, error) {
	if !json.Valid(b) {
		return nil, errors.New("response is not valid JSON")
	}
	return json.RawMessage(b), nil
}
