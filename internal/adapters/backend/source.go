// Package backend fetches raw coordinate payloads from the upstream search backend over HTTP.
package backend

import (
	"context"
	"fmt"
	"net/url"
	"strings"
	"time"

	"github.com/valyala/fasthttp"

	"github.com/samirrijal/routemap/internal/core/domain"
)

// Source implements ports.CoordinateSource.
// GET {base}/{channel}/{file_id}/coordinates returns the raw payload body.
type Source struct {
	client  *fasthttp.Client
	baseURL string
	timeout time.Duration
}

// New creates a source against baseURL with a per-request timeout.
func New(baseURL string, timeout time.Duration) *Source {
	return &Source{
		client: &fasthttp.Client{
			Name:                "routemap",
			MaxConnsPerHost:     64,
			ReadTimeout:         timeout,
			WriteTimeout:        timeout,
			MaxIdleConnDuration: 30 * time.Second,
		},
		baseURL: strings.TrimRight(baseURL, "/"),
		timeout: timeout,
	}
}

func (s *Source) url(ch domain.Channel, fileID string) string {
	return fmt.Sprintf("%s/%s/%s/coordinates", s.baseURL, ch, url.PathEscape(fileID))
}

// FetchPayload returns domain.ErrPayloadNotFound on 404.
func (s *Source) FetchPayload(ctx context.Context, ch domain.Channel, fileID string) ([]byte, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	req := fasthttp.AcquireRequest()
	resp := fasthttp.AcquireResponse()
	defer fasthttp.ReleaseRequest(req)
	defer fasthttp.ReleaseResponse(resp)

	req.SetRequestURI(s.url(ch, fileID))
	req.Header.SetMethod(fasthttp.MethodGet)
	req.Header.Set(fasthttp.HeaderAccept, "application/json, text/plain")

	deadline := time.Now().Add(s.timeout)
	if d, ok := ctx.Deadline(); ok && d.Before(deadline) {
		deadline = d
	}
	if err := s.client.DoDeadline(req, resp, deadline); err != nil {
		return nil, fmt.Errorf("fetch %s/%s: %w", ch, fileID, err)
	}

	switch status := resp.StatusCode(); {
	case status == fasthttp.StatusOK:
		// resp is released on return
		return append([]byte(nil), resp.Body()...), nil
	case status == fasthttp.StatusNotFound:
		return nil, fmt.Errorf("%s/%s: %w", ch, fileID, domain.ErrPayloadNotFound)
	default:
		return nil, fmt.Errorf("fetch %s/%s: unexpected status %d", ch, fileID, status)
	}
}
