package providers

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net"
	"net/http"
	"net/url"
	"strings"
	"sync"
	"time"

	"github.com/sony/gobreaker"

	"github.com/i474232898/sg-weather/internal/common"
	"github.com/i474232898/sg-weather/internal/log"
	"github.com/i474232898/sg-weather/internal/weather"
)

// DefaultRequestTimeout applies when a Request carries no timeout.
const DefaultRequestTimeout = 10 * time.Second

// Browser-like user agent; the NEA sites reject the Go default.
const userAgent = "Mozilla/5.0 (Windows NT 10.0; Win64; x64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/96.0.4664.45 Safari/537.36"

// Request describes one outbound call.
type Request struct {
	Method  string
	URL     string
	Params  url.Values
	Form    url.Values
	Headers map[string]string
	Timeout time.Duration
}

// Response is a fully read HTTP response.
type Response struct {
	Status      int
	ContentType string
	Body        []byte
}

// IsJSON reports whether the response declares a JSON body.
func (r *Response) IsJSON() bool {
	return common.HasAny(strings.ToLower(r.ContentType), "application/json", "text/json", "+json")
}

// Text returns the body as a string.
func (r *Response) Text() string {
	return string(r.Body)
}

// Fetcher is the HTTP capability the rest of the package depends on.
type Fetcher interface {
	Do(ctx context.Context, req Request) (*Response, error)
}

// Gateway executes requests through one circuit breaker per upstream host.
// It never retries; retry policy belongs to callers.
type Gateway struct {
	client *http.Client

	mu       sync.Mutex
	breakers map[string]*gobreaker.CircuitBreaker
}

// NewGateway wraps client. The client's own Timeout should be zero or larger
// than any per-request timeout.
func NewGateway(client *http.Client) *Gateway {
	if client == nil {
		client = &http.Client{}
	}
	return &Gateway{
		client:   client,
		breakers: make(map[string]*gobreaker.CircuitBreaker),
	}
}

func (g *Gateway) breaker(host string) *gobreaker.CircuitBreaker {
	g.mu.Lock()
	defer g.mu.Unlock()

	if cb, ok := g.breakers[host]; ok {
		return cb
	}
	cb := gobreaker.NewCircuitBreaker(gobreaker.Settings{
		Name:        host,
		MaxRequests: 5,
		Interval:    1 * time.Minute,
		Timeout:     2 * time.Minute,
		// A 4xx is an answer from a healthy host (the radar walk expects 404s).
		IsSuccessful: func(err error) bool {
			if err == nil {
				return true
			}
			code := weather.StatusCode(err)
			return code >= 400 && code < 500
		},
		OnStateChange: func(name string, from, to gobreaker.State) {
			log.Warnw("circuit breaker state changed", "host", name, "from", from.String(), "to", to.String())
		},
	})
	g.breakers[host] = cb
	return cb
}

// Do executes req. Failures are classified as weather.ErrTimeout,
// weather.ErrTransport or *weather.HTTPStatusError.
func (g *Gateway) Do(ctx context.Context, req Request) (*Response, error) {
	method := req.Method
	if method == "" {
		method = http.MethodGet
	}
	timeout := req.Timeout
	if timeout <= 0 {
		timeout = DefaultRequestTimeout
	}

	u, err := url.Parse(req.URL)
	if err != nil {
		return nil, fmt.Errorf("%w: invalid url %q: %v", weather.ErrTransport, req.URL, err)
	}
	if len(req.Params) > 0 {
		q := u.Query()
		for k, vs := range req.Params {
			for _, v := range vs {
				q.Add(k, v)
			}
		}
		u.RawQuery = q.Encode()
	}

	log.Debugw("http request", "method", method, "url", u.String(), "params", req.Params)

	ctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	var body io.Reader
	if req.Form != nil {
		body = strings.NewReader(req.Form.Encode())
	}
	httpReq, err := http.NewRequestWithContext(ctx, method, u.String(), body)
	if err != nil {
		return nil, fmt.Errorf("%w: build request: %v", weather.ErrTransport, err)
	}
	httpReq.Header.Set("User-Agent", userAgent)
	if req.Form != nil {
		httpReq.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	}
	for k, v := range req.Headers {
		httpReq.Header.Set(k, v)
	}

	result, err := g.breaker(u.Host).Execute(func() (interface{}, error) {
		resp, execErr := g.client.Do(httpReq)
		if execErr != nil {
			return nil, execErr
		}
		defer resp.Body.Close()

		data, readErr := io.ReadAll(resp.Body)
		if readErr != nil {
			return nil, readErr
		}
		if resp.StatusCode < 200 || resp.StatusCode >= 300 {
			return nil, &weather.HTTPStatusError{Code: resp.StatusCode, URL: u.String()}
		}
		return &Response{
			Status:      resp.StatusCode,
			ContentType: resp.Header.Get("Content-Type"),
			Body:        data,
		}, nil
	})
	if err != nil {
		return nil, classify(ctx, u.String(), err)
	}

	resp, ok := result.(*Response)
	if !ok {
		return nil, fmt.Errorf("%w: unexpected result type from circuit breaker", weather.ErrTransport)
	}
	log.Debugw("http response", "url", u.String(), "status", resp.Status, "bytes", len(resp.Body))
	return resp, nil
}

func classify(ctx context.Context, target string, err error) error {
	var se *weather.HTTPStatusError
	if errors.As(err, &se) {
		return se
	}
	if errors.Is(err, gobreaker.ErrOpenState) || errors.Is(err, gobreaker.ErrTooManyRequests) {
		return fmt.Errorf("%w: circuit breaker open for %s: %v", weather.ErrTransport, target, err)
	}
	var netErr net.Error
	if errors.Is(err, context.DeadlineExceeded) || ctx.Err() == context.DeadlineExceeded ||
		(errors.As(err, &netErr) && netErr.Timeout()) {
		return fmt.Errorf("%w: %s: %v", weather.ErrTimeout, target, err)
	}
	return fmt.Errorf("%w: %s: %v", weather.ErrTransport, target, err)
}
