package services

import (
	"net/http"

	"golang.org/x/time/rate"
)

// limitedTransport waits on a shared [rate.Limiter] before each request.
type limitedTransport struct {
	base    http.RoundTripper
	limiter *rate.Limiter
}

func (t *limitedTransport) RoundTrip(req *http.Request) (*http.Response, error) {
	if err := t.limiter.Wait(req.Context()); err != nil {
		return nil, err
	}
	return t.base.RoundTrip(req)
}

// NewHTTPClient returns a client whose requests share one rate limit of rps
// requests per second with the given burst. A non-positive rps disables
// limiting. base defaults to [http.DefaultTransport].
func NewHTTPClient(base http.RoundTripper, rps float64, burst int) *http.Client {
	if base == nil {
		base = http.DefaultTransport
	}
	if rps <= 0 {
		return &http.Client{Transport: base}
	}
	if burst < 1 {
		burst = 1
	}
	return &http.Client{Transport: &limitedTransport{base: base, limiter: rate.NewLimiter(rate.Limit(rps), burst)}}
}
