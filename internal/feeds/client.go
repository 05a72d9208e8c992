package feeds

import (
	"context"
	"encoding/json"
	"sync"
	"time"

	"github.com/go-resty/resty/v2"
	"golang.org/x/time/rate"
)

var (
	clientOnce  sync.Once
	sharedClient *resty.Client
)

// httpClient returns the process-wide resty client every fetcher shares,
// built once on first use.
func httpClient() *resty.Client {
	clientOnce.Do(func() {
		sharedClient = resty.New().
			SetHeader("Accept", "application/json").
			SetTimeout(10 * time.Second)
	})
	return sharedClient
}

// limiters holds one rate.Limiter per upstream host so a single venue's
// throttle never gets tripped by an unrelated burst from another asset's
// fetcher sharing the same exchange (spec §5: "per-source rate pacing").
var (
	limitersMu sync.Mutex
	limiters   = map[string]*rate.Limiter{}
)

func limiterFor(host string) *rate.Limiter {
	limitersMu.Lock()
	defer limitersMu.Unlock()
	l, ok := limiters[host]
	if !ok {
		l = rate.NewLimiter(rate.Every(200*time.Millisecond), 3)
		limiters[host] = l
	}
	return l
}

// getJSON performs a rate-paced GET against url, decoding the JSON body
// into out. source and rateKey (typically the upstream host) are used for
// error tagging and pacing respectively.
func getJSON(ctx context.Context, source, rateKey, url string, out any) error {
	if err := limiterFor(rateKey).Wait(ctx); err != nil {
		return transportErr(source, err)
	}

	resp, err := httpClient().R().SetContext(ctx).Get(url)
	if err != nil {
		return transportErr(source, err)
	}
	if resp.IsError() {
		return statusErr(source, resp.StatusCode())
	}
	if err := json.Unmarshal(resp.Body(), out); err != nil {
		return parseErr(source, err)
	}
	return nil
}

// getText performs a rate-paced GET against url and returns the raw body,
// for sources whose payload isn't JSON (e.g. an XML or delimited release).
func getText(ctx context.Context, source, rateKey, url string) (string, error) {
	if err := limiterFor(rateKey).Wait(ctx); err != nil {
		return "", transportErr(source, err)
	}

	resp, err := httpClient().R().SetContext(ctx).Get(url)
	if err != nil {
		return "", transportErr(source, err)
	}
	if resp.IsError() {
		return "", statusErr(source, resp.StatusCode())
	}
	return string(resp.Body()), nil
}
