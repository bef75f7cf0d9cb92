// Package httpx builds the HTTP client shared by the platform adapters.
package httpx

import (
	"context"
	"crypto/tls"
	"fmt"
	"net"
	"net/http"
	"runtime"
	"time"

	"github.com/hashicorp/go-retryablehttp"

	"github.com/jxwalker/modbrowse/internal/config"
	"github.com/jxwalker/modbrowse/internal/logging"
)

// Version is stamped into the default User-Agent. cmd/modbrowse overrides it at startup.
var Version = "dev"

// NewClient returns an *http.Client that retries transport errors, 429 and 5xx responses
// up to network.max_retries times. A canceled context stops retries immediately.
func NewClient(cfg *config.Config, log *logging.Logger) *http.Client {
	timeout := time.Duration(cfg.Network.TimeoutSeconds) * time.Second
	if timeout <= 0 {
		timeout = 30 * time.Second
	}
	tr := &http.Transport{
		Proxy: http.ProxyFromEnvironment,
		DialContext: (&net.Dialer{
			Timeout:   10 * time.Second,
			KeepAlive: 30 * time.Second,
		}).DialContext,
		TLSHandshakeTimeout:   10 * time.Second,
		IdleConnTimeout:       90 * time.Second,
		ExpectContinueTimeout: 1 * time.Second,
		MaxIdleConns:          20,
		MaxIdleConnsPerHost:   4,
		TLSClientConfig: &tls.Config{
			MinVersion: tls.VersionTLS12,
		},
	}

	rc := retryablehttp.NewClient()
	rc.HTTPClient = &http.Client{Transport: tr, Timeout: timeout}
	rc.RetryMax = cfg.Network.MaxRetries
	rc.RetryWaitMin = 500 * time.Millisecond
	rc.RetryWaitMax = 8 * time.Second
	rc.CheckRetry = checkRetry
	// Hand the final response back to the adapter instead of a generic "giving up" error
	// so it can report the status.
	rc.ErrorHandler = retryablehttp.PassthroughErrorHandler
	if log != nil {
		rc.Logger = log.Leveled()
	} else {
		rc.Logger = nil
	}

	std := rc.StandardClient()
	std.Timeout = 0 // per-attempt timeout lives on the inner client
	return std
}

func checkRetry(ctx context.Context, resp *http.Response, err error) (bool, error) {
	if ctx.Err() != nil {
		return false, ctx.Err()
	}
	return retryablehttp.DefaultRetryPolicy(ctx, resp, err)
}

// UserAgent returns the configured User-Agent or "modbrowse/<version> (<goos>/<goarch>)".
func UserAgent(cfg *config.Config) string {
	if cfg != nil && cfg.Network.UserAgent != "" {
		return cfg.Network.UserAgent
	}
	return fmt.Sprintf("modbrowse/%s (%s/%s)", Version, runtime.GOOS, runtime.GOARCH)
}
