package telegram

import (
	"net"
	"net/http"
	"time"
)

// apiClientSlack is added to the long-poll timeout so a getUpdates call that
// waits the full poll window still completes.
const apiClientSlack = 15 * time.Second

// newAPIClient returns the HTTP client for Bot API calls. Retries live in the
// sender dispatcher, so the transport makes a single attempt.
func newAPIClient(poll time.Duration) *http.Client {
	return &http.Client{
		Timeout: poll + apiClientSlack,
		Transport: &http.Transport{
			Proxy:                 http.ProxyFromEnvironment,
			DialContext:           (&net.Dialer{Timeout: 5 * time.Second, KeepAlive: 30 * time.Second}).DialContext,
			ForceAttemptHTTP2:     true,
			MaxIdleConns:          20,
			MaxIdleConnsPerHost:   10,
			IdleConnTimeout:       90 * time.Second,
			TLSHandshakeTimeout:   5 * time.Second,
			ExpectContinueTimeout: time.Second,
		},
	}
}
