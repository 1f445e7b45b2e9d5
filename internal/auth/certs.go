package auth

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/MicahParks/jwkset"
	"github.com/MicahParks/keyfunc/v3"
	"golang.org/x/time/rate"
)

const (
	// DefaultGoogleCertsURL publishes the keys Google signs ID tokens with.
	DefaultGoogleCertsURL = "https://www.googleapis.com/oauth2/v3/certs"

	certsRefreshInterval = time.Hour
	certsFetchTimeout    = 10 * time.Second
	// An unknown kid triggers at most one refetch per interval.
	minCertsRefresh = time.Minute
	// How long a token naming an unknown kid may wait for the refetch limiter.
	unknownKIDWait = time.Second
)

// NewGoogleKeys returns Google's signing keys as a jwt key source. The key
// set is loaded from certsURL, refreshed in the background until ctx is
// done, and refetched when a token names a kid it does not contain.
// client and cache are optional; a cache shares the key set between
// gateway instances.
func NewGoogleKeys(ctx context.Context, certsURL string, client *http.Client, cache CertCache) (keyfunc.Keyfunc, error) {
	if certsURL == "" {
		certsURL = DefaultGoogleCertsURL
	}
	if client == nil {
		client = &http.Client{}
	}
	if cache != nil {
		client = &http.Client{
			Timeout:   client.Timeout,
			Transport: newCachedCertsTransport(client.Transport, cache, certsRefreshInterval),
		}
	}

	remote, err := jwkset.NewStorageFromHTTP(certsURL, jwkset.HTTPClientStorageOptions{
		Client:                    client,
		Ctx:                       ctx,
		HTTPTimeout:               certsFetchTimeout,
		NoErrorReturnFirstHTTPReq: true,
		RefreshInterval:           certsRefreshInterval,
		RefreshErrorHandler: func(ctx context.Context, err error) {
			slog.WarnContext(ctx, "google certs refresh failed", slog.String("error", err.Error()))
		},
	})
	if err != nil {
		return nil, fmt.Errorf("google certs storage: %w", err)
	}

	storage, err := jwkset.NewHTTPClient(jwkset.HTTPClientOptions{
		HTTPURLs:          map[string]jwkset.Storage{certsURL: remote},
		RateLimitWaitMax:  unknownKIDWait,
		RefreshUnknownKID: rate.NewLimiter(rate.Every(minCertsRefresh), 1),
	})
	if err != nil {
		return nil, fmt.Errorf("google certs client: %w", err)
	}

	keys, err := keyfunc.New(keyfunc.Options{Ctx: ctx, Storage: storage})
	if err != nil {
		return nil, fmt.Errorf("google certs keyfunc: %w", err)
	}
	return keys, nil
}
