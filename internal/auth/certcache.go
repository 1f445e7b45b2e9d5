package auth

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"time"

	"github.com/redis/go-redis/v9"
)

const (
	certCacheKey  = "google:oauth2:certs"
	maxCertsBytes = 1 << 20
)

// CertCache is a shared cache for the raw JWKS document. Get returns a nil
// slice on a miss.
type CertCache interface {
	Get(ctx context.Context) ([]byte, error)
	Set(ctx context.Context, data []byte, ttl time.Duration) error
}

// RedisCertCache shares Google's key set between gateway instances.
type RedisCertCache struct {
	rdb *redis.Client
}

func NewRedisCertCache(rdb *redis.Client) *RedisCertCache {
	return &RedisCertCache{rdb: rdb}
}

func (c *RedisCertCache) Get(ctx context.Context) ([]byte, error) {
	data, err := c.rdb.Get(ctx, certCacheKey).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("redis get certs: %w", err)
	}
	return data, nil
}

// Set stores the JWKS document for ttl.
func (c *RedisCertCache) Set(ctx context.Context, data []byte, ttl time.Duration) error {
	if err := c.rdb.Set(ctx, certCacheKey, data, ttl).Err(); err != nil {
		return fmt.Errorf("redis set certs: %w", err)
	}
	return nil
}

var _ CertCache = (*RedisCertCache)(nil)

// cachedCertsTransport answers key set downloads from the cache and fills
// the cache from successful upstream responses. Cache failures fall
// through to the network.
type cachedCertsTransport struct {
	next  http.RoundTripper
	cache CertCache
	ttl   time.Duration
}

func newCachedCertsTransport(next http.RoundTripper, cache CertCache, ttl time.Duration) *cachedCertsTransport {
	if next == nil {
		next = http.DefaultTransport
	}
	return &cachedCertsTransport{next: next, cache: cache, ttl: ttl}
}

func (t *cachedCertsTransport) RoundTrip(req *http.Request) (*http.Response, error) {
	if req.Method != http.MethodGet {
		return t.next.RoundTrip(req)
	}
	ctx := req.Context()

	raw, err := t.cache.Get(ctx)
	if err != nil {
		slog.WarnContext(ctx, "google certs cache read failed", slog.String("error", err.Error()))
	} else if raw != nil {
		return &http.Response{
			Status:        "200 OK",
			StatusCode:    http.StatusOK,
			Proto:         "HTTP/1.1",
			ProtoMajor:    1,
			ProtoMinor:    1,
			Header:        http.Header{"Content-Type": {"application/json"}},
			Body:          io.NopCloser(bytes.NewReader(raw)),
			ContentLength: int64(len(raw)),
			Request:       req,
		}, nil
	}

	resp, err := t.next.RoundTrip(req)
	if err != nil || resp.StatusCode != http.StatusOK {
		return resp, err
	}
	body, err := io.ReadAll(io.LimitReader(resp.Body, maxCertsBytes))
	resp.Body.Close()
	if err != nil {
		return nil, fmt.Errorf("google certs read: %w", err)
	}
	if err := t.cache.Set(ctx, body, t.ttl); err != nil {
		slog.WarnContext(ctx, "google certs cache write failed", slog.String("error", err.Error()))
	}
	resp.Body = io.NopCloser(bytes.NewReader(body))
	resp.ContentLength = int64(len(body))
	return resp, nil
}
