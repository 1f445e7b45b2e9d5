package auth

import (
	"bytes"
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
	"time"
)

type fakeCertCache struct {
	mu     sync.Mutex
	data   []byte
	ttl    time.Duration
	getErr error
	sets   int
}

func (c *fakeCertCache) Get(context.Context) ([]byte, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.getErr != nil {
		return nil, c.getErr
	}
	return c.data, nil
}

func (c *fakeCertCache) Set(_ context.Context, data []byte, ttl time.Duration) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.data = data
	c.ttl = ttl
	c.sets++
	return nil
}

var _ CertCache = (*fakeCertCache)(nil)

func verifierFor(t *testing.T, keys KeySource) *GoogleVerifier {
	t.Helper()
	v, err := NewGoogleVerifier(testClientID, keys)
	if err != nil {
		t.Fatalf("NewGoogleVerifier: %v", err)
	}
	v.now = func() time.Time { return testNow }
	return v
}

func TestGoogleKeys_ReusedBetweenVerifications(t *testing.T) {
	f := newGoogleFixture(t)
	v := verifierFor(t, newTestKeys(t, f, nil))
	tok := f.sign(t, googleClaimsAt(testNow))

	if _, err := v.Verify(context.Background(), tok); err != nil {
		t.Fatalf("Verify: %v", err)
	}
	fetched := f.hits.Load()
	if fetched == 0 {
		t.Fatal("key set was never fetched")
	}

	for i := 0; i < 3; i++ {
		if _, err := v.Verify(context.Background(), tok); err != nil {
			t.Fatalf("Verify: %v", err)
		}
	}
	if got := f.hits.Load(); got != fetched {
		t.Errorf("fetches = %d, want %d (keys reused)", got, fetched)
	}
}

func TestGoogleKeys_RotationAndThrottledRefetch(t *testing.T) {
	f := newGoogleFixture(t)
	v := verifierFor(t, newTestKeys(t, f, nil))

	if _, err := v.Verify(context.Background(), f.sign(t, googleClaimsAt(testNow))); err != nil {
		t.Fatalf("Verify: %v", err)
	}

	rotated := f.addKey(t, "test-kid-2")
	tok := signRS256(t, rotated, "test-kid-2", googleClaimsAt(testNow))
	if _, err := v.Verify(context.Background(), tok); err != nil {
		t.Fatalf("Verify with rotated key: %v", err)
	}
	afterRotation := f.hits.Load()

	// A second unknown kid inside the refetch window fails without a fetch.
	stray := signRS256(t, rotated, "never-published", googleClaimsAt(testNow))
	if _, err := v.Verify(context.Background(), stray); !errors.Is(err, ErrInvalidIdentityToken) {
		t.Fatalf("err = %v, want ErrInvalidIdentityToken", err)
	}
	if got := f.hits.Load(); got != afterRotation {
		t.Errorf("fetches = %d, want %d (refetch throttled)", got, afterRotation)
	}
}

func TestGoogleKeys_ConcurrentVerification(t *testing.T) {
	f := newGoogleFixture(t)
	v := verifierFor(t, newTestKeys(t, f, nil))
	tok := f.sign(t, googleClaimsAt(testNow))

	const n = 20
	var wg sync.WaitGroup
	errs := make(chan error, n)
	for i := 0; i < n; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, err := v.Verify(context.Background(), tok)
			errs <- err
		}()
	}
	wg.Wait()
	close(errs)

	for err := range errs {
		if err != nil {
			t.Errorf("Verify: %v", err)
		}
	}
}

func TestGoogleKeys_UsesSharedCache(t *testing.T) {
	f := newGoogleFixture(t)
	cache := &fakeCertCache{data: f.jwks(t)}
	v := verifierFor(t, newTestKeys(t, f, cache))

	if _, err := v.Verify(context.Background(), f.sign(t, googleClaimsAt(testNow))); err != nil {
		t.Fatalf("Verify: %v", err)
	}
	if got := f.hits.Load(); got != 0 {
		t.Errorf("fetches = %d, want 0 when the shared cache is warm", got)
	}
}

func TestGoogleKeys_FillsSharedCacheOnMiss(t *testing.T) {
	f := newGoogleFixture(t)
	cache := &fakeCertCache{}
	v := verifierFor(t, newTestKeys(t, f, cache))

	if _, err := v.Verify(context.Background(), f.sign(t, googleClaimsAt(testNow))); err != nil {
		t.Fatalf("Verify: %v", err)
	}

	cache.mu.Lock()
	defer cache.mu.Unlock()
	if cache.sets == 0 {
		t.Fatal("cache was never written")
	}
	if !bytes.Equal(cache.data, f.jwks(t)) {
		t.Errorf("cached document = %s, want the upstream key set", cache.data)
	}
	if cache.ttl != certsRefreshInterval {
		t.Errorf("cache ttl = %v, want %v", cache.ttl, certsRefreshInterval)
	}
}

func TestGoogleKeys_CacheErrorFallsBackToFetch(t *testing.T) {
	f := newGoogleFixture(t)
	cache := &fakeCertCache{getErr: errors.New("connection refused")}
	v := verifierFor(t, newTestKeys(t, f, cache))

	if _, err := v.Verify(context.Background(), f.sign(t, googleClaimsAt(testNow))); err != nil {
		t.Fatalf("Verify: %v", err)
	}
	if f.hits.Load() == 0 {
		t.Error("expected an upstream fetch when the cache fails")
	}
}

func TestGoogleKeys_UpstreamUnavailable(t *testing.T) {
	f := newGoogleFixture(t)
	down := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "unavailable", http.StatusServiceUnavailable)
	}))
	defer down.Close()

	ctx, cancel := context.WithCancel(context.Background())
	t.Cleanup(cancel)
	keys, err := NewGoogleKeys(ctx, down.URL, down.Client(), nil)
	if err != nil {
		t.Fatalf("NewGoogleKeys must not fail on an unreachable upstream: %v", err)
	}
	v := verifierFor(t, keys)
	if _, err := v.Verify(context.Background(), f.sign(t, googleClaimsAt(testNow))); !errors.Is(err, ErrInvalidIdentityToken) {
		t.Fatalf("err = %v, want ErrInvalidIdentityToken", err)
	}
}

func TestCachedCertsTransport_SkipsFailedResponses(t *testing.T) {
	down := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "unavailable", http.StatusServiceUnavailable)
	}))
	defer down.Close()

	cache := &fakeCertCache{}
	client := &http.Client{Transport: newCachedCertsTransport(nil, cache, time.Hour)}
	resp, err := client.Get(down.URL)
	if err != nil {
		t.Fatalf("GET: %v", err)
	}
	resp.Body.Close()

	if resp.StatusCode != http.StatusServiceUnavailable {
		t.Errorf("status = %d, want 503", resp.StatusCode)
	}
	if cache.sets != 0 {
		t.Errorf("cache sets = %d, want 0 for a failed response", cache.sets)
	}
}
