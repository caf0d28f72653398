package userauth

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"sync"
	"time"

	"github.com/rakutentech/jwk-go/jwk"
	"github.com/valyala/fasttemplate"
	"golang.org/x/sync/singleflight"
)

const (
	defaultKeyRetries = 2
	defaultKeyTimeout = time.Second
	defaultKeyTTL     = time.Hour
)

var (
	ErrKeyIDNotProvided  = errors.New("jwks: kid is not provided")
	ErrPublicKeyNotFound = errors.New("jwks: public key not found")

	errUnexpectedStatusCode = errors.New("jwks: unexpected status code")
)

type cachedKey struct {
	key     any
	expires time.Time
}

// KeySource loads signing keys of access tokens from JWKS endpoint. Endpoint
// may contain {{claim}} placeholders filled from string claims of token.
type KeySource struct {
	url     *fasttemplate.Template
	client  *http.Client
	retries int
	ttl     time.Duration
	now     func() time.Time

	mu    sync.RWMutex
	cache map[string]cachedKey
	group singleflight.Group
}

// NewKeySource validates endpoint.
func NewKeySource(rawURL string, client *http.Client) (*KeySource, error) {
	u, err := url.Parse(rawURL)
	if err != nil {
		return nil, fmt.Errorf("invalid JWKS endpoint: %w", err)
	}
	if u.Scheme != "http" && u.Scheme != "https" {
		return nil, fmt.Errorf("endpoint must have http:// or https:// scheme, got: %s", rawURL)
	}
	if client == nil {
		client = &http.Client{Timeout: defaultKeyTimeout}
	}
	return &KeySource{
		url:     fasttemplate.New(rawURL, "{{", "}}"),
		client:  client,
		retries: defaultKeyRetries,
		ttl:     defaultKeyTTL,
		now:     time.Now,
		cache:   make(map[string]cachedKey),
	}, nil
}

// Key returns public key with kid.
func (s *KeySource) Key(ctx context.Context, kid string, vars map[string]any) (any, error) {
	if kid == "" {
		return nil, ErrKeyIDNotProvided
	}
	s.mu.RLock()
	cached, ok := s.cache[kid]
	s.mu.RUnlock()
	if ok && s.now().Before(cached.expires) {
		return cached.key, nil
	}
	jwksURL := s.url.ExecuteString(vars)
	v, err, _ := s.group.Do(jwksURL+"|"+kid, func() (any, error) {
		return s.fetch(ctx, jwksURL, kid)
	})
	if err != nil {
		return nil, err
	}
	return v, nil
}

func (s *KeySource) load(ctx context.Context, jwksURL string) ([]byte, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, jwksURL, nil)
	if err != nil {
		return nil, err
	}
	resp, err := s.client.Do(req)
	if err != nil {
		return nil, err
	}
	defer func() { _ = resp.Body.Close() }()
	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("%w: %d", errUnexpectedStatusCode, resp.StatusCode)
	}
	return io.ReadAll(resp.Body)
}

func (s *KeySource) fetch(ctx context.Context, jwksURL string, kid string) (any, error) {
	var data []byte
	var err error
	for i := 0; i < s.retries; i++ {
		data, err = s.load(ctx, jwksURL)
		if err == nil {
			break
		}
	}
	if err != nil {
		return nil, err
	}

	var set jwk.KeySpecSet
	if err := json.Unmarshal(data, &set); err != nil {
		return nil, fmt.Errorf("jwks: unmarshal error: %w", err)
	}

	expires := s.now().Add(s.ttl)
	var res any
	s.mu.Lock()
	for _, spec := range set.Keys {
		if spec.Use != "" && spec.Use != "sig" {
			continue
		}
		s.cache[spec.KeyID] = cachedKey{key: spec.Key, expires: expires}
		if spec.KeyID == kid {
			res = spec.Key
		}
	}
	s.mu.Unlock()
	if res == nil {
		return nil, ErrPublicKeyNotFound
	}
	return res, nil
}
