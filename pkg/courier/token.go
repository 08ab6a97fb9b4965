package courier

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"sync"
	"time"

	goredis "github.com/redis/go-redis/v9"

	"github.com/laundrylink/laundrylink-backend/pkg/config"
	pkgerrors "github.com/laundrylink/laundrylink-backend/pkg/errors"
	"github.com/laundrylink/laundrylink-backend/pkg/logger"
)

const (
	// defaultTokenLifetime is assumed when the provider omits expires_in.
	defaultTokenLifetime = 30 * 24 * time.Hour
	// refreshMargin forces a refresh while the cached token still has this
	// much life left, so a token never expires mid-request.
	refreshMargin = 24 * time.Hour

	tokenScope = "eats.deliveries"
)

type tokenStore interface {
	Get(ctx context.Context, key string) (string, error)
	Set(ctx context.Context, key string, value any, ttl time.Duration) error
	CourierTokenKey() string
}

type cachedToken struct {
	AccessToken string    `json:"access_token"`
	ExpiresAt   time.Time `json:"expires_at"`
}

// TokenSource produces courier OAuth access tokens. Tokens are cached in
// Redis under a single shared key; an in-process mutex single-flights the
// refresh so a race does at most one redundant fetch.
type TokenSource struct {
	cfg        config.CourierConfig
	store      tokenStore
	httpClient *http.Client
	logg       *logger.Logger

	mu sync.Mutex
}

// NewTokenSource wires the token source against the shared Redis client.
func NewTokenSource(cfg config.CourierConfig, store tokenStore, logg *logger.Logger) *TokenSource {
	return &TokenSource{
		cfg:        cfg,
		store:      store,
		httpClient: &http.Client{Timeout: 10 * time.Second},
		logg:       logg,
	}
}

// AccessToken returns a token with at least refreshMargin of remaining life,
// fetching a fresh one from the provider when the cache misses or is stale.
func (t *TokenSource) AccessToken(ctx context.Context) (string, error) {
	if cached, ok := t.cachedToken(ctx); ok {
		return cached, nil
	}

	t.mu.Lock()
	defer t.mu.Unlock()

	// Another caller may have refreshed while we waited on the mutex.
	if cached, ok := t.cachedToken(ctx); ok {
		return cached, nil
	}

	token, err := t.fetch(ctx)
	if err != nil {
		return "", err
	}

	payload, err := json.Marshal(token)
	if err != nil {
		return "", pkgerrors.Wrap(pkgerrors.CodeInternal, err, "marshal courier token")
	}
	ttl := time.Until(token.ExpiresAt)
	if err := t.store.Set(ctx, t.store.CourierTokenKey(), string(payload), ttl); err != nil {
		// The token is still valid for this request even if caching failed.
		if t.logg != nil {
			t.logg.Warn(ctx, "failed to cache courier token")
		}
	}

	return token.AccessToken, nil
}

func (t *TokenSource) cachedToken(ctx context.Context) (string, bool) {
	raw, err := t.store.Get(ctx, t.store.CourierTokenKey())
	if err != nil {
		if err != goredis.Nil && t.logg != nil {
			t.logg.Warn(ctx, "courier token cache read failed")
		}
		return "", false
	}

	var token cachedToken
	if err := json.Unmarshal([]byte(raw), &token); err != nil {
		return "", false
	}
	if token.AccessToken == "" || time.Until(token.ExpiresAt) < refreshMargin {
		return "", false
	}
	return token.AccessToken, true
}

func (t *TokenSource) fetch(ctx context.Context) (*cachedToken, error) {
	form := url.Values{}
	form.Set("grant_type", "client_credentials")
	form.Set("client_id", t.cfg.ClientID)
	form.Set("client_secret", t.cfg.ClientSecret)
	form.Set("scope", tokenScope)

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, t.cfg.AuthURL, strings.NewReader(form.Encode()))
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "build courier token request")
	}
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")

	resp, err := t.httpClient.Do(req)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "execute courier token request")
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		msg, _ := io.ReadAll(io.LimitReader(resp.Body, responseBodyReadLimit))
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency,
			fmt.Errorf("status %d: %s", resp.StatusCode, strings.TrimSpace(string(msg))),
			"courier token request failed")
	}

	var body struct {
		AccessToken string `json:"access_token"`
		ExpiresIn   int64  `json:"expires_in"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&body); err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "decode courier token response")
	}
	if body.AccessToken == "" {
		return nil, pkgerrors.New(pkgerrors.CodeDependency, "courier token response missing access_token")
	}

	lifetime := defaultTokenLifetime
	if body.ExpiresIn > 0 {
		lifetime = time.Duration(body.ExpiresIn) * time.Second
	}

	return &cachedToken{
		AccessToken: body.AccessToken,
		ExpiresAt:   time.Now().Add(lifetime),
	}, nil
}
