package processor

import (
	"context"
	"sync"
	"time"

	"github.com/yourorg/payment-router/internal/types"
)

// tokenExpirySkew keeps a token from being used in its last seconds.
const tokenExpirySkew = 30 * time.Second

// TokenCache holds connector access tokens keyed by merchant and connector.
type TokenCache interface {
	Get(ctx context.Context, merchantID, connector string) (*types.AccessToken, bool)
	Set(ctx context.Context, merchantID, connector string, token types.AccessToken)
	Invalidate(ctx context.Context, merchantID, connector string)
}

type cachedToken struct {
	token     types.AccessToken
	expiresAt time.Time
}

type MemoryTokenCache struct {
	mu     sync.Mutex
	tokens map[string]cachedToken
	now    func() time.Time
}

func NewMemoryTokenCache() *MemoryTokenCache {
	return &MemoryTokenCache{tokens: make(map[string]cachedToken), now: time.Now}
}

func tokenKey(merchantID, connector string) string { return merchantID + "/" + connector }

func (c *MemoryTokenCache) Get(_ context.Context, merchantID, connector string) (*types.AccessToken, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	ct, ok := c.tokens[tokenKey(merchantID, connector)]
	if !ok || !c.now().Before(ct.expiresAt) {
		return nil, false
	}
	token := ct.token
	return &token, true
}

func (c *MemoryTokenCache) Set(_ context.Context, merchantID, connector string, token types.AccessToken) {
	c.mu.Lock()
	defer c.mu.Unlock()
	ttl := time.Duration(token.ExpiresIn)*time.Second - tokenExpirySkew
	c.tokens[tokenKey(merchantID, connector)] = cachedToken{token: token, expiresAt: c.now().Add(ttl)}
}

func (c *MemoryTokenCache) Invalidate(_ context.Context, merchantID, connector string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	delete(c.tokens, tokenKey(merchantID, connector))
}
