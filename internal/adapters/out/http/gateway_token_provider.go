// backend/internal/adapters/out/http/gateway_token_provider.go
package httpout

import (
	"context"
	"errors"
	"log"
	"net/http"
	"strings"
	"sync"
	"time"

	"golang.org/x/oauth2"
	"golang.org/x/oauth2/clientcredentials"
	"golang.org/x/sync/singleflight"

	paymentdom "storefront/internal/domain/payment"
)

const (
	defaultTokenSkew = 30 * time.Second
	// used when the gateway omits expires_in
	defaultTokenTTL = 5 * time.Minute
)

// GatewayTokenProvider owns the process-wide gateway bearer credential.
//
// - readers share the cached credential under an RWMutex
// - refresh is single-flight: callers that see an expired/absent token wait for
//   the one in-flight exchange instead of issuing their own
type GatewayTokenProvider struct {
	cc      clientcredentials.Config
	client  *http.Client
	timeout time.Duration
	skew    time.Duration
	now     func() time.Time

	mu   sync.RWMutex
	cred paymentdom.GatewayCredential

	flight singleflight.Group
}

// NewGatewayTokenProvider builds a provider for <baseURL>/v1/oauth2/token.
func NewGatewayTokenProvider(baseURL, clientID, clientSecret string, timeout time.Duration) *GatewayTokenProvider {
	baseURL = strings.TrimRight(strings.TrimSpace(baseURL), "/")
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	return &GatewayTokenProvider{
		cc: clientcredentials.Config{
			ClientID:     strings.TrimSpace(clientID),
			ClientSecret: strings.TrimSpace(clientSecret),
			TokenURL:     baseURL + "/v1/oauth2/token",
			AuthStyle:    oauth2.AuthStyleInHeader,
		},
		client:  &http.Client{Timeout: timeout},
		timeout: timeout,
		skew:    defaultTokenSkew,
		now:     time.Now,
	}
}

// GetToken returns the cached credential or performs one exchange.
// No retries: the caller decides.
func (p *GatewayTokenProvider) GetToken(ctx context.Context) (paymentdom.GatewayCredential, error) {
	if p == nil {
		return paymentdom.GatewayCredential{}, &paymentdom.AuthError{Err: errors.New("token provider is nil")}
	}

	if c, ok := p.cached(); ok {
		return c, nil
	}

	ch := p.flight.DoChan("gateway-token", func() (any, error) {
		// another flight may have finished between cached() and DoChan
		if c, ok := p.cached(); ok {
			return c, nil
		}
		return p.refresh()
	})

	select {
	case <-ctx.Done():
		return paymentdom.GatewayCredential{}, &paymentdom.AuthError{Err: ctx.Err()}
	case res := <-ch:
		if res.Err != nil {
			return paymentdom.GatewayCredential{}, res.Err
		}
		return res.Val.(paymentdom.GatewayCredential), nil
	}
}

// Invalidate drops the cached credential (e.g. after a 401).
func (p *GatewayTokenProvider) Invalidate() {
	if p == nil {
		return
	}
	p.mu.Lock()
	p.cred = paymentdom.GatewayCredential{}
	p.mu.Unlock()
}

func (p *GatewayTokenProvider) cached() (paymentdom.GatewayCredential, bool) {
	p.mu.RLock()
	defer p.mu.RUnlock()
	if p.cred.ValidAt(p.now(), p.skew) {
		return p.cred, true
	}
	return paymentdom.GatewayCredential{}, false
}

// refresh runs detached from any single caller so one cancellation does not fail
// every waiter of the flight.
func (p *GatewayTokenProvider) refresh() (paymentdom.GatewayCredential, error) {
	if p.cc.ClientID == "" || p.cc.ClientSecret == "" {
		return paymentdom.GatewayCredential{}, &paymentdom.AuthError{Err: errors.New("gateway client id/secret not configured")}
	}

	ctx, cancel := context.WithTimeout(context.Background(), p.timeout)
	defer cancel()
	ctx = context.WithValue(ctx, oauth2.HTTPClient, p.client)

	tok, err := p.cc.Token(ctx)
	if err != nil {
		ae := &paymentdom.AuthError{Err: err}
		var re *oauth2.RetrieveError
		if errors.As(err, &re) && re.Response != nil {
			ae.StatusCode = re.Response.StatusCode
		}
		log.Printf("[gateway_token] exchange failed status=%d err=%v", ae.StatusCode, err)
		return paymentdom.GatewayCredential{}, ae
	}
	if tok == nil || strings.TrimSpace(tok.AccessToken) == "" {
		return paymentdom.GatewayCredential{}, &paymentdom.AuthError{Err: errors.New("malformed token payload")}
	}

	exp := tok.Expiry
	if exp.IsZero() {
		exp = p.now().Add(defaultTokenTTL)
	}
	cred := paymentdom.GatewayCredential{
		AccessToken: tok.AccessToken,
		ExpiresAt:   exp.UTC(),
	}

	p.mu.Lock()
	p.cred = cred
	p.mu.Unlock()

	log.Printf("[gateway_token] OK refreshed expiresAt=%s", cred.ExpiresAt.Format(time.RFC3339))
	return cred, nil
}
