package openid4vp

import (
	"crypto/ecdsa"
	"fmt"
	"time"

	"github.com/kokukuma/openid4vp-verifier/document"
)

const DefaultRequestObjectTTL = time.Hour

// Builder assembles and signs request objects. Every Build call draws a new nonce and state.
type Builder struct {
	ClientName string
	TTL        time.Duration
	Now        func() time.Time
}

func NewBuilder(clientName string) *Builder {
	return &Builder{
		ClientName: clientName,
		TTL:        DefaultRequestObjectTTL,
		Now:        time.Now,
	}
}

// Claims returns the unsigned request object for a stored query.
func (b *Builder) Claims(requestID string, query *document.QueryDescriptor, hostname string) (*RequestObject, error) {
	nonce, err := NewNonce()
	if err != nil {
		return nil, fmt.Errorf("failed to generate nonce: %w", err)
	}
	state, err := NewNonce()
	if err != nil {
		return nil, fmt.Errorf("failed to generate state: %w", err)
	}

	now := b.now()
	ttl := b.TTL
	if ttl <= 0 {
		ttl = DefaultRequestObjectTTL
	}

	return &RequestObject{
		AuthorizationRequest: AuthorizationRequest{
			ResponseType:   ResponseTypeVPToken,
			ClientID:       hostname,
			ResponseURI:    ResponseURI(hostname, requestID),
			ResponseMode:   ResponseModeDirectPost,
			Nonce:          nonce,
			DCQLQuery:      query,
			ClientMetadata: CreateClientMetadata(hostname, b.ClientName),
			State:          state,
		},
		Audience:  RequestResourceURI(hostname, requestID),
		ExpiresAt: now.Add(ttl).Unix(),
		IssuedAt:  now.Unix(),
	}, nil
}

// Build signs a fresh request object. On failure nothing but the error is returned.
func (b *Builder) Build(requestID string, query *document.QueryDescriptor, hostname string,
	sigKey *ecdsa.PrivateKey, certChain []string) (string, *RequestObject, error) {
	ro, err := b.Claims(requestID, query, hostname)
	if err != nil {
		return "", nil, fmt.Errorf("%w: %w", ErrSigningFailed, err)
	}

	token, err := ro.Sign(sigKey, certChain)
	if err != nil {
		return "", nil, err
	}
	return token, ro, nil
}

func (b *Builder) now() time.Time {
	if b.Now == nil {
		return time.Now()
	}
	return b.Now()
}
