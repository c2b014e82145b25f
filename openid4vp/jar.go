package openid4vp

import (
	"crypto/ecdsa"
	"errors"
	"fmt"
	"net/url"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

const (
	DeepLinkScheme    = "openid4vp://"
	RequestObjectType = "oauth-authz-req+jwt"
)

var ErrSigningFailed = errors.New("failed to sign request object")

// JWTSecuredAuthorizeRequest is the by-reference authorization request handed to a wallet.
type JWTSecuredAuthorizeRequest struct {
	AuthorizeEndpoint string
	Client            string `json:"client"`
	RequestURI        string `json:"request_uri"`
}

func (a *JWTSecuredAuthorizeRequest) String() string {
	endpoint := a.AuthorizeEndpoint
	if endpoint == "" {
		endpoint = DeepLinkScheme
	}
	return fmt.Sprintf(
		"%s?client=%s&request_uri=%s",
		endpoint, a.Client, url.QueryEscape(a.RequestURI))
}

type RequestObject struct {
	AuthorizationRequest
	Audience  string `json:"aud"`
	ExpiresAt int64  `json:"exp"`
	IssuedAt  int64  `json:"iat"`
}

func (c *RequestObject) GetExpirationTime() (*jwt.NumericDate, error) {
	return jwt.NewNumericDate(time.Unix(c.ExpiresAt, 0)), nil
}

func (c *RequestObject) GetIssuedAt() (*jwt.NumericDate, error) {
	return jwt.NewNumericDate(time.Unix(c.IssuedAt, 0)), nil
}

func (c *RequestObject) GetNotBefore() (*jwt.NumericDate, error) {
	return nil, nil
}

func (c *RequestObject) GetIssuer() (string, error) {
	return "", nil
}

func (c *RequestObject) GetSubject() (string, error) {
	return "", nil
}

func (c *RequestObject) GetAudience() (jwt.ClaimStrings, error) {
	return jwt.ClaimStrings{c.Audience}, nil
}

// Sign produces a compact ES256 JWS carrying the certificate chain in x5c.
func (c *RequestObject) Sign(sigKey *ecdsa.PrivateKey, certChain []string) (string, error) {
	if sigKey == nil || sigKey.Curve == nil {
		return "", fmt.Errorf("%w: no signing key", ErrSigningFailed)
	}
	if name := sigKey.Curve.Params().Name; name != "P-256" {
		return "", fmt.Errorf("%w: unsupported curve %s", ErrSigningFailed, name)
	}

	token := jwt.NewWithClaims(jwt.SigningMethodES256, c)
	token.Header["x5c"] = certChain
	token.Header["typ"] = RequestObjectType

	signed, err := token.SignedString(sigKey)
	if err != nil {
		return "", fmt.Errorf("%w: %w", ErrSigningFailed, err)
	}
	return signed, nil
}
