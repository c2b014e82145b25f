package server

import (
	"crypto/ecdsa"
	"crypto/elliptic"
	"encoding/base64"
	"errors"
	"net/http"

	"github.com/kokukuma/openid4vp-verifier/internal/log"
)

type JWKS struct {
	Keys []JWK `json:"keys"`
}

type JWK struct {
	Kty string   `json:"kty"`
	Crv string   `json:"crv"`
	X   string   `json:"x"`
	Y   string   `json:"y"`
	Alg string   `json:"alg"`
	Use string   `json:"use"`
	Kid string   `json:"kid,omitempty"`
	X5c []string `json:"x5c,omitempty"`
}

func ecdsaPublicKeyToJWKS(publicKey *ecdsa.PublicKey, kid string, x5c []string) (JWKS, error) {
	if publicKey == nil || publicKey.Curve == nil {
		return JWKS{}, errors.New("no public key")
	}

	size := (publicKey.Curve.Params().BitSize + 7) / 8
	jwk := JWK{
		Kty: "EC",
		Crv: getCurveName(publicKey.Curve),
		X:   base64.RawURLEncoding.EncodeToString(publicKey.X.FillBytes(make([]byte, size))),
		Y:   base64.RawURLEncoding.EncodeToString(publicKey.Y.FillBytes(make([]byte, size))),
		Alg: "ES256",
		Use: "sig",
		Kid: kid,
		X5c: x5c,
	}

	return JWKS{Keys: []JWK{jwk}}, nil
}

func getCurveName(curve elliptic.Curve) string {
	switch curve {
	case elliptic.P256():
		return "P-256"
	case elliptic.P384():
		return "P-384"
	case elliptic.P521():
		return "P-521"
	default:
		return "unknown"
	}
}

// JWKS publishes the request object signing key, for wallets that resolve keys instead of reading x5c.
func (s *Server) JWKS(w http.ResponseWriter, r *http.Request) {
	kid := base64.RawURLEncoding.EncodeToString(s.keys.Certificate.SubjectKeyId)

	jwks, err := ecdsaPublicKeyToJWKS(s.keys.PublicKey, kid, s.keys.CertChain())
	if err != nil {
		logger.Error("failed to build jwks", log.WithError(err))
		jsonErrorResponse(w, errors.New("failed to build jwks"), http.StatusInternalServerError)
		return
	}
	jsonResponse(w, jwks, http.StatusOK)
}
