package server

import (
	"encoding/base64"
	"encoding/json"
	"io"
	"math/big"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/gorilla/mux"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/kokukuma/openid4vp-verifier/internal/cryptoroot"
	"github.com/kokukuma/openid4vp-verifier/internal/metrics"
	"github.com/kokukuma/openid4vp-verifier/internal/store"
	"github.com/kokukuma/openid4vp-verifier/internal/verifier"
)

const pidQuery = `{
  "credentials": [
    {
      "id": "0",
      "format": "dc+sd-jwt",
      "meta": {"vct_values": ["urn:eudi:pid:1"]},
      "claims": [
        {"path": ["family_name"], "id": "family_name"},
        {"path": ["given_name"], "id": "given_name"}
      ]
    }
  ],
  "credential_sets": [{"options": [["0"]], "purpose": "Identity verification"}]
}`

type testEnv struct {
	router *mux.Router
	keys   *cryptoroot.Provider
	now    time.Time
}

func newTestEnv(t *testing.T, opts ...Option) *testEnv {
	t.Helper()

	keys, err := cryptoroot.LoadOrGenerate(t.TempDir(), "localhost")
	require.NoError(t, err)

	env := &testEnv{keys: keys, now: time.Now()}
	memStore := store.NewMemStore(store.WithClock(func() time.Time { return env.now }))

	registry := prometheus.NewRegistry()
	controller, err := verifier.NewController(memStore, keys, "http://localhost:3000",
		verifier.WithMetrics(metrics.NewPrometheus(registry)))
	require.NoError(t, err)

	opts = append([]Option{WithGatherer(registry)}, opts...)
	env.router = NewServer(controller, opts...).Router()
	return env
}

func (e *testEnv) do(method, target, body string) *httptest.ResponseRecorder {
	var req *http.Request
	if body == "" {
		req = httptest.NewRequest(method, target, nil)
	} else {
		req = httptest.NewRequest(method, target, strings.NewReader(body))
		req.Header.Set("Content-Type", "application/json")
	}
	req.Host = "localhost:3000"

	rec := httptest.NewRecorder()
	e.router.ServeHTTP(rec, req)
	return rec
}

func (e *testEnv) submit(t *testing.T) map[string]interface{} {
	t.Helper()

	rec := e.do(http.MethodPost, "/api/presentation-request", pidQuery)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

	resp := map[string]interface{}{}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	return resp
}

func decodeError(t *testing.T, rec *httptest.ResponseRecorder) string {
	t.Helper()

	resp := ErrorResponse{}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	return resp.Error
}

func TestPresentationRequestFlow(t *testing.T) {
	env := newTestEnv(t)

	sub := env.submit(t)
	requestID, _ := sub["requestId"].(string)
	require.NotEmpty(t, requestID)
	assert.Equal(t, "http://localhost:3000/presentation-request/"+requestID, sub["presentationRequestUrl"])
	assert.True(t, strings.HasPrefix(sub["openid4vpLink"].(string), "openid4vp://?client=localhost&request_uri="))

	dcql, err := json.Marshal(sub["dcql"])
	require.NoError(t, err)
	assert.JSONEq(t, pidQuery, string(dcql))

	rec := env.do(http.MethodGet, "/presentation-request/"+requestID+"?debug=true", "")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "application/json", rec.Header().Get("Content-Type"))

	var debug struct {
		Token   string                 `json:"vp_token"`
		Payload map[string]interface{} `json:"payload_decoded"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &debug))

	claims := jwt.MapClaims{}
	token, err := jwt.ParseWithClaims(debug.Token, claims, func(*jwt.Token) (interface{}, error) {
		return env.keys.PublicKey, nil
	}, jwt.WithValidMethods([]string{"ES256"}))
	require.NoError(t, err)

	assert.Equal(t, "oauth-authz-req+jwt", token.Header["typ"])
	assert.Equal(t, []interface{}{env.keys.CertChain()[0]}, token.Header["x5c"])

	assert.Equal(t, "vp_token", claims["response_type"])
	assert.Equal(t, "direct_post", claims["response_mode"])
	assert.Equal(t, "localhost", claims["client_id"])
	assert.Equal(t, "https://localhost/presentation-request/"+requestID, claims["aud"])
	assert.Equal(t, "https://localhost/presentation-request/"+requestID+"/authorize?session="+requestID,
		claims["response_uri"])
	assert.Equal(t, claims["nonce"], debug.Payload["nonce"])
	assert.Equal(t, claims["state"], debug.Payload["state"])
	assert.NotEqual(t, claims["nonce"], claims["state"])

	embedded, err := json.Marshal(claims["dcql_query"])
	require.NoError(t, err)
	assert.JSONEq(t, pidQuery, string(embedded))

	exp := claims["exp"].(float64)
	iat := claims["iat"].(float64)
	assert.Equal(t, float64(time.Hour/time.Second), exp-iat)
}

func TestGetPresentationRequest_PlainToken(t *testing.T) {
	env := newTestEnv(t)
	requestID := env.submit(t)["requestId"].(string)

	for _, target := range []string{
		"/presentation-request/" + requestID,
		"/presentation-request/" + requestID + "?debug=false",
		"/presentation-request/" + requestID + "?debug=yes",
	} {
		rec := env.do(http.MethodGet, target, "")
		require.Equal(t, http.StatusOK, rec.Code, target)
		assert.Equal(t, "text/plain; charset=utf-8", rec.Header().Get("Content-Type"), target)
		assert.Equal(t, 2, strings.Count(rec.Body.String(), "."), target)
	}

	rec := env.do(http.MethodGet, "/presentation-request/"+requestID+"?debug=1", "")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "application/json", rec.Header().Get("Content-Type"))
}

func TestGetPresentationRequest_DebugDisabled(t *testing.T) {
	env := newTestEnv(t, WithDebug(false))
	requestID := env.submit(t)["requestId"].(string)

	rec := env.do(http.MethodGet, "/presentation-request/"+requestID+"?debug=true", "")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "text/plain; charset=utf-8", rec.Header().Get("Content-Type"))
}

func TestGetPresentationRequest_NotFoundAndExpired(t *testing.T) {
	env := newTestEnv(t)

	rec := env.do(http.MethodGet, "/presentation-request/does-not-exist", "")
	require.Equal(t, http.StatusNotFound, rec.Code)
	assert.Equal(t, "Presentation request not found", decodeError(t, rec))

	requestID := env.submit(t)["requestId"].(string)
	env.now = env.now.Add(time.Hour + time.Second)

	rec = env.do(http.MethodGet, "/presentation-request/"+requestID, "")
	require.Equal(t, http.StatusGone, rec.Code)
	assert.Equal(t, "Presentation request expired", decodeError(t, rec))

	rec = env.do(http.MethodGet, "/presentation-request/"+requestID, "")
	require.Equal(t, http.StatusNotFound, rec.Code)
}

func TestCreatePresentationRequest_Invalid(t *testing.T) {
	env := newTestEnv(t)

	for _, body := range []string{
		`{}`,
		`{"credentials":"x"}`,
		`{"credentials":[]}`,
		`not json`,
		`[{"id":"0"}]`,
	} {
		rec := env.do(http.MethodPost, "/api/presentation-request", body)
		require.Equal(t, http.StatusBadRequest, rec.Code, body)
		assert.True(t, strings.HasPrefix(decodeError(t, rec), "DCQL with credentials required"), body)
	}
}

func TestListCredentials(t *testing.T) {
	env := newTestEnv(t)

	rec := env.do(http.MethodGet, "/api/credentials", "")
	require.Equal(t, http.StatusOK, rec.Code)

	var catalog []map[string]interface{}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &catalog))
	require.Len(t, catalog, 2)
	assert.Equal(t, "PID", catalog[0]["type"])
	assert.Equal(t, "dc+sd-jwt", catalog[0]["format"])
}

func TestQRCode(t *testing.T) {
	env := newTestEnv(t)

	rec := env.do(http.MethodPost, "/api/qrcode", `{"text":"openid4vp://?client=localhost"}`)
	require.Equal(t, http.StatusOK, rec.Code)

	resp := QRCodeResponse{}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	assert.True(t, strings.HasPrefix(resp.QRCode, "data:image/png;base64,"))

	rec = env.do(http.MethodPost, "/api/qrcode", `{"text":""}`)
	require.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Equal(t, "text is required", decodeError(t, rec))

	rec = env.do(http.MethodPost, "/api/qrcode", `{`)
	require.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestHealthAndMetrics(t *testing.T) {
	env := newTestEnv(t)

	rec := env.do(http.MethodGet, "/healthz", "")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, `{"status":"ok"}`, rec.Body.String())

	env.submit(t)

	rec = env.do(http.MethodGet, "/metrics", "")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), "verifier_presentation_requests_created_total 1")
}

func TestMethodNotAllowed(t *testing.T) {
	env := newTestEnv(t)

	rec := env.do(http.MethodGet, "/api/presentation-request", "")
	assert.Equal(t, http.StatusMethodNotAllowed, rec.Code)
}

func TestPublicDir(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, "index.html"), []byte("<html>verifier</html>"), 0o600))

	env := newTestEnv(t, WithPublicDir(dir))

	rec := env.do(http.MethodGet, "/", "")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), "verifier")

	// API routes take precedence over the file server.
	rec = env.do(http.MethodGet, "/api/credentials", "")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "application/json", rec.Header().Get("Content-Type"))
}

func TestRequestHostname(t *testing.T) {
	req := httptest.NewRequest(http.MethodGet, "/", nil)

	req.Host = "verifier.example:8443"
	assert.Equal(t, "verifier.example", requestHostname(req))

	req.Host = "verifier.example"
	assert.Equal(t, "verifier.example", requestHostname(req))
}

func TestJWKSAndCertificate(t *testing.T) {
	keys, err := cryptoroot.LoadOrGenerate(t.TempDir(), "localhost")
	require.NoError(t, err)

	controller, err := verifier.NewController(store.NewMemStore(), keys, "http://localhost:3000")
	require.NoError(t, err)
	router := NewServer(controller, WithKeys(keys)).Router()

	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/.well-known/jwks.json", nil))
	require.Equal(t, http.StatusOK, rec.Code)

	jwks := JWKS{}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &jwks))
	require.Len(t, jwks.Keys, 1)

	jwk := jwks.Keys[0]
	assert.Equal(t, "EC", jwk.Kty)
	assert.Equal(t, "P-256", jwk.Crv)
	assert.Equal(t, "ES256", jwk.Alg)
	assert.Equal(t, "sig", jwk.Use)
	assert.NotEmpty(t, jwk.Kid)
	assert.Equal(t, keys.CertChain(), jwk.X5c)

	x, err := base64.RawURLEncoding.DecodeString(jwk.X)
	require.NoError(t, err)
	assert.Len(t, x, 32)
	assert.Equal(t, 0, new(big.Int).SetBytes(x).Cmp(keys.PublicKey.X))

	rec = httptest.NewRecorder()
	router.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/certificate", nil))
	require.Equal(t, http.StatusOK, rec.Code)

	cert := CertificateResponse{}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &cert))
	assert.Equal(t, string(keys.CertificatePEM), cert.PEMData)
	assert.Contains(t, cert.Info.Subject, "CN=OpenID4VP Verifier")
	assert.Equal(t, []string{"localhost"}, cert.Info.DNSNames)
	assert.True(t, cert.Info.IsCA)
}

func TestKeyRoutesRequireKeys(t *testing.T) {
	env := newTestEnv(t)

	rec := env.do(http.MethodGet, "/.well-known/jwks.json", "")
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestEcdsaPublicKeyToJWKS_NoKey(t *testing.T) {
	_, err := ecdsaPublicKeyToJWKS(nil, "", nil)
	assert.Error(t, err)
}

type countingReader struct {
	r    io.Reader
	read int64
}

func (c *countingReader) Read(p []byte) (int, error) {
	n, err := c.r.Read(p)
	c.read += int64(n)
	return n, err
}

func TestCreatePresentationRequest_BodyLimit(t *testing.T) {
	env := newTestEnv(t)

	body := &countingReader{r: strings.NewReader(strings.Repeat(" ", 8*maxBodySize))}
	req := httptest.NewRequest(http.MethodPost, "/api/presentation-request", body)
	req.ContentLength = -1
	req.Host = "localhost:3000"

	rec := httptest.NewRecorder()
	env.router.ServeHTTP(rec, req)

	require.Equal(t, http.StatusRequestEntityTooLarge, rec.Code)
	assert.Equal(t, "request body exceeds 1048576 bytes", decodeError(t, rec))
	assert.LessOrEqual(t, body.read, int64(maxBodySize+1))
}

func TestLoggingMiddleware_KeepsBody(t *testing.T) {
	payload := strings.Repeat("a", 3*logPayloadPeek)

	var got string
	handler := LoggingMiddleware(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		data, err := io.ReadAll(r.Body)
		require.NoError(t, err)
		got = string(data)
		w.WriteHeader(http.StatusNoContent)
	}))

	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/", strings.NewReader(payload)))

	assert.Equal(t, http.StatusNoContent, rec.Code)
	assert.Equal(t, payload, got)
}

func TestOptionsDoesNotReachHandlers(t *testing.T) {
	env := newTestEnv(t)
	requestID := env.submit(t)["requestId"].(string)

	for _, target := range []string{
		"/presentation-request/" + requestID,
		"/api/presentation-request",
		"/api/credentials",
	} {
		rec := env.do(http.MethodOptions, target, "")
		assert.Equal(t, http.StatusMethodNotAllowed, rec.Code, target)
		assert.Empty(t, rec.Header().Get("Content-Type"), target)
	}
}
