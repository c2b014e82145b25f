package server

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net"
	"net/http"
	"os"

	"github.com/gorilla/mux"
	"github.com/prometheus/client_golang/prometheus"

	"github.com/kokukuma/openid4vp-verifier/document"
	"github.com/kokukuma/openid4vp-verifier/internal/cryptoroot"
	"github.com/kokukuma/openid4vp-verifier/internal/log"
	"github.com/kokukuma/openid4vp-verifier/internal/metrics"
	"github.com/kokukuma/openid4vp-verifier/internal/verifier"
)

var logger = log.New("server")

type Server struct {
	controller   *verifier.Controller
	catalog      []document.CredentialTemplate
	debugEnabled bool
	publicDir    string
	gatherer     prometheus.Gatherer
	keys         *cryptoroot.Provider
}

type Option func(s *Server)

// WithDebug allows ?debug=true to return the decoded claims next to the token.
func WithDebug(enabled bool) Option {
	return func(s *Server) {
		s.debugEnabled = enabled
	}
}

// WithPublicDir serves the browser front-end from dir.
func WithPublicDir(dir string) Option {
	return func(s *Server) {
		s.publicDir = dir
	}
}

func WithGatherer(g prometheus.Gatherer) Option {
	return func(s *Server) {
		s.gatherer = g
	}
}

func WithCatalog(catalog []document.CredentialTemplate) Option {
	return func(s *Server) {
		s.catalog = catalog
	}
}

// WithKeys publishes the signing key as JWKS and its certificate.
func WithKeys(keys *cryptoroot.Provider) Option {
	return func(s *Server) {
		s.keys = keys
	}
}

func NewServer(controller *verifier.Controller, opts ...Option) *Server {
	s := &Server{
		controller:   controller,
		catalog:      document.DefaultCatalog(),
		debugEnabled: true,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Router registers every endpoint of the verifier.
func (s *Server) Router() *mux.Router {
	r := mux.NewRouter()
	r.Use(LoggingMiddleware)

	r.HandleFunc("/api/credentials", s.ListCredentials).Methods("GET")
	r.HandleFunc("/api/presentation-request", s.CreatePresentationRequest).Methods("POST")
	r.HandleFunc("/presentation-request/{requestId}", s.GetPresentationRequest).Methods("GET")
	r.HandleFunc("/api/qrcode", s.QRCode).Methods("POST")
	r.HandleFunc("/healthz", s.Health).Methods("GET")

	if s.keys != nil {
		r.HandleFunc("/.well-known/jwks.json", s.JWKS).Methods("GET")
		r.HandleFunc("/api/certificate", s.GetCertificateHandler).Methods("GET")
	}

	if s.gatherer != nil {
		r.Handle("/metrics", metrics.Handler(s.gatherer)).Methods("GET")
	}

	if s.publicDir != "" {
		if info, err := os.Stat(s.publicDir); err == nil && info.IsDir() {
			r.PathPrefix("/").Handler(http.FileServer(http.Dir(s.publicDir)))
		} else {
			logger.Warn("public dir not found, front-end disabled", log.WithPath(s.publicDir))
		}
	}

	return r
}

func (s *Server) Health(w http.ResponseWriter, r *http.Request) {
	jsonResponse(w, map[string]string{"status": "ok"}, http.StatusOK)
}

func parseJSON(r *http.Request, v interface{}) error {
	if r == nil || r.Body == nil {
		return errors.New("No request given")
	}

	defer r.Body.Close()
	defer io.Copy(io.Discard, r.Body)

	err := json.NewDecoder(r.Body).Decode(v)
	if err != nil {
		return err
	}
	return nil
}

func jsonResponse(w http.ResponseWriter, d interface{}, c int) {
	dj, err := json.Marshal(d)
	if err != nil {
		http.Error(w, "Error creating JSON response", http.StatusInternalServerError)
		return
	}
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(c)
	fmt.Fprintf(w, "%s", dj)
}

type ErrorResponse struct {
	Error string `json:"error"`
}

func jsonErrorResponse(w http.ResponseWriter, e error, c int) {
	jsonResponse(w, ErrorResponse{Error: e.Error()}, c)
}

// requestHostname is the Host header without its port.
func requestHostname(r *http.Request) string {
	host, _, err := net.SplitHostPort(r.Host)
	if err != nil {
		return r.Host
	}
	return host
}
