package verifier

import (
	"context"
	"crypto/ecdsa"
	"errors"
	"fmt"
	"net/url"
	"strings"
	"time"

	"github.com/davecgh/go-spew/spew"
	"go.uber.org/zap"

	"github.com/kokukuma/openid4vp-verifier/document"
	"github.com/kokukuma/openid4vp-verifier/internal/log"
	"github.com/kokukuma/openid4vp-verifier/internal/metrics"
	"github.com/kokukuma/openid4vp-verifier/internal/store"
	"github.com/kokukuma/openid4vp-verifier/openid4vp"
)

var (
	ErrInvalidDescriptor = document.ErrInvalidDescriptor
	ErrNotFound          = errors.New("presentation request not found")
	ErrExpired           = errors.New("presentation request expired")
	ErrSigningFailed     = openid4vp.ErrSigningFailed
)

var logger = log.New("verifier")

// KeyProvider supplies the signing key and the x5c chain of its certificate.
type KeyProvider interface {
	SigningKey() *ecdsa.PrivateKey
	CertChain() []string
}

type Submission struct {
	RequestID              string                    `json:"requestId"`
	PresentationRequestURL string                    `json:"presentationRequestUrl"`
	DCQL                   *document.QueryDescriptor `json:"dcql"`
	OpenID4VPLink          string                    `json:"openid4vpLink"`
}

// Retrieval carries the signed request object, plus the claims it signs when debug was asked for.
type Retrieval struct {
	Token  string                   `json:"vp_token"`
	Claims *openid4vp.RequestObject `json:"payload_decoded,omitempty"`
}

// Controller drives a presentation request from submission to retrieval.
type Controller struct {
	store         store.Store
	builder       *openid4vp.Builder
	keys          KeyProvider
	metrics       metrics.Metrics
	publicBaseURL string
	publicHost    string
}

type Option func(c *Controller)

func WithMetrics(m metrics.Metrics) Option {
	return func(c *Controller) {
		c.metrics = m
	}
}

func WithBuilder(b *openid4vp.Builder) Option {
	return func(c *Controller) {
		c.builder = b
	}
}

// NewController wires the lifecycle. publicBaseURL is the externally reachable origin, e.g. https://verifier.example.
func NewController(s store.Store, keys KeyProvider, publicBaseURL string, opts ...Option) (*Controller, error) {
	base := strings.TrimRight(publicBaseURL, "/")
	u, err := url.Parse(base)
	if err != nil {
		return nil, fmt.Errorf("invalid public base url: %w", err)
	}
	if u.Scheme == "" || u.Hostname() == "" {
		return nil, fmt.Errorf("invalid public base url %q", publicBaseURL)
	}

	c := &Controller{
		store:         s,
		builder:       openid4vp.NewBuilder(""),
		keys:          keys,
		metrics:       metrics.NoMetrics{},
		publicBaseURL: base,
		publicHost:    u.Hostname(),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c, nil
}

func (c *Controller) Submit(ctx context.Context, descriptor *document.QueryDescriptor) (*Submission, error) {
	rec, err := c.store.Create(ctx, descriptor)
	if err != nil {
		return nil, err
	}
	c.metrics.RequestCreated()

	requestURL := c.DereferenceURL(rec.ID)
	link := openid4vp.JWTSecuredAuthorizeRequest{
		Client:     c.publicHost,
		RequestURI: requestURL,
	}

	logger.Info("presentation request created", log.WithRequestID(rec.ID), log.WithURL(requestURL))

	return &Submission{
		RequestID:              rec.ID,
		PresentationRequestURL: requestURL,
		DCQL:                   rec.Descriptor,
		OpenID4VPLink:          link.String(),
	}, nil
}

// Retrieve signs a new request object for id. Every call yields a fresh nonce, state and iat.
func (c *Controller) Retrieve(ctx context.Context, id, hostname string, debug bool) (*Retrieval, error) {
	rec, status, err := c.store.Get(ctx, id)
	if err != nil {
		return nil, err
	}

	switch status {
	case store.StatusNotFound:
		c.metrics.RequestRetrieved(status.String())
		logger.Debug("presentation request retrieved", log.WithRequestID(id), log.WithOutcome(status.String()))
		return nil, ErrNotFound
	case store.StatusExpired:
		c.metrics.RequestRetrieved(status.String())
		logger.Info("presentation request retrieved", log.WithRequestID(id), log.WithOutcome(status.String()))
		return nil, ErrExpired
	}

	start := time.Now()
	token, claims, err := c.builder.Build(rec.ID, rec.Descriptor, hostname, c.keys.SigningKey(), c.keys.CertChain())
	c.metrics.SignTime(time.Since(start))
	if err != nil {
		c.metrics.RequestRetrieved("signing_failed")
		logger.Error("failed to build request object",
			log.WithRequestID(id),
			log.WithHostname(hostname),
			log.WithError(err),
		)
		return nil, err
	}
	c.metrics.RequestRetrieved(status.String())
	logger.Info("presentation request retrieved",
		log.WithRequestID(id),
		log.WithHostname(hostname),
		log.WithOutcome(status.String()),
	)

	if !debug {
		return &Retrieval{Token: token}, nil
	}

	if ce := logger.Check(zap.DebugLevel, "request object claims"); ce != nil {
		ce.Write(log.WithRequestID(id), zap.String("claims", spew.Sdump(claims)))
	}
	return &Retrieval{Token: token, Claims: claims}, nil
}

func (c *Controller) DereferenceURL(id string) string {
	return fmt.Sprintf("%s/presentation-request/%s", c.publicBaseURL, id)
}
