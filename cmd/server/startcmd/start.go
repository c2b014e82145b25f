package startcmd

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gorilla/handlers"
	"github.com/joho/godotenv"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/kokukuma/openid4vp-verifier/internal/cryptoroot"
	"github.com/kokukuma/openid4vp-verifier/internal/log"
	"github.com/kokukuma/openid4vp-verifier/internal/metrics"
	"github.com/kokukuma/openid4vp-verifier/internal/server"
	"github.com/kokukuma/openid4vp-verifier/internal/store"
	"github.com/kokukuma/openid4vp-verifier/internal/verifier"
	"github.com/kokukuma/openid4vp-verifier/openid4vp"
)

const (
	envFilePathKey    = "ENV_FILE_PATH"
	defaultEnvFile    = ".env"
	shutdownTimeout   = 10 * time.Second
	readHeaderTimeout = 10 * time.Second
)

var logger = log.New("startcmd")

type httpServer interface {
	ListenAndServe(ctx context.Context, addr string, handler http.Handler) error
}

// HTTPServer runs net/http until ctx is cancelled, then shuts down gracefully.
type HTTPServer struct{}

func (s *HTTPServer) ListenAndServe(ctx context.Context, addr string, handler http.Handler) error {
	srv := &http.Server{
		Addr:              addr,
		Handler:           handler,
		ReadHeaderTimeout: readHeaderTimeout,
	}

	errCh := make(chan error, 1)
	go func() {
		errCh <- srv.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("shutdown: %w", err)
	}
	if err := <-errCh; err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}

type options struct {
	srv httpServer
}

type StartOption func(o *options)

// WithHTTPServer replaces the listener, mostly for tests.
func WithHTTPServer(srv httpServer) StartOption {
	return func(o *options) {
		o.srv = srv
	}
}

// GetStartCmd returns the cobra command that starts the verifier.
func GetStartCmd(opts ...StartOption) *cobra.Command {
	o := &options{srv: &HTTPServer{}}
	for _, opt := range opts {
		opt(o)
	}

	startCmd := createStartCmd(o.srv)
	createFlags(startCmd)

	return startCmd
}

func createStartCmd(srv httpServer) *cobra.Command {
	return &cobra.Command{
		Use:   "start",
		Short: "Start the verifier",
		Long:  "Start the OpenID4VP verifier that issues signed presentation requests",
		RunE: func(cmd *cobra.Command, args []string) error {
			loadEnv()

			params, err := getStartupParameters(cmd)
			if err != nil {
				return err
			}

			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()

			return startVerifier(ctx, params, srv)
		},
	}
}

// loadEnv reads ENV_FILE_PATH, or .env, without overriding variables already set.
func loadEnv() {
	path := defaultEnvFile
	if p := os.Getenv(envFilePathKey); p != "" {
		path = p
	}

	if err := godotenv.Load(path); err != nil {
		if !os.IsNotExist(err) {
			logger.Warn("failed to load env file", zap.String("path", path), log.WithError(err))
		}
	}
}

func startVerifier(ctx context.Context, params *startupParameters, srv httpServer) error {
	log.SetLevel(params.logLevel)
	if err := log.SetEncoding(params.logEncoding); err != nil {
		return err
	}

	siteURL, err := url.Parse(params.siteDNS)
	if err != nil {
		return fmt.Errorf("parse %s: %w", siteDNSFlagName, err)
	}

	keys, err := cryptoroot.LoadOrGenerate(params.keysDir, siteURL.Hostname())
	if err != nil {
		return fmt.Errorf("load signing key: %w", err)
	}

	requestStore, closeStore, err := createStore(ctx, params)
	if err != nil {
		return err
	}
	defer closeStore()

	registry := prometheus.NewRegistry()

	builder := openid4vp.NewBuilder(params.clientName)
	builder.TTL = params.requestTTL

	controller, err := verifier.NewController(requestStore, keys, params.siteDNS,
		verifier.WithMetrics(metrics.NewPrometheus(registry)),
		verifier.WithBuilder(builder),
	)
	if err != nil {
		return err
	}

	router := server.NewServer(controller,
		server.WithDebug(params.debugEnabled),
		server.WithPublicDir(params.publicDir),
		server.WithGatherer(registry),
		server.WithKeys(keys),
	).Router()

	addr := ":" + params.port
	logger.Info("starting verifier",
		zap.String("addr", addr),
		log.WithURL(params.siteDNS),
		zap.String("store", params.storeType),
	)

	return srv.ListenAndServe(ctx, addr, constructCORSHandler(router))
}

func createStore(ctx context.Context, params *startupParameters) (store.Store, func(), error) {
	switch params.storeType {
	case storeTypeRedis:
		client, err := store.NewRedisClient(params.redis.addrs,
			store.WithRedisPassword(params.redis.password),
			store.WithRedisMasterName(params.redis.masterName),
		)
		if err != nil {
			return nil, nil, err
		}

		closeFn := func() {
			if err := client.Close(); err != nil {
				logger.Warn("failed to close redis client", log.WithError(err))
			}
		}
		return store.NewRedisStore(client, params.requestTTL, params.requestTTL), closeFn, nil
	default:
		memStore := store.NewMemStore(store.WithTTL(params.requestTTL), store.WithRetention(params.requestTTL))
		if params.sweepInterval > 0 {
			go memStore.Run(ctx, params.sweepInterval)
		}
		return memStore, func() {}, nil
	}
}

func constructCORSHandler(handler http.Handler) http.Handler {
	return handlers.CORS(
		handlers.AllowedMethods([]string{http.MethodGet, http.MethodPost, http.MethodOptions}),
		handlers.AllowedHeaders([]string{"content-type"}),
		handlers.AllowedOrigins([]string{"*"}),
	)(handler)
}
