package server

import (
	"bytes"
	"io"
	"net/http"

	"github.com/felixge/httpsnoop"
	"go.uber.org/zap"

	"github.com/kokukuma/openid4vp-verifier/internal/log"
)

// logPayloadPeek bounds how much of a body the middleware reads ahead of the handler.
const logPayloadPeek = 512

type peekedBody struct {
	io.Reader
	io.Closer
}

// LoggingMiddleware logs method, path, body, status and duration of every request.
func LoggingMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		var payload []byte
		if r.Body != nil && r.ContentLength != 0 {
			payload, _ = io.ReadAll(io.LimitReader(r.Body, logPayloadPeek))
			r.Body = peekedBody{
				Reader: io.MultiReader(bytes.NewReader(payload), r.Body),
				Closer: r.Body,
			}
		}

		m := httpsnoop.CaptureMetrics(next, w, r)

		fields := append(make([]zap.Field, 0, 5),
			log.WithMethod(r.Method),
			log.WithPath(r.URL.Path),
			log.WithStatus(m.Code),
			log.WithDuration(m.Duration),
		)
		if len(payload) > 0 {
			fields = append(fields, log.WithPayload(payload))
		}
		logger.Info("request", fields...)
	})
}
