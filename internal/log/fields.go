package log

import (
	"time"
	"unicode/utf8"

	"go.uber.org/zap"
)

// Log Fields.
const (
	FieldRequestID = "requestID"
	FieldHostname  = "hostname"
	FieldMethod    = "method"
	FieldPath      = "path"
	FieldPayload   = "payload"
	FieldStatus    = "status"
	FieldDuration  = "duration"
	FieldOutcome   = "outcome"
	FieldURL       = "url"
)

const maxPayloadLen = 200

func WithRequestID(id string) zap.Field {
	return zap.String(FieldRequestID, id)
}

func WithHostname(hostname string) zap.Field {
	return zap.String(FieldHostname, hostname)
}

func WithMethod(method string) zap.Field {
	return zap.String(FieldMethod, method)
}

func WithPath(path string) zap.Field {
	return zap.String(FieldPath, path)
}

// WithPayload truncates the body so request logs stay one line. The cut never splits a rune.
func WithPayload(payload []byte) zap.Field {
	if len(payload) <= maxPayloadLen {
		return zap.String(FieldPayload, string(payload))
	}

	cut := maxPayloadLen
	for cut > 0 && !utf8.RuneStart(payload[cut]) {
		cut--
	}
	return zap.String(FieldPayload, string(payload[:cut])+"...")
}

func WithStatus(status int) zap.Field {
	return zap.Int(FieldStatus, status)
}

func WithDuration(d time.Duration) zap.Field {
	return zap.Duration(FieldDuration, d)
}

func WithOutcome(outcome string) zap.Field {
	return zap.String(FieldOutcome, outcome)
}

func WithURL(url string) zap.Field {
	return zap.String(FieldURL, url)
}

func WithError(err error) zap.Field {
	return zap.Error(err)
}
