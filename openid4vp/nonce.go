package openid4vp

import (
	"strings"

	"github.com/google/uuid"
)

// NewNonce returns a random v4 uuid with its separators turned into underscores.
func NewNonce() (string, error) {
	id, err := uuid.NewRandom()
	if err != nil {
		return "", err
	}
	return strings.ReplaceAll(id.String(), "-", "_"), nil
}
