package qr

import (
	"bytes"
	"encoding/base64"
	"image/png"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const link = "openid4vp://?client=localhost&request_uri=http%3A%2F%2Flocalhost%2Fpresentation-request%2Fabc"

func TestEncodePNG(t *testing.T) {
	data, err := EncodePNG(link, 0)
	require.NoError(t, err)

	img, err := png.Decode(bytes.NewReader(data))
	require.NoError(t, err)
	assert.Equal(t, DefaultSize, img.Bounds().Dx())
	assert.Equal(t, DefaultSize, img.Bounds().Dy())
}

func TestEncodePNG_Empty(t *testing.T) {
	_, err := EncodePNG("", DefaultSize)
	require.ErrorIs(t, err, ErrEmptyText)

	_, err = DataURL("", DefaultSize)
	require.ErrorIs(t, err, ErrEmptyText)
}

func TestDataURL(t *testing.T) {
	url, err := DataURL(link, 128)
	require.NoError(t, err)

	const prefix = "data:image/png;base64,"
	require.True(t, strings.HasPrefix(url, prefix))

	data, err := base64.StdEncoding.DecodeString(strings.TrimPrefix(url, prefix))
	require.NoError(t, err)

	img, err := png.Decode(bytes.NewReader(data))
	require.NoError(t, err)
	assert.Equal(t, 128, img.Bounds().Dx())
}
