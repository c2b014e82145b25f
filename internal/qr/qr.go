package qr

import (
	"encoding/base64"
	"errors"

	"github.com/skip2/go-qrcode"
)

const DefaultSize = 300

var ErrEmptyText = errors.New("text is required")

// EncodePNG renders text as a PNG QR code with the highest error correction level.
func EncodePNG(text string, size int) ([]byte, error) {
	if text == "" {
		return nil, ErrEmptyText
	}
	if size <= 0 {
		size = DefaultSize
	}
	return qrcode.Encode(text, qrcode.Highest, size)
}

// DataURL renders text as a base64 PNG data URL usable as an <img> src.
func DataURL(text string, size int) (string, error) {
	png, err := EncodePNG(text, size)
	if err != nil {
		return "", err
	}
	return "data:image/png;base64," + base64.StdEncoding.EncodeToString(png), nil
}
