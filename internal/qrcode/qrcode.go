// Package qrcode renders session payloads as PNG images for the teacher display.
package qrcode

import (
	"errors"

	goqrcode "github.com/skip2/go-qrcode"
)

// DefaultSize is the PNG edge length in pixels.
const DefaultSize = 256

var ErrEmptyPayload = errors.New("qr payload is empty")

// PNG encodes payload at medium error correction. size <= 0 uses DefaultSize.
func PNG(payload string, size int) ([]byte, error) {
	if payload == "" {
		return nil, ErrEmptyPayload
	}
	if size <= 0 {
		size = DefaultSize
	}
	return goqrcode.Encode(payload, goqrcode.Medium, size)
}
