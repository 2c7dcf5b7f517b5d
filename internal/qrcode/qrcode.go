// Package qrcode renders links as PNG QR codes embedded in data URLs.
package qrcode

import (
	"encoding/base64"
	"fmt"

	qr "github.com/skip2/go-qrcode"
)

// DefaultSize is the PNG edge length in pixels.
const DefaultSize = 256

const dataURLPrefix = "data:image/png;base64,"

// DataURL encodes content as a QR code and returns it as a base64 PNG data URL.
func DataURL(content string, size int) (string, error) {
	if size <= 0 {
		size = DefaultSize
	}
	png, err := qr.Encode(content, qr.Medium, size)
	if err != nil {
		return "", fmt.Errorf("failed to generate QR code: %w", err)
	}
	return dataURLPrefix + base64.StdEncoding.EncodeToString(png), nil
}
