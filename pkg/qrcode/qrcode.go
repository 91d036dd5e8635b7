// Package qrcode renders login tokens as PNG QR codes embedded in data URLs.
package qrcode

import (
	"encoding/base64"
	"fmt"

	qr "github.com/skip2/go-qrcode"
)

const (
	DataURLPrefix = "data:image/png;base64,"
	DefaultSize   = 256
)

// PNG encodes content with medium error correction.
func PNG(content string, size int) ([]byte, error) {
	if content == "" {
		return nil, fmt.Errorf("qrcode: empty content")
	}
	if size <= 0 {
		size = DefaultSize
	}

	png, err := qr.Encode(content, qr.Medium, size)
	if err != nil {
		return nil, fmt.Errorf("qrcode: %w", err)
	}
	return png, nil
}

// DataURL returns content as a "data:image/png;base64,..." string suitable for
// an <img src>.
func DataURL(content string, size int) (string, error) {
	png, err := PNG(content, size)
	if err != nil {
		return "", err
	}
	return DataURLPrefix + base64.StdEncoding.EncodeToString(png), nil
}

// Terminal renders content as text blocks for a terminal.
func Terminal(content string) (string, error) {
	code, err := qr.New(content, qr.Medium)
	if err != nil {
		return "", fmt.Errorf("qrcode: %w", err)
	}
	return code.ToSmallString(false), nil
}
