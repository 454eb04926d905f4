package otp

import (
	"bytes"
	"encoding/base64"
	"image/png"

	"github.com/pquerna/otp"
)

// DefaultQRSize is the edge length in pixels of QRCodePNG images.
const DefaultQRSize = 200

// QRCodePNG renders uri as a base64 encoded PNG QR code.
func QRCodePNG(uri string, size int) (string, error) {
	if size <= 0 {
		size = DefaultQRSize
	}

	key, err := otp.NewKeyFromURL(uri)
	if err != nil {
		return "", err
	}

	img, err := key.Image(size, size)
	if err != nil {
		return "", err
	}

	var buf bytes.Buffer
	if err := png.Encode(&buf, img); err != nil {
		return "", err
	}

	return base64.StdEncoding.EncodeToString(buf.Bytes()), nil
}
