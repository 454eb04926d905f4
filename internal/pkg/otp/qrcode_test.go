package otp

import (
	"bytes"
	"encoding/base64"
	"image/png"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestQRCodePNG(t *testing.T) {
	uri, err := newTestTOTP().ProvisioningURI(rfcSecret, "bob@example.com")
	require.NoError(t, err)

	encoded, err := QRCodePNG(uri, 0)
	require.NoError(t, err)

	raw, err := base64.StdEncoding.DecodeString(encoded)
	require.NoError(t, err)

	img, err := png.Decode(bytes.NewReader(raw))
	require.NoError(t, err)
	assert.Equal(t, DefaultQRSize, img.Bounds().Dx())
	assert.Equal(t, DefaultQRSize, img.Bounds().Dy())

	_, err = QRCodePNG("%zz", 100)
	assert.Error(t, err)
}
