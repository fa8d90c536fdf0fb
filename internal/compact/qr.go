package compact

import (
	qrcode "github.com/skip2/go-qrcode"

	dErrors "attestor/pkg/domain-errors"
)

// DefaultQRSize is the rendered image edge in pixels.
const DefaultQRSize = 512

// RenderQR draws payload as a PNG QR code with low error correction, which
// leaves the most room for data. Payloads over capacity are an error.
func RenderQR(payload string, size int) ([]byte, error) {
	if size <= 0 {
		size = DefaultQRSize
	}
	png, err := qrcode.Encode(payload, qrcode.Low, size)
	if err != nil {
		return nil, dErrors.Wrap(err, dErrors.CodeUnprocessable, "payload does not fit in a QR code")
	}
	return png, nil
}
