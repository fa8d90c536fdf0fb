package quality

import (
	"bytes"
	"image"
	_ "image/gif"
	_ "image/jpeg"
	_ "image/png"
	"io"

	_ "golang.org/x/image/bmp"
	_ "golang.org/x/image/tiff"
	_ "golang.org/x/image/webp"

	dErrors "attestor/pkg/domain-errors"
)

// Decode reads a raster image in any registered format and returns the
// format name.
func Decode(r io.Reader) (image.Image, string, error) {
	img, format, err := image.Decode(r)
	if err != nil {
		return nil, "", dErrors.Wrap(err, dErrors.CodeInvalidInput, "unsupported or corrupt image")
	}
	return img, format, nil
}

// DecodeBytes is Decode over an in-memory buffer.
func DecodeBytes(b []byte) (image.Image, string, error) {
	return Decode(bytes.NewReader(b))
}
