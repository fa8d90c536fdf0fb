// Package compact turns a credential into a printable payload small enough
// for a QR code, and back.
package compact

import (
	"bytes"
	"encoding/base64"
	"encoding/json"
	"errors"
	"io"

	"github.com/klauspost/compress/gzip"

	"attestor/internal/credential"
	dErrors "attestor/pkg/domain-errors"
)

// MaxDecodedBytes bounds the inflated size of a payload.
const MaxDecodedBytes = 1 << 20

// ErrMalformedPayload marks payloads that cannot be decoded at all.
var ErrMalformedPayload = errors.New("malformed compact payload")

// Encode serializes c as compact JSON, gzips it and base64 encodes the result.
func Encode(c credential.Credential) (string, error) {
	raw, err := json.Marshal(c)
	if err != nil {
		return "", dErrors.Wrap(err, dErrors.CodeInternal, "serialize credential")
	}

	var buf bytes.Buffer
	zw, err := gzip.NewWriterLevel(&buf, gzip.BestCompression)
	if err != nil {
		return "", dErrors.Wrap(err, dErrors.CodeInternal, "init compressor")
	}
	if _, err := zw.Write(raw); err != nil {
		return "", dErrors.Wrap(err, dErrors.CodeInternal, "compress credential")
	}
	if err := zw.Close(); err != nil {
		return "", dErrors.Wrap(err, dErrors.CodeInternal, "compress credential")
	}
	return base64.StdEncoding.EncodeToString(buf.Bytes()), nil
}

// Decode reverses Encode. There is no partial decode: any failure is a
// malformed payload.
func Decode(payload string) (credential.Credential, error) {
	compressed, err := base64.StdEncoding.DecodeString(payload)
	if err != nil {
		return credential.Credential{}, malformed(err, "payload is not base64")
	}

	zr, err := gzip.NewReader(bytes.NewReader(compressed))
	if err != nil {
		return credential.Credential{}, malformed(err, "payload is not gzip")
	}
	defer zr.Close()

	raw, err := io.ReadAll(io.LimitReader(zr, MaxDecodedBytes+1))
	if err != nil {
		return credential.Credential{}, malformed(err, "payload is truncated")
	}
	if len(raw) > MaxDecodedBytes {
		return credential.Credential{}, malformed(nil, "payload inflates beyond the size limit")
	}

	c, err := credential.Parse(raw)
	if err != nil {
		return credential.Credential{}, malformed(err, "payload is not a credential")
	}
	if c.Proof == nil {
		return credential.Credential{}, malformed(nil, "payload has no proof")
	}
	return c, nil
}

func malformed(cause error, msg string) error {
	if cause == nil {
		return dErrors.Wrap(ErrMalformedPayload, dErrors.CodeMalformedPayload, msg)
	}
	return dErrors.Wrap(errors.Join(ErrMalformedPayload, cause), dErrors.CodeMalformedPayload, msg)
}
