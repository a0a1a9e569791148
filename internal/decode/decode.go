// Package decode is the symbology boundary. A Decoder turns frames into
// payloads; a frame without a readable code is a miss, not an error, so
// callers never log the common case.
package decode

import "image"

// Result is one decoded code.
type Result struct {
	Payload   string
	Symbology string // engine-reported, e.g. "QR_CODE"
}

// Decoder extracts at most one code from an image. ok reports whether a
// code was found; err is reserved for genuine engine failures.
type Decoder interface {
	Decode(img image.Image) (res Result, ok bool, err error)
}
