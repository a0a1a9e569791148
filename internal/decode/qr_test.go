package decode

import (
	"image"
	"image/color"
	"testing"

	"github.com/makiuchi-d/gozxing"
	"github.com/makiuchi-d/gozxing/qrcode"
)

func encodeQR(t *testing.T, payload string) image.Image {
	t.Helper()
	matrix, err := qrcode.NewQRCodeWriter().Encode(
		payload, gozxing.BarcodeFormat_QR_CODE, 256, 256, nil)
	if err != nil {
		t.Fatalf("encoding %q: %v", payload, err)
	}
	img := image.NewGray(image.Rect(0, 0, matrix.GetWidth(), matrix.GetHeight()))
	for y := 0; y < matrix.GetHeight(); y++ {
		for x := 0; x < matrix.GetWidth(); x++ {
			if matrix.Get(x, y) {
				img.SetGray(x, y, color.Gray{Y: 0})
			} else {
				img.SetGray(x, y, color.Gray{Y: 255})
			}
		}
	}
	return img
}

func TestQRDecodeRoundtrip(t *testing.T) {
	const payload = "https://example.com/checkin/42"
	res, ok, err := NewQR().Decode(encodeQR(t, payload))
	if err != nil {
		t.Fatalf("Decode: %v", err)
	}
	if !ok {
		t.Fatal("Decode found nothing in a rendered code")
	}
	if res.Payload != payload {
		t.Errorf("payload = %q, want %q", res.Payload, payload)
	}
	if res.Symbology != "QR_CODE" {
		t.Errorf("symbology = %q, want QR_CODE", res.Symbology)
	}
}

func TestQRDecodeMissIsNotAnError(t *testing.T) {
	blank := image.NewGray(image.Rect(0, 0, 128, 128))
	for y := 0; y < 128; y++ {
		for x := 0; x < 128; x++ {
			blank.SetGray(x, y, color.Gray{Y: 255})
		}
	}

	res, ok, err := NewQR().Decode(blank)
	if err != nil {
		t.Fatalf("a codeless frame must not error, got %v", err)
	}
	if ok {
		t.Fatalf("found a phantom code: %+v", res)
	}
}
