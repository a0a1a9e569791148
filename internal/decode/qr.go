package decode

import (
	"image"

	"github.com/makiuchi-d/gozxing"
	"github.com/makiuchi-d/gozxing/qrcode"
)

// QR decodes QR codes through the ZXing port. A QR is not safe for
// concurrent use; give each goroutine its own.
type QR struct {
	reader gozxing.Reader
}

var _ Decoder = (*QR)(nil)

func NewQR() *QR {
	return &QR{reader: qrcode.NewQRCodeReader()}
}

func (q *QR) Decode(img image.Image) (Result, bool, error) {
	bmp, err := gozxing.NewBinaryBitmapFromImage(img)
	if err != nil {
		return Result{}, false, err
	}
	res, err := q.reader.Decode(bmp, nil)
	if err != nil {
		// Reader exceptions cover not-found as well as codes too damaged
		// to checksum. Either way this frame has nothing usable in it.
		if _, miss := err.(gozxing.ReaderException); miss {
			return Result{}, false, nil
		}
		return Result{}, false, err
	}
	return Result{
		Payload:   res.GetText(),
		Symbology: res.GetBarcodeFormat().String(),
	}, true, nil
}
