package vision

import (
	"bytes"
	"encoding/base64"
	"fmt"
	"image"
	"strings"

	_ "image/gif"
	_ "image/jpeg"
	_ "image/png"

	"github.com/gen2brain/go-fitz"
	"github.com/nfnt/resize"
)

const InputSize = 224

// ImageNet channel statistics, matching what the classifiers were trained
// with.
var (
	imagenetMean = [3]float32{0.485, 0.456, 0.406}
	imagenetStd  = [3]float32{0.229, 0.224, 0.225}
)

var pdfMagic = []byte("%PDF")

// PayloadBytes strips an optional data URL prefix from the payload and
// base64 decodes the rest.
func PayloadBytes(payload string) ([]byte, error) {
	if i := strings.Index(payload, ","); i >= 0 && strings.Contains(payload[:i], "data:") {
		payload = payload[i+1:]
	}
	payload = strings.TrimSpace(payload)

	raw, err := base64.StdEncoding.DecodeString(payload)
	if err != nil {
		// Some clients strip the padding.
		unpadded, rawErr := base64.RawStdEncoding.DecodeString(payload)
		if rawErr != nil {
			return nil, fmt.Errorf("invalid base64 payload: %w", err)
		}
		raw = unpadded
	}
	return raw, nil
}

// DecodeImage accepts a base64 payload, with or without a data URL prefix,
// and returns the decoded image. PDF payloads are rendered to an image of
// their first page so scanned reports can be submitted directly.
func DecodeImage(payload string) (image.Image, error) {
	raw, err := PayloadBytes(payload)
	if err != nil {
		return nil, err
	}

	if bytes.HasPrefix(raw, pdfMagic) {
		return renderPdfPage(raw)
	}

	img, _, err := image.Decode(bytes.NewReader(raw))
	if err != nil {
		return nil, fmt.Errorf("could not decode image: %w", err)
	}
	return img, nil
}

func renderPdfPage(raw []byte) (image.Image, error) {
	doc, err := fitz.NewFromMemory(raw)
	if err != nil {
		return nil, fmt.Errorf("could not open pdf: %w", err)
	}
	defer doc.Close()

	if doc.NumPage() == 0 {
		return nil, fmt.Errorf("pdf has no pages")
	}

	img, err := doc.Image(0)
	if err != nil {
		return nil, fmt.Errorf("could not render pdf page: %w", err)
	}
	return img, nil
}

// Preprocess scales the image to the network input size and normalizes each
// channel with the ImageNet statistics, producing NCHW float32 data. Inputs
// are treated as RGB regardless of the source color model.
func Preprocess(img image.Image) []float32 {
	resized := resize.Resize(InputSize, InputSize, img, resize.Bilinear)

	plane := InputSize * InputSize
	data := make([]float32, 3*plane)
	for y := 0; y < InputSize; y++ {
		for x := 0; x < InputSize; x++ {
			r, g, b, _ := resized.At(x, y).RGBA()
			i := y*InputSize + x
			data[i] = (float32(r)/65535.0 - imagenetMean[0]) / imagenetStd[0]
			data[plane+i] = (float32(g)/65535.0 - imagenetMean[1]) / imagenetStd[1]
			data[2*plane+i] = (float32(b)/65535.0 - imagenetMean[2]) / imagenetStd[2]
		}
	}
	return data
}
