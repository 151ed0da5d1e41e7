package imaging

import (
	"bytes"
	"encoding/base64"
	"fmt"
	"image"
	"image/color"
	"image/jpeg"
	"image/png"
	"io"
	"net/http"
	"strings"

	"golang.org/x/image/draw"

	"github.com/erazemk/zaloga/internal/model"
)

// MaxDimension is the maximum width or height for stored photos.
const MaxDimension = 1024

// MaxSignatureDimension bounds stored signature images.
const MaxSignatureDimension = 800

// MaxUploadBytes bounds any single decoded upload.
const MaxUploadBytes = 10 << 20

// JPEGQuality is the compression quality for JPEG output.
const JPEGQuality = 85

// AllowedMIME lists the accepted photo MIME types.
var AllowedMIME = map[string]bool{
	"image/jpeg": true,
	"image/png":  true,
}

// Result is an encoded image ready for storage.
type Result struct {
	Data []byte
	MIME string
	Ext  string
}

// Process validates a photo by sniffing its bytes, downscales it to
// MaxDimension and re-encodes it as JPEG.
func Process(r io.Reader) (*Result, error) {
	data, err := io.ReadAll(io.LimitReader(r, MaxUploadBytes+1))
	if err != nil {
		return nil, fmt.Errorf("reading image data: %w", err)
	}
	if len(data) > MaxUploadBytes {
		return nil, model.Invalid("image", "image is too large")
	}

	detected := http.DetectContentType(data)
	if !AllowedMIME[detected] {
		return nil, model.Invalid("image", fmt.Sprintf("unsupported image format %s, only JPEG and PNG are accepted", detected))
	}

	img, _, err := image.Decode(bytes.NewReader(data))
	if err != nil {
		return nil, model.Invalid("image", "image could not be decoded")
	}

	img = downscale(img, MaxDimension)

	// JPEG has no alpha; flatten transparent PNGs onto white.
	flat := image.NewRGBA(img.Bounds())
	draw.Draw(flat, flat.Bounds(), image.NewUniform(color.White), image.Point{}, draw.Src)
	draw.Draw(flat, flat.Bounds(), img, img.Bounds().Min, draw.Over)

	var buf bytes.Buffer
	if err := jpeg.Encode(&buf, flat, &jpeg.Options{Quality: JPEGQuality}); err != nil {
		return nil, fmt.Errorf("encoding JPEG: %w", err)
	}

	return &Result{Data: buf.Bytes(), MIME: "image/jpeg", Ext: ".jpg"}, nil
}

// Signature validates a captured signature. It must be a PNG with at least
// one visible pixel. The result is re-encoded as an 8-bit PNG so that it can
// be embedded in reports.
func Signature(data []byte) (*Result, error) {
	if len(data) == 0 {
		return nil, model.Invalid("signature", "signature is required")
	}
	if len(data) > MaxUploadBytes {
		return nil, model.Invalid("signature", "signature is too large")
	}
	if http.DetectContentType(data) != "image/png" {
		return nil, model.Invalid("signature", "signature must be a PNG image")
	}

	img, err := png.Decode(bytes.NewReader(data))
	if err != nil {
		return nil, model.Invalid("signature", "signature could not be decoded")
	}
	if blank(img) {
		return nil, model.Invalid("signature", "signature is empty")
	}

	img = downscale(img, MaxSignatureDimension)

	nrgba := image.NewNRGBA(img.Bounds())
	draw.Draw(nrgba, nrgba.Bounds(), img, img.Bounds().Min, draw.Src)

	var buf bytes.Buffer
	if err := png.Encode(&buf, nrgba); err != nil {
		return nil, fmt.Errorf("encoding PNG: %w", err)
	}
	return &Result{Data: buf.Bytes(), MIME: "image/png", Ext: ".png"}, nil
}

// DecodeDataURL decodes a base64 data URL such as the output of a canvas
// toDataURL call. It returns the payload and its declared MIME type.
func DecodeDataURL(s string) ([]byte, string, error) {
	rest, ok := strings.CutPrefix(strings.TrimSpace(s), "data:")
	if !ok {
		return nil, "", model.Invalid("data_url", "not a data URL")
	}
	meta, payload, ok := strings.Cut(rest, ",")
	if !ok {
		return nil, "", model.Invalid("data_url", "data URL has no payload")
	}
	mime, encoding, _ := strings.Cut(meta, ";")
	if encoding != "base64" {
		return nil, "", model.Invalid("data_url", "data URL must be base64 encoded")
	}
	if base64.StdEncoding.DecodedLen(len(payload)) > MaxUploadBytes {
		return nil, "", model.Invalid("data_url", "data URL is too large")
	}

	data, err := base64.StdEncoding.DecodeString(payload)
	if err != nil {
		return nil, "", model.Invalid("data_url", "data URL payload is not valid base64")
	}
	return data, mime, nil
}

// blank reports whether every pixel is fully transparent.
func blank(img image.Image) bool {
	b := img.Bounds()
	for y := b.Min.Y; y < b.Max.Y; y++ {
		for x := b.Min.X; x < b.Max.X; x++ {
			if _, _, _, a := img.At(x, y).RGBA(); a != 0 {
				return false
			}
		}
	}
	return true
}

// downscale resizes the image so neither dimension exceeds maxDim,
// preserving the aspect ratio. Smaller images are returned as is.
func downscale(img image.Image, maxDim int) image.Image {
	bounds := img.Bounds()
	w := bounds.Dx()
	h := bounds.Dy()

	if w <= maxDim && h <= maxDim {
		return img
	}

	newW, newH := maxDim, maxDim
	if w > h {
		newH = max(1, h*maxDim/w)
	} else {
		newW = max(1, w*maxDim/h)
	}

	dst := image.NewRGBA(image.Rect(0, 0, newW, newH))
	draw.CatmullRom.Scale(dst, dst.Bounds(), img, bounds, draw.Over, nil)
	return dst
}
