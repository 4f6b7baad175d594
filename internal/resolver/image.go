package resolver

import (
	"bytes"
	"image"
	_ "image/gif" // Register GIF decoder
	"image/jpeg"
	_ "image/png" // Register PNG decoder
	"net/http"
	"strings"

	"github.com/disintegration/imaging"
)

const (
	fallbackMIMEType = "image/jpeg"
	jpegQuality      = 85
)

// sniffMIMEType returns the detected image MIME type, falling back to image/jpeg
func sniffMIMEType(data []byte) string {
	mime := http.DetectContentType(data)
	if strings.HasPrefix(mime, "image/") {
		return mime
	}
	return fallbackMIMEType
}

// prepareImage bounds the longest side of data to maxDim, re-encoding as JPEG
// when it had to shrink. Undecodable input is passed through unchanged.
func prepareImage(data []byte, maxDim int) ([]byte, string, bool) {
	mime := sniffMIMEType(data)
	if maxDim <= 0 {
		return data, mime, false
	}

	cfg, _, err := image.DecodeConfig(bytes.NewReader(data))
	if err != nil || (cfg.Width <= maxDim && cfg.Height <= maxDim) {
		return data, mime, false
	}

	img, _, err := image.Decode(bytes.NewReader(data))
	if err != nil {
		return data, mime, false
	}

	resized := imaging.Fit(img, maxDim, maxDim, imaging.Lanczos)

	var buf bytes.Buffer
	if err := jpeg.Encode(&buf, resized, &jpeg.Options{Quality: jpegQuality}); err != nil {
		return data, mime, false
	}
	return buf.Bytes(), "image/jpeg", true
}
