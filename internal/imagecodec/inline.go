package imagecodec

import (
	"bytes"
	"encoding/base64"
	"fmt"
	"image"
	"image/png"
	"strings"

	"github.com/jmylchreest/qnotify/internal/model"
)

// EncodeInline serializes img as PNG and returns it as an inline image
// string: "data:image/png;base64," followed by the base64 bytes.
func EncodeInline(img image.Image) (string, error) {
	if img == nil || img.Bounds().Empty() {
		return "", fmt.Errorf("cannot encode empty image")
	}

	var buf bytes.Buffer
	if err := png.Encode(&buf, img); err != nil {
		return "", fmt.Errorf("failed to encode png: %w", err)
	}

	return model.InlineImagePrefix + base64.StdEncoding.EncodeToString(buf.Bytes()), nil
}

// ParseInline returns the PNG bytes of an inline image string.
// It reports false if s lacks the prefix or the payload is not valid base64.
func ParseInline(s string) ([]byte, bool) {
	payload, ok := strings.CutPrefix(s, model.InlineImagePrefix)
	if !ok || payload == "" {
		return nil, false
	}

	data, err := base64.StdEncoding.DecodeString(payload)
	if err != nil {
		return nil, false
	}
	return data, true
}

// DecodeInline parses an inline image string back into a bitmap.
func DecodeInline(s string) (image.Image, error) {
	data, ok := ParseInline(s)
	if !ok {
		return nil, fmt.Errorf("not an inline image string")
	}

	img, err := png.Decode(bytes.NewReader(data))
	if err != nil {
		return nil, fmt.Errorf("failed to decode png: %w", err)
	}
	return img, nil
}
