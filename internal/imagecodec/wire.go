// Package imagecodec converts bitmaps to and from the raw pixel structure
// carried in notification image hints (D-Bus signature "(iiibiiay)"), and
// to inline PNG data strings.
package imagecodec

import (
	"errors"
	"fmt"
	"image"
	"image/color"

	"github.com/godbus/dbus/v5"
	"github.com/nfnt/resize"
)

// MaxWireHeight is the tallest bitmap put on the wire. Taller bitmaps are
// scaled down preserving aspect ratio.
const MaxWireHeight = 128

// Decode errors.
var (
	ErrInvalidDimensions   = errors.New("invalid image dimensions")
	ErrUnsupportedChannels = errors.New("unsupported channel count")
	ErrUnsupportedDepth    = errors.New("unsupported pixel depth")
	ErrPixelLength         = errors.New("pixel data length mismatch")
	ErrMalformedStruct     = errors.New("malformed image structure")
)

// PixelData is the wire pixel structure.
type PixelData struct {
	Width         int32
	Height        int32
	RowStride     int32
	HasAlpha      bool
	BitsPerSample int32
	Channels      int32
	Data          []byte
}

// IsZero reports whether p is the structure produced for an empty bitmap.
func (p PixelData) IsZero() bool {
	return p.Width == 0 && p.Height == 0 && p.RowStride == 0 && !p.HasAlpha &&
		p.BitsPerSample == 0 && p.Channels == 0 && len(p.Data) == 0
}

// ToArgs returns p in the form godbus uses for a struct inside a variant.
func (p PixelData) ToArgs() []any {
	data := p.Data
	if data == nil {
		data = []byte{}
	}
	return []any{p.Width, p.Height, p.RowStride, p.HasAlpha, p.BitsPerSample, p.Channels, data}
}

// PixelDataFromArgs converts a hint value into PixelData. It accepts a
// dbus.Variant wrapping the struct, the seven-element []any form godbus
// produces when decoding a struct, or a PixelData value.
func PixelDataFromArgs(v any) (PixelData, error) {
	if variant, ok := v.(dbus.Variant); ok {
		v = variant.Value()
	}

	switch s := v.(type) {
	case PixelData:
		return s, nil
	case *PixelData:
		if s == nil {
			return PixelData{}, ErrMalformedStruct
		}
		return *s, nil
	case []any:
		return pixelDataFromSlice(s)
	default:
		return PixelData{}, fmt.Errorf("%w: unexpected type %T", ErrMalformedStruct, v)
	}
}

func pixelDataFromSlice(s []any) (PixelData, error) {
	if len(s) != 7 {
		return PixelData{}, fmt.Errorf("%w: expected 7 fields, got %d", ErrMalformedStruct, len(s))
	}

	var p PixelData
	ints := []*int32{&p.Width, &p.Height, &p.RowStride, nil, &p.BitsPerSample, &p.Channels}
	for i, dst := range ints {
		if dst == nil {
			continue
		}
		n, ok := s[i].(int32)
		if !ok {
			return PixelData{}, fmt.Errorf("%w: field %d is %T, want int32", ErrMalformedStruct, i, s[i])
		}
		*dst = n
	}

	hasAlpha, ok := s[3].(bool)
	if !ok {
		return PixelData{}, fmt.Errorf("%w: field 3 is %T, want bool", ErrMalformedStruct, s[3])
	}
	p.HasAlpha = hasAlpha

	data, ok := s[6].([]byte)
	if !ok {
		return PixelData{}, fmt.Errorf("%w: field 6 is %T, want []byte", ErrMalformedStruct, s[6])
	}
	p.Data = data

	return p, nil
}

// EncodeWire encodes img for the host byte order.
func EncodeWire(img image.Image) PixelData {
	return EncodeWireOrder(img, HostOrder)
}

// EncodeWireOrder encodes img as four bytes per pixel with alpha, using the
// channel reordering for byte order o. A nil or empty image yields the
// all-zero structure.
func EncodeWireOrder(img image.Image, o ByteOrder) PixelData {
	if img == nil || img.Bounds().Empty() {
		return PixelData{Data: []byte{}}
	}

	if img.Bounds().Dy() > MaxWireHeight {
		img = resize.Resize(0, MaxWireHeight, img, resize.Bilinear)
	}

	b := img.Bounds()
	w, h := b.Dx(), b.Dy()
	stride := w * 4
	data := make([]byte, stride*h)
	bo := o.binary()
	gray := true

	for y := 0; y < h; y++ {
		for x := 0; x < w; x++ {
			c := color.NRGBAModel.Convert(img.At(b.Min.X+x, b.Min.Y+y)).(color.NRGBA)
			if c.R != c.G || c.G != c.B {
				gray = false
			}
			off := y*stride + x*4
			bo.PutUint32(data[off:off+4], EncodeWord(o, packARGB(c.R, c.G, c.B, c.A)))
		}
	}

	channels := int32(4)
	if gray {
		channels = 1
	}

	return PixelData{
		Width:         int32(w),
		Height:        int32(h),
		RowStride:     int32(stride),
		HasAlpha:      true,
		BitsPerSample: 32 / channels,
		Channels:      channels,
		Data:          data,
	}
}

// DecodeWire decodes p for the host byte order.
func DecodeWire(p PixelData) (*image.NRGBA, error) {
	return DecodeWireOrder(p, HostOrder)
}

// DecodeWireOrder reconstructs a bitmap from p, applying the inverse of the
// channel reordering for byte order o to four-byte pixels. The all-zero
// structure decodes to an empty bitmap.
func DecodeWireOrder(p PixelData, o ByteOrder) (*image.NRGBA, error) {
	if p.IsZero() {
		return image.NewNRGBA(image.Rectangle{}), nil
	}

	if p.Channels != 1 && p.Channels != 3 && p.Channels != 4 {
		return nil, fmt.Errorf("%w: %d", ErrUnsupportedChannels, p.Channels)
	}
	if p.Width <= 0 || p.Height <= 0 {
		return nil, fmt.Errorf("%w: %dx%d", ErrInvalidDimensions, p.Width, p.Height)
	}

	bits := int64(p.BitsPerSample) * int64(p.Channels)
	if bits <= 0 || bits%8 != 0 {
		return nil, fmt.Errorf("%w: %d bits x %d channels", ErrUnsupportedDepth, p.BitsPerSample, p.Channels)
	}
	bpp := int(bits / 8)
	if bpp != 1 && bpp != 3 && bpp != 4 {
		return nil, fmt.Errorf("%w: %d bytes per pixel", ErrUnsupportedDepth, bpp)
	}

	w, h, stride := int(p.Width), int(p.Height), int(p.RowStride)
	if int64(stride) < int64(w)*int64(bpp) {
		return nil, fmt.Errorf("%w: row stride %d too small for width %d", ErrPixelLength, stride, w)
	}
	if int64(len(p.Data)) != int64(stride)*int64(h) {
		return nil, fmt.Errorf("%w: got %d bytes, want %d", ErrPixelLength, len(p.Data), int64(stride)*int64(h))
	}

	img := image.NewNRGBA(image.Rect(0, 0, w, h))
	bo := o.binary()

	for y := 0; y < h; y++ {
		row := p.Data[y*stride:]
		for x := 0; x < w; x++ {
			var c color.NRGBA
			switch bpp {
			case 4:
				c.R, c.G, c.B, c.A = unpackARGB(DecodeWord(o, bo.Uint32(row[x*4:])))
				if !p.HasAlpha {
					c.A = 0xff
				}
			case 3:
				c = color.NRGBA{R: row[x*3], G: row[x*3+1], B: row[x*3+2], A: 0xff}
			case 1:
				v := row[x]
				c = color.NRGBA{R: v, G: v, B: v, A: 0xff}
			}
			img.SetNRGBA(x, y, c)
		}
	}

	return img, nil
}
