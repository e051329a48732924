package imagecodec

import (
	"image"
	"image/color"
	"testing"

	"github.com/godbus/dbus/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func fill(w, h int, fn func(x, y int) color.NRGBA) *image.NRGBA {
	img := image.NewNRGBA(image.Rect(0, 0, w, h))
	for y := 0; y < h; y++ {
		for x := 0; x < w; x++ {
			img.SetNRGBA(x, y, fn(x, y))
		}
	}
	return img
}

func colorful(w, h int) *image.NRGBA {
	return fill(w, h, func(x, y int) color.NRGBA {
		return color.NRGBA{R: uint8(x * 17), G: uint8(y * 31), B: uint8(x + y), A: uint8(255 - x)}
	})
}

func opaque(w, h int) *image.NRGBA {
	return fill(w, h, func(x, y int) color.NRGBA {
		return color.NRGBA{R: uint8(x * 40), G: 200, B: uint8(y * 40), A: 0xff}
	})
}

func grayscale(w, h int) *image.NRGBA {
	return fill(w, h, func(x, y int) color.NRGBA {
		v := uint8(x*10 + y)
		return color.NRGBA{R: v, G: v, B: v, A: 0xff}
	})
}

func assertSamePixels(t *testing.T, want image.Image, got image.Image) {
	t.Helper()
	require.Equal(t, want.Bounds().Size(), got.Bounds().Size())
	wb, gb := want.Bounds(), got.Bounds()
	for y := 0; y < wb.Dy(); y++ {
		for x := 0; x < wb.Dx(); x++ {
			wc := color.NRGBAModel.Convert(want.At(wb.Min.X+x, wb.Min.Y+y))
			gc := color.NRGBAModel.Convert(got.At(gb.Min.X+x, gb.Min.Y+y))
			require.Equal(t, wc, gc, "pixel (%d,%d)", x, y)
		}
	}
}

func TestEncodeWordLittleEndianSelfInverse(t *testing.T) {
	words := []uint32{0, 0xffffffff, 0x80112233, 0x01020304, 0xdeadbeef}
	for _, w := range words {
		assert.Equal(t, w, EncodeWord(LittleEndian, EncodeWord(LittleEndian, w)), "%#08x", w)
		assert.Equal(t, EncodeWord(LittleEndian, w), DecodeWord(LittleEndian, w), "%#08x", w)
	}
}

func TestEncodeWordRoundTrip(t *testing.T) {
	words := []uint32{0, 0xffffffff, 0x80112233, 0x01020304, 0xdeadbeef}
	for _, o := range []ByteOrder{LittleEndian, BigEndian} {
		t.Run(o.String(), func(t *testing.T) {
			for _, w := range words {
				assert.Equal(t, w, DecodeWord(o, EncodeWord(o, w)), "%#08x", w)
				assert.Equal(t, w, EncodeWord(o, DecodeWord(o, w)), "%#08x", w)
			}
		})
	}
}

func TestEncodeWordBigEndianIsNotSwap(t *testing.T) {
	// a=0x80 r=0x11 g=0x22 b=0x33
	w := uint32(0x80112233)
	assert.Equal(t, uint32(0x11223380), EncodeWord(BigEndian, w))
	assert.Equal(t, uint32(0x80332211), EncodeWord(LittleEndian, w))
}

func TestEncodeWireBytesAreRGBA(t *testing.T) {
	img := fill(1, 1, func(int, int) color.NRGBA {
		return color.NRGBA{R: 0x11, G: 0x22, B: 0x33, A: 0x80}
	})

	for _, o := range []ByteOrder{LittleEndian, BigEndian} {
		t.Run(o.String(), func(t *testing.T) {
			p := EncodeWireOrder(img, o)
			assert.Equal(t, []byte{0x11, 0x22, 0x33, 0x80}, p.Data)
		})
	}
}

func TestEncodeWireEmpty(t *testing.T) {
	for _, img := range []image.Image{nil, image.NewNRGBA(image.Rectangle{})} {
		p := EncodeWire(img)
		assert.Equal(t, int32(0), p.Width)
		assert.Equal(t, int32(0), p.Height)
		assert.Equal(t, int32(0), p.RowStride)
		assert.False(t, p.HasAlpha)
		assert.Equal(t, int32(0), p.BitsPerSample)
		assert.Equal(t, int32(0), p.Channels)
		assert.NotNil(t, p.Data)
		assert.Empty(t, p.Data)
		assert.True(t, p.IsZero())

		got, err := DecodeWire(p)
		require.NoError(t, err)
		assert.True(t, got.Bounds().Empty())
	}
}

func TestEncodeWireFields(t *testing.T) {
	p := EncodeWire(colorful(5, 3))
	assert.Equal(t, int32(5), p.Width)
	assert.Equal(t, int32(3), p.Height)
	assert.Equal(t, int32(20), p.RowStride)
	assert.True(t, p.HasAlpha)
	assert.Equal(t, int32(4), p.Channels)
	assert.Equal(t, int32(8), p.BitsPerSample)
	assert.Len(t, p.Data, 60)

	g := EncodeWire(grayscale(4, 4))
	assert.Equal(t, int32(1), g.Channels)
	assert.Equal(t, int32(32), g.BitsPerSample)
	assert.Equal(t, int32(16), g.RowStride)
}

func TestWireRoundTrip(t *testing.T) {
	tests := []struct {
		name string
		img  *image.NRGBA
	}{
		{"rgba", colorful(7, 5)},
		{"rgb", opaque(6, 4)},
		{"gray", grayscale(3, 9)},
		{"single pixel", colorful(1, 1)},
		{"exactly max height", opaque(2, MaxWireHeight)},
	}

	for _, tt := range tests {
		for _, o := range []ByteOrder{LittleEndian, BigEndian} {
			t.Run(tt.name+"/"+o.String(), func(t *testing.T) {
				got, err := DecodeWireOrder(EncodeWireOrder(tt.img, o), o)
				require.NoError(t, err)
				assertSamePixels(t, tt.img, got)
			})
		}
	}
}

func TestWireRoundTripNonZeroOrigin(t *testing.T) {
	src := colorful(10, 10)
	sub := src.SubImage(image.Rect(3, 2, 8, 6))

	got, err := DecodeWire(EncodeWire(sub))
	require.NoError(t, err)
	assertSamePixels(t, sub, got)
}

func TestEncodeWireRescalesTallImages(t *testing.T) {
	p := EncodeWire(opaque(64, 256))
	assert.Equal(t, int32(MaxWireHeight), p.Height)
	assert.Equal(t, int32(32), p.Width)
	assert.Equal(t, p.Width*4, p.RowStride)
	assert.Len(t, p.Data, int(p.RowStride*p.Height))

	got, err := DecodeWire(p)
	require.NoError(t, err)
	assert.Equal(t, image.Pt(32, MaxWireHeight), got.Bounds().Size())
}

func TestEncodeWireDoesNotUpscale(t *testing.T) {
	p := EncodeWire(opaque(8, 8))
	assert.Equal(t, int32(8), p.Width)
	assert.Equal(t, int32(8), p.Height)
}

func TestDecodeWireExternalLayouts(t *testing.T) {
	t.Run("rgb with padded stride", func(t *testing.T) {
		p := PixelData{
			Width: 2, Height: 2, RowStride: 8, HasAlpha: false, BitsPerSample: 8, Channels: 3,
			Data: []byte{
				1, 2, 3, 4, 5, 6, 0, 0,
				7, 8, 9, 10, 11, 12, 0, 0,
			},
		}
		img, err := DecodeWire(p)
		require.NoError(t, err)
		assert.Equal(t, color.NRGBA{R: 1, G: 2, B: 3, A: 255}, img.NRGBAAt(0, 0))
		assert.Equal(t, color.NRGBA{R: 10, G: 11, B: 12, A: 255}, img.NRGBAAt(1, 1))
	})

	t.Run("8-bit gray", func(t *testing.T) {
		p := PixelData{Width: 2, Height: 1, RowStride: 2, BitsPerSample: 8, Channels: 1, Data: []byte{0x10, 0xf0}}
		img, err := DecodeWire(p)
		require.NoError(t, err)
		assert.Equal(t, color.NRGBA{R: 0xf0, G: 0xf0, B: 0xf0, A: 255}, img.NRGBAAt(1, 0))
	})

	t.Run("rgba bytes", func(t *testing.T) {
		p := PixelData{Width: 1, Height: 1, RowStride: 4, HasAlpha: true, BitsPerSample: 8, Channels: 4, Data: []byte{0x11, 0x22, 0x33, 0x44}}
		img, err := DecodeWire(p)
		require.NoError(t, err)
		assert.Equal(t, color.NRGBA{R: 0x11, G: 0x22, B: 0x33, A: 0x44}, img.NRGBAAt(0, 0))
	})

	t.Run("rgba without alpha flag is opaque", func(t *testing.T) {
		p := PixelData{Width: 1, Height: 1, RowStride: 4, HasAlpha: false, BitsPerSample: 8, Channels: 4, Data: []byte{0x11, 0x22, 0x33, 0x00}}
		img, err := DecodeWire(p)
		require.NoError(t, err)
		assert.Equal(t, uint8(0xff), img.NRGBAAt(0, 0).A)
	})
}

func TestDecodeWireErrors(t *testing.T) {
	valid := PixelData{Width: 2, Height: 2, RowStride: 8, HasAlpha: true, BitsPerSample: 8, Channels: 4, Data: make([]byte, 16)}

	tests := []struct {
		name   string
		mutate func(p *PixelData)
		err    error
	}{
		{"zero width", func(p *PixelData) { p.Width = 0 }, ErrInvalidDimensions},
		{"negative height", func(p *PixelData) { p.Height = -1 }, ErrInvalidDimensions},
		{"two channels", func(p *PixelData) { p.Channels = 2 }, ErrUnsupportedChannels},
		{"zero channels", func(p *PixelData) { p.Channels = 0 }, ErrUnsupportedChannels},
		{"sixteen bit", func(p *PixelData) { p.BitsPerSample = 16 }, ErrUnsupportedDepth},
		{"odd bits", func(p *PixelData) { p.BitsPerSample = 5 }, ErrUnsupportedDepth},
		{"truncated", func(p *PixelData) { p.Data = p.Data[:15] }, ErrPixelLength},
		{"too long", func(p *PixelData) { p.Data = append(p.Data, 0) }, ErrPixelLength},
		{"stride too small", func(p *PixelData) { p.RowStride = 4; p.Data = p.Data[:8] }, ErrPixelLength},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			p := valid
			p.Data = append([]byte(nil), valid.Data...)
			tt.mutate(&p)
			img, err := DecodeWire(p)
			assert.ErrorIs(t, err, tt.err)
			assert.Nil(t, img)
		})
	}
}

func TestPixelDataArgs(t *testing.T) {
	p := EncodeWire(colorful(3, 2))

	got, err := PixelDataFromArgs(p.ToArgs())
	require.NoError(t, err)
	assert.Equal(t, p, got)

	got, err = PixelDataFromArgs(dbus.MakeVariant(p.ToArgs()))
	require.NoError(t, err)
	assert.Equal(t, p, got)

	got, err = PixelDataFromArgs(&p)
	require.NoError(t, err)
	assert.Equal(t, p, got)
}

func TestPixelDataFromArgsMalformed(t *testing.T) {
	tests := []struct {
		name string
		v    any
	}{
		{"nil", nil},
		{"string", "image"},
		{"short", []any{int32(1), int32(1)}},
		{"wrong int type", []any{int64(1), int32(1), int32(4), true, int32(8), int32(4), []byte{1, 2, 3, 4}}},
		{"wrong bool", []any{int32(1), int32(1), int32(4), "yes", int32(8), int32(4), []byte{1, 2, 3, 4}}},
		{"wrong data", []any{int32(1), int32(1), int32(4), true, int32(8), int32(4), "data"}},
		{"nil pointer", (*PixelData)(nil)},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := PixelDataFromArgs(tt.v)
			assert.ErrorIs(t, err, ErrMalformedStruct)
		})
	}
}
