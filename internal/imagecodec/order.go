package imagecodec

import "encoding/binary"

// ByteOrder selects how a 32-bit pixel word is laid out in memory when it is
// written to or read from the wire.
type ByteOrder int

const (
	// LittleEndian hosts store the ARGB word as B, G, R, A.
	LittleEndian ByteOrder = iota
	// BigEndian hosts store the ARGB word as A, R, G, B.
	BigEndian
)

// HostOrder is the byte order of the running machine.
var HostOrder = detectHostOrder()

func detectHostOrder() ByteOrder {
	var b [2]byte
	binary.NativeEndian.PutUint16(b[:], 1)
	if b[0] == 1 {
		return LittleEndian
	}
	return BigEndian
}

func (o ByteOrder) String() string {
	if o == BigEndian {
		return "big-endian"
	}
	return "little-endian"
}

func (o ByteOrder) binary() binary.ByteOrder {
	if o == BigEndian {
		return binary.BigEndian
	}
	return binary.LittleEndian
}

// EncodeWord reorders a native ARGB word (a<<24 | r<<16 | g<<8 | b) so that,
// stored in memory with byte order o, its bytes read R, G, B, A.
//
// On little-endian hosts this swaps the red and blue channels and is its own
// inverse. On big-endian hosts the word is rotated left by one byte.
func EncodeWord(o ByteOrder, w uint32) uint32 {
	if o == BigEndian {
		return w<<8 | w>>24
	}
	return w&0xff00ff00 | (w&0x00ff0000)>>16 | (w&0x000000ff)<<16
}

// DecodeWord is the exact inverse of EncodeWord for the same byte order.
func DecodeWord(o ByteOrder, w uint32) uint32 {
	if o == BigEndian {
		return w>>8 | w<<24
	}
	return w&0xff00ff00 | (w&0x00ff0000)>>16 | (w&0x000000ff)<<16
}

func packARGB(r, g, b, a uint8) uint32 {
	return uint32(a)<<24 | uint32(r)<<16 | uint32(g)<<8 | uint32(b)
}

func unpackARGB(w uint32) (r, g, b, a uint8) {
	return uint8(w >> 16), uint8(w >> 8), uint8(w), uint8(w >> 24)
}
