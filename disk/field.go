package disk

import (
	"bytes"
	"strings"
)

// Field locates one value inside a raw directory record.
type Field struct {
	Off, Len int
	// Invert stores the field bit-inverted.
	Invert bool
	// BE stores numbers big-endian.
	BE bool
}

func (f Field) Raw(data []byte) []byte {
	out := make([]byte, f.Len)
	copy(out, data[f.Off:f.Off+f.Len])
	if f.Invert {
		for i := range out {
			out[i] ^= 0xff
		}
	}
	return out
}

func (f Field) SetRaw(data []byte, v []byte, pad byte) {
	for i := 0; i < f.Len; i++ {
		b := pad
		if i < len(v) {
			b = v[i]
		}
		if f.Invert {
			b ^= 0xff
		}
		data[f.Off+i] = b
	}
}

// Uint reads an unsigned number of up to four bytes.
func (f Field) Uint(data []byte) int {
	raw := f.Raw(data)
	v := 0
	for i := range raw {
		if f.BE {
			v = v<<8 | int(raw[i])
		} else {
			v |= int(raw[i]) << (8 * uint(i))
		}
	}
	return v
}

func (f Field) SetUint(data []byte, v int) {
	raw := make([]byte, f.Len)
	for i := range raw {
		b := byte(v >> (8 * uint(i)))
		if f.BE {
			raw[f.Len-1-i] = b
		} else {
			raw[i] = b
		}
	}
	f.SetRaw(data, raw, 0)
}

func (f Field) Byte(data []byte) byte {
	return f.Raw(data)[0]
}

func (f Field) SetByte(data []byte, v byte) {
	f.SetRaw(data, []byte{v}, 0)
}

// Str decodes a padded name field, stopping at the first terminator.
func (f Field) Str(data []byte, pads ...byte) string {
	raw := f.Raw(data)
	for _, p := range pads {
		if i := bytes.IndexByte(raw, p); i >= 0 && p != ' ' {
			raw = raw[:i]
		}
	}
	return strings.TrimRight(string(raw), " ")
}

func (f Field) SetStr(data []byte, s string, pad byte) {
	f.SetRaw(data, []byte(s), pad)
}

func bcd(v int) byte {
	return byte((v/10)%10<<4 | v%10)
}

func unbcd(b byte) int {
	return int(b>>4)*10 + int(b&0x0f)
}

func le16(b []byte) int {
	return int(b[0]) | int(b[1])<<8
}

func putLE16(b []byte, v int) {
	b[0] = byte(v)
	b[1] = byte(v >> 8)
}

func be16(b []byte) int {
	return int(b[0])<<8 | int(b[1])
}

func putBE16(b []byte, v int) {
	b[0] = byte(v >> 8)
	b[1] = byte(v)
}

func le32(b []byte) int {
	return int(b[0]) | int(b[1])<<8 | int(b[2])<<16 | int(b[3])<<24
}

func putLE32(b []byte, v int) {
	putLE16(b, v)
	putLE16(b[2:], v>>16)
}

func be24(b []byte) int {
	return int(b[0])<<16 | int(b[1])<<8 | int(b[2])
}

func putBE24(b []byte, v int) {
	b[0] = byte(v >> 16)
	b[1] = byte(v >> 8)
	b[2] = byte(v)
}

func be32(b []byte) int {
	return int(b[0])<<24 | be24(b[1:])
}

func putBE32(b []byte, v int) {
	b[0] = byte(v >> 24)
	putBE24(b[1:], v)
}

func fill(b []byte, code byte) {
	for i := range b {
		b[i] = code
	}
}

// printable reports whether raw holds only name characters, ignoring the
// pad bytes listed.
func printable(raw []byte, pads ...byte) bool {
	for _, c := range raw {
		if bytes.IndexByte(pads, c) >= 0 {
			continue
		}
		if c < 0x20 || c == 0x7f {
			return false
		}
	}
	return true
}
