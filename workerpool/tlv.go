// File: workerpool/tlv.go
// Grounded on _examples/original_source/src/cpp/python/binary_kwargs.h's
// TLV layout: magic 0xFA, u16 param count, then per-param
// {u8 name_len, name, u8 tag, value}. Go's map/any/reflect give us a
// single encoder for every value kind instead of the original's per-type
// add_bool/add_int32/... method family.
// Author: momentics <momentics@gmail.com>
// License: MIT

package workerpool

import (
	"encoding/binary"
	"math"
	"sort"

	"github.com/momentics/hioload-srv/api"
)

const tlvMagic = 0xFA

type tlvTag byte

const (
	tagNull    tlvTag = 0x00
	tagFalse   tlvTag = 0x01
	tagTrue    tlvTag = 0x02
	tagInt64   tlvTag = 0x13
	tagFloat64 tlvTag = 0x21
	tagString  tlvTag = 0x32 // always 4-byte length, unlike the original's tiny/short/medium split
	tagBytes   tlvTag = 0x42
)

// EncodeArgsTLV serializes args in an arbitrary but deterministic order
// into the magic-prefixed TLV format.
func EncodeArgsTLV(args map[string]any) ([]byte, error) {
	buf := make([]byte, 3, 64)
	buf[0] = tlvMagic
	count := 0

	names := make([]string, 0, len(args))
	for name := range args {
		names = append(names, name)
	}
	sort.Strings(names)

	for _, name := range names {
		value := args[name]
		if len(name) > 255 {
			return nil, api.NewError(api.ErrCodeParse, "argument name exceeds 255 bytes")
		}
		buf = append(buf, byte(len(name)))
		buf = append(buf, name...)

		var err error
		buf, err = appendTLVValue(buf, value)
		if err != nil {
			return nil, err
		}
		count++
	}

	binary.LittleEndian.PutUint16(buf[1:3], uint16(count))
	return buf, nil
}

func appendTLVValue(buf []byte, value any) ([]byte, error) {
	switch v := value.(type) {
	case nil:
		return append(buf, byte(tagNull)), nil
	case bool:
		if v {
			return append(buf, byte(tagTrue)), nil
		}
		return append(buf, byte(tagFalse)), nil
	case int:
		return appendInt64(buf, int64(v)), nil
	case int64:
		return appendInt64(buf, v), nil
	case float64:
		return appendFloat64(buf, v), nil
	case string:
		return appendString(buf, v), nil
	case []byte:
		return appendBytes(buf, v), nil
	default:
		return nil, api.NewError(api.ErrCodeNotSupported, "unsupported argument value type")
	}
}

func appendInt64(buf []byte, v int64) []byte {
	buf = append(buf, byte(tagInt64))
	var tmp [8]byte
	binary.LittleEndian.PutUint64(tmp[:], uint64(v))
	return append(buf, tmp[:]...)
}

func appendFloat64(buf []byte, v float64) []byte {
	buf = append(buf, byte(tagFloat64))
	var tmp [8]byte
	binary.LittleEndian.PutUint64(tmp[:], math.Float64bits(v))
	return append(buf, tmp[:]...)
}

func appendString(buf []byte, v string) []byte {
	buf = append(buf, byte(tagString))
	var tmp [4]byte
	binary.LittleEndian.PutUint32(tmp[:], uint32(len(v)))
	buf = append(buf, tmp[:]...)
	return append(buf, v...)
}

func appendBytes(buf []byte, v []byte) []byte {
	buf = append(buf, byte(tagBytes))
	var tmp [4]byte
	binary.LittleEndian.PutUint32(tmp[:], uint32(len(v)))
	buf = append(buf, tmp[:]...)
	return append(buf, v...)
}

// DecodeArgsTLV parses the magic-prefixed TLV format back into a map.
func DecodeArgsTLV(buf []byte) (map[string]any, error) {
	if len(buf) < 3 || buf[0] != tlvMagic {
		return nil, api.NewError(api.ErrCodeParse, "missing TLV magic byte")
	}
	count := int(binary.LittleEndian.Uint16(buf[1:3]))
	pos := 3
	args := make(map[string]any, count)

	for i := 0; i < count; i++ {
		if pos >= len(buf) {
			return nil, api.NewError(api.ErrCodeParse, "truncated TLV argument name")
		}
		nameLen := int(buf[pos])
		pos++
		if pos+nameLen > len(buf) {
			return nil, api.NewError(api.ErrCodeParse, "truncated TLV argument name")
		}
		name := string(buf[pos : pos+nameLen])
		pos += nameLen

		if pos >= len(buf) {
			return nil, api.NewError(api.ErrCodeParse, "truncated TLV tag")
		}
		tag := tlvTag(buf[pos])
		pos++

		value, n, err := decodeTLVValue(tag, buf[pos:])
		if err != nil {
			return nil, err
		}
		pos += n
		args[name] = value
	}
	return args, nil
}

func decodeTLVValue(tag tlvTag, buf []byte) (any, int, error) {
	switch tag {
	case tagNull:
		return nil, 0, nil
	case tagFalse:
		return false, 0, nil
	case tagTrue:
		return true, 0, nil
	case tagInt64:
		if len(buf) < 8 {
			return nil, 0, api.NewError(api.ErrCodeParse, "truncated int64 value")
		}
		return int64(binary.LittleEndian.Uint64(buf)), 8, nil
	case tagFloat64:
		if len(buf) < 8 {
			return nil, 0, api.NewError(api.ErrCodeParse, "truncated float64 value")
		}
		return math.Float64frombits(binary.LittleEndian.Uint64(buf)), 8, nil
	case tagString:
		if len(buf) < 4 {
			return nil, 0, api.NewError(api.ErrCodeParse, "truncated string length")
		}
		n := int(binary.LittleEndian.Uint32(buf))
		if len(buf) < 4+n {
			return nil, 0, api.NewError(api.ErrCodeParse, "truncated string value")
		}
		return string(buf[4 : 4+n]), 4 + n, nil
	case tagBytes:
		if len(buf) < 4 {
			return nil, 0, api.NewError(api.ErrCodeParse, "truncated bytes length")
		}
		n := int(binary.LittleEndian.Uint32(buf))
		if len(buf) < 4+n {
			return nil, 0, api.NewError(api.ErrCodeParse, "truncated bytes value")
		}
		out := make([]byte, n)
		copy(out, buf[4:4+n])
		return out, 4 + n, nil
	default:
		return nil, 0, api.NewError(api.ErrCodeNotSupported, "unknown TLV tag")
	}
}
