//
// Copyright (c) 2025 Markku Rossi
//
// All rights reserved.
//

package tls

import (
	"encoding/binary"
	"fmt"
	"reflect"
)

var bo = binary.BigEndian

// DecodeError is returned by UnmarshalFrom on truncation or a vector
// whose elements do not exactly fill its length prefix, and by Marshal
// and UnmarshalFrom for a field the codec cannot handle. The codec does
// not check enum-typed fields against their known values: any wire
// value is accepted.
type DecodeError struct {
	Msg string
}

func (e *DecodeError) Error() string {
	return "tls: decode error: " + e.Msg
}

func decodeErrorf(format string, a ...interface{}) error {
	return &DecodeError{Msg: fmt.Sprintf(format, a...)}
}

// lengthWidth maps a "tls" struct tag to the byte width of its
// length-prefix field.
func lengthWidth(tag string) (int, bool) {
	switch tag {
	case "u8":
		return 1, true
	case "u16":
		return 2, true
	case "u24":
		return 3, true
	default:
		return 0, false
	}
}

func putLen(buf []byte, width, n int) {
	switch width {
	case 1:
		buf[0] = byte(n)
	case 2:
		bo.PutUint16(buf, uint16(n))
	case 3:
		buf[0] = byte(n >> 16)
		buf[1] = byte(n >> 8)
		buf[2] = byte(n)
	}
}

func getLen(buf []byte, width int) int {
	switch width {
	case 1:
		return int(buf[0])
	case 2:
		return int(bo.Uint16(buf))
	case 3:
		return int(buf[0])<<16 | int(buf[1])<<8 | int(buf[2])
	}
	return 0
}

// Marshal encodes v, a pointer to a struct whose fields are fixed-width
// unsigned integers, byte arrays, opaque vectors (`[]byte` tagged
// `tls:"u8|u16|u24"`), or lists of such structs (`[]T` similarly
// tagged), into its TLS wire form. Marshal is used for handshake
// message bodies (encodeHandshake then prepends the 4-byte handshake
// header) and for bare structures like KeyShareEntry.
func Marshal(v interface{}) ([]byte, error) {
	rv := reflect.ValueOf(v)
	for rv.Kind() == reflect.Ptr {
		rv = rv.Elem()
	}
	if rv.Kind() != reflect.Struct {
		return nil, decodeErrorf("marshal: not a struct: %T", v)
	}
	var buf []byte
	n, err := marshalStruct(rv, &buf)
	if err != nil {
		return nil, err
	}
	_ = n
	return buf, nil
}

func marshalStruct(rv reflect.Value, out *[]byte) (int, error) {
	rt := rv.Type()
	start := len(*out)
	for i := 0; i < rt.NumField(); i++ {
		field := rt.Field(i)
		fv := rv.Field(i)
		tag := field.Tag.Get("tls")

		if width, ok := lengthWidth(tag); ok {
			body, err := marshalVector(fv)
			if err != nil {
				return 0, err
			}
			lenBuf := make([]byte, width)
			putLen(lenBuf, width, len(body))
			*out = append(*out, lenBuf...)
			*out = append(*out, body...)
			continue
		}

		switch fv.Kind() {
		case reflect.Array:
			// Fixed-size byte array (e.g. Random [32]byte).
			data := make([]byte, fv.Len())
			reflect.Copy(reflect.ValueOf(data), fv)
			*out = append(*out, data...)

		case reflect.Slice:
			// Untagged slice: caller error, every variable-length field
			// must declare its length-prefix width.
			return 0, decodeErrorf("marshal: field %s missing tls tag",
				field.Name)

		case reflect.Struct:
			if _, err := marshalStruct(fv, out); err != nil {
				return 0, err
			}

		case reflect.Uint8:
			*out = append(*out, byte(fv.Uint()))

		case reflect.Uint16:
			var b [2]byte
			bo.PutUint16(b[:], uint16(fv.Uint()))
			*out = append(*out, b[:]...)

		case reflect.Uint32:
			var b [4]byte
			bo.PutUint32(b[:], uint32(fv.Uint()))
			*out = append(*out, b[:]...)

		case reflect.Uint64:
			var b [8]byte
			bo.PutUint64(b[:], fv.Uint())
			*out = append(*out, b[:]...)

		default:
			return 0, decodeErrorf("marshal: unsupported field %s (%s)",
				field.Name, fv.Kind())
		}
	}
	return len(*out) - start, nil
}

func marshalVector(fv reflect.Value) ([]byte, error) {
	if fv.Kind() != reflect.Slice {
		return nil, decodeErrorf("marshal: vector field is not a slice: %s", fv.Kind())
	}
	elemType := fv.Type().Elem()
	if elemType.Kind() == reflect.Uint8 {
		data := make([]byte, fv.Len())
		reflect.Copy(reflect.ValueOf(data), fv)
		return data, nil
	}

	var body []byte
	for i := 0; i < fv.Len(); i++ {
		data, err := marshalElement(fv.Index(i))
		if err != nil {
			return nil, err
		}
		body = append(body, data...)
	}
	return body, nil
}

// marshalElement encodes a single vector element: either a struct
// (recursing through marshalStruct, for []Extension/[]CertificateEntry)
// or a fixed-width unsigned integer (for []CipherSuite, []NamedGroup,
// []SignatureScheme-style vectors built through the generic codec
// rather than by hand in extensions.go).
func marshalElement(elem reflect.Value) ([]byte, error) {
	switch elem.Kind() {
	case reflect.Struct:
		var out []byte
		if _, err := marshalStruct(elem, &out); err != nil {
			return nil, err
		}
		return out, nil
	case reflect.Uint8:
		return []byte{byte(elem.Uint())}, nil
	case reflect.Uint16:
		return []byte{byte(elem.Uint() >> 8), byte(elem.Uint())}, nil
	case reflect.Uint32:
		v := uint32(elem.Uint())
		return []byte{byte(v >> 24), byte(v >> 16), byte(v >> 8), byte(v)}, nil
	default:
		return nil, decodeErrorf("marshal: unsupported vector element kind %s", elem.Kind())
	}
}

// UnmarshalFrom decodes data into v (a pointer to a struct) using the
// same tag convention as Marshal, and returns the number of bytes
// consumed. It is the decode half of the codec; callers that require
// "no trailing bytes" (e.g. a ClientHello body) check that the return
// value equals len(data).
func UnmarshalFrom(data []byte, v interface{}) (int, error) {
	rv := reflect.ValueOf(v)
	if rv.Kind() != reflect.Ptr {
		return 0, decodeErrorf("unmarshal: not a pointer: %T", v)
	}
	rv = rv.Elem()
	return unmarshalStruct(data, rv)
}

func unmarshalStruct(data []byte, rv reflect.Value) (int, error) {
	rt := rv.Type()
	pos := 0
	for i := 0; i < rt.NumField(); i++ {
		field := rt.Field(i)
		fv := rv.Field(i)
		tag := field.Tag.Get("tls")

		if width, ok := lengthWidth(tag); ok {
			if pos+width > len(data) {
				return 0, decodeErrorf("unmarshal: truncated length prefix for %s",
					field.Name)
			}
			n := getLen(data[pos:], width)
			pos += width
			if pos+n > len(data) {
				return 0, decodeErrorf("unmarshal: truncated vector for %s: want %d, have %d",
					field.Name, n, len(data)-pos)
			}
			body := data[pos : pos+n]
			pos += n
			if err := unmarshalVector(body, fv); err != nil {
				return 0, err
			}
			continue
		}

		switch fv.Kind() {
		case reflect.Array:
			n := fv.Len()
			if pos+n > len(data) {
				return 0, decodeErrorf("unmarshal: truncated array %s", field.Name)
			}
			reflect.Copy(fv, reflect.ValueOf(data[pos:pos+n]))
			pos += n

		case reflect.Slice:
			return 0, decodeErrorf("unmarshal: field %s missing tls tag",
				field.Name)

		case reflect.Struct:
			n, err := unmarshalStruct(data[pos:], fv)
			if err != nil {
				return 0, err
			}
			pos += n

		case reflect.Uint8:
			if pos+1 > len(data) {
				return 0, decodeErrorf("unmarshal: truncated %s", field.Name)
			}
			fv.SetUint(uint64(data[pos]))
			pos++

		case reflect.Uint16:
			if pos+2 > len(data) {
				return 0, decodeErrorf("unmarshal: truncated %s", field.Name)
			}
			fv.SetUint(uint64(bo.Uint16(data[pos:])))
			pos += 2

		case reflect.Uint32:
			if pos+4 > len(data) {
				return 0, decodeErrorf("unmarshal: truncated %s", field.Name)
			}
			fv.SetUint(uint64(bo.Uint32(data[pos:])))
			pos += 4

		case reflect.Uint64:
			if pos+8 > len(data) {
				return 0, decodeErrorf("unmarshal: truncated %s", field.Name)
			}
			fv.SetUint(bo.Uint64(data[pos:]))
			pos += 8

		default:
			return 0, decodeErrorf("unmarshal: unsupported field %s (%s)",
				field.Name, fv.Kind())
		}
	}
	return pos, nil
}

func unmarshalVector(body []byte, fv reflect.Value) error {
	elemType := fv.Type().Elem()
	if elemType.Kind() == reflect.Uint8 {
		data := make([]byte, len(body))
		copy(data, body)
		fv.Set(reflect.ValueOf(data))
		return nil
	}

	elems := reflect.MakeSlice(fv.Type(), 0, 0)
	pos := 0
	for pos < len(body) {
		elem := reflect.New(elemType).Elem()
		n, err := unmarshalElement(body[pos:], elem)
		if err != nil {
			return err
		}
		if n == 0 {
			return decodeErrorf("unmarshal: zero-length element, would loop forever")
		}
		elems = reflect.Append(elems, elem)
		pos += n
	}
	fv.Set(elems)
	return nil
}

// unmarshalElement decodes a single vector element (the read-side
// counterpart to marshalElement): a struct via unmarshalStruct, or a
// fixed-width unsigned integer for scalar element vectors such as
// []CipherSuite.
func unmarshalElement(data []byte, elem reflect.Value) (int, error) {
	switch elem.Kind() {
	case reflect.Struct:
		return unmarshalStruct(data, elem)
	case reflect.Uint8:
		if len(data) < 1 {
			return 0, decodeErrorf("unmarshal: truncated element")
		}
		elem.SetUint(uint64(data[0]))
		return 1, nil
	case reflect.Uint16:
		if len(data) < 2 {
			return 0, decodeErrorf("unmarshal: truncated element")
		}
		elem.SetUint(uint64(bo.Uint16(data)))
		return 2, nil
	case reflect.Uint32:
		if len(data) < 4 {
			return 0, decodeErrorf("unmarshal: truncated element")
		}
		elem.SetUint(uint64(bo.Uint32(data)))
		return 4, nil
	default:
		return 0, decodeErrorf("unmarshal: unsupported vector element kind %s", elem.Kind())
	}
}
