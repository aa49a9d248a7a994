package value

import (
	"encoding/binary"
	"fmt"
	"time"
)

// Encode serializes a Value to a byte-comparable-within-kind form for use
// as (part of) an index key. Strings and attribute names are length
// prefixed, so encoding is injective and round-trips via Decode, but byte
// order across differing lengths is not guaranteed to match Compare --
// index cursors only ever seek by exact encoded key or by a fixed
// (entity|attribute) prefix, never by a value range, so this is safe.
func Encode(v Value) []byte {
	switch v.kind {
	case KindEntity:
		buf := make([]byte, 9)
		buf[0] = byte(KindEntity)
		binary.BigEndian.PutUint64(buf[1:], uint64(v.e))
		return buf
	case KindAttribute:
		return encodeTagged(byte(KindAttribute), []byte(v.a))
	case KindNumber:
		buf := make([]byte, 9)
		buf[0] = byte(KindNumber)
		binary.BigEndian.PutUint64(buf[1:], uint64(v.n))
		return buf
	case KindBoolean:
		buf := make([]byte, 2)
		buf[0] = byte(KindBoolean)
		if v.b {
			buf[1] = 1
		}
		return buf
	case KindString:
		return encodeTagged(byte(KindString), []byte(v.s))
	case KindInstant:
		buf := make([]byte, 9)
		buf[0] = byte(KindInstant)
		binary.BigEndian.PutUint64(buf[1:], uint64(v.t.UnixNano()))
		return buf
	default:
		return []byte{byte(v.kind)}
	}
}

func encodeTagged(tag byte, payload []byte) []byte {
	buf := make([]byte, 1+4+len(payload))
	buf[0] = tag
	binary.BigEndian.PutUint32(buf[1:5], uint32(len(payload)))
	copy(buf[5:], payload)
	return buf
}

// Decode parses the prefix of b produced by Encode, returning the Value
// and the number of bytes consumed.
func Decode(b []byte) (Value, int, error) {
	if len(b) == 0 {
		return Value{}, 0, fmt.Errorf("value: empty buffer")
	}
	kind := Kind(b[0])
	switch kind {
	case KindEntity:
		if len(b) < 9 {
			return Value{}, 0, fmt.Errorf("value: short entity buffer")
		}
		return NewEntity(Entity(binary.BigEndian.Uint64(b[1:9]))), 9, nil
	case KindAttribute:
		s, n, err := decodeTagged(b)
		if err != nil {
			return Value{}, 0, err
		}
		return NewAttribute(s), n, nil
	case KindNumber:
		if len(b) < 9 {
			return Value{}, 0, fmt.Errorf("value: short number buffer")
		}
		return NewNumber(int64(binary.BigEndian.Uint64(b[1:9]))), 9, nil
	case KindBoolean:
		if len(b) < 2 {
			return Value{}, 0, fmt.Errorf("value: short boolean buffer")
		}
		return NewBoolean(b[1] != 0), 2, nil
	case KindString:
		s, n, err := decodeTagged(b)
		if err != nil {
			return Value{}, 0, err
		}
		return NewString(s), n, nil
	case KindInstant:
		if len(b) < 9 {
			return Value{}, 0, fmt.Errorf("value: short instant buffer")
		}
		nanos := int64(binary.BigEndian.Uint64(b[1:9]))
		return NewInstant(time.Unix(0, nanos)), 9, nil
	default:
		return Value{}, 0, fmt.Errorf("value: unknown kind tag %d", b[0])
	}
}

func decodeTagged(b []byte) (string, int, error) {
	if len(b) < 5 {
		return "", 0, fmt.Errorf("value: short tagged buffer")
	}
	n := int(binary.BigEndian.Uint32(b[1:5]))
	if len(b) < 5+n {
		return "", 0, fmt.Errorf("value: truncated tagged buffer")
	}
	return string(b[5 : 5+n]), 5 + n, nil
}

// EncodeEntity is a convenience for callers that only have a bare entity
// (e.g. index key prefixes), without going through a Value.
func EncodeEntity(e Entity) []byte {
	buf := make([]byte, 8)
	binary.BigEndian.PutUint64(buf, uint64(e))
	return buf
}

// DecodeEntity parses an 8-byte big-endian entity id.
func DecodeEntity(b []byte) Entity {
	return Entity(binary.BigEndian.Uint64(b))
}
