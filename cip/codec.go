// Package cip implements the CIP tag-protocol wire layer for Rockwell
// Logix-family controllers: scalar encoding, request-path construction,
// per-service request framing, the Multiple Service Packet, and reply
// classification. It has no knowledge of sockets, sessions, or the
// symbol/template object model built on top of it (see package logix).
package cip

import (
	"encoding/binary"
	"math"
)

// CipType is the tagged variant over the CIP atomic data types this client
// understands. Pack/unpack is a total match over these values - no virtual
// dispatch is needed.
type CipType uint8

const (
	TypeUnknown CipType = iota
	TypeBOOL
	TypeSINT
	TypeINT
	TypeDINT
	TypeLINT
	TypeREAL
	TypeLREAL
	TypeBYTE
	TypeWORD
	TypeDWORD
	TypeLWORD
	TypeSTRING
)

// Wire type codes (CIP "data type" values as they appear in replies and in
// Write Tag requests).
const (
	CodeBOOL   uint16 = 0x00C1
	CodeSINT   uint16 = 0x00C2
	CodeINT    uint16 = 0x00C3
	CodeDINT   uint16 = 0x00C4
	CodeLINT   uint16 = 0x00C5
	CodeUSINT  uint16 = 0x00C6
	CodeUINT   uint16 = 0x00C7
	CodeUDINT  uint16 = 0x00C8
	CodeULINT  uint16 = 0x00C9
	CodeREAL   uint16 = 0x00CA
	CodeLREAL  uint16 = 0x00CB
	CodeSTRING uint16 = 0x00D0
	CodeBYTE   uint16 = 0x00D1
	CodeWORD   uint16 = 0x00D2
	CodeDWORD  uint16 = 0x00D3
	CodeLWORD  uint16 = 0x00D4

	StructureFlag uint16 = 0x8000
	ArrayDimMask  uint16 = 0x6000
	SystemFlag    uint16 = 0x1000
)

// IDataType maps a wire type code (low byte of symbol_type, or a full
// Write Tag data_type field) to a CipType. Total for every atomic type this
// client frames or parses.
var IDataType = map[uint16]CipType{
	CodeBOOL:   TypeBOOL,
	CodeSINT:   TypeSINT,
	CodeINT:    TypeINT,
	CodeDINT:   TypeDINT,
	CodeLINT:   TypeLINT,
	CodeUSINT:  TypeSINT,
	CodeUINT:   TypeINT,
	CodeUDINT:  TypeDINT,
	CodeULINT:  TypeLINT,
	CodeREAL:   TypeREAL,
	CodeLREAL:  TypeLREAL,
	CodeSTRING: TypeSTRING,
	CodeBYTE:   TypeBYTE,
	CodeWORD:   TypeWORD,
	CodeDWORD:  TypeDWORD,
	CodeLWORD:  TypeLWORD,
}

// SDataType maps a CipType back to the canonical wire code used to frame a
// Write Tag request.
var SDataType = map[CipType]uint16{
	TypeBOOL:   CodeBOOL,
	TypeSINT:   CodeSINT,
	TypeINT:    CodeINT,
	TypeDINT:   CodeDINT,
	TypeLINT:   CodeLINT,
	TypeREAL:   CodeREAL,
	TypeLREAL:  CodeLREAL,
	TypeSTRING: CodeSTRING,
	TypeBYTE:   CodeBYTE,
	TypeWORD:   CodeWORD,
	TypeDWORD:  CodeDWORD,
	TypeLWORD:  CodeLWORD,
}

var typeNames = map[CipType]string{
	TypeBOOL:   "BOOL",
	TypeSINT:   "SINT",
	TypeINT:    "INT",
	TypeDINT:   "DINT",
	TypeLINT:   "LINT",
	TypeREAL:   "REAL",
	TypeLREAL:  "LREAL",
	TypeBYTE:   "BYTE",
	TypeWORD:   "WORD",
	TypeDWORD:  "DWORD",
	TypeLWORD:  "LWORD",
	TypeSTRING: "STRING",
}

func (t CipType) String() string {
	if n, ok := typeNames[t]; ok {
		return n
	}
	return "UNKNOWN"
}

// Size returns the byte width of an atomic type, 0 if unknown or variable
// length (STRING).
func Size(t CipType) int {
	switch t {
	case TypeBOOL, TypeSINT, TypeBYTE:
		return 1
	case TypeINT, TypeWORD:
		return 2
	case TypeDINT, TypeREAL, TypeDWORD:
		return 4
	case TypeLINT, TypeLREAL, TypeLWORD:
		return 8
	default:
		return 0
	}
}

// Bits returns the bit width of an integer host type, used to validate a
// BOOL bit index against its host. Returns 0 for non-integer types.
func Bits(t CipType) int {
	switch t {
	case TypeBOOL, TypeSINT, TypeBYTE:
		return 8
	case TypeINT, TypeWORD:
		return 16
	case TypeDINT, TypeDWORD:
		return 32
	case TypeLINT, TypeLWORD:
		return 64
	default:
		return 0
	}
}

// Pack encodes v (as a Go numeric type matching t) in little-endian form.
func Pack(t CipType, v interface{}) ([]byte, error) {
	switch t {
	case TypeBOOL:
		b, ok := v.(bool)
		if !ok {
			return nil, newDataError(ErrWriteFailure, "BOOL pack: value is %T, not bool", v)
		}
		if b {
			return []byte{1}, nil
		}
		return []byte{0}, nil
	case TypeSINT, TypeBYTE:
		n, ok := toInt64(v)
		if !ok || n < -128 || n > 255 {
			return nil, newDataError(ErrWriteFailure, "SINT/BYTE pack: value %v out of range", v)
		}
		return []byte{byte(n)}, nil
	case TypeINT, TypeWORD:
		n, ok := toInt64(v)
		if !ok || n < -32768 || n > 65535 {
			return nil, newDataError(ErrWriteFailure, "INT/WORD pack: value %v out of range", v)
		}
		buf := make([]byte, 2)
		binary.LittleEndian.PutUint16(buf, uint16(n))
		return buf, nil
	case TypeDINT, TypeDWORD:
		n, ok := toInt64(v)
		if !ok {
			return nil, newDataError(ErrWriteFailure, "DINT/DWORD pack: value %v not numeric", v)
		}
		buf := make([]byte, 4)
		binary.LittleEndian.PutUint32(buf, uint32(n))
		return buf, nil
	case TypeLINT, TypeLWORD:
		n, ok := toInt64(v)
		if !ok {
			return nil, newDataError(ErrWriteFailure, "LINT/LWORD pack: value %v not numeric", v)
		}
		buf := make([]byte, 8)
		binary.LittleEndian.PutUint64(buf, uint64(n))
		return buf, nil
	case TypeREAL:
		f, ok := toFloat64(v)
		if !ok {
			return nil, newDataError(ErrWriteFailure, "REAL pack: value %v not numeric", v)
		}
		buf := make([]byte, 4)
		binary.LittleEndian.PutUint32(buf, math.Float32bits(float32(f)))
		return buf, nil
	case TypeLREAL:
		f, ok := toFloat64(v)
		if !ok {
			return nil, newDataError(ErrWriteFailure, "LREAL pack: value %v not numeric", v)
		}
		buf := make([]byte, 8)
		binary.LittleEndian.PutUint64(buf, math.Float64bits(f))
		return buf, nil
	default:
		return nil, newDataError(ErrWriteFailure, "pack: unsupported type %v", t)
	}
}

// Unpack decodes bytes (little-endian) into the canonical Go representation
// for t: bool, int64 for all integer widths, float64 for REAL and LREAL.
func Unpack(t CipType, b []byte) (interface{}, error) {
	if len(b) < Size(t) && t != TypeSTRING {
		return nil, newDataError(ErrUnknownStatus, "unpack: need %d bytes for %v, have %d", Size(t), t, len(b))
	}
	switch t {
	case TypeBOOL:
		return b[0] != 0, nil
	case TypeSINT:
		return int64(int8(b[0])), nil
	case TypeBYTE:
		return int64(b[0]), nil
	case TypeINT:
		return int64(int16(binary.LittleEndian.Uint16(b))), nil
	case TypeWORD:
		return int64(binary.LittleEndian.Uint16(b)), nil
	case TypeDINT:
		return int64(int32(binary.LittleEndian.Uint32(b))), nil
	case TypeDWORD:
		return int64(binary.LittleEndian.Uint32(b)), nil
	case TypeLINT:
		return int64(binary.LittleEndian.Uint64(b)), nil
	case TypeLWORD:
		return int64(binary.LittleEndian.Uint64(b)), nil
	case TypeREAL:
		return float64(math.Float32frombits(binary.LittleEndian.Uint32(b))), nil
	case TypeLREAL:
		return math.Float64frombits(binary.LittleEndian.Uint64(b)), nil
	default:
		return nil, newDataError(ErrUnknownStatus, "unpack: unsupported type %v", t)
	}
}

func toInt64(v interface{}) (int64, bool) {
	switch n := v.(type) {
	case int:
		return int64(n), true
	case int8:
		return int64(n), true
	case int16:
		return int64(n), true
	case int32:
		return int64(n), true
	case int64:
		return n, true
	case uint:
		return int64(n), true
	case uint8:
		return int64(n), true
	case uint16:
		return int64(n), true
	case uint32:
		return int64(n), true
	case uint64:
		return int64(n), true
	case float32:
		return int64(n), true
	case float64:
		// encoding/json always decodes a JSON number into interface{} as
		// float64 - accept it here so a write_tag value that arrived over
		// the gateway's JSON body packs the same as a native Go int.
		return int64(n), true
	case bool:
		if n {
			return 1, true
		}
		return 0, true
	default:
		return 0, false
	}
}

func toFloat64(v interface{}) (float64, bool) {
	switch n := v.(type) {
	case float32:
		return float64(n), true
	case float64:
		return n, true
	default:
		if i, ok := toInt64(v); ok {
			return float64(i), true
		}
		return 0, false
	}
}

// StringSizes lists the fixed Rockwell STRING buffer sizes, with 82 (the
// default STRING type) checked first, matching the original driver's own
// ordering for picking an undeclared string tag's buffer size.
var StringSizes = []int{82, 12, 16, 20, 40, 8}
