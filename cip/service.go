package cip

import (
	"encoding/binary"
	"fmt"
)

// CIP service codes used by this client.
const (
	SvcGetAttributeList         byte = 0x03
	SvcMultipleServicePacket    byte = 0x0A
	SvcGetAttributeSingle       byte = 0x0E
	SvcReadTemplate             byte = 0x4B
	SvcReadTag                  byte = 0x4C
	SvcWriteTag                 byte = 0x4D
	SvcReadModifyWriteTag       byte = 0x4E
	SvcReadTagFragmented        byte = 0x52
	SvcWriteTagFragmented       byte = 0x53
	SvcGetInstanceAttributeList byte = 0x55
)

// ReplyServiceMask marks a reply opcode (request service | 0x80).
const ReplyServiceMask byte = 0x80

// Class codes.
const (
	ClassMessageRouter byte = 0x02
	ClassSymbolObject   uint16 = 0x6B
	ClassTemplateObject uint16 = 0x6C
)

// CIP general status codes.
const (
	StatusSuccess         byte = 0x00
	StatusPartialTransfer byte = 0x06 // more data available; not an error
	StatusGeneralError    byte = 0xFF
)

// frameHeader prepends <sequence:u16> <service:u8> <path_size_words:u8> <path>
// ahead of a service-specific body.
func frameHeader(seq uint16, service byte, path EPath) []byte {
	buf := make([]byte, 0, 4+len(path))
	buf = binary.LittleEndian.AppendUint16(buf, seq)
	buf = append(buf, service, path.WordLen())
	buf = append(buf, path...)
	return buf
}

// FrameReadTag builds a Read Tag (0x4C) request: <count:u16=1>.
func FrameReadTag(seq uint16, path EPath) []byte {
	buf := frameHeader(seq, SvcReadTag, path)
	return binary.LittleEndian.AppendUint16(buf, 1)
}

// FrameReadTagFragmented builds a Read Tag Fragmented (0x52) request:
// <count:u16> <byte_offset:u32>.
func FrameReadTagFragmented(seq uint16, path EPath, count uint16, byteOffset uint32) []byte {
	buf := frameHeader(seq, SvcReadTagFragmented, path)
	buf = binary.LittleEndian.AppendUint16(buf, count)
	buf = binary.LittleEndian.AppendUint32(buf, byteOffset)
	return buf
}

// FrameWriteTag builds a Write Tag (0x4D) request:
// <type:u16> <count:u16=1> <value-bytes>.
func FrameWriteTag(seq uint16, path EPath, typeCode uint16, value []byte) []byte {
	buf := frameHeader(seq, SvcWriteTag, path)
	buf = binary.LittleEndian.AppendUint16(buf, typeCode)
	buf = binary.LittleEndian.AppendUint16(buf, 1)
	buf = append(buf, value...)
	return buf
}

// FrameWriteTagFragmented builds a Write Tag Fragmented (0x53) request:
// <type:u16> <total_count:u16> <byte_offset:u32> <values>.
func FrameWriteTagFragmented(seq uint16, path EPath, typeCode uint16, totalCount uint16, byteOffset uint32, values []byte) []byte {
	buf := frameHeader(seq, SvcWriteTagFragmented, path)
	buf = binary.LittleEndian.AppendUint16(buf, typeCode)
	buf = binary.LittleEndian.AppendUint16(buf, totalCount)
	buf = binary.LittleEndian.AppendUint32(buf, byteOffset)
	buf = append(buf, values...)
	return buf
}

// FrameReadModifyWrite builds a Read-Modify-Write Tag (0x4E) request:
// <mask_size:u16> <or_mask[mask_size]> <and_mask[mask_size]>.
func FrameReadModifyWrite(seq uint16, path EPath, orMask, andMask []byte) []byte {
	buf := frameHeader(seq, SvcReadModifyWriteTag, path)
	buf = binary.LittleEndian.AppendUint16(buf, uint16(len(orMask)))
	buf = append(buf, orMask...)
	buf = append(buf, andMask...)
	return buf
}

// BitMasks computes the OR/AND masks for a Read-Modify-Write that sets bit b
// of an integer host to v, per §4.3's bit-write encoding rule. isArrayElem
// indicates the base tag is a BOOL-array element (syntactic '[' in the
// original base reference), which always uses a 4-byte mask with b mod 32.
// A non-array bit index of 32 or greater (e.g. bit 40 of a 64-bit LINT
// host) has no Read-Modify-Write encoding - the mask tops out at 4 bytes -
// and is reported as a DataError rather than indexed out of range.
func BitMasks(b int, v bool, isArrayElem bool) (orMask, andMask []byte, bit int, err error) {
	maskSize := 1
	bit = b
	if isArrayElem {
		maskSize = 4
		bit = b % 32
	} else {
		switch {
		case b < 8:
			maskSize = 1
		case b < 16:
			maskSize = 2
		case b < 32:
			maskSize = 4
		default:
			return nil, nil, 0, &DataError{
				Message: fmt.Sprintf("bit index %d exceeds the 32-bit Read-Modify-Write mask", b),
				Code:    ErrWriteFailure,
			}
		}
	}

	orMask = make([]byte, maskSize)
	andMask = make([]byte, maskSize)
	for i := range andMask {
		andMask[i] = 0xFF
	}
	byteIdx := bit / 8
	bitIdx := uint(bit % 8)
	if v {
		orMask[byteIdx] |= 1 << bitIdx
	} else {
		andMask[byteIdx] &^= 1 << bitIdx
	}
	return orMask, andMask, bit, nil
}

// FrameGetInstanceAttributeList builds a Get Instance Attributes List
// (0x55) request for attributes {1: name, 2: symbol type}.
func FrameGetInstanceAttributeList(seq uint16, path EPath) []byte {
	buf := frameHeader(seq, SvcGetInstanceAttributeList, path)
	buf = binary.LittleEndian.AppendUint16(buf, 2)
	buf = binary.LittleEndian.AppendUint16(buf, 1)
	buf = binary.LittleEndian.AppendUint16(buf, 2)
	return buf
}

// FrameGetTemplateAttributes builds a Get Attributes (0x03) request against
// the Template Object for the fixed attribute list (4, 5, 2, 1), written
// out explicitly per the resolved open question in §9 rather than reusing
// a single packed count/id value.
func FrameGetTemplateAttributes(seq uint16, path EPath) []byte {
	buf := frameHeader(seq, SvcGetAttributeList, path)
	buf = binary.LittleEndian.AppendUint16(buf, 4)
	buf = binary.LittleEndian.AppendUint16(buf, 4)
	buf = binary.LittleEndian.AppendUint16(buf, 5)
	buf = binary.LittleEndian.AppendUint16(buf, 2)
	buf = binary.LittleEndian.AppendUint16(buf, 1)
	return buf
}

// FrameReadTemplate builds a Read Template (0x4B) request:
// <offset:u32> <bytes_to_read:u16>.
func FrameReadTemplate(seq uint16, path EPath, offset uint32, bytesToRead uint16) []byte {
	buf := frameHeader(seq, SvcReadTemplate, path)
	buf = binary.LittleEndian.AppendUint32(buf, offset)
	buf = binary.LittleEndian.AppendUint16(buf, bytesToRead)
	return buf
}

// SymbolObjectPath builds the path to the Symbol Object (class 0x6B) at a
// given starting instance, optionally prefixed by a program scope's
// extended symbolic segment.
func SymbolObjectPath(program string, instance uint32) EPath {
	var buf []byte
	if program != "" {
		buf = append(buf, ProgramScopePath(program)...)
	}
	buf = append(buf, segClass8, byte(ClassSymbolObject))
	buf = appendElement16Instance(buf, instance)
	return EPath(buf)
}

// TemplateObjectPath builds the path to a Template Object (class 0x6C)
// instance.
func TemplateObjectPath(templateID uint32) EPath {
	var buf []byte
	buf = append(buf, segClass8, byte(ClassTemplateObject))
	buf = appendElement16Instance(buf, templateID)
	return EPath(buf)
}

// appendElement16Instance appends an instance segment using the 16-bit
// instance-segment form (0x25 0x00 <u16-le>) used by Symbol/Template object
// addressing, regardless of instance magnitude (both objects are addressed
// with 16-bit instance ids on the wire).
func appendElement16Instance(buf []byte, instance uint32) []byte {
	return append(buf, segInstance16Tag, 0x00, byte(instance), byte(instance>>8))
}

// MessageRouterPath is the fixed path used by the Multiple Service Packet:
// class 0x02 (Message Router), instance 1.
func MessageRouterPath() EPath {
	return EPath([]byte{segClass8, ClassMessageRouter, segInstance8, 0x01})
}
