// Package logix implements the Logix tag-protocol object model on top of
// package cip: symbol table enumeration, UDT template reconstruction, and
// the public scalar/array/string tag operations. It depends on an external
// Transport (see package transport) to actually move bytes.
package logix

import "github.com/amrhady2/go-logix-cip/cip"

// SymbolEntry is one record delivered by Get Instance Attributes List
// against the Symbol Object, before user/system filtering.
type SymbolEntry struct {
	InstanceID uint32
	Name       string
	SymbolType uint16
}

// IsStruct reports whether bit 15 (the structure flag) is set.
func (s SymbolEntry) IsStruct() bool { return s.SymbolType&0x8000 != 0 }

// IsSystem reports whether bit 12 (system/reserved) is set.
func (s SymbolEntry) IsSystem() bool { return s.SymbolType&0x1000 != 0 }

// ArrayDim decodes bits 14-13: the array dimension count (0..3).
func (s SymbolEntry) ArrayDim() int { return int((s.SymbolType >> 13) & 0b11) }

// TemplateInstanceID decodes bits 11-0, valid only when IsStruct is true.
func (s SymbolEntry) TemplateInstanceID() uint16 { return s.SymbolType & 0x0FFF }

// AtomicType resolves bits 7-0 through cip.IDataType, valid only when
// IsStruct is false.
func (s SymbolEntry) AtomicType() (cip.CipType, bool) {
	t, ok := cip.IDataType[uint16(s.SymbolType&0xFF)]
	return t, ok
}

// BitPosition decodes bits 10-8, meaningful only when AtomicType is BOOL.
func (s SymbolEntry) BitPosition() int { return int((s.SymbolType >> 8) & 0b111) }

// TagKind distinguishes the two shapes a Tag can take.
type TagKind int

const (
	KindAtomic TagKind = iota
	KindStruct
)

// Tag is the post-filter, classified shape of a SymbolEntry. It is one
// struct for both shapes: Kind says whether the atomic or the struct
// fields apply, and the fields of the other shape are left at zero. Err
// may be set for either shape.
type Tag struct {
	Kind       TagKind
	Name       string
	InstanceID uint32
	Dim        int

	// Atomic shape.
	DataType    cip.CipType
	HasBit      bool
	BitPosition int

	// Struct shape.
	TemplateInstanceID uint16
	Template           *Template
	UDT                *UdtDescriptor
	Err                error
}
