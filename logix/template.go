package logix

import (
	"encoding/binary"
	"fmt"
	"strings"

	"github.com/amrhady2/go-logix-cip/cip"
)

// Template is the Template Object structure-makeup: the four attributes
// returned by Get Attributes against class 0x6C.
type Template struct {
	ObjectDefinitionSize uint32
	StructureSize        uint32
	MemberCount          uint32
	StructureHandle      uint32
}

// UdtMember is one decoded row of a UDT's member table.
type UdtMember struct {
	ArraySize uint16
	Offset    uint32

	// Exactly one of Atomic/Nested is populated, unless the member could
	// not be resolved at all (None in the original vocabulary).
	Atomic    cip.CipType
	IsAtomic  bool
	Nested    *UdtDescriptor
	Unresolved bool
}

// UdtDescriptor is a reconstructed user-defined type.
type UdtDescriptor struct {
	Name         string
	InternalTags []string
	Members      []UdtMember
}

// GetStructureMakeup issues Get Attributes against the Template Object and
// caches the result, per §4.7 step 1.
func (c *Client) GetStructureMakeup(instanceID uint32) (*Template, error) {
	c.mu.Lock()
	if t, ok := c.structCache[instanceID]; ok {
		c.mu.Unlock()
		return t, nil
	}
	c.mu.Unlock()

	if err := c.ensureSession(); err != nil {
		return nil, err
	}

	seq := c.transport.NextSequence()
	path := cip.TemplateObjectPath(instanceID)
	msg := cip.FrameGetTemplateAttributes(seq, path)

	reply, err := c.send(msg)
	if err != nil {
		return nil, fmt.Errorf("GetStructureMakeup: %w", err)
	}

	t, err := parseTemplateAttributes(reply.Data)
	if err != nil {
		return nil, err
	}

	c.mu.Lock()
	c.structCache[instanceID] = t
	c.mu.Unlock()
	return t, nil
}

// parseTemplateAttributes decodes the four (status:u16, value:u32) pairs
// for attributes 4, 5, 2, 1 in request order, per §4.7 step 1.
func parseTemplateAttributes(data []byte) (*Template, error) {
	const pairSize = 6 // status u16 + value u32
	if len(data) < pairSize*4 {
		return nil, &cip.DataError{Message: "template attributes reply truncated", Code: cip.ErrReadFailure}
	}
	t := &Template{}
	fields := []*uint32{&t.ObjectDefinitionSize, &t.StructureSize, &t.MemberCount, &t.StructureHandle}
	for i, field := range fields {
		off := i * pairSize
		status := binary.LittleEndian.Uint16(data[off : off+2])
		if status != uint16(cip.StatusSuccess) {
			return nil, &cip.DataError{Message: fmt.Sprintf("template attribute %d non-success status 0x%02X", i, status), Code: cip.ErrReadFailure}
		}
		*field = binary.LittleEndian.Uint32(data[off+2 : off+6])
	}
	return t, nil
}

// ReadTemplate issues Read Template in a fragmentation loop and caches the
// concatenated payload, per §4.7 step 2. byte_offset is a local, never
// session state, so a second call for a different instance cannot corrupt
// an in-flight one.
func (c *Client) ReadTemplate(instanceID uint32, objectDefinitionSize uint32) ([]byte, error) {
	c.mu.Lock()
	if b, ok := c.templateCache[instanceID]; ok {
		c.mu.Unlock()
		return b, nil
	}
	c.mu.Unlock()

	if err := c.ensureSession(); err != nil {
		return nil, err
	}

	total := int(objectDefinitionSize)*4 - 21
	var acc []byte
	byteOffset := 0

	path := cip.TemplateObjectPath(instanceID)
	for {
		remaining := total - byteOffset
		if remaining <= 0 {
			break
		}
		seq := c.transport.NextSequence()
		msg := cip.FrameReadTemplate(seq, path, uint32(byteOffset), uint16(remaining))

		reply, err := c.send(msg)
		if err != nil {
			return nil, fmt.Errorf("ReadTemplate: %w", err)
		}
		acc = append(acc, reply.Data...)
		byteOffset += len(reply.Data)

		if !reply.MorePackets {
			break
		}
	}

	c.mu.Lock()
	c.templateCache[instanceID] = acc
	c.mu.Unlock()
	return acc, nil
}

// BuildUDT decodes the member table and name block from raw Read Template
// bytes, recursing into nested structure members, per §4.7 step 3.
func (c *Client) BuildUDT(instanceID uint32, raw []byte, memberCount uint32) (*UdtDescriptor, error) {
	c.mu.Lock()
	if u, ok := c.udtCache[instanceID]; ok {
		c.mu.Unlock()
		return u, nil
	}
	if c.building[instanceID] {
		c.mu.Unlock()
		return nil, nil // cycle guard: refuse to recurse into an in-flight instance id
	}
	c.building[instanceID] = true
	c.mu.Unlock()
	defer func() {
		c.mu.Lock()
		delete(c.building, instanceID)
		c.mu.Unlock()
	}()

	const memberRowSize = 8
	tableLen := int(memberCount) * memberRowSize
	if len(raw) < tableLen {
		return nil, &cip.DataError{Message: "template bytes shorter than member table", Code: cip.ErrReadFailure}
	}

	nameBlock := raw[tableLen:]
	name, internalTags := parseNameBlock(nameBlock)

	udt := &UdtDescriptor{Name: name, InternalTags: internalTags}

	for i := 0; i < int(memberCount); i++ {
		off := i * memberRowSize
		row := raw[off : off+memberRowSize]
		arraySize := binary.LittleEndian.Uint16(row[0:2])
		typeCode := binary.LittleEndian.Uint16(row[2:4])
		offset := binary.LittleEndian.Uint32(row[4:8])

		member := UdtMember{ArraySize: arraySize, Offset: offset}

		if atomic, ok := cip.IDataType[typeCode]; ok {
			member.Atomic = atomic
			member.IsAtomic = true
		} else {
			nestedID := uint16(typeCode & 0x0FFF)
			if atomic, ok := cip.IDataType[nestedID]; ok {
				member.Atomic = atomic
				member.IsAtomic = true
			} else {
				nested, err := c.buildNestedUDT(uint32(nestedID))
				if err != nil || nested == nil {
					member.Unresolved = true
				} else {
					member.Nested = nested
				}
			}
		}
		udt.Members = append(udt.Members, member)
	}

	c.mu.Lock()
	c.udtCache[instanceID] = udt
	c.mu.Unlock()
	return udt, nil
}

// buildNestedUDT fetches a nested template's structure makeup, reads its
// bytes, and recursively builds its descriptor.
func (c *Client) buildNestedUDT(instanceID uint32) (*UdtDescriptor, error) {
	c.mu.Lock()
	if u, ok := c.udtCache[instanceID]; ok {
		c.mu.Unlock()
		return u, nil
	}
	c.mu.Unlock()

	t, err := c.GetStructureMakeup(instanceID)
	if err != nil {
		return nil, err
	}
	raw, err := c.ReadTemplate(instanceID, t.ObjectDefinitionSize)
	if err != nil {
		return nil, err
	}
	return c.BuildUDT(instanceID, raw, t.MemberCount)
}

// parseNameBlock scans NUL-separated tokens of length > 1 in the name
// block: the first token containing ';' yields the UDT name (prefix before
// ';'); tokens containing the internal padding marker are skipped; purely
// alphanumeric tokens become internal tags; everything else is ignored.
func parseNameBlock(block []byte) (string, []string) {
	name := ""
	var internalTags []string

	tokens := strings.Split(string(block), "\x00")
	for _, tok := range tokens {
		if len(tok) <= 1 {
			continue
		}
		if strings.Contains(tok, "ZZZZZZZZZZ") {
			continue
		}
		if name == "" && strings.Contains(tok, ";") {
			name = tok[:strings.Index(tok, ";")]
			continue
		}
		if isAlphanumeric(tok) {
			internalTags = append(internalTags, tok)
		}
	}
	if name == "" {
		name = "Not a user define structure"
	}
	return name, internalTags
}

func isAlphanumeric(s string) bool {
	for _, r := range s {
		if !(r >= '0' && r <= '9' || r >= 'A' && r <= 'Z' || r >= 'a' && r <= 'z') {
			return false
		}
	}
	return true
}
