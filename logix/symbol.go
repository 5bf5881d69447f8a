package logix

import (
	"encoding/binary"
	"fmt"
	"strings"

	"github.com/amrhady2/go-logix-cip/cip"
)

// Enumerate walks the Symbol Object instance list for one scope (empty
// string = controller scope, otherwise a program name) and returns the
// filtered, classified user tags, per §4.6.
func (c *Client) Enumerate(program string) ([]Tag, error) {
	if err := c.ensureSession(); err != nil {
		return nil, err
	}

	entries, err := c.enumerateRaw(program)
	if err != nil {
		return nil, err
	}

	var tags []Tag
	for _, e := range entries {
		name := e.Name
		if program != "" {
			name = program + "." + name
		}

		if strings.HasPrefix(e.Name, "Program:") {
			c.mu.Lock()
			c.programNames[e.Name] = true
			c.mu.Unlock()
			continue
		}
		if strings.Contains(e.Name, ":") || strings.Contains(e.Name, "__") {
			continue
		}
		if e.IsSystem() {
			continue
		}

		tag := Tag{Name: name, InstanceID: e.InstanceID, Dim: e.ArrayDim()}
		if e.IsStruct() {
			tag.Kind = KindStruct
			tag.TemplateInstanceID = e.TemplateInstanceID()
		} else {
			tag.Kind = KindAtomic
			dt, ok := e.AtomicType()
			if !ok {
				tag.Err = &cip.DataError{Message: fmt.Sprintf("unknown atomic type code for %s", name), Code: cip.ErrTagListFailure}
			}
			tag.DataType = dt
			if dt == cip.TypeBOOL {
				tag.HasBit = true
				tag.BitPosition = e.BitPosition()
			}
		}
		tags = append(tags, tag)
	}
	return tags, nil
}

// enumerateRaw drives the Get Instance Attributes List pagination loop and
// returns every SymbolEntry in instance order, unfiltered.
func (c *Client) enumerateRaw(program string) ([]SymbolEntry, error) {
	var all []SymbolEntry
	lastInstance := int64(0)

	for lastInstance != -1 {
		seq := c.transport.NextSequence()
		path := cip.SymbolObjectPath(program, uint32(lastInstance))
		msg := cip.FrameGetInstanceAttributeList(seq, path)

		reply, err := c.send(msg)
		if err != nil {
			return nil, fmt.Errorf("Enumerate: %w", err)
		}

		entries, lastSeen, err := parseSymbolListReply(reply.Data)
		if err != nil {
			return nil, err
		}
		all = append(all, entries...)

		if !reply.MorePackets {
			lastInstance = -1
		} else {
			lastInstance = int64(lastSeen) + 1
		}
	}
	return all, nil
}

// parseSymbolListReply decodes repeated
// <instance_id:u32> <name_len:u16> <name:bytes> <symbol_type:u16> records,
// per §4.6 step 3 (the exact pycomm3 wire layout - no padding, no
// array-size field).
func parseSymbolListReply(data []byte) ([]SymbolEntry, uint32, error) {
	var entries []SymbolEntry
	var lastInstance uint32
	off := 0
	for off+6 <= len(data) {
		instanceID := binary.LittleEndian.Uint32(data[off : off+4])
		nameLen := int(binary.LittleEndian.Uint16(data[off+4 : off+6]))
		off += 6
		if off+nameLen+2 > len(data) {
			return nil, 0, &cip.DataError{Message: "symbol list reply truncated", Code: cip.ErrTagListFailure}
		}
		name := string(data[off : off+nameLen])
		off += nameLen
		symbolType := binary.LittleEndian.Uint16(data[off : off+2])
		off += 2

		entries = append(entries, SymbolEntry{InstanceID: instanceID, Name: name, SymbolType: symbolType})
		lastInstance = instanceID
	}
	return entries, lastInstance, nil
}

// GetTagList enumerates the controller scope and every discovered program
// scope, resolving struct tags' Template/UDT as it goes, matching
// ListAllTags in the original driver.
func (c *Client) GetTagList() ([]Tag, error) {
	ctrlTags, err := c.Enumerate("")
	if err != nil {
		return nil, err
	}

	all := append([]Tag{}, ctrlTags...)
	for _, program := range c.ProgramNames() {
		progTags, err := c.Enumerate(program)
		if err != nil {
			return nil, err
		}
		all = append(all, progTags...)
	}

	for i := range all {
		if all[i].Kind != KindStruct || all[i].Err != nil {
			continue
		}
		t, err := c.GetStructureMakeup(uint32(all[i].TemplateInstanceID))
		if err != nil {
			all[i].Err = err
			continue
		}
		all[i].Template = t
		raw, err := c.ReadTemplate(uint32(all[i].TemplateInstanceID), t.ObjectDefinitionSize)
		if err != nil {
			all[i].Err = err
			continue
		}
		udt, err := c.BuildUDT(uint32(all[i].TemplateInstanceID), raw, t.MemberCount)
		if err != nil {
			all[i].Err = err
			continue
		}
		all[i].UDT = udt
	}
	return all, nil
}
