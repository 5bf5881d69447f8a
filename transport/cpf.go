package transport

import (
	"encoding/binary"
	"fmt"
)

// Common Packet Format item type ids, per ODVA v1.4.
const (
	cpfNullAddress      uint16 = 0x0000
	cpfConnectedAddress uint16 = 0x00A1
	cpfUnconnectedData  uint16 = 0x00B2
	cpfConnectedData    uint16 = 0x00B1
)

type cpfItem struct {
	typeID uint16
	data   []byte
}

func (i cpfItem) bytes() []byte {
	buf := binary.LittleEndian.AppendUint16(nil, i.typeID)
	buf = binary.LittleEndian.AppendUint16(buf, uint16(len(i.data)))
	return append(buf, i.data...)
}

// buildCPF assembles an item-count-prefixed Common Packet Format frame.
func buildCPF(items ...cpfItem) []byte {
	buf := binary.LittleEndian.AppendUint16(nil, uint16(len(items)))
	for _, it := range items {
		buf = append(buf, it.bytes()...)
	}
	return buf
}

// parseCPF splits a CPF frame into its items.
func parseCPF(raw []byte) ([]cpfItem, error) {
	if len(raw) < 2 {
		return nil, fmt.Errorf("transport: CPF frame too short")
	}
	n := int(binary.LittleEndian.Uint16(raw[0:2]))
	raw = raw[2:]
	items := make([]cpfItem, 0, n)
	for i := 0; i < n; i++ {
		if len(raw) < 4 {
			return nil, fmt.Errorf("transport: CPF item %d header truncated", i)
		}
		typeID := binary.LittleEndian.Uint16(raw[0:2])
		length := int(binary.LittleEndian.Uint16(raw[2:4]))
		if len(raw) < 4+length {
			return nil, fmt.Errorf("transport: CPF item %d body truncated", i)
		}
		items = append(items, cpfItem{typeID: typeID, data: raw[4 : 4+length]})
		raw = raw[4+length:]
	}
	return items, nil
}

// connectedDataItem wraps a connected CIP message in a Connected Address
// item (the session's O->T connection id) plus a Connected Data item.
func connectedDataItem(connID uint32, cipMessage []byte) []byte {
	addr := binary.LittleEndian.AppendUint32(nil, connID)
	return buildCPF(
		cpfItem{typeID: cpfConnectedAddress, data: addr},
		cpfItem{typeID: cpfConnectedData, data: cipMessage},
	)
}

// unconnectedDataItem wraps an unconnected CIP message (used only for
// Forward Open and Forward Close, which are sent outside the connection).
func unconnectedDataItem(cipMessage []byte) []byte {
	return buildCPF(
		cpfItem{typeID: cpfNullAddress},
		cpfItem{typeID: cpfUnconnectedData, data: cipMessage},
	)
}

// extractConnectedData pulls the Connected Data item's payload (the raw CIP
// reply) out of a parsed CPF frame.
func extractConnectedData(items []cpfItem) ([]byte, error) {
	for _, it := range items {
		if it.typeID == cpfConnectedData || it.typeID == cpfUnconnectedData {
			return it.data, nil
		}
	}
	return nil, fmt.Errorf("transport: no data item in CPF reply")
}
