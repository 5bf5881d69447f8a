// Package transport implements the EtherNet/IP encapsulation layer: session
// registration, Common Packet Format framing, and a Forward Open/Close
// connected session, satisfying logix.Transport. Nothing in package cip or
// logix imports this package - they depend only on the Transport interface.
package transport

import (
	"encoding/binary"
	"fmt"
)

// Encapsulation commands.
const (
	cmdNOP            uint16 = 0x0000
	cmdRegisterSession uint16 = 0x0065
	cmdSendRRData      uint16 = 0x006F
	cmdSendUnitData    uint16 = 0x0070
)

// encapHeader is the 24-byte EtherNet/IP encapsulation header.
type encapHeader struct {
	command       uint16
	length        uint16
	sessionHandle uint32
	status        uint32
	context       [8]byte
	options       uint32
}

func (h encapHeader) bytes() []byte {
	buf := make([]byte, 0, 24)
	buf = binary.LittleEndian.AppendUint16(buf, h.command)
	buf = binary.LittleEndian.AppendUint16(buf, h.length)
	buf = binary.LittleEndian.AppendUint32(buf, h.sessionHandle)
	buf = binary.LittleEndian.AppendUint32(buf, h.status)
	buf = append(buf, h.context[:]...)
	buf = binary.LittleEndian.AppendUint32(buf, h.options)
	return buf
}

func parseEncapHeader(raw []byte) (encapHeader, []byte, error) {
	if len(raw) < 24 {
		return encapHeader{}, nil, fmt.Errorf("transport: encapsulation header truncated: %d bytes", len(raw))
	}
	h := encapHeader{
		command:       binary.LittleEndian.Uint16(raw[0:2]),
		length:        binary.LittleEndian.Uint16(raw[2:4]),
		sessionHandle: binary.LittleEndian.Uint32(raw[4:8]),
		status:        binary.LittleEndian.Uint32(raw[8:12]),
	}
	copy(h.context[:], raw[12:20])
	h.options = binary.LittleEndian.Uint32(raw[20:24])
	return h, raw[24 : 24+int(h.length)], nil
}

// encapsulate wraps a command-specific payload in the 24-byte header.
func encapsulate(command uint16, sessionHandle uint32, payload []byte) []byte {
	h := encapHeader{command: command, length: uint16(len(payload)), sessionHandle: sessionHandle}
	return append(h.bytes(), payload...)
}

// registerSessionPayload is the fixed RegisterSession command-specific data:
// protocol version 1, options 0.
func registerSessionPayload() []byte {
	return []byte{0x01, 0x00, 0x00, 0x00}
}

func parseRegisterSessionResponse(payload []byte) error {
	if len(payload) < 4 {
		return fmt.Errorf("transport: RegisterSession response truncated")
	}
	return nil
}
