package transport

import (
	"encoding/binary"
	"fmt"
	"math/rand"
)

// Connection Manager service/class codes.
const (
	svcForwardOpen      byte = 0x54
	svcForwardOpenLarge byte = 0x5B
	svcForwardClose     byte = 0x4E

	classConnectionManager byte = 0x06
	instanceConnManager    byte = 0x01
)

// ForwardOpenConfig parameterizes connection establishment. Defaults match
// what Logix controllers expect from an unconfigured originator.
type ForwardOpenConfig struct {
	OTConnectionSize uint16
	TOConnectionSize uint16
	ConnectionPath   []byte // backplane/slot routing, e.g. {0x01, slot}
	VendorID         uint16
	OriginatorSerial uint32
	Large            bool // use 32-bit connection parameters (0x5B) over 511 bytes
}

// DefaultForwardOpenConfig targets the given slot of the local backplane with
// conservative connection sizes.
func DefaultForwardOpenConfig(slot byte) ForwardOpenConfig {
	return ForwardOpenConfig{
		OTConnectionSize: 504,
		TOConnectionSize: 504,
		ConnectionPath:   []byte{0x01, slot},
		VendorID:         0x0001,
		OriginatorSerial: uint32(rand.Int31()),
	}
}

type connectionState struct {
	otConnID     uint32
	toConnID     uint32
	serialNumber uint16
	vendorID     uint16
	originSerial uint32
}

// buildForwardOpenRequest assembles the Forward Open CIP request, matching
// the byte layout Logix controllers expect for connected messaging.
func buildForwardOpenRequest(cfg ForwardOpenConfig) ([]byte, uint16, uint32) {
	connSerial := uint16(rand.Intn(65000))
	toConnID := uint32(rand.Intn(1<<31 - 1))

	otRPI := uint32(0x00201234)
	toRPI := uint32(0x00204001)
	paramsBase := uint16(0x4200)

	svc := svcForwardOpen
	if cfg.Large {
		svc = svcForwardOpenLarge
	}

	data := make([]byte, 0, 64+len(cfg.ConnectionPath))
	data = append(data, svc, 0x02, 0x20, 0x06, 0x24, 0x01)
	data = append(data, 0x0A, 0x0E)
	data = binary.LittleEndian.AppendUint32(data, 0x20000002)
	data = binary.LittleEndian.AppendUint32(data, toConnID)
	data = binary.LittleEndian.AppendUint16(data, connSerial)
	data = binary.LittleEndian.AppendUint16(data, cfg.VendorID)
	data = binary.LittleEndian.AppendUint32(data, cfg.OriginatorSerial)
	data = binary.LittleEndian.AppendUint32(data, 0x03)
	data = binary.LittleEndian.AppendUint32(data, otRPI)
	if cfg.Large {
		data = binary.LittleEndian.AppendUint32(data, (uint32(paramsBase)<<16)|uint32(cfg.OTConnectionSize))
	} else {
		data = binary.LittleEndian.AppendUint16(data, paramsBase|cfg.OTConnectionSize)
	}
	data = binary.LittleEndian.AppendUint32(data, toRPI)
	if cfg.Large {
		data = binary.LittleEndian.AppendUint32(data, (uint32(paramsBase)<<16)|uint32(cfg.TOConnectionSize))
	} else {
		data = binary.LittleEndian.AppendUint16(data, paramsBase|cfg.TOConnectionSize)
	}
	data = append(data, 0xA3)
	data = append(data, byte(len(cfg.ConnectionPath)/2))
	data = append(data, cfg.ConnectionPath...)

	return data, connSerial, toConnID
}

func parseForwardOpenReply(data []byte) (otConnID, toConnID uint32, err error) {
	if len(data) < 8 {
		return 0, 0, fmt.Errorf("transport: Forward Open reply too short: %d bytes", len(data))
	}
	otConnID = binary.LittleEndian.Uint32(data[0:4])
	toConnID = binary.LittleEndian.Uint32(data[4:8])
	return otConnID, toConnID, nil
}

func buildForwardCloseRequest(cs connectionState, connectionPath []byte) []byte {
	data := make([]byte, 0, 16+len(connectionPath))
	data = append(data, 0x0A, 0x01)
	data = binary.LittleEndian.AppendUint16(data, cs.serialNumber)
	data = binary.LittleEndian.AppendUint16(data, cs.vendorID)
	data = binary.LittleEndian.AppendUint32(data, cs.originSerial)
	pathWords := byte(len(connectionPath) / 2)
	data = append(data, pathWords, 0x00)
	data = append(data, connectionPath...)
	if len(connectionPath)%2 != 0 {
		data = append(data, 0x00)
	}

	req := make([]byte, 0, 8+len(data))
	req = append(req, svcForwardClose, 0x02, 0x20, classConnectionManager, 0x24, instanceConnManager)
	req = append(req, data...)
	return req
}
