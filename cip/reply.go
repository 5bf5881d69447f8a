package cip

import "encoding/binary"

// Encapsulation command codes (EtherNet/IP header, offset 0).
const (
	EncapSendRRData   uint16 = 0x6F
	EncapSendUnitData uint16 = 0x70
)

// Reply is the classified shape of one incoming encapsulation frame,
// produced by Classify and consumed by the fragment/enumeration loops in
// package logix.
type Reply struct {
	Command       uint16
	ServiceReply  byte
	GeneralStatus byte
	ExtStatus     []uint16
	Data          []byte // bytes following the (general status, ext status)
	MorePackets   bool   // general status == 0x06
}

// Classify implements the ReplyDispatcher: it validates the encapsulation
// envelope and locates the CIP general status / reply service / data
// according to the command's fixed offsets, without interpreting the data
// itself - that is left to the caller, which knows which parser applies.
func Classify(raw []byte) (*Reply, error) {
	if len(raw) == 0 {
		return nil, newDataError(ErrEncapOrCipStatus, "no reply bytes")
	}
	if len(raw) < 24 {
		return nil, newDataError(ErrEncapOrCipStatus, "encapsulation header truncated: %d bytes", len(raw))
	}

	encapStatus := binary.LittleEndian.Uint32(raw[8:12])
	if encapStatus != 0 {
		return nil, newDataError(ErrEncapOrCipStatus, "encapsulation status 0x%08X", encapStatus)
	}

	command := binary.LittleEndian.Uint16(raw[0:2])

	var serviceOffset, statusOffset int
	switch command {
	case EncapSendRRData:
		serviceOffset, statusOffset = 40, 42
	case EncapSendUnitData:
		serviceOffset, statusOffset = 46, 48
	default:
		return nil, newDataError(ErrEncapOrCipStatus, "unexpected encapsulation command 0x%04X", command)
	}

	if len(raw) < statusOffset+2 {
		return nil, newDataError(ErrEncapOrCipStatus, "reply too short for CIP status at offset %d", statusOffset)
	}

	serviceReply := raw[serviceOffset]
	generalStatus := raw[statusOffset]
	extSize := int(raw[statusOffset+1])

	extStart := statusOffset + 2
	extEnd := extStart + 2*extSize
	if len(raw) < extEnd {
		return nil, newDataError(ErrEncapOrCipStatus, "reply too short for extended status")
	}
	ext := make([]uint16, extSize)
	for i := 0; i < extSize; i++ {
		ext[i] = binary.LittleEndian.Uint16(raw[extStart+2*i : extStart+2+2*i])
	}

	if generalStatus != StatusSuccess && generalStatus != StatusPartialTransfer {
		return &Reply{
			Command:       command,
			ServiceReply:  serviceReply,
			GeneralStatus: generalStatus,
			ExtStatus:     ext,
			Data:          raw[extEnd:],
		}, newDataError(ErrEncapOrCipStatus, "CIP general status 0x%02X", generalStatus)
	}

	return &Reply{
		Command:       command,
		ServiceReply:  serviceReply,
		GeneralStatus: generalStatus,
		ExtStatus:     ext,
		Data:          raw[extEnd:],
		MorePackets:   generalStatus == StatusPartialTransfer,
	}, nil
}
