package cip

import "encoding/binary"

// SubRequest is one CIP service request to be bundled into a Multiple
// Service Packet.
type SubRequest struct {
	Service byte
	Path    EPath
	Body    []byte // service-specific body, without sequence/service/path
}

// bytes renders the sub-request as it appears inside the Multiple Service
// Packet body: <service:u8> <path_size_words:u8> <path> <body>.
func (r SubRequest) bytes() []byte {
	buf := make([]byte, 0, 2+len(r.Path)+len(r.Body))
	buf = append(buf, r.Service, r.Path.WordLen())
	buf = append(buf, r.Path...)
	buf = append(buf, r.Body...)
	return buf
}

// EncodeMultipleServicePacket frames service 0x0A against the Message
// Router, bundling n sub-requests: <n:u16> <offset_i:u16 ...> <sub_i ...>,
// each offset measured from the start of <n>.
func EncodeMultipleServicePacket(seq uint16, subs []SubRequest) []byte {
	header := frameHeader(seq, SvcMultipleServicePacket, MessageRouterPath())

	n := len(subs)
	encoded := make([][]byte, n)
	for i, s := range subs {
		encoded[i] = s.bytes()
	}

	body := make([]byte, 0, 2+2*n)
	body = binary.LittleEndian.AppendUint16(body, uint16(n))

	offset := uint16(2 + 2*n)
	offsets := make([]byte, 0, 2*n)
	for _, e := range encoded {
		offsets = binary.LittleEndian.AppendUint16(offsets, offset)
		offset += uint16(len(e))
	}
	body = append(body, offsets...)
	for _, e := range encoded {
		body = append(body, e...)
	}

	return append(header, body...)
}

// SubReply is one decoded sub-response from a Multiple Service Packet
// reply.
type SubReply struct {
	Service       byte
	GeneralStatus byte
	ExtStatus     []uint16
	Data          []byte
	OK            bool
}

// DecodeMultipleServicePacketReply parses the body of a Multiple Service
// Packet reply (everything after the outer reply's general status/extended
// status): <n:u16> <offset_i:u16 ...> <sub-reply_i ...>, each sub-reply
// <reply_service:u8> <reserved:u8> <general_status:u8> <extended_size:u8>
// [ext_status...] [data].
func DecodeMultipleServicePacketReply(data []byte) ([]SubReply, error) {
	if len(data) < 2 {
		return nil, newDataError(ErrFragmentParse, "multiservice reply: too short for count")
	}
	n := int(binary.LittleEndian.Uint16(data[0:2]))
	if len(data) < 2+2*n {
		return nil, newDataError(ErrFragmentParse, "multiservice reply: truncated offset table (n=%d)", n)
	}

	offsets := make([]int, n)
	for i := 0; i < n; i++ {
		offsets[i] = int(binary.LittleEndian.Uint16(data[2+2*i : 4+2*i]))
	}

	replies := make([]SubReply, n)
	for i := 0; i < n; i++ {
		start := offsets[i]
		end := len(data)
		if i+1 < n {
			end = offsets[i+1]
		}
		if start < 0 || start > len(data) || end > len(data) || start > end {
			return nil, newDataError(ErrFragmentParse, "multiservice reply: sub-reply %d offset out of range", i)
		}
		sub := data[start:end]
		rep, err := decodeSubReply(sub)
		if err != nil {
			return nil, err
		}
		replies[i] = rep
	}
	return replies, nil
}

func decodeSubReply(sub []byte) (SubReply, error) {
	if len(sub) < 4 {
		return SubReply{}, newDataError(ErrFragmentParse, "multiservice sub-reply: too short")
	}
	service := sub[0]
	status := sub[2]
	extSize := int(sub[3])

	extEnd := 4 + 2*extSize
	if len(sub) < extEnd {
		return SubReply{}, newDataError(ErrFragmentParse, "multiservice sub-reply: truncated extended status")
	}
	ext := make([]uint16, extSize)
	for i := 0; i < extSize; i++ {
		ext[i] = binary.LittleEndian.Uint16(sub[4+2*i : 6+2*i])
	}

	return SubReply{
		Service:       service,
		GeneralStatus: status,
		ExtStatus:     ext,
		Data:          sub[extEnd:],
		OK:            status == StatusSuccess,
	}, nil
}
