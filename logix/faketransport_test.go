package logix

import (
	"encoding/binary"
	"fmt"
)

// fakeTransport is a scripted Transport double: each SendUnitData call pops
// the next queued raw reply (or error), letting tests drive multi-fragment
// exchanges without a real socket.
type fakeTransport struct {
	connected bool
	seq       uint16
	replies   [][]byte
	errs      []error
	sent      [][]byte

	forwardOpenErr error
}

func (f *fakeTransport) ForwardOpen() error {
	if f.forwardOpenErr != nil {
		return f.forwardOpenErr
	}
	f.connected = true
	return nil
}

func (f *fakeTransport) SendUnitData(msg []byte) ([]byte, error) {
	f.sent = append(f.sent, msg)
	if len(f.errs) > 0 {
		err := f.errs[0]
		f.errs = f.errs[1:]
		if err != nil {
			return nil, err
		}
	}
	if len(f.replies) == 0 {
		return nil, fmt.Errorf("fakeTransport: no more scripted replies")
	}
	r := f.replies[0]
	f.replies = f.replies[1:]
	return r, nil
}

func (f *fakeTransport) NextSequence() uint16 {
	f.seq++
	return f.seq
}

func (f *fakeTransport) IsConnected() bool { return f.connected }

// buildEncapHeader mirrors the teacher's own 24-byte encapsulation header
// layout (command at 0, length at 2, the rest left zero for a synthetic
// success reply).
func buildEncapHeader(command uint16, dataLen int) []byte {
	hdr := make([]byte, 24)
	binary.LittleEndian.PutUint16(hdr[0:2], command)
	binary.LittleEndian.PutUint16(hdr[2:4], uint16(dataLen))
	return hdr
}

// buildSendUnitDataReply constructs a full raw encapsulation frame for
// cip.Classify: service reply at absolute offset 46, general status at 48,
// extended status size at 49 (always zero here), followed by data.
func buildSendUnitDataReply(generalStatus byte, serviceReply byte, data []byte) []byte {
	body := make([]byte, 26)
	body[46-24] = serviceReply
	body[48-24] = generalStatus
	body[49-24] = 0
	full := append(buildEncapHeader(0x70, len(body)+len(data)), body...)
	full = append(full, data...)
	return full
}
