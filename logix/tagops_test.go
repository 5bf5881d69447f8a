package logix

import (
	"bytes"
	"testing"

	"github.com/amrhady2/go-logix-cip/cip"
)

func TestNormalizeTagRef(t *testing.T) {
	base, bit, hasBit := normalizeTagRef("Counts.3")
	if base != "Counts" || bit != 3 || !hasBit {
		t.Fatalf("got (%q, %d, %v), want (Counts, 3, true)", base, bit, hasBit)
	}

	base, _, hasBit = normalizeTagRef("Counts")
	if base != "Counts" || hasBit {
		t.Fatalf("plain tag ref must not be treated as a bit ref: (%q, %v)", base, hasBit)
	}

	base, _, hasBit = normalizeTagRef("Program:Main.Flags.bad")
	if base != "Program:Main.Flags.bad" || hasBit {
		t.Fatalf("non-numeric suffix must not be treated as a bit ref: (%q, %v)", base, hasBit)
	}
}

func TestIsArrayElemRef(t *testing.T) {
	if !isArrayElemRef("Flags[2]") {
		t.Fatal("expected Flags[2] to be recognized as an array element ref")
	}
	if isArrayElemRef("Flags") {
		t.Fatal("plain tag must not be recognized as an array element ref")
	}
}

func TestNormalizeBoolIndex(t *testing.T) {
	base, bit, ok := normalizeBoolIndex("Flags[37]")
	if !ok || base != "Flags[1]" || bit != 5 {
		t.Fatalf("got (%q, %d, %v), want (Flags[1], 5, true)", base, bit, ok)
	}

	if _, _, ok := normalizeBoolIndex("Flags"); ok {
		t.Fatal("plain tag ref must not be treated as a bracket bit ref")
	}
	if _, _, ok := normalizeBoolIndex("Flags[bad]"); ok {
		t.Fatal("non-numeric subscript must not be treated as a bracket bit ref")
	}
}

func TestReadTagScalar(t *testing.T) {
	data := []byte{0xC4, 0x00, 0x2A, 0x00, 0x00, 0x00} // DINT, 42
	ft := &fakeTransport{connected: true, replies: [][]byte{
		buildSendUnitDataReply(cip.StatusSuccess, cip.SvcReadTag|cip.ReplyServiceMask, data),
	}}
	c := NewClient(ft)

	res, err := c.ReadTag("Counts")
	if err != nil {
		t.Fatalf("ReadTag: %v", err)
	}
	if res.Type != cip.TypeDINT || res.Value.(int64) != 42 {
		t.Fatalf("got %+v, want DINT 42", res)
	}

	last := c.LastTagRead()
	if last.Tag != "Counts" || last.Value.(int64) != 42 {
		t.Fatalf("LastTagRead not updated: %+v", last)
	}
}

func TestReadTagBitExtraction(t *testing.T) {
	data := []byte{0xC4, 0x00, 0x05, 0x00, 0x00, 0x00} // DINT, 0b101
	ft := &fakeTransport{connected: true, replies: [][]byte{
		buildSendUnitDataReply(cip.StatusSuccess, cip.SvcReadTag|cip.ReplyServiceMask, data),
	}}
	c := NewClient(ft)

	res, err := c.ReadTag("Word.0")
	if err != nil {
		t.Fatalf("ReadTag: %v", err)
	}
	if res.Type != cip.TypeBOOL || res.Value.(bool) != true {
		t.Fatalf("bit 0 of 0b101 should be true, got %+v", res)
	}

	ft.replies = [][]byte{buildSendUnitDataReply(cip.StatusSuccess, cip.SvcReadTag|cip.ReplyServiceMask, data)}
	res, err = c.ReadTag("Word.1")
	if err != nil {
		t.Fatalf("ReadTag: %v", err)
	}
	if res.Value.(bool) != false {
		t.Fatalf("bit 1 of 0b101 should be false, got %+v", res)
	}
}

func TestReadTagSessionGateInvokesForwardOpen(t *testing.T) {
	data := []byte{0xC4, 0x00, 0x01, 0x00, 0x00, 0x00}
	ft := &fakeTransport{replies: [][]byte{
		buildSendUnitDataReply(cip.StatusSuccess, cip.SvcReadTag|cip.ReplyServiceMask, data),
	}}
	c := NewClient(ft)

	if ft.connected {
		t.Fatal("fakeTransport should start disconnected")
	}
	if _, err := c.ReadTag("Counts"); err != nil {
		t.Fatalf("ReadTag: %v", err)
	}
	if !ft.connected {
		t.Fatal("ensureSession should have invoked ForwardOpen")
	}
}

func TestWriteTagScalar(t *testing.T) {
	ft := &fakeTransport{connected: true, replies: [][]byte{
		buildSendUnitDataReply(cip.StatusSuccess, cip.SvcWriteTag|cip.ReplyServiceMask, nil),
	}}
	c := NewClient(ft)

	if err := c.WriteTag("Counts", int64(7), cip.TypeDINT); err != nil {
		t.Fatalf("WriteTag: %v", err)
	}
	last := c.LastTagWrite()
	if last.Tag != "Counts" || last.Value.(int64) != 7 {
		t.Fatalf("LastTagWrite not updated: %+v", last)
	}
}

func TestWriteTagBitUsesReadModifyWrite(t *testing.T) {
	ft := &fakeTransport{connected: true, replies: [][]byte{
		buildSendUnitDataReply(cip.StatusSuccess, cip.SvcReadModifyWriteTag|cip.ReplyServiceMask, nil),
	}}
	c := NewClient(ft)

	if err := c.WriteTag("Word.2", true, cip.TypeBOOL); err != nil {
		t.Fatalf("WriteTag: %v", err)
	}
	if len(ft.sent) != 1 {
		t.Fatalf("expected exactly one request sent, got %d", len(ft.sent))
	}
}

func TestWriteTagBracketFormBoolArray(t *testing.T) {
	ft := &fakeTransport{connected: true, replies: [][]byte{
		buildSendUnitDataReply(cip.StatusSuccess, cip.SvcReadModifyWriteTag|cip.ReplyServiceMask, nil),
	}}
	c := NewClient(ft)

	// Flags[37] is bit 5 of the DWORD element Flags[1] (37 = 32 + 5).
	if err := c.WriteTag("Flags[37]", true, cip.TypeBOOL); err != nil {
		t.Fatalf("WriteTag: %v", err)
	}
	if len(ft.sent) != 1 {
		t.Fatalf("expected exactly one request sent, got %d", len(ft.sent))
	}
	want := []byte{4, 0, 0x20, 0, 0, 0, 0xFF, 0xFF, 0xFF, 0xFF}
	got := ft.sent[0][len(ft.sent[0])-len(want):]
	if !bytes.Equal(got, want) {
		t.Fatalf("mask bytes = % X, want % X", got, want)
	}
}

func TestWriteTagBitIndexOutOfRangeReturnsError(t *testing.T) {
	ft := &fakeTransport{connected: true}
	c := NewClient(ft)

	// Host.40 addresses bit 40 of a non-array integer host - no Read-
	// Modify-Write mask covers more than 32 bits, so this must fail
	// gracefully rather than index out of range.
	if err := c.WriteTag("Host.40", true, cip.TypeBOOL); err == nil {
		t.Fatal("expected an error for a non-array bit index >= 32")
	}
	if len(ft.sent) != 0 {
		t.Fatalf("expected no message to reach the transport, got %d", len(ft.sent))
	}
}

func TestWriteTagMultiDropsOutOfRangeBitWrite(t *testing.T) {
	ft := &fakeTransport{connected: true, replies: [][]byte{
		buildSendUnitDataReply(cip.StatusSuccess, cip.SvcMultipleServicePacket|cip.ReplyServiceMask, multiServiceOneOKReply()),
	}}
	c := NewClient(ft)

	results, err := c.WriteTagMulti([]WriteItem{
		{Name: "Host.40", Value: true, Type: cip.TypeBOOL},
		{Name: "Counts", Value: int64(7), Type: cip.TypeDINT},
	})
	if err != nil {
		t.Fatalf("WriteTagMulti: %v", err)
	}
	if len(results) != 2 {
		t.Fatalf("expected 2 results (one dropped, one sent), got %d", len(results))
	}
	if results[0].OK || results[0].Err == nil {
		t.Fatalf("expected Host.40 to be reported as a dropped failure, got %+v", results[0])
	}
	if !results[1].OK {
		t.Fatalf("expected Counts to succeed, got %+v", results[1])
	}
	if len(ft.sent) != 1 {
		t.Fatalf("expected exactly one Multiple Service Packet (the dropped entry never reaches the wire), got %d", len(ft.sent))
	}
}

func TestReadArrayFragmentation(t *testing.T) {
	// Fragment 1: partial transfer carrying two DINT elements.
	frag1 := append([]byte{0xC4, 0x00},
		append(le32(1), le32(2)...)...)
	// Fragment 2: success carrying the final element.
	frag2 := append([]byte{0xC4, 0x00}, le32(3)...)

	ft := &fakeTransport{connected: true, replies: [][]byte{
		buildSendUnitDataReply(cip.StatusPartialTransfer, cip.SvcReadTagFragmented|cip.ReplyServiceMask, frag1),
		buildSendUnitDataReply(cip.StatusSuccess, cip.SvcReadTagFragmented|cip.ReplyServiceMask, frag2),
	}}
	c := NewClient(ft)

	elements, err := c.ReadArray("Counts", 3, false)
	if err != nil {
		t.Fatalf("ReadArray: %v", err)
	}
	if len(elements) != 3 {
		t.Fatalf("expected 3 elements across 2 fragments, got %d", len(elements))
	}
	for i, want := range []int64{1, 2, 3} {
		if elements[i].Value.(int64) != want {
			t.Fatalf("element %d = %v, want %d", i, elements[i].Value, want)
		}
	}
	if len(ft.sent) != 2 {
		t.Fatalf("expected exactly 2 requests (one per fragment), got %d", len(ft.sent))
	}
}

func le32(v int32) []byte {
	return []byte{byte(v), byte(v >> 8), byte(v >> 16), byte(v >> 24)}
}

// multiServiceOneOKReply builds a Multiple Service Packet reply body
// carrying exactly one successful Write Tag sub-reply: <n=1> <offset> <sub>.
func multiServiceOneOKReply() []byte {
	sub := []byte{cip.SvcWriteTag | cip.ReplyServiceMask, 0, cip.StatusSuccess, 0}
	body := []byte{1, 0, 4, 0}
	return append(body, sub...)
}
