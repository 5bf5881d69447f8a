package logix

import (
	"encoding/binary"
	"testing"

	"github.com/amrhady2/go-logix-cip/cip"
)

func symbolListRecord(instanceID uint32, name string, symbolType uint16) []byte {
	buf := make([]byte, 6+len(name)+2)
	binary.LittleEndian.PutUint32(buf[0:4], instanceID)
	binary.LittleEndian.PutUint16(buf[4:6], uint16(len(name)))
	copy(buf[6:6+len(name)], name)
	binary.LittleEndian.PutUint16(buf[6+len(name):], symbolType)
	return buf
}

func TestParseSymbolListReply(t *testing.T) {
	var data []byte
	data = append(data, symbolListRecord(1, "Counts", 0x00C4)...)  // atomic DINT
	data = append(data, symbolListRecord(2, "MyUDT", 0x8007)...)   // struct, template 7

	entries, lastInstance, err := parseSymbolListReply(data)
	if err != nil {
		t.Fatalf("parseSymbolListReply: %v", err)
	}
	if len(entries) != 2 {
		t.Fatalf("expected 2 entries, got %d", len(entries))
	}
	if entries[0].Name != "Counts" || entries[0].IsStruct() {
		t.Fatalf("entry 0 should be atomic Counts, got %+v", entries[0])
	}
	if entries[1].Name != "MyUDT" || !entries[1].IsStruct() || entries[1].TemplateInstanceID() != 7 {
		t.Fatalf("entry 1 should be struct MyUDT/template 7, got %+v", entries[1])
	}
	if lastInstance != 2 {
		t.Fatalf("lastInstance = %d, want 2", lastInstance)
	}
}

func TestParseSymbolListReplyTruncated(t *testing.T) {
	data := symbolListRecord(1, "Counts", 0x00C4)
	_, _, err := parseSymbolListReply(data[:len(data)-1])
	if err == nil {
		t.Fatal("expected error for truncated symbol list reply")
	}
}

func TestEnumerateFiltersSystemAndProgramTags(t *testing.T) {
	var data []byte
	data = append(data, symbolListRecord(1, "Program:Main", 0x8005)...) // program marker, struct-shaped
	data = append(data, symbolListRecord(2, "__system_internal", 0x00C4)...)
	data = append(data, symbolListRecord(3, "SystemTag", 0x10C4)...) // system bit set
	data = append(data, symbolListRecord(4, "UserCounts", 0x00C4)...)

	ft := &fakeTransport{connected: true, replies: [][]byte{
		buildSendUnitDataReply(cip.StatusSuccess, 0, data),
	}}
	c := NewClient(ft)

	tags, err := c.Enumerate("")
	if err != nil {
		t.Fatalf("Enumerate: %v", err)
	}
	if len(tags) != 1 || tags[0].Name != "UserCounts" {
		t.Fatalf("expected only UserCounts to survive filtering, got %+v", tags)
	}
	if names := c.ProgramNames(); len(names) != 1 || names[0] != "Program:Main" {
		t.Fatalf("expected Program:Main recorded in ProgramNames, got %v", names)
	}
}

func TestEnumeratePagination(t *testing.T) {
	page1 := symbolListRecord(1, "A", 0x00C4)
	page2 := symbolListRecord(2, "B", 0x00C4)

	ft := &fakeTransport{connected: true, replies: [][]byte{
		buildSendUnitDataReply(cip.StatusPartialTransfer, 0, page1),
		buildSendUnitDataReply(cip.StatusSuccess, 0, page2),
	}}
	c := NewClient(ft)

	tags, err := c.Enumerate("")
	if err != nil {
		t.Fatalf("Enumerate: %v", err)
	}
	if len(tags) != 2 || tags[0].Name != "A" || tags[1].Name != "B" {
		t.Fatalf("expected [A, B] across 2 pages, got %+v", tags)
	}
	if len(ft.sent) != 2 {
		t.Fatalf("expected 2 requests for 2 pages, got %d", len(ft.sent))
	}
}
