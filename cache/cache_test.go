package cache

import "testing"

func TestJoinKeyTrimsStrayColons(t *testing.T) {
	got := joinKey("cip", ":plc1:", "Main:Counts")
	want := "cip:plc1:Main:Counts"
	if got != want {
		t.Fatalf("joinKey = %q, want %q", got, want)
	}
}

func TestJoinKeySkipsEmptySegments(t *testing.T) {
	got := joinKey("cip", "", "tag")
	want := "cip:tag"
	if got != want {
		t.Fatalf("joinKey = %q, want %q", got, want)
	}
}
