package cip

import "testing"

func TestPackUnpackRoundTrip(t *testing.T) {
	cases := []struct {
		name string
		typ  CipType
		val  interface{}
	}{
		{"BOOL true", TypeBOOL, true},
		{"BOOL false", TypeBOOL, false},
		{"SINT negative", TypeSINT, int64(-42)},
		{"INT", TypeINT, int64(-1000)},
		{"DINT", TypeDINT, int64(42)},
		{"LINT", TypeLINT, int64(1234567890123)},
		{"REAL", TypeREAL, float64(3.5)},
		{"LREAL", TypeLREAL, float64(2.71828182845)},
		{"DWORD", TypeDWORD, int64(0xDEADBEEF)},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			encoded, err := Pack(tc.typ, tc.val)
			if err != nil {
				t.Fatalf("Pack: %v", err)
			}
			if len(encoded) != Size(tc.typ) {
				t.Fatalf("Pack: got %d bytes, want %d", len(encoded), Size(tc.typ))
			}
			decoded, err := Unpack(tc.typ, encoded)
			if err != nil {
				t.Fatalf("Unpack: %v", err)
			}

			switch want := tc.val.(type) {
			case float64:
				got, ok := decoded.(float64)
				if !ok || got != want {
					t.Fatalf("got %v, want %v", decoded, want)
				}
			case int64:
				got, ok := decoded.(int64)
				if !ok || got != want {
					t.Fatalf("got %v, want %v", decoded, want)
				}
			case bool:
				got, ok := decoded.(bool)
				if !ok || got != want {
					t.Fatalf("got %v, want %v", decoded, want)
				}
			}
		})
	}
}

func TestIDataTypeAndSDataTypeAgree(t *testing.T) {
	for typ, code := range SDataType {
		got, ok := IDataType[code]
		if !ok {
			t.Fatalf("SDataType[%v]=0x%04X has no IDataType entry", typ, code)
		}
		if got != typ {
			t.Fatalf("round trip mismatch: %v -> 0x%04X -> %v", typ, code, got)
		}
	}
}

func TestBitsWidthTable(t *testing.T) {
	cases := map[CipType]int{
		TypeSINT: 8,
		TypeINT:  16,
		TypeDINT: 32,
		TypeLINT: 64,
	}
	for typ, want := range cases {
		if got := Bits(typ); got != want {
			t.Errorf("Bits(%v) = %d, want %d", typ, got, want)
		}
	}
}
