package xendian

import "testing"

func TestUint32RoundTrip(t *testing.T) {
	for _, o := range []Order{Little, Big, VAX} {
		b := make([]byte, 4)
		PutUint32(b, 0x01020304, o)
		if got := Uint32(b, o); got != 0x01020304 {
			t.Fatalf("order %v: got %#x", o, got)
		}
	}
}

func TestUint32LittleBigDiffer(t *testing.T) {
	b := []byte{0x01, 0x00, 0x00, 0x00}
	if got := Uint32(b, Little); got != 1 {
		t.Fatalf("little = %d, want 1", got)
	}
	if got := Uint32(b, Big); got != 0x01000000 {
		t.Fatalf("big = %#x, want 0x01000000", got)
	}
}

func TestUint64RoundTrip(t *testing.T) {
	for _, o := range []Order{Little, Big, VAX} {
		b := make([]byte, 8)
		const v = uint64(0x0102030405060708)
		PutUint64(b, v, o)
		if got := Uint64(b, o); got != v {
			t.Fatalf("order %v: got %#x, want %#x", o, got, v)
		}
	}
}

func TestUint16RoundTrip(t *testing.T) {
	for _, o := range []Order{Little, Big} {
		b := make([]byte, 2)
		PutUint16(b, 0x0102, o)
		if got := Uint16(b, o); got != 0x0102 {
			t.Fatalf("order %v: got %#x", o, got)
		}
	}
}
