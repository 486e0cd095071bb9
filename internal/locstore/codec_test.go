package locstore

import (
	"errors"
	"testing"

	"github.com/isparth/Distributed-Systems/chunkdir/internal/types"
)

func TestCodec_EncodeDecode(t *testing.T) {
	v := types.ChunkLocations{MaxChunks: 3, Addresses: []string{"h1", "h2"}}
	enc := EncodeValue(v)
	if enc != "3$h1,h2" {
		t.Fatalf("expected 3$h1,h2, got %q", enc)
	}

	got, err := DecodeValue(enc)
	if err != nil {
		t.Fatal(err)
	}
	if got.MaxChunks != 3 || len(got.Addresses) != 2 || got.Addresses[0] != "h1" || got.Addresses[1] != "h2" {
		t.Fatalf("decode mismatch: %+v", got)
	}
}

func TestCodec_EmptyAddressSegment(t *testing.T) {
	got, err := DecodeValue("7$")
	if err != nil {
		t.Fatal(err)
	}
	if got.MaxChunks != 7 || got.Addresses == nil || len(got.Addresses) != 0 {
		t.Fatalf("expected 7 with empty list, got %+v", got)
	}
	if enc := EncodeValue(types.ChunkLocations{MaxChunks: 7}); enc != "7$" {
		t.Fatalf("expected 7$, got %q", enc)
	}
}

func TestCodec_Malformed(t *testing.T) {
	for _, s := range []string{"", "3", "3$a$b", "x$h1", "$h1"} {
		if _, err := DecodeValue(s); !errors.Is(err, ErrMalformedValue) {
			t.Fatalf("%q: expected ErrMalformedValue, got %v", s, err)
		}
	}
}

func TestValidateAddresses(t *testing.T) {
	if err := ValidateAddresses([]string{"10.0.0.1:9000", "db-2"}); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	for _, bad := range []string{"a,b", "a$b", ""} {
		if err := ValidateAddresses([]string{bad}); !errors.Is(err, ErrBadAddress) {
			t.Fatalf("%q: expected ErrBadAddress, got %v", bad, err)
		}
	}
}

func TestMerge_NewAndExistingKey(t *testing.T) {
	// New key takes everything from the update
	first := Merge(types.ChunkLocations{}, false, types.ChunkLocations{MaxChunks: 3, Addresses: []string{"h1", "h2"}})
	if EncodeValue(first) != "3$h1,h2" {
		t.Fatalf("new key: got %q", EncodeValue(first))
	}

	// Existing key keeps MaxChunks and replaces addresses
	second := Merge(first, true, types.ChunkLocations{MaxChunks: 9, Addresses: []string{"h3"}})
	if EncodeValue(second) != "3$h3" {
		t.Fatalf("existing key: got %q", EncodeValue(second))
	}
}

func TestKeyEncoding_DelimiterInFileName(t *testing.T) {
	a := types.ChunkKey{FileName: "a_1", ChunkID: 2, MessageID: "m"}
	b := types.ChunkKey{FileName: "a", ChunkID: 12, MessageID: "m"}

	ea, _ := EncodeKey(a)
	eb, _ := EncodeKey(b)
	if string(ea) == string(eb) {
		t.Fatal("distinct keys must encode differently")
	}
	back, err := DecodeKey(ea)
	if err != nil || back != a {
		t.Fatalf("round trip mismatch: %+v err=%v", back, err)
	}
}
