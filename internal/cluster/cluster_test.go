package cluster

import (
	"errors"
	"testing"
)

func TestDirectory_ParseAndPeers(t *testing.T) {
	d, err := Parse("http://a:1, http://b:2/ ,http://c:3,", 1)
	if err != nil {
		t.Fatal(err)
	}
	if d.Size() != 3 {
		t.Fatalf("expected size 3, got %d", d.Size())
	}
	ep, err := d.EndpointAt(1)
	if err != nil || ep != "http://b:2" {
		t.Fatalf("expected trimmed endpoint, got %q err=%v", ep, err)
	}
	peers := d.Peers()
	if len(peers) != 2 || peers[0] != 0 || peers[1] != 2 {
		t.Fatalf("peers mismatch: %v", peers)
	}
}

func TestDirectory_Majority(t *testing.T) {
	cases := []struct {
		n    int
		want int
	}{
		{1, 1}, {2, 2}, {3, 2}, {4, 3}, {5, 3},
	}
	for _, c := range cases {
		eps := make([]string, c.n)
		for i := range eps {
			eps[i] = "http://x"
		}
		d, err := New(eps, 0)
		if err != nil {
			t.Fatal(err)
		}
		if got := d.Majority(); got != c.want {
			t.Fatalf("n=%d: expected majority %d, got %d", c.n, c.want, got)
		}
	}
}

func TestDirectory_Errors(t *testing.T) {
	if _, err := Parse(" , ", 0); !errors.Is(err, ErrNoPeers) {
		t.Fatalf("expected ErrNoPeers, got %v", err)
	}
	if _, err := Parse("http://a", 1); !errors.Is(err, ErrBadSelfIndex) {
		t.Fatalf("expected ErrBadSelfIndex, got %v", err)
	}
	d, _ := Parse("http://a", 0)
	if _, err := d.EndpointAt(4); !errors.Is(err, ErrUnknownMember) {
		t.Fatalf("expected ErrUnknownMember, got %v", err)
	}
}
