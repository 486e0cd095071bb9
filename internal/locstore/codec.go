package locstore

import (
	"encoding/json"
	"errors"
	"fmt"
	"strconv"
	"strings"

	"github.com/isparth/Distributed-Systems/chunkdir/internal/types"
)

const (
	countSep   = "$"
	addressSep = ","
)

var (
	ErrMalformedValue = errors.New("malformed location value")
	ErrBadAddress     = errors.New("address contains a reserved character")
)

// EncodeValue renders v in the wire form "<maxChunks>$<addr1>,<addr2>,...".
func EncodeValue(v types.ChunkLocations) string {
	return strconv.FormatInt(v.MaxChunks, 10) + countSep + strings.Join(v.Addresses, addressSep)
}

// DecodeValue parses the wire form produced by EncodeValue. An empty address
// segment decodes to an empty, non-nil list.
func DecodeValue(s string) (types.ChunkLocations, error) {
	if strings.Count(s, countSep) != 1 {
		return types.ChunkLocations{}, fmt.Errorf("%w: %q", ErrMalformedValue, s)
	}
	head, tail, _ := strings.Cut(s, countSep)
	maxChunks, err := strconv.ParseInt(head, 10, 64)
	if err != nil {
		return types.ChunkLocations{}, fmt.Errorf("%w: bad chunk count %q", ErrMalformedValue, head)
	}
	addrs := []string{}
	if tail != "" {
		addrs = strings.Split(tail, addressSep)
	}
	return types.ChunkLocations{MaxChunks: maxChunks, Addresses: addrs}, nil
}

// ValidateAddresses rejects addresses that cannot survive EncodeValue.
func ValidateAddresses(addrs []string) error {
	for _, a := range addrs {
		if a == "" || strings.ContainsAny(a, countSep+addressSep) {
			return fmt.Errorf("%w: %q", ErrBadAddress, a)
		}
	}
	return nil
}

// Merge applies an update to the previously stored value. A new key takes
// the update as is; an existing key keeps its chunk count and has its
// address list replaced.
func Merge(prev types.ChunkLocations, exists bool, update types.ChunkLocations) types.ChunkLocations {
	out := types.ChunkLocations{
		MaxChunks: update.MaxChunks,
		Addresses: cloneAddrs(update.Addresses),
	}
	if exists {
		out.MaxChunks = prev.MaxChunks
	}
	return out
}

func cloneAddrs(addrs []string) []string {
	out := make([]string, len(addrs))
	copy(out, addrs)
	return out
}

// EncodeKey renders a key for storage and peer RPCs. JSON keeps the fields
// apart no matter what characters a file name contains.
func EncodeKey(k types.ChunkKey) ([]byte, error) {
	return json.Marshal(k)
}

func DecodeKey(b []byte) (types.ChunkKey, error) {
	var k types.ChunkKey
	if err := json.Unmarshal(b, &k); err != nil {
		return types.ChunkKey{}, err
	}
	return k, nil
}
