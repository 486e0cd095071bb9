package cluster

import (
	"errors"
	"fmt"
	"strings"
)

var (
	ErrNoPeers       = errors.New("cluster: peer list is empty")
	ErrBadSelfIndex  = errors.New("cluster: self index out of range")
	ErrUnknownMember = errors.New("cluster: unknown member index")
)

// Directory is the static, ordered list of cluster endpoints. The position
// of an endpoint in the list is the member's index everywhere else.
type Directory struct {
	endpoints []string
	self      int
}

// New creates a Directory. self is this node's position in endpoints.
func New(endpoints []string, self int) (*Directory, error) {
	if len(endpoints) == 0 {
		return nil, ErrNoPeers
	}
	if self < 0 || self >= len(endpoints) {
		return nil, fmt.Errorf("%w: %d not in [0, %d)", ErrBadSelfIndex, self, len(endpoints))
	}
	eps := make([]string, len(endpoints))
	for i, e := range endpoints {
		eps[i] = strings.TrimRight(strings.TrimSpace(e), "/")
	}
	return &Directory{endpoints: eps, self: self}, nil
}

// Parse builds a Directory from a comma-separated endpoint list
// (e.g. "http://localhost:8080,http://localhost:8081").
func Parse(list string, self int) (*Directory, error) {
	var eps []string
	for _, p := range strings.Split(list, ",") {
		if p = strings.TrimSpace(p); p != "" {
			eps = append(eps, p)
		}
	}
	return New(eps, self)
}

func (d *Directory) Size() int {
	return len(d.endpoints)
}

func (d *Directory) SelfIndex() int {
	return d.self
}

// EndpointAt returns the base URL of member i.
func (d *Directory) EndpointAt(i int) (string, error) {
	if i < 0 || i >= len(d.endpoints) {
		return "", fmt.Errorf("%w: %d", ErrUnknownMember, i)
	}
	return d.endpoints[i], nil
}

// Peers returns every member index except self, in directory order.
func (d *Directory) Peers() []int {
	peers := make([]int, 0, len(d.endpoints)-1)
	for i := range d.endpoints {
		if i != d.self {
			peers = append(peers, i)
		}
	}
	return peers
}

// Majority is the smallest vote count that is strictly more than half the cluster.
func (d *Directory) Majority() int {
	return len(d.endpoints)/2 + 1
}
