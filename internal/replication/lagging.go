package replication

import (
	"sort"
	"strconv"
	"time"

	"github.com/patrickmn/go-cache"
	"github.com/theritikchoure/logx"
)

const defaultLaggingTTL = 5 * time.Minute

// laggingPeers remembers members whose last confirm failed. Marks expire
// after the TTL or when a later confirm to that member succeeds.
type laggingPeers struct {
	c *cache.Cache
}

func newLaggingPeers(ttl time.Duration) *laggingPeers {
	return &laggingPeers{c: cache.New(ttl, 2*ttl)}
}

func (l *laggingPeers) mark(peer int) {
	key := strconv.Itoa(peer)
	if _, found := l.c.Get(key); !found {
		logx.Logf("[replication] peer %d is lagging behind the leader", logx.FGBLACK, logx.BGCYAN, peer)
	}
	l.c.SetDefault(key, time.Now())
}

func (l *laggingPeers) clear(peer int) {
	l.c.Delete(strconv.Itoa(peer))
}

func (l *laggingPeers) list() []int {
	items := l.c.Items()
	if len(items) == 0 {
		return nil
	}
	out := make([]int, 0, len(items))
	for k := range items {
		if p, err := strconv.Atoi(k); err == nil {
			out = append(out, p)
		}
	}
	sort.Ints(out)
	return out
}
