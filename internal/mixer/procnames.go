package mixer

import (
	"strconv"
	"time"

	"github.com/patrickmn/go-cache"
)

// ProcessNameTTL bounds how long a PID -> name mapping is trusted; PIDs get reused.
const ProcessNameTTL = 30 * time.Second

// nameCache resolves PIDs to executable names from periodic process snapshots.
type nameCache struct {
	snapshot func() (map[uint32]string, error)
	names    *cache.Cache
}

func newNameCache(snapshot func() (map[uint32]string, error)) *nameCache {
	return &nameCache{
		snapshot: snapshot,
		names:    cache.New(ProcessNameTTL, 2*ProcessNameTTL),
	}
}

// Lookup returns the executable name for pid, taking a fresh snapshot on a miss.
func (c *nameCache) Lookup(pid uint32) (string, error) {
	key := strconv.FormatUint(uint64(pid), 10)
	if v, ok := c.names.Get(key); ok {
		return v.(string), nil
	}

	names, err := c.snapshot()
	if err != nil {
		return "", err
	}
	for p, name := range names {
		c.names.SetDefault(strconv.FormatUint(uint64(p), 10), name)
	}
	name, ok := names[pid]
	if !ok {
		// Remember the miss briefly so exited processes do not trigger a snapshot every tick.
		c.names.SetDefault(key, "")
	}
	return name, nil
}
