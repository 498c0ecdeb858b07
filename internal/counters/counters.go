// Package counters exposes the two monotonic process-wide counters
// (total connections, total packets), backed by a named shared-memory
// region so an external monitor process can read them without going
// through this process.
package counters

import (
	"sync/atomic"
	"unsafe"

	"github.com/marmos91/cardserver/internal/shm"
)

// regionSize is two adjacent, 8-byte-aligned u64 slots.
const regionSize = 16

const (
	connOffset    = 0
	packetsOffset = 8
)

// Counters wraps a shared-memory region holding the connections and
// packets counters as aligned 64-bit words, updated with atomic
// fetch-add so torn reads are impossible for any reader performing an
// aligned 64-bit load.
type Counters struct {
	region *shm.Region
}

// Open maps (creating if necessary) the counters region at path.
func Open(path string) (*Counters, error) {
	region, err := shm.Open(path, regionSize)
	if err != nil {
		return nil, err
	}
	return &Counters{region: region}, nil
}

// slot returns an aligned *uint64 view into the mapped region at offset.
// The mmap base address is page-aligned and offset is always a multiple
// of 8, so the resulting pointer satisfies uint64's alignment
// requirement for atomic access.
func (c *Counters) slot(offset int) *uint64 {
	b := c.region.Bytes()[offset : offset+8 : offset+8]
	return (*uint64)(unsafe.Pointer(&b[0]))
}

// IncConnections atomically increments the total-connections counter and
// returns the new value.
func (c *Counters) IncConnections() uint64 {
	return atomic.AddUint64(c.slot(connOffset), 1)
}

// IncPackets atomically increments the total-packets counter and returns
// the new value.
func (c *Counters) IncPackets() uint64 {
	return atomic.AddUint64(c.slot(packetsOffset), 1)
}

// Connections performs an unsynchronised atomic load of the connections
// counter, safe for an external reader.
func (c *Counters) Connections() uint64 {
	return atomic.LoadUint64(c.slot(connOffset))
}

// Packets performs an unsynchronised atomic load of the packets counter.
func (c *Counters) Packets() uint64 {
	return atomic.LoadUint64(c.slot(packetsOffset))
}

// Close unmaps the counters region without removing the backing file.
func (c *Counters) Close() error {
	return c.region.Close()
}
