// Package session implements the fixed-capacity, shared-memory session
// store: a stable-named region holding up to Cap session entries,
// survivable across a worker's death so a client can resume an
// in-progress match after reconnecting. The region is a fixed-stride
// array addressed by byte offset; each slot is owned by at most one
// worker at a time, and allocation is the only cross-worker race.
package session

import (
	"encoding/binary"
	"errors"
	"fmt"
	"sync/atomic"
	"time"
	"unsafe"

	"github.com/google/uuid"

	"github.com/marmos91/cardserver/internal/frame"
	"github.com/marmos91/cardserver/internal/shm"
)

// Cap is the fixed capacity of the session store.
const Cap = 64

// StateSize and HandSize are the fixed sizes of the serialized state and
// hand blobs each slot stores, matching the wire record sizes so a
// snapshot can be written directly to an outbound STATE/HAND frame.
const (
	StateSize = frame.StateRecordSize
	HandSize  = frame.HandRecordSize
)

// Entry layout, field-by-field encoding (this is an
// in-process/shared-memory layout, not a wire protocol, so byte order
// is an implementation choice; id and lastSeen are big-endian for
// consistency with the wire codec, while valid is a native-order uint32
// so it can be used with sync/atomic):
//
//	valid    uint32 (atomic CAS target)
//	_pad     uint32
//	id       uint64
//	lastSeen int64 (unix nanoseconds)
//	state    [StateSize]byte
//	hand     [HandSize]byte
//	_pad     to align next entry to 8 bytes
const (
	offValid    = 0
	offID       = 8
	offLastSeen = 16
	offState    = 24
	offHand     = offState + StateSize
	entryRawLen = offHand + HandSize
	entryStride = (entryRawLen + 7) &^ 7 // round up to multiple of 8
)

const regionSize = Cap * entryStride

// ErrStoreFull is returned by Allocate when every slot is occupied.
var ErrStoreFull = errors.New("session: store full")

// ErrNotFound is returned by Save/Load/Touch when id has no occupied slot.
var ErrNotFound = errors.New("session: id not found")

// Store is the mmap-backed fixed-capacity session table.
type Store struct {
	region *shm.Region
}

// Open maps (creating if necessary) the session store region at path.
func Open(path string) (*Store, error) {
	region, err := shm.Open(path, regionSize)
	if err != nil {
		return nil, err
	}
	return &Store{region: region}, nil
}

// Close unmaps the store without removing the backing file.
func (s *Store) Close() error {
	return s.region.Close()
}

func (s *Store) entry(slot int) []byte {
	off := slot * entryStride
	return s.region.Bytes()[off : off+entryStride]
}

func (s *Store) validFlag(e []byte) *uint32 {
	b := e[offValid : offValid+4 : offValid+4]
	return (*uint32)(unsafe.Pointer(&b[0]))
}

// Allocate scans for the first free slot, atomically claims it with a
// compare-and-swap on the valid flag (so two racing logins cannot claim
// the same slot), generates a non-zero, collision-free opaque id, and
// returns it. Returns ErrStoreFull if every slot is occupied.
func (s *Store) Allocate() (uint64, error) {
	for slot := 0; slot < Cap; slot++ {
		e := s.entry(slot)
		if !atomic.CompareAndSwapUint32(s.validFlag(e), 0, 1) {
			continue
		}

		id, err := s.newUniqueID()
		if err != nil {
			atomic.StoreUint32(s.validFlag(e), 0)
			return 0, err
		}

		binary.BigEndian.PutUint64(e[offID:offID+8], id)
		s.setLastSeen(e, time.Now())
		return id, nil
	}
	return 0, ErrStoreFull
}

// newUniqueID derives an opaque, unpredictable, non-zero session id from
// a random UUIDv4 folded down to 64 bits and mixed with a clock reading,
// rejecting collisions against any currently-valid id.
func (s *Store) newUniqueID() (uint64, error) {
	for attempt := 0; attempt < 8; attempt++ {
		u := uuid.New()
		hi := binary.BigEndian.Uint64(u[0:8])
		lo := binary.BigEndian.Uint64(u[8:16])
		id := hi ^ lo ^ uint64(time.Now().UnixNano())
		if id == 0 {
			continue
		}
		if !s.idInUse(id) {
			return id, nil
		}
	}
	return 0, fmt.Errorf("session: could not derive a collision-free id")
}

func (s *Store) idInUse(id uint64) bool {
	for slot := 0; slot < Cap; slot++ {
		e := s.entry(slot)
		if atomic.LoadUint32(s.validFlag(e)) == 1 && binary.BigEndian.Uint64(e[offID:offID+8]) == id {
			return true
		}
	}
	return false
}

func (s *Store) find(id uint64) []byte {
	if id == 0 {
		return nil
	}
	for slot := 0; slot < Cap; slot++ {
		e := s.entry(slot)
		if atomic.LoadUint32(s.validFlag(e)) == 1 && binary.BigEndian.Uint64(e[offID:offID+8]) == id {
			return e
		}
	}
	return nil
}

func (s *Store) setLastSeen(e []byte, t time.Time) {
	binary.BigEndian.PutUint64(e[offLastSeen:offLastSeen+8], uint64(t.UnixNano()))
}

// Save overwrites the state and hand blobs for id and updates last-seen.
// state and hand must be exactly StateSize and HandSize bytes.
func (s *Store) Save(id uint64, state, hand []byte) error {
	if len(state) != StateSize {
		return fmt.Errorf("session: state blob must be %d bytes, got %d", StateSize, len(state))
	}
	if len(hand) != HandSize {
		return fmt.Errorf("session: hand blob must be %d bytes, got %d", HandSize, len(hand))
	}
	e := s.find(id)
	if e == nil {
		return ErrNotFound
	}
	copy(e[offState:offState+StateSize], state)
	copy(e[offHand:offHand+HandSize], hand)
	s.setLastSeen(e, time.Now())
	return nil
}

// Load returns copies of the state and hand blobs for id and updates
// last-seen on hit.
func (s *Store) Load(id uint64) (state, hand []byte, err error) {
	e := s.find(id)
	if e == nil {
		return nil, nil, ErrNotFound
	}
	state = append([]byte(nil), e[offState:offState+StateSize]...)
	hand = append([]byte(nil), e[offHand:offHand+HandSize]...)
	s.setLastSeen(e, time.Now())
	return state, hand, nil
}

// Touch updates last-seen for id without touching state or hand.
func (s *Store) Touch(id uint64) error {
	e := s.find(id)
	if e == nil {
		return ErrNotFound
	}
	s.setLastSeen(e, time.Now())
	return nil
}

// Count returns the number of currently-occupied slots. Intended for
// diagnostics/metrics, not the hot path.
func (s *Store) Count() int {
	n := 0
	for slot := 0; slot < Cap; slot++ {
		if atomic.LoadUint32(s.validFlag(s.entry(slot))) == 1 {
			n++
		}
	}
	return n
}
