package guest

import (
	"sync"

	"github.com/fxamacker/cbor/v2"

	"github.com/ovmrun/hatchery/internal/errx"
	"github.com/ovmrun/hatchery/pkg/vm"
)

// StorageCall is one remote-resume invocation sent to a storage guest
// (spec §4.7: "bidirectional shared-memory calls"). It is CBOR-framed
// since the storage guest's remote calls cross the same boundary a
// wire protocol would, just backed by shared memory instead of a
// socket.
type StorageCall struct {
	Op      string
	Payload []byte
}

// StorageReply is the storage guest's answer to one StorageCall.
type StorageReply struct {
	OK      bool
	Payload []byte
	Err     string
}

// StoragePair couples one Worker with one cloned storage Worker (spec
// §4.7 "1-to-1 mode"). Access is serialized by a single mutex — the
// only mutex on the request hot path.
type StoragePair struct {
	mu      sync.Mutex
	compute *Worker
	storage vm.Machine
}

// NewStoragePair pairs compute with an already-forked storage machine.
func NewStoragePair(compute *Worker, storage vm.Machine) *StoragePair {
	return &StoragePair{compute: compute, storage: storage}
}

// Call serializes one remote call to the storage guest: encode, send,
// wait for the storage guest to resume and answer, decode.
//
// The storage guest's wait-for-remote-resume syscall and the transport
// that actually moves the framed bytes across the shared-memory channel
// are back-end responsibilities (vm.Machine is a stub above them); this
// method only owns the framing and the one-at-a-time serialization.
func (p *StoragePair) Call(op string, payload []byte, send func(frame []byte) ([]byte, error)) (StorageReply, error) {
	p.mu.Lock()
	defer p.mu.Unlock()

	frame, err := cbor.Marshal(StorageCall{Op: op, Payload: payload})
	if err != nil {
		return StorageReply{}, errx.With(ErrStorageCall, ": encode: %w", err)
	}

	respFrame, err := send(frame)
	if err != nil {
		return StorageReply{}, errx.With(ErrStorageCall, ": %q: %w", op, err)
	}

	var reply StorageReply
	if err := cbor.Unmarshal(respFrame, &reply); err != nil {
		return StorageReply{}, errx.With(ErrStorageCall, ": decode reply: %w", err)
	}
	return reply, nil
}

// Storage returns the paired storage guest's machine.
func (p *StoragePair) Storage() vm.Machine { return p.storage }

// Compute returns the paired compute worker.
func (p *StoragePair) Compute() *Worker { return p.compute }
