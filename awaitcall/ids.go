package awaitcall

import (
	"strconv"
	"sync/atomic"

	"github.com/google/uuid"
)

// IDGenerator produces correlation ids. Ids must never repeat for the
// lifetime of a generator.
type IDGenerator interface {
	NextID() string
}

// Counter returns an IDGenerator of monotonic decimal ids, starting at 1.
func Counter() IDGenerator {
	return &counter{}
}

type counter struct {
	id uint64
}

func (c *counter) NextID() string {
	return strconv.FormatUint(atomic.AddUint64(&c.id, 1), 10)
}

// UUIDs returns an IDGenerator of random version 4 UUIDs. Useful when a
// transport may be reconnected and stray replies from an earlier session
// must never match a new call.
func UUIDs() IDGenerator {
	return uuidGenerator{}
}

type uuidGenerator struct{}

func (uuidGenerator) NextID() string {
	return uuid.New().String()
}
