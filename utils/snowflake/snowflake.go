package snowflake

import (
	"errors"
	"sync"
	"time"
)

const (
	// Epoch is the custom epoch (January 1, 2024 00:00:00 UTC)
	Epoch int64 = 1704067200000 // milliseconds

	workerIDBits uint8 = 10
	sequenceBits uint8 = 12
)

var (
	ErrInvalidWorkerID     = errors.New("worker ID exceeds maximum value")
	ErrClockMovedBackwards = errors.New("clock moved backwards")
)

// Generator generates unique message IDs using the Snowflake algorithm.
// IDs are strictly increasing per generator, which is what makes them
// usable as the room creation order.
type Generator struct {
	mu sync.Mutex

	epoch    int64
	workerID int64

	sequence      int64
	lastTimestamp int64
}

const (
	sequenceMask   = -1 ^ (-1 << sequenceBits)
	workerIDMask   = -1 ^ (-1 << workerIDBits)
	workerIDShift  = sequenceBits
	timestampShift = sequenceBits + workerIDBits
)

// NewGenerator creates a generator bound to one worker (gateway node) ID
func NewGenerator(workerID int64) (*Generator, error) {
	if workerID < 0 || workerID > workerIDMask {
		return nil, ErrInvalidWorkerID
	}
	return &Generator{
		epoch:    Epoch,
		workerID: workerID,
	}, nil
}

// NextID generates the next unique ID
func (g *Generator) NextID() (int64, error) {
	g.mu.Lock()
	defer g.mu.Unlock()

	timestamp := g.currentTimestamp()

	if timestamp < g.lastTimestamp {
		return 0, ErrClockMovedBackwards
	}

	if timestamp == g.lastTimestamp {
		g.sequence = (g.sequence + 1) & sequenceMask
		// Sequence overflow - wait for next millisecond
		if g.sequence == 0 {
			timestamp = g.waitNextMillis(g.lastTimestamp)
		}
	} else {
		g.sequence = 0
	}

	g.lastTimestamp = timestamp

	id := ((timestamp - g.epoch) << timestampShift) |
		(g.workerID << workerIDShift) |
		g.sequence

	return id, nil
}

func (g *Generator) currentTimestamp() int64 {
	return time.Now().UnixNano() / int64(time.Millisecond)
}

func (g *Generator) waitNextMillis(lastTimestamp int64) int64 {
	timestamp := g.currentTimestamp()
	for timestamp <= lastTimestamp {
		timestamp = g.currentTimestamp()
	}
	return timestamp
}

// Parse extracts the components from a Snowflake ID
func Parse(id int64) (timestamp int64, workerID int64, sequence int64) {
	sequence = id & sequenceMask
	workerID = (id >> workerIDShift) & workerIDMask
	timestamp = (id >> timestampShift) + Epoch
	return
}
