package models

import "time"

// Checkpoint records how far the projection has consumed the log of one contract.
// LastLogIndex is -1 when no log of LastBlock has been applied yet.
type Checkpoint struct {
	ID            string    `json:"id" gorm:"primaryKey;type:varchar(64)"`
	NextBlock     int64     `json:"nextBlock"`
	LastBlock     int64     `json:"lastBlock"`
	LastLogIndex  int64     `json:"lastLogIndex"`
	EventsApplied int64     `json:"eventsApplied"`
	UpdatedAt     time.Time `json:"updatedAt"`
}

// NewCheckpoint starts a stream at startBlock with nothing applied.
func NewCheckpoint(id string, startBlock int64) Checkpoint {
	return Checkpoint{
		ID:           id,
		NextBlock:    startBlock,
		LastBlock:    startBlock - 1,
		LastLogIndex: -1,
	}
}

// Covers reports whether the log at (block, index) was already applied.
func (c Checkpoint) Covers(block, index int64) bool {
	if block != c.LastBlock {
		return block < c.LastBlock
	}
	return index <= c.LastLogIndex
}
