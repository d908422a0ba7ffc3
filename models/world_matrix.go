package models

import "strconv"

// WorldMatrix is one board cell. Cells outlive games: a Restart resets them in place.
type WorldMatrix struct {
	ID                    string  `json:"id" gorm:"primaryKey"`
	X                     int64   `json:"x" gorm:"index:idx_world_xy"`
	Y                     int64   `json:"y" gorm:"index:idx_world_xy"`
	Cursed                bool    `json:"cursed"`
	HealthAmountToCollect int64   `json:"healthAmountToCollect"`
	PlayerID              *string `json:"player" gorm:"column:player;index"`
}

// TableName keeps the collection name the game front-end queries.
func (WorldMatrix) TableName() string {
	return "world_matrixes"
}

// CellID builds the "{x}-{y}" key of a cell.
func CellID(x, y int64) string {
	return strconv.FormatInt(x, 10) + "-" + strconv.FormatInt(y, 10)
}

// NewCell returns an empty cell at (x, y).
func NewCell(x, y int64) WorldMatrix {
	return WorldMatrix{ID: CellID(x, y), X: x, Y: y}
}

// Occupant returns the occupying player id, or "" for an empty cell.
func (c WorldMatrix) Occupant() string {
	if c.PlayerID == nil {
		return ""
	}
	return *c.PlayerID
}

// SetOccupant points the cell at a player; "" clears it.
func (c *WorldMatrix) SetOccupant(playerID string) {
	if playerID == "" {
		c.PlayerID = nil
		return
	}
	id := playerID
	c.PlayerID = &id
}

// Clone returns a copy that shares no memory with c.
func (c WorldMatrix) Clone() WorldMatrix {
	out := c
	if c.PlayerID != nil {
		id := *c.PlayerID
		out.PlayerID = &id
	}
	return out
}
