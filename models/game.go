// models/game.go
package models

import "strings"

// ZeroAddress is the sentinel stored in Game.Winner until a later Restart names the winner.
const ZeroAddress = "0x0000000000000000000000000000000000000000"

// Game is one round of the battle royale, keyed by the stringified contract game id.
// Timestamps are block timestamps (unix seconds), never wall clock.
type Game struct {
	ID                  string `json:"id" gorm:"primaryKey"`
	GameID              int64  `json:"gameId" gorm:"index"`
	Height              int64  `json:"height"`
	Width               int64  `json:"width"`
	Ticker              int64  `json:"ticker"`
	TickerBlock         int64  `json:"tickerBlock"`
	GameOn              bool   `json:"gameOn"`
	Winner              string `json:"winner" gorm:"type:varchar(42);not null"`
	CurseDropCount      int64  `json:"curseDropCount"`
	CurseInterval       int64  `json:"curseInterval"`
	CurseNextGameTicker int64  `json:"curseNextGameTicker"`
	RestartBlock        int64  `json:"restartBlock"`

	CreatedAt int64 `json:"createdAt" gorm:"autoCreateTime:false"`
	UpdatedAt int64 `json:"updatedAt" gorm:"autoUpdateTime:false"`
}

// HasWinner reports whether the winner has been finalized.
func (g Game) HasWinner() bool {
	return g.Winner != "" && !IsZeroAddress(g.Winner)
}

// IsZeroAddress treats an empty string the same as the zero address.
func IsZeroAddress(addr string) bool {
	return addr == "" || strings.EqualFold(addr, ZeroAddress)
}
