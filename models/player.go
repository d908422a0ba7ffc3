package models

// Player is keyed by the lower-cased address of the wallet that registered it.
// One row per address across every game; re-registration overwrites it.
type Player struct {
	ID              string `json:"id" gorm:"primaryKey;type:varchar(42)"`
	LoogieID        int64  `json:"loogieId"`
	Health          int64  `json:"health"`
	X               int64  `json:"x"`
	Y               int64  `json:"y"`
	Ticker          int64  `json:"ticker"`
	TickerBlock     int64  `json:"tickerBlock"`
	LastActionTick  int64  `json:"lastActionTick"`
	LastActionBlock int64  `json:"lastActionBlock"`
	LastActionTime  int64  `json:"lastActionTime"`
	TransactionHash string `json:"transactionHash" gorm:"type:varchar(66)"`

	CreatedAt int64 `json:"createdAt" gorm:"autoCreateTime:false"`
	UpdatedAt int64 `json:"updatedAt" gorm:"autoUpdateTime:false"`
}

// Alive reports whether the player still has health left.
func (p Player) Alive() bool {
	return p.Health > 0
}
