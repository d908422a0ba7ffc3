// Package events turns raw logs of the game contract into typed domain events.
package events

// Kind names an event variant.
type Kind string

const (
	KindRestart       Kind = "Restart"
	KindRegister      Kind = "Register"
	KindMove          Kind = "Move"
	KindNewHealthDrop Kind = "NewHealthDrop"
	KindNewCurseDrop  Kind = "NewCurseDrop"
	KindTicker        Kind = "Ticker"
)

// Kinds lists every variant in a stable order.
var Kinds = []Kind{KindRestart, KindRegister, KindMove, KindNewHealthDrop, KindNewCurseDrop, KindTicker}

// Envelope is the chain position every event carries.
type Envelope struct {
	BlockNumber    int64  `json:"blockNumber"`
	BlockTimestamp int64  `json:"blockTimestamp"`
	TxHash         string `json:"txHash"`
	LogIndex       int64  `json:"logIndex"`
}

// Meta returns the envelope itself; embedding it satisfies half of Event.
func (e Envelope) Meta() Envelope { return e }

// Event is the closed set of decoded contract events.
type Event interface {
	Kind() Kind
	Meta() Envelope
	isEvent()
}

// Restart starts game GameID and closes game PreviousGameID, naming its winner.
type Restart struct {
	Envelope
	GameID         int64
	PreviousGameID int64
	Winner         string
	Height         int64
	Width          int64
	// CurseInterval is nil for contract versions that did not emit it.
	CurseInterval *int64
}

// Register places a player on the board for the next game.
type Register struct {
	Envelope
	Player   string
	LoogieID int64
	X        int64
	Y        int64
	// InitialHealth is nil for contract versions that did not emit it.
	InitialHealth *int64
}

// Move reports a player's new position and health after an action.
type Move struct {
	Envelope
	Player     string
	X          int64
	Y          int64
	Health     int64
	GameTicker int64
}

// NewHealthDrop drops Amount of collectable health on a cell.
type NewHealthDrop struct {
	Envelope
	DropX  int64
	DropY  int64
	Amount int64
}

// Position is a board coordinate.
type Position struct {
	X int64 `json:"x"`
	Y int64 `json:"y"`
}

// NewCurseDrop curses cells and kills whoever stands on them.
type NewCurseDrop struct {
	Envelope
	GameID              int64
	CurseDropCount      int64
	CurseNextGameTicker int64
	Positions           []Position
}

// Ticker advances the logical clock of a game.
type Ticker struct {
	Envelope
	GameID     int64
	GameTicker int64
	GameOn     bool
}

func (Restart) Kind() Kind       { return KindRestart }
func (Register) Kind() Kind      { return KindRegister }
func (Move) Kind() Kind          { return KindMove }
func (NewHealthDrop) Kind() Kind { return KindNewHealthDrop }
func (NewCurseDrop) Kind() Kind  { return KindNewCurseDrop }
func (Ticker) Kind() Kind        { return KindTicker }

func (Restart) isEvent()       {}
func (Register) isEvent()      {}
func (Move) isEvent()          {}
func (NewHealthDrop) isEvent() {}
func (NewCurseDrop) isEvent()  {}
func (Ticker) isEvent()        {}
