package events

import (
	"fmt"
	"math/big"
	"strings"

	"github.com/ethereum/go-ethereum/accounts/abi"
	"github.com/ethereum/go-ethereum/common"
)

// Every shape the game contract has emitted. Later deployments renamed nothing on the wire
// but appended fields, so each version is its own signature and topic.
const (
	restartV1ABI = `[{"type":"event","name":"Restart","anonymous":false,"inputs":[
		{"name":"gameId","type":"uint256","indexed":false},
		{"name":"winner","type":"address","indexed":false},
		{"name":"height","type":"uint8","indexed":false},
		{"name":"width","type":"uint8","indexed":false}]}]`

	restartV2ABI = `[{"type":"event","name":"Restart","anonymous":false,"inputs":[
		{"name":"gameId","type":"uint256","indexed":false},
		{"name":"previousGameId","type":"uint256","indexed":false},
		{"name":"winner","type":"address","indexed":false},
		{"name":"height","type":"uint8","indexed":false},
		{"name":"width","type":"uint8","indexed":false},
		{"name":"curseInterval","type":"uint256","indexed":false}]}]`

	registerV1ABI = `[{"type":"event","name":"Register","anonymous":false,"inputs":[
		{"name":"txOrigin","type":"address","indexed":false},
		{"name":"loogieId","type":"uint256","indexed":false},
		{"name":"x","type":"uint8","indexed":false},
		{"name":"y","type":"uint8","indexed":false}]}]`

	registerV2ABI = `[{"type":"event","name":"Register","anonymous":false,"inputs":[
		{"name":"txOrigin","type":"address","indexed":false},
		{"name":"loogieId","type":"uint256","indexed":false},
		{"name":"x","type":"uint8","indexed":false},
		{"name":"y","type":"uint8","indexed":false},
		{"name":"initialHealth","type":"uint256","indexed":false}]}]`

	moveABI = `[{"type":"event","name":"Move","anonymous":false,"inputs":[
		{"name":"txOrigin","type":"address","indexed":false},
		{"name":"x","type":"uint8","indexed":false},
		{"name":"y","type":"uint8","indexed":false},
		{"name":"health","type":"uint256","indexed":false},
		{"name":"gameTicker","type":"uint256","indexed":false}]}]`

	newHealthDropABI = `[{"type":"event","name":"NewHealthDrop","anonymous":false,"inputs":[
		{"name":"amount","type":"uint256","indexed":false},
		{"name":"dropX","type":"uint8","indexed":false},
		{"name":"dropY","type":"uint8","indexed":false}]}]`

	newCurseDropABI = `[{"type":"event","name":"NewCurseDrop","anonymous":false,"inputs":[
		{"name":"gameId","type":"uint256","indexed":false},
		{"name":"curseDropCount","type":"uint256","indexed":false},
		{"name":"curseNextGameTicker","type":"uint256","indexed":false},
		{"name":"cursePositions","type":"tuple[]","indexed":false,"components":[
			{"name":"x","type":"uint8"},
			{"name":"y","type":"uint8"}]}]}]`

	tickerABI = `[{"type":"event","name":"Ticker","anonymous":false,"inputs":[
		{"name":"gameId","type":"uint256","indexed":false},
		{"name":"gameTicker","type":"uint256","indexed":false},
		{"name":"gameOn","type":"bool","indexed":false}]}]`
)

// Version tags a wire shape of an event.
type Version int

const (
	V1 Version = 1
	V2 Version = 2
)

// Signature identifies one wire shape of one event.
type Signature struct {
	Kind    Kind
	Version Version
	event   abi.Event
}

// ID is the log topic0 of the signature.
func (s Signature) ID() common.Hash { return s.event.ID }

// String is the canonical "Name(type,...)" form.
func (s Signature) String() string { return s.event.Sig }

func mustSignature(kind Kind, version Version, def string) Signature {
	parsed, err := abi.JSON(strings.NewReader(def))
	if err != nil {
		panic(fmt.Sprintf("events: bad ABI for %s v%d: %v", kind, version, err))
	}
	ev, ok := parsed.Events[string(kind)]
	if !ok {
		panic(fmt.Sprintf("events: ABI for %s v%d has no such event", kind, version))
	}
	return Signature{Kind: kind, Version: version, event: ev}
}

var (
	RestartV1     = mustSignature(KindRestart, V1, restartV1ABI)
	RestartV2     = mustSignature(KindRestart, V2, restartV2ABI)
	RegisterV1    = mustSignature(KindRegister, V1, registerV1ABI)
	RegisterV2    = mustSignature(KindRegister, V2, registerV2ABI)
	MoveV1        = mustSignature(KindMove, V1, moveABI)
	HealthDropV1  = mustSignature(KindNewHealthDrop, V1, newHealthDropABI)
	CurseDropV1   = mustSignature(KindNewCurseDrop, V1, newCurseDropABI)
	TickerV1      = mustSignature(KindTicker, V1, tickerABI)
	AllSignatures = []Signature{RestartV1, RestartV2, RegisterV1, RegisterV2, MoveV1, HealthDropV1, CurseDropV1, TickerV1}
)

// Wire layouts. Field tags bind ABI argument names.

type restartV1Args struct {
	GameID *big.Int       `abi:"gameId"`
	Winner common.Address `abi:"winner"`
	Height uint8          `abi:"height"`
	Width  uint8          `abi:"width"`
}

type restartV2Args struct {
	GameID         *big.Int       `abi:"gameId"`
	PreviousGameID *big.Int       `abi:"previousGameId"`
	Winner         common.Address `abi:"winner"`
	Height         uint8          `abi:"height"`
	Width          uint8          `abi:"width"`
	CurseInterval  *big.Int       `abi:"curseInterval"`
}

type registerV1Args struct {
	TxOrigin common.Address `abi:"txOrigin"`
	LoogieID *big.Int       `abi:"loogieId"`
	X        uint8          `abi:"x"`
	Y        uint8          `abi:"y"`
}

type registerV2Args struct {
	TxOrigin      common.Address `abi:"txOrigin"`
	LoogieID      *big.Int       `abi:"loogieId"`
	X             uint8          `abi:"x"`
	Y             uint8          `abi:"y"`
	InitialHealth *big.Int       `abi:"initialHealth"`
}

type moveArgs struct {
	TxOrigin   common.Address `abi:"txOrigin"`
	X          uint8          `abi:"x"`
	Y          uint8          `abi:"y"`
	Health     *big.Int       `abi:"health"`
	GameTicker *big.Int       `abi:"gameTicker"`
}

type healthDropArgs struct {
	Amount *big.Int `abi:"amount"`
	DropX  uint8    `abi:"dropX"`
	DropY  uint8    `abi:"dropY"`
}

type cursePosition struct {
	X uint8
	Y uint8
}

type curseDropArgs struct {
	GameID              *big.Int        `abi:"gameId"`
	CurseDropCount      *big.Int        `abi:"curseDropCount"`
	CurseNextGameTicker *big.Int        `abi:"curseNextGameTicker"`
	CursePositions      []cursePosition `abi:"cursePositions"`
}

type tickerArgs struct {
	GameID     *big.Int `abi:"gameId"`
	GameTicker *big.Int `abi:"gameTicker"`
	GameOn     bool     `abi:"gameOn"`
}
