package events

import (
	"fmt"
	"math/big"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/core/types"
)

// Encode builds the log the game contract would emit for evt. Optional fields pick the
// wire version: a nil CurseInterval or InitialHealth encodes the V1 shape.
// It backs fixtures and local simulations; block timestamps are not part of a log.
func Encode(contract common.Address, evt Event) (types.Log, error) {
	var (
		sig    Signature
		values []any
		err    error
	)
	u8 := func(name string, v int64) uint8 {
		if err == nil && (v < 0 || v > 255) {
			err = fmt.Errorf("%s=%d does not fit in uint8", name, v)
		}
		return uint8(v)
	}

	switch e := evt.(type) {
	case Restart:
		if e.CurseInterval == nil {
			sig = RestartV1
			values = []any{big.NewInt(e.GameID), common.HexToAddress(e.Winner), u8("height", e.Height), u8("width", e.Width)}
		} else {
			sig = RestartV2
			values = []any{big.NewInt(e.GameID), big.NewInt(e.PreviousGameID), common.HexToAddress(e.Winner),
				u8("height", e.Height), u8("width", e.Width), big.NewInt(*e.CurseInterval)}
		}
	case Register:
		if e.InitialHealth == nil {
			sig = RegisterV1
			values = []any{common.HexToAddress(e.Player), big.NewInt(e.LoogieID), u8("x", e.X), u8("y", e.Y)}
		} else {
			sig = RegisterV2
			values = []any{common.HexToAddress(e.Player), big.NewInt(e.LoogieID), u8("x", e.X), u8("y", e.Y),
				big.NewInt(*e.InitialHealth)}
		}
	case Move:
		sig = MoveV1
		values = []any{common.HexToAddress(e.Player), u8("x", e.X), u8("y", e.Y), big.NewInt(e.Health), big.NewInt(e.GameTicker)}
	case NewHealthDrop:
		sig = HealthDropV1
		values = []any{big.NewInt(e.Amount), u8("dropX", e.DropX), u8("dropY", e.DropY)}
	case NewCurseDrop:
		sig = CurseDropV1
		positions := make([]cursePosition, 0, len(e.Positions))
		for _, p := range e.Positions {
			positions = append(positions, cursePosition{X: u8("x", p.X), Y: u8("y", p.Y)})
		}
		values = []any{big.NewInt(e.GameID), big.NewInt(e.CurseDropCount), big.NewInt(e.CurseNextGameTicker), positions}
	case Ticker:
		sig = TickerV1
		values = []any{big.NewInt(e.GameID), big.NewInt(e.GameTicker), e.GameOn}
	default:
		return types.Log{}, fmt.Errorf("encode: unsupported event %T", evt)
	}
	if err != nil {
		return types.Log{}, fmt.Errorf("encode %s: %w", evt.Kind(), err)
	}

	data, err := sig.event.Inputs.Pack(values...)
	if err != nil {
		return types.Log{}, fmt.Errorf("encode %s: %w", evt.Kind(), err)
	}
	meta := evt.Meta()
	return types.Log{
		Address:     contract,
		Topics:      []common.Hash{sig.ID()},
		Data:        data,
		BlockNumber: uint64(meta.BlockNumber),
		TxHash:      common.HexToHash(meta.TxHash),
		Index:       uint(meta.LogIndex),
	}, nil
}
