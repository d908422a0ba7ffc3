package events

import (
	"errors"
	"fmt"
	"math/big"
	"strings"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/core/types"
)

// ErrUnknownSignature marks a log whose topic0 is not a known event.
var ErrUnknownSignature = errors.New("unknown event signature")

// DecodeError reports a log that could not be turned into an Event.
// The caller decides whether to skip the log or halt.
type DecodeError struct {
	Signature   string
	BlockNumber uint64
	TxHash      string
	LogIndex    uint
	Reason      string
	Err         error
}

func (e *DecodeError) Error() string {
	sig := e.Signature
	if sig == "" {
		sig = "<none>"
	}
	msg := fmt.Sprintf("decode log %d of tx %s (block %d, signature %s): %s",
		e.LogIndex, e.TxHash, e.BlockNumber, sig, e.Reason)
	if e.Err != nil {
		msg += ": " + e.Err.Error()
	}
	return msg
}

func (e *DecodeError) Unwrap() error { return e.Err }

type unpackFunc func(sig Signature, data []byte, env Envelope) (Event, error)

// Decoder maps topic0 to the unpacker of that wire shape.
type Decoder struct {
	bySignature map[common.Hash]Signature
	unpackers   map[common.Hash]unpackFunc
}

// NewDecoder knows every shape in AllSignatures.
func NewDecoder() *Decoder {
	d := &Decoder{
		bySignature: make(map[common.Hash]Signature),
		unpackers:   make(map[common.Hash]unpackFunc),
	}
	d.register(RestartV1, unpackRestartV1)
	d.register(RestartV2, unpackRestartV2)
	d.register(RegisterV1, unpackRegisterV1)
	d.register(RegisterV2, unpackRegisterV2)
	d.register(MoveV1, unpackMove)
	d.register(HealthDropV1, unpackHealthDrop)
	d.register(CurseDropV1, unpackCurseDrop)
	d.register(TickerV1, unpackTicker)
	return d
}

func (d *Decoder) register(sig Signature, fn unpackFunc) {
	d.bySignature[sig.ID()] = sig
	d.unpackers[sig.ID()] = fn
}

// Topics returns every known topic0, for server-side log filtering.
func (d *Decoder) Topics() []common.Hash {
	out := make([]common.Hash, 0, len(AllSignatures))
	for _, sig := range AllSignatures {
		if _, ok := d.unpackers[sig.ID()]; ok {
			out = append(out, sig.ID())
		}
	}
	return out
}

// Lookup returns the signature for a topic0.
func (d *Decoder) Lookup(topic common.Hash) (Signature, bool) {
	sig, ok := d.bySignature[topic]
	return sig, ok
}

// Decode converts one log. blockTime is the timestamp of lg.BlockNumber in unix seconds.
// Every failure is a *DecodeError.
func (d *Decoder) Decode(lg types.Log, blockTime uint64) (Event, error) {
	fail := func(sig, reason string, err error) error {
		return &DecodeError{
			Signature:   sig,
			BlockNumber: lg.BlockNumber,
			TxHash:      lg.TxHash.Hex(),
			LogIndex:    lg.Index,
			Reason:      reason,
			Err:         err,
		}
	}

	if len(lg.Topics) == 0 {
		return nil, fail("", "log has no topics", nil)
	}
	sig, ok := d.bySignature[lg.Topics[0]]
	if !ok {
		return nil, fail(lg.Topics[0].Hex(), "no event with this topic", ErrUnknownSignature)
	}
	if lg.BlockNumber > maxInt64 || blockTime > maxInt64 {
		return nil, fail(sig.String(), "block position out of range", nil)
	}

	env := Envelope{
		BlockNumber:    int64(lg.BlockNumber),
		BlockTimestamp: int64(blockTime),
		TxHash:         strings.ToLower(lg.TxHash.Hex()),
		LogIndex:       int64(lg.Index),
	}
	evt, err := d.unpackers[sig.ID()](sig, lg.Data, env)
	if err != nil {
		return nil, fail(sig.String(), "malformed parameters", err)
	}
	return evt, nil
}

const maxInt64 = 1<<63 - 1

// ints converts uint256 parameters, failing on nil or anything that does not fit int64.
type ints struct{ err error }

func (c *ints) get(name string, v *big.Int) int64 {
	if c.err != nil {
		return 0
	}
	if v == nil {
		c.err = fmt.Errorf("%s is missing", name)
		return 0
	}
	if !v.IsInt64() {
		c.err = fmt.Errorf("%s=%s does not fit in int64", name, v.String())
		return 0
	}
	return v.Int64()
}

func address(a common.Address) string {
	return strings.ToLower(a.Hex())
}

func unpackRestartV1(sig Signature, data []byte, env Envelope) (Event, error) {
	var args restartV1Args
	if err := unpackInto(sig, data, &args); err != nil {
		return nil, err
	}
	var c ints
	gameID := c.get("gameId", args.GameID)
	if c.err != nil {
		return nil, c.err
	}
	return Restart{
		Envelope:       env,
		GameID:         gameID,
		PreviousGameID: gameID - 1,
		Winner:         address(args.Winner),
		Height:         int64(args.Height),
		Width:          int64(args.Width),
	}, nil
}

func unpackRestartV2(sig Signature, data []byte, env Envelope) (Event, error) {
	var args restartV2Args
	if err := unpackInto(sig, data, &args); err != nil {
		return nil, err
	}
	var c ints
	evt := Restart{
		Envelope:       env,
		GameID:         c.get("gameId", args.GameID),
		PreviousGameID: c.get("previousGameId", args.PreviousGameID),
		Winner:         address(args.Winner),
		Height:         int64(args.Height),
		Width:          int64(args.Width),
	}
	interval := c.get("curseInterval", args.CurseInterval)
	if c.err != nil {
		return nil, c.err
	}
	evt.CurseInterval = &interval
	return evt, nil
}

func unpackRegisterV1(sig Signature, data []byte, env Envelope) (Event, error) {
	var args registerV1Args
	if err := unpackInto(sig, data, &args); err != nil {
		return nil, err
	}
	var c ints
	evt := Register{
		Envelope: env,
		Player:   address(args.TxOrigin),
		LoogieID: c.get("loogieId", args.LoogieID),
		X:        int64(args.X),
		Y:        int64(args.Y),
	}
	return evt, c.err
}

func unpackRegisterV2(sig Signature, data []byte, env Envelope) (Event, error) {
	var args registerV2Args
	if err := unpackInto(sig, data, &args); err != nil {
		return nil, err
	}
	var c ints
	evt := Register{
		Envelope: env,
		Player:   address(args.TxOrigin),
		LoogieID: c.get("loogieId", args.LoogieID),
		X:        int64(args.X),
		Y:        int64(args.Y),
	}
	health := c.get("initialHealth", args.InitialHealth)
	if c.err != nil {
		return nil, c.err
	}
	evt.InitialHealth = &health
	return evt, nil
}

func unpackMove(sig Signature, data []byte, env Envelope) (Event, error) {
	var args moveArgs
	if err := unpackInto(sig, data, &args); err != nil {
		return nil, err
	}
	var c ints
	evt := Move{
		Envelope:   env,
		Player:     address(args.TxOrigin),
		X:          int64(args.X),
		Y:          int64(args.Y),
		Health:     c.get("health", args.Health),
		GameTicker: c.get("gameTicker", args.GameTicker),
	}
	return evt, c.err
}

func unpackHealthDrop(sig Signature, data []byte, env Envelope) (Event, error) {
	var args healthDropArgs
	if err := unpackInto(sig, data, &args); err != nil {
		return nil, err
	}
	var c ints
	evt := NewHealthDrop{
		Envelope: env,
		DropX:    int64(args.DropX),
		DropY:    int64(args.DropY),
		Amount:   c.get("amount", args.Amount),
	}
	return evt, c.err
}

func unpackCurseDrop(sig Signature, data []byte, env Envelope) (Event, error) {
	var args curseDropArgs
	if err := unpackInto(sig, data, &args); err != nil {
		return nil, err
	}
	var c ints
	evt := NewCurseDrop{
		Envelope:            env,
		GameID:              c.get("gameId", args.GameID),
		CurseDropCount:      c.get("curseDropCount", args.CurseDropCount),
		CurseNextGameTicker: c.get("curseNextGameTicker", args.CurseNextGameTicker),
		Positions:           make([]Position, 0, len(args.CursePositions)),
	}
	for _, p := range args.CursePositions {
		evt.Positions = append(evt.Positions, Position{X: int64(p.X), Y: int64(p.Y)})
	}
	return evt, c.err
}

func unpackTicker(sig Signature, data []byte, env Envelope) (Event, error) {
	var args tickerArgs
	if err := unpackInto(sig, data, &args); err != nil {
		return nil, err
	}
	var c ints
	evt := Ticker{
		Envelope:   env,
		GameID:     c.get("gameId", args.GameID),
		GameTicker: c.get("gameTicker", args.GameTicker),
		GameOn:     args.GameOn,
	}
	return evt, c.err
}

// unpackInto decodes data into out. The ABI package can panic on hostile offsets, so a
// panic is turned into an error here.
func unpackInto(sig Signature, data []byte, out any) (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("abi unpack panicked: %v", r)
		}
	}()
	values, err := sig.event.Inputs.Unpack(data)
	if err != nil {
		return err
	}
	return sig.event.Inputs.Copy(out, values)
}
