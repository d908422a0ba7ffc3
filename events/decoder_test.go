package events

import (
	"errors"
	"math/big"
	"testing"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/core/types"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var (
	testContract = common.HexToAddress("0x5FbDB2315678afecb367f032d93F642f64180aa3")
	testTx       = "0x00000000000000000000000000000000000000000000000000000000000000ab"
)

func envelope(block, index int64) Envelope {
	return Envelope{BlockNumber: block, BlockTimestamp: 0, TxHash: testTx, LogIndex: index}
}

func int64p(v int64) *int64 { return &v }

func roundTrip(t *testing.T, evt Event, blockTime uint64) Event {
	t.Helper()
	lg, err := Encode(testContract, evt)
	require.NoError(t, err)
	out, err := NewDecoder().Decode(lg, blockTime)
	require.NoError(t, err)
	return out
}

func TestDecodeRestartV1ComputesPreviousGame(t *testing.T) {
	out := roundTrip(t, Restart{
		Envelope: envelope(10, 0),
		GameID:   4,
		Winner:   "0x00000000000000000000000000000000000000AA",
		Height:   8,
		Width:    6,
	}, 1700000000)

	restart, ok := out.(Restart)
	require.True(t, ok, "got %T", out)
	assert.Equal(t, int64(4), restart.GameID)
	assert.Equal(t, int64(3), restart.PreviousGameID)
	assert.Equal(t, "0x00000000000000000000000000000000000000aa", restart.Winner)
	assert.Equal(t, int64(8), restart.Height)
	assert.Equal(t, int64(6), restart.Width)
	assert.Nil(t, restart.CurseInterval)
	assert.Equal(t, int64(1700000000), restart.BlockTimestamp)
	assert.Equal(t, int64(10), restart.BlockNumber)
	assert.Equal(t, testTx, restart.TxHash)
}

func TestDecodeRestartV2KeepsExplicitFields(t *testing.T) {
	out := roundTrip(t, Restart{
		Envelope:       envelope(11, 2),
		GameID:         9,
		PreviousGameID: 7,
		Winner:         "0x0000000000000000000000000000000000000000",
		Height:         2,
		Width:          3,
		CurseInterval:  int64p(5),
	}, 1)

	restart := out.(Restart)
	assert.Equal(t, int64(7), restart.PreviousGameID)
	require.NotNil(t, restart.CurseInterval)
	assert.Equal(t, int64(5), *restart.CurseInterval)
	assert.Equal(t, int64(2), restart.LogIndex)
}

func TestDecodeRegisterVersions(t *testing.T) {
	v1 := roundTrip(t, Register{Envelope: envelope(1, 0), Player: "0xAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAA", LoogieID: 7, X: 0, Y: 3}, 1).(Register)
	assert.Equal(t, "0xaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaa", v1.Player)
	assert.Equal(t, int64(7), v1.LoogieID)
	assert.Equal(t, int64(3), v1.Y)
	assert.Nil(t, v1.InitialHealth)

	v2 := roundTrip(t, Register{Envelope: envelope(1, 1), Player: "0xaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaa", LoogieID: 7, X: 1, Y: 1, InitialHealth: int64p(250)}, 1).(Register)
	require.NotNil(t, v2.InitialHealth)
	assert.Equal(t, int64(250), *v2.InitialHealth)
}

func TestDecodeMoveAndTicker(t *testing.T) {
	move := roundTrip(t, Move{Envelope: envelope(3, 0), Player: "0x00000000000000000000000000000000000000aa", X: 1, Y: 0, Health: 90, GameTicker: 1}, 5).(Move)
	assert.Equal(t, Move{Envelope: Envelope{BlockNumber: 3, BlockTimestamp: 5, TxHash: testTx}, Player: "0x00000000000000000000000000000000000000aa", X: 1, Y: 0, Health: 90, GameTicker: 1}, move)

	ticker := roundTrip(t, Ticker{Envelope: envelope(4, 0), GameID: 1, GameTicker: 12, GameOn: true}, 5).(Ticker)
	assert.Equal(t, int64(12), ticker.GameTicker)
	assert.True(t, ticker.GameOn)
}

func TestDecodeCurseDropPositions(t *testing.T) {
	out := roundTrip(t, NewCurseDrop{
		Envelope:            envelope(5, 0),
		GameID:              1,
		CurseDropCount:      2,
		CurseNextGameTicker: 20,
		Positions:           []Position{{X: 0, Y: 0}, {X: 1, Y: 0}, {X: 255, Y: 4}},
	}, 5).(NewCurseDrop)

	assert.Equal(t, int64(2), out.CurseDropCount)
	assert.Equal(t, int64(20), out.CurseNextGameTicker)
	assert.Equal(t, []Position{{X: 0, Y: 0}, {X: 1, Y: 0}, {X: 255, Y: 4}}, out.Positions)

	empty := roundTrip(t, NewCurseDrop{Envelope: envelope(5, 1), GameID: 1}, 5).(NewCurseDrop)
	assert.Empty(t, empty.Positions)
}

func TestDecodeHealthDrop(t *testing.T) {
	out := roundTrip(t, NewHealthDrop{Envelope: envelope(6, 0), DropX: 2, DropY: 3, Amount: 25}, 5).(NewHealthDrop)
	assert.Equal(t, int64(25), out.Amount)
	assert.Equal(t, int64(2), out.DropX)
	assert.Equal(t, int64(3), out.DropY)
}

func TestDecodeUnknownSignature(t *testing.T) {
	lg := types.Log{Topics: []common.Hash{common.HexToHash("0xdeadbeef")}, BlockNumber: 9, Index: 4}
	_, err := NewDecoder().Decode(lg, 1)

	var decodeErr *DecodeError
	require.ErrorAs(t, err, &decodeErr)
	assert.True(t, errors.Is(err, ErrUnknownSignature))
	assert.Equal(t, uint64(9), decodeErr.BlockNumber)
	assert.Equal(t, uint(4), decodeErr.LogIndex)
}

func TestDecodeNoTopics(t *testing.T) {
	_, err := NewDecoder().Decode(types.Log{}, 1)
	var decodeErr *DecodeError
	require.ErrorAs(t, err, &decodeErr)
	assert.Equal(t, "log has no topics", decodeErr.Reason)
}

func TestDecodeTruncatedData(t *testing.T) {
	lg, err := Encode(testContract, Move{Envelope: envelope(3, 0), Player: "0x01", X: 1, Y: 1, Health: 1, GameTicker: 1})
	require.NoError(t, err)
	lg.Data = lg.Data[:40]

	_, err = NewDecoder().Decode(lg, 1)
	var decodeErr *DecodeError
	require.ErrorAs(t, err, &decodeErr)
	assert.Equal(t, MoveV1.String(), decodeErr.Signature)
	assert.Equal(t, "malformed parameters", decodeErr.Reason)
}

func TestDecodeRejectsValuesBeyondInt64(t *testing.T) {
	huge := new(big.Int).Lsh(big.NewInt(1), 70)
	data, err := TickerV1.event.Inputs.Pack(big.NewInt(1), huge, true)
	require.NoError(t, err)

	_, err = NewDecoder().Decode(types.Log{Topics: []common.Hash{TickerV1.ID()}, Data: data}, 1)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "gameTicker")
}

func TestTopicsCoverEverySignature(t *testing.T) {
	d := NewDecoder()
	topics := d.Topics()
	require.Len(t, topics, len(AllSignatures))

	seen := map[common.Hash]bool{}
	for _, topic := range topics {
		assert.False(t, seen[topic], "duplicate topic %s", topic.Hex())
		seen[topic] = true
		_, ok := d.Lookup(topic)
		assert.True(t, ok)
	}
	assert.Equal(t, "Move(address,uint8,uint8,uint256,uint256)", MoveV1.String())
	assert.NotEqual(t, RestartV1.ID(), RestartV2.ID())
}

func TestEncodeRejectsOffBoardCoordinates(t *testing.T) {
	_, err := Encode(testContract, NewHealthDrop{DropX: 300, DropY: 0, Amount: 1})
	assert.ErrorContains(t, err, "dropX=300")
}
