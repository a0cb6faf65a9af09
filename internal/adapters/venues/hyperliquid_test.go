package venues_test

import (
	"encoding/json"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"atlas/internal/adapters/venues"
)

const hlState = `{
	"marginSummary": {
		"accountValue": "1245.33",
		"totalMarginUsed": "162.22"
	},
	"assetPositions": [
		{
			"position": {
				"coin": "BTC",
				"szi": "0.0125",
				"positionValue": "810.27",
				"entryPx": "64821.6",
				"unrealizedPnl": "12.4"
			}
		},
		{
			"position": {
				"coin": "ETH",
				"szi": "-0.5",
				"positionValue": "-1620.10",
				"entryPx": "3240.2"
			}
		},
		{
			"position": {
				"coin": "SOL",
				"szi": "0",
				"positionValue": "0",
				"entryPx": "0"
			}
		}
	]
}`

const hlFills = `[
	{"coin": "BTC", "px": "64821.6", "sz": "0.0125", "side": "B", "dir": "Open Long", "closedPnl": "0", "fee": "0.32", "time": 1767268800000},
	{"coin": "BTC", "px": "65900.0", "sz": "0.0125", "side": "A", "dir": "Close Long", "closedPnl": "13.48", "fee": "0.33", "time": 1767272400000},
	{"coin": "ETH", "px": "3240.2", "sz": "0.5", "side": "A", "dir": "Open Short", "closedPnl": "0", "fee": "0.81", "time": 1767268800000}
]`

func dec(s string) decimal.Decimal {
	return decimal.RequireFromString(s)
}

func TestHyperliquid_ParseCycle(t *testing.T) {
	adapter := venues.NewHyperliquid()
	accountID := uuid.New()
	observedAt := time.Date(2026, 1, 1, 12, 0, 0, 0, time.UTC)

	cycle, err := adapter.ParseCycle(accountID, observedAt, json.RawMessage(hlState), json.RawMessage(hlFills))
	require.NoError(t, err)

	assert.Equal(t, accountID, cycle.AccountID)
	assert.Equal(t, venues.VenueHyperliquid, cycle.Venue)
	assert.True(t, cycle.Ledger.TotalEquity.Equal(dec("1245.33")))
	assert.True(t, cycle.Ledger.TotalMarginUsed.Equal(dec("162.22")))

	// Zero-size SOL position is dropped
	require.Len(t, cycle.Positions, 2)

	btc := cycle.Positions[0]
	assert.Equal(t, "BTC", btc.Symbol)
	assert.Equal(t, "LONG", btc.Side)
	assert.True(t, btc.Size.Equal(dec("0.0125")))
	assert.True(t, btc.NotionalUSD.Equal(dec("810.27")))
	assert.Nil(t, btc.MarginRate, "hyperliquid reports no margin rate")
	assert.NotEmpty(t, btc.Raw)

	eth := cycle.Positions[1]
	assert.Equal(t, "SHORT", eth.Side)
	assert.True(t, eth.Size.Equal(dec("0.5")), "size must be absolute")
	assert.True(t, eth.NotionalUSD.Equal(dec("1620.10")))
}

func TestHyperliquid_ParseFills(t *testing.T) {
	adapter := venues.NewHyperliquid()

	cycle, err := adapter.ParseCycle(uuid.New(), time.Now(), json.RawMessage(hlState), json.RawMessage(hlFills))
	require.NoError(t, err)
	require.Len(t, cycle.Fills, 3)

	open := cycle.Fills[0]
	require.NotNil(t, open.IsReducing)
	assert.False(t, *open.IsReducing)
	assert.Equal(t, "LONG", open.Side)
	assert.True(t, open.EntryPrice.Equal(dec("64821.6")))
	assert.True(t, open.ExitPrice.IsZero())

	closeFill := cycle.Fills[1]
	require.NotNil(t, closeFill.IsReducing)
	assert.True(t, *closeFill.IsReducing)
	assert.True(t, closeFill.ExitPrice.Equal(dec("65900.0")))
	assert.True(t, closeFill.EntryPrice.IsZero())
	assert.True(t, closeFill.RealizedPnL.Equal(dec("13.48")))
	assert.Equal(t, time.UnixMilli(1767272400000).UTC(), closeFill.ObservedAt)

	short := cycle.Fills[2]
	assert.Equal(t, "SHORT", short.Side)
	require.NotNil(t, short.IsReducing)
	assert.False(t, *short.IsReducing)
}

func TestHyperliquid_EmptyFills(t *testing.T) {
	adapter := venues.NewHyperliquid()

	cycle, err := adapter.ParseCycle(uuid.New(), time.Now(), json.RawMessage(hlState), nil)
	require.NoError(t, err)
	assert.Empty(t, cycle.Fills)
}

func TestHyperliquid_MalformedState(t *testing.T) {
	adapter := venues.NewHyperliquid()

	_, err := adapter.ParseCycle(uuid.New(), time.Now(), json.RawMessage(`{"marginSummary": []}`), nil)
	require.Error(t, err)
}
