package settlement

import (
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/shobande-femi/OrderBook/engine"
	"github.com/shobande-femi/OrderBook/models"
)

type stubDirectory map[uint64]string

func (d stubDirectory) Lookup(orderID uint64) (string, bool) {
	recipient, ok := d[orderID]
	return recipient, ok
}

func trade(maker, taker string, makerOrderID uint64, price, qty float64) *engine.Trade {
	return &engine.Trade{
		TradeID:       uuid.New(),
		Pair:          "USD-to-EUR",
		Price:         decimal.NewFromFloat(price),
		Quantity:      decimal.NewFromFloat(qty),
		MakerTraderID: maker,
		MakerOrderID:  makerOrderID,
		TakerTraderID: taker,
		Timestamp:     time.Now(),
	}
}

func TestTranslateTakeMarket(t *testing.T) {
	req := &models.SwapRequest{
		Intent:         models.IntentTakeMarket,
		SourceCurrency: "EUR",
		TargetCurrency: "USD",
		TraderID:       "sender-wallet",
		RecipientID:    "recipient-wallet",
	}

	legs := Translate([]*engine.Trade{trade("maker-1", "sender-wallet", 7, 1.17, 50)}, req, stubDirectory{})

	require.Len(t, legs, 2)

	// taker pays the maker the matched quantity in the source currency
	assert.Equal(t, "sender-wallet", legs[0].Sender)
	assert.Equal(t, "maker-1", legs[0].Recipient)
	assert.Equal(t, "EUR", legs[0].Currency)
	assert.True(t, legs[0].Quantity.Equal(decimal.NewFromInt(50)))

	// maker pays the named recipient the price-scaled amount
	assert.Equal(t, "maker-1", legs[1].Sender)
	assert.Equal(t, "recipient-wallet", legs[1].Recipient)
	assert.Equal(t, "USD", legs[1].Currency)
	assert.True(t, legs[1].Quantity.Equal(decimal.NewFromFloat(58.5)))
}

func TestTranslateProvideLiquidity(t *testing.T) {
	req := &models.SwapRequest{
		Intent:         models.IntentProvideLiquidity,
		SourceCurrency: "USD",
		TargetCurrency: "EUR",
		TraderID:       "provider",
	}

	directory := stubDirectory{9: "deferred-recipient"}
	legs := Translate([]*engine.Trade{trade("standing-maker", "provider", 9, 1.2, 30)}, req, directory)

	require.Len(t, legs, 2)

	// taker pays the standing order's registered recipient, price-scaled
	assert.Equal(t, "provider", legs[0].Sender)
	assert.Equal(t, "deferred-recipient", legs[0].Recipient)
	assert.Equal(t, "USD", legs[0].Currency)
	assert.True(t, legs[0].Quantity.Equal(decimal.NewFromInt(36)))

	// maker pays the taker the matched quantity unscaled
	assert.Equal(t, "standing-maker", legs[1].Sender)
	assert.Equal(t, "provider", legs[1].Recipient)
	assert.Equal(t, "EUR", legs[1].Currency)
	assert.True(t, legs[1].Quantity.Equal(decimal.NewFromInt(30)))
}

func TestTranslateFallsBackToMakerWhenRecipientMissing(t *testing.T) {
	req := &models.SwapRequest{
		Intent:         models.IntentProvideLiquidity,
		SourceCurrency: "USD",
		TargetCurrency: "EUR",
		TraderID:       "provider",
	}

	legs := Translate([]*engine.Trade{trade("standing-maker", "provider", 9, 1.2, 30)}, req, stubDirectory{})

	require.Len(t, legs, 2)
	assert.Equal(t, "standing-maker", legs[0].Recipient)
}

func TestTranslateRoundsScaledAmounts(t *testing.T) {
	req := &models.SwapRequest{
		Intent:         models.IntentTakeMarket,
		SourceCurrency: "EUR",
		TargetCurrency: "USD",
		TraderID:       "sender",
		RecipientID:    "recipient",
	}

	// 3 * 1.3333 = 3.9999, rounds to 4.00
	legs := Translate([]*engine.Trade{trade("maker", "sender", 1, 1.3333, 3)}, req, stubDirectory{})

	require.Len(t, legs, 2)
	assert.True(t, legs[1].Quantity.Equal(decimal.NewFromInt(4)))
	assert.Equal(t, int32(-CashPrecision), legs[1].Quantity.Exponent())
}

func TestTranslateMultipleTrades(t *testing.T) {
	req := &models.SwapRequest{
		Intent:         models.IntentTakeMarket,
		SourceCurrency: "EUR",
		TargetCurrency: "USD",
		TraderID:       "sender",
		RecipientID:    "recipient",
	}

	trades := []*engine.Trade{
		trade("maker-a", "sender", 1, 1.30, 50),
		trade("maker-b", "sender", 2, 1.25, 20),
	}
	legs := Translate(trades, req, stubDirectory{})

	require.Len(t, legs, 4)
	assert.Equal(t, "maker-a", legs[0].Recipient)
	assert.Equal(t, "maker-b", legs[2].Recipient)
}

func TestTranslateNoTrades(t *testing.T) {
	req := &models.SwapRequest{Intent: models.IntentTakeMarket}
	legs := Translate(nil, req, stubDirectory{})
	assert.Empty(t, legs)
}
