package domain

import (
	"errors"
	"net/http"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseNetwork(t *testing.T) {
	n, err := ParseNetwork("testnet")
	require.NoError(t, err)
	assert.Equal(t, NetworkTestnet, n)
	assert.NotEmpty(t, n.Passphrase())

	_, err = ParseNetwork("mainnet")
	assert.ErrorIs(t, err, ErrUnsupportedNetwork)
}

func TestNewUpstreamError_Classification(t *testing.T) {
	tests := []struct {
		status int
		kind   error
	}{
		{http.StatusUnauthorized, ErrAuthExpired},
		{http.StatusGatewayTimeout, ErrServiceTimeout},
		{http.StatusTooManyRequests, ErrTransientUpstream},
		{http.StatusBadGateway, ErrTransientUpstream},
		{0, ErrTransientUpstream},
	}

	for _, tt := range tests {
		err := NewUpstreamError("ledger_api", tt.status, "boom", nil)
		assert.ErrorIs(t, err, tt.kind, "status %d", tt.status)
	}

	// Gateway timeouts are transient too.
	assert.True(t, IsTransient(NewUpstreamError("ledger_api", http.StatusGatewayTimeout, "", nil)))

	bad := NewUpstreamError("ledger_api", http.StatusBadRequest, "tx_failed", []byte(`{"status":400}`))
	assert.False(t, IsTransient(bad))
	assert.Nil(t, bad.Kind())
	assert.Equal(t, "ledger_api status 400: tx_failed", bad.Error())

	var upstream *UpstreamError
	require.True(t, errors.As(error(bad), &upstream))
	assert.Equal(t, `{"status":400}`, string(upstream.Body))
}

func TestMergeBalances_ClassicWins(t *testing.T) {
	classic := BalanceSet{
		"native":     {Token: Asset{Type: AssetTypeNative}, Total: decimal.RequireFromString("10")},
		"USD:ISSUER": {Token: Asset{Type: AssetTypeCreditAlphanum4, Code: "USD", Issuer: "ISSUER"}, Total: decimal.RequireFromString("5")},
	}
	tokens := BalanceSet{
		"USD:ISSUER": {Token: Asset{Type: AssetTypeContract, ContractID: "CSAC"}, Total: decimal.RequireFromString("999")},
		"ABC:CTOKEN": {Token: Asset{Type: AssetTypeContract, ContractID: "CTOKEN"}, Total: decimal.RequireFromString("1")},
	}

	merged := MergeBalances(classic, tokens)

	require.Len(t, merged, 3)
	assert.Equal(t, classic["USD:ISSUER"], merged["USD:ISSUER"])
	assert.Equal(t, tokens["ABC:CTOKEN"], merged["ABC:CTOKEN"])
}

func TestHistoryEntry_Record(t *testing.T) {
	e := HistoryEntry{
		ID:              "123",
		Type:            "payment",
		CreatedAt:       time.Date(2024, 1, 2, 3, 4, 5, 0, time.UTC),
		SourceAccount:   "GSRC",
		TransactionHash: "abc",
		Fields:          map[string]any{"amount": "1.0000000", "id": "overridden"},
	}

	rec := e.Record()
	assert.Equal(t, "123", rec[FieldID])
	assert.Equal(t, "2024-01-02T03:04:05Z", rec[FieldCreatedAt])
	assert.Equal(t, "1.0000000", rec["amount"])

	found, ok := FindEntry([]HistoryEntry{{ID: "1"}, e}, "123")
	require.True(t, ok)
	assert.Equal(t, "payment", found.Type)
}
