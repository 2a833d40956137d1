package orchestrator

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"time"

	"github.com/shopspring/decimal"

	"stellar-wallet-core/internal/domain"
	"stellar-wallet-core/internal/session"
	"stellar-wallet-core/internal/stellar"
)

// Operation types shared by both history sources.
const (
	OpCreateAccount            = "create_account"
	OpPayment                  = "payment"
	OpChangeTrust              = "change_trust"
	OpPathPaymentStrictSend    = "path_payment_strict_send"
	OpPathPaymentStrictReceive = "path_payment_strict_receive"
	OpInvokeHostFunction       = "invoke_host_function"
)

const fieldSuccessful = "transaction_successful"

// amountDecimals is the number of decimal places of classic amounts.
const amountDecimals = 7

var pathPaymentFields = []string{
	"from", "to", "amount", "source_amount",
	"asset_type", "asset_code", "asset_issuer",
	"source_asset_type", "source_asset_code", "source_asset_issuer",
}

// typeFields lists the type specific fields kept after normalization.
var typeFields = map[string][]string{
	OpCreateAccount:            {"funder", "account", "starting_balance"},
	OpPayment:                  {"from", "to", "amount", "asset_type", "asset_code", "asset_issuer"},
	OpChangeTrust:              {"trustor", "limit", "asset_type", "asset_code", "asset_issuer"},
	OpPathPaymentStrictSend:    pathPaymentFields,
	OpPathPaymentStrictReceive: pathPaymentFields,
}

// HistoryResult is the answer to GetAccountHistory.
// Data is nil when Error is set; a funded account without operations has empty Data.
type HistoryResult struct {
	Data  []domain.HistoryEntry
	Error error
}

// GetAccountHistory returns the operations of an account, newest first.
func (o *Orchestrator) GetAccountHistory(ctx context.Context, pubKey string, network domain.Network, useIndexer bool) *HistoryResult {
	if err := stellar.ValidatePublicKey(pubKey); err != nil {
		return &HistoryResult{Error: err}
	}

	if o.IndexerEnabled(ctx, network, useIndexer) {
		entries, err := o.IndexerHistory(ctx, pubKey, network)
		if err == nil {
			return &HistoryResult{Data: entries}
		}
		o.indexerFailed(network, "history", err)
	}

	entries, err := o.LedgerHistory(ctx, pubKey, network)
	if errors.Is(err, domain.ErrAccountNotFound) {
		o.log.Debug().Str("account", pubKey).Str("network", network.String()).Msg("account not funded")
		return &HistoryResult{Error: err}
	}
	if err != nil {
		return &HistoryResult{Error: err}
	}
	return &HistoryResult{Data: entries}
}

// IndexerHistory fetches and normalizes the indexer's view of an account's history.
func (o *Orchestrator) IndexerHistory(ctx context.Context, pubKey string, network domain.Network) ([]domain.HistoryEntry, error) {
	if !o.IndexerSupported(network) {
		return nil, fmt.Errorf("%w: no indexer for %s", domain.ErrUnsupportedNetwork, network)
	}
	idx := o.networks[network].Indexer

	history, err := session.WithAuth(ctx, o.sessions, network, func(ctx context.Context, token string) (*stellar.IndexerHistory, error) {
		return idx.AccountHistory(ctx, token, pubKey)
	})
	if err != nil {
		return nil, fmt.Errorf("indexer history %s: %w", pubKey, err)
	}
	return normalizeIndexerHistory(history), nil
}

// LedgerHistory fetches and normalizes the ledger API's view of an account's history.
func (o *Orchestrator) LedgerHistory(ctx context.Context, pubKey string, network domain.Network) ([]domain.HistoryEntry, error) {
	c, err := o.clients(network)
	if err != nil {
		return nil, err
	}

	records, err := c.Ledger.AccountOperations(ctx, pubKey, &stellar.OperationsOpts{
		Limit:         o.historyLimit,
		Order:         "desc",
		IncludeFailed: true,
	})
	if err != nil {
		return nil, fmt.Errorf("ledger history %s: %w", pubKey, err)
	}

	entries := make([]domain.HistoryEntry, 0, len(records))
	for _, r := range records {
		entries = append(entries, NormalizeLedgerRecord(r))
	}
	sortHistory(entries)
	return entries, nil
}

// NormalizeLedgerRecord converts a ledger API operation into a HistoryEntry.
func NormalizeLedgerRecord(r stellar.OperationRecord) domain.HistoryEntry {
	e := domain.HistoryEntry{
		ID:            r.ID(),
		SourceAccount: r.SourceAccount(),
		Fields:        make(map[string]any),
	}
	e.Type, _ = r[domain.FieldType].(string)
	e.TransactionHash, _ = r[domain.FieldTransactionHash].(string)
	if s, ok := r[domain.FieldCreatedAt].(string); ok {
		if t, err := time.Parse(time.RFC3339, s); err == nil {
			e.CreatedAt = t.UTC()
		}
	}
	if ok, isBool := r[fieldSuccessful].(bool); isBool {
		e.Fields[fieldSuccessful] = ok
	}
	for _, f := range typeFields[e.Type] {
		if v, ok := r[f]; ok {
			e.Fields[f] = v
		}
	}
	return e
}

func normalizeIndexerHistory(h *stellar.IndexerHistory) []domain.HistoryEntry {
	if h == nil {
		return []domain.HistoryEntry{}
	}

	var entries []domain.HistoryEntry
	for _, op := range h.CreateAccount {
		e := indexedEntry(op.IndexedOperation, OpCreateAccount)
		e.Fields["funder"] = op.Source
		e.Fields["account"] = op.Destination
		e.Fields["starting_balance"] = stroopsToAmount(op.StartingBalance)
		entries = append(entries, e)
	}
	for _, op := range h.Payments {
		e := indexedEntry(op.IndexedOperation, OpPayment)
		e.Fields["from"] = op.From
		e.Fields["to"] = op.To
		e.Fields["amount"] = stroopsToAmount(op.Amount)
		setAssetFields(e.Fields, "", op.AssetNative, op.Asset)
		entries = append(entries, e)
	}
	for _, op := range h.ChangeTrust {
		e := indexedEntry(op.IndexedOperation, OpChangeTrust)
		e.Fields["trustor"] = op.Source
		e.Fields["limit"] = stroopsToAmount(op.Limit)
		setAssetFields(e.Fields, "", false, op.Asset)
		entries = append(entries, e)
	}
	for _, op := range h.PathPaymentsStrictSend {
		entries = append(entries, pathPaymentEntry(op, OpPathPaymentStrictSend))
	}
	for _, op := range h.PathPaymentsStrictRecv {
		entries = append(entries, pathPaymentEntry(op, OpPathPaymentStrictReceive))
	}
	for _, op := range h.InvokeHostFunctions {
		entries = append(entries, indexedEntry(op.IndexedOperation, OpInvokeHostFunction))
	}

	if entries == nil {
		entries = []domain.HistoryEntry{}
	}
	sortHistory(entries)
	return entries
}

func indexedEntry(op stellar.IndexedOperation, typ string) domain.HistoryEntry {
	e := domain.HistoryEntry{
		ID:              op.OpID,
		Type:            typ,
		SourceAccount:   op.Source,
		TransactionHash: op.TxHash,
		Fields:          map[string]any{fieldSuccessful: op.Tx.Successful},
	}
	if op.Tx.Ledger.CloseTime > 0 {
		e.CreatedAt = time.Unix(op.Tx.Ledger.CloseTime, 0).UTC()
	}
	return e
}

func pathPaymentEntry(op stellar.IndexedPathPayment, typ string) domain.HistoryEntry {
	e := indexedEntry(op.IndexedOperation, typ)
	e.Fields["from"] = op.From
	e.Fields["to"] = op.To
	e.Fields["amount"] = stroopsToAmount(op.Amount)
	e.Fields["source_amount"] = stroopsToAmount(op.SourceAmount)
	setAssetFields(e.Fields, "", op.AssetNative, op.Asset)
	setAssetFields(e.Fields, "source_", op.SourceAssetNative, op.SourceAsset)
	return e
}

// setAssetFields writes asset fields the way the ledger API renders them:
// the native asset has a type only.
func setAssetFields(fields map[string]any, prefix string, native bool, asset *stellar.IndexedAsset) {
	if native || asset == nil {
		fields[prefix+"asset_type"] = domain.AssetTypeNative
		return
	}
	code := stellar.DecodeAssetCode(asset.Code)
	fields[prefix+"asset_type"] = stellar.AssetType(code)
	fields[prefix+"asset_code"] = code
	fields[prefix+"asset_issuer"] = asset.Issuer
}

// stroopsToAmount renders an integer stroop amount with seven decimals.
func stroopsToAmount(stroops string) string {
	d, err := decimal.NewFromString(stroops)
	if err != nil {
		return stroops
	}
	return d.Shift(-amountDecimals).StringFixed(amountDecimals)
}

// sortHistory orders entries newest first. Operation ids grow with the ledger,
// so ties are broken by the numeric id.
func sortHistory(entries []domain.HistoryEntry) {
	sort.SliceStable(entries, func(i, j int) bool {
		if !entries[i].CreatedAt.Equal(entries[j].CreatedAt) {
			return entries[i].CreatedAt.After(entries[j].CreatedAt)
		}
		a, b := entries[i].ID, entries[j].ID
		if len(a) != len(b) {
			return len(a) > len(b)
		}
		return a > b
	})
}
