package domain

import "time"

// Field names shared by both history sources after normalization.
const (
	FieldID              = "id"
	FieldType            = "type"
	FieldCreatedAt       = "created_at"
	FieldSourceAccount   = "source_account"
	FieldTransactionHash = "transaction_hash"
)

// HistoryEntry is a normalized operation record.
// Entries are ordered descending by close time.
type HistoryEntry struct {
	ID              string         // operation id
	Type            string         // operation type, e.g. "payment"
	CreatedAt       time.Time      // ledger close time
	SourceAccount   string         // operation source account
	TransactionHash string         // parent transaction hash
	Fields          map[string]any // type specific fields
}

// Record flattens the entry into the shape compared by the consistency verifier.
func (e HistoryEntry) Record() map[string]any {
	rec := make(map[string]any, len(e.Fields)+5)
	for k, v := range e.Fields {
		rec[k] = v
	}
	rec[FieldID] = e.ID
	rec[FieldType] = e.Type
	rec[FieldSourceAccount] = e.SourceAccount
	rec[FieldTransactionHash] = e.TransactionHash
	if !e.CreatedAt.IsZero() {
		rec[FieldCreatedAt] = e.CreatedAt.UTC().Format(time.RFC3339)
	}
	return rec
}

// FindEntry returns the entry with the given id.
func FindEntry(entries []HistoryEntry, id string) (HistoryEntry, bool) {
	for _, e := range entries {
		if e.ID == id {
			return e, true
		}
	}
	return HistoryEntry{}, false
}
