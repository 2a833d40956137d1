// Package verification cross-checks the indexer against the ledger API.
// A Verifier follows the ledger close stream, samples one operation every few
// ledgers and compares both sources' normalized history records for its account.
// The verdict of each check is written to the shared consistency flag that the
// orchestrator consults before serving indexer data.
package verification

import (
	"context"
	"errors"
	"fmt"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"stellar-wallet-core/internal/domain"
	"stellar-wallet-core/internal/observability"
	"stellar-wallet-core/internal/orchestrator"
	"stellar-wallet-core/internal/stellar"
	"stellar-wallet-core/internal/storage"
)

// Default configuration values.
const (
	DefaultInterval          = 10
	DefaultReconnectDelay    = time.Second
	DefaultMaxReconnectDelay = 30 * time.Second

	// CursorNow starts the stream at the current ledger.
	CursorNow = "now"
)

// State is the stream state of a Verifier.
type State int32

const (
	StateIdle State = iota
	StateSubscribed
)

func (s State) String() string {
	if s == StateSubscribed {
		return "subscribed"
	}
	return "idle"
}

// Source is the history and subscription surface the verifier checks.
// *orchestrator.Orchestrator satisfies it.
type Source interface {
	IndexerHistory(ctx context.Context, pubKey string, network domain.Network) ([]domain.HistoryEntry, error)
	LedgerHistory(ctx context.Context, pubKey string, network domain.Network) ([]domain.HistoryEntry, error)
	HasSubForPublicKey(ctx context.Context, pubKey string, network domain.Network) (bool, error)
	AccountSubscription(ctx context.Context, pubKey string, network domain.Network) orchestrator.SubscriptionResult
}

// CheckResult is the outcome of one consistency check.
type CheckResult struct {
	CheckID        string
	Network        domain.Network
	LedgerSequence int64
	OperationID    string
	Account        string
	Result         string // observability.ResultPass, ResultFail or ResultSkipped
	Divergences    []FieldDivergence
	Err            error
	CheckedAt      time.Time
}

// Passed reports whether the check produced a passing verdict.
func (r CheckResult) Passed() bool {
	return r.Result == observability.ResultPass
}

// Options configures a Verifier.
type Options struct {
	Network     domain.Network
	Ledger      stellar.LedgerAPI
	Source      Source
	Flag        storage.ConsistencyFlag
	Checkpoints storage.CheckpointStore // optional

	// Interval is the number of ledgers between checks. Values < 1 use DefaultInterval.
	Interval int64
	// Cursor is the stream start when nothing was checkpointed. Empty means "now".
	Cursor string

	ReconnectDelay    time.Duration
	MaxReconnectDelay time.Duration

	// OnResult is called after every recorded check.
	OnResult func(CheckResult)

	Metrics *observability.Metrics
	Logger  zerolog.Logger
}

// Verifier samples ledger operations and compares both history sources.
// HandleLedger and Run are not safe for concurrent use with each other.
type Verifier struct {
	network     domain.Network
	ledger      stellar.LedgerAPI
	source      Source
	flag        storage.ConsistencyFlag
	checkpoints storage.CheckpointStore

	interval          int64
	startCursor       string
	reconnectDelay    time.Duration
	maxReconnectDelay time.Duration
	onResult          func(CheckResult)

	state       atomic.Int32
	lastChecked int64
	lastCursor  string

	metrics *observability.Metrics
	log     zerolog.Logger
	now     func() time.Time
}

// New creates a Verifier.
func New(opts Options) *Verifier {
	v := &Verifier{
		network:           opts.Network,
		ledger:            opts.Ledger,
		source:            opts.Source,
		flag:              opts.Flag,
		checkpoints:       opts.Checkpoints,
		interval:          opts.Interval,
		startCursor:       opts.Cursor,
		reconnectDelay:    opts.ReconnectDelay,
		maxReconnectDelay: opts.MaxReconnectDelay,
		onResult:          opts.OnResult,
		metrics:           opts.Metrics,
		log:               opts.Logger.With().Str("component", "verifier").Str("network", string(opts.Network)).Logger(),
		now:               time.Now,
	}
	if v.interval < 1 {
		v.interval = DefaultInterval
	}
	if v.reconnectDelay <= 0 {
		v.reconnectDelay = DefaultReconnectDelay
	}
	if v.maxReconnectDelay < v.reconnectDelay {
		v.maxReconnectDelay = DefaultMaxReconnectDelay
		if v.maxReconnectDelay < v.reconnectDelay {
			v.maxReconnectDelay = v.reconnectDelay
		}
	}
	return v
}

// State returns the current stream state.
func (v *Verifier) State() State {
	return State(v.state.Load())
}

// Run follows the ledger stream until ctx is done. A dropped stream is resumed
// from the last handled ledger after a delay that doubles up to the maximum and
// resets once a ledger is received again.
func (v *Verifier) Run(ctx context.Context) error {
	delay := v.reconnectDelay

	for {
		cursor := v.resumeCursor(ctx)
		received := false

		v.state.Store(int32(StateSubscribed))
		v.log.Info().Str("cursor", cursor).Msg("ledger stream subscribed")

		err := v.ledger.StreamLedgers(ctx, cursor, func(l domain.LedgerClose) error {
			received = true
			v.HandleLedger(ctx, l)
			return nil
		})

		v.state.Store(int32(StateIdle))
		if ctx.Err() != nil {
			return ctx.Err()
		}
		if received {
			delay = v.reconnectDelay
		}

		v.log.Warn().Err(err).Dur("delay", delay).Msg("ledger stream closed, reconnecting")

		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(delay):
		}

		delay *= 2
		if delay > v.maxReconnectDelay {
			delay = v.maxReconnectDelay
		}
	}
}

// resumeCursor picks the last handled paging token, then the persisted
// checkpoint, then the configured start cursor.
func (v *Verifier) resumeCursor(ctx context.Context) string {
	if v.lastCursor != "" {
		return v.lastCursor
	}
	if v.checkpoints != nil {
		cursor, err := v.checkpoints.GetCursor(ctx, v.network)
		switch {
		case err == nil:
			return cursor
		case !errors.Is(err, storage.ErrNotFound):
			v.log.Warn().Err(err).Msg("failed to load stream checkpoint")
		}
	}
	if v.startCursor != "" {
		return v.startCursor
	}
	return CursorNow
}

// HandleLedger processes one ledger close. It returns the check result when the
// ledger was sampled, or nil when it was throttled or had nothing to check.
func (v *Verifier) HandleLedger(ctx context.Context, l domain.LedgerClose) *CheckResult {
	if l.PagingToken != "" {
		v.lastCursor = l.PagingToken
		if v.checkpoints != nil {
			if err := v.checkpoints.SetCursor(ctx, v.network, l.PagingToken); err != nil {
				v.log.Warn().Err(err).Msg("failed to save stream checkpoint")
			}
		}
	}

	if v.lastChecked != 0 && l.Sequence-v.lastChecked < v.interval {
		return nil
	}
	if l.OperationCount == 0 {
		return nil
	}

	v.lastChecked = l.Sequence
	v.metrics.RecordLedger(string(v.network), l.Sequence)

	ops, err := v.ledger.LedgerOperations(ctx, l.Sequence, 1)
	if err != nil {
		res := v.newResult(l.Sequence, "", "")
		res.Err = fmt.Errorf("load ledger operations: %w", err)
		v.record(ctx, &res, observability.ResultSkipped)
		return &res
	}
	if len(ops) == 0 {
		return nil
	}

	res := v.Check(ctx, l.Sequence, ops[0])
	return &res
}

// Check compares the history records of op's source account as reported by
// both sources. The flag and the check counter are updated exactly once.
func (v *Verifier) Check(ctx context.Context, sequence int64, op stellar.OperationRecord) CheckResult {
	account := op.SourceAccount()
	res := v.newResult(sequence, op.ID(), account)

	subscribed, err := v.source.HasSubForPublicKey(ctx, account, v.network)
	if err != nil {
		res.Err = fmt.Errorf("check subscription: %w", err)
		v.record(ctx, &res, observability.ResultSkipped)
		return res
	}
	if !subscribed {
		// The indexer only knows subscribed accounts; subscribe now and check later.
		if sub := v.source.AccountSubscription(ctx, account, v.network); sub.Error != nil {
			res.Err = fmt.Errorf("subscribe account: %w", sub.Error)
		}
		v.record(ctx, &res, observability.ResultSkipped)
		return res
	}

	ledgerEntries, err := v.source.LedgerHistory(ctx, account, v.network)
	if err != nil {
		res.Err = fmt.Errorf("ledger history: %w", err)
		v.record(ctx, &res, observability.ResultSkipped)
		return res
	}

	indexerEntries, err := v.source.IndexerHistory(ctx, account, v.network)
	if err != nil {
		res.Err = fmt.Errorf("indexer history: %w", err)
		v.record(ctx, &res, observability.ResultFail)
		return res
	}

	res.Divergences = CompareEntry(op.ID(), ledgerEntries, indexerEntries)
	if len(res.Divergences) > 0 {
		res.Err = domain.ErrConsistencyMismatch
		v.record(ctx, &res, observability.ResultFail)
	} else {
		v.record(ctx, &res, observability.ResultPass)
	}
	return res
}

// CompareEntry finds the operation id in both histories and compares the records.
// An operation missing from either side is reported as an id divergence.
func CompareEntry(id string, expected, actual []domain.HistoryEntry) []FieldDivergence {
	e, eok := domain.FindEntry(expected, id)
	a, aok := domain.FindEntry(actual, id)
	if !eok || !aok {
		d := FieldDivergence{Field: domain.FieldID}
		if eok {
			d.Expected = id
		}
		if aok {
			d.Actual = id
		}
		return []FieldDivergence{d}
	}
	return CompareRecords(e.Record(), a.Record())
}

func (v *Verifier) newResult(sequence int64, opID, account string) CheckResult {
	return CheckResult{
		CheckID:        uuid.NewString(),
		Network:        v.network,
		LedgerSequence: sequence,
		OperationID:    opID,
		Account:        account,
		CheckedAt:      v.now(),
	}
}

func (v *Verifier) record(ctx context.Context, res *CheckResult, result string) {
	res.Result = result

	if result != observability.ResultSkipped {
		if err := v.flag.Set(ctx, result == observability.ResultPass); err != nil {
			v.log.Error().Err(err).Msg("failed to write consistency flag")
		}
	}
	v.metrics.RecordCheck(string(v.network), result)

	evt := v.log.Info()
	if result == observability.ResultFail {
		evt = v.log.Warn().Interface("divergences", res.Divergences)
	}
	evt.Str("check_id", res.CheckID).
		Int64("ledger", res.LedgerSequence).
		Str("operation_id", res.OperationID).
		Str("account", res.Account).
		Str("result", result).
		AnErr("cause", res.Err).
		Msg("consistency check")

	if v.onResult != nil {
		v.onResult(*res)
	}
}
