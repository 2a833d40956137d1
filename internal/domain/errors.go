package domain

import (
	"errors"
	"fmt"
	"net/http"
	"strings"
)

// Error kinds. Every failure crossing an upstream boundary unwraps to exactly one of these.
var (
	// ErrUnsupportedNetwork is returned for networks without configured endpoints.
	ErrUnsupportedNetwork = errors.New("unsupported network")

	// ErrAuthExpired signals an indexer token that must be renewed before retrying.
	ErrAuthExpired = errors.New("indexer authentication expired")

	// ErrTransientUpstream covers timeouts, rate limits and 5xx responses.
	ErrTransientUpstream = errors.New("transient upstream error")

	// ErrServiceTimeout is the gateway timeout returned on transaction submission.
	// It is the only status submission retries on.
	ErrServiceTimeout = fmt.Errorf("%w: service timeout", ErrTransientUpstream)

	// ErrAccountNotFound marks an unfunded account. It is an expected steady state.
	ErrAccountNotFound = errors.New("account not found")

	// ErrConsistencyMismatch is recorded when indexer and ledger API disagree.
	ErrConsistencyMismatch = errors.New("indexer and ledger api disagree")

	// ErrPriceCalculationTimeout is returned when path finding exceeds its deadline.
	ErrPriceCalculationTimeout = errors.New("price calculation timed out")

	// ErrNoPathFound is returned when no conversion path to the reference asset exists.
	ErrNoPathFound = errors.New("no path found")

	// ErrInvalidPublicKey is returned for malformed account or contract addresses.
	ErrInvalidPublicKey = errors.New("invalid public key")
)

// UpstreamError describes a failed call to the indexer, ledger API or contract RPC.
type UpstreamError struct {
	Source  string // "indexer", "ledger_api", "contract_rpc", "asset_list"
	Status  int    // HTTP status, 0 for transport failures
	Code    string // upstream error code when provided
	Message string
	Body    []byte // raw response payload
	kind    error
}

func (e *UpstreamError) Error() string {
	var b strings.Builder
	b.WriteString(e.Source)
	if e.Status != 0 {
		fmt.Fprintf(&b, " status %d", e.Status)
	}
	if e.Code != "" {
		fmt.Fprintf(&b, " (%s)", e.Code)
	}
	if e.Message != "" {
		b.WriteString(": ")
		b.WriteString(e.Message)
	}
	return b.String()
}

// Unwrap returns the error kind.
func (e *UpstreamError) Unwrap() error {
	return e.kind
}

// Kind returns the taxonomy sentinel this error was classified as, or nil.
func (e *UpstreamError) Kind() error {
	return e.kind
}

// NewUpstreamError classifies a response status into the error taxonomy.
func NewUpstreamError(source string, status int, message string, body []byte) *UpstreamError {
	return &UpstreamError{
		Source:  source,
		Status:  status,
		Message: message,
		Body:    body,
		kind:    classifyStatus(status),
	}
}

// NewUpstreamErrorKind builds an UpstreamError with an explicit kind.
func NewUpstreamErrorKind(source string, status int, message string, kind error) *UpstreamError {
	return &UpstreamError{
		Source:  source,
		Status:  status,
		Message: message,
		kind:    kind,
	}
}

func classifyStatus(status int) error {
	switch {
	case status == 0:
		return ErrTransientUpstream
	case status == http.StatusUnauthorized:
		return ErrAuthExpired
	case status == http.StatusGatewayTimeout:
		return ErrServiceTimeout
	case status == http.StatusRequestTimeout, status == http.StatusTooManyRequests:
		return ErrTransientUpstream
	case status >= 500:
		return ErrTransientUpstream
	default:
		return nil
	}
}

// IsTransient reports whether err is worth retrying.
func IsTransient(err error) bool {
	return errors.Is(err, ErrTransientUpstream)
}
