package orchestrator

import (
	"context"
	"errors"

	"stellar-wallet-core/internal/domain"
	"stellar-wallet-core/internal/stellar"
)

// SubmitTransaction submits a signed envelope through the ledger API.
//
// Only a gateway timeout is retried, immediately and at most SubmitMaxRetries
// times; the upstream timeout already spaces the attempts. Any other failure, or
// the last timeout, is returned as the upstream error with its payload.
func (o *Orchestrator) SubmitTransaction(ctx context.Context, envelopeXDR string, network domain.Network) (*stellar.SubmitResult, error) {
	c, err := o.clients(network)
	if err != nil {
		return nil, err
	}

	for attempt := 0; ; attempt++ {
		res, err := c.Ledger.SubmitTransaction(ctx, envelopeXDR)
		o.metrics.RecordSubmitAttempt(network.String(), err)
		if err == nil {
			return res, nil
		}
		if !errors.Is(err, domain.ErrServiceTimeout) || attempt >= o.submitMaxRetries || ctx.Err() != nil {
			return nil, err
		}
		o.log.Debug().
			Err(err).
			Str("network", network.String()).
			Int("attempt", attempt+1).
			Msg("submission timed out, resubmitting")
	}
}
