package stellar

import (
	"bufio"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"stellar-wallet-core/internal/domain"
)

// CursorNow starts a ledger stream at the next ledger close.
const CursorNow = "now"

type horizonLedger struct {
	ID             string    `json:"id"`
	PagingToken    string    `json:"paging_token"`
	Hash           string    `json:"hash"`
	Sequence       int64     `json:"sequence"`
	ClosedAt       time.Time `json:"closed_at"`
	OperationCount int       `json:"operation_count"`
}

// StreamLedgers streams ledger closes as server-sent events.
func (c *HorizonClient) StreamLedgers(ctx context.Context, cursor string, handler func(domain.LedgerClose) error) error {
	if cursor == "" {
		cursor = CursorNow
	}

	q := url.Values{}
	q.Set("cursor", cursor)
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+"/ledgers?"+q.Encode(), nil)
	if err != nil {
		return fmt.Errorf("create stream request: %w", err)
	}
	req.Header.Set("Accept", "text/event-stream")

	resp, err := c.stream.Do(req)
	if err != nil {
		if ctx.Err() != nil {
			return ctx.Err()
		}
		return domain.NewUpstreamError(SourceLedgerAPI, 0, err.Error(), nil)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
		return domain.NewUpstreamError(SourceLedgerAPI, resp.StatusCode, upstreamMessage(body), body)
	}

	return readEvents(ctx, resp.Body, func(data string) error {
		// Horizon greets new streams with a bare "hello" string.
		if !strings.HasPrefix(strings.TrimSpace(data), "{") {
			return nil
		}

		var l horizonLedger
		if err := json.Unmarshal([]byte(data), &l); err != nil {
			return fmt.Errorf("unmarshal ledger event: %w", err)
		}
		return handler(domain.LedgerClose{
			Sequence:       l.Sequence,
			PagingToken:    l.PagingToken,
			Hash:           l.Hash,
			ClosedAt:       l.ClosedAt,
			OperationCount: l.OperationCount,
		})
	})
}

// readEvents splits a text/event-stream body into event data payloads.
func readEvents(ctx context.Context, r io.Reader, fn func(data string) error) error {
	scanner := bufio.NewScanner(r)
	scanner.Buffer(make([]byte, 0, 64*1024), 1024*1024)

	var data []string
	for scanner.Scan() {
		line := scanner.Text()

		if line == "" {
			if len(data) > 0 {
				payload := strings.Join(data, "\n")
				data = data[:0]
				if err := fn(payload); err != nil {
					return err
				}
			}
			continue
		}

		if strings.HasPrefix(line, ":") {
			continue
		}
		field, value, _ := strings.Cut(line, ":")
		value = strings.TrimPrefix(value, " ")
		if field == "data" {
			data = append(data, value)
		}
	}

	if ctx.Err() != nil {
		return ctx.Err()
	}
	if err := scanner.Err(); err != nil {
		return domain.NewUpstreamError(SourceLedgerAPI, 0, fmt.Sprintf("read stream: %v", err), nil)
	}
	return domain.NewUpstreamError(SourceLedgerAPI, 0, "stream closed", nil)
}
