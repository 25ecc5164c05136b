// Package claim evaluates claim eligibility and executes claim transactions
// against the configured endpoints.
package claim

import (
	"context"
	"fmt"
	"time"

	"github.com/aatumaykin/autoclaim/internal/chain"
	"github.com/aatumaykin/autoclaim/internal/constants"
	"github.com/aatumaykin/autoclaim/internal/failover"
)

// NextEligible returns the first instant a claim made at last is allowed
// again. A non-positive window means the standard claim window.
func NextEligible(last time.Time, window time.Duration) time.Time {
	if window <= 0 {
		window = constants.ClaimWindow
	}
	return last.Add(window)
}

// IsDue reports whether now is at or past the end of the claim window.
func IsDue(last, now time.Time, window time.Duration) bool {
	return !now.Before(NextEligible(last, window))
}

// Evaluator reads claim-tracking records from the chain.
type Evaluator struct {
	client *failover.Client
	dial   chain.Dialer
}

// NewEvaluator creates an Evaluator.
func NewEvaluator(client *failover.Client, dial chain.Dialer) *Evaluator {
	return &Evaluator{client: client, dial: dial}
}

// GetClaimTime returns the account's last claim instant.
//
// found is false when the account has no genesis record. ok is false when
// every endpoint failed to answer. err is non-nil only for a rejected
// request or an unreadable record.
func (e *Evaluator) GetClaimTime(ctx context.Context, endpoints []string, account string) (last time.Time, found, ok bool, err error) {
	row, ok, err := failover.Call(ctx, e.client, endpoints, func(ctx context.Context, endpoint string) (*chain.GenesisRow, error) {
		node, err := e.dial(endpoint)
		if err != nil {
			return nil, err
		}
		return node.GenesisRow(ctx, account)
	})
	if err != nil || !ok {
		return time.Time{}, false, ok, err
	}
	if row == nil {
		return time.Time{}, false, true, nil
	}

	last, err = row.LastClaim()
	if err != nil {
		return time.Time{}, false, true, fmt.Errorf("genesis row for %s: %w", account, err)
	}
	return last, true, true, nil
}
