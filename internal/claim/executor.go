package claim

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/aatumaykin/autoclaim/internal/artifacts"
	"github.com/aatumaykin/autoclaim/internal/chain"
	"github.com/aatumaykin/autoclaim/internal/constants"
	"github.com/aatumaykin/autoclaim/internal/failover"
	"github.com/aatumaykin/autoclaim/internal/logger"
	"github.com/aatumaykin/autoclaim/internal/notify"
)

// ExecutorConfig holds transaction parameters.
type ExecutorConfig struct {
	Program      string
	BlocksBehind uint32
	Expiration   time.Duration
	ExplorerURL  string
}

// ReceiptWriter persists successful submissions.
type ReceiptWriter interface {
	WriteReceipt(r artifacts.Receipt) (string, error)
}

// Request is one claim attempt.
type Request struct {
	AttemptID  string
	Endpoints  []string
	Account    string
	PrivateKey string
	Permission string
}

// Executor builds, signs and broadcasts claim transactions.
type Executor struct {
	client   *failover.Client
	dial     chain.Dialer
	cfg      ExecutorConfig
	receipts ReceiptWriter
	notifier notify.Notifier
	logger   *logger.Logger
	now      func() time.Time
}

// NewExecutor creates an Executor.
func NewExecutor(client *failover.Client, dial chain.Dialer, cfg ExecutorConfig, receipts ReceiptWriter, notifier notify.Notifier, log *logger.Logger) *Executor {
	if cfg.Expiration <= 0 {
		cfg.Expiration = constants.DefaultExpireSeconds * time.Second
	}
	if cfg.ExplorerURL == "" {
		cfg.ExplorerURL = constants.DefaultExplorerURL
	}
	return &Executor{
		client:   client,
		dial:     dial,
		cfg:      cfg,
		receipts: receipts,
		notifier: notifier,
		logger:   log,
		now:      time.Now,
	}
}

type submission struct {
	result   *chain.TxResult
	endpoint string
}

// Claim submits the claim for req.Account and returns the transaction id.
// Failures are returned as *ClaimError after a failure notification.
// Claim does not retry; the caller reschedules.
func (e *Executor) Claim(ctx context.Context, req Request) (string, error) {
	log := e.logger.With(
		logger.Field{Key: "account", Value: req.Account},
		logger.Field{Key: "attempt", Value: req.AttemptID})

	sub, ok, err := failover.Call(ctx, e.client, req.Endpoints, func(ctx context.Context, endpoint string) (submission, error) {
		node, err := e.dial(endpoint)
		if err != nil {
			return submission{}, err
		}
		vote, err := node.Voter(ctx, req.Account)
		if err != nil {
			return submission{}, err
		}
		res, err := node.Push(ctx, chain.TxRequest{
			Actions:      chain.ClaimActions(req.Account, req.Permission, vote),
			PrivateKey:   req.PrivateKey,
			BlocksBehind: e.cfg.BlocksBehind,
			Expiration:   e.cfg.Expiration,
		})
		if err != nil {
			return submission{}, err
		}
		return submission{result: res, endpoint: endpoint}, nil
	})

	if errors.Is(err, context.Canceled) {
		return "", err
	}
	if err == nil && !ok {
		err = &ClaimError{Reason: ReasonNoEndpoint, Message: fmt.Sprintf("%d endpoints unreachable", len(req.Endpoints))}
	}
	if err != nil {
		claimErr := Classify(err)
		log.Error("claim failed", err,
			logger.Field{Key: "reason", Value: claimErr.Error()},
			logger.Field{Key: "code", Value: claimErr.Code})
		e.notifier.Notify(ctx, constants.MsgClaimErrorTitle,
			fmt.Sprintf(constants.MsgClaimErrorBody, req.Account, claimErr.Error()))
		return "", claimErr
	}

	txID := sub.result.TransactionID
	log.Info("claim broadcast",
		logger.Field{Key: "tx", Value: txID},
		logger.Field{Key: "endpoint", Value: sub.endpoint})

	if e.receipts != nil {
		receipt := artifacts.NewReceipt(req.AttemptID, e.cfg.Program, req.Account, sub.endpoint, sub.result, e.now())
		if _, err := e.receipts.WriteReceipt(receipt); err != nil {
			log.Error("failed to write receipt", err, logger.Field{Key: "tx", Value: txID})
		}
	}

	e.notifier.NotifyWithLink(ctx, constants.MsgClaimExecutedTitle,
		fmt.Sprintf(constants.MsgClaimAccountBody, req.Account), e.cfg.ExplorerURL+txID)

	return txID, nil
}
