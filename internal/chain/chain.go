// Package chain is the narrow view of an EOSIO node the claim agent needs:
// two table reads and one transaction push.
package chain

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"time"
)

// SystemAccount owns the genesis and voters tables and the claim actions.
const SystemAccount = "eosio"

// Action names pushed by the claim transaction.
const (
	ActionVoteProducer = "voteproducer"
	ActionClaimGenesis = "claimgenesis"
	ActionClaimGBMVote = "claimgbmvote"
)

// Node is one RPC endpoint.
type Node interface {
	// GenesisRow returns the account's genesis claim record, or nil when the
	// account has none.
	GenesisRow(ctx context.Context, account string) (*GenesisRow, error)
	// Voter returns the account's current vote, or nil when it never voted.
	Voter(ctx context.Context, account string) (*VoterRow, error)
	// Push signs and broadcasts a transaction.
	Push(ctx context.Context, req TxRequest) (*TxResult, error)
}

// Dialer opens a Node for an endpoint URL.
type Dialer func(endpoint string) (Node, error)

// GenesisRow is a row of eosio::genesis.
type GenesisRow struct {
	Balance       string `json:"balance"`
	LastClaimTime string `json:"last_claim_time"`
	LastUpdated   string `json:"last_updated,omitempty"`
}

// LastClaim parses LastClaimTime. Node time points carry no zone and are UTC.
func (r GenesisRow) LastClaim() (time.Time, error) {
	return ParseTimePoint(r.LastClaimTime)
}

// VoterRow is the subset of eosio::voters the claim needs.
type VoterRow struct {
	Owner     string   `json:"owner"`
	Proxy     string   `json:"proxy"`
	Producers []string `json:"producers"`
}

// Authorization is an actor@permission pair.
type Authorization struct {
	Actor      string `json:"actor"`
	Permission string `json:"permission"`
}

func (a Authorization) String() string {
	return a.Actor + "@" + a.Permission
}

// Action is a contract action with one of the payload types below as Data.
type Action struct {
	Account       string          `json:"account"`
	Name          string          `json:"name"`
	Authorization []Authorization `json:"authorization"`
	Data          any             `json:"data"`
}

// VoteProducer reasserts a vote. Exactly one of Proxy or Producers is set,
// or neither for an account that never voted.
type VoteProducer struct {
	Voter     string   `json:"voter"`
	Proxy     string   `json:"proxy"`
	Producers []string `json:"producers"`
}

// ClaimGenesis claims the genesis reward.
type ClaimGenesis struct {
	Claimer string `json:"claimer"`
}

// ClaimGBMVote claims the vote reward.
type ClaimGBMVote struct {
	Owner string `json:"owner"`
}

// TxRequest describes a transaction to sign and broadcast.
type TxRequest struct {
	Actions      []Action
	PrivateKey   string
	BlocksBehind uint32
	Expiration   time.Duration
}

// TxResult is the node's acknowledgement of a pushed transaction.
type TxResult struct {
	TransactionID string          `json:"transaction_id"`
	BlockNum      uint32          `json:"block_num,omitempty"`
	Processed     json.RawMessage `json:"processed,omitempty"`
}

// Error domains.
const (
	DomainChain = "chain" // node-side exception with an fc error code
	DomainKey   = "key"   // signing key rejected before submission
)

// ApplicationError is a request the node understood and rejected. It never
// fails over: another node would reject it the same way.
type ApplicationError struct {
	Domain  string
	Code    int
	Name    string
	Message string
}

func (e *ApplicationError) Error() string {
	if e.Name != "" {
		return fmt.Sprintf("%s error %d (%s): %s", e.Domain, e.Code, e.Name, e.Message)
	}
	return fmt.Sprintf("%s error %d: %s", e.Domain, e.Code, e.Message)
}

// Permanent marks the error as not worth another endpoint.
func (e *ApplicationError) Permanent() bool { return true }

var timePointLayouts = []string{
	"2006-01-02T15:04:05.000",
	"2006-01-02T15:04:05",
	time.RFC3339Nano,
}

// ParseTimePoint parses an EOSIO time_point / time_point_sec string.
func ParseTimePoint(s string) (time.Time, error) {
	s = strings.TrimSpace(s)
	for _, layout := range timePointLayouts {
		if t, err := time.ParseInLocation(layout, s, time.UTC); err == nil {
			return t.UTC(), nil
		}
	}
	return time.Time{}, fmt.Errorf("invalid time point %q", s)
}

// ClaimActions builds the three chained actions of a claim: reassert the
// current vote, then claim both rewards. The claims require a non-empty
// active vote, so the vote comes first.
func ClaimActions(account, permission string, vote *VoterRow) []Action {
	auth := []Authorization{{Actor: account, Permission: permission}}

	reassert := VoteProducer{Voter: account, Producers: []string{}}
	if vote != nil {
		if vote.Proxy != "" {
			reassert.Proxy = vote.Proxy
		} else {
			reassert.Producers = append(reassert.Producers, vote.Producers...)
		}
	}

	return []Action{
		{Account: SystemAccount, Name: ActionVoteProducer, Authorization: auth, Data: reassert},
		{Account: SystemAccount, Name: ActionClaimGenesis, Authorization: auth, Data: ClaimGenesis{Claimer: account}},
		{Account: SystemAccount, Name: ActionClaimGBMVote, Authorization: auth, Data: ClaimGBMVote{Owner: account}},
	}
}
