package chain

import (
	"context"
	"fmt"
	"sync"
)

// FakeNetwork is an in-memory set of endpoints for tests. Each endpoint can
// be marked down, in which case every call fails with a transport error.
type FakeNetwork struct {
	mu       sync.Mutex
	down     map[string]bool
	genesis  map[string]*GenesisRow
	voters   map[string]*VoterRow
	pushErr  error
	pushed   []TxRequest
	calls    map[string]int
	nextTxID int
	// PushHook runs inside Push before the transaction is recorded.
	PushHook func(req TxRequest)
}

// NewFakeNetwork returns a network with every endpoint up.
func NewFakeNetwork() *FakeNetwork {
	return &FakeNetwork{
		down:    make(map[string]bool),
		genesis: make(map[string]*GenesisRow),
		voters:  make(map[string]*VoterRow),
		calls:   make(map[string]int),
	}
}

// SetDown marks endpoint unreachable or reachable.
func (f *FakeNetwork) SetDown(endpoint string, down bool) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.down[endpoint] = down
}

// SetGenesis stores a genesis row for account.
func (f *FakeNetwork) SetGenesis(account string, row *GenesisRow) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.genesis[account] = row
}

// SetVoter stores a voter row for account.
func (f *FakeNetwork) SetVoter(account string, row *VoterRow) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.voters[account] = row
}

// FailPush makes every push return err; nil restores success.
func (f *FakeNetwork) FailPush(err error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.pushErr = err
}

// Pushed returns the transactions accepted so far.
func (f *FakeNetwork) Pushed() []TxRequest {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]TxRequest(nil), f.pushed...)
}

// Calls returns how many calls reached endpoint, including failed ones.
func (f *FakeNetwork) Calls(endpoint string) int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.calls[endpoint]
}

// Dialer returns a Dialer bound to the network.
func (f *FakeNetwork) Dialer() Dialer {
	return func(endpoint string) (Node, error) {
		return &fakeNode{net: f, endpoint: endpoint}, nil
	}
}

type fakeNode struct {
	net      *FakeNetwork
	endpoint string
}

func (n *fakeNode) enter() error {
	n.net.mu.Lock()
	defer n.net.mu.Unlock()
	n.net.calls[n.endpoint]++
	if n.net.down[n.endpoint] {
		return &transportFailure{endpoint: n.endpoint}
	}
	return nil
}

func (n *fakeNode) GenesisRow(_ context.Context, account string) (*GenesisRow, error) {
	if err := n.enter(); err != nil {
		return nil, err
	}
	n.net.mu.Lock()
	defer n.net.mu.Unlock()
	row := n.net.genesis[account]
	if row == nil {
		return nil, nil
	}
	cp := *row
	return &cp, nil
}

func (n *fakeNode) Voter(_ context.Context, account string) (*VoterRow, error) {
	if err := n.enter(); err != nil {
		return nil, err
	}
	n.net.mu.Lock()
	defer n.net.mu.Unlock()
	row := n.net.voters[account]
	if row == nil {
		return nil, nil
	}
	cp := *row
	return &cp, nil
}

func (n *fakeNode) Push(_ context.Context, req TxRequest) (*TxResult, error) {
	if err := n.enter(); err != nil {
		return nil, err
	}
	if hook := n.net.PushHook; hook != nil {
		hook(req)
	}
	n.net.mu.Lock()
	defer n.net.mu.Unlock()
	if n.net.pushErr != nil {
		return nil, n.net.pushErr
	}
	n.net.pushed = append(n.net.pushed, req)
	n.net.nextTxID++
	return &TxResult{TransactionID: fmt.Sprintf("%064x", n.net.nextTxID), BlockNum: uint32(1000 + n.net.nextTxID)}, nil
}

// transportFailure reads like a refused dial so it classifies as transient.
type transportFailure struct {
	endpoint string
}

func (e *transportFailure) Error() string {
	return "dial tcp " + e.endpoint + ": connection refused"
}
