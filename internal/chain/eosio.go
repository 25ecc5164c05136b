package chain

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"

	eos "github.com/eoscanada/eos-go"

	"github.com/aatumaykin/autoclaim/internal/failover"
)

// EOSNode talks to one nodeos HTTP endpoint through eos-go.
type EOSNode struct {
	endpoint string
	api      *eos.API
}

// NewEOSDialer returns a Dialer whose nodes share httpClient. The client's
// transport is wrapped so connection failures surface as
// *failover.TransportError.
func NewEOSDialer(httpClient *http.Client) Dialer {
	if httpClient == nil {
		httpClient = &http.Client{}
	}
	wrapped := *httpClient
	if _, ok := wrapped.Transport.(*failover.Transport); !ok {
		wrapped.Transport = &failover.Transport{Base: httpClient.Transport}
	}

	return func(endpoint string) (Node, error) {
		if endpoint == "" {
			return nil, errors.New("empty endpoint")
		}
		api := eos.New(endpoint)
		api.HttpClient = &wrapped
		return &EOSNode{endpoint: endpoint, api: api}, nil
	}
}

// GenesisRow implements Node.
func (n *EOSNode) GenesisRow(ctx context.Context, account string) (*GenesisRow, error) {
	resp, err := n.api.GetTableRows(ctx, eos.GetTableRowsRequest{
		Code:  SystemAccount,
		Scope: account,
		Table: "genesis",
		JSON:  true,
		Limit: 1,
	})
	if err != nil {
		return nil, n.wrap("get genesis row", err)
	}

	var rows []GenesisRow
	if err := resp.JSONToStructs(&rows); err != nil {
		return nil, fmt.Errorf("decode genesis rows from %s: %w", n.endpoint, err)
	}
	if len(rows) != 1 {
		return nil, nil
	}
	return &rows[0], nil
}

// Voter implements Node.
func (n *EOSNode) Voter(ctx context.Context, account string) (*VoterRow, error) {
	resp, err := n.api.GetTableRows(ctx, eos.GetTableRowsRequest{
		Code:       SystemAccount,
		Scope:      SystemAccount,
		Table:      "voters",
		LowerBound: account,
		JSON:       true,
		Limit:      1,
	})
	if err != nil {
		return nil, n.wrap("get voter row", err)
	}

	var rows []VoterRow
	if err := resp.JSONToStructs(&rows); err != nil {
		return nil, fmt.Errorf("decode voter rows from %s: %w", n.endpoint, err)
	}
	// lower_bound lands on the next voter when the account has none
	if len(rows) == 0 || rows[0].Owner != account {
		return nil, nil
	}
	return &rows[0], nil
}

// Push implements Node. The reference block is BlocksBehind below head and
// the transaction expires Expiration after signing.
func (n *EOSNode) Push(ctx context.Context, req TxRequest) (*TxResult, error) {
	actions, err := toEOSActions(req.Actions)
	if err != nil {
		return nil, err
	}

	keyBag := eos.NewKeyBag()
	if err := keyBag.ImportPrivateKey(ctx, req.PrivateKey); err != nil {
		return nil, &ApplicationError{Domain: DomainKey, Name: "invalid_private_key", Message: err.Error()}
	}
	n.api.SetSigner(keyBag)

	info, err := n.api.GetInfo(ctx)
	if err != nil {
		return nil, n.wrap("get info", err)
	}

	refNum := info.HeadBlockNum
	if refNum > req.BlocksBehind {
		refNum -= req.BlocksBehind
	}
	block, err := n.api.GetBlockByNum(ctx, refNum)
	if err != nil {
		return nil, n.wrap("get reference block", err)
	}

	opts := &eos.TxOptions{ChainID: info.ChainID, HeadBlockID: block.ID}
	tx := eos.NewTransaction(actions, opts)
	tx.SetExpiration(req.Expiration)

	_, packed, err := n.api.SignTransaction(ctx, tx, opts.ChainID, eos.CompressionNone)
	if err != nil {
		return nil, n.wrap("sign transaction", err)
	}

	out, err := n.api.PushTransaction(ctx, packed)
	if err != nil {
		return nil, n.wrap("push transaction", err)
	}

	processed, err := json.Marshal(out.Processed)
	if err != nil {
		processed = nil
	}
	return &TxResult{
		TransactionID: out.TransactionID,
		BlockNum:      out.BlockNum,
		Processed:     processed,
	}, nil
}

// wrap turns node exceptions into *ApplicationError and annotates
// everything else with the operation and endpoint.
func (n *EOSNode) wrap(op string, err error) error {
	var apiErr eos.APIError
	if errors.As(err, &apiErr) {
		return fromAPIError(apiErr)
	}
	var apiErrPtr *eos.APIError
	if errors.As(err, &apiErrPtr) && apiErrPtr != nil {
		return fromAPIError(*apiErrPtr)
	}
	return fmt.Errorf("%s on %s: %w", op, n.endpoint, err)
}

func fromAPIError(e eos.APIError) *ApplicationError {
	msg := e.ErrorStruct.What
	if msg == "" {
		msg = e.Message
	}
	return &ApplicationError{
		Domain:  DomainChain,
		Code:    e.ErrorStruct.Code,
		Name:    e.ErrorStruct.Name,
		Message: msg,
	}
}

type eosVoteProducer struct {
	Voter     eos.AccountName   `json:"voter"`
	Proxy     eos.AccountName   `json:"proxy"`
	Producers []eos.AccountName `json:"producers"`
}

type eosClaimGenesis struct {
	Claimer eos.AccountName `json:"claimer"`
}

type eosClaimGBMVote struct {
	Owner eos.AccountName `json:"owner"`
}

func toEOSActions(actions []Action) ([]*eos.Action, error) {
	out := make([]*eos.Action, 0, len(actions))
	for _, a := range actions {
		var data any
		switch d := a.Data.(type) {
		case VoteProducer:
			producers := make([]eos.AccountName, 0, len(d.Producers))
			for _, p := range d.Producers {
				producers = append(producers, eos.AN(p))
			}
			data = eosVoteProducer{Voter: eos.AN(d.Voter), Proxy: eos.AN(d.Proxy), Producers: producers}
		case ClaimGenesis:
			data = eosClaimGenesis{Claimer: eos.AN(d.Claimer)}
		case ClaimGBMVote:
			data = eosClaimGBMVote{Owner: eos.AN(d.Owner)}
		default:
			return nil, fmt.Errorf("unsupported action payload %T for %s", a.Data, a.Name)
		}

		auth := make([]eos.PermissionLevel, 0, len(a.Authorization))
		for _, pl := range a.Authorization {
			auth = append(auth, eos.PermissionLevel{Actor: eos.AN(pl.Actor), Permission: eos.PN(pl.Permission)})
		}

		out = append(out, &eos.Action{
			Account:       eos.AN(a.Account),
			Name:          eos.ActN(a.Name),
			Authorization: auth,
			ActionData:    eos.NewActionData(data),
		})
	}
	return out, nil
}
