package claim

import (
	"errors"
	"fmt"

	"github.com/aatumaykin/autoclaim/internal/chain"
)

// Reason is the closed set of claim failure causes.
type Reason int

const (
	// ReasonOther is the fallback; ClaimError.Message carries the node's text.
	ReasonOther Reason = iota
	ReasonMissingLinkAuth
	ReasonAlreadyClaimed
	ReasonInsufficientCPU
	ReasonInsufficientNET
	ReasonInsufficientRAM
	ReasonUnsatisfiedAuthorization
	ReasonExpired
	ReasonDuplicate
	ReasonInvalidKey
	ReasonNoEndpoint
	ReasonMissingKey
)

var reasonText = map[Reason]string{
	ReasonOther:                    "other",
	ReasonMissingLinkAuth:          "Irrelevant authority included, missing linkauth",
	ReasonAlreadyClaimed:           "Account already claimed in the past 24 hours. Please wait.",
	ReasonInsufficientCPU:          "Not enough CPU to execute the claim",
	ReasonInsufficientNET:          "Not enough NET to execute the claim",
	ReasonInsufficientRAM:          "Not enough RAM to execute the claim",
	ReasonUnsatisfiedAuthorization: "Permission does not satisfy the claim authorization",
	ReasonExpired:                  "Transaction expired before inclusion",
	ReasonDuplicate:                "Transaction was already submitted",
	ReasonInvalidKey:               "Stored signing key is invalid",
	ReasonNoEndpoint:               "No RPC endpoint reachable",
	ReasonMissingKey:               "Signing key not found in the credential store",
}

func (r Reason) String() string {
	if s, ok := reasonText[r]; ok {
		return s
	}
	return fmt.Sprintf("reason(%d)", int(r))
}

// reasonKey identifies a node error.
type reasonKey struct {
	domain string
	code   int
}

// knownCodes maps node exception codes to reasons. Anything absent is
// ReasonOther.
var knownCodes = map[reasonKey]Reason{
	{chain.DomainChain, 3090005}: ReasonMissingLinkAuth,          // irrelevant_auth_exception
	{chain.DomainChain, 3050003}: ReasonAlreadyClaimed,           // eosio_assert_message_exception
	{chain.DomainChain, 3080004}: ReasonInsufficientCPU,          // tx_cpu_usage_exceeded
	{chain.DomainChain, 3080002}: ReasonInsufficientNET,          // tx_net_usage_exceeded
	{chain.DomainChain, 3080001}: ReasonInsufficientRAM,          // ram_usage_exceeded
	{chain.DomainChain, 3090003}: ReasonUnsatisfiedAuthorization, // unsatisfied_authorization
	{chain.DomainChain, 3040005}: ReasonExpired,                  // expired_tx_exception
	{chain.DomainChain, 3040008}: ReasonDuplicate,                // tx_duplicate
	{chain.DomainKey, 0}:         ReasonInvalidKey,
}

// ClaimError is a failed claim submission.
type ClaimError struct {
	Reason  Reason
	Code    int
	Message string // raw node message, or the cause for local failures
	Err     error
}

func (e *ClaimError) Error() string {
	if e.Reason == ReasonOther {
		if e.Message != "" {
			return e.Message
		}
		if e.Err != nil {
			return e.Err.Error()
		}
	}
	return e.Reason.String()
}

func (e *ClaimError) Unwrap() error {
	return e.Err
}

// CredentialError reports a signing key that could not be loaded.
type CredentialError struct {
	KeyID string
	Err   error
}

func (e *CredentialError) Error() string {
	return fmt.Sprintf("credential %s unavailable: %v", e.KeyID, e.Err)
}

func (e *CredentialError) Unwrap() error {
	return e.Err
}

// Classify maps a submission failure to a ClaimError.
func Classify(err error) *ClaimError {
	if err == nil {
		return nil
	}

	var claimErr *ClaimError
	if errors.As(err, &claimErr) {
		return claimErr
	}

	var credErr *CredentialError
	if errors.As(err, &credErr) {
		return &ClaimError{Reason: ReasonMissingKey, Message: credErr.Error(), Err: err}
	}

	var appErr *chain.ApplicationError
	if errors.As(err, &appErr) {
		reason, ok := knownCodes[reasonKey{appErr.Domain, appErr.Code}]
		if !ok {
			reason = ReasonOther
		}
		return &ClaimError{Reason: reason, Code: appErr.Code, Message: appErr.Message, Err: err}
	}

	return &ClaimError{Reason: ReasonOther, Message: err.Error(), Err: err}
}
