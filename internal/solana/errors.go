package solana

import (
	"encoding/json"
	"errors"
	"fmt"
)

// ErrUnsupportedFormat is returned for any quote transaction format other
// than legacy. The pipeline must not attempt to guess-decode other formats;
// this error signals a provider contract change, not a transient failure.
var ErrUnsupportedFormat = errors.New("unsupported transaction format")

// SubmissionKind classifies a submission failure.
type SubmissionKind string

const (
	// SubmissionRejected means the cluster refused the transaction.
	SubmissionRejected SubmissionKind = "rejected"
	// SubmissionUnconfirmed means the transaction was accepted but did not
	// confirm within the wait window. It may still land later; callers can
	// re-query status by signature.
	SubmissionUnconfirmed SubmissionKind = "unconfirmed"
	// SubmissionInsufficientNetworkFunds means the cluster reported the
	// wallet could not cover lamports or fees at execution time, even
	// though the pre-submission balance gate passed. Fees can move between
	// quote and submission, so this is an expected outcome.
	SubmissionInsufficientNetworkFunds SubmissionKind = "insufficient_network_funds"
)

// SubmissionError is a typed submission failure.
type SubmissionError struct {
	Kind      SubmissionKind
	Signature string // set when the transaction was submitted before failing
	Message   string // provider message, for operators; never used to branch
}

func (e *SubmissionError) Error() string {
	if e.Message == "" {
		return fmt.Sprintf("submission %s", e.Kind)
	}
	return fmt.Sprintf("submission %s: %s", e.Kind, e.Message)
}

// Structured transaction error names reported in the RPC error data payload
// and in preflight simulation results.
const (
	txErrInsufficientFundsForFee  = "InsufficientFundsForFee"
	txErrInsufficientFundsForRent = "InsufficientFundsForRent"
	txErrAccountNotFound          = "AccountNotFound"
)

// systemErrResultWithNegativeLamports is the system program's custom
// instruction error code for a transfer that would overdraw the account.
// The SPL token program uses the same code for insufficient funds.
const systemErrResultWithNegativeLamports = 1

// sendTxErrorData is the data payload attached to a sendTransaction RPC
// error when preflight simulation fails.
type sendTxErrorData struct {
	Err  json.RawMessage `json:"err"`
	Logs []string        `json:"logs"`
}

// classifySendError maps a sendTransaction failure to a SubmissionError by
// decoding the structured error payload. It never inspects message text.
func classifySendError(err error) *SubmissionError {
	var rpcErr *RPCError
	if !errors.As(err, &rpcErr) {
		return &SubmissionError{Kind: SubmissionRejected, Message: err.Error()}
	}

	sub := &SubmissionError{Kind: SubmissionRejected, Message: rpcErr.Message}
	if len(rpcErr.Data) == 0 {
		return sub
	}

	var data sendTxErrorData
	if jsonErr := json.Unmarshal(rpcErr.Data, &data); jsonErr != nil || len(data.Err) == 0 {
		return sub
	}

	if txErrIsInsufficientFunds(data.Err) {
		sub.Kind = SubmissionInsufficientNetworkFunds
	}
	return sub
}

// txErrIsInsufficientFunds decodes a TransactionError value and reports
// whether it names an insufficient-funds condition. The value is either a
// bare string variant ("InsufficientFundsForFee") or an object variant
// ({"InstructionError": [index, {"Custom": code}]}).
func txErrIsInsufficientFunds(raw json.RawMessage) bool {
	var name string
	if err := json.Unmarshal(raw, &name); err == nil {
		return name == txErrInsufficientFundsForFee || name == txErrInsufficientFundsForRent
	}

	var obj map[string]json.RawMessage
	if err := json.Unmarshal(raw, &obj); err != nil {
		return false
	}
	insErr, ok := obj["InstructionError"]
	if !ok {
		return false
	}

	// [instruction_index, error_variant]
	var parts []json.RawMessage
	if err := json.Unmarshal(insErr, &parts); err != nil || len(parts) != 2 {
		return false
	}

	// String variant, e.g. "InsufficientFunds"
	var variant string
	if err := json.Unmarshal(parts[1], &variant); err == nil {
		return variant == "InsufficientFunds"
	}

	// Custom variant: both the system program (negative lamports) and the
	// token program (insufficient funds) use code 1.
	var custom struct {
		Custom *int `json:"Custom"`
	}
	if err := json.Unmarshal(parts[1], &custom); err != nil || custom.Custom == nil {
		return false
	}
	return *custom.Custom == systemErrResultWithNegativeLamports
}
