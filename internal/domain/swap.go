package domain

// Network constants.
const (
	// LamportsPerSOL is the number of lamports in one SOL.
	LamportsPerSOL = 1_000_000_000

	// SOLMint is the mint address of native (wrapped) SOL.
	SOLMint = "So11111111111111111111111111111111111111112"

	// RentExemptReserve is the lamport balance a standard account must
	// retain to persist on-chain. The balance gate requires
	// amount + RentExemptReserve so a swap never empties the wallet
	// below the rent-exempt threshold once the fee is deducted.
	RentExemptReserve = 2_039_280
)

// SwapRequest is one user-initiated swap. It carries its destination mint
// by value: once constructed the request cannot be retargeted by a later
// address scrape. Consumed exactly once by the engine.
type SwapRequest struct {
	UserID         int64   // requesting chat user
	InputMint      string  // source asset mint address
	OutputMint     string  // destination asset mint address
	AmountLamports uint64  // amount in lamports of the input asset
	SlippageBps    int     // slippage tolerance in basis points
	PriorityFee    float64 // priority fee hint in SOL
}

// AmountSOL returns the request amount as decimal SOL.
func (r SwapRequest) AmountSOL() float64 {
	return float64(r.AmountLamports) / LamportsPerSOL
}

// SwapQuote is the external provider's response: a ready-to-sign
// serialized transaction plus its format tag.
type SwapQuote struct {
	SerializedTx []byte // decoded transaction payload
	TxType       string // "legacy" is the only submittable format
}

// TxTypeLegacy is the only transaction format the signer supports.
const TxTypeLegacy = "legacy"

// SwapStatus is the terminal state of a SwapRequest.
type SwapStatus string

const (
	// SwapSubmitted means the signed transaction was accepted by the
	// network and confirmed (or submitted; see Outcome.Reason).
	SwapSubmitted SwapStatus = "submitted"
	// SwapRejected means a pre-flight gate (validation, access, balance)
	// stopped the pipeline before any network spend.
	SwapRejected SwapStatus = "rejected"
	// SwapFailed means a post-gate stage (quote, sign, submit) failed.
	SwapFailed SwapStatus = "failed"
)

// SwapOutcome is the terminal result of one SwapRequest.
type SwapOutcome struct {
	Status    SwapStatus
	Signature string      // set when Status == SwapSubmitted
	Reason    string      // set when Status != SwapSubmitted
	Err       error       // typed stage error, nil on success
	Usage     UsageRecord // post-increment usage, zero if not accounted
}
