// Package engine orchestrates a swap request through its pipeline:
// access check, balance gate, quote fetch, blockhash fetch, sign and
// submit. Every admitted request has its usage accounted exactly once,
// whichever stage it terminates in.
package engine

import (
	"context"
	"errors"
	"sync"
	"time"

	"go.uber.org/zap"

	"solana-swapbot/internal/domain"
	"solana-swapbot/internal/observability"
	"solana-swapbot/internal/solana"
	"solana-swapbot/internal/storage"
	"solana-swapbot/internal/usage"
)

// ChainReader is the subset of the RPC client the engine reads from.
type ChainReader interface {
	GetBalance(ctx context.Context, address string) (uint64, error)
	GetLatestBlockhash(ctx context.Context) (*solana.Blockhash, error)
}

// QuoteFetcher fetches a ready-to-sign swap transaction.
type QuoteFetcher interface {
	Fetch(ctx context.Context, req domain.SwapRequest, payer string) (domain.SwapQuote, error)
}

// TxSubmitter signs, submits and confirms a quote transaction.
type TxSubmitter interface {
	Submit(ctx context.Context, quote domain.SwapQuote, wallet *domain.Wallet, blockhash string) (string, error)
}

// Engine executes swap requests.
type Engine struct {
	wallet    *domain.Wallet
	meter     *usage.Meter
	chain     ChainReader
	quotes    QuoteFetcher
	submitter TxSubmitter
	journal   storage.SwapJournal // optional
	metrics   *observability.Metrics
	logger    *zap.Logger

	mu       sync.Mutex
	inFlight map[int64]struct{}
}

// Option configures an Engine.
type Option func(*Engine)

// WithJournal records every terminal outcome to the given journal.
func WithJournal(j storage.SwapJournal) Option {
	return func(e *Engine) {
		e.journal = j
	}
}

// WithMetrics sets the engine's metrics.
func WithMetrics(m *observability.Metrics) Option {
	return func(e *Engine) {
		e.metrics = m
	}
}

// WithLogger sets the engine's logger.
func WithLogger(logger *zap.Logger) Option {
	return func(e *Engine) {
		e.logger = logger
	}
}

// New creates an Engine.
func New(wallet *domain.Wallet, meter *usage.Meter, chain ChainReader, quotes QuoteFetcher, submitter TxSubmitter, opts ...Option) *Engine {
	e := &Engine{
		wallet:    wallet,
		meter:     meter,
		chain:     chain,
		quotes:    quotes,
		submitter: submitter,
		logger:    zap.NewNop(),
		inFlight:  make(map[int64]struct{}),
	}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// Execute runs req through the pipeline and returns its terminal outcome.
// A request rejected for an in-flight predecessor or malformed fields is
// never admitted and carries no usage accounting; every admitted request
// is accounted exactly once.
func (e *Engine) Execute(ctx context.Context, req domain.SwapRequest) domain.SwapOutcome {
	if err := validate(req); err != nil {
		return domain.SwapOutcome{Status: domain.SwapRejected, Reason: err.Error(), Err: err}
	}

	if !e.acquire(req.UserID) {
		return domain.SwapOutcome{
			Status: domain.SwapRejected,
			Reason: "previous swap still in progress",
			Err:    ErrSwapInFlight,
		}
	}
	defer e.release(req.UserID)

	if e.metrics != nil {
		e.metrics.SwapsStarted.Inc()
		e.metrics.SwapsInFlight.Inc()
		defer e.metrics.SwapsInFlight.Dec()
	}

	start := time.Now()
	outcome := e.run(ctx, req)
	outcome.Usage = e.recordUsage(ctx)

	duration := time.Since(start)
	e.observe(req, outcome, duration)
	e.record(ctx, req, outcome, duration)

	return outcome
}

// run executes the pipeline stages in order, short-circuiting on the
// first failure. Exactly one quote fetch and at most one submission
// happen per request.
func (e *Engine) run(ctx context.Context, req domain.SwapRequest) domain.SwapOutcome {
	decision, _, err := e.meter.CheckAccess(ctx)
	if err != nil {
		e.stageError("access")
		return failed("usage store unavailable, try again later", err)
	}
	if e.metrics != nil {
		e.metrics.AccessDecisions.WithLabelValues(string(decision)).Inc()
	}
	if decision != domain.AccessAllowed {
		e.stageError("access")
		return rejected(accessReason(decision), &AccessDeniedError{Decision: decision})
	}

	if err := checkBalance(ctx, e.chain, e.wallet.Address(), req.AmountLamports); err != nil {
		e.stageError("balance")
		var insufficient *InsufficientFundsError
		if errors.As(err, &insufficient) {
			return rejected(insufficient.Error(), err)
		}
		return failed("balance check unavailable, try again later", err)
	}

	quoteStart := time.Now()
	quote, err := e.quotes.Fetch(ctx, req, e.wallet.Address())
	if e.metrics != nil {
		e.metrics.QuoteLatency.Observe(time.Since(quoteStart).Seconds())
	}
	if err != nil {
		e.stageError("quote")
		return failed("quote provider error, try again later", err)
	}

	blockhash, err := e.chain.GetLatestBlockhash(ctx)
	if err != nil {
		e.stageError("blockhash")
		return failed("network unavailable, try again later", err)
	}

	sig, err := e.submitter.Submit(ctx, quote, e.wallet, blockhash.Hash)
	if err != nil {
		e.stageError("submit")
		var sub *solana.SubmissionError
		if errors.As(err, &sub) {
			out := failed(submissionReason(sub), err)
			out.Signature = sub.Signature
			return out
		}
		return failed("transaction could not be submitted", err)
	}

	e.logger.Info("swap submitted",
		zap.Int64("user_id", req.UserID),
		zap.String("output_mint", req.OutputMint),
		zap.Uint64("amount_lamports", req.AmountLamports),
		zap.String("signature", sig))

	return domain.SwapOutcome{Status: domain.SwapSubmitted, Signature: sig}
}

// recordUsage accounts the attempt. Persistence failures are logged and
// swallowed: an unwritable counter must not change a swap outcome.
func (e *Engine) recordUsage(ctx context.Context) domain.UsageRecord {
	rec, err := e.meter.RecordUsage(ctx)
	if err != nil {
		e.logger.Warn("usage record write failed", zap.Error(err))
		if e.metrics != nil {
			e.metrics.UsageWriteErrors.Inc()
		}
		return domain.UsageRecord{}
	}
	if e.metrics != nil {
		e.metrics.UsageRecorded.Inc()
	}
	return rec
}

func (e *Engine) observe(req domain.SwapRequest, out domain.SwapOutcome, d time.Duration) {
	if e.metrics != nil {
		e.metrics.SwapsCompleted.WithLabelValues(string(out.Status)).Inc()
		e.metrics.SwapDuration.WithLabelValues(string(out.Status)).Observe(d.Seconds())
	}
	if out.Status != domain.SwapSubmitted {
		e.logger.Info("swap terminated",
			zap.Int64("user_id", req.UserID),
			zap.String("status", string(out.Status)),
			zap.String("reason", out.Reason))
	}
}

// record appends the outcome to the journal, if one is configured.
func (e *Engine) record(ctx context.Context, req domain.SwapRequest, out domain.SwapOutcome, d time.Duration) {
	if e.journal == nil {
		return
	}
	entry := &domain.SwapJournalEntry{
		UserID:         req.UserID,
		InputMint:      req.InputMint,
		OutputMint:     req.OutputMint,
		AmountLamports: req.AmountLamports,
		Status:         out.Status,
		Reason:         out.Reason,
		Signature:      out.Signature,
		DurationMs:     d.Milliseconds(),
		CreatedAt:      time.Now().UTC(),
	}
	if err := e.journal.Append(ctx, entry); err != nil {
		e.logger.Warn("swap journal append failed", zap.Error(err))
	}
}

func (e *Engine) acquire(userID int64) bool {
	e.mu.Lock()
	defer e.mu.Unlock()
	if _, busy := e.inFlight[userID]; busy {
		return false
	}
	e.inFlight[userID] = struct{}{}
	return true
}

func (e *Engine) release(userID int64) {
	e.mu.Lock()
	defer e.mu.Unlock()
	delete(e.inFlight, userID)
}

func (e *Engine) stageError(stage string) {
	if e.metrics != nil {
		e.metrics.SwapStageErrors.WithLabelValues(stage).Inc()
	}
}

func validate(req domain.SwapRequest) error {
	if req.AmountLamports == 0 {
		return &ValidationError{Field: "amount", Reason: "must be positive"}
	}
	if req.InputMint == "" {
		return &ValidationError{Field: "input mint", Reason: "is required"}
	}
	if req.OutputMint == "" {
		return &ValidationError{Field: "output mint", Reason: "is required"}
	}
	if req.SlippageBps <= 0 {
		return &ValidationError{Field: "slippage", Reason: "must be positive"}
	}
	return nil
}

func rejected(reason string, err error) domain.SwapOutcome {
	return domain.SwapOutcome{Status: domain.SwapRejected, Reason: reason, Err: err}
}

func failed(reason string, err error) domain.SwapOutcome {
	return domain.SwapOutcome{Status: domain.SwapFailed, Reason: reason, Err: err}
}

func accessReason(d domain.AccessDecision) string {
	switch d {
	case domain.AccessTrialExhausted:
		return "trial requests exhausted, subscription required"
	case domain.AccessSubscriptionExpired:
		return "subscription expired, renew to continue"
	case domain.AccessQuotaExceeded:
		return "monthly request quota exceeded"
	default:
		return "access denied"
	}
}

func submissionReason(err *solana.SubmissionError) string {
	switch err.Kind {
	case solana.SubmissionInsufficientNetworkFunds:
		return "wallet cannot cover network fees"
	case solana.SubmissionUnconfirmed:
		return "confirmation timed out, transaction may still land"
	default:
		return "transaction rejected by the network"
	}
}
