package engine

import (
	"bytes"
	"context"
	"crypto/ed25519"
	"errors"
	"fmt"
	"sync/atomic"
	"testing"
	"time"

	"github.com/mr-tron/base58"

	"solana-swapbot/internal/domain"
	"solana-swapbot/internal/quote"
	"solana-swapbot/internal/solana"
	"solana-swapbot/internal/storage"
	"solana-swapbot/internal/storage/memory"
	"solana-swapbot/internal/usage"
)

type fakeChain struct {
	balance      uint64
	balanceErr   error
	blockhashErr error
	balanceCalls atomic.Int64
}

func (c *fakeChain) GetBalance(context.Context, string) (uint64, error) {
	c.balanceCalls.Add(1)
	return c.balance, c.balanceErr
}

func (c *fakeChain) GetLatestBlockhash(context.Context) (*solana.Blockhash, error) {
	if c.blockhashErr != nil {
		return nil, c.blockhashErr
	}
	return &solana.Blockhash{Hash: "hash", LastValidBlockHeight: 100}, nil
}

type fakeQuotes struct {
	quote domain.SwapQuote
	err   error
	calls atomic.Int64
}

func (q *fakeQuotes) Fetch(context.Context, domain.SwapRequest, string) (domain.SwapQuote, error) {
	q.calls.Add(1)
	return q.quote, q.err
}

type fakeSubmitter struct {
	sig   string
	err   error
	block chan struct{} // when set, Submit waits for it to close
	calls atomic.Int64
}

func (s *fakeSubmitter) Submit(ctx context.Context, _ domain.SwapQuote, _ *domain.Wallet, _ string) (string, error) {
	s.calls.Add(1)
	if s.block != nil {
		select {
		case <-s.block:
		case <-ctx.Done():
			return "", ctx.Err()
		}
	}
	if s.err != nil {
		return "", s.err
	}
	return s.sig, nil
}

// failingUsageStore returns an error on every write.
type failingUsageStore struct{}

func (failingUsageStore) Get(context.Context, string) (domain.UsageRecord, error) {
	return domain.UsageRecord{}, nil
}

func (failingUsageStore) Increment(context.Context, string, int64) (domain.UsageRecord, error) {
	return domain.UsageRecord{}, fmt.Errorf("disk full")
}

func (failingUsageStore) SetSubscriptionEnd(context.Context, string, time.Time) error {
	return fmt.Errorf("disk full")
}

func testWallet(t *testing.T) *domain.Wallet {
	t.Helper()
	seed := bytes.Repeat([]byte{0x01}, ed25519.SeedSize)
	wallet, err := domain.NewWalletFromBase58(base58.Encode(seed))
	if err != nil {
		t.Fatalf("create wallet: %v", err)
	}
	return wallet
}

func testRequest() domain.SwapRequest {
	return domain.SwapRequest{
		UserID:         1,
		InputMint:      domain.SOLMint,
		OutputMint:     "DezXAZ8z7PnrnRJjz3wXBoRgixCa6xjnB7YaB1pPB263",
		AmountLamports: 100_000,
		SlippageBps:    15,
		PriorityFee:    0.0001,
	}
}

type fixture struct {
	engine    *Engine
	store     storage.UsageStore
	chain     *fakeChain
	quotes    *fakeQuotes
	submitter *fakeSubmitter
	wallet    *domain.Wallet
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	f := &fixture{
		store:     memory.NewUsageStore(),
		chain:     &fakeChain{balance: 10 * domain.LamportsPerSOL},
		quotes:    &fakeQuotes{quote: domain.SwapQuote{SerializedTx: []byte{0x01}, TxType: domain.TxTypeLegacy}},
		submitter: &fakeSubmitter{sig: "testsig"},
		wallet:    testWallet(t),
	}
	meter := usage.NewMeter(f.store, f.wallet.Address())
	f.engine = New(f.wallet, meter, f.chain, f.quotes, f.submitter)
	return f
}

func (f *fixture) usageCount(t *testing.T) int64 {
	t.Helper()
	rec, err := f.store.Get(context.Background(), f.wallet.Address())
	if err != nil {
		t.Fatalf("read usage record: %v", err)
	}
	return rec.RequestsCount
}

func TestEngine_Execute_Success(t *testing.T) {
	f := newFixture(t)

	outcome := f.engine.Execute(context.Background(), testRequest())
	if outcome.Status != domain.SwapSubmitted {
		t.Fatalf("expected submitted, got %s (%s)", outcome.Status, outcome.Reason)
	}
	if outcome.Signature != "testsig" {
		t.Errorf("expected signature testsig, got %s", outcome.Signature)
	}
	if got := f.quotes.calls.Load(); got != 1 {
		t.Errorf("expected exactly 1 quote fetch, got %d", got)
	}
	if got := f.submitter.calls.Load(); got != 1 {
		t.Errorf("expected exactly 1 submission, got %d", got)
	}
	if got := f.usageCount(t); got != 1 {
		t.Errorf("expected usage count 1, got %d", got)
	}
	if outcome.Usage.RequestsCount != 1 {
		t.Errorf("expected post-increment usage on outcome, got %d", outcome.Usage.RequestsCount)
	}
}

func TestEngine_Execute_ValidationNoQuoteNoUsage(t *testing.T) {
	f := newFixture(t)

	for _, req := range []domain.SwapRequest{
		{UserID: 1, InputMint: domain.SOLMint, OutputMint: "mint", AmountLamports: 0, SlippageBps: 15},
		{UserID: 1, InputMint: domain.SOLMint, OutputMint: "", AmountLamports: 1000, SlippageBps: 15},
		{UserID: 1, InputMint: "", OutputMint: "mint", AmountLamports: 1000, SlippageBps: 15},
	} {
		outcome := f.engine.Execute(context.Background(), req)
		if outcome.Status != domain.SwapRejected {
			t.Errorf("expected rejected, got %s", outcome.Status)
		}
		var verr *ValidationError
		if !errors.As(outcome.Err, &verr) {
			t.Errorf("expected *ValidationError, got %v", outcome.Err)
		}
	}

	if got := f.quotes.calls.Load(); got != 0 {
		t.Errorf("expected no quote fetches, got %d", got)
	}
	if got := f.usageCount(t); got != 0 {
		t.Errorf("expected no usage accounted, got %d", got)
	}
}

func TestEngine_Execute_AccessDeniedHaltsBeforeBalance(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	// Exhaust the trial with no subscription.
	for i := 0; i < domain.TrialRequests; i++ {
		if _, err := f.store.Increment(ctx, f.wallet.Address(), domain.TrialRequests); err != nil {
			t.Fatalf("seed usage: %v", err)
		}
	}

	outcome := f.engine.Execute(ctx, testRequest())
	if outcome.Status != domain.SwapRejected {
		t.Fatalf("expected rejected, got %s", outcome.Status)
	}
	var denied *AccessDeniedError
	if !errors.As(outcome.Err, &denied) {
		t.Fatalf("expected *AccessDeniedError, got %v", outcome.Err)
	}
	if denied.Decision != domain.AccessTrialExhausted {
		t.Errorf("expected trial exhausted, got %s", denied.Decision)
	}
	if got := f.chain.balanceCalls.Load(); got != 0 {
		t.Errorf("expected pipeline halted before balance gate, got %d balance calls", got)
	}
	if got := f.quotes.calls.Load(); got != 0 {
		t.Errorf("expected no quote fetches, got %d", got)
	}
	// The denied attempt is still accounted.
	if got := f.usageCount(t); got != domain.TrialRequests+1 {
		t.Errorf("expected usage count %d, got %d", domain.TrialRequests+1, got)
	}
}

func TestEngine_Execute_ExpiredSubscription(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	for i := 0; i < domain.TrialRequests; i++ {
		if _, err := f.store.Increment(ctx, f.wallet.Address(), domain.TrialRequests); err != nil {
			t.Fatalf("seed usage: %v", err)
		}
	}
	if err := f.store.SetSubscriptionEnd(ctx, f.wallet.Address(), time.Now().Add(-time.Hour)); err != nil {
		t.Fatalf("SetSubscriptionEnd: %v", err)
	}

	outcome := f.engine.Execute(ctx, testRequest())
	var denied *AccessDeniedError
	if !errors.As(outcome.Err, &denied) {
		t.Fatalf("expected *AccessDeniedError, got %v", outcome.Err)
	}
	if denied.Decision != domain.AccessSubscriptionExpired {
		t.Errorf("expected subscription expired, got %s", denied.Decision)
	}
}

func TestEngine_Execute_InsufficientBalance(t *testing.T) {
	f := newFixture(t)
	f.chain.balance = domain.RentExemptReserve // covers reserve only, not the amount

	outcome := f.engine.Execute(context.Background(), testRequest())
	if outcome.Status != domain.SwapRejected {
		t.Fatalf("expected rejected, got %s", outcome.Status)
	}
	var insufficient *InsufficientFundsError
	if !errors.As(outcome.Err, &insufficient) {
		t.Fatalf("expected *InsufficientFundsError, got %v", outcome.Err)
	}
	if insufficient.Shortfall() != 100_000 {
		t.Errorf("expected shortfall 100000, got %d", insufficient.Shortfall())
	}
	if got := f.quotes.calls.Load(); got != 0 {
		t.Errorf("expected no quote fetch on insufficient balance, got %d", got)
	}
	if got := f.submitter.calls.Load(); got != 0 {
		t.Errorf("expected no submission, got %d", got)
	}
	if got := f.usageCount(t); got != 1 {
		t.Errorf("expected usage still recorded, got %d", got)
	}
}

func TestEngine_Execute_BalanceScenario(t *testing.T) {
	f := newFixture(t)
	// 3,000,000 lamports covers 100,000 + 2,039,280 reserve.
	f.chain.balance = 3_000_000

	outcome := f.engine.Execute(context.Background(), testRequest())
	if outcome.Status != domain.SwapSubmitted {
		t.Fatalf("expected submitted, got %s (%s)", outcome.Status, outcome.Reason)
	}
}

func TestEngine_Execute_BalanceRPCFailure(t *testing.T) {
	f := newFixture(t)
	f.chain.balanceErr = fmt.Errorf("connection refused")

	outcome := f.engine.Execute(context.Background(), testRequest())
	if outcome.Status != domain.SwapFailed {
		t.Fatalf("expected failed, got %s", outcome.Status)
	}
	if !errors.Is(outcome.Err, ErrProviderUnavailable) {
		t.Errorf("expected ErrProviderUnavailable, got %v", outcome.Err)
	}
	if got := f.quotes.calls.Load(); got != 0 {
		t.Errorf("expected no quote fetch when balance is unknown, got %d", got)
	}
	if got := f.usageCount(t); got != 1 {
		t.Errorf("expected usage recorded, got %d", got)
	}
}

func TestEngine_Execute_QuoteFailureNoSubmission(t *testing.T) {
	f := newFixture(t)
	f.quotes.err = fmt.Errorf("%w: missing transaction field", quote.ErrInvalidResponse)

	outcome := f.engine.Execute(context.Background(), testRequest())
	if outcome.Status != domain.SwapFailed {
		t.Fatalf("expected failed, got %s", outcome.Status)
	}
	if !errors.Is(outcome.Err, quote.ErrInvalidResponse) {
		t.Errorf("expected quote.ErrInvalidResponse, got %v", outcome.Err)
	}
	if got := f.submitter.calls.Load(); got != 0 {
		t.Errorf("expected no submission after quote failure, got %d", got)
	}
	if got := f.usageCount(t); got != 1 {
		t.Errorf("expected usage still recorded, got %d", got)
	}
}

func TestEngine_Execute_UnsupportedFormat(t *testing.T) {
	f := newFixture(t)
	f.submitter.err = fmt.Errorf("%w: %q", solana.ErrUnsupportedFormat, "v0")

	outcome := f.engine.Execute(context.Background(), testRequest())
	if outcome.Status != domain.SwapFailed {
		t.Fatalf("expected failed, got %s", outcome.Status)
	}
	if !errors.Is(outcome.Err, solana.ErrUnsupportedFormat) {
		t.Errorf("expected ErrUnsupportedFormat, got %v", outcome.Err)
	}
	if got := f.usageCount(t); got != 1 {
		t.Errorf("expected usage recorded, got %d", got)
	}
}

func TestEngine_Execute_SubmissionErrorRetainsSignature(t *testing.T) {
	f := newFixture(t)
	f.submitter.err = &solana.SubmissionError{
		Kind:      solana.SubmissionUnconfirmed,
		Signature: "pendingsig",
	}

	outcome := f.engine.Execute(context.Background(), testRequest())
	if outcome.Status != domain.SwapFailed {
		t.Fatalf("expected failed, got %s", outcome.Status)
	}
	if outcome.Signature != "pendingsig" {
		t.Errorf("expected signature retained for later queries, got %q", outcome.Signature)
	}
	if got := f.usageCount(t); got != 1 {
		t.Errorf("expected usage recorded, got %d", got)
	}
}

func TestEngine_Execute_SecondRequestInFlight(t *testing.T) {
	f := newFixture(t)
	f.submitter.block = make(chan struct{})

	firstDone := make(chan domain.SwapOutcome, 1)
	go func() {
		firstDone <- f.engine.Execute(context.Background(), testRequest())
	}()

	// Wait for the first request to reach the submitter.
	deadline := time.After(2 * time.Second)
	for f.submitter.calls.Load() == 0 {
		select {
		case <-deadline:
			t.Fatal("first request never reached the submitter")
		case <-time.After(time.Millisecond):
		}
	}

	second := f.engine.Execute(context.Background(), testRequest())
	if !errors.Is(second.Err, ErrSwapInFlight) {
		t.Fatalf("expected ErrSwapInFlight, got %v", second.Err)
	}

	close(f.submitter.block)
	first := <-firstDone
	if first.Status != domain.SwapSubmitted {
		t.Fatalf("expected first request submitted, got %s (%s)", first.Status, first.Reason)
	}

	// Only the admitted request is accounted.
	if got := f.usageCount(t); got != 1 {
		t.Errorf("expected usage count 1, got %d", got)
	}

	// With the first terminal, a new request is admitted again.
	third := f.engine.Execute(context.Background(), testRequest())
	if third.Status != domain.SwapSubmitted {
		t.Fatalf("expected third request submitted, got %s (%s)", third.Status, third.Reason)
	}
}

func TestEngine_Execute_UsageWriteFailureSwallowed(t *testing.T) {
	wallet := testWallet(t)
	meter := usage.NewMeter(failingUsageStore{}, wallet.Address())
	chain := &fakeChain{balance: 10 * domain.LamportsPerSOL}
	quotes := &fakeQuotes{quote: domain.SwapQuote{SerializedTx: []byte{0x01}, TxType: domain.TxTypeLegacy}}
	submitter := &fakeSubmitter{sig: "testsig"}

	eng := New(wallet, meter, chain, quotes, submitter)

	outcome := eng.Execute(context.Background(), testRequest())
	if outcome.Status != domain.SwapSubmitted {
		t.Fatalf("expected submitted despite usage write failure, got %s (%s)", outcome.Status, outcome.Reason)
	}
}

func TestEngine_Execute_TrialFlipReported(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	for i := 0; i < domain.TrialRequests-1; i++ {
		if _, err := f.store.Increment(ctx, f.wallet.Address(), domain.TrialRequests); err != nil {
			t.Fatalf("seed usage: %v", err)
		}
	}

	outcome := f.engine.Execute(ctx, testRequest())
	if outcome.Status != domain.SwapSubmitted {
		t.Fatalf("expected submitted, got %s (%s)", outcome.Status, outcome.Reason)
	}
	if outcome.Usage.RequestsCount != domain.TrialRequests {
		t.Errorf("expected requests count %d, got %d", domain.TrialRequests, outcome.Usage.RequestsCount)
	}
	if !outcome.Usage.TrialCompleted {
		t.Error("expected trial completed flag on the 15th request")
	}
}
