package solana

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.uber.org/zap"

	"solana-swapbot/internal/domain"
	"solana-swapbot/internal/observability"
)

// Default confirmation parameters.
const (
	DefaultConfirmTimeout = 60 * time.Second
	DefaultPollInterval   = 2 * time.Second
)

// Submitter signs and submits quote transactions and awaits confirmation.
// Confirmation uses the WebSocket signatureSubscribe stream when a WS
// client is configured, and falls back to getSignatureStatuses polling
// otherwise.
type Submitter struct {
	rpc            *HTTPClient
	ws             *WSClient // optional
	confirmTimeout time.Duration
	pollInterval   time.Duration
	metrics        *observability.Metrics
	logger         *zap.Logger
}

// SubmitterOption configures a Submitter.
type SubmitterOption func(*Submitter)

// WithWSClient enables WebSocket-based confirmation.
func WithWSClient(ws *WSClient) SubmitterOption {
	return func(s *Submitter) {
		s.ws = ws
	}
}

// WithConfirmTimeout bounds the confirmation wait.
func WithConfirmTimeout(d time.Duration) SubmitterOption {
	return func(s *Submitter) {
		s.confirmTimeout = d
	}
}

// WithPollInterval sets the status polling interval.
func WithPollInterval(d time.Duration) SubmitterOption {
	return func(s *Submitter) {
		s.pollInterval = d
	}
}

// WithLogger sets the submitter's logger.
func WithLogger(logger *zap.Logger) SubmitterOption {
	return func(s *Submitter) {
		s.logger = logger
	}
}

// WithSubmitterMetrics records confirmation wait times.
func WithSubmitterMetrics(m *observability.Metrics) SubmitterOption {
	return func(s *Submitter) {
		s.metrics = m
	}
}

// NewSubmitter creates a Submitter on top of an RPC client.
func NewSubmitter(rpc *HTTPClient, opts ...SubmitterOption) *Submitter {
	s := &Submitter{
		rpc:            rpc,
		confirmTimeout: DefaultConfirmTimeout,
		pollInterval:   DefaultPollInterval,
		logger:         zap.NewNop(),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Submit decodes the quote transaction, attaches the blockhash, signs with
// the wallet, submits, and awaits confirmation. At most one submission
// attempt is made; failures are never retried here.
func (s *Submitter) Submit(ctx context.Context, quote domain.SwapQuote, wallet *domain.Wallet, blockhash string) (string, error) {
	if quote.TxType != domain.TxTypeLegacy {
		return "", fmt.Errorf("%w: %q", ErrUnsupportedFormat, quote.TxType)
	}

	tx, err := ParseLegacyTransaction(quote.SerializedTx)
	if err != nil {
		return "", fmt.Errorf("parse quote transaction: %w", err)
	}

	if err := tx.SetRecentBlockhash(blockhash); err != nil {
		return "", fmt.Errorf("set blockhash: %w", err)
	}
	if err := tx.Sign(wallet); err != nil {
		return "", fmt.Errorf("sign transaction: %w", err)
	}

	sig, err := s.rpc.SendTransaction(ctx, tx.Serialize())
	if err != nil {
		return "", classifySendError(err)
	}

	s.logger.Info("transaction submitted",
		zap.String("signature", sig),
		zap.String("payer", wallet.Address()))

	if err := s.awaitConfirmation(ctx, sig); err != nil {
		return sig, err
	}
	return sig, nil
}

// Status re-queries a signature's confirmation state. Returns nil status if
// the cluster does not know the signature.
func (s *Submitter) Status(ctx context.Context, signature string) (*SignatureStatus, error) {
	statuses, err := s.rpc.GetSignatureStatuses(ctx, []string{signature})
	if err != nil {
		return nil, err
	}
	if len(statuses) == 0 {
		return nil, nil
	}
	return statuses[0], nil
}

// awaitConfirmation waits until the signature confirms, fails, or the
// confirmation window elapses. A timeout yields SubmissionUnconfirmed with
// the signature attached: the transaction may still land later.
func (s *Submitter) awaitConfirmation(ctx context.Context, sig string) error {
	start := time.Now()
	err := s.confirm(ctx, sig)
	if s.metrics != nil {
		s.metrics.ConfirmationWaits.WithLabelValues(confirmOutcome(err)).Observe(time.Since(start).Seconds())
	}
	return err
}

func (s *Submitter) confirm(ctx context.Context, sig string) error {
	ctx, cancel := context.WithTimeout(ctx, s.confirmTimeout)
	defer cancel()

	var err error
	if s.ws != nil {
		err = s.awaitViaSubscription(ctx, sig)
		// Fall through to polling on subscription setup failure only.
		var subErr *SubmissionError
		if err == nil || errors.As(err, &subErr) {
			return err
		}
		s.logger.Warn("signature subscription failed, polling instead",
			zap.String("signature", sig), zap.Error(err))
	}
	return s.awaitViaPolling(ctx, sig)
}

func confirmOutcome(err error) string {
	if err == nil {
		return "confirmed"
	}
	var sub *SubmissionError
	if errors.As(err, &sub) {
		switch sub.Kind {
		case SubmissionUnconfirmed:
			return "timeout"
		case SubmissionRejected:
			return "rejected"
		}
	}
	return "error"
}

func (s *Submitter) awaitViaSubscription(ctx context.Context, sig string) error {
	ch, err := s.ws.SubscribeSignature(ctx, sig)
	if err != nil {
		return fmt.Errorf("subscribe signature: %w", err)
	}

	select {
	case notif, ok := <-ch:
		if !ok {
			return fmt.Errorf("subscription closed")
		}
		if notif.Failed() {
			return &SubmissionError{Kind: SubmissionRejected, Signature: sig, Message: "transaction failed on-chain"}
		}
		return nil
	case <-ctx.Done():
		return &SubmissionError{Kind: SubmissionUnconfirmed, Signature: sig, Message: "confirmation timed out"}
	}
}

func (s *Submitter) awaitViaPolling(ctx context.Context, sig string) error {
	ticker := time.NewTicker(s.pollInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return &SubmissionError{Kind: SubmissionUnconfirmed, Signature: sig, Message: "confirmation timed out"}
		case <-ticker.C:
		}

		status, err := s.Status(ctx, sig)
		if err != nil {
			// Transient RPC failure; keep polling until the window closes.
			s.logger.Warn("signature status query failed",
				zap.String("signature", sig), zap.Error(err))
			continue
		}
		if status == nil {
			continue
		}
		if status.Failed() {
			return &SubmissionError{Kind: SubmissionRejected, Signature: sig, Message: "transaction failed on-chain"}
		}
		if status.Confirmed() {
			return nil
		}
	}
}
