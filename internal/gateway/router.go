package gateway

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"go.uber.org/zap"

	"solana-swapbot/internal/conversation"
	"solana-swapbot/internal/discovery"
	"solana-swapbot/internal/domain"
	"solana-swapbot/internal/engine"
	"solana-swapbot/internal/observability"
)

// Swap parameter defaults applied to every quote request.
const (
	DefaultSlippageBps = 15
	DefaultPriorityFee = 0.0001
)

const helpText = "Here are the available commands:\n" +
	"/start - Start the bot\n" +
	"/help - List available commands\n" +
	"/buy - Buy the target token\n" +
	"/sell - Sell the target token\n" +
	"/limit - Place a limit order\n" +
	"/balance - Check account balance\n"

// SwapExecutor runs a swap request to its terminal outcome.
type SwapExecutor interface {
	Execute(ctx context.Context, req domain.SwapRequest) domain.SwapOutcome
}

// Router dispatches chat updates to command handlers, the address
// scraper and the amount conversation.
type Router struct {
	executor SwapExecutor
	chain    engine.ChainReader
	wallet   string // wallet address, balance queries only
	scraper  *discovery.Scraper
	book     *discovery.Book
	tracker  *conversation.Tracker
	metrics  *observability.Metrics
	logger   *zap.Logger
}

// RouterOption configures a Router.
type RouterOption func(*Router)

// WithMetrics sets the router's metrics.
func WithMetrics(m *observability.Metrics) RouterOption {
	return func(r *Router) {
		r.metrics = m
	}
}

// WithLogger sets the router's logger.
func WithLogger(logger *zap.Logger) RouterOption {
	return func(r *Router) {
		r.logger = logger
	}
}

// NewRouter creates a Router.
func NewRouter(executor SwapExecutor, chain engine.ChainReader, walletAddress string, book *discovery.Book, tracker *conversation.Tracker, opts ...RouterOption) *Router {
	r := &Router{
		executor: executor,
		chain:    chain,
		wallet:   walletAddress,
		scraper:  discovery.NewScraper(),
		book:     book,
		tracker:  tracker,
		logger:   zap.NewNop(),
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// Handle processes one update and sends any replies through m. Errors
// from m are returned; handler logic itself never fails the caller.
func (r *Router) Handle(ctx context.Context, m Messenger, up Update) error {
	text := strings.TrimSpace(up.Text)
	if text == "" {
		return nil
	}

	if strings.HasPrefix(text, "/") {
		cmd := strings.ToLower(strings.Fields(text)[0])
		r.count("command")
		switch cmd {
		case "/start":
			return m.Send(ctx, up.ChatID, "Hi! Welcome to the RenAI bot.")
		case "/help":
			return m.Send(ctx, up.ChatID, helpText)
		case "/buy":
			return r.handleBuy(ctx, m, up)
		case "/sell", "/limit":
			return m.Send(ctx, up.ChatID, "This command is not implemented yet.")
		case "/balance":
			return r.handleBalance(ctx, m, up)
		default:
			return m.Send(ctx, up.ChatID, "Unknown command. Send /help for the list of commands.")
		}
	}

	return r.handleText(ctx, m, up, text)
}

// handleBuy binds the chat's current mint into a prompt and asks for the
// amount. The mint is captured now: a later scrape in the same chat does
// not retarget this dialogue.
func (r *Router) handleBuy(ctx context.Context, m Messenger, up Update) error {
	mint := r.book.Current(up.ChatID)
	if mint == "" {
		return m.Send(ctx, up.ChatID, "No mint address found yet. Paste a token address first.")
	}
	r.tracker.Ask(up.UserID, conversation.SideBuy, mint)
	return m.Send(ctx, up.ChatID, "Welcome! to the RenAI bot, Please enter the amount of SOL you want to buy:")
}

func (r *Router) handleBalance(ctx context.Context, m Messenger, up Update) error {
	lamports, err := r.chain.GetBalance(ctx, r.wallet)
	if err != nil {
		r.logger.Error("balance query failed", zap.Error(err))
		return m.Send(ctx, up.ChatID, "Error: Unable to fetch wallet balance. Please try again later.")
	}
	sol := float64(lamports) / domain.LamportsPerSOL
	return m.Send(ctx, up.ChatID, fmt.Sprintf("Wallet Address: %s\nBalance: %.9f SOL", r.wallet, sol))
}

// handleText answers a pending amount prompt if one exists, otherwise
// scrapes the text for a mint address.
func (r *Router) handleText(ctx context.Context, m Messenger, up Update, text string) error {
	r.count("text")
	pending, amount, err := r.tracker.Answer(up.UserID, text)
	switch {
	case err == nil:
		return r.executeSwap(ctx, m, up, pending, amount)
	case errors.Is(err, conversation.ErrBadAmount):
		return m.Send(ctx, up.ChatID, "Please enter a valid positive amount of SOL.")
	case errors.Is(err, conversation.ErrExpired):
		if r.metrics != nil {
			r.metrics.PromptsExpired.Inc()
		}
		return m.Send(ctx, up.ChatID, "That prompt expired. Send /buy to start over.")
	}

	if mint := r.scraper.Scan(text); mint != "" {
		r.book.Observe(up.ChatID, mint)
		if r.metrics != nil {
			r.metrics.MintsDiscovered.Inc()
		}
		r.logger.Info("mint address observed",
			zap.Int64("chat_id", up.ChatID), zap.String("mint", mint))
		return m.Send(ctx, up.ChatID, fmt.Sprintf("Mint address found: %s\nSend /buy to swap into it.", mint))
	}
	return nil
}

func (r *Router) executeSwap(ctx context.Context, m Messenger, up Update, p conversation.Pending, amountSOL float64) error {
	if err := m.Send(ctx, up.ChatID, fmt.Sprintf("Got it! You are buying %g SOL. Now I will check your wallet balance...", amountSOL)); err != nil {
		return err
	}

	req := domain.SwapRequest{
		UserID:         up.UserID,
		InputMint:      domain.SOLMint,
		OutputMint:     p.Mint,
		AmountLamports: uint64(amountSOL * domain.LamportsPerSOL),
		SlippageBps:    DefaultSlippageBps,
		PriorityFee:    DefaultPriorityFee,
	}

	outcome := r.executor.Execute(ctx, req)
	return m.Send(ctx, up.ChatID, r.outcomeReply(outcome))
}

func (r *Router) outcomeReply(out domain.SwapOutcome) string {
	if out.Status == domain.SwapSubmitted {
		reply := fmt.Sprintf("Swap successful! Transaction signature: %s", out.Signature)
		if !out.Usage.TrialCompleted {
			reply += fmt.Sprintf("\nTrial swaps remaining: %d", out.Usage.TrialRemaining())
		}
		return reply
	}

	var insufficient *engine.InsufficientFundsError
	if errors.As(out.Err, &insufficient) {
		return "Insufficient SOL balance. Please top up your wallet."
	}
	if out.Reason != "" {
		return "Swap not completed: " + out.Reason
	}
	return "Swap not completed. Please try again later."
}

func (r *Router) count(kind string) {
	if r.metrics != nil {
		r.metrics.UpdatesReceived.WithLabelValues(kind).Inc()
	}
}
