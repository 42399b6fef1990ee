// Package main is a one-shot swap CLI: it runs a single buy through the
// same pipeline the daemon uses and prints the outcome.
package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"time"

	"github.com/joho/godotenv"
	"go.uber.org/zap"

	"solana-swapbot/internal/domain"
	"solana-swapbot/internal/engine"
	"solana-swapbot/internal/quote"
	"solana-swapbot/internal/solana"
	filestore "solana-swapbot/internal/storage/file"
	"solana-swapbot/internal/usage"
)

func main() {
	_ = godotenv.Load()

	rpcEndpoint := flag.String("rpc-endpoint", envOr("SOLANA_RPC_ENDPOINT", "https://api.mainnet-beta.solana.com"), "Solana RPC HTTP endpoint")
	quoteEndpoint := flag.String("quote-endpoint", envOr("QUOTE_ENDPOINT", "https://swap.solxtence.com"), "Swap quote provider base URL")
	walletKey := flag.String("wallet-key", os.Getenv("SOL_PRIVATE_KEY"), "Base58-encoded wallet private key")
	mint := flag.String("mint", "", "Destination token mint address")
	amount := flag.Float64("amount", 0, "Amount of SOL to swap")
	slippage := flag.Int("slip", 15, "Slippage tolerance in basis points")
	fee := flag.Float64("fee", 0.0001, "Priority fee in SOL")
	usageDir := flag.String("usage-dir", envOr("USAGE_DIR", "data"), "Directory for usage records")
	confirmTimeout := flag.Duration("confirm-timeout", solana.DefaultConfirmTimeout, "Transaction confirmation wait")

	flag.Parse()

	logger, err := zap.NewDevelopment()
	if err != nil {
		fmt.Fprintf(os.Stderr, "create logger: %v\n", err)
		os.Exit(1)
	}
	defer logger.Sync()

	if *walletKey == "" {
		logger.Fatal("--wallet-key (or SOL_PRIVATE_KEY) is required")
	}
	if *mint == "" {
		logger.Fatal("--mint is required")
	}
	if *amount <= 0 {
		logger.Fatal("--amount must be a positive SOL amount")
	}

	wallet, err := domain.NewWalletFromBase58(*walletKey)
	if err != nil {
		logger.Fatal("parse wallet key", zap.Error(err))
	}

	usageStore, err := filestore.NewUsageStore(*usageDir)
	if err != nil {
		logger.Fatal("open usage store", zap.Error(err))
	}

	rpc := solana.NewHTTPClient(*rpcEndpoint)
	submitter := solana.NewSubmitter(rpc,
		solana.WithConfirmTimeout(*confirmTimeout),
		solana.WithLogger(logger))
	quotes := quote.NewClient(*quoteEndpoint)
	meter := usage.NewMeter(usageStore, wallet.Address())

	eng := engine.New(wallet, meter, rpc, quotes, submitter, engine.WithLogger(logger))

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Minute)
	defer cancel()

	outcome := eng.Execute(ctx, domain.SwapRequest{
		UserID:         1,
		InputMint:      domain.SOLMint,
		OutputMint:     *mint,
		AmountLamports: uint64(*amount * domain.LamportsPerSOL),
		SlippageBps:    *slippage,
		PriorityFee:    *fee,
	})

	switch outcome.Status {
	case domain.SwapSubmitted:
		fmt.Printf("swap submitted: %s\n", outcome.Signature)
	default:
		fmt.Printf("swap %s: %s\n", outcome.Status, outcome.Reason)
		if outcome.Signature != "" {
			fmt.Printf("signature: %s\n", outcome.Signature)
		}
		os.Exit(1)
	}
}

func envOr(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}
