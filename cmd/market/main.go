// Package main provides a one-shot CLI for the marketplace client:
//
//	market browse                          show all tokens for sale
//	market owned                           show tokens owned by the account
//	market mint --cid <cid>                mint a token
//	market list --token <id> --price <eth> list a token for sale
//	market delist --token <id>             delist a token
//	market buy --token <id> --price <eth>  buy a listed token
//	market history --account <addr>        show submitted activity
//
// Every mutation runs to a terminal state: submitted, confirmed or
// failed. A failed transaction is reported, never retried.
package main

import (
	"context"
	"flag"
	"fmt"
	"io"
	"log"
	"os"
	"time"

	"nft-market-client/internal/domain"
	"nft-market-client/internal/ethrpc"
	"nft-market-client/internal/gateway"
	"nft-market-client/internal/lifecycle"
	"nft-market-client/internal/metadata"
	"nft-market-client/internal/reconcile"
	"nft-market-client/internal/session"
	"nft-market-client/internal/storage"
	"nft-market-client/internal/storage/memory"
	pgstore "nft-market-client/internal/storage/postgres"
	"nft-market-client/internal/wei"
)

func main() {
	if len(os.Args) < 2 {
		usage()
		os.Exit(1)
	}
	command := os.Args[1]

	fs := flag.NewFlagSet(command, flag.ExitOnError)
	rpcEndpoint := fs.String("rpc-endpoint", envOr("ETH_RPC_ENDPOINT", "http://localhost:8545"), "Ethereum JSON-RPC HTTP endpoint")
	nftContract := fs.String("nft-contract", os.Getenv("NFT_CONTRACT"), "Ownership ledger contract address")
	marketContract := fs.String("market-contract", os.Getenv("MARKET_CONTRACT"), "Marketplace contract address")
	account := fs.String("account", os.Getenv("ETH_ACCOUNT"), "Account address (defaults to the node's first unlocked account)")
	postgresDSN := fs.String("postgres-dsn", os.Getenv("POSTGRES_DSN"), "PostgreSQL connection string for the activity log (optional)")
	ipfsGateway := fs.String("ipfs-gateway", metadata.DefaultGateway, "IPFS HTTP gateway base URL")
	confirmTimeout := fs.Duration("confirm-timeout", lifecycle.DefaultConfirmTimeout, "Transaction confirmation timeout")
	tokenID := fs.Uint64("token", 0, "Token ID")
	price := fs.String("price", "", "Price in ether, decimal")
	cid := fs.String("cid", "", "Metadata CID")
	fs.Parse(os.Args[2:])

	if command == "help" || command == "-h" || command == "--help" {
		usage()
		return
	}

	if *nftContract == "" || *marketContract == "" {
		fatal("--nft-contract and --market-contract are required")
	}

	ctx, cancel := context.WithTimeout(context.Background(), *confirmTimeout+30*time.Second)
	defer cancel()

	client := ethrpc.NewHTTPClient(*rpcEndpoint)

	sess := session.New(
		&nodeWallet{client: client, account: domain.Account(*account)},
		func(acct domain.Account) (session.Handles, error) {
			return session.Handles{
				NFT:    gateway.NewBoundNFTLedger(client, *nftContract, acct),
				Market: gateway.NewBoundMarketLedger(client, *marketContract, acct),
				Waiter: gateway.NewReceiptWaiter(client, 0),
			}, nil
		},
	)

	if err := sess.Connect(ctx); err != nil {
		fatal("connect: %v", err)
	}
	defer sess.Disconnect()
	fmt.Printf("Connected as %s\n", sess.Account().Checksummed())

	activity, cleanup, err := createActivityStore(ctx, *postgresDSN)
	if err != nil {
		fatal("activity store: %v", err)
	}
	defer cleanup()

	reconciler := reconcile.New(reconcile.Options{
		Session: sess,
		Fetcher: metadata.NewHTTPFetcher(metadata.WithGateway(*ipfsGateway)),
		Logger:  log.New(io.Discard, "", 0),
	})

	manager := lifecycle.New(lifecycle.Options{
		Session:        sess,
		Refresher:      reconciler,
		Activity:       activity,
		Logger:         log.New(os.Stderr, "[market] ", log.LstdFlags),
		ConfirmTimeout: *confirmTimeout,
	})

	switch command {
	case "browse":
		err = runBrowse(ctx, reconciler)
	case "owned":
		err = runOwned(ctx, reconciler)
	case "mint":
		err = runAction(manager.Mint(ctx, *cid))
	case "list":
		requirePrice(*price)
		err = runAction(manager.List(ctx, *tokenID, *price))
	case "delist":
		err = runAction(manager.Delist(ctx, *tokenID))
	case "buy":
		requirePrice(*price)
		err = runAction(manager.Buy(ctx, *tokenID, *price))
	case "history":
		err = runHistory(ctx, activity, sess.Account())
	default:
		usage()
		os.Exit(1)
	}

	if err != nil {
		fatal("%v", err)
	}
}

// nodeWallet authorizes against the node's unlocked accounts.
type nodeWallet struct {
	client  ethrpc.Client
	account domain.Account
}

func (w *nodeWallet) RequestAccount(ctx context.Context) (domain.Account, error) {
	if !w.account.IsZero() {
		return w.account, nil
	}

	accounts, err := w.client.Accounts(ctx)
	if err != nil {
		return domain.NoAccount, fmt.Errorf("list node accounts: %w", err)
	}
	if len(accounts) == 0 {
		return domain.NoAccount, fmt.Errorf("node has no unlocked accounts")
	}
	return domain.Account(accounts[0]), nil
}

// createActivityStore connects the activity log, or falls back to an
// in-memory store so one-shot runs work without a database.
func createActivityStore(ctx context.Context, postgresDSN string) (storage.ActivityLogStore, func(), error) {
	if postgresDSN == "" {
		return memory.NewActivityLogStore(), func() {}, nil
	}

	pool, err := pgstore.NewPool(ctx, postgresDSN)
	if err != nil {
		return nil, nil, fmt.Errorf("connect to postgres: %w", err)
	}
	return pgstore.NewActivityLogStore(pool), pool.Close, nil
}

// runBrowse rebuilds and prints the sale view.
func runBrowse(ctx context.Context, r *reconcile.Reconciler) error {
	if err := r.RebuildSale(ctx); err != nil {
		return fmt.Errorf("rebuild sale view: %w", err)
	}

	sale := r.Sale()
	if len(sale) == 0 {
		fmt.Println("No tokens for sale")
		return nil
	}

	fmt.Printf("%-10s %s\n", "TOKEN", "PRICE (ETH)")
	for _, e := range sale {
		fmt.Printf("%-10d %s\n", e.TokenID, wei.FormatEther(e.PriceWei))
	}
	return nil
}

// runOwned rebuilds and prints the owned view.
func runOwned(ctx context.Context, r *reconcile.Reconciler) error {
	if err := r.RebuildOwned(ctx); err != nil {
		return fmt.Errorf("rebuild owned view: %w", err)
	}

	owned := r.Owned()
	if len(owned) == 0 {
		fmt.Println("No owned tokens")
		return nil
	}

	fmt.Printf("%-10s %-30s %s\n", "TOKEN", "NAME", "URI")
	for _, t := range owned {
		name := "(metadata unavailable)"
		if t.Metadata != nil {
			name = t.Metadata.Name
		}
		fmt.Printf("%-10d %-30s %s\n", t.Token.TokenID, name, t.Token.MetadataURI)
	}
	return nil
}

// runAction reports the terminal state of one driven mutation.
func runAction(tx *domain.PendingTransaction, err error) error {
	if tx != nil && tx.TxHash != "" {
		fmt.Printf("Transaction %s: %s\n", tx.TxHash, tx.Status)
	}
	if err != nil {
		return err
	}
	return nil
}

// runHistory prints the activity log for the connected account.
func runHistory(ctx context.Context, store storage.ActivityLogStore, account domain.Account) error {
	records, err := store.GetByAccount(ctx, account)
	if err != nil {
		return fmt.Errorf("load activity: %w", err)
	}
	if len(records) == 0 {
		fmt.Println("No recorded activity")
		return nil
	}

	fmt.Printf("%-24s %-8s %-10s %-12s %s\n", "SUBMITTED", "KIND", "STATUS", "TOKEN", "TX")
	for _, rec := range records {
		token := "-"
		if rec.TokenID != nil {
			token = fmt.Sprintf("%d", *rec.TokenID)
		}
		submitted := time.UnixMilli(rec.SubmittedAt).UTC().Format(time.RFC3339)
		fmt.Printf("%-24s %-8s %-10s %-12s %s\n", submitted, rec.Kind, rec.Status, token, rec.TxHash)
	}
	return nil
}

func requirePrice(price string) {
	if price == "" {
		fatal("--price is required")
	}
}

func envOr(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func fatal(format string, args ...interface{}) {
	fmt.Fprintf(os.Stderr, "Error: "+format+"\n", args...)
	os.Exit(1)
}

func usage() {
	fmt.Fprintln(os.Stderr, `Usage: market <command> [flags]

Commands:
  browse     show all tokens currently for sale
  owned      show tokens owned by the account
  mint       mint a token (--cid)
  list       list a token for sale (--token, --price)
  delist     delist a token (--token)
  buy        buy a listed token (--token, --price)
  history    show submitted activity for the account

Common flags:
  --rpc-endpoint     Ethereum JSON-RPC HTTP endpoint (ETH_RPC_ENDPOINT)
  --nft-contract     ownership ledger contract address (NFT_CONTRACT)
  --market-contract  marketplace contract address (MARKET_CONTRACT)
  --account          account address (ETH_ACCOUNT, default: first node account)
  --postgres-dsn     activity log database (POSTGRES_DSN, optional)`)
}
