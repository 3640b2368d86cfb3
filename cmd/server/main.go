// Package main provides the long-running market watcher:
// - Reconciliation: rebuild owned/sale views on new chain heads
// - History: record sale-view observations and submitted activity
// - HTTP: health, Prometheus metrics, status, current views
package main

import (
	"context"
	"encoding/json"
	"errors"
	"flag"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"sync"
	"syscall"
	"time"

	"nft-market-client/internal/domain"
	"nft-market-client/internal/ethrpc"
	"nft-market-client/internal/gateway"
	"nft-market-client/internal/lifecycle"
	"nft-market-client/internal/metadata"
	"nft-market-client/internal/observability"
	"nft-market-client/internal/reconcile"
	"nft-market-client/internal/session"
	"nft-market-client/internal/storage"
	chstore "nft-market-client/internal/storage/clickhouse"
	"nft-market-client/internal/storage/memory"
	pgstore "nft-market-client/internal/storage/postgres"
	"nft-market-client/internal/wei"
)

// debounceWindow coalesces bursts of newHeads events into one
// reconciliation pass.
const debounceWindow = 500 * time.Millisecond

// Server holds all components of the watcher service.
type Server struct {
	rpcEndpoint       string
	wsEndpoint        string
	reconcileInterval time.Duration
	reconciler        *reconcile.Reconciler
	manager           *lifecycle.Manager
	session           *session.Session
	logger            *log.Logger

	mu           sync.Mutex
	started      time.Time
	lastPass     time.Time
	passesByHead int
	passesByTick int
}

// stores holds the storage implementations.
type stores struct {
	activity     storage.ActivityLogStore
	observations storage.ListingObservationStore
}

func main() {
	// Load .env file if exists
	loadEnvFile()

	// Parse flags (env vars as defaults)
	rpcEndpoint := flag.String("rpc-endpoint", os.Getenv("ETH_RPC_ENDPOINT"), "Ethereum JSON-RPC HTTP endpoint")
	wsEndpoint := flag.String("ws-endpoint", os.Getenv("ETH_WS_ENDPOINT"), "Ethereum WebSocket endpoint for newHeads (optional)")
	nftContract := flag.String("nft-contract", os.Getenv("NFT_CONTRACT"), "Ownership ledger contract address")
	marketContract := flag.String("market-contract", os.Getenv("MARKET_CONTRACT"), "Marketplace contract address")
	account := flag.String("account", os.Getenv("ETH_ACCOUNT"), "Account address (defaults to the node's first unlocked account)")
	postgresDSN := flag.String("postgres-dsn", os.Getenv("POSTGRES_DSN"), "PostgreSQL connection string for the activity log")
	clickhouseDSN := flag.String("clickhouse-dsn", os.Getenv("CLICKHOUSE_DSN"), "ClickHouse connection string for observation history")
	useMemory := flag.Bool("use-memory", false, "Use in-memory storage instead of PostgreSQL/ClickHouse")
	ipfsGateway := flag.String("ipfs-gateway", metadata.DefaultGateway, "IPFS HTTP gateway base URL")
	reconcileInterval := flag.Duration("reconcile-interval", 30*time.Second, "Periodic reconciliation fallback interval")
	confirmTimeout := flag.Duration("confirm-timeout", lifecycle.DefaultConfirmTimeout, "Transaction confirmation timeout")
	httpAddr := flag.String("http-addr", ":8080", "HTTP address for health/metrics/status/views")

	flag.Parse()

	logger := log.New(os.Stdout, "[server] ", log.LstdFlags|log.Lshortfile)

	if *rpcEndpoint == "" {
		logger.Fatal("--rpc-endpoint is required")
	}
	if *nftContract == "" || *marketContract == "" {
		logger.Fatal("--nft-contract and --market-contract are required")
	}
	if !*useMemory && (*postgresDSN == "" || *clickhouseDSN == "") {
		logger.Fatal("--postgres-dsn and --clickhouse-dsn are required (use --use-memory for in-memory storage)")
	}

	ctx, cancel := context.WithCancel(context.Background())

	st, cleanup, err := createStores(ctx, *postgresDSN, *clickhouseDSN, *useMemory)
	if err != nil {
		logger.Fatalf("Failed to create stores: %v", err)
	}
	defer cleanup()

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

	reconciler := reconcile.New(reconcile.Options{
		Session:      sess,
		Fetcher:      metadata.NewHTTPFetcher(metadata.WithGateway(*ipfsGateway)),
		Observations: st.observations,
		Logger:       log.New(os.Stdout, "[reconcile] ", log.LstdFlags),
	})

	manager := lifecycle.New(lifecycle.Options{
		Session:        sess,
		Refresher:      reconciler,
		Activity:       st.activity,
		Logger:         log.New(os.Stdout, "[lifecycle] ", log.LstdFlags),
		ConfirmTimeout: *confirmTimeout,
	})

	if err := sess.Connect(ctx); err != nil {
		logger.Fatalf("Failed to connect: %v", err)
	}
	logger.Printf("Connected as %s", sess.Account().Checksummed())

	server := &Server{
		rpcEndpoint:       *rpcEndpoint,
		wsEndpoint:        *wsEndpoint,
		reconcileInterval: *reconcileInterval,
		reconciler:        reconciler,
		manager:           manager,
		session:           sess,
		logger:            logger,
		started:           time.Now(),
	}

	done := make(chan error, 1)

	// Handle shutdown signals
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)

	go func() {
		sig := <-sigCh
		logger.Printf("Received signal %v, initiating graceful shutdown...", sig)
		cancel()

		select {
		case sig := <-sigCh:
			logger.Printf("Received second signal %v, forcing immediate shutdown", sig)
			os.Exit(1)
		case <-time.After(30 * time.Second):
			logger.Println("Graceful shutdown timed out after 30s, forcing exit")
			os.Exit(1)
		case <-done:
		}
	}()

	go server.startHTTPServer(*httpAddr)

	err = server.Run(ctx)
	done <- err
	cancel()

	if err != nil && err != context.Canceled {
		logger.Fatalf("Server error: %v", err)
	}

	sess.Disconnect()
	logger.Println("Shutdown complete")
}

// nodeWallet authorizes against the node's unlocked accounts instead
// of an interactive wallet. With --account set, that address is used
// directly.
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

// createStores creates the activity log and observation history stores.
func createStores(ctx context.Context, postgresDSN, clickhouseDSN string, useMemory bool) (*stores, func(), error) {
	if useMemory {
		return &stores{
			activity:     memory.NewActivityLogStore(),
			observations: memory.NewListingObservationStore(),
		}, func() {}, nil
	}

	pool, err := pgstore.NewPool(ctx, postgresDSN)
	if err != nil {
		return nil, nil, fmt.Errorf("connect to postgres: %w", err)
	}

	chConn, err := chstore.NewConn(ctx, clickhouseDSN)
	if err != nil {
		pool.Close()
		return nil, nil, fmt.Errorf("connect to clickhouse: %w", err)
	}

	st := &stores{
		activity:     pgstore.NewActivityLogStore(pool),
		observations: chstore.NewListingObservationStore(chConn),
	}

	cleanup := func() {
		chConn.Close()
		pool.Close()
	}

	return st, cleanup, nil
}

// Run starts the reconciliation loops.
func (s *Server) Run(ctx context.Context) error {
	s.logger.Println("Starting watcher...")

	// First pass on startup.
	if err := s.reconciler.RebuildAll(ctx); err != nil {
		s.logger.Printf("Initial reconciliation failed: %v", err)
	} else {
		s.markPass(false)
	}

	errCh := make(chan error, 2)

	if s.wsEndpoint != "" {
		go func() {
			err := s.runHeadListener(ctx)
			if err != nil && err != context.Canceled {
				errCh <- fmt.Errorf("head listener: %w", err)
			}
		}()
	} else {
		s.logger.Println("No WebSocket endpoint configured, relying on periodic reconciliation only")
	}

	go func() {
		err := s.runTicker(ctx)
		if err != nil && err != context.Canceled {
			errCh <- fmt.Errorf("ticker: %w", err)
		}
	}()

	select {
	case <-ctx.Done():
		return ctx.Err()
	case err := <-errCh:
		return err
	}
}

// runHeadListener subscribes to newHeads and triggers a pass per block,
// coalescing bursts through a short debounce window.
func (s *Server) runHeadListener(ctx context.Context) error {
	ws, err := ethrpc.NewWSClient(ctx, s.wsEndpoint, nil)
	if err != nil {
		return fmt.Errorf("create websocket client: %w", err)
	}
	defer ws.Close()

	heads, err := ws.SubscribeNewHeads(ctx)
	if err != nil {
		return fmt.Errorf("subscribe to newHeads: %w", err)
	}
	s.logger.Println("Subscribed to newHeads")

	var timer *time.Timer
	var timerC <-chan time.Time

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()

		case head, ok := <-heads:
			if !ok {
				return fmt.Errorf("newHeads channel closed")
			}
			s.logger.Printf("New head %d", head.Number)
			if timer == nil {
				timer = time.NewTimer(debounceWindow)
				timerC = timer.C
			} else {
				if !timer.Stop() {
					<-timerC
				}
				timer.Reset(debounceWindow)
			}

		case <-timerC:
			timer = nil
			timerC = nil
			if err := s.reconciler.RebuildAll(ctx); err != nil {
				s.logger.Printf("Head-triggered reconciliation failed: %v", err)
				continue
			}
			s.markPass(true)
		}
	}
}

// runTicker runs the periodic reconciliation fallback. It covers
// missed heads during WebSocket reconnects and the no-WebSocket mode.
func (s *Server) runTicker(ctx context.Context) error {
	ticker := time.NewTicker(s.reconcileInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
			if err := s.reconciler.RebuildAll(ctx); err != nil {
				s.logger.Printf("Periodic reconciliation failed: %v", err)
				continue
			}
			s.markPass(false)
		}
	}
}

// markPass records pass bookkeeping for /status.
func (s *Server) markPass(byHead bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.lastPass = time.Now()
	if byHead {
		s.passesByHead++
	} else {
		s.passesByTick++
	}
}

// startHTTPServer starts the HTTP server for health/metrics/status/views.
func (s *Server) startHTTPServer(addr string) {
	mux := http.NewServeMux()

	mux.HandleFunc("/health", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		w.Write([]byte("ok"))
	})

	mux.Handle("/metrics", observability.Handler())
	mux.HandleFunc("/status", s.handleStatus)
	mux.HandleFunc("/views", s.handleViews)
	mux.HandleFunc("/actions/mint", s.handleAction(func(ctx context.Context, req actionRequest) (*domain.PendingTransaction, error) {
		return s.manager.Mint(ctx, req.CID)
	}))
	mux.HandleFunc("/actions/list", s.handleAction(func(ctx context.Context, req actionRequest) (*domain.PendingTransaction, error) {
		return s.manager.List(ctx, req.TokenID, req.Price)
	}))
	mux.HandleFunc("/actions/delist", s.handleAction(func(ctx context.Context, req actionRequest) (*domain.PendingTransaction, error) {
		return s.manager.Delist(ctx, req.TokenID)
	}))
	mux.HandleFunc("/actions/buy", s.handleAction(func(ctx context.Context, req actionRequest) (*domain.PendingTransaction, error) {
		return s.manager.Buy(ctx, req.TokenID, req.Price)
	}))

	s.logger.Printf("Starting HTTP server on %s", addr)
	if err := http.ListenAndServe(addr, mux); err != nil && err != http.ErrServerClosed {
		s.logger.Printf("HTTP server error: %v", err)
	}
}

// StatusResponse is the JSON response for /status endpoint.
type StatusResponse struct {
	Status       string    `json:"status"`
	Account      string    `json:"account"`
	Uptime       string    `json:"uptime"`
	LastPass     time.Time `json:"last_pass,omitempty"`
	PassesByHead int       `json:"passes_by_head"`
	PassesByTick int       `json:"passes_by_tick"`
}

// handleStatus returns server status as JSON.
func (s *Server) handleStatus(w http.ResponseWriter, r *http.Request) {
	s.mu.Lock()
	resp := StatusResponse{
		Status:       "running",
		Account:      s.session.Account().Checksummed(),
		Uptime:       time.Since(s.started).String(),
		LastPass:     s.lastPass,
		PassesByHead: s.passesByHead,
		PassesByTick: s.passesByTick,
	}
	s.mu.Unlock()

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(resp)
}

// ownedEntry is the JSON shape of one owned-view entry.
type ownedEntry struct {
	TokenID  uint64           `json:"token_id"`
	Owner    string           `json:"owner"`
	URI      string           `json:"uri"`
	Metadata *domain.Metadata `json:"metadata,omitempty"`
}

// saleEntry is the JSON shape of one sale-view entry.
type saleEntry struct {
	TokenID  uint64 `json:"token_id"`
	PriceWei string `json:"price_wei"`
	PriceEth string `json:"price_eth"`
}

// ViewsResponse is the JSON response for /views endpoint.
type ViewsResponse struct {
	Owned []ownedEntry `json:"owned"`
	Sale  []saleEntry  `json:"sale"`
}

// handleViews returns the current view snapshots as JSON.
func (s *Server) handleViews(w http.ResponseWriter, r *http.Request) {
	resp := ViewsResponse{
		Owned: make([]ownedEntry, 0),
		Sale:  make([]saleEntry, 0),
	}

	for _, t := range s.reconciler.Owned() {
		resp.Owned = append(resp.Owned, ownedEntry{
			TokenID:  t.Token.TokenID,
			Owner:    t.Token.Owner.Checksummed(),
			URI:      t.Token.MetadataURI,
			Metadata: t.Metadata,
		})
	}
	for _, e := range s.reconciler.Sale() {
		resp.Sale = append(resp.Sale, saleEntry{
			TokenID:  e.TokenID,
			PriceWei: e.PriceWei.String(),
			PriceEth: wei.FormatEther(e.PriceWei),
		})
	}

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(resp)
}

// actionRequest is the JSON body for the /actions/* endpoints.
type actionRequest struct {
	TokenID uint64 `json:"token_id"`
	Price   string `json:"price"`
	CID     string `json:"cid"`
}

// actionResponse is the JSON result of one driven mutation.
type actionResponse struct {
	Kind       string `json:"kind"`
	TxHash     string `json:"tx_hash"`
	Status     string `json:"status"`
	FailReason string `json:"fail_reason,omitempty"`
	Error      string `json:"error,omitempty"`
}

// handleAction adapts one lifecycle operation to an HTTP handler. The
// request blocks until the transaction reaches a terminal state.
func (s *Server) handleAction(run func(context.Context, actionRequest) (*domain.PendingTransaction, error)) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodPost {
			http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
			return
		}

		var req actionRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			http.Error(w, "invalid request body", http.StatusBadRequest)
			return
		}

		tx, err := run(r.Context(), req)

		resp := actionResponse{}
		if tx != nil {
			resp.Kind = tx.Kind.String()
			resp.TxHash = tx.TxHash
			resp.Status = string(tx.Status)
			resp.FailReason = tx.FailReason
		}

		w.Header().Set("Content-Type", "application/json")
		switch {
		case err == nil:
			w.WriteHeader(http.StatusOK)
		case lifecycle.IsValidationError(err):
			resp.Error = err.Error()
			w.WriteHeader(http.StatusBadRequest)
		case errors.Is(err, lifecycle.ErrActionInFlight):
			resp.Error = err.Error()
			w.WriteHeader(http.StatusConflict)
		case errors.Is(err, session.ErrNotConnected):
			resp.Error = err.Error()
			w.WriteHeader(http.StatusServiceUnavailable)
		default:
			resp.Error = err.Error()
			w.WriteHeader(http.StatusBadGateway)
		}
		json.NewEncoder(w).Encode(resp)
	}
}

// loadEnvFile loads environment variables from .env file if it exists.
func loadEnvFile() {
	data, err := os.ReadFile(".env")
	if err != nil {
		return // File doesn't exist, use system env vars
	}

	for _, line := range strings.Split(string(data), "\n") {
		line = strings.TrimSpace(line)
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}

		parts := strings.SplitN(line, "=", 2)
		if len(parts) != 2 {
			continue
		}

		key := strings.TrimSpace(parts[0])
		value := strings.TrimSpace(parts[1])

		// Don't override existing env vars
		if os.Getenv(key) == "" {
			os.Setenv(key, value)
		}
	}
}
