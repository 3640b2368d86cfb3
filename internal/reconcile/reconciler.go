// Package reconcile rebuilds the derived views from current ledger
// state. Views are pull-based: nothing is patched incrementally, every
// pass re-enumerates the full token set and replaces the previous
// snapshot wholesale.
package reconcile

import (
	"context"
	"fmt"
	"log"
	"math/big"
	"os"
	"sync"
	"time"

	"github.com/google/uuid"

	"nft-market-client/internal/domain"
	"nft-market-client/internal/gateway"
	"nft-market-client/internal/metadata"
	"nft-market-client/internal/observability"
	"nft-market-client/internal/session"
	"nft-market-client/internal/storage"
)

// Reconciler derives the owned view and the sale view from the
// ledgers bound to a session. A pass that fails to enumerate leaves
// the previous snapshot intact; per-token failures degrade only that
// token's entry.
type Reconciler struct {
	session      *session.Session
	fetcher      metadata.Fetcher
	observations storage.ListingObservationStore
	logger       *log.Logger

	mu    sync.RWMutex
	owned domain.OwnedView
	sale  domain.SaleView
}

// Options holds configuration for creating a Reconciler.
type Options struct {
	Session *session.Session
	Fetcher metadata.Fetcher

	// Observations, when set, receives one batch of listing
	// observations per successful sale pass.
	Observations storage.ListingObservationStore

	Logger *log.Logger
}

// New creates a Reconciler and registers it on the session: a
// disconnect clears both views immediately.
func New(opts Options) *Reconciler {
	logger := opts.Logger
	if logger == nil {
		logger = log.New(os.Stdout, "[reconcile] ", log.LstdFlags)
	}
	fetcher := opts.Fetcher
	if fetcher == nil {
		fetcher = metadata.NewHTTPFetcher()
	}

	r := &Reconciler{
		session:      opts.Session,
		fetcher:      fetcher,
		observations: opts.Observations,
		logger:       logger,
	}

	if r.session != nil {
		r.session.OnChange(func() {
			if r.session.State() != session.StateConnected {
				r.Clear()
			}
		})
	}
	return r
}

// Owned returns a snapshot of the current owned view.
func (r *Reconciler) Owned() domain.OwnedView {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.owned.Clone()
}

// Sale returns a snapshot of the current sale view.
func (r *Reconciler) Sale() domain.SaleView {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.sale.Clone()
}

// Clear drops both views. Called on disconnect so no stale per-account
// data survives into the next session.
func (r *Reconciler) Clear() {
	r.mu.Lock()
	r.owned = nil
	r.sale = nil
	r.mu.Unlock()
	observability.UpdateViewSizes(0, 0)
}

// RebuildAll runs both passes. The owned failure does not prevent the
// sale pass from running; the first error is returned.
func (r *Reconciler) RebuildAll(ctx context.Context) error {
	ownedErr := r.RebuildOwned(ctx)
	saleErr := r.RebuildSale(ctx)
	if ownedErr != nil {
		return ownedErr
	}
	return saleErr
}

// RebuildOwned re-derives the owned view: every minted token whose
// current owner matches the connected account, joined with its
// metadata document. A metadata fetch failure keeps the token in the
// view with nil metadata; an ownership read failure drops only that
// token from this pass.
func (r *Reconciler) RebuildOwned(ctx context.Context) error {
	start := time.Now()

	handles, err := r.session.Handles()
	if err != nil {
		return err
	}
	account := r.session.Account()

	total, err := handles.NFT.TotalSupply(ctx)
	if err != nil {
		observability.RecordReconcilePass("owned", "error", time.Since(start).Seconds())
		return fmt.Errorf("enumerate supply: %w", err)
	}

	next := make(domain.OwnedView, 0)
	for i := uint64(0); i < total; i++ {
		tokenID, err := handles.NFT.TokenByIndex(ctx, i)
		if err != nil {
			r.logger.Printf("owned pass: token index %d unreadable: %v", i, err)
			observability.RecordTokenSkipped()
			continue
		}
		owner, err := handles.NFT.OwnerOf(ctx, tokenID)
		if err != nil {
			r.logger.Printf("owned pass: owner of token %d unreadable: %v", tokenID, err)
			observability.RecordTokenSkipped()
			continue
		}
		if !owner.Equal(account) {
			continue
		}

		uri, err := handles.NFT.TokenURI(ctx, tokenID)
		if err != nil {
			r.logger.Printf("owned pass: uri of token %d unreadable: %v", tokenID, err)
			observability.RecordTokenSkipped()
			continue
		}

		var meta *domain.Metadata
		meta, err = r.fetcher.Fetch(ctx, uri)
		if err != nil {
			r.logger.Printf("owned pass: metadata for token %d failed: %v", tokenID, err)
			observability.RecordMetadataFetchError()
			meta = nil
		}

		next = append(next, domain.OwnedToken{
			Token: domain.TokenRecord{
				TokenID:     tokenID,
				Owner:       owner,
				MetadataURI: uri,
			},
			Metadata: meta,
		})
	}

	r.mu.Lock()
	r.owned = next
	saleLen := len(r.sale)
	r.mu.Unlock()

	observability.RecordReconcilePass("owned", "ok", time.Since(start).Seconds())
	observability.UpdateViewSizes(len(next), saleLen)
	return nil
}

// RebuildSale re-derives the sale view: every minted token the
// marketplace currently reports as for sale with a positive price,
// regardless of owner. On success the observations for this pass are
// appended to the observation store, when one is configured.
func (r *Reconciler) RebuildSale(ctx context.Context) error {
	start := time.Now()

	handles, err := r.session.Handles()
	if err != nil {
		return err
	}

	total, err := handles.NFT.TotalSupply(ctx)
	if err != nil {
		observability.RecordReconcilePass("sale", "error", time.Since(start).Seconds())
		return fmt.Errorf("enumerate supply: %w", err)
	}

	next := make(domain.SaleView, 0)
	for i := uint64(0); i < total; i++ {
		tokenID, err := handles.NFT.TokenByIndex(ctx, i)
		if err != nil {
			r.logger.Printf("sale pass: token index %d unreadable: %v", i, err)
			observability.RecordTokenSkipped()
			continue
		}
		listing, err := gateway.ReadListing(ctx, handles.Market, tokenID)
		if err != nil {
			r.logger.Printf("sale pass: listing of token %d unreadable: %v", tokenID, err)
			observability.RecordTokenSkipped()
			continue
		}
		if !listing.ForSale || listing.PriceWei == nil || listing.PriceWei.Sign() <= 0 {
			continue
		}

		next = append(next, domain.SaleEntry{
			TokenID:  tokenID,
			PriceWei: new(big.Int).Set(listing.PriceWei),
		})
	}

	r.mu.Lock()
	r.sale = next
	ownedLen := len(r.owned)
	r.mu.Unlock()

	observability.RecordReconcilePass("sale", "ok", time.Since(start).Seconds())
	observability.UpdateViewSizes(ownedLen, len(next))

	r.recordObservations(ctx, next)
	return nil
}

// recordObservations appends one pass's sale snapshot to the
// observation history. Storage failures are logged, never surfaced:
// history is a side channel, the view itself already swapped.
func (r *Reconciler) recordObservations(ctx context.Context, view domain.SaleView) {
	if r.observations == nil || len(view) == 0 {
		return
	}

	passID := uuid.New().String()
	now := time.Now().UnixMilli()
	obs := make([]*domain.ListingObservation, 0, len(view))
	for _, entry := range view {
		obs = append(obs, &domain.ListingObservation{
			PassID:     passID,
			TokenID:    entry.TokenID,
			PriceWei:   entry.PriceWei.String(),
			ObservedAt: now,
		})
	}

	if err := r.observations.InsertBulk(ctx, obs); err != nil {
		r.logger.Printf("sale pass: recording %d observations failed: %v", len(obs), err)
	}
}
