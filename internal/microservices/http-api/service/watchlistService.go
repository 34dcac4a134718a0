package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"cinehub/internal/gateway"
	"cinehub/internal/metrics"
	"cinehub/internal/models"
)

// AddOutcome distinguishes a fresh add from an existing entry. Neither is
// an error.
type AddOutcome string

const (
	AddedToWatchlist   AddOutcome = "added_to_watchlist"
	AlreadyInWatchlist AddOutcome = "already_in_watchlist"
	AddedToList        AddOutcome = "added_to_list"
	AlreadyInList      AddOutcome = "already_in_list"
)

type WatchlistService interface {
	Add(ctx context.Context, userID, titleID string) (AddOutcome, error)
	Remove(ctx context.Context, userID, titleID string) error
	List(ctx context.Context, userID string) ([]models.WatchlistEntry, error)
}

type watchlistService struct {
	gw     gateway.Gateway
	logger *slog.Logger
}

func NewWatchlistService(gw gateway.Gateway, logger *slog.Logger) WatchlistService {
	if logger == nil {
		logger = slog.Default()
	}
	return &watchlistService{gw: gw, logger: logger}
}

// Add relies on the (user_id, title_id) unique key instead of a read before
// the write, so concurrent adds cannot create duplicates.
func (s *watchlistService) Add(ctx context.Context, userID, titleID string) (AddOutcome, error) {
	if userID == "" {
		return "", ErrMissingUser
	}
	_, err := s.gw.Insert(ctx, models.TableWatchlist, gateway.Row{"user_id": userID, "title_id": titleID})
	switch {
	case errors.Is(err, gateway.ErrConflict):
		metrics.CollectionMutations.WithLabelValues("watchlist_add", "already_present").Inc()
		return AlreadyInWatchlist, nil
	case err != nil:
		metrics.CollectionMutations.WithLabelValues("watchlist_add", "failed").Inc()
		return "", fmt.Errorf("add to watchlist: %w", err)
	}
	metrics.CollectionMutations.WithLabelValues("watchlist_add", "added").Inc()
	s.logger.Info("watchlist_added", "user_id", userID, "title_id", titleID)
	return AddedToWatchlist, nil
}

// Remove deletes the entry; removing an absent entry succeeds.
func (s *watchlistService) Remove(ctx context.Context, userID, titleID string) error {
	if userID == "" {
		return ErrMissingUser
	}
	n, err := s.gw.Delete(ctx, models.TableWatchlist, gateway.Filter{"user_id": userID, "title_id": titleID})
	if err != nil {
		metrics.CollectionMutations.WithLabelValues("watchlist_remove", "failed").Inc()
		return fmt.Errorf("remove from watchlist: %w", err)
	}
	metrics.CollectionMutations.WithLabelValues("watchlist_remove", "removed").Inc()
	s.logger.Debug("watchlist_removed", "user_id", userID, "title_id", titleID, "rows", n)
	return nil
}

func (s *watchlistService) List(ctx context.Context, userID string) ([]models.WatchlistEntry, error) {
	if userID == "" {
		return nil, ErrMissingUser
	}
	rows, err := s.gw.List(ctx, models.TableWatchlist, gateway.Filter{"user_id": userID}, gateway.ListOptions{
		OrderBy: []gateway.Order{{Column: "created_at", Desc: true}},
	})
	if err != nil {
		return nil, fmt.Errorf("list watchlist: %w", err)
	}
	out := make([]models.WatchlistEntry, 0, len(rows))
	for _, row := range rows {
		out = append(out, models.WatchlistEntryFromRow(row))
	}
	return out, nil
}
