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

var (
	ErrInvalidRating  = errors.New("rating must be an integer between 1 and 10")
	ErrTitleNotFound  = errors.New("title not found")
	ErrRatingNotFound = errors.New("rating not found")
	ErrMissingUser    = errors.New("user id is required")
	// ErrAggregateStale means the rating was saved but the title's mean and
	// count could not be refreshed. The next successful submission repairs it.
	ErrAggregateStale = errors.New("rating saved but title aggregate is stale")
)

// RatingResult is the outcome of a saved rating. Warning is non-nil (and
// wraps ErrAggregateStale) when the aggregate refresh failed.
type RatingResult struct {
	Rating  models.UserRating
	Average float64
	Count   int
	Warning error
}

type RatingService interface {
	SubmitRating(ctx context.Context, userID, titleID string, score int) (*RatingResult, error)
	RecomputeAggregate(ctx context.Context, titleID string) (float64, int, error)
	GetUserRating(ctx context.Context, userID, titleID string) (*models.UserRating, error)
	ListUserRatings(ctx context.Context, userID string) ([]models.UserRating, error)
}

type ratingService struct {
	gw     gateway.Gateway
	logger *slog.Logger
}

func NewRatingService(gw gateway.Gateway, logger *slog.Logger) RatingService {
	if logger == nil {
		logger = slog.Default()
	}
	return &ratingService{gw: gw, logger: logger}
}

// SubmitRating saves the user's score for a title, then recomputes the
// title's mean and count from every stored rating.
func (s *ratingService) SubmitRating(ctx context.Context, userID, titleID string, score int) (*RatingResult, error) {
	if userID == "" {
		return nil, ErrMissingUser
	}
	if score < models.MinRating || score > models.MaxRating {
		return nil, ErrInvalidRating
	}

	title, err := s.gw.GetOne(ctx, models.TableTitles, gateway.Filter{"id": titleID})
	if err != nil {
		metrics.RatingSubmissions.WithLabelValues("failed").Inc()
		return nil, fmt.Errorf("look up title: %w", err)
	}
	if title == nil {
		return nil, ErrTitleNotFound
	}

	rating := models.UserRating{UserID: userID, TitleID: titleID, Rating: score}
	stored, err := s.gw.Upsert(ctx, models.TableRatings, rating.ToRow(), models.RatingConflictKey)
	if err != nil {
		metrics.RatingSubmissions.WithLabelValues("failed").Inc()
		return nil, fmt.Errorf("save rating: %w", err)
	}

	result := &RatingResult{Rating: models.RatingFromRow(stored)}
	avg, count, err := s.RecomputeAggregate(ctx, titleID)
	if err != nil {
		result.Warning = fmt.Errorf("%w: %v", ErrAggregateStale, err)
		metrics.RatingSubmissions.WithLabelValues("stale_aggregate").Inc()
		s.logger.Warn("rating_aggregate_stale", "title_id", titleID, "user_id", userID, "error", err)
		return result, nil
	}

	result.Average = avg
	result.Count = count
	metrics.RatingSubmissions.WithLabelValues("saved").Inc()
	s.logger.Info("rating_saved", "title_id", titleID, "user_id", userID, "average", avg, "count", count)
	return result, nil
}

// RecomputeAggregate rescans all ratings of a title and writes the mean and
// count back onto it. A full scan tolerates duplicated or reordered writes.
func (s *ratingService) RecomputeAggregate(ctx context.Context, titleID string) (float64, int, error) {
	rows, err := s.gw.List(ctx, models.TableRatings, gateway.Filter{"title_id": titleID}, gateway.ListOptions{})
	if err != nil {
		return 0, 0, fmt.Errorf("list ratings: %w", err)
	}
	avg, count := models.AggregateRatings(rows)

	n, err := s.gw.Update(ctx, models.TableTitles, gateway.Filter{"id": titleID}, gateway.Row{
		"rating_average": avg,
		"rating_count":   count,
	})
	if err != nil {
		return 0, 0, fmt.Errorf("update title aggregate: %w", err)
	}
	if n == 0 {
		return 0, 0, fmt.Errorf("update title aggregate: %w", gateway.ErrNotFound)
	}
	return avg, count, nil
}

func (s *ratingService) GetUserRating(ctx context.Context, userID, titleID string) (*models.UserRating, error) {
	row, err := s.gw.GetOne(ctx, models.TableRatings, gateway.Filter{"user_id": userID, "title_id": titleID})
	if err != nil {
		return nil, fmt.Errorf("get rating: %w", err)
	}
	if row == nil {
		return nil, ErrRatingNotFound
	}
	r := models.RatingFromRow(row)
	return &r, nil
}

// ListUserRatings returns the user's ratings, most recent first.
func (s *ratingService) ListUserRatings(ctx context.Context, userID string) ([]models.UserRating, error) {
	if userID == "" {
		return nil, ErrMissingUser
	}
	rows, err := s.gw.List(ctx, models.TableRatings, gateway.Filter{"user_id": userID}, gateway.ListOptions{
		OrderBy: []gateway.Order{{Column: "created_at", Desc: true}},
	})
	if err != nil {
		return nil, fmt.Errorf("list ratings: %w", err)
	}
	out := make([]models.UserRating, 0, len(rows))
	for _, row := range rows {
		out = append(out, models.RatingFromRow(row))
	}
	return out, nil
}
