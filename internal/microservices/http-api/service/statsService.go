package service

import (
	"context"
	"fmt"

	"golang.org/x/sync/errgroup"

	"cinehub/internal/gateway"
	"cinehub/internal/models"
)

// Stats are exact row counts for the admin dashboard.
type Stats struct {
	Users   int64 `json:"users"`
	Titles  int64 `json:"titles"`
	Ratings int64 `json:"ratings"`
}

type StatsService interface {
	Stats(ctx context.Context) (*Stats, error)
}

type statsService struct {
	gw gateway.Gateway
}

func NewStatsService(gw gateway.Gateway) StatsService {
	return &statsService{gw: gw}
}

func (s *statsService) Stats(ctx context.Context) (*Stats, error) {
	var out Stats
	g, ctx := errgroup.WithContext(ctx)
	count := func(table string, target *int64) {
		g.Go(func() error {
			n, err := s.gw.Count(ctx, table, nil)
			if err != nil {
				return fmt.Errorf("count %s: %w", table, err)
			}
			*target = n
			return nil
		})
	}
	count(models.TableProfiles, &out.Users)
	count(models.TableTitles, &out.Titles)
	count(models.TableRatings, &out.Ratings)

	if err := g.Wait(); err != nil {
		return nil, err
	}
	return &out, nil
}
