package service

import (
	"context"
	"io"
	"log/slog"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/stretchr/testify/suite"

	"cinehub/internal/gateway"
	"cinehub/internal/models"
	"cinehub/internal/titlesync"
)

func quietLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

type RatingServiceSuite struct {
	suite.Suite
	ctx context.Context
	gw  *gateway.Memory
	svc RatingService
}

func (s *RatingServiceSuite) SetupTest() {
	s.ctx = context.Background()
	s.gw = gateway.NewMemory()
	s.gw.Seed(models.TableTitles, gateway.Row{"id": "t1", "title": "Dune", "status": "completed"})
	s.svc = NewRatingService(s.gw, quietLogger())
}

func (s *RatingServiceSuite) titleAggregate() (float64, int) {
	row, err := s.gw.GetOne(s.ctx, models.TableTitles, gateway.Filter{"id": "t1"})
	s.Require().NoError(err)
	t := models.FromRow(row)
	return t.Rating, t.RatingCount
}

func (s *RatingServiceSuite) submit(user string, score int) *RatingResult {
	res, err := s.svc.SubmitRating(s.ctx, user, "t1", score)
	s.Require().NoError(err)
	s.Require().NoError(res.Warning)
	return res
}

func (s *RatingServiceSuite) TestAggregateFollowsEverySubmission() {
	s.submit("u1", 6)
	s.submit("u2", 8)
	res := s.submit("u3", 10)
	s.Equal(8.0, res.Average)
	s.Equal(3, res.Count)

	res = s.submit("u4", 6)
	s.Equal(7.5, res.Average)
	s.Equal(4, res.Count)

	// re-rating replaces the user's earlier score
	res = s.submit("u1", 9)
	s.Equal(8.25, res.Average)
	s.Equal(4, res.Count)

	avg, count := s.titleAggregate()
	s.Equal(8.25, avg)
	s.Equal(4, count)

	n, _ := s.gw.Count(s.ctx, models.TableRatings, gateway.Filter{"title_id": "t1"})
	s.Equal(int64(4), n)
}

func (s *RatingServiceSuite) TestRejectsOutOfRangeScores() {
	for _, score := range []int{0, -3, 11} {
		_, err := s.svc.SubmitRating(s.ctx, "u1", "t1", score)
		s.ErrorIs(err, ErrInvalidRating)
	}
	n, _ := s.gw.Count(s.ctx, models.TableRatings, nil)
	s.Zero(n)
}

func (s *RatingServiceSuite) TestUnknownTitle() {
	_, err := s.svc.SubmitRating(s.ctx, "u1", "missing", 7)
	s.ErrorIs(err, ErrTitleNotFound)
}

func (s *RatingServiceSuite) TestMissingUser() {
	_, err := s.svc.SubmitRating(s.ctx, "", "t1", 7)
	s.ErrorIs(err, ErrMissingUser)
}

func (s *RatingServiceSuite) TestUpsertFailureSkipsRecompute() {
	s.gw.SetFailure(gateway.OpUpsert, models.TableRatings, gateway.ErrUnavailable)

	_, err := s.svc.SubmitRating(s.ctx, "u1", "t1", 7)
	s.ErrorIs(err, gateway.ErrUnavailable)

	row, _ := s.gw.GetOne(s.ctx, models.TableTitles, gateway.Filter{"id": "t1"})
	s.NotContains(row, "rating_average")
}

func (s *RatingServiceSuite) TestRecomputeFailureIsAWarning() {
	s.gw.SetFailure(gateway.OpUpdate, models.TableTitles, gateway.ErrUnavailable)

	res, err := s.svc.SubmitRating(s.ctx, "u1", "t1", 7)
	s.Require().NoError(err)
	s.ErrorIs(res.Warning, ErrAggregateStale)
	s.Equal(7, res.Rating.Rating)

	stored, err := s.svc.GetUserRating(s.ctx, "u1", "t1")
	s.Require().NoError(err)
	s.Equal(7, stored.Rating)

	// the next successful submission repairs the aggregate
	s.gw.SetFailure(gateway.OpUpdate, models.TableTitles, nil)
	res = s.submit("u2", 9)
	s.Equal(8.0, res.Average)
	s.Equal(2, res.Count)
}

func (s *RatingServiceSuite) TestListFailureIsAWarning() {
	s.gw.SetFailure(gateway.OpList, models.TableRatings, gateway.ErrUnavailable)

	res, err := s.svc.SubmitRating(s.ctx, "u1", "t1", 4)
	s.Require().NoError(err)
	s.ErrorIs(res.Warning, ErrAggregateStale)
}

func (s *RatingServiceSuite) TestUserRatings() {
	s.gw.Seed(models.TableTitles, gateway.Row{"id": "t2", "status": "completed"})
	s.submit("u1", 5)
	_, err := s.svc.SubmitRating(s.ctx, "u1", "t2", 9)
	s.Require().NoError(err)

	ratings, err := s.svc.ListUserRatings(s.ctx, "u1")
	s.Require().NoError(err)
	s.Len(ratings, 2)

	_, err = s.svc.GetUserRating(s.ctx, "u2", "t1")
	s.ErrorIs(err, ErrRatingNotFound)
}

func TestRatingServiceSuite(t *testing.T) {
	suite.Run(t, new(RatingServiceSuite))
}

// Services never touch the store; the new aggregate reaches it through the
// change feed.
func TestRatingReachesStoreThroughChangeFeed(t *testing.T) {
	ctx := context.Background()
	gw := gateway.NewMemory()
	gw.Seed(models.TableTitles, gateway.Row{"id": "t1", "title": "Dune", "status": "completed"})

	store := titlesync.NewStore(gw, titlesync.WithLogger(quietLogger()))
	defer store.Close()
	require.NoError(t, store.Initialize(ctx))
	require.NoError(t, store.SubscribeToChanges(ctx))

	svc := NewRatingService(gw, quietLogger())
	for user, score := range map[string]int{"u1": 6, "u2": 8, "u3": 10} {
		_, err := svc.SubmitRating(ctx, user, "t1", score)
		require.NoError(t, err)
	}

	require.Eventually(t, func() bool {
		title, ok := store.Get("t1")
		return ok && title.RatingCount == 3
	}, 2*time.Second, 5*time.Millisecond)

	title, _ := store.Get("t1")
	assert.Equal(t, 8.0, title.DisplayRating())
	assert.Equal(t, "Dune", title.Title)
}
