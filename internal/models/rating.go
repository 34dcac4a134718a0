package models

import "time"

const (
	MinRating = 1
	MaxRating = 10
)

// UserRating is one user's score for one title, unique per (user, title).
type UserRating struct {
	UserID    string    `json:"user_id"`
	TitleID   string    `json:"title_id"`
	Rating    int       `json:"rating"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// RatingConflictKey is the uniqueness constraint on the ratings table
var RatingConflictKey = []string{"user_id", "title_id"}

func (r UserRating) ToRow() Row {
	return Row{
		"user_id":  r.UserID,
		"title_id": r.TitleID,
		"rating":   r.Rating,
	}
}

func RatingFromRow(row Row) UserRating {
	r := UserRating{}
	r.UserID, _ = asString(row["user_id"])
	r.TitleID, _ = asString(row["title_id"])
	r.Rating, _ = asInt(row["rating"])
	r.CreatedAt, _ = asTime(row["created_at"])
	r.UpdatedAt, _ = asTime(row["updated_at"])
	return r
}

// AggregateRatings returns the arithmetic mean and count of the rating column
// of rows. Rows without a usable rating are skipped.
func AggregateRatings(rows []Row) (float64, int) {
	var (
		sum   int
		count int
	)
	for _, row := range rows {
		score, ok := asInt(row["rating"])
		if !ok {
			continue
		}
		sum += score
		count++
	}
	if count == 0 {
		return 0, 0
	}
	return float64(sum) / float64(count), count
}
