package titlesync

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"cinehub/internal/gateway"
	"cinehub/internal/models"
)

var epoch = time.Date(2024, 6, 1, 0, 0, 0, 0, time.UTC)

func completedRow(id string, age time.Duration) gateway.Row {
	return gateway.Row{
		"id":         id,
		"title":      "Title " + id,
		"status":     "completed",
		"created_at": epoch.Add(-age),
	}
}

func collection(rows ...gateway.Row) []models.Title {
	out := make([]models.Title, 0, len(rows))
	for _, r := range rows {
		out = append(out, models.FromRow(r))
	}
	return out
}

func titleIDs(titles []models.Title) []string {
	out := make([]string, 0, len(titles))
	for _, t := range titles {
		out = append(out, t.ID)
	}
	return out
}

func insert(row gateway.Row) gateway.ChangeEvent {
	return gateway.ChangeEvent{Type: gateway.EventInsert, Table: "titles", New: row}
}

func update(row gateway.Row) gateway.ChangeEvent {
	return gateway.ChangeEvent{Type: gateway.EventUpdate, Table: "titles", New: row}
}

func remove(id string) gateway.ChangeEvent {
	return gateway.ChangeEvent{Type: gateway.EventDelete, Table: "titles", Old: gateway.Row{"id": id}}
}

func TestApply_InsertCompletedPrepends(t *testing.T) {
	start := collection(completedRow("a", time.Hour))

	next, d := Apply(start, insert(completedRow("b", 0)))

	assert.Equal(t, OutcomeInserted, d.Outcome)
	assert.Equal(t, 0, d.Index)
	assert.Equal(t, []string{"b", "a"}, titleIDs(next))
	assert.Equal(t, []string{"a"}, titleIDs(start), "input must not change")
}

func TestApply_InsertIgnoresNonCompleted(t *testing.T) {
	for _, status := range []string{"pending", "processing", ""} {
		row := completedRow("p", 0)
		row["status"] = status

		next, d := Apply(nil, insert(row))
		assert.Equal(t, OutcomeIgnored, d.Outcome, status)
		assert.Empty(t, next)
	}
}

func TestApply_DuplicateInsertIsIdempotent(t *testing.T) {
	start := collection(completedRow("a", 0))

	dup := completedRow("a", 0)
	dup["title"] = "Renamed"
	next, d := Apply(start, insert(dup))

	assert.Equal(t, OutcomeUpdated, d.Outcome)
	require.Len(t, next, 1)
	assert.Equal(t, "Renamed", next[0].Title)

	again, _ := Apply(next, insert(dup))
	assert.Len(t, again, 1)
}

func TestApply_UpdateMergesCarriedColumns(t *testing.T) {
	row := completedRow("a", 0)
	row["title"] = "A"
	row["rating_average"] = 7.5
	row["view_count"] = 1000
	start := collection(row, completedRow("b", time.Hour))

	next, d := Apply(start, update(gateway.Row{"id": "a", "rating_average": 8.0}))

	assert.Equal(t, OutcomeUpdated, d.Outcome)
	assert.Equal(t, []string{"a", "b"}, titleIDs(next))
	assert.Equal(t, "A", next[0].Title)
	assert.Equal(t, 8.0, next[0].Rating)
	assert.Equal(t, 1000, next[0].ViewCount)
	assert.Equal(t, 7.5, start[0].Rating, "input must not change")
}

func TestApply_UpdateAwayFromCompletedRemoves(t *testing.T) {
	start := collection(completedRow("a", 0), completedRow("b", time.Hour))

	next, d := Apply(start, update(gateway.Row{"id": "a", "status": "processing"}))

	assert.Equal(t, OutcomeRemoved, d.Outcome)
	assert.Equal(t, "a", d.ID)
	assert.Equal(t, []string{"b"}, titleIDs(next))
}

func TestApply_UpdateIntoCompletedInsertsByCreationTime(t *testing.T) {
	start := collection(
		completedRow("new", 0),
		completedRow("old", 3*time.Hour),
	)

	next, d := Apply(start, update(completedRow("mid", time.Hour)))

	assert.Equal(t, OutcomeInserted, d.Outcome)
	assert.Equal(t, 1, d.Index)
	assert.Equal(t, []string{"new", "mid", "old"}, titleIDs(next))
}

func TestApply_UpdateOfAbsentNonCompletedIsIgnored(t *testing.T) {
	start := collection(completedRow("a", 0))

	next, d := Apply(start, update(gateway.Row{"id": "x", "rating_average": 5.0}))

	assert.Equal(t, OutcomeIgnored, d.Outcome)
	assert.Equal(t, []string{"a"}, titleIDs(next))
}

func TestApply_DeleteAbsentIsNoop(t *testing.T) {
	start := collection(completedRow("a", 0))

	next, d := Apply(start, remove("zzz"))

	assert.Equal(t, OutcomeIgnored, d.Outcome)
	assert.Equal(t, titleIDs(start), titleIDs(next))
}

func TestApply_DeleteFallsBackToNewRow(t *testing.T) {
	start := collection(completedRow("a", 0), completedRow("b", time.Hour))

	ev := gateway.ChangeEvent{Type: gateway.EventDelete, Table: "titles", New: gateway.Row{"id": "b"}}
	next, d := Apply(start, ev)

	assert.Equal(t, OutcomeRemoved, d.Outcome)
	assert.Equal(t, 1, d.Index)
	assert.Equal(t, []string{"a"}, titleIDs(next))
}

func TestApply_MalformedEventsAreDropped(t *testing.T) {
	start := collection(completedRow("a", 0))

	tests := []gateway.ChangeEvent{
		insert(gateway.Row{"status": "completed"}),
		update(gateway.Row{"rating_average": 1.0}),
		{Type: gateway.EventDelete, Table: "titles"},
		{Type: "TRUNCATE", Table: "titles"},
	}
	for _, ev := range tests {
		next, d := Apply(start, ev)
		assert.Equal(t, OutcomeDropped, d.Outcome)
		assert.False(t, d.Outcome.Changed())
		assert.Equal(t, []string{"a"}, titleIDs(next))
	}
}

func TestApply_OrderingIsStable(t *testing.T) {
	titles := collection(completedRow("c", 0), completedRow("b", time.Hour), completedRow("a", 2*time.Hour))

	titles, _ = Apply(titles, update(gateway.Row{"id": "b", "view_count": 10}))
	titles, _ = Apply(titles, remove("c"))
	titles, _ = Apply(titles, insert(completedRow("d", 0)))

	assert.Equal(t, []string{"d", "b", "a"}, titleIDs(titles))
}
