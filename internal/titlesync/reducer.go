package titlesync

import (
	"cinehub/internal/gateway"
	"cinehub/internal/models"
)

// Outcome is what Apply did with one change event.
type Outcome string

const (
	OutcomeInserted Outcome = "inserted"
	OutcomeUpdated  Outcome = "updated"
	OutcomeRemoved  Outcome = "removed"
	// OutcomeIgnored covers well-formed events that leave the collection
	// unchanged: non-completed inserts, deletes of absent titles.
	OutcomeIgnored Outcome = "ignored"
	// OutcomeDropped marks malformed events (no id, unknown type).
	OutcomeDropped Outcome = "dropped"
)

// Changed reports whether the collection was modified.
func (o Outcome) Changed() bool {
	return o == OutcomeInserted || o == OutcomeUpdated || o == OutcomeRemoved
}

// Delta describes one applied change. Title is the new value for inserts and
// updates and the removed value for removals.
type Delta struct {
	Outcome Outcome      `json:"outcome"`
	ID      string       `json:"id"`
	Title   models.Title `json:"title"`
	Index   int          `json:"index"`
}

// Apply folds one change event into titles and returns the resulting
// collection. titles is never modified; when the event changes nothing the
// same slice is returned.
func Apply(titles []models.Title, ev gateway.ChangeEvent) ([]models.Title, Delta) {
	switch ev.Type {
	case gateway.EventInsert:
		return applyInsert(titles, ev.New)
	case gateway.EventUpdate:
		return applyUpdate(titles, ev.New, ev.Old)
	case gateway.EventDelete:
		return applyDelete(titles, ev.Old, ev.New)
	}
	return titles, Delta{Outcome: OutcomeDropped}
}

func applyInsert(titles []models.Title, row gateway.Row) ([]models.Title, Delta) {
	id, ok := models.RowID(row)
	if !ok {
		return titles, Delta{Outcome: OutcomeDropped}
	}
	// a replayed insert for a title we already hold is an update
	if indexOf(titles, id) >= 0 {
		return applyUpdate(titles, row, nil)
	}
	if status, _ := models.RowStatus(row); status != models.StatusCompleted {
		return titles, Delta{Outcome: OutcomeIgnored, ID: id}
	}

	t := models.FromRow(row)
	next := make([]models.Title, 0, len(titles)+1)
	next = append(next, t)
	next = append(next, titles...)
	return next, Delta{Outcome: OutcomeInserted, ID: id, Title: t, Index: 0}
}

func applyUpdate(titles []models.Title, row, old gateway.Row) ([]models.Title, Delta) {
	id, ok := models.RowID(row)
	if !ok {
		if id, ok = models.RowID(old); !ok {
			return titles, Delta{Outcome: OutcomeDropped}
		}
	}

	idx := indexOf(titles, id)
	if idx < 0 {
		// an update that makes a title visible inserts it where the initial
		// load would have placed it
		if status, _ := models.RowStatus(row); status != models.StatusCompleted {
			return titles, Delta{Outcome: OutcomeIgnored, ID: id}
		}
		t := models.FromRow(row)
		t.ID = id
		pos := insertPosition(titles, t)
		next := make([]models.Title, 0, len(titles)+1)
		next = append(next, titles[:pos]...)
		next = append(next, t)
		next = append(next, titles[pos:]...)
		return next, Delta{Outcome: OutcomeInserted, ID: id, Title: t, Index: pos}
	}

	merged := models.Merge(titles[idx], row)
	if !merged.Visible() {
		return removeAt(titles, idx), Delta{Outcome: OutcomeRemoved, ID: id, Title: titles[idx], Index: idx}
	}

	next := make([]models.Title, len(titles))
	copy(next, titles)
	next[idx] = merged
	return next, Delta{Outcome: OutcomeUpdated, ID: id, Title: merged, Index: idx}
}

func applyDelete(titles []models.Title, old, row gateway.Row) ([]models.Title, Delta) {
	id, ok := models.RowID(old)
	if !ok {
		if id, ok = models.RowID(row); !ok {
			return titles, Delta{Outcome: OutcomeDropped}
		}
	}
	idx := indexOf(titles, id)
	if idx < 0 {
		return titles, Delta{Outcome: OutcomeIgnored, ID: id}
	}
	return removeAt(titles, idx), Delta{Outcome: OutcomeRemoved, ID: id, Title: titles[idx], Index: idx}
}

func indexOf(titles []models.Title, id string) int {
	for i := range titles {
		if titles[i].ID == id {
			return i
		}
	}
	return -1
}

func removeAt(titles []models.Title, idx int) []models.Title {
	next := make([]models.Title, 0, len(titles)-1)
	next = append(next, titles[:idx]...)
	return append(next, titles[idx+1:]...)
}

// insertPosition keeps the newest-first order of the initial load. Titles
// with an unknown creation time go to the front.
func insertPosition(titles []models.Title, t models.Title) int {
	if t.CreatedAt.IsZero() {
		return 0
	}
	for i := range titles {
		if titles[i].CreatedAt.Before(t.CreatedAt) {
			return i
		}
	}
	return len(titles)
}
