package models

import "time"

// WatchlistEntry records that a user wants to watch a title
type WatchlistEntry struct {
	UserID    string    `json:"user_id"`
	TitleID   string    `json:"title_id"`
	CreatedAt time.Time `json:"created_at"`
}

func WatchlistEntryFromRow(row Row) WatchlistEntry {
	e := WatchlistEntry{}
	e.UserID, _ = asString(row["user_id"])
	e.TitleID, _ = asString(row["title_id"])
	e.CreatedAt, _ = asTime(row["created_at"])
	return e
}

// UserList is a named collection of titles owned by a user
type UserList struct {
	ID          string    `json:"id"`
	UserID      string    `json:"user_id"`
	Name        string    `json:"name"`
	Description *string   `json:"description,omitempty"`
	IsPublic    bool      `json:"is_public"`
	CreatedAt   time.Time `json:"created_at"`
}

func (l UserList) ToRow() Row {
	row := Row{
		"id":        l.ID,
		"user_id":   l.UserID,
		"name":      l.Name,
		"is_public": l.IsPublic,
	}
	if l.Description != nil {
		row["description"] = *l.Description
	}
	return row
}

func UserListFromRow(row Row) UserList {
	l := UserList{}
	l.ID, _ = asString(row["id"])
	l.UserID, _ = asString(row["user_id"])
	l.Name, _ = asString(row["name"])
	l.Description = stringPtr(row["description"])
	l.IsPublic, _ = asBool(row["is_public"])
	l.CreatedAt, _ = asTime(row["created_at"])
	return l
}

// ListItem places a title in a user list
type ListItem struct {
	ListID    string    `json:"list_id"`
	TitleID   string    `json:"title_id"`
	Position  int       `json:"position"`
	CreatedAt time.Time `json:"created_at"`
}

func ListItemFromRow(row Row) ListItem {
	i := ListItem{}
	i.ListID, _ = asString(row["list_id"])
	i.TitleID, _ = asString(row["title_id"])
	i.Position, _ = asInt(row["position"])
	i.CreatedAt, _ = asTime(row["created_at"])
	return i
}
