package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"

	"github.com/google/uuid"

	"cinehub/internal/gateway"
	"cinehub/internal/metrics"
	"cinehub/internal/models"
)

var (
	ErrEmptyListName      = errors.New("list name is required")
	ErrDeleteNotConfirmed = errors.New("list deletion must be confirmed")
	ErrListNotFound       = errors.New("list not found")
)

// DeleteIntent must be DeleteConfirmed for ListService.Delete to act.
type DeleteIntent int

const (
	DeleteUnconfirmed DeleteIntent = iota
	DeleteConfirmed
)

type NewList struct {
	Name        string
	Description string
	IsPublic    bool
}

type ListService interface {
	Create(ctx context.Context, userID string, in NewList) (*models.UserList, error)
	Delete(ctx context.Context, userID, listID string, intent DeleteIntent) error
	AddItem(ctx context.Context, userID, listID, titleID string) (AddOutcome, error)
	RemoveItem(ctx context.Context, userID, listID, titleID string) error
	Lists(ctx context.Context, userID string) ([]models.UserList, error)
	Items(ctx context.Context, userID, listID string) ([]models.ListItem, error)
}

type listService struct {
	gw     gateway.Gateway
	logger *slog.Logger
}

func NewListService(gw gateway.Gateway, logger *slog.Logger) ListService {
	if logger == nil {
		logger = slog.Default()
	}
	return &listService{gw: gw, logger: logger}
}

// Create stores a new list. Lists are private unless asked otherwise.
func (s *listService) Create(ctx context.Context, userID string, in NewList) (*models.UserList, error) {
	if userID == "" {
		return nil, ErrMissingUser
	}
	name := strings.TrimSpace(in.Name)
	if name == "" {
		return nil, ErrEmptyListName
	}

	list := models.UserList{
		ID:       uuid.NewString(),
		UserID:   userID,
		Name:     name,
		IsPublic: in.IsPublic,
	}
	if desc := strings.TrimSpace(in.Description); desc != "" {
		list.Description = &desc
	}

	stored, err := s.gw.Insert(ctx, models.TableLists, list.ToRow())
	if err != nil {
		metrics.CollectionMutations.WithLabelValues("list_create", "failed").Inc()
		return nil, fmt.Errorf("create list: %w", err)
	}
	metrics.CollectionMutations.WithLabelValues("list_create", "created").Inc()
	s.logger.Info("list_created", "user_id", userID, "list_id", list.ID)

	created := models.UserListFromRow(stored)
	return &created, nil
}

// Delete removes the list and, through the schema's cascade, its items.
func (s *listService) Delete(ctx context.Context, userID, listID string, intent DeleteIntent) error {
	if intent != DeleteConfirmed {
		return ErrDeleteNotConfirmed
	}
	if userID == "" {
		return ErrMissingUser
	}
	n, err := s.gw.Delete(ctx, models.TableLists, gateway.Filter{"id": listID, "user_id": userID})
	if err != nil {
		metrics.CollectionMutations.WithLabelValues("list_delete", "failed").Inc()
		return fmt.Errorf("delete list: %w", err)
	}
	if n == 0 {
		return ErrListNotFound
	}
	metrics.CollectionMutations.WithLabelValues("list_delete", "deleted").Inc()
	s.logger.Info("list_deleted", "user_id", userID, "list_id", listID)
	return nil
}

// AddItem appends titleID at position count+1. A concurrent add can produce
// a repeated position; positions are a display order, not a key.
func (s *listService) AddItem(ctx context.Context, userID, listID, titleID string) (AddOutcome, error) {
	if _, err := s.ownedList(ctx, userID, listID); err != nil {
		return "", err
	}

	count, err := s.gw.Count(ctx, models.TableListItems, gateway.Filter{"list_id": listID})
	if err != nil {
		return "", fmt.Errorf("count list items: %w", err)
	}

	_, err = s.gw.Insert(ctx, models.TableListItems, gateway.Row{
		"list_id":  listID,
		"title_id": titleID,
		"position": int(count) + 1,
	})
	switch {
	case errors.Is(err, gateway.ErrConflict):
		metrics.CollectionMutations.WithLabelValues("list_add_item", "already_present").Inc()
		return AlreadyInList, nil
	case err != nil:
		metrics.CollectionMutations.WithLabelValues("list_add_item", "failed").Inc()
		return "", fmt.Errorf("add list item: %w", err)
	}
	metrics.CollectionMutations.WithLabelValues("list_add_item", "added").Inc()
	return AddedToList, nil
}

// RemoveItem deletes one item; an absent item is not an error.
func (s *listService) RemoveItem(ctx context.Context, userID, listID, titleID string) error {
	if _, err := s.ownedList(ctx, userID, listID); err != nil {
		return err
	}
	if _, err := s.gw.Delete(ctx, models.TableListItems, gateway.Filter{"list_id": listID, "title_id": titleID}); err != nil {
		metrics.CollectionMutations.WithLabelValues("list_remove_item", "failed").Inc()
		return fmt.Errorf("remove list item: %w", err)
	}
	metrics.CollectionMutations.WithLabelValues("list_remove_item", "removed").Inc()
	return nil
}

func (s *listService) Lists(ctx context.Context, userID string) ([]models.UserList, error) {
	if userID == "" {
		return nil, ErrMissingUser
	}
	rows, err := s.gw.List(ctx, models.TableLists, gateway.Filter{"user_id": userID}, gateway.ListOptions{
		OrderBy: []gateway.Order{{Column: "created_at", Desc: true}},
	})
	if err != nil {
		return nil, fmt.Errorf("list user lists: %w", err)
	}
	out := make([]models.UserList, 0, len(rows))
	for _, row := range rows {
		out = append(out, models.UserListFromRow(row))
	}
	return out, nil
}

// Items returns a list's items by position. Public lists are readable by
// anyone; private ones only by their owner.
func (s *listService) Items(ctx context.Context, userID, listID string) ([]models.ListItem, error) {
	row, err := s.gw.GetOne(ctx, models.TableLists, gateway.Filter{"id": listID})
	if err != nil {
		return nil, fmt.Errorf("get list: %w", err)
	}
	if row == nil {
		return nil, ErrListNotFound
	}
	if list := models.UserListFromRow(row); !list.IsPublic && list.UserID != userID {
		return nil, ErrListNotFound
	}

	rows, err := s.gw.List(ctx, models.TableListItems, gateway.Filter{"list_id": listID}, gateway.ListOptions{
		OrderBy: []gateway.Order{{Column: "position"}},
	})
	if err != nil {
		return nil, fmt.Errorf("list items: %w", err)
	}
	out := make([]models.ListItem, 0, len(rows))
	for _, r := range rows {
		out = append(out, models.ListItemFromRow(r))
	}
	return out, nil
}

func (s *listService) ownedList(ctx context.Context, userID, listID string) (models.UserList, error) {
	if userID == "" {
		return models.UserList{}, ErrMissingUser
	}
	row, err := s.gw.GetOne(ctx, models.TableLists, gateway.Filter{"id": listID, "user_id": userID})
	if err != nil {
		return models.UserList{}, fmt.Errorf("get list: %w", err)
	}
	if row == nil {
		return models.UserList{}, ErrListNotFound
	}
	return models.UserListFromRow(row), nil
}
