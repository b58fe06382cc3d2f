package services

import (
	"context"
	"fmt"
	"slices"
	"strings"

	"github.com/google/uuid"

	"github.com/taskmaster/agenda/internal/application/state"
	"github.com/taskmaster/agenda/internal/domain/entities"
	"github.com/taskmaster/agenda/internal/infrastructure/logger"
	"github.com/taskmaster/agenda/internal/ports"
)

const collectionShopping = "shopping"

// ShoppingService handles the shopping list partitions
type ShoppingService struct {
	coord  *Coordinator
	repo   ports.ShoppingRepository
	clock  Clock
	logger *logger.Logger
}

// NewShoppingService creates a new shopping service
func NewShoppingService(coord *Coordinator, repo ports.ShoppingRepository, clock Clock, logger *logger.Logger) *ShoppingService {
	return &ShoppingService{
		coord:  coord,
		repo:   repo,
		clock:  clock,
		logger: logger.WithComponent("shopping"),
	}
}

var _ ports.ShoppingService = (*ShoppingService)(nil)

// Lists returns every partition with its items and the amount still to spend.
func (s *ShoppingService) Lists(ctx context.Context) []ports.ShoppingList {
	var out []ports.ShoppingList
	s.coord.Store().Read(func(st *state.State) {
		for _, name := range st.Lists() {
			out = append(out, shoppingList(name, st.Shopping[name]))
		}
	})
	if out == nil {
		out = []ports.ShoppingList{}
	}
	return out
}

// Items returns one partition.
func (s *ShoppingService) Items(ctx context.Context, list string) (ports.ShoppingList, error) {
	var (
		out   ports.ShoppingList
		found bool
	)
	s.coord.Store().Read(func(st *state.State) {
		var items []entities.ShoppingItem
		items, found = st.Shopping[list]
		out = shoppingList(list, items)
	})
	if !found {
		return ports.ShoppingList{}, unknownList(list)
	}
	return out, nil
}

// Add appends an item to list.
func (s *ShoppingService) Add(ctx context.Context, list string, form ports.ShoppingItemForm) (entities.ShoppingItem, error) {
	if err := validateForm(form); err != nil {
		return entities.ShoppingItem{}, err
	}

	now := s.clock.Now()
	item := entities.ShoppingItem{
		ID:        uuid.NewString(),
		List:      list,
		Name:      strings.TrimSpace(form.Name),
		Quantity:  form.Quantity,
		CreatedAt: now,
		UpdatedAt: now,
	}
	if item.Quantity == 0 {
		item.Quantity = 1
	}
	if form.UnitPrice != nil {
		item.UnitPrice = *form.UnitPrice
	}
	if form.Purchased != nil {
		item.Purchased = *form.Purchased
	}

	err := s.coord.Apply(ctx, Mutation{
		Op:         "create",
		Collection: collectionShopping,
		Mutate: func(st *state.State) (state.Restore, error) {
			if _, ok := st.Shopping[list]; !ok {
				return nil, unknownList(list)
			}
			restore := state.CaptureList(st, list)
			st.Shopping[list] = append(st.Shopping[list], item)
			return restore, nil
		},
		Persist: func(ctx context.Context) error {
			_, err := s.repo.Upsert(ctx, item)
			return err
		},
	})
	if err != nil {
		return entities.ShoppingItem{}, err
	}

	s.logger.Infow("Shopping item added", "list", list, "item_id", item.ID, "name", item.Name)
	return item, nil
}

// Update edits name, quantity, price and purchased flag of an item.
func (s *ShoppingService) Update(ctx context.Context, list, id string, form ports.ShoppingItemForm) (entities.ShoppingItem, error) {
	if err := validateForm(form); err != nil {
		return entities.ShoppingItem{}, err
	}

	return s.change(ctx, "update", list, id, func(it *entities.ShoppingItem) {
		it.Name = strings.TrimSpace(form.Name)
		if form.Quantity > 0 {
			it.Quantity = form.Quantity
		}
		if form.UnitPrice != nil {
			it.UnitPrice = *form.UnitPrice
		}
		if form.Purchased != nil {
			it.Purchased = *form.Purchased
		}
	})
}

// Toggle flips the purchased flag.
func (s *ShoppingService) Toggle(ctx context.Context, list, id string) (entities.ShoppingItem, error) {
	return s.change(ctx, "toggle", list, id, func(it *entities.ShoppingItem) {
		it.Purchased = !it.Purchased
	})
}

// Delete removes an item from list.
func (s *ShoppingService) Delete(ctx context.Context, list, id string) error {
	err := s.coord.Apply(ctx, Mutation{
		Op:         "delete",
		Collection: collectionShopping,
		Mutate: func(st *state.State) (state.Restore, error) {
			i, err := findItem(st, list, id)
			if err != nil {
				return nil, err
			}
			restore := state.CaptureList(st, list)
			st.Shopping[list] = slices.Delete(st.Shopping[list], i, i+1)
			return restore, nil
		},
		Persist: func(ctx context.Context) error {
			return s.repo.Delete(ctx, id)
		},
	})
	if err != nil {
		return err
	}

	s.logger.Infow("Shopping item deleted", "list", list, "item_id", id)
	return nil
}

func (s *ShoppingService) change(ctx context.Context, op, list, id string, fn func(*entities.ShoppingItem)) (entities.ShoppingItem, error) {
	var updated entities.ShoppingItem
	err := s.coord.Apply(ctx, Mutation{
		Op:         op,
		Collection: collectionShopping,
		Mutate: func(st *state.State) (state.Restore, error) {
			i, err := findItem(st, list, id)
			if err != nil {
				return nil, err
			}
			restore := state.CaptureList(st, list)
			item := &st.Shopping[list][i]
			fn(item)
			item.UpdatedAt = s.clock.Now()
			updated = *item
			return restore, nil
		},
		Persist: func(ctx context.Context) error {
			_, err := s.repo.Upsert(ctx, updated)
			return err
		},
	})
	if err != nil {
		return entities.ShoppingItem{}, err
	}
	return updated, nil
}

func findItem(st *state.State, list, id string) (int, error) {
	if _, ok := st.Shopping[list]; !ok {
		return -1, unknownList(list)
	}
	i, ok := st.FindItem(list, id)
	if !ok {
		return -1, fmt.Errorf("item %s in %s: %w", id, list, entities.ErrItemNotFound)
	}
	return i, nil
}

func unknownList(list string) error {
	return fmt.Errorf("%w: %q: %w", entities.ErrValidation, list, entities.ErrListNotFound)
}

func shoppingList(name string, items []entities.ShoppingItem) ports.ShoppingList {
	items = slices.Clone(items)
	if items == nil {
		items = []entities.ShoppingItem{}
	}
	return ports.ShoppingList{
		Name:  name,
		Items: items,
		Total: entities.ShoppingTotal(items),
	}
}
