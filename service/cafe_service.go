package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"math/rand/v2"

	"cafeapi/model"
	"cafeapi/repository"
	"cafeapi/utils"
)

const (
	msgAdded      = "Successfully added the new cafe."
	msgUpdated    = "Successfully updated the price."
	msgDeleted    = "Successfully deleted"
	msgNotAllowed = "Please enter a correct API key"

	randomAttempts = 3
)

type CafeStore interface {
	Insert(ctx context.Context, cafe *model.Cafe) error
	GetByID(ctx context.Context, id uint) (*model.Cafe, error)
	GetAll(ctx context.Context) ([]model.Cafe, error)
	Count(ctx context.Context) (int64, error)
	GetAt(ctx context.Context, offset int) (*model.Cafe, error)
	FindByLocationPrefix(ctx context.Context, prefix string) ([]model.Cafe, error)
	UpdateCoffeePrice(ctx context.Context, id uint, price string) error
	DeleteByID(ctx context.Context, id uint) error
}

type Authorizer interface {
	IsAuthorized(secret string) bool
}

// NewCafe holds the raw values supplied for a create. Nil pointers are
// absent values; the amenity indicators go through utils.ParseFlag.
type NewCafe struct {
	Name        *string
	MapURL      *string
	ImgURL      *string
	Location    *string
	Seats       *string
	Sockets     string
	Toilet      string
	Wifi        string
	Calls       string
	CoffeePrice *string
}

type CafeService struct {
	store  CafeStore
	gate   Authorizer
	logger *slog.Logger
	intn   func(n int) int
}

func NewCafeService(store CafeStore, gate Authorizer, logger *slog.Logger) *CafeService {
	if logger == nil {
		logger = slog.Default()
	}
	return &CafeService{
		store:  store,
		gate:   gate,
		logger: logger,
		intn:   rand.IntN,
	}
}

func (s *CafeService) ListAll(ctx context.Context) (model.CafeList, error) {
	cafes, err := s.store.GetAll(ctx)
	if err != nil {
		return model.CafeList{}, fmt.Errorf("list cafes: %w", err)
	}
	return model.NewCafeList(cafes), nil
}

// Get returns a NotFound result instead of an error when id does not exist.
func (s *CafeService) Get(ctx context.Context, id uint) (*model.Cafe, Result, error) {
	cafe, err := s.store.GetByID(ctx, id)
	if errors.Is(err, repository.ErrNotFound) {
		return nil, notFound(id), nil
	}
	if err != nil {
		return nil, Result{}, fmt.Errorf("get cafe: %w", err)
	}
	return cafe, Result{Outcome: OK, ID: id}, nil
}

// RandomOne picks uniformly among the cafes present at call time.
func (s *CafeService) RandomOne(ctx context.Context) (*model.Cafe, error) {
	for attempt := 0; attempt < randomAttempts; attempt++ {
		n, err := s.store.Count(ctx)
		if err != nil {
			return nil, fmt.Errorf("count cafes: %w", err)
		}
		if n == 0 {
			return nil, ErrEmptyStore
		}

		cafe, err := s.store.GetAt(ctx, s.intn(int(n)))
		if errors.Is(err, repository.ErrNotFound) {
			// rows were deleted between the count and the read
			continue
		}
		if err != nil {
			return nil, fmt.Errorf("random cafe: %w", err)
		}
		return cafe, nil
	}
	return nil, fmt.Errorf("random cafe: store changed during %d attempts", randomAttempts)
}

func (s *CafeService) SearchByLocationPrefix(ctx context.Context, prefix *string) (SearchResult, error) {
	if prefix == nil {
		return SearchResult{}, &MissingParameterError{Name: "loc"}
	}

	cafes, err := s.store.FindByLocationPrefix(ctx, *prefix)
	if err != nil {
		return SearchResult{}, fmt.Errorf("search cafes: %w", err)
	}

	if len(cafes) == 0 {
		return SearchResult{
			Outcome: NotFound,
			Prefix:  *prefix,
			Message: fmt.Sprintf("sorry no cafe found in %s", *prefix),
			List:    model.NewCafeList(nil),
		}, nil
	}

	return SearchResult{
		Outcome: OK,
		Prefix:  *prefix,
		List:    model.NewCafeList(cafes),
	}, nil
}

func (s *CafeService) Create(ctx context.Context, in NewCafe) (Result, error) {
	required := []struct {
		field string
		value *string
	}{
		{"name", in.Name},
		{"map_url", in.MapURL},
		{"img_url", in.ImgURL},
		{"location", in.Location},
		{"seats", in.Seats},
	}
	for _, r := range required {
		if r.value == nil || *r.value == "" {
			return Result{}, &MissingFieldError{Field: r.field}
		}
	}

	cafe := model.Cafe{
		Name:         *in.Name,
		MapURL:       *in.MapURL,
		ImgURL:       *in.ImgURL,
		Location:     *in.Location,
		Seats:        *in.Seats,
		HasSockets:   utils.ParseFlag(in.Sockets),
		HasToilet:    utils.ParseFlag(in.Toilet),
		HasWifi:      utils.ParseFlag(in.Wifi),
		CanTakeCalls: utils.ParseFlag(in.Calls),
		CoffeePrice:  in.CoffeePrice,
	}

	if err := s.store.Insert(ctx, &cafe); err != nil {
		if errors.Is(err, repository.ErrDuplicateName) {
			return Result{}, &DuplicateNameError{Name: cafe.Name}
		}
		return Result{}, fmt.Errorf("create cafe: %w", err)
	}

	s.logger.InfoContext(ctx, "cafe created", "id", cafe.ID, "name", cafe.Name)
	return Result{Outcome: OK, Message: msgAdded, ID: cafe.ID}, nil
}

func (s *CafeService) UpdatePrice(ctx context.Context, id uint, newPrice *string) (Result, error) {
	if newPrice == nil || *newPrice == "" {
		return Result{}, &MissingParameterError{Name: "new_price"}
	}

	err := s.store.UpdateCoffeePrice(ctx, id, *newPrice)
	if errors.Is(err, repository.ErrNotFound) {
		return notFound(id), nil
	}
	if err != nil {
		return Result{}, fmt.Errorf("update price: %w", err)
	}

	s.logger.InfoContext(ctx, "cafe price updated", "id", id, "coffee_price", *newPrice)
	return Result{Outcome: OK, Message: msgUpdated, ID: id}, nil
}

// Delete checks the secret before touching the store, so a rejected caller
// learns nothing about whether id exists.
func (s *CafeService) Delete(ctx context.Context, id uint, secret *string) (Result, error) {
	if secret == nil {
		return Result{}, &MissingParameterError{Name: "api-key"}
	}
	if !s.gate.IsAuthorized(*secret) {
		s.logger.WarnContext(ctx, "cafe delete rejected", "id", id)
		return Result{Outcome: NotAllowed, Message: msgNotAllowed}, nil
	}

	err := s.store.DeleteByID(ctx, id)
	if errors.Is(err, repository.ErrNotFound) {
		return notFound(id), nil
	}
	if err != nil {
		return Result{}, fmt.Errorf("delete cafe: %w", err)
	}

	s.logger.InfoContext(ctx, "cafe deleted", "id", id)
	return Result{Outcome: OK, Message: msgDeleted, ID: id}, nil
}

func notFound(id uint) Result {
	return Result{
		Outcome: NotFound,
		Message: fmt.Sprintf("Not found cafe with id %d", id),
		ID:      id,
	}
}
