package service

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"strings"
	"testing"

	"cafeapi/auth"
	"cafeapi/database"
	"cafeapi/model"
	"cafeapi/repository"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm/logger"
)

const testAPIKey = "TopSecretAPIKey"

var quietLogger = slog.New(slog.NewTextHandler(io.Discard, nil))

func setupService(t *testing.T) *CafeService {
	t.Helper()

	name := strings.NewReplacer("/", "_", " ", "_").Replace(t.Name())
	db, err := database.Connect(fmt.Sprintf("file:svc_%s?mode=memory&cache=shared", name), logger.Silent)
	require.NoError(t, err)

	sqlDB, err := db.DB()
	require.NoError(t, err)
	sqlDB.SetMaxOpenConns(1)
	t.Cleanup(func() { _ = sqlDB.Close() })

	gate, err := auth.NewGate(testAPIKey)
	require.NoError(t, err)

	return NewCafeService(repository.NewCafeRepository(db), gate, quietLogger)
}

func ptr(s string) *string { return &s }

func cafeInput(name, location string) NewCafe {
	return NewCafe{
		Name:     ptr(name),
		MapURL:   ptr("https://maps.example/" + name),
		ImgURL:   ptr("https://img.example/" + name + ".jpg"),
		Location: ptr(location),
		Seats:    ptr("20-30"),
		Wifi:     "1",
	}
}

func mustCreate(t *testing.T, svc *CafeService, in NewCafe) uint {
	t.Helper()
	res, err := svc.Create(context.Background(), in)
	require.NoError(t, err)
	require.Equal(t, OK, res.Outcome)
	return res.ID
}

func findByID(list model.CafeList, id uint) (model.Cafe, bool) {
	for _, c := range list.Cafes {
		if c.ID == id {
			return c, true
		}
	}
	return model.Cafe{}, false
}

func TestCreateThenListRoundTrip(t *testing.T) {
	svc := setupService(t)
	ctx := context.Background()

	in := NewCafe{
		Name:        ptr("Science Gallery London"),
		MapURL:      ptr("https://g.page/scigallerylon?share"),
		ImgURL:      ptr("https://atlondonbridge.com/wp-content/uploads/2019/10/Science_Gallery_London.jpg"),
		Location:    ptr("London Bridge"),
		Seats:       ptr("50+"),
		Sockets:     "true",
		Toilet:      "on",
		Wifi:        "false",
		Calls:       "",
		CoffeePrice: ptr("£2.40"),
	}
	id := mustCreate(t, svc, in)
	assert.NotZero(t, id)

	list, err := svc.ListAll(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, list.Total)

	got, ok := findByID(list, id)
	require.True(t, ok)
	assert.Equal(t, model.Cafe{
		ID:           id,
		Name:         "Science Gallery London",
		MapURL:       "https://g.page/scigallerylon?share",
		ImgURL:       "https://atlondonbridge.com/wp-content/uploads/2019/10/Science_Gallery_London.jpg",
		Location:     "London Bridge",
		Seats:        "50+",
		HasSockets:   true,
		HasToilet:    true,
		HasWifi:      false,
		CanTakeCalls: false,
		CoffeePrice:  ptr("£2.40"),
	}, got)
}

func TestCreateWithoutCoffeePrice(t *testing.T) {
	svc := setupService(t)

	id := mustCreate(t, svc, cafeInput("Costa", "London"))
	cafe, res, err := svc.Get(context.Background(), id)
	require.NoError(t, err)
	assert.Equal(t, OK, res.Outcome)
	assert.Nil(t, cafe.CoffeePrice)
}

func TestCreateMissingField(t *testing.T) {
	svc := setupService(t)
	ctx := context.Background()

	cases := map[string]func(*NewCafe){
		"name":     func(in *NewCafe) { in.Name = nil },
		"map_url":  func(in *NewCafe) { in.MapURL = nil },
		"img_url":  func(in *NewCafe) { in.ImgURL = ptr("") },
		"location": func(in *NewCafe) { in.Location = nil },
		"seats":    func(in *NewCafe) { in.Seats = ptr("") },
	}

	for field, mutate := range cases {
		in := cafeInput("Costa", "London")
		mutate(&in)

		_, err := svc.Create(ctx, in)
		var missing *MissingFieldError
		require.ErrorAs(t, err, &missing, field)
		assert.Equal(t, field, missing.Field)
	}

	list, err := svc.ListAll(ctx)
	require.NoError(t, err)
	assert.Zero(t, list.Total)
}

func TestCreateDuplicateNameLeavesCountUnchanged(t *testing.T) {
	svc := setupService(t)
	ctx := context.Background()

	mustCreate(t, svc, cafeInput("Costa", "London"))

	_, err := svc.Create(ctx, cafeInput("Costa", "Paris"))
	var dup *DuplicateNameError
	require.ErrorAs(t, err, &dup)
	assert.Equal(t, "Costa", dup.Name)

	list, err := svc.ListAll(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, list.Total)
	assert.Equal(t, "London", list.Cafes[0].Location)
}

func TestListAllEmpty(t *testing.T) {
	svc := setupService(t)

	list, err := svc.ListAll(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 0, list.Total)
	assert.NotNil(t, list.Cafes)
	assert.Empty(t, list.Cafes)
}

func TestRandomOneEmptyStore(t *testing.T) {
	svc := setupService(t)

	cafe, err := svc.RandomOne(context.Background())
	assert.ErrorIs(t, err, ErrEmptyStore)
	assert.Nil(t, cafe)
}

func TestRandomOneIsMemberOfListing(t *testing.T) {
	svc := setupService(t)
	ctx := context.Background()

	for i := 0; i < 5; i++ {
		mustCreate(t, svc, cafeInput(fmt.Sprintf("Cafe %d", i), "London"))
	}
	list, err := svc.ListAll(ctx)
	require.NoError(t, err)

	for i := 0; i < 25; i++ {
		cafe, err := svc.RandomOne(ctx)
		require.NoError(t, err)
		member, ok := findByID(list, cafe.ID)
		require.True(t, ok)
		assert.Equal(t, member, *cafe)
	}
}

func TestRandomOneUsesEveryPosition(t *testing.T) {
	svc := setupService(t)
	ctx := context.Background()

	var ids []uint
	for i := 0; i < 3; i++ {
		ids = append(ids, mustCreate(t, svc, cafeInput(fmt.Sprintf("Cafe %d", i), "London")))
	}

	for pos, want := range ids {
		svc.intn = func(n int) int {
			require.Equal(t, 3, n)
			return pos
		}
		cafe, err := svc.RandomOne(ctx)
		require.NoError(t, err)
		assert.Equal(t, want, cafe.ID)
	}
}

func TestSearchByLocationPrefix(t *testing.T) {
	svc := setupService(t)
	ctx := context.Background()

	london := mustCreate(t, svc, cafeInput("Costa", "London"))
	bridge := mustCreate(t, svc, cafeInput("Bridge", "London Bridge"))
	mustCreate(t, svc, cafeInput("Lowercase", "london"))
	mustCreate(t, svc, cafeInput("Paris", "Paris"))

	all, err := svc.ListAll(ctx)
	require.NoError(t, err)

	res, err := svc.SearchByLocationPrefix(ctx, ptr("Lon"))
	require.NoError(t, err)
	assert.Equal(t, OK, res.Outcome)
	assert.Equal(t, 2, res.List.Total)
	var ids []uint
	for _, c := range res.List.Cafes {
		ids = append(ids, c.ID)
		assert.True(t, strings.HasPrefix(c.Location, "Lon"))
	}
	assert.Equal(t, []uint{london, bridge}, ids)

	res, err = svc.SearchByLocationPrefix(ctx, ptr(""))
	require.NoError(t, err)
	assert.Equal(t, all, res.List)

	res, err = svc.SearchByLocationPrefix(ctx, ptr("Berlin"))
	require.NoError(t, err)
	assert.Equal(t, NotFound, res.Outcome)
	assert.Equal(t, "Berlin", res.Prefix)
	assert.Equal(t, "sorry no cafe found in Berlin", res.Message)
	assert.Zero(t, res.List.Total)
	assert.Empty(t, res.List.Cafes)
}

func TestSearchMissingPrefix(t *testing.T) {
	svc := setupService(t)

	_, err := svc.SearchByLocationPrefix(context.Background(), nil)
	var missing *MissingParameterError
	require.ErrorAs(t, err, &missing)
	assert.Equal(t, "loc", missing.Name)
}

func TestUpdatePrice(t *testing.T) {
	svc := setupService(t)
	ctx := context.Background()

	target := mustCreate(t, svc, cafeInput("Costa", "London"))
	other := mustCreate(t, svc, cafeInput("Nero", "Leeds"))

	before, err := svc.ListAll(ctx)
	require.NoError(t, err)

	res, err := svc.UpdatePrice(ctx, target, ptr("£3.00"))
	require.NoError(t, err)
	assert.Equal(t, OK, res.Outcome)
	assert.Equal(t, "Successfully updated the price.", res.Message)

	after, err := svc.ListAll(ctx)
	require.NoError(t, err)

	updated, _ := findByID(after, target)
	require.NotNil(t, updated.CoffeePrice)
	assert.Equal(t, "£3.00", *updated.CoffeePrice)

	original, _ := findByID(before, target)
	updated.CoffeePrice = original.CoffeePrice
	assert.Equal(t, original, updated)

	untouched, _ := findByID(after, other)
	was, _ := findByID(before, other)
	assert.Equal(t, was, untouched)
}

func TestUpdatePriceNotFoundMutatesNothing(t *testing.T) {
	svc := setupService(t)
	ctx := context.Background()

	mustCreate(t, svc, cafeInput("Costa", "London"))
	before, err := svc.ListAll(ctx)
	require.NoError(t, err)

	res, err := svc.UpdatePrice(ctx, 999, ptr("£3.00"))
	require.NoError(t, err)
	assert.Equal(t, NotFound, res.Outcome)
	assert.Contains(t, res.Message, "999")

	after, err := svc.ListAll(ctx)
	require.NoError(t, err)
	assert.Equal(t, before, after)
}

func TestUpdatePriceMissingPrice(t *testing.T) {
	svc := setupService(t)
	id := mustCreate(t, svc, cafeInput("Costa", "London"))

	for _, p := range []*string{nil, ptr("")} {
		_, err := svc.UpdatePrice(context.Background(), id, p)
		var missing *MissingParameterError
		require.ErrorAs(t, err, &missing)
		assert.Equal(t, "new_price", missing.Name)
	}
}

func TestDeleteWrongSecret(t *testing.T) {
	svc := setupService(t)
	ctx := context.Background()

	id := mustCreate(t, svc, cafeInput("Costa", "London"))

	res, err := svc.Delete(ctx, id, ptr("wrong"))
	require.NoError(t, err)
	assert.Equal(t, NotAllowed, res.Outcome)

	missing, err := svc.Delete(ctx, id+100, ptr("wrong"))
	require.NoError(t, err)
	assert.Equal(t, res, missing, "a rejected caller cannot tell whether the id exists")

	_, got, err := svc.Get(ctx, id)
	require.NoError(t, err)
	assert.Equal(t, OK, got.Outcome)
}

func TestDeleteCorrectSecret(t *testing.T) {
	svc := setupService(t)
	ctx := context.Background()

	id := mustCreate(t, svc, cafeInput("Costa", "London"))
	keep := mustCreate(t, svc, cafeInput("Nero", "Leeds"))

	res, err := svc.Delete(ctx, id, ptr(testAPIKey))
	require.NoError(t, err)
	assert.Equal(t, OK, res.Outcome)

	list, err := svc.ListAll(ctx)
	require.NoError(t, err)
	_, found := findByID(list, id)
	assert.False(t, found)
	_, found = findByID(list, keep)
	assert.True(t, found)

	res, err = svc.Delete(ctx, id, ptr(testAPIKey))
	require.NoError(t, err)
	assert.Equal(t, NotFound, res.Outcome)
}

func TestDeleteMissingSecret(t *testing.T) {
	svc := setupService(t)

	_, err := svc.Delete(context.Background(), 1, nil)
	var missing *MissingParameterError
	require.ErrorAs(t, err, &missing)
	assert.Equal(t, "api-key", missing.Name)
}

func TestCostaScenario(t *testing.T) {
	svc := setupService(t)
	ctx := context.Background()

	in := cafeInput("Costa", "London")
	in.CoffeePrice = ptr("£2.50")
	id := mustCreate(t, svc, in)
	require.EqualValues(t, 1, id)

	res, err := svc.SearchByLocationPrefix(ctx, ptr("Lon"))
	require.NoError(t, err)
	require.Equal(t, 1, res.List.Total)
	assert.EqualValues(t, 1, res.List.Cafes[0].ID)

	res, err = svc.SearchByLocationPrefix(ctx, ptr("Paris"))
	require.NoError(t, err)
	assert.Equal(t, NotFound, res.Outcome)

	_, err = svc.UpdatePrice(ctx, 1, ptr("£2.75"))
	require.NoError(t, err)
	list, err := svc.ListAll(ctx)
	require.NoError(t, err)
	assert.Equal(t, "£2.75", *list.Cafes[0].CoffeePrice)

	del, err := svc.Delete(ctx, 1, ptr("TopSecretAPIKey"))
	require.NoError(t, err)
	assert.Equal(t, OK, del.Outcome)

	list, err = svc.ListAll(ctx)
	require.NoError(t, err)
	assert.Zero(t, list.Total)
}

type MockCafeStore struct {
	mock.Mock
}

func (m *MockCafeStore) Insert(ctx context.Context, cafe *model.Cafe) error {
	return m.Called(ctx, cafe).Error(0)
}

func (m *MockCafeStore) GetByID(ctx context.Context, id uint) (*model.Cafe, error) {
	args := m.Called(ctx, id)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*model.Cafe), args.Error(1)
}

func (m *MockCafeStore) GetAll(ctx context.Context) ([]model.Cafe, error) {
	args := m.Called(ctx)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]model.Cafe), args.Error(1)
}

func (m *MockCafeStore) Count(ctx context.Context) (int64, error) {
	args := m.Called(ctx)
	return args.Get(0).(int64), args.Error(1)
}

func (m *MockCafeStore) GetAt(ctx context.Context, offset int) (*model.Cafe, error) {
	args := m.Called(ctx, offset)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*model.Cafe), args.Error(1)
}

func (m *MockCafeStore) FindByLocationPrefix(ctx context.Context, prefix string) ([]model.Cafe, error) {
	args := m.Called(ctx, prefix)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]model.Cafe), args.Error(1)
}

func (m *MockCafeStore) UpdateCoffeePrice(ctx context.Context, id uint, price string) error {
	return m.Called(ctx, id, price).Error(0)
}

func (m *MockCafeStore) DeleteByID(ctx context.Context, id uint) error {
	return m.Called(ctx, id).Error(0)
}

type allowAll struct{}

func (allowAll) IsAuthorized(string) bool { return true }

func TestStoreFailuresAreReturned(t *testing.T) {
	ctx := context.Background()
	down := errors.New("connection refused")

	store := new(MockCafeStore)
	store.On("GetAll", ctx).Return(nil, down)
	store.On("Count", ctx).Return(int64(0), down)
	store.On("FindByLocationPrefix", ctx, "Lon").Return(nil, down)
	store.On("Insert", ctx, mock.Anything).Return(down)
	store.On("UpdateCoffeePrice", ctx, uint(1), "£1").Return(down)
	store.On("DeleteByID", ctx, uint(1)).Return(down)
	store.On("GetByID", ctx, uint(1)).Return(nil, down)

	svc := NewCafeService(store, allowAll{}, quietLogger)

	_, err := svc.ListAll(ctx)
	assert.ErrorIs(t, err, down)
	_, err = svc.RandomOne(ctx)
	assert.ErrorIs(t, err, down)
	_, err = svc.SearchByLocationPrefix(ctx, ptr("Lon"))
	assert.ErrorIs(t, err, down)
	_, err = svc.Create(ctx, cafeInput("Costa", "London"))
	assert.ErrorIs(t, err, down)
	_, err = svc.UpdatePrice(ctx, 1, ptr("£1"))
	assert.ErrorIs(t, err, down)
	_, err = svc.Delete(ctx, 1, ptr("anything"))
	assert.ErrorIs(t, err, down)
	_, _, err = svc.Get(ctx, 1)
	assert.ErrorIs(t, err, down)

	store.AssertExpectations(t)
}

func TestRandomOneRetriesWhenRowsVanish(t *testing.T) {
	ctx := context.Background()
	survivor := &model.Cafe{ID: 7, Name: "Survivor"}

	store := new(MockCafeStore)
	store.On("Count", ctx).Return(int64(2), nil).Once()
	store.On("GetAt", ctx, 1).Return(nil, repository.ErrNotFound).Once()
	store.On("Count", ctx).Return(int64(1), nil).Once()
	store.On("GetAt", ctx, 0).Return(survivor, nil).Once()

	svc := NewCafeService(store, allowAll{}, quietLogger)
	svc.intn = func(n int) int { return n - 1 }

	cafe, err := svc.RandomOne(ctx)
	require.NoError(t, err)
	assert.Equal(t, survivor, cafe)
	store.AssertExpectations(t)
}

func TestImport(t *testing.T) {
	svc := setupService(t)
	ctx := context.Background()

	mustCreate(t, svc, cafeInput("Existing", "London"))

	noSeats := cafeInput("No Seats", "Leeds")
	noSeats.Seats = nil

	report, err := svc.Import(ctx, []ImportRow{
		{Number: 2, Cafe: cafeInput("Costa", "London")},
		{Number: 3, Cafe: noSeats},
		{Number: 4, Cafe: cafeInput("Existing", "Paris")},
		{Number: 5, Cafe: cafeInput("Nero", "Leeds")},
	})
	require.NoError(t, err)

	assert.Equal(t, 2, report.Added)
	require.Len(t, report.Skipped, 2)
	assert.Equal(t, 3, report.Skipped[0].Row)
	assert.Contains(t, report.Skipped[0].Error, "seats")
	assert.Equal(t, 4, report.Skipped[1].Row)
	assert.Contains(t, report.Skipped[1].Error, "Existing")

	list, err := svc.ListAll(ctx)
	require.NoError(t, err)
	assert.Equal(t, 3, list.Total)
}

func TestImportStopsOnStoreFailure(t *testing.T) {
	ctx := context.Background()
	down := errors.New("disk full")

	store := new(MockCafeStore)
	store.On("Insert", ctx, mock.Anything).Return(nil).Once()
	store.On("Insert", ctx, mock.Anything).Return(down).Once()

	svc := NewCafeService(store, allowAll{}, quietLogger)
	report, err := svc.Import(ctx, []ImportRow{
		{Number: 2, Cafe: cafeInput("A", "X")},
		{Number: 3, Cafe: cafeInput("B", "X")},
		{Number: 4, Cafe: cafeInput("C", "X")},
	})
	assert.ErrorIs(t, err, down)
	assert.Equal(t, 1, report.Added)
	store.AssertExpectations(t)
}

func TestOutcomeString(t *testing.T) {
	assert.Equal(t, "success", OK.String())
	assert.Equal(t, "Not Found", NotFound.String())
	assert.Equal(t, "Not Allowed", NotAllowed.String())
}
