package repository

import (
	"context"
	"errors"
	"strings"
	"unicode/utf8"

	"cafeapi/model"

	"github.com/jackc/pgx/v5/pgconn"
	"gorm.io/gorm"
	"modernc.org/sqlite"
	sqlite3 "modernc.org/sqlite/lib"
)

var (
	ErrNotFound      = errors.New("cafe not found")
	ErrDuplicateName = errors.New("cafe name already exists")
)

const pgUniqueViolation = "23505"

// CafeRepository is the record store. It enforces column constraints only;
// every mutating call is a single statement, so callers see either the full
// commit or nothing.
type CafeRepository struct {
	DB *gorm.DB
}

func NewCafeRepository(db *gorm.DB) *CafeRepository {
	return &CafeRepository{DB: db}
}

func (r *CafeRepository) Insert(ctx context.Context, cafe *model.Cafe) error {
	if err := r.DB.WithContext(ctx).Create(cafe).Error; err != nil {
		if isUniqueViolation(err) {
			return ErrDuplicateName
		}
		return err
	}
	return nil
}

func (r *CafeRepository) GetByID(ctx context.Context, id uint) (*model.Cafe, error) {
	var cafe model.Cafe
	if err := r.DB.WithContext(ctx).First(&cafe, id).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrNotFound
		}
		return nil, err
	}
	return &cafe, nil
}

func (r *CafeRepository) GetAll(ctx context.Context) ([]model.Cafe, error) {
	var cafes []model.Cafe
	if err := r.DB.WithContext(ctx).Order("id ASC").Find(&cafes).Error; err != nil {
		return nil, err
	}
	return cafes, nil
}

func (r *CafeRepository) Count(ctx context.Context) (int64, error) {
	var n int64
	if err := r.DB.WithContext(ctx).Model(&model.Cafe{}).Count(&n).Error; err != nil {
		return 0, err
	}
	return n, nil
}

// GetAt returns the cafe at position offset in id order.
func (r *CafeRepository) GetAt(ctx context.Context, offset int) (*model.Cafe, error) {
	var cafe model.Cafe
	err := r.DB.WithContext(ctx).
		Order("id ASC").
		Offset(offset).
		Limit(1).
		Take(&cafe).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrNotFound
		}
		return nil, err
	}
	return &cafe, nil
}

// FindByLocationPrefix matches location against prefix exactly and
// case-sensitively. LIKE is avoided because SQLite folds ASCII case and
// treats % and _ in the prefix as wildcards.
func (r *CafeRepository) FindByLocationPrefix(ctx context.Context, prefix string) ([]model.Cafe, error) {
	var cafes []model.Cafe
	err := r.DB.WithContext(ctx).
		Where("substr(location, 1, ?) = ?", utf8.RuneCountInString(prefix), prefix).
		Order("id ASC").
		Find(&cafes).Error
	if err != nil {
		return nil, err
	}
	return cafes, nil
}

func (r *CafeRepository) UpdateCoffeePrice(ctx context.Context, id uint, price string) error {
	res := r.DB.WithContext(ctx).
		Model(&model.Cafe{}).
		Where("id = ?", id).
		Update("coffee_price", price)
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return ErrNotFound
	}
	return nil
}

func (r *CafeRepository) DeleteByID(ctx context.Context, id uint) error {
	res := r.DB.WithContext(ctx).Delete(&model.Cafe{}, id)
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return ErrNotFound
	}
	return nil
}

func isUniqueViolation(err error) bool {
	if errors.Is(err, gorm.ErrDuplicatedKey) {
		return true
	}

	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		return pgErr.Code == pgUniqueViolation
	}

	var liteErr *sqlite.Error
	if errors.As(err, &liteErr) {
		code := liteErr.Code()
		return code == sqlite3.SQLITE_CONSTRAINT_UNIQUE || code == sqlite3.SQLITE_CONSTRAINT_PRIMARYKEY
	}

	return strings.Contains(err.Error(), "UNIQUE constraint failed")
}
