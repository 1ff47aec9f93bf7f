package storage

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/oakley-grocery/backend/internal/domain"
)

// preferenceRecord is the preferences table row
type preferenceRecord struct {
	ID            uint     `gorm:"primaryKey;autoIncrement"`
	GenericName   string   `gorm:"size:255;not null;uniqueIndex"`
	ProductCode   int64    `gorm:"not null"`
	ProductName   string   `gorm:"not null"`
	Brand         string
	PackageSize   string
	PurchaseCount int      `gorm:"not null;default:1;index"`
	LastPrice     *float64
	CreatedAt     time.Time
	UpdatedAt     time.Time
}

func (preferenceRecord) TableName() string {
	return "preferences"
}

func (r *preferenceRecord) toDomain() domain.Preference {
	return domain.Preference{
		ID:            r.ID,
		GenericName:   r.GenericName,
		ProductCode:   r.ProductCode,
		ProductName:   r.ProductName,
		Brand:         r.Brand,
		PackageSize:   r.PackageSize,
		PurchaseCount: r.PurchaseCount,
		LastPrice:     r.LastPrice,
		CreatedAt:     r.CreatedAt,
		UpdatedAt:     r.UpdatedAt,
	}
}

// PreferenceRepository persists preferences with gorm. Generic names are
// normalized here, so callers may pass any casing or padding.
type PreferenceRepository struct {
	db *gorm.DB
}

// NewPreferenceRepository creates a repository over an opened database
func NewPreferenceRepository(db *gorm.DB) *PreferenceRepository {
	return &PreferenceRepository{db: db}
}

// Get returns the preference for genericName or domain.ErrPreferenceNotFound
func (r *PreferenceRepository) Get(ctx context.Context, genericName string) (*domain.Preference, error) {
	var rec preferenceRecord
	err := r.db.WithContext(ctx).
		Where("generic_name = ?", domain.NormalizeGenericName(genericName)).
		Take(&rec).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, domain.ErrPreferenceNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("%w: %v", domain.ErrStoreUnavailable, err)
	}

	pref := rec.toDomain()
	return &pref, nil
}

// List returns every preference ordered by purchase count, most used first.
// Equal counts keep insertion order.
func (r *PreferenceRepository) List(ctx context.Context) ([]domain.Preference, error) {
	var recs []preferenceRecord
	err := r.db.WithContext(ctx).
		Order("purchase_count DESC").
		Order("id ASC").
		Find(&recs).Error
	if err != nil {
		return nil, fmt.Errorf("%w: %v", domain.ErrStoreUnavailable, err)
	}
	return toDomainList(recs), nil
}

// Search returns preferences whose generic name contains substring,
// most used first
func (r *PreferenceRepository) Search(ctx context.Context, substring string) ([]domain.Preference, error) {
	pattern := "%" + escapeLike(domain.NormalizeGenericName(substring)) + "%"

	var recs []preferenceRecord
	err := r.db.WithContext(ctx).
		Where("generic_name LIKE ? ESCAPE '\\'", pattern).
		Order("purchase_count DESC").
		Order("id ASC").
		Find(&recs).Error
	if err != nil {
		return nil, fmt.Errorf("%w: %v", domain.ErrStoreUnavailable, err)
	}
	return toDomainList(recs), nil
}

// Save upserts a preference and returns its id. An existing preference has
// its purchase count incremented and its product fields overwritten; the
// last price is only replaced when a new price is given.
func (r *PreferenceRepository) Save(ctx context.Context, input domain.PreferenceInput) (uint, error) {
	generic := domain.NormalizeGenericName(input.GenericName)
	if generic == "" {
		return 0, fmt.Errorf("%w: generic name is required", domain.ErrInvalidRequest)
	}

	rec := preferenceRecord{
		GenericName:   generic,
		ProductCode:   input.ProductCode,
		ProductName:   input.ProductName,
		Brand:         input.Brand,
		PackageSize:   input.PackageSize,
		PurchaseCount: 1,
		LastPrice:     input.Price,
	}

	var id uint
	err := r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		err := tx.Clauses(clause.OnConflict{
			Columns: []clause.Column{{Name: "generic_name"}},
			DoUpdates: clause.Assignments(map[string]interface{}{
				"product_code":   gorm.Expr("excluded.product_code"),
				"product_name":   gorm.Expr("excluded.product_name"),
				"brand":          gorm.Expr("excluded.brand"),
				"package_size":   gorm.Expr("excluded.package_size"),
				"purchase_count": gorm.Expr("preferences.purchase_count + 1"),
				"last_price":     gorm.Expr("COALESCE(excluded.last_price, preferences.last_price)"),
				"updated_at":     gorm.Expr("excluded.updated_at"),
			}),
		}).Create(&rec).Error
		if err != nil {
			return err
		}

		var saved preferenceRecord
		if err := tx.Select("id").Where("generic_name = ?", generic).Take(&saved).Error; err != nil {
			return err
		}
		id = saved.ID
		return nil
	})
	if err != nil {
		return 0, fmt.Errorf("%w: %v", domain.ErrStoreUnavailable, err)
	}

	return id, nil
}

// Delete removes the preference for genericName and reports whether one existed
func (r *PreferenceRepository) Delete(ctx context.Context, genericName string) (bool, error) {
	res := r.db.WithContext(ctx).
		Where("generic_name = ?", domain.NormalizeGenericName(genericName)).
		Delete(&preferenceRecord{})
	if res.Error != nil {
		return false, fmt.Errorf("%w: %v", domain.ErrStoreUnavailable, res.Error)
	}
	return res.RowsAffected > 0, nil
}

func toDomainList(recs []preferenceRecord) []domain.Preference {
	prefs := make([]domain.Preference, 0, len(recs))
	for i := range recs {
		prefs = append(prefs, recs[i].toDomain())
	}
	return prefs
}

// escapeLike escapes LIKE wildcards so user input matches literally.
func escapeLike(s string) string {
	r := strings.NewReplacer(`\`, `\\`, `%`, `\%`, `_`, `\_`)
	return r.Replace(s)
}
