package repositories

import (
	"github.com/google/uuid"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/KOUADIODANIEL/BIBLOTHEQUE/internal/models"
)

type CopyRepository interface {
	Create(db *gorm.DB, copy *models.Copy) error
	GetByID(db *gorm.DB, id uuid.UUID) (*models.Copy, error)
	GetByBarcode(db *gorm.DB, barcode string) (*models.Copy, error)
	// GetByIDForUpdate takes an exclusive row lock (SELECT ... FOR UPDATE)
	// held until the surrounding transaction commits.
	GetByIDForUpdate(db *gorm.DB, id uuid.UUID) (*models.Copy, error)
	Update(db *gorm.DB, id uuid.UUID, fields map[string]interface{}) error
	SetAvailable(db *gorm.DB, id uuid.UUID, available bool) error
	ListByBook(db *gorm.DB, bookID uuid.UUID) ([]models.Copy, error)
}

type copyRepository struct {
	db *gorm.DB
}

func NewCopyRepository(db *gorm.DB) CopyRepository {
	return &copyRepository{db: db}
}

func (r *copyRepository) Create(db *gorm.DB, copy *models.Copy) error {
	if db == nil {
		db = r.db
	}
	return db.Create(copy).Error
}

func (r *copyRepository) GetByID(db *gorm.DB, id uuid.UUID) (*models.Copy, error) {
	if db == nil {
		db = r.db
	}
	var copy models.Copy
	if err := db.First(&copy, "id = ?", id).Error; err != nil {
		return nil, err
	}
	return &copy, nil
}

func (r *copyRepository) GetByBarcode(db *gorm.DB, barcode string) (*models.Copy, error) {
	if db == nil {
		db = r.db
	}
	var copy models.Copy
	if err := db.First(&copy, "barcode = ?", barcode).Error; err != nil {
		return nil, err
	}
	return &copy, nil
}

func (r *copyRepository) GetByIDForUpdate(db *gorm.DB, id uuid.UUID) (*models.Copy, error) {
	if db == nil {
		db = r.db
	}
	var copy models.Copy
	err := db.
		Clauses(clause.Locking{Strength: "UPDATE"}).
		First(&copy, "id = ?", id).Error
	if err != nil {
		return nil, err
	}
	return &copy, nil
}

func (r *copyRepository) Update(db *gorm.DB, id uuid.UUID, fields map[string]interface{}) error {
	if db == nil {
		db = r.db
	}
	return db.Model(&models.Copy{}).
		Where("id = ?", id).
		Updates(fields).
		Error
}

func (r *copyRepository) SetAvailable(db *gorm.DB, id uuid.UUID, available bool) error {
	if db == nil {
		db = r.db
	}
	return db.Model(&models.Copy{}).
		Where("id = ?", id).
		Update("available", available).
		Error
}

func (r *copyRepository) ListByBook(db *gorm.DB, bookID uuid.UUID) ([]models.Copy, error) {
	if db == nil {
		db = r.db
	}
	var copies []models.Copy
	if err := db.Where("book_id = ?", bookID).
		Order("barcode").
		Find(&copies).Error; err != nil {
		return nil, err
	}
	return copies, nil
}
