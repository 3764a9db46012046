package repositories

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/KOUADIODANIEL/BIBLOTHEQUE/internal/models"
)

type PenaltyRepository interface {
	Create(db *gorm.DB, penalty *models.Penalty) error
	GetByID(db *gorm.DB, id uuid.UUID) (*models.Penalty, error)
	GetByIDForUpdate(db *gorm.DB, id uuid.UUID) (*models.Penalty, error)
	// Settle zeroes the balance and stamps the settlement time. The WHERE
	// guard keeps a concurrent double-settle from touching the row twice.
	Settle(db *gorm.DB, id uuid.UUID, settledAt time.Time) error
	ListByMember(db *gorm.DB, memberID uuid.UUID) ([]models.Penalty, error)
}

type penaltyRepository struct {
	db *gorm.DB
}

func NewPenaltyRepository(db *gorm.DB) PenaltyRepository {
	return &penaltyRepository{db: db}
}

func (r *penaltyRepository) Create(db *gorm.DB, penalty *models.Penalty) error {
	if db == nil {
		db = r.db
	}
	return db.Create(penalty).Error
}

func (r *penaltyRepository) GetByID(db *gorm.DB, id uuid.UUID) (*models.Penalty, error) {
	if db == nil {
		db = r.db
	}
	var penalty models.Penalty
	if err := db.First(&penalty, "id = ?", id).Error; err != nil {
		return nil, err
	}
	return &penalty, nil
}

func (r *penaltyRepository) GetByIDForUpdate(db *gorm.DB, id uuid.UUID) (*models.Penalty, error) {
	if db == nil {
		db = r.db
	}
	var penalty models.Penalty
	err := db.
		Clauses(clause.Locking{Strength: "UPDATE"}).
		First(&penalty, "id = ?", id).Error
	if err != nil {
		return nil, err
	}
	return &penalty, nil
}

func (r *penaltyRepository) Settle(db *gorm.DB, id uuid.UUID, settledAt time.Time) error {
	if db == nil {
		db = r.db
	}
	return db.Model(&models.Penalty{}).
		Where("id = ? AND NOT settled", id).
		Updates(map[string]interface{}{
			"settled":    true,
			"balance":    0,
			"settled_at": settledAt,
		}).Error
}

func (r *penaltyRepository) ListByMember(db *gorm.DB, memberID uuid.UUID) ([]models.Penalty, error) {
	if db == nil {
		db = r.db
	}
	var penalties []models.Penalty
	if err := db.Where("member_id = ?", memberID).
		Order("created_at DESC").
		Find(&penalties).Error; err != nil {
		return nil, err
	}
	return penalties, nil
}
