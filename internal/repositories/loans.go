package repositories

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/KOUADIODANIEL/BIBLOTHEQUE/internal/models"
)

type LoanRepository interface {
	Create(db *gorm.DB, loan *models.Loan) error
	GetByID(db *gorm.DB, id uuid.UUID) (*models.Loan, error)
	// GetByIDForUpdate locks the loan row and preloads its Copy, needed by
	// return/renew to reach the copy and its book.
	GetByIDForUpdate(db *gorm.DB, id uuid.UUID) (*models.Loan, error)
	CountActiveByMember(db *gorm.DB, memberID uuid.UUID) (int64, error)
	MarkReturned(db *gorm.DB, loanID uuid.UUID, returnedAt time.Time) error
	Renew(db *gorm.DB, loanID uuid.UUID, newDueAt time.Time) error
	ListByMember(db *gorm.DB, memberID uuid.UUID) ([]models.Loan, error)
}

type loanRepository struct {
	db *gorm.DB
}

func NewLoanRepository(db *gorm.DB) LoanRepository {
	return &loanRepository{db: db}
}

func (r *loanRepository) Create(db *gorm.DB, loan *models.Loan) error {
	if db == nil {
		db = r.db
	}
	return db.Create(loan).Error
}

func (r *loanRepository) GetByID(db *gorm.DB, id uuid.UUID) (*models.Loan, error) {
	if db == nil {
		db = r.db
	}
	var loan models.Loan
	if err := db.First(&loan, "id = ?", id).Error; err != nil {
		return nil, err
	}
	return &loan, nil
}

func (r *loanRepository) GetByIDForUpdate(db *gorm.DB, id uuid.UUID) (*models.Loan, error) {
	if db == nil {
		db = r.db
	}
	var loan models.Loan
	err := db.
		Clauses(clause.Locking{Strength: "UPDATE"}).
		Preload("Copy").
		First(&loan, "id = ?", id).Error
	if err != nil {
		return nil, err
	}
	return &loan, nil
}

func (r *loanRepository) CountActiveByMember(db *gorm.DB, memberID uuid.UUID) (int64, error) {
	if db == nil {
		db = r.db
	}
	var n int64
	err := db.Model(&models.Loan{}).
		Where("member_id = ? AND status = ?", memberID, models.LoanStatusActive).
		Count(&n).Error
	return n, err
}

func (r *loanRepository) MarkReturned(db *gorm.DB, loanID uuid.UUID, returnedAt time.Time) error {
	if db == nil {
		db = r.db
	}
	return db.Model(&models.Loan{}).
		Where("id = ? AND status <> ?", loanID, models.LoanStatusClosed).
		Updates(map[string]interface{}{
			"returned_at": returnedAt,
			"status":      models.LoanStatusClosed,
		}).Error
}

func (r *loanRepository) Renew(db *gorm.DB, loanID uuid.UUID, newDueAt time.Time) error {
	if db == nil {
		db = r.db
	}
	return db.Model(&models.Loan{}).
		Where("id = ?", loanID).
		Updates(map[string]interface{}{
			"due_at":   newDueAt,
			"renewals": gorm.Expr("renewals + 1"),
		}).Error
}

func (r *loanRepository) ListByMember(db *gorm.DB, memberID uuid.UUID) ([]models.Loan, error) {
	if db == nil {
		db = r.db
	}
	var loans []models.Loan
	if err := db.Where("member_id = ?", memberID).
		Order("loaned_at DESC").
		Find(&loans).Error; err != nil {
		return nil, err
	}
	return loans, nil
}
