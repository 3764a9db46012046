package repositories

import (
	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/KOUADIODANIEL/BIBLOTHEQUE/internal/models"
)

// MemberSearch narrows List results; zero value matches everything.
type MemberSearch struct {
	Query string // matches number, name, first name or class
	Role  models.MemberRole
}

type MemberRepository interface {
	Create(db *gorm.DB, member *models.Member) error
	GetByID(db *gorm.DB, id uuid.UUID) (*models.Member, error)
	Update(db *gorm.DB, id uuid.UUID, fields map[string]interface{}) error
	List(db *gorm.DB, search MemberSearch) ([]models.Member, error)
}

type memberRepository struct {
	db *gorm.DB
}

func NewMemberRepository(db *gorm.DB) MemberRepository {
	return &memberRepository{db: db}
}

func (r *memberRepository) Create(db *gorm.DB, member *models.Member) error {
	if db == nil {
		db = r.db
	}
	return db.Create(member).Error
}

func (r *memberRepository) GetByID(db *gorm.DB, id uuid.UUID) (*models.Member, error) {
	if db == nil {
		db = r.db
	}
	var member models.Member
	if err := db.First(&member, "id = ?", id).Error; err != nil {
		return nil, err
	}
	return &member, nil
}

func (r *memberRepository) Update(db *gorm.DB, id uuid.UUID, fields map[string]interface{}) error {
	if db == nil {
		db = r.db
	}
	return db.Model(&models.Member{}).
		Where("id = ?", id).
		Updates(fields).
		Error
}

func (r *memberRepository) List(db *gorm.DB, search MemberSearch) ([]models.Member, error) {
	if db == nil {
		db = r.db
	}
	q := db.Model(&models.Member{})
	if search.Query != "" {
		like := "%" + search.Query + "%"
		q = q.Where(
			"number ILIKE ? OR name ILIKE ? OR first_name ILIKE ? OR class ILIKE ?",
			like, like, like, like,
		)
	}
	if search.Role != "" {
		q = q.Where("role = ?", search.Role)
	}
	var members []models.Member
	if err := q.Order("name, first_name").Find(&members).Error; err != nil {
		return nil, err
	}
	return members, nil
}
