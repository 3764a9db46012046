package repositories

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/KOUADIODANIEL/BIBLOTHEQUE/internal/models"
)

type ReservationRepository interface {
	Create(db *gorm.DB, reservation *models.Reservation) error
	GetByID(db *gorm.DB, id uuid.UUID) (*models.Reservation, error)
	// LockQueue takes row locks on every reservation of the book, serializing
	// rank computation and renumbering across concurrent transactions.
	LockQueue(db *gorm.DB, bookID uuid.UUID) error
	// NextQueueRank locks the book's queue (see LockQueue) and returns
	// max queued rank + 1, or 1 for an empty queue.
	NextQueueRank(db *gorm.DB, bookID uuid.UUID) (int, error)
	HasQueuedForBook(db *gorm.DB, bookID uuid.UUID) (bool, error)
	// NextQueuedForBook returns the head of the queue, ordered by
	// (rank, created_at).
	NextQueuedForBook(db *gorm.DB, bookID uuid.UUID) (*models.Reservation, error)
	GetActiveByBookAndMember(db *gorm.DB, bookID, memberID uuid.UUID) (*models.Reservation, error)
	SetStatus(db *gorm.DB, id uuid.UUID, status models.ReservationStatus, expiresAt *time.Time) error
	// RenumberQueued rewrites queued ranks for a book to 1..n preserving
	// (rank, created_at) order. Callers must hold the per-book lock taken
	// by NextQueueRank or a row lock on the reservation being mutated.
	RenumberQueued(db *gorm.DB, bookID uuid.UUID) error
	ListByBook(db *gorm.DB, bookID uuid.UUID) ([]models.Reservation, error)
}

type reservationRepository struct {
	db *gorm.DB
}

func NewReservationRepository(db *gorm.DB) ReservationRepository {
	return &reservationRepository{db: db}
}

func (r *reservationRepository) Create(db *gorm.DB, reservation *models.Reservation) error {
	if db == nil {
		db = r.db
	}
	return db.Create(reservation).Error
}

func (r *reservationRepository) GetByID(db *gorm.DB, id uuid.UUID) (*models.Reservation, error) {
	if db == nil {
		db = r.db
	}
	var res models.Reservation
	if err := db.First(&res, "id = ?", id).Error; err != nil {
		return nil, err
	}
	return &res, nil
}

func (r *reservationRepository) LockQueue(db *gorm.DB, bookID uuid.UUID) error {
	if db == nil {
		db = r.db
	}
	// Lock all reservation rows for the book so rank reads and rewrites
	// cannot race with a concurrent reserver in another transaction.
	var ids []uuid.UUID
	return db.Model(&models.Reservation{}).
		Where("book_id = ?", bookID).
		Clauses(clause.Locking{Strength: "UPDATE"}).
		Pluck("id", &ids).Error
}

func (r *reservationRepository) NextQueueRank(db *gorm.DB, bookID uuid.UUID) (int, error) {
	if db == nil {
		db = r.db
	}
	if err := r.LockQueue(db, bookID); err != nil {
		return 0, err
	}
	var maxRank int
	if err := db.Model(&models.Reservation{}).
		Where("book_id = ? AND status = ?", bookID, models.ReservationStatusQueued).
		Select("COALESCE(MAX(rank), 0)").
		Scan(&maxRank).Error; err != nil {
		return 0, err
	}
	return maxRank + 1, nil
}

func (r *reservationRepository) HasQueuedForBook(db *gorm.DB, bookID uuid.UUID) (bool, error) {
	if db == nil {
		db = r.db
	}
	var n int64
	err := db.Model(&models.Reservation{}).
		Where("book_id = ? AND status = ?", bookID, models.ReservationStatusQueued).
		Count(&n).Error
	return n > 0, err
}

func (r *reservationRepository) NextQueuedForBook(db *gorm.DB, bookID uuid.UUID) (*models.Reservation, error) {
	if db == nil {
		db = r.db
	}
	var res models.Reservation
	err := db.Where("book_id = ? AND status = ?", bookID, models.ReservationStatusQueued).
		Order("rank ASC, created_at ASC").
		First(&res).Error
	if err != nil {
		return nil, err
	}
	return &res, nil
}

func (r *reservationRepository) GetActiveByBookAndMember(db *gorm.DB, bookID, memberID uuid.UUID) (*models.Reservation, error) {
	if db == nil {
		db = r.db
	}
	var res models.Reservation
	err := db.Where(
		"book_id = ? AND member_id = ? AND status IN ?",
		bookID, memberID,
		[]models.ReservationStatus{models.ReservationStatusQueued, models.ReservationStatusNotified},
	).First(&res).Error
	if err != nil {
		return nil, err
	}
	return &res, nil
}

func (r *reservationRepository) SetStatus(db *gorm.DB, id uuid.UUID, status models.ReservationStatus, expiresAt *time.Time) error {
	if db == nil {
		db = r.db
	}
	fields := map[string]interface{}{"status": status}
	if expiresAt != nil {
		fields["expires_at"] = *expiresAt
	}
	return db.Model(&models.Reservation{}).
		Where("id = ?", id).
		Updates(fields).
		Error
}

func (r *reservationRepository) RenumberQueued(db *gorm.DB, bookID uuid.UUID) error {
	if db == nil {
		db = r.db
	}
	var queued []models.Reservation
	if err := db.Where("book_id = ? AND status = ?", bookID, models.ReservationStatusQueued).
		Order("rank ASC, created_at ASC").
		Find(&queued).Error; err != nil {
		return err
	}
	for i, res := range queued {
		if res.Rank == i+1 {
			continue
		}
		if err := db.Model(&models.Reservation{}).
			Where("id = ?", res.ID).
			Update("rank", i+1).Error; err != nil {
			return err
		}
	}
	return nil
}

func (r *reservationRepository) ListByBook(db *gorm.DB, bookID uuid.UUID) ([]models.Reservation, error) {
	if db == nil {
		db = r.db
	}
	var res []models.Reservation
	if err := db.Where("book_id = ?", bookID).
		Order("rank ASC, created_at ASC").
		Find(&res).Error; err != nil {
		return nil, err
	}
	return res, nil
}
