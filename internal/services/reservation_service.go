package services

import (
	"errors"
	"log"
	"strings"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/KOUADIODANIEL/BIBLOTHEQUE/internal/metrics"
	"github.com/KOUADIODANIEL/BIBLOTHEQUE/internal/models"
	"github.com/KOUADIODANIEL/BIBLOTHEQUE/internal/notify"
	"github.com/KOUADIODANIEL/BIBLOTHEQUE/internal/repositories"
)

// ReservationService manages the per-book FIFO waiting list. Ranks among
// queued reservations for one book always read 1..n in (rank, created_at)
// order; every mutation that removes an entry from the queue renumbers the
// remainder under the same per-book lock.
type ReservationService interface {
	CreateReservation(bookID, memberID uuid.UUID) (*models.Reservation, error)
	Notify(reservationID uuid.UUID) (*models.Reservation, error)
	Expire(reservationID uuid.UUID) (*models.Reservation, error)
	Collect(reservationID uuid.UUID) (*models.Reservation, error)
	// Advance promotes the queue head to NOTIFIED. It is the explicit
	// follow-up to a return, an expiry or a collection.
	Advance(bookID uuid.UUID) (*models.Reservation, error)
	ListBookReservations(bookID uuid.UUID) ([]models.Reservation, error)
}

type reservationService struct {
	db              *gorm.DB
	policies        Policies
	memberRepo      repositories.MemberRepository
	bookRepo        repositories.BookRepository
	reservationRepo repositories.ReservationRepository
	notifier        notify.Notifier
}

// NewReservationService wires up the reservation queue.
func NewReservationService(
	db *gorm.DB,
	policies Policies,
	memberRepo repositories.MemberRepository,
	bookRepo repositories.BookRepository,
	reservationRepo repositories.ReservationRepository,
	notifier notify.Notifier,
) ReservationService {
	return &reservationService{
		db:              db,
		policies:        policies,
		memberRepo:      memberRepo,
		bookRepo:        bookRepo,
		reservationRepo: reservationRepo,
		notifier:        notifier,
	}
}

// CreateReservation appends the member to the book's queue.
//
// Concurrent reservers serialize on the book row lock. Locking the
// reservation rows alone is not enough: an empty queue has no rows to lock,
// so two first-time reservers would both compute rank 1. The book always
// exists, so its row lock always bites. The DB's partial unique index on
// (book_id, rank) stays as the backstop, with a savepoint-guarded retry.
func (s *reservationService) CreateReservation(bookID, memberID uuid.UUID) (*models.Reservation, error) {
	var created *models.Reservation

	err := s.db.Transaction(func(tx *gorm.DB) error {
		if _, err := s.bookRepo.GetByIDForUpdate(tx, bookID); err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return ErrBookNotFound
			}
			return err
		}
		if _, err := s.memberRepo.GetByID(tx, memberID); err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return ErrMemberNotFound
			}
			return err
		}

		existing, err := s.reservationRepo.GetActiveByBookAndMember(tx, bookID, memberID)
		if err != nil && !errors.Is(err, gorm.ErrRecordNotFound) {
			return err
		}
		if existing != nil {
			log.Printf("[WARN] CreateReservation: member %s already has reservation %s for book %s",
				memberID, existing.ID, bookID)
			return ErrDuplicateReservation
		}

		res, err := s.createWithRetry(tx, bookID, memberID)
		if err != nil {
			log.Printf("[ERROR] CreateReservation: failed for member %s / book %s: %v", memberID, bookID, err)
			return err
		}
		created = res
		return nil
	})

	if err != nil {
		metrics.OperationFailures.WithLabelValues("create_reservation").Inc()
		return nil, err
	}
	metrics.ReservationsCreated.Inc()
	log.Printf("[INFO] CreateReservation: reservation %s at rank %d for member %s / book %s",
		created.ID, created.Rank, memberID, bookID)
	return created, nil
}

// createWithRetry inserts the reservation, recomputing the rank once if a
// concurrent reserver claimed it first (PostgreSQL 23505 unique_violation).
// The insert runs under a savepoint: a failed INSERT aborts the enclosing
// transaction otherwise, and the retry would hit a dead connection.
func (s *reservationService) createWithRetry(tx *gorm.DB, bookID, memberID uuid.UUID) (*models.Reservation, error) {
	rank, err := s.reservationRepo.NextQueueRank(tx, bookID)
	if err != nil {
		return nil, err
	}

	res := &models.Reservation{
		BookID:    bookID,
		MemberID:  memberID,
		Rank:      rank,
		Status:    models.ReservationStatusQueued,
		CreatedAt: time.Now().UTC(),
	}
	if err := tx.SavePoint("reservation_insert").Error; err != nil {
		return nil, err
	}
	if err := s.reservationRepo.Create(tx, res); err != nil {
		if !isUniqueViolation(err) {
			return nil, err
		}
		if err := tx.RollbackTo("reservation_insert").Error; err != nil {
			return nil, err
		}
		log.Printf("[WARN] CreateReservation: rank collision at %d for book %s, retrying", rank, bookID)
		rank, err = s.reservationRepo.NextQueueRank(tx, bookID)
		if err != nil {
			return nil, err
		}
		res = &models.Reservation{
			BookID:    bookID,
			MemberID:  memberID,
			Rank:      rank,
			Status:    models.ReservationStatusQueued,
			CreatedAt: time.Now().UTC(),
		}
		if err := s.reservationRepo.Create(tx, res); err != nil {
			return nil, err
		}
	}
	return res, nil
}

// isUniqueViolation checks for PostgreSQL error code 23505 (unique_violation).
func isUniqueViolation(err error) bool {
	return err != nil && strings.Contains(err.Error(), "23505")
}

// Notify marks a queued reservation as ready for pickup and opens the
// collection window. The external notice goes out after the commit and its
// outcome never affects the stored state.
func (s *reservationService) Notify(reservationID uuid.UUID) (*models.Reservation, error) {
	res, err := s.promote(reservationID, uuid.Nil)
	if err != nil {
		metrics.OperationFailures.WithLabelValues("notify_reservation").Inc()
		return nil, err
	}
	s.sendNotice(res)
	return res, nil
}

// Advance promotes the head of the book's queue to NOTIFIED.
func (s *reservationService) Advance(bookID uuid.UUID) (*models.Reservation, error) {
	res, err := s.promote(uuid.Nil, bookID)
	if err != nil {
		metrics.OperationFailures.WithLabelValues("advance_queue").Inc()
		return nil, err
	}
	s.sendNotice(res)
	return res, nil
}

// promote moves one queued reservation to NOTIFIED: the one identified by
// reservationID, or the queue head of bookID when reservationID is Nil.
func (s *reservationService) promote(reservationID, bookID uuid.UUID) (*models.Reservation, error) {
	var updated *models.Reservation

	err := s.db.Transaction(func(tx *gorm.DB) error {
		var res *models.Reservation
		var err error

		if reservationID != uuid.Nil {
			// Unlocked read first to learn the book, then the per-book
			// queue lock (same lock order as CreateReservation), then a
			// re-read now that the row is stable.
			res, err = s.reservationRepo.GetByID(tx, reservationID)
			if err != nil {
				if errors.Is(err, gorm.ErrRecordNotFound) {
					return ErrReservationNotFound
				}
				return err
			}
			if err := s.reservationRepo.LockQueue(tx, res.BookID); err != nil {
				return err
			}
			res, err = s.reservationRepo.GetByID(tx, reservationID)
			if err != nil {
				return err
			}
		} else {
			if err := s.reservationRepo.LockQueue(tx, bookID); err != nil {
				return err
			}
			res, err = s.reservationRepo.NextQueuedForBook(tx, bookID)
			if err != nil {
				if errors.Is(err, gorm.ErrRecordNotFound) {
					return ErrReservationNotFound
				}
				return err
			}
		}

		if res.Status != models.ReservationStatusQueued {
			log.Printf("[WARN] Notify: reservation %s is %s, not QUEUED", res.ID, res.Status)
			return ErrReservationNotQueued
		}

		expires := time.Now().UTC().Add(s.policies.NotifyWindow)
		if err := s.reservationRepo.SetStatus(tx, res.ID, models.ReservationStatusNotified, &expires); err != nil {
			log.Printf("[ERROR] Notify: failed to mark reservation %s notified: %v", res.ID, err)
			return err
		}
		// The entry left the queue; close the rank gap.
		if err := s.reservationRepo.RenumberQueued(tx, res.BookID); err != nil {
			return err
		}

		reloaded, err := s.reservationRepo.GetByID(tx, res.ID)
		if err != nil {
			return err
		}
		updated = reloaded
		return nil
	})
	if err != nil {
		return nil, err
	}
	log.Printf("[INFO] Notify: reservation %s notified, collectible until %s",
		updated.ID, updated.ExpiresAt.Format("2006-01-02 15:04"))
	return updated, nil
}

// sendNotice fires the external notification. Best effort only.
func (s *reservationService) sendNotice(res *models.Reservation) {
	member, err := s.memberRepo.GetByID(nil, res.MemberID)
	if err != nil {
		log.Printf("[WARN] Notify: could not load member %s for notice: %v", res.MemberID, err)
		return
	}
	book, err := s.bookRepo.GetByID(nil, res.BookID)
	if err != nil {
		log.Printf("[WARN] Notify: could not load book %s for notice: %v", res.BookID, err)
		return
	}
	if err := s.notifier.ReservationReady(res, member, book); err != nil {
		log.Printf("[WARN] Notify: notice for reservation %s failed: %v", res.ID, err)
	}
}

// Expire marks a reservation as lapsed. It does not promote the next entry;
// callers decide when to Advance.
func (s *reservationService) Expire(reservationID uuid.UUID) (*models.Reservation, error) {
	res, err := s.finalize(reservationID, models.ReservationStatusExpired)
	if err != nil {
		metrics.OperationFailures.WithLabelValues("expire_reservation").Inc()
		return nil, err
	}
	return res, nil
}

// Collect records that the member picked the book up. Only a notified
// reservation can be collected.
func (s *reservationService) Collect(reservationID uuid.UUID) (*models.Reservation, error) {
	res, err := s.finalize(reservationID, models.ReservationStatusCollected)
	if err != nil {
		metrics.OperationFailures.WithLabelValues("collect_reservation").Inc()
		return nil, err
	}
	return res, nil
}

// finalize moves a reservation to a terminal status and, if it was still
// queued, renumbers the remaining queue.
func (s *reservationService) finalize(reservationID uuid.UUID, target models.ReservationStatus) (*models.Reservation, error) {
	var updated *models.Reservation

	err := s.db.Transaction(func(tx *gorm.DB) error {
		res, err := s.reservationRepo.GetByID(tx, reservationID)
		if err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return ErrReservationNotFound
			}
			return err
		}
		// Per-book queue lock covers this row and keeps the lock order
		// consistent with CreateReservation.
		if err := s.reservationRepo.LockQueue(tx, res.BookID); err != nil {
			return err
		}
		res, err = s.reservationRepo.GetByID(tx, reservationID)
		if err != nil {
			return err
		}

		switch res.Status {
		case models.ReservationStatusExpired, models.ReservationStatusCollected:
			log.Printf("[WARN] %s: reservation %s is already %s", target, reservationID, res.Status)
			return ErrReservationFinal
		case models.ReservationStatusQueued:
			if target == models.ReservationStatusCollected {
				// Collection requires a prior pickup notice.
				return ErrReservationNotQueued
			}
		}

		wasQueued := res.Status == models.ReservationStatusQueued
		if err := s.reservationRepo.SetStatus(tx, res.ID, target, nil); err != nil {
			log.Printf("[ERROR] %s: failed to update reservation %s: %v", target, reservationID, err)
			return err
		}
		if wasQueued {
			if err := s.reservationRepo.RenumberQueued(tx, res.BookID); err != nil {
				return err
			}
		}

		reloaded, err := s.reservationRepo.GetByID(tx, res.ID)
		if err != nil {
			return err
		}
		updated = reloaded
		return nil
	})
	if err != nil {
		return nil, err
	}
	log.Printf("[INFO] reservation %s is now %s", reservationID, target)
	return updated, nil
}

// ListBookReservations returns the book's reservations in queue order.
func (s *reservationService) ListBookReservations(bookID uuid.UUID) ([]models.Reservation, error) {
	return s.reservationRepo.ListByBook(nil, bookID)
}
