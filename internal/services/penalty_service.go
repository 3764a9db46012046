package services

import (
	"errors"
	"log"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/KOUADIODANIEL/BIBLOTHEQUE/internal/metrics"
	"github.com/KOUADIODANIEL/BIBLOTHEQUE/internal/models"
	"github.com/KOUADIODANIEL/BIBLOTHEQUE/internal/repositories"
)

// PenaltyService is the ledger of monetary charges. Late penalties are
// created by the loan engine on return; lost and damaged charges enter here.
type PenaltyService interface {
	// Settle clears the full balance. There is no partial payment.
	Settle(penaltyID uuid.UUID) (*models.Penalty, error)
	CreateManual(memberID uuid.UUID, loanID *uuid.UUID, penaltyType models.PenaltyType, amountCents int64) (*models.Penalty, error)
	ListMemberPenalties(memberID uuid.UUID) ([]models.Penalty, error)
}

type penaltyService struct {
	db          *gorm.DB
	memberRepo  repositories.MemberRepository
	loanRepo    repositories.LoanRepository
	penaltyRepo repositories.PenaltyRepository
}

// NewPenaltyService wires up the penalty ledger.
func NewPenaltyService(
	db *gorm.DB,
	memberRepo repositories.MemberRepository,
	loanRepo repositories.LoanRepository,
	penaltyRepo repositories.PenaltyRepository,
) PenaltyService {
	return &penaltyService{
		db:          db,
		memberRepo:  memberRepo,
		loanRepo:    loanRepo,
		penaltyRepo: penaltyRepo,
	}
}

// Settle zeroes a penalty's balance. The row lock keeps a concurrent
// double-settle from passing the already-settled guard twice.
func (s *penaltyService) Settle(penaltyID uuid.UUID) (*models.Penalty, error) {
	var updated *models.Penalty

	err := s.db.Transaction(func(tx *gorm.DB) error {
		penalty, err := s.penaltyRepo.GetByIDForUpdate(tx, penaltyID)
		if err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return ErrPenaltyNotFound
			}
			return err
		}
		if penalty.Settled {
			log.Printf("[WARN] Settle: penalty %s already settled", penaltyID)
			return ErrPenaltySettled
		}

		if err := s.penaltyRepo.Settle(tx, penalty.ID, time.Now().UTC()); err != nil {
			log.Printf("[ERROR] Settle: failed to settle penalty %s: %v", penaltyID, err)
			return err
		}

		reloaded, err := s.penaltyRepo.GetByID(tx, penaltyID)
		if err != nil {
			return err
		}
		updated = reloaded
		return nil
	})

	if err != nil {
		metrics.OperationFailures.WithLabelValues("settle_penalty").Inc()
		return nil, err
	}
	metrics.PenaltiesSettled.Inc()
	log.Printf("[INFO] Settle: penalty %s settled (%d cents) for member %s",
		penaltyID, updated.Amount, updated.MemberID)
	return updated, nil
}

// CreateManual records a lost or damaged charge entered by a librarian.
func (s *penaltyService) CreateManual(memberID uuid.UUID, loanID *uuid.UUID, penaltyType models.PenaltyType, amountCents int64) (*models.Penalty, error) {
	switch penaltyType {
	case models.PenaltyTypeLate, models.PenaltyTypeLost, models.PenaltyTypeDamaged:
	default:
		return nil, ErrInvalidInput
	}
	if amountCents <= 0 {
		return nil, ErrInvalidInput
	}

	var created *models.Penalty
	err := s.db.Transaction(func(tx *gorm.DB) error {
		if _, err := s.memberRepo.GetByID(tx, memberID); err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return ErrMemberNotFound
			}
			return err
		}
		if loanID != nil {
			if _, err := s.loanRepo.GetByID(tx, *loanID); err != nil {
				if errors.Is(err, gorm.ErrRecordNotFound) {
					return ErrLoanNotFound
				}
				return err
			}
		}

		penalty := &models.Penalty{
			LoanID:   loanID,
			MemberID: memberID,
			Type:     penaltyType,
			Amount:   amountCents,
			Balance:  amountCents,
			Settled:  false,
		}
		if err := s.penaltyRepo.Create(tx, penalty); err != nil {
			log.Printf("[ERROR] CreateManual: failed to create %s penalty for member %s: %v",
				penaltyType, memberID, err)
			return err
		}
		created = penalty
		return nil
	})
	if err != nil {
		metrics.OperationFailures.WithLabelValues("create_penalty").Inc()
		return nil, err
	}
	log.Printf("[INFO] CreateManual: %s penalty of %d cents recorded for member %s",
		penaltyType, amountCents, memberID)
	return created, nil
}

// ListMemberPenalties returns the member's penalties, newest first.
func (s *penaltyService) ListMemberPenalties(memberID uuid.UUID) ([]models.Penalty, error) {
	return s.penaltyRepo.ListByMember(nil, memberID)
}
