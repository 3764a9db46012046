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

// LoanService is the circulation engine: it owns the loan state machine and
// every invariant around issuing, returning and renewing.
type LoanService interface {
	IssueLoan(copyID, memberID uuid.UUID) (*models.Loan, error)
	ReturnLoan(loanID uuid.UUID) (*models.Loan, error)
	RenewLoan(loanID uuid.UUID) (*models.Loan, error)
	ListMemberLoans(memberID uuid.UUID) ([]models.Loan, error)
}

type loanService struct {
	db              *gorm.DB
	policies        Policies
	memberRepo      repositories.MemberRepository
	copyRepo        repositories.CopyRepository
	loanRepo        repositories.LoanRepository
	reservationRepo repositories.ReservationRepository
	penaltyRepo     repositories.PenaltyRepository
}

// NewLoanService wires up the loan engine with its repositories and the
// static policy table.
func NewLoanService(
	db *gorm.DB,
	policies Policies,
	memberRepo repositories.MemberRepository,
	copyRepo repositories.CopyRepository,
	loanRepo repositories.LoanRepository,
	reservationRepo repositories.ReservationRepository,
	penaltyRepo repositories.PenaltyRepository,
) LoanService {
	return &loanService{
		db:              db,
		policies:        policies,
		memberRepo:      memberRepo,
		copyRepo:        copyRepo,
		loanRepo:        loanRepo,
		reservationRepo: reservationRepo,
		penaltyRepo:     penaltyRepo,
	}
}

// IssueLoan checks a copy out to a member.
//
// The copy row is locked (SELECT ... FOR UPDATE) before any dependent read,
// so two concurrent issues of the same copy serialize: the second caller sees
// available=false and gets ErrCopyUnavailable. The active-loan count against
// the role's cap runs under the same transaction.
func (s *loanService) IssueLoan(copyID, memberID uuid.UUID) (*models.Loan, error) {
	var created *models.Loan

	err := s.db.Transaction(func(tx *gorm.DB) error {
		copy, err := s.copyRepo.GetByIDForUpdate(tx, copyID)
		if err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return ErrCopyNotFound
			}
			return err
		}
		if !copy.Available {
			log.Printf("[WARN] IssueLoan: copy %s is not available", copyID)
			return ErrCopyUnavailable
		}

		member, err := s.memberRepo.GetByID(tx, memberID)
		if err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return ErrMemberNotFound
			}
			return err
		}
		if !member.Active {
			log.Printf("[WARN] IssueLoan: member %s is deactivated", memberID)
			return ErrMemberInactive
		}

		policy := s.policies.ForRole(member.Role)
		active, err := s.loanRepo.CountActiveByMember(tx, memberID)
		if err != nil {
			return err
		}
		if active >= int64(policy.MaxLoans) {
			log.Printf("[WARN] IssueLoan: member %s is at the loan cap (%d/%d)", memberID, active, policy.MaxLoans)
			return ErrLoanCapReached
		}

		now := time.Now().UTC()
		loan := &models.Loan{
			CopyID:   copy.ID,
			MemberID: member.ID,
			LoanedAt: now,
			DueAt:    now.AddDate(0, 0, policy.LoanDays),
			Renewals: 0,
			Status:   models.LoanStatusActive,
		}
		if err := s.loanRepo.Create(tx, loan); err != nil {
			log.Printf("[ERROR] IssueLoan: failed to create loan for copy %s / member %s: %v", copyID, memberID, err)
			return err
		}
		if err := s.copyRepo.SetAvailable(tx, copy.ID, false); err != nil {
			log.Printf("[ERROR] IssueLoan: failed to mark copy %s unavailable: %v", copyID, err)
			return err
		}
		created = loan
		return nil
	})

	if err != nil {
		metrics.OperationFailures.WithLabelValues("issue_loan").Inc()
		return nil, err
	}
	metrics.LoansIssued.Inc()
	log.Printf("[INFO] IssueLoan: loan %s created for member %s / copy %s, due %s",
		created.ID, memberID, copyID, created.DueAt.Format("2006-01-02"))
	return created, nil
}

// ReturnLoan closes a loan, frees its copy, and charges a late fee when the
// return happens after the due date.
//
// The loan row is locked first so a concurrent double-return gets
// ErrLoanClosed instead of closing twice. The penalty is written in the same
// transaction: a failure anywhere rolls everything back.
func (s *loanService) ReturnLoan(loanID uuid.UUID) (*models.Loan, error) {
	var updated *models.Loan

	err := s.db.Transaction(func(tx *gorm.DB) error {
		loan, err := s.loanRepo.GetByIDForUpdate(tx, loanID)
		if err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return ErrLoanNotFound
			}
			return err
		}
		if loan.Status == models.LoanStatusClosed {
			log.Printf("[WARN] ReturnLoan: loan %s already closed", loanID)
			return ErrLoanClosed
		}

		now := time.Now().UTC()
		if err := s.loanRepo.MarkReturned(tx, loan.ID, now); err != nil {
			log.Printf("[ERROR] ReturnLoan: failed to close loan %s: %v", loanID, err)
			return err
		}
		if err := s.copyRepo.SetAvailable(tx, loan.CopyID, true); err != nil {
			log.Printf("[ERROR] ReturnLoan: failed to release copy %s: %v", loan.CopyID, err)
			return err
		}

		if now.After(loan.DueAt) {
			fee := lateFeeCents(loan.DueAt, now, s.policies.DailyFineCents)
			penalty := &models.Penalty{
				LoanID:   &loan.ID,
				MemberID: loan.MemberID,
				Type:     models.PenaltyTypeLate,
				Amount:   fee,
				Balance:  fee,
				Settled:  false,
			}
			if err := s.penaltyRepo.Create(tx, penalty); err != nil {
				log.Printf("[ERROR] ReturnLoan: failed to create late penalty for loan %s: %v", loanID, err)
				return err
			}
			metrics.LatePenaltiesCreated.Inc()
			log.Printf("[INFO] ReturnLoan: loan %s returned late, penalty of %d cents charged to member %s",
				loanID, fee, loan.MemberID)
		}

		reloaded, err := s.loanRepo.GetByID(tx, loanID)
		if err != nil {
			return err
		}
		updated = reloaded
		return nil
	})

	if err != nil {
		metrics.OperationFailures.WithLabelValues("return_loan").Inc()
		return nil, err
	}
	metrics.LoansReturned.Inc()
	log.Printf("[INFO] ReturnLoan: loan %s closed, copy %s available again", loanID, updated.CopyID)
	return updated, nil
}

// RenewLoan extends a loan's due date by the role's loan duration.
//
// Renewal is refused while any queued reservation waits for the loan's book:
// the copy must go to the next reserver instead. The renewal cap is checked
// under the same lock that guards the due-date update, so concurrent renewals
// of one loan cannot both pass the cap.
func (s *loanService) RenewLoan(loanID uuid.UUID) (*models.Loan, error) {
	var updated *models.Loan

	err := s.db.Transaction(func(tx *gorm.DB) error {
		loan, err := s.loanRepo.GetByIDForUpdate(tx, loanID)
		if err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return ErrLoanNotFound
			}
			return err
		}
		if loan.Status == models.LoanStatusClosed {
			log.Printf("[WARN] RenewLoan: loan %s already closed", loanID)
			return ErrLoanClosed
		}

		queued, err := s.reservationRepo.HasQueuedForBook(tx, loan.Copy.BookID)
		if err != nil {
			return err
		}
		if queued {
			log.Printf("[WARN] RenewLoan: reservations exist for book %s, renewal of loan %s refused",
				loan.Copy.BookID, loanID)
			return ErrReservationsExist
		}

		member, err := s.memberRepo.GetByID(tx, loan.MemberID)
		if err != nil {
			return err
		}
		policy := s.policies.ForRole(member.Role)
		if loan.Renewals >= policy.MaxRenewals {
			log.Printf("[WARN] RenewLoan: loan %s is at the renewal cap (%d)", loanID, policy.MaxRenewals)
			return ErrRenewalCapReached
		}

		newDue := loan.DueAt.AddDate(0, 0, policy.LoanDays)
		if err := s.loanRepo.Renew(tx, loan.ID, newDue); err != nil {
			log.Printf("[ERROR] RenewLoan: failed to renew loan %s: %v", loanID, err)
			return err
		}

		reloaded, err := s.loanRepo.GetByID(tx, loanID)
		if err != nil {
			return err
		}
		updated = reloaded
		return nil
	})

	if err != nil {
		metrics.OperationFailures.WithLabelValues("renew_loan").Inc()
		return nil, err
	}
	metrics.LoansRenewed.Inc()
	log.Printf("[INFO] RenewLoan: loan %s renewed (%d), now due %s",
		loanID, updated.Renewals, updated.DueAt.Format("2006-01-02"))
	return updated, nil
}

// ListMemberLoans returns all loans for a member, newest first.
func (s *loanService) ListMemberLoans(memberID uuid.UUID) ([]models.Loan, error) {
	return s.loanRepo.ListByMember(nil, memberID)
}
