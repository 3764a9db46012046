package models

import (
	"time"

	"github.com/google/uuid"
)

type MemberRole string

const (
	MemberRoleStudent MemberRole = "STUDENT"
	MemberRoleTeacher MemberRole = "TEACHER"
)

type CopyCondition string

const (
	CopyConditionGood    CopyCondition = "GOOD"
	CopyConditionWorn    CopyCondition = "WORN"
	CopyConditionDamaged CopyCondition = "DAMAGED"
)

type LoanStatus string

const (
	LoanStatusActive LoanStatus = "ACTIVE"
	LoanStatusClosed LoanStatus = "CLOSED"

	// LoanStatusOverdue is derived, never stored: a loan is overdue when it
	// is ACTIVE and past its due date.
	LoanStatusOverdue LoanStatus = "OVERDUE"
)

type ReservationStatus string

const (
	ReservationStatusQueued    ReservationStatus = "QUEUED"
	ReservationStatusNotified  ReservationStatus = "NOTIFIED"
	ReservationStatusCollected ReservationStatus = "COLLECTED"
	ReservationStatusExpired   ReservationStatus = "EXPIRED"
)

type PenaltyType string

const (
	PenaltyTypeLate    PenaltyType = "LATE"
	PenaltyTypeLost    PenaltyType = "LOST"
	PenaltyTypeDamaged PenaltyType = "DAMAGED"
)

// Member is a registered library patron. The Role drives every policy lookup
// (loan duration, loan cap, renewal cap).
type Member struct {
	ID        uuid.UUID  `gorm:"type:uuid;default:uuid_generate_v4();primaryKey" json:"id"`
	Number    string     `gorm:"size:50;not null;uniqueIndex" json:"number"`
	Name      string     `gorm:"size:150;not null" json:"name"`
	FirstName string     `gorm:"size:150" json:"first_name"`
	Class     string     `gorm:"size:100" json:"class"`
	Email     string     `gorm:"size:255" json:"email"`
	Phone     string     `gorm:"size:30" json:"phone"`
	Role      MemberRole `gorm:"size:20;not null;default:STUDENT" json:"role"`
	Active    bool       `gorm:"not null;default:true" json:"active"`
	CreatedAt time.Time  `gorm:"not null" json:"created_at"`
	UpdatedAt time.Time  `gorm:"not null" json:"updated_at"`
}

// Book is catalogue metadata; physical instances live in Copy.
type Book struct {
	ID         uuid.UUID `gorm:"type:uuid;default:uuid_generate_v4();primaryKey" json:"id"`
	ISBN       string    `gorm:"size:20;index" json:"isbn"`
	Title      string    `gorm:"size:300;not null" json:"title"`
	Author     string    `gorm:"size:300" json:"author"`
	Publisher  string    `gorm:"size:200" json:"publisher"`
	Year       int       `json:"year"`
	Theme      string    `gorm:"size:150;index" json:"theme"`
	CallNumber string    `gorm:"size:50" json:"call_number"`
	Summary    string    `gorm:"type:text" json:"summary"`
	CreatedAt  time.Time `gorm:"not null" json:"created_at"`
	UpdatedAt  time.Time `gorm:"not null" json:"updated_at"`
}

// Copy is one physical instance of a Book, identified by its barcode.
// Invariant: Available is true iff no non-CLOSED loan references the copy.
type Copy struct {
	ID         uuid.UUID     `gorm:"type:uuid;default:uuid_generate_v4();primaryKey" json:"id"`
	BookID     uuid.UUID     `gorm:"type:uuid;not null;index" json:"book_id"`
	Book       Book          `gorm:"constraint:OnUpdate:CASCADE,OnDelete:CASCADE;" json:"-"`
	Barcode    string        `gorm:"size:100;not null;uniqueIndex" json:"barcode"`
	Condition  CopyCondition `gorm:"size:20;not null;default:GOOD" json:"condition"`
	Location   string        `gorm:"size:100" json:"location"`
	Available  bool          `gorm:"not null;default:true;index" json:"available"`
	AcquiredAt *time.Time    `json:"acquired_at"`
}

// Loan links a Copy to a Member for a period. Loans are never deleted; a
// returned loan is CLOSED and kept as audit trail. At most one non-CLOSED
// loan may exist per copy (partial unique index, see scripts/schema.sql).
type Loan struct {
	ID         uuid.UUID  `gorm:"type:uuid;default:uuid_generate_v4();primaryKey" json:"id"`
	CopyID     uuid.UUID  `gorm:"type:uuid;not null;index" json:"copy_id"`
	Copy       Copy       `gorm:"constraint:OnUpdate:CASCADE,OnDelete:RESTRICT;" json:"-"`
	MemberID   uuid.UUID  `gorm:"type:uuid;not null;index" json:"member_id"`
	Member     Member     `gorm:"constraint:OnUpdate:CASCADE,OnDelete:RESTRICT;" json:"-"`
	LoanedAt   time.Time  `gorm:"not null" json:"loaned_at"`
	DueAt      time.Time  `gorm:"not null" json:"due_at"`
	ReturnedAt *time.Time `json:"returned_at"`
	Renewals   int        `gorm:"not null;default:0" json:"renewals"`
	Status     LoanStatus `gorm:"size:20;not null;default:ACTIVE;index" json:"status"`
	CreatedAt  time.Time  `gorm:"not null" json:"created_at"`
	UpdatedAt  time.Time  `gorm:"not null" json:"updated_at"`
}

// EffectiveStatus applies the derived OVERDUE transition: an ACTIVE loan past
// its due date reads as OVERDUE. The stored status never holds OVERDUE.
func (l *Loan) EffectiveStatus(now time.Time) LoanStatus {
	if l.Status == LoanStatusActive && now.After(l.DueAt) {
		return LoanStatusOverdue
	}
	return l.Status
}

// Reservation is a waiting-list entry for a Book. Ranks among QUEUED
// reservations for one book form a contiguous sequence starting at 1.
type Reservation struct {
	ID        uuid.UUID         `gorm:"type:uuid;default:uuid_generate_v4();primaryKey" json:"id"`
	BookID    uuid.UUID         `gorm:"type:uuid;not null;index" json:"book_id"`
	Book      Book              `gorm:"constraint:OnUpdate:CASCADE,OnDelete:CASCADE;" json:"-"`
	MemberID  uuid.UUID         `gorm:"type:uuid;not null;index" json:"member_id"`
	Member    Member            `gorm:"constraint:OnUpdate:CASCADE,OnDelete:CASCADE;" json:"-"`
	Rank      int               `gorm:"not null;index" json:"rank"`
	Status    ReservationStatus `gorm:"size:20;not null;default:QUEUED;index" json:"status"`
	CreatedAt time.Time         `gorm:"not null" json:"created_at"`
	ExpiresAt *time.Time        `json:"expires_at"`
}

// Penalty is a monetary charge against a Member, optionally tracing back to
// the Loan that caused it. Amounts are integer cents. Invariant: Settled
// implies Balance == 0.
type Penalty struct {
	ID        uuid.UUID   `gorm:"type:uuid;default:uuid_generate_v4();primaryKey" json:"id"`
	LoanID    *uuid.UUID  `gorm:"type:uuid;index" json:"loan_id"`
	Loan      *Loan       `gorm:"constraint:OnUpdate:CASCADE,OnDelete:SET NULL;" json:"-"`
	MemberID  uuid.UUID   `gorm:"type:uuid;not null;index" json:"member_id"`
	Member    Member      `gorm:"constraint:OnUpdate:CASCADE,OnDelete:CASCADE;" json:"-"`
	Type      PenaltyType `gorm:"size:20;not null" json:"type"`
	Amount    int64       `gorm:"not null" json:"amount_cents"`
	Balance   int64       `gorm:"not null" json:"balance_cents"`
	Settled   bool        `gorm:"not null;default:false" json:"settled"`
	SettledAt *time.Time  `json:"settled_at"`
	CreatedAt time.Time   `gorm:"not null" json:"created_at"`
}
