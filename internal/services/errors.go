package services

import (
	"errors"
	"fmt"
)

// Failure taxonomy. Every error returned by a service wraps exactly one of
// these four sentinels; handlers map them to HTTP status codes with errors.Is.
var (
	ErrNotFound      = errors.New("not found")
	ErrConflict      = errors.New("conflict")
	ErrLimitExceeded = errors.New("limit exceeded")
	ErrInvalidInput  = errors.New("invalid input")
)

var (
	// ErrMemberNotFound is returned when the referenced member does not exist.
	ErrMemberNotFound = fmt.Errorf("member %w", ErrNotFound)

	// ErrBookNotFound is returned when the referenced book does not exist.
	ErrBookNotFound = fmt.Errorf("book %w", ErrNotFound)

	// ErrCopyNotFound is returned when the referenced copy does not exist.
	ErrCopyNotFound = fmt.Errorf("copy %w", ErrNotFound)

	// ErrLoanNotFound is returned when the referenced loan does not exist.
	ErrLoanNotFound = fmt.Errorf("loan %w", ErrNotFound)

	// ErrReservationNotFound is returned when the referenced reservation does
	// not exist, or when Advance finds an empty queue.
	ErrReservationNotFound = fmt.Errorf("reservation %w", ErrNotFound)

	// ErrPenaltyNotFound is returned when the referenced penalty does not exist.
	ErrPenaltyNotFound = fmt.Errorf("penalty %w", ErrNotFound)

	// ErrCopyUnavailable is returned when issuing against a copy that is
	// already out on loan.
	ErrCopyUnavailable = fmt.Errorf("%w: copy is not available", ErrConflict)

	// ErrMemberInactive is returned when issuing to a deactivated member.
	ErrMemberInactive = fmt.Errorf("%w: member is not active", ErrConflict)

	// ErrLoanClosed is returned when returning or renewing a loan that is
	// already closed.
	ErrLoanClosed = fmt.Errorf("%w: loan is already closed", ErrConflict)

	// ErrLoanCapReached is returned when the member is at the concurrent-loan
	// cap for their role.
	ErrLoanCapReached = fmt.Errorf("%w: member is at the loan cap", ErrLimitExceeded)

	// ErrRenewalCapReached is returned when the loan is at the renewal cap
	// for the member's role.
	ErrRenewalCapReached = fmt.Errorf("%w: renewal cap reached", ErrLimitExceeded)

	// ErrReservationsExist blocks renewal while any queued reservation waits
	// for the loan's book.
	ErrReservationsExist = fmt.Errorf("%w: reservations exist for this book", ErrConflict)

	// ErrDuplicateReservation is returned when the member already has a
	// queued or notified reservation for the same book.
	ErrDuplicateReservation = fmt.Errorf("%w: member already has an active reservation for this book", ErrConflict)

	// ErrReservationNotQueued is returned when notifying a reservation that
	// has already left the queue.
	ErrReservationNotQueued = fmt.Errorf("%w: reservation is not queued", ErrConflict)

	// ErrReservationFinal is returned when expiring or collecting a
	// reservation that is already in a terminal state.
	ErrReservationFinal = fmt.Errorf("%w: reservation is already settled", ErrConflict)

	// ErrPenaltySettled is returned when settling a penalty twice.
	ErrPenaltySettled = fmt.Errorf("%w: penalty is already settled", ErrConflict)
)
