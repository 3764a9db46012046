package services

import (
	"os"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"

	"github.com/KOUADIODANIEL/BIBLOTHEQUE/internal/models"
	"github.com/KOUADIODANIEL/BIBLOTHEQUE/internal/notify"
	"github.com/KOUADIODANIEL/BIBLOTHEQUE/internal/repositories"
)

// These tests run the full circulation stack against a real PostgreSQL
// database. Set TEST_DATABASE_URL to enable them; they truncate every table.

type testEnv struct {
	db           *gorm.DB
	loans        LoanService
	reservations ReservationService
	penalties    PenaltyService
	catalog      CatalogService
}

func newTestEnv(t *testing.T) *testEnv {
	t.Helper()

	dsn := os.Getenv("TEST_DATABASE_URL")
	if dsn == "" {
		t.Skip("TEST_DATABASE_URL not set; skipping database tests")
	}

	db, err := gorm.Open(postgres.Open(dsn), &gorm.Config{
		Logger: logger.Default.LogMode(logger.Silent),
	})
	require.NoError(t, err)

	require.NoError(t, db.Exec(`CREATE EXTENSION IF NOT EXISTS "uuid-ossp"`).Error)
	require.NoError(t, db.AutoMigrate(
		&models.Member{},
		&models.Book{},
		&models.Copy{},
		&models.Loan{},
		&models.Reservation{},
		&models.Penalty{},
	))
	require.NoError(t, db.Exec(
		`CREATE UNIQUE INDEX IF NOT EXISTS uniq_active_loan
		   ON loans (copy_id) WHERE status <> 'CLOSED'`).Error)
	require.NoError(t, db.Exec(
		`CREATE UNIQUE INDEX IF NOT EXISTS uniq_queued_rank
		   ON reservations (book_id, rank) WHERE status = 'QUEUED'`).Error)
	require.NoError(t, db.Exec(
		`TRUNCATE penalties, reservations, loans, copies, books, members CASCADE`).Error)

	memberRepo := repositories.NewMemberRepository(db)
	bookRepo := repositories.NewBookRepository(db)
	copyRepo := repositories.NewCopyRepository(db)
	loanRepo := repositories.NewLoanRepository(db)
	reservationRepo := repositories.NewReservationRepository(db)
	penaltyRepo := repositories.NewPenaltyRepository(db)

	policies := DefaultPolicies()

	return &testEnv{
		db:           db,
		loans:        NewLoanService(db, policies, memberRepo, copyRepo, loanRepo, reservationRepo, penaltyRepo),
		reservations: NewReservationService(db, policies, memberRepo, bookRepo, reservationRepo, notify.LogNotifier{}),
		penalties:    NewPenaltyService(db, memberRepo, loanRepo, penaltyRepo),
		catalog:      NewCatalogService(db, bookRepo, copyRepo, memberRepo),
	}
}

func (e *testEnv) member(t *testing.T, role models.MemberRole) *models.Member {
	t.Helper()
	member := &models.Member{
		Number: "M-" + uuid.NewString()[:8],
		Name:   "Testeur",
		Role:   role,
		Active: true,
	}
	require.NoError(t, e.db.Create(member).Error)
	return member
}

func (e *testEnv) bookWithCopies(t *testing.T, n int) (*models.Book, []models.Copy) {
	t.Helper()
	book := &models.Book{Title: "Le Petit Prince", Author: "Saint-Exupéry", Theme: "conte"}
	require.NoError(t, e.db.Create(book).Error)
	copies := make([]models.Copy, n)
	for i := range copies {
		copies[i] = models.Copy{
			BookID:    book.ID,
			Barcode:   "CB-" + uuid.NewString()[:8],
			Condition: models.CopyConditionGood,
			Available: true,
		}
		require.NoError(t, e.db.Create(&copies[i]).Error)
	}
	return book, copies
}

// checkCopyInvariant asserts that every copy is available exactly when no
// non-closed loan references it.
func (e *testEnv) checkCopyInvariant(t *testing.T) {
	t.Helper()
	var violations int64
	// A copy violates the invariant when it is available while an active
	// loan exists, or unavailable with none.
	require.NoError(t, e.db.Raw(`
		SELECT COUNT(*) FROM copies c
		WHERE c.available = EXISTS (
			SELECT 1 FROM loans l WHERE l.copy_id = c.id AND l.status <> 'CLOSED'
		)`).Scan(&violations).Error)
	assert.Zero(t, violations, "copy availability out of sync with active loans")
}

func Test_IssueLoan(t *testing.T) {
	env := newTestEnv(t)
	member := env.member(t, models.MemberRoleStudent)
	_, copies := env.bookWithCopies(t, 1)

	loan, err := env.loans.IssueLoan(copies[0].ID, member.ID)
	require.NoError(t, err)

	assert.Equal(t, models.LoanStatusActive, loan.Status)
	assert.Equal(t, 0, loan.Renewals)
	assert.WithinDuration(t, time.Now().UTC().AddDate(0, 0, 14), loan.DueAt, time.Minute)

	var copy models.Copy
	require.NoError(t, env.db.First(&copy, "id = ?", copies[0].ID).Error)
	assert.False(t, copy.Available)
	env.checkCopyInvariant(t)
}

func Test_IssueLoan_UnavailableCopyCreatesNothing(t *testing.T) {
	env := newTestEnv(t)
	first := env.member(t, models.MemberRoleStudent)
	second := env.member(t, models.MemberRoleStudent)
	_, copies := env.bookWithCopies(t, 1)

	_, err := env.loans.IssueLoan(copies[0].ID, first.ID)
	require.NoError(t, err)

	_, err = env.loans.IssueLoan(copies[0].ID, second.ID)
	assert.ErrorIs(t, err, ErrConflict)

	var count int64
	require.NoError(t, env.db.Model(&models.Loan{}).
		Where("member_id = ?", second.ID).Count(&count).Error)
	assert.Zero(t, count)
	env.checkCopyInvariant(t)
}

func Test_IssueLoan_Errors(t *testing.T) {
	env := newTestEnv(t)
	member := env.member(t, models.MemberRoleStudent)
	_, copies := env.bookWithCopies(t, 1)

	t.Run("unknown_copy", func(t *testing.T) {
		_, err := env.loans.IssueLoan(uuid.New(), member.ID)
		assert.ErrorIs(t, err, ErrNotFound)
	})

	t.Run("unknown_member", func(t *testing.T) {
		_, err := env.loans.IssueLoan(copies[0].ID, uuid.New())
		assert.ErrorIs(t, err, ErrNotFound)
	})

	t.Run("inactive_member", func(t *testing.T) {
		inactive := env.member(t, models.MemberRoleStudent)
		require.NoError(t, env.db.Model(inactive).Update("active", false).Error)
		_, err := env.loans.IssueLoan(copies[0].ID, inactive.ID)
		assert.ErrorIs(t, err, ErrConflict)
	})
}

func Test_IssueLoan_StudentLoanCap(t *testing.T) {
	env := newTestEnv(t)
	member := env.member(t, models.MemberRoleStudent)
	_, copies := env.bookWithCopies(t, 4)

	for i := 0; i < 3; i++ {
		_, err := env.loans.IssueLoan(copies[i].ID, member.ID)
		require.NoError(t, err)
	}

	_, err := env.loans.IssueLoan(copies[3].ID, member.ID)
	assert.ErrorIs(t, err, ErrLimitExceeded)
	env.checkCopyInvariant(t)
}

func Test_IssueLoan_ConcurrentDoubleIssue(t *testing.T) {
	env := newTestEnv(t)
	first := env.member(t, models.MemberRoleStudent)
	second := env.member(t, models.MemberRoleStudent)
	_, copies := env.bookWithCopies(t, 1)

	var wg sync.WaitGroup
	errs := make([]error, 2)
	start := make(chan struct{})
	for i, memberID := range []uuid.UUID{first.ID, second.ID} {
		wg.Add(1)
		go func(idx int, id uuid.UUID) {
			defer wg.Done()
			<-start
			_, errs[idx] = env.loans.IssueLoan(copies[0].ID, id)
		}(i, memberID)
	}
	close(start)
	wg.Wait()

	succeeded := 0
	for _, err := range errs {
		if err == nil {
			succeeded++
		} else {
			assert.ErrorIs(t, err, ErrConflict)
		}
	}
	assert.Equal(t, 1, succeeded, "exactly one concurrent issue must win")

	var count int64
	require.NoError(t, env.db.Model(&models.Loan{}).
		Where("copy_id = ? AND status <> ?", copies[0].ID, models.LoanStatusClosed).
		Count(&count).Error)
	assert.Equal(t, int64(1), count)
	env.checkCopyInvariant(t)
}

func Test_ReturnLoan(t *testing.T) {
	env := newTestEnv(t)
	member := env.member(t, models.MemberRoleStudent)
	_, copies := env.bookWithCopies(t, 1)

	loan, err := env.loans.IssueLoan(copies[0].ID, member.ID)
	require.NoError(t, err)

	returned, err := env.loans.ReturnLoan(loan.ID)
	require.NoError(t, err)
	assert.Equal(t, models.LoanStatusClosed, returned.Status)
	require.NotNil(t, returned.ReturnedAt)

	var copy models.Copy
	require.NoError(t, env.db.First(&copy, "id = ?", copies[0].ID).Error)
	assert.True(t, copy.Available)

	// On-time return creates no penalty.
	var penalties int64
	require.NoError(t, env.db.Model(&models.Penalty{}).
		Where("member_id = ?", member.ID).Count(&penalties).Error)
	assert.Zero(t, penalties)
	env.checkCopyInvariant(t)
}

func Test_ReturnLoan_ThreeDaysLateCharges150Cents(t *testing.T) {
	env := newTestEnv(t)
	member := env.member(t, models.MemberRoleStudent)
	_, copies := env.bookWithCopies(t, 1)

	loan, err := env.loans.IssueLoan(copies[0].ID, member.ID)
	require.NoError(t, err)

	// Push the due date three days into the past.
	overdue := time.Now().UTC().AddDate(0, 0, -3)
	require.NoError(t, env.db.Model(&models.Loan{}).
		Where("id = ?", loan.ID).Update("due_at", overdue).Error)

	_, err = env.loans.ReturnLoan(loan.ID)
	require.NoError(t, err)

	var penalty models.Penalty
	require.NoError(t, env.db.First(&penalty, "loan_id = ?", loan.ID).Error)
	assert.Equal(t, models.PenaltyTypeLate, penalty.Type)
	assert.Equal(t, int64(150), penalty.Amount)
	assert.Equal(t, int64(150), penalty.Balance)
	assert.False(t, penalty.Settled)
	assert.Equal(t, member.ID, penalty.MemberID)
}

func Test_ReturnLoan_DoubleReturnConflicts(t *testing.T) {
	env := newTestEnv(t)
	member := env.member(t, models.MemberRoleStudent)
	_, copies := env.bookWithCopies(t, 1)

	loan, err := env.loans.IssueLoan(copies[0].ID, member.ID)
	require.NoError(t, err)

	_, err = env.loans.ReturnLoan(loan.ID)
	require.NoError(t, err)

	_, err = env.loans.ReturnLoan(loan.ID)
	assert.ErrorIs(t, err, ErrConflict)
}

func Test_RenewLoan(t *testing.T) {
	env := newTestEnv(t)
	member := env.member(t, models.MemberRoleTeacher)
	_, copies := env.bookWithCopies(t, 1)

	loan, err := env.loans.IssueLoan(copies[0].ID, member.ID)
	require.NoError(t, err)

	renewed, err := env.loans.RenewLoan(loan.ID)
	require.NoError(t, err)
	assert.Equal(t, 1, renewed.Renewals)
	assert.Equal(t, loan.DueAt.AddDate(0, 0, 28).Unix(), renewed.DueAt.Unix())
}

func Test_RenewLoan_BlockedByQueuedReservation(t *testing.T) {
	env := newTestEnv(t)
	borrower := env.member(t, models.MemberRoleStudent)
	reserver := env.member(t, models.MemberRoleStudent)
	book, copies := env.bookWithCopies(t, 1)

	loan, err := env.loans.IssueLoan(copies[0].ID, borrower.ID)
	require.NoError(t, err)

	_, err = env.reservations.CreateReservation(book.ID, reserver.ID)
	require.NoError(t, err)

	// Blocked even though the renewal count is zero.
	_, err = env.loans.RenewLoan(loan.ID)
	assert.ErrorIs(t, err, ErrConflict)
}

func Test_RenewLoan_StudentRenewalCap(t *testing.T) {
	env := newTestEnv(t)
	member := env.member(t, models.MemberRoleStudent)
	_, copies := env.bookWithCopies(t, 1)

	loan, err := env.loans.IssueLoan(copies[0].ID, member.ID)
	require.NoError(t, err)

	_, err = env.loans.RenewLoan(loan.ID)
	require.NoError(t, err)

	_, err = env.loans.RenewLoan(loan.ID)
	assert.ErrorIs(t, err, ErrLimitExceeded)
}

func Test_RenewLoan_ClosedLoanConflicts(t *testing.T) {
	env := newTestEnv(t)
	member := env.member(t, models.MemberRoleStudent)
	_, copies := env.bookWithCopies(t, 1)

	loan, err := env.loans.IssueLoan(copies[0].ID, member.ID)
	require.NoError(t, err)
	_, err = env.loans.ReturnLoan(loan.ID)
	require.NoError(t, err)

	_, err = env.loans.RenewLoan(loan.ID)
	assert.ErrorIs(t, err, ErrConflict)
}

func Test_CreateReservation_RanksAreSequential(t *testing.T) {
	env := newTestEnv(t)
	book, _ := env.bookWithCopies(t, 0)

	for want := 1; want <= 3; want++ {
		member := env.member(t, models.MemberRoleStudent)
		res, err := env.reservations.CreateReservation(book.ID, member.ID)
		require.NoError(t, err)
		assert.Equal(t, want, res.Rank)
		assert.Equal(t, models.ReservationStatusQueued, res.Status)
	}
}

func Test_CreateReservation_ConcurrentReserversGetDistinctRanks(t *testing.T) {
	env := newTestEnv(t)
	book, _ := env.bookWithCopies(t, 0)

	// Empty queue: every reserver is first in line from its own viewpoint,
	// so rank assignment has to serialize on something that already exists.
	const reservers = 4
	members := make([]*models.Member, reservers)
	for i := range members {
		members[i] = env.member(t, models.MemberRoleStudent)
	}

	var wg sync.WaitGroup
	results := make([]*models.Reservation, reservers)
	errs := make([]error, reservers)
	start := make(chan struct{})
	for i := range members {
		wg.Add(1)
		go func(idx int) {
			defer wg.Done()
			<-start
			results[idx], errs[idx] = env.reservations.CreateReservation(book.ID, members[idx].ID)
		}(i)
	}
	close(start)
	wg.Wait()

	seen := make(map[int]bool, reservers)
	for i := range results {
		require.NoError(t, errs[i], "every concurrent reserver must get a rank")
		assert.Equal(t, models.ReservationStatusQueued, results[i].Status)
		assert.False(t, seen[results[i].Rank], "rank %d handed out twice", results[i].Rank)
		seen[results[i].Rank] = true
	}
	for want := 1; want <= reservers; want++ {
		assert.True(t, seen[want], "rank %d missing from the queue", want)
	}
}

func Test_CreateReservation_DuplicateMemberConflicts(t *testing.T) {
	env := newTestEnv(t)
	book, _ := env.bookWithCopies(t, 0)
	member := env.member(t, models.MemberRoleStudent)

	_, err := env.reservations.CreateReservation(book.ID, member.ID)
	require.NoError(t, err)

	_, err = env.reservations.CreateReservation(book.ID, member.ID)
	assert.ErrorIs(t, err, ErrConflict)
}

func Test_Notify_SetsExpiryAndLeavesQueue(t *testing.T) {
	env := newTestEnv(t)
	book, _ := env.bookWithCopies(t, 0)
	first := env.member(t, models.MemberRoleStudent)
	second := env.member(t, models.MemberRoleStudent)

	head, err := env.reservations.CreateReservation(book.ID, first.ID)
	require.NoError(t, err)
	tail, err := env.reservations.CreateReservation(book.ID, second.ID)
	require.NoError(t, err)
	require.Equal(t, 2, tail.Rank)

	notified, err := env.reservations.Notify(head.ID)
	require.NoError(t, err)
	assert.Equal(t, models.ReservationStatusNotified, notified.Status)
	require.NotNil(t, notified.ExpiresAt)
	assert.WithinDuration(t, time.Now().UTC().Add(48*time.Hour), *notified.ExpiresAt, time.Minute)

	// The remaining queued entry moves up to rank 1.
	var remaining models.Reservation
	require.NoError(t, env.db.First(&remaining, "id = ?", tail.ID).Error)
	assert.Equal(t, 1, remaining.Rank)

	_, err = env.reservations.Notify(head.ID)
	assert.ErrorIs(t, err, ErrConflict)
}

func Test_Expire_RenumbersQueue(t *testing.T) {
	env := newTestEnv(t)
	book, _ := env.bookWithCopies(t, 0)

	var ids []uuid.UUID
	for i := 0; i < 3; i++ {
		member := env.member(t, models.MemberRoleStudent)
		res, err := env.reservations.CreateReservation(book.ID, member.ID)
		require.NoError(t, err)
		ids = append(ids, res.ID)
	}

	// Expire the middle entry; ranks must close to 1, 2.
	expired, err := env.reservations.Expire(ids[1])
	require.NoError(t, err)
	assert.Equal(t, models.ReservationStatusExpired, expired.Status)

	queue, err := env.reservations.ListBookReservations(book.ID)
	require.NoError(t, err)
	ranks := map[uuid.UUID]int{}
	for _, res := range queue {
		if res.Status == models.ReservationStatusQueued {
			ranks[res.ID] = res.Rank
		}
	}
	assert.Equal(t, map[uuid.UUID]int{ids[0]: 1, ids[2]: 2}, ranks)

	_, err = env.reservations.Expire(ids[1])
	assert.ErrorIs(t, err, ErrConflict)
}

func Test_Advance_PromotesQueueHead(t *testing.T) {
	env := newTestEnv(t)
	book, _ := env.bookWithCopies(t, 0)
	first := env.member(t, models.MemberRoleStudent)
	second := env.member(t, models.MemberRoleStudent)

	head, err := env.reservations.CreateReservation(book.ID, first.ID)
	require.NoError(t, err)
	_, err = env.reservations.CreateReservation(book.ID, second.ID)
	require.NoError(t, err)

	promoted, err := env.reservations.Advance(book.ID)
	require.NoError(t, err)
	assert.Equal(t, head.ID, promoted.ID)
	assert.Equal(t, models.ReservationStatusNotified, promoted.Status)

	// Second advance promotes the next member; a third finds nothing.
	_, err = env.reservations.Advance(book.ID)
	require.NoError(t, err)
	_, err = env.reservations.Advance(book.ID)
	assert.ErrorIs(t, err, ErrNotFound)
}

func Test_Collect_RequiresNotification(t *testing.T) {
	env := newTestEnv(t)
	book, _ := env.bookWithCopies(t, 0)
	member := env.member(t, models.MemberRoleStudent)

	res, err := env.reservations.CreateReservation(book.ID, member.ID)
	require.NoError(t, err)

	_, err = env.reservations.Collect(res.ID)
	assert.ErrorIs(t, err, ErrConflict)

	_, err = env.reservations.Notify(res.ID)
	require.NoError(t, err)

	collected, err := env.reservations.Collect(res.ID)
	require.NoError(t, err)
	assert.Equal(t, models.ReservationStatusCollected, collected.Status)
}

func Test_SettlePenalty(t *testing.T) {
	env := newTestEnv(t)
	member := env.member(t, models.MemberRoleStudent)

	penalty, err := env.penalties.CreateManual(member.ID, nil, models.PenaltyTypeLost, 1200)
	require.NoError(t, err)
	require.Equal(t, int64(1200), penalty.Balance)

	settled, err := env.penalties.Settle(penalty.ID)
	require.NoError(t, err)
	assert.True(t, settled.Settled)
	assert.Zero(t, settled.Balance)
	require.NotNil(t, settled.SettledAt)

	// Settling twice conflicts and leaves the row untouched.
	_, err = env.penalties.Settle(penalty.ID)
	assert.ErrorIs(t, err, ErrConflict)

	var reloaded models.Penalty
	require.NoError(t, env.db.First(&reloaded, "id = ?", penalty.ID).Error)
	assert.Zero(t, reloaded.Balance)
	assert.True(t, reloaded.Settled)
}

func Test_CreateManualPenalty_Validation(t *testing.T) {
	env := newTestEnv(t)
	member := env.member(t, models.MemberRoleStudent)

	_, err := env.penalties.CreateManual(member.ID, nil, "BOGUS", 100)
	assert.ErrorIs(t, err, ErrInvalidInput)

	_, err = env.penalties.CreateManual(member.ID, nil, models.PenaltyTypeLost, 0)
	assert.ErrorIs(t, err, ErrInvalidInput)

	_, err = env.penalties.CreateManual(uuid.New(), nil, models.PenaltyTypeLost, 100)
	assert.ErrorIs(t, err, ErrNotFound)
}

func Test_Catalog_BookAvailabilityCount(t *testing.T) {
	env := newTestEnv(t)
	member := env.member(t, models.MemberRoleStudent)
	book, copies := env.bookWithCopies(t, 2)

	detail, err := env.catalog.GetBook(book.ID)
	require.NoError(t, err)
	assert.Equal(t, int64(2), detail.AvailableCopies)

	_, err = env.loans.IssueLoan(copies[0].ID, member.ID)
	require.NoError(t, err)

	detail, err = env.catalog.GetBook(book.ID)
	require.NoError(t, err)
	assert.Equal(t, int64(1), detail.AvailableCopies)
}

func Test_Catalog_ListBooksCountsAvailability(t *testing.T) {
	env := newTestEnv(t)
	member := env.member(t, models.MemberRoleStudent)
	_, copies := env.bookWithCopies(t, 2)
	drained, drainedCopies := env.bookWithCopies(t, 1)

	_, err := env.loans.IssueLoan(copies[0].ID, member.ID)
	require.NoError(t, err)
	_, err = env.loans.IssueLoan(drainedCopies[0].ID, member.ID)
	require.NoError(t, err)

	books, err := env.catalog.ListBooks(repositories.BookFilter{})
	require.NoError(t, err)
	require.Len(t, books, 2)

	counts := make(map[uuid.UUID]int64, len(books))
	for _, detail := range books {
		counts[detail.ID] = detail.AvailableCopies
	}
	// A fully loaned-out book still lists, with a zero count.
	assert.Equal(t, int64(0), counts[drained.ID])
	for id, n := range counts {
		if id != drained.ID {
			assert.Equal(t, int64(1), n)
		}
	}
}
