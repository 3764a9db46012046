package services

import (
	"errors"
	"log"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/KOUADIODANIEL/BIBLOTHEQUE/internal/models"
	"github.com/KOUADIODANIEL/BIBLOTHEQUE/internal/repositories"
)

// BookDetail bundles a book with its live availability count.
type BookDetail struct {
	models.Book
	AvailableCopies int64 `json:"available_copies"`
}

// CatalogService is the thin data-access layer over books, copies and
// members. No circulation logic lives here.
type CatalogService interface {
	CreateBook(book *models.Book) (*models.Book, error)
	GetBook(id uuid.UUID) (*BookDetail, error)
	UpdateBook(id uuid.UUID, fields map[string]interface{}) (*models.Book, error)
	DeleteBook(id uuid.UUID) error
	ListBooks(filter repositories.BookFilter) ([]BookDetail, error)

	AddCopy(copy *models.Copy) (*models.Copy, error)
	GetCopy(id uuid.UUID) (*models.Copy, error)
	GetCopyByBarcode(barcode string) (*models.Copy, error)
	UpdateCopy(id uuid.UUID, fields map[string]interface{}) (*models.Copy, error)
	ListBookCopies(bookID uuid.UUID) ([]models.Copy, error)

	CreateMember(member *models.Member) (*models.Member, error)
	GetMember(id uuid.UUID) (*models.Member, error)
	UpdateMember(id uuid.UUID, fields map[string]interface{}) (*models.Member, error)
	DeactivateMember(id uuid.UUID) (*models.Member, error)
	ListMembers(search repositories.MemberSearch) ([]models.Member, error)
}

type catalogService struct {
	db         *gorm.DB
	bookRepo   repositories.BookRepository
	copyRepo   repositories.CopyRepository
	memberRepo repositories.MemberRepository
}

// NewCatalogService wires up the catalogue layer.
func NewCatalogService(
	db *gorm.DB,
	bookRepo repositories.BookRepository,
	copyRepo repositories.CopyRepository,
	memberRepo repositories.MemberRepository,
) CatalogService {
	return &catalogService{
		db:         db,
		bookRepo:   bookRepo,
		copyRepo:   copyRepo,
		memberRepo: memberRepo,
	}
}

func (s *catalogService) CreateBook(book *models.Book) (*models.Book, error) {
	if book.Title == "" {
		return nil, ErrInvalidInput
	}
	if err := s.bookRepo.Create(nil, book); err != nil {
		log.Printf("[ERROR] CreateBook: %v", err)
		return nil, err
	}
	log.Printf("[INFO] CreateBook: %q (id=%s)", book.Title, book.ID)
	return book, nil
}

func (s *catalogService) GetBook(id uuid.UUID) (*BookDetail, error) {
	book, err := s.bookRepo.GetByID(nil, id)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrBookNotFound
		}
		return nil, err
	}
	available, err := s.bookRepo.CountAvailableCopies(nil, id)
	if err != nil {
		return nil, err
	}
	return &BookDetail{Book: *book, AvailableCopies: available}, nil
}

func (s *catalogService) UpdateBook(id uuid.UUID, fields map[string]interface{}) (*models.Book, error) {
	if _, err := s.bookRepo.GetByID(nil, id); err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrBookNotFound
		}
		return nil, err
	}
	if err := s.bookRepo.Update(nil, id, fields); err != nil {
		return nil, err
	}
	return s.bookRepo.GetByID(nil, id)
}

func (s *catalogService) DeleteBook(id uuid.UUID) error {
	if _, err := s.bookRepo.GetByID(nil, id); err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return ErrBookNotFound
		}
		return err
	}
	return s.bookRepo.Delete(nil, id)
}

func (s *catalogService) ListBooks(filter repositories.BookFilter) ([]BookDetail, error) {
	books, err := s.bookRepo.List(nil, filter)
	if err != nil {
		return nil, err
	}
	ids := make([]uuid.UUID, len(books))
	for i, book := range books {
		ids[i] = book.ID
	}
	counts, err := s.bookRepo.AvailableCopyCounts(nil, ids)
	if err != nil {
		return nil, err
	}
	details := make([]BookDetail, 0, len(books))
	for _, book := range books {
		details = append(details, BookDetail{Book: book, AvailableCopies: counts[book.ID]})
	}
	return details, nil
}

func (s *catalogService) AddCopy(copy *models.Copy) (*models.Copy, error) {
	if copy.Barcode == "" {
		return nil, ErrInvalidInput
	}
	if _, err := s.bookRepo.GetByID(nil, copy.BookID); err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrBookNotFound
		}
		return nil, err
	}
	if copy.Condition == "" {
		copy.Condition = models.CopyConditionGood
	}
	copy.Available = true
	if err := s.copyRepo.Create(nil, copy); err != nil {
		if isUniqueViolation(err) {
			return nil, ErrConflict
		}
		log.Printf("[ERROR] AddCopy: %v", err)
		return nil, err
	}
	log.Printf("[INFO] AddCopy: copy %s (%s) added to book %s", copy.ID, copy.Barcode, copy.BookID)
	return copy, nil
}

func (s *catalogService) GetCopy(id uuid.UUID) (*models.Copy, error) {
	copy, err := s.copyRepo.GetByID(nil, id)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrCopyNotFound
		}
		return nil, err
	}
	return copy, nil
}

func (s *catalogService) GetCopyByBarcode(barcode string) (*models.Copy, error) {
	copy, err := s.copyRepo.GetByBarcode(nil, barcode)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrCopyNotFound
		}
		return nil, err
	}
	return copy, nil
}

func (s *catalogService) UpdateCopy(id uuid.UUID, fields map[string]interface{}) (*models.Copy, error) {
	if _, err := s.copyRepo.GetByID(nil, id); err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrCopyNotFound
		}
		return nil, err
	}
	if err := s.copyRepo.Update(nil, id, fields); err != nil {
		return nil, err
	}
	return s.copyRepo.GetByID(nil, id)
}

func (s *catalogService) ListBookCopies(bookID uuid.UUID) ([]models.Copy, error) {
	return s.copyRepo.ListByBook(nil, bookID)
}

func (s *catalogService) CreateMember(member *models.Member) (*models.Member, error) {
	if member.Number == "" || member.Name == "" {
		return nil, ErrInvalidInput
	}
	if member.Role == "" {
		member.Role = models.MemberRoleStudent
	}
	member.Active = true
	if err := s.memberRepo.Create(nil, member); err != nil {
		if isUniqueViolation(err) {
			return nil, ErrConflict
		}
		log.Printf("[ERROR] CreateMember: %v", err)
		return nil, err
	}
	log.Printf("[INFO] CreateMember: %s %s (number=%s)", member.Name, member.FirstName, member.Number)
	return member, nil
}

func (s *catalogService) GetMember(id uuid.UUID) (*models.Member, error) {
	member, err := s.memberRepo.GetByID(nil, id)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrMemberNotFound
		}
		return nil, err
	}
	return member, nil
}

func (s *catalogService) UpdateMember(id uuid.UUID, fields map[string]interface{}) (*models.Member, error) {
	if _, err := s.memberRepo.GetByID(nil, id); err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrMemberNotFound
		}
		return nil, err
	}
	if err := s.memberRepo.Update(nil, id, fields); err != nil {
		return nil, err
	}
	return s.memberRepo.GetByID(nil, id)
}

// DeactivateMember flips the active flag off; records stay for the audit
// trail and any outstanding penalties.
func (s *catalogService) DeactivateMember(id uuid.UUID) (*models.Member, error) {
	return s.UpdateMember(id, map[string]interface{}{"active": false})
}

func (s *catalogService) ListMembers(search repositories.MemberSearch) ([]models.Member, error) {
	return s.memberRepo.List(nil, search)
}
