package repositories

import (
	"github.com/google/uuid"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/KOUADIODANIEL/BIBLOTHEQUE/internal/models"
)

// BookFilter narrows List results; zero value matches everything.
// AvailableOnly keeps books with at least one available copy.
type BookFilter struct {
	Title         string
	Author        string
	Theme         string
	AvailableOnly bool
}

type BookRepository interface {
	Create(db *gorm.DB, book *models.Book) error
	GetByID(db *gorm.DB, id uuid.UUID) (*models.Book, error)
	// GetByIDForUpdate takes an exclusive row lock (SELECT ... FOR UPDATE)
	// held until the surrounding transaction commits. Queue mutations lock
	// the book row first so that reservers serialize even when the queue
	// itself has no rows yet.
	GetByIDForUpdate(db *gorm.DB, id uuid.UUID) (*models.Book, error)
	Update(db *gorm.DB, id uuid.UUID, fields map[string]interface{}) error
	Delete(db *gorm.DB, id uuid.UUID) error
	List(db *gorm.DB, filter BookFilter) ([]models.Book, error)
	CountAvailableCopies(db *gorm.DB, bookID uuid.UUID) (int64, error)
	// AvailableCopyCounts returns the available-copy count per book in one
	// grouped query. Books with no available copy are absent from the map.
	AvailableCopyCounts(db *gorm.DB, bookIDs []uuid.UUID) (map[uuid.UUID]int64, error)
}

type bookRepository struct {
	db *gorm.DB
}

func NewBookRepository(db *gorm.DB) BookRepository {
	return &bookRepository{db: db}
}

func (r *bookRepository) Create(db *gorm.DB, book *models.Book) error {
	if db == nil {
		db = r.db
	}
	return db.Create(book).Error
}

func (r *bookRepository) GetByID(db *gorm.DB, id uuid.UUID) (*models.Book, error) {
	if db == nil {
		db = r.db
	}
	var book models.Book
	if err := db.First(&book, "id = ?", id).Error; err != nil {
		return nil, err
	}
	return &book, nil
}

func (r *bookRepository) GetByIDForUpdate(db *gorm.DB, id uuid.UUID) (*models.Book, error) {
	if db == nil {
		db = r.db
	}
	var book models.Book
	err := db.
		Clauses(clause.Locking{Strength: "UPDATE"}).
		First(&book, "id = ?", id).Error
	if err != nil {
		return nil, err
	}
	return &book, nil
}

func (r *bookRepository) Update(db *gorm.DB, id uuid.UUID, fields map[string]interface{}) error {
	if db == nil {
		db = r.db
	}
	return db.Model(&models.Book{}).
		Where("id = ?", id).
		Updates(fields).
		Error
}

func (r *bookRepository) Delete(db *gorm.DB, id uuid.UUID) error {
	if db == nil {
		db = r.db
	}
	return db.Delete(&models.Book{}, "id = ?", id).Error
}

func (r *bookRepository) List(db *gorm.DB, filter BookFilter) ([]models.Book, error) {
	if db == nil {
		db = r.db
	}
	q := db.Model(&models.Book{})
	if filter.Title != "" {
		q = q.Where("title ILIKE ?", "%"+filter.Title+"%")
	}
	if filter.Author != "" {
		q = q.Where("author ILIKE ?", "%"+filter.Author+"%")
	}
	if filter.Theme != "" {
		q = q.Where("theme ILIKE ?", "%"+filter.Theme+"%")
	}
	if filter.AvailableOnly {
		q = q.Where(
			"EXISTS (SELECT 1 FROM copies WHERE copies.book_id = books.id AND copies.available)",
		)
	}
	var books []models.Book
	if err := q.Order("title").Find(&books).Error; err != nil {
		return nil, err
	}
	return books, nil
}

func (r *bookRepository) CountAvailableCopies(db *gorm.DB, bookID uuid.UUID) (int64, error) {
	if db == nil {
		db = r.db
	}
	var n int64
	err := db.Model(&models.Copy{}).
		Where("book_id = ? AND available", bookID).
		Count(&n).Error
	return n, err
}

func (r *bookRepository) AvailableCopyCounts(db *gorm.DB, bookIDs []uuid.UUID) (map[uuid.UUID]int64, error) {
	if db == nil {
		db = r.db
	}
	counts := make(map[uuid.UUID]int64, len(bookIDs))
	if len(bookIDs) == 0 {
		return counts, nil
	}
	var rows []struct {
		BookID uuid.UUID
		N      int64
	}
	err := db.Model(&models.Copy{}).
		Select("book_id, COUNT(*) AS n").
		Where("book_id IN ? AND available", bookIDs).
		Group("book_id").
		Scan(&rows).Error
	if err != nil {
		return nil, err
	}
	for _, row := range rows {
		counts[row.BookID] = row.N
	}
	return counts, nil
}
