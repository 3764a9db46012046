package handlers

import (
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"github.com/KOUADIODANIEL/BIBLOTHEQUE/internal/models"
	"github.com/KOUADIODANIEL/BIBLOTHEQUE/internal/repositories"
)

type createBookRequest struct {
	ISBN       string `json:"isbn"`
	Title      string `json:"title" binding:"required"`
	Author     string `json:"author"`
	Publisher  string `json:"publisher"`
	Year       int    `json:"year"`
	Theme      string `json:"theme"`
	CallNumber string `json:"call_number"`
	Summary    string `json:"summary"`
}

func (h *LibraryHandler) createBook(c *gin.Context) {
	var req createBookRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	book, err := h.catalog.CreateBook(&models.Book{
		ISBN:       req.ISBN,
		Title:      req.Title,
		Author:     req.Author,
		Publisher:  req.Publisher,
		Year:       req.Year,
		Theme:      req.Theme,
		CallNumber: req.CallNumber,
		Summary:    req.Summary,
	})
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusCreated, book)
}

func (h *LibraryHandler) getBook(c *gin.Context) {
	id, ok := pathID(c)
	if !ok {
		return
	}
	book, err := h.catalog.GetBook(id)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, book)
}

type updateBookRequest struct {
	ISBN       *string `json:"isbn"`
	Title      *string `json:"title"`
	Author     *string `json:"author"`
	Publisher  *string `json:"publisher"`
	Year       *int    `json:"year"`
	Theme      *string `json:"theme"`
	CallNumber *string `json:"call_number"`
	Summary    *string `json:"summary"`
}

func (h *LibraryHandler) updateBook(c *gin.Context) {
	id, ok := pathID(c)
	if !ok {
		return
	}
	var req updateBookRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	fields := map[string]interface{}{}
	setIf(fields, "isbn", req.ISBN)
	setIf(fields, "title", req.Title)
	setIf(fields, "author", req.Author)
	setIf(fields, "publisher", req.Publisher)
	setIf(fields, "theme", req.Theme)
	setIf(fields, "call_number", req.CallNumber)
	setIf(fields, "summary", req.Summary)
	if req.Year != nil {
		fields["year"] = *req.Year
	}
	book, err := h.catalog.UpdateBook(id, fields)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, book)
}

func (h *LibraryHandler) deleteBook(c *gin.Context) {
	id, ok := pathID(c)
	if !ok {
		return
	}
	if err := h.catalog.DeleteBook(id); err != nil {
		respondError(c, err)
		return
	}
	c.Status(http.StatusNoContent)
}

func (h *LibraryHandler) listBooks(c *gin.Context) {
	filter := repositories.BookFilter{
		Title:         c.Query("title"),
		Author:        c.Query("author"),
		Theme:         c.Query("theme"),
		AvailableOnly: c.Query("available") == "true",
	}
	books, err := h.catalog.ListBooks(filter)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, books)
}

type addCopyRequest struct {
	Barcode    string     `json:"barcode" binding:"required"`
	Condition  string     `json:"condition" binding:"omitempty,oneof=GOOD WORN DAMAGED"`
	Location   string     `json:"location"`
	AcquiredAt *time.Time `json:"acquired_at"`
}

func (h *LibraryHandler) addCopy(c *gin.Context) {
	bookID, ok := pathID(c)
	if !ok {
		return
	}
	var req addCopyRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	copy, err := h.catalog.AddCopy(&models.Copy{
		BookID:     bookID,
		Barcode:    req.Barcode,
		Condition:  models.CopyCondition(req.Condition),
		Location:   req.Location,
		AcquiredAt: req.AcquiredAt,
	})
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusCreated, copy)
}

func (h *LibraryHandler) getCopy(c *gin.Context) {
	// Barcode lookups share the route: /copies/CB0042 resolves by barcode
	// when the segment is not a UUID.
	raw := c.Param("id")
	id, err := uuid.Parse(raw)
	if err != nil {
		copy, err := h.catalog.GetCopyByBarcode(raw)
		if err != nil {
			respondError(c, err)
			return
		}
		c.JSON(http.StatusOK, copy)
		return
	}
	copy, err := h.catalog.GetCopy(id)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, copy)
}

type updateCopyRequest struct {
	Condition *string `json:"condition" binding:"omitempty,oneof=GOOD WORN DAMAGED"`
	Location  *string `json:"location"`
}

func (h *LibraryHandler) updateCopy(c *gin.Context) {
	id, ok := pathID(c)
	if !ok {
		return
	}
	var req updateCopyRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	fields := map[string]interface{}{}
	setIf(fields, "condition", req.Condition)
	setIf(fields, "location", req.Location)
	copy, err := h.catalog.UpdateCopy(id, fields)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, copy)
}

func (h *LibraryHandler) listBookCopies(c *gin.Context) {
	bookID, ok := pathID(c)
	if !ok {
		return
	}
	copies, err := h.catalog.ListBookCopies(bookID)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, copies)
}

type createMemberRequest struct {
	Number    string `json:"number" binding:"required"`
	Name      string `json:"name" binding:"required"`
	FirstName string `json:"first_name"`
	Class     string `json:"class"`
	Email     string `json:"email" binding:"omitempty,email"`
	Phone     string `json:"phone"`
	Role      string `json:"role" binding:"omitempty,oneof=STUDENT TEACHER"`
}

func (h *LibraryHandler) createMember(c *gin.Context) {
	var req createMemberRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	member, err := h.catalog.CreateMember(&models.Member{
		Number:    req.Number,
		Name:      req.Name,
		FirstName: req.FirstName,
		Class:     req.Class,
		Email:     req.Email,
		Phone:     req.Phone,
		Role:      models.MemberRole(req.Role),
	})
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusCreated, member)
}

func (h *LibraryHandler) getMember(c *gin.Context) {
	id, ok := pathID(c)
	if !ok {
		return
	}
	member, err := h.catalog.GetMember(id)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, member)
}

type updateMemberRequest struct {
	Name      *string `json:"name"`
	FirstName *string `json:"first_name"`
	Class     *string `json:"class"`
	Email     *string `json:"email" binding:"omitempty,email"`
	Phone     *string `json:"phone"`
	Role      *string `json:"role" binding:"omitempty,oneof=STUDENT TEACHER"`
	Active    *bool   `json:"active"`
}

func (h *LibraryHandler) updateMember(c *gin.Context) {
	id, ok := pathID(c)
	if !ok {
		return
	}
	var req updateMemberRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	fields := map[string]interface{}{}
	setIf(fields, "name", req.Name)
	setIf(fields, "first_name", req.FirstName)
	setIf(fields, "class", req.Class)
	setIf(fields, "email", req.Email)
	setIf(fields, "phone", req.Phone)
	setIf(fields, "role", req.Role)
	if req.Active != nil {
		fields["active"] = *req.Active
	}
	member, err := h.catalog.UpdateMember(id, fields)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, member)
}

func (h *LibraryHandler) deactivateMember(c *gin.Context) {
	id, ok := pathID(c)
	if !ok {
		return
	}
	member, err := h.catalog.DeactivateMember(id)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, member)
}

func (h *LibraryHandler) listMembers(c *gin.Context) {
	search := repositories.MemberSearch{
		Query: c.Query("q"),
		Role:  models.MemberRole(c.Query("role")),
	}
	members, err := h.catalog.ListMembers(search)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, members)
}

func setIf(fields map[string]interface{}, key string, value *string) {
	if value != nil {
		fields[key] = *value
	}
}
