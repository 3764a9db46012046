package handlers

import (
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"github.com/KOUADIODANIEL/BIBLOTHEQUE/internal/models"
)

// loanResponse overlays the derived status (OVERDUE when active and past
// due) on top of the stored loan fields.
type loanResponse struct {
	models.Loan
	Status models.LoanStatus `json:"status"`
}

func toLoanResponse(loan models.Loan) loanResponse {
	return loanResponse{Loan: loan, Status: loan.EffectiveStatus(time.Now().UTC())}
}

type issueLoanRequest struct {
	CopyID   string `json:"copy_id" binding:"required,uuid"`
	MemberID string `json:"member_id" binding:"required,uuid"`
}

func (h *LibraryHandler) issueLoan(c *gin.Context) {
	var req issueLoanRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	copyID, _ := uuid.Parse(req.CopyID)
	memberID, _ := uuid.Parse(req.MemberID)

	loan, err := h.loans.IssueLoan(copyID, memberID)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusCreated, toLoanResponse(*loan))
}

func (h *LibraryHandler) returnLoan(c *gin.Context) {
	id, ok := pathID(c)
	if !ok {
		return
	}
	loan, err := h.loans.ReturnLoan(id)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, toLoanResponse(*loan))
}

func (h *LibraryHandler) renewLoan(c *gin.Context) {
	id, ok := pathID(c)
	if !ok {
		return
	}
	loan, err := h.loans.RenewLoan(id)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, toLoanResponse(*loan))
}

func (h *LibraryHandler) listMemberLoans(c *gin.Context) {
	id, ok := pathID(c)
	if !ok {
		return
	}
	loans, err := h.loans.ListMemberLoans(id)
	if err != nil {
		respondError(c, err)
		return
	}
	out := make([]loanResponse, 0, len(loans))
	for _, loan := range loans {
		out = append(out, toLoanResponse(loan))
	}
	c.JSON(http.StatusOK, out)
}

type createReservationRequest struct {
	MemberID string `json:"member_id" binding:"required,uuid"`
}

func (h *LibraryHandler) createReservation(c *gin.Context) {
	bookID, ok := pathID(c)
	if !ok {
		return
	}
	var req createReservationRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	memberID, _ := uuid.Parse(req.MemberID)

	res, err := h.reservations.CreateReservation(bookID, memberID)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusCreated, res)
}

func (h *LibraryHandler) listBookReservations(c *gin.Context) {
	bookID, ok := pathID(c)
	if !ok {
		return
	}
	res, err := h.reservations.ListBookReservations(bookID)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, res)
}

func (h *LibraryHandler) advanceQueue(c *gin.Context) {
	bookID, ok := pathID(c)
	if !ok {
		return
	}
	res, err := h.reservations.Advance(bookID)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, res)
}

func (h *LibraryHandler) notifyReservation(c *gin.Context) {
	id, ok := pathID(c)
	if !ok {
		return
	}
	res, err := h.reservations.Notify(id)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, res)
}

func (h *LibraryHandler) expireReservation(c *gin.Context) {
	id, ok := pathID(c)
	if !ok {
		return
	}
	res, err := h.reservations.Expire(id)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, res)
}

func (h *LibraryHandler) collectReservation(c *gin.Context) {
	id, ok := pathID(c)
	if !ok {
		return
	}
	res, err := h.reservations.Collect(id)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, res)
}

type createPenaltyRequest struct {
	MemberID string `json:"member_id" binding:"required,uuid"`
	LoanID   string `json:"loan_id" binding:"omitempty,uuid"`
	Type     string `json:"type" binding:"required,oneof=LATE LOST DAMAGED"`
	Amount   int64  `json:"amount_cents" binding:"required,gt=0"`
}

func (h *LibraryHandler) createPenalty(c *gin.Context) {
	var req createPenaltyRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	memberID, _ := uuid.Parse(req.MemberID)
	var loanID *uuid.UUID
	if req.LoanID != "" {
		id, _ := uuid.Parse(req.LoanID)
		loanID = &id
	}

	penalty, err := h.penalties.CreateManual(memberID, loanID, models.PenaltyType(req.Type), req.Amount)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusCreated, penalty)
}

func (h *LibraryHandler) settlePenalty(c *gin.Context) {
	id, ok := pathID(c)
	if !ok {
		return
	}
	penalty, err := h.penalties.Settle(id)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, penalty)
}

func (h *LibraryHandler) listMemberPenalties(c *gin.Context) {
	id, ok := pathID(c)
	if !ok {
		return
	}
	penalties, err := h.penalties.ListMemberPenalties(id)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, penalties)
}
