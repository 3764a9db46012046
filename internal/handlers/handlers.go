package handlers

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/KOUADIODANIEL/BIBLOTHEQUE/internal/services"
)

// LibraryHandler exposes the circulation and catalogue operations over HTTP.
type LibraryHandler struct {
	catalog      services.CatalogService
	loans        services.LoanService
	reservations services.ReservationService
	penalties    services.PenaltyService
}

func RegisterRoutes(
	r *gin.Engine,
	catalog services.CatalogService,
	loans services.LoanService,
	reservations services.ReservationService,
	penalties services.PenaltyService,
) {
	h := &LibraryHandler{
		catalog:      catalog,
		loans:        loans,
		reservations: reservations,
		penalties:    penalties,
	}

	r.GET("/healthz", func(c *gin.Context) { c.JSON(http.StatusOK, gin.H{"status": "ok"}) })
	r.GET("/metrics", gin.WrapH(promhttp.Handler()))

	// Catalogue
	r.POST("/books", h.createBook)
	r.GET("/books", h.listBooks)
	r.GET("/books/:id", h.getBook)
	r.PUT("/books/:id", h.updateBook)
	r.DELETE("/books/:id", h.deleteBook)
	r.POST("/books/:id/copies", h.addCopy)
	r.GET("/books/:id/copies", h.listBookCopies)
	r.GET("/copies/:id", h.getCopy)
	r.PUT("/copies/:id", h.updateCopy)

	// Members
	r.POST("/members", h.createMember)
	r.GET("/members", h.listMembers)
	r.GET("/members/:id", h.getMember)
	r.PUT("/members/:id", h.updateMember)
	r.DELETE("/members/:id", h.deactivateMember)
	r.GET("/members/:id/loans", h.listMemberLoans)
	r.GET("/members/:id/penalties", h.listMemberPenalties)

	// Circulation
	r.POST("/loans", h.issueLoan)
	r.POST("/loans/:id/return", h.returnLoan)
	r.POST("/loans/:id/renew", h.renewLoan)

	// Reservations
	r.POST("/books/:id/reservations", h.createReservation)
	r.GET("/books/:id/reservations", h.listBookReservations)
	r.POST("/books/:id/reservations/advance", h.advanceQueue)
	r.POST("/reservations/:id/notify", h.notifyReservation)
	r.POST("/reservations/:id/expire", h.expireReservation)
	r.POST("/reservations/:id/collect", h.collectReservation)

	// Penalties
	r.POST("/penalties", h.createPenalty)
	r.POST("/penalties/:id/settle", h.settlePenalty)
}

// respondError maps the service failure taxonomy onto HTTP status codes.
func respondError(c *gin.Context, err error) {
	status := http.StatusInternalServerError
	switch {
	case errors.Is(err, services.ErrNotFound):
		status = http.StatusNotFound
	case errors.Is(err, services.ErrConflict):
		status = http.StatusConflict
	case errors.Is(err, services.ErrLimitExceeded):
		status = http.StatusUnprocessableEntity
	case errors.Is(err, services.ErrInvalidInput):
		status = http.StatusBadRequest
	}
	c.JSON(status, gin.H{"error": err.Error()})
}

// pathID parses the :id path parameter as a UUID; on failure it writes the
// 400 response and reports false.
func pathID(c *gin.Context) (uuid.UUID, bool) {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid id"})
		return uuid.Nil, false
	}
	return id, true
}
