// Package notify is the boundary to the external notification channel
// (email/SMS). Sends are fire-and-forget: they run after the reservation
// transaction commits and a delivery failure never rolls state back.
package notify

import (
	"log"

	"github.com/KOUADIODANIEL/BIBLOTHEQUE/internal/models"
)

// Notifier delivers pickup notices to members.
type Notifier interface {
	// ReservationReady tells the member their reserved book is waiting and
	// until when it can be collected.
	ReservationReady(reservation *models.Reservation, member *models.Member, book *models.Book) error
}

// LogNotifier writes notices to the process log. It stands in for the real
// email/SMS gateway in development and tests.
type LogNotifier struct{}

func (LogNotifier) ReservationReady(reservation *models.Reservation, member *models.Member, book *models.Book) error {
	expires := "unknown"
	if reservation.ExpiresAt != nil {
		expires = reservation.ExpiresAt.Format("2006-01-02 15:04")
	}
	log.Printf("[INFO] notify: member %s (%s): %q is ready for pickup until %s",
		member.Number, member.Email, book.Title, expires)
	return nil
}
