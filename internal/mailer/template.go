package mailer

import (
	"bytes"
	_ "embed"
	"html/template"
	"strings"
	"time"

	"github.com/cockroachdb/errors"
	"github.com/robertarktes/event-ticketing-payments/internal/domain"
)

//go:embed confirmation.html
var confirmationHTML string

var confirmationTmpl = template.Must(template.New("confirmation").Parse(confirmationHTML))

type confirmationView struct {
	LogoURL      string
	CustomerName string
	EventTitle   string
	EventDate    string
	EventTime    string
	Seats        string
	Year         int
}

func Subject(b *domain.Booking) string {
	return "Your Ticket Confirmation for " + b.EventTitle
}

// RenderConfirmation produces the HTML body of the booking confirmation email.
// Record values are escaped by html/template.
func RenderConfirmation(b *domain.Booking, logoURL string, now time.Time) (string, error) {
	var buf bytes.Buffer
	err := confirmationTmpl.Execute(&buf, confirmationView{
		LogoURL:      logoURL,
		CustomerName: b.CustomerName,
		EventTitle:   b.EventTitle,
		EventDate:    b.EventDate,
		EventTime:    b.EventTime,
		Seats:        strings.Join(b.SelectedSeats, ", "),
		Year:         now.Year(),
	})
	if err != nil {
		return "", errors.Wrap(err, "render confirmation email")
	}
	return buf.String(), nil
}
