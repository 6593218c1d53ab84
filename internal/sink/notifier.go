package sink

import (
	"context"
	"fmt"

	"gopkg.in/gomail.v2"

	"github.com/wal2http/wal2http/internal/event"
)

// SMTPNotifier sends a one-line failure email when retry exhausts, so an
// operator notices a sink has gone permanently bad without tailing logs.
type SMTPNotifier struct {
	dialer *gomail.Dialer
	from   string
	to     string
}

// NewSMTPNotifier builds a notifier that authenticates to host:port with
// username/password and sends from 'from' to 'to'.
func NewSMTPNotifier(host string, port int, username, password, from, to string) *SMTPNotifier {
	return &SMTPNotifier{
		dialer: gomail.NewDialer(host, port, username, password),
		from:   from,
		to:     to,
	}
}

func (n *SMTPNotifier) NotifyFailure(_ context.Context, ev event.Event, cause error) error {
	m := gomail.NewMessage()
	m.SetHeader("From", n.from)
	m.SetHeader("To", n.to)
	m.SetHeader("Subject", fmt.Sprintf("wal2http: delivery failed for %s.%s", ev.Schema, ev.Table))
	m.SetBody("text/plain", fmt.Sprintf(
		"Event delivery exhausted retries and was dropped.\n\nkind: %s\nlsn: %s\ncorrelation_id: %s\nschema: %s\ntable: %s\ncause: %v\n",
		ev.Kind, ev.LSN, ev.CorrelationID, ev.Schema, ev.Table, cause,
	))
	return n.dialer.DialAndSend(m)
}
