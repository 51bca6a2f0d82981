// Package transcript turns inbound call-transcript webhook bodies into a
// validated, defaulted Event.
package transcript

import "time"

const (
	DefaultName         = "onbekende beller"
	DefaultPhoneNumber  = "onbekend nummer"
	DefaultEmailAddress = "geen e-mailadres opgegeven"
)

// Event is a normalized webhook payload. It is built once per request and
// never modified afterwards; every string field is non-empty.
type Event struct {
	Name         string
	PhoneNumber  string
	EmailAddress string
	Transcript   string
	Caller       string
	ReceivedAt   time.Time
}
