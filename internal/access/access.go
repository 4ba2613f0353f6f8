// Package access derives whether an account may use the tontine screens
// from its subscription state and live signals.
package access

import (
	"time"

	"github.com/mmynk/tontine/internal/models"
)

// Outcome is the result of an access decision.
type Outcome string

const (
	// Granted permits every screen.
	Granted Outcome = "granted"

	// DeniedBlocked keeps the session but only the payment screen is reachable.
	DeniedBlocked Outcome = "denied_blocked"

	// DeniedExpired keeps the session but only the payment screen is reachable.
	DeniedExpired Outcome = "denied_expired"

	// Terminated means the profile was deleted and the session must end.
	Terminated Outcome = "terminated"
)

// Signals are live facts pushed by the realtime channel.
type Signals struct {
	ProfileDeleted bool
}

// Decision is a pure function of its inputs.
type Decision struct {
	Outcome Outcome
}

// Compute applies the rules in priority order: deleted profile, blocked
// status, past expiration, granted. A nil subscription is treated as a
// deleted profile.
func Compute(sub *models.Subscription, signals Signals, now time.Time) Decision {
	switch {
	case signals.ProfileDeleted || sub == nil:
		return Decision{Outcome: Terminated}
	case sub.Blocked():
		return Decision{Outcome: DeniedBlocked}
	case sub.Expired(now):
		return Decision{Outcome: DeniedExpired}
	default:
		return Decision{Outcome: Granted}
	}
}

// Granted reports whether the tontine screens are reachable.
func (d Decision) Granted() bool { return d.Outcome == Granted }

// Denied reports whether the account is gated but keeps its session.
func (d Decision) Denied() bool {
	return d.Outcome == DeniedBlocked || d.Outcome == DeniedExpired
}

// Terminates reports whether the session must be invalidated.
func (d Decision) Terminates() bool { return d.Outcome == Terminated }

// Screen is a client route.
type Screen string

const (
	ScreenDashboard Screen = "/"
	ScreenMembers   Screen = "/membres"
	ScreenPayment   Screen = "/paiement"
	ScreenHistory   Screen = "/historique"
	ScreenSettings  Screen = "/parametres"
	ScreenLogin     Screen = "/connexion"
	ScreenRegister  Screen = "/inscription"
)

// Screens returns the routes reachable under d, default screen first.
func Screens(d Decision) []Screen {
	switch {
	case d.Terminates():
		return []Screen{ScreenLogin, ScreenRegister}
	case d.Denied():
		return []Screen{ScreenPayment}
	default:
		return []Screen{ScreenDashboard, ScreenMembers, ScreenPayment, ScreenHistory, ScreenSettings}
	}
}

// DefaultScreen is where unknown routes and forced navigations land.
func DefaultScreen(d Decision) Screen {
	return Screens(d)[0]
}

// Allows reports whether screen is reachable under d.
func Allows(d Decision, screen Screen) bool {
	for _, s := range Screens(d) {
		if s == screen {
			return true
		}
	}
	return false
}
