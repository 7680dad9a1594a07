package transfer

import (
	"time"

	"github.com/SecurePass-Share/Transfer-Service/internal/models"
)

// DenyReason identifies why a release was refused.
type DenyReason string

const (
	DenyExpired          DenyReason = "expired"
	DenyInvalidated      DenyReason = "invalidated"
	DenyNotApproved      DenyReason = "not_approved"
	DenyDownloadsBlocked DenyReason = "downloads_blocked"
	DenyLimitReached     DenyReason = "limit_reached"
)

// Decision is the gate's verdict for one request at one instant.
type Decision struct {
	Allowed bool
	Reason  DenyReason
}

func allow() Decision {
	return Decision{Allowed: true}
}

func deny(reason DenyReason) Decision {
	return Decision{Reason: reason}
}

// Err maps a denial onto its sentinel error. Allowed decisions map to nil.
func (d Decision) Err() error {
	if d.Allowed {
		return nil
	}
	switch d.Reason {
	case DenyExpired:
		return ErrExpired
	case DenyInvalidated:
		return ErrInvalidated
	case DenyNotApproved:
		return ErrNotApproved
	case DenyDownloadsBlocked:
		return ErrDownloadsBlocked
	case DenyLimitReached:
		return ErrLimitReached
	default:
		return ErrNotApproved
	}
}

// Evaluate decides whether a decryption key or the ciphertext may be
// released for the given request right now. Pure function of its inputs.
//
// Expiry is checked first and overrides everything, including a prior
// approval; the remaining checks follow in a fixed order so a single,
// accurate reason is reported when several conditions hold at once.
func Evaluate(f models.File, r models.AccessRequest, now time.Time) Decision {
	if d := evaluateAccess(f, r, now); !d.Allowed {
		return d
	}
	if f.DownloadCount >= f.MaxDownloads {
		return deny(DenyLimitReached)
	}
	return allow()
}

// EvaluateKeyRelease decides whether the decryption key may be handed out.
// Identical to Evaluate except the download counter is ignored: the final
// ciphertext download consumes the last slot, and the recipient still needs
// the key for the bytes they just received.
func EvaluateKeyRelease(f models.File, r models.AccessRequest, now time.Time) Decision {
	return evaluateAccess(f, r, now)
}

func evaluateAccess(f models.File, r models.AccessRequest, now time.Time) Decision {
	if f.Expired(now) {
		return deny(DenyExpired)
	}
	if f.IsInvalidated {
		return deny(DenyInvalidated)
	}
	if r.Status != models.RequestApproved {
		return deny(DenyNotApproved)
	}
	if f.BlocksDownloads {
		return deny(DenyDownloadsBlocked)
	}
	return allow()
}
