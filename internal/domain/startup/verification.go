package startup

import (
	"strings"
	"time"

	"github.com/geocoder89/fintechindex/internal/auth"
)

// Verification is the field set written by one transition of the
// pending -> approved|rejected workflow.
type Verification struct {
	Status Status
	By     string
	At     *time.Time
	Notes  string
}

func (v Verification) IsVerified() bool {
	return v.Status == StatusApproved
}

// NewVerification validates an admin decision. Only terminal states can be
// requested; re-applying one to an already decided record is allowed and
// refreshes By/At.
func NewVerification(status string, by string, notes string, at time.Time) (Verification, error) {
	st := Status(strings.ToLower(strings.TrimSpace(status)))
	if st != StatusApproved && st != StatusRejected {
		return Verification{}, ErrInvalidStatus
	}

	at = at.UTC()
	return Verification{Status: st, By: by, At: &at, Notes: notes}, nil
}

func (v Verification) ApplyTo(s *Startup) {
	s.VerificationStatus = v.Status
	s.IsVerified = v.IsVerified()
	s.VerifiedBy = v.By
	s.VerifiedAt = v.At
	s.AdminNotes = v.Notes
	if v.At != nil {
		s.UpdatedAt = *v.At
	}
}

// Submitter is whoever creates a startup: an authenticated identity or an
// anonymous public visitor.
type Submitter struct {
	Identity *auth.Identity
}

func (s Submitter) IsAdmin() bool {
	return s.Identity != nil && s.Identity.Role == auth.RoleAdmin
}

func (s Submitter) addedBy() string {
	if s.Identity != nil && s.Identity.Email != "" {
		return s.Identity.Email
	}
	return "public"
}

// InitialState is approved for admins and pending for everyone else. An admin
// submission bypasses the workflow rather than passing through it.
func InitialState(sub Submitter, now time.Time) Verification {
	if sub.IsAdmin() {
		at := now.UTC()
		return Verification{Status: StatusApproved, By: sub.Identity.Email, At: &at}
	}
	return Verification{Status: StatusPending}
}
