package notifications

import (
	"fmt"
	"strings"

	"github.com/geocoder89/fintechindex/internal/domain/startup"
	"github.com/geocoder89/fintechindex/internal/domain/user"
)

const (
	KindUserRegistered       = "user.registered"
	KindUserApproved         = "user.approved"
	KindStartupSubmitted     = "startup.submitted"
	KindStartupsSubmitted    = "startups.submitted"
	KindStartupVerified      = "startup.verified"
	KindStartupsBulkVerified = "startups.bulk_verified"
	KindStartupDeleted       = "startup.deleted"
	KindStartupsBulkDeleted  = "startups.bulk_deleted"
	KindCountryDataUploaded  = "country_data.uploaded"
	KindCountryDataDeleted   = "country_data.deleted"
)

// Event is everything one domain change wants delivered.
type Event struct {
	Kind     string
	Messages []Message
}

func newEvent(kind string, msgs ...Message) Event {
	for i := range msgs {
		msgs[i].Kind = kind
	}
	return Event{Kind: kind, Messages: msgs}
}

func adminEmail(subject, body string) Message {
	return Message{Channel: ChannelEmail, ToAdmin: true, Subject: subject, Body: body}
}

func adminSMS(body string) Message {
	return Message{Channel: ChannelSMS, ToAdmin: true, Body: body}
}

func UserRegistered(u user.User) Event {
	return newEvent(KindUserRegistered,
		Message{
			Channel: ChannelEmail,
			To:      u.Email,
			Subject: "Your Fintech Index account is pending approval",
			Body: fmt.Sprintf("Hello %s,\n\nThanks for registering. An administrator will review your account "+
				"and you will be able to sign in once it is approved.\n", u.Name),
		},
		adminEmail(
			"New user registration: "+u.Email,
			fmt.Sprintf("A new %s account is waiting for approval.\n\nName: %s\nEmail: %s\nOrganization: %s\nCountry: %s\n",
				u.Role, u.Name, u.Email, orDash(u.Organization), orDash(u.Country)),
		),
		adminSMS(fmt.Sprintf("Fintech Index: new %s registration from %s awaits approval.", u.Role, u.Email)),
	)
}

func UserApproved(u user.User) Event {
	return newEvent(KindUserApproved, Message{
		Channel: ChannelEmail,
		To:      u.Email,
		Subject: "Your Fintech Index account has been approved",
		Body:    fmt.Sprintf("Hello %s,\n\nYour account has been approved. You can now sign in.\n", u.Name),
	})
}

func StartupSubmitted(s startup.Startup) Event {
	return newEvent(KindStartupSubmitted,
		adminEmail(
			"Startup submitted for review: "+s.Name,
			fmt.Sprintf("%s (%s, founded %d) was submitted by %s.\nSectors: %s\n",
				s.Name, s.Country, s.FoundedYear, s.AddedBy, orDash(s.Sectors.String())),
		),
		adminSMS(fmt.Sprintf("Fintech Index: startup %q submitted by %s awaits review.", s.Name, s.AddedBy)),
	)
}

// StartupsSubmitted summarizes a bulk submission in one admin message.
func StartupsSubmitted(n int, by string) Event {
	return newEvent(KindStartupsSubmitted,
		adminEmail(
			fmt.Sprintf("%d startups submitted for review", n),
			fmt.Sprintf("%s submitted %d startups. They are waiting in the pending queue.\n", by, n),
		),
		adminSMS(fmt.Sprintf("Fintech Index: %d startups submitted by %s await review.", n, by)),
	)
}

func StartupVerified(s startup.Startup) Event {
	body := fmt.Sprintf("%s was marked %s by %s.\n", s.Name, s.VerificationStatus, s.VerifiedBy)
	if s.AdminNotes != "" {
		body += "\nNotes: " + s.AdminNotes + "\n"
	}
	return newEvent(KindStartupVerified, adminEmail(fmt.Sprintf("Startup %s: %s", s.VerificationStatus, s.Name), body))
}

func StartupsBulkVerified(status startup.Status, modified int64, by string) Event {
	return newEvent(KindStartupsBulkVerified, adminEmail(
		fmt.Sprintf("%d startups %s", modified, status),
		fmt.Sprintf("%s marked %d startups as %s.\n", by, modified, status),
	))
}

func StartupDeleted(s startup.Startup, by string) Event {
	return newEvent(KindStartupDeleted, adminEmail(
		"Startup deleted: "+s.Name,
		fmt.Sprintf("%s deleted %s (%s).\n", by, s.Name, s.Country),
	))
}

func StartupsBulkDeleted(deleted int64, by string) Event {
	return newEvent(KindStartupsBulkDeleted, adminEmail(
		fmt.Sprintf("%d startups deleted", deleted),
		fmt.Sprintf("%s deleted %d startups.\n", by, deleted),
	))
}

func CountryDataUploaded(inserted int64, by string) Event {
	return newEvent(KindCountryDataUploaded, adminEmail(
		fmt.Sprintf("Country data uploaded: %d records", inserted),
		fmt.Sprintf("%s uploaded %d country metric records.\n", by, inserted),
	))
}

// CountryDataDeleted describes a removal; scope is a short human phrase such
// as "year 2023" or "all records".
func CountryDataDeleted(scope string, deleted int64, by string) Event {
	return newEvent(KindCountryDataDeleted, adminEmail(
		fmt.Sprintf("Country data deleted: %s", scope),
		fmt.Sprintf("%s deleted %d country metric records (%s).\n", by, deleted, scope),
	))
}

func orDash(s string) string {
	if strings.TrimSpace(s) == "" {
		return "-"
	}
	return s
}
