package startup

import (
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/geocoder89/fintechindex/internal/sentinel"
	"github.com/google/uuid"
)

type Status string

const (
	StatusPending  Status = "pending"
	StatusApproved Status = "approved"
	StatusRejected Status = "rejected"
)

func (s Status) IsValid() bool {
	switch s {
	case StatusPending, StatusApproved, StatusRejected:
		return true
	default:
		return false
	}
}

var (
	ErrNotFound      = fmt.Errorf("startup %w", sentinel.ErrNotFound)
	ErrInvalidStatus = errors.New("status must be approved or rejected")
	ErrNoIDs         = errors.New("ids must be a non-empty list")
)

// Startup is a directory entry. IsVerified always equals
// VerificationStatus == approved; only Verification.ApplyTo and
// InitialState write those fields.
type Startup struct {
	ID                 string     `json:"id"`
	Name               string     `json:"name"`
	Country            string     `json:"country"`
	Sectors            Sectors    `json:"-"`
	FoundedYear        int        `json:"foundedYear"`
	Description        string     `json:"description,omitempty"`
	Website            string     `json:"website,omitempty"`
	AddedBy            string     `json:"addedBy"`
	AddedAt            time.Time  `json:"addedAt"`
	IsVerified         bool       `json:"isVerified"`
	VerificationStatus Status     `json:"verificationStatus"`
	VerifiedBy         string     `json:"verifiedBy,omitempty"`
	VerifiedAt         *time.Time `json:"verifiedAt,omitempty"`
	AdminNotes         string     `json:"adminNotes"`
	UpdatedAt          time.Time  `json:"updatedAt"`
}

// MarshalJSON emits the sector both as the delimited wire string the
// dashboard expects and as a list.
func (s Startup) MarshalJSON() ([]byte, error) {
	type plain Startup
	return json.Marshal(struct {
		plain
		Sector      string   `json:"sector"`
		SectorsList []string `json:"sectors"`
	}{
		plain:       plain(s),
		Sector:      s.Sectors.String(),
		SectorsList: s.Sectors.List(),
	})
}

type CreateRequest struct {
	Name        string `json:"name" binding:"required,min=1,max=160"`
	Country     string `json:"country" binding:"required,min=2,max=80"`
	Sector      string `json:"sector" binding:"required,max=400"`
	FoundedYear int    `json:"foundedYear" binding:"required,min=1900,max=2200"`
	Description string `json:"description" binding:"omitempty,max=4000"`
	Website     string `json:"website" binding:"omitempty,url,max=400"`
}

type BulkCreateRequest struct {
	Startups []CreateRequest `json:"startups" binding:"required,min=1,max=500,dive"`
}

// UpdateRequest edits descriptive fields only. Verification has its own
// workflow and is not reachable from here.
type UpdateRequest struct {
	Name        *string `json:"name" binding:"omitempty,min=1,max=160"`
	Country     *string `json:"country" binding:"omitempty,min=2,max=80"`
	Sector      *string `json:"sector" binding:"omitempty,max=400"`
	FoundedYear *int    `json:"foundedYear" binding:"omitempty,min=1900,max=2200"`
	Description *string `json:"description" binding:"omitempty,max=4000"`
	Website     *string `json:"website" binding:"omitempty,max=400"`
}

func (r UpdateRequest) Apply(s *Startup) {
	if r.Name != nil {
		s.Name = strings.TrimSpace(*r.Name)
	}
	if r.Country != nil {
		s.Country = strings.TrimSpace(*r.Country)
	}
	if r.Sector != nil {
		s.Sectors = ParseSectors(*r.Sector)
	}
	if r.FoundedYear != nil {
		s.FoundedYear = *r.FoundedYear
	}
	if r.Description != nil {
		s.Description = strings.TrimSpace(*r.Description)
	}
	if r.Website != nil {
		s.Website = strings.TrimSpace(*r.Website)
	}
	s.UpdatedAt = time.Now().UTC()
}

type VerifyRequest struct {
	Status string `json:"status" binding:"required"`
	Notes  string `json:"notes" binding:"omitempty,max=2000"`
}

type BulkVerifyRequest struct {
	IDs    []string `json:"ids"`
	Status string   `json:"status" binding:"required"`
	Notes  string   `json:"notes" binding:"omitempty,max=2000"`
}

type BulkDeleteRequest struct {
	IDs []string `json:"ids"`
}

const (
	DefaultLimit = 1000
	MaxLimit     = 1000
)

type ListFilter struct {
	Status  *Status
	Country *string
	Sector  *string
	Search  *string
	Limit   int
}

func (f ListFilter) Matches(s Startup) bool {
	if f.Status != nil && s.VerificationStatus != *f.Status {
		return false
	}
	if f.Country != nil && !strings.EqualFold(strings.TrimSpace(*f.Country), s.Country) {
		return false
	}
	if f.Sector != nil && !s.Sectors.ContainsFold(*f.Sector) {
		return false
	}
	if f.Search != nil {
		q := strings.ToLower(strings.TrimSpace(*f.Search))
		if q != "" && !strings.Contains(strings.ToLower(s.Name), q) && !strings.Contains(strings.ToLower(s.Description), q) {
			return false
		}
	}
	return true
}

func ClampLimit(limit int) int {
	if limit <= 0 {
		return DefaultLimit
	}
	if limit > MaxLimit {
		return MaxLimit
	}
	return limit
}

// NormalizeIDs trims, drops blanks and duplicates, keeping first-seen order.
func NormalizeIDs(ids []string) ([]string, error) {
	seen := make(map[string]struct{}, len(ids))
	out := make([]string, 0, len(ids))
	for _, id := range ids {
		id = strings.TrimSpace(id)
		if id == "" {
			continue
		}
		if _, ok := seen[id]; ok {
			continue
		}
		seen[id] = struct{}{}
		out = append(out, id)
	}
	if len(out) == 0 {
		return nil, ErrNoIDs
	}
	return out, nil
}

// NewFromCreateRequest builds a startup in the initial state derived from the
// submitting caller.
func NewFromCreateRequest(req CreateRequest, submitter Submitter, now time.Time) Startup {
	now = now.UTC()
	s := Startup{
		ID:          uuid.NewString(),
		Name:        strings.TrimSpace(req.Name),
		Country:     strings.TrimSpace(req.Country),
		Sectors:     ParseSectors(req.Sector),
		FoundedYear: req.FoundedYear,
		Description: strings.TrimSpace(req.Description),
		Website:     strings.TrimSpace(req.Website),
		AddedBy:     submitter.addedBy(),
		AddedAt:     now,
		UpdatedAt:   now,
	}

	InitialState(submitter, now).ApplyTo(&s)
	return s
}
