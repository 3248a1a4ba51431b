package country

import (
	"errors"
	"fmt"
	"math"
	"strings"
	"time"

	"github.com/geocoder89/fintechindex/internal/sentinel"
)

// Record holds one country's fintech-index inputs and score for one year.
// (CountryID, Year) is unique.
type Record struct {
	CountryID             string    `json:"id"`
	Name                  string    `json:"name"`
	Year                  int       `json:"year"`
	FinalScore            float64   `json:"finalScore"`
	LiteracyRate          float64   `json:"literacyRate"`
	DigitalInfrastructure float64   `json:"digitalInfrastructure"`
	Investment            float64   `json:"investment"`
	Population            *int64    `json:"population,omitempty"`
	GDP                   *float64  `json:"gdp,omitempty"`
	CreatedBy             string    `json:"createdBy,omitempty"`
	UpdatedBy             string    `json:"updatedBy,omitempty"`
	CreatedAt             time.Time `json:"createdAt"`
	UpdatedAt             time.Time `json:"updatedAt"`
}

type Key struct {
	CountryID string `json:"id"`
	Year      int    `json:"year"`
}

func (r Record) Key() Key {
	return Key{CountryID: r.CountryID, Year: r.Year}
}

var (
	ErrNotFound    = fmt.Errorf("country record %w", sentinel.ErrNotFound)
	ErrDuplicate   = fmt.Errorf("record for this country and year already exists: %w", sentinel.ErrConflict)
	ErrInvalidSort = errors.New("invalid sort option")
)

type CreateRequest struct {
	CountryID             string   `json:"id" binding:"required,min=2,max=8"`
	Name                  string   `json:"name" binding:"required,min=2,max=120"`
	Year                  int      `json:"year" binding:"required,min=1900,max=2200"`
	FinalScore            *float64 `json:"finalScore" binding:"required,min=0"`
	LiteracyRate          *float64 `json:"literacyRate" binding:"required,min=0"`
	DigitalInfrastructure *float64 `json:"digitalInfrastructure" binding:"required,min=0"`
	Investment            *float64 `json:"investment" binding:"required,min=0"`
	Population            *int64   `json:"population" binding:"omitempty,min=0"`
	GDP                   *float64 `json:"gdp" binding:"omitempty,min=0"`
}

type BulkCreateRequest struct {
	Records []CreateRequest `json:"records" binding:"required,dive"`
}

// UpdateRequest replaces the metric fields of an existing record. The key
// (country id, year) comes from the URL and cannot change.
type UpdateRequest struct {
	Name                  string   `json:"name" binding:"required,min=2,max=120"`
	FinalScore            *float64 `json:"finalScore" binding:"required,min=0"`
	LiteracyRate          *float64 `json:"literacyRate" binding:"required,min=0"`
	DigitalInfrastructure *float64 `json:"digitalInfrastructure" binding:"required,min=0"`
	Investment            *float64 `json:"investment" binding:"required,min=0"`
	Population            *int64   `json:"population" binding:"omitempty,min=0"`
	GDP                   *float64 `json:"gdp" binding:"omitempty,min=0"`
}

type SelectiveDeleteRequest struct {
	IDs  []string `json:"ids"`
	Year *int     `json:"year" binding:"omitempty,min=1900,max=2200"`
}

func NormalizeID(id string) string {
	return strings.ToUpper(strings.TrimSpace(id))
}

func NewFromCreateRequest(req CreateRequest, createdBy string) Record {
	now := time.Now().UTC()

	return Record{
		CountryID:             NormalizeID(req.CountryID),
		Name:                  strings.TrimSpace(req.Name),
		Year:                  req.Year,
		FinalScore:            deref(req.FinalScore),
		LiteracyRate:          deref(req.LiteracyRate),
		DigitalInfrastructure: deref(req.DigitalInfrastructure),
		Investment:            deref(req.Investment),
		Population:            req.Population,
		GDP:                   req.GDP,
		CreatedBy:             createdBy,
		UpdatedBy:             createdBy,
		CreatedAt:             now,
		UpdatedAt:             now,
	}
}

func (r UpdateRequest) Apply(rec *Record, updatedBy string) {
	rec.Name = strings.TrimSpace(r.Name)
	rec.FinalScore = deref(r.FinalScore)
	rec.LiteracyRate = deref(r.LiteracyRate)
	rec.DigitalInfrastructure = deref(r.DigitalInfrastructure)
	rec.Investment = deref(r.Investment)
	rec.Population = r.Population
	rec.GDP = r.GDP
	rec.UpdatedBy = updatedBy
	rec.UpdatedAt = time.Now().UTC()
}

func deref(f *float64) float64 {
	if f == nil {
		return 0
	}
	return *f
}

// Round2 rounds to two decimals, half away from zero.
func Round2(v float64) float64 {
	return math.Round(v*100) / 100
}
