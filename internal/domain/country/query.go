package country

import (
	"sort"
	"strings"
)

const (
	DefaultLimit = 1000
	MaxLimit     = 1000
)

type SortOrder string

const (
	SortDefault SortOrder = ""
	SortScore   SortOrder = "score"
	SortName    SortOrder = "name"
)

func ParseSort(raw string) (SortOrder, error) {
	switch SortOrder(strings.ToLower(strings.TrimSpace(raw))) {
	case SortDefault, "year":
		return SortDefault, nil
	case SortScore:
		return SortScore, nil
	case SortName:
		return SortName, nil
	default:
		return SortDefault, ErrInvalidSort
	}
}

// with pointers if optional, it will be nil
type ListFilter struct {
	Year      *int
	CountryID *string
	Search    *string
	Sort      SortOrder
	Limit     int
}

// ClampLimit applies the default and the server-side cap.
func ClampLimit(limit int) int {
	if limit <= 0 {
		return DefaultLimit
	}
	if limit > MaxLimit {
		return MaxLimit
	}
	return limit
}

func (f ListFilter) Matches(r Record) bool {
	if f.Year != nil && r.Year != *f.Year {
		return false
	}
	if f.CountryID != nil && !strings.EqualFold(r.CountryID, strings.TrimSpace(*f.CountryID)) {
		return false
	}
	if f.Search != nil {
		q := strings.ToLower(strings.TrimSpace(*f.Search))
		if q != "" && !strings.Contains(strings.ToLower(r.Name), q) && !strings.Contains(strings.ToLower(r.CountryID), q) {
			return false
		}
	}
	return true
}

// Less reports whether a sorts before b under the given order.
//
//	default: year desc, name asc
//	score:   finalScore desc, year desc
//	name:    name asc, year desc
func (s SortOrder) Less(a, b Record) bool {
	switch s {
	case SortScore:
		if a.FinalScore != b.FinalScore {
			return a.FinalScore > b.FinalScore
		}
		return a.Year > b.Year
	case SortName:
		if an, bn := strings.ToLower(a.Name), strings.ToLower(b.Name); an != bn {
			return an < bn
		}
		return a.Year > b.Year
	default:
		if a.Year != b.Year {
			return a.Year > b.Year
		}
		return strings.ToLower(a.Name) < strings.ToLower(b.Name)
	}
}

func SortRecords(recs []Record, order SortOrder) {
	sort.SliceStable(recs, func(i, j int) bool { return order.Less(recs[i], recs[j]) })
}

type Stats struct {
	Count     int64   `json:"count"`
	Countries int64   `json:"countries"`
	Years     []int   `json:"years"`
	MinScore  float64 `json:"minScore"`
	AvgScore  float64 `json:"avgScore"`
	MaxScore  float64 `json:"maxScore"`
}

// ComputeStats aggregates in process. The Postgres store does the same in SQL.
func ComputeStats(recs []Record) Stats {
	st := Stats{Years: []int{}}
	if len(recs) == 0 {
		return st
	}

	countries := make(map[string]struct{})
	years := make(map[int]struct{})
	var sum float64

	st.MinScore = recs[0].FinalScore
	st.MaxScore = recs[0].FinalScore

	for _, r := range recs {
		countries[r.CountryID] = struct{}{}
		years[r.Year] = struct{}{}
		sum += r.FinalScore
		if r.FinalScore < st.MinScore {
			st.MinScore = r.FinalScore
		}
		if r.FinalScore > st.MaxScore {
			st.MaxScore = r.FinalScore
		}
	}

	st.Count = int64(len(recs))
	st.Countries = int64(len(countries))
	st.AvgScore = Round2(sum / float64(len(recs)))
	for y := range years {
		st.Years = append(st.Years, y)
	}
	sort.Sort(sort.Reverse(sort.IntSlice(st.Years)))

	return st
}

type CountryName struct {
	CountryID string `json:"id"`
	Name      string `json:"name"`
}
