package memory

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/geocoder89/fintechindex/internal/domain/country"
	"github.com/geocoder89/fintechindex/internal/domain/startup"
	"github.com/geocoder89/fintechindex/internal/domain/user"
	"github.com/geocoder89/fintechindex/internal/sentinel"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func score(v float64) *float64 { return &v }

func newRecord(id, name string, year int, s float64) country.Record {
	return country.NewFromCreateRequest(country.CreateRequest{
		CountryID: id, Name: name, Year: year,
		FinalScore: score(s), LiteracyRate: score(1), DigitalInfrastructure: score(1), Investment: score(1),
	}, "editor@x.com")
}

func TestUsersRepoEmailUniqueness(t *testing.T) {
	ctx := context.Background()
	repo := NewUsersRepo()

	u := user.NewFromRegisterRequest(user.RegisterRequest{Email: "Ada@Example.com", Name: "Ada"}, "hash")
	_, err := repo.Create(ctx, u)
	require.NoError(t, err)

	dup := user.NewFromRegisterRequest(user.RegisterRequest{Email: "ada@example.com", Name: "Other"}, "hash")
	_, err = repo.Create(ctx, dup)
	assert.ErrorIs(t, err, user.ErrEmailTaken)
	assert.ErrorIs(t, err, sentinel.ErrConflict)

	got, err := repo.GetByEmail(ctx, " ADA@example.com ")
	require.NoError(t, err)
	assert.Equal(t, u.ID, got.ID)
	assert.Equal(t, "Ada", got.Name)
}

func TestUsersRepoVerifyUpdateDelete(t *testing.T) {
	ctx := context.Background()
	repo := NewUsersRepo()

	u, err := repo.Create(ctx, user.NewFromRegisterRequest(user.RegisterRequest{Email: "a@x.com", Name: "A"}, "hash"))
	require.NoError(t, err)

	verified := true
	list, err := repo.List(ctx, user.ListFilter{Verified: &verified})
	require.NoError(t, err)
	assert.Empty(t, list)

	u, err = repo.SetVerified(ctx, u.ID, true)
	require.NoError(t, err)
	assert.True(t, u.IsVerified)

	role := "editor"
	user.UpdateRequest{Role: &role}.Apply(&u)
	u.PasswordHash = "tampered"
	u, err = repo.Update(ctx, u)
	require.NoError(t, err)
	assert.Equal(t, "editor", u.Role)
	assert.Equal(t, "hash", u.PasswordHash)

	_, err = repo.Delete(ctx, u.ID)
	require.NoError(t, err)

	_, err = repo.GetByID(ctx, u.ID)
	assert.ErrorIs(t, err, sentinel.ErrNotFound)
	_, err = repo.GetByEmail(ctx, "a@x.com")
	assert.ErrorIs(t, err, user.ErrNotFound)
}

func TestCountryCreateDuplicateKeepsOriginal(t *testing.T) {
	ctx := context.Background()
	repo := NewCountryMetricsRepo()

	_, err := repo.Create(ctx, newRecord("NGA", "Nigeria", 2024, 50))
	require.NoError(t, err)

	_, err = repo.Create(ctx, newRecord("nga", "Nigeria", 2024, 99))
	assert.ErrorIs(t, err, sentinel.ErrConflict)

	got, err := repo.Get(ctx, "nga", 2024)
	require.NoError(t, err)
	assert.Equal(t, 50.0, got.FinalScore)
}

func TestCountryListFiltersSortsAndLimits(t *testing.T) {
	ctx := context.Background()
	repo := NewCountryMetricsRepo()

	_, err := repo.InsertMany(ctx, []country.Record{
		newRecord("NGA", "Nigeria", 2024, 60),
		newRecord("KEN", "Kenya", 2024, 80),
		newRecord("KEN", "Kenya", 2023, 70),
	})
	require.NoError(t, err)

	all, err := repo.List(ctx, country.ListFilter{Sort: country.SortScore})
	require.NoError(t, err)
	require.Len(t, all, 3)
	assert.Equal(t, 80.0, all[0].FinalScore)

	year := 2024
	got, err := repo.List(ctx, country.ListFilter{Year: &year, Limit: 1})
	require.NoError(t, err)
	require.Len(t, got, 1)
	assert.Equal(t, "Kenya", got[0].Name)

	years, err := repo.DistinctYears(ctx)
	require.NoError(t, err)
	assert.Equal(t, []int{2024, 2023}, years)

	names, err := repo.DistinctCountries(ctx)
	require.NoError(t, err)
	assert.Equal(t, []country.CountryName{{CountryID: "KEN", Name: "Kenya"}, {CountryID: "NGA", Name: "Nigeria"}}, names)
}

func TestDeleteByCountryNameMatchesPattern(t *testing.T) {
	ctx := context.Background()
	repo := NewCountryMetricsRepo()

	_, err := repo.InsertMany(ctx, []country.Record{
		newRecord("COD", "Congo (Democratic Republic)", 2024, 30),
		newRecord("COG", "Congo", 2024, 35),
		newRecord("GIN", "Guinea", 2024, 25),
		newRecord("GNB", "Guinea-Bissau", 2024, 20),
	})
	require.NoError(t, err)

	n, err := repo.DeleteByCountryName(ctx, "  ")
	require.NoError(t, err)
	assert.Zero(t, n)

	n, err = repo.DeleteByCountryName(ctx, "CONGO")
	require.NoError(t, err)
	assert.EqualValues(t, 2, n)

	n, err = repo.DeleteByCountryName(ctx, "bissau")
	require.NoError(t, err)
	assert.EqualValues(t, 1, n)

	left, err := repo.DistinctCountries(ctx)
	require.NoError(t, err)
	assert.Equal(t, []country.CountryName{{CountryID: "GIN", Name: "Guinea"}}, left)
}

func TestCountryDeletes(t *testing.T) {
	ctx := context.Background()
	repo := NewCountryMetricsRepo()

	_, err := repo.InsertMany(ctx, []country.Record{
		newRecord("NGA", "Nigeria", 2024, 60),
		newRecord("NGA", "Nigeria", 2023, 55),
		newRecord("KEN", "Kenya", 2024, 80),
		newRecord("GHA", "Ghana", 2022, 40),
	})
	require.NoError(t, err)

	n, err := repo.DeleteByYear(ctx, 1999)
	require.NoError(t, err)
	assert.Zero(t, n)

	year := 2024
	n, err = repo.DeleteByIDs(ctx, []string{"nga"}, &year)
	require.NoError(t, err)
	assert.EqualValues(t, 1, n)

	n, err = repo.DeleteByCountryName(ctx, "nigeria")
	require.NoError(t, err)
	assert.EqualValues(t, 1, n)

	assert.ErrorIs(t, repo.Delete(ctx, "KEN", 2023), country.ErrNotFound)
	require.NoError(t, repo.Delete(ctx, "KEN", 2024))

	n, err = repo.DeleteAll(ctx)
	require.NoError(t, err)
	assert.EqualValues(t, 1, n)

	count, err := repo.Count(ctx)
	require.NoError(t, err)
	assert.Zero(t, count)
}

func TestCountryInsertManySkipsExisting(t *testing.T) {
	ctx := context.Background()
	repo := NewCountryMetricsRepo()

	_, err := repo.Create(ctx, newRecord("NGA", "Nigeria", 2024, 60))
	require.NoError(t, err)

	keys, err := repo.ExistingKeys(ctx, []country.Key{{CountryID: "NGA", Year: 2024}, {CountryID: "KEN", Year: 2024}})
	require.NoError(t, err)
	assert.Equal(t, []country.Key{{CountryID: "NGA", Year: 2024}}, keys)

	n, err := repo.InsertMany(ctx, []country.Record{newRecord("NGA", "Nigeria", 2024, 1), newRecord("KEN", "Kenya", 2024, 2)})
	require.NoError(t, err)
	assert.EqualValues(t, 1, n)

	got, err := repo.Get(ctx, "NGA", 2024)
	require.NoError(t, err)
	assert.Equal(t, 60.0, got.FinalScore)
}

func TestExpiredContextIsTimeout(t *testing.T) {
	ctx, cancel := context.WithTimeout(context.Background(), time.Nanosecond)
	defer cancel()
	<-ctx.Done()

	_, err := NewCountryMetricsRepo().List(ctx, country.ListFilter{})
	assert.ErrorIs(t, err, sentinel.ErrTimeout)

	_, err = NewStartupsRepo().ListPending(ctx)
	assert.True(t, errors.Is(err, context.DeadlineExceeded))
}

func TestStartupsListAndVerification(t *testing.T) {
	ctx := context.Background()
	repo := NewStartupsRepo()

	base := time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC)
	var ids []string
	for i, name := range []string{"Paystack", "Kuda", "Moniepoint"} {
		s := startup.NewFromCreateRequest(startup.CreateRequest{Name: name, Country: "Nigeria", Sector: "Payments", FoundedYear: 2015}, startup.Submitter{}, base.Add(time.Duration(i)*time.Hour))
		_, err := repo.Create(ctx, s)
		require.NoError(t, err)
		ids = append(ids, s.ID)
	}

	pending, err := repo.ListPending(ctx)
	require.NoError(t, err)
	require.Len(t, pending, 3)
	assert.Equal(t, "Paystack", pending[0].Name)

	v, err := startup.NewVerification("approved", "admin@x.com", "", time.Now())
	require.NoError(t, err)

	n, err := repo.SetVerificationMany(ctx, []string{ids[0], ids[2], "missing"}, v)
	require.NoError(t, err)
	assert.EqualValues(t, 2, n)

	approved := startup.StatusApproved
	list, err := repo.List(ctx, startup.ListFilter{Status: &approved})
	require.NoError(t, err)
	require.Len(t, list, 2)
	assert.Equal(t, "Moniepoint", list[0].Name)
	for _, s := range list {
		assert.True(t, s.IsVerified)
	}

	_, err = repo.SetVerification(ctx, "missing", v)
	assert.ErrorIs(t, err, startup.ErrNotFound)
}

func TestStartupsUpdateKeepsVerification(t *testing.T) {
	ctx := context.Background()
	repo := NewStartupsRepo()

	s := startup.NewFromCreateRequest(startup.CreateRequest{Name: "Chipper", Country: "Uganda", Sector: "Payments", FoundedYear: 2018}, startup.Submitter{}, time.Now())
	_, err := repo.Create(ctx, s)
	require.NoError(t, err)

	s.VerificationStatus = startup.StatusApproved
	s.Name = "Chipper Cash"
	got, err := repo.Update(ctx, s)
	require.NoError(t, err)
	assert.Equal(t, "Chipper Cash", got.Name)
	assert.Equal(t, startup.StatusPending, got.VerificationStatus)

	n, err := repo.DeleteMany(ctx, []string{s.ID, "missing"})
	require.NoError(t, err)
	assert.EqualValues(t, 1, n)
}
