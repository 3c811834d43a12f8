package location

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/nkiryanov/courierdash/internal/api"
	"github.com/nkiryanov/courierdash/internal/apperrors"
	"github.com/nkiryanov/courierdash/internal/credstore"
	"github.com/nkiryanov/courierdash/internal/models"
	"github.com/nkiryanov/courierdash/internal/service/auth"
	"github.com/nkiryanov/courierdash/internal/session"
	"github.com/nkiryanov/courierdash/internal/testutil/fakeapi"
	"github.com/nkiryanov/courierdash/internal/validate"
)

func newTestService(t *testing.T) (*LocationService, *fakeapi.Server) {
	t.Helper()

	srv := fakeapi.New(t)
	srv.AddAccount("owner@example.com", "secret-pass")

	store := credstore.NewStore(credstore.NewMemoryBackend(), credstore.NewMemoryBackend(), nil, nil)
	authService, err := auth.NewService(auth.Config{}, api.NewClient(srv.URL), store, session.NewState(store, nil))
	require.NoError(t, err)
	_, err = authService.Login(t.Context(), "owner@example.com", "secret-pass", false)
	require.NoError(t, err)

	return NewService(authService.Client(), nil), srv
}

func ptr[T any](v T) *T {
	return &v
}

func TestLocationService(t *testing.T) {
	t.Run("Create", func(t *testing.T) {
		t.Run("active by default", func(t *testing.T) {
			s, _ := newTestService(t)

			l, err := s.Create(t.Context(), models.CreateLocationRequest{
				Name:        "Main warehouse",
				CountryCode: "ET",
				City:        "Addis Ababa",
				Latitude:    "9.03",
				Longitude:   "38.74",
			})

			require.NoError(t, err)
			require.NotZero(t, l.ID)
			require.Equal(t, "Main warehouse", l.Name)
			require.True(t, l.Active)
		})

		t.Run("invalid never sent", func(t *testing.T) {
			s, srv := newTestService(t)

			_, err := s.Create(t.Context(), models.CreateLocationRequest{Name: "Shop", CountryCode: "Ethiopia", Latitude: "91"})

			var fieldErrs *validate.FieldErrors
			require.ErrorAs(t, err, &fieldErrs)
			require.Contains(t, fieldErrs.Fields, "country_code")
			require.Contains(t, fieldErrs.Fields, "latitude")
			require.Equal(t, 0, srv.Calls("POST /business_locations"))
		})
	})

	t.Run("List and Active", func(t *testing.T) {
		s, _ := newTestService(t)
		_, err := s.Create(t.Context(), models.CreateLocationRequest{Name: "Open", CountryCode: "ET"})
		require.NoError(t, err)
		_, err = s.Create(t.Context(), models.CreateLocationRequest{Name: "Closed", CountryCode: "ET", Active: ptr(false)})
		require.NoError(t, err)

		all, err := s.List(t.Context())
		require.NoError(t, err)
		require.Len(t, all, 2)

		active, err := s.Active(t.Context())
		require.NoError(t, err)
		require.Len(t, active, 1)
		require.Equal(t, "Open", active[0].Name)
	})

	t.Run("Update", func(t *testing.T) {
		t.Run("partial ok", func(t *testing.T) {
			s, _ := newTestService(t)
			created, err := s.Create(t.Context(), models.CreateLocationRequest{Name: "Shop", CountryCode: "ET", City: "Adama"})
			require.NoError(t, err)

			l, err := s.Update(t.Context(), created.ID, models.UpdateLocationRequest{Name: ptr("Flagship"), Active: ptr(false)})

			require.NoError(t, err)
			require.Equal(t, "Flagship", l.Name)
			require.Equal(t, "Adama", l.City, "fields not sent should stay")
			require.False(t, l.Active)
		})

		t.Run("unknown not found", func(t *testing.T) {
			s, _ := newTestService(t)

			_, err := s.Update(t.Context(), 404, models.UpdateLocationRequest{Name: ptr("Nope")})

			require.ErrorIs(t, err, apperrors.ErrNotFound)
		})
	})

	t.Run("Delete", func(t *testing.T) {
		s, _ := newTestService(t)
		created, err := s.Create(t.Context(), models.CreateLocationRequest{Name: "Shop", CountryCode: "ET"})
		require.NoError(t, err)

		require.NoError(t, s.Delete(t.Context(), created.ID))

		list, err := s.List(t.Context())
		require.NoError(t, err)
		require.Empty(t, list)
	})
}
