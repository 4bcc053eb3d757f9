package apicheck_test

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/goleak"
	"go.uber.org/zap/zaptest"

	"github.com/xkilldash9x/shelfcheck/internal/apicheck"
	"github.com/xkilldash9x/shelfcheck/internal/failures"
	"github.com/xkilldash9x/shelfcheck/internal/fixtures"
	"github.com/xkilldash9x/shelfcheck/internal/testapp"
)

func TestMain(m *testing.M) {
	goleak.VerifyTestMain(m,
		goleak.IgnoreTopFunction("internal/poll.runtime_pollWait"),
		goleak.IgnoreTopFunction("net/http.(*persistConn).readLoop"),
		goleak.IgnoreTopFunction("net/http.(*persistConn).writeLoop"),
	)
}

func newClient(t *testing.T, opts testapp.APIOptions) (*apicheck.Client, *testapp.Library) {
	t.Helper()
	lib := testapp.NewLibrary()
	srv := httptest.NewServer(testapp.NewAPI(lib, opts))
	c, err := apicheck.New(srv.URL, apicheck.Options{RequestTimeout: 2 * time.Second, Logger: zaptest.NewLogger(t)})
	require.NoError(t, err)
	t.Cleanup(srv.Close)
	return c, lib
}

func assertKind(t *testing.T, want failures.Kind, err error) {
	t.Helper()
	require.Error(t, err)
	assert.Equal(t, want, failures.KindOf(err), "error: %v", err)
}

func TestNewRejectsBadURL(t *testing.T) {
	_, err := apicheck.New("localhost:3000", apicheck.Options{})
	assert.ErrorContains(t, err, "scheme must be http or https")
}

func TestRegisterAndLogin(t *testing.T) {
	ctx := context.Background()
	set := fixtures.Default()

	t.Run("register returns the user without a password", func(t *testing.T) {
		c, lib := newClient(t, testapp.APIOptions{})
		u := set.APIUser.New()
		got, err := c.Register(ctx, u)
		require.NoError(t, err)
		assert.Equal(t, u.Email, got.Email)
		assert.Equal(t, u.Name, got.Name)
		assert.NotZero(t, got.ID)
		assert.Equal(t, 3, lib.UserCount())
	})

	t.Run("duplicate email is refused", func(t *testing.T) {
		c, _ := newClient(t, testapp.APIOptions{})
		admin := fixtures.User{Name: "Admin", Email: set.Admin.Email, Password: set.Admin.Password}
		require.NoError(t, c.RegisterDuplicate(ctx, admin))

		// A fresh email is accepted, so the duplicate check itself fails.
		assertKind(t, failures.KindAssertion, c.RegisterDuplicate(ctx, set.APIUser.New()))
	})

	t.Run("login", func(t *testing.T) {
		c, _ := newClient(t, testapp.APIOptions{})
		got, err := c.Login(ctx, set.Admin)
		require.NoError(t, err)
		assert.Equal(t, testapp.AdminID, got.ID)
		require.NoError(t, c.LoginRejected(ctx, set.InvalidLogin))
	})

	t.Run("leaked password fails the contract", func(t *testing.T) {
		c, _ := newClient(t, testapp.APIOptions{LeakPasswords: true})
		_, err := c.Login(ctx, set.Admin)
		assertKind(t, failures.KindAssertion, err)
		assert.ErrorContains(t, err, `"senha"`)

		_, err = c.Register(ctx, set.APIUser.New())
		assertKind(t, failures.KindAssertion, err)
	})

	t.Run("valid credentials are not a rejection", func(t *testing.T) {
		c, _ := newClient(t, testapp.APIOptions{})
		err := c.LoginRejected(ctx, set.Admin)
		assertKind(t, failures.KindAssertion, err)
		assert.ErrorContains(t, err, "status of POST /login")
	})
}

func TestBookCRUD(t *testing.T) {
	ctx := context.Background()
	set := fixtures.Default()
	c, lib := newClient(t, testapp.APIOptions{})

	created, err := c.CreateBook(ctx, set.APIBook)
	require.NoError(t, err)
	assert.Equal(t, set.APIBook, created.Book)
	assert.NotEmpty(t, created.CreatedAt)

	books, err := c.ListBooks(ctx)
	require.NoError(t, err)
	assert.Len(t, books, 4)

	got, err := c.GetBook(ctx, set.Seeded.BookID)
	require.NoError(t, err)
	assert.Equal(t, "Clean Code", got.Name)

	toUpdate, err := c.CreateBook(ctx, set.UpdateOriginal)
	require.NoError(t, err)
	updated, err := c.UpdateBook(ctx, toUpdate.ID, set.UpdateChanged)
	require.NoError(t, err)
	assert.Equal(t, set.UpdateChanged, updated.Book)
	stored, ok := lib.Book(toUpdate.ID)
	require.True(t, ok)
	assert.Equal(t, set.UpdateChanged.Name, stored.Name)

	toDelete, err := c.CreateBook(ctx, set.APIDisposable)
	require.NoError(t, err)
	require.NoError(t, c.DeleteBook(ctx, toDelete.ID))
	require.NoError(t, c.BookGone(ctx, toDelete.ID))

	t.Run("missing book", func(t *testing.T) {
		_, err := c.GetBook(ctx, 9999)
		assertKind(t, failures.KindAssertion, err)
		assertKind(t, failures.KindAssertion, c.DeleteBook(ctx, 9999))
		assertKind(t, failures.KindAssertion, c.BookGone(ctx, set.Seeded.BookID))
	})
}

func TestBookEquals(t *testing.T) {
	ctx := context.Background()
	set := fixtures.Default()

	t.Run("stored fields read back", func(t *testing.T) {
		c, _ := newClient(t, testapp.APIOptions{})
		created, err := c.CreateBook(ctx, set.APIBook)
		require.NoError(t, err)
		got, err := c.BookEquals(ctx, created.ID, set.APIBook)
		require.NoError(t, err)
		assert.Equal(t, created.ID, got.ID)
	})

	t.Run("read differs from the created echo", func(t *testing.T) {
		c, _ := newClient(t, testapp.APIOptions{CorruptReads: true})
		created, err := c.CreateBook(ctx, set.APIBook)
		require.NoError(t, err, "the POST echo is still correct")
		_, err = c.BookEquals(ctx, created.ID, set.APIBook)
		assertKind(t, failures.KindAssertion, err)
		assert.ErrorContains(t, err, "read back")
	})
}

func TestListBooksOnEmptyCatalog(t *testing.T) {
	c, lib := newClient(t, testapp.APIOptions{})
	for _, b := range lib.Books() {
		require.True(t, lib.DeleteBook(b.ID))
	}
	_, err := c.ListBooks(context.Background())
	assertKind(t, failures.KindAssertion, err)
}

func TestFavorites(t *testing.T) {
	ctx := context.Background()
	c, lib := newClient(t, testapp.APIOptions{})
	user, book := testapp.AdminID, testapp.HarryPotterID

	c.ClearFavorite(ctx, user, book)
	require.NoError(t, c.AddFavorite(ctx, user, book))
	assert.True(t, lib.IsFavorite(user, book))

	listed, err := c.FavoritesContain(ctx, user, book)
	require.NoError(t, err)
	require.Len(t, listed, 1)
	assert.Equal(t, book, listed[0].ID)

	t.Run("adding twice fails", func(t *testing.T) {
		assertKind(t, failures.KindAssertion, c.AddFavorite(ctx, user, book))
	})

	require.NoError(t, c.RemoveFavorite(ctx, user, book))
	assert.False(t, lib.IsFavorite(user, book))
	assertKind(t, failures.KindAssertion, c.RemoveFavorite(ctx, user, book))

	_, err = c.FavoritesContain(ctx, user, book)
	assertKind(t, failures.KindAssertion, err)

	// Clearing an absent favorite is accepted silently.
	c.ClearFavorite(ctx, user, book)
}

func TestStats(t *testing.T) {
	ctx := context.Background()

	t.Run("computed", func(t *testing.T) {
		c, _ := newClient(t, testapp.APIOptions{})
		s, err := c.Stats(ctx)
		require.NoError(t, err)
		assert.Equal(t, 3, s.TotalBooks)
		assert.Equal(t, 2, s.TotalUsers)
		assert.Equal(t, 464+264+1200, s.TotalPages)
	})

	t.Run("no users", func(t *testing.T) {
		c, _ := newClient(t, testapp.APIOptions{StatsOverride: &testapp.Stats{TotalBooks: 1}})
		_, err := c.Stats(ctx)
		assertKind(t, failures.KindAssertion, err)
		assert.ErrorContains(t, err, "totalUsuarios")
	})

	t.Run("negative pages", func(t *testing.T) {
		c, _ := newClient(t, testapp.APIOptions{StatsOverride: &testapp.Stats{TotalPages: -1, TotalUsers: 1}})
		_, err := c.Stats(ctx)
		assert.ErrorContains(t, err, "totalPaginas")
	})
}

func TestStatsRejectsNonNumbers(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"totalLivros":"3","totalPaginas":10,"totalUsuarios":1}`))
	}))
	defer srv.Close()
	c, err := apicheck.New(srv.URL, apicheck.Options{})
	require.NoError(t, err)

	_, err = c.Stats(context.Background())
	assertKind(t, failures.KindAssertion, err)
	assert.ErrorContains(t, err, "totalLivros")
}

func TestRateLimitHonorsContext(t *testing.T) {
	lib := testapp.NewLibrary()
	srv := httptest.NewServer(testapp.NewAPI(lib, testapp.APIOptions{}))
	defer srv.Close()
	c, err := apicheck.New(srv.URL, apicheck.Options{RateLimit: 0.001, Burst: 1})
	require.NoError(t, err)

	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()
	_, err = c.Do(ctx, http.MethodGet, "/livros", nil)
	require.NoError(t, err, "the first request uses the burst")
	_, err = c.Do(ctx, http.MethodGet, "/livros", nil)
	assert.Error(t, err)
}
