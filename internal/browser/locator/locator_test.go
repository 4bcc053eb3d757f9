package locator_test

import (
	"context"
	"regexp"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/xkilldash9x/shelfcheck/internal/browser/locator"
	"github.com/xkilldash9x/shelfcheck/internal/browser/surface/surfacetest"
	"github.com/xkilldash9x/shelfcheck/internal/failures"
)

func booksPage(t *testing.T) *surfacetest.Surface {
	t.Helper()
	s := surfacetest.New()
	s.Add(
		&surfacetest.Element{Tag: "input", Role: "textbox", Name: "Nome do Livro:"},
		&surfacetest.Element{Tag: "input", Role: "textbox", Name: "Autor:"},
		&surfacetest.Element{Tag: "input", Role: "spinbutton", Name: "Número de Páginas:"},
		&surfacetest.Element{Tag: "button", Role: "button", Name: "Adicionar Livro"},
		&surfacetest.Element{Tag: "h1", Role: "heading", Level: 1, Name: "📚 Gerenciar Livros"},
		&surfacetest.Element{Tag: "h2", Role: "heading", Level: 2, Name: "Todos os Livros"},
	)
	grid := s.Add(&surfacetest.Element{Tag: "div", Matches: []string{"#lista-livros"}})
	for _, title := range []string{"Clean Code", "Harry Potter", "Dom Casmurro"} {
		card := s.Add(&surfacetest.Element{Tag: "div", Matches: []string{".book-card"}, Parent: grid})
		s.Add(&surfacetest.Element{Tag: "h3", Text: title, Parent: card})
	}
	return s
}

func TestResolveByRole(t *testing.T) {
	ctx := context.Background()
	s := booksPage(t)

	t.Run("non-exact name is a case-insensitive substring", func(t *testing.T) {
		set, err := locator.ByRole(locator.RoleTextbox, "nome do").Resolve(ctx, s)
		require.NoError(t, err)
		require.Equal(t, 1, set.Len())
		assert.Equal(t, "Nome do Livro:", set.Candidates[0].Name)
	})

	t.Run("exact name is whole-string and case-sensitive", func(t *testing.T) {
		n, err := locator.ByRole(locator.RoleTextbox, "autor:").Exact().Count(ctx, s)
		require.NoError(t, err)
		assert.Zero(t, n)

		n, err = locator.ByRole(locator.RoleTextbox, "  Autor:  ").Exact().Count(ctx, s)
		require.NoError(t, err)
		assert.Equal(t, 1, n)
	})

	t.Run("pattern name", func(t *testing.T) {
		n, err := locator.ByRolePattern(locator.RoleHeading, regexp.MustCompile(`Livros$`)).Count(ctx, s)
		require.NoError(t, err)
		assert.Equal(t, 2, n)
	})

	t.Run("heading level", func(t *testing.T) {
		set, err := locator.ByRole(locator.RoleHeading, "").Level(2).Resolve(ctx, s)
		require.NoError(t, err)
		c, err := set.Single()
		require.NoError(t, err)
		assert.Equal(t, "Todos os Livros", c.Name)
	})

	t.Run("unsupported role fails validation", func(t *testing.T) {
		_, err := locator.ByRole("slider", "x").Resolve(ctx, s)
		assert.ErrorIs(t, err, locator.ErrUnsupportedRole)
	})
}

func TestResolveHiddenRoleCandidatesAreSkipped(t *testing.T) {
	s := surfacetest.New()
	s.Add(&surfacetest.Element{Tag: "button", Role: "button", Name: "Sair", Hidden: true})
	n, err := locator.ByRole(locator.RoleButton, "Sair").Count(context.Background(), s)
	require.NoError(t, err)
	assert.Zero(t, n)

	n, err = locator.ByCSS("button").Count(context.Background(), s)
	require.NoError(t, err)
	assert.Equal(t, 1, n, "css queries include hidden elements")
}

func TestResolveCSSWithTextAndOrdinal(t *testing.T) {
	ctx := context.Background()
	s := booksPage(t)
	cards := locator.ByCSS(".book-card")

	n, err := cards.Count(ctx, s)
	require.NoError(t, err)
	assert.Equal(t, 3, n)

	_, err = mustResolve(t, cards).Single()
	var amb *failures.AmbiguousMatchError
	require.ErrorAs(t, err, &amb)
	assert.Equal(t, 3, amb.Count)

	set, err := cards.WithText("harry").Resolve(ctx, s)
	require.NoError(t, err)
	assert.Equal(t, 1, set.Len())

	last, err := cards.Last().Resolve(ctx, s)
	require.NoError(t, err)
	c, err := last.Single()
	require.NoError(t, err)
	assert.Equal(t, "Dom Casmurro", c.Text)

	out, err := cards.Nth(7).Resolve(ctx, s)
	require.NoError(t, err)
	_, err = out.Single()
	assert.ErrorIs(t, err, locator.ErrNoMatch)
}

func TestResolveNested(t *testing.T) {
	ctx := context.Background()
	s := booksPage(t)

	title := locator.ByCSS(".book-card").Nth(1).Locator(locator.ByCSS("h3"))
	set, err := title.Resolve(ctx, s)
	require.NoError(t, err)
	c, err := set.Single()
	require.NoError(t, err)
	assert.Equal(t, "Harry Potter", c.Text)

	t.Run("ambiguous parent", func(t *testing.T) {
		_, err := locator.ByCSS(".book-card").Locator(locator.ByCSS("h3")).Resolve(ctx, s)
		var amb *failures.AmbiguousMatchError
		assert.ErrorAs(t, err, &amb)
	})

	t.Run("missing parent yields an empty set", func(t *testing.T) {
		set, err := locator.ByCSS(".nope").Locator(locator.ByCSS("h3")).Resolve(ctx, s)
		require.NoError(t, err)
		assert.Zero(t, set.Len())
	})
}

func TestScopeSelector(t *testing.T) {
	s := surfacetest.New()
	recent := s.Add(&surfacetest.Element{Tag: "div", Matches: []string{"#livros-recentes"}})
	s.Add(&surfacetest.Element{Tag: "div", Matches: []string{".book-card"}, Parent: recent})
	s.Add(&surfacetest.Element{Tag: "div", Matches: []string{".book-card"}})

	n, err := locator.ByCSS(".book-card").Within("#livros-recentes, .books-grid").Count(context.Background(), s)
	require.NoError(t, err)
	assert.Equal(t, 1, n)
}

func TestLocatorString(t *testing.T) {
	l := locator.ByRole(locator.RoleTextbox, "Senha:").Exact()
	assert.Equal(t, `role=textbox[name="Senha:" exact]`, l.String())
	assert.Equal(t, `css=.book-card[has-text="Clean Code"] nth=0`, locator.ByCSS(".book-card").WithText("Clean Code").First().String())
}

func TestNormalize(t *testing.T) {
	assert.Equal(t, "a b c", locator.Normalize("  a\n\tb   c "))
	assert.Equal(t, `[data-shelfcheck-ref="12"]`, locator.RefSelector("12"))
}

func mustResolve(t *testing.T, l locator.Locator) locator.TargetSet {
	t.Helper()
	set, err := l.Resolve(context.Background(), booksPage(t))
	require.NoError(t, err)
	return set
}
