package fixtures

import (
	"encoding/json"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeFile(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "fixtures.yaml")
	require.NoError(t, os.WriteFile(path, []byte(content), 0o600))
	return path
}

func TestDefaultIsValid(t *testing.T) {
	set := Default()
	require.NoError(t, set.Validate())
	assert.Equal(t, "admin@biblioteca.com", set.Admin.Email)
	assert.Equal(t, "Clean Code", set.Seeded.CleanCode)
	assert.Equal(t, 350, set.NewBook.Pages)
}

func TestUnique(t *testing.T) {
	frozen := time.UnixMilli(1700000000000)
	now = func() time.Time { return frozen }
	t.Cleanup(func() { now = time.Now })

	a, b := Unique(), Unique()
	assert.NotEqual(t, a, b, "the counter separates calls within the same millisecond")
	assert.True(t, strings.HasPrefix(a, "1700000000000-"))
}

func TestUserTemplate(t *testing.T) {
	u := Default().UIUser.New()
	assert.True(t, strings.HasPrefix(u.Email, "shelfcheck+"))
	assert.True(t, strings.HasSuffix(u.Email, "@mailinator.com"))
	assert.True(t, strings.HasPrefix(u.Name, "Usuario Teste "))
	assert.Equal(t, Credential{Email: u.Email, Password: "senha123"}, u.Credential())

	other := Default().UIUser.New()
	assert.NotEqual(t, u.Email, other.Email)
}

func TestBookWireNames(t *testing.T) {
	b := Default().APIBook.Uniquified("42")
	raw, err := json.Marshal(b)
	require.NoError(t, err)

	var fields map[string]any
	require.NoError(t, json.Unmarshal(raw, &fields))
	assert.Equal(t, "API Test Book 42", fields["nome"])
	assert.Equal(t, "API Test Author", fields["autor"])
	assert.EqualValues(t, 250, fields["paginas"])
	assert.Contains(t, fields, "descricao")
	assert.Contains(t, fields, "imagemUrl")

	raw, err = json.Marshal(Default().UIUser.New())
	require.NoError(t, err)
	assert.Contains(t, string(raw), `"senha":"senha123"`)
}

func TestLoad(t *testing.T) {
	t.Run("empty path returns the defaults", func(t *testing.T) {
		set, err := Load("")
		require.NoError(t, err)
		assert.Equal(t, Default(), set)
	})

	t.Run("file overrides only what it names", func(t *testing.T) {
		path := writeFile(t, `
admin:
  email: ops@biblioteca.com
  password: s3cret
new_book:
  autor: Jane Roe
seeded:
  book_id: 7
`)
		set, err := Load(path)
		require.NoError(t, err)
		assert.Equal(t, Credential{Email: "ops@biblioteca.com", Password: "s3cret"}, set.Admin)
		assert.Equal(t, "Jane Roe", set.NewBook.Author)
		assert.Equal(t, "Test Automation Book", set.NewBook.Name)
		assert.Equal(t, 7, set.Seeded.BookID)
		assert.Equal(t, "Clean Code", set.Seeded.CleanCode)
	})

	t.Run("empty file keeps the defaults", func(t *testing.T) {
		set, err := Load(writeFile(t, ""))
		require.NoError(t, err)
		assert.Equal(t, Default(), set)
	})

	t.Run("unknown keys are rejected", func(t *testing.T) {
		_, err := Load(writeFile(t, "admn:\n  email: x\n"))
		require.Error(t, err)
		assert.Contains(t, err.Error(), "parsing fixtures")
	})

	t.Run("validation runs after decoding", func(t *testing.T) {
		_, err := Load(writeFile(t, "valid_book:\n  nome: \"\"\n  paginas: -1\n"))
		require.Error(t, err)
		assert.Contains(t, err.Error(), "valid_book.nome is required")
		assert.Contains(t, err.Error(), "valid_book.paginas must not be negative")
	})

	t.Run("missing file", func(t *testing.T) {
		_, err := Load(filepath.Join(t.TempDir(), "absent.yaml"))
		require.Error(t, err)
		assert.ErrorIs(t, err, os.ErrNotExist)
	})
}
