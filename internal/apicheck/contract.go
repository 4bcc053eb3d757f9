// File: internal/apicheck/contract.go
package apicheck

import (
	"context"
	"fmt"
	"net/http"
	"strconv"

	"go.uber.org/zap"

	"github.com/xkilldash9x/shelfcheck/internal/failures"
	"github.com/xkilldash9x/shelfcheck/internal/fixtures"
)

// Messages the API answers with.
const (
	MsgUserCreated     = "Usuário criado com sucesso"
	MsgEmailTaken      = "Email já cadastrado"
	MsgLoginSuccess    = "Login realizado com sucesso"
	MsgLoginRejected   = "Email ou senha incorretos"
	MsgBookRemoved     = "Livro removido com sucesso"
	MsgFavoriteAdded   = "Livro adicionado aos favoritos"
	MsgFavoriteRemoved = "Livro removido dos favoritos"
)

const (
	passwordField      = "senha"
	createdAtField     = "dataCadastro"
	userEnvelopeField  = "usuario"
	messageEnvelopeKey = "mensagem"
)

var (
	userFields      = []string{"id", "nome", "email"}
	bookFields      = []string{"id", "nome", "autor", "paginas", "descricao", "imagemUrl"}
	bookSummary     = []string{"id", "nome", "autor", "paginas"}
	favoriteSummary = []string{"id", "nome", "autor"}
	statsFields     = []string{"totalLivros", "totalPaginas", "totalUsuarios"}
)

// User is a user object as the API returns it.
type User struct {
	ID    int    `json:"id"`
	Name  string `json:"nome"`
	Email string `json:"email"`
}

// Book is a stored book as the API returns it.
type Book struct {
	ID int `json:"id"`
	fixtures.Book
	CreatedAt string `json:"dataCadastro"`
}

// Stats is the body of GET /estatisticas.
type Stats struct {
	TotalBooks int `json:"totalLivros"`
	TotalPages int `json:"totalPaginas"`
	TotalUsers int `json:"totalUsuarios"`
}

type favoriteRequest struct {
	UserID int `json:"usuarioId"`
	BookID int `json:"livroId"`
}

func expectStatus(r *Response, want int) error {
	if r.Status != want {
		return failures.Assertf(want, r.Status, "status of %s %s (body %s)", r.Method, r.Path, truncate(r.Body))
	}
	return nil
}

func truncate(b []byte) string {
	const n = 200
	if len(b) > n {
		return string(b[:n]) + "..."
	}
	return string(b)
}

// expectEnvelope checks the status and mensagem of r and returns the decoded object.
func expectEnvelope(r *Response, status int, message string) (map[string]any, error) {
	if err := expectStatus(r, status); err != nil {
		return nil, err
	}
	body, err := r.Fields()
	if err != nil {
		return nil, err
	}
	if got, _ := body[messageEnvelopeKey].(string); got != message {
		return nil, failures.Assertf(message, body[messageEnvelopeKey], "mensagem of %s %s", r.Method, r.Path)
	}
	return body, nil
}

// requireFields fails on the first key obj lacks.
func requireFields(what string, obj map[string]any, keys ...string) error {
	for _, k := range keys {
		if _, ok := obj[k]; !ok {
			return failures.Assertf("present", "absent", "%s field %q", what, k)
		}
	}
	return nil
}

func forbidField(what string, obj map[string]any, key string) error {
	if v, ok := obj[key]; ok {
		return failures.Assertf("absent", v, "%s field %q", what, key)
	}
	return nil
}

// userObject validates the usuario member of body and decodes it.
func userObject(body map[string]any) (User, error) {
	obj, ok := body[userEnvelopeField].(map[string]any)
	if !ok {
		return User{}, failures.Assertf("object", body[userEnvelopeField], "usuario member")
	}
	if err := requireFields("usuario", obj, userFields...); err != nil {
		return User{}, err
	}
	if err := forbidField("usuario", obj, passwordField); err != nil {
		return User{}, err
	}
	return redecode[User](obj)
}

func redecode[T any](obj any) (T, error) {
	var out T
	raw, err := json.Marshal(obj)
	if err == nil {
		err = json.Unmarshal(raw, &out)
	}
	return out, err
}

// Register creates u and checks the 201 envelope. The returned user never carries a
// password.
func (c *Client) Register(ctx context.Context, u fixtures.User) (User, error) {
	r, err := c.Do(ctx, http.MethodPost, "/registro", u)
	if err != nil {
		return User{}, err
	}
	body, err := expectEnvelope(r, http.StatusCreated, MsgUserCreated)
	if err != nil {
		return User{}, err
	}
	got, err := userObject(body)
	if err != nil {
		return User{}, err
	}
	return got, failures.AssertEqual("registered user", User{ID: got.ID, Name: u.Name, Email: u.Email}, got)
}

// RegisterDuplicate checks that registering an existing email is refused.
func (c *Client) RegisterDuplicate(ctx context.Context, u fixtures.User) error {
	r, err := c.Do(ctx, http.MethodPost, "/registro", u)
	if err != nil {
		return err
	}
	_, err = expectEnvelope(r, http.StatusBadRequest, MsgEmailTaken)
	return err
}

// Login authenticates cred and checks the 200 envelope.
func (c *Client) Login(ctx context.Context, cred fixtures.Credential) (User, error) {
	r, err := c.Do(ctx, http.MethodPost, "/login", cred)
	if err != nil {
		return User{}, err
	}
	body, err := expectEnvelope(r, http.StatusOK, MsgLoginSuccess)
	if err != nil {
		return User{}, err
	}
	got, err := userObject(body)
	if err != nil {
		return User{}, err
	}
	if got.Email != cred.Email {
		return User{}, failures.Assertf(cred.Email, got.Email, "logged in email")
	}
	return got, nil
}

// LoginRejected checks that cred is refused with 401.
func (c *Client) LoginRejected(ctx context.Context, cred fixtures.Credential) error {
	r, err := c.Do(ctx, http.MethodPost, "/login", cred)
	if err != nil {
		return err
	}
	_, err = expectEnvelope(r, http.StatusUnauthorized, MsgLoginRejected)
	return err
}

// echoedBook checks that r carries every book field, with the given extra keys, and that
// the stored values equal want.
func echoedBook(r *Response, want fixtures.Book, extra ...string) (Book, error) {
	obj, err := r.Fields()
	if err != nil {
		return Book{}, err
	}
	if err := requireFields("book", obj, append(bookFields, extra...)...); err != nil {
		return Book{}, err
	}
	var got Book
	if err := r.Decode(&got); err != nil {
		return Book{}, err
	}
	return got, failures.AssertEqual("stored book", want, got.Book)
}

// CreateBook posts b and checks that the API stored every field and stamped dataCadastro.
func (c *Client) CreateBook(ctx context.Context, b fixtures.Book) (Book, error) {
	r, err := c.Do(ctx, http.MethodPost, "/livros", b)
	if err != nil {
		return Book{}, err
	}
	if err := expectStatus(r, http.StatusCreated); err != nil {
		return Book{}, err
	}
	return echoedBook(r, b, createdAtField)
}

// ListBooks checks that the catalog is a non-empty array of book summaries.
func (c *Client) ListBooks(ctx context.Context) ([]Book, error) {
	r, err := c.Do(ctx, http.MethodGet, "/livros", nil)
	if err != nil {
		return nil, err
	}
	if err := expectStatus(r, http.StatusOK); err != nil {
		return nil, err
	}
	var raw []map[string]any
	if err := r.Decode(&raw); err != nil {
		return nil, err
	}
	if len(raw) == 0 {
		return nil, failures.Assertf("at least one book", 0, "books listed")
	}
	if err := requireFields("first book", raw[0], bookSummary...); err != nil {
		return nil, err
	}
	return redecode[[]Book](raw)
}

func bookPath(id int) string { return "/livros/" + strconv.Itoa(id) }

// GetBook reads book id and checks every field is present.
func (c *Client) GetBook(ctx context.Context, id int) (Book, error) {
	r, err := c.Do(ctx, http.MethodGet, bookPath(id), nil)
	if err != nil {
		return Book{}, err
	}
	if err := expectStatus(r, http.StatusOK); err != nil {
		return Book{}, err
	}
	obj, err := r.Fields()
	if err != nil {
		return Book{}, err
	}
	if err := requireFields("book", obj, bookFields...); err != nil {
		return Book{}, err
	}
	var got Book
	if err := r.Decode(&got); err != nil {
		return Book{}, err
	}
	if got.ID != id {
		return Book{}, failures.Assertf(id, got.ID, "id of %s", r.Path)
	}
	return got, nil
}

// BookEquals reads book id back and checks it stores exactly want.
func (c *Client) BookEquals(ctx context.Context, id int, want fixtures.Book) (Book, error) {
	got, err := c.GetBook(ctx, id)
	if err != nil {
		return Book{}, err
	}
	return got, failures.AssertEqual("book read back from "+bookPath(id), want, got.Book)
}

// UpdateBook replaces book id with b and checks the response echoes every field.
func (c *Client) UpdateBook(ctx context.Context, id int, b fixtures.Book) (Book, error) {
	r, err := c.Do(ctx, http.MethodPut, bookPath(id), b)
	if err != nil {
		return Book{}, err
	}
	if err := expectStatus(r, http.StatusOK); err != nil {
		return Book{}, err
	}
	got, err := echoedBook(r, b)
	if err != nil {
		return Book{}, err
	}
	if got.ID != id {
		return Book{}, failures.Assertf(id, got.ID, "id of updated book")
	}
	return got, nil
}

// DeleteBook deletes book id and checks the confirmation.
func (c *Client) DeleteBook(ctx context.Context, id int) error {
	r, err := c.Do(ctx, http.MethodDelete, bookPath(id), nil)
	if err != nil {
		return err
	}
	_, err = expectEnvelope(r, http.StatusOK, MsgBookRemoved)
	return err
}

// BookGone checks that reading book id answers 404.
func (c *Client) BookGone(ctx context.Context, id int) error {
	r, err := c.Do(ctx, http.MethodGet, bookPath(id), nil)
	if err != nil {
		return err
	}
	return expectStatus(r, http.StatusNotFound)
}

// AddFavorite marks bookID as a favorite of userID.
func (c *Client) AddFavorite(ctx context.Context, userID, bookID int) error {
	r, err := c.Do(ctx, http.MethodPost, "/favoritos", favoriteRequest{userID, bookID})
	if err != nil {
		return err
	}
	_, err = expectEnvelope(r, http.StatusCreated, MsgFavoriteAdded)
	return err
}

// RemoveFavorite unmarks bookID as a favorite of userID.
func (c *Client) RemoveFavorite(ctx context.Context, userID, bookID int) error {
	r, err := c.Do(ctx, http.MethodDelete, "/favoritos", favoriteRequest{userID, bookID})
	if err != nil {
		return err
	}
	_, err = expectEnvelope(r, http.StatusOK, MsgFavoriteRemoved)
	return err
}

// ClearFavorite removes the favorite if present. Every outcome is accepted.
func (c *Client) ClearFavorite(ctx context.Context, userID, bookID int) {
	r, err := c.Do(ctx, http.MethodDelete, "/favoritos", favoriteRequest{userID, bookID})
	if err != nil {
		c.logger.Debug("Clearing favorite failed", zap.Int("book", bookID), zap.Error(err))
		return
	}
	c.logger.Debug("Cleared favorite", zap.Int("book", bookID), zap.Int("status", r.Status))
}

// FavoritesContain checks that the favorites of userID list bookID with its summary fields.
func (c *Client) FavoritesContain(ctx context.Context, userID, bookID int) ([]Book, error) {
	r, err := c.Do(ctx, http.MethodGet, "/favoritos/"+strconv.Itoa(userID), nil)
	if err != nil {
		return nil, err
	}
	if err := expectStatus(r, http.StatusOK); err != nil {
		return nil, err
	}
	var raw []map[string]any
	if err := r.Decode(&raw); err != nil {
		return nil, err
	}
	for _, obj := range raw {
		if id, _ := obj["id"].(float64); int(id) == bookID {
			if err := requireFields(fmt.Sprintf("favorite %d", bookID), obj, favoriteSummary...); err != nil {
				return nil, err
			}
			return redecode[[]Book](raw)
		}
	}
	return nil, failures.Assertf(fmt.Sprintf("book %d listed", bookID), len(raw), "favorites of user %d", userID)
}

// Stats reads the statistics and checks that every total is a number, books and pages are
// non-negative and at least one user exists.
func (c *Client) Stats(ctx context.Context) (Stats, error) {
	r, err := c.Do(ctx, http.MethodGet, "/estatisticas", nil)
	if err != nil {
		return Stats{}, err
	}
	if err := expectStatus(r, http.StatusOK); err != nil {
		return Stats{}, err
	}
	obj, err := r.Fields()
	if err != nil {
		return Stats{}, err
	}
	for _, k := range statsFields {
		if _, ok := obj[k].(float64); !ok {
			return Stats{}, failures.Assertf("number", obj[k], "statistics field %q", k)
		}
	}
	var s Stats
	if err := r.Decode(&s); err != nil {
		return Stats{}, err
	}
	switch {
	case s.TotalBooks < 0:
		return s, failures.Assertf(">= 0", s.TotalBooks, "totalLivros")
	case s.TotalPages < 0:
		return s, failures.Assertf(">= 0", s.TotalPages, "totalPaginas")
	case s.TotalUsers <= 0:
		return s, failures.Assertf("> 0", s.TotalUsers, "totalUsuarios")
	}
	return s, nil
}
