package testapp

import (
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"

	"github.com/xkilldash9x/shelfcheck/internal/fixtures"
)

// APIOptions inject contract violations so checks can be seen to fail.
type APIOptions struct {
	// LeakPasswords includes "senha" in every user object.
	LeakPasswords bool
	// CorruptReads makes GET /livros/{id} report a title other than the stored one.
	CorruptReads bool
	// StatsOverride replaces the computed statistics when set.
	StatsOverride *Stats
}

// API serves the REST contract of lib.
type API struct {
	lib  *Library
	opts APIOptions
}

// NewAPI returns the router for lib.
func NewAPI(lib *Library, opts APIOptions) http.Handler {
	a := &API{lib: lib, opts: opts}
	r := chi.NewRouter()
	r.Use(middleware.Recoverer)
	r.Post("/registro", a.register)
	r.Post("/login", a.login)
	r.Route("/livros", func(r chi.Router) {
		r.Get("/", a.listBooks)
		r.Post("/", a.createBook)
		r.Get("/{id}", a.getBook)
		r.Put("/{id}", a.updateBook)
		r.Delete("/{id}", a.deleteBook)
	})
	r.Post("/favoritos", a.addFavorite)
	r.Delete("/favoritos", a.removeFavorite)
	r.Get("/favoritos/{usuarioId}", a.listFavorites)
	r.Get("/estatisticas", a.stats)
	return r
}

type message struct {
	Message string `json:"mensagem"`
}

func respond(w http.ResponseWriter, status int, body any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(body)
}

func (a *API) userBody(u User) map[string]any {
	body := map[string]any{"id": u.ID, "nome": u.Name, "email": u.Email}
	if a.opts.LeakPasswords {
		body["senha"] = u.Password
	}
	return body
}

func (a *API) register(w http.ResponseWriter, r *http.Request) {
	var in fixtures.User
	if err := json.NewDecoder(r.Body).Decode(&in); err != nil || in.Email == "" || in.Password == "" {
		respond(w, http.StatusBadRequest, message{"Dados inválidos"})
		return
	}
	u, ok := a.lib.AddUser(in.Name, in.Email, in.Password)
	if !ok {
		respond(w, http.StatusBadRequest, message{"Email já cadastrado"})
		return
	}
	respond(w, http.StatusCreated, map[string]any{"mensagem": "Usuário criado com sucesso", "usuario": a.userBody(u)})
}

func (a *API) login(w http.ResponseWriter, r *http.Request) {
	var in fixtures.Credential
	if err := json.NewDecoder(r.Body).Decode(&in); err != nil {
		respond(w, http.StatusBadRequest, message{"Dados inválidos"})
		return
	}
	u, ok := a.lib.Authenticate(in.Email, in.Password)
	if !ok {
		respond(w, http.StatusUnauthorized, message{"Email ou senha incorretos"})
		return
	}
	respond(w, http.StatusOK, map[string]any{"mensagem": "Login realizado com sucesso", "usuario": a.userBody(u)})
}

func (a *API) listBooks(w http.ResponseWriter, _ *http.Request) {
	respond(w, http.StatusOK, a.lib.Books())
}

func bookID(r *http.Request, param string) (int, bool) {
	id, err := strconv.Atoi(chi.URLParam(r, param))
	return id, err == nil
}

func decodeBook(r *http.Request) (fixtures.Book, bool) {
	var in fixtures.Book
	if err := json.NewDecoder(r.Body).Decode(&in); err != nil || in.Name == "" {
		return fixtures.Book{}, false
	}
	return in, true
}

func (a *API) createBook(w http.ResponseWriter, r *http.Request) {
	in, ok := decodeBook(r)
	if !ok {
		respond(w, http.StatusBadRequest, message{"Dados inválidos"})
		return
	}
	respond(w, http.StatusCreated, a.lib.AddBook(in))
}

func (a *API) getBook(w http.ResponseWriter, r *http.Request) {
	id, _ := bookID(r, "id")
	b, ok := a.lib.Book(id)
	if !ok {
		respond(w, http.StatusNotFound, message{"Livro não encontrado"})
		return
	}
	if a.opts.CorruptReads {
		b.Name += " (stale)"
	}
	respond(w, http.StatusOK, b)
}

func (a *API) updateBook(w http.ResponseWriter, r *http.Request) {
	id, _ := bookID(r, "id")
	in, ok := decodeBook(r)
	if !ok {
		respond(w, http.StatusBadRequest, message{"Dados inválidos"})
		return
	}
	b, ok := a.lib.UpdateBook(id, in)
	if !ok {
		respond(w, http.StatusNotFound, message{"Livro não encontrado"})
		return
	}
	respond(w, http.StatusOK, b)
}

func (a *API) deleteBook(w http.ResponseWriter, r *http.Request) {
	id, _ := bookID(r, "id")
	if !a.lib.DeleteBook(id) {
		respond(w, http.StatusNotFound, message{"Livro não encontrado"})
		return
	}
	respond(w, http.StatusOK, message{"Livro removido com sucesso"})
}

type favorite struct {
	UserID int `json:"usuarioId"`
	BookID int `json:"livroId"`
}

func (a *API) addFavorite(w http.ResponseWriter, r *http.Request) {
	var in favorite
	if err := json.NewDecoder(r.Body).Decode(&in); err != nil {
		respond(w, http.StatusBadRequest, message{"Dados inválidos"})
		return
	}
	if _, ok := a.lib.Book(in.BookID); !ok {
		respond(w, http.StatusNotFound, message{"Livro não encontrado"})
		return
	}
	if !a.lib.SetFavorite(in.UserID, in.BookID, true) {
		respond(w, http.StatusBadRequest, message{"Livro já está nos favoritos"})
		return
	}
	respond(w, http.StatusCreated, message{"Livro adicionado aos favoritos"})
}

func (a *API) removeFavorite(w http.ResponseWriter, r *http.Request) {
	var in favorite
	if err := json.NewDecoder(r.Body).Decode(&in); err != nil {
		respond(w, http.StatusBadRequest, message{"Dados inválidos"})
		return
	}
	if !a.lib.SetFavorite(in.UserID, in.BookID, false) {
		respond(w, http.StatusNotFound, message{"Favorito não encontrado"})
		return
	}
	respond(w, http.StatusOK, message{"Livro removido dos favoritos"})
}

func (a *API) listFavorites(w http.ResponseWriter, r *http.Request) {
	id, _ := bookID(r, "usuarioId")
	respond(w, http.StatusOK, a.lib.Favorites(id))
}

func (a *API) stats(w http.ResponseWriter, _ *http.Request) {
	if a.opts.StatsOverride != nil {
		respond(w, http.StatusOK, *a.opts.StatsOverride)
		return
	}
	respond(w, http.StatusOK, a.lib.Stats())
}
