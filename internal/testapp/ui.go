package testapp

import (
	"context"
	"fmt"
	"net/url"
	"strconv"
	"time"

	jsoniter "github.com/json-iterator/go"

	"github.com/xkilldash9x/shelfcheck/internal/browser/surface"
	"github.com/xkilldash9x/shelfcheck/internal/browser/surface/surfacetest"
)

var json = jsoniter.ConfigCompatibleWithStandardLibrary

type el = surfacetest.Element

// Options tune the simulated screens.
type Options struct {
	// FavoriteLatency keeps the favorites toggle on a neutral label for this long after a
	// click before the new state shows.
	FavoriteLatency time.Duration
	// FavoriteAlerts makes the toggle raise an alert after every change. With a latency the
	// alert follows the relabel once the latency has passed.
	FavoriteAlerts bool
}

// UI serves the library screens on one surface.
type UI struct {
	lib    *Library
	opts   Options
	origin string
}

// Install registers the screens of lib on s. origin is the scheme and host the pages
// redirect to, e.g. "http://localhost:3000".
func Install(s *surfacetest.Surface, origin string, lib *Library, opts Options) *UI {
	u := &UI{lib: lib, opts: opts, origin: origin}
	s.Route("/login.html", u.login)
	s.Route("/dashboard.html", u.protected(u.dashboard))
	s.Route("/livros.html", u.protected(u.books))
	s.Route("/detalhes.html", u.protected(u.details))
	s.Route("/favoritos.html", u.protected(u.favorites))
	return u
}

func (u *UI) redirect(s *surfacetest.Surface, path string) {
	s.Redirect(u.origin + path)
}

func alert(msg string) surface.DialogEvent {
	return surface.DialogEvent{Kind: surface.DialogAlert, Message: msg}
}

func heading(level int, text string, parent *el) *el {
	return &el{Tag: fmt.Sprintf("h%d", level), Role: "heading", Level: level, Name: text, Text: text, Parent: parent}
}

func field(role, label string, parent *el) *el {
	return &el{Tag: "input", Role: role, Name: label, Parent: parent}
}

func button(text string, parent *el, onClick func(*surfacetest.Surface)) *el {
	return &el{Tag: "button", Role: "button", Name: text, Text: text, Parent: parent, OnClick: onClick}
}

func link(text string, parent *el, onClick func(*surfacetest.Surface)) *el {
	return &el{Tag: "a", Role: "link", Name: text, Text: text, Parent: parent, OnClick: onClick}
}

func value(s *surfacetest.Surface, e *el) string {
	var v string
	s.Do(func() { v = e.Value })
	return v
}

func relabel(s *surfacetest.Surface, e *el, label string) {
	s.Do(func() {
		e.Name = label
		e.Text = label
	})
}

// session returns the signed-in user recorded in localStorage.
func (u *UI) session(s *surfacetest.Surface) (User, bool) {
	st := s.Storage()
	if st["token"] == "" {
		return User{}, false
	}
	var usr User
	if err := json.Unmarshal([]byte(st["user"]), &usr); err != nil {
		return User{}, false
	}
	return usr, true
}

func (u *UI) protected(build func(*surfacetest.Surface, User)) surfacetest.Route {
	return func(s *surfacetest.Surface) {
		usr, ok := u.session(s)
		if !ok {
			u.redirect(s, "/login.html")
			return
		}
		build(s, usr)
	}
}

func (u *UI) login(s *surfacetest.Surface) {
	loginForm := &el{Tag: "div", Matches: []string{"#login-form"}}
	email := field("textbox", "Email:", loginForm)
	password := field("textbox", "Senha:", loginForm)
	registerForm := &el{Tag: "div", Matches: []string{"#registro-form"}, Hidden: true}

	s.Add(loginForm,
		heading(2, "Login", loginForm),
		email, password,
		button("Entrar", loginForm, func(s *surfacetest.Surface) {
			usr, ok := u.lib.Authenticate(value(s, email), value(s, password))
			if !ok {
				_, _ = s.RaiseDialog(alert("Email ou senha incorretos"))
				return
			}
			_, _ = s.RaiseDialog(alert("Login realizado com sucesso!"))
			raw, _ := json.Marshal(usr)
			s.SetStorage("token", "token-"+strconv.Itoa(usr.ID))
			s.SetStorage("user", string(raw))
			u.redirect(s, "/dashboard.html")
		}),
		link("Registre-se", loginForm, func(s *surfacetest.Surface) {
			s.Do(func() {
				loginForm.Hidden = true
				registerForm.Hidden = false
			})
		}),
	)

	name := field("textbox", "Nome:", registerForm)
	regEmail := field("textbox", "Email:", registerForm)
	regPassword := field("textbox", "Senha:", registerForm)
	confirm := field("textbox", "Confirmar Senha:", registerForm)
	s.Add(registerForm,
		heading(2, "Registro", registerForm),
		name, regEmail, regPassword, confirm,
		button("Registrar", registerForm, func(s *surfacetest.Surface) {
			if value(s, regPassword) != value(s, confirm) {
				_, _ = s.RaiseDialog(alert("As senhas não coincidem!"))
				return
			}
			if _, ok := u.lib.AddUser(value(s, name), value(s, regEmail), value(s, regPassword)); !ok {
				_, _ = s.RaiseDialog(alert("Email já cadastrado"))
				return
			}
			_, _ = s.RaiseDialog(alert("Conta criada com sucesso!"))
			u.redirect(s, "/login.html")
		}),
	)
}

func (u *UI) header(s *surfacetest.Surface) {
	nav := &el{Tag: "nav"}
	s.Add(nav,
		link("🏠 Dashboard", nav, func(s *surfacetest.Surface) { u.redirect(s, "/dashboard.html") }),
		link("📚 Gerenciar Livros", nav, func(s *surfacetest.Surface) { u.redirect(s, "/livros.html") }),
		link("❤️ Meus Favoritos", nav, func(s *surfacetest.Surface) { u.redirect(s, "/favoritos.html") }),
		button("Sair", nav, func(s *surfacetest.Surface) {
			s.SetStorage("token", "")
			s.SetStorage("user", "")
			u.redirect(s, "/login.html")
		}),
	)
}

// card renders a book card inside grid; clicking it opens the details.
func (u *UI) card(s *surfacetest.Surface, grid *el, b Book) {
	c := &el{Tag: "div", Matches: []string{".book-card"}, Parent: grid, OnClick: func(s *surfacetest.Surface) {
		u.redirect(s, "/detalhes.html?id="+strconv.Itoa(b.ID))
	}}
	s.Add(c,
		&el{Tag: "img", Role: "img", Name: b.Name, Parent: c},
		&el{Tag: "h3", Role: "heading", Level: 3, Name: b.Name, Text: b.Name, Parent: c},
		&el{Tag: "p", Text: b.Author, Parent: c},
		&el{Tag: "p", Text: fmt.Sprintf("%d páginas", b.Pages), Parent: c},
	)
}

func (u *UI) dashboard(s *surfacetest.Surface, usr User) {
	u.header(s)
	st := u.lib.Stats()
	s.Add(
		&el{Tag: "span", Matches: []string{".user-name"}, Text: "Olá, " + usr.Name},
		&el{Tag: "div", Matches: []string{".stat-card"}, Text: fmt.Sprintf("Total de Livros %d", st.TotalBooks)},
		&el{Tag: "div", Matches: []string{".stat-card"}, Text: fmt.Sprintf("Total de Páginas %d", st.TotalPages)},
		&el{Tag: "div", Matches: []string{".stat-card"}, Text: fmt.Sprintf("Usuários %d", st.TotalUsers)},
	)
	grid := s.Add(&el{Tag: "div", Matches: []string{"#livros-recentes"}})
	books := u.lib.Books()
	for i := len(books) - 1; i >= 0 && i >= len(books)-5; i-- {
		u.card(s, grid, books[i])
	}
}

func (u *UI) books(s *surfacetest.Surface, _ User) {
	u.header(s)
	form := &el{Tag: "form", Matches: []string{"#form-livro"}}
	name := field("textbox", "Nome do Livro:", form)
	author := field("textbox", "Autor:", form)
	pages := field("spinbutton", "Número de Páginas:", form)
	description := &el{Tag: "textarea", Role: "textbox", Name: "Descrição:", Parent: form}
	image := field("textbox", "URL da Imagem:", form)
	s.Add(
		heading(1, "📚 Gerenciar Livros", nil),
		heading(2, "Adicionar Novo Livro", nil),
		form, name, author, pages, description, image,
		button("Adicionar Livro", form, func(s *surfacetest.Surface) {
			n, err := strconv.Atoi(value(s, pages))
			if value(s, name) == "" || value(s, author) == "" || err != nil {
				// The browser's required-field validation blocks the submit.
				return
			}
			u.lib.AddBook(bookFrom(value(s, name), value(s, author), n, value(s, description), value(s, image)))
			_, _ = s.RaiseDialog(alert("Livro adicionado com sucesso!"))
			u.redirect(s, "/livros.html")
		}),
		heading(2, "Todos os Livros", nil),
	)
	grid := s.Add(&el{Tag: "div", Matches: []string{"#lista-livros"}})
	for _, b := range u.lib.Books() {
		u.card(s, grid, b)
	}
}

func (u *UI) details(s *surfacetest.Surface, usr User) {
	u.header(s)
	s.Add(heading(1, "📚 Detalhes do Livro", nil))

	raw, _ := s.URL(context.Background())
	parsed, err := url.Parse(raw)
	if err != nil {
		return
	}
	id, _ := strconv.Atoi(parsed.Query().Get("id"))
	b, ok := u.lib.Book(id)
	if !ok {
		s.Add(&el{Tag: "p", Text: "Livro não encontrado"})
		return
	}

	line := func(label, v string) *el {
		return &el{Tag: "p", Matches: []string{":has(> strong)"}, Text: label + " " + v}
	}
	toggle := button(toggleLabel(u.lib.IsFavorite(usr.ID, b.ID)), nil, nil)
	toggle.OnClick = func(s *surfacetest.Surface) { u.toggleFavorite(s, toggle, usr.ID, b.ID) }

	s.Add(
		heading(2, b.Name, nil),
		&el{Tag: "img", Role: "img", Name: b.Name},
		line("Autor:", b.Author),
		line("Páginas:", strconv.Itoa(b.Pages)),
		line("Descrição:", b.Description),
		line("Data de Cadastro:", b.CreatedAt),
		toggle,
		button("🗑️ Deletar Livro", nil, func(s *surfacetest.Surface) {
			res, err := s.RaiseDialog(surface.DialogEvent{Kind: surface.DialogConfirm, Message: "Tem certeza que deseja deletar este livro?"})
			if err != nil || !res.Accept {
				return
			}
			u.lib.DeleteBook(b.ID)
			_, _ = s.RaiseDialog(alert("Livro deletado com sucesso!"))
			u.redirect(s, "/livros.html")
		}),
		button("← Voltar", nil, func(s *surfacetest.Surface) { u.redirect(s, "/livros.html") }),
	)
}

func toggleLabel(favorite bool) string {
	if favorite {
		return "❤️ Remover dos Favoritos"
	}
	return "🤍 Adicionar aos Favoritos"
}

func (u *UI) toggleFavorite(s *surfacetest.Surface, toggle *el, userID, bookID int) {
	want := !u.lib.IsFavorite(userID, bookID)
	apply := func() {
		u.lib.SetFavorite(userID, bookID, want)
		relabel(s, toggle, toggleLabel(want))
		if u.opts.FavoriteAlerts {
			msg := "Livro removido dos favoritos!"
			if want {
				msg = "Livro adicionado aos favoritos!"
			}
			_, _ = s.RaiseDialog(alert(msg))
		}
	}
	if u.opts.FavoriteLatency > 0 {
		relabel(s, toggle, "Processando...")
		go func() {
			time.Sleep(u.opts.FavoriteLatency)
			apply()
		}()
		return
	}
	apply()
}

func (u *UI) favorites(s *surfacetest.Surface, usr User) {
	u.header(s)
	s.Add(heading(1, "❤️ Meus Favoritos", nil))
	grid := s.Add(&el{Tag: "div", Matches: []string{"#lista-favoritos"}})
	favs := u.lib.Favorites(usr.ID)
	if len(favs) == 0 {
		s.Add(&el{Tag: "p", Text: "Nenhum livro favorito ainda.", Parent: grid})
	}
	for _, b := range favs {
		u.card(s, grid, b)
	}
}
