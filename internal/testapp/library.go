// Package testapp is an in-memory rendition of the library application for tests: a shared
// Library store, its web screens served over a surfacetest.Surface and its REST API served
// by a chi router.
package testapp

import (
	"sort"
	"sync"
	"time"

	"github.com/xkilldash9x/shelfcheck/internal/fixtures"
)

// User is a stored account.
type User struct {
	ID       int    `json:"id"`
	Name     string `json:"nome"`
	Email    string `json:"email"`
	Password string `json:"-"`
}

// Book is a stored book.
type Book struct {
	ID          int    `json:"id"`
	Name        string `json:"nome"`
	Author      string `json:"autor"`
	Pages       int    `json:"paginas"`
	Description string `json:"descricao"`
	ImageURL    string `json:"imagemUrl"`
	CreatedAt   string `json:"dataCadastro"`
}

// Library is the data behind both the screens and the API.
type Library struct {
	mu        sync.Mutex
	users     []User
	books     map[int]Book
	favorites map[int]map[int]bool
	nextUser  int
	nextBook  int
}

// Seed ids.
const (
	AdminID       = 1
	CleanCodeID   = 1
	HarryPotterID = 2
)

// NewLibrary returns a library holding the seeded admin and three books.
func NewLibrary() *Library {
	l := &Library{
		books:     make(map[int]Book),
		favorites: make(map[int]map[int]bool),
	}
	l.AddUser("Admin User", "admin@biblioteca.com", "123456")
	l.AddUser("Leitor Padrão", "leitor@biblioteca.com", "123456")
	l.AddBook(fixtures.Book{Name: "Clean Code", Author: "Robert C. Martin", Pages: 464,
		Description: "Um guia de boas práticas de programação.", ImageURL: "https://via.placeholder.com/150"})
	l.AddBook(fixtures.Book{Name: "Harry Potter e a Pedra Filosofal", Author: "J.K. Rowling", Pages: 264,
		Description: "O primeiro livro da série.", ImageURL: "https://via.placeholder.com/150"})
	l.AddBook(fixtures.Book{Name: "O Senhor dos Anéis", Author: "J.R.R. Tolkien", Pages: 1200,
		Description: "Uma jornada pela Terra-média.", ImageURL: "https://via.placeholder.com/150"})
	return l
}

// AddUser stores an account. It returns false when the email is taken.
func (l *Library) AddUser(name, email, password string) (User, bool) {
	l.mu.Lock()
	defer l.mu.Unlock()
	for _, u := range l.users {
		if u.Email == email {
			return User{}, false
		}
	}
	l.nextUser++
	u := User{ID: l.nextUser, Name: name, Email: email, Password: password}
	l.users = append(l.users, u)
	return u, true
}

// Authenticate returns the account matching the credentials.
func (l *Library) Authenticate(email, password string) (User, bool) {
	l.mu.Lock()
	defer l.mu.Unlock()
	for _, u := range l.users {
		if u.Email == email && u.Password == password {
			return u, true
		}
	}
	return User{}, false
}

func (l *Library) UserCount() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return len(l.users)
}

// AddBook stores b and stamps its id and creation date.
func (l *Library) AddBook(b fixtures.Book) Book {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.nextBook++
	stored := fromFixture(l.nextBook, b)
	stored.CreatedAt = time.Now().UTC().Format(time.RFC3339)
	l.books[stored.ID] = stored
	return stored
}

func fromFixture(id int, b fixtures.Book) Book {
	return Book{ID: id, Name: b.Name, Author: b.Author, Pages: b.Pages, Description: b.Description, ImageURL: b.ImageURL}
}

// UpdateBook replaces the fields of book id.
func (l *Library) UpdateBook(id int, b fixtures.Book) (Book, bool) {
	l.mu.Lock()
	defer l.mu.Unlock()
	old, ok := l.books[id]
	if !ok {
		return Book{}, false
	}
	updated := fromFixture(id, b)
	updated.CreatedAt = old.CreatedAt
	l.books[id] = updated
	return updated, true
}

// DeleteBook removes book id and every favorite pointing at it.
func (l *Library) DeleteBook(id int) bool {
	l.mu.Lock()
	defer l.mu.Unlock()
	if _, ok := l.books[id]; !ok {
		return false
	}
	delete(l.books, id)
	for _, favs := range l.favorites {
		delete(favs, id)
	}
	return true
}

func (l *Library) Book(id int) (Book, bool) {
	l.mu.Lock()
	defer l.mu.Unlock()
	b, ok := l.books[id]
	return b, ok
}

// Books lists books by id.
func (l *Library) Books() []Book {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.sortedLocked(func(Book) bool { return true })
}

func (l *Library) sortedLocked(keep func(Book) bool) []Book {
	out := make([]Book, 0, len(l.books))
	for _, b := range l.books {
		if keep(b) {
			out = append(out, b)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out
}

// BookByTitle returns the first book whose name is title.
func (l *Library) BookByTitle(title string) (Book, bool) {
	for _, b := range l.Books() {
		if b.Name == title {
			return b, true
		}
	}
	return Book{}, false
}

// SetFavorite adds or removes a favorite. It reports whether membership changed.
func (l *Library) SetFavorite(userID, bookID int, on bool) bool {
	l.mu.Lock()
	defer l.mu.Unlock()
	favs := l.favorites[userID]
	if favs == nil {
		favs = make(map[int]bool)
		l.favorites[userID] = favs
	}
	if favs[bookID] == on {
		return false
	}
	if on {
		favs[bookID] = true
	} else {
		delete(favs, bookID)
	}
	return true
}

func (l *Library) IsFavorite(userID, bookID int) bool {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.favorites[userID][bookID]
}

// Favorites lists the favorite books of a user by id.
func (l *Library) Favorites(userID int) []Book {
	l.mu.Lock()
	defer l.mu.Unlock()
	favs := l.favorites[userID]
	return l.sortedLocked(func(b Book) bool { return favs[b.ID] })
}

// Stats is the body of GET /estatisticas.
type Stats struct {
	TotalBooks int `json:"totalLivros"`
	TotalPages int `json:"totalPaginas"`
	TotalUsers int `json:"totalUsuarios"`
}

func (l *Library) Stats() Stats {
	l.mu.Lock()
	defer l.mu.Unlock()
	s := Stats{TotalBooks: len(l.books), TotalUsers: len(l.users)}
	for _, b := range l.books {
		s.TotalPages += b.Pages
	}
	return s
}

func bookFrom(name, author string, pages int, description, image string) fixtures.Book {
	return fixtures.Book{Name: name, Author: author, Pages: pages, Description: description, ImageURL: image}
}
