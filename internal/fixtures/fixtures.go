// Package fixtures holds the test data the scenarios operate on: credentials, book records
// and the templates new users are generated from. A built-in set mirrors the seeded
// application; a YAML file can override any part of it.
package fixtures

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"os"
	"strconv"
	"sync/atomic"
	"time"

	"gopkg.in/yaml.v3"
)

// Credential is an email/password pair for the login form or POST /login.
type Credential struct {
	Email    string `yaml:"email" json:"email"`
	Password string `yaml:"password" json:"senha"`
}

// User is a registration payload.
type User struct {
	Name     string `yaml:"name" json:"nome"`
	Email    string `yaml:"email" json:"email"`
	Password string `yaml:"password" json:"senha"`
}

// Credential returns the login pair of u.
func (u User) Credential() Credential {
	return Credential{Email: u.Email, Password: u.Password}
}

// Book is a book record as the form and the REST API see it.
type Book struct {
	Name        string `yaml:"nome" json:"nome"`
	Author      string `yaml:"autor" json:"autor"`
	Pages       int    `yaml:"paginas" json:"paginas"`
	Description string `yaml:"descricao" json:"descricao"`
	ImageURL    string `yaml:"imagemUrl" json:"imagemUrl"`
}

// Uniquified returns a copy of b whose name carries suffix.
func (b Book) Uniquified(suffix string) Book {
	b.Name = b.Name + " " + suffix
	return b
}

// UserTemplate generates registration payloads that never collide.
type UserTemplate struct {
	NamePrefix  string `yaml:"name_prefix"`
	EmailLocal  string `yaml:"email_local"`
	EmailDomain string `yaml:"email_domain"`
	Password    string `yaml:"password"`
}

// New builds a user whose name and email carry a fresh Unique suffix.
func (t UserTemplate) New() User {
	s := Unique()
	return User{
		Name:     t.NamePrefix + " " + s,
		Email:    fmt.Sprintf("%s+%s@%s", t.EmailLocal, s, t.EmailDomain),
		Password: t.Password,
	}
}

// Seeded names records the application ships with.
type Seeded struct {
	CleanCode   string `yaml:"clean_code"`
	HarryPotter string `yaml:"harry_potter"`
	// BookID is a book id that always exists.
	BookID int `yaml:"book_id"`
}

// Set is one complete fixture collection.
type Set struct {
	Admin        Credential   `yaml:"admin"`
	InvalidLogin Credential   `yaml:"invalid_login"`
	UIUser       UserTemplate `yaml:"ui_user"`
	APIUser      UserTemplate `yaml:"api_user"`
	// MismatchConfirmation is typed into "Confirmar Senha:" to trigger the mismatch alert.
	MismatchConfirmation string `yaml:"mismatch_confirmation"`

	NewBook        Book `yaml:"new_book"`
	ValidBook      Book `yaml:"valid_book"`
	DisposableBook Book `yaml:"disposable_book"`
	APIBook        Book `yaml:"api_book"`
	UpdateOriginal Book `yaml:"update_original"`
	UpdateChanged  Book `yaml:"update_changed"`
	APIDisposable  Book `yaml:"api_disposable"`

	Seeded Seeded `yaml:"seeded"`
}

// Default returns the built-in fixtures for the seeded application.
func Default() Set {
	return Set{
		Admin:                Credential{Email: "admin@biblioteca.com", Password: "123456"},
		InvalidLogin:         Credential{Email: "invalid@test.com", Password: "wrongpassword"},
		UIUser:               UserTemplate{NamePrefix: "Usuario Teste", EmailLocal: "shelfcheck", EmailDomain: "mailinator.com", Password: "senha123"},
		APIUser:              UserTemplate{NamePrefix: "Test User", EmailLocal: "testuser", EmailDomain: "test.com", Password: "Test@123"},
		MismatchConfirmation: "senha456",
		NewBook: Book{
			Name: "Test Automation Book", Author: "John Doe", Pages: 350,
			Description: "A book created by the automated UI suite",
			ImageURL:    "https://via.placeholder.com/150",
		},
		ValidBook: Book{
			Name: "Valid Book", Author: "Valid Author", Pages: 120,
			Description: "Valid description", ImageURL: "https://via.placeholder.com/150",
		},
		DisposableBook: Book{
			Name: "Book To Delete", Author: "Delete Author", Pages: 50,
			Description: "This book will be deleted", ImageURL: "https://via.placeholder.com/50",
		},
		APIBook: Book{
			Name: "API Test Book", Author: "API Test Author", Pages: 250,
			Description: "This is a test book created via API", ImageURL: "https://via.placeholder.com/200x300",
		},
		UpdateOriginal: Book{
			Name: "Book to Update", Author: "Original Author", Pages: 100,
			Description: "Original description", ImageURL: "https://via.placeholder.com/100",
		},
		UpdateChanged: Book{
			Name: "Updated Book", Author: "Updated Author", Pages: 200,
			Description: "Updated description", ImageURL: "https://via.placeholder.com/200",
		},
		APIDisposable: Book{
			Name: "Book to Delete", Author: "Delete Author", Pages: 50,
			Description: "This book will be deleted", ImageURL: "https://via.placeholder.com/50",
		},
		Seeded: Seeded{CleanCode: "Clean Code", HarryPotter: "Harry Potter", BookID: 1},
	}
}

// Load reads a YAML file over the defaults. Keys the file omits keep their default values;
// unknown keys are an error.
func Load(path string) (Set, error) {
	set := Default()
	if path == "" {
		return set, nil
	}
	raw, err := os.ReadFile(path)
	if err != nil {
		return Set{}, fmt.Errorf("reading fixtures: %w", err)
	}
	dec := yaml.NewDecoder(bytes.NewReader(raw))
	dec.KnownFields(true)
	if err := dec.Decode(&set); err != nil && !errors.Is(err, io.EOF) {
		return Set{}, fmt.Errorf("parsing fixtures %s: %w", path, err)
	}
	if err := set.Validate(); err != nil {
		return Set{}, fmt.Errorf("invalid fixtures %s: %w", path, err)
	}
	return set, nil
}

// Validate checks the fields every scenario relies on.
func (s Set) Validate() error {
	var errs []error
	if s.Admin.Email == "" || s.Admin.Password == "" {
		errs = append(errs, errors.New("admin credentials are required"))
	}
	for name, b := range map[string]Book{
		"new_book": s.NewBook, "valid_book": s.ValidBook, "disposable_book": s.DisposableBook,
		"api_book": s.APIBook, "update_original": s.UpdateOriginal, "update_changed": s.UpdateChanged,
		"api_disposable": s.APIDisposable,
	} {
		if b.Name == "" {
			errs = append(errs, fmt.Errorf("%s.nome is required", name))
		}
		if b.Pages < 0 {
			errs = append(errs, fmt.Errorf("%s.paginas must not be negative", name))
		}
	}
	if s.Seeded.CleanCode == "" || s.Seeded.HarryPotter == "" {
		errs = append(errs, errors.New("seeded book titles are required"))
	}
	return errors.Join(errs...)
}

var (
	counter atomic.Uint64
	now     = time.Now
)

// Unique returns a suffix that differs on every call within the process and across runs:
// the wall clock in milliseconds plus a process-wide counter.
func Unique() string {
	return strconv.FormatInt(now().UnixMilli(), 10) + "-" + strconv.FormatUint(counter.Add(1), 10)
}
