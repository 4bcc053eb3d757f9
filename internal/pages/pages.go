// Package pages holds one contract per screen of the library application. A contract owns
// the locators of its screen and exposes domain operations over a driver; scenarios never
// touch locators directly.
package pages

import (
	"context"
	"fmt"
	"regexp"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/xkilldash9x/shelfcheck/internal/browser/dialog"
	"github.com/xkilldash9x/shelfcheck/internal/browser/driver"
	"github.com/xkilldash9x/shelfcheck/internal/browser/locator"
)

// Routes of the application.
const (
	PathLogin     = "/login.html"
	PathDashboard = "/dashboard.html"
	PathBooks     = "/livros.html"
	PathDetails   = "/detalhes.html"
	PathFavorites = "/favoritos.html"
)

// URL globs the contracts wait for after navigating.
const (
	GlobLogin     = "**/login.html"
	GlobDashboard = "**/dashboard.html"
	GlobBooks     = "**/livros.html"
	GlobDetails   = "**/detalhes.html?id=*"
	GlobFavorites = "**/favoritos.html"
)

// Dialog messages raised by the application.
const (
	MsgLoginSuccess     = "Login realizado com sucesso!"
	MsgLoginRejected    = "Email ou senha incorretos"
	MsgRegistered       = "Conta criada com sucesso!"
	MsgPasswordMismatch = "As senhas não coincidem!"
	// The book-added alert wording varies; it always contains this fragment.
	FragmentBookAdded = "sucesso"
)

// Session keys in localStorage.
const (
	StorageToken = "token"
	StorageUser  = "user"
)

// DetailsPath returns the details route of a book.
func DetailsPath(id int) string {
	return fmt.Sprintf("%s?id=%d", PathDetails, id)
}

// ProtectedPaths are the routes that require a session.
func ProtectedPaths() []string {
	return []string{PathDashboard, PathBooks, DetailsPath(1), PathFavorites}
}

// dialogGrace bounds how long an optional dialog is waited for.
func dialogGrace(d *driver.Driver) time.Duration {
	g := d.Timeouts().Action / 4
	if g > time.Second {
		g = time.Second
	}
	return g
}

// Nav is the header shared by the authenticated screens.
type Nav struct {
	d         *driver.Driver
	dashboard locator.Locator
	books     locator.Locator
	favorites locator.Locator
	logout    locator.Locator
}

func newNav(d *driver.Driver) Nav {
	return Nav{
		d:         d,
		dashboard: locator.ByRole(locator.RoleLink, "Dashboard"),
		books:     locator.ByRole(locator.RoleLink, "Gerenciar Livros"),
		favorites: locator.ByRole(locator.RoleLink, "Meus Favoritos"),
		logout:    locator.ByRole(locator.RoleButton, "Sair"),
	}
}

// The dashboard labels its header loosely.
func newLooseNav(d *driver.Driver) Nav {
	return Nav{
		d:         d,
		dashboard: locator.ByRolePattern(locator.RoleLink, regexp.MustCompile(`(?i)dashboard|início`)),
		books:     locator.ByRolePattern(locator.RoleLink, regexp.MustCompile(`(?i)gerenciar livros|livros`)),
		favorites: locator.ByRolePattern(locator.RoleLink, regexp.MustCompile(`(?i)meus favoritos|favoritos`)),
		logout:    locator.ByRolePattern(locator.RoleButton, regexp.MustCompile(`(?i)sair|logout`)),
	}
}

func (n Nav) follow(ctx context.Context, link locator.Locator, glob string) error {
	if err := n.d.Click(ctx, link); err != nil {
		return err
	}
	return n.d.WaitForURL(ctx, glob)
}

func (n Nav) ToDashboard(ctx context.Context) error {
	return n.follow(ctx, n.dashboard, GlobDashboard)
}

func (n Nav) ToBooks(ctx context.Context) error {
	return n.follow(ctx, n.books, GlobBooks)
}

func (n Nav) ToFavorites(ctx context.Context) error {
	return n.follow(ctx, n.favorites, GlobFavorites)
}

// Logout ends the session and waits for the login screen.
func (n Nav) Logout(ctx context.Context) error {
	return n.follow(ctx, n.logout, GlobLogin)
}

// VerifyVisible checks that every header entry is on screen.
func (n Nav) VerifyVisible(ctx context.Context) error {
	for _, l := range []locator.Locator{n.dashboard, n.books, n.favorites, n.logout} {
		if err := n.d.ExpectVisible(ctx, l); err != nil {
			return err
		}
	}
	return nil
}

// expectVisible checks several locators in order.
func expectVisible(ctx context.Context, d *driver.Driver, ls ...locator.Locator) error {
	for _, l := range ls {
		if err := d.ExpectVisible(ctx, l); err != nil {
			return err
		}
	}
	return nil
}

// clickAcceptingAny clicks l and accepts a dialog if one shows up.
func clickAcceptingAny(ctx context.Context, d *driver.Driver, l locator.Locator) (bool, error) {
	fired, err := d.ExpectOptionalDialog(ctx, dialog.AcceptAll, dialogGrace(d), func(ctx context.Context) error {
		return d.Click(ctx, l)
	})
	if fired {
		d.Logger().Debug("Optional dialog accepted.", zap.String("target", l.String()))
	}
	return fired, err
}

// trimLabel strips a "Label:" prefix from a rendered line.
func trimLabel(text, label string) string {
	text = locator.Normalize(text)
	return strings.TrimSpace(strings.Replace(text, label, "", 1))
}
