package pages

import (
	"context"
	"fmt"

	"github.com/xkilldash9x/shelfcheck/internal/browser/driver"
	"github.com/xkilldash9x/shelfcheck/internal/browser/locator"
	"github.com/xkilldash9x/shelfcheck/internal/browser/wait"
	"github.com/xkilldash9x/shelfcheck/internal/failures"
)

// MaxRecentBooks is how many books the dashboard lists at most.
const MaxRecentBooks = 5

// Dashboard is the landing screen after login.
type Dashboard struct {
	Nav
	d *driver.Driver

	userName    locator.Locator
	statsCards  locator.Locator
	recentGrid  locator.Locator
	recentCards locator.Locator
}

func NewDashboard(d *driver.Driver) *Dashboard {
	const recent = "#livros-recentes, .books-grid"
	return &Dashboard{
		Nav:         newLooseNav(d),
		d:           d,
		userName:    locator.ByCSS(`.user-name, .username, [class*="user"]`).First(),
		statsCards:  locator.ByCSS(`.card, .stat-card, [class*="card"]`),
		recentGrid:  locator.ByCSS(recent).First(),
		recentCards: locator.ByCSS(".book-card").Within(recent),
	}
}

// Open navigates to the dashboard. Without a session the application redirects to the
// login screen, which Open does not treat as an error.
func (p *Dashboard) Open(ctx context.Context) error {
	return p.d.Goto(ctx, PathDashboard)
}

// VerifyLoaded checks that the dashboard greets the user.
func (p *Dashboard) VerifyLoaded(ctx context.Context) error {
	if err := p.d.WaitForURL(ctx, GlobDashboard); err != nil {
		return err
	}
	return p.d.ExpectVisible(ctx, p.userName)
}

// UserName returns the greeting text.
func (p *Dashboard) UserName(ctx context.Context) (string, error) {
	t, err := p.d.ReadText(ctx, p.userName)
	return locator.Normalize(t), err
}

// VerifyGreets waits for the greeting to contain name.
func (p *Dashboard) VerifyGreets(ctx context.Context, name string) error {
	return p.d.WaitFor(ctx, wait.TextContains(p.userName, name), p.d.Timeouts().Action)
}

// StatsCount waits for at least one statistics card and counts them.
func (p *Dashboard) StatsCount(ctx context.Context) (int, error) {
	if err := p.d.WaitFor(ctx, wait.CountAbove(p.statsCards, 0), p.d.Timeouts().Action); err != nil {
		return 0, err
	}
	return p.d.Count(ctx, p.statsCards)
}

// FirstStatText returns the text of the first statistics card.
func (p *Dashboard) FirstStatText(ctx context.Context) (string, error) {
	t, err := p.d.ReadText(ctx, p.statsCards.First())
	return locator.Normalize(t), err
}

// RecentBooksCount waits for the grid and counts its cards.
func (p *Dashboard) RecentBooksCount(ctx context.Context) (int, error) {
	if err := p.d.ExpectVisible(ctx, p.recentGrid); err != nil {
		return 0, err
	}
	return p.d.Count(ctx, p.recentCards)
}

// VerifyRecentBooks checks that the grid shows between one and MaxRecentBooks cards and
// that the first card shows a cover, a title and a description line.
func (p *Dashboard) VerifyRecentBooks(ctx context.Context) error {
	n, err := p.RecentBooksCount(ctx)
	if err != nil {
		return err
	}
	if n == 0 || n > MaxRecentBooks {
		return failures.Assertf(fmt.Sprintf("1..%d", MaxRecentBooks), n, "recent books")
	}
	first := p.recentCards.First()
	for _, part := range []string{"img", "h3", "p"} {
		if err := p.d.ExpectVisible(ctx, first.Locator(locator.ByCSS(part).First())); err != nil {
			return err
		}
	}
	return nil
}

// Favorites is the favorites screen.
type Favorites struct {
	Nav
	d       *driver.Driver
	heading locator.Locator
	cards   locator.Locator
}

func NewFavorites(d *driver.Driver) *Favorites {
	return &Favorites{
		Nav:     newNav(d),
		d:       d,
		heading: locator.ByRole(locator.RoleHeading, "❤️ Meus Favoritos"),
		cards:   locator.ByCSS(".book-card"),
	}
}

func (p *Favorites) Open(ctx context.Context) error {
	if err := p.d.Goto(ctx, PathFavorites); err != nil {
		return err
	}
	return p.VerifyLoaded(ctx)
}

func (p *Favorites) VerifyLoaded(ctx context.Context) error {
	return p.d.ExpectVisible(ctx, p.heading)
}

// Card references the favorite card whose text contains title.
func (p *Favorites) Card(title string) locator.Locator {
	return p.cards.WithText(title)
}

// Count waits up to the favorites window for the list to hold more than zero cards and
// returns the count.
func (p *Favorites) Count(ctx context.Context) (int, error) {
	if err := p.d.WaitFor(ctx, wait.CountAbove(p.cards, 0), p.d.Timeouts().FavoritesList); err != nil {
		return 0, err
	}
	return p.d.Count(ctx, p.cards)
}

// WaitListed waits for the list to converge on containing title.
func (p *Favorites) WaitListed(ctx context.Context, title string) error {
	return p.d.WaitFor(ctx, wait.Visible(p.Card(title)), p.d.Timeouts().FavoritesList)
}

// WaitUnlisted waits for the list to converge on not containing title.
func (p *Favorites) WaitUnlisted(ctx context.Context, title string) error {
	return p.d.WaitFor(ctx, wait.Hidden(p.Card(title)), p.d.Timeouts().FavoritesList)
}

// OpenDetails clicks the favorite card for title and waits for its details route.
func (p *Favorites) OpenDetails(ctx context.Context, title string) error {
	if err := p.WaitListed(ctx, title); err != nil {
		return err
	}
	if err := p.d.Click(ctx, p.Card(title)); err != nil {
		return err
	}
	return p.d.WaitForURL(ctx, GlobDetails)
}
