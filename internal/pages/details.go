package pages

import (
	"context"
	"errors"
	"fmt"
	"regexp"
	"strings"

	"go.uber.org/zap"

	"github.com/xkilldash9x/shelfcheck/internal/browser/dialog"
	"github.com/xkilldash9x/shelfcheck/internal/browser/driver"
	"github.com/xkilldash9x/shelfcheck/internal/browser/locator"
	"github.com/xkilldash9x/shelfcheck/internal/browser/surface"
	"github.com/xkilldash9x/shelfcheck/internal/browser/wait"
)

// Toggle labels of the favorites button.
const (
	LabelAddFavorite    = "Adicionar aos Favoritos"
	LabelRemoveFavorite = "Remover dos Favoritos"
)

// Labels of the detail lines.
const (
	LabelAuthor      = "Autor:"
	LabelPages       = "Páginas:"
	LabelDescription = "Descrição:"
	LabelDate        = "Data de Cadastro:"
)

// FavoriteState is what the favorites toggle currently says.
type FavoriteState int

const (
	Unfavorited FavoriteState = iota
	Favorited
	// Pending covers a missing button or a label that is neither of the two, e.g. while a
	// request is in flight.
	Pending
)

func (s FavoriteState) String() string {
	switch s {
	case Unfavorited:
		return "unfavorited"
	case Favorited:
		return "favorited"
	}
	return "pending"
}

// ClassifyToggle maps a button label to a state.
func ClassifyToggle(label string) FavoriteState {
	switch {
	case strings.Contains(label, LabelRemoveFavorite):
		return Favorited
	case strings.Contains(label, LabelAddFavorite):
		return Unfavorited
	}
	return Pending
}

// Details is the information the details screen shows about a book.
type Details struct {
	Title, Author, Pages, Description, Date string
}

// BookDetails is the details screen of one book.
type BookDetails struct {
	Nav
	d      *driver.Driver
	logger *zap.Logger

	heading locator.Locator
	title   locator.Locator
	image   locator.Locator
	toggle  locator.Locator
	remove  locator.Locator
	back    locator.Locator
}

func NewBookDetails(d *driver.Driver) *BookDetails {
	return &BookDetails{
		Nav:     newNav(d),
		d:       d,
		logger:  d.Logger().Named("details_page"),
		heading: locator.ByRole(locator.RoleHeading, "📚 Detalhes do Livro").Level(1),
		title:   locator.ByRole(locator.RoleHeading, "").Level(2),
		image:   locator.ByCSS("img").First(),
		toggle: locator.ByRolePattern(locator.RoleButton,
			regexp.MustCompile(LabelAddFavorite+"|"+LabelRemoveFavorite)),
		remove: locator.ByRole(locator.RoleButton, "🗑️ Deletar Livro"),
		back:   locator.ByRole(locator.RoleButton, "← Voltar"),
	}
}

// Open navigates straight to the details of book id.
func (p *BookDetails) Open(ctx context.Context, id int) error {
	if err := p.d.Goto(ctx, DetailsPath(id)); err != nil {
		return err
	}
	return p.VerifyLoaded(ctx)
}

// VerifyLoaded checks the page heading and the book title.
func (p *BookDetails) VerifyLoaded(ctx context.Context) error {
	return expectVisible(ctx, p.d, p.heading, p.title)
}

// line references the paragraph that starts with a bold label.
func line(label string) locator.Locator {
	return locator.ByCSS(":has(> strong)").WithTextPattern(regexp.MustCompile("^" + regexp.QuoteMeta(label)))
}

func (p *BookDetails) labelled(ctx context.Context, label string) (string, error) {
	text, err := p.d.ReadText(ctx, line(label))
	if err != nil {
		return "", err
	}
	return trimLabel(text, label), nil
}

func (p *BookDetails) Title(ctx context.Context) (string, error) {
	t, err := p.d.ReadText(ctx, p.title)
	return locator.Normalize(t), err
}

func (p *BookDetails) Author(ctx context.Context) (string, error) {
	return p.labelled(ctx, LabelAuthor)
}

func (p *BookDetails) Pages(ctx context.Context) (string, error) {
	return p.labelled(ctx, LabelPages)
}

func (p *BookDetails) Description(ctx context.Context) (string, error) {
	return p.labelled(ctx, LabelDescription)
}

func (p *BookDetails) Date(ctx context.Context) (string, error) {
	return p.labelled(ctx, LabelDate)
}

// Read collects every detail line.
func (p *BookDetails) Read(ctx context.Context) (Details, error) {
	var det Details
	var err error
	if det.Title, err = p.Title(ctx); err != nil {
		return Details{}, err
	}
	for _, f := range []struct {
		label string
		dst   *string
	}{
		{LabelAuthor, &det.Author}, {LabelPages, &det.Pages},
		{LabelDescription, &det.Description}, {LabelDate, &det.Date},
	} {
		if *f.dst, err = p.labelled(ctx, f.label); err != nil {
			return Details{}, err
		}
	}
	return det, nil
}

// VerifyAllInfoDisplayed checks the title, the cover and every detail line.
func (p *BookDetails) VerifyAllInfoDisplayed(ctx context.Context) error {
	return expectVisible(ctx, p.d, p.title, p.image,
		line(LabelAuthor), line(LabelPages), line(LabelDescription), line(LabelDate))
}

// VerifyButtonsVisible checks the toggle, delete and back buttons.
func (p *BookDetails) VerifyButtonsVisible(ctx context.Context) error {
	return expectVisible(ctx, p.d, p.toggle, p.remove, p.back)
}

// FavoriteState reads the toggle without waiting. A missing toggle is Pending.
func (p *BookDetails) FavoriteState(ctx context.Context) (FavoriteState, string, error) {
	return p.readToggle(ctx, p.d.Surface())
}

func (p *BookDetails) readToggle(ctx context.Context, s surface.Surface) (FavoriteState, string, error) {
	set, err := p.toggle.Resolve(ctx, s)
	if err != nil {
		return Pending, "", err
	}
	c, err := set.Single()
	if errors.Is(err, locator.ErrNoMatch) {
		return Pending, "no toggle", nil
	}
	if err != nil {
		return Pending, "", err
	}
	label := locator.Normalize(c.Text)
	if label == "" {
		label = c.Name
	}
	return ClassifyToggle(label), label, nil
}

// stateIs holds once the toggle reads one of want.
func (p *BookDetails) stateIs(want ...FavoriteState) wait.Condition {
	names := make([]string, len(want))
	for i, w := range want {
		names[i] = w.String()
	}
	return wait.Func{
		Name: "favorite toggle is " + strings.Join(names, " or "),
		Fn: func(ctx context.Context, s surface.Surface) (bool, string, error) {
			st, label, err := p.readToggle(ctx, s)
			if err != nil {
				return false, "", err
			}
			for _, w := range want {
				if st == w {
					return true, label, nil
				}
			}
			return false, label, nil
		},
	}
}

// IsFavorited waits for the toggle to settle and reports whether the book is a favorite.
func (p *BookDetails) IsFavorited(ctx context.Context) (bool, error) {
	st, err := p.settle(ctx)
	return st == Favorited, err
}

// settle waits, within the consistency window, for the toggle to leave Pending.
func (p *BookDetails) settle(ctx context.Context) (FavoriteState, error) {
	if err := p.d.WaitFor(ctx, p.stateIs(Favorited, Unfavorited), p.d.Timeouts().Consistency); err != nil {
		return Pending, err
	}
	st, _, err := p.FavoriteState(ctx)
	return st, err
}

// AddToFavorites makes the book a favorite. It does nothing when it already is one.
func (p *BookDetails) AddToFavorites(ctx context.Context) error {
	return p.setFavorite(ctx, Favorited)
}

// RemoveFromFavorites takes the book out of the favorites. It does nothing when the book is
// not a favorite.
func (p *BookDetails) RemoveFromFavorites(ctx context.Context) error {
	return p.setFavorite(ctx, Unfavorited)
}

func (p *BookDetails) setFavorite(ctx context.Context, want FavoriteState) error {
	current, err := p.settle(ctx)
	if err != nil {
		return fmt.Errorf("reading favorite state: %w", err)
	}
	if current == want {
		p.logger.Info("Favorite state already holds; nothing to do.", zap.Stringer("state", want))
		return nil
	}
	// The app may alert once its request completes, before or after the label flips, so
	// the handler stays armed until the flip and a grace period past it.
	fired, err := p.d.ExpectOptionalDialog(ctx, dialog.AcceptAll, dialogGrace(p.d), func(ctx context.Context) error {
		if err := p.d.Click(ctx, p.toggle); err != nil {
			return err
		}
		if err := p.d.WaitFor(ctx, p.stateIs(want), p.d.Timeouts().Consistency); err != nil {
			return fmt.Errorf("waiting for the toggle to read %s: %w", want, err)
		}
		return nil
	})
	if err != nil {
		return err
	}
	p.logger.Debug("Favorite state changed.",
		zap.Stringer("from", current), zap.Stringer("to", want), zap.Bool("alerted", fired))
	return nil
}

// Delete removes the book, accepting the confirmation and any follow-up alert, and waits
// for the books screen.
func (p *BookDetails) Delete(ctx context.Context) error {
	ticket, err := p.d.Dialogs().Arm(dialog.Persistent, dialog.AcceptAll)
	if err != nil {
		return err
	}
	defer ticket.Disarm()

	if err := p.d.Click(ctx, p.remove); err != nil {
		return err
	}
	waitCtx, cancel := context.WithTimeout(ctx, p.d.Timeouts().Action)
	defer cancel()
	if err := ticket.Wait(waitCtx); err != nil {
		return fmt.Errorf("confirming deletion: %w", err)
	}
	if evs := ticket.Events(); evs[0].Kind != surface.DialogConfirm {
		p.logger.Warn("Deletion was not confirmed through a confirm dialog.", zap.String("kind", string(evs[0].Kind)))
	}
	return p.d.WaitForURL(ctx, GlobBooks)
}

// Back clicks "← Voltar" and waits for the books screen.
func (p *BookDetails) Back(ctx context.Context) error {
	if err := p.d.Click(ctx, p.back); err != nil {
		return err
	}
	return p.d.WaitForURL(ctx, GlobBooks)
}
