package pages

import (
	"context"
	"fmt"

	"go.uber.org/zap"

	"github.com/xkilldash9x/shelfcheck/internal/browser/dialog"
	"github.com/xkilldash9x/shelfcheck/internal/browser/driver"
	"github.com/xkilldash9x/shelfcheck/internal/browser/locator"
	"github.com/xkilldash9x/shelfcheck/internal/browser/wait"
	"github.com/xkilldash9x/shelfcheck/internal/failures"
	"github.com/xkilldash9x/shelfcheck/internal/fixtures"
)

// Books is the book management screen: the add form and the grid of all books.
type Books struct {
	Nav
	d      *driver.Driver
	logger *zap.Logger

	name        locator.Locator
	author      locator.Locator
	pages       locator.Locator
	description locator.Locator
	imageURL    locator.Locator
	submit      locator.Locator

	grid     locator.Locator
	cards    locator.Locator
	title    locator.Locator
	addTitle locator.Locator
	allTitle locator.Locator
}

func NewBooks(d *driver.Driver) *Books {
	return &Books{
		Nav:         newNav(d),
		d:           d,
		logger:      d.Logger().Named("books_page"),
		name:        locator.ByRole(locator.RoleTextbox, "Nome do Livro:"),
		author:      locator.ByRole(locator.RoleTextbox, "Autor:"),
		pages:       locator.ByRole(locator.RoleSpinbutton, "Número de Páginas:"),
		description: locator.ByRole(locator.RoleTextbox, "Descrição:"),
		imageURL:    locator.ByRole(locator.RoleTextbox, "URL da Imagem:"),
		submit:      locator.ByRole(locator.RoleButton, "Adicionar Livro"),
		grid:        locator.ByCSS("#lista-livros"),
		cards:       locator.ByCSS(".book-card"),
		title:       locator.ByRole(locator.RoleHeading, "📚 Gerenciar Livros"),
		addTitle:    locator.ByRole(locator.RoleHeading, "Adicionar Novo Livro"),
		allTitle:    locator.ByRole(locator.RoleHeading, "Todos os Livros"),
	}
}

// Open navigates to the screen and verifies it loaded.
func (p *Books) Open(ctx context.Context) error {
	if err := p.d.Goto(ctx, PathBooks); err != nil {
		return err
	}
	return p.VerifyLoaded(ctx)
}

// VerifyLoaded checks the three section headings.
func (p *Books) VerifyLoaded(ctx context.Context) error {
	return expectVisible(ctx, p.d, p.title, p.addTitle, p.allTitle)
}

// FillForm types every field of b. Pages go into a numeric field.
func (p *Books) FillForm(ctx context.Context, b fixtures.Book) error {
	fields := []struct {
		l locator.Locator
		v any
	}{
		{p.name, b.Name}, {p.author, b.Author}, {p.pages, b.Pages},
		{p.description, b.Description}, {p.imageURL, b.ImageURL},
	}
	for _, f := range fields {
		if err := p.d.Fill(ctx, f.l, f.v); err != nil {
			return err
		}
	}
	return nil
}

// Submit clicks "Adicionar Livro" without expecting anything.
func (p *Books) Submit(ctx context.Context) error {
	return p.d.Click(ctx, p.submit)
}

// AddBook fills the form, submits it, requires the success alert and waits for the new
// card to appear in the grid.
func (p *Books) AddBook(ctx context.Context, b fixtures.Book) error {
	if err := p.FillForm(ctx, b); err != nil {
		return err
	}
	if _, err := p.d.ExpectDialog(ctx, dialog.ExpectMessageContaining(FragmentBookAdded), p.Submit); err != nil {
		return fmt.Errorf("adding book %q: %w", b.Name, err)
	}
	if err := p.d.ExpectVisible(ctx, p.Card(b.Name)); err != nil {
		return err
	}
	p.logger.Debug("Book added.", zap.String("title", b.Name))
	return nil
}

// SubmitEmpty submits the form as it is. The browser's own validation normally keeps the
// request from being sent; an alert, if the page raises one, is accepted.
func (p *Books) SubmitEmpty(ctx context.Context) (alerted bool, err error) {
	return clickAcceptingAny(ctx, p.d, p.submit)
}

// ClearForm empties every field.
func (p *Books) ClearForm(ctx context.Context) error {
	for _, l := range []locator.Locator{p.name, p.author, p.pages, p.description, p.imageURL} {
		if err := p.d.Clear(ctx, l); err != nil {
			return err
		}
	}
	return nil
}

// FormValues is what the form fields currently hold.
type FormValues struct {
	Name, Author, Pages, Description, ImageURL string
}

func (p *Books) FormValues(ctx context.Context) (FormValues, error) {
	var v FormValues
	for _, f := range []struct {
		l   locator.Locator
		dst *string
	}{
		{p.name, &v.Name}, {p.author, &v.Author}, {p.pages, &v.Pages},
		{p.description, &v.Description}, {p.imageURL, &v.ImageURL},
	} {
		s, err := p.d.ReadValue(ctx, f.l)
		if err != nil {
			return FormValues{}, err
		}
		*f.dst = s
	}
	return v, nil
}

// VerifyFormEmpty requires every field to be blank.
func (p *Books) VerifyFormEmpty(ctx context.Context) error {
	v, err := p.FormValues(ctx)
	if err != nil {
		return err
	}
	return failures.AssertEqual("book form", FormValues{}, v)
}

// CardCount counts the cards in the grid right now.
func (p *Books) CardCount(ctx context.Context) (int, error) {
	return p.d.Count(ctx, p.cards)
}

// WaitForCount waits for the grid to hold n cards.
func (p *Books) WaitForCount(ctx context.Context, cmp wait.Comparison, n int) error {
	return p.d.WaitFor(ctx, wait.Count(p.cards, cmp, n), p.d.Timeouts().Action)
}

// Card references the card whose text contains title.
func (p *Books) Card(title string) locator.Locator {
	return p.cards.WithText(title)
}

// CardText returns the whole text of the card for title.
func (p *Books) CardText(ctx context.Context, title string) (string, error) {
	return p.d.ReadText(ctx, p.Card(title))
}

// VerifyCardGone waits for the card for title to leave the grid.
func (p *Books) VerifyCardGone(ctx context.Context, title string) error {
	return p.d.WaitFor(ctx, wait.Hidden(p.Card(title)), p.d.Timeouts().Action)
}

// OpenDetails clicks the card for title and waits for its details route.
func (p *Books) OpenDetails(ctx context.Context, title string) error {
	card := p.Card(title)
	if err := p.d.ExpectVisible(ctx, card); err != nil {
		return err
	}
	if err := p.d.Click(ctx, card); err != nil {
		return err
	}
	return p.d.WaitForURL(ctx, GlobDetails)
}

// CardTitle reads the heading of the i-th card.
func (p *Books) CardTitle(ctx context.Context, i int) (string, error) {
	return p.d.ReadText(ctx, p.cards.Nth(i).Locator(locator.ByCSS("h3")))
}

// OpenDetailsAt opens the i-th card and returns the title it showed in the grid.
func (p *Books) OpenDetailsAt(ctx context.Context, i int) (string, error) {
	title, err := p.CardTitle(ctx, i)
	if err != nil {
		return "", err
	}
	if err := p.d.Click(ctx, p.cards.Nth(i)); err != nil {
		return "", err
	}
	if err := p.d.WaitForURL(ctx, GlobDetails); err != nil {
		return "", err
	}
	return title, nil
}
