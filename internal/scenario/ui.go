// File: internal/scenario/ui.go
package scenario

import (
	"context"
	"fmt"
	"strconv"
	"strings"

	"github.com/xkilldash9x/shelfcheck/internal/browser/wait"
	"github.com/xkilldash9x/shelfcheck/internal/failures"
	"github.com/xkilldash9x/shelfcheck/internal/fixtures"
	"github.com/xkilldash9x/shelfcheck/internal/pages"
)

// State keys used by the UI scenarios.
const (
	keyBook      = "book"
	keyCardCount = "card_count"
)

func step(name string, run func(ctx context.Context, env *Env) error) Step {
	return Step{Name: name, Run: run}
}

func loginAsAdmin() Step {
	return step("log in as admin", func(ctx context.Context, env *Env) error {
		login := pages.NewLogin(env.Driver)
		if err := login.Open(ctx); err != nil {
			return err
		}
		return login.LoginAs(ctx, env.Fixtures.Admin)
	})
}

func openBooks() Step {
	return step("open books", func(ctx context.Context, env *Env) error {
		return pages.NewBooks(env.Driver).Open(ctx)
	})
}

func openDetailsOf(title func(fixtures.Set) string) Step {
	return step("open book details", func(ctx context.Context, env *Env) error {
		details := pages.NewBookDetails(env.Driver)
		if err := pages.NewBooks(env.Driver).OpenDetails(ctx, title(env.Fixtures)); err != nil {
			return err
		}
		return details.VerifyLoaded(ctx)
	})
}

func rememberCardCount() Step {
	return step("count books", func(ctx context.Context, env *Env) error {
		n, err := pages.NewBooks(env.Driver).CardCount(ctx)
		env.State[keyCardCount] = n
		return err
	})
}

func cardCountIs(cmp wait.Comparison) Step {
	return step("book count "+cmp.String()+" before", func(ctx context.Context, env *Env) error {
		before, err := Value[int](env.State, keyCardCount)
		if err != nil {
			return err
		}
		return pages.NewBooks(env.Driver).WaitForCount(ctx, cmp, before)
	})
}

func addUniqueBook(pick func(fixtures.Set) fixtures.Book) Step {
	return step("add book", func(ctx context.Context, env *Env) error {
		b := pick(env.Fixtures).Uniquified(fixtures.Unique())
		env.State[keyBook] = b
		return pages.NewBooks(env.Driver).AddBook(ctx, b)
	})
}

func cleanCode(s fixtures.Set) string   { return s.Seeded.CleanCode }
func harryPotter(s fixtures.Set) string { return s.Seeded.HarryPotter }

func nonEmpty(what, v string) error {
	if strings.TrimSpace(v) == "" {
		return failures.Assertf("non-empty", v, "%s", what)
	}
	return nil
}

// UIScenarios are the browser checks.
func UIScenarios() []Scenario {
	return []Scenario{
		{
			ID: "CT-FE-001", Title: "Register a user", Suite: SuiteUI,
			Steps: []Step{
				step("open registration", func(ctx context.Context, env *Env) error {
					return pages.NewRegister(env.Driver).Open(ctx)
				}),
				step("register", func(ctx context.Context, env *Env) error {
					return pages.NewRegister(env.Driver).Register(ctx, env.Fixtures.UIUser.New())
				}),
				step("login form is empty", func(ctx context.Context, env *Env) error {
					return pages.NewLogin(env.Driver).VerifyFieldsEmpty(ctx)
				}),
			},
		},
		{
			ID: "CT-FE-002", Title: "Register with mismatched password", Suite: SuiteUI,
			Steps: []Step{
				step("open registration", func(ctx context.Context, env *Env) error {
					return pages.NewRegister(env.Driver).Open(ctx)
				}),
				step("submit mismatched confirmation", func(ctx context.Context, env *Env) error {
					return pages.NewRegister(env.Driver).RegisterMismatched(ctx,
						env.Fixtures.UIUser.New(), env.Fixtures.MismatchConfirmation)
				}),
			},
		},
		{
			ID: "CT-FE-003", Title: "Successful login", Suite: SuiteUI,
			Steps: []Step{
				loginAsAdmin(),
				step("dashboard greets the user", func(ctx context.Context, env *Env) error {
					dash := pages.NewDashboard(env.Driver)
					if err := dash.VerifyLoaded(ctx); err != nil {
						return err
					}
					name, err := dash.UserName(ctx)
					if err != nil {
						return err
					}
					return nonEmpty("greeting", name)
				}),
				step("session is stored", func(ctx context.Context, env *Env) error {
					if _, ok, err := env.Driver.LocalStorage(ctx, pages.StorageToken); err != nil || !ok {
						return storageErr(pages.StorageToken, "present", err)
					}
					return nil
				}),
			},
		},
		{
			ID: "CT-FE-004", Title: "Invalid login", Suite: SuiteUI,
			Steps: []Step{
				step("open login", func(ctx context.Context, env *Env) error {
					return pages.NewLogin(env.Driver).Open(ctx)
				}),
				step("submit invalid credentials", func(ctx context.Context, env *Env) error {
					return pages.NewLogin(env.Driver).LoginRejected(ctx, env.Fixtures.InvalidLogin)
				}),
			},
		},
		{
			ID: "CT-FE-005", Title: "Route protection", Suite: SuiteUI,
			Steps: []Step{
				step("clear session", func(ctx context.Context, env *Env) error {
					if err := pages.NewLogin(env.Driver).Open(ctx); err != nil {
						return err
					}
					return env.Driver.ClearStorage(ctx)
				}),
				step("every protected route redirects to login", func(ctx context.Context, env *Env) error {
					login := pages.NewLogin(env.Driver)
					for _, path := range pages.ProtectedPaths() {
						if err := env.Driver.Goto(ctx, path); err != nil {
							return err
						}
						if err := env.Driver.WaitForURL(ctx, pages.GlobLogin); err != nil {
							return fmt.Errorf("opening %s without a session: %w", path, err)
						}
						if err := login.VerifyFormVisible(ctx); err != nil {
							return err
						}
					}
					return nil
				}),
			},
		},
		{
			ID: "CT-FE-006", Title: "Dashboard with statistics", Suite: SuiteUI,
			Steps: []Step{
				loginAsAdmin(),
				step("statistics cards", func(ctx context.Context, env *Env) error {
					dash := pages.NewDashboard(env.Driver)
					if _, err := dash.StatsCount(ctx); err != nil {
						return err
					}
					text, err := dash.FirstStatText(ctx)
					if err != nil {
						return err
					}
					return nonEmpty("first statistics card", text)
				}),
				step("recent books", func(ctx context.Context, env *Env) error {
					return pages.NewDashboard(env.Driver).VerifyRecentBooks(ctx)
				}),
			},
		},
		{
			ID: "CT-FE-007", Title: "Add a new book", Suite: SuiteUI, LockKey: LockCatalog,
			Steps: []Step{
				loginAsAdmin(),
				openBooks(),
				rememberCardCount(),
				addUniqueBook(func(s fixtures.Set) fixtures.Book { return s.NewBook }),
				cardCountIs(wait.GreaterThan),
				step("card shows the book", func(ctx context.Context, env *Env) error {
					b, err := Value[fixtures.Book](env.State, keyBook)
					if err != nil {
						return err
					}
					text, err := pages.NewBooks(env.Driver).CardText(ctx, b.Name)
					if err != nil {
						return err
					}
					for _, want := range []string{b.Name, b.Author, strconv.Itoa(b.Pages)} {
						if !strings.Contains(text, want) {
							return failures.Assertf(want, text, "book card text")
						}
					}
					return nil
				}),
			},
		},
		{
			ID: "CT-FE-008", Title: "Add a book to favorites", Suite: SuiteUI, LockKey: LockFavorites,
			Steps: []Step{
				loginAsAdmin(),
				openBooks(),
				openDetailsOf(harryPotter),
				step("add to favorites", func(ctx context.Context, env *Env) error {
					if err := pages.NewBookDetails(env.Driver).AddToFavorites(ctx); err != nil {
						return err
					}
					return env.Settle(ctx)
				}),
				step("open favorites", func(ctx context.Context, env *Env) error {
					if err := pages.NewBookDetails(env.Driver).ToFavorites(ctx); err != nil {
						return err
					}
					return pages.NewFavorites(env.Driver).VerifyLoaded(ctx)
				}),
				step("book is listed", func(ctx context.Context, env *Env) error {
					fav := pages.NewFavorites(env.Driver)
					if _, err := fav.Count(ctx); err != nil {
						return err
					}
					return fav.WaitListed(ctx, env.Fixtures.Seeded.HarryPotter)
				}),
			},
		},
		{
			ID: "CT-FE-009", Title: "Navigation between pages", Suite: SuiteUI,
			Steps: []Step{
				loginAsAdmin(),
				step("dashboard link", func(ctx context.Context, env *Env) error {
					return pages.NewDashboard(env.Driver).ToDashboard(ctx)
				}),
				step("books link", func(ctx context.Context, env *Env) error {
					return pages.NewDashboard(env.Driver).ToBooks(ctx)
				}),
				step("favorites link", func(ctx context.Context, env *Env) error {
					dash := pages.NewDashboard(env.Driver)
					if err := dash.Open(ctx); err != nil {
						return err
					}
					return dash.ToFavorites(ctx)
				}),
				step("back on the dashboard", func(ctx context.Context, env *Env) error {
					dash := pages.NewDashboard(env.Driver)
					if err := dash.Open(ctx); err != nil {
						return err
					}
					return dash.VerifyLoaded(ctx)
				}),
			},
		},
		{
			ID: "CT-FE-010", Title: "View book details", Suite: SuiteUI,
			Steps: []Step{
				loginAsAdmin(),
				openBooks(),
				openDetailsOf(cleanCode),
				step("details are complete", func(ctx context.Context, env *Env) error {
					details := pages.NewBookDetails(env.Driver)
					if err := details.VerifyAllInfoDisplayed(ctx); err != nil {
						return err
					}
					det, err := details.Read(ctx)
					if err != nil {
						return err
					}
					if det.Title != env.Fixtures.Seeded.CleanCode {
						return failures.Assertf(env.Fixtures.Seeded.CleanCode, det.Title, "book title")
					}
					for what, v := range map[string]string{
						"author": det.Author, "pages": det.Pages, "description": det.Description, "date": det.Date,
					} {
						if err := nonEmpty(what, v); err != nil {
							return err
						}
					}
					return details.VerifyButtonsVisible(ctx)
				}),
			},
		},
		{
			ID: "CT-FE-011", Title: "Delete a book", Suite: SuiteUI, LockKey: LockCatalog,
			Steps: []Step{
				loginAsAdmin(),
				openBooks(),
				addUniqueBook(func(s fixtures.Set) fixtures.Book { return s.DisposableBook }),
				step("open the new book", func(ctx context.Context, env *Env) error {
					b, err := Value[fixtures.Book](env.State, keyBook)
					if err != nil {
						return err
					}
					return pages.NewBooks(env.Driver).OpenDetails(ctx, b.Name)
				}),
				step("delete", func(ctx context.Context, env *Env) error {
					return pages.NewBookDetails(env.Driver).Delete(ctx)
				}),
				step("card is gone", func(ctx context.Context, env *Env) error {
					b, err := Value[fixtures.Book](env.State, keyBook)
					if err != nil {
						return err
					}
					return pages.NewBooks(env.Driver).VerifyCardGone(ctx, b.Name)
				}),
			},
		},
		{
			ID: "CT-FE-012", Title: "Remove a book from favorites", Suite: SuiteUI, LockKey: LockFavorites,
			Steps: []Step{
				loginAsAdmin(),
				openBooks(),
				openDetailsOf(cleanCode),
				step("ensure favorited", func(ctx context.Context, env *Env) error {
					if err := pages.NewBookDetails(env.Driver).AddToFavorites(ctx); err != nil {
						return err
					}
					return env.Settle(ctx)
				}),
				step("open it from favorites", func(ctx context.Context, env *Env) error {
					if err := pages.NewBookDetails(env.Driver).ToFavorites(ctx); err != nil {
						return err
					}
					return pages.NewFavorites(env.Driver).OpenDetails(ctx, env.Fixtures.Seeded.CleanCode)
				}),
				step("remove from favorites", func(ctx context.Context, env *Env) error {
					if err := pages.NewBookDetails(env.Driver).RemoveFromFavorites(ctx); err != nil {
						return err
					}
					return env.Settle(ctx)
				}),
				step("favorites no longer list it", func(ctx context.Context, env *Env) error {
					if err := env.Driver.GoBack(ctx); err != nil {
						return err
					}
					if err := env.Driver.WaitForURL(ctx, pages.GlobFavorites); err != nil {
						return err
					}
					if err := env.Driver.Reload(ctx); err != nil {
						return err
					}
					return pages.NewFavorites(env.Driver).WaitUnlisted(ctx, env.Fixtures.Seeded.CleanCode)
				}),
			},
		},
		{
			ID: "CT-FE-013", Title: "Book form validation with empty fields", Suite: SuiteUI, LockKey: LockCatalog,
			Steps: []Step{
				loginAsAdmin(),
				openBooks(),
				rememberCardCount(),
				step("submit the empty form", func(ctx context.Context, env *Env) error {
					_, err := pages.NewBooks(env.Driver).SubmitEmpty(ctx)
					return err
				}),
				cardCountIs(wait.Equal),
				addUniqueBook(func(s fixtures.Set) fixtures.Book { return s.ValidBook }),
				cardCountIs(wait.GreaterThan),
			},
		},
		{
			ID: "CT-FE-014", Title: "Back button navigation", Suite: SuiteUI,
			Steps: []Step{
				loginAsAdmin(),
				openBooks(),
				openDetailsOf(cleanCode),
				step("back to books", func(ctx context.Context, env *Env) error {
					if err := pages.NewBookDetails(env.Driver).Back(ctx); err != nil {
						return err
					}
					return pages.NewBooks(env.Driver).VerifyLoaded(ctx)
				}),
			},
		},
		{
			ID: "CT-FE-015", Title: "View details of several books", Suite: SuiteUI, LockKey: LockCatalog,
			Steps: []Step{
				loginAsAdmin(),
				openBooks(),
				rememberCardCount(),
				step("each card opens its details", func(ctx context.Context, env *Env) error {
					n, err := Value[int](env.State, keyCardCount)
					if err != nil {
						return err
					}
					if n == 0 {
						return failures.Assertf("> 0", n, "books listed")
					}
					books := pages.NewBooks(env.Driver)
					details := pages.NewBookDetails(env.Driver)
					for i := range min(n, 2) {
						if err := books.Open(ctx); err != nil {
							return err
						}
						title, err := books.OpenDetailsAt(ctx, i)
						if err != nil {
							return fmt.Errorf("card %d: %w", i, err)
						}
						if err := details.VerifyAllInfoDisplayed(ctx); err != nil {
							return err
						}
						got, err := details.Title(ctx)
						if err != nil {
							return err
						}
						if got != title {
							return failures.Assertf(title, got, "details title of card %d", i)
						}
					}
					return nil
				}),
			},
		},
		{
			ID: "CT-FE-016", Title: "Logout", Suite: SuiteUI,
			Steps: []Step{
				loginAsAdmin(),
				step("log out", func(ctx context.Context, env *Env) error {
					return pages.NewDashboard(env.Driver).Logout(ctx)
				}),
				step("session is cleared", func(ctx context.Context, env *Env) error {
					for _, key := range []string{pages.StorageToken, pages.StorageUser} {
						if _, ok, err := env.Driver.LocalStorage(ctx, key); err != nil || ok {
							return storageErr(key, "absent", err)
						}
					}
					return nil
				}),
				step("protected route redirects", func(ctx context.Context, env *Env) error {
					if err := env.Driver.Goto(ctx, pages.PathDashboard); err != nil {
						return err
					}
					return env.Driver.WaitForURL(ctx, pages.GlobLogin)
				}),
			},
		},
	}
}

func storageErr(key, want string, err error) error {
	if err != nil {
		return err
	}
	observed := "present"
	if want == "present" {
		observed = "absent"
	}
	return failures.Assertf(want, observed, "localStorage[%s]", key)
}
