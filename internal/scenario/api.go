// File: internal/scenario/api.go
package scenario

import (
	"context"

	"go.uber.org/zap"

	"github.com/xkilldash9x/shelfcheck/internal/fixtures"
)

const (
	keyBookID      = "book_id"
	keyBookCreated = "book_created"
)

// createBook stores the created id so later steps and teardown can find it.
func createBook(name string, pick func(fixtures.Set) fixtures.Book) Step {
	return step(name, func(ctx context.Context, env *Env) error {
		want := pick(env.Fixtures).Uniquified(fixtures.Unique())
		b, err := env.API.CreateBook(ctx, want)
		if err != nil {
			return err
		}
		env.State[keyBookID] = b.ID
		env.State[keyBookCreated] = want
		return nil
	})
}

// deleteCreatedBook removes the book createBook made, if any.
func deleteCreatedBook() Step {
	return step("delete created book", func(ctx context.Context, env *Env) error {
		id, err := Value[int](env.State, keyBookID)
		if err != nil {
			// Creation failed; nothing to clean up.
			return nil
		}
		if err := env.API.DeleteBook(ctx, id); err != nil {
			env.Logger.Debug("Created book already gone", zap.Int("id", id), zap.Error(err))
		}
		return nil
	})
}

func withBookID(run func(ctx context.Context, env *Env, id int) error) func(context.Context, *Env) error {
	return func(ctx context.Context, env *Env) error {
		id, err := Value[int](env.State, keyBookID)
		if err != nil {
			return err
		}
		return run(ctx, env, id)
	}
}

func clearFavorite() Step {
	return step("clear favorite", func(ctx context.Context, env *Env) error {
		env.API.ClearFavorite(ctx, env.Target.FavoritesUserID, env.Target.FavoritesBookID)
		return nil
	})
}

func addFavorite() Step {
	return step("add favorite", func(ctx context.Context, env *Env) error {
		return env.API.AddFavorite(ctx, env.Target.FavoritesUserID, env.Target.FavoritesBookID)
	})
}

// APIScenarios are the REST contract checks.
func APIScenarios() []Scenario {
	return []Scenario{
		{
			ID: "CT-BE-001", Title: "Register a new user", Suite: SuiteAPI,
			Steps: []Step{step("register", func(ctx context.Context, env *Env) error {
				_, err := env.API.Register(ctx, env.Fixtures.APIUser.New())
				return err
			})},
		},
		{
			ID: "CT-BE-002", Title: "Register with an existing email", Suite: SuiteAPI,
			Steps: []Step{step("register the admin email again", func(ctx context.Context, env *Env) error {
				u := env.Fixtures.APIUser.New()
				u.Email = env.Fixtures.Admin.Email
				return env.API.RegisterDuplicate(ctx, u)
			})},
		},
		{
			ID: "CT-BE-003", Title: "Login with valid credentials", Suite: SuiteAPI,
			Steps: []Step{step("login", func(ctx context.Context, env *Env) error {
				_, err := env.API.Login(ctx, env.Fixtures.Admin)
				return err
			})},
		},
		{
			ID: "CT-BE-004", Title: "Login with invalid credentials", Suite: SuiteAPI,
			Steps: []Step{step("login is rejected", func(ctx context.Context, env *Env) error {
				return env.API.LoginRejected(ctx, env.Fixtures.InvalidLogin)
			})},
		},
		{
			ID: "CT-BE-005", Title: "Create a book", Suite: SuiteAPI, LockKey: LockCatalog,
			Steps: []Step{
				createBook("create book", func(s fixtures.Set) fixtures.Book { return s.APIBook }),
				step("read book back", withBookID(func(ctx context.Context, env *Env, id int) error {
					want, err := Value[fixtures.Book](env.State, keyBookCreated)
					if err != nil {
						return err
					}
					_, err = env.API.BookEquals(ctx, id, want)
					return err
				})),
			},
			Teardown: []Step{deleteCreatedBook()},
		},
		{
			ID: "CT-BE-006", Title: "List books", Suite: SuiteAPI,
			Steps: []Step{step("list books", func(ctx context.Context, env *Env) error {
				_, err := env.API.ListBooks(ctx)
				return err
			})},
		},
		{
			ID: "CT-BE-007", Title: "Get a book by id", Suite: SuiteAPI,
			Steps: []Step{step("get seeded book", func(ctx context.Context, env *Env) error {
				_, err := env.API.GetBook(ctx, env.Fixtures.Seeded.BookID)
				return err
			})},
		},
		{
			ID: "CT-BE-008", Title: "Update a book", Suite: SuiteAPI, LockKey: LockCatalog,
			Setup: []Step{createBook("create book", func(s fixtures.Set) fixtures.Book { return s.UpdateOriginal })},
			Steps: []Step{step("update book", withBookID(func(ctx context.Context, env *Env, id int) error {
				_, err := env.API.UpdateBook(ctx, id, env.Fixtures.UpdateChanged)
				return err
			}))},
			Teardown: []Step{deleteCreatedBook()},
		},
		{
			ID: "CT-BE-009", Title: "Delete a book", Suite: SuiteAPI, LockKey: LockCatalog,
			Setup: []Step{createBook("create book", func(s fixtures.Set) fixtures.Book { return s.APIDisposable })},
			Steps: []Step{
				step("delete book", withBookID(func(ctx context.Context, env *Env, id int) error {
					return env.API.DeleteBook(ctx, id)
				})),
				step("book is gone", withBookID(func(ctx context.Context, env *Env, id int) error {
					return env.API.BookGone(ctx, id)
				})),
			},
		},
		{
			ID: "CT-BE-010", Title: "Add a book to favorites", Suite: SuiteAPI, LockKey: LockFavorites,
			Setup: []Step{clearFavorite()},
			Steps: []Step{addFavorite()},
		},
		{
			ID: "CT-BE-011", Title: "Remove a book from favorites", Suite: SuiteAPI, LockKey: LockFavorites,
			Setup: []Step{clearFavorite(), addFavorite()},
			Steps: []Step{step("remove favorite", func(ctx context.Context, env *Env) error {
				return env.API.RemoveFavorite(ctx, env.Target.FavoritesUserID, env.Target.FavoritesBookID)
			})},
		},
		{
			ID: "CT-BE-012", Title: "List favorites", Suite: SuiteAPI, LockKey: LockFavorites,
			Setup: []Step{clearFavorite(), addFavorite()},
			Steps: []Step{step("favorites list the book", func(ctx context.Context, env *Env) error {
				_, err := env.API.FavoritesContain(ctx, env.Target.FavoritesUserID, env.Target.FavoritesBookID)
				return err
			})},
		},
		{
			ID: "CT-BE-013", Title: "Statistics", Suite: SuiteAPI,
			Steps: []Step{step("read statistics", func(ctx context.Context, env *Env) error {
				_, err := env.API.Stats(ctx)
				return err
			})},
		},
	}
}
