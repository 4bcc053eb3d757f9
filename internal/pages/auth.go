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

// Login is the login screen.
type Login struct {
	d        *driver.Driver
	logger   *zap.Logger
	heading  locator.Locator
	email    locator.Locator
	password locator.Locator
	submit   locator.Locator
}

func NewLogin(d *driver.Driver) *Login {
	return &Login{
		d:        d,
		logger:   d.Logger().Named("login_page"),
		heading:  locator.ByRole(locator.RoleHeading, "Login"),
		email:    locator.ByRole(locator.RoleTextbox, "Email:"),
		password: locator.ByRole(locator.RoleTextbox, "Senha:").Exact(),
		submit:   locator.ByRole(locator.RoleButton, "Entrar"),
	}
}

// Open navigates to the login screen and waits for the form.
func (p *Login) Open(ctx context.Context) error {
	if err := p.d.Goto(ctx, PathLogin); err != nil {
		return err
	}
	return p.d.ExpectVisible(ctx, p.submit)
}

// VerifyFormVisible checks the heading, both fields and the submit button.
func (p *Login) VerifyFormVisible(ctx context.Context) error {
	return expectVisible(ctx, p.d, p.heading, p.email, p.password, p.submit)
}

func (p *Login) FillEmail(ctx context.Context, email string) error {
	return p.d.Fill(ctx, p.email, email)
}

func (p *Login) FillPassword(ctx context.Context, password string) error {
	return p.d.Fill(ctx, p.password, password)
}

func (p *Login) Submit(ctx context.Context) error {
	return p.d.Click(ctx, p.submit)
}

// SubmitExpecting submits the form and requires the alert to read want.
func (p *Login) SubmitExpecting(ctx context.Context, want string) error {
	_, err := p.d.ExpectDialog(ctx, dialog.ExpectMessage(want), p.Submit)
	return err
}

// LoginAs signs in and waits for the dashboard.
func (p *Login) LoginAs(ctx context.Context, cred fixtures.Credential) error {
	if err := p.FillEmail(ctx, cred.Email); err != nil {
		return err
	}
	if err := p.FillPassword(ctx, cred.Password); err != nil {
		return err
	}
	if err := p.SubmitExpecting(ctx, MsgLoginSuccess); err != nil {
		return fmt.Errorf("login as %s: %w", cred.Email, err)
	}
	if err := p.d.WaitForURL(ctx, GlobDashboard); err != nil {
		return err
	}
	p.logger.Debug("Logged in.", zap.String("email", cred.Email))
	return nil
}

// LoginRejected submits bad credentials, requires the rejection alert and checks that the
// screen neither navigated nor cleared the form.
func (p *Login) LoginRejected(ctx context.Context, cred fixtures.Credential) error {
	if err := p.FillEmail(ctx, cred.Email); err != nil {
		return err
	}
	if err := p.FillPassword(ctx, cred.Password); err != nil {
		return err
	}
	if err := p.SubmitExpecting(ctx, MsgLoginRejected); err != nil {
		return err
	}
	if err := p.VerifyStillHere(ctx); err != nil {
		return err
	}
	email, err := p.EmailValue(ctx)
	if err != nil {
		return err
	}
	password, err := p.PasswordValue(ctx)
	if err != nil {
		return err
	}
	return failures.AssertEqual("login form after rejection", cred, fixtures.Credential{Email: email, Password: password})
}

// VerifyStillHere checks that the surface is on the login route.
func (p *Login) VerifyStillHere(ctx context.Context) error {
	u, err := p.d.CurrentURL(ctx)
	if err != nil {
		return err
	}
	ok, err := wait.MatchGlob(GlobLogin, u)
	if err != nil {
		return err
	}
	if !ok {
		return failures.Assertf(GlobLogin, u, "current url")
	}
	return nil
}

func (p *Login) EmailValue(ctx context.Context) (string, error) {
	return p.d.ReadValue(ctx, p.email)
}

func (p *Login) PasswordValue(ctx context.Context) (string, error) {
	return p.d.ReadValue(ctx, p.password)
}

// VerifyFieldsEmpty requires both fields to be blank.
func (p *Login) VerifyFieldsEmpty(ctx context.Context) error {
	email, err := p.EmailValue(ctx)
	if err != nil {
		return err
	}
	password, err := p.PasswordValue(ctx)
	if err != nil {
		return err
	}
	return failures.AssertEqual("login fields", fixtures.Credential{}, fixtures.Credential{Email: email, Password: password})
}

// Register is the sign-up form reached from the login screen.
type Register struct {
	d        *driver.Driver
	login    *Login
	link     locator.Locator
	name     locator.Locator
	email    locator.Locator
	password locator.Locator
	confirm  locator.Locator
	submit   locator.Locator
}

func NewRegister(d *driver.Driver) *Register {
	return &Register{
		d:        d,
		login:    NewLogin(d),
		link:     locator.ByRole(locator.RoleLink, "Registre-se"),
		name:     locator.ByRole(locator.RoleTextbox, "Nome:"),
		email:    locator.ByRole(locator.RoleTextbox, "Email:"),
		password: locator.ByRole(locator.RoleTextbox, "Senha:").Exact(),
		confirm:  locator.ByRole(locator.RoleTextbox, "Confirmar Senha:"),
		submit:   locator.ByRole(locator.RoleButton, "Registrar"),
	}
}

// Open goes through the login screen to the sign-up form.
func (p *Register) Open(ctx context.Context) error {
	if err := p.login.Open(ctx); err != nil {
		return err
	}
	if err := p.d.Click(ctx, p.link); err != nil {
		return err
	}
	return p.d.ExpectVisible(ctx, p.submit)
}

// Fill types the four fields. confirmation is typed into "Confirmar Senha:".
func (p *Register) Fill(ctx context.Context, u fixtures.User, confirmation string) error {
	steps := []struct {
		l locator.Locator
		v string
	}{
		{p.name, u.Name}, {p.email, u.Email}, {p.password, u.Password}, {p.confirm, confirmation},
	}
	for _, s := range steps {
		if err := p.d.Fill(ctx, s.l, s.v); err != nil {
			return err
		}
	}
	return nil
}

// Register signs u up, requires the success alert and waits for the login form to return.
func (p *Register) Register(ctx context.Context, u fixtures.User) error {
	if err := p.Fill(ctx, u, u.Password); err != nil {
		return err
	}
	if _, err := p.d.ExpectDialog(ctx, dialog.ExpectMessage(MsgRegistered), p.clickSubmit); err != nil {
		return fmt.Errorf("registering %s: %w", u.Email, err)
	}
	if err := p.d.WaitForURL(ctx, GlobLogin); err != nil {
		return err
	}
	return p.d.ExpectVisible(ctx, p.login.submit)
}

// RegisterMismatched submits a confirmation that differs from the password and requires
// the mismatch alert.
func (p *Register) RegisterMismatched(ctx context.Context, u fixtures.User, confirmation string) error {
	if confirmation == u.Password {
		return fmt.Errorf("confirmation must differ from the password")
	}
	if err := p.Fill(ctx, u, confirmation); err != nil {
		return err
	}
	_, err := p.d.ExpectDialog(ctx, dialog.ExpectMessage(MsgPasswordMismatch), p.clickSubmit)
	return err
}

func (p *Register) clickSubmit(ctx context.Context) error {
	return p.d.Click(ctx, p.submit)
}
