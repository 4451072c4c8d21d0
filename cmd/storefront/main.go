package main

import (
	"context"
	stderrors "errors"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/charmbracelet/lipgloss"

	"codeberg.org/storefront/server/internal/client"
	"codeberg.org/storefront/server/internal/config"
	"codeberg.org/storefront/server/storefront/users"
)

const usage = `usage: storefront <command> [flags]

commands:
  signup   -name NAME -email EMAIL -password PASSWORD
  login    -email EMAIL -password PASSWORD
  me       show the logged in account
  refresh  exchange the refresh token for a new access token
  logout   end the session and forget stored tokens
  status   show stored token expiry

every command accepts -api URL (default $STOREFRONT_API_ENDPOINT or http://localhost:8080)`

func main() {
	if len(os.Args) < 2 {
		fmt.Println(helpStyle.Render(usage))
		os.Exit(2)
	}

	command := os.Args[1]
	if command == "help" || command == "-h" || command == "--help" {
		fmt.Println(helpStyle.Render(usage))
		return
	}

	flags := config.ParseClientFlags(command)

	store, err := client.DefaultFileStore()
	if err != nil {
		fail(err)
	}

	// one-shot commands never live long enough for a proactive refresh
	m := client.NewManager(flags.API, store, client.WithoutProactiveRefresh())
	defer m.Close()

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := run(ctx, command, flags, m, store); err != nil {
		cancel()
		fail(err)
	}
}

func run(ctx context.Context, command string, flags config.Flags, m *client.Manager, store *client.FileStore) error {
	switch command {
	case "signup":
		if flags.Name == "" || flags.Email == "" || flags.Password == "" {
			return fmt.Errorf("signup requires -name, -email and -password")
		}

		u, err := m.Signup(ctx, flags.Name, flags.Email, flags.Password)
		if err != nil {
			return err
		}

		fmt.Println(successStyle.Render("account created"))
		fmt.Println(renderUser(u))
		fmt.Println(helpStyle.Render("run `storefront login` to sign in"))

	case "login":
		if flags.Email == "" || flags.Password == "" {
			return fmt.Errorf("login requires -email and -password")
		}

		u, err := m.Login(ctx, flags.Email, flags.Password)
		if err != nil {
			return err
		}

		fmt.Println(successStyle.Render("logged in"))
		fmt.Println(renderUser(u))
		fmt.Println(helpStyle.Render("tokens saved to " + store.Path()))

	case "me":
		u, err := m.CurrentUser(ctx)
		if err != nil {
			return err
		}

		if u == nil {
			return client.ErrNotLoggedIn
		}

		fmt.Println(renderUser(u))

	case "refresh":
		if _, err := m.Refresh(ctx); err != nil {
			return err
		}

		fmt.Println(successStyle.Render("access token refreshed"))
		return printStatus(store)

	case "logout":
		if err := m.Logout(ctx); err != nil {
			return err
		}

		fmt.Println(successStyle.Render("logged out"))

	case "status":
		return printStatus(store)

	default:
		return fmt.Errorf("unknown command %q\n\n%s", command, usage)
	}

	return nil
}

func renderUser(u *users.User) string {
	rows := []string{
		titleStyle.Render(u.Name),
		row("email", u.Email),
		row("role", string(u.Role)),
		row("provider", string(u.Provider)),
		row("id", u.ID),
	}

	return borderStyle.Render(lipgloss.JoinVertical(lipgloss.Left, rows...))
}

func row(label, value string) string {
	return lipgloss.JoinHorizontal(lipgloss.Top, labelStyle.Render(label), valueStyle.Render(value))
}

func printStatus(store *client.FileStore) error {
	tokens, err := store.Load()
	if err != nil {
		return err
	}

	if tokens == nil {
		return client.ErrNotLoggedIn
	}

	remaining := time.Until(tokens.ExpiresAt).Round(time.Second)
	state := successStyle.Render("valid")
	if remaining <= 0 {
		state = errorStyle.Render("expired")
	}

	fmt.Println(borderStyle.Render(lipgloss.JoinVertical(lipgloss.Left,
		row("access", state),
		row("expires", tokens.ExpiresAt.Local().Format(time.RFC1123)),
		row("in", remaining.String()),
	)))

	return nil
}

func fail(err error) {
	msg := err.Error()

	var apiErr *client.APIError
	if stderrors.As(err, &apiErr) && apiErr.Message != "" {
		msg = apiErr.Message
		if apiErr.Reason != "" {
			msg += " (" + apiErr.Reason + ")"
		}
	}

	if stderrors.Is(err, client.ErrNotLoggedIn) || stderrors.Is(err, client.ErrSessionExpired) {
		msg += "\n" + helpStyle.Render("run `storefront login -email EMAIL -password PASSWORD`")
	}

	fmt.Fprintln(os.Stderr, errorStyle.Render("error: ")+strings.TrimSpace(msg))
	os.Exit(1)
}
