package main

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"strings"

	"github.com/xonecas/moji/internal/api"
	"github.com/xonecas/moji/internal/store"
)

// prompter asks for values on a line-oriented terminal.
type prompter struct {
	in  *bufio.Reader
	out io.Writer
}

func newPrompter(in io.Reader, out io.Writer) *prompter {
	return &prompter{in: bufio.NewReader(in), out: out}
}

func (p *prompter) ask(label string) (string, error) {
	fmt.Fprintf(p.out, "%s: ", label)
	line, err := p.in.ReadString('\n')
	if err != nil && line == "" {
		return "", fmt.Errorf("read %s: %w", strings.ToLower(label), err)
	}
	return strings.TrimSpace(line), nil
}

func signIn(ctx context.Context, client *api.Client, s *store.Store, p *prompter, username string) (*store.Session, error) {
	password, err := p.ask("Password")
	if err != nil {
		return nil, err
	}

	resp, err := client.Login(ctx, username, password)
	if err != nil {
		return nil, err
	}

	sess := &store.Session{
		UserID:       resp.UserID,
		Username:     resp.Username,
		AccessToken:  resp.AccessToken,
		RefreshToken: resp.RefreshToken,
	}
	if sess.Username == "" {
		sess.Username = username
	}
	if err := s.SaveSession(sess); err != nil {
		return nil, fmt.Errorf("save session: %w", err)
	}
	return sess, nil
}

func registerAccount(ctx context.Context, client *api.Client, p *prompter, username string) error {
	email, err := p.ask("Email")
	if err != nil {
		return err
	}
	fullName, err := p.ask("Full name")
	if err != nil {
		return err
	}
	password, err := p.ask("Password")
	if err != nil {
		return err
	}
	return client.Register(ctx, api.RegisterRequest{
		Username: username,
		Email:    email,
		FullName: fullName,
		Password: password,
	})
}

// resolveSession registers and signs in as asked by opts, or falls back to
// the saved session.
func resolveSession(ctx context.Context, client *api.Client, s *store.Store, p *prompter, opts options) (*store.Session, error) {
	username := opts.login
	if opts.register != "" {
		if err := registerAccount(ctx, client, p, opts.register); err != nil {
			return nil, fmt.Errorf("registration failed: %w", err)
		}
		username = opts.register
	}
	if username != "" {
		sess, err := signIn(ctx, client, s, p, username)
		if err != nil {
			return nil, fmt.Errorf("sign in failed: %w", err)
		}
		return sess, nil
	}

	sess, err := s.LoadSession()
	switch {
	case errors.Is(err, store.ErrNoSession):
		return nil, errors.New("not signed in, run with -login <username>")
	case errors.Is(err, store.ErrSessionExpired):
		return nil, errors.New("session expired, run with -login <username>")
	case err != nil:
		return nil, fmt.Errorf("load session: %w", err)
	}
	client.SetToken(sess.AccessToken)
	return sess, nil
}
