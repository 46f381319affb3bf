package auth

import (
	"bufio"
	"context"
	"fmt"
	"io"
	"os"
	"strings"

	"golang.org/x/term"

	"github.com/mdmirror/mdmirror/internal/hackmd"
)

// Environment variables read by EnvProvider.
const (
	EnvEmail    = "MDMIRROR_EMAIL"
	EnvPassword = "MDMIRROR_PASSWORD"
)

// TerminalProvider prompts interactively: a plain username line and a
// masked password line. Both prompts block the run until answered.
type TerminalProvider struct {
	In  *os.File
	Out io.Writer
}

// NewTerminalProvider prompts on stdin/stdout.
func NewTerminalProvider() *TerminalProvider {
	return &TerminalProvider{In: os.Stdin, Out: os.Stdout}
}

// Credentials reads the username and the masked password from the
// terminal. When stdin is not a terminal (tests, pipes) the password
// falls back to a plain line read.
func (p *TerminalProvider) Credentials(_ context.Context) (hackmd.Credentials, error) {
	reader := bufio.NewReader(p.In)

	fmt.Fprint(p.Out, "HackMD user: ")
	user, err := reader.ReadString('\n')
	if err != nil && err != io.EOF {
		return hackmd.Credentials{}, fmt.Errorf("read username: %w", err)
	}

	fmt.Fprint(p.Out, "HackMD password: ")
	var password string
	if term.IsTerminal(int(p.In.Fd())) {
		masked, err := term.ReadPassword(int(p.In.Fd()))
		if err != nil {
			return hackmd.Credentials{}, fmt.Errorf("read password: %w", err)
		}
		fmt.Fprintln(p.Out)
		password = string(masked)
	} else {
		line, err := reader.ReadString('\n')
		if err != nil && err != io.EOF {
			return hackmd.Credentials{}, fmt.Errorf("read password: %w", err)
		}
		password = strings.TrimRight(line, "\r\n")
	}

	return hackmd.Credentials{
		Email:    strings.TrimSpace(user),
		Password: password,
	}, nil
}

// EnvProvider reads credentials from the environment.
type EnvProvider struct{}

// Credentials returns the env-supplied pair, failing when either
// variable is unset.
func (EnvProvider) Credentials(_ context.Context) (hackmd.Credentials, error) {
	email, ok := os.LookupEnv(EnvEmail)
	if !ok || email == "" {
		return hackmd.Credentials{}, fmt.Errorf("%s is not set", EnvEmail)
	}
	password, ok := os.LookupEnv(EnvPassword)
	if !ok {
		return hackmd.Credentials{}, fmt.Errorf("%s is not set", EnvPassword)
	}
	return hackmd.Credentials{Email: email, Password: password}, nil
}

// StaticProvider returns a fixed pair; used by tests.
type StaticProvider struct {
	Creds hackmd.Credentials
}

// Credentials returns the configured pair.
func (p StaticProvider) Credentials(_ context.Context) (hackmd.Credentials, error) {
	return p.Creds, nil
}
