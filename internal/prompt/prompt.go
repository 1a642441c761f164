// Package prompt reads interactive answers from the terminal and manages the
// persisted bot token.
package prompt

import (
	"bufio"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"os"
	"strconv"
	"strings"

	"github.com/disgoorg/snowflake/v2"
)

var (
	// ErrInvalidGuildID is returned for answers that are not a snowflake.
	ErrInvalidGuildID = errors.New("invalid guild ID provided")

	// ErrInvalidCount is returned for answers that are not a positive integer.
	ErrInvalidCount = errors.New("invalid number provided")

	// ErrEmptyToken is returned when no token was entered.
	ErrEmptyToken = errors.New("no token provided")
)

// Prompter asks questions on out and reads single-line answers from in.
type Prompter struct {
	in  *bufio.Reader
	out io.Writer
}

// New creates a prompter.
func New(in io.Reader, out io.Writer) *Prompter {
	return &Prompter{in: bufio.NewReader(in), out: out}
}

// Ask prints question followed by a "> " marker and returns the trimmed answer.
func (p *Prompter) Ask(question string) (string, error) {
	fmt.Fprintln(p.out, question)
	fmt.Fprint(p.out, "> ")

	line, err := p.in.ReadString('\n')
	if err != nil && !(errors.Is(err, io.EOF) && line != "") {
		return "", fmt.Errorf("read answer: %w", err)
	}
	return strings.TrimSpace(line), nil
}

// AskGuildID asks for the target guild.
func (p *Prompter) AskGuildID() (snowflake.ID, error) {
	answer, err := p.Ask("Please enter the ID of the guild you want to use this bot in.")
	if err != nil {
		return 0, err
	}
	id, err := snowflake.Parse(answer)
	if err != nil || id == 0 {
		return 0, fmt.Errorf("%w: %q", ErrInvalidGuildID, answer)
	}
	return id, nil
}

// AskCount asks for the number of users to unban.
func (p *Prompter) AskCount() (int, error) {
	answer, err := p.Ask("Please enter the number of users you want to unban.")
	if err != nil {
		return 0, err
	}
	n, err := strconv.Atoi(answer)
	if err != nil || n < 1 {
		return 0, fmt.Errorf("%w: %q", ErrInvalidCount, answer)
	}
	return n, nil
}

// ResolveToken returns the token stored at path. When the file does not
// exist the token is asked for and saved with mode 0600.
func ResolveToken(path string, p *Prompter) (string, error) {
	data, err := os.ReadFile(path)
	switch {
	case err == nil:
		token := strings.TrimSpace(string(data))
		if token == "" {
			return "", fmt.Errorf("%w: %s is empty", ErrEmptyToken, path)
		}
		fmt.Fprintln(p.out, "Token file found!")
		return token, nil
	case !errors.Is(err, fs.ErrNotExist):
		return "", fmt.Errorf("read token file: %w", err)
	}

	token, err := p.Ask("Looks like you don't have a token file.\n" +
		"Please enter your bot token below.\n" +
		"You can get one from https://discord.com/developers/applications")
	if err != nil {
		return "", err
	}
	if token == "" {
		return "", ErrEmptyToken
	}

	if err := os.WriteFile(path, []byte(token), 0o600); err != nil {
		return "", fmt.Errorf("save token file: %w", err)
	}
	fmt.Fprintf(p.out, "Thanks! Saving your token to %s\n", path)
	return token, nil
}
