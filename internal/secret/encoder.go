// Package secret base64-encodes a token typed at a hidden prompt and can
// write it into a local env file. It never touches the network.
package secret

import (
	"bufio"
	"encoding/base64"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"os"
	"path/filepath"
	"strings"

	"golang.org/x/term"
)

// Prompter asks the user for input.
type Prompter interface {
	// Secret reads a line without echoing it.
	Secret(prompt string) (string, error)
	// Line reads a visible line.
	Line(prompt string) (string, error)
}

// Encode returns the standard base64 encoding of s.
func Encode(s string) string {
	return base64.StdEncoding.EncodeToString([]byte(s))
}

// EnvFile renders the env file body for key=value.
func EnvFile(key, value string) string {
	return strings.Join([]string{
		key + "=" + value,
		"# Set COMMIT_SECRET separately in this file (do NOT commit this file).",
		"# COMMIT_SECRET=your_secret_here",
		"PORT=4000",
	}, "\n") + "\n"
}

// Encoder runs the interactive flow.
type Encoder struct {
	Prompt  Prompter
	Out     io.Writer
	EnvPath string
	Key     string
}

// Run prompts for a secret, prints its encoding and optionally writes the
// env file. Declining at any prompt is not an error.
func (e *Encoder) Run() error {
	fmt.Fprintln(e.Out, "Local encoder (base64). This runs locally only. Do NOT commit the produced file.")
	in, err := e.Prompt.Secret("Enter text to encode (input hidden): ")
	if err != nil {
		return fmt.Errorf("read secret: %w", err)
	}
	in = strings.TrimSpace(in)
	if in == "" {
		fmt.Fprintln(e.Out, "No input provided, aborting.")
		return nil
	}

	encoded := Encode(in)
	fmt.Fprintf(e.Out, "\nENCODED (base64):\n\n%s\n\n---\n\n", encoded)

	ok, err := e.confirm(fmt.Sprintf("Write this encoded token to %s locally as %s? (y/N): ", e.EnvPath, e.Key))
	if err != nil {
		return err
	}
	if !ok {
		fmt.Fprintf(e.Out, "OK. Copy the encoded value above into %s locally as %s.\n", e.EnvPath, e.Key)
		return nil
	}

	if _, err := os.Stat(e.EnvPath); err == nil {
		ok, err := e.confirm(fmt.Sprintf("%s exists. Overwrite? (y/N): ", e.EnvPath))
		if err != nil {
			return err
		}
		if !ok {
			fmt.Fprintln(e.Out, "Aborted write.")
			return nil
		}
	} else if !errors.Is(err, fs.ErrNotExist) {
		return fmt.Errorf("stat %s: %w", e.EnvPath, err)
	}

	if err := WriteEnvFile(e.EnvPath, e.Key, encoded); err != nil {
		return err
	}
	abs, _ := filepath.Abs(e.EnvPath)
	fmt.Fprintf(e.Out, "Wrote %s (do NOT commit it).\n", abs)
	return nil
}

func (e *Encoder) confirm(prompt string) (bool, error) {
	answer, err := e.Prompt.Line(prompt)
	if err != nil {
		return false, fmt.Errorf("read answer: %w", err)
	}
	return strings.EqualFold(strings.TrimSpace(answer), "y"), nil
}

// WriteEnvFile writes the env file with owner-only permissions, creating
// its directory if needed.
func WriteEnvFile(path, key, value string) error {
	if err := os.MkdirAll(filepath.Dir(path), 0700); err != nil {
		return fmt.Errorf("create env dir: %w", err)
	}
	if err := os.WriteFile(path, []byte(EnvFile(key, value)), 0600); err != nil {
		return fmt.Errorf("write env file: %w", err)
	}
	return nil
}

// Terminal prompts on a terminal, hiding input for secrets.
type Terminal struct {
	In  *os.File
	Out io.Writer

	reader *bufio.Reader
}

var _ Prompter = (*Terminal)(nil)

func (t *Terminal) Secret(prompt string) (string, error) {
	fmt.Fprint(t.Out, prompt)
	fd := int(t.In.Fd())
	if !term.IsTerminal(fd) {
		// Piped input: read it as a plain line.
		return t.readLine()
	}
	b, err := term.ReadPassword(fd)
	fmt.Fprintln(t.Out)
	if err != nil {
		return "", err
	}
	return string(b), nil
}

func (t *Terminal) Line(prompt string) (string, error) {
	fmt.Fprint(t.Out, prompt)
	return t.readLine()
}

func (t *Terminal) readLine() (string, error) {
	if t.reader == nil {
		t.reader = bufio.NewReader(t.In)
	}
	line, err := t.reader.ReadString('\n')
	if err != nil && !errors.Is(err, io.EOF) {
		return "", err
	}
	return strings.TrimRight(line, "\r\n"), nil
}
