package cmd

import (
	"bufio"
	"errors"
	"fmt"
	"io"
	"os"
	"strings"

	"golang.org/x/term"
)

// readPassword reads a secret from the terminal without echo.
var readPassword = term.ReadPassword

var stdin = bufio.NewReader(os.Stdin)

// promptLine prints prompt and reads one trimmed line.
func promptLine(prompt string) (string, error) {
	fmt.Fprint(os.Stderr, prompt+": ")
	line, err := stdin.ReadString('\n')
	if err != nil && !(errors.Is(err, io.EOF) && line != "") {
		return "", err
	}
	return strings.TrimSpace(line), nil
}

// promptSecret reads a value without echo when stdin is a terminal and
// falls back to a plain line read otherwise, e.g. when input is piped.
func promptSecret(prompt string) (string, error) {
	fd := int(os.Stdin.Fd())
	if !term.IsTerminal(fd) {
		return promptLine(prompt)
	}
	fmt.Fprint(os.Stderr, prompt+": ")
	secret, err := readPassword(fd)
	fmt.Fprintln(os.Stderr)
	if err != nil {
		return "", err
	}
	return string(secret), nil
}

// valueOrPrompt returns value when set, otherwise asks for it.
func valueOrPrompt(value, prompt string, secret bool) (string, error) {
	if value != "" {
		return value, nil
	}
	if secret {
		return promptSecret(prompt)
	}
	return promptLine(prompt)
}
