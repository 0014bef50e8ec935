package main

import (
	"bufio"
	"flag"
	"fmt"
	"log/slog"
	"os"
	"strings"

	"golang.org/x/term"

	"github.com/artpar/shipway/internal/core/basicauth"
)

func hashCmd(args []string, _ *Config, log *slog.Logger) int {
	fs := flag.NewFlagSet("hash", flag.ContinueOnError)
	cost := fs.Int("cost", basicauth.DefaultCost, "bcrypt cost factor (4-31)")
	composeEscape := fs.Bool("compose-escape", false, "double every $ for literal use in compose YAML")
	if err := fs.Parse(args); err != nil {
		return ExitUsageError
	}

	password, err := readPassword()
	if err != nil {
		log.Error("read password", "error", err)
		return ExitConfigError
	}
	if password == "" {
		fmt.Fprintln(os.Stderr, "password must be non-empty")
		return ExitUsageError
	}

	hash, err := basicauth.HashPassword(password, *cost)
	if err != nil {
		log.Error("hash password", "error", err)
		return ExitRunError
	}
	if *composeEscape {
		hash = basicauth.ComposeEscape(hash)
	}
	fmt.Println(hash)
	return ExitSuccess
}

// readPassword prompts without echo on a terminal and reads a single line
// when stdin is piped, so the password never lands in shell history.
func readPassword() (string, error) {
	fd := int(os.Stdin.Fd())
	if term.IsTerminal(fd) {
		fmt.Fprint(os.Stderr, "Basic Auth password: ")
		raw, err := term.ReadPassword(fd)
		fmt.Fprintln(os.Stderr)
		if err != nil {
			return "", err
		}
		return strings.TrimSpace(string(raw)), nil
	}

	line, err := bufio.NewReader(os.Stdin).ReadString('\n')
	if err != nil && line == "" {
		return "", err
	}
	return strings.TrimSpace(line), nil
}
