package main

import (
	"bufio"
	"fmt"
	"os"
	"strconv"
	"strings"

	"golang.org/x/term"
)

// pinEnvVar skips the operator PIN prompt
const pinEnvVar = "AUTOMOWER_PIN"

// getPin returns the operator PIN from the environment or prompts for it
// without echo
func getPin() (uint16, error) {
	if pin := os.Getenv(pinEnvVar); pin != "" {
		return parsePin(pin)
	}

	fmt.Fprint(os.Stderr, "Operator PIN: ")
	pinBytes, err := term.ReadPassword(int(os.Stdin.Fd()))
	if err != nil {
		// Not a terminal, read a plain line
		line, err := bufio.NewReader(os.Stdin).ReadString('\n')
		fmt.Fprintln(os.Stderr)
		if err != nil && line == "" {
			return 0, fmt.Errorf("failed to read operator PIN: %w", err)
		}
		return parsePin(line)
	}
	fmt.Fprintln(os.Stderr)
	return parsePin(string(pinBytes))
}

// parsePin accepts up to five decimal digits that fit in a uint16
func parsePin(s string) (uint16, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return 0, fmt.Errorf("operator PIN is empty")
	}
	for _, r := range s {
		if r < '0' || r > '9' {
			return 0, fmt.Errorf("operator PIN must be digits only")
		}
	}
	n, err := strconv.ParseUint(s, 10, 16)
	if err != nil {
		return 0, fmt.Errorf("operator PIN %s is out of range", strings.Repeat("*", len(s)))
	}
	return uint16(n), nil
}
