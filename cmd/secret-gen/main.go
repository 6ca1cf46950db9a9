package main

import (
	"flag"
	"fmt"
	"io"
	"log"
	"os"

	"gatekeeper.backend/pkg/crypto"
)

// Telegram caps the webhook secret token at 256 characters.
const maxSecretBytes = 128

var secretNames = []string{"TELEGRAM_SECRET", "CRON_SECRET", "WALLET_AUTH_SECRET"}

func validateInputs(n int) error {
	if n < 16 || n > maxSecretBytes {
		return fmt.Errorf("invalid bytes: %d (allowed: 16..%d)", n, maxSecretBytes)
	}
	return nil
}

func buildSecrets(n int) (map[string]string, error) {
	if err := validateInputs(n); err != nil {
		return nil, err
	}
	out := make(map[string]string, len(secretNames))
	for _, name := range secretNames {
		v, err := crypto.GenerateRandomToken(n)
		if err != nil {
			return nil, fmt.Errorf("failed to generate %s: %w", name, err)
		}
		out[name] = v
	}
	return out, nil
}

func run(args []string, w io.Writer) error {
	fs := flag.NewFlagSet("secret-gen", flag.ContinueOnError)
	n := fs.Int("bytes", 32, "random bytes per secret (hex encoded)")
	if err := fs.Parse(args); err != nil {
		return err
	}

	secrets, err := buildSecrets(*n)
	if err != nil {
		return err
	}

	_, _ = fmt.Fprintln(w, "# Generated gatekeeper secrets")
	for _, name := range secretNames {
		_, _ = fmt.Fprintf(w, "%s=%s\n", name, secrets[name])
	}
	return nil
}

func main() {
	if err := run(os.Args[1:], os.Stdout); err != nil {
		log.Fatal(err)
	}
}
