package main

import (
	"bufio"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"regexp"
	"strings"

	"github.com/spf13/cobra"
)

const defaultCredentialFile = "config.json"

var emailPattern = regexp.MustCompile(`^[^@\s]+@[^@\s]+\.[^@\s]+$`)

var setupCmd = &cobra.Command{
	Use:   "setup",
	Short: "Interactively store NCBI API credentials",
	Long: `Prompts for an NCBI API key and contact email and writes them to the
credential file. The serve command picks the file up automatically. An API
key raises the upstream rate limit from 3 to 10 requests per second.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		path := credentialFlags.CredentialFile
		if path == "" {
			path = defaultCredentialFile
		}
		return runSetup(cmd.InOrStdin(), cmd.OutOrStdout(), path)
	},
}

func runSetup(in io.Reader, out io.Writer, path string) error {
	reader := bufio.NewReader(in)

	fmt.Fprintln(out, "NCBI credential setup")
	fmt.Fprintln(out, "Register for an API key at https://www.ncbi.nlm.nih.gov/account/settings/")
	fmt.Fprintln(out)

	apiKey, err := prompt(reader, out, "API key (leave empty for anonymous access): ")
	if err != nil {
		return err
	}

	email, err := promptEmail(reader, out)
	if err != nil {
		return err
	}

	creds := map[string]string{
		"api_key": apiKey,
		"email":   email,
	}
	data, err := json.MarshalIndent(creds, "", "  ")
	if err != nil {
		return fmt.Errorf("encode credentials: %w", err)
	}

	// Credentials are secrets, keep the file owner-only.
	if err := os.WriteFile(path, data, 0o600); err != nil {
		return fmt.Errorf("write credential file: %w", err)
	}

	fmt.Fprintf(out, "\ncredentials written to %s\n", path)
	return nil
}

func prompt(reader *bufio.Reader, out io.Writer, label string) (string, error) {
	fmt.Fprint(out, label)
	line, err := reader.ReadString('\n')
	if err != nil && err != io.EOF {
		return "", fmt.Errorf("read input: %w", err)
	}
	return strings.TrimSpace(line), nil
}

// promptEmail retries until the address is empty or well-formed.
func promptEmail(reader *bufio.Reader, out io.Writer) (string, error) {
	for {
		email, err := prompt(reader, out, "contact email (recommended by NCBI, may be empty): ")
		if err != nil {
			return "", err
		}
		if email == "" || emailPattern.MatchString(email) {
			return email, nil
		}
		fmt.Fprintln(out, "that does not look like a valid email address, try again")
	}
}
