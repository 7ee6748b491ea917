package main

import (
	"bufio"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/spf13/cobra"
	"golang.org/x/term"

	"github.com/rohankatakam/docgraph/internal/config"
)

var credentialsCmd = &cobra.Command{
	Use:   "credentials",
	Short: "Manage Neo4j credentials in the OS keychain",
}

var credentialsSetCmd = &cobra.Command{
	Use:       "set [password|http-auth]",
	Short:     "Store a credential (read from the terminal without echo, or from stdin)",
	Args:      cobra.MatchAll(cobra.ExactArgs(1), cobra.OnlyValidArgs),
	ValidArgs: []string{"password", "http-auth"},
	RunE:      runCredentialsSet,
}

var credentialsShowCmd = &cobra.Command{
	Use:   "show",
	Short: "Show which credentials are configured (masked)",
	RunE: func(cmd *cobra.Command, args []string) error {
		out := cmd.OutOrStdout()
		fmt.Fprintf(out, "neo4j password: %s\n", config.MaskSecret(cfg.Neo4j.Password))
		fmt.Fprintf(out, "http auth:      %s\n", config.MaskSecret(cfg.Spatial.Auth))
		return nil
	},
}

var credentialsDeleteCmd = &cobra.Command{
	Use:       "delete [password|http-auth]",
	Short:     "Remove a credential from the keychain",
	Args:      cobra.MatchAll(cobra.ExactArgs(1), cobra.OnlyValidArgs),
	ValidArgs: []string{"password", "http-auth"},
	RunE: func(cmd *cobra.Command, args []string) error {
		return config.NewKeyringManager().Delete(keyringItem(args[0]))
	},
}

func init() {
	credentialsCmd.AddCommand(credentialsSetCmd)
	credentialsCmd.AddCommand(credentialsShowCmd)
	credentialsCmd.AddCommand(credentialsDeleteCmd)
	rootCmd.AddCommand(credentialsCmd)
}

func keyringItem(name string) string {
	if name == "http-auth" {
		return config.KeyringHTTPAuthItem
	}
	return config.KeyringPasswordItem
}

func runCredentialsSet(cmd *cobra.Command, args []string) error {
	km := config.NewKeyringManager()
	if !km.IsAvailable() {
		return fmt.Errorf("OS keychain is not available; set NEO4J_PASSWORD / NEO4J_AUTH instead")
	}

	prompt := "Neo4j password: "
	if args[0] == "http-auth" {
		prompt = "HTTP credential (user:password): "
	}
	secret, err := readSecret(cmd.ErrOrStderr(), os.Stdin, prompt)
	if err != nil {
		return err
	}

	if args[0] == "http-auth" {
		if !strings.Contains(secret, ":") {
			return fmt.Errorf("http credential must be of the form user:password")
		}
		return km.SetHTTPAuth(secret)
	}
	return km.SetPassword(secret)
}

// readSecret reads without echo from a terminal, or one line from a pipe
func readSecret(prompt io.Writer, in *os.File, label string) (string, error) {
	fd := int(in.Fd())
	if term.IsTerminal(fd) {
		fmt.Fprint(prompt, label)
		b, err := term.ReadPassword(fd)
		fmt.Fprintln(prompt)
		if err != nil {
			return "", fmt.Errorf("read secret: %w", err)
		}
		return strings.TrimSpace(string(b)), nil
	}

	line, err := bufio.NewReader(in).ReadString('\n')
	if err != nil && err != io.EOF {
		return "", fmt.Errorf("read secret: %w", err)
	}
	return strings.TrimSpace(line), nil
}
