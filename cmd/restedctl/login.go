package main

import (
	"bufio"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/spf13/cobra"
	"golang.org/x/term"

	"github.com/fruitsalade/rested/internal/auth"
)

var loginUser string

var loginCmd = &cobra.Command{
	Use:   "login [path]",
	Short: "Authenticate and save the bearer token",
	Long: `Authenticate against the login resource (default: auth/token) and save
the returned token. Later commands send it as "Authorization: Bearer <token>".`,
	Args: cobra.MaximumNArgs(1),
	RunE: runLogin,
}

var logoutCmd = &cobra.Command{
	Use:   "logout",
	Short: "Remove the saved token",
	RunE: func(cmd *cobra.Command, args []string) error {
		if err := auth.DeleteToken(auth.TokenFilePath()); err != nil {
			return err
		}
		fmt.Println("Logged out.")
		return nil
	},
}

func init() {
	loginCmd.Flags().StringVarP(&loginUser, "user", "u", "", "Username")
	rootCmd.AddCommand(loginCmd, logoutCmd)
}

func runLogin(cmd *cobra.Command, args []string) error {
	path := "auth/token"
	if len(args) == 1 {
		path = args[0]
	}

	username := loginUser
	if username == "" {
		fmt.Print("Username: ")
		reader := bufio.NewReader(os.Stdin)
		line, _ := reader.ReadString('\n')
		username = strings.TrimSpace(line)
	}

	fmt.Print("Password: ")
	passwordBytes, err := term.ReadPassword(int(os.Stdin.Fd()))
	fmt.Println()
	if err != nil {
		return fmt.Errorf("read password: %w", err)
	}

	tf, err := auth.Login(cmd.Context(), app.Client, path, username, string(passwordBytes))
	if err != nil {
		return err
	}

	verifier, err := auth.NewOIDCVerifier(cmd.Context(), auth.OIDCConfig{
		IssuerURL: app.Config.OIDCIssuerURL,
		ClientID:  app.Config.OIDCClientID,
	})
	if err != nil {
		return err
	}
	if verifier != nil {
		if err := verifier.Verify(cmd.Context(), tf); err != nil {
			return err
		}
	}
	if err := auth.SaveToken(auth.TokenFilePath(), tf); err != nil {
		return fmt.Errorf("save token: %w", err)
	}

	if tf.ExpiresAt.IsZero() {
		fmt.Printf("Logged in as %s.\n", username)
	} else {
		fmt.Printf("Logged in as %s (expires %s).\n", username, tf.ExpiresAt.Format(time.RFC3339))
	}
	return nil
}
