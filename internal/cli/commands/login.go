package commands

import (
	"context"
	"fmt"
	"os"
	"strings"

	"github.com/go-playground/validator/v10"
	"github.com/manifoldco/promptui"
	"github.com/spf13/cobra"
	"golang.org/x/term"
)

// EnvEmail supplies the login email in non-interactive runs
const EnvEmail = "CRMDASH_EMAIL"

var validate = validator.New()

// emailPrompter asks for the email interactively. Tests replace it.
var emailPrompter = promptEmail

// NewLoginCmd creates the login command
func NewLoginCmd(opts *GlobalOptions) *cobra.Command {
	var email string

	cmd := &cobra.Command{
		Use:   "login",
		Short: "Sign in to the CRM API",
		RunE: func(cmd *cobra.Command, args []string) error {
			s, err := newSession(cmd, opts)
			if err != nil {
				return err
			}
			return runLogin(cmd.Context(), s, email, term.IsTerminal(int(os.Stdin.Fd())))
		},
	}

	cmd.Flags().StringVar(&email, "email", "", "Email address (or set "+EnvEmail+", will prompt if not provided)")

	return cmd
}

func runLogin(ctx context.Context, s *session, email string, interactive bool) error {
	if email == "" {
		email = os.Getenv(EnvEmail)
	}

	if email == "" {
		if !interactive {
			return fmt.Errorf("email is required in non-interactive mode (use --email flag or %s env var)", EnvEmail)
		}
		prompted, err := emailPrompter()
		if err != nil {
			return err
		}
		email = prompted
	}

	email = strings.TrimSpace(email)
	if err := validateEmail(email); err != nil {
		return err
	}

	s.printer.Info("Logging in to %s...", s.endpoint.Label())

	outcome := s.manager.Login(ctx, email)
	if !outcome.Success {
		return fmt.Errorf("login failed: %s (%s)", outcome.Error.Message, outcome.Error.Name)
	}

	s.printer.Success("Login successful!")
	s.printer.Field("Email", email)

	return nil
}

func validateEmail(email string) error {
	if err := validate.Var(email, "required,email"); err != nil {
		return fmt.Errorf("invalid email address '%s'", email)
	}
	return nil
}

func promptEmail() (string, error) {
	prompt := promptui.Prompt{
		Label:    "Email",
		Validate: validateEmail,
	}

	email, err := prompt.Run()
	if err != nil {
		return "", fmt.Errorf("login cancelled: %w", err)
	}
	return email, nil
}
