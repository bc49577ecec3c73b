package commands

import (
	"context"
	"errors"

	"github.com/spf13/cobra"
)

var (
	errNotAuthenticated    = errors.New("not authenticated. Please run 'crmdash login' first")
	errIdentityUnavailable = errors.New("identity unknown: the API did not return the current user")
)

// NewLogoutCmd creates the logout command
func NewLogoutCmd(opts *GlobalOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "logout",
		Short: "Forget the stored session for the selected endpoint",
		RunE: func(cmd *cobra.Command, args []string) error {
			s, err := newSession(cmd, opts)
			if err != nil {
				return err
			}
			return runLogout(cmd.Context(), s)
		},
	}
}

func runLogout(ctx context.Context, s *session) error {
	s.manager.Logout(ctx)
	s.printer.Success("Logged out of %s", s.endpoint.Label())
	return nil
}

// NewCheckCmd creates the check command
func NewCheckCmd(opts *GlobalOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "check",
		Short: "Check whether the stored session is still accepted",
		Long: `Check whether the stored session is still accepted by the API.

Exits with a non-zero status when the session is missing or rejected. The
stored credential is never modified.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			s, err := newSession(cmd, opts)
			if err != nil {
				return err
			}
			return runCheck(cmd.Context(), s)
		},
	}
}

func runCheck(ctx context.Context, s *session) error {
	outcome := s.manager.Check(ctx)
	if !outcome.Authenticated {
		return errNotAuthenticated
	}

	s.printer.Success("Authenticated against %s", s.endpoint.Label())
	return nil
}

// NewWhoamiCmd creates the whoami command
func NewWhoamiCmd(opts *GlobalOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "whoami",
		Short: "Show the signed-in user",
		RunE: func(cmd *cobra.Command, args []string) error {
			s, err := newSession(cmd, opts)
			if err != nil {
				return err
			}
			return runWhoami(cmd.Context(), s)
		},
	}
}

func runWhoami(ctx context.Context, s *session) error {
	identity, ok := s.manager.GetIdentity(ctx)
	if !ok {
		if s.manager.Token() == "" {
			return errNotAuthenticated
		}
		return errIdentityUnavailable
	}

	s.printer.Print("%s", s.printer.Bold(identity.Name))
	s.printer.Field("ID", identity.ID)
	s.printer.Field("Email", identity.Email)
	s.printer.Field("Phone", identity.Phone)
	s.printer.Field("Job title", identity.JobTitle)
	s.printer.Field("Timezone", identity.Timezone)
	s.printer.Field("Avatar", identity.AvatarURL)

	return nil
}
