package cmd

import (
	"context"
	"strconv"
	"time"

	"github.com/spf13/cobra"

	"github.com/oshokin/sos-responder/internal/domain/sos"
	"github.com/oshokin/sos-responder/internal/service/admin"
)

func newMigrateCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "migrate",
		Short: "Create or upgrade the database schema.",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			// Opening the store applies the schema.
			return run(cmd, func(context.Context, *admin.Admin) error {
				return nil
			})
		},
	}
}

func newUserCommand() *cobra.Command {
	var user sos.User

	var role string

	cmd := &cobra.Command{
		Use:   "user <uid>",
		Short: "Create or update a directory user.",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			user.ID = args[0]
			user.Role = sos.Role(role)

			return run(cmd, func(ctx context.Context, a *admin.Admin) error {
				return a.UpsertUser(ctx, &user)
			})
		},
	}

	cmd.Flags().StringVar(&user.Email, "email", "", "verified email")
	cmd.Flags().StringVar(&user.DisplayName, "name", "", "display name shown in alerts")
	cmd.Flags().StringVar(&user.IDNumber, "id-number", "", "institution-issued id number")
	cmd.Flags().StringVar(&user.Phone, "phone", "", "SMS phone number")
	cmd.Flags().StringVar(&user.Site, "site", "", "campus or site")
	cmd.Flags().BoolVar(&user.OnDuty, "on-duty", false, "receive alerts (responders)")
	cmd.Flags().StringVar(&role, "role", "", "role of a new user: user or responder")

	return cmd
}

func newRoleCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "grant-role <uid> <user|responder>",
		Short: "Change the role of a user.",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			return run(cmd, func(ctx context.Context, a *admin.Admin) error {
				return a.GrantRole(ctx, args[0], args[1])
			})
		},
	}
}

func newDutyCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "duty <uid> <on|off>",
		Short: "Put a responder on or off duty.",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			onDuty := args[1] == "on"
			if !onDuty && args[1] != "off" {
				parsed, err := strconv.ParseBool(args[1])
				if err != nil {
					return err
				}

				onDuty = parsed
			}

			return run(cmd, func(ctx context.Context, a *admin.Admin) error {
				return a.SetOnDuty(ctx, args[0], onDuty)
			})
		},
	}
}

func newPushCommand() *cobra.Command {
	var revoke bool

	cmd := &cobra.Command{
		Use:   "push-address <uid> <address>",
		Short: "Register or revoke a push address.",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			return run(cmd, func(ctx context.Context, a *admin.Admin) error {
				if revoke {
					return a.RevokePushAddress(ctx, args[0], args[1])
				}

				return a.AddPushAddress(ctx, args[0], args[1])
			})
		},
	}

	cmd.Flags().BoolVar(&revoke, "revoke", false, "remove the address instead")

	return cmd
}

func newContactCommand() *cobra.Command {
	var name string

	cmd := &cobra.Command{
		Use:   "contact <uid> <phone>",
		Short: "Add a trusted contact of a user.",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			return run(cmd, func(ctx context.Context, a *admin.Admin) error {
				return a.AddContact(ctx, args[0], name, args[1])
			})
		},
	}

	cmd.Flags().StringVar(&name, "name", "", "contact label")

	return cmd
}

func newTokenCommand() *cobra.Command {
	var ttl time.Duration

	cmd := &cobra.Command{
		Use:   "issue-token <uid>",
		Short: "Print an identity token for a user.",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return run(cmd, func(ctx context.Context, a *admin.Admin) error {
				return a.IssueToken(ctx, args[0], ttl)
			})
		},
	}

	cmd.Flags().DurationVar(&ttl, "ttl", admin.DefaultTokenTTL, "token lifetime")

	return cmd
}

func newAlertCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "show-alert <alert-id>",
		Short: "Show an alert with its pairings and SMS records.",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return run(cmd, func(ctx context.Context, a *admin.Admin) error {
				return a.ShowAlert(ctx, args[0])
			})
		},
	}
}
