package main

import (
	"context"
	"errors"
	"fmt"
	"io"

	"github.com/spf13/cobra"

	"x-netctl/internal/catalog"
	"x-netctl/internal/status"
)

func newListCmd(opts *cliOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "list",
		Short: "List profiles (* active, ! disabled)",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return run(cmd.Context(), opts, func(ctx context.Context, c *components) error {
				entries, err := c.List(ctx)
				printEntries(cmd.OutOrStdout(), entries)
				if err != nil {
					// Partial listings still exit non-zero; details are logged.
					return exitSilent(1)
				}
				return nil
			})
		},
	}
}

func printEntries(w io.Writer, entries []status.Entry) {
	for _, e := range entries {
		fmt.Fprintf(w, "%c %s\n", e.Glyph, e.Name)
	}
}

func newSwitchToCmd(opts *cliOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "switch-to NAME",
		Short: "Associate with a profile, restoring the others afterwards",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return run(cmd.Context(), opts, func(ctx context.Context, c *components) error {
				return c.SwitchTo(ctx, args[0])
			})
		},
	}
}

func newIsActiveCmd(opts *cliOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "is-active NAME",
		Short: "Report whether a profile is associated",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return run(cmd.Context(), opts, func(ctx context.Context, c *components) error {
				active, err := c.IsActive(ctx, args[0])
				return reportBool(cmd.OutOrStdout(), active, err, "active", "inactive")
			})
		},
	}
}

func newIsEnabledCmd(opts *cliOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "is-enabled NAME",
		Short: "Report whether a profile is enabled",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return run(cmd.Context(), opts, func(ctx context.Context, c *components) error {
				enabled, err := c.IsEnabled(ctx, args[0])
				return reportBool(cmd.OutOrStdout(), enabled, err, "enabled", "disabled")
			})
		},
	}
}

// reportBool prints the answer of a yes/no query and maps it to the exit
// status: 0 for yes, 1 for no or an unknown profile.
func reportBool(w io.Writer, ok bool, err error, yes, no string) error {
	switch {
	case errors.Is(err, catalog.ErrProfileNotFound):
		fmt.Fprintln(w, "unknown profile")
		return exitSilent(1)
	case err != nil:
		return err
	case ok:
		fmt.Fprintln(w, yes)
		return nil
	default:
		fmt.Fprintln(w, no)
		return exitSilent(1)
	}
}

func newEnableCmd(opts *cliOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "enable NAME",
		Short: "Enable a profile and reassociate",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return run(cmd.Context(), opts, func(ctx context.Context, c *components) error {
				return c.Enable(ctx, args[0])
			})
		},
	}
}

func newDisableCmd(opts *cliOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "disable NAME",
		Short: "Disable a profile",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return run(cmd.Context(), opts, func(ctx context.Context, c *components) error {
				return c.Disable(ctx, args[0])
			})
		},
	}
}

func newEnableAllCmd(opts *cliOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "enable-all",
		Short: "Enable every network on every interface and reassociate",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return run(cmd.Context(), opts, func(ctx context.Context, c *components) error {
				return c.EnableAll(ctx)
			})
		},
	}
}

func newDisableAllCmd(opts *cliOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "disable-all",
		Short: "Disable every network on every interface",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return run(cmd.Context(), opts, func(ctx context.Context, c *components) error {
				return c.DisableAll(ctx)
			})
		},
	}
}
