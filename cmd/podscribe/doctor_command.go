package main

import (
	"errors"
	"fmt"

	"github.com/spf13/cobra"

	"podscribe/internal/deps"
	"podscribe/internal/preflight"
)

func newDoctorCommand(ctx *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:   "doctor",
		Short: "Check directories, feed reachability, and external tools",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := ctx.ensureConfig()
			if err != nil {
				return err
			}
			out := cmd.OutOrStdout()
			colorize := shouldColorize(out)

			results := preflight.RunAll(cmd.Context(), cfg)
			for _, line := range renderSectionHeader("Preflight", colorize) {
				fmt.Fprintln(out, line)
			}
			for _, r := range results {
				kind := statusOK
				if !r.Passed {
					kind = statusError
				}
				fmt.Fprintln(out, renderStatusLine(r.Name, kind, r.Detail, colorize))
			}

			statuses := preflight.CheckSystemDeps(cfg)
			fmt.Fprintln(out)
			for _, line := range renderSectionHeader("Dependencies", colorize) {
				fmt.Fprintln(out, line)
			}
			for _, s := range statuses {
				fmt.Fprintln(out, renderStatusLine(s.Name, dependencyKind(s), dependencyDetail(s), colorize))
			}

			fmt.Fprintln(out)
			fmt.Fprintf(out, "History journal enabled: %s\n", yesNo(cfg.History.Enabled))
			fmt.Fprintf(out, "Notifications enabled:   %s\n", yesNo(cfg.Notifications.NtfyTopic != ""))

			if preflight.Failed(results, statuses) {
				return errors.New("one or more checks failed")
			}
			return nil
		},
	}
}

func dependencyKind(s deps.Status) statusKind {
	switch {
	case s.Available:
		return statusOK
	case s.Optional:
		return statusWarn
	default:
		return statusError
	}
}

func dependencyDetail(s deps.Status) string {
	if s.Available {
		return s.Command
	}
	if s.Detail != "" {
		return s.Detail
	}
	return "not available"
}
