package main

import (
	"encoding/json"
	"fmt"

	"github.com/agilira/go-errors"
	"github.com/spf13/cobra"

	"github.com/CTAG07/tmplr/pkg/errcodes"
)

func (a *app) configCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "config",
		Short: "Manage the tmplr configuration",
	}

	initCmd := &cobra.Command{
		Use:   "init [PATH]",
		Short: "Write the default configuration to PATH (default " + defaultConfigFile + ")",
		Args: func(cmd *cobra.Command, args []string) error {
			if err := cobra.MaximumNArgs(1)(cmd, args); err != nil {
				return usageError(err)
			}
			return nil
		},
		RunE: func(_ *cobra.Command, args []string) error {
			path := defaultConfigFile
			if len(args) == 1 {
				path = args[0]
			}
			if err := WriteDefaultConfig(path); err != nil {
				return err
			}
			_, err := fmt.Fprintf(a.stdout, "Wrote default configuration to %s\n", path)
			return err
		},
	}

	showCmd := &cobra.Command{
		Use:   "show",
		Short: "Print the effective configuration as JSON",
		Args:  noArgs,
		RunE: func(_ *cobra.Command, _ []string) error {
			data, err := json.MarshalIndent(a.config, "", "  ")
			if err != nil {
				return errors.Wrap(err, errcodes.ErrCodeInvalidConfig, "failed to marshal configuration: "+err.Error())
			}
			_, err = fmt.Fprintln(a.stdout, string(data))
			return err
		},
	}

	cmd.AddCommand(initCmd, showCmd)
	return cmd
}
