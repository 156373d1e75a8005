package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/danmuck/thriftsniff/internal/config"
)

func newConfigCmd(root *rootOptions) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "config",
		Short: "Manage the thriftsniff config file",
	}

	var force, stdout bool
	initCmd := &cobra.Command{
		Use:   "init",
		Short: "Write a commented starter config",
		RunE: func(cmd *cobra.Command, _ []string) error {
			if stdout {
				fmt.Fprint(cmd.OutOrStdout(), config.Template())
				return nil
			}
			if err := config.WriteTemplate(root.configPath, force); err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "wrote %s\n", root.configPath)
			return nil
		},
	}
	initCmd.Flags().BoolVar(&force, "force", false, "overwrite an existing file")
	initCmd.Flags().BoolVar(&stdout, "stdout", false, "print the template instead of writing it")

	validateCmd := &cobra.Command{
		Use:   "validate",
		Short: "Load and validate the config file",
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, err := config.Load(root.configPath)
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "%s ok: port=%d workers=%d\n", root.configPath, cfg.Capture.Port, cfg.Pipeline.Workers)
			return nil
		},
	}

	cmd.AddCommand(initCmd, validateCmd)
	return cmd
}
