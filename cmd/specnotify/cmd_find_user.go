package main

import (
	"fmt"

	"github.com/spf13/cobra"
)

var findUserCmd = &cobra.Command{
	Use:   "find-user <name>",
	Short: "Resolve a mention to its Slack user id",
	Args:  cobra.ExactArgs(1),
	RunE:  runFindUser,
}

func runFindUser(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	_, people, err := newDirectory(cfg)
	if err != nil {
		return err
	}
	id, ok := people.Resolve(cmd.Context(), args[0])
	if !ok {
		return fmt.Errorf("no user named %q", args[0])
	}
	fmt.Fprintln(cmd.OutOrStdout(), id)
	return nil
}
