package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/reside-ic/outpack-go/location"
	"github.com/reside-ic/outpack-go/root"
)

func newLocationCommand() *cobra.Command {
	var rootPath string

	cmd := &cobra.Command{
		Use:   "location",
		Short: "Manage the locations this repository syncs with",
	}
	cmd.PersistentFlags().StringVar(&rootPath, "root", ".", "path to the repository")

	cmd.AddCommand(
		newLocationListCommand(&rootPath),
		newLocationAddCommand(&rootPath),
		newLocationRemoveCommand(&rootPath),
		newLocationRenameCommand(&rootPath),
	)
	return cmd
}

func newLocationListCommand(rootPath *string) *cobra.Command {
	return &cobra.Command{
		Use:   "list",
		Short: "List configured locations",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			r, err := root.Open(*rootPath)
			if err != nil {
				return err
			}
			for _, name := range location.List(r) {
				fmt.Fprintln(cmd.OutOrStdout(), name)
			}
			return nil
		},
	}
}

func newLocationAddCommand(rootPath *string) *cobra.Command {
	var kind string
	var args map[string]string

	cmd := &cobra.Command{
		Use:   "add <name>",
		Short: "Add a new location",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, cmdArgs []string) error {
			r, err := root.Open(*rootPath)
			if err != nil {
				return err
			}
			return location.Add(r, cmdArgs[0], kind, args)
		},
	}
	cmd.Flags().StringVar(&kind, "type", "path", "location type (path, http, https)")
	cmd.Flags().StringToStringVar(&args, "arg", nil, "driver-specific argument, e.g. --arg path=/srv/other or --arg url=https://example.org")
	return cmd
}

func newLocationRemoveCommand(rootPath *string) *cobra.Command {
	return &cobra.Command{
		Use:   "remove <name>",
		Short: "Remove a location",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			r, err := root.Open(*rootPath)
			if err != nil {
				return err
			}
			return location.Remove(r, args[0])
		},
	}
}

func newLocationRenameCommand(rootPath *string) *cobra.Command {
	return &cobra.Command{
		Use:   "rename <old-name> <new-name>",
		Short: "Rename a location",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			r, err := root.Open(*rootPath)
			if err != nil {
				return err
			}
			return location.Rename(r, args[0], args[1])
		},
	}
}
