package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/reside-ic/outpack-go/root"
	"github.com/reside-ic/outpack-go/search"
)

func newSearchCommand() *cobra.Command {
	var rootPath string
	var allowRemote bool

	cmd := &cobra.Command{
		Use:   "search <query>",
		Short: "Resolve a query (e.g. 'latest' or a packet id) against the local index",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			r, err := root.Open(rootPath)
			if err != nil {
				return err
			}
			universe := search.Local
			if allowRemote {
				universe = search.LocalAndRemote
			}
			id, err := search.Resolve(r.Index, args[0], universe)
			if err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), id)
			return nil
		},
	}
	cmd.Flags().StringVar(&rootPath, "root", ".", "path to the repository")
	cmd.Flags().BoolVar(&allowRemote, "allow-remote", false, "also match ids known only through a prior metadata pull")
	return cmd
}
