// Command outpack is a thin CLI over the engine packages: init a
// repository, manage its locations, and resolve search queries. Grounded
// on the teacher's cmd/registry family for the separation between a
// minimal main and a config-loading layer, but built on
// github.com/spf13/cobra rather than flag, following the CLI pattern used
// throughout google-oss-rebuild/cmd and tools/ctl/command.
package main

import (
	"fmt"
	"os"

	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"

	"github.com/reside-ic/outpack-go/internal/dlog"
)

func main() {
	if err := newRootCommand().Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func newRootCommand() *cobra.Command {
	var configPath string

	root := &cobra.Command{
		Use:           "outpack",
		Short:         "Content-addressed storage for reproducible analytical packets",
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			d, err := loadDefaults(configPath)
			if err != nil {
				return fmt.Errorf("reading --config: %w", err)
			}
			level := d.LogLevel
			if l, _ := cmd.Flags().GetString("log-level"); l != "" {
				level = l
			}
			if level != "" {
				parsed, err := logrus.ParseLevel(level)
				if err != nil {
					return fmt.Errorf("invalid --log-level %q: %w", level, err)
				}
				dlog.SetLevel(parsed)
			}
			return nil
		},
	}

	root.PersistentFlags().StringVar(&configPath, "config", "", "path to a YAML defaults file")
	root.PersistentFlags().String("log-level", "", "log level (debug, info, warn, error)")

	root.AddCommand(
		newInitCommand(),
		newLocationCommand(),
		newSearchCommand(),
		newRunCommand(),
	)
	return root
}
