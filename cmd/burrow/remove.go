package main

import (
	"github.com/spf13/cobra"
	"github.com/walteh/burrow/pkg/command"
	"gitlab.com/tozd/go/errors"
)

func newRemoveCmd() *cobra.Command {
	return &cobra.Command{
		Use:     "remove <target>...",
		Aliases: []string{"rm"},
		Short:   "move files or directories to the trash",
		Args:    cobra.MinimumNArgs(1),
		RunE: func(cc *cobra.Command, args []string) error {
			ctx := cc.Context()
			rt, err := newRuntime(ctx)
			if err != nil {
				return err
			}
			defer rt.close()

			cmd, err := command.NewDelete(args)
			if err != nil {
				return errors.Errorf("building delete command: %w", err)
			}
			return runCommand(ctx, rt, cmd)
		},
	}
}
