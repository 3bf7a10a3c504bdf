package main

import (
	"github.com/spf13/cobra"
	"github.com/walteh/burrow/pkg/command"
	"gitlab.com/tozd/go/errors"
)

func newMoveCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "move <source>... <destination>",
		Short: "move files or directories into a destination directory",
		Args:  cobra.MinimumNArgs(2),
		RunE: func(cc *cobra.Command, args []string) error {
			ctx := cc.Context()
			rt, err := newRuntime(ctx)
			if err != nil {
				return err
			}
			defer rt.close()

			cmd, err := command.NewMove(args[:len(args)-1], args[len(args)-1])
			if err != nil {
				return errors.Errorf("building move command: %w", err)
			}
			return runCommand(ctx, rt, cmd)
		},
	}
}
