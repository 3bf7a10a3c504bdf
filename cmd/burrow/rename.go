package main

import (
	"github.com/spf13/cobra"
	"github.com/walteh/burrow/pkg/command"
	"gitlab.com/tozd/go/errors"
)

func newRenameCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "rename <target> <new-name>",
		Short: "rename a file or directory in place",
		Args:  cobra.ExactArgs(2),
		RunE: func(cc *cobra.Command, args []string) error {
			ctx := cc.Context()
			rt, err := newRuntime(ctx)
			if err != nil {
				return err
			}
			defer rt.close()

			cmd, err := command.NewRename(args[0], args[1])
			if err != nil {
				return errors.Errorf("building rename command: %w", err)
			}
			return runCommand(ctx, rt, cmd)
		},
	}
}
