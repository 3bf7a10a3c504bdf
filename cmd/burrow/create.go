package main

import (
	"github.com/spf13/cobra"
	"github.com/walteh/burrow/pkg/command"
	"github.com/walteh/burrow/pkg/fsentry"
	"gitlab.com/tozd/go/errors"
)

func newCreateCmd() *cobra.Command {
	var dir bool

	cmd := &cobra.Command{
		Use:   "create <parent> <name>",
		Short: "create a new empty file (or directory with --dir)",
		Args:  cobra.ExactArgs(2),
		RunE: func(cc *cobra.Command, args []string) error {
			ctx := cc.Context()
			rt, err := newRuntime(ctx)
			if err != nil {
				return err
			}
			defer rt.close()

			kind := fsentry.KindFile
			if dir {
				kind = fsentry.KindDir
			}
			create, err := command.NewCreate(args[0], args[1], kind)
			if err != nil {
				return errors.Errorf("building create command: %w", err)
			}
			return runCommand(ctx, rt, create)
		},
	}
	cmd.Flags().BoolVar(&dir, "dir", false, "create a directory instead of a file")
	return cmd
}
