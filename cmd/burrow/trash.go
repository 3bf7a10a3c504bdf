package main

import (
	"fmt"
	"os"
	"text/tabwriter"
	"time"

	"github.com/spf13/cobra"
	"gitlab.com/tozd/go/errors"
)

func newTrashCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "trash",
		Short: "inspect and restore trashed entries",
	}
	cmd.AddCommand(newTrashListCmd(), newTrashRestoreCmd())
	return cmd
}

func newTrashListCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "list",
		Short: "list trashed entries, newest first",
		Args:  cobra.NoArgs,
		RunE: func(cc *cobra.Command, args []string) error {
			ctx := cc.Context()
			rt, err := newRuntime(ctx)
			if err != nil {
				return err
			}
			defer rt.close()

			entries, err := rt.trash.List(ctx)
			if err != nil {
				return errors.Errorf("listing trash: %w", err)
			}
			if len(entries) == 0 {
				rt.ui.Info("trash is empty")
				return nil
			}

			w := tabwriter.NewWriter(os.Stdout, 0, 4, 2, ' ', 0)
			for _, entry := range entries {
				kind := "file"
				if entry.IsDir {
					kind = "dir"
				}
				deleted := entry.DeletedAt.Format(time.RFC3339)
				fmt.Fprintf(w, "%s\t%s\t%s\t%s\n", entry.TrashName, kind, deleted, entry.OriginalPath)
			}
			if err := w.Flush(); err != nil {
				return errors.Errorf("flushing listing: %w", err)
			}
			rt.ui.Infof("%d entries in trash", len(entries))
			return nil
		},
	}
}

func newTrashRestoreCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "restore <trash-name>",
		Short: "restore a trashed entry to its original path",
		Args:  cobra.ExactArgs(1),
		RunE: func(cc *cobra.Command, args []string) error {
			ctx := cc.Context()
			rt, err := newRuntime(ctx)
			if err != nil {
				return err
			}
			defer rt.close()

			entry, ok, err := rt.trash.Find(ctx, args[0])
			if err != nil {
				return errors.Errorf("looking up trash entry: %w", err)
			}
			if !ok {
				return errors.Errorf("no trash entry named %q", args[0])
			}
			if err := rt.trash.Restore(ctx, entry); err != nil {
				return errors.Errorf("restoring %s: %w", entry.OriginalPath, err)
			}
			rt.cache.Invalidate(entry.OriginalPath)
			rt.cache.InvalidateParent(entry.OriginalPath)
			rt.ui.Successf("restored %s", entry.OriginalPath)
			return nil
		},
	}
}
