package main

import (
	"fmt"

	"github.com/spf13/cobra"
	"github.com/walteh/burrow/pkg/sizecache"
)

func newSizeCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "size <path>...",
		Short: "show entry sizes (directories: immediate children only)",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cc *cobra.Command, args []string) error {
			cache := sizecache.New()
			for _, path := range args {
				fmt.Printf("%s\t%s\n", cache.SizeOf(path), path)
			}
			return nil
		},
	}
}
