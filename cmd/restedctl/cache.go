package main

import (
	"errors"
	"fmt"
	"sort"
	"strings"

	"github.com/spf13/cobra"

	"github.com/fruitsalade/rested/pkg/rested"
	"github.com/fruitsalade/rested/pkg/store"
)

var cacheCmd = &cobra.Command{
	Use:   "cache",
	Short: "Inspect and edit the local cache",
}

var cacheLsCmd = &cobra.Command{
	Use:   "ls [prefix]",
	Short: "List cached paths",
	Args:  cobra.MaximumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		lister, ok := app.Store.(store.Lister)
		if !ok {
			return fmt.Errorf("store %q cannot list keys", app.Config.Store)
		}

		ns := store.Key(app.Client.Namespace(), "")
		prefix := ns
		if len(args) == 1 {
			prefix += args[0]
		}
		keys, err := lister.Keys(cmd.Context(), prefix)
		if err != nil {
			return err
		}
		sort.Strings(keys)
		for _, k := range keys {
			fmt.Println(strings.TrimPrefix(k, ns))
		}
		return nil
	},
}

var cacheShowCmd = &cobra.Command{
	Use:   "show <path>",
	Short: "Print the cache entry of a path",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		v, err := app.Client.Resource(args[0]).GetCache(cmd.Context())
		if errors.Is(err, rested.ErrCacheMiss) {
			return fmt.Errorf("%s is not cached", args[0])
		}
		if err != nil {
			return err
		}
		return printJSON(v)
	},
}

var cacheClearCmd = &cobra.Command{
	Use:   "clear <path>",
	Short: "Remove the cache entry of a path",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		ok, err := app.Client.Resource(args[0]).ClearCache(cmd.Context())
		if err != nil {
			return err
		}
		if !ok {
			return errors.New("local storage is disabled")
		}
		fmt.Printf("Cleared %s\n", args[0])
		return nil
	},
}

var cacheAppendCmd = &cobra.Command{
	Use:   "append <path> <json|->",
	Short: "Append an element to a cached collection",
	Args:  cobra.ExactArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		return editCache(cmd, args, false)
	},
}

var cachePrependCmd = &cobra.Command{
	Use:   "prepend <path> <json|->",
	Short: "Insert an element at the front of a cached collection",
	Args:  cobra.ExactArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		return editCache(cmd, args, true)
	},
}

func init() {
	cacheCmd.AddCommand(cacheLsCmd, cacheShowCmd, cacheClearCmd, cacheAppendCmd, cachePrependCmd)
	rootCmd.AddCommand(cacheCmd)
}

func editCache(cmd *cobra.Command, args []string, front bool) error {
	obj, err := readBody(args[1], cmd.InOrStdin())
	if err != nil {
		return err
	}

	h := app.Client.Resource(args[0])
	var ok bool
	if front {
		ok, err = h.PrependCache(cmd.Context(), obj)
	} else {
		ok, err = h.AppendCache(cmd.Context(), obj)
	}
	if err != nil {
		return err
	}
	if !ok {
		return fmt.Errorf("%s has no cached collection", args[0])
	}
	return nil
}
