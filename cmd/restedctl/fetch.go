package main

import (
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/spf13/cobra"

	"github.com/fruitsalade/rested/pkg/rested"
	"github.com/fruitsalade/rested/pkg/transport"
)

var (
	fetchParams  []string
	fetchPrefer  string
	fetchStale   bool
	fetchIDField string
	fetchNoCache bool
)

var getCmd = &cobra.Command{
	Use:   "get <path>",
	Short: "Fetch a single resource",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		return runFetch(cmd, args[0], false)
	},
}

var listCmd = &cobra.Command{
	Use:   "list <path>",
	Short: "Fetch a collection",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		return runFetch(cmd, args[0], true)
	},
}

var saveCmd = &cobra.Command{
	Use:   "save <path> <json|->",
	Short: "Create or replace a resource",
	Long: `Create or replace a resource. The body is sent with PUT when it carries
an identity field and with POST otherwise. Use "-" to read the body from stdin.`,
	Args: cobra.ExactArgs(2),
	RunE: runSave,
}

var deleteCmd = &cobra.Command{
	Use:   "delete <path>",
	Short: "Delete a resource and its cache entry",
	Args:  cobra.ExactArgs(1),
	RunE:  runDelete,
}

func init() {
	for _, c := range []*cobra.Command{getCmd, listCmd} {
		c.Flags().StringArrayVarP(&fetchParams, "param", "p", nil, "Query parameter key=value (repeatable)")
		c.Flags().StringVar(&fetchPrefer, "prefer", "", "Source preference: default, local-first or remote-first")
		c.Flags().BoolVar(&fetchStale, "stale", false, "Skip the remote fetch when the cache hits")
		c.Flags().BoolVar(&fetchNoCache, "no-cache", false, "Do not read or write the cache")
	}
	for _, c := range []*cobra.Command{getCmd, listCmd, saveCmd} {
		c.Flags().StringVar(&fetchIDField, "id-field", "", "Identity field (default: id)")
	}
	rootCmd.AddCommand(getCmd, listCmd, saveCmd, deleteCmd)
}

func runFetch(cmd *cobra.Command, path string, collection bool) error {
	params, err := parseParams(fetchParams)
	if err != nil {
		return err
	}

	req := rested.Request{
		Params:           params,
		Prefer:           fetchPrefer,
		Stale:            fetchStale,
		IDField:          fetchIDField,
		IgnoreLocalCache: fetchNoCache,
		IgnoreLocalWrite: fetchNoCache,
	}

	h := app.Client.Resource(path)
	var call *rested.Call
	if collection {
		call = h.GetList(cmd.Context(), req)
	} else {
		call = h.Get(cmd.Context(), req)
	}

	res, err := call.Wait(cmd.Context())
	if err != nil {
		return err
	}
	if err := call.Err(); err != nil {
		fmt.Fprintf(os.Stderr, "warning: showing cached data, remote fetch failed: %v\n", err)
	}
	fmt.Fprintf(os.Stderr, "source: %s\n", res.Source)
	return printJSON(res.Data)
}

func runSave(cmd *cobra.Command, args []string) error {
	body, err := readBody(args[1], cmd.InOrStdin())
	if err != nil {
		return err
	}

	call := app.Client.Resource(args[0]).Save(cmd.Context(), body, rested.Request{IDField: fetchIDField})
	return finishMutation(cmd, call)
}

func runDelete(cmd *cobra.Command, args []string) error {
	call := app.Client.Resource(args[0]).Delete(cmd.Context(), rested.Request{})
	return finishMutation(cmd, call)
}

func finishMutation(cmd *cobra.Command, call *rested.Call) error {
	if !app.Client.IsOnline() {
		fmt.Fprintf(os.Stderr, "offline: request queued and not sent (%d pending)\n", app.Client.Queue().Len())
		return nil
	}
	res, err := call.Wait(cmd.Context())
	if err != nil {
		return err
	}
	if res.Data == nil {
		return nil
	}
	return printJSON(res.Data)
}

// parseParams turns key=value pairs into query parameters.
func parseParams(pairs []string) (map[string]any, error) {
	if len(pairs) == 0 {
		return nil, nil
	}
	params := make(map[string]any, len(pairs))
	for _, p := range pairs {
		k, v, ok := strings.Cut(p, "=")
		if !ok || k == "" {
			return nil, fmt.Errorf("invalid param %q, expected key=value", p)
		}
		params[k] = v
	}
	return params, nil
}

// readBody decodes a JSON body from arg, or from r when arg is "-".
func readBody(arg string, r io.Reader) (any, error) {
	data := []byte(arg)
	if arg == "-" {
		var err error
		if data, err = io.ReadAll(r); err != nil {
			return nil, fmt.Errorf("read body: %w", err)
		}
	}
	body, err := transport.DecodeJSON(data)
	if err != nil {
		return nil, fmt.Errorf("invalid JSON body: %w", err)
	}
	return body, nil
}
