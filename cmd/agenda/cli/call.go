package cli

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/spf13/cobra"

	"github.com/felixgeelhaar/agenda/internal/runtime"
	"github.com/felixgeelhaar/agenda/internal/ui"
)

var (
	callSession string
	autoConfirm bool
)

var callCmd = &cobra.Command{
	Use:   "call <operation> [arguments]",
	Short: "Run one operation",
	Long: `Call runs a single operation. Arguments are a JSON object or key=value
pairs. A write prints its confirmation prompt and stays pending; pass --yes
to confirm it in the same invocation.`,
	Example: `  agenda call get_events
  agenda call create_list '{"name": "Groceries"}' --yes
  agenda call create_item content="Oat milk" listId=65f0c0ffee --yes`,
	Args: cobra.MinimumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		parsed, err := ui.ParseLine(callLine(args), false, runtime.DefaultRegistry())
		if err != nil {
			return err
		}

		a, err := bootstrap(cmd.Context(), cmd.ErrOrStderr())
		if err != nil {
			return err
		}
		defer func() {
			if err := a.Close(); err != nil {
				a.obs.Log().Error().Err(err).Msg("shutdown failed")
			}
		}()

		session := callSession
		if session == "" {
			session = a.cfg.Memory.DefaultSession
		}

		resp, err := a.runtime.Call(cmd.Context(), session, parsed.Operation, parsed.Args)
		if err != nil {
			return err
		}
		if !resp.Pending() || !autoConfirm {
			fmt.Fprintln(cmd.OutOrStdout(), resp.Text)
			return nil
		}

		resp, err = a.runtime.Call(cmd.Context(), session, "confirm_operation", map[string]any{
			"operationId": resp.OperationID,
			"confirm":     true,
		})
		if err != nil {
			return err
		}
		fmt.Fprintln(cmd.OutOrStdout(), resp.Text)
		return nil
	},
}

var opsCmd = &cobra.Command{
	Use:   "operations",
	Short: "List available operations and their arguments",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		a, err := bootstrap(cmd.Context(), cmd.ErrOrStderr())
		if err != nil {
			return err
		}
		defer a.Close()

		out := cmd.OutOrStdout()
		for _, def := range a.runtime.Registry().List() {
			kind := "write"
			if def.ReadOnly {
				kind = "read"
			}
			fmt.Fprintf(out, "%-32s %-5s %s\n", def.Name, kind, def.Description)
			for _, p := range def.Params {
				req := ""
				if p.Required {
					req = " (required)"
				}
				fmt.Fprintf(out, "    %s: %s%s\n", p.Name, p.Type, req)
			}
		}
		return nil
	},
}

// callLine rebuilds the input line from shell words. The shell has already
// removed quotes, so values with spaces are quoted again.
func callLine(args []string) string {
	words := make([]string, len(args))
	for i, arg := range args {
		words[i] = arg
		if i == 0 || strings.HasPrefix(arg, "{") {
			continue
		}
		if k, v, ok := strings.Cut(arg, "="); ok && strings.ContainsAny(v, " \t") {
			words[i] = k + "=" + strconv.Quote(v)
		}
	}
	return strings.Join(words, " ")
}

func init() {
	RootCmd.AddCommand(callCmd)
	RootCmd.AddCommand(opsCmd)
	callCmd.Flags().StringVar(&callSession, "session", "", "Session id (default memory.default_session)")
	callCmd.Flags().BoolVarP(&autoConfirm, "yes", "y", false, "Confirm the write immediately")
}
