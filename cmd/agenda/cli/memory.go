package cli

import (
	"encoding/json"
	"fmt"
	"text/tabwriter"
	"time"

	"github.com/spf13/cobra"
)

var (
	memoryLimit  int
	memoryMaxAge time.Duration
)

var memoryCmd = &cobra.Command{
	Use:   "memory",
	Short: "Inspect and prune conversation memory",
}

var memorySessionsCmd = &cobra.Command{
	Use:   "sessions",
	Short: "List remembered sessions, most recently used first",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		a, err := bootstrap(cmd.Context(), cmd.ErrOrStderr())
		if err != nil {
			return err
		}
		defer a.Close()

		sessions := a.memory.Sessions()
		if len(sessions) == 0 {
			fmt.Fprintln(cmd.OutOrStdout(), "No sessions.")
			return nil
		}
		w := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 4, 2, ' ', 0)
		fmt.Fprintln(w, "SESSION\tINTERACTIONS\tCREATED\tLAST ACCESSED")
		for _, s := range sessions {
			fmt.Fprintf(w, "%s\t%d\t%s\t%s\n", s.SessionID, s.Interactions,
				s.Created.Format(time.DateTime), s.LastAccessed.Format(time.DateTime))
		}
		return w.Flush()
	},
}

var memoryShowCmd = &cobra.Command{
	Use:   "show [session]",
	Short: "Print the conversation context of a session",
	Args:  cobra.MaximumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		a, err := bootstrap(cmd.Context(), cmd.ErrOrStderr())
		if err != nil {
			return err
		}
		defer a.Close()

		session := a.cfg.Memory.DefaultSession
		if len(args) == 1 {
			session = args[0]
		}
		if _, ok := a.memory.Lookup(session); !ok {
			return fmt.Errorf("no memory for session %q", session)
		}
		data, err := json.MarshalIndent(a.memory.ConversationContext(session, memoryLimit), "", "  ")
		if err != nil {
			return err
		}
		fmt.Fprintln(cmd.OutOrStdout(), string(data))
		return nil
	},
}

var memoryPruneCmd = &cobra.Command{
	Use:   "prune",
	Short: "Evict sessions idle for longer than the max age",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		a, err := bootstrap(cmd.Context(), cmd.ErrOrStderr())
		if err != nil {
			return err
		}
		defer a.Close()

		maxAge := memoryMaxAge
		if maxAge <= 0 {
			maxAge = a.cfg.Memory.SessionMaxAge.Std()
		}
		n := a.runtime.CleanupSessions(maxAge)
		if err := a.memory.Save(); err != nil {
			return err
		}
		fmt.Fprintf(cmd.OutOrStdout(), "Evicted %d session(s) idle for more than %s.\n", n, maxAge)
		return nil
	},
}

func init() {
	RootCmd.AddCommand(memoryCmd)
	memoryCmd.AddCommand(memorySessionsCmd)
	memoryCmd.AddCommand(memoryShowCmd)
	memoryCmd.AddCommand(memoryPruneCmd)
	memoryShowCmd.Flags().IntVar(&memoryLimit, "limit", 10, "Number of recent interactions to include")
	memoryPruneCmd.Flags().DurationVar(&memoryMaxAge, "max-age", 0, "Idle age to evict (default memory.session_max_age)")
}
