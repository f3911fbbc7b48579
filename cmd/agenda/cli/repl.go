package cli

import (
	tea "github.com/charmbracelet/bubbletea"
	"github.com/google/uuid"
	"github.com/spf13/cobra"

	"github.com/felixgeelhaar/agenda/internal/ui"
	"github.com/felixgeelhaar/agenda/internal/ui/tui"
)

var (
	replSession string
	newSession  bool
)

var replCmd = &cobra.Command{
	Use:   "repl",
	Short: "Start the interactive console",
	Long: `Repl opens a console where each line is one operation, for example

  get_events
  create_list name="Groceries"
  get_items {"listId": "..."}

While a write is pending, answer yes or no on its own line.`,
	Args: cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		a, err := bootstrap(cmd.Context(), cmd.ErrOrStderr())
		if err != nil {
			return err
		}
		defer func() {
			if err := a.Close(); err != nil {
				a.obs.Log().Error().Err(err).Msg("shutdown failed")
			}
		}()

		session := replSession
		switch {
		case newSession:
			session = uuid.NewString()
		case session == "":
			session = a.cfg.Memory.DefaultSession
		}

		sched, err := a.startScheduler()
		if err != nil {
			return err
		}
		defer func() {
			if err := stopScheduler(sched); err != nil {
				a.obs.Log().Warn().Err(err).Msg("scheduler did not stop cleanly")
			}
		}()

		model := tui.NewModel(cmd.Context(), "agenda", session, a.runtime)
		program := tea.NewProgram(model, tea.WithAltScreen(), tea.WithMouseCellMotion(), tea.WithContext(cmd.Context()))
		ui.Attach(a.runtime.Events(), tui.NewTUI(program), a.pending.Len)

		_, err = program.Run()
		return err
	},
}

func init() {
	RootCmd.AddCommand(replCmd)
	replCmd.Flags().StringVar(&replSession, "session", "", "Session id (default memory.default_session)")
	replCmd.Flags().BoolVar(&newSession, "new-session", false, "Start a fresh session with a random id")
}
