package cli

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/roach88/georemind/internal/reminder"
	"github.com/roach88/georemind/internal/store"
)

// openStore opens the database named by --db.
func openStore(opts *RootOptions) (*store.Store, error) {
	st, err := store.Open(opts.Database)
	if err != nil {
		return nil, WrapExitError(ExitCommandError, "failed to open database", err)
	}
	return st, nil
}

// withStore runs fn against the database and closes it afterwards.
func withStore(cmd *cobra.Command, opts *RootOptions, fn func(ctx context.Context, st *store.Store) error) error {
	st, err := openStore(opts)
	if err != nil {
		return err
	}
	defer st.Close()

	ctx := cmd.Context()
	if ctx == nil {
		ctx = context.Background()
	}
	return fn(ctx, st)
}

// AddOptions holds flags for the add command.
type AddOptions struct {
	*RootOptions
	Title       string
	Description string
	OwnerID     string
	Latitude    float64
	Longitude   float64
}

// NewAddCommand creates the add command.
func NewAddCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &AddOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "add",
		Short: "Add a reminder at a coordinate",
		Example: `  georemind add --title "Buy bread" --lat 45.4642 --lng 9.19
  georemind add --description "Return library books" --lat 45.47 --lng 9.18`,
		Args:          cobra.NoArgs,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runAdd(cmd, opts)
		},
	}

	cmd.Flags().StringVar(&opts.Title, "title", "", "reminder title")
	cmd.Flags().StringVar(&opts.Description, "description", "", "reminder description")
	cmd.Flags().StringVar(&opts.OwnerID, "owner", "", "owner identifier")
	cmd.Flags().Float64Var(&opts.Latitude, "lat", 0, "latitude in degrees (required)")
	cmd.Flags().Float64Var(&opts.Longitude, "lng", 0, "longitude in degrees (required)")
	_ = cmd.MarkFlagRequired("lat")
	_ = cmd.MarkFlagRequired("lng")

	return cmd
}

func runAdd(cmd *cobra.Command, opts *AddOptions) error {
	r := reminder.New(opts.Title, opts.Description, opts.OwnerID, opts.Latitude, opts.Longitude)
	if err := r.Validate(); err != nil {
		return WrapExitError(ExitCommandError, "invalid reminder", err)
	}

	return withStore(cmd, opts.RootOptions, func(ctx context.Context, st *store.Store) error {
		if err := st.Save(ctx, r); err != nil {
			return WrapExitError(ExitFailure, "failed to save reminder", err)
		}
		return newFormatter(cmd, opts.RootOptions).Result(fmt.Sprintf("Added reminder %s", r.ID), r)
	})
}

// NewListCommand creates the list command.
func NewListCommand(rootOpts *RootOptions) *cobra.Command {
	var filter string

	cmd := &cobra.Command{
		Use:           "list",
		Short:         "List reminders in insertion order",
		Args:          cobra.NoArgs,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			f, err := reminder.ParseFilter(filter)
			if err != nil {
				return WrapExitError(ExitCommandError, "invalid filter", err)
			}
			return withStore(cmd, rootOpts, func(ctx context.Context, st *store.Store) error {
				all, err := st.List(ctx)
				if err != nil {
					return WrapExitError(ExitFailure, "failed to list reminders", err)
				}
				selected := f.Apply(all)
				return newFormatter(cmd, rootOpts).Result(formatReminders(selected), selected)
			})
		},
	}

	cmd.Flags().StringVar(&filter, "filter", string(reminder.ShowAll), "which reminders to show (all|active|completed)")

	return cmd
}

func formatReminders(rs []reminder.Reminder) string {
	if len(rs) == 0 {
		return "No reminders."
	}
	var sb strings.Builder
	w := tabwriter.NewWriter(&sb, 0, 4, 2, ' ', 0)
	fmt.Fprintln(w, "ID\tSTATE\tTITLE\tLAT\tLNG")
	for _, r := range rs {
		state := "active"
		if r.Completed {
			state = "completed"
		}
		fmt.Fprintf(w, "%s\t%s\t%s\t%.6f\t%.6f\n", r.ID, state, r.DisplayTitle(), r.Latitude, r.Longitude)
	}
	w.Flush()
	return strings.TrimSuffix(sb.String(), "\n")
}

// idCommand builds a command that applies op to a single reminder id.
func idCommand(rootOpts *RootOptions, use, short, verb string, op func(*store.Store, context.Context, string) error) *cobra.Command {
	return &cobra.Command{
		Use:           use + " <id>",
		Short:         short,
		Args:          cobra.ExactArgs(1),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			id := args[0]
			return withStore(cmd, rootOpts, func(ctx context.Context, st *store.Store) error {
				if err := op(st, ctx, id); err != nil {
					if errors.Is(err, store.ErrNotFound) {
						return WrapExitError(ExitFailure, "unknown reminder", err)
					}
					return WrapExitError(ExitFailure, fmt.Sprintf("failed to %s reminder", use), err)
				}
				return newFormatter(cmd, rootOpts).Result(
					fmt.Sprintf("%s reminder %s", verb, id),
					map[string]string{"id": id},
				)
			})
		},
	}
}

// NewCompleteCommand creates the complete command.
func NewCompleteCommand(rootOpts *RootOptions) *cobra.Command {
	return idCommand(rootOpts, "complete", "Mark a reminder completed", "Completed", (*store.Store).Complete)
}

// NewActivateCommand creates the activate command.
func NewActivateCommand(rootOpts *RootOptions) *cobra.Command {
	return idCommand(rootOpts, "activate", "Mark a completed reminder active again", "Activated", (*store.Store).Activate)
}

// NewDeleteCommand creates the delete command.
func NewDeleteCommand(rootOpts *RootOptions) *cobra.Command {
	return idCommand(rootOpts, "delete", "Delete a reminder", "Deleted", (*store.Store).Delete)
}

// bulkCommand builds a command that deletes many reminders at once.
func bulkCommand(rootOpts *RootOptions, use, short string, op func(*store.Store, context.Context) (int, error)) *cobra.Command {
	return &cobra.Command{
		Use:           use,
		Short:         short,
		Args:          cobra.NoArgs,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return withStore(cmd, rootOpts, func(ctx context.Context, st *store.Store) error {
				n, err := op(st, ctx)
				if err != nil {
					return WrapExitError(ExitFailure, "failed to delete reminders", err)
				}
				return newFormatter(cmd, rootOpts).Result(
					fmt.Sprintf("Deleted %d reminders", n),
					map[string]int{"deleted": n},
				)
			})
		},
	}
}

// NewClearCompletedCommand creates the clear-completed command.
func NewClearCompletedCommand(rootOpts *RootOptions) *cobra.Command {
	return bulkCommand(rootOpts, "clear-completed", "Delete every completed reminder", (*store.Store).ClearCompleted)
}

// NewDeleteAllCommand creates the delete-all command.
func NewDeleteAllCommand(rootOpts *RootOptions) *cobra.Command {
	return bulkCommand(rootOpts, "delete-all", "Delete every reminder", (*store.Store).DeleteAll)
}

// NewStatsCommand creates the stats command.
func NewStatsCommand(rootOpts *RootOptions) *cobra.Command {
	return &cobra.Command{
		Use:           "stats",
		Short:         "Show active and completed counts",
		Args:          cobra.NoArgs,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return withStore(cmd, rootOpts, func(ctx context.Context, st *store.Store) error {
				s, err := st.Stats(ctx)
				if err != nil {
					return WrapExitError(ExitFailure, "failed to compute stats", err)
				}
				text := fmt.Sprintf("Active: %d (%.1f%%)\nCompleted: %d (%.1f%%)",
					s.Active, s.ActivePercent, s.Completed, s.CompletedPercent)
				return newFormatter(cmd, rootOpts).Result(text, s)
			})
		},
	}
}
