package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"strings"
	"sync"
	"text/tabwriter"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/vyrodovalexey/restresource/internal/model"
	"github.com/vyrodovalexey/restresource/pkg/live"
)

func newListCmd(flags *globalFlags) *cobra.Command {
	var query, completed string

	cmd := &cobra.Command{
		Use:   "list",
		Short: "List todos",
		Example: `  todoctl list
  todoctl list --q milk --completed=false`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			params, err := listParams(query, completed)
			if err != nil {
				return err
			}

			s, err := openSession(flags, params)
			if err != nil {
				return err
			}
			defer s.close()

			todos, err := s.load(cmd.Context())
			if err != nil {
				return err
			}
			return printTodos(cmd.OutOrStdout(), todos)
		},
	}

	cmd.Flags().StringVar(&query, "q", "", "Only todos whose description contains this text")
	cmd.Flags().StringVar(&completed, "completed", "", "Only completed (true) or open (false) todos")

	return cmd
}

func newAddCmd(flags *globalFlags) *cobra.Command {
	return &cobra.Command{
		Use:   "add <description>",
		Short: "Add a todo",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			s, err := openSession(flags, "")
			if err != nil {
				return err
			}
			defer s.close()

			ctx := cmd.Context()
			if _, err := s.load(ctx); err != nil {
				return err
			}

			s.todos.Create(model.Todo{Description: strings.Join(args, " ")})
			if err := s.settle(ctx, s.todos.ErrorCreate()); err != nil {
				return fmt.Errorf("adding todo: %w", err)
			}

			_, err = fmt.Fprintf(cmd.OutOrStdout(), "Added todo %s\n", s.lastGeneratedID())
			return err
		},
	}
}

func newDoneCmd(flags *globalFlags) *cobra.Command {
	return &cobra.Command{
		Use:   "done <id>",
		Short: "Mark a todo as completed",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			s, err := openSession(flags, "")
			if err != nil {
				return err
			}
			defer s.close()

			ctx := cmd.Context()
			todo, err := s.find(ctx, args[0])
			if err != nil {
				return err
			}

			todo.Completed = true
			s.todos.Update(todo)
			if err := s.settle(ctx, s.todos.ErrorUpdate()); err != nil {
				return fmt.Errorf("completing todo %s: %w", todo.ID, err)
			}

			_, err = fmt.Fprintf(cmd.OutOrStdout(), "Completed todo %s\n", todo.ID)
			return err
		},
	}
}

func newRmCmd(flags *globalFlags) *cobra.Command {
	return &cobra.Command{
		Use:     "rm <id>",
		Aliases: []string{"remove", "delete"},
		Short:   "Remove a todo",
		Args:    cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			s, err := openSession(flags, "")
			if err != nil {
				return err
			}
			defer s.close()

			ctx := cmd.Context()
			todo, err := s.find(ctx, args[0])
			if err != nil {
				return err
			}

			s.todos.Remove(todo)
			if err := s.settle(ctx, s.todos.ErrorRemove()); err != nil {
				return fmt.Errorf("removing todo %s: %w", todo.ID, err)
			}

			_, err = fmt.Fprintf(cmd.OutOrStdout(), "Removed todo %s\n", todo.ID)
			return err
		},
	}
}

func newWatchCmd(flags *globalFlags) *cobra.Command {
	return &cobra.Command{
		Use:   "watch",
		Short: "Print the todo list whenever it changes on the server",
		Long: `watch follows the server's change feed and reloads the todo list for
every change, reconnecting with backoff. Stop it with Ctrl+C.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			s, err := openSession(flags, "")
			if err != nil {
				return err
			}
			defer s.close()

			feed, err := feedURL(s.cfg.BaseURL)
			if err != nil {
				return err
			}

			ctx := cmd.Context()
			out := cmd.OutOrStdout()
			todos, err := s.load(ctx)
			if err != nil {
				return err
			}

			var mu sync.Mutex
			show := func(todos []model.Todo) {
				mu.Lock()
				defer mu.Unlock()
				if err := printTodos(out, todos); err != nil {
					s.logger.Warn("failed to print todos", zap.Error(err))
				}
			}
			show(todos)
			s.scope.Add(s.todos.Values().Subscribe(show))

			err = live.Follow(ctx, feed, s.todos,
				live.WithLogger(s.logger),
				live.WithHeader(s.authHeader()),
				live.WithEventHandler(func(e live.Event) {
					s.logger.Info("todo changed", zap.String("type", e.Type), zap.String("id", e.ID))
				}),
			)
			if errors.Is(err, context.Canceled) {
				return nil
			}
			return err
		},
	}
}

// printTodos writes todos as an aligned table.
func printTodos(out io.Writer, todos []model.Todo) error {
	if len(todos) == 0 {
		_, err := fmt.Fprintln(out, "No todos")
		return err
	}

	w := tabwriter.NewWriter(out, 0, 0, 2, ' ', 0)
	fmt.Fprintln(w, "ID\tDONE\tDESCRIPTION")
	for _, todo := range todos {
		done := " "
		if todo.Completed {
			done = "x"
		}
		fmt.Fprintf(w, "%s\t[%s]\t%s\n", todo.ID, done, todo.Description)
	}
	return w.Flush()
}
