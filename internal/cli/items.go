package cli

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/wewew312/todomemes/internal/model"
	"github.com/wewew312/todomemes/internal/store"
	"github.com/wewew312/todomemes/internal/tui"
	"github.com/wewew312/todomemes/internal/ui"
)

func (f *itemFlags) register(cmd *cobra.Command) {
	cmd.Flags().StringVar(&f.importance, "importance", "", "low, normal or high")
	cmd.Flags().StringVar(&f.color, "color", "", "color as #RRGGBB or #AARRGGBB")
	cmd.Flags().StringVar(&f.deadline, "deadline", "", "due date, YYYY-MM-DD or RFC 3339")
}

func (a *app) addCmd() *cobra.Command {
	var f itemFlags
	cmd := &cobra.Command{
		Use:   "add <text...>",
		Short: "Add a new item (text can be multiple words)",
		Args:  usageArgs(cobra.MinimumNArgs(1)),
		RunE: func(cmd *cobra.Command, args []string) error {
			it := model.New(strings.Join(args, " "))
			if it.Text == "" {
				return usagef("add: empty text")
			}
			if err := f.apply(&it, cmd.Flags().Changed); err != nil {
				return err
			}
			repo, err := a.repository(cmd.Context())
			if err != nil {
				return err
			}
			if err := repo.Save(cmd.Context(), it); err != nil {
				return err
			}
			ui.OK(a.out, "added")
			return nil
		},
	}
	f.register(cmd)
	return cmd
}

func (a *app) lsCmd() *cobra.Command {
	var plain, group bool
	cmd := &cobra.Command{
		Use:   "ls",
		Short: "List items (interactive on a terminal)",
		Args:  usageArgs(cobra.NoArgs),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			repo, err := a.repository(ctx)
			if err != nil {
				return err
			}
			items, err := repo.Load(ctx)
			if err != nil {
				return err
			}
			if !plain && a.interactive() {
				return a.runTUI(ctx, items)
			}
			a.printList(items, group)
			return nil
		},
	}
	cmd.Flags().BoolVar(&plain, "plain", false, "print a framed list even on a terminal")
	cmd.Flags().BoolVar(&group, "group", false, "group output by pending/done")
	return cmd
}

func (a *app) runTUI(ctx context.Context, items []model.Item) error {
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	updates := []<-chan []model.Item{a.repo.Subscribe(ctx)}
	if w, ok := a.local.(store.Watcher); ok {
		ch, err := w.Watch(ctx)
		if err != nil {
			a.log.Warn("store watch unavailable", zap.Error(err))
		} else {
			updates = append(updates, ch)
		}
	}
	return tui.Run(ctx, a.repo, items, tui.Merge(ctx, updates...))
}

func (a *app) printList(items []model.Item, group bool) {
	t := ui.Current()
	d, p := model.Stats(items)
	now := time.Now()

	lines := []string{
		ui.Header(items),
		ui.C(t.Muted, ui.ProgressBar(d, d+p, 28)),
		"",
	}
	if group {
		lines = append(lines, ui.GroupLines(items, now)...)
	} else {
		lines = append(lines, ui.FlatLines(items, now)...)
	}
	lines = append(lines, "", ui.C(t.Muted, "Tip: add with `tada add \"Buy milk\"`"))
	ui.Panel(a.out, lines)
}

// withItem resolves the ref argument against the cache and calls fn.
func (a *app) withItem(cmd *cobra.Command, ref string, fn func(ctx context.Context, it model.Item) error) error {
	ctx := cmd.Context()
	repo, err := a.repository(ctx)
	if err != nil {
		return err
	}
	items, err := repo.Cached(ctx)
	if err != nil {
		return err
	}
	it, err := resolveRef(items, ref)
	if err != nil {
		return err
	}
	return fn(ctx, it)
}

func (a *app) showCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "show <ref>",
		Short: "Show one item by 1-based index or uid",
		Args:  usageArgs(cobra.ExactArgs(1)),
		RunE: func(cmd *cobra.Command, args []string) error {
			return a.withItem(cmd, args[0], func(ctx context.Context, it model.Item) error {
				ui.Panel(a.out, ui.Detail(it))
				return nil
			})
		},
	}
}

func (a *app) doneCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "done <ref>",
		Short: "Toggle done for an item",
		Args:  usageArgs(cobra.ExactArgs(1)),
		RunE: func(cmd *cobra.Command, args []string) error {
			return a.withItem(cmd, args[0], func(ctx context.Context, it model.Item) error {
				t, err := a.repo.ToggleDone(ctx, it)
				if err != nil {
					return err
				}
				if t.Done {
					ui.OK(a.out, "done")
				} else {
					ui.OK(a.out, "reopened")
				}
				return nil
			})
		},
	}
}

func (a *app) rmCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "rm <ref>",
		Short: "Remove an item",
		Args:  usageArgs(cobra.ExactArgs(1)),
		RunE: func(cmd *cobra.Command, args []string) error {
			return a.withItem(cmd, args[0], func(ctx context.Context, it model.Item) error {
				if _, err := a.repo.Delete(ctx, it.UID); err != nil {
					return err
				}
				ui.OK(a.out, "removed")
				return nil
			})
		},
	}
}

var editFlags = []string{"text", "importance", "color", "deadline", "no-deadline"}

func anyChanged(cmd *cobra.Command, names ...string) bool {
	for _, n := range names {
		if cmd.Flags().Changed(n) {
			return true
		}
	}
	return false
}

func (a *app) editCmd() *cobra.Command {
	var (
		f    itemFlags
		text string
	)
	cmd := &cobra.Command{
		Use:   "edit <ref>",
		Short: "Change an item's text or metadata",
		Args:  usageArgs(cobra.ExactArgs(1)),
		RunE: func(cmd *cobra.Command, args []string) error {
			flags := cmd.Flags()
			if !anyChanged(cmd, editFlags...) {
				return &usageError{
					err:  errors.New("edit: nothing to change"),
					hint: "usage: " + cmd.UseLine() + " with --" + strings.Join(editFlags, ", --"),
				}
			}
			if flags.Changed("deadline") && f.noDeadline {
				return usagef("edit: --deadline and --no-deadline conflict")
			}
			return a.withItem(cmd, args[0], func(ctx context.Context, it model.Item) error {
				if flags.Changed("text") {
					it.Text = strings.TrimSpace(text)
					if it.Text == "" {
						return usagef("edit: empty text")
					}
				}
				if err := f.apply(&it, flags.Changed); err != nil {
					return err
				}
				it.Touch()
				if err := a.repo.Save(ctx, it); err != nil {
					return err
				}
				ui.OK(a.out, "edited")
				return nil
			})
		},
	}
	f.register(cmd)
	cmd.Flags().StringVar(&text, "text", "", "new text")
	cmd.Flags().BoolVar(&f.noDeadline, "no-deadline", false, "clear the deadline")
	return cmd
}
