package cli

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"

	"github.com/wewew312/todomemes/internal/model"
	"github.com/wewew312/todomemes/internal/ui"
)

func (a *app) syncCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "sync",
		Short: "Push the local list to the backend and keep the merged result",
		Args:  usageArgs(cobra.NoArgs),
		RunE: func(cmd *cobra.Command, args []string) error {
			repo, err := a.repository(cmd.Context())
			if err != nil {
				return err
			}
			items, err := repo.Sync(cmd.Context())
			if err != nil {
				return err
			}
			ui.OK(a.out, fmt.Sprintf("synced %d items", len(items)))
			return nil
		},
	}
}

func (a *app) pullCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "pull",
		Short: "Refresh the local cache from the backend",
		Args:  usageArgs(cobra.NoArgs),
		RunE: func(cmd *cobra.Command, args []string) error {
			repo, err := a.repository(cmd.Context())
			if err != nil {
				return err
			}
			items, err := repo.Load(cmd.Context())
			if err != nil {
				return err
			}
			ui.OK(a.out, fmt.Sprintf("%d items", len(items)))
			return nil
		},
	}
}

func (a *app) clearCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "clear",
		Short: "Drop the local cache (the backend is untouched)",
		Args:  usageArgs(cobra.NoArgs),
		RunE: func(cmd *cobra.Command, args []string) error {
			repo, err := a.repository(cmd.Context())
			if err != nil {
				return err
			}
			if err := repo.ClearCache(cmd.Context()); err != nil {
				return err
			}
			ui.OK(a.out, "cache cleared")
			return nil
		},
	}
}

// exportItem is the user-facing shape of an item in exports.
type exportItem struct {
	UID        string     `json:"uid" yaml:"uid"`
	Text       string     `json:"text" yaml:"text"`
	Importance string     `json:"importance" yaml:"importance"`
	Color      string     `json:"color" yaml:"color"`
	Deadline   *time.Time `json:"deadline,omitempty" yaml:"deadline,omitempty"`
	Done       bool       `json:"done" yaml:"done"`
	CreatedAt  time.Time  `json:"created_at" yaml:"created_at"`
	ChangedAt  time.Time  `json:"changed_at" yaml:"changed_at"`
}

func toExport(items []model.Item) []exportItem {
	out := make([]exportItem, 0, len(items))
	for _, it := range items {
		out = append(out, exportItem{
			UID:        it.UID,
			Text:       it.Text,
			Importance: it.Importance.String(),
			Color:      it.Color.Hex(),
			Deadline:   it.Deadline,
			Done:       it.Done,
			CreatedAt:  it.CreatedAt,
			ChangedAt:  it.ChangedAt,
		})
	}
	return out
}

func (a *app) exportCmd() *cobra.Command {
	var format string
	cmd := &cobra.Command{
		Use:   "export",
		Short: "Write the cached list to stdout",
		Args:  usageArgs(cobra.NoArgs),
		RunE: func(cmd *cobra.Command, args []string) error {
			if format != "json" && format != "yaml" {
				return usagef("export: unknown format %q (json or yaml)", format)
			}
			repo, err := a.repository(cmd.Context())
			if err != nil {
				return err
			}
			items, err := repo.Cached(cmd.Context())
			if err != nil {
				return err
			}
			doc := toExport(items)
			if format == "yaml" {
				enc := yaml.NewEncoder(a.out)
				enc.SetIndent(2)
				if err := enc.Encode(doc); err != nil {
					return fmt.Errorf("export: %w", err)
				}
				return enc.Close()
			}
			enc := json.NewEncoder(a.out)
			enc.SetIndent("", "  ")
			return enc.Encode(doc)
		},
	}
	cmd.Flags().StringVar(&format, "format", "json", "json or yaml")
	return cmd
}
