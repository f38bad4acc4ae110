package cli

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"strings"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/spf13/cobra"

	"github.com/ericfisherdev/clipview/internal/adapter/driven/jsonfile"
	httphandler "github.com/ericfisherdev/clipview/internal/adapter/driving/http"
)

// Connector returns a Client for the running daemon.
type Connector func() (*Client, error)

// NewCommands returns the client subcommands. connect is called lazily so
// commands that need no daemon, like schema, work without one.
func NewCommands(connect Connector) []*cobra.Command {
	return []*cobra.Command{
		newListCmd(connect),
		newSearchCmd(connect),
		newShowCmd(connect),
		newCopyCmd(connect),
		newPutCmd(connect),
		newCurrentCmd(connect),
		newRemoveCmd(connect),
		newFavoriteCmd(connect),
		newTagCmd(connect),
		newClearCmd(connect),
		newCleanupCmd(connect),
		newStatsCmd(connect),
		newExportCmd(connect),
		newImportCmd(connect),
		newMonitorCmd(connect),
		newPickCmd(connect),
		newSchemaCmd(),
	}
}

// resolve accepts a full record ID or a unique prefix of one, as printed by
// list.
func resolve(ctx context.Context, c *Client, ref string) (httphandler.RecordResponse, error) {
	rec, err := c.Get(ctx, ref)
	if err == nil || !IsNotFound(err) {
		return rec, err
	}

	all, err := c.List(ctx, ListOptions{})
	if err != nil {
		return httphandler.RecordResponse{}, err
	}

	var found []httphandler.RecordResponse
	for _, r := range all {
		if strings.HasPrefix(r.ID, ref) {
			found = append(found, r)
		}
	}

	switch len(found) {
	case 0:
		return httphandler.RecordResponse{}, fmt.Errorf("no record matches %q", ref)
	case 1:
		return found[0], nil
	default:
		return httphandler.RecordResponse{}, fmt.Errorf("%q matches %d records, use more characters", ref, len(found))
	}
}

func writeJSONOut(w io.Writer, v any) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

func newListCmd(connect Connector) *cobra.Command {
	var (
		opts   ListOptions
		asJSON bool
	)

	cmd := &cobra.Command{
		Use:     "list",
		Aliases: []string{"ls"},
		Short:   "List clipboard history, newest first",
		Args:    cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			c, err := connect()
			if err != nil {
				return err
			}
			records, err := c.List(cmd.Context(), opts)
			if err != nil {
				return err
			}
			if asJSON {
				return writeJSONOut(cmd.OutOrStdout(), records)
			}
			RenderRecords(cmd.OutOrStdout(), records)
			return nil
		},
	}

	cmd.Flags().StringVarP(&opts.Type, "type", "t", "", "only records of this type (text, html, image, file, mermaid)")
	cmd.Flags().BoolVarP(&opts.Favorites, "favorites", "f", false, "only favorites")
	cmd.Flags().IntVarP(&opts.Limit, "limit", "n", 0, "maximum records to show")
	cmd.Flags().BoolVar(&asJSON, "json", false, "output as JSON")
	return cmd
}

func newSearchCmd(connect Connector) *cobra.Command {
	var limit int

	cmd := &cobra.Command{
		Use:   "search <query>",
		Short: "Search content, previews and tags",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			c, err := connect()
			if err != nil {
				return err
			}
			records, err := c.List(cmd.Context(), ListOptions{Query: strings.Join(args, " "), Limit: limit})
			if err != nil {
				return err
			}
			RenderRecords(cmd.OutOrStdout(), records)
			return nil
		},
	}

	cmd.Flags().IntVarP(&limit, "limit", "n", 0, "maximum records to show")
	return cmd
}

func newShowCmd(connect Connector) *cobra.Command {
	var preview bool

	cmd := &cobra.Command{
		Use:   "show <id>",
		Short: "Show a record",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			c, err := connect()
			if err != nil {
				return err
			}
			rec, err := resolve(cmd.Context(), c, args[0])
			if err != nil {
				return err
			}
			if !preview {
				RenderRecord(cmd.OutOrStdout(), rec)
				return nil
			}

			p, err := c.Preview(cmd.Context(), rec.ID)
			if err != nil {
				return err
			}
			RenderPreview(cmd.OutOrStdout(), p, rec.Content)
			return nil
		},
	}

	cmd.Flags().BoolVarP(&preview, "preview", "p", false, "show the rendered preview analysis")
	return cmd
}

func newCopyCmd(connect Connector) *cobra.Command {
	return &cobra.Command{
		Use:   "copy <id>",
		Short: "Put a record back on the clipboard",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			c, err := connect()
			if err != nil {
				return err
			}
			rec, err := resolve(cmd.Context(), c, args[0])
			if err != nil {
				return err
			}
			if _, err := c.Copy(cmd.Context(), rec.ID); err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "copied %s\n", shortID(rec.ID))
			return nil
		},
	}
}

func newPutCmd(connect Connector) *cobra.Command {
	return &cobra.Command{
		Use:   "put [text]",
		Short: "Copy text to the clipboard, reading stdin when text is omitted or -",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			var text string
			if len(args) == 0 || args[0] == "-" {
				data, err := io.ReadAll(cmd.InOrStdin())
				if err != nil {
					return fmt.Errorf("read stdin: %w", err)
				}
				text = string(data)
			} else {
				text = args[0]
			}

			c, err := connect()
			if err != nil {
				return err
			}
			rec, err := c.Put(cmd.Context(), text)
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "copied %s (%s)\n", shortID(rec.ID), rec.Type)
			return nil
		},
	}
}

func newCurrentCmd(connect Connector) *cobra.Command {
	return &cobra.Command{
		Use:   "current",
		Short: "Print what is on the clipboard now",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			c, err := connect()
			if err != nil {
				return err
			}
			rec, err := c.Current(cmd.Context())
			if err != nil {
				return err
			}
			if rec == nil {
				return errors.New("clipboard is empty")
			}
			fmt.Fprintln(cmd.OutOrStdout(), rec.Content)
			return nil
		},
	}
}

func newRemoveCmd(connect Connector) *cobra.Command {
	return &cobra.Command{
		Use:     "rm <id>...",
		Aliases: []string{"delete"},
		Short:   "Remove records",
		Args:    cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			c, err := connect()
			if err != nil {
				return err
			}
			for _, ref := range args {
				rec, err := resolve(cmd.Context(), c, ref)
				if err != nil {
					return err
				}
				if err := c.Delete(cmd.Context(), rec.ID); err != nil {
					return err
				}
				fmt.Fprintf(cmd.OutOrStdout(), "removed %s\n", shortID(rec.ID))
			}
			return nil
		},
	}
}

func newFavoriteCmd(connect Connector) *cobra.Command {
	return &cobra.Command{
		Use:     "fav <id>",
		Aliases: []string{"favorite"},
		Short:   "Toggle the favorite flag of a record",
		Args:    cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			c, err := connect()
			if err != nil {
				return err
			}
			rec, err := resolve(cmd.Context(), c, args[0])
			if err != nil {
				return err
			}
			favorite, err := c.ToggleFavorite(cmd.Context(), rec.ID)
			if err != nil {
				return err
			}
			state := "unstarred"
			if favorite {
				state = "starred"
			}
			fmt.Fprintf(cmd.OutOrStdout(), "%s %s\n", state, shortID(rec.ID))
			return nil
		},
	}
}

func newTagCmd(connect Connector) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "tag",
		Short: "Add or remove record tags",
	}

	tagRun := func(add bool) func(*cobra.Command, []string) error {
		return func(cmd *cobra.Command, args []string) error {
			c, err := connect()
			if err != nil {
				return err
			}
			rec, err := resolve(cmd.Context(), c, args[0])
			if err != nil {
				return err
			}
			if add {
				rec, err = c.AddTag(cmd.Context(), rec.ID, args[1])
			} else {
				rec, err = c.RemoveTag(cmd.Context(), rec.ID, args[1])
			}
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "%s tags: %s\n", shortID(rec.ID), strings.Join(rec.Tags, ", "))
			return nil
		}
	}

	cmd.AddCommand(
		&cobra.Command{
			Use:   "add <id> <tag>",
			Short: "Tag a record",
			Args:  cobra.ExactArgs(2),
			RunE:  tagRun(true),
		},
		&cobra.Command{
			Use:   "rm <id> <tag>",
			Short: "Untag a record",
			Args:  cobra.ExactArgs(2),
			RunE:  tagRun(false),
		},
	)
	return cmd
}

func newClearCmd(connect Connector) *cobra.Command {
	var clipboardOnly bool

	cmd := &cobra.Command{
		Use:   "clear",
		Short: "Remove every record, favorites included",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			c, err := connect()
			if err != nil {
				return err
			}
			if clipboardOnly {
				if err := c.ClearClipboard(cmd.Context()); err != nil {
					return err
				}
				fmt.Fprintln(cmd.OutOrStdout(), "clipboard cleared")
				return nil
			}
			if err := c.Clear(cmd.Context()); err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), "history cleared")
			return nil
		},
	}

	cmd.Flags().BoolVar(&clipboardOnly, "clipboard", false, "empty the system clipboard instead of the history")
	return cmd
}

func newCleanupCmd(connect Connector) *cobra.Command {
	var days int

	cmd := &cobra.Command{
		Use:   "cleanup",
		Short: "Remove non-favorite records older than --days",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			if days < 1 {
				return errors.New("--days must be at least 1")
			}
			c, err := connect()
			if err != nil {
				return err
			}
			removed, err := c.Cleanup(cmd.Context(), days)
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "removed %d record(s)\n", removed)
			return nil
		},
	}

	cmd.Flags().IntVarP(&days, "days", "d", 30, "age in days")
	return cmd
}

func newStatsCmd(connect Connector) *cobra.Command {
	var asJSON bool

	cmd := &cobra.Command{
		Use:   "stats",
		Short: "Summarize the history",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			c, err := connect()
			if err != nil {
				return err
			}
			stats, err := c.Stats(cmd.Context())
			if err != nil {
				return err
			}
			if asJSON {
				return writeJSONOut(cmd.OutOrStdout(), stats)
			}
			RenderStats(cmd.OutOrStdout(), stats)
			return nil
		},
	}

	cmd.Flags().BoolVar(&asJSON, "json", false, "output as JSON")
	return cmd
}

func newExportCmd(connect Connector) *cobra.Command {
	return &cobra.Command{
		Use:   "export [file]",
		Short: "Write the history document to a file or stdout",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			c, err := connect()
			if err != nil {
				return err
			}
			data, err := c.Export(cmd.Context())
			if err != nil {
				return err
			}

			if len(args) == 0 || args[0] == "-" {
				_, err = cmd.OutOrStdout().Write(data)
				return err
			}
			if err := os.WriteFile(args[0], data, 0o600); err != nil {
				return fmt.Errorf("write export: %w", err)
			}
			fmt.Fprintf(cmd.ErrOrStderr(), "exported to %s\n", args[0])
			return nil
		},
	}
}

func newImportCmd(connect Connector) *cobra.Command {
	var merge bool

	cmd := &cobra.Command{
		Use:   "import <file|->",
		Short: "Load a history document, replacing the history unless --merge",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			var (
				data []byte
				err  error
			)
			if args[0] == "-" {
				data, err = io.ReadAll(cmd.InOrStdin())
			} else {
				data, err = os.ReadFile(args[0])
			}
			if err != nil {
				return fmt.Errorf("read import: %w", err)
			}

			if err := jsonfile.Validate(data); err != nil {
				return err
			}

			c, err := connect()
			if err != nil {
				return err
			}
			resp, err := c.Import(cmd.Context(), data, merge)
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "imported %d record(s), history now holds %d\n", resp.Imported, resp.Total)
			return nil
		},
	}

	cmd.Flags().BoolVarP(&merge, "merge", "m", false, "merge into the existing history")
	return cmd
}

func newMonitorCmd(connect Connector) *cobra.Command {
	return &cobra.Command{
		Use:       "monitor [start|stop|status]",
		Short:     "Start, stop or query clipboard monitoring",
		Args:      cobra.MatchAll(cobra.MaximumNArgs(1), cobra.OnlyValidArgs),
		ValidArgs: []string{"start", "stop", "status"},
		RunE: func(cmd *cobra.Command, args []string) error {
			action := ""
			if len(args) == 1 && args[0] != "status" {
				action = args[0]
			}

			c, err := connect()
			if err != nil {
				return err
			}
			resp, err := c.Monitor(cmd.Context(), action)
			if err != nil {
				return err
			}

			state := "stopped"
			if resp.Monitoring {
				state = "running"
			}
			if action != "" && !resp.Changed {
				state += " (unchanged)"
			}
			fmt.Fprintf(cmd.OutOrStdout(), "monitoring %s\n", state)
			return nil
		},
	}
}

func newPickCmd(connect Connector) *cobra.Command {
	var printOnly bool

	cmd := &cobra.Command{
		Use:   "pick",
		Short: "Fuzzy-pick a record and copy it",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			c, err := connect()
			if err != nil {
				return err
			}
			records, err := c.List(cmd.Context(), ListOptions{})
			if err != nil {
				return err
			}
			if len(records) == 0 {
				return errors.New("history is empty")
			}

			final, err := tea.NewProgram(NewPickerModel(records),
				tea.WithContext(cmd.Context()),
				tea.WithOutput(cmd.ErrOrStderr()),
			).Run()
			if err != nil {
				return fmt.Errorf("run picker: %w", err)
			}

			picked, ok := final.(PickerModel)
			if !ok || picked.Chosen() == nil {
				return nil
			}
			rec := picked.Chosen()

			if printOnly {
				fmt.Fprintln(cmd.OutOrStdout(), rec.Content)
				return nil
			}
			if _, err := c.Copy(cmd.Context(), rec.ID); err != nil {
				return err
			}
			fmt.Fprintf(cmd.ErrOrStderr(), "copied %s\n", shortID(rec.ID))
			return nil
		},
	}

	cmd.Flags().BoolVar(&printOnly, "print", false, "print the content instead of copying it")
	return cmd
}

func newSchemaCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "schema",
		Short: "Print the JSON Schema of the history document",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			data, err := jsonfile.SchemaJSON()
			if err != nil {
				return err
			}
			_, err = fmt.Fprintln(cmd.OutOrStdout(), string(data))
			return err
		},
	}
}
