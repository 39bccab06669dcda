package cmd

import (
	"encoding/json"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/spf13/cobra"

	"github.com/berrythewa/clipkeep/internal/apiclient"
)

// newHistoryCmd creates the history command with all subcommands
func newHistoryCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:     "history",
		Aliases: []string{"h"},
		Short:   "Browse and manage clipboard history",
		Long: `Browse and manage the clipboard history recorded by the running daemon.

Examples:
  clipkeep history list                  # Show recent entries
  clipkeep history search invoice        # Find entries containing "invoice"
  clipkeep history show <id> --reveal    # Show a sensitive entry in clear
  clipkeep history paste <id>            # Copy an entry and paste it`,
	}

	cmd.AddCommand(
		newHistoryListCmd(),
		newHistoryShowCmd(),
		newHistorySearchCmd(),
		newHistoryAddCmd(),
		newHistoryPinCmd(),
		newHistoryDeleteCmd(),
		newHistoryCopyCmd(),
		newHistoryPasteCmd(),
		newHistoryScreenshotsCmd(),
	)
	return cmd
}

func newHistoryListCmd() *cobra.Command {
	var (
		limit      int
		typeFilter string
		pinned     bool
		compact    bool
		asJSON     bool
	)

	cmd := &cobra.Command{
		Use:   "list",
		Short: "List recent clipboard history",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			client, err := newClient()
			if err != nil {
				return err
			}
			ctx, cancel := requestContext(cmd)
			defer cancel()

			items, err := client.List(ctx)
			if err != nil {
				return err
			}
			items = filterItems(items, typeFilter, pinned, limit)
			return printItems(cmd.OutOrStdout(), "Clipboard History", items, compact, asJSON)
		},
	}

	cmd.Flags().IntVarP(&limit, "limit", "n", 20, "maximum number of entries to show (0 = all)")
	cmd.Flags().StringVarP(&typeFilter, "type", "t", "", "filter by content type (text, url, image, file)")
	cmd.Flags().BoolVar(&pinned, "pinned", false, "only show pinned entries")
	cmd.Flags().BoolVarP(&compact, "compact", "c", false, "use compact single-line format")
	cmd.Flags().BoolVar(&asJSON, "json", false, "output in JSON format")
	return cmd
}

func newHistorySearchCmd() *cobra.Command {
	var (
		compact bool
		asJSON  bool
	)

	cmd := &cobra.Command{
		Use:   "search <query>",
		Short: "Search clipboard history",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			client, err := newClient()
			if err != nil {
				return err
			}
			ctx, cancel := requestContext(cmd)
			defer cancel()

			query := strings.Join(args, " ")
			items, err := client.Search(ctx, query)
			if err != nil {
				return err
			}
			return printItems(cmd.OutOrStdout(), fmt.Sprintf("Results for %q", query), items, compact, asJSON)
		},
	}

	cmd.Flags().BoolVarP(&compact, "compact", "c", true, "use compact single-line format")
	cmd.Flags().BoolVar(&asJSON, "json", false, "output in JSON format")
	return cmd
}

func newHistoryShowCmd() *cobra.Command {
	var (
		raw    bool
		reveal bool
		asJSON bool
	)

	cmd := &cobra.Command{
		Use:   "show <id>",
		Short: "Show one history entry",
		Long: `Show a history entry by id. Sensitive entries are masked unless
--reveal is given, which unlocks the entry for the configured auth timeout.`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			client, err := newClient()
			if err != nil {
				return err
			}
			ctx, cancel := requestContext(cmd)
			defer cancel()

			id := args[0]
			if reveal {
				if _, err := client.Reveal(ctx, id); err != nil {
					return err
				}
			}
			item, err := client.Get(ctx, id)
			if err != nil {
				return err
			}

			out := cmd.OutOrStdout()
			switch {
			case asJSON:
				enc := json.NewEncoder(out)
				enc.SetIndent("", "  ")
				return enc.Encode(item)
			case raw:
				if item.Content != nil {
					_, err = io.WriteString(out, *item.Content)
				} else {
					_, err = io.WriteString(out, item.DisplayText())
				}
				return err
			}

			f := formatter(false)
			fmt.Fprintln(out, f.FormatItem(item))
			return nil
		},
	}

	cmd.Flags().BoolVar(&raw, "raw", false, "output raw content without metadata")
	cmd.Flags().BoolVar(&reveal, "reveal", false, "unlock a sensitive entry before showing it")
	cmd.Flags().BoolVar(&asJSON, "json", false, "output in JSON format")
	return cmd
}

func newHistoryAddCmd() *cobra.Command {
	var (
		itemType  string
		source    string
		pin       bool
		sensitive string
	)

	cmd := &cobra.Command{
		Use:   "add [content]",
		Short: "Add a text or URL entry",
		Long: `Add an entry to the history without touching the clipboard. Reads
the content from stdin when no argument is given.`,
		Args: cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			var content string
			if len(args) == 1 {
				content = args[0]
			} else {
				data, err := io.ReadAll(cmd.InOrStdin())
				if err != nil {
					return fmt.Errorf("failed to read stdin: %w", err)
				}
				content = strings.TrimSuffix(string(data), "\n")
			}

			req := apiclient.NewItem{
				Content:       content,
				Type:          itemType,
				SourceAppName: source,
				IsPinned:      pin,
			}
			switch sensitive {
			case "", "auto":
			case "true", "yes":
				v := true
				req.IsSensitive = &v
			case "false", "no":
				v := false
				req.IsSensitive = &v
			default:
				return fmt.Errorf("invalid --sensitive value %q: want auto, true or false", sensitive)
			}

			client, err := newClient()
			if err != nil {
				return err
			}
			ctx, cancel := requestContext(cmd)
			defer cancel()

			created, err := client.Create(ctx, req)
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "✓ Added %s entry %s\n", created.Type, created.ID)
			return nil
		},
	}

	cmd.Flags().StringVarP(&itemType, "type", "t", "text", "entry type (text or url)")
	cmd.Flags().StringVar(&source, "source", "", "source application name")
	cmd.Flags().BoolVar(&pin, "pin", false, "pin the new entry")
	cmd.Flags().StringVar(&sensitive, "sensitive", "auto", "mark as sensitive (auto, true, false)")
	return cmd
}

func newHistoryPinCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "pin <id>",
		Short: "Toggle the pin flag of an entry",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			client, err := newClient()
			if err != nil {
				return err
			}
			ctx, cancel := requestContext(cmd)
			defer cancel()

			pinned, err := client.TogglePin(ctx, args[0])
			if err != nil {
				return err
			}
			state := "unpinned"
			if pinned {
				state = "pinned"
			}
			fmt.Fprintf(cmd.OutOrStdout(), "✓ Entry %s %s\n", args[0], state)
			return nil
		},
	}
}

func newHistoryDeleteCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "delete <id>...",
		Short: "Delete history entries",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			client, err := newClient()
			if err != nil {
				return err
			}
			ctx, cancel := requestContext(cmd)
			defer cancel()

			deleted := 0
			for _, id := range args {
				if err := client.Delete(ctx, id); err != nil {
					return fmt.Errorf("failed to delete %s: %w", id, err)
				}
				deleted++
			}
			fmt.Fprintf(cmd.OutOrStdout(), "✓ Deleted %d entries\n", deleted)
			return nil
		},
	}
}

func newHistoryCopyCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "copy <id>",
		Short: "Put an entry back on the clipboard",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			client, err := newClient()
			if err != nil {
				return err
			}
			ctx, cancel := requestContext(cmd)
			defer cancel()

			if err := client.Copy(ctx, args[0]); err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), "✓ Copied to clipboard")
			return nil
		},
	}
}

func newHistoryPasteCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "paste [id]",
		Short: "Paste an entry, or the current clipboard, into the focused app",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			client, err := newClient()
			if err != nil {
				return err
			}
			ctx, cancel := requestContext(cmd)
			defer cancel()

			var res *apiclient.PasteResult
			if len(args) == 1 {
				res, err = client.Paste(ctx, args[0])
			} else {
				res, err = client.PasteCurrent(ctx)
			}
			if err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), res.Message)
			return nil
		},
	}
}

func newHistoryScreenshotsCmd() *cobra.Command {
	var save string

	cmd := &cobra.Command{
		Use:   "screenshots [id]",
		Short: "List image entries, or save one as PNG",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			client, err := newClient()
			if err != nil {
				return err
			}
			ctx, cancel := requestContext(cmd)
			defer cancel()

			if len(args) == 1 {
				if save == "" {
					save = args[0] + ".png"
				}
				png, err := client.ScreenshotImage(ctx, args[0])
				if err != nil {
					return err
				}
				if err := os.WriteFile(save, png, 0644); err != nil {
					return fmt.Errorf("failed to save image: %w", err)
				}
				fmt.Fprintf(cmd.OutOrStdout(), "✓ Saved %s\n", save)
				return nil
			}

			shots, err := client.Screenshots(ctx)
			if err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), formatter(false).FormatScreenshots(shots))
			return nil
		},
	}

	cmd.Flags().StringVarP(&save, "output", "o", "", "file to save the image to (default <id>.png)")
	return cmd
}

func filterItems(items []apiclient.Item, typeFilter string, pinnedOnly bool, limit int) []apiclient.Item {
	out := items[:0:0]
	for _, item := range items {
		if typeFilter != "" && !strings.EqualFold(item.Type, typeFilter) {
			continue
		}
		if pinnedOnly && !item.IsPinned {
			continue
		}
		out = append(out, item)
		if limit > 0 && len(out) == limit {
			break
		}
	}
	return out
}

func printItems(out io.Writer, title string, items []apiclient.Item, compact, asJSON bool) error {
	if asJSON {
		if items == nil {
			items = []apiclient.Item{}
		}
		enc := json.NewEncoder(out)
		enc.SetIndent("", "  ")
		return enc.Encode(items)
	}
	fmt.Fprintln(out, formatter(compact).FormatItemList(title, items))
	return nil
}
