package cmd

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"text/tabwriter"
	"time"

	"github.com/spf13/cobra"

	"vigil/internal/httputil"
	"vigil/internal/media"
	"vigil/internal/ui"
)

var (
	flagJSON     bool
	flagClearAll bool
)

var progressCmd = &cobra.Command{
	Use:   "progress",
	Short: "Inspect and clear saved resume points",
}

var progressListCmd = &cobra.Command{
	Use:   "list",
	Short: "List saved resume points",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		store, closeStore, err := openStore()
		if err != nil {
			return err
		}
		defer closeStore()

		records := store.List()
		if flagJSON {
			if records == nil {
				records = []media.ProgressRecord{}
			}
			enc := json.NewEncoder(os.Stdout)
			enc.SetIndent("", "  ")
			return enc.Encode(records)
		}
		if len(records) == 0 {
			fmt.Println("No saved progress.")
			return nil
		}
		w := tabwriter.NewWriter(os.Stdout, 0, 4, 2, ' ', 0)
		fmt.Fprintln(w, "SET\tINDEX\tSAVED")
		for _, r := range records {
			fmt.Fprintf(w, "%s\t%d\t%s\n", r.SetID, r.Index, savedAt(r))
		}
		return w.Flush()
	},
}

var progressShowCmd = &cobra.Command{
	Use:   "show <set>",
	Short: "Show the resume point of one set",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		if err := httputil.ValidateID(args[0]); err != nil {
			return err
		}
		store, closeStore, err := openStore()
		if err != nil {
			return err
		}
		defer closeStore()

		r, ok := store.Load(args[0])
		if !ok {
			return fmt.Errorf("no saved progress for %q", args[0])
		}
		fmt.Printf("%s: segment %d (saved %s)\n", r.SetID, r.Index, savedAt(r))
		return nil
	},
}

var progressClearCmd = &cobra.Command{
	Use:   "clear [set]",
	Short: "Clear saved resume points",
	Long: `Clear removes the resume point of the named set. Without a set it lets
you pick one with fzf; --all removes every resume point after confirmation.`,
	Args: cobra.MaximumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		store, closeStore, err := openStore()
		if err != nil {
			return err
		}
		defer closeStore()

		if flagClearAll {
			records := store.List()
			if len(records) == 0 {
				fmt.Println("No saved progress.")
				return nil
			}
			ok, err := ui.Confirm(fmt.Sprintf("Clear %d resume points?", len(records)))
			if err != nil {
				return err
			}
			if !ok {
				return nil
			}
			for _, r := range records {
				store.Clear(r.SetID)
			}
			fmt.Printf("Cleared %d resume points.\n", len(records))
			return nil
		}

		var setID string
		if len(args) == 1 {
			setID = args[0]
			if err := httputil.ValidateID(setID); err != nil {
				return err
			}
		} else {
			records := store.List()
			if len(records) == 0 {
				fmt.Println("No saved progress.")
				return nil
			}
			lines := make([]string, len(records))
			for i, r := range records {
				lines[i] = fmt.Sprintf("%-24s %5d  %s", r.SetID, r.Index, savedAt(r))
			}
			picker := ui.Picker{
				Prompt: "Clear",
				Header: fmt.Sprintf("%-24s %5s  %s", "SET", "INDEX", "SAVED"),
			}
			idx, err := picker.Pick(lines)
			if errors.Is(err, ui.ErrCancelled) {
				return nil
			}
			if err != nil {
				return err
			}
			setID = records[idx].SetID
		}

		store.Clear(setID)
		debugf("cleared progress for %s", setID)
		fmt.Printf("Cleared %s.\n", setID)
		return nil
	},
}

func init() {
	progressListCmd.Flags().BoolVar(&flagJSON, "json", false, "Print records as JSON")
	progressClearCmd.Flags().BoolVar(&flagClearAll, "all", false, "Clear every resume point")

	progressCmd.AddCommand(progressListCmd)
	progressCmd.AddCommand(progressShowCmd)
	progressCmd.AddCommand(progressClearCmd)
}

func savedAt(r media.ProgressRecord) string {
	return time.UnixMilli(r.SavedAt).Local().Format("2006-01-02 15:04")
}
