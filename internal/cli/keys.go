package cli

import (
	"fmt"
	"time"

	"github.com/dustin/go-humanize"
	"github.com/spf13/cobra"

	"github.com/lazypower/muza/internal/client"
	"github.com/lazypower/muza/internal/store"
)

var resetKey string

var keysCmd = &cobra.Command{
	Use:   "keys",
	Short: "List stored graph keys",
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := loadConfig()
		if err != nil {
			return err
		}
		kv, _, err := store.OpenFromConfig(cmd.Context(), cfg.Database)
		if err != nil {
			return err
		}
		defer kv.Close()

		entries, err := kv.Keys()
		if err != nil {
			return fmt.Errorf("list keys: %w", err)
		}
		out := cmd.OutOrStdout()
		for _, e := range entries {
			marker := " "
			if e.Key == cfg.Graph.StorageKey {
				marker = "*"
			}
			fmt.Fprintf(out, "%s %-28s %10s  %s\n", marker, e.Key,
				humanize.Bytes(uint64(e.Size)),
				humanize.Time(time.UnixMilli(e.UpdatedAt)))
		}
		return nil
	},
}

var resetCmd = &cobra.Command{
	Use:   "reset",
	Short: "Delete a stored graph",
	Long: "Delete the graph stored under --key (default: the configured storage key). " +
		"The next start seeds a fresh graph.",
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := loadConfig()
		if err != nil {
			return err
		}
		key := resetKey
		if key == "" {
			key = cfg.Graph.StorageKey
		}
		// A running server would write its in-memory graph straight back.
		if key == cfg.Graph.StorageKey {
			if c := client.New("http://" + cfg.ListenAddr()); c.Healthy() {
				return fmt.Errorf("server at %s is using %q; stop it first", c.URL(), key)
			}
		}

		kv, _, err := store.OpenFromConfig(cmd.Context(), cfg.Database)
		if err != nil {
			return err
		}
		defer kv.Close()

		if err := kv.Delete(key); err != nil {
			return fmt.Errorf("reset %s: %w", key, err)
		}
		fmt.Fprintf(cmd.OutOrStdout(), "deleted %s\n", key)
		return nil
	},
}

func init() {
	resetCmd.Flags().StringVar(&resetKey, "key", "", "Storage key to delete")
}
