package cli

import (
	"encoding/json"
	"fmt"

	"github.com/dustin/go-humanize"
	"github.com/spf13/cobra"

	"github.com/lazypower/muza/internal/engine"
)

var (
	networkVisual bool
	networkMax    int
)

var statsCmd = &cobra.Command{
	Use:   "stats",
	Short: "Show graph statistics",
	RunE: func(cmd *cobra.Command, args []string) error {
		b, err := openBackend(cmd.Context())
		if err != nil {
			return err
		}
		defer b.Close()

		s, err := b.Stats()
		if err != nil {
			return fmt.Errorf("stats: %w", err)
		}
		out := cmd.OutOrStdout()
		fmt.Fprintf(out, "concepts:      %s\n", humanize.Comma(int64(s.Nodes)))
		fmt.Fprintf(out, "synapses:      %s\n", humanize.Comma(int64(s.Synapses)))
		fmt.Fprintf(out, "crystallized:  %s\n", humanize.Comma(int64(s.Crystallized)))
		fmt.Fprintf(out, "coherence:     %s\n", humanize.FtoaWithDigits(s.Coherence, 2))
		return nil
	},
}

var networkCmd = &cobra.Command{
	Use:   "network",
	Short: "Dump the graph as JSON nodes and links",
	RunE: func(cmd *cobra.Command, args []string) error {
		b, err := openBackend(cmd.Context())
		if err != nil {
			return err
		}
		defer b.Close()

		var v any
		if networkVisual {
			v, err = b.VisualNetwork(networkMax)
		} else {
			v, err = b.Network()
		}
		if err != nil {
			return fmt.Errorf("network: %w", err)
		}

		enc := json.NewEncoder(cmd.OutOrStdout())
		enc.SetIndent("", "  ")
		return enc.Encode(v)
	},
}

func init() {
	networkCmd.Flags().BoolVar(&networkVisual, "visual", false, "Only the most energetic nodes and the links between them")
	networkCmd.Flags().IntVar(&networkMax, "max", engine.DefaultVisualNodes, "Node cap for --visual")
}
