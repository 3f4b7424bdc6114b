package cli

import (
	"fmt"
	"strings"

	"github.com/dustin/go-humanize"
	"github.com/dustin/go-humanize/english"
	"github.com/spf13/cobra"

	"github.com/lazypower/muza/internal/engine"
	"github.com/lazypower/muza/internal/server"
)

var (
	learnImportance float64
	learnCharge     float64
	inputSource     string
	generateLength  int
	evolveTimes     int
)

var learnCmd = &cobra.Command{
	Use:   "learn <text>",
	Short: "Feed text into the graph",
	Args:  cobra.MinimumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		if learnImportance < 0 || learnImportance > 1 || learnCharge < 0 || learnCharge > 1 {
			return fmt.Errorf("--importance and --charge must be within [0, 1]")
		}
		b, err := openBackend(cmd.Context())
		if err != nil {
			return err
		}
		defer b.Close()

		stats, err := b.Learn(strings.Join(args, " "), learnImportance, learnCharge)
		if err != nil {
			return fmt.Errorf("learn: %w", err)
		}
		printStatsLine(cmd, "learned", stats)
		return nil
	},
}

var inputCmd = &cobra.Command{
	Use:   "input <text>",
	Short: "Process conversational text",
	Args:  cobra.MinimumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		source := engine.Source(inputSource)
		if source != engine.SourceUser && source != engine.SourceAI {
			return fmt.Errorf("--source must be %q or %q", engine.SourceUser, engine.SourceAI)
		}
		b, err := openBackend(cmd.Context())
		if err != nil {
			return err
		}
		defer b.Close()

		stats, err := b.Input(strings.Join(args, " "), source)
		if err != nil {
			return fmt.Errorf("input: %w", err)
		}
		printStatsLine(cmd, "processed", stats)
		return nil
	},
}

var generateCmd = &cobra.Command{
	Use:   "generate [seed]",
	Short: "Walk the strongest associations from a seed",
	RunE: func(cmd *cobra.Command, args []string) error {
		if generateLength < 1 || generateLength > server.MaxGenerateLength {
			return fmt.Errorf("--length must be between 1 and %d", server.MaxGenerateLength)
		}
		b, err := openBackend(cmd.Context())
		if err != nil {
			return err
		}
		defer b.Close()

		text, err := b.Generate(strings.Join(args, " "), generateLength)
		if err != nil {
			return fmt.Errorf("generate: %w", err)
		}
		fmt.Fprintln(cmd.OutOrStdout(), text)
		return nil
	},
}

var reflectCmd = &cobra.Command{
	Use:   "reflect",
	Short: "Let the graph produce a thought on its own",
	RunE: func(cmd *cobra.Command, args []string) error {
		b, err := openBackend(cmd.Context())
		if err != nil {
			return err
		}
		defer b.Close()

		r, ok, err := b.Reflect()
		if err != nil {
			return fmt.Errorf("reflect: %w", err)
		}
		if !ok {
			fmt.Fprintf(cmd.OutOrStdout(), "not enough memory to reflect (need %d concepts)\n", engine.ReflectMinNodes)
			return nil
		}
		fmt.Fprintf(cmd.OutOrStdout(), "[%s] %s\n", r.Mood, r.Thought)
		return nil
	},
}

var evolveCmd = &cobra.Command{
	Use:   "evolve",
	Short: "Run decay passes",
	RunE: func(cmd *cobra.Command, args []string) error {
		if evolveTimes < 1 {
			return fmt.Errorf("--times must be positive")
		}
		b, err := openBackend(cmd.Context())
		if err != nil {
			return err
		}
		defer b.Close()

		var total engine.EvolveReport
		for i := 0; i < evolveTimes; i++ {
			rep, err := b.Evolve()
			if err != nil {
				return fmt.Errorf("evolve: %w", err)
			}
			total.Decayed += rep.Decayed
			total.Pruned += rep.Pruned
			total.Remaining = rep.Remaining
		}
		fmt.Fprintf(cmd.OutOrStdout(), "evolved %s: pruned %s, %s remaining\n",
			english.Plural(evolveTimes, "pass", "passes"),
			humanize.Comma(int64(total.Pruned)),
			humanize.Comma(int64(total.Remaining)))
		return nil
	},
}

func printStatsLine(cmd *cobra.Command, verb string, s engine.Stats) {
	fmt.Fprintf(cmd.OutOrStdout(), "%s: %s concepts, %s synapses\n",
		verb, humanize.Comma(int64(s.Nodes)), humanize.Comma(int64(s.Synapses)))
}

func init() {
	learnCmd.Flags().Float64Var(&learnImportance, "importance", engine.DefaultImportance, "Importance of every new concept")
	learnCmd.Flags().Float64Var(&learnCharge, "charge", engine.DefaultCharge, "Emotional charge of every new concept")

	inputCmd.Flags().StringVarP(&inputSource, "source", "s", string(engine.SourceUser), "Who said it: user or ai")

	generateCmd.Flags().IntVarP(&generateLength, "length", "n", engine.DefaultGenerateLength, "Maximum number of steps")

	evolveCmd.Flags().IntVar(&evolveTimes, "times", 1, "Number of decay passes")
}
