package cli

import (
	"github.com/spf13/cobra"
)

var (
	configPath string
	localOnly  bool
)

var rootCmd = &cobra.Command{
	Use:   "muza",
	Short: "Associative memory core",
	Long: "Muza learns word associations from text, lets them decay over time and " +
		"generates phrases by walking the strongest links. Commands talk to a running " +
		"server when one is reachable and open the store directly otherwise.",
	SilenceUsage: true,
}

func Execute() error {
	return rootCmd.Execute()
}

func init() {
	rootCmd.PersistentFlags().StringVar(&configPath, "config", defaultConfigPath(), "Path to the YAML config file")
	rootCmd.PersistentFlags().BoolVar(&localOnly, "local", false, "Open the store directly even if a server is running")

	rootCmd.AddCommand(versionCmd)
	rootCmd.AddCommand(serveCmd)
	rootCmd.AddCommand(learnCmd)
	rootCmd.AddCommand(inputCmd)
	rootCmd.AddCommand(generateCmd)
	rootCmd.AddCommand(reflectCmd)
	rootCmd.AddCommand(evolveCmd)
	rootCmd.AddCommand(statsCmd)
	rootCmd.AddCommand(networkCmd)
	rootCmd.AddCommand(chatCmd)
	rootCmd.AddCommand(keysCmd)
	rootCmd.AddCommand(resetCmd)
}
