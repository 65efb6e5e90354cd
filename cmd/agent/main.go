package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
)

var (
	configPath string
	dryRun     bool
)

var rootCmd = &cobra.Command{
	Use:   "agent",
	Short: "Autonomous posting and engagement agent",
	Long: `agent publishes generated short posts inside a daily posting window and
grows its audience: it follows authors of recent posts on configured topics,
thanks accounts that follow back, and unfollows those that do not within the
grace period.`,
	SilenceUsage: true,
}

func init() {
	rootCmd.PersistentFlags().StringVarP(&configPath, "config", "c", "", "Config file (default: ./config.yaml or ./config/config.yaml)")

	runCmd.Flags().BoolVar(&dryRun, "dry-run", false, "Log platform writes instead of performing them")
	onceCmd.Flags().BoolVar(&dryRun, "dry-run", false, "Log platform writes instead of performing them")

	rootCmd.AddCommand(runCmd)
	rootCmd.AddCommand(onceCmd)
	rootCmd.AddCommand(followedCmd)
	rootCmd.AddCommand(purgeCmd)
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}
