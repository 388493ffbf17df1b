package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
)

var version = "dev"

var noColor bool

var rootCmd = &cobra.Command{
	Use:   "debrief",
	Short: "Local meeting assistant: summaries, follow-up emails, contract tracking",
	Long: `debrief turns meeting transcripts into summaries, follow-up emails, and
contract ledger entries using a locally hosted model. Drop transcripts named
{ClientName}_{YYYYMMDD}.txt (or .pdf) into the transcripts directory and run
"debrief process", or keep "debrief serve" running to process them as they
arrive.`,
	SilenceUsage:  true,
	SilenceErrors: true,
}

var versionCmd = &cobra.Command{
	Use:   "version",
	Short: "Print the debrief version",
	Run: func(cmd *cobra.Command, args []string) {
		fmt.Printf("debrief version %s\n", version)
	},
}

func init() {
	rootCmd.PersistentFlags().BoolVar(&noColor, "no-color", false, "disable colorized output")

	rootCmd.AddCommand(versionCmd)
	rootCmd.AddCommand(processCmd)
	rootCmd.AddCommand(transcriptsCmd)
	rootCmd.AddCommand(contractsCmd)
	rootCmd.AddCommand(analyticsCmd)
	rootCmd.AddCommand(runsCmd)
	rootCmd.AddCommand(configCmd)
	rootCmd.AddCommand(serveCmd)
	rootCmd.AddCommand(statusCmd)
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		printError("%v", err)
		os.Exit(1)
	}
}
