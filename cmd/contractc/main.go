package main

import (
	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"
)

var version = "dev"

var rootCmd = &cobra.Command{
	Use:   "contractc",
	Short: "contractc is the smart-contract compiler CLI",
	Long: `contractc drives the contract compiler in protocol/contractc.

Turning contract source text into an AST is an external parser's job
(spec §6 Inputs); this CLI consumes ASTs built by Go callers, not
source files. Its "demo" subcommand exercises the full pipeline end to
end against a small set of built-in scenarios, useful for sanity
checking a build without writing a Go program against the package.`,
	Args: cobra.ExactArgs(0),
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		log.Fatal().Err(err).Msg("contractc failed")
	}
}

func init() {
	rootCmd.AddCommand(versionCmd)
	rootCmd.AddCommand(demoCmd)

	demoCmd.Flags().Int("loop-unrolling-limit", 0, "loop_unrolling_limit config option (0 = unbounded)")
}

var versionCmd = &cobra.Command{
	Use:   "version",
	Short: "Print the contractc version",
	Args:  cobra.ExactArgs(0),
	RunE: func(cmd *cobra.Command, args []string) error {
		cmd.Println(version)
		return nil
	},
}
