// Staleness commands: evaluate a scope's freshness and append rolling
// observations.
package main

import (
	"github.com/spf13/cobra"

	"lanea/internal/staleness"
)

var stalenessCmd = &cobra.Command{
	Use:   "staleness",
	Short: "Evaluate scope freshness against git heads and merge events",
}

var stalenessEvalCmd = &cobra.Command{
	Use:   "eval <scope>",
	Short: "Evaluate a scope (repo:<id> or system) and print the snapshot",
	Long: `Compares each repo's recorded scan against the current git HEAD and
the merge-event segments, then prints the snapshot:

  fresh       scan matches HEAD, no later merge events
  soft_stale  drift detected, within the hard threshold
  hard_stale  drift older than the threshold (default 30m)`,
	Args: cobra.ExactArgs(1),
	RunE: runStalenessEval,
}

var stalenessObserveCmd = &cobra.Command{
	Use:   "observe <scope>",
	Short: "Evaluate a scope and append the result to its observation record",
	Args:  cobra.ExactArgs(1),
	RunE:  runStalenessObserve,
}

func init() {
	stalenessCmd.AddCommand(stalenessEvalCmd)
	stalenessCmd.AddCommand(stalenessObserveCmd)
	rootCmd.AddCommand(stalenessCmd)
}

func runStalenessEval(cmd *cobra.Command, args []string) error {
	project, err := loadProject()
	if err != nil {
		return err
	}
	snapshot, err := staleness.New(project).EvaluateScope(cmd.Context(), args[0])
	if err != nil {
		return err
	}
	return printJSON(snapshot)
}

func runStalenessObserve(cmd *cobra.Command, args []string) error {
	project, err := loadProject()
	if err != nil {
		return err
	}
	engine := staleness.New(project)
	snapshot, err := engine.EvaluateScope(cmd.Context(), args[0])
	if err != nil {
		return err
	}
	obs, err := engine.Observe(snapshot)
	if err != nil {
		return err
	}
	return printJSON(obs)
}
