// Delivery-gate command: the single question downstream automation asks
// before shipping against a scope.
package main

import (
	"github.com/spf13/cobra"

	"lanea/internal/gate"
	"lanea/internal/types"
)

var (
	gateActor         string
	gateForceOverride bool
)

var gateCmd = &cobra.Command{
	Use:   "gate",
	Short: "Check whether delivery may proceed for a scope",
}

var gateCheckCmd = &cobra.Command{
	Use:   "check <scope>",
	Short: "Require confirmed sufficiency at the current knowledge version",
	Long: `Answers the delivery question for a scope. A repo scope may ride on
a system-level approval. --force-override lets delivery proceed anyway
and appends an audited sufficiency_override event to the lane ledger.`,
	Args: cobra.ExactArgs(1),
	RunE: runGateCheck,
}

func init() {
	gateCheckCmd.Flags().StringVar(&gateActor, "actor", "", "who is asking (audited on overrides)")
	gateCheckCmd.Flags().BoolVar(&gateForceOverride, "force-override", false,
		"proceed without confirmed sufficiency (audited)")
	gateCmd.AddCommand(gateCheckCmd)
	rootCmd.AddCommand(gateCmd)
}

func runGateCheck(cmd *cobra.Command, args []string) error {
	project, err := loadProject()
	if err != nil {
		return err
	}
	verdict, err := gate.New(project).RequireConfirmedSufficiency(
		cmd.Context(), args[0], gateActor, gateForceOverride)
	if err != nil {
		return err
	}
	if err := printJSON(verdict); err != nil {
		return err
	}
	if !verdict.OK {
		return emit(types.Refuse(types.ReasonGateRefused, "%s", verdict.Message))
	}
	return nil
}
