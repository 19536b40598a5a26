// Sufficiency commands: the human-approval ledger over knowledge
// versions. Propose is automated; approve and reject record who decided.
package main

import (
	"github.com/spf13/cobra"

	"lanea/internal/knowledge"
	"lanea/internal/sufficiency"
	"lanea/internal/types"
)

var (
	sufficiencyBy    string
	sufficiencyNotes string
)

var sufficiencyCmd = &cobra.Command{
	Use:   "sufficiency",
	Short: "Propose, approve, or reject knowledge sufficiency for a scope",
}

var sufficiencyProposeCmd = &cobra.Command{
	Use:   "propose <scope>",
	Short: "Propose sufficiency at the current knowledge version",
	Args:  cobra.ExactArgs(1),
	RunE:  runSufficiencyPropose,
}

var sufficiencyApproveCmd = &cobra.Command{
	Use:   "approve <scope>",
	Short: "Approve a proposed sufficiency record",
	Args:  cobra.ExactArgs(1),
	RunE:  runSufficiencyApprove,
}

var sufficiencyRejectCmd = &cobra.Command{
	Use:   "reject <scope>",
	Short: "Reject a proposed sufficiency record",
	Args:  cobra.ExactArgs(1),
	RunE:  runSufficiencyReject,
}

var sufficiencyCurrentCmd = &cobra.Command{
	Use:   "current <scope>",
	Short: "Print the scope's current sufficiency record",
	Args:  cobra.ExactArgs(1),
	RunE:  runSufficiencyCurrent,
}

func init() {
	sufficiencyCmd.PersistentFlags().StringVar(&sufficiencyBy, "by", "", "who is deciding")
	sufficiencyCmd.PersistentFlags().StringVar(&sufficiencyNotes, "notes", "", "decision notes")
	sufficiencyCmd.AddCommand(sufficiencyProposeCmd)
	sufficiencyCmd.AddCommand(sufficiencyApproveCmd)
	sufficiencyCmd.AddCommand(sufficiencyRejectCmd)
	sufficiencyCmd.AddCommand(sufficiencyCurrentCmd)
	rootCmd.AddCommand(sufficiencyCmd)
}

func newLedger() (*sufficiency.Ledger, string, error) {
	project, err := loadProject()
	if err != nil {
		return nil, "", err
	}
	version := knowledge.NewVersions(project.Paths).Current()
	return sufficiency.New(project), version, nil
}

func runSufficiencyPropose(cmd *cobra.Command, args []string) error {
	ledger, version, err := newLedger()
	if err != nil {
		return err
	}
	result, err := ledger.Propose(cmd.Context(), args[0], version)
	if err != nil {
		return err
	}
	return emit(result)
}

func runSufficiencyApprove(cmd *cobra.Command, args []string) error {
	if sufficiencyBy == "" {
		return emit(types.Refuse(types.ReasonInvalidInput, "--by is required for approve"))
	}
	ledger, version, err := newLedger()
	if err != nil {
		return err
	}
	result, err := ledger.Approve(cmd.Context(), args[0], version, sufficiencyBy)
	if err != nil {
		return err
	}
	return emit(result)
}

func runSufficiencyReject(cmd *cobra.Command, args []string) error {
	if sufficiencyBy == "" {
		return emit(types.Refuse(types.ReasonInvalidInput, "--by is required for reject"))
	}
	ledger, version, err := newLedger()
	if err != nil {
		return err
	}
	result, err := ledger.Reject(cmd.Context(), args[0], version, sufficiencyBy, sufficiencyNotes)
	if err != nil {
		return err
	}
	return emit(result)
}

func runSufficiencyCurrent(cmd *cobra.Command, args []string) error {
	ledger, _, err := newLedger()
	if err != nil {
		return err
	}
	record, err := ledger.Current(args[0])
	if err != nil {
		return err
	}
	if record == nil {
		return emit(types.Refuse(types.ReasonMissingInput, "no sufficiency record for %s", args[0]))
	}
	return printJSON(record)
}
