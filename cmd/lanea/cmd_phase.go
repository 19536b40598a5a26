// Phase commands: the reverse/forward lifecycle. Forward kickoff refuses
// until scan coverage, sufficiency, and the human v1 confirmation hold.
package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"lanea/internal/phase"
	"lanea/internal/types"
)

var (
	phaseSession string
	phaseBy      string
	phaseNotes   string
)

var phaseCmd = &cobra.Command{
	Use:   "phase",
	Short: "Drive the reverse/forward project lifecycle",
}

var phaseKickoffCmd = &cobra.Command{
	Use:   "kickoff <reverse|forward>",
	Short: "Start a phase",
	Long: `Starts the named phase. Reverse opens unconditionally; forward
checks its prerequisites and writes FORWARD_BLOCKED.json naming every
unmet one when it refuses.`,
	Args: cobra.ExactArgs(1),
	RunE: runPhaseKickoff,
}

var phaseConfirmV1Cmd = &cobra.Command{
	Use:   "confirm-v1",
	Short: "Record the human v1 confirmation prerequisite",
	RunE:  runPhaseConfirmV1,
}

var phaseCloseCmd = &cobra.Command{
	Use:   "close <reverse|forward>",
	Short: "Close a phase",
	Args:  cobra.ExactArgs(1),
	RunE:  runPhaseClose,
}

var phaseStatusCmd = &cobra.Command{
	Use:   "status",
	Short: "Print the phase state with freshly derived prereqs",
	RunE:  runPhaseStatus,
}

func init() {
	phaseKickoffCmd.Flags().StringVar(&phaseSession, "session", "", "session id to stamp on the phase")
	phaseConfirmV1Cmd.Flags().StringVar(&phaseBy, "by", "", "who confirms")
	phaseConfirmV1Cmd.Flags().StringVar(&phaseNotes, "notes", "", "confirmation notes")
	phaseCloseCmd.Flags().StringVar(&phaseBy, "by", "", "who closes")
	phaseCmd.AddCommand(phaseKickoffCmd)
	phaseCmd.AddCommand(phaseConfirmV1Cmd)
	phaseCmd.AddCommand(phaseCloseCmd)
	phaseCmd.AddCommand(phaseStatusCmd)
	rootCmd.AddCommand(phaseCmd)
}

func newMachine() (*phase.Machine, error) {
	project, err := loadProject()
	if err != nil {
		return nil, err
	}
	return phase.New(project), nil
}

func runPhaseKickoff(cmd *cobra.Command, args []string) error {
	machine, err := newMachine()
	if err != nil {
		return err
	}
	switch args[0] {
	case types.PhaseReverse:
		result, err := machine.KickoffReverse(phaseSession)
		if err != nil {
			return err
		}
		return emit(result)
	case types.PhaseForward:
		result, unmet, err := machine.KickoffForward(cmd.Context(), phaseSession)
		if err != nil {
			return err
		}
		for _, reason := range unmet {
			fmt.Println("  unmet:", reason)
		}
		return emit(result)
	default:
		return emit(types.Refuse(types.ReasonInvalidInput, "unknown phase %q", args[0]))
	}
}

func runPhaseConfirmV1(cmd *cobra.Command, args []string) error {
	if phaseBy == "" {
		return emit(types.Refuse(types.ReasonInvalidInput, "--by is required for confirm-v1"))
	}
	machine, err := newMachine()
	if err != nil {
		return err
	}
	result, err := machine.ConfirmV1(cmd.Context(), phaseBy, phaseNotes)
	if err != nil {
		return err
	}
	return emit(result)
}

func runPhaseClose(cmd *cobra.Command, args []string) error {
	machine, err := newMachine()
	if err != nil {
		return err
	}
	result, err := machine.Close(args[0], phaseBy)
	if err != nil {
		return err
	}
	return emit(result)
}

func runPhaseStatus(cmd *cobra.Command, args []string) error {
	machine, err := newMachine()
	if err != nil {
		return err
	}
	state, err := machine.RefreshPrereqs(cmd.Context())
	if err != nil {
		return err
	}
	return printJSON(state)
}
