// Change-request commands: file and list the requests that update
// meetings bind and process.
package main

import (
	"github.com/spf13/cobra"

	"lanea/internal/changereq"
	"lanea/internal/types"
)

var (
	crType     string
	crTitle    string
	crSeverity string
	crScope    string
	crStatus   string
)

var changeReqCmd = &cobra.Command{
	Use:   "change-request",
	Short: "File and list change requests",
	Long: `Change requests queue work for update meetings. A meeting binds the
oldest open requests for its scope (at most 10) when it starts; closing
with approve_intake marks them processed, aborting releases them.`,
}

var changeReqFileCmd = &cobra.Command{
	Use:   "file",
	Short: "File a new change request",
	RunE:  runChangeReqFile,
}

var changeReqListCmd = &cobra.Command{
	Use:   "list",
	Short: "List change requests, oldest first",
	RunE:  runChangeReqList,
}

func init() {
	changeReqFileCmd.Flags().StringVar(&crType, "type", "", "request type (required)")
	changeReqFileCmd.Flags().StringVar(&crTitle, "title", "", "one-line title (required)")
	changeReqFileCmd.Flags().StringVar(&crSeverity, "severity", "medium", "low | medium | high")
	changeReqFileCmd.Flags().StringVar(&crScope, "scope", types.ScopeSystem, "target scope")
	changeReqListCmd.Flags().StringVar(&crStatus, "status", "", "filter by status (open, in_meeting, processed)")
	changeReqListCmd.Flags().StringVar(&crScope, "scope", "", "filter by scope")
	changeReqCmd.AddCommand(changeReqFileCmd)
	changeReqCmd.AddCommand(changeReqListCmd)
	rootCmd.AddCommand(changeReqCmd)
}

func runChangeReqFile(cmd *cobra.Command, args []string) error {
	if crType == "" || crTitle == "" {
		return emit(types.Refuse(types.ReasonInvalidInput, "--type and --title are required"))
	}
	project, err := loadProject()
	if err != nil {
		return err
	}
	cr, err := changereq.NewStore(project.Paths).Create(crType, crTitle, crSeverity, crScope)
	if err != nil {
		return err
	}
	return printJSON(cr)
}

func runChangeReqList(cmd *cobra.Command, args []string) error {
	project, err := loadProject()
	if err != nil {
		return err
	}
	list, err := changereq.NewStore(project.Paths).List(crStatus, crScope)
	if err != nil {
		return err
	}
	return printJSON(list)
}
