// Work-status commands: checkpoint per-work-item progress through the
// closed stage sequence.
package main

import (
	"strings"

	"github.com/spf13/cobra"

	"lanea/internal/types"
	"lanea/internal/workstatus"
)

var (
	workStage          string
	workNote           string
	workBlocked        bool
	workBlockingReason string
	workArtifacts      []string
	workRepos          []string
)

var workCmd = &cobra.Command{
	Use:   "work",
	Short: "Checkpoint and inspect work-item status",
}

var workUpdateCmd = &cobra.Command{
	Use:   "update <work-id>",
	Short: "Merge a status update into the work item's snapshot",
	Long: `Applies one read-modify-write update. The stage must belong to the
closed stage set; unmentioned artifacts and repo states persist. Every
update rewrites STATUS.json and STATUS.md and pushes the prior snapshot
onto status-history.json.`,
	Args: cobra.ExactArgs(1),
	RunE: runWorkUpdate,
}

var workShowCmd = &cobra.Command{
	Use:   "show <work-id>",
	Short: "Print the work item's current snapshot",
	Args:  cobra.ExactArgs(1),
	RunE:  runWorkShow,
}

func init() {
	workUpdateCmd.Flags().StringVar(&workStage, "stage", "", "current stage (required)")
	workUpdateCmd.Flags().StringVar(&workNote, "note", "", "history note for a stage change")
	workUpdateCmd.Flags().BoolVar(&workBlocked, "blocked", false, "mark the work item blocked")
	workUpdateCmd.Flags().StringVar(&workBlockingReason, "blocking-reason", "", "why the work is blocked")
	workUpdateCmd.Flags().StringArrayVar(&workArtifacts, "artifact", nil,
		"artifact as <name>=<path> (repeatable)")
	workUpdateCmd.Flags().StringArrayVar(&workRepos, "repo", nil,
		"per-repo state as <repo-id>=<stage> (repeatable)")
	workCmd.AddCommand(workUpdateCmd)
	workCmd.AddCommand(workShowCmd)
	rootCmd.AddCommand(workCmd)
}

func runWorkUpdate(cmd *cobra.Command, args []string) error {
	if workStage == "" {
		return emit(types.Refuse(types.ReasonInvalidInput, "--stage is required"))
	}

	up := workstatus.Update{
		Stage:          workStage,
		Note:           workNote,
		Blocked:        workBlocked,
		BlockingReason: workBlockingReason,
	}
	for _, pair := range workArtifacts {
		name, path, found := strings.Cut(pair, "=")
		if !found || name == "" {
			return emit(types.Refuse(types.ReasonInvalidInput,
				"--artifact expects <name>=<path>, got %q", pair))
		}
		if up.Artifacts == nil {
			up.Artifacts = map[string]string{}
		}
		up.Artifacts[name] = path
	}
	for _, pair := range workRepos {
		repoID, stage, found := strings.Cut(pair, "=")
		if !found || repoID == "" {
			return emit(types.Refuse(types.ReasonInvalidInput,
				"--repo expects <repo-id>=<stage>, got %q", pair))
		}
		if up.Repos == nil {
			up.Repos = map[string]types.WorkRepoState{}
		}
		up.Repos[repoID] = types.WorkRepoState{Stage: stage}
	}

	project, err := loadProject()
	if err != nil {
		return err
	}
	status, err := workstatus.NewStore(project.Paths).Apply(args[0], up)
	if err != nil {
		return err
	}
	return printJSON(status)
}

func runWorkShow(cmd *cobra.Command, args []string) error {
	project, err := loadProject()
	if err != nil {
		return err
	}
	status, err := workstatus.NewStore(project.Paths).Get(args[0])
	if err != nil {
		return err
	}
	if status == nil {
		return emit(types.Refuse(types.ReasonMissingInput, "no status for work item %s", args[0]))
	}
	return printJSON(status)
}
