// Knowledge commands: the current knowledge version and a per-repo
// coverage summary.
package main

import (
	"github.com/spf13/cobra"

	"lanea/internal/contract"
	"lanea/internal/knowledge"
	"lanea/internal/staleness"
)

var knowledgeCmd = &cobra.Command{
	Use:   "knowledge",
	Short: "Inspect the knowledge store",
}

var knowledgeVersionCmd = &cobra.Command{
	Use:   "version",
	Short: "Print the current knowledge version",
	RunE:  runKnowledgeVersion,
}

var knowledgeStatusCmd = &cobra.Command{
	Use:   "status",
	Short: "Summarize scan coverage and freshness across active repos",
	RunE:  runKnowledgeStatus,
}

func init() {
	knowledgeCmd.AddCommand(knowledgeVersionCmd)
	knowledgeCmd.AddCommand(knowledgeStatusCmd)
	rootCmd.AddCommand(knowledgeCmd)
}

func runKnowledgeVersion(cmd *cobra.Command, args []string) error {
	project, err := loadProject()
	if err != nil {
		return err
	}
	cmd.Println(knowledge.NewVersions(project.Paths).Current())
	return nil
}

type repoKnowledge struct {
	Scanned     bool   `json:"scanned"`
	StaleStatus string `json:"stale_status"`
}

type knowledgeSummary struct {
	Version          string                   `json:"version"`
	CoverageComplete bool                     `json:"coverage_complete"`
	Repos            map[string]repoKnowledge `json:"repos"`
}

func runKnowledgeStatus(cmd *cobra.Command, args []string) error {
	project, err := loadProject()
	if err != nil {
		return err
	}
	engine := staleness.New(project)

	summary := knowledgeSummary{
		Version:          knowledge.NewVersions(project.Paths).Current(),
		CoverageComplete: engine.CoverageComplete(),
		Repos:            map[string]repoKnowledge{},
	}
	for _, repoID := range project.Registry.ActiveRepoIDs() {
		snapshot, err := engine.EvaluateRepo(cmd.Context(), repoID)
		if err != nil {
			return err
		}
		scanned := contract.Exists(project.Paths.RepoScan(repoID))
		summary.Repos[repoID] = repoKnowledge{
			Scanned:     scanned,
			StaleStatus: snapshot.StaleStatus(),
		}
	}
	return printJSON(summary)
}
