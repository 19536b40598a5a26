// Committee commands: run the LLM committee in repo, integration, or
// qa-strategist mode. Hard-stale scopes refuse unless --force, which is
// audited to the lane ledger.
package main

import (
	"sort"

	"github.com/spf13/cobra"

	"lanea/internal/committee"
	"lanea/internal/config"
	"lanea/internal/types"
)

var committeeForce bool

var committeeCmd = &cobra.Command{
	Use:   "committee",
	Short: "Run the knowledge committee over repos or the system scope",
	Long: `Runs committee roles against the evidence catalog and writes claim
artifacts under the knowledge repo.

  repo          architect then skeptic for one repo
  repos         architect/skeptic for every active repo (bounded pool)
  integration   integration chair across all evidence-valid repos
  qa            qa strategist for one repo

Outputs that fail the contract produce a typed error artifact instead of
a status; hard-stale scopes refuse and file a refresh-required decision
packet unless --force is given.`,
}

var committeeRepoCmd = &cobra.Command{
	Use:   "repo <repo-id>",
	Short: "Run architect and skeptic for one repo",
	Args:  cobra.ExactArgs(1),
	RunE:  runCommitteeRepo,
}

var committeeReposCmd = &cobra.Command{
	Use:   "repos",
	Short: "Run the repo committee for every active repo",
	RunE:  runCommitteeRepos,
}

var committeeIntegrationCmd = &cobra.Command{
	Use:   "integration",
	Short: "Run the integration chair over the system scope",
	RunE:  runCommitteeIntegration,
}

var committeeQACmd = &cobra.Command{
	Use:   "qa <repo-id>",
	Short: "Run the qa strategist for one repo",
	Args:  cobra.ExactArgs(1),
	RunE:  runCommitteeQA,
}

func init() {
	committeeCmd.PersistentFlags().BoolVar(&committeeForce, "force", false,
		"proceed on hard-stale knowledge (audited as stale_override)")
	committeeCmd.AddCommand(committeeRepoCmd)
	committeeCmd.AddCommand(committeeReposCmd)
	committeeCmd.AddCommand(committeeIntegrationCmd)
	committeeCmd.AddCommand(committeeQACmd)
	rootCmd.AddCommand(committeeCmd)
}

func newOrchestrator() (*committee.Orchestrator, *config.Project, error) {
	project, err := loadProject()
	if err != nil {
		return nil, nil, err
	}
	llm, err := buildOracle(project)
	if err != nil {
		return nil, nil, err
	}
	return committee.New(project, llm), project, nil
}

func runCommitteeRepo(cmd *cobra.Command, args []string) error {
	orch, _, err := newOrchestrator()
	if err != nil {
		return err
	}
	result, err := orch.RunRepo(cmd.Context(), args[0], committeeForce)
	if err != nil {
		return err
	}
	return emit(result)
}

func runCommitteeRepos(cmd *cobra.Command, args []string) error {
	orch, project, err := newOrchestrator()
	if err != nil {
		return err
	}
	results, err := orch.RunRepos(cmd.Context(), project.Registry.ActiveRepoIDs(), committeeForce)
	if err != nil {
		return err
	}

	repoIDs := make([]string, 0, len(results))
	for repoID := range results {
		repoIDs = append(repoIDs, repoID)
	}
	sort.Strings(repoIDs)

	summary := types.Ok("committee complete for %d repo(s)", len(results))
	for _, repoID := range repoIDs {
		if err := emit(results[repoID]); err != nil {
			summary = types.Refuse(types.ReasonOutputInvalid,
				"committee finished with refusals; see per-repo messages above")
		}
	}
	return emit(summary)
}

func runCommitteeIntegration(cmd *cobra.Command, args []string) error {
	orch, _, err := newOrchestrator()
	if err != nil {
		return err
	}
	result, err := orch.RunIntegration(cmd.Context(), committeeForce)
	if err != nil {
		return err
	}
	return emit(result)
}

func runCommitteeQA(cmd *cobra.Command, args []string) error {
	orch, _, err := newOrchestrator()
	if err != nil {
		return err
	}
	result, err := orch.RunQAStrategist(cmd.Context(), args[0], committeeForce)
	if err != nil {
		return err
	}
	return emit(result)
}
