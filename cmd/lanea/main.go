// Package main is the lanea CLI: the operator surface over the knowledge
// governance core. Commands are grouped one file per subsystem; every
// expected failure is reported as a structured refusal with a non-zero
// exit, never a panic.
package main

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"lanea/internal/config"
	"lanea/internal/logging"
	"lanea/internal/oracle"
	"lanea/internal/types"
)

var (
	// Global flags
	opsRoot       string
	knowledgeRoot string
	verbose       bool
	profileName   string
)

// errRefused marks an expected refusal already reported to the user; main
// translates it to exit code 1 without re-printing.
var errRefused = errors.New("refused")

// rootCmd represents the base command
var rootCmd = &cobra.Command{
	Use:   "lanea",
	Short: "lanea - knowledge governance core for multi-repo delivery",
	Long: `lanea governs what an automated delivery pipeline is allowed to do,
based on how fresh and how trusted its knowledge of the codebase is.

Four coupled subsystems drive every verdict:
  staleness    git-derived freshness policy (fresh / soft-stale / hard-stale)
  committee    LLM committee producing evidence-grounded claim artifacts
  sufficiency  human-approved "knowledge is good enough" ledger
  phase        reverse/forward lifecycle with meeting-driven decisions

State lives in plain files under the ops and knowledge roots; every
command reads, decides, writes, and exits.`,
	SilenceUsage:  true,
	SilenceErrors: true,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		if opsRoot == "" {
			opsRoot = os.Getenv("LANEA_OPS_ROOT")
		}
		if opsRoot == "" {
			opsRoot = "."
		}
		logging.Initialize(opsRoot, verbose)
		return nil
	},
	PersistentPostRun: func(cmd *cobra.Command, args []string) {
		logging.Sync()
	},
}

func init() {
	rootCmd.PersistentFlags().StringVar(&opsRoot, "ops-root", "", "ops root directory (default $LANEA_OPS_ROOT or .)")
	rootCmd.PersistentFlags().StringVar(&knowledgeRoot, "knowledge-root", "", "knowledge repo root (default <ops-root>/knowledge)")
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "debug logging")
	rootCmd.PersistentFlags().StringVar(&profileName, "profile", "", "LLM profile name from config/LLM_PROFILES.json")
}

// loadProject resolves paths, the repo registry, and thresholds.
func loadProject() (*config.Project, error) {
	return config.LoadProject(opsRoot, knowledgeRoot)
}

// buildOracle resolves the selected LLM profile into a provider client.
func buildOracle(project *config.Project) (types.Oracle, error) {
	profiles, err := config.LoadLLMProfiles(project.Paths.LLMProfilesConfig())
	if err != nil {
		return nil, err
	}
	profile, err := profiles.Resolve(profileName)
	if err != nil {
		return nil, err
	}
	return oracle.FromProfile(profile)
}

// emit prints a structured result. Refusals carry their reason code and
// turn into a non-zero exit via errRefused.
func emit(result types.Result) error {
	if result.OK {
		fmt.Println(result.Message)
		return nil
	}
	fmt.Fprintf(os.Stderr, "[%s] %s\n", result.ReasonCode, result.Message)
	return errRefused
}

// printJSON renders a value for operator consumption.
func printJSON(v interface{}) error {
	data, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return err
	}
	fmt.Println(string(data))
	return nil
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		if !errors.Is(err, errRefused) {
			fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		}
		logging.Sync()
		os.Exit(1)
	}
}
