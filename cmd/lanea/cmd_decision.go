// Decision-packet commands: list open escalations and record human
// answers to them.
package main

import (
	"strings"

	"github.com/spf13/cobra"

	"lanea/internal/decision"
	"lanea/internal/types"
)

var (
	decisionKind    string
	decisionAnswers []string
)

var decisionCmd = &cobra.Command{
	Use:   "decision",
	Short: "Inspect and answer open decision packets",
}

var decisionListCmd = &cobra.Command{
	Use:   "list <scope>",
	Short: "List open decision ids for a scope",
	Args:  cobra.ExactArgs(1),
	RunE:  runDecisionList,
}

var decisionShowCmd = &cobra.Command{
	Use:   "show <scope>",
	Short: "Print the open packet for a scope and kind",
	Args:  cobra.ExactArgs(1),
	RunE:  runDecisionShow,
}

var decisionAnswerCmd = &cobra.Command{
	Use:   "answer <scope>",
	Short: "Answer the open packet for a scope and kind",
	Long: `Records answers on the open packet and closes it. Answers are
question-id pairs:

  lanea decision answer repo:billing --set Q1=refresh`,
	Args: cobra.ExactArgs(1),
	RunE: runDecisionAnswer,
}

func init() {
	decisionCmd.PersistentFlags().StringVar(&decisionKind, "kind", decision.KindRefreshRequired,
		"packet kind")
	decisionAnswerCmd.Flags().StringArrayVar(&decisionAnswers, "set", nil,
		"answer as <question-id>=<answer> (repeatable)")
	decisionCmd.AddCommand(decisionListCmd)
	decisionCmd.AddCommand(decisionShowCmd)
	decisionCmd.AddCommand(decisionAnswerCmd)
	rootCmd.AddCommand(decisionCmd)
}

func newDecisionStore() (*decision.Store, error) {
	project, err := loadProject()
	if err != nil {
		return nil, err
	}
	return decision.NewStore(project.Paths), nil
}

func runDecisionList(cmd *cobra.Command, args []string) error {
	store, err := newDecisionStore()
	if err != nil {
		return err
	}
	ids, err := store.OpenIDs(args[0])
	if err != nil {
		return err
	}
	return printJSON(ids)
}

func runDecisionShow(cmd *cobra.Command, args []string) error {
	store, err := newDecisionStore()
	if err != nil {
		return err
	}
	packet, _, err := store.FindOpen(args[0], decisionKind)
	if err != nil {
		return err
	}
	if packet == nil {
		return emit(types.Refuse(types.ReasonMissingInput,
			"no open %s packet for %s", decisionKind, args[0]))
	}
	return printJSON(packet)
}

func runDecisionAnswer(cmd *cobra.Command, args []string) error {
	answers := map[string]string{}
	for _, pair := range decisionAnswers {
		qid, answer, found := strings.Cut(pair, "=")
		if !found || qid == "" {
			return emit(types.Refuse(types.ReasonInvalidInput,
				"--set expects <question-id>=<answer>, got %q", pair))
		}
		answers[qid] = answer
	}
	if len(answers) == 0 {
		return emit(types.Refuse(types.ReasonInvalidInput, "at least one --set is required"))
	}

	store, err := newDecisionStore()
	if err != nil {
		return err
	}
	packet, path, err := store.FindOpen(args[0], decisionKind)
	if err != nil {
		return err
	}
	if packet == nil {
		return emit(types.Refuse(types.ReasonMissingInput,
			"no open %s packet for %s", decisionKind, args[0]))
	}
	answered, err := store.Answer(path, answers)
	if err != nil {
		return err
	}
	return printJSON(answered)
}
