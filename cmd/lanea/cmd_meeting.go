// Meeting commands: start, continue, answer, and close governed meeting
// sessions. Continue performs exactly one step per invocation.
package main

import (
	"os"

	"github.com/spf13/cobra"

	"lanea/internal/logging"
	"lanea/internal/meeting"
	"lanea/internal/types"
)

var (
	meetingBody     string
	meetingBodyFile string
	meetingNotes    string
	meetingBy       string
)

var meetingCmd = &cobra.Command{
	Use:   "meeting",
	Short: "Run update and review meetings over a scope",
	Long: `Meetings walk a fixed question ladder (REFRESH, VISION, REQUIREMENTS,
DOMAIN_DATA, DATA, API, INFRA, OPS) one step at a time. Each continue
either advances the committee, asks one question, or declares the
session ready to close. Update meetings bind open change requests and
may approve intake; review meetings confirm or reject sufficiency.`,
}

var meetingStartCmd = &cobra.Command{
	Use:   "start <update|review> <scope>",
	Short: "Open a meeting session for a scope",
	Args:  cobra.ExactArgs(2),
	RunE:  runMeetingStart,
}

var meetingContinueCmd = &cobra.Command{
	Use:   "continue <meeting-id>",
	Short: "Advance the meeting by exactly one step",
	Args:  cobra.ExactArgs(1),
	RunE:  runMeetingContinue,
}

var meetingAnswerCmd = &cobra.Command{
	Use:   "answer <meeting-id>",
	Short: "Answer the pending question",
	Args:  cobra.ExactArgs(1),
	RunE:  runMeetingAnswer,
}

var meetingCloseCmd = &cobra.Command{
	Use:   "close <meeting-id> <decision>",
	Short: "Close the meeting with a decision",
	Long: `Closes the session. Update meetings accept approve_intake,
revise_scans, open_decisions, abort, and the version bumps
(bump_patch, bump_minor, bump_major, no_bump); review meetings accept
confirm_sufficiency, reject_sufficiency, defer. approve_intake without
confirmed sufficiency needs the override_sufficiency token in --notes.`,
	Args: cobra.ExactArgs(2),
	RunE: runMeetingClose,
}

func init() {
	meetingAnswerCmd.Flags().StringVar(&meetingBody, "body", "", "answer text")
	meetingAnswerCmd.Flags().StringVar(&meetingBodyFile, "body-file", "", "file containing the answer text")
	meetingCloseCmd.Flags().StringVar(&meetingNotes, "notes", "", "decision notes")
	meetingCloseCmd.Flags().StringVar(&meetingBy, "by", "", "who decides")
	meetingCmd.AddCommand(meetingStartCmd)
	meetingCmd.AddCommand(meetingContinueCmd)
	meetingCmd.AddCommand(meetingAnswerCmd)
	meetingCmd.AddCommand(meetingCloseCmd)
	rootCmd.AddCommand(meetingCmd)
}

// newMeetingEngine wires the meeting engine. A missing or unresolvable
// LLM profile leaves the committee out; committee steps then refuse with
// MISSING_INPUT instead of failing the whole command.
func newMeetingEngine() (*meeting.Engine, error) {
	project, err := loadProject()
	if err != nil {
		return nil, err
	}
	llm, err := buildOracle(project)
	if err != nil {
		logging.Get(logging.CategoryMeeting).Debugw("no oracle for meeting", "error", err)
		llm = nil
	}
	return meeting.New(project, llm), nil
}

func runMeetingStart(cmd *cobra.Command, args []string) error {
	engine, err := newMeetingEngine()
	if err != nil {
		return err
	}
	session, err := engine.Start(cmd.Context(), args[0], args[1])
	if err != nil {
		return err
	}
	return printJSON(session)
}

func runMeetingContinue(cmd *cobra.Command, args []string) error {
	engine, err := newMeetingEngine()
	if err != nil {
		return err
	}
	result, err := engine.Continue(cmd.Context(), args[0])
	if err != nil {
		return err
	}
	return emit(result)
}

func runMeetingAnswer(cmd *cobra.Command, args []string) error {
	body := meetingBody
	if meetingBodyFile != "" {
		data, err := os.ReadFile(meetingBodyFile)
		if err != nil {
			return err
		}
		body = string(data)
	}
	if body == "" {
		return emit(types.Refuse(types.ReasonInvalidInput, "an answer body is required (--body or --body-file)"))
	}

	engine, err := newMeetingEngine()
	if err != nil {
		return err
	}
	result, err := engine.Answer(args[0], body)
	if err != nil {
		return err
	}
	return emit(result)
}

func runMeetingClose(cmd *cobra.Command, args []string) error {
	engine, err := newMeetingEngine()
	if err != nil {
		return err
	}
	result, err := engine.Close(cmd.Context(), args[0], args[1], meetingNotes, meetingBy)
	if err != nil {
		return err
	}
	return emit(result)
}
