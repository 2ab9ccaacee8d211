// Package main: attempt recording commands.
package main

import (
	"context"
	"fmt"
	"strconv"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"leetcoach/internal/attempt"
)

var (
	attemptSuccess   bool
	attemptFailed    bool
	attemptSessionID string
	attemptTimeSecs  int
	attemptHints     int
	attemptComment   string
)

var attemptCmd = &cobra.Command{
	Use:   "attempt <leetcode-id>",
	Short: "Record a solve attempt",
	Long: `Records one attempt against a problem and updates its spaced-repetition
state: success promotes the problem one box up, failure demotes it one box
down, and the next review date follows the new box's interval.

When --session is given and the attempt closes out the session's last
problem, the session is completed automatically.

Examples:
  leetcoach attempt 217 --success --time 900
  leetcoach attempt 217 --failed --hints 2 --session 4f1c...`,
	Args: cobra.ExactArgs(1),
	RunE: runAttempt,
}

func init() {
	attemptCmd.Flags().BoolVar(&attemptSuccess, "success", false, "The attempt succeeded")
	attemptCmd.Flags().BoolVar(&attemptFailed, "failed", false, "The attempt failed")
	attemptCmd.Flags().StringVarP(&attemptSessionID, "session", "s", "", "Session this attempt belongs to")
	attemptCmd.Flags().IntVar(&attemptTimeSecs, "time", 0, "Time spent in seconds")
	attemptCmd.Flags().IntVar(&attemptHints, "hints", 0, "Hints used")
	attemptCmd.Flags().StringVar(&attemptComment, "comment", "", "Free-form note")
	attemptCmd.MarkFlagsMutuallyExclusive("success", "failed")
	attemptCmd.MarkFlagsOneRequired("success", "failed")
}

func runAttempt(cmd *cobra.Command, args []string) error {
	leetcodeID, err := strconv.Atoi(args[0])
	if err != nil {
		return fmt.Errorf("invalid leetcode id %q", args[0])
	}

	a, err := openApp()
	if err != nil {
		return err
	}
	defer a.Close()

	ctx, cancel := context.WithTimeout(context.Background(), timeout)
	defer cancel()

	rec, hint, err := a.attempts.AddAttempt(ctx, attempt.Input{
		LeetCodeID:    leetcodeID,
		SessionID:     attemptSessionID,
		Success:       attemptSuccess,
		TimeSpentSecs: attemptTimeSecs,
		HintsUsed:     attemptHints,
		Comments:      attemptComment,
	})
	if err != nil {
		return err
	}

	outcome := "failed"
	if rec.Success {
		outcome = "succeeded"
	}
	fmt.Printf("Recorded: problem %d %s (box %d)\n", leetcodeID, outcome, rec.BoxLevelAtAttempt)

	if hint.ShouldCheck {
		remaining, found, err := a.sessions.CheckAndCompleteSession(ctx, hint.SessionID)
		if err != nil {
			logger.Warn("Completion check failed", zap.String("session", hint.SessionID), zap.Error(err))
			return nil
		}
		if found && len(remaining) == 0 {
			fmt.Println("Session completed. 🎉")
		} else if found {
			fmt.Printf("%d problem(s) left in the session.\n", len(remaining))
		}
	}
	return nil
}
