// Package main: session lifecycle commands.
package main

import (
	"context"
	"fmt"
	"strconv"
	"strings"

	"github.com/spf13/cobra"

	"leetcoach/internal/types"
)

var (
	sessionType     string
	sessionForceNew bool
)

var sessionCmd = &cobra.Command{
	Use:   "session",
	Short: "Manage practice sessions",
	Long: `Create, resume, refresh, and complete practice sessions.

Session types:
  standard        - default adaptive session
  tracking        - like standard, logged as externally tracked practice
  interview-like  - 3 problems, 35 min each, one hint
  full-interview  - 4 problems, 45 min each, no hints`,
	RunE: runSessionStart,
}

var sessionStartCmd = &cobra.Command{
	Use:   "start",
	Short: "Get the current session, creating one if needed",
	RunE:  runSessionStart,
}

var sessionResumeCmd = &cobra.Command{
	Use:   "resume",
	Short: "Resume the most recent compatible in-progress session",
	RunE:  runSessionResume,
}

var sessionRefreshCmd = &cobra.Command{
	Use:   "refresh",
	Short: "Replace the in-progress session with a freshly assembled one",
	RunE:  runSessionRefresh,
}

var sessionShowCmd = &cobra.Command{
	Use:   "show <session-id>",
	Short: "Show a session by id",
	Args:  cobra.ExactArgs(1),
	RunE:  runSessionShow,
}

var sessionCompleteCmd = &cobra.Command{
	Use:   "complete <session-id>",
	Short: "Check a session for completion",
	Args:  cobra.ExactArgs(1),
	RunE:  runSessionComplete,
}

var sessionSkipCmd = &cobra.Command{
	Use:   "skip <session-id> <leetcode-id>",
	Short: "Skip a problem in an in-progress session",
	Args:  cobra.ExactArgs(2),
	RunE:  runSessionSkip,
}

var sessionListCmd = &cobra.Command{
	Use:   "list",
	Short: "List in-progress sessions",
	RunE:  runSessionList,
}

func init() {
	sessionCmd.PersistentFlags().StringVarP(&sessionType, "type", "t", "standard", "Session type")
	sessionRefreshCmd.Flags().BoolVar(&sessionForceNew, "force-new", false, "Refuse to create when no session of this type exists")

	sessionCmd.AddCommand(sessionStartCmd)
	sessionCmd.AddCommand(sessionResumeCmd)
	sessionCmd.AddCommand(sessionRefreshCmd)
	sessionCmd.AddCommand(sessionShowCmd)
	sessionCmd.AddCommand(sessionCompleteCmd)
	sessionCmd.AddCommand(sessionSkipCmd)
	sessionCmd.AddCommand(sessionListCmd)
}

func runSessionStart(cmd *cobra.Command, args []string) error {
	a, err := openApp()
	if err != nil {
		return err
	}
	defer a.Close()

	ctx, cancel := context.WithTimeout(context.Background(), timeout)
	defer cancel()

	sess, err := a.sessions.GetOrCreateSession(ctx, types.SessionType(sessionType))
	if err != nil {
		return err
	}
	printSession(sess)
	return nil
}

func runSessionResume(cmd *cobra.Command, args []string) error {
	a, err := openApp()
	if err != nil {
		return err
	}
	defer a.Close()

	ctx, cancel := context.WithTimeout(context.Background(), timeout)
	defer cancel()

	sess, err := a.sessions.ResumeSession(ctx, types.SessionType(sessionType))
	if err != nil {
		return err
	}
	if sess == nil {
		fmt.Printf("No in-progress session compatible with %q.\n", sessionType)
		fmt.Println("Use: leetcoach session start")
		return nil
	}
	printSession(sess)
	return nil
}

func runSessionRefresh(cmd *cobra.Command, args []string) error {
	a, err := openApp()
	if err != nil {
		return err
	}
	defer a.Close()

	ctx, cancel := context.WithTimeout(context.Background(), timeout)
	defer cancel()

	sess, err := a.sessions.RefreshSession(ctx, types.SessionType(sessionType), sessionForceNew)
	if err != nil {
		return err
	}
	if sess == nil {
		fmt.Printf("No in-progress %s session to refresh.\n", sessionType)
		return nil
	}
	printSession(sess)
	return nil
}

func runSessionShow(cmd *cobra.Command, args []string) error {
	a, err := openApp()
	if err != nil {
		return err
	}
	defer a.Close()

	ctx, cancel := context.WithTimeout(context.Background(), timeout)
	defer cancel()

	sess, err := a.sessions.GetSession(ctx, args[0])
	if err != nil {
		return err
	}
	if sess == nil {
		fmt.Printf("No session %s.\n", args[0])
		return nil
	}
	printSession(sess)
	return nil
}

func runSessionComplete(cmd *cobra.Command, args []string) error {
	a, err := openApp()
	if err != nil {
		return err
	}
	defer a.Close()

	ctx, cancel := context.WithTimeout(context.Background(), timeout)
	defer cancel()

	remaining, found, err := a.sessions.CheckAndCompleteSession(ctx, args[0])
	if err != nil {
		return err
	}
	if !found {
		fmt.Printf("No session %s.\n", args[0])
		return nil
	}
	if len(remaining) == 0 {
		fmt.Println("Session completed. 🎉")
		return nil
	}

	fmt.Printf("Not done yet: %d problem(s) remaining\n", len(remaining))
	for _, p := range remaining {
		fmt.Printf("  #%d %s (%s)\n", p.LeetCodeID, p.Title, p.Difficulty)
	}
	return nil
}

func runSessionSkip(cmd *cobra.Command, args []string) error {
	leetcodeID, err := strconv.Atoi(args[1])
	if err != nil {
		return fmt.Errorf("invalid leetcode id %q", args[1])
	}

	a, err := openApp()
	if err != nil {
		return err
	}
	defer a.Close()

	ctx, cancel := context.WithTimeout(context.Background(), timeout)
	defer cancel()

	if err := a.sessions.SkipProblem(ctx, args[0], leetcodeID, nil); err != nil {
		return err
	}
	fmt.Printf("Skipped problem %d.\n", leetcodeID)
	return nil
}

func runSessionList(cmd *cobra.Command, args []string) error {
	a, err := openApp()
	if err != nil {
		return err
	}
	defer a.Close()

	ctx, cancel := context.WithTimeout(context.Background(), timeout)
	defer cancel()

	sessions, err := a.store.InProgressSessions(ctx)
	if err != nil {
		return err
	}
	if len(sessions) == 0 {
		fmt.Println("No in-progress sessions.")
		return nil
	}

	fmt.Println("In-Progress Sessions")
	fmt.Println(strings.Repeat("─", 60))
	for _, s := range sessions {
		fmt.Printf("  %s  %-14s  %d problems  last active %s\n",
			s.SessionID[:8], s.Type, len(s.Problems), s.LastActivityTime.Format("2006-01-02 15:04"))
	}
	return nil
}

func printSession(sess *types.Session) {
	fmt.Printf("Session %s (%s, %s)\n", sess.SessionID, sess.Type, sess.Status)
	fmt.Println(strings.Repeat("─", 60))
	for i, p := range sess.Problems {
		marker := "  "
		if i == sess.CurrentProblemIndex && sess.Status == types.StatusInProgress {
			marker = "▶ "
		}
		fmt.Printf("%s#%-5d %-40s %-6s [%s]\n", marker, p.LeetCodeID, truncate(p.Title, 40), p.Difficulty, p.Reason)
	}
	if sess.Accuracy != nil {
		fmt.Printf("Accuracy: %.0f%%", *sess.Accuracy*100)
		if sess.DurationMinutes != nil {
			fmt.Printf("  Duration: %.0fm", *sess.DurationMinutes)
		}
		fmt.Println()
	}
}

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n-1] + "…"
}
