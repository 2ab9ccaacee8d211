// Package main: review schedule and mastery inspection commands.
package main

import (
	"context"
	"fmt"
	"sort"
	"strings"

	"github.com/spf13/cobra"

	"leetcoach/internal/review"
	"leetcoach/internal/types"
)

var reviewBudget int

var reviewCmd = &cobra.Command{
	Use:   "review",
	Short: "Show today's review-due problems",
	Long: `Lists the problems due for review today, ordered by review date and
decay-weighted priority, up to the budget.`,
	RunE: runReview,
}

func init() {
	reviewCmd.Flags().IntVarP(&reviewBudget, "budget", "n", 5, "Maximum problems to list")
}

func runReview(cmd *cobra.Command, args []string) error {
	a, err := openApp()
	if err != nil {
		return err
	}
	defer a.Close()

	ctx, cancel := context.WithTimeout(context.Background(), timeout)
	defer cancel()

	ls := review.LearningState{}
	if st, err := a.store.GetSessionState(ctx); err == nil {
		ls.TierTags = st.CurrentAllowedTags
		ls.FocusTags = st.CurrentFocusTags
		ls.UnmasteredTags = st.CurrentFocusTags
	}

	due := a.scheduler.DailyReviewSchedule(ctx, reviewBudget, ls)
	if len(due) == 0 {
		fmt.Println("Nothing due for review. 🎉")
		return nil
	}

	fmt.Printf("Due for Review (%d)\n", len(due))
	fmt.Println(strings.Repeat("─", 60))
	for _, p := range due {
		fmt.Printf("  #%-5d %-40s %-6s box %d  due %s\n",
			p.LeetCodeID, truncate(p.Title, 40), p.Difficulty, p.BoxLevel,
			p.ReviewSchedule.Format("2006-01-02"))
	}
	return nil
}

var masteryCmd = &cobra.Command{
	Use:   "mastery",
	Short: "Show per-tag mastery",
	Long: `Shows the per-tag mastery snapshot: attempts, success rate, mastered
flag, and freshness. Use --recompute to rebuild it from raw attempts.`,
	RunE: runMastery,
}

var masteryRecompute bool

func init() {
	masteryCmd.Flags().BoolVar(&masteryRecompute, "recompute", false, "Rebuild the snapshot from attempts")
}

func runMastery(cmd *cobra.Command, args []string) error {
	a, err := openApp()
	if err != nil {
		return err
	}
	defer a.Close()

	ctx, cancel := context.WithTimeout(context.Background(), timeout)
	defer cancel()

	var rows map[string]types.TagMastery
	if masteryRecompute {
		m, err := a.mastery.Recompute(ctx)
		if err != nil {
			return err
		}
		rows = m
	} else {
		m, err := a.mastery.Cached(ctx)
		if err != nil {
			return err
		}
		rows = m
	}

	if len(rows) == 0 {
		fmt.Println("No mastery data yet. Record some attempts first.")
		return nil
	}

	tags := make([]string, 0, len(rows))
	for tag := range rows {
		tags = append(tags, tag)
	}
	sort.Strings(tags)

	fmt.Println("Tag Mastery")
	fmt.Println(strings.Repeat("─", 60))
	for _, tag := range tags {
		m := rows[tag]
		badge := " "
		if m.Mastered {
			badge = "★"
		}
		fmt.Printf("  %s %-24s %3d attempts  %3.0f%%  fresh %.2f\n",
			badge, tag, m.TotalAttempts, m.SuccessRate*100, m.DecayScore)
	}
	return nil
}
