// Package main: progress statistics.
package main

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/spf13/cobra"
)

var statsCmd = &cobra.Command{
	Use:   "stats",
	Short: "Show practice statistics",
	Long: `Shows box-level distribution, today's solve count, and the overall
session record.`,
	RunE: runStats,
}

func runStats(cmd *cobra.Command, args []string) error {
	a, err := openApp()
	if err != nil {
		return err
	}
	defer a.Close()

	ctx, cancel := context.WithTimeout(context.Background(), timeout)
	defer cancel()

	boxes, err := a.store.CountByBoxLevel(ctx)
	if err != nil {
		return err
	}

	total := 0
	for _, n := range boxes {
		total += n
	}

	fmt.Println("Problem Distribution")
	fmt.Println(strings.Repeat("─", 40))
	for level := 1; level <= 7; level++ {
		n := boxes[level]
		fmt.Printf("  box %d  %3d %s\n", level, n, boxBar(n))
	}
	fmt.Printf("  total  %3d\n\n", total)

	attempts, err := a.attempts.GetAllAttempts(ctx)
	if err != nil {
		return err
	}

	today := a.todayAttemptCount(ctx)
	successes := 0
	for _, at := range attempts {
		if at.Success {
			successes++
		}
	}

	fmt.Println("Attempts")
	fmt.Println(strings.Repeat("─", 40))
	fmt.Printf("  all time: %d (%d successful)\n", len(attempts), successes)
	fmt.Printf("  today:    %d\n", today)

	if st, err := a.store.GetSessionState(ctx); err == nil {
		fmt.Println("\nSessions")
		fmt.Println(strings.Repeat("─", 40))
		fmt.Printf("  completed:   %d\n", st.NumSessionsCompleted)
		fmt.Printf("  performance: %s\n", orDash(st.PerformanceLevel))
		fmt.Printf("  focus tags:  %s\n", orDash(strings.Join(st.CurrentFocusTags, ", ")))
		if st.LastProgressDate != nil {
			fmt.Printf("  last progress: %s\n", st.LastProgressDate.Format("2006-01-02"))
		}
	}
	return nil
}

// boxBar renders a histogram bar of n cells, capped at 25. The cap counts
// cells, not bytes; the block glyph is multi-byte.
func boxBar(n int) string {
	if n > 25 {
		n = 25
	}
	if n < 0 {
		n = 0
	}
	return strings.Repeat("█", n)
}

// todayAttemptCount counts attempts dated on the current calendar day.
func (a *app) todayAttemptCount(ctx context.Context) int {
	attempts, err := a.attempts.GetAllAttempts(ctx)
	if err != nil {
		return 0
	}
	y, m, d := time.Now().Date()
	n := 0
	for _, at := range attempts {
		ay, am, ad := at.AttemptDate.Local().Date()
		if ay == y && am == m && ad == d {
			n++
		}
	}
	return n
}

func orDash(s string) string {
	if s == "" {
		return "-"
	}
	return s
}
