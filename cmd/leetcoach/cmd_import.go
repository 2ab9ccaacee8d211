// Package main: problem catalogue import.
package main

import (
	"context"
	"encoding/json"
	"fmt"
	"os"

	"github.com/google/uuid"
	"github.com/spf13/cobra"

	"leetcoach/internal/types"
)

var importCmd = &cobra.Command{
	Use:   "import <catalogue.json>",
	Short: "Import a problem catalogue",
	Long: `Imports problems from a JSON file into the local catalogue. The file is
an array of objects:

  [{"leetcode_id": 1, "title": "Two Sum", "slug": "two-sum",
    "difficulty": "Easy", "tags": ["array", "hash-table"]}, ...]

Existing problems (matched by leetcode_id) keep their learning state; only
identity fields are refreshed. New problems start in box 1, due immediately.`,
	Args: cobra.ExactArgs(1),
	RunE: runImport,
}

// catalogueEntry is the import file's row shape.
type catalogueEntry struct {
	LeetCodeID int              `json:"leetcode_id"`
	Title      string           `json:"title"`
	Slug       string           `json:"slug"`
	Difficulty types.Difficulty `json:"difficulty"`
	Tags       []string         `json:"tags"`
}

func runImport(cmd *cobra.Command, args []string) error {
	data, err := os.ReadFile(args[0])
	if err != nil {
		return fmt.Errorf("failed to read catalogue: %w", err)
	}

	var entries []catalogueEntry
	if err := json.Unmarshal(data, &entries); err != nil {
		return fmt.Errorf("failed to parse catalogue: %w", err)
	}

	a, err := openApp()
	if err != nil {
		return err
	}
	defer a.Close()

	ctx, cancel := context.WithTimeout(context.Background(), timeout)
	defer cancel()

	added, updated, skipped := 0, 0, 0
	for _, e := range entries {
		if e.LeetCodeID <= 0 || e.Title == "" || !e.Difficulty.Valid() {
			skipped++
			continue
		}

		existing, err := a.store.GetProblemByLeetCodeID(ctx, e.LeetCodeID)
		if err != nil && !types.IsKind(err, types.KindNotFound) {
			return err
		}

		if existing != nil {
			existing.Title = e.Title
			existing.Slug = e.Slug
			existing.Difficulty = e.Difficulty
			existing.Tags = e.Tags
			if err := a.store.PutProblem(ctx, existing); err != nil {
				return err
			}
			updated++
			continue
		}

		p := &types.Problem{
			ProblemID:  uuid.NewString(),
			LeetCodeID: e.LeetCodeID,
			Title:      e.Title,
			Slug:       e.Slug,
			Difficulty: e.Difficulty,
			Tags:       e.Tags,
			BoxLevel:   1,
			// Zero review schedule: due on the next pass.
		}
		if err := a.store.PutProblem(ctx, p); err != nil {
			return err
		}
		added++
	}

	fmt.Printf("Imported %d problems (%d updated, %d skipped).\n", added, updated, skipped)
	return nil
}
