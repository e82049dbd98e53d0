package main

import (
	"encoding/json"
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/Strob0t/specnotify/internal/port/lifecycle"
)

var replayFile string

var replayCmd = &cobra.Command{
	Use:   "replay",
	Short: "Dispatch notifications for a recorded run",
	Long: `Reads a recorded run and feeds it through the dispatcher as if it were live.
The file holds {"run": {...}, "specs": [{"spec": {...}, "results": {...}}]}.`,
	RunE: runReplay,
}

func init() {
	replayCmd.Flags().StringVarP(&replayFile, "file", "f", "", "recorded run JSON file")
	_ = replayCmd.MarkFlagRequired("file")
}

func readRecording(path string) (lifecycle.Recording, error) {
	var rec lifecycle.Recording
	data, err := os.ReadFile(path) //nolint:gosec // G304: path comes from the operator
	if err != nil {
		return rec, fmt.Errorf("read recording: %w", err)
	}
	if err := json.Unmarshal(data, &rec); err != nil {
		return rec, fmt.Errorf("parse recording %s: %w", path, err)
	}
	return rec, nil
}

func runReplay(cmd *cobra.Command, _ []string) error {
	rec, err := readRecording(replayFile)
	if err != nil {
		return err
	}
	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	a, err := newApp(cfg)
	if err != nil {
		return err
	}
	defer a.Close()

	a.events.Replay(cmd.Context(), rec)

	fmt.Fprintf(cmd.OutOrStdout(), "replayed %d specs (run %s)\n", len(rec.Specs), a.dispatcher.RunID())
	return nil
}
