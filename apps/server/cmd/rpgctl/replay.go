package main

import (
	"encoding/json"
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"rpg-lite/replay"
)

// duelReport is the subset of a duel.start reply that replay needs.
type duelReport struct {
	Replay     replay.DuelSpec `json:"replay"`
	Log        []string        `json:"log"`
	Settlement settlement      `json:"settlement"`
}

type settlement struct {
	Outcome      string `json:"outcome"`
	Stolen       int    `json:"stolen"`
	LoserReset   bool   `json:"loser_reset"`
	ChallengerHP int    `json:"challenger_hp"`
	TargetHP     int    `json:"target_hp"`
}

func replayCmd() *cobra.Command {
	var verify bool
	cmd := &cobra.Command{
		Use:   "replay <report.json>",
		Short: "Rerun a duel from its report and print the strike log",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			data, err := os.ReadFile(args[0])
			if err != nil {
				return err
			}
			var report duelReport
			if err := json.Unmarshal(data, &report); err != nil {
				return fmt.Errorf("decode %s: %w", args[0], err)
			}
			tape, err := replay.Generate(report.Replay)
			if err != nil {
				return err
			}
			for _, line := range tape.Log {
				cmd.Println(line)
			}
			cmd.Printf("outcome=%s rounds=%d stolen=%d\n", tape.Outcome, tape.Rounds, tape.Stolen)
			if !verify {
				return nil
			}
			recorded := &replay.Tape{
				TapeVersion:  replay.TapeVersion,
				Mode:         report.Replay.Mode,
				Seed:         report.Replay.Seed,
				Outcome:      report.Settlement.Outcome,
				ChallengerHP: report.Settlement.ChallengerHP,
				TargetHP:     report.Settlement.TargetHP,
				Stolen:       report.Settlement.Stolen,
				LoserReset:   report.Settlement.LoserReset,
				Log:          report.Log,
			}
			if err := replay.Verify(report.Replay, recorded); err != nil {
				return err
			}
			cmd.Println("verified")
			return nil
		},
	}
	cmd.Flags().BoolVar(&verify, "verify", false, "check the report's log and settlement against the rerun")
	return cmd
}
