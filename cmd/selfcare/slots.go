package main

import (
	"time"

	"github.com/spf13/cobra"

	"github.com/hrygo/selfcare/server"
	"github.com/hrygo/selfcare/server/service/schedule"
)

var (
	slotsStart    string
	slotsEnd      string
	slotsDuration int
)

var slotsCmd = &cobra.Command{
	Use:   "slots",
	Short: "List free slots on the configured calendar",
	RunE: func(cmd *cobra.Command, _ []string) error {
		ctx := cmd.Context()
		p, err := loadProfile()
		if err != nil {
			return err
		}
		s, err := openStore(ctx, p)
		if err != nil {
			return err
		}
		defer s.Close()

		orchestrator, err := server.NewOrchestrator(ctx, p, s)
		if err != nil {
			return err
		}
		resolver := orchestrator.Resolver()
		now := resolver.Now()
		start, err := resolver.ParseWindowBound(slotsStart, now, false)
		if err != nil {
			return err
		}
		end, err := resolver.ParseWindowBound(slotsEnd, now, true)
		if err != nil {
			return err
		}
		window, err := schedule.NewInterval(start, end)
		if err != nil {
			return err
		}

		slots, degraded := orchestrator.FindFreeSlots(ctx, window, slotsDuration)
		return printJSON(cmd, struct {
			WindowStart string              `json:"window_start"`
			WindowEnd   string              `json:"window_end"`
			Degraded    bool                `json:"degraded,omitempty"`
			Slots       []schedule.FreeSlot `json:"slots"`
		}{
			WindowStart: window.Start.Format(time.RFC3339),
			WindowEnd:   window.End.Format(time.RFC3339),
			Degraded:    degraded,
			Slots:       slots,
		})
	},
}

func init() {
	slotsCmd.Flags().StringVar(&slotsStart, "start", "now", "window start: now, today, tomorrow, N days, YYYY-MM-DD or a date-time")
	slotsCmd.Flags().StringVar(&slotsEnd, "end", "", "window end (default: end of the day a week from now)")
	slotsCmd.Flags().IntVar(&slotsDuration, "duration", 30, "minimum slot length in minutes")
}
