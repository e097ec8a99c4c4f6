package main

import (
	"time"

	"github.com/spf13/cobra"

	"github.com/hrygo/selfcare/plugin/ai/aitime"
)

var resolveCmd = &cobra.Command{
	Use:   "resolve <time-spec>",
	Short: "Resolve a time spec such as tomorrow_morning or 2025-06-02T15:00|Europe/Paris",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		home, err := profileFromFlags().HomeLocation()
		if err != nil {
			return err
		}
		spec, err := aitime.ParseTimeSpec(args[0])
		if err != nil {
			return err
		}
		resolver := aitime.NewResolver(home)
		resolved, err := resolver.Resolve(spec, resolver.Now())
		if err != nil {
			return err
		}
		return printJSON(cmd, map[string]string{
			"input":    args[0],
			"kind":     spec.Kind().String(),
			"resolved": resolved.Format(time.RFC3339),
			"utc":      resolved.UTC().Format(time.RFC3339),
		})
	},
}
