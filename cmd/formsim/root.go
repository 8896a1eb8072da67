package main

import (
	"context"

	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"
)

var rootCmd = &cobra.Command{
	Use:   "formsim",
	Short: "Offline exercise form analysis simulator",
	Long: "formsim drives an analysis session with synthetic camera frames on a virtual clock " +
		"and prints the resulting state changes, feedback and session summary.",
	SilenceUsage: true,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		levelStr, _ := cmd.Flags().GetString("log-level")
		level, err := logrus.ParseLevel(levelStr)
		if err != nil {
			return err
		}
		logrus.SetLevel(level)
		return nil
	},
}

func Execute(ctx context.Context) error {
	return rootCmd.ExecuteContext(ctx)
}

func init() {
	rootCmd.PersistentFlags().String("log-level", "warn", "log level [trace | debug | info | warn | error]")

	rootCmd.AddCommand(simulateCmd)
	rootCmd.AddCommand(exercisesCmd)
}
