package cmd

import (
	"context"

	"github.com/spf13/cobra"

	"github.com/knockmap/knockmap/internal/board"
	"github.com/knockmap/knockmap/internal/tui"
)

var boardChannel string

var boardCmd = &cobra.Command{
	Use:   "board",
	Short: "Show an appointment board in the terminal",
	RunE: func(cmd *cobra.Command, args []string) error {
		ch, err := board.LookupChannel(boardChannel)
		if err != nil {
			return err
		}

		eng, err := quietEngine(cmd.Context())
		if err != nil {
			return err
		}
		defer eng.Close(context.Background())

		return tui.Run(eng.Cards, ch)
	},
}

func init() {
	boardCmd.Flags().StringVar(&boardChannel, "channel", "web", "board to show (web or field)")
	rootCmd.AddCommand(boardCmd)
}
