package cmd

import (
	"bytes"
	"fmt"
	"os"
	"time"

	"github.com/spf13/cobra"

	"github.com/knockmap/knockmap/internal/board"
	"github.com/knockmap/knockmap/internal/export"
)

var (
	exportChannel string
	exportOutput  string
	exportUpload  bool
)

var exportCmd = &cobra.Command{
	Use:   "export",
	Short: "Write a board snapshot as CSV",
	Long: `Write every card of a board (all three weeks) as CSV to a file or stdout,
and optionally upload it to the S3 bucket named in the export config.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		ch, err := board.LookupChannel(exportChannel)
		if err != nil {
			return err
		}

		ctx := cmd.Context()
		eng, err := quietEngine(ctx)
		if err != nil {
			return err
		}
		defer eng.Close(ctx)

		cards, err := eng.Cards(ctx, ch)
		if err != nil {
			return err
		}

		var buf bytes.Buffer
		if err := export.WriteCSV(&buf, ch, cards); err != nil {
			return err
		}

		switch exportOutput {
		case "", "-":
			if !exportUpload {
				if _, err := os.Stdout.Write(buf.Bytes()); err != nil {
					return err
				}
			}
		default:
			if err := os.WriteFile(exportOutput, buf.Bytes(), 0o644); err != nil {
				return fmt.Errorf("writing %s: %w", exportOutput, err)
			}
			fmt.Fprintf(os.Stderr, "Wrote %d cards to %s\n", len(cards), exportOutput)
		}

		if exportUpload {
			ec := eng.Config.Export
			up, err := export.NewS3Uploader(ctx, ec.Profile, ec.Region)
			if err != nil {
				return err
			}
			uri, err := export.Publish(ctx, up, ec, ch.Slug, buf.Bytes(), time.Now())
			if err != nil {
				return err
			}
			fmt.Fprintf(os.Stderr, "Uploaded %s\n", uri)
		}
		return nil
	},
}

func init() {
	exportCmd.Flags().StringVar(&exportChannel, "channel", "web", "board to export (web or field)")
	exportCmd.Flags().StringVarP(&exportOutput, "output", "o", "", "output file (default stdout)")
	exportCmd.Flags().BoolVar(&exportUpload, "upload", false, "upload the snapshot to S3")
	rootCmd.AddCommand(exportCmd)
}
