// Package export writes board snapshots as CSV and publishes them to S3.
package export

import (
	"encoding/csv"
	"fmt"
	"io"
	"strconv"

	"github.com/knockmap/knockmap/internal/board"
)

// Header is the first CSV row.
var Header = []string{"board", "market", "market_group", "name", "timeframe", "appointments", "goal", "percentage"}

// WriteCSV writes cards in board order, one row per card.
func WriteCSV(w io.Writer, ch board.Channel, cards []board.Card) error {
	sorted := make([]board.Card, len(cards))
	copy(sorted, cards)
	board.Sort(sorted)

	cw := csv.NewWriter(w)
	if err := cw.Write(Header); err != nil {
		return fmt.Errorf("writing csv header: %w", err)
	}
	for _, c := range sorted {
		rec := []string{
			ch.Slug,
			c.Market,
			c.Group,
			c.Name,
			string(c.Timeframe),
			strconv.FormatInt(c.Appointments, 10),
			strconv.FormatInt(c.Goal, 10),
			strconv.FormatFloat(c.Percentage, 'f', 1, 64),
		}
		if err := cw.Write(rec); err != nil {
			return fmt.Errorf("writing csv row: %w", err)
		}
	}
	cw.Flush()
	return cw.Error()
}
