package exporter

import (
	"encoding/csv"
	"fmt"
	"io"
	"strconv"
	"time"

	"chessmate/internal/auth"
)

// SchemaVersion identifies the roster CSV format. Bump it when columns change.
const SchemaVersion = "1"

var csvColumns = []string{
	"schemaVersion",
	"email",
	"name",
	"picture",
	"age",
	"country",
	"profileComplete",
	"totalGames",
	"wins",
	"losses",
	"draws",
	"createdAt",
}

// CSVExporter writes user rosters as CSV.
type CSVExporter struct{}

// NewCSVExporter creates a new CSV exporter.
func NewCSVExporter() *CSVExporter {
	return &CSVExporter{}
}

// Export writes a header row followed by one row per user.
func (e *CSVExporter) Export(w io.Writer, users []auth.User) error {
	writer := csv.NewWriter(w)
	defer writer.Flush()

	if err := writer.Write(csvColumns); err != nil {
		return fmt.Errorf("failed to write CSV header: %w", err)
	}

	for _, user := range users {
		if err := writer.Write(userToRow(user)); err != nil {
			return fmt.Errorf("failed to write CSV row: %w", err)
		}
	}

	writer.Flush()
	return writer.Error()
}

func userToRow(user auth.User) []string {
	row := make([]string, len(csvColumns))

	row[0] = SchemaVersion
	row[1] = user.Email
	row[2] = user.Name
	row[3] = user.Picture
	row[4] = formatOptionalInt(user.Age)
	row[5] = formatOptionalString(user.Country)
	row[6] = strconv.FormatBool(user.ProfileComplete)
	row[7] = strconv.Itoa(user.Stats.TotalGames)
	row[8] = strconv.Itoa(user.Stats.Wins)
	row[9] = strconv.Itoa(user.Stats.Losses)
	row[10] = strconv.Itoa(user.Stats.Draws)
	row[11] = formatTime(user.CreatedAt)

	return row
}

func formatOptionalInt(value *int) string {
	if value == nil {
		return ""
	}
	return strconv.Itoa(*value)
}

func formatOptionalString(value *string) string {
	if value == nil {
		return ""
	}
	return *value
}

// formatTime renders t in RFC3339 UTC, or empty for the zero time.
func formatTime(t time.Time) string {
	if t.IsZero() {
		return ""
	}
	return t.UTC().Format(time.RFC3339)
}
