// Package csvparse turns uploaded CSV text into structured records. The
// parser is deliberately simple: fields are split on commas with no
// quoting support, and header detection is a heuristic, not a guarantee.
package csvparse

import (
	"encoding/json"
	"fmt"
	"regexp"
	"strconv"
	"strings"
	"time"

	"github.com/fpt-devteam/csv-processor/internal/domain"
	"github.com/google/uuid"
)

// dataLineThreshold is the share of values on a line that must look like
// data (email, date, identifier, number) for the line to be classified
// as data rather than a header. The 30% value is a tuning knob, not a
// guarantee.
const dataLineThreshold = 0.3

var (
	dateRe       = regexp.MustCompile(`\d{4}-\d{2}-\d{2}`)
	identifierRe = regexp.MustCompile(`^[A-Z0-9]{8,}$`)
)

// Parse converts CSV lines into records owned by the given job. Leading
// blank lines and leftover multipart headers are skipped; the first real
// line is classified as header or data, and every following non-blank,
// non-boundary line becomes one record. An empty input yields an empty
// slice, not an error.
func Parse(jobID uuid.UUID, fileName string, lines []string) []domain.Record {
	start := firstRealLine(lines)
	if start < 0 {
		return nil
	}

	firstLine := lines[start]
	if strings.TrimSpace(firstLine) == "" {
		return nil
	}

	columns, headerless := DetectColumns(firstLine)

	dataStart := start + 1
	if headerless {
		dataStart = start
	}

	var records []domain.Record
	for i := dataStart; i < len(lines); i++ {
		line := lines[i]
		if strings.TrimSpace(line) == "" || strings.HasPrefix(line, "--") {
			continue
		}

		values := splitValues(line)

		records = append(records, domain.Record{
			ID:         uuid.New(),
			JobID:      jobID,
			FileName:   fileName,
			ImportedAt: time.Now().UTC(),
			Data:       encodeRow(columns, values),
		})
	}

	return records
}

// DetectColumns classifies the first real CSV line. When the line looks
// like data, synthetic Column1..ColumnN names are generated and the line
// itself is the first data row; otherwise its values are the column
// names.
func DetectColumns(firstLine string) ([]string, bool) {
	values := splitValues(firstLine)

	if IsDataLine(values) {
		columns := make([]string, len(values))
		for i := range values {
			columns[i] = fmt.Sprintf("Column%d", i+1)
		}
		return columns, true
	}

	return values, false
}

// IsDataLine scores comma-split values against typical data patterns:
// emails, ISO-like dates, long uppercase identifiers, and numbers. The
// line is data when at least 30% of its values match one.
func IsDataLine(values []string) bool {
	if len(values) == 0 {
		return false
	}

	dataIndicators := 0
	for _, value := range values {
		if strings.Contains(value, "@") && strings.Contains(value, ".") {
			dataIndicators++
		}
		if dateRe.MatchString(value) {
			dataIndicators++
		}
		if identifierRe.MatchString(value) {
			dataIndicators++
		}
		if _, err := strconv.ParseFloat(value, 64); err == nil {
			dataIndicators++
		}
	}

	return float64(dataIndicators) >= float64(len(values))*dataLineThreshold
}

// firstRealLine returns the index of the first line that is neither
// blank nor a leftover multipart header, or -1 when there is none.
func firstRealLine(lines []string) int {
	for i, line := range lines {
		if strings.HasPrefix(line, "Content-Disposition:") ||
			strings.HasPrefix(line, "Content-Type:") ||
			strings.TrimSpace(line) == "" {
			continue
		}
		return i
	}
	return -1
}

func splitValues(line string) []string {
	values := strings.Split(line, ",")
	for i := range values {
		values[i] = strings.TrimSpace(values[i])
	}
	return values
}

// encodeRow zips values with column names positionally into a JSON
// object that preserves column order. Extra values beyond the column
// count are dropped; missing values leave the column absent.
func encodeRow(columns, values []string) string {
	var b strings.Builder
	b.WriteByte('{')

	for i := 0; i < len(columns) && i < len(values); i++ {
		if i > 0 {
			b.WriteByte(',')
		}
		key, _ := json.Marshal(columns[i])
		val, _ := json.Marshal(values[i])
		b.Write(key)
		b.WriteByte(':')
		b.Write(val)
	}

	b.WriteByte('}')
	return b.String()
}
