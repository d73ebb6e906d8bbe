package audit

import (
	"bufio"
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"strings"

	"github.com/vbonduro/pullsheet/internal/domain"
)

// CSVHeader is written unquoted as the first line of every export.
const CSVHeader = "created_at,user_email,action,payload"

const csvTimeFormat = "2006-01-02T15:04:05.000Z07:00"

// WriteCSV writes rows with every field double-quoted and embedded quotes
// doubled. Newlines inside a payload become spaces. Lines are separated by
// "\n" with no trailing newline.
func WriteCSV(w io.Writer, rows []*domain.Interaction) error {
	bw := bufio.NewWriter(w)
	if _, err := bw.WriteString(CSVHeader); err != nil {
		return fmt.Errorf("failed to write csv: %w", err)
	}

	for _, r := range rows {
		fields := []string{
			r.CreatedAt.UTC().Format(csvTimeFormat),
			r.UserEmail,
			r.Action,
			payloadText(r.Payload),
		}
		if err := bw.WriteByte('\n'); err != nil {
			return fmt.Errorf("failed to write csv: %w", err)
		}
		for i, f := range fields {
			if i > 0 {
				if err := bw.WriteByte(','); err != nil {
					return fmt.Errorf("failed to write csv: %w", err)
				}
			}
			if _, err := bw.WriteString(quote(f)); err != nil {
				return fmt.Errorf("failed to write csv: %w", err)
			}
		}
	}

	if err := bw.Flush(); err != nil {
		return fmt.Errorf("failed to write csv: %w", err)
	}
	return nil
}

func quote(s string) string {
	return `"` + strings.ReplaceAll(s, `"`, `""`) + `"`
}

func payloadText(p json.RawMessage) string {
	if len(p) == 0 {
		return "{}"
	}
	var buf bytes.Buffer
	if err := json.Compact(&buf, p); err != nil {
		return strings.ReplaceAll(string(p), "\n", " ")
	}
	return strings.ReplaceAll(buf.String(), "\n", " ")
}
