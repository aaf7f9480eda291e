package prisma

import (
	"encoding/json"
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/dustin/go-humanize"
	"gopkg.in/yaml.v3"

	"github.com/prisma-miner/internal/domain"
)

// Format selects the flow document encoding.
type Format string

const (
	FormatJSON Format = "json"
	FormatYAML Format = "yaml"
)

// ParseFormat resolves a format name; empty selects JSON.
func ParseFormat(name string) (Format, error) {
	switch strings.ToLower(strings.TrimSpace(name)) {
	case "", "json":
		return FormatJSON, nil
	case "yaml", "yml":
		return FormatYAML, nil
	}
	return "", domain.NewValidationError("format", fmt.Sprintf("unsupported flow format %q", name), name)
}

// SaveFlow encodes doc to w.
func SaveFlow(w io.Writer, doc FlowDocument, format Format) error {
	switch format {
	case FormatYAML:
		enc := yaml.NewEncoder(w)
		enc.SetIndent(2)
		if err := enc.Encode(doc); err != nil {
			return fmt.Errorf("encode flow yaml: %w", err)
		}
		return enc.Close()
	case FormatJSON, "":
		data, err := json.MarshalIndent(doc, "", "  ")
		if err != nil {
			return fmt.Errorf("encode flow json: %w", err)
		}
		if _, err := w.Write(append(data, '\n')); err != nil {
			return fmt.Errorf("write flow json: %w", err)
		}
		return nil
	}
	return domain.NewValidationError("format", "unsupported flow format", format)
}

// LoadFlow decodes a flow document from r.
func LoadFlow(r io.Reader, format Format) (FlowDocument, error) {
	var doc FlowDocument
	switch format {
	case FormatYAML:
		if err := yaml.NewDecoder(r).Decode(&doc); err != nil {
			return FlowDocument{}, fmt.Errorf("decode flow yaml: %w", err)
		}
	case FormatJSON, "":
		if err := json.NewDecoder(r).Decode(&doc); err != nil {
			return FlowDocument{}, fmt.Errorf("decode flow json: %w", err)
		}
	default:
		return FlowDocument{}, domain.NewValidationError("format", "unsupported flow format", format)
	}
	return doc, nil
}

// FlowFileName returns "{label}_{YYYYMMDD}_prisma_flow.{ext}".
func FlowFileName(label string, at time.Time, format Format) string {
	ext := "json"
	if format == FormatYAML {
		ext = "yaml"
	}
	return fmt.Sprintf("%s_%s_prisma_flow.%s", label, at.Format("20060102"), ext)
}

// FlowReportFileName returns "{label}_report.txt".
func FlowReportFileName(label string) string {
	return label + "_report.txt"
}

// TextReport renders the flow as a human-readable summary. Databases,
// reasons and sources appear in first-seen order.
func (f *FlowTracker) TextReport() string {
	s := f.Summary()
	var b strings.Builder

	b.WriteString("PRISMA Flow Summary\n")
	b.WriteString("===================\n\n")
	fmt.Fprintf(&b, "Condition: %s\n", f.meta.Condition)
	fmt.Fprintf(&b, "Date: %s\n\n", f.meta.Timestamp.Format(time.RFC3339))

	b.WriteString("IDENTIFICATION\n")
	b.WriteString("--------------\n")
	f.databases.Each(func(db string, n int) {
		fmt.Fprintf(&b, "  %s: %s records\n", db, humanize.Comma(int64(n)))
	})
	fmt.Fprintf(&b, "  TOTAL: %s records\n\n", humanize.Comma(int64(s.TotalIdentified)))

	b.WriteString("SCREENING\n")
	b.WriteString("---------\n")
	fmt.Fprintf(&b, "Records screened: %s\n", humanize.Comma(int64(s.TotalScreened)))
	fmt.Fprintf(&b, "Records excluded: %s (%.1f%%)\n\n", humanize.Comma(int64(s.TotalExcluded)), s.ExclusionRate)
	b.WriteString("Exclusion reasons:\n")
	f.reasons.Each(func(reason string, n int) {
		fmt.Fprintf(&b, "  - %s: %s (%.1f%%)\n", reason, humanize.Comma(int64(n)), percent(n, s.TotalExcluded))
	})

	b.WriteString("\nINCLUDED\n")
	b.WriteString("--------\n")
	fmt.Fprintf(&b, "Final dataset: %s records\n", humanize.Comma(int64(s.TotalIncluded)))
	if f.bySource.Len() > 0 {
		b.WriteString("\nBy source:\n")
		f.bySource.Each(func(src string, n int) {
			fmt.Fprintf(&b, "  %s: %s (%.1f%%)\n", src, humanize.Comma(int64(n)), percent(n, s.TotalIncluded))
		})
	}

	return b.String()
}

func percent(n, total int) float64 {
	if total == 0 {
		return 0
	}
	return float64(n) / float64(total) * 100
}
