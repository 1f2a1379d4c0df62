package export

import (
	"encoding/csv"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strconv"
	"time"

	"go.uber.org/zap"

	"github.com/rovshanmuradov/yozoon/internal/events"
	"github.com/rovshanmuradov/yozoon/internal/storage"
)

// ExportFormat represents the export file format
type ExportFormat string

const (
	FormatCSV  ExportFormat = "csv"
	FormatJSON ExportFormat = "json"
)

// ParseFormat accepts the names used on the command line.
func ParseFormat(s string) (ExportFormat, error) {
	switch f := ExportFormat(s); f {
	case FormatCSV, FormatJSON:
		return f, nil
	}
	return "", fmt.Errorf("unsupported format: %s", s)
}

// ExportOptions configures the export behavior
type ExportOptions struct {
	Format    ExportFormat
	StartTime time.Time
	EndTime   time.Time
	Types     []events.EventType // empty means every type
	OutputDir string
}

// JournalExporter writes committed ledger events to files
type JournalExporter struct {
	logger *zap.Logger
	now    func() time.Time
}

// NewJournalExporter creates a new journal exporter
func NewJournalExporter(logger *zap.Logger) *JournalExporter {
	return &JournalExporter{
		logger: logger,
		now:    time.Now,
	}
}

// ExportJournal exports entries based on the provided options and returns
// the path of the written file.
func (je *JournalExporter) ExportJournal(entries []storage.JournalEntry, options ExportOptions) (string, error) {
	filtered := je.filterEntries(entries, options)
	if len(filtered) == 0 {
		return "", fmt.Errorf("no journal entries match the export criteria")
	}

	sort.Slice(filtered, func(i, j int) bool {
		return filtered[i].Seq < filtered[j].Seq
	})

	if err := os.MkdirAll(options.OutputDir, 0755); err != nil {
		return "", fmt.Errorf("failed to create output directory: %w", err)
	}
	outputPath := filepath.Join(options.OutputDir, je.generateFilename(options))

	var err error
	switch options.Format {
	case FormatCSV:
		err = je.exportToCSV(filtered, outputPath)
	case FormatJSON:
		err = je.exportToJSON(filtered, outputPath)
	default:
		err = fmt.Errorf("unsupported format: %s", options.Format)
	}
	if err != nil {
		return "", err
	}

	je.logger.Info("Journal exported",
		zap.String("file", outputPath),
		zap.Int("count", len(filtered)),
		zap.String("format", string(options.Format)))

	return outputPath, nil
}

func (je *JournalExporter) filterEntries(entries []storage.JournalEntry, options ExportOptions) []storage.JournalEntry {
	types := make(map[events.EventType]bool, len(options.Types))
	for _, t := range options.Types {
		types[t] = true
	}

	var filtered []storage.JournalEntry
	for _, e := range entries {
		if !options.StartTime.IsZero() && e.CommittedAt.Before(options.StartTime) {
			continue
		}
		if !options.EndTime.IsZero() && e.CommittedAt.After(options.EndTime) {
			continue
		}
		if len(types) > 0 && !types[e.Event.Type()] {
			continue
		}
		filtered = append(filtered, e)
	}
	return filtered
}

func (je *JournalExporter) generateFilename(options ExportOptions) string {
	prefix := "journal_all"
	if len(options.Types) == 1 {
		prefix = "journal_" + string(options.Types[0])
	}
	return fmt.Sprintf("%s_%s.%s", prefix, je.now().Format("20060102_150405"), options.Format)
}

// CSVHeaders returns the column names of a CSV export.
func CSVHeaders() []string {
	return []string{"seq", "version", "committed_at", "type", "event_time", "payload"}
}

func csvRow(e storage.JournalEntry) ([]string, error) {
	payload, err := json.Marshal(e.Event)
	if err != nil {
		return nil, fmt.Errorf("failed to encode %s #%d: %w", e.Event.Type(), e.Seq, err)
	}
	return []string{
		strconv.FormatInt(e.Seq, 10),
		strconv.FormatUint(e.Version, 10),
		e.CommittedAt.UTC().Format(time.RFC3339),
		string(e.Event.Type()),
		e.Event.Timestamp().Format(time.RFC3339),
		string(payload),
	}, nil
}

func (je *JournalExporter) exportToCSV(entries []storage.JournalEntry, outputPath string) error {
	file, err := os.Create(outputPath)
	if err != nil {
		return fmt.Errorf("failed to create CSV file: %w", err)
	}
	defer file.Close()

	writer := csv.NewWriter(file)
	if err := writer.Write(CSVHeaders()); err != nil {
		return fmt.Errorf("failed to write CSV headers: %w", err)
	}
	for _, e := range entries {
		row, err := csvRow(e)
		if err != nil {
			return err
		}
		if err := writer.Write(row); err != nil {
			return fmt.Errorf("failed to write entry: %w", err)
		}
	}
	writer.Flush()
	return writer.Error()
}

// exportedEntry flattens a journal entry for JSON output.
type exportedEntry struct {
	Seq         int64            `json:"seq"`
	Version     uint64           `json:"version"`
	CommittedAt time.Time        `json:"committed_at"`
	Type        events.EventType `json:"type"`
	Event       events.Event     `json:"event"`
}

func (je *JournalExporter) exportToJSON(entries []storage.JournalEntry, outputPath string) error {
	file, err := os.Create(outputPath)
	if err != nil {
		return fmt.Errorf("failed to create JSON file: %w", err)
	}
	defer file.Close()

	out := make([]exportedEntry, 0, len(entries))
	for _, e := range entries {
		out = append(out, exportedEntry{
			Seq:         e.Seq,
			Version:     e.Version,
			CommittedAt: e.CommittedAt,
			Type:        e.Event.Type(),
			Event:       e.Event,
		})
	}

	exportData := struct {
		ExportTime time.Time       `json:"export_time"`
		EntryCount int             `json:"entry_count"`
		Summary    ExportSummary   `json:"summary"`
		Entries    []exportedEntry `json:"entries"`
	}{
		ExportTime: je.now(),
		EntryCount: len(entries),
		Summary:    Summarize(entries),
		Entries:    out,
	}

	encoder := json.NewEncoder(file)
	encoder.SetIndent("", "  ")
	if err := encoder.Encode(exportData); err != nil {
		return fmt.Errorf("failed to encode JSON: %w", err)
	}
	return nil
}

// ExportSummary contains totals over exported entries. Amounts are in
// lamports and atomic token units.
type ExportSummary struct {
	FirstSeq       int64                    `json:"first_seq"`
	LastSeq        int64                    `json:"last_seq"`
	ByType         map[events.EventType]int `json:"by_type"`
	Buyers         int                      `json:"unique_buyers"`
	SolIn          uint64                   `json:"sol_in"`
	SolOut         uint64                   `json:"sol_out"`
	TokensIssued   uint64                   `json:"tokens_issued"`
	TokensRedeemed uint64                   `json:"tokens_redeemed"`
	ReferralPaid   uint64                   `json:"referral_paid"`
	AirdropClaimed uint64                   `json:"airdrop_claimed"`
}

// Summarize totals entries, which must be sorted by Seq.
func Summarize(entries []storage.JournalEntry) ExportSummary {
	summary := ExportSummary{ByType: make(map[events.EventType]int)}
	if len(entries) == 0 {
		return summary
	}
	summary.FirstSeq = entries[0].Seq
	summary.LastSeq = entries[len(entries)-1].Seq

	buyers := make(map[string]bool)
	for _, e := range entries {
		summary.ByType[e.Event.Type()]++

		switch ev := e.Event.(type) {
		case *events.TokenPurchaseEvent:
			buyers[ev.Buyer.String()] = true
			summary.SolIn += ev.SolAmount
			summary.TokensIssued += ev.TokensIssued
		case *events.TokenSaleEvent:
			summary.SolOut += ev.SolReturned
			summary.TokensRedeemed += ev.TokenAmount
		case *events.ReferralPaymentEvent:
			summary.ReferralPaid += ev.Amount
		case *events.AirdropClaimedEvent:
			summary.AirdropClaimed += ev.Amount
		}
	}
	summary.Buyers = len(buyers)
	return summary
}
