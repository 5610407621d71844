package binnacle

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/DarioAlonsoCerezo/binnacle/broker"
	"github.com/DarioAlonsoCerezo/binnacle/date"
	"github.com/DarioAlonsoCerezo/binnacle/ibkr"
	"github.com/DarioAlonsoCerezo/binnacle/tastytrade"
)

// FileState is the stage a file reached in the import pipeline.
type FileState string

const (
	StatePending     FileState = "pending"
	StateParsing     FileState = "parsing"
	StateClassifying FileState = "classifying"
	StateConverting  FileState = "converting"
	StateMatching    FileState = "matching"
	StateAggregating FileState = "aggregating"
	StateDone        FileState = "done"
	StateFailed      FileState = "failed"
)

// ImportError is one problem met while importing, scoped to a file and,
// for row errors, a line.
type ImportError struct {
	File    string
	Line    int // zero for file-level errors
	Kind    string
	Message string
	Raw     string // offending line, when available
}

func (e ImportError) Error() string {
	if e.Line > 0 {
		return fmt.Sprintf("%s:%d: %s", e.File, e.Line, e.Message)
	}
	return fmt.Sprintf("%s: %s", e.File, e.Message)
}

// Error kinds outside the broker parsing taxonomy.
const (
	KindCancelled   = "cancelled"   // batch stopped on a cancelled context
	KindPersistence = "persistence" // the persistence collaborator failed
)

// errorKind extracts the broker error kind, when there is one.
func errorKind(err error) string {
	var brokerErr *broker.Error
	if errors.As(err, &brokerErr) {
		return string(brokerErr.Kind)
	}
	return string(broker.KindValidation)
}

// FileResult is the per-file outcome.
type FileResult struct {
	File      string
	State     FileState
	Processed int // rows turned into canonical records
	Skipped   int // rows and sections the parser deliberately passed over
	Errors    int // row and file errors attributed to this file
}

// Summary counts the canonical records an import produced.
type Summary struct {
	Trades          int // equity trades
	BrokerMovements int // cash movements and transfers
	Dividends       int // dividend movements, also counted in BrokerMovements
	OptionTrades    int // option trade records, after lot expansion
	NewTickers      int // tickers first seen by this import
}

// ImportResult is the outcome of one batch.
type ImportResult struct {
	Success          bool
	ProcessedFiles   int
	ProcessedRecords int // rows converted into canonical records
	SkippedRecords   int // rows and sections deliberately passed over
	TotalRecords     int // processed + skipped + failed rows
	ProcessingTime   time.Duration
	Errors           []ImportError
	Warnings         []string
	Summary          Summary
	Files            []FileResult
	Snapshots        []*Snapshot
}

// Progress receives a callback after each file finishes, with the overall
// batch fraction in (0, 1].
type Progress interface {
	Report(file string, fraction float64)
}

// ProgressFunc adapts a plain function to the Progress interface.
type ProgressFunc func(file string, fraction float64)

func (f ProgressFunc) Report(file string, fraction float64) { f(file, fraction) }

// Importer runs broker statement files through the whole pipeline: parse,
// classify, repair special dividend adjustments, convert, expand, match,
// aggregate, persist. Files are processed sequentially; one batch forms
// one history, so a position opened in one file can close in another.
type Importer struct {
	Resolver Resolver
	Account  string
	Progress Progress    // optional
	Prices   *PriceTable // optional, receives prices learned while importing
}

// ImportFiles imports a batch of statement files into the account.
// Row-scoped problems never abort a file and file-scoped problems never
// abort the batch; both land in the result and clear Success. The
// returned error is non-nil only when the persistence collaborator fails;
// the result rides along with everything gathered so far. Cancellation is
// honored between files: finished files stay in the result, a single
// cancellation error is recorded, and nothing is persisted.
func (imp *Importer) ImportFiles(ctx context.Context, files ...string) (*ImportResult, error) {
	start := time.Now()
	if imp.Prices == nil {
		imp.Prices = NewPriceTable()
	}
	result := &ImportResult{Success: true}
	finish := func() *ImportResult {
		for _, f := range result.Files {
			result.ProcessedRecords += f.Processed
			result.SkippedRecords += f.Skipped
		}
		rowErrors := 0
		for _, e := range result.Errors {
			if e.Line > 0 {
				rowErrors++
			}
		}
		result.TotalRecords = result.ProcessedRecords + result.SkippedRecords + rowErrors
		result.ProcessingTime = time.Since(start)
		if len(result.Errors) > 0 {
			result.Success = false
		}
		return result
	}

	var batch []Record
	var options []*OptionTrade
	newTickers := 0
	cancelled := false
	for n, file := range files {
		if err := ctx.Err(); err != nil {
			result.Errors = append(result.Errors, ImportError{
				File: file, Kind: KindCancelled,
				Message: fmt.Sprintf("import cancelled: %v", err),
			})
			for _, rest := range files[n:] {
				result.Files = append(result.Files, FileResult{File: rest, State: StatePending})
			}
			cancelled = true
			break
		}

		idx := len(result.Files)
		result.Files = append(result.Files, FileResult{File: file, State: StatePending})
		fr := &result.Files[idx]

		fileStart := time.Now()
		records, created, err := imp.importFile(ctx, file, fr, result)
		if err != nil {
			return finish(), err
		}
		slog.Debug("file imported", "file", file, "records", len(records), "duration", time.Since(fileStart))
		newTickers += created
		if fr.State != StateFailed {
			result.ProcessedFiles++
			batch = append(batch, records...)
			for _, r := range records {
				if t, ok := r.(*OptionTrade); ok {
					options = append(options, t)
				}
			}
			// Linking after every file keeps cross-file positions
			// consistent as the batch grows. Matching is repeat-safe;
			// only the final pass below reports what stayed unmatched.
			fr.State = StateMatching
			MatchOptions(options)
			fr.State = StateAggregating
		}
		if imp.Progress != nil {
			imp.Progress.Report(file, float64(n+1)/float64(len(files)))
		}
	}

	_, unmatched := MatchOptions(options)
	for _, w := range unmatched {
		slog.Warn(w)
	}
	result.Warnings = append(result.Warnings, unmatched...)

	aggregator := NewAggregator(imp.Prices)
	result.Snapshots = aggregator.Aggregate(batch)
	for i := range result.Files {
		if result.Files[i].State == StateAggregating {
			result.Files[i].State = StateDone
		}
	}

	result.Summary = summarize(batch)
	result.Summary.NewTickers = newTickers

	if cancelled {
		return finish(), nil
	}

	for _, r := range batch {
		if err := imp.save(ctx, r); err != nil {
			result.Errors = append(result.Errors, ImportError{
				Kind:    KindPersistence,
				Message: fmt.Sprintf("cannot persist record: %v", err),
			})
			return finish(), err
		}
	}
	for _, s := range result.Snapshots {
		if err := imp.Resolver.SaveSnapshot(ctx, s); err != nil {
			result.Errors = append(result.Errors, ImportError{
				Kind:    KindPersistence,
				Message: fmt.Sprintf("cannot persist snapshot: %v", err),
			})
			return finish(), err
		}
	}
	return finish(), nil
}

func (imp *Importer) save(ctx context.Context, r Record) error {
	switch rec := r.(type) {
	case *OptionTrade:
		return imp.Resolver.SaveOptionTrade(ctx, rec)
	case *EquityTrade:
		return imp.Resolver.SaveEquityTrade(ctx, rec)
	case *Movement:
		return imp.Resolver.SaveMovement(ctx, rec)
	}
	return fmt.Errorf("unknown record kind %q", r.Kind())
}

// importFile runs one file through parse, classify, repair, convert and
// expand. It reports how many tickers the file introduced; the returned
// error is non-nil only on collaborator failure.
func (imp *Importer) importFile(ctx context.Context, file string, fr *FileResult, result *ImportResult) (records []Record, newTickers int, err error) {
	name := filepath.Base(file)
	failFile := func(err error) {
		fr.State = StateFailed
		fr.Errors++
		result.Errors = append(result.Errors, ImportError{
			File: name, Kind: errorKind(err), Message: err.Error(),
		})
	}
	failRows := func(rowErrs []broker.RowError) {
		for _, rowErr := range rowErrs {
			fr.Errors++
			result.Errors = append(result.Errors, ImportError{
				File: name, Line: rowErr.Line, Kind: errorKind(rowErr.Err),
				Message: rowErr.Err.Error(), Raw: rowErr.Raw,
			})
		}
	}

	fr.State = StateParsing
	data, err := os.ReadFile(file)
	if err != nil {
		failFile(fmt.Errorf("cannot read %s: %w", file, err))
		return nil, 0, nil
	}

	var parsed *broker.Result
	var positions []ibkr.OpenPosition
	if sniffTastytrade(data) {
		parsed, err = tastytrade.Parse(bytes.NewReader(data))
	} else {
		var statement *ibkr.Statement
		statement, err = ibkr.ParseStatement(bytes.NewReader(data))
		if statement != nil {
			parsed = statement.Result
			positions = statement.Positions
		}
	}
	if err != nil {
		failFile(err)
		return nil, 0, nil
	}
	failRows(parsed.Errors)
	fr.Skipped = parsed.SkippedRows
	for _, sec := range parsed.Skipped {
		slog.Warn("section skipped", "file", name, "section", sec.Name, "reason", sec.Reason)
	}

	fr.State = StateClassifying
	classified, classErrs := ClassifyAll(parsed.Transactions)
	failRows(classErrs)

	pairs, remaining, warnings := DetectAdjustments(classified)
	result.Warnings = append(result.Warnings, warnings...)

	fr.State = StateConverting
	conversion, err := Convert(ctx, imp.Resolver, imp.Account, remaining, pairs)
	if err != nil {
		failFile(err)
		return nil, 0, err
	}
	failRows(conversion.Errors)
	fr.Processed = len(conversion.Records)

	imp.learnClosePrices(positions, conversion.Records)
	return ExpandAll(conversion.Records), conversion.NewTickers, nil
}

// learnClosePrices feeds statement close prices into the price table,
// dated at the file's most recent record so marks stay as-of correct.
func (imp *Importer) learnClosePrices(positions []ibkr.OpenPosition, records []Record) {
	if len(positions) == 0 {
		return
	}
	var latest time.Time
	for _, r := range records {
		if r.When().After(latest) {
			latest = r.When()
		}
	}
	day := date.Today()
	if !latest.IsZero() {
		day = date.FromTime(latest)
	}
	for _, pos := range positions {
		if pos.AssetCategory != "Stocks" {
			continue
		}
		currency := pos.Currency
		if currency == "" {
			currency = DefaultCurrency
		}
		imp.Prices.LearnClose(pos.Symbol, day, M(pos.ClosePrice, currency))
	}
}

// summarize counts the canonical records of a batch. NewTickers is
// accumulated during conversion, not derivable from the records here.
func summarize(records []Record) Summary {
	var s Summary
	for _, r := range records {
		switch rec := r.(type) {
		case *OptionTrade:
			s.OptionTrades++
		case *EquityTrade:
			s.Trades++
		case *Movement:
			s.BrokerMovements++
			if rec.Type == MovementDividend {
				s.Dividends++
			}
		}
	}
	return s
}

// sniffTastytrade reports whether the data opens with the flat
// transaction-history header; anything else is treated as an activity
// statement.
func sniffTastytrade(data []byte) bool {
	line := data
	if i := bytes.IndexByte(data, '\n'); i >= 0 {
		line = data[:i]
	}
	first, _, _ := strings.Cut(string(line), ",")
	first = strings.Trim(first, "\" \r\t\uFEFF")
	return strings.EqualFold(first, "Date")
}
