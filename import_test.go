package binnacle

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/DarioAlonsoCerezo/binnacle/date"
	"github.com/DarioAlonsoCerezo/binnacle/tastytrade"
)

func writeStatement(t *testing.T, dir, name, content string) string {
	t.Helper()
	path := filepath.Join(dir, name)
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatalf("cannot write fixture %s: %v", name, err)
	}
	return path
}

// tastytradeCSV assembles an export from the canonical header and raw rows.
func tastytradeCSV(rows ...string) string {
	lines := append([]string{strings.Join(tastytrade.Header, ",")}, rows...)
	return strings.Join(lines, "\n") + "\n"
}

const (
	depositRow   = `2024-05-01T09:00:00-0500,Money Movement,Deposit,--,--,--,ACH DEPOSIT,5000.00,0,--,0.00,0.00,--,--,--,--,--,--,--,USD`
	sellFiveRow  = `2024-05-01T10:00:00-0500,Trade,Sell to Open,SELL_TO_OPEN,SPY 240621P00450000,Equity Option,Sold 5 SPY 06/21/24 Put 450.00 @ 2.40,1200.00,5,2.40,-5.00,-0.70,100,SPY,SPY,6/21/24,450.0,PUT,1001,USD`
	sellSixRow   = `2024-05-02T10:00:00-0500,Trade,Sell to Open,SELL_TO_OPEN,SPY 240621P00450000,Equity Option,Sold 6 SPY 06/21/24 Put 450.00 @ 2.20,1320.00,6,2.20,-6.00,-0.84,100,SPY,SPY,6/21/24,450.00,PUT,1002,USD`
	buyElevenRow = `2024-05-10T10:00:00-0500,Trade,Buy to Close,BUY_TO_CLOSE,SPY 240621P00450000,Equity Option,Bought 11 SPY 06/21/24 Put 450.00 @ 0.90,-990.00,11,0.90,0.00,-1.54,100,SPY,SPY,6/21/24,450.00,PUT,1003,USD`
)

func TestImportBatchMatchesAcrossFiles(t *testing.T) {
	// 1. Three exports: 5 puts sold, 6 more sold, then all 11 bought back.
	dir := t.TempDir()
	files := []string{
		writeStatement(t, dir, "may-01.csv", tastytradeCSV(depositRow, sellFiveRow)),
		writeStatement(t, dir, "may-02.csv", tastytradeCSV(sellSixRow)),
		writeStatement(t, dir, "may-10.csv", tastytradeCSV(buyElevenRow)),
	}
	resolver := newMemResolver()
	imp := &Importer{Resolver: resolver, Account: "taxable"}

	// 2. Import the whole batch.
	result, err := imp.ImportFiles(context.Background(), files...)
	if err != nil {
		t.Fatalf("ImportFiles() error = %v", err)
	}

	// 3. The batch succeeds end to end.
	if !result.Success {
		t.Fatalf("ImportFiles() success = false, errors: %v", result.Errors)
	}
	if result.ProcessedFiles != 3 {
		t.Errorf("ProcessedFiles = %d, want 3", result.ProcessedFiles)
	}
	for _, fr := range result.Files {
		if fr.State != StateDone {
			t.Errorf("file %s state = %s, want %s", fr.File, fr.State, StateDone)
		}
	}
	if result.ProcessedRecords != 4 {
		t.Errorf("ProcessedRecords = %d, want 4 source rows", result.ProcessedRecords)
	}
	if result.TotalRecords != 4 {
		t.Errorf("TotalRecords = %d, want 4", result.TotalRecords)
	}
	if len(result.Warnings) != 0 {
		t.Errorf("Warnings = %v, want none: every closing has an opening", result.Warnings)
	}
	if result.ProcessingTime <= 0 {
		t.Error("ProcessingTime must be populated")
	}

	// 4. Lot expansion turned 5+6+11 contracts into single-quantity records.
	if got, want := result.Summary.OptionTrades, 22; got != want {
		t.Errorf("Summary.OptionTrades = %d, want %d expanded units", got, want)
	}
	if result.Summary.BrokerMovements != 1 || result.Summary.Trades != 0 || result.Summary.Dividends != 0 {
		t.Errorf("Summary = %+v, want 1 movement and no equity trades", result.Summary)
	}
	if result.Summary.NewTickers != 1 {
		t.Errorf("Summary.NewTickers = %d, want SPY counted once across files", result.Summary.NewTickers)
	}

	// 5. FIFO matching crossed file boundaries: no unit stayed open.
	if len(resolver.options) != 22 {
		t.Fatalf("persisted %d option trades, want 22", len(resolver.options))
	}
	for _, trade := range resolver.options {
		if trade.IsOpen {
			t.Errorf("trade %s at %s is still open", trade.ID(), trade.When())
		}
		if trade.ClosedWith == "" {
			t.Errorf("trade %s at %s is not linked", trade.ID(), trade.When())
		}
		if err := trade.Validate(); err != nil {
			t.Errorf("persisted trade is invalid: %v", err)
		}
	}
	if len(resolver.movements) != 1 {
		t.Errorf("persisted %d movements, want 1", len(resolver.movements))
	}

	// 6. The snapshot trail prices the whole history.
	if len(result.Snapshots) != 3 {
		t.Fatalf("got %d snapshots, want one per touched day", len(result.Snapshots))
	}
	if len(resolver.snapshots) != len(result.Snapshots) {
		t.Errorf("persisted %d snapshots, want %d", len(resolver.snapshots), len(result.Snapshots))
	}
	opening := snapshotOn(t, result.Snapshots, "taxable", "USD", date.New(2024, time.May, 1))
	if got, want := opening.Deposited, USD(5000); !got.Equal(want) {
		t.Errorf("day one Deposited = %v, want %v", got, want)
	}
	if got, want := opening.OptionsIncome, USD(1194.30); !got.Equal(want) {
		t.Errorf("day one OptionsIncome = %v, want net of commissions and fees %v", got, want)
	}
	if !opening.OpenTrades {
		t.Error("day one must flag open positions")
	}
	closing := snapshotOn(t, result.Snapshots, "taxable", "USD", date.New(2024, time.May, 10))
	if got, want := closing.RealizedGains, USD(1515.92); !got.Equal(want) {
		t.Errorf("final RealizedGains = %v, want %v", got, want)
	}
	if got, want := closing.Commissions, USD(11); !got.Equal(want) {
		t.Errorf("final Commissions = %v, want %v", got, want)
	}
	if got, want := closing.Fees, USD(3.08); !got.Equal(want) {
		t.Errorf("final Fees = %v, want %v", got, want)
	}
	if closing.OpenTrades {
		t.Error("after the buyback no position stays open")
	}
}

func TestImportReportsExcessClosings(t *testing.T) {
	dir := t.TempDir()
	files := []string{
		writeStatement(t, dir, "open.csv", tastytradeCSV(sellFiveRow)),
		writeStatement(t, dir, "close.csv", tastytradeCSV(buyElevenRow)),
	}
	resolver := newMemResolver()
	imp := &Importer{Resolver: resolver, Account: "taxable"}

	result, err := imp.ImportFiles(context.Background(), files...)
	if err != nil {
		t.Fatalf("ImportFiles() error = %v", err)
	}

	// 11 closings against 5 openings: the surplus becomes warnings, not
	// errors, and the records keep flowing.
	if !result.Success {
		t.Fatalf("unmatched closings must not fail the batch, errors: %v", result.Errors)
	}
	if len(result.Warnings) != 6 {
		t.Fatalf("got %d warnings, want 6 unmatched closings:\n%s",
			len(result.Warnings), strings.Join(result.Warnings, "\n"))
	}
	for _, w := range result.Warnings {
		if !strings.Contains(w, "no open position") {
			t.Errorf("warning %q does not name the problem", w)
		}
	}

	unlinked := 0
	for _, trade := range resolver.options {
		if trade.ClosedWith == "" && !trade.IsOpen {
			unlinked++
		}
	}
	if unlinked != 6 {
		t.Errorf("persisted %d unlinked closings, want 6", unlinked)
	}

	// Realized gains cover the 5 matched pairs only.
	final := snapshotOn(t, result.Snapshots, "taxable", "USD", date.New(2024, time.May, 10))
	if got, want := final.RealizedGains, USD(743.60); !got.Equal(want) {
		t.Errorf("RealizedGains = %v, want %v from the matched pairs", got, want)
	}
	if final.OpenTrades {
		t.Error("all openings were consumed, no position stays open")
	}
}

func TestImportActivityStatement(t *testing.T) {
	statement := `Statement,Header,Field Name,Field Value
Statement,Data,BrokerName,Interactive Brokers
Trades,Header,DataDiscriminator,Asset Category,Currency,Symbol,Date/Time,Quantity,T. Price,Proceeds,Comm/Fee,Code
Trades,Data,Order,Stocks,USD,VTI,"2024-05-10, 10:30:00",10,250,-2500,-1,O
Deposits & Withdrawals,Header,Currency,Settle Date,Description,Amount
Deposits & Withdrawals,Data,USD,2024-05-09,Electronic Fund Transfer,5000
Open Positions,Header,DataDiscriminator,Asset Category,Currency,Symbol,Quantity,Mult,Cost Price,Cost Basis,Close Price,Value,Unrealized P/L
Open Positions,Data,Summary,Stocks,USD,VTI,10,1,250,2500,260,2600,100
`
	dir := t.TempDir()
	file := writeStatement(t, dir, "activity.csv", statement)
	resolver := newMemResolver()
	imp := &Importer{Resolver: resolver, Account: "ibkr"}

	result, err := imp.ImportFiles(context.Background(), file)
	if err != nil {
		t.Fatalf("ImportFiles() error = %v", err)
	}
	if !result.Success {
		t.Fatalf("ImportFiles() success = false, errors: %v", result.Errors)
	}

	if result.Summary.Trades != 1 || result.Summary.BrokerMovements != 1 {
		t.Errorf("Summary = %+v, want 1 trade and 1 movement", result.Summary)
	}
	if result.Summary.NewTickers != 1 {
		t.Errorf("Summary.NewTickers = %d, want 1", result.Summary.NewTickers)
	}
	// The unsupported Statement section is skipped, not failed.
	if result.SkippedRecords == 0 {
		t.Error("SkippedRecords = 0, want the informational section counted")
	}
	if len(resolver.equities) != 1 {
		t.Fatalf("persisted %d equity trades, want 1", len(resolver.equities))
	}
	trade := resolver.equities[0]
	if got, want := trade.Quantity, Q(10); !got.Equal(want) {
		t.Errorf("Quantity = %v, want %v", got, want)
	}
	if got, want := trade.Price, USD(250); !got.Equal(want) {
		t.Errorf("Price = %v, want %v", got, want)
	}

	// The position section's close price marks the remaining shares, and
	// it wins over the same-day execution price.
	final := snapshotOn(t, result.Snapshots, "ibkr", "USD", date.New(2024, time.May, 10))
	if got, want := final.Invested, USD(2500); !got.Equal(want) {
		t.Errorf("Invested = %v, want %v", got, want)
	}
	if got, want := final.UnrealizedGains, USD(100); !got.Equal(want) {
		t.Errorf("UnrealizedGains = %v, want the statement close mark %v", got, want)
	}
	if got, want := final.Deposited, USD(5000); !got.Equal(want) {
		t.Errorf("Deposited = %v, want %v", got, want)
	}
}

func TestImportMalformedRowsDoNotAbortFile(t *testing.T) {
	badRow := `2024-05-01T10:00:00-0500,Trade,Sell to Open,SELL_TO_OPEN,SPY 240621P00450000,Equity Option,Sold 1 SPY,abc,1,2.40,-1.00,-0.14,100,SPY,SPY,6/21/24,450,PUT,1001,USD`
	withdrawalRow := `2024-05-02T09:00:00-0500,Money Movement,Withdrawal,--,--,--,Wire out,-250.00,0,--,0.00,0.00,--,--,--,--,--,--,--,USD`

	dir := t.TempDir()
	file := writeStatement(t, dir, "mixed.csv", tastytradeCSV(depositRow, badRow, withdrawalRow))
	resolver := newMemResolver()
	imp := &Importer{Resolver: resolver, Account: "taxable"}

	result, err := imp.ImportFiles(context.Background(), file)
	if err != nil {
		t.Fatalf("ImportFiles() error = %v", err)
	}

	if result.Success {
		t.Error("a failed row must clear Success")
	}
	if len(result.Errors) != 1 {
		t.Fatalf("got %d errors, want 1: %v", len(result.Errors), result.Errors)
	}
	e := result.Errors[0]
	if e.Line != 3 {
		t.Errorf("error line = %d, want 3", e.Line)
	}
	if e.Kind != "invalid_amount" {
		t.Errorf("error kind = %q, want invalid_amount", e.Kind)
	}
	if e.Raw == "" {
		t.Error("the error must carry the offending line")
	}

	// The two good rows survive and persist.
	fr := result.Files[0]
	if fr.State != StateDone {
		t.Errorf("file state = %s, want %s: row failures never fail the file", fr.State, StateDone)
	}
	if fr.Processed != 2 || fr.Errors != 1 {
		t.Errorf("file processed/errors = %d/%d, want 2/1", fr.Processed, fr.Errors)
	}
	if len(resolver.movements) != 2 {
		t.Errorf("persisted %d movements, want deposit and withdrawal", len(resolver.movements))
	}
	if result.TotalRecords != 3 {
		t.Errorf("TotalRecords = %d, want processed plus failed", result.TotalRecords)
	}
}

func TestImportUnreadableFileFailsOnlyThatFile(t *testing.T) {
	dir := t.TempDir()
	good := writeStatement(t, dir, "good.csv", tastytradeCSV(depositRow))
	missing := filepath.Join(dir, "missing.csv")
	resolver := newMemResolver()
	imp := &Importer{Resolver: resolver, Account: "taxable"}

	result, err := imp.ImportFiles(context.Background(), missing, good)
	if err != nil {
		t.Fatalf("ImportFiles() error = %v, file problems belong in the result", err)
	}

	if result.Success {
		t.Error("an unreadable file must clear Success")
	}
	if result.Files[0].State != StateFailed {
		t.Errorf("missing file state = %s, want %s", result.Files[0].State, StateFailed)
	}
	if result.Files[1].State != StateDone {
		t.Errorf("good file state = %s, want %s", result.Files[1].State, StateDone)
	}
	if result.ProcessedFiles != 1 {
		t.Errorf("ProcessedFiles = %d, want the good file only", result.ProcessedFiles)
	}
	if len(resolver.movements) != 1 {
		t.Errorf("persisted %d movements, want the good file's deposit", len(resolver.movements))
	}
}

func TestImportCancellationBetweenFiles(t *testing.T) {
	dir := t.TempDir()
	files := []string{
		writeStatement(t, dir, "a.csv", tastytradeCSV(depositRow)),
		writeStatement(t, dir, "b.csv", tastytradeCSV(sellFiveRow)),
	}
	resolver := newMemResolver()
	imp := &Importer{Resolver: resolver, Account: "taxable"}

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	result, err := imp.ImportFiles(ctx, files...)
	if err != nil {
		t.Fatalf("ImportFiles() error = %v, cancellation belongs in the result", err)
	}

	if result.Success {
		t.Error("a cancelled batch must clear Success")
	}
	cancelledErrors := 0
	for _, e := range result.Errors {
		if e.Kind == KindCancelled {
			cancelledErrors++
		}
	}
	if cancelledErrors != 1 {
		t.Errorf("got %d cancellation errors, want exactly 1: %v", cancelledErrors, result.Errors)
	}
	for _, fr := range result.Files {
		if fr.State != StatePending {
			t.Errorf("file %s state = %s, want %s", fr.File, fr.State, StatePending)
		}
	}
	if len(resolver.movements)+len(resolver.options)+len(resolver.snapshots) != 0 {
		t.Error("a cancelled batch must persist nothing")
	}
}

func TestImportProgress(t *testing.T) {
	dir := t.TempDir()
	files := []string{
		writeStatement(t, dir, "a.csv", tastytradeCSV(depositRow)),
		writeStatement(t, dir, "b.csv", tastytradeCSV(sellFiveRow)),
	}
	var seen []float64
	imp := &Importer{
		Resolver: newMemResolver(),
		Account:  "taxable",
		Progress: ProgressFunc(func(file string, fraction float64) {
			seen = append(seen, fraction)
		}),
	}

	if _, err := imp.ImportFiles(context.Background(), files...); err != nil {
		t.Fatalf("ImportFiles() error = %v", err)
	}

	want := []float64{0.5, 1}
	if len(seen) != len(want) {
		t.Fatalf("got %d progress updates, want %d", len(seen), len(want))
	}
	for i := range want {
		if seen[i] != want[i] {
			t.Errorf("progress[%d] = %v, want %v", i, seen[i], want[i])
		}
	}
}

func TestImportPersistenceFailureReturnsError(t *testing.T) {
	dir := t.TempDir()
	file := writeStatement(t, dir, "a.csv", tastytradeCSV(depositRow))
	resolver := newMemResolver()
	resolver.failSaves = errors.New("disk full")
	imp := &Importer{Resolver: resolver, Account: "taxable"}

	result, err := imp.ImportFiles(context.Background(), file)
	if err == nil {
		t.Fatal("ImportFiles() error = nil, want the persistence failure surfaced")
	}
	if result == nil {
		t.Fatal("the result must ride along with the error")
	}
	found := false
	for _, e := range result.Errors {
		if e.Kind == KindPersistence {
			found = true
		}
	}
	if !found {
		t.Errorf("no %s error recorded: %v", KindPersistence, result.Errors)
	}
	if result.Success {
		t.Error("a persistence failure must clear Success")
	}
}
