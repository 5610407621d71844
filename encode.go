package binnacle

import (
	"bufio"
	"bytes"
	"encoding/json"
	"fmt"
	"io"

	"github.com/shopspring/decimal"
)

func init() {
	decimal.MarshalJSONWithoutQuotes = true
}

// EncodeRecord writes one record as a single JSON line.
func EncodeRecord(w io.Writer, r Record) error {
	data, err := json.Marshal(r)
	if err != nil {
		return fmt.Errorf("cannot encode %s record %s: %w", r.Kind(), r.ID(), err)
	}
	data = append(data, '\n')
	_, err = w.Write(data)
	return err
}

// EncodeRecords writes records in order, one JSON object per line. The
// stream decodes back with DecodeRecords.
func EncodeRecords(w io.Writer, records []Record) error {
	bw := bufio.NewWriter(w)
	for _, r := range records {
		if err := EncodeRecord(bw, r); err != nil {
			return err
		}
	}
	return bw.Flush()
}

// DecodeRecords reads a JSONL stream of canonical records. The "record"
// key on each line selects the concrete type. Blank lines are ignored;
// any malformed line fails the whole stream.
func DecodeRecords(r io.Reader) ([]Record, error) {
	var records []Record
	scanner := bufio.NewScanner(r)
	scanner.Buffer(make([]byte, 0, 64*1024), 1<<20)
	line := 0
	for scanner.Scan() {
		line++
		data := bytes.TrimSpace(scanner.Bytes())
		if len(data) == 0 {
			continue
		}

		var identifier struct {
			Record RecordKind `json:"record"`
		}
		if err := json.Unmarshal(data, &identifier); err != nil {
			return nil, fmt.Errorf("could not identify record on line %d: %w", line, err)
		}

		var rec Record
		switch identifier.Record {
		case KindOptionTrade:
			rec = new(OptionTrade)
		case KindEquityTrade:
			rec = new(EquityTrade)
		case KindMovement:
			rec = new(Movement)
		default:
			return nil, fmt.Errorf("unknown record kind %q on line %d", identifier.Record, line)
		}
		if err := json.Unmarshal(data, rec); err != nil {
			return nil, fmt.Errorf("could not decode %s record on line %d: %w", identifier.Record, line, err)
		}
		records = append(records, rec)
	}
	if err := scanner.Err(); err != nil {
		return nil, err
	}
	return records, nil
}
