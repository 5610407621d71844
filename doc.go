// Package binnacle turns broker transaction-history exports into an
// auditable investment record. It is designed to be local-first and
// deterministic: the same files imported in the same order always produce
// the same record.
//
// The core functionalities include:
//   - Import Pipeline: Parsing broker CSV exports (Tastytrade transaction
//     history, Interactive Brokers activity statements) into canonical
//     trades, option trades, dividends and broker cash movements.
//   - Corporate Action Repair: Detecting special dividend strike
//     adjustments that brokers report as close/reopen trade pairs and
//     recording them as strike adjustments instead.
//   - Option Accounting: Expanding multi-contract option executions into
//     single-contract records and matching closings to openings first-in
//     first-out, so every contract's lifecycle is explicit.
//   - Financial Snapshots: Folding the canonical records into per account,
//     per currency daily snapshots of realized and unrealized gains, cash
//     flows, income and open trade counts.
//   - Data Persistence: Encoding and decoding the canonical records to and
//     from human-readable, version-controllable JSONL, plus a relational
//     store for querying.
//
// This package serves as the foundational logic for the `bnc` command-line
// tool, ensuring that all operations are consistent and based on a single
// source of truth.
package binnacle
