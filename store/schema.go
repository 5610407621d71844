package store

// Schema creates the tables and indexes the store relies on. Entity tables
// back the get-or-create lookups; record tables keep the canonical JSON of
// each record next to the columns queries filter on; snapshots hold one
// authoritative row per account, currency and date.
const Schema = `
CREATE TABLE IF NOT EXISTS accounts (
	id INTEGER PRIMARY KEY AUTOINCREMENT,
	name TEXT NOT NULL UNIQUE
);

CREATE TABLE IF NOT EXISTS currencies (
	id INTEGER PRIMARY KEY AUTOINCREMENT,
	code TEXT NOT NULL UNIQUE
);

CREATE TABLE IF NOT EXISTS tickers (
	id INTEGER PRIMARY KEY AUTOINCREMENT,
	symbol TEXT NOT NULL UNIQUE
);

CREATE TABLE IF NOT EXISTS option_trades (
	id TEXT PRIMARY KEY,
	time DATETIME NOT NULL,
	account TEXT NOT NULL,
	currency TEXT NOT NULL,
	ticker TEXT NOT NULL,
	open INTEGER NOT NULL,
	closed_with TEXT NOT NULL DEFAULT '',
	data TEXT NOT NULL
);

CREATE TABLE IF NOT EXISTS equity_trades (
	id TEXT PRIMARY KEY,
	time DATETIME NOT NULL,
	account TEXT NOT NULL,
	currency TEXT NOT NULL,
	ticker TEXT NOT NULL,
	data TEXT NOT NULL
);

CREATE TABLE IF NOT EXISTS movements (
	id TEXT PRIMARY KEY,
	time DATETIME NOT NULL,
	account TEXT NOT NULL,
	currency TEXT NOT NULL,
	ticker TEXT NOT NULL DEFAULT '',
	type TEXT NOT NULL,
	data TEXT NOT NULL
);

CREATE TABLE IF NOT EXISTS snapshots (
	account TEXT NOT NULL,
	currency TEXT NOT NULL,
	date TEXT NOT NULL,
	movement_counter INTEGER NOT NULL,
	data TEXT NOT NULL,
	PRIMARY KEY (account, currency, date)
);

CREATE INDEX IF NOT EXISTS idx_option_trades_account_open ON option_trades(account, open);
CREATE INDEX IF NOT EXISTS idx_equity_trades_account_time ON equity_trades(account, time);
CREATE INDEX IF NOT EXISTS idx_movements_account_time ON movements(account, time);
`
