package storage

// schemaStatements creates the transactions table and its lookup indexes.
// Fixed-point columns hold the 8-byte little-endian wire encoding.
var schemaStatements = []string{
	`CREATE TABLE IF NOT EXISTS transactions (
		version             BIGINT PRIMARY KEY,
		expiration_date     TEXT NOT NULL,
		src                 TEXT NOT NULL,
		dest                TEXT NOT NULL,
		type                TEXT NOT NULL,
		amount              BYTEA NOT NULL,
		gas_price           BYTEA NOT NULL,
		max_gas             BYTEA NOT NULL,
		sq_num              BIGINT NOT NULL,
		pub_key             TEXT NOT NULL,
		expiration_unixtime BIGINT NOT NULL,
		gas_used            BYTEA NOT NULL,
		sender_sig          TEXT NOT NULL,
		signed_tx_hash      TEXT NOT NULL,
		state_root_hash     TEXT NOT NULL,
		event_root_hash     TEXT NOT NULL,
		code_hex            TEXT NOT NULL,
		program             TEXT NOT NULL
	)`,
	`CREATE INDEX IF NOT EXISTS idx_transactions_src ON transactions (src)`,
	`CREATE INDEX IF NOT EXISTS idx_transactions_dest ON transactions (dest)`,
	`CREATE INDEX IF NOT EXISTS idx_transactions_expiration ON transactions (expiration_unixtime)`,
}

const dropStatement = `DROP TABLE IF EXISTS transactions`

const selectColumns = `
	version, expiration_date, src, dest, type,
	amount, gas_price, max_gas, sq_num, pub_key,
	expiration_unixtime, gas_used, sender_sig, signed_tx_hash,
	state_root_hash, event_root_hash, code_hex, program`
