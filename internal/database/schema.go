package database

import (
	"database/sql"
	"fmt"
)

// Column identifiers are quoted: the journal and transaction tables keep
// the API's camelCase field names so unconverted source fields land in
// same-named columns.
var schemaStatements = []string{
	`CREATE TABLE IF NOT EXISTS users (
		"user"     SERIAL PRIMARY KEY,
		name       VARCHAR(16) UNIQUE NOT NULL,
		email      VARCHAR(64) UNIQUE NOT NULL,
		timezone   VARCHAR(32) NOT NULL DEFAULT 'Europe/Berlin',
		password   VARCHAR(80),
		created    TIMESTAMPTZ NOT NULL DEFAULT now(),
		enabled    BOOLEAN NOT NULL DEFAULT TRUE
	)`,
	`CREATE TABLE IF NOT EXISTS corporations (
		"corporationID" BIGINT PRIMARY KEY,
		corp_name       VARCHAR(128) NOT NULL
	)`,
	`CREATE TABLE IF NOT EXISTS characters (
		"character"     BIGINT PRIMARY KEY,
		toon_name       VARCHAR(64) NOT NULL,
		"corporationID" BIGINT NOT NULL REFERENCES corporations ("corporationID"),
		"user"          INTEGER NOT NULL REFERENCES users ("user")
	)`,
	`CREATE TABLE IF NOT EXISTS keypairs (
		keyid           BIGINT PRIMARY KEY,
		vcode           VARCHAR(128) NOT NULL,
		access_mask     BIGINT NOT NULL,
		key_type        VARCHAR(16) NOT NULL CHECK (key_type IN ('Account', 'Character', 'Corporation')),
		key_corporation BIGINT REFERENCES corporations ("corporationID") ON DELETE CASCADE,
		key_character   BIGINT REFERENCES characters ("character"),
		announced       TIMESTAMPTZ NOT NULL DEFAULT now(),
		expires         TIMESTAMPTZ,
		valid           BOOLEAN NOT NULL DEFAULT TRUE,
		"user"          INTEGER NOT NULL REFERENCES users ("user")
	)`,
	`CREATE TABLE IF NOT EXISTS wallet_tag (
		tag             SERIAL PRIMARY KEY,
		"user"          INTEGER REFERENCES users ("user") ON DELETE CASCADE,
		"corporationID" BIGINT REFERENCES corporations ("corporationID") ON DELETE CASCADE,
		tagname         VARCHAR(128) NOT NULL,
		UNIQUE ("user", tagname),
		UNIQUE ("corporationID", tagname)
	)`,
	`CREATE TABLE IF NOT EXISTS wallet_journal (
		"refID"         BIGINT PRIMARY KEY,
		"accountKey"    VARCHAR(4) NOT NULL DEFAULT '1000' CHECK ("accountKey" IN ('1000','1001','1002','1003','1004','1005','1006')),
		"corporationID" BIGINT REFERENCES corporations ("corporationID") ON DELETE CASCADE,
		"character"     BIGINT,
		"datetime"      TIMESTAMPTZ NOT NULL,
		"refTypeID"     INTEGER NOT NULL,
		"ownerName1"    VARCHAR(128) NOT NULL,
		"ownerID1"      BIGINT NOT NULL,
		"ownerName2"    VARCHAR(128) NOT NULL,
		"ownerID2"      BIGINT NOT NULL,
		"argName1"      VARCHAR(128),
		"argID1"        BIGINT NOT NULL,
		amount          NUMERIC(20, 2),
		balance         NUMERIC(20, 2),
		reason          VARCHAR(128),
		"taxReceiverID" BIGINT,
		"taxAmount"     NUMERIC(20, 2),
		tag             INTEGER REFERENCES wallet_tag (tag) ON DELETE SET NULL
	)`,
	`CREATE INDEX IF NOT EXISTS wallet_journal_datetime ON wallet_journal ("datetime")`,
	`CREATE TABLE IF NOT EXISTS wallet_transactions (
		"transaction"          BIGINT PRIMARY KEY,
		"accountKey"           VARCHAR(4) NOT NULL DEFAULT '1000' CHECK ("accountKey" IN ('1000','1001','1002','1003','1004','1005','1006')),
		"corporationID"        BIGINT REFERENCES corporations ("corporationID") ON DELETE CASCADE,
		"character"            BIGINT,
		"datetime"             TIMESTAMPTZ NOT NULL,
		quantity               BIGINT NOT NULL,
		"typeName"             VARCHAR(128),
		"typeID"               BIGINT NOT NULL,
		price                  NUMERIC(20, 2) NOT NULL,
		"clientID"             BIGINT NOT NULL,
		"clientName"           VARCHAR(128) NOT NULL,
		"stationID"            BIGINT NOT NULL,
		"stationName"          VARCHAR(128) NOT NULL,
		"transactionType"      VARCHAR(4) NOT NULL CHECK ("transactionType" IN ('buy', 'sell')),
		"transactionFor"       VARCHAR(11) NOT NULL CHECK ("transactionFor" IN ('personal', 'corporation')),
		"executorID"           BIGINT NOT NULL,
		"executorName"         VARCHAR(64) NOT NULL,
		"journalTransactionID" BIGINT REFERENCES wallet_journal ("refID") ON DELETE SET NULL,
		tag                    INTEGER REFERENCES wallet_tag (tag) ON DELETE SET NULL
	)`,
	`CREATE INDEX IF NOT EXISTS wallet_transactions_datetime ON wallet_transactions ("datetime")`,
	`CREATE INDEX IF NOT EXISTS wallet_transactions_type ON wallet_transactions ("typeID", "transactionType")`,
	`CREATE TABLE IF NOT EXISTS item_tag_defaults (
		id              SERIAL PRIMARY KEY,
		"user"          INTEGER REFERENCES users ("user") ON DELETE CASCADE,
		"corporationID" BIGINT REFERENCES corporations ("corporationID") ON DELETE CASCADE,
		"accountKey"    VARCHAR(4) NOT NULL DEFAULT '1000',
		"typeID"        BIGINT NOT NULL,
		tagname         VARCHAR(128) NOT NULL,
		UNIQUE ("user", tagname),
		UNIQUE ("corporationID", tagname)
	)`,
}

// EnsureSchema creates all tables and indexes that do not exist yet.
func EnsureSchema(db *sql.DB) error {
	for _, stmt := range schemaStatements {
		if _, err := db.Exec(stmt); err != nil {
			return fmt.Errorf("applying schema: %w", err)
		}
	}
	return nil
}
