package wallet

import (
	"fmt"
	"strconv"
	"strings"
	"time"
)

// conversion renames a source field and optionally rewrites its value on
// the way into storage.
type conversion struct {
	column    string
	transform func(raw string) (any, error)
}

// RecordKind declares how one category of API rows lands in storage: the
// target table, its primary key, the insertable column list and the
// per-source-field conversion table.
type RecordKind struct {
	Name        string
	Table       string
	PKColumn    string
	Columns     []string
	conversions map[string]conversion
	columnSet   map[string]struct{}
}

func newRecordKind(name, table, pk string, columns []string, conversions map[string]conversion) *RecordKind {
	set := make(map[string]struct{}, len(columns))
	for _, c := range columns {
		set[c] = struct{}{}
	}
	return &RecordKind{
		Name:        name,
		Table:       table,
		PKColumn:    pk,
		Columns:     columns,
		conversions: conversions,
		columnSet:   set,
	}
}

// JournalKind maps wallet journal API rows onto the wallet_journal table.
var JournalKind = newRecordKind(
	"journal",
	"wallet_journal",
	"refID",
	[]string{
		"refID", "accountKey", "corporationID", "character", "datetime",
		"refTypeID", "ownerName1", "ownerID1", "ownerName2", "ownerID2",
		"argName1", "argID1", "amount", "balance", "reason",
		"taxReceiverID", "taxAmount",
	},
	map[string]conversion{
		"date":   {column: "datetime", transform: epochToTime},
		"reason": {column: "reason", transform: fixReason},
	},
)

// TransactionKind maps market transaction API rows onto the
// wallet_transactions table. The API reports the executing character under
// the generic characterID/characterName names.
var TransactionKind = newRecordKind(
	"transaction",
	"wallet_transactions",
	"transaction",
	[]string{
		"transaction", "accountKey", "corporationID", "character", "datetime",
		"quantity", "typeName", "typeID", "price", "clientID", "clientName",
		"stationID", "stationName", "transactionType", "transactionFor",
		"executorID", "executorName", "journalTransactionID",
	},
	map[string]conversion{
		"transactionID":       {column: "transaction"},
		"transactionDateTime": {column: "datetime", transform: epochToTime},
		"characterID":         {column: "executorID"},
		"characterName":       {column: "executorName"},
	},
)

// epochToTime converts the API's epoch-seconds timestamps.
func epochToTime(raw string) (any, error) {
	secs, err := strconv.ParseInt(raw, 10, 64)
	if err != nil {
		return nil, fmt.Errorf("timestamp %q is not epoch seconds: %w", raw, err)
	}
	return time.Unix(secs, 0).UTC(), nil
}

// fixReason cleans the free-text reason field. Order matters: the quoted
// DESC prefix has to be recognized before escape sequences are decoded,
// otherwise decoding may produce quotes that corrupt the prefix check.
func fixReason(raw string) (any, error) {
	r := strings.TrimSpace(raw)
	if strings.HasPrefix(r, `DESC: "`) && strings.HasSuffix(r, `"`) {
		r = "DESC: " + r[7:len(r)-1]
	}
	// Player-supplied reasons arrive with literal backslash escapes.
	return decodeEscapes(r), nil
}

// decodeEscapes turns literal backslash escape sequences into their
// characters. Unknown sequences are left untouched.
func decodeEscapes(s string) string {
	if !strings.Contains(s, `\`) {
		return s
	}
	var b strings.Builder
	b.Grow(len(s))
	for i := 0; i < len(s); {
		c := s[i]
		if c != '\\' || i+1 >= len(s) {
			b.WriteByte(c)
			i++
			continue
		}
		switch s[i+1] {
		case 'n':
			b.WriteByte('\n')
			i += 2
		case 't':
			b.WriteByte('\t')
			i += 2
		case 'r':
			b.WriteByte('\r')
			i += 2
		case '\\':
			b.WriteByte('\\')
			i += 2
		case '\'':
			b.WriteByte('\'')
			i += 2
		case '"':
			b.WriteByte('"')
			i += 2
		case 'u':
			if i+6 <= len(s) {
				if v, err := strconv.ParseUint(s[i+2:i+6], 16, 32); err == nil {
					b.WriteRune(rune(v))
					i += 6
					continue
				}
			}
			b.WriteByte(c)
			i++
		case 'x':
			if i+4 <= len(s) {
				if v, err := strconv.ParseUint(s[i+2:i+4], 16, 8); err == nil {
					b.WriteByte(byte(v))
					i += 4
					continue
				}
			}
			b.WriteByte(c)
			i++
		default:
			b.WriteByte(c)
			i++
		}
	}
	return b.String()
}
