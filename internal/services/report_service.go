package services

import (
	"database/sql"
	"encoding/json"
	"fmt"
	"net/http"
	"strconv"

	"github.com/shopspring/decimal"

	"github.com/eve-tsu/eve-kasse/internal/middleware"
	"github.com/eve-tsu/eve-kasse/internal/models"
)

// ReportService serves read-only views over the synced wallet data. It
// never writes; the sync engine is the only writer of wallet rows.
type ReportService struct {
	db *sql.DB
}

func NewReportService(db *sql.DB) *ReportService {
	return &ReportService{db: db}
}

// visibleScope restricts wallet queries to rows the user may see: their
// own characters' rows plus rows of corporations they hold a key for.
const visibleScope = `(
	"character" IN (SELECT "character" FROM characters WHERE "user" = $1)
	OR "corporationID" IN (SELECT key_corporation FROM keypairs WHERE "user" = $1 AND key_corporation IS NOT NULL)
)`

type listFilters struct {
	conds []string
	args  []any
}

func (f *listFilters) add(cond string, arg any) {
	f.args = append(f.args, arg)
	f.conds = append(f.conds, fmt.Sprintf(cond, len(f.args)))
}

func parseCommonFilters(r *http.Request, userID int) *listFilters {
	f := &listFilters{args: []any{userID}, conds: []string{visibleScope}}
	q := r.URL.Query()
	if v := q.Get("accountKey"); v != "" {
		f.add(`"accountKey" = $%d`, v)
	}
	if v := q.Get("corporationID"); v != "" {
		f.add(`"corporationID" = $%d`, v)
	}
	if v := q.Get("characterID"); v != "" {
		f.add(`"character" = $%d`, v)
	}
	if v := q.Get("since"); v != "" {
		f.add(`"datetime" >= $%d`, v)
	}
	if v := q.Get("until"); v != "" {
		f.add(`"datetime" < $%d`, v)
	}
	return f
}

func limitOffset(r *http.Request) (int, int) {
	limit := 100
	offset := 0
	if v, err := strconv.Atoi(r.URL.Query().Get("limit")); err == nil && v > 0 && v <= 1000 {
		limit = v
	}
	if v, err := strconv.Atoi(r.URL.Query().Get("offset")); err == nil && v > 0 {
		offset = v
	}
	return limit, offset
}

// JournalEntries lists synced journal rows, newest first.
func (s *ReportService) JournalEntries(w http.ResponseWriter, r *http.Request) {
	userID, ok := middleware.UserID(r.Context())
	if !ok {
		SendErrorResponse(w, "Not authenticated", http.StatusUnauthorized, nil)
		return
	}
	f := parseCommonFilters(r, userID)
	if v := r.URL.Query().Get("refTypeID"); v != "" {
		f.add(`"refTypeID" = $%d`, v)
	}
	limit, offset := limitOffset(r)

	query := `
		SELECT "refID", "accountKey", "corporationID", "character", "datetime", "refTypeID",
		       "ownerName1", "ownerID1", "ownerName2", "ownerID2", "argName1", "argID1",
		       amount, balance, reason, "taxReceiverID", "taxAmount", tag
		FROM wallet_journal WHERE ` + joinConds(f.conds) + `
		ORDER BY "datetime" DESC LIMIT ` + strconv.Itoa(limit) + ` OFFSET ` + strconv.Itoa(offset)

	rows, err := s.db.QueryContext(r.Context(), query, f.args...)
	if err != nil {
		SendErrorResponse(w, "Failed to query journal", http.StatusInternalServerError, nil)
		return
	}
	defer rows.Close()

	entries := []models.WalletJournalEntry{}
	for rows.Next() {
		var (
			e       models.WalletJournalEntry
			corpID  sql.NullInt64
			charID  sql.NullInt64
			argName sql.NullString
			amount  decimal.NullDecimal
			balance decimal.NullDecimal
			reason  sql.NullString
			taxRecv sql.NullInt64
			taxAmt  decimal.NullDecimal
			tag     sql.NullInt32
		)
		if err := rows.Scan(&e.RefID, &e.AccountKey, &corpID, &charID, &e.Datetime, &e.RefTypeID,
			&e.OwnerName1, &e.OwnerID1, &e.OwnerName2, &e.OwnerID2, &argName, &e.ArgID1,
			&amount, &balance, &reason, &taxRecv, &taxAmt, &tag); err != nil {
			SendErrorResponse(w, "Failed to query journal", http.StatusInternalServerError, nil)
			return
		}
		if amount.Valid {
			e.Amount = amount.Decimal
		}
		if corpID.Valid {
			e.CorporationID = &corpID.Int64
		}
		if charID.Valid {
			e.CharacterID = &charID.Int64
		}
		if argName.Valid {
			e.ArgName1 = &argName.String
		}
		if balance.Valid {
			e.Balance = &balance.Decimal
		}
		if reason.Valid {
			e.Reason = &reason.String
		}
		if taxRecv.Valid {
			e.TaxReceiverID = &taxRecv.Int64
		}
		if taxAmt.Valid {
			e.TaxAmount = &taxAmt.Decimal
		}
		if tag.Valid {
			t := int(tag.Int32)
			e.TagID = &t
		}
		entries = append(entries, e)
	}
	if err := rows.Err(); err != nil {
		SendErrorResponse(w, "Failed to query journal", http.StatusInternalServerError, nil)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(entries)
}

// Transactions lists synced trade rows, newest first.
func (s *ReportService) Transactions(w http.ResponseWriter, r *http.Request) {
	userID, ok := middleware.UserID(r.Context())
	if !ok {
		SendErrorResponse(w, "Not authenticated", http.StatusUnauthorized, nil)
		return
	}
	f := parseCommonFilters(r, userID)
	if v := r.URL.Query().Get("typeID"); v != "" {
		f.add(`"typeID" = $%d`, v)
	}
	if v := r.URL.Query().Get("transactionType"); v != "" {
		f.add(`"transactionType" = $%d`, v)
	}
	limit, offset := limitOffset(r)

	query := `
		SELECT "transaction", "accountKey", "corporationID", "character", "datetime", quantity,
		       "typeName", "typeID", price, "clientID", "clientName", "stationID", "stationName",
		       "transactionType", "transactionFor", "executorID", "executorName", "journalTransactionID", tag
		FROM wallet_transactions WHERE ` + joinConds(f.conds) + `
		ORDER BY "datetime" DESC LIMIT ` + strconv.Itoa(limit) + ` OFFSET ` + strconv.Itoa(offset)

	rows, err := s.db.QueryContext(r.Context(), query, f.args...)
	if err != nil {
		SendErrorResponse(w, "Failed to query transactions", http.StatusInternalServerError, nil)
		return
	}
	defer rows.Close()

	transactions := []models.WalletTransaction{}
	for rows.Next() {
		var (
			t        models.WalletTransaction
			corpID   sql.NullInt64
			charID   sql.NullInt64
			typeName sql.NullString
			journal  sql.NullInt64
			tag      sql.NullInt32
		)
		if err := rows.Scan(&t.TransactionID, &t.AccountKey, &corpID, &charID, &t.Datetime, &t.Quantity,
			&typeName, &t.TypeID, &t.Price, &t.ClientID, &t.ClientName, &t.StationID, &t.StationName,
			&t.TransactionType, &t.TransactionFor, &t.ExecutorID, &t.ExecutorName, &journal, &tag); err != nil {
			SendErrorResponse(w, "Failed to query transactions", http.StatusInternalServerError, nil)
			return
		}
		if corpID.Valid {
			t.CorporationID = &corpID.Int64
		}
		if charID.Valid {
			t.CharacterID = &charID.Int64
		}
		if typeName.Valid {
			t.TypeName = &typeName.String
		}
		if journal.Valid {
			t.JournalTransactionID = &journal.Int64
		}
		if tag.Valid {
			v := int(tag.Int32)
			t.TagID = &v
		}
		transactions = append(transactions, t)
	}
	if err := rows.Err(); err != nil {
		SendErrorResponse(w, "Failed to query transactions", http.StatusInternalServerError, nil)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(transactions)
}

// SummaryLine is one aggregated income/expense bucket.
type SummaryLine struct {
	RefTypeID *int            `json:"refTypeID,omitempty"`
	Tag       *string         `json:"tag,omitempty"`
	Total     decimal.Decimal `json:"total"`
	Entries   int             `json:"entries"`
}

// Summary aggregates journal amounts per reference type, or per tag when
// groupBy=tag is requested.
func (s *ReportService) Summary(w http.ResponseWriter, r *http.Request) {
	userID, ok := middleware.UserID(r.Context())
	if !ok {
		SendErrorResponse(w, "Not authenticated", http.StatusUnauthorized, nil)
		return
	}
	f := parseCommonFilters(r, userID)

	byTag := r.URL.Query().Get("groupBy") == "tag"
	var query string
	if byTag {
		query = `
			SELECT (SELECT tagname FROM wallet_tag t WHERE t.tag = wallet_journal.tag) AS tagname,
			       COALESCE(SUM(amount), 0), COUNT(*)
			FROM wallet_journal
			WHERE tag IS NOT NULL AND ` + joinConds(f.conds) + `
			GROUP BY tagname ORDER BY tagname`
	} else {
		query = `
			SELECT "refTypeID", COALESCE(SUM(amount), 0), COUNT(*)
			FROM wallet_journal
			WHERE ` + joinConds(f.conds) + `
			GROUP BY "refTypeID" ORDER BY "refTypeID"`
	}

	rows, err := s.db.QueryContext(r.Context(), query, f.args...)
	if err != nil {
		SendErrorResponse(w, "Failed to aggregate journal", http.StatusInternalServerError, nil)
		return
	}
	defer rows.Close()

	lines := []SummaryLine{}
	for rows.Next() {
		var line SummaryLine
		if byTag {
			var tag string
			if err := rows.Scan(&tag, &line.Total, &line.Entries); err != nil {
				SendErrorResponse(w, "Failed to aggregate journal", http.StatusInternalServerError, nil)
				return
			}
			line.Tag = &tag
		} else {
			var refType int
			if err := rows.Scan(&refType, &line.Total, &line.Entries); err != nil {
				SendErrorResponse(w, "Failed to aggregate journal", http.StatusInternalServerError, nil)
				return
			}
			line.RefTypeID = &refType
		}
		lines = append(lines, line)
	}
	if err := rows.Err(); err != nil {
		SendErrorResponse(w, "Failed to aggregate journal", http.StatusInternalServerError, nil)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(lines)
}

func joinConds(conds []string) string {
	out := conds[0]
	for _, c := range conds[1:] {
		out += " AND " + c
	}
	return out
}
