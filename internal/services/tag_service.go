package services

import (
	"database/sql"
	"encoding/json"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"

	"github.com/eve-tsu/eve-kasse/internal/middleware"
	"github.com/eve-tsu/eve-kasse/internal/models"
)

// TagService manages wallet tags and their assignment to synced rows.
// Tag assignment is the only mutation ever applied to a synced row.
type TagService struct {
	db        *sql.DB
	validator *ValidationHelper
}

func NewTagService(db *sql.DB) *TagService {
	return &TagService{db: db, validator: NewValidationHelper()}
}

type CreateTagRequest struct {
	Name          string `json:"tagname" validate:"required,min=1,max=128"`
	CorporationID *int64 `json:"corporationID"`
}

// Create adds a tag scoped either to the calling user or, when a
// corporation id is given, to that corporation.
func (s *TagService) Create(w http.ResponseWriter, r *http.Request) {
	userID, ok := middleware.UserID(r.Context())
	if !ok {
		SendErrorResponse(w, "Not authenticated", http.StatusUnauthorized, nil)
		return
	}
	var req CreateTagRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		SendErrorResponse(w, "Invalid request body", http.StatusBadRequest, nil)
		return
	}
	if err := s.validator.ValidateStruct(req); err != nil {
		SendErrorResponse(w, "Validation failed", http.StatusBadRequest, err)
		return
	}

	tag := models.WalletTag{Name: req.Name}
	var err error
	if req.CorporationID != nil {
		tag.CorporationID = req.CorporationID
		err = s.db.QueryRowContext(r.Context(), `
			INSERT INTO wallet_tag ("corporationID", tagname) VALUES ($1, $2) RETURNING tag`,
			req.CorporationID, req.Name).Scan(&tag.ID)
	} else {
		tag.UserID = &userID
		err = s.db.QueryRowContext(r.Context(), `
			INSERT INTO wallet_tag ("user", tagname) VALUES ($1, $2) RETURNING tag`,
			userID, req.Name).Scan(&tag.ID)
	}
	if err != nil {
		SendErrorResponse(w, "Tag already exists in this scope", http.StatusConflict, nil)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusCreated)
	json.NewEncoder(w).Encode(tag)
}

// List returns the tags visible to the caller: their own plus those of
// corporations they hold a key for.
func (s *TagService) List(w http.ResponseWriter, r *http.Request) {
	userID, ok := middleware.UserID(r.Context())
	if !ok {
		SendErrorResponse(w, "Not authenticated", http.StatusUnauthorized, nil)
		return
	}

	rows, err := s.db.QueryContext(r.Context(), `
		SELECT tag, "user", "corporationID", tagname FROM wallet_tag
		WHERE "user" = $1
		   OR "corporationID" IN (SELECT key_corporation FROM keypairs WHERE "user" = $1 AND key_corporation IS NOT NULL)
		ORDER BY tagname`, userID)
	if err != nil {
		SendErrorResponse(w, "Failed to list tags", http.StatusInternalServerError, nil)
		return
	}
	defer rows.Close()

	tags := []models.WalletTag{}
	for rows.Next() {
		var (
			tag    models.WalletTag
			owner  sql.NullInt32
			corpID sql.NullInt64
		)
		if err := rows.Scan(&tag.ID, &owner, &corpID, &tag.Name); err != nil {
			SendErrorResponse(w, "Failed to list tags", http.StatusInternalServerError, nil)
			return
		}
		if owner.Valid {
			v := int(owner.Int32)
			tag.UserID = &v
		}
		if corpID.Valid {
			tag.CorporationID = &corpID.Int64
		}
		tags = append(tags, tag)
	}
	if err := rows.Err(); err != nil {
		SendErrorResponse(w, "Failed to list tags", http.StatusInternalServerError, nil)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(tags)
}

// Delete removes a tag owned by the caller. Tagged rows fall back to
// untagged via the schema's ON DELETE SET NULL.
func (s *TagService) Delete(w http.ResponseWriter, r *http.Request) {
	userID, ok := middleware.UserID(r.Context())
	if !ok {
		SendErrorResponse(w, "Not authenticated", http.StatusUnauthorized, nil)
		return
	}
	tagID, err := strconv.Atoi(chi.URLParam(r, "tagID"))
	if err != nil {
		SendErrorResponse(w, "Invalid tag id", http.StatusBadRequest, nil)
		return
	}

	res, err := s.db.ExecContext(r.Context(),
		`DELETE FROM wallet_tag WHERE tag = $1 AND "user" = $2`, tagID, userID)
	if err != nil {
		SendErrorResponse(w, "Failed to delete tag", http.StatusInternalServerError, nil)
		return
	}
	if n, _ := res.RowsAffected(); n == 0 {
		SendErrorResponse(w, "Tag not found", http.StatusNotFound, nil)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

type ItemDefaultRequest struct {
	TypeID        int64  `json:"typeID" validate:"required,gt=0"`
	AccountKey    string `json:"accountKey"`
	Name          string `json:"tagname" validate:"required,min=1,max=128"`
	CorporationID *int64 `json:"corporationID"`
}

// CreateItemDefault registers an auto-tagging rule: future trades of the
// given item type in the given scope pick up the tag during sync.
func (s *TagService) CreateItemDefault(w http.ResponseWriter, r *http.Request) {
	userID, ok := middleware.UserID(r.Context())
	if !ok {
		SendErrorResponse(w, "Not authenticated", http.StatusUnauthorized, nil)
		return
	}
	var req ItemDefaultRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		SendErrorResponse(w, "Invalid request body", http.StatusBadRequest, nil)
		return
	}
	if err := s.validator.ValidateStruct(req); err != nil {
		SendErrorResponse(w, "Validation failed", http.StatusBadRequest, err)
		return
	}
	if req.AccountKey == "" {
		req.AccountKey = models.DefaultAccountKey
	}
	if !validAccountKey(req.AccountKey) {
		SendErrorResponse(w, "Invalid account key", http.StatusBadRequest, nil)
		return
	}

	def := models.DefaultItemTag{AccountKey: req.AccountKey, TypeID: req.TypeID, Name: req.Name}
	var err error
	if req.CorporationID != nil {
		def.CorporationID = req.CorporationID
		err = s.db.QueryRowContext(r.Context(), `
			INSERT INTO item_tag_defaults ("corporationID", "accountKey", "typeID", tagname)
			VALUES ($1, $2, $3, $4) RETURNING id`,
			req.CorporationID, req.AccountKey, req.TypeID, req.Name).Scan(&def.ID)
	} else {
		def.UserID = &userID
		err = s.db.QueryRowContext(r.Context(), `
			INSERT INTO item_tag_defaults ("user", "accountKey", "typeID", tagname)
			VALUES ($1, $2, $3, $4) RETURNING id`,
			userID, req.AccountKey, req.TypeID, req.Name).Scan(&def.ID)
	}
	if err != nil {
		SendErrorResponse(w, "Default already exists in this scope", http.StatusConflict, nil)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusCreated)
	json.NewEncoder(w).Encode(def)
}

// ListItemDefaults returns the caller's auto-tagging rules.
func (s *TagService) ListItemDefaults(w http.ResponseWriter, r *http.Request) {
	userID, ok := middleware.UserID(r.Context())
	if !ok {
		SendErrorResponse(w, "Not authenticated", http.StatusUnauthorized, nil)
		return
	}

	rows, err := s.db.QueryContext(r.Context(), `
		SELECT id, "user", "corporationID", "accountKey", "typeID", tagname FROM item_tag_defaults
		WHERE "user" = $1
		   OR "corporationID" IN (SELECT key_corporation FROM keypairs WHERE "user" = $1 AND key_corporation IS NOT NULL)
		ORDER BY tagname`, userID)
	if err != nil {
		SendErrorResponse(w, "Failed to list item defaults", http.StatusInternalServerError, nil)
		return
	}
	defer rows.Close()

	defaults := []models.DefaultItemTag{}
	for rows.Next() {
		var (
			def    models.DefaultItemTag
			owner  sql.NullInt32
			corpID sql.NullInt64
		)
		if err := rows.Scan(&def.ID, &owner, &corpID, &def.AccountKey, &def.TypeID, &def.Name); err != nil {
			SendErrorResponse(w, "Failed to list item defaults", http.StatusInternalServerError, nil)
			return
		}
		if owner.Valid {
			v := int(owner.Int32)
			def.UserID = &v
		}
		if corpID.Valid {
			def.CorporationID = &corpID.Int64
		}
		defaults = append(defaults, def)
	}
	if err := rows.Err(); err != nil {
		SendErrorResponse(w, "Failed to list item defaults", http.StatusInternalServerError, nil)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(defaults)
}

// DeleteItemDefault removes one of the caller's auto-tagging rules.
// Already tagged rows keep their tag.
func (s *TagService) DeleteItemDefault(w http.ResponseWriter, r *http.Request) {
	userID, ok := middleware.UserID(r.Context())
	if !ok {
		SendErrorResponse(w, "Not authenticated", http.StatusUnauthorized, nil)
		return
	}
	id, err := strconv.Atoi(chi.URLParam(r, "defaultID"))
	if err != nil {
		SendErrorResponse(w, "Invalid default id", http.StatusBadRequest, nil)
		return
	}

	res, err := s.db.ExecContext(r.Context(),
		`DELETE FROM item_tag_defaults WHERE id = $1 AND "user" = $2`, id, userID)
	if err != nil {
		SendErrorResponse(w, "Failed to delete item default", http.StatusInternalServerError, nil)
		return
	}
	if n, _ := res.RowsAffected(); n == 0 {
		SendErrorResponse(w, "Item default not found", http.StatusNotFound, nil)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func validAccountKey(key string) bool {
	for _, k := range models.AccountKeys {
		if k == key {
			return true
		}
	}
	return false
}

type AssignTagRequest struct {
	TagID *int `json:"tag"` // null clears the assignment
}

// AssignJournalTag sets or clears the tag of one journal entry.
func (s *TagService) AssignJournalTag(w http.ResponseWriter, r *http.Request) {
	s.assign(w, r, "wallet_journal", `"refID"`, chi.URLParam(r, "refID"))
}

// AssignTransactionTag sets or clears the tag of one transaction.
func (s *TagService) AssignTransactionTag(w http.ResponseWriter, r *http.Request) {
	s.assign(w, r, "wallet_transactions", `"transaction"`, chi.URLParam(r, "transactionID"))
}

func (s *TagService) assign(w http.ResponseWriter, r *http.Request, table, pkColumn, rawID string) {
	userID, ok := middleware.UserID(r.Context())
	if !ok {
		SendErrorResponse(w, "Not authenticated", http.StatusUnauthorized, nil)
		return
	}
	rowID, err := strconv.ParseInt(rawID, 10, 64)
	if err != nil {
		SendErrorResponse(w, "Invalid row id", http.StatusBadRequest, nil)
		return
	}
	var req AssignTagRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		SendErrorResponse(w, "Invalid request body", http.StatusBadRequest, nil)
		return
	}

	if req.TagID != nil {
		var one int
		err := s.db.QueryRowContext(r.Context(), `
			SELECT 1 FROM wallet_tag WHERE tag = $1 AND ("user" = $2
			   OR "corporationID" IN (SELECT key_corporation FROM keypairs WHERE "user" = $2 AND key_corporation IS NOT NULL))`,
			*req.TagID, userID).Scan(&one)
		if err != nil {
			SendErrorResponse(w, "Tag not found", http.StatusNotFound, nil)
			return
		}
	}

	// Same visibility rule as the read paths: rows outside the caller's
	// characters and corporations must look like they do not exist.
	res, err := s.db.ExecContext(r.Context(),
		`UPDATE `+table+` SET tag = $2 WHERE `+pkColumn+` = $3 AND `+visibleScope,
		userID, req.TagID, rowID)
	if err != nil {
		SendErrorResponse(w, "Failed to assign tag", http.StatusInternalServerError, nil)
		return
	}
	if n, _ := res.RowsAffected(); n == 0 {
		SendErrorResponse(w, "Row not found", http.StatusNotFound, nil)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}
