package services

import (
	"context"
	"database/sql"
	"encoding/json"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/eve-tsu/eve-kasse/internal/config"
	"github.com/eve-tsu/eve-kasse/internal/eveapi"
	"github.com/eve-tsu/eve-kasse/internal/middleware"
	"github.com/eve-tsu/eve-kasse/internal/models"
	"github.com/eve-tsu/eve-kasse/internal/wallet"
)

// KeypairService manages announced EVE API keypairs. Announcing a key
// verifies it against the API, records its access mask, type and expiry
// and registers the characters it exposes.
type KeypairService struct {
	db        *sql.DB
	api       wallet.API
	validator *ValidationHelper
}

func NewKeypairService(db *sql.DB, api wallet.API) *KeypairService {
	return &KeypairService{db: db, api: api, validator: NewValidationHelper()}
}

type AnnounceKeypairRequest struct {
	KeyID int64  `json:"keyID" validate:"required,gt=0"`
	VCode string `json:"vCode" validate:"required,len=64"`
}

type keypairView struct {
	models.Keypair
	Eligible bool `json:"eligibleForSync"`
}

// Announce registers a keypair for the calling user.
func (s *KeypairService) Announce(w http.ResponseWriter, r *http.Request) {
	userID, ok := middleware.UserID(r.Context())
	if !ok {
		SendErrorResponse(w, "Not authenticated", http.StatusUnauthorized, nil)
		return
	}

	var req AnnounceKeypairRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		SendErrorResponse(w, "Invalid request body", http.StatusBadRequest, nil)
		return
	}
	if err := s.validator.ValidateStruct(req); err != nil {
		SendErrorResponse(w, "Validation failed", http.StatusBadRequest, err)
		return
	}

	session := s.api.Auth(req.KeyID, req.VCode)
	info, err := session.APIKeyInfo(r.Context())
	if err != nil {
		config.GetLogger().WithField("keyID", req.KeyID).WithError(err).Warn("keypair verification failed")
		SendErrorResponse(w, "The EVE API rejected this keypair", http.StatusUnprocessableEntity, nil)
		return
	}

	kp := models.Keypair{
		KeyID:      req.KeyID,
		VCode:      req.VCode,
		AccessMask: info.AccessMask,
		Type:       models.KeyType(info.Type),
		Valid:      true,
		UserID:     userID,
	}
	if info.Expires != "" {
		if expires, perr := time.Parse("2006-01-02 15:04:05", info.Expires); perr == nil {
			expires = expires.UTC()
			kp.Expires = &expires
		}
	}
	if kp.Type == models.KeyTypeCorporation && len(info.Characters) > 0 {
		kp.CorporationID = &info.Characters[0].CorporationID
		kp.CharacterID = &info.Characters[0].CharacterID
	}

	if err := s.store(r.Context(), &kp, info.Characters); err != nil {
		config.GetLogger().WithField("keyID", req.KeyID).WithError(err).Error("storing keypair failed")
		SendErrorResponse(w, "Failed to store keypair", http.StatusInternalServerError, nil)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusCreated)
	json.NewEncoder(w).Encode(keypairView{Keypair: kp, Eligible: kp.EligibleForSync(time.Now().UTC())})
}

// store writes the keypair plus the corporations and characters it
// exposes in one transaction.
func (s *KeypairService) store(ctx context.Context, kp *models.Keypair, characters []eveapi.Character) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer tx.Rollback()

	// Corporation keys need their linked character stored too, the
	// keypairs row references it.
	for _, c := range characters {
		if _, err := tx.ExecContext(ctx, `
			INSERT INTO corporations ("corporationID", corp_name)
			VALUES ($1, $2) ON CONFLICT ("corporationID") DO NOTHING`,
			c.CorporationID, c.CorporationName); err != nil {
			return err
		}
		if _, err := tx.ExecContext(ctx, `
			INSERT INTO characters ("character", toon_name, "corporationID", "user")
			VALUES ($1, $2, $3, $4) ON CONFLICT ("character") DO NOTHING`,
			c.CharacterID, c.Name, c.CorporationID, kp.UserID); err != nil {
			return err
		}
	}

	if _, err := tx.ExecContext(ctx, `
		INSERT INTO keypairs (keyid, vcode, access_mask, key_type, key_corporation, key_character, expires, valid, "user")
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
		ON CONFLICT (keyid) DO UPDATE SET
			vcode = EXCLUDED.vcode,
			access_mask = EXCLUDED.access_mask,
			key_type = EXCLUDED.key_type,
			expires = EXCLUDED.expires,
			valid = TRUE`,
		kp.KeyID, kp.VCode, kp.AccessMask, kp.Type, kp.CorporationID, kp.CharacterID, kp.Expires, kp.Valid, kp.UserID); err != nil {
		return err
	}
	return tx.Commit()
}

// List returns the caller's keypairs with their sync eligibility.
func (s *KeypairService) List(w http.ResponseWriter, r *http.Request) {
	userID, ok := middleware.UserID(r.Context())
	if !ok {
		SendErrorResponse(w, "Not authenticated", http.StatusUnauthorized, nil)
		return
	}

	rows, err := s.db.QueryContext(r.Context(), `
		SELECT keyid, access_mask, key_type, key_corporation, key_character, announced, expires, valid
		FROM keypairs WHERE "user" = $1 ORDER BY announced DESC`, userID)
	if err != nil {
		SendErrorResponse(w, "Failed to list keypairs", http.StatusInternalServerError, nil)
		return
	}
	defer rows.Close()

	now := time.Now().UTC()
	views := []keypairView{}
	for rows.Next() {
		var (
			kp      models.Keypair
			corpID  sql.NullInt64
			charID  sql.NullInt64
			expires sql.NullTime
		)
		if err := rows.Scan(&kp.KeyID, &kp.AccessMask, &kp.Type, &corpID, &charID, &kp.Announced, &expires, &kp.Valid); err != nil {
			SendErrorResponse(w, "Failed to list keypairs", http.StatusInternalServerError, nil)
			return
		}
		if corpID.Valid {
			kp.CorporationID = &corpID.Int64
		}
		if charID.Valid {
			kp.CharacterID = &charID.Int64
		}
		if expires.Valid {
			t := expires.Time
			kp.Expires = &t
		}
		kp.UserID = userID
		views = append(views, keypairView{Keypair: kp, Eligible: kp.EligibleForSync(now)})
	}
	if err := rows.Err(); err != nil {
		SendErrorResponse(w, "Failed to list keypairs", http.StatusInternalServerError, nil)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(views)
}

// Delete removes one of the caller's keypairs. Synced wallet rows stay.
func (s *KeypairService) Delete(w http.ResponseWriter, r *http.Request) {
	userID, ok := middleware.UserID(r.Context())
	if !ok {
		SendErrorResponse(w, "Not authenticated", http.StatusUnauthorized, nil)
		return
	}
	keyID, err := strconv.ParseInt(chi.URLParam(r, "keyID"), 10, 64)
	if err != nil {
		SendErrorResponse(w, "Invalid key id", http.StatusBadRequest, nil)
		return
	}

	res, err := s.db.ExecContext(r.Context(),
		`DELETE FROM keypairs WHERE keyid = $1 AND "user" = $2`, keyID, userID)
	if err != nil {
		SendErrorResponse(w, "Failed to delete keypair", http.StatusInternalServerError, nil)
		return
	}
	if n, _ := res.RowsAffected(); n == 0 {
		SendErrorResponse(w, "Keypair not found", http.StatusNotFound, nil)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}
