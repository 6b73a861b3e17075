package wallet

import (
	"context"
	"database/sql"
	"errors"
	"time"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"

	"github.com/eve-tsu/eve-kasse/internal/eveapi"
	"github.com/eve-tsu/eve-kasse/internal/models"
)

// Session is an API client bound to one keypair's credentials.
type Session interface {
	APIKeyInfo(ctx context.Context) (*eveapi.KeyInfo, error)
	WalletJournal(ctx context.Context, p eveapi.WalletParams) ([]eveapi.Row, error)
	WalletTransactions(ctx context.Context, p eveapi.WalletParams) ([]eveapi.Row, error)
}

// API hands out authenticated sessions.
type API interface {
	Auth(keyID int64, vCode string) Session
}

// ClientAPI adapts the concrete eveapi client to the API interface.
type ClientAPI struct {
	Client *eveapi.Client
}

func (a ClientAPI) Auth(keyID int64, vCode string) Session {
	return a.Client.Auth(keyID, vCode)
}

// Options tune a Scheduler.
type Options struct {
	// Period is the wall-clock distance between cycle starts.
	Period time.Duration
	// Warmup delays the first cycle so the surrounding service can finish
	// starting.
	Warmup time.Duration
	// RowCount is the page size requested from the API.
	RowCount int
	// Debug switches the failure policy to fail fast: unexpected errors
	// terminate the cycle and surface to the supervisor instead of being
	// swallowed.
	Debug bool
}

// Scheduler is the long-lived wallet synchronization loop. Each cycle it
// lists the eligible keypairs, fans every one out into work units, pulls
// journal and transaction rows from the API and appends them to storage.
// Keypairs are processed sequentially and failures stay confined to the
// keypair they occurred in.
type Scheduler struct {
	db   *sql.DB
	api  API
	log  *logrus.Logger
	opts Options
}

func NewScheduler(db *sql.DB, api API, log *logrus.Logger, opts Options) *Scheduler {
	if opts.RowCount <= 0 {
		opts.RowCount = 2560
	}
	return &Scheduler{db: db, api: api, log: log, opts: opts}
}

// Run blocks until ctx is cancelled or, in debug mode, until a cycle
// fails. The sleep between cycles subtracts the time the cycle took, so
// cycle starts stay close to the configured period; a cycle that overruns
// the period is followed immediately by the next one.
func (s *Scheduler) Run(ctx context.Context) error {
	s.log.Info("wallet synchronization has been started")
	if err := sleepCtx(ctx, s.opts.Warmup); err != nil {
		return err
	}

	for {
		start := time.Now()
		if err := s.runCycle(ctx); err != nil {
			return err
		}
		pause := nextCycleDelay(s.opts.Period, time.Since(start))
		s.log.WithField("sleep", pause.String()).Info("wallet synchronization run is complete")
		if err := sleepCtx(ctx, pause); err != nil {
			return err
		}
	}
}

// nextCycleDelay keeps the distance between cycle starts close to period,
// floored at zero so a slow cycle never produces a negative sleep.
func nextCycleDelay(period, elapsed time.Duration) time.Duration {
	d := period - elapsed
	if d < 0 {
		return 0
	}
	return d
}

func sleepCtx(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return ctx.Err()
	}
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}

func (s *Scheduler) runCycle(ctx context.Context) error {
	log := s.log.WithField("cycle", uuid.NewString())
	keypairs, err := s.eligibleKeypairs(ctx)
	if err != nil {
		if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
			return err
		}
		log.WithError(err).Error("listing eligible keypairs failed")
		if s.opts.Debug {
			return err
		}
		return nil
	}
	log.WithField("keypairs", len(keypairs)).Info("wallet synchronization triggered")

	for i := range keypairs {
		kp := &keypairs[i]
		if ctx.Err() != nil {
			return ctx.Err()
		}
		err := s.syncKeypair(ctx, kp)
		switch {
		case err == nil:
		case errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded):
			return err
		case isRecoverable(err):
			// One keypair's API trouble must not starve the others.
			log.WithField("keyID", kp.KeyID).WithError(err).Warn("keypair skipped")
		default:
			log.WithField("keyID", kp.KeyID).WithError(err).Error("unhandled failure while syncing keypair")
			if s.opts.Debug {
				return err
			}
		}
	}
	return nil
}

// isRecoverable classifies errors whose blast radius is one keypair: the
// API rejecting the credential or the transport failing underneath.
func isRecoverable(err error) bool {
	var apiErr *eveapi.APIError
	var httpErr *eveapi.HTTPError
	return errors.As(err, &apiErr) || errors.As(err, &httpErr)
}

// eligibleKeypairs loads live keypairs from storage and keeps those whose
// access mask grants wallet reads. Validity and expiry can flip between
// cycles, so this is re-evaluated every time.
func (s *Scheduler) eligibleKeypairs(ctx context.Context) ([]models.Keypair, error) {
	now := time.Now().UTC()
	rows, err := s.db.QueryContext(ctx, `
		SELECT keyid, vcode, access_mask, key_type, key_corporation, key_character, expires, valid
		FROM keypairs
		WHERE valid = TRUE AND (expires IS NULL OR expires > $1)`,
		now)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var eligible []models.Keypair
	for rows.Next() {
		var (
			kp      models.Keypair
			corpID  sql.NullInt64
			charID  sql.NullInt64
			expires sql.NullTime
		)
		if err := rows.Scan(&kp.KeyID, &kp.VCode, &kp.AccessMask, &kp.Type, &corpID, &charID, &expires, &kp.Valid); err != nil {
			return nil, err
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
		if kp.EligibleForSync(now) {
			eligible = append(eligible, kp)
		}
	}
	return eligible, rows.Err()
}

func (s *Scheduler) syncKeypair(ctx context.Context, kp *models.Keypair) error {
	s.log.WithField("keyID", kp.KeyID).Debug("syncing wallets of keypair")
	session := s.api.Auth(kp.KeyID, kp.VCode)

	units, err := ExpandWorkUnits(ctx, kp, session, s.opts.RowCount)
	if err != nil {
		return err
	}

	for _, unit := range units {
		params := eveapi.WalletParams{
			Corporation: kp.IsCorporation(),
			CharacterID: unit.CharacterID,
			AccountKey:  unit.AccountKey,
			RowCount:    unit.RowCount,
		}

		if err := s.syncRowset(ctx, kp, unit, JournalKind, session.WalletJournal, params); err != nil {
			return err
		}
		if err := s.syncRowset(ctx, kp, unit, TransactionKind, session.WalletTransactions, params); err != nil {
			return err
		}
	}
	return nil
}

func (s *Scheduler) syncRowset(
	ctx context.Context,
	kp *models.Keypair,
	unit WorkUnit,
	kind *RecordKind,
	fetch func(context.Context, eveapi.WalletParams) ([]eveapi.Row, error),
	params eveapi.WalletParams,
) error {
	apiRows, err := fetch(ctx, params)
	if err != nil {
		return err
	}
	s.log.WithFields(logrus.Fields{
		"kind":       kind.Name,
		"keyID":      kp.KeyID,
		"accountKey": unit.AccountKey,
		"rows":       len(apiRows),
	}).Debug("fetched wallet rows")

	if len(apiRows) == 0 {
		return nil
	}
	records, err := MapRows(kind, apiRows, s.commonValues(kp, unit), s.log)
	if err != nil {
		return err
	}
	persisted, err := BulkInsert(ctx, s.db, kind, records)
	if err != nil {
		return err
	}
	s.log.WithFields(logrus.Fields{
		"kind":      kind.Name,
		"keyID":     kp.KeyID,
		"persisted": persisted,
	}).Debug("wallet rows persisted")

	if kind == TransactionKind && persisted > 0 {
		if err := s.applyDefaultItemTags(ctx); err != nil {
			s.log.WithError(err).Warn("applying default item tags failed")
		}
	}
	return nil
}

// applyDefaultItemTags labels freshly synced trades whose item type has a
// default tag configured for the row's scope. Rows already carrying a tag
// are left alone.
func (s *Scheduler) applyDefaultItemTags(ctx context.Context) error {
	res, err := s.db.ExecContext(ctx, `
		UPDATE wallet_transactions w SET tag = t.tag
		FROM item_tag_defaults d
		JOIN wallet_tag t ON t.tagname = d.tagname
			AND (t."user" = d."user" OR t."corporationID" = d."corporationID")
		WHERE w.tag IS NULL
		  AND w."typeID" = d."typeID"
		  AND w."accountKey" = d."accountKey"
		  AND (
			(d."corporationID" IS NOT NULL AND w."corporationID" = d."corporationID")
			OR (d."user" IS NOT NULL AND w."character" IN (SELECT "character" FROM characters WHERE "user" = d."user"))
		  )`)
	if err != nil {
		return err
	}
	if n, _ := res.RowsAffected(); n > 0 {
		s.log.WithField("rows", n).Debug("default item tags applied")
	}
	return nil
}

// commonValues are the scoping columns every mapped record of this work
// unit shares. Corporation keys scope by corporation, everything else by
// character; never both.
func (s *Scheduler) commonValues(kp *models.Keypair, unit WorkUnit) map[string]any {
	vals := map[string]any{
		"accountKey":    unit.AccountKey,
		"corporationID": nil,
		"character":     nil,
	}
	if kp.IsCorporation() {
		if kp.CorporationID != nil {
			vals["corporationID"] = *kp.CorporationID
		}
	} else {
		vals["character"] = unit.CharacterID
	}
	return vals
}
