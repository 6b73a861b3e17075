package wallet

import (
	"context"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/eve-tsu/eve-kasse/internal/eveapi"
)

func keypairColumns() []string {
	return []string{"keyid", "vcode", "access_mask", "key_type", "key_corporation", "key_character", "expires", "valid"}
}

func newTestScheduler(t *testing.T, api API, opts Options) (*Scheduler, sqlmock.Sqlmock) {
	t.Helper()
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })
	return NewScheduler(db, api, quietLogger(), opts), mock
}

func TestRunCycle_PersistsJournalSkipsEmptyTransactions(t *testing.T) {
	session := &fakeSession{
		keyInfo: &eveapi.KeyInfo{Characters: []eveapi.Character{{CharacterID: 90001, Name: "Pilot One"}}},
		journalRows: []eveapi.Row{
			{"refID": "1001", "date": "1426334400", "refTypeID": "85", "amount": "100.00"},
			{"refID": "1002", "date": "1426334460", "refTypeID": "85", "amount": "200.00"},
			{"refID": "1003", "date": "1426334520", "refTypeID": "85", "amount": "300.00"},
		},
		// transaction fetch yields zero rows: no insert may happen
	}
	api := &fakeAPI{sessions: map[int64]*fakeSession{42: session}}
	s, mock := newTestScheduler(t, api, Options{RowCount: 2560})

	mock.ExpectQuery("SELECT (.+) FROM keypairs").
		WillReturnRows(sqlmock.NewRows(keypairColumns()).
			AddRow(42, "secret", 2097152|4194304, "Account", nil, nil, nil, true))
	mock.ExpectExec(`INSERT INTO wallet_journal .+ ON CONFLICT \("refID"\) DO NOTHING`).
		WillReturnResult(sqlmock.NewResult(0, 3))

	require.NoError(t, s.runCycle(context.Background()))

	assert.Len(t, session.journalCalls, 1)
	assert.Len(t, session.txCalls, 1)
	assert.Equal(t, "1000", session.journalCalls[0].AccountKey)
	assert.False(t, session.journalCalls[0].Corporation)
	assert.NoError(t, mock.ExpectationsWereMet(), "zero-row response must not produce an insert")
}

func TestRunCycle_TransportFailureIsolatedToOneKeypair(t *testing.T) {
	broken := &fakeSession{
		keyInfo:    &eveapi.KeyInfo{Characters: []eveapi.Character{{CharacterID: 90001}}},
		journalErr: &eveapi.HTTPError{URL: "/char/WalletJournal.xml.aspx", StatusCode: 503},
	}
	healthy := &fakeSession{
		keyInfo:     &eveapi.KeyInfo{Characters: []eveapi.Character{{CharacterID: 90002}}},
		journalRows: []eveapi.Row{{"refID": "2001", "date": "1426334400", "amount": "10.00"}},
	}
	api := &fakeAPI{sessions: map[int64]*fakeSession{1: broken, 2: healthy}}
	s, mock := newTestScheduler(t, api, Options{})

	mock.ExpectQuery("SELECT (.+) FROM keypairs").
		WillReturnRows(sqlmock.NewRows(keypairColumns()).
			AddRow(1, "a", 2097152|4194304, "Account", nil, nil, nil, true).
			AddRow(2, "b", 2097152|4194304, "Account", nil, nil, nil, true))
	mock.ExpectExec(`INSERT INTO wallet_journal`).
		WillReturnResult(sqlmock.NewResult(0, 1))

	require.NoError(t, s.runCycle(context.Background()))

	assert.Len(t, healthy.journalCalls, 1, "keypair after the failing one must still be processed")
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestRunCycle_AuthorizationFailureIsolated(t *testing.T) {
	rejected := &fakeSession{
		keyInfoErr: &eveapi.APIError{Code: 203, Message: "Authentication failure."},
	}
	api := &fakeAPI{sessions: map[int64]*fakeSession{7: rejected}}
	s, mock := newTestScheduler(t, api, Options{})

	mock.ExpectQuery("SELECT (.+) FROM keypairs").
		WillReturnRows(sqlmock.NewRows(keypairColumns()).
			AddRow(7, "x", 2097152|4194304, "Account", nil, nil, nil, true))

	assert.NoError(t, s.runCycle(context.Background()))
}

func TestRunCycle_UnexpectedFailurePolicy(t *testing.T) {
	badRow := []eveapi.Row{{"refID": "1", "date": "not-a-timestamp"}}

	t.Run("swallowed outside debug", func(t *testing.T) {
		session := &fakeSession{
			keyInfo:     &eveapi.KeyInfo{Characters: []eveapi.Character{{CharacterID: 90001}}},
			journalRows: badRow,
		}
		api := &fakeAPI{sessions: map[int64]*fakeSession{1: session}}
		s, mock := newTestScheduler(t, api, Options{})

		mock.ExpectQuery("SELECT (.+) FROM keypairs").
			WillReturnRows(sqlmock.NewRows(keypairColumns()).
				AddRow(1, "a", 2097152|4194304, "Account", nil, nil, nil, true))

		assert.NoError(t, s.runCycle(context.Background()))
	})

	t.Run("propagated in debug", func(t *testing.T) {
		session := &fakeSession{
			keyInfo:     &eveapi.KeyInfo{Characters: []eveapi.Character{{CharacterID: 90001}}},
			journalRows: badRow,
		}
		api := &fakeAPI{sessions: map[int64]*fakeSession{1: session}}
		s, mock := newTestScheduler(t, api, Options{Debug: true})

		mock.ExpectQuery("SELECT (.+) FROM keypairs").
			WillReturnRows(sqlmock.NewRows(keypairColumns()).
				AddRow(1, "a", 2097152|4194304, "Account", nil, nil, nil, true))

		assert.Error(t, s.runCycle(context.Background()))
	})
}

func TestRunCycle_MaskFilteredInMemory(t *testing.T) {
	// Storage only pre-filters validity/expiry; the bitmask decision is
	// the capability gate's.
	session := &fakeSession{}
	api := &fakeAPI{sessions: map[int64]*fakeSession{9: session}}
	s, mock := newTestScheduler(t, api, Options{})

	mock.ExpectQuery("SELECT (.+) FROM keypairs").
		WillReturnRows(sqlmock.NewRows(keypairColumns()).
			AddRow(9, "a", 2097152, "Account", nil, nil, nil, true)) // journal bit only

	require.NoError(t, s.runCycle(context.Background()))
	assert.Empty(t, session.journalCalls, "keypair without both capabilities must be skipped")
}

func TestRunCycle_CorporationScoping(t *testing.T) {
	session := &fakeSession{
		journalRows: []eveapi.Row{{"refID": "3001", "date": "1426334400", "amount": "1.00"}},
		txRows:      []eveapi.Row{{"transactionID": "9001", "transactionDateTime": "1426334400", "characterID": "90001", "characterName": "CEO"}},
	}
	api := &fakeAPI{sessions: map[int64]*fakeSession{5: session}}
	s, mock := newTestScheduler(t, api, Options{})

	mock.ExpectQuery("SELECT (.+) FROM keypairs").
		WillReturnRows(sqlmock.NewRows(keypairColumns()).
			AddRow(5, "c", 1048576|2097152, "Corporation", 70001, 90001, nil, true))
	// 7 divisions, journal + transactions each; every persisted trade
	// batch triggers a default item tag sweep
	for i := 0; i < 7; i++ {
		mock.ExpectExec(`INSERT INTO wallet_journal`).WillReturnResult(sqlmock.NewResult(0, 1))
		mock.ExpectExec(`INSERT INTO wallet_transactions`).WillReturnResult(sqlmock.NewResult(0, 1))
		mock.ExpectExec(`UPDATE wallet_transactions w SET tag`).WillReturnResult(sqlmock.NewResult(0, 0))
	}

	require.NoError(t, s.runCycle(context.Background()))
	assert.Len(t, session.journalCalls, 7)
	assert.Len(t, session.txCalls, 7)
	for _, call := range session.journalCalls {
		assert.True(t, call.Corporation)
		assert.Equal(t, int64(90001), call.CharacterID)
	}
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestNextCycleDelay(t *testing.T) {
	period := 4 * time.Hour

	assert.Equal(t, period-90*time.Second, nextCycleDelay(period, 90*time.Second))
	assert.Equal(t, time.Duration(0), nextCycleDelay(period, 5*time.Hour), "overrun floors at zero")
	assert.Equal(t, period, nextCycleDelay(period, 0))
}

func TestRun_CancelledDuringWarmup(t *testing.T) {
	s, _ := newTestScheduler(t, &fakeAPI{}, Options{Period: time.Hour, Warmup: time.Hour})

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- s.Run(ctx) }()
	cancel()

	select {
	case err := <-done:
		assert.ErrorIs(t, err, context.Canceled)
	case <-time.After(2 * time.Second):
		t.Fatal("scheduler did not stop at the warmup sleep")
	}
}
