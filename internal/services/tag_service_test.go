package services

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/go-chi/chi/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func withURLParam(r *http.Request, key, value string) *http.Request {
	rctx := chi.NewRouteContext()
	rctx.URLParams.Add(key, value)
	return r.WithContext(context.WithValue(r.Context(), chi.RouteCtxKey, rctx))
}

func TestTagService_CreatePersonal(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()

	service := NewTagService(db)

	mock.ExpectQuery(`INSERT INTO wallet_tag \("user", tagname\)`).
		WithArgs(7, "fuel").
		WillReturnRows(sqlmock.NewRows([]string{"tag"}).AddRow(3))

	w := httptest.NewRecorder()
	service.Create(w, authedRequest(http.MethodPost, "/api/v1/wallet/tags", `{"tagname": "fuel"}`))

	assert.Equal(t, http.StatusCreated, w.Code)
	assert.Contains(t, w.Body.String(), `"tagname":"fuel"`)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestTagService_CreateDuplicateConflicts(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()

	service := NewTagService(db)

	mock.ExpectQuery(`INSERT INTO wallet_tag`).
		WillReturnError(sqlmock.ErrCancelled)

	w := httptest.NewRecorder()
	service.Create(w, authedRequest(http.MethodPost, "/api/v1/wallet/tags", `{"tagname": "fuel"}`))

	assert.Equal(t, http.StatusConflict, w.Code)
}

func TestTagService_AssignJournalTag(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()

	service := NewTagService(db)

	mock.ExpectQuery(`SELECT 1 FROM wallet_tag`).
		WithArgs(3, 7).
		WillReturnRows(sqlmock.NewRows([]string{"?column?"}).AddRow(1))
	mock.ExpectExec(`UPDATE wallet_journal SET tag = \$2 WHERE "refID" = \$3 AND \( "character" IN \(SELECT`).
		WithArgs(7, 3, int64(1001)).
		WillReturnResult(sqlmock.NewResult(0, 1))

	w := httptest.NewRecorder()
	r := withURLParam(
		authedRequest(http.MethodPut, "/api/v1/wallet/journal/1001/tag", `{"tag": 3}`),
		"refID", "1001")
	service.AssignJournalTag(w, r)

	assert.Equal(t, http.StatusNoContent, w.Code)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestTagService_AssignClearsWithNull(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()

	service := NewTagService(db)

	// Clearing skips the tag lookup but still goes through the scoped
	// update.
	mock.ExpectExec(`UPDATE wallet_transactions SET tag = \$2 WHERE "transaction" = \$3 AND \( "character" IN \(SELECT`).
		WithArgs(7, nil, int64(2002)).
		WillReturnResult(sqlmock.NewResult(0, 1))

	w := httptest.NewRecorder()
	r := withURLParam(
		authedRequest(http.MethodPut, "/api/v1/wallet/transactions/2002/tag", `{"tag": null}`),
		"transactionID", "2002")
	service.AssignTransactionTag(w, r)

	assert.Equal(t, http.StatusNoContent, w.Code)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestTagService_AssignForeignRowNotFound(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()

	service := NewTagService(db)

	// Row 1001 belongs to someone else: the scoped update matches
	// nothing, even for a plain clear request.
	mock.ExpectExec(`UPDATE wallet_journal SET tag = \$2 WHERE "refID" = \$3 AND \( "character" IN \(SELECT`).
		WithArgs(7, nil, int64(1001)).
		WillReturnResult(sqlmock.NewResult(0, 0))

	w := httptest.NewRecorder()
	r := withURLParam(
		authedRequest(http.MethodPut, "/api/v1/wallet/journal/1001/tag", `{"tag": null}`),
		"refID", "1001")
	service.AssignJournalTag(w, r)

	assert.Equal(t, http.StatusNotFound, w.Code)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestTagService_AssignForeignTagNotFound(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()

	service := NewTagService(db)

	mock.ExpectQuery(`SELECT 1 FROM wallet_tag`).
		WithArgs(9, 7).
		WillReturnRows(sqlmock.NewRows([]string{"?column?"}))

	w := httptest.NewRecorder()
	r := withURLParam(
		authedRequest(http.MethodPut, "/api/v1/wallet/journal/1001/tag", `{"tag": 9}`),
		"refID", "1001")
	service.AssignJournalTag(w, r)

	assert.Equal(t, http.StatusNotFound, w.Code)
}

func TestTagService_CreateItemDefault(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()

	service := NewTagService(db)

	mock.ExpectQuery(`INSERT INTO item_tag_defaults \("user", "accountKey", "typeID", tagname\)`).
		WithArgs(7, "1000", int64(34), "minerals").
		WillReturnRows(sqlmock.NewRows([]string{"id"}).AddRow(1))

	w := httptest.NewRecorder()
	service.CreateItemDefault(w, authedRequest(http.MethodPost, "/api/v1/wallet/item-defaults",
		`{"typeID": 34, "tagname": "minerals"}`))

	assert.Equal(t, http.StatusCreated, w.Code, "missing accountKey must default to 1000")
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestTagService_CreateItemDefaultBadAccountKey(t *testing.T) {
	db, _, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()

	service := NewTagService(db)

	w := httptest.NewRecorder()
	service.CreateItemDefault(w, authedRequest(http.MethodPost, "/api/v1/wallet/item-defaults",
		`{"typeID": 34, "tagname": "minerals", "accountKey": "1007"}`))

	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestTagService_DeleteNotOwned(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()

	service := NewTagService(db)

	mock.ExpectExec(`DELETE FROM wallet_tag`).
		WithArgs(5, 7).
		WillReturnResult(sqlmock.NewResult(0, 0))

	w := httptest.NewRecorder()
	r := withURLParam(authedRequest(http.MethodDelete, "/api/v1/wallet/tags/5", ""), "tagID", "5")
	service.Delete(w, r)

	assert.Equal(t, http.StatusNotFound, w.Code)
}
