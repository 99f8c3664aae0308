package store

import (
	"context"
	"database/sql"
	"errors"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/go-sql-driver/mysql"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gitlab.com/dirk.krummacker/identity-service/internal/identity"
	"gitlab.com/dirk.krummacker/identity-service/internal/model"
)

// now is the time returned by the store clock in all MySQL tests.
var now = time.Date(2023, time.April, 1, 12, 0, 0, 0, time.UTC)

var columns = []string{"id", "email", "phonenumber", "linkedid", "linkprecedence", "createdat", "updatedat", "deletedat"}

// createMockObjects builds a mock database handle and a mock object for defining our expected SQL
// calls.
func createMockObjects(t *testing.T) (*sql.DB, sqlmock.Sqlmock) {
	db, mock, err := sqlmock.New()
	if err != nil {
		t.Fatalf("an error '%s' was not expected when opening a stub database connection", err)
	}
	return db, mock
}

// createStore expects the prepared statements and builds a store on top of the mock database.
func createStore(t *testing.T, db *sql.DB, mock sqlmock.Sqlmock) *MySQLStore {
	mock.ExpectPrepare("SELECT (.+) FROM contacts WHERE id = \\? AND deletedat IS NULL")
	s, err := NewMySQLStore(db, WithClock(func() time.Time { return now }))
	require.NoError(t, err)
	return s
}

// TestMySQLFindByEquality expects a locking select with both conditions combined by OR.
func TestMySQLFindByEquality(t *testing.T) {
	db, mock := createMockObjects(t)
	defer db.Close()

	// Define expectations on SQL statements
	s := createStore(t, db, mock)
	mock.ExpectBegin()
	rows := mock.NewRows(columns).
		AddRow(1, "lorraine@x", "123456", nil, "primary", now, now, nil).
		AddRow(23, "mcfly@x", "123456", 1, "secondary", now, now, nil)
	mock.ExpectQuery("SELECT (.+) FROM contacts WHERE deletedat IS NULL AND \\(email = \\? OR phonenumber = \\?\\) ORDER BY createdat, id FOR UPDATE").
		WithArgs("mcfly@x", "123456").
		WillReturnRows(rows)
	mock.ExpectCommit()

	// Run test and compare results
	var contacts []model.Contact
	err := s.WithinTx(context.Background(), func(tx Tx) error {
		var err error
		contacts, err = tx.FindByEquality(context.Background(), str("mcfly@x"), str("123456"))
		return err
	})
	require.NoError(t, err)
	require.Len(t, contacts, 2)
	assert.Equal(t, model.Primary, contacts[0].LinkPrecedence)
	assert.Nil(t, contacts[0].LinkedId)
	assert.Equal(t, int64(23), contacts[1].Id)
	assert.Equal(t, int64(1), *contacts[1].LinkedId)
	assert.Equal(t, "mcfly@x", *contacts[1].Email)
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Errorf("there were unfulfilled expectations: %s", err)
	}
}

// TestMySQLInsert expects a named insert whose generated id is returned with the contact.
func TestMySQLInsert(t *testing.T) {
	db, mock := createMockObjects(t)
	defer db.Close()

	// Define expectations on SQL statements
	s := createStore(t, db, mock)
	mock.ExpectBegin()
	mock.ExpectExec("INSERT INTO contacts").
		WithArgs("mcfly@x", "123456", int64(1), "secondary", now, now).
		WillReturnResult(sqlmock.NewResult(23, 1))
	mock.ExpectCommit()

	// Run test and compare results
	var contact model.Contact
	err := s.WithinTx(context.Background(), func(tx Tx) error {
		var err error
		contact, err = tx.Insert(context.Background(), NewContact{
			Email:          str("mcfly@x"),
			PhoneNumber:    str("123456"),
			LinkedId:       linkedTo(1),
			LinkPrecedence: model.Secondary,
		})
		return err
	})
	require.NoError(t, err)
	assert.Equal(t, int64(23), contact.Id)
	assert.Equal(t, now, contact.CreatedAt)
	assert.Equal(t, now, contact.UpdatedAt)
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Errorf("there were unfulfilled expectations: %s", err)
	}
}

// TestMySQLInsertWithoutEmail expects NULL to be stored for a missing email.
func TestMySQLInsertWithoutEmail(t *testing.T) {
	db, mock := createMockObjects(t)
	defer db.Close()

	// Define expectations on SQL statements
	s := createStore(t, db, mock)
	mock.ExpectBegin()
	mock.ExpectExec("INSERT INTO contacts").
		WithArgs(nil, "123456", nil, "primary", now, now).
		WillReturnResult(sqlmock.NewResult(5, 1))
	mock.ExpectCommit()

	// Run test and compare results
	err := s.WithinTx(context.Background(), func(tx Tx) error {
		_, err := tx.Insert(context.Background(), NewContact{PhoneNumber: str("123456"), LinkPrecedence: model.Primary})
		return err
	})
	require.NoError(t, err)
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Errorf("there were unfulfilled expectations: %s", err)
	}
}

// TestMySQLRollback expects the transaction to be rolled back when the callback fails.
func TestMySQLRollback(t *testing.T) {
	db, mock := createMockObjects(t)
	defer db.Close()

	// Define expectations on SQL statements
	s := createStore(t, db, mock)
	mock.ExpectBegin()
	mock.ExpectExec("INSERT INTO contacts").
		WillReturnError(errors.New("duplicate entry"))
	mock.ExpectRollback()

	// Run test and compare results
	err := s.WithinTx(context.Background(), func(tx Tx) error {
		_, err := tx.Insert(context.Background(), NewContact{Email: str("doc@x"), LinkPrecedence: model.Primary})
		return err
	})
	assert.ErrorContains(t, err, "duplicate entry")
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Errorf("there were unfulfilled expectations: %s", err)
	}
}

// TestMySQLDeadlock expects a deadlock reported by MySQL to be marked as a conflict.
func TestMySQLDeadlock(t *testing.T) {
	db, mock := createMockObjects(t)
	defer db.Close()

	// Define expectations on SQL statements
	s := createStore(t, db, mock)
	mock.ExpectBegin()
	mock.ExpectQuery("SELECT (.+) FROM contacts").
		WillReturnError(&mysql.MySQLError{Number: 1213, Message: "Deadlock found when trying to get lock"})
	mock.ExpectRollback()

	// Run test and compare results
	err := s.WithinTx(context.Background(), func(tx Tx) error {
		_, err := tx.FindByID(context.Background(), 1)
		return err
	})
	assert.ErrorIs(t, err, ErrConflict)
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Errorf("there were unfulfilled expectations: %s", err)
	}
}

// TestMySQLUpdate expects only the specified fields to be written.
func TestMySQLUpdate(t *testing.T) {
	db, mock := createMockObjects(t)
	defer db.Close()

	// Define expectations on SQL statements
	s := createStore(t, db, mock)
	mock.ExpectBegin()
	mock.ExpectExec("UPDATE contacts SET linkedid = \\?, updatedat = \\? WHERE id = \\? AND deletedat IS NULL").
		WithArgs(int64(1), now, int64(9)).
		WillReturnResult(sqlmock.NewResult(-1, 1))
	mock.ExpectExec("UPDATE contacts SET linkedid = \\?, linkprecedence = \\?, updatedat = \\? WHERE id = \\?").
		WithArgs(int64(1), "secondary", now, int64(9999)).
		WillReturnResult(sqlmock.NewResult(-1, 0))
	mock.ExpectCommit()

	// Run test and compare results
	secondary := model.Secondary
	err := s.WithinTx(context.Background(), func(tx Tx) error {
		require.NoError(t, tx.Update(context.Background(), 9, ContactUpdate{LinkedId: linkedTo(1)}))
		assert.ErrorIs(t, tx.Update(context.Background(), 9999, ContactUpdate{LinkedId: linkedTo(1), LinkPrecedence: &secondary}), ErrNotFound)
		assert.NoError(t, tx.Update(context.Background(), 9, ContactUpdate{}))
		return nil
	})
	require.NoError(t, err)
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Errorf("there were unfulfilled expectations: %s", err)
	}
}

// TestMySQLApplyConsolidation expects the re-parenting and the demotion to be executed as two
// batched statements within the transaction.
func TestMySQLApplyConsolidation(t *testing.T) {
	db, mock := createMockObjects(t)
	defer db.Close()

	// Define expectations on SQL statements
	s := createStore(t, db, mock)
	mock.ExpectBegin()
	mock.ExpectExec("UPDATE contacts SET linkedid = \\?, updatedat = \\? WHERE id IN \\(\\?, \\?\\) AND linkprecedence = \\?").
		WithArgs(int64(11), now, int64(30), int64(31), "secondary").
		WillReturnResult(sqlmock.NewResult(-1, 2))
	mock.ExpectExec("UPDATE contacts SET linkprecedence = \\?, linkedid = \\?, updatedat = \\? WHERE id IN \\(\\?\\) AND linkprecedence = \\?").
		WithArgs("secondary", int64(11), now, int64(27), "primary").
		WillReturnResult(sqlmock.NewResult(-1, 1))
	mock.ExpectCommit()

	// Run test and compare results
	err := s.WithinTx(context.Background(), func(tx Tx) error {
		return tx.ApplyConsolidation(context.Background(), identity.Consolidation{
			Survivor:   model.Contact{Id: 11},
			Demoted:    []int64{27},
			Reparented: []int64{30, 31},
		})
	})
	require.NoError(t, err)
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Errorf("there were unfulfilled expectations: %s", err)
	}
}

// TestMySQLApplyConsolidationPartial expects the whole batch to be rolled back when a demotion
// does not find its primary any more.
func TestMySQLApplyConsolidationPartial(t *testing.T) {
	db, mock := createMockObjects(t)
	defer db.Close()

	// Define expectations on SQL statements
	s := createStore(t, db, mock)
	mock.ExpectBegin()
	mock.ExpectExec("UPDATE contacts SET linkprecedence = \\?").
		WithArgs("secondary", int64(11), now, int64(27), "primary").
		WillReturnResult(sqlmock.NewResult(-1, 0))
	mock.ExpectRollback()

	// Run test and compare results
	err := s.WithinTx(context.Background(), func(tx Tx) error {
		return tx.ApplyConsolidation(context.Background(), identity.Consolidation{
			Survivor: model.Contact{Id: 11},
			Demoted:  []int64{27},
		})
	})
	assert.ErrorIs(t, err, identity.ErrInconsistent)
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Errorf("there were unfulfilled expectations: %s", err)
	}
}

// TestMySQLFindContact expects the prepared statement to be used and deleted or unknown contacts
// to be reported as not found.
func TestMySQLFindContact(t *testing.T) {
	db, mock := createMockObjects(t)
	defer db.Close()

	// Define expectations on SQL statements
	s := createStore(t, db, mock)
	mock.ExpectQuery("SELECT (.+) FROM contacts WHERE id = \\? AND deletedat IS NULL").
		WithArgs(int64(29)).
		WillReturnRows(mock.NewRows(columns).AddRow(29, "doc@x", nil, nil, "primary", now, now, nil))
	mock.ExpectQuery("SELECT (.+) FROM contacts WHERE id = \\? AND deletedat IS NULL").
		WithArgs(int64(9999)).
		WillReturnRows(mock.NewRows(columns))

	// Run test and compare results
	contact, err := s.FindContact(context.Background(), 29)
	require.NoError(t, err)
	assert.Equal(t, "doc@x", *contact.Email)
	assert.Nil(t, contact.PhoneNumber)

	_, err = s.FindContact(context.Background(), 9999)
	assert.ErrorIs(t, err, ErrNotFound)
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Errorf("there were unfulfilled expectations: %s", err)
	}
}
