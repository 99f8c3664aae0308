package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/go-sql-driver/mysql"
	"github.com/jmoiron/sqlx"
	"gitlab.com/dirk.krummacker/identity-service/internal/identity"
	"gitlab.com/dirk.krummacker/identity-service/internal/model"
)

// contactColumns lists the columns of the contacts table in the order of model.Contact.
const contactColumns = "id, email, phonenumber, linkedid, linkprecedence, createdat, updatedat, deletedat"

// MySQL error numbers that indicate a clash with a concurrent transaction.
const (
	errLockWaitTimeout = 1205
	errDeadlock        = 1213
)

// ErrConflict is returned when a transaction lost against a concurrent one, e.g. when MySQL
// detected a deadlock and rolled it back.
var ErrConflict = errors.New("conflict with concurrent transaction")

// MySQLStore keeps contacts in the contacts table of a MySQL database.
type MySQLStore struct {
	db      *sqlx.DB
	options options

	// selectWhereId is a prepared statement for selecting a non-deleted contact by id.
	selectWhereId *sqlx.Stmt
}

// OpenDatabase opens a connection pool to the MySQL database with the given DSN. Zero pool sizes
// keep the driver defaults.
func OpenDatabase(dsn string, maxConns int, maxIdle int) (*sql.DB, error) {
	sqlDB, err := sql.Open("mysql", dsn)
	if err != nil {
		return nil, fmt.Errorf("open database: %w", err)
	}
	if maxConns > 0 {
		sqlDB.SetMaxOpenConns(maxConns)
	}
	if maxIdle > 0 {
		sqlDB.SetMaxIdleConns(maxIdle)
	}
	sqlDB.SetConnMaxLifetime(5 * time.Minute)
	return sqlDB, nil
}

// NewMySQLStore wraps the specified sql database and prepares all statements. The database
// argument can be a real database for production use or a mock database within unit tests.
func NewMySQLStore(sqlDB *sql.DB, opts ...Option) (*MySQLStore, error) {
	db := sqlx.NewDb(sqlDB, "mysql")
	selectWhereId, err := db.Preparex(`
		SELECT ` + contactColumns + ` FROM contacts WHERE id = ? AND deletedat IS NULL
	`)
	if err != nil {
		return nil, fmt.Errorf("prepare select statement: %w", err)
	}
	return &MySQLStore{db: db, options: buildOptions(opts), selectWhereId: selectWhereId}, nil
}

// Close releases the prepared statements and the database handle.
func (s *MySQLStore) Close() error {
	return errors.Join(s.selectWhereId.Close(), s.db.Close())
}

// Ping checks the database connection.
func (s *MySQLStore) Ping(ctx context.Context) error {
	return s.db.PingContext(ctx)
}

// FindContact returns the non-deleted contact with the given id.
func (s *MySQLStore) FindContact(ctx context.Context, id int64) (model.Contact, error) {
	var contacts []model.Contact
	if err := s.selectWhereId.SelectContext(ctx, &contacts, id); err != nil {
		return model.Contact{}, fmt.Errorf("select contact %d: %w", id, err)
	}
	if len(contacts) == 0 {
		return model.Contact{}, ErrNotFound
	}
	return contacts[0], nil
}

// WithinTx runs fn in a database transaction. Rows read within the transaction are locked until
// it ends, so concurrent requests touching the same contacts are serialized.
func (s *MySQLStore) WithinTx(ctx context.Context, fn func(tx Tx) error) (err error) {
	tx, err := s.db.BeginTxx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin transaction: %w", classify(err))
	}
	defer func() {
		if p := recover(); p != nil {
			_ = tx.Rollback()
			panic(p)
		}
	}()
	if err := fn(&mysqlTx{tx: tx, options: s.options}); err != nil {
		if errRollback := tx.Rollback(); errRollback != nil {
			return fmt.Errorf("%w (rollback failed: %v)", classify(err), errRollback)
		}
		return classify(err)
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit transaction: %w", classify(err))
	}
	return nil
}

// classify marks errors caused by concurrent transactions with ErrConflict.
func classify(err error) error {
	var mysqlErr *mysql.MySQLError
	if errors.As(err, &mysqlErr) && (mysqlErr.Number == errDeadlock || mysqlErr.Number == errLockWaitTimeout) {
		return fmt.Errorf("%w: %w", ErrConflict, err)
	}
	return err
}

type mysqlTx struct {
	tx      *sqlx.Tx
	options options
}

// insertRow is a contact about to be inserted, including its timestamps.
type insertRow struct {
	NewContact
	CreatedAt time.Time `db:"createdat"`
	UpdatedAt time.Time `db:"updatedat"`
}

func (t *mysqlTx) Select(ctx context.Context, predicate Predicate) ([]model.Contact, error) {
	condition, args := predicate.SQL()
	query := `
		SELECT ` + contactColumns + `
		FROM contacts
		WHERE deletedat IS NULL AND ` + condition + `
		ORDER BY createdat, id
		FOR UPDATE`
	var contacts []model.Contact
	if err := t.tx.SelectContext(ctx, &contacts, query, args...); err != nil {
		return nil, fmt.Errorf("select contacts: %w", err)
	}
	return contacts, nil
}

func (t *mysqlTx) FindByEquality(ctx context.Context, email *string, phoneNumber *string) ([]model.Contact, error) {
	return findByEquality(ctx, t, email, phoneNumber)
}

func (t *mysqlTx) FindByID(ctx context.Context, id int64) (model.Contact, error) {
	return findByID(ctx, t, id)
}

func (t *mysqlTx) FindByLinkedID(ctx context.Context, id int64) ([]model.Contact, error) {
	return findByLinkedID(ctx, t, id)
}

func (t *mysqlTx) Insert(ctx context.Context, contact NewContact) (model.Contact, error) {
	now := t.options.timestamp()
	result, err := t.tx.NamedExecContext(ctx, `
		INSERT INTO contacts (email, phonenumber, linkedid, linkprecedence, createdat, updatedat)
		VALUES (:email, :phonenumber, :linkedid, :linkprecedence, :createdat, :updatedat)
	`, insertRow{NewContact: contact, CreatedAt: now, UpdatedAt: now})
	if err != nil {
		return model.Contact{}, fmt.Errorf("insert contact: %w", err)
	}
	id, err := result.LastInsertId()
	if err != nil {
		return model.Contact{}, fmt.Errorf("insert contact: %w", err)
	}
	return model.Contact{
		Id:             id,
		Email:          contact.Email,
		PhoneNumber:    contact.PhoneNumber,
		LinkedId:       contact.LinkedId,
		LinkPrecedence: contact.LinkPrecedence,
		CreatedAt:      now,
		UpdatedAt:      now,
	}, nil
}

func (t *mysqlTx) Update(ctx context.Context, id int64, update ContactUpdate) error {
	var args []interface{}
	query := "UPDATE contacts SET "
	if update.LinkedId != nil {
		args = append(args, *update.LinkedId)
		query += "linkedid = ?, "
	}
	if update.LinkPrecedence != nil {
		args = append(args, string(*update.LinkPrecedence))
		query += "linkprecedence = ?, "
	}
	if len(args) == 0 {
		return nil
	}
	args = append(args, t.options.timestamp(), id)
	query += "updatedat = ? WHERE id = ? AND deletedat IS NULL"

	result, err := t.tx.ExecContext(ctx, query, args...)
	if err != nil {
		return fmt.Errorf("update contact %d: %w", id, err)
	}
	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("update contact %d: %w", id, err)
	}
	if rowsAffected == 0 {
		return ErrNotFound
	}
	return nil
}

// ApplyConsolidation re-parents the secondaries of the demoted primaries and demotes the primaries
// with two batched statements. A statement touching fewer rows than planned fails the whole batch.
func (t *mysqlTx) ApplyConsolidation(ctx context.Context, plan identity.Consolidation) error {
	now := t.options.timestamp()
	if len(plan.Reparented) > 0 {
		err := t.execIn(ctx, len(plan.Reparented), `
			UPDATE contacts SET linkedid = ?, updatedat = ?
			WHERE id IN (?) AND linkprecedence = ? AND deletedat IS NULL
		`, plan.Survivor.Id, now, plan.Reparented, string(model.Secondary))
		if err != nil {
			return fmt.Errorf("re-parent secondaries: %w", err)
		}
	}
	if len(plan.Demoted) > 0 {
		err := t.execIn(ctx, len(plan.Demoted), `
			UPDATE contacts SET linkprecedence = ?, linkedid = ?, updatedat = ?
			WHERE id IN (?) AND linkprecedence = ? AND deletedat IS NULL
		`, string(model.Secondary), plan.Survivor.Id, now, plan.Demoted, string(model.Primary))
		if err != nil {
			return fmt.Errorf("demote primaries: %w", err)
		}
	}
	return nil
}

// execIn expands the slice arguments of query, executes it and verifies the number of affected
// rows.
func (t *mysqlTx) execIn(ctx context.Context, expectedRows int, query string, args ...interface{}) error {
	query, args, err := sqlx.In(query, args...)
	if err != nil {
		return err
	}
	result, err := t.tx.ExecContext(ctx, t.tx.Rebind(query), args...)
	if err != nil {
		return err
	}
	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return err
	}
	if rowsAffected != int64(expectedRows) {
		return fmt.Errorf("%w: %d rows changed, %d expected", identity.ErrInconsistent, rowsAffected, expectedRows)
	}
	return nil
}
