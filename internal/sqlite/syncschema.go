package sqlite

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"
	"strings"

	"github.com/myrjola/sleuth/internal/errors"
	"github.com/myrjola/sleuth/internal/random"
)

// migrateTo ensures that the db schema matches the target schema definition.
//
// We employ a very simple declarative schema migration that:
//
// 1. Deletes deleted tables,
// 2. Creates new tables,
// 3. Migrates changed tables using 12-step schema migration https://www.sqlite.org/lang_altertable.html#otheralter,
// 4. Re-creates changed indexes and triggers.
//
// Inspired by https://david.rothlis.net/declarative-schema-migration-for-sqlite/
func (db *Database) migrateTo(ctx context.Context, schemaDefinition string) (err error) {
	// Pragmas and attached databases are per connection so the whole migration runs on one.
	var conn *sql.Conn
	if conn, err = db.ReadWrite.Conn(ctx); err != nil {
		return errors.Wrap(err, "acquire connection")
	}
	defer func() {
		if closeErr := conn.Close(); closeErr != nil {
			err = errors.Join(err, errors.Wrap(closeErr, "release connection"))
		}
	}()

	// Step 1: Disable foreign key validation temporarily. It has no effect inside a transaction.
	if _, err = conn.ExecContext(ctx, "PRAGMA foreign_keys = OFF"); err != nil {
		return errors.Wrap(err, "disable foreign key validation")
	}
	// Step 12: Re-enable foreign key validation.
	defer func() {
		if _, fkErr := conn.ExecContext(ctx, "PRAGMA foreign_keys = ON"); fkErr != nil {
			err = errors.Join(err, errors.Wrap(fkErr, "re-enable foreign key validation"))
		}
	}()

	// Create schema against a temporary database so that we know what has changed.
	var (
		randomID     string
		dbNameLength uint = 20
	)
	if randomID, err = random.Letters(dbNameLength); err != nil {
		return errors.Wrap(err, "generate random ID")
	}
	schemaTargetDataSourceName := fmt.Sprintf("file:%s?mode=memory&cache=shared", randomID)
	schemaTargetDatabase, err := sql.Open("sqlite3", schemaTargetDataSourceName)
	if err != nil {
		return errors.Wrap(err, "open schema target database")
	}
	// The in-memory target lives as long as it has an open connection.
	schemaTargetDatabase.SetMaxIdleConns(1)
	defer func() {
		if closeErr := schemaTargetDatabase.Close(); closeErr != nil {
			closeErr = errors.Wrap(closeErr, "close schema target database")
			db.logger.LogAttrs(ctx, slog.LevelError, "failed to close schema target database",
				errors.SlogError(closeErr))
		}
	}()
	if _, err = schemaTargetDatabase.ExecContext(ctx, schemaDefinition); err != nil {
		return errors.Wrap(err, "migrate schema target database")
	}

	// ATTACH and DETACH are not allowed inside a transaction.
	if _, err = conn.ExecContext(ctx, "ATTACH DATABASE ? AS schemaTarget", schemaTargetDataSourceName); err != nil {
		return errors.Wrap(err, "attach schema target database")
	}
	defer func() {
		if _, detachErr := conn.ExecContext(ctx, "DETACH DATABASE schemaTarget"); detachErr != nil {
			detachErr = errors.Wrap(detachErr, "detach schema target database")
			db.logger.LogAttrs(ctx, slog.LevelError, "failed to detach schema target database",
				errors.SlogError(detachErr))
		}
	}()

	// Step 2: Start transaction.
	var tx *sql.Tx
	if tx, err = conn.BeginTx(ctx, nil); err != nil {
		return errors.Wrap(err, "start transaction")
	}
	defer func() {
		if rollbackErr := tx.Rollback(); rollbackErr != nil && !errors.Is(rollbackErr, sql.ErrTxDone) {
			db.logger.LogAttrs(ctx, slog.LevelError, "failed to rollback transaction",
				errors.SlogError(rollbackErr))
		}
	}()

	// Step 3-7 migrate tables.
	if err = db.migrateTables(ctx, tx); err != nil {
		return errors.Wrap(err, "migrate tables")
	}

	// Step 8: Recreate indexes and triggers associated with table if needed.
	// Step 9: Recreate views associated with table. We don't use views.
	if err = db.migrateIndexesAndTriggers(ctx, tx); err != nil {
		return errors.Wrap(err, "migrate indexes and triggers")
	}

	// Step 10: Check foreign key constraints.
	if _, err = tx.ExecContext(ctx, "PRAGMA foreign_key_check"); err != nil {
		return errors.Wrap(err, "foreign key check")
	}

	// Step 11: Commit transaction from step 2.
	if err = tx.Commit(); err != nil {
		return errors.Wrap(err, "commit transaction")
	}
	// Step 12: is in defer above.

	return nil
}

// migrateTables ensures table schema is synchronized between databases.
func (db *Database) migrateTables(ctx context.Context, tx *sql.Tx) error {
	// Step 3: Remember schema (also includes trivial creation and deletion of tables).
	var err error

	// Drop deleted tables.
	var deletedTables []string
	if deletedTables, err = db.queryStringSlice(ctx, tx, `SELECT cur.name
FROM main.sqlite_schema AS cur
         LEFT JOIN schemaTarget.sqlite_schema AS tgt ON cur.name = tgt.name AND cur.type = tgt.type
WHERE cur.type = 'table' AND tgt.type IS NULL AND cur.name NOT LIKE 'sqlite_%';`); err != nil {
		return errors.Wrap(err, "query deleted tables")
	}
	for _, table := range deletedTables {
		db.logger.LogAttrs(ctx, slog.LevelInfo, "dropping table", slog.String("table", table))
		if _, err = tx.ExecContext(ctx, fmt.Sprintf(`DROP TABLE "%s";`, table)); err != nil {
			return errors.Wrap(err, "drop table", slog.String("table", table))
		}
	}

	// Create new tables.
	var newTableSQLs []string
	if newTableSQLs, err = db.queryStringSlice(ctx, tx, `SELECT tgt.sql
FROM schemaTarget.sqlite_schema AS tgt
         LEFT JOIN main.sqlite_schema AS cur ON cur.name = tgt.name AND cur.type = tgt.type
WHERE tgt.type = 'table' AND cur.type IS NULL AND tgt.name NOT LIKE 'sqlite_%';`); err != nil {
		return errors.Wrap(err, "query new tables")
	}
	for _, newTableSQL := range newTableSQLs {
		db.logger.LogAttrs(ctx, slog.LevelInfo, "creating table", slog.String("query", newTableSQL))
		if _, err = tx.ExecContext(ctx, newTableSQL); err != nil {
			return errors.Wrap(err, "create table")
		}
	}

	// Identify tables with changed schema and continue the 12-step schema migration with them.
	var changedTables []changedTable
	if changedTables, err = db.queryChangedTables(ctx, tx); err != nil {
		return errors.Wrap(err, "query changed tables")
	}

	for _, table := range changedTables {
		db.logger.LogAttrs(ctx, slog.LevelInfo, "migrating table",
			slog.String("table", table.name),
			slog.String("current_sql", table.currentSQL),
			slog.String("new_sql", table.newSQL))

		// Step 4: Create tables according to new schema on temporary names.
		tempName := table.name + "_migration_temp"
		tempNameSQL := strings.Replace(table.newSQL, table.name, tempName, 1)
		if _, err = tx.ExecContext(ctx, tempNameSQL); err != nil {
			return errors.Wrap(err, "create new table to temporary name", slog.String("query", tempNameSQL))
		}

		// Step 5: Copy common columns between tables.
		var commonColumns []string
		if commonColumns, err = db.queryStringSlice(ctx, tx, `SELECT '"' || tgt.name || '"'
FROM PRAGMA_TABLE_INFO(:table_name) AS cur
         JOIN PRAGMA_TABLE_INFO(:table_name, 'schemaTarget') AS tgt ON tgt.name = cur.name;`,
			sql.Named("table_name", table.name)); err != nil {
			return errors.Wrap(err, "query common columns")
		}
		if len(commonColumns) > 0 {
			common := strings.Join(commonColumns, ", ")
			copySQL := fmt.Sprintf(`INSERT INTO "%s" (%s) SELECT %s FROM "%s";`, //nolint:gosec // we trust the query.
				tempName, common, common, table.name)
			db.logger.LogAttrs(ctx, slog.LevelInfo, "copying data", slog.String("query", copySQL))
			if _, err = tx.ExecContext(ctx, copySQL); err != nil {
				return errors.Wrap(err, "copy data")
			}
		}

		// Step 6: Drop the old table.
		if _, err = tx.ExecContext(ctx, fmt.Sprintf(`DROP TABLE "%s";`, table.name)); err != nil {
			return errors.Wrap(err, "drop old table")
		}

		// Step 7: Rename new table to old table's name.
		if _, err = tx.ExecContext(ctx,
			fmt.Sprintf(`ALTER TABLE "%s" RENAME TO "%s";`, tempName, table.name)); err != nil {
			return errors.Wrap(err, "rename new table")
		}
	}
	return nil
}

// migrateIndexesAndTriggers drops indexes and triggers that were removed or changed and creates the missing ones.
// Dropping a table in step 6 drops its indexes and triggers too, so they are re-created here.
func (db *Database) migrateIndexesAndTriggers(ctx context.Context, tx *sql.Tx) error {
	var (
		err  error
		rows *sql.Rows
	)
	// Automatic indexes have NULL sql and are managed by SQLite.
	if rows, err = tx.QueryContext(ctx, `SELECT cur.type, cur.name
FROM main.sqlite_schema AS cur
         LEFT JOIN schemaTarget.sqlite_schema AS tgt ON cur.name = tgt.name AND cur.type = tgt.type
WHERE cur.type IN ('index', 'trigger') AND cur.sql IS NOT NULL AND (tgt.sql IS NULL OR tgt.sql <> cur.sql);`); err != nil {
		return errors.Wrap(err, "query stale indexes and triggers")
	}
	type schemaObject struct {
		kind string
		name string
	}
	var stale []schemaObject
	for rows.Next() {
		var o schemaObject
		if err = rows.Scan(&o.kind, &o.name); err != nil {
			_ = rows.Close()
			return errors.Wrap(err, "scan stale object")
		}
		stale = append(stale, o)
	}
	if err = errors.Join(rows.Err(), rows.Close()); err != nil {
		return errors.Wrap(err, "rows error")
	}
	for _, o := range stale {
		db.logger.LogAttrs(ctx, slog.LevelInfo, "dropping "+o.kind, slog.String("name", o.name))
		if _, err = tx.ExecContext(ctx, fmt.Sprintf(`DROP %s "%s";`, strings.ToUpper(o.kind), o.name)); err != nil {
			return errors.Wrap(err, "drop stale object", slog.String("name", o.name))
		}
	}

	var createSQLs []string
	if createSQLs, err = db.queryStringSlice(ctx, tx, `SELECT tgt.sql
FROM schemaTarget.sqlite_schema AS tgt
         LEFT JOIN main.sqlite_schema AS cur ON cur.name = tgt.name AND cur.type = tgt.type
WHERE tgt.type IN ('index', 'trigger') AND tgt.sql IS NOT NULL AND cur.name IS NULL;`); err != nil {
		return errors.Wrap(err, "query missing indexes and triggers")
	}
	for _, createSQL := range createSQLs {
		db.logger.LogAttrs(ctx, slog.LevelInfo, "creating index or trigger", slog.String("query", createSQL))
		if _, err = tx.ExecContext(ctx, createSQL); err != nil {
			return errors.Wrap(err, "create index or trigger")
		}
	}
	return nil
}

// queryStringSlice returns a slice of strings from a query and its args.
//
// It is used to query a single column from a table.
func (db *Database) queryStringSlice(ctx context.Context, tx *sql.Tx, query string, args ...any) ([]string, error) {
	var (
		results []string
		rows    *sql.Rows
		err     error
	)
	if rows, err = tx.QueryContext(ctx, query, args...); err != nil {
		return nil, errors.Wrap(err, "query")
	}
	defer func() {
		if err = rows.Close(); err != nil {
			err = errors.Wrap(err, "close rows")
			db.logger.Error("could not close rows", errors.SlogError(err))
		}
	}()
	for rows.Next() {
		var result string
		if err = rows.Scan(&result); err != nil {
			return nil, errors.Wrap(err, "scan table")
		}
		results = append(results, result)
	}
	if err = rows.Err(); err != nil {
		return nil, errors.Wrap(err, "rows error")
	}
	return results, nil
}

type changedTable struct {
	name       string
	currentSQL string
	newSQL     string
}

// queryChangedTables returns a list of tables that have different schema in the current schema and the target schema.
func (db *Database) queryChangedTables(ctx context.Context, tx *sql.Tx) ([]changedTable, error) {
	var (
		changedTables []changedTable
		rows          *sql.Rows
		err           error
	)
	if rows, err = tx.QueryContext(ctx, `SELECT cur.name, cur.sql, tgt.sql
FROM main.sqlite_schema AS cur
         JOIN schemaTarget.sqlite_schema AS tgt ON cur.name = tgt.name AND cur.type = tgt.type
WHERE cur.type = 'table' AND cur.name NOT LIKE 'sqlite_%' AND cur.sql <> tgt.sql;`); err != nil {
		return nil, errors.Wrap(err, "query")
	}
	defer func() {
		if err = rows.Close(); err != nil {
			err = errors.Wrap(err, "close rows")
			db.logger.Error("could not close rows", errors.SlogError(err))
		}
	}()
	for rows.Next() {
		var result changedTable
		if err = rows.Scan(&result.name, &result.currentSQL, &result.newSQL); err != nil {
			return nil, errors.Wrap(err, "scan table")
		}
		changedTables = append(changedTables, result)
	}
	if err = rows.Err(); err != nil {
		return nil, errors.Wrap(err, "rows error")
	}
	return changedTables, nil
}
