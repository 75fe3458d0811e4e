// Package adapters hides the differences between pgxpool.Pool, sql.DB and sqlx.DB behind DBAdapter.
//
// The SQL engines build complete statements with goqu and only need to run them and read back rows,
// so the adapters expose nothing but Query and Exec.
package adapters
