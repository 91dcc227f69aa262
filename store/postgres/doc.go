// Package postgres provides a PostgreSQL implementation of job.Store
// using pgx/v5. It claims runnable jobs with a single
// SELECT ... FOR UPDATE SKIP LOCKED-guarded UPDATE so multiple worker
// processes can poll the same table concurrently without a
// compare-and-swap retry loop. Migrations are embedded SQL files applied
// in filename order, tracked in a joblet_migrations table.
package postgres
