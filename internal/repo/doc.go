// Package repo хранит журнал RPC вызовов в Postgres.
//
// CallRepo работает через интерфейс DB, который реализует *pgxpool.Pool.
// Таблица calls создаётся методом Migrate.
package repo
