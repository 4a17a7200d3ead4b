// Package cli реализует инструмент командной строки delegate.
//
// # Обзор
//
// CLI вызывает задачи воркеров напрямую через брокер (тот же Delegator,
// что используют API и scheduler) и читает журнал вызовов из Postgres.
//
// # Команды
//
//   - invoke NAME [PARAM...] — вызвать задачу и вывести результат
//   - calls — последние вызовы из журнала
//   - env — описание переменных окружения процессов
//
// Параметры invoke разбираются как JSON; аргумент, который не является
// JSON, передаётся строкой:
//
//	delegate invoke add 2 3
//	delegate invoke http.get '"https://example.com"'
//	delegate calls --target add --limit 10 --json | jq .
//
// # Output
//
// Форматирование вывода. Поддерживает два режима:
//   - Таблицы (text/tabwriter) — по умолчанию
//   - JSON — с флагом --json
//
// Данные выводятся в stdout, сообщения (Success/Error) — в stderr.
//
// Каждая команда создаётся фабричной функцией (NewInvokeCmd и т.д.),
// принимающей зависимости и outputFn — замыкание для ленивого создания
// Output после парсинга PersistentFlags.
package cli
