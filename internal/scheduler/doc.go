// Package scheduler вызывает задачи воркеров по cron-расписаниям.
//
// Каждое расписание (Entry) — имя, cron-выражение, имя воркера и
// параметры вызова. Вызов идёт через Invoker (обычно rpc.Delegator),
// результат и ошибки пишутся в лог и в метрику delegate_scheduled_calls_total.
//
// Поддерживаемые выражения: стандартные 5 полей ("0 3 * * *") и
// дескрипторы ("@hourly", "@every 10m").
package scheduler
