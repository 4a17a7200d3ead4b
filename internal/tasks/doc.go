// Package tasks содержит встроенные задачи, которые обслуживает delegate-worker.
//
// Задачи:
//   - add        сумма числовых параметров
//   - multiply   произведение числовых параметров
//   - echo       возвращает параметры как есть
//   - delay      ждёт N секунд (с поддержкой отмены)
//   - http.get   GET запрос, результат {status_code, headers, body}
//
// Задачи регистрируются в Registry по имени; имя задачи совпадает с именем
// очереди воркера.
package tasks
