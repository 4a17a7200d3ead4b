// Package rpc реализует удалённый вызов задач поверх RabbitMQ.
//
// # Обзор
//
// Delegator публикует именованный вызов с параметрами и ждёт ответ
// с тем же correlation id. Worker, зарегистрированный под этим именем,
// получает запрос, выполняет задачу и публикует ответ в ReplyTo запроса.
//
//	w, err := rpc.NewWorker(rpc.WorkerConfig{
//	    Name: "adder",
//	    Task: func(ctx context.Context, p rpc.Params) (any, error) {
//	        a, _ := p.Float(0)
//	        b, _ := p.Float(1)
//	        return a + b, nil
//	    },
//	})
//	if err := w.Start(ctx); err != nil {
//	    log.Fatal(err)
//	}
//	defer w.Stop()
//
//	d := rpc.NewDelegator(rpc.DelegatorOptions{Timeout: 30 * time.Second})
//	if err := d.Start(ctx); err != nil {
//	    log.Fatal(err)
//	}
//	defer d.Stop()
//
//	sum, err := rpc.Call[int](ctx, d, "adder", 10, 15) // 25
//
// # Ключевые компоненты
//
//   - Correlator (NewReplyHandler) — обработчик ответа для одного correlation id
//   - TaskRunner (NewRequestHandler) — разбор параметров, задача, ответ, ack
//   - Worker — подписка на очередь имени с prefetch = 1
//   - Delegator — реестр ожидающих вызовов и очередь ответов
//
// # Протокол
//
// Запрос: тело — JSON массив параметров ([10,15]), CorrelationId, ReplyTo.
// Ответ: тело — JSON результат (25), CorrelationId запроса, Type rpc.reply.
// Ошибка задачи: тело — JSON строка с текстом ошибки, Type rpc.error.
//
// # Ошибки
//
// Запрос подтверждается всегда: и при битом теле, и при ошибке задачи.
// Повторной доставки нет, повторы — забота вызывающего или самой задачи.
package rpc
