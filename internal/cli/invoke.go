package cli

import (
	"context"
	"log/slog"
	"time"

	"github.com/spf13/cobra"

	"github.com/shaiso/Delegate/internal/mq"
	"github.com/shaiso/Delegate/internal/rpc"
)

// Invoker — вызов удалённой задачи.
type Invoker interface {
	Invoke(ctx context.Context, name string, params ...any) (rpc.Reply, error)
}

// BrokerFlags — флаги подключения к брокеру.
type BrokerFlags struct {
	URL      string
	Exchange string
	Timeout  time.Duration
}

// Connector подключается к брокеру и возвращает Invoker.
// stop освобождает соединение.
type Connector func(ctx context.Context, flags BrokerFlags) (inv Invoker, stop func() error, err error)

// NewInvokeCmd создаёт команду invoke.
//
// Параметры разбираются как JSON, а не-JSON аргументы передаются строками:
//
//	delegate invoke add 2 3          → [2,3]
//	delegate invoke echo hello       → ["hello"]
//	delegate invoke echo '{"a":1}'   → [{"a":1}]
func NewInvokeCmd(connect Connector, defaults BrokerFlags, outputFn func() *Output) *cobra.Command {
	flags := defaults

	cmd := &cobra.Command{
		Use:   "invoke NAME [PARAM...]",
		Short: "Invoke a worker task and print its result",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			out := outputFn()
			name := args[0]
			params := ParseParams(args[1:])

			ctx := cmd.Context()
			if ctx == nil {
				ctx = context.Background()
			}

			inv, stop, err := connect(ctx, flags)
			if err != nil {
				return err
			}
			defer stop()

			reply, err := inv.Invoke(ctx, name, params...)
			if err != nil {
				return err
			}

			printReply(out, reply)
			return nil
		},
	}

	cmd.Flags().StringVar(&flags.URL, "url", defaults.URL, "AMQP broker URL")
	cmd.Flags().StringVar(&flags.Exchange, "exchange", defaults.Exchange, "Exchange for requests")
	cmd.Flags().DurationVar(&flags.Timeout, "timeout", defaults.Timeout, "How long to wait for the reply (0 waits forever)")

	return cmd
}

// ParseParams разбирает аргументы командной строки в параметры вызова.
func ParseParams(args []string) []any {
	params := make([]any, 0, len(args))
	for _, arg := range args {
		var v any
		if err := codec.UnmarshalFromString(arg, &v); err != nil {
			params = append(params, arg)
			continue
		}
		params = append(params, v)
	}
	return params
}

// printReply выводит результат: строки без кавычек, остальное как JSON.
func printReply(out *Output, reply rpc.Reply) {
	if out.JSONMode() {
		out.JSON(reply)
		return
	}

	var s string
	if err := reply.Decode(&s); err == nil {
		out.Text(s)
		return
	}

	var v any
	if err := reply.Decode(&v); err != nil {
		out.Text(reply.String())
		return
	}
	out.JSON(v)
}

// DialDelegator — Connector поверх rpc.Delegator.
func DialDelegator(logger *slog.Logger) Connector {
	return func(ctx context.Context, flags BrokerFlags) (Invoker, func() error, error) {
		d := rpc.NewDelegator(rpc.DelegatorOptions{
			URL:      flags.URL,
			Exchange: mq.Exchange(flags.Exchange),
			Timeout:  flags.Timeout,
			Logger:   logger,
		})
		if err := d.Start(ctx); err != nil {
			return nil, nil, err
		}
		return d, d.Stop, nil
	}
}
