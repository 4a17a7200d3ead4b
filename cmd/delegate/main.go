// Delegate CLI — вызов задач воркеров и просмотр журнала вызовов.
//
// Использование:
//
//	delegate [--json] <command> [flags]
//
// Команды:
//
//	invoke  Вызвать задачу воркера через брокер
//	calls   Последние вызовы из журнала
//	env     Переменные окружения процессов
package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/shaiso/Delegate/internal/cli"
	"github.com/shaiso/Delegate/internal/config"
)

// version задаётся через ldflags при сборке.
var version = "dev"

func main() {
	cfg, err := config.LoadClient()
	if err != nil {
		fmt.Fprintln(os.Stderr, "Error:", err)
		os.Exit(1)
	}

	var jsonOutput bool
	var verbose bool

	rootCmd := &cobra.Command{
		Use:           "delegate",
		Short:         "Delegate CLI — invoke worker tasks over AMQP",
		Version:       version,
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	rootCmd.PersistentFlags().BoolVar(&jsonOutput, "json", false, "Output in JSON format")
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "Log broker activity to stderr")

	outputFn := func() *cli.Output { return cli.NewOutput(jsonOutput) }
	loggerFn := func() *slog.Logger {
		level := slog.LevelWarn
		if verbose {
			level = slog.LevelDebug
		}
		return slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: level}))
	}

	connect := func(ctx context.Context, flags cli.BrokerFlags) (cli.Invoker, func() error, error) {
		return cli.DialDelegator(loggerFn())(ctx, flags)
	}
	defaults := cli.BrokerFlags{
		URL:      cfg.Broker.URL,
		Exchange: cfg.Broker.Exchange,
		Timeout:  cfg.Broker.CallTimeout,
	}

	rootCmd.AddCommand(
		cli.NewInvokeCmd(connect, defaults, outputFn),
		cli.NewCallsCmd(cli.OpenJournal, cfg.Database.URL, outputFn),
		cli.NewEnvCmd(outputFn),
	)

	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	if err := rootCmd.ExecuteContext(ctx); err != nil {
		fmt.Fprintln(os.Stderr, "Error:", err)
		cancel()
		os.Exit(1)
	}
}
