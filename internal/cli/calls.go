package cli

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"github.com/shaiso/Delegate/internal/domain"
	"github.com/shaiso/Delegate/internal/repo"
)

// CallLister — чтение журнала вызовов.
type CallLister interface {
	List(ctx context.Context, filter repo.CallFilter) ([]domain.CallRecord, error)
}

// JournalOpener открывает журнал по DSN. close освобождает соединения.
type JournalOpener func(ctx context.Context, dsn string) (calls CallLister, close func(), err error)

// NewCallsCmd создаёт команду calls.
func NewCallsCmd(open JournalOpener, defaultDSN string, outputFn func() *Output) *cobra.Command {
	var (
		dsn    string
		target string
		status string
		limit  int
	)

	cmd := &cobra.Command{
		Use:   "calls",
		Short: "List journaled calls",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			out := outputFn()

			if dsn == "" {
				return fmt.Errorf("call journal is not configured: set DB_URL or --db-url")
			}

			filter := repo.CallFilter{
				Target: target,
				Status: domain.CallStatus(strings.ToUpper(status)),
				Limit:  limit,
			}
			if filter.Status != "" && !filter.Status.IsValid() {
				return fmt.Errorf("invalid status %q (SUCCEEDED, FAILED, TIMED_OUT)", status)
			}

			ctx := cmd.Context()
			if ctx == nil {
				ctx = context.Background()
			}

			calls, closeFn, err := open(ctx, dsn)
			if err != nil {
				return err
			}
			defer closeFn()

			records, err := calls.List(ctx, filter)
			if err != nil {
				return err
			}

			headers := []string{"CORRELATION_ID", "TARGET", "STATUS", "DURATION", "STARTED", "ERROR"}
			rows := make([][]string, len(records))
			for i, c := range records {
				rows[i] = []string{
					c.CorrelationID,
					c.Target,
					string(c.Status),
					c.Duration().Round(time.Millisecond).String(),
					c.StartedAt.Format(time.RFC3339),
					c.Error,
				}
			}

			out.Print(headers, rows, records)
			return nil
		},
	}

	cmd.Flags().StringVar(&dsn, "db-url", defaultDSN, "Postgres DSN of the call journal")
	cmd.Flags().StringVar(&target, "target", "", "Filter by target task")
	cmd.Flags().StringVar(&status, "status", "", "Filter by status (SUCCEEDED, FAILED, TIMED_OUT)")
	cmd.Flags().IntVar(&limit, "limit", 0, "Maximum number of results")

	return cmd
}

// OpenJournal открывает журнал в Postgres.
func OpenJournal(ctx context.Context, dsn string) (CallLister, func(), error) {
	pool, err := repo.NewPool(ctx, dsn)
	if err != nil {
		return nil, nil, err
	}
	return repo.NewCallRepo(pool), pool.Close, nil
}
