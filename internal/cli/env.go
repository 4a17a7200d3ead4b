package cli

import (
	"github.com/spf13/cobra"

	"github.com/shaiso/Delegate/internal/config"
)

// NewEnvCmd создаёт команду env: описание переменных окружения всех процессов.
func NewEnvCmd(outputFn func() *Output) *cobra.Command {
	return &cobra.Command{
		Use:   "env",
		Short: "Describe environment variables of delegate processes",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			out := outputFn()

			sections := []struct {
				header string
				cfg    any
			}{
				{"delegate-worker:", &config.Worker{}},
				{"delegate-api:", &config.API{}},
				{"delegate-scheduler:", &config.Scheduler{}},
				{"delegate:", &config.Client{}},
			}
			for _, s := range sections {
				text, err := config.Describe(s.cfg, s.header)
				if err != nil {
					return err
				}
				out.Text(text)
			}
			return nil
		},
	}
}
