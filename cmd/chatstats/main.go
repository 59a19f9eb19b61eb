// Command chatstats анализирует экспорт чата WhatsApp локально, без
// HTTP-сервера, и генерирует ключи для зашифрованных загрузок.
package main

import (
	"context"
	"fmt"
	"io"
	"os"
	"os/signal"

	"github.com/spf13/cobra"
)

// rootOptions — общие флаги всех команд.
type rootOptions struct {
	configPath string
	logLevel   string
}

func newRootCmd(in io.Reader, out, errOut io.Writer) *cobra.Command {
	opts := &rootOptions{}
	root := &cobra.Command{
		Use:           "chatstats",
		Short:         "WhatsApp chat statistics and emotion analysis",
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	root.SetIn(in)
	root.SetOut(out)
	root.SetErr(errOut)

	root.PersistentFlags().StringVarP(&opts.configPath, "config", "c", "config.yml", "path to YAML config")
	root.PersistentFlags().StringVar(&opts.logLevel, "log-level", "", "override logging level (debug, info, warn, error)")

	root.AddCommand(newAnalyzeCmd(opts), newKeygenCmd())
	return root
}

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	defer stop()

	if err := newRootCmd(os.Stdin, os.Stdout, os.Stderr).ExecuteContext(ctx); err != nil {
		fmt.Fprintln(os.Stderr, "Error:", err)
		os.Exit(1)
	}
}
