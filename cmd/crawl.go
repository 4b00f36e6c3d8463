package cmd

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/JakeFAU/journal-email-crawler/internal/pipeline"
)

const closeTimeout = 15 * time.Second

func newCrawlCmd(cfgFile *string) *cobra.Command {
	var input string
	cmd := &cobra.Command{
		Use:   "crawl",
		Short: "Crawls every journal listed in the input",
		Long: `Reads journal URLs, one per line, from --input (or stdin when it is "-"
or empty). Blank lines and lines starting with # are skipped. An interrupt
flushes the journal being written before exiting.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return runCrawl(cmd, *cfgFile, input)
		},
	}
	cmd.Flags().StringVarP(&input, "input", "i", "-", "file with one journal URL per line")
	return cmd
}

func runCrawl(cmd *cobra.Command, cfgFile, input string) error {
	urls, err := readInput(cmd.InOrStdin(), input)
	if err != nil {
		return err
	}
	if len(urls) == 0 {
		return errors.New("no journal URLs in input")
	}

	cfg, err := loadConfig(cfgFile)
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}

	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	runner, err := newRunner(ctx, cfg)
	if err != nil {
		return fmt.Errorf("build application: %w", err)
	}
	defer func() {
		closeCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), closeTimeout)
		defer cancel()
		_ = runner.Close(closeCtx)
	}()

	start := time.Now()
	summary, err := runner.Run(ctx, urls)
	report(cmd.OutOrStdout(), summary, time.Since(start))
	if err != nil && !errors.Is(err, context.Canceled) {
		return fmt.Errorf("run crawler: %w", err)
	}
	return nil
}

// readInput reads URLs from path, or from stdin when path is "-" or empty.
func readInput(stdin io.Reader, path string) ([]string, error) {
	r := stdin
	if path != "" && path != "-" {
		f, err := os.Open(path)
		if err != nil {
			return nil, fmt.Errorf("open input: %w", err)
		}
		defer f.Close()
		r = f
	}
	var urls []string
	sc := bufio.NewScanner(r)
	for sc.Scan() {
		line := strings.TrimSpace(sc.Text())
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}
		urls = append(urls, line)
	}
	if err := sc.Err(); err != nil {
		return nil, fmt.Errorf("read input: %w", err)
	}
	return urls, nil
}

func report(w io.Writer, summary pipeline.Summary, elapsed time.Duration) {
	for _, o := range summary.Journals {
		name := o.Journal
		if name == "" {
			name = o.URL
		}
		switch {
		case o.Err != nil && o.Path != "":
			fmt.Fprintf(w, "%s: partial, %d authors in %s (%v)\n", name, o.Authors, o.Path, o.Err)
		case o.Err != nil:
			fmt.Fprintf(w, "%s: failed: %v\n", name, o.Err)
		default:
			fmt.Fprintf(w, "%s: %d authors from %d volumes -> %s\n", name, o.Authors, o.Volumes, o.Path)
		}
	}
	fmt.Fprintf(w, "%d journals, %d failed, %d authors\n", len(summary.Journals), summary.Failed(), summary.Authors())
	fmt.Fprintf(w, "total elapsed time: %s\n", elapsed.Round(time.Millisecond))
}
