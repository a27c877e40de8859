// Package main provides the feedny command: it reads feedback fragments,
// renders the wordcloud, produces the analysis and exports the PDF report.
package main

import (
	"bufio"
	"context"
	"flag"
	"fmt"
	"io"
	"os"
	"os/signal"
	"strconv"
	"strings"
	"syscall"

	"github.com/joho/godotenv"

	"github.com/feedny/backend/internal/config"
	apperrors "github.com/feedny/backend/internal/errors"
	"github.com/feedny/backend/internal/logging"
	"github.com/feedny/backend/internal/models"
	"github.com/feedny/backend/internal/services"
)

// Version is set at build time
var Version = "0.1.0"

func main() {
	os.Exit(run(os.Args[1:], os.Stdin, os.Stdout, os.Stderr))
}

func run(args []string, stdin io.Reader, stdout, stderr io.Writer) int {
	fs := flag.NewFlagSet("feedny", flag.ContinueOnError)
	fs.SetOutput(stderr)
	var (
		configPath     = fs.String("config", "feedny.yaml", "configuration file (YAML); defaults apply when missing")
		sessionContext = fs.String("context", "", "session context passed to the summary")
		title          = fs.String("title", "", "PDF title")
		pngPath        = fs.String("png", "", "write the wordcloud PNG to this path")
		pdfPath        = fs.String("pdf", "", "write the PDF report to this path")
		maxTokens      = fs.Int("max-tokens", 0, "summary token budget (overrides configuration)")
		offline        = fs.Bool("offline", false, "never call the summary provider")
		version        = fs.Bool("version", false, "print the version and exit")
	)
	fs.Usage = func() {
		fmt.Fprintf(stderr, "usage: feedny [flags] <fragments file | ->\n\n")
		fmt.Fprintf(stderr, "One fragment per line. A leading \"N|\" sets its sentiment (1-10).\n\n")
		fs.PrintDefaults()
	}
	if err := fs.Parse(args); err != nil {
		return 2
	}
	if *version {
		fmt.Fprintf(stdout, "feedny v%s\n", Version)
		return 0
	}
	if fs.NArg() != 1 {
		fs.Usage()
		return 2
	}

	// .env never overrides variables already set.
	_ = godotenv.Load()

	cfg, err := config.Load(*configPath)
	if err != nil {
		fmt.Fprintf(stderr, "config: %v\n", err)
		return 3
	}
	logging.Init(stderr, logging.ParseLevel(cfg.LogLevel))

	frags, err := readFragments(fs.Arg(0), stdin)
	if err != nil {
		logging.Error("read fragments", err)
		fmt.Fprintf(stderr, "fragments: %v\n", err)
		return 1
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	svc, shutdown, err := services.NewFromConfig(ctx, cfg)
	if err != nil {
		fmt.Fprintf(stderr, "setup: %v\n", err)
		return 3
	}
	defer shutdown()
	if *offline {
		svc.DisableAI()
	}

	res, err := svc.Analyze(ctx, services.AnalyzeRequest{
		Fragments: frags,
		Context:   *sessionContext,
		MaxTokens: *maxTokens,
	})
	if err != nil {
		fmt.Fprintf(stderr, "analyze: %v\n", err)
		if apperrors.Is(err, apperrors.ErrInvalid) {
			return 1
		}
		return 4
	}

	if *pngPath != "" {
		if res.Artifact.Empty() {
			fmt.Fprintln(stderr, "no words left to draw, skipping PNG")
		} else if err := os.WriteFile(*pngPath, res.Artifact.Image, 0o644); err != nil {
			fmt.Fprintf(stderr, "write png: %v\n", err)
			return 4
		}
	}
	if *pdfPath != "" {
		pdf, err := svc.Export(ctx, services.ExportRequest{
			Title:   *title,
			Context: *sessionContext,
			Result:  res,
		})
		if err != nil {
			fmt.Fprintf(stderr, "export: %v\n", err)
			return 4
		}
		if err := os.WriteFile(*pdfPath, pdf, 0o644); err != nil {
			fmt.Fprintf(stderr, "write pdf: %v\n", err)
			return 4
		}
	}

	fmt.Fprintln(stdout, res.Summary)
	for _, w := range res.Artifact.TopWords(10) {
		fmt.Fprintf(stdout, "%-20s %.3f\n", w.Word, w.Weight)
	}
	return 0
}

// readFragments reads path, or stdin when path is "-".
func readFragments(path string, stdin io.Reader) ([]models.Fragment, error) {
	if path == "-" {
		return parseFragments(stdin)
	}
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()
	return parseFragments(f)
}

// parseFragments reads one fragment per line. Blank lines are skipped and
// a "N|" prefix with an integer N sets the sentiment.
func parseFragments(r io.Reader) ([]models.Fragment, error) {
	var frags []models.Fragment
	sc := bufio.NewScanner(r)
	sc.Buffer(make([]byte, 64*1024), 1024*1024)
	line := 0
	for sc.Scan() {
		line++
		text := strings.TrimSpace(sc.Text())
		if text == "" {
			continue
		}
		if head, rest, ok := strings.Cut(text, "|"); ok {
			if n, err := strconv.Atoi(strings.TrimSpace(head)); err == nil {
				frag := models.NewScoredFragment(strings.TrimSpace(rest), n)
				if err := frag.Validate(); err != nil {
					return nil, fmt.Errorf("line %d: %w", line, err)
				}
				frags = append(frags, frag)
				continue
			}
		}
		frags = append(frags, models.NewFragment(text))
	}
	if err := sc.Err(); err != nil {
		return nil, err
	}
	return frags, nil
}
