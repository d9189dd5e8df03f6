package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"go.uber.org/zap"

	"tessera/internal"
	"tessera/internal/config"
	"tessera/internal/importer"
	"tessera/internal/storage"
)

func main() {
	cfg, err := config.Load()
	must(err)

	if len(os.Args) < 2 {
		usage()
		os.Exit(1)
	}

	logger, err := newLogger(cfg.LogLevel)
	must(err)
	defer func() { _ = logger.Sync() }()

	db, err := storage.Open(cfg.DBPath)
	must(err)
	defer db.Close()

	svc := importer.NewService(db, db, cfg, logger)

	cmd := os.Args[1]
	switch cmd {
	case "import:preview":
		fs := flag.NewFlagSet(cmd, flag.ExitOnError)
		file := fs.String("file", "", "guest export file (csv|xlsx|html|eml)")
		policy := fs.String("policy", cfg.DefaultPolicy, "skip|update|create_anyway")
		out := fs.String("out", "", "optional xlsx report path")
		overrides := mapFlags{}
		fs.Var(&overrides, "map", "mapping override key=Header (repeatable)")
		_ = fs.Parse(os.Args[2:])
		if strings.TrimSpace(*file) == "" {
			must(fmt.Errorf("--file is required"))
		}

		src, mapping, err := loadSource(*file, overrides)
		must(err)
		pol, err := importer.ParsePolicy(*policy)
		must(err)

		printMapping(mapping)
		rows, err := svc.Preview(src, mapping, pol)
		must(err)
		for _, row := range rows {
			line := fmt.Sprintf("row %-4d %-12s", row.LineNo, row.Status)
			switch row.Status {
			case internal.RowInvalid:
				line += fmt.Sprintf(" errors=%v", row.Errors)
			case internal.RowDuplicate:
				line += fmt.Sprintf(" action=%s matched_by=%s", row.Action, row.MatchedBy)
			default:
				line += fmt.Sprintf(" action=%s", row.Action)
			}
			fmt.Printf("%s %s %s\n", line, row.FullName, row.Phone)
		}
		if strings.TrimSpace(*out) != "" {
			must(importer.ExportPreviewToXLSX(rows, *out))
			fmt.Printf("preview report written to %s\n", *out)
		}
	case "import:run":
		fs := flag.NewFlagSet(cmd, flag.ExitOnError)
		file := fs.String("file", "", "guest export file (csv|xlsx|html|eml)")
		policy := fs.String("policy", cfg.DefaultPolicy, "skip|update|create_anyway")
		overrides := mapFlags{}
		fs.Var(&overrides, "map", "mapping override key=Header (repeatable)")
		_ = fs.Parse(os.Args[2:])
		if strings.TrimSpace(*file) == "" {
			must(fmt.Errorf("--file is required"))
		}

		src, mapping, err := loadSource(*file, overrides)
		must(err)
		pol, err := importer.ParsePolicy(*policy)
		must(err)

		ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
		defer stop()

		summary, err := svc.Run(ctx, src, importer.RunOptions{
			Policy:  pol,
			Mapping: mapping,
			Progress: func(done, total int) {
				fmt.Printf("\rprocessed %d/%d", done, total)
			},
		})
		fmt.Println()
		must(err)
		fmt.Printf("import %s: created=%d updated=%d skipped=%d failed=%d\n",
			summary.Status, summary.Created, summary.Updated, summary.Skipped, summary.Failed)
	case "locations:add":
		fs := flag.NewFlagSet(cmd, flag.ExitOnError)
		name := fs.String("name", "", "location name")
		_ = fs.Parse(os.Args[2:])
		if strings.TrimSpace(*name) == "" {
			must(fmt.Errorf("--name is required"))
		}
		id, err := db.AddLocation(strings.TrimSpace(*name))
		must(err)
		fmt.Printf("location id=%d name=%s\n", id, *name)
	case "runs:list":
		fs := flag.NewFlagSet(cmd, flag.ExitOnError)
		limit := fs.Int("limit", 20, "max runs")
		_ = fs.Parse(os.Args[2:])
		runs, err := db.ListRuns(*limit)
		must(err)
		for _, run := range runs {
			fmt.Printf("run %d %s rows=%d created=%d updated=%d skipped=%d failed=%d status=%s started=%s\n",
				run.ID, run.FileName, run.DeclaredRows, run.Created, run.Updated, run.Skipped, run.Failed, run.Status, run.StartedAt)
		}
	default:
		usage()
		os.Exit(1)
	}
}

// loadSource parses the export and builds the executable mapping: the
// auto-detected proposal plus any operator overrides.
func loadSource(path string, overrides mapFlags) (internal.SourceFile, internal.FieldMapping, error) {
	src, err := importer.ParseSourceFile(path)
	if err != nil {
		return internal.SourceFile{}, nil, err
	}

	mapping := importer.ProposeMapping(src.Headers)
	for key, header := range overrides {
		if header == "" {
			delete(mapping, key)
			continue
		}
		mapping[key] = header
	}
	return src, mapping, nil
}

func printMapping(mapping internal.FieldMapping) {
	fmt.Println("field mapping:")
	for key, header := range mapping {
		fmt.Printf("  %-16s <- %s\n", key, header)
	}
}

// mapFlags collects repeatable --map key=Header overrides.
type mapFlags map[internal.CanonicalField]string

func (m *mapFlags) String() string {
	parts := make([]string, 0, len(*m))
	for key, header := range *m {
		parts = append(parts, fmt.Sprintf("%s=%s", key, header))
	}
	return strings.Join(parts, ",")
}

func (m *mapFlags) Set(value string) error {
	key, header, ok := strings.Cut(value, "=")
	if !ok {
		return fmt.Errorf("expected key=Header, got %q", value)
	}
	if *m == nil {
		*m = mapFlags{}
	}
	(*m)[internal.CanonicalField(strings.TrimSpace(key))] = strings.TrimSpace(header)
	return nil
}

func newLogger(level string) (*zap.Logger, error) {
	cfg := zap.NewProductionConfig()
	if err := cfg.Level.UnmarshalText([]byte(level)); err != nil {
		return nil, fmt.Errorf("log level %q: %w", level, err)
	}
	return cfg.Build()
}

func usage() {
	fmt.Println("usage: tessera <command>")
	fmt.Println("commands:")
	fmt.Println("  import:preview --file=guests.csv [--policy=skip|update|create_anyway] [--map=phone=Mobile ...] [--out=report.xlsx]")
	fmt.Println("  import:run --file=guests.csv --policy=skip|update|create_anyway [--map=phone=Mobile ...]")
	fmt.Println("  locations:add --name=\"West Bay\"")
	fmt.Println("  runs:list [--limit=20]")
}

func must(err error) {
	if err == nil {
		return
	}
	fmt.Fprintf(os.Stderr, "error: %v\n", err)
	os.Exit(1)
}
