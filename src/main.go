// Command esedbexport reads an Extensible Storage Engine database file and
// prints its tables and records, the Go rework of esedbtools/esedbexport.c.
package main

import (
	"bufio"
	"flag"
	"fmt"
	"log"
	"os"

	"esedb/src/coldecode"
	"esedb/src/esedb"
	"esedb/src/esedberr"
	"esedb/src/exportfmt"
	"esedb/src/logging"
	"esedb/src/settings"
)

func printUsage() {
	log.Println("esedbexport - reads an Extensible Storage Engine database file")
	log.Println("\nUsage:")
	log.Println("  esedbexport -t <file> [options]")
	log.Println("\nOptions:")
	flag.PrintDefaults()
	log.Println("\nExamples:")
	log.Println("  esedbexport -t mailbox.edb -m tables")
	log.Println("  esedbexport -t mailbox.edb -T Folders -m ejson")
}

func main() {
	args := settings.GetSettings()

	flag.StringVar(&args.Target, "t", "", "path to the .edb file to read")
	flag.StringVar(&args.Target, "target", "", "path to the .edb file to read")
	flag.StringVar(&args.Table, "T", "", "restrict export to one table (default: all tables)")
	flag.StringVar(&args.Table, "table", "", "restrict export to one table (default: all tables)")
	flag.StringVar(&args.Mode, "m", args.Mode, "output mode: tables, hex, text, ejson")
	flag.StringVar(&args.Mode, "mode", args.Mode, "output mode: tables, hex, text, ejson")
	flag.StringVar(&args.LogFile, "l", "", "additional log output path")
	flag.StringVar(&args.LogFile, "logfile", "", "additional log output path")
	flag.BoolVar(&args.Debug, "debug", false, "enable debug-level logging")
	flag.BoolVar(&args.Verbose, "v", false, "enable verbose progress output")
	flag.BoolVar(&args.Verbose, "verbose", false, "enable verbose progress output")
	flag.IntVar(&args.CachePages, "cache-pages", args.CachePages, "page cache capacity (0 disables)")
	flag.IntVar(&args.CacheNodes, "cache-nodes", args.CacheNodes, "decoded-node cache capacity (0 disables)")
	flag.BoolVar(&args.NoCache, "no-cache", false, "disable page and node caches entirely")
	var codePage uint
	flag.UintVar(&codePage, "c", 0, "codepage override for Text columns (0: use the catalog's codepage)")
	flag.UintVar(&codePage, "codepage", 0, "codepage override for Text columns (0: use the catalog's codepage)")

	flag.Parse()
	args.CodePage = uint16(codePage)

	if args.Target == "" {
		fmt.Fprintln(os.Stderr, "Error: -t/--target is required")
		printUsage()
		os.Exit(1)
	}

	logger, err := logging.New(args.Debug, args.LogFile)
	if err != nil {
		log.Fatalf("failed to initialize logger: %v", err)
	}
	defer logger.Sync()

	cachePages, cacheNodes := args.EffectiveCacheCapacities()
	db, err := esedb.Open(args.Target, cachePages, cacheNodes, logger)
	if err != nil {
		logger.Fatalw("failed to open database", "path", args.Target, "error", err)
	}
	defer db.Close()

	out := bufio.NewWriter(os.Stdout)
	defer out.Flush()

	if args.Mode == string(exportfmt.ModeTables) {
		for _, name := range db.Tables() {
			fmt.Fprintln(out, name)
		}
		return
	}

	tableNames := db.Tables()
	if args.Table != "" {
		tableNames = []string{args.Table}
	}

	for _, name := range tableNames {
		if err := exportTable(out, db, name, exportfmt.Mode(args.Mode), args); err != nil {
			logger.Errorw("export failed", "table", name, "error", err)
			os.Exit(1)
		}
	}
}

func exportTable(out *bufio.Writer, db *esedb.Database, name string, mode exportfmt.Mode, args *settings.Arguments) error {
	table, err := db.Table(name)
	if err != nil {
		return fmt.Errorf("exportTable(%q): %w", name, err)
	}

	if args.Verbose {
		table.OnProgress(func(table string, n int) {
			log.Printf("%s: %d records\n", table, n)
		})
	}

	columns := table.Columns()
	for {
		record, err := table.Next()
		if err != nil {
			if err == esedberr.ErrEndOfTable {
				return nil
			}
			return fmt.Errorf("exportTable(%q): %w", name, err)
		}

		row := exportfmt.Row{Table: name}
		for _, col := range columns {
			cv, err := record.Column(col.Name)
			if err != nil {
				return fmt.Errorf("exportTable(%q): %w", name, err)
			}
			codePage := cv.CodePage
			if args.CodePage != 0 {
				codePage = args.CodePage
			}
			value, err := coldecode.Decode(cv.Type, codePage, cv.Bytes)
			if err != nil {
				return fmt.Errorf("exportTable(%q): %w", name, err)
			}
			row.Fields = append(row.Fields, exportfmt.NamedValue{Name: col.Name, Value: value, Raw: cv.Bytes})
		}

		if err := exportfmt.WriteRow(out, mode, row); err != nil {
			return fmt.Errorf("exportTable(%q): %w", name, err)
		}
	}
}
