package app

import (
	"errors"
	"flag"
	"fmt"
	"io"
	"strings"
	"unicode/utf8"

	"mongocsvexport/internal/config"
)

// Mode selects what the process does.
type Mode int

const (
	ModeExport  Mode = iota // one export, then exit
	ModeJobs                // run the job daemon from a jobs file
	ModeRunJob              // run one named job from a jobs file, then exit
	ModeMCP                 // serve MCP tools on stdio
	ModeVersion
	ModeHelp
)

// Options is the parsed command line.
type Options struct {
	Mode     Mode
	Job      config.Job
	Progress bool
	Verbose  bool
	History  string
	JobsFile string
	RunJob   string
}

// errUsage marks argument errors that should be followed by the usage text.
var errUsage = errors.New("usage")

type usageError struct{ msg string }

func (e *usageError) Error() string        { return e.msg }
func (e *usageError) Is(target error) bool { return target == errUsage }

func usagef(format string, args ...any) error {
	return &usageError{msg: fmt.Sprintf(format, args...)}
}

// ParseArgs parses the command line into Options. getenv supplies secrets
// that should not be passed as arguments.
func ParseArgs(args []string, stderr io.Writer, getenv func(string) string) (*Options, error) {
	flags := flag.NewFlagSet("mongocsvexport", flag.ContinueOnError)
	flags.SetOutput(stderr)
	flags.Usage = func() {}

	var (
		dbName     = flags.String("d", "", "Database name")
		collName   = flags.String("c", "", "Collection name")
		fields     = flags.String("f", "", "Comma separated list of fields")
		host       = flags.String("host", "", "Mongo host, host:port or connection URI (database host for --source database)")
		port       = flags.Int("port", 0, "Database port")
		user       = flags.String("user", "", "Database user (password from MONGOCSVEXPORT_PASSWORD)")
		outFile    = flags.String("o", "", "Output file name; .gz and .zst compress. If not specified print to STDOUT")
		limit      = flags.Int("limit", 0, "Max number of documents")
		timeout    = flags.Duration("timeout", 0, "Abort the export after this long, e.g. 90s or 2h (0 = no limit)")
		nullValue  = flags.String("null", "", "Text written for null and missing values")
		cond       = flags.String("cond", "", "Query condition in MongoDB Extended JSON")
		delimiter  = flags.String("delimiter", ",", "Field delimiter (a single character)")
		header     = flags.Bool("header", false, "Write the field names as the first row")
		psqlDump   = flags.String("psql-dump", "", "Wrap output in a psql COPY block for TABLE")
		encoding   = flags.String("encoding", "", "Output text encoding (default utf-8)")
		progress   = flags.Bool("p", false, "Show progress on stderr (requires -o)")
		sourceType = flags.String("source", "mongodb", "Record source: mongodb, json_file, http or database")
		input      = flags.String("input", "", "Input file for --source json_file, URL for --source http")
		dataPath   = flags.String("data-path", "", "Dot-separated path to the document array in --input")
		driver     = flags.String("driver", "", "SQL driver for --source database: postgres, mysql or sqlite")
		query      = flags.String("query", "", "SQL query for --source database")
		jsonCols   = flags.String("json-columns", "", "Comma separated SQL columns holding JSON documents")
		pgDSN      = flags.String("pg-dsn", "", "Load rows into Postgres with COPY using this connection string")
		pgTable    = flags.String("pg-table", "", "Target table for --pg-dsn")
		history    = flags.String("history", "", "SQLite file recording export runs")
		jobsFile   = flags.String("jobs", "", "YAML jobs file; runs scheduled and file-triggered jobs")
		runJob     = flags.String("run", "", "Run the named job from --jobs once and exit")
		serveMCP   = flags.Bool("mcp", false, "Serve MCP tools on stdin/stdout")
		verbose    = flags.Bool("v", false, "Log connection and progress details to stderr")
		version    = flags.Bool("version", false, "Show version")
		help       = flags.Bool("help", false, "Show help")
	)

	if err := flags.Parse(args); err != nil {
		if errors.Is(err, flag.ErrHelp) {
			return &Options{Mode: ModeHelp}, nil
		}
		return nil, usagef("%v", err)
	}
	if flags.NArg() > 0 {
		return nil, usagef("unrecognized arguments: %s", strings.Join(flags.Args(), " "))
	}

	set := map[string]bool{}
	flags.Visit(func(f *flag.Flag) { set[f.Name] = true })

	opts := &Options{
		Progress: *progress,
		Verbose:  *verbose,
		History:  *history,
		JobsFile: *jobsFile,
		RunJob:   *runJob,
	}

	switch {
	case *help:
		opts.Mode = ModeHelp
		return opts, nil
	case *version:
		opts.Mode = ModeVersion
		return opts, nil
	case *serveMCP:
		opts.Mode = ModeMCP
		return opts, nil
	case *runJob != "":
		if *jobsFile == "" {
			return nil, usagef("argument --run requires --jobs")
		}
		opts.Mode = ModeRunJob
		return opts, nil
	case *jobsFile != "":
		opts.Mode = ModeJobs
		return opts, nil
	}

	job := config.Job{
		Source:    config.Source{Type: *sourceType, Config: map[string]any{}},
		Output:    *outFile,
		Limit:     *limit,
		Timeout:   *timeout,
		NullValue: *nullValue,
		Delimiter: *delimiter,
		Header:    *header,
		PsqlDump:  *psqlDump,
		Encoding:  *encoding,
	}
	srcCfg := job.Source.Config
	password := getenv("MONGOCSVEXPORT_PASSWORD")

	switch *sourceType {
	case "mongodb":
		for _, name := range []string{"d", "c", "f"} {
			if !set[name] {
				return nil, usagef("argument -%s is required", name)
			}
		}
		srcCfg["database"] = *dbName
		srcCfg["collection"] = *collName
		srcCfg["host"] = *host
		srcCfg["cond"] = *cond
		job.Name = *dbName + "." + *collName
	case "json_file", "http":
		if *input == "" {
			return nil, usagef("argument --input is required for --source %s", *sourceType)
		}
		if *sourceType == "http" {
			srcCfg["url"] = *input
		} else {
			srcCfg["filePath"] = *input
		}
		srcCfg["dataPath"] = *dataPath
		job.Name = *input
	case "database":
		if *driver == "" || *query == "" {
			return nil, usagef("arguments --driver and --query are required for --source database")
		}
		srcCfg["driver"] = *driver
		srcCfg["host"] = *host
		srcCfg["database"] = *dbName
		srcCfg["query"] = *query
		srcCfg["jsonColumns"] = *jsonCols
		job.Name = *driver + ":" + *dbName
	default:
		return nil, usagef("unknown source %q (supported: mongodb, json_file, http, database)", *sourceType)
	}
	if *port != 0 {
		srcCfg["port"] = *port
	}
	if *user != "" {
		srcCfg["username"] = *user
	}
	if password != "" {
		srcCfg["password"] = password
	}

	if !set["f"] {
		return nil, usagef("argument -f is required")
	}
	job.Fields = config.SplitFields(*fields)

	if *limit < 0 {
		return nil, usagef("argument --limit: must not be negative")
	}
	if *timeout < 0 {
		return nil, usagef("argument --timeout: must not be negative")
	}
	if utf8.RuneCountInString(*delimiter) != 1 {
		return nil, usagef("argument --delimiter: must be a single character")
	}
	if *progress && (*outFile == "" || *outFile == "-") {
		return nil, usagef("You must use the -o option with -p")
	}
	if (*pgDSN == "") != (*pgTable == "") {
		return nil, usagef("arguments --pg-dsn and --pg-table must be used together")
	}
	if *pgDSN != "" {
		job.Postgres = &config.PostgresTarget{DSN: *pgDSN, Table: *pgTable}
	}

	job.ApplyDefaults()
	if errs := config.ValidateJob(&job); len(errs) > 0 {
		return nil, usagef("%s", strings.Join(errs, "; "))
	}

	opts.Mode = ModeExport
	opts.Job = job
	return opts, nil
}

func printUsage(w io.Writer) {
	fmt.Fprintf(w, `mongocsvexport - flatten documents into CSV rows

Usage:
  mongocsvexport -d DB -c COLLECTION -f FIELDS [options]
  mongocsvexport --source json_file --input FILE -f FIELDS [options]
  mongocsvexport --jobs FILE [--run NAME]
  mongocsvexport --mcp [--jobs FILE]

Fields are dot-separated paths, e.g. -f hotel,rooms.name,rooms.price.
Every array on a path yields one row per element; independent arrays
yield every combination. An empty field name exports the whole document.

Options:
  -d DB               Database name
  -c COLLECTION       Collection name
  -f FIELDS           Comma separated list of fields
  --host HOST         Mongo host, host:port or URI (default localhost)
  --user USER         User name; password from MONGOCSVEXPORT_PASSWORD
  -o FILE             Output file (.gz, .zst compress); STDOUT if omitted
  --limit N           Max number of documents
  --timeout DURATION  Abort the export after DURATION, e.g. 90s (default none)
  --null TEXT         Text for null and missing values (default empty)
  --cond JSON         Query condition in MongoDB Extended JSON
  --delimiter C       Field delimiter (default ,)
  --header            Write a header row
  --psql-dump TABLE   Wrap output in "COPY TABLE FROM stdin" framing
  --encoding NAME     Output text encoding (default utf-8)
  -p                  Show progress on stderr (requires -o)
  --source TYPE       mongodb (default), json_file, http or database
  --input PATH        Input file or URL for json_file / http sources
  --data-path PATH    Path to the document array inside --input
  --driver NAME       postgres, mysql or sqlite for --source database
  --query SQL         Query for --source database
  --json-columns COLS Columns decoded as JSON documents
  --pg-dsn DSN        Load rows into Postgres instead of writing text
  --pg-table TABLE    Target table for --pg-dsn
  --history FILE      Record runs in a SQLite file
  --jobs FILE         Run scheduled and file-triggered jobs from FILE
  --run NAME          Run one job from --jobs and exit
  --mcp               Serve MCP tools on stdin/stdout
  -v                  Verbose logging on stderr
  --version           Show version
  --help              Show this help

`)
}
