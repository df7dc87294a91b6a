package main

import (
	"context"
	"io"
	"log/slog"
	"time"

	"github.com/fwojciec/harvest"
	"github.com/fwojciec/harvest/crawl"
)

// Dependencies holds all services and configuration for command execution.
type Dependencies struct {
	Ctx    context.Context
	Stdout io.Writer
	Stderr io.Writer
	Logger *slog.Logger
	// Harvester, when set, is used by the run command instead of one
	// built from flags.
	Harvester *crawl.Harvester
	// States, when set, is used by the status command instead of opening
	// the state database.
	States harvest.StateStore
}

// CLI defines the command-line interface structure for Kong.
type CLI struct {
	Verbose bool `short:"v" env:"HARVEST_VERBOSE" help:"Enable debug logging"`

	Run     RunCmd     `cmd:"" help:"Harvest archives from the catalog"`
	Count   CountCmd   `cmd:"" help:"Count harvested documents"`
	Combine CombineCmd `cmd:"" help:"Combine harvested documents into one corpus file"`
	Status  StatusCmd  `cmd:"" help:"Show the saved progress of the last run"`
}

// RunCmd is the "run" subcommand.
type RunCmd struct {
	Output      string        `short:"o" default:"gutenberg_books" env:"HARVEST_OUTPUT" help:"Directory for harvested documents"`
	Staging     string        `default:"downloads" env:"HARVEST_STAGING" help:"Directory for downloaded archives"`
	CatalogURL  string        `name:"catalog-url" default:"https://www.gutenberg.org/robot/harvest" env:"HARVEST_CATALOG_URL" help:"First catalog page"`
	Lang        string        `short:"l" default:"en" env:"HARVEST_LANG" help:"Catalog language filter"`
	Concurrency int           `short:"c" default:"10" env:"HARVEST_CONCURRENCY" help:"Concurrent fetch and processing limit"`
	Timeout     time.Duration `default:"30s" env:"HARVEST_TIMEOUT" help:"Per-request timeout"`
	Retries     int           `default:"3" env:"HARVEST_RETRIES" help:"Fetch attempts per identifier"`
	Backoff     time.Duration `default:"1s" env:"HARVEST_BACKOFF" help:"Delay between fetch attempts"`
	MinBytes    int           `name:"min-bytes" default:"100" env:"HARVEST_MIN_BYTES" help:"Smallest plausible archive size"`
	PageDelay   time.Duration `name:"page-delay" default:"1s" env:"HARVEST_PAGE_DELAY" help:"Delay between catalog pages"`
	Mirror      []string      `name:"mirror" sep:"none" env:"HARVEST_MIRRORS" help:"Mirror URL pattern with {id} and {path} placeholders (repeatable, replaces defaults)"`
	RPS         float64       `name:"rps" default:"0" env:"HARVEST_RPS" help:"Requests per second per mirror host (0 for unlimited)"`
	MaxPages    int           `name:"max-pages" default:"0" env:"HARVEST_MAX_PAGES" help:"Stop after this many catalog pages (0 for no limit)"`
	StateDB     string        `name:"state-db" env:"HARVEST_STATE_DB" help:"SQLite database that makes the run resumable"`
	Fresh       bool          `help:"Discard saved progress before starting"`

	CatalogErrorsFatal bool `name:"catalog-errors-fatal" env:"HARVEST_CATALOG_ERRORS_FATAL" help:"Fail the run when a catalog page cannot be fetched"`
}

// CountCmd is the "count" subcommand.
type CountCmd struct {
	Dir string `arg:"" optional:"" default:"gutenberg_books" help:"Directory of harvested documents"`
}

// CombineCmd is the "combine" subcommand.
type CombineCmd struct {
	Dir       string `arg:"" optional:"" default:"gutenberg_books" help:"Directory of harvested documents"`
	Output    string `short:"o" default:"combined_processed.txt" help:"Combined corpus file"`
	MaxBytes  int    `name:"max-bytes" default:"5242880" help:"Truncate each document to this many bytes"`
	BatchSize int    `name:"batch-size" default:"1000" help:"Documents read per batch"`
	Workers   int    `short:"w" default:"8" help:"Documents read concurrently"`
}

// StatusCmd is the "status" subcommand.
type StatusCmd struct {
	StateDB string `name:"state-db" env:"HARVEST_STATE_DB" help:"SQLite database of a resumable run"`
}
