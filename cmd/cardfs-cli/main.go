// Package main provides a CLI tool for inspecting a card listing.
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"io"
	"net/http"
	"os"
	"strconv"
	"strings"
	"text/tabwriter"
	"time"

	"github.com/cardcontact/cardfs/internal/app"
	"github.com/cardcontact/cardfs/internal/config"
	"github.com/cardcontact/cardfs/internal/logging"
	"github.com/cardcontact/cardfs/internal/metrics"
	"github.com/cardcontact/cardfs/internal/source"
	"github.com/cardcontact/cardfs/internal/source/postgres"
	s3source "github.com/cardcontact/cardfs/internal/source/s3"
	"github.com/cardcontact/cardfs/pkg/models"
	"github.com/cardcontact/cardfs/pkg/mscfs"
	"github.com/cardcontact/cardfs/pkg/tree"
)

func main() {
	snapshot := flag.String("snapshot", "", "Snapshot file (overrides SNAPSHOT_PATH and selects the json source)")
	cardName := flag.String("card", "", "Card name written into exported snapshots")
	verbose := flag.Bool("v", false, "Debug logging")

	flag.Parse()

	args := flag.Args()
	if len(args) == 0 {
		printUsage()
		os.Exit(1)
	}

	if *snapshot != "" {
		os.Setenv("SOURCE", config.SourceJSON)
		os.Setenv("SNAPSHOT_PATH", *snapshot)
	}
	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error loading config: %v\n", err)
		os.Exit(1)
	}
	if *verbose {
		cfg.LogLevel = "debug"
	}
	if err := logging.Init(logging.Config{Level: cfg.LogLevel, Format: cfg.LogFormat, OutputPath: "stderr"}); err != nil {
		fmt.Fprintf(os.Stderr, "Error initializing logging: %v\n", err)
		os.Exit(1)
	}
	defer logging.Sync()

	if cfg.MetricsAddr != "" {
		go serveMetrics(cfg.MetricsAddr)
	}

	ctx, cancel := context.WithTimeout(context.Background(), time.Minute)
	defer cancel()

	s, closer, err := app.OpenSession(ctx, cfg)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error opening card: %v\n", err)
		os.Exit(1)
	}
	defer closer()

	if err := run(ctx, os.Stdout, s, cfg, *cardName, args); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		closer()
		os.Exit(exitCode(err))
	}
}

var errUnknownCommand = errors.New("unknown command")

// run executes one command against s, writing its output to w.
func run(ctx context.Context, w io.Writer, s *mscfs.Session, cfg *config.Config, card string, args []string) error {
	cmd := args[0]
	cmdArgs := args[1:]

	switch cmd {
	case "list", "ls":
		return cmdList(w, s, cmdArgs)
	case "stat":
		return cmdStat(w, s, cmdArgs)
	case "select", "cd":
		return cmdSelect(w, s, cmdArgs)
	case "tree":
		return cmdTree(w, s, cmdArgs)
	case "stats":
		return cmdStats(w, s)
	case "json":
		return cmdJSON(w, s, card)
	case "record":
		return cmdRecord(ctx, w, s, cfg)
	case "upload":
		return cmdUpload(ctx, w, s, cfg, card, cmdArgs)
	case "help":
		printUsage()
		return nil
	default:
		printUsage()
		return fmt.Errorf("%w: %s", errUnknownCommand, cmd)
	}
}

func printUsage() {
	fmt.Println(`cardfs CLI

Usage: cardfs-cli [flags] <command> [args]

Flags:
  -snapshot <file>   Read the listing from a JSON snapshot
  -card <name>       Card name for exported snapshots
  -v                 Debug logging

Commands:
  list, ls [dir]             List a directory (default: 3F00)
  stat <path>                Show one object, e.g. 3F00/5015/4401
  select, cd <path> [fileid] Select an object; with fileid, also resolve that
                             file in the selected directory
  tree [path]                Print the listing as a tree, e.g. tree /5015
  stats                      Show listing cache statistics
  json                       Export the listing as a JSON snapshot
  record                     Store the listing in Postgres under CARD_ID
  upload <key>               Upload the listing snapshot to S3
  help                       Show this help message

Environment:
  SOURCE, SNAPSHOT_PATH, DATABASE_URL, CARD_ID, S3_*, CACHE_INCREMENT,
  CACHE_LIMIT, LOG_LEVEL, LOG_FORMAT, METRICS_ADDR

Examples:
  cardfs-cli -snapshot card.json ls
  cardfs-cli -snapshot card.json stat 3F00/5015/4401
  cardfs-cli -snapshot card.json select 5015 4401
  SOURCE=postgres CARD_ID=token-1 cardfs-cli tree`)
}

func serveMetrics(addr string) {
	mux := http.NewServeMux()
	mux.Handle("/metrics", metrics.Handler())
	logging.Info("metrics server listening", logging.String("addr", addr))
	if err := http.ListenAndServe(addr, logging.Middleware(mux)); err != nil {
		logging.Error("metrics server failed", logging.Err(err))
	}
}

func exitCode(err error) int {
	var cardErr *mscfs.CardError
	switch {
	case errors.Is(err, mscfs.ErrFileNotFound):
		return 2
	case errors.Is(err, mscfs.ErrInvalidArguments):
		return 3
	case errors.As(err, &cardErr):
		return 4
	default:
		return 1
	}
}

func cmdList(w io.Writer, s *mscfs.Session, args []string) error {
	dir := models.RootID
	if len(args) > 0 {
		id, err := models.ParseFileID(args[0])
		if err != nil {
			return fmt.Errorf("%v: %w", err, mscfs.ErrInvalidArguments)
		}
		dir = id
	}

	entries, err := s.ListDirectory(dir)
	if err != nil {
		return err
	}
	if len(entries) == 0 {
		fmt.Fprintf(w, "%s is empty\n", dir)
		return nil
	}

	tw := tabwriter.NewWriter(w, 0, 0, 2, ' ', 0)
	fmt.Fprintln(tw, "ID\tKIND\tSIZE\tREAD\tWRITE\tDELETE")
	fmt.Fprintln(tw, "--\t----\t----\t----\t-----\t------")
	for _, e := range entries {
		fmt.Fprintf(tw, "%s\t%s\t%d\t%04X\t%04X\t%04X\n",
			e.ID, e.Kind, e.Size, e.ACL.Read, e.ACL.Write, e.ACL.Delete)
	}
	return tw.Flush()
}

func parsePathArg(args []string, usage string) ([]byte, error) {
	if len(args) == 0 {
		return nil, fmt.Errorf("usage: cardfs-cli %s: %w", usage, mscfs.ErrInvalidArguments)
	}
	return mscfs.ParsePath(args[0])
}

func cmdStat(w io.Writer, s *mscfs.Session, args []string) error {
	path, err := parsePathArg(args, "stat <path>")
	if err != nil {
		return err
	}
	e, idx, err := s.LoadFileInfo(path)
	if err != nil {
		return err
	}
	printInfo(w, e)
	if idx == mscfs.VirtualIndex {
		fmt.Fprintln(w, "Index:    virtual")
	} else {
		fmt.Fprintf(w, "Index:    %d\n", idx)
	}

	root, _, err := s.LoadFileInfo(nil)
	if err != nil {
		return err
	}
	if n := tree.FindByID(tree.Build(root, s.Entries()), e.ID); n != nil {
		fmt.Fprintf(w, "Path:     %s\n", n.Path)
	}
	return nil
}

func printInfo(w io.Writer, e models.Entry) {
	fmt.Fprintf(w, "Object:   %s\n", e.ID)
	fmt.Fprintf(w, "Kind:     %s\n", e.Kind)
	fmt.Fprintf(w, "Size:     %d\n", e.Size)
	fmt.Fprintf(w, "ACL:      read=%04X write=%04X delete=%04X\n", e.ACL.Read, e.ACL.Write, e.ACL.Delete)
}

func cmdSelect(w io.Writer, s *mscfs.Session, args []string) error {
	path, err := parsePathArg(args, "select <path> [fileid]")
	if err != nil {
		return err
	}
	e, err := s.Select(path)
	if err != nil {
		return err
	}
	fmt.Fprintf(w, "Selected %s %s\n", e.Kind, e.ID)
	fmt.Fprintf(w, "Path:     %s\n", s.CurrentPath())
	if err := s.CheckSelection(mscfs.SelectFile); err == nil {
		fmt.Fprintf(w, "File:     %s\n", s.CurrentFile())
	}

	if len(args) < 2 {
		return nil
	}
	v, err := strconv.ParseUint(args[1], 16, 16)
	if err != nil {
		return fmt.Errorf("file id %q: %v: %w", args[1], err, mscfs.ErrInvalidArguments)
	}
	id := s.LookupLocal(uint16(v))
	f, _, err := s.LoadFileInfo(id[:])
	if err != nil {
		return err
	}
	fmt.Fprintln(w)
	printInfo(w, f)
	return nil
}

func cmdTree(w io.Writer, s *mscfs.Session, args []string) error {
	rootEntry, _, err := s.LoadFileInfo(nil)
	if err != nil {
		return err
	}
	n := tree.Build(rootEntry, s.Entries())
	if len(args) > 0 {
		n = tree.FindByPath(n, "/"+strings.Trim(args[0], "/"))
		if n == nil {
			return fmt.Errorf("tree %s: %w", args[0], mscfs.ErrFileNotFound)
		}
	}
	printNode(w, n, 0)
	return nil
}

func printNode(w io.Writer, n *tree.Node, depth int) {
	label := n.Name
	if n.Path == "/" {
		label = n.Entry.ID.Child().String()
	}
	if n.IsDir() {
		fmt.Fprintf(w, "%s%s/\n", strings.Repeat("  ", depth), label)
	} else {
		fmt.Fprintf(w, "%s%s (%d bytes)\n", strings.Repeat("  ", depth), label, n.Entry.Size)
	}
	for _, c := range n.Children {
		printNode(w, c, depth+1)
	}
}

func cmdStats(w io.Writer, s *mscfs.Session) error {
	if err := s.EnsurePopulated(); err != nil {
		return err
	}
	var dirs, files int
	var total uint64
	for _, e := range s.Entries() {
		if e.IsDir() {
			dirs++
		} else {
			files++
			total += uint64(e.Size)
		}
	}

	fmt.Fprintln(w, "Listing Statistics")
	fmt.Fprintln(w, "------------------")
	fmt.Fprintf(w, "Objects:      %d\n", s.Len())
	fmt.Fprintf(w, "Directories:  %d\n", dirs)
	fmt.Fprintf(w, "Files:        %d\n", files)
	fmt.Fprintf(w, "Total size:   %d bytes\n", total)
	return nil
}

// cmdJSON, cmdRecord and cmdUpload store the listing in applet addressing so
// a recorded source replays it unchanged.
func cmdJSON(w io.Writer, s *mscfs.Session, card string) error {
	if err := s.EnsurePopulated(); err != nil {
		return err
	}
	return source.WriteSnapshot(w, card, s.RawEntries())
}

func cmdRecord(ctx context.Context, w io.Writer, s *mscfs.Session, cfg *config.Config) error {
	if cfg.DatabaseURL == "" || cfg.CardID == "" {
		return fmt.Errorf("record needs DATABASE_URL and CARD_ID: %w", mscfs.ErrInvalidArguments)
	}
	if err := s.EnsurePopulated(); err != nil {
		return err
	}

	store, err := postgres.New(cfg.DatabaseURL)
	if err != nil {
		return err
	}
	defer store.Close()
	if err := store.Migrate(ctx); err != nil {
		return err
	}
	if err := store.Record(ctx, cfg.CardID, s.RawEntries()); err != nil {
		return err
	}
	fmt.Fprintf(w, "Recorded %d objects for %s\n", s.Len(), cfg.CardID)
	return nil
}

func cmdUpload(ctx context.Context, w io.Writer, s *mscfs.Session, cfg *config.Config, card string, args []string) error {
	if len(args) == 0 {
		return fmt.Errorf("usage: cardfs-cli upload <key>: %w", mscfs.ErrInvalidArguments)
	}
	if err := s.EnsurePopulated(); err != nil {
		return err
	}

	store, err := s3source.New(ctx, app.S3Config(cfg))
	if err != nil {
		return err
	}
	if err := store.Upload(ctx, args[0], card, s.RawEntries()); err != nil {
		return err
	}
	logging.Debug("listing uploaded", logging.String("key", args[0]), logging.Int("objects", s.Len()))
	fmt.Fprintf(w, "Uploaded %d objects to s3://%s/%s\n", s.Len(), cfg.S3Bucket, args[0])
	return nil
}
