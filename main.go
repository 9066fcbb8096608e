package main

import (
	"errors"
	"flag"
	"fmt"
	"io"
	"os"
	"strings"

	"boro-heap/disk"
	"boro-heap/file"
	"boro-heap/filesystem"
	"boro-heap/logging"
	"boro-heap/paging"
	"boro-heap/records"
	"boro-heap/schema"

	"github.com/phuslu/log"
)

const usage = `usage: boro-heap [flags] <command> [args]

commands:
  create NAME               create an empty heap file
  destroy NAME              remove a heap file
  insert NAME VALUES...     append one record per argument (comma separated columns with -schema)
  scan NAME [WHERE]         print the records passing an optional filter (needs -schema)
  get NAME RID              print one record, RID is page.slot
  delete NAME WHERE         delete the records passing the filter (needs -schema)
  count NAME                print the number of records

flags:
`

func main() {
	if err := run(os.Args[1:], os.Stdout, os.Stderr); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

type cli struct {
	logger log.Logger
	fs     filesystem.FileSystem
	layout *schema.Layout
	out    io.Writer
}

func run(args []string, stdout io.Writer, stderr io.Writer) error {
	flags := flag.NewFlagSet("boro-heap", flag.ContinueOnError)
	flags.SetOutput(stderr)
	dir := flags.String("dir", "./data", "directory holding the heap files")
	schemaFile := flags.String("schema", "", "file with a CREATE TABLE statement describing the records")
	logLevel := flags.String("log-level", "info", "trace, debug, info, warn or error")
	pageSize := flags.Uint("page-size", uint(disk.DEFAULT_PAGE_SIZE), "page size in bytes for new and opened files")
	frames := flags.Int("frames", paging.DEFAULT_BUFFER_POOL_FRAMES, "buffer pool frames")
	victimBytes := flags.Int64("victim-cache", int64(paging.DEFAULT_BUFFER_POOL_FRAMES)*int64(disk.DEFAULT_PAGE_SIZE), "bytes of evicted pages kept in memory, 0 disables")
	flags.Usage = func() {
		fmt.Fprint(stderr, usage)
		flags.PrintDefaults()
	}

	if err := flags.Parse(args); err != nil {
		return err
	}
	if flags.NArg() < 2 {
		flags.Usage()
		return fmt.Errorf("missing command or file name")
	}

	logger := *logging.CreateLogger(*logLevel, stderr)
	if strings.EqualFold(*logLevel, "debug") {
		logger = *logging.CreateDebugLogger(stderr)
	}

	options := filesystem.DefaultOptions(*dir)
	options.FileOptions.PageSizeByte = uint32(*pageSize)
	options.PageSystemOption.PageSizeByte = uint32(*pageSize)
	options.BufferPoolFrames = *frames
	options.VictimCacheBytes = *victimBytes

	fs, err := filesystem.NewFileSystem(logger, options)
	if err != nil {
		return err
	}
	defer func() {
		if err := fs.Close(); err != nil {
			logger.Error().Err(err).Msg("error closing filesystem")
		}
	}()

	c := &cli{logger: logger, fs: fs, out: stdout}
	if *schemaFile != "" {
		if c.layout, err = schema.ParseLayoutFile(*schemaFile); err != nil {
			return err
		}
	}

	command, name, rest := flags.Arg(0), flags.Arg(1), flags.Args()[2:]
	switch command {
	case "create":
		return file.CreateHeapFile(logger, fs, name)
	case "destroy":
		return file.DestroyHeapFile(fs, name)
	case "insert":
		return c.insert(name, rest)
	case "scan":
		return c.scan(name, strings.Join(rest, " "))
	case "get":
		if len(rest) != 1 {
			return fmt.Errorf("get needs exactly one record id")
		}
		return c.get(name, rest[0])
	case "delete":
		return c.delete(name, strings.Join(rest, " "))
	case "count":
		return c.count(name)
	}
	flags.Usage()
	return fmt.Errorf("unknown command %q", command)
}

func (c *cli) encode(value string) (records.Record, error) {
	if c.layout == nil {
		return records.Record(value), nil
	}
	return c.layout.Encode(strings.Split(value, ","))
}

func (c *cli) print(rid records.RID, rec records.Record) error {
	text := string(rec)
	if c.layout != nil {
		values, err := c.layout.Decode(rec)
		if err != nil {
			return err
		}
		text = strings.Join(values, ",")
	}
	_, err := fmt.Fprintf(c.out, "%s\t%s\n", rid, text)
	return err
}

func (c *cli) filter(where string) (*schema.Filter, error) {
	if strings.TrimSpace(where) == "" {
		return nil, nil
	}
	if c.layout == nil {
		return nil, fmt.Errorf("a filter needs -schema")
	}
	return c.layout.ParseFilter(where)
}

func (c *cli) insert(name string, values []string) (err error) {
	is, err := file.OpenInsertFileScan(c.logger, c.fs, name)
	if err != nil {
		return err
	}
	defer func() { err = errors.Join(err, is.Close()) }()

	for _, value := range values {
		rec, err := c.encode(value)
		if err != nil {
			return err
		}
		rid, err := is.InsertRecord(rec)
		if err != nil {
			return err
		}
		c.logger.Debug().Str("file", name).Str("rid", rid.String()).Msg("inserted record")
		fmt.Fprintln(c.out, rid)
	}
	return nil
}

func (c *cli) scan(name string, where string) (err error) {
	f, err := c.filter(where)
	if err != nil {
		return err
	}
	hs, err := file.OpenHeapFileScan(c.logger, c.fs, name)
	if err != nil {
		return err
	}
	defer func() { err = errors.Join(err, hs.Close()) }()

	if err := f.Apply(hs); err != nil {
		return err
	}
	return hs.Scan(c.print)
}

func (c *cli) get(name string, ridText string) (err error) {
	rid, err := records.ParseRID(ridText)
	if err != nil {
		return err
	}
	hf, err := file.OpenHeapFile(c.logger, c.fs, name)
	if err != nil {
		return err
	}
	defer func() { err = errors.Join(err, hf.Close()) }()

	rec, err := hf.GetRecord(rid)
	if err != nil {
		return err
	}
	return c.print(rid, rec)
}

func (c *cli) delete(name string, where string) (err error) {
	f, err := c.filter(where)
	if err != nil {
		return err
	}
	if f == nil {
		return fmt.Errorf("delete needs a filter")
	}
	hs, err := file.OpenHeapFileScan(c.logger, c.fs, name)
	if err != nil {
		return err
	}
	defer func() { err = errors.Join(err, hs.Close()) }()

	if err := f.Apply(hs); err != nil {
		return err
	}
	deleted := 0
	err = hs.Scan(func(records.RID, records.Record) error {
		deleted++
		return hs.DeleteRecord()
	})
	if err != nil {
		return err
	}
	_, err = fmt.Fprintf(c.out, "deleted %d\n", deleted)
	return err
}

func (c *cli) count(name string) (err error) {
	hf, err := file.OpenHeapFile(c.logger, c.fs, name)
	if err != nil {
		return err
	}
	defer func() { err = errors.Join(err, hf.Close()) }()

	_, err = fmt.Fprintln(c.out, hf.GetRecordCount())
	return err
}
