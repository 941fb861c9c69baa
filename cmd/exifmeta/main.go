// Command exifmeta prints file metadata using a persistent exiftool process.
package main

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/urfave/cli/v2"
	"gopkg.in/yaml.v3"

	"github.com/alanlgardner/pyexiftool/exiftool"
	"github.com/alanlgardner/pyexiftool/watch"
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := newApp(os.Stdout, os.Stderr).RunContext(ctx, os.Args); err != nil {
		log.Fatal(err)
	}
}

func newApp(stdout, stderr io.Writer) *cli.App {
	return &cli.App{
		Name:      "exifmeta",
		Usage:     "read file metadata through exiftool",
		Writer:    stdout,
		ErrWriter: stderr,
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:  "exiftool",
				Usage: "Path to the exiftool executable.",
			},
			&cli.StringFlag{
				Name:  "config",
				Usage: "Client config file (.yaml, .yml, .toml or .json).",
			},
			&cli.BoolFlag{
				Name:  "verbose",
				Usage: "Log debug messages.",
			},
		},
		Commands: []*cli.Command{
			{
				Name:      "read",
				Usage:     "print the metadata of files or directories",
				ArgsUsage: "PATH...",
				Flags: []cli.Flag{
					&cli.StringFlag{
						Name:  "format",
						Usage: "Output format. One of [json,yaml].",
						Value: "json",
					},
				},
				Action: readAction,
			},
			{
				Name:      "field",
				Usage:     "print one tag for each file",
				ArgsUsage: "TAG PATH...",
				Action:    fieldAction,
			},
			{
				Name:      "watch",
				Usage:     "print the metadata of files as they are written",
				ArgsUsage: "DIR...",
				Flags: []cli.Flag{
					&cli.StringSliceFlag{
						Name:  "ext",
						Usage: "Only report files with this extension (repeatable).",
					},
					&cli.DurationFlag{
						Name:  "debounce",
						Usage: "How long a file must be quiet before it is read.",
						Value: watch.DefaultDebounce,
					},
				},
				Action: watchAction,
			},
			{
				Name:  "schema",
				Usage: "print the JSON schema of the config file",
				Action: func(c *cli.Context) error {
					schema, err := exiftool.ConfigSchema()
					if err != nil {
						return err
					}
					_, err = fmt.Fprintln(c.App.Writer, string(schema))
					return err
				},
			},
		},
	}
}

// newClient builds and starts a client from the global flags.
func newClient(c *cli.Context) (*exiftool.ExifTool, error) {
	level := slog.LevelInfo
	if c.Bool("verbose") {
		level = slog.LevelDebug
	}
	logger := slog.New(slog.NewTextHandler(c.App.ErrWriter, &slog.HandlerOptions{Level: level}))

	cfg := exiftool.DefaultConfig()
	if path := c.String("config"); path != "" {
		loaded, err := exiftool.LoadConfig(path)
		if err != nil {
			return nil, fmt.Errorf("loading config: %w", err)
		}
		cfg = loaded
	}
	if exe := c.String("exiftool"); exe != "" {
		cfg.Executable = exe
	}
	cfg.Logger = logger
	if c.Bool("verbose") {
		cfg.Stderr = c.App.ErrWriter
	}

	et := exiftool.NewWithConfig(cfg)
	if err := et.Start(); err != nil {
		return nil, err
	}
	return et, nil
}

func readAction(c *cli.Context) error {
	if c.NArg() == 0 {
		return fmt.Errorf("read: at least one path is required")
	}

	format := c.String("format")
	if format != "json" && format != "yaml" {
		return fmt.Errorf("unsupported format %q", format)
	}

	et, err := newClient(c)
	if err != nil {
		return err
	}
	defer et.Terminate()

	view, err := et.Metadata(c.Context, c.Args().Slice()...)
	if err != nil {
		return err
	}

	var records []exiftool.Record
	for fm, err := range view.Records(c.Context) {
		if err != nil {
			return err
		}
		records = append(records, fm.Record())
	}

	return writeRecords(c.App.Writer, format, records)
}

func writeRecords(w io.Writer, format string, records []exiftool.Record) error {
	if records == nil {
		records = []exiftool.Record{}
	}
	switch format {
	case "yaml":
		enc := yaml.NewEncoder(w)
		enc.SetIndent(2)
		if err := enc.Encode(records); err != nil {
			return fmt.Errorf("encoding yaml: %w", err)
		}
		return enc.Close()
	default:
		enc := json.NewEncoder(w)
		enc.SetIndent("", "  ")
		if err := enc.Encode(records); err != nil {
			return fmt.Errorf("encoding json: %w", err)
		}
		return nil
	}
}

func fieldAction(c *cli.Context) error {
	if c.NArg() < 2 {
		return fmt.Errorf("field: a tag and at least one path are required")
	}
	tag := c.Args().First()

	et, err := newClient(c)
	if err != nil {
		return err
	}
	defer et.Terminate()

	view, err := et.Metadata(c.Context, c.Args().Tail()...)
	if err != nil {
		return err
	}

	for v, err := range view.Values(c.Context, tag) {
		if err != nil {
			return err
		}
		if !v.Present {
			fmt.Fprintf(c.App.Writer, "%s\t-\n", v.SourceFile)
			continue
		}
		fmt.Fprintf(c.App.Writer, "%s\t%v\n", v.SourceFile, v.Value)
	}
	return nil
}

func watchAction(c *cli.Context) error {
	if c.NArg() == 0 {
		return fmt.Errorf("watch: at least one directory is required")
	}

	et, err := newClient(c)
	if err != nil {
		return err
	}
	defer et.Terminate()

	w := watch.New(et,
		watch.WithExtensions(c.StringSlice("ext")...),
		watch.WithDebounce(c.Duration("debounce")),
		watch.WithLogger(et.Config().Logger),
	)
	events, err := w.Run(c.Context, c.Args().Slice()...)
	if err != nil {
		return err
	}

	enc := json.NewEncoder(c.App.Writer)
	for ev := range events {
		if ev.Err != nil {
			et.Config().Logger.Warn("reading metadata failed",
				slog.String("path", ev.Path),
				slog.Any("error", ev.Err))
			continue
		}
		if err := enc.Encode(ev.Metadata.Record()); err != nil {
			return err
		}
	}
	return nil
}
