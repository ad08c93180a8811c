// Command reflar inspects, converts and lists archive files.
//
//	reflar [-profile cpu|mem] [-v] inspect FILE
//	reflar convert -to FORMAT [-zstd] IN OUT
//	reflar ls -db FILE|DIR [-r] [DIR]
package main

import (
	"errors"
	"flag"
	"fmt"
	"io"
	"log/slog"
	"os"
	"text/tabwriter"

	"github.com/pkg/profile"

	"github.com/rawbytedev/reflar"
	"github.com/rawbytedev/reflar/pkg/assetdb"
	"github.com/rawbytedev/reflar/pkg/document"
)

var errUsage = errors.New("usage: reflar [-profile cpu|mem] [-v] inspect|convert|ls ...")

func main() {
	if err := run(os.Args[1:], os.Stdout, os.Stderr); err != nil {
		fmt.Fprintln(os.Stderr, "reflar:", err)
		os.Exit(1)
	}
}

func run(args []string, stdout, stderr io.Writer) error {
	fs := flag.NewFlagSet("reflar", flag.ContinueOnError)
	fs.SetOutput(stderr)
	prof := fs.String("profile", "", "write a cpu or mem profile to the working directory")
	verbose := fs.Bool("v", false, "debug logging")
	if err := fs.Parse(args); err != nil {
		return err
	}

	switch *prof {
	case "":
	case "cpu":
		defer profile.Start(profile.CPUProfile, profile.ProfilePath("."), profile.NoShutdownHook, profile.Quiet).Stop()
	case "mem":
		defer profile.Start(profile.MemProfileAllocs, profile.ProfilePath("."), profile.NoShutdownHook, profile.Quiet).Stop()
	default:
		return fmt.Errorf("unknown profile %q", *prof)
	}

	level := slog.LevelWarn
	if *verbose {
		level = slog.LevelDebug
	}
	log := slog.New(slog.NewTextHandler(stderr, &slog.HandlerOptions{Level: level}))

	rest := fs.Args()
	if len(rest) == 0 {
		return errUsage
	}
	switch rest[0] {
	case "inspect":
		return inspect(rest[1:], stdout, log)
	case "convert":
		return convert(rest[1:], stderr, log)
	case "ls":
		return list(rest[1:], stdout, stderr, log)
	}
	return fmt.Errorf("unknown command %q", rest[0])
}

func inspect(args []string, stdout io.Writer, log *slog.Logger) error {
	if len(args) != 1 {
		return errors.New("usage: reflar inspect FILE")
	}
	a, err := reflar.LoadFromFile(args[0], reflar.Options{Logger: log})
	if err != nil {
		return err
	}
	opts := a.Options()
	name, err := a.MainType()
	if err != nil {
		return err
	}
	objects := 0
	if data, ok := a.Root().Get(reflar.KeyData); ok {
		objects = data.Len()
	}
	fmt.Fprintf(stdout, "format:   %v\n", opts.Format)
	fmt.Fprintf(stdout, "zstd:     %v\n", opts.Compress)
	fmt.Fprintf(stdout, "main:     %s\n", name)
	fmt.Fprintf(stdout, "objects:  %d\n", objects)
	fmt.Fprintf(stdout, "extra:    %d bytes\n", a.Extra().Len())
	if id, err := assetdb.GUIDOf(a); err == nil {
		fmt.Fprintf(stdout, "guid:     %v\n", id)
	}
	doc, err := document.YAML.Encode(a.Root())
	if err != nil {
		return err
	}
	fmt.Fprintln(stdout, "---")
	_, err = stdout.Write(doc)
	return err
}

func convert(args []string, stderr io.Writer, log *slog.Logger) error {
	fs := flag.NewFlagSet("convert", flag.ContinueOnError)
	fs.SetOutput(stderr)
	to := fs.String("to", "yaml", "target document format: yaml, json or msgpack")
	zstd := fs.Bool("zstd", false, "compress the output")
	if err := fs.Parse(args); err != nil {
		return err
	}
	if fs.NArg() != 2 {
		return errors.New("usage: reflar convert -to FORMAT [-zstd] IN OUT")
	}
	f, err := document.ParseFormat(*to)
	if err != nil {
		return err
	}
	src, err := reflar.LoadFromFile(fs.Arg(0), reflar.Options{Logger: log})
	if err != nil {
		return err
	}
	dst := reflar.NewArchive(reflar.Options{Format: f, Compress: *zstd, Logger: log})
	dst.SetDocument(src.Root(), src.Extra().Bytes())
	return reflar.SaveToFile(dst, fs.Arg(1))
}

func list(args []string, stdout, stderr io.Writer, log *slog.Logger) error {
	fs := flag.NewFlagSet("ls", flag.ContinueOnError)
	fs.SetOutput(stderr)
	dbPath := fs.String("db", "", "asset directory or bolt database file")
	recursive := fs.Bool("r", false, "descend into subdirectories")
	if err := fs.Parse(args); err != nil {
		return err
	}
	if *dbPath == "" || fs.NArg() > 1 {
		return errors.New("usage: reflar ls -db FILE|DIR [-r] [DIR]")
	}
	db, err := openDatabase(*dbPath, log)
	if err != nil {
		return err
	}
	defer db.Close()

	infos, err := db.ListAssets(fs.Arg(0), *recursive)
	if err != nil {
		return err
	}
	w := tabwriter.NewWriter(stdout, 0, 4, 2, ' ', 0)
	fmt.Fprintln(w, "PATH\tGUID\tTYPE\tCHECKSUM")
	for _, info := range infos {
		fmt.Fprintf(w, "%s\t%v\t%s\t%016x\n", info.Path, info.GUID, info.TypeName, info.Checksum)
	}
	return w.Flush()
}

func openDatabase(p string, log *slog.Logger) (assetdb.Database, error) {
	opts := assetdb.Options{Logger: log}
	if st, err := os.Stat(p); err == nil && st.IsDir() {
		return assetdb.OpenDir(p, opts)
	}
	return assetdb.OpenBolt(p, opts)
}
