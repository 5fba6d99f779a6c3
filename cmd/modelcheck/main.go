// Command modelcheck loads a serialized document together with a YAML
// schema declaration, runs the structural integrity check and reports the
// findings. A clean document exits 0; faults or errors exit non-zero.
package main

import (
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"io"
	"os"
	"path/filepath"

	"modelcore/internal/blob"
	"modelcore/internal/config"
	"modelcore/internal/service"
	"modelcore/internal/snapshot"
)

var exitFunc = os.Exit

func main() {
	code := cli(os.Args[1:], os.Stdout, os.Stderr)
	exitFunc(code)
}

func cli(args []string, stdout, stderr io.Writer) int {
	fs := flag.NewFlagSet("modelcheck", flag.ContinueOnError)
	fs.SetOutput(stderr)
	var (
		schemaPath   = fs.String("schema", "", "path to the YAML schema declaration (required)")
		docPath      = fs.String("doc", "", "path to the document to check (required)")
		configPath   = fs.String("config", "", "optional path to a modelcore config file")
		jsonOut      = fs.Bool("json", false, "emit the report as JSON")
		keepSnapshot = fs.Bool("snapshot", false, "record a snapshot of the document after a clean check")
		exportKey    = fs.String("export", "", "archive the document under this blob key after a clean check")
	)
	if err := fs.Parse(args); err != nil {
		return 2
	}
	if *schemaPath == "" || *docPath == "" {
		fmt.Fprintln(stderr, "modelcheck: both -schema and -doc are required")
		fs.Usage()
		return 2
	}

	rep, err := run(context.Background(), options{
		schemaPath:   *schemaPath,
		docPath:      *docPath,
		configPath:   *configPath,
		keepSnapshot: *keepSnapshot,
		exportKey:    *exportKey,
	}, stderr)
	if err != nil {
		fmt.Fprintf(stderr, "modelcheck: %v\n", err)
		return 1
	}
	if err := printReport(stdout, rep, *jsonOut); err != nil {
		return 1
	}
	if !rep.Clean() {
		return 1
	}
	return 0
}

type options struct {
	schemaPath   string
	docPath      string
	configPath   string
	keepSnapshot bool
	exportKey    string
}

func run(ctx context.Context, opts options, stderr io.Writer) (service.Report, error) {
	cfg, err := config.Load(opts.configPath)
	if err != nil {
		return service.Report{}, err
	}
	logger := service.NewLogger(cfg.Log.Level, stderr)

	schema, err := loadSchema(opts.schemaPath)
	if err != nil {
		return service.Report{}, err
	}

	svcOpts := []service.Option{service.WithLogger(logger)}
	if cfg.Metrics.Expvar != "" {
		svcOpts = append(svcOpts, service.WithMetrics(service.NewExpvarMetricsRecorder(cfg.Metrics.Expvar)))
	}
	if opts.keepSnapshot {
		store, err := snapshot.OpenWith(ctx, cfg.Snapshot)
		if err != nil {
			return service.Report{}, err
		}
		defer store.Close()
		svcOpts = append(svcOpts, service.WithSnapshots(store))
	}
	if opts.exportKey != "" {
		archive, err := blob.OpenWith(ctx, cfg.Blob)
		if err != nil {
			return service.Report{}, err
		}
		svcOpts = append(svcOpts, service.WithBlobs(archive))
	}
	svc := service.New(schema, svcOpts...)

	name := documentName(opts.docPath)
	f, err := os.Open(opts.docPath) // #nosec G304: operator-supplied document path
	if err != nil {
		return service.Report{}, fmt.Errorf("open document: %w", err)
	}
	_, err = svc.Load(ctx, name, f)
	if cerr := f.Close(); err == nil {
		err = cerr
	}
	if err != nil {
		return service.Report{}, fmt.Errorf("load document: %w", err)
	}

	rep, err := svc.Check(ctx, name)
	if err != nil {
		return service.Report{}, err
	}
	if rep.Clean() {
		if opts.keepSnapshot {
			rec, err := svc.Snapshot(ctx, name)
			if err != nil {
				return service.Report{}, err
			}
			logger.Info("snapshot recorded", "name", name, "version", rec.Version)
		}
		if opts.exportKey != "" {
			info, err := svc.Export(ctx, name, opts.exportKey)
			if err != nil {
				return service.Report{}, err
			}
			logger.Info("document archived", "key", info.Key, "digest", info.Digest)
		}
	}
	return rep, nil
}

// documentName derives the registry name from the file path: the base name
// without its extension.
func documentName(path string) string {
	base := filepath.Base(path)
	return base[:len(base)-len(filepath.Ext(base))]
}

func printReport(w io.Writer, rep service.Report, asJSON bool) error {
	if asJSON {
		enc := json.NewEncoder(w)
		enc.SetIndent("", "  ")
		return enc.Encode(rep)
	}
	if rep.Clean() {
		_, err := fmt.Fprintf(w, "%s: %d entities, no faults\n", rep.Document, rep.Entities)
		return err
	}
	if _, err := fmt.Fprintf(w, "%s: %d entities, %d faults\n", rep.Document, rep.Entities, len(rep.Faults)); err != nil {
		return err
	}
	for _, f := range rep.Faults {
		loc := f.Type
		if f.Field != "" {
			loc += "." + f.Field
		}
		if _, err := fmt.Fprintf(w, "  %s (%s): %s\n", f.EntityID, loc, f.Detail); err != nil {
			return err
		}
	}
	return nil
}
