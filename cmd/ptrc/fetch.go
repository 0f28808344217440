package main

import (
	"bytes"
	"context"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"text/tabwriter"
	"time"

	"github.com/peterbourgon/ff/v4"
	"github.com/peterbourgon/ff/v4/ffval"
	"github.com/peterbourgon/ptrc"
	"github.com/peterbourgon/ptrc/internal/ptrcutil"
)

type fetchConfig struct {
	*rootConfig

	stop    bool
	out     string
	summary bool
}

func (cfg *fetchConfig) register(fs *ff.FlagSet) {
	fs.AddFlag(ff.FlagConfig{ShortName: 's', LongName: "stop" /*    */, Value: ffval.NewValue(&cfg.stop) /*              */, Usage: "stop the session after fetching it", NoDefault: true})
	fs.AddFlag(ff.FlagConfig{ShortName: 'o', LongName: "out" /*     */, Value: ffval.NewValueDefault(&cfg.out, "-") /*   */, Usage: "output file, or - for stdout", Placeholder: "FILE"})
	fs.AddFlag(ff.FlagConfig{ShortName: 0x0, LongName: "summary" /* */, Value: ffval.NewValue(&cfg.summary) /*           */, Usage: "print a per-name summary instead of the document", NoDefault: true})
	fs.AddFlag(ff.FlagConfig{ShortName: 0x0, LongName: "micros" /*  */, Value: ffval.NewValue(&cfg.micros) /*            */, Usage: "the remote session writes times in microseconds", NoDefault: true})
}

func (cfg *fetchConfig) Exec(ctx context.Context, args []string) error {
	data, err := cfg.newClient().Fetch(ctx, cfg.stop)
	if err != nil {
		return err
	}

	cfg.debug.Printf("fetched %s", ptrcutil.HumanizeBytes(len(data)))

	if cfg.summary {
		doc, err := ptrc.DecodeChromeDocument(bytes.NewReader(data))
		if err != nil {
			return err
		}
		return cfg.writeSummary(doc)
	}

	if cfg.out == "-" {
		_, err := cfg.stdout.Write(data)
		return err
	}

	if err := os.MkdirAll(filepath.Dir(cfg.out), 0o755); err != nil {
		return err
	}
	if err := os.WriteFile(cfg.out, data, 0o644); err != nil {
		return err
	}
	cfg.info.Printf("wrote %s", cfg.out)
	return nil
}

type summaryRow struct {
	phase string
	name  string
	count int
	total time.Duration
	last  float64 // counters
}

func (cfg *fetchConfig) writeSummary(doc *ptrc.ChromeDocument) error {
	unit := time.Nanosecond
	if cfg.micros {
		unit = time.Microsecond
	}

	index := map[[2]string]*summaryRow{}
	for _, cev := range doc.TraceEvents {
		key := [2]string{cev.Ph, cev.Name}
		row, ok := index[key]
		if !ok {
			row = &summaryRow{phase: cev.Ph, name: cev.Name}
			index[key] = row
		}
		row.count++
		if cev.Dur != nil {
			row.total += time.Duration(*cev.Dur * float64(unit))
		}
		if f, ok := cev.Args[cev.Name].(float64); ok && cev.Ph == "C" {
			row.last = f
		}
	}

	rows := make([]*summaryRow, 0, len(index))
	for _, row := range index {
		rows = append(rows, row)
	}
	sort.Slice(rows, func(i, j int) bool {
		if rows[i].phase != rows[j].phase {
			return rows[i].phase < rows[j].phase
		}
		return rows[i].name < rows[j].name
	})

	tw := tabwriter.NewWriter(cfg.stdout, 0, 2, 2, ' ', 0)
	fmt.Fprintf(tw, "PH\tNAME\tCOUNT\tTOTAL\tMEAN\tLAST\n")
	for _, row := range rows {
		total, mean, last := "-", "-", "-"
		if row.phase == "X" {
			total = ptrcutil.HumanizeDuration(row.total)
			mean = ptrcutil.HumanizeDuration(row.total / time.Duration(row.count))
		}
		if row.phase == "C" {
			last = fmt.Sprint(row.last)
		}
		fmt.Fprintf(tw, "%s\t%s\t%d\t%s\t%s\t%s\n", row.phase, row.name, row.count, total, mean, last)
	}
	fmt.Fprintf(tw, "\n%d event(s), %d metadata key(s)\n", len(doc.TraceEvents), len(doc.OtherData))
	return tw.Flush()
}
