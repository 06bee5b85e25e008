package main

import (
	"bufio"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"strings"
	"time"

	"planning/internal/auth"
	"planning/internal/calendar"
	"planning/internal/event"

	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"
	"gorm.io/gorm"
)

type viewFlags struct {
	email  string
	view   string
	date   string
	step   string
	tz     string
	output string
}

func (f *viewFlags) register(cmd *cobra.Command) {
	cmd.Flags().StringVar(&f.email, "email", "", "Account whose calendar to show (required)")
	cmd.Flags().StringVar(&f.view, "view", "month", "day, month or year")
	cmd.Flags().StringVar(&f.date, "date", "", "Reference date yyyy-mm-dd (default today)")
	cmd.Flags().StringVar(&f.step, "step", "", "Apply prev, next or today before printing")
	cmd.Flags().StringVar(&f.tz, "tz", "", "IANA time zone (default TIMEZONE)")
	cmd.Flags().StringVarP(&f.output, "output", "o", "yaml", "json or yaml")
	_ = cmd.MarkFlagRequired("email")
}

func newViewCommand() *cobra.Command {
	var f viewFlags
	cmd := &cobra.Command{
		Use:   "view",
		Short: "Print one calendar page for a user",
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := bootstrap(false)
			if err != nil {
				return err
			}
			return runView(cmd.Context(), a, f, cmd.OutOrStdout())
		},
	}
	f.register(cmd)
	return cmd
}

func newBrowseCommand() *cobra.Command {
	var f viewFlags
	cmd := &cobra.Command{
		Use:   "browse",
		Short: "Navigate a user's calendar interactively",
		Long: `Reads one command per line from stdin and prints the page after each:
  prev | next | today       move the reference date
  day | month | year        change the view
  goto yyyy-mm-dd           jump to a date
  reload                    fetch events again
  quit                      exit`,
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := bootstrap(false)
			if err != nil {
				return err
			}
			b, events, err := openBrowser(cmd.Context(), a, f)
			if err != nil {
				return err
			}
			defer events.Close()
			reload := func() error { return events.Load(cmd.Context()) }
			return browse(cmd.InOrStdin(), cmd.OutOrStdout(), b, reload, f.output)
		},
	}
	f.register(cmd)
	return cmd
}

// runView prints one page and releases the user's event list.
func runView(ctx context.Context, a *app, f viewFlags, out io.Writer) error {
	b, events, err := openBrowser(ctx, a, f)
	if err != nil {
		return err
	}
	defer events.Close()
	if f.step != "" {
		if err := b.Apply(f.step); err != nil {
			return err
		}
	}
	return writePage(out, b.Page(), f.output)
}

// openBrowser loads the user's events and positions a browser per flags.
func openBrowser(ctx context.Context, a *app, f viewFlags) (*calendar.Browser, *event.Collection, error) {
	if ctx == nil {
		ctx = context.Background()
	}
	loc := a.cfg.Location()
	if f.tz != "" {
		l, err := time.LoadLocation(f.tz)
		if err != nil {
			return nil, nil, fmt.Errorf("unknown time zone %q", f.tz)
		}
		loc = l
	}
	g, err := calendar.ParseGranularity(f.view)
	if err != nil {
		return nil, nil, err
	}

	var u auth.User
	if err := a.db.WithContext(ctx).Where("email = ?", strings.ToLower(strings.TrimSpace(f.email))).First(&u).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil, fmt.Errorf("no account for %s", f.email)
		}
		return nil, nil, err
	}

	events := event.NewCollection(event.NewGormStore(a.db), auth.NewSession(u.Principal()))
	if err := events.Load(ctx); err != nil {
		events.Close()
		return nil, nil, err
	}

	b := calendar.NewBrowser(events, loc, time.Now)
	if f.date != "" {
		d, err := time.ParseInLocation(calendar.DateKeyLayout, f.date, loc)
		if err != nil {
			events.Close()
			return nil, nil, fmt.Errorf("invalid date %q (want yyyy-mm-dd)", f.date)
		}
		b.GoTo(d)
	}
	b.State = b.State.WithGranularity(g)
	return b, events, nil
}

func writePage(w io.Writer, p calendar.Page, format string) error {
	switch strings.ToLower(format) {
	case "json":
		enc := json.NewEncoder(w)
		enc.SetIndent("", "  ")
		return enc.Encode(p)
	case "yaml", "":
		enc := yaml.NewEncoder(w)
		enc.SetIndent(2)
		if err := enc.Encode(p); err != nil {
			return err
		}
		return enc.Close()
	}
	return fmt.Errorf("unknown output %q (want json or yaml)", format)
}

// browse drives b from line commands until quit or EOF.
func browse(in io.Reader, out io.Writer, b *calendar.Browser, reload func() error, format string) error {
	if err := writePage(out, b.Page(), format); err != nil {
		return err
	}

	sc := bufio.NewScanner(in)
	for sc.Scan() {
		line := strings.TrimSpace(sc.Text())
		cmd, arg, _ := strings.Cut(line, " ")
		switch strings.ToLower(cmd) {
		case "":
			continue
		case "quit", "exit", "q":
			return nil
		case "reload":
			if err := reload(); err != nil {
				return err
			}
		case "goto":
			d, err := time.ParseInLocation(calendar.DateKeyLayout, strings.TrimSpace(arg), b.State.Date.Location())
			if err != nil {
				fmt.Fprintf(out, "# invalid date %q\n", arg)
				continue
			}
			b.GoTo(d)
		default:
			if err := b.Apply(cmd); err != nil {
				fmt.Fprintf(out, "# %v\n", err)
				continue
			}
		}
		fmt.Fprintln(out, "---")
		if err := writePage(out, b.Page(), format); err != nil {
			return err
		}
	}
	return sc.Err()
}
