// Command browse pages through the catalog from the terminal. Filters and
// sort persist between runs in CATALOG_STATE_FILE.
//
//	browse -set priceMax=6000000 -set rooms=2 -sort price-asc -pages 2
//	browse -group -developer sunrise
//	browse -reset
package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"strconv"
	"strings"
	"text/tabwriter"
	"time"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"

	"realty_catalog/internal/adapters/catalogclient"
	"realty_catalog/internal/adapters/observability"
	"realty_catalog/internal/domain"
	"realty_catalog/internal/shared"
)

type multiFlag []string

func (m *multiFlag) String() string     { return strings.Join(*m, ",") }
func (m *multiFlag) Set(v string) error { *m = append(*m, v); return nil }

func main() {
	cfg := shared.Load()
	// stdout carries the listing
	log.Logger = observability.NewLogger("dev", cfg.LogLevel, "browse").Output(zerolog.ConsoleWriter{Out: os.Stderr})

	var sets multiFlag
	base := flag.String("base", cfg.CatalogBaseURL, "catalog API base URL")
	statePath := flag.String("state", cfg.CatalogStateFile, "persisted query state")
	flag.Var(&sets, "set", "filter as key=value (priceMin, areaMax, rooms, city, ...); empty value clears; repeatable")
	sortTok := flag.String("sort", "", "price-asc|price-desc|area-asc|area-desc|none")
	developer := flag.String("developer", "", "developer slug scope (- clears)")
	complexSlug := flag.String("complex", "", "complex slug scope (- clears)")
	group := flag.Bool("group", false, "list complexes instead of properties")
	pages := flag.Int("pages", 1, "pages to load")
	limit := flag.Int("limit", domain.DefaultLimit, "page size")
	reset := flag.Bool("reset", false, "clear saved filters first")
	flag.Parse()

	st, err := catalogclient.LoadState(*statePath)
	if err != nil {
		log.Fatal().Err(err).Msg("load state failed")
	}
	if *reset {
		st = st.Reset()
	}
	if st, err = applyFlags(st, sets, *sortTok, *developer, *complexSlug); err != nil {
		log.Fatal().Err(err).Msg("bad flags")
	}
	st.Limit = *limit
	if err := st.Save(*statePath); err != nil {
		log.Warn().Err(err).Msg("save state failed")
	}

	client, err := catalogclient.New(*base, 10)
	if err != nil {
		log.Fatal().Err(err).Msg("client")
	}
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	defer stop()
	ctx, cancel := context.WithTimeout(ctx, time.Minute)
	defer cancel()

	if *group {
		err = run(ctx, catalogclient.ListComplexes(client), st, *pages, printGroups)
	} else {
		err = run(ctx, catalogclient.ListProperties(client), st, *pages, printProperties)
	}
	if err != nil {
		log.Fatal().Err(err).Msg("fetch failed")
	}
}

func run[T any](ctx context.Context, fetch catalogclient.Fetcher[T], st catalogclient.QueryState, pages int, render func(*tabwriter.Writer, []T)) error {
	s := catalogclient.NewSession(fetch, st, catalogclient.Options[T]{})
	defer s.Close()

	if err := s.Refresh(ctx); err != nil {
		return err
	}
	for i := 1; i < pages && s.HasMore(); i++ {
		if err := s.LoadMore(ctx); err != nil {
			return err
		}
	}
	v := s.Snapshot()
	w := tabwriter.NewWriter(os.Stdout, 0, 4, 2, ' ', 0)
	render(w, v.Items)
	_ = w.Flush()
	fmt.Printf("\n%d of %d", len(v.Items), v.Total)
	if s.HasMore() {
		fmt.Print(" (more: -pages ", pages+1, ")")
	}
	fmt.Println()
	return nil
}

func applyFlags(st catalogclient.QueryState, sets []string, sortTok, developer, complexSlug string) (catalogclient.QueryState, error) {
	for _, kv := range sets {
		k, v, ok := strings.Cut(kv, "=")
		if !ok {
			return st, fmt.Errorf("-set %q: want key=value", kv)
		}
		if attr, side, ranged := rangeParam(k); ranged {
			r := st.Ranges[attr]
			var bound *float64
			if v != "" {
				f, err := strconv.ParseFloat(v, 64)
				if err != nil {
					return st, fmt.Errorf("-set %s: %w", k, err)
				}
				bound = &f
			}
			if side == "Min" {
				r.Min = bound
			} else {
				r.Max = bound
			}
			st = st.WithRange(attr, r.Min, r.Max)
			continue
		}
		if !domain.IsCategorical(k) {
			return st, fmt.Errorf("-set %s: unknown filter", k)
		}
		var vals []string
		if v != "" {
			vals = strings.Split(v, ",")
		}
		st = st.WithValues(k, vals...)
	}
	switch sortTok {
	case "":
	case "none":
		st = st.WithSort("")
	default:
		st = st.WithSort(sortTok)
	}
	if developer != "" || complexSlug != "" {
		dev, cx := st.Developer, st.Complex
		if developer != "" {
			dev = clearable(developer)
		}
		if complexSlug != "" {
			cx = clearable(complexSlug)
		}
		st = st.WithScope(dev, cx)
	}
	return st, nil
}

func clearable(v string) string {
	if v == "-" {
		return ""
	}
	return v
}

// rangeParam splits "priceMin" into ("price", "Min").
func rangeParam(k string) (attr, side string, ok bool) {
	for _, side := range []string{"Min", "Max"} {
		if a, found := strings.CutSuffix(k, side); found && domain.IsRanged(a) {
			return a, side, true
		}
	}
	return "", "", false
}

func printProperties(w *tabwriter.Writer, items []domain.Property) {
	fmt.Fprintln(w, "ID\tTITLE\tDEVELOPER\tCOMPLEX\tPRICE\tAREA\tROOMS")
	for _, p := range items {
		fmt.Fprintf(w, "%s\t%s\t%s\t%s\t%s\t%s\t%s\n", p.ID, p.Title, p.DeveloperSlug, p.ComplexSlug,
			p.Tags[domain.TagPrice], p.Tags[domain.TagArea], p.Tags[domain.TagRooms])
	}
}

func printGroups(w *tabwriter.Writer, items []domain.GroupSummary) {
	fmt.Fprintln(w, "COMPLEX\tDEVELOPER\tUNITS\tPRICE FROM\tPRICE TO\tCITY")
	for _, g := range items {
		dev := g.Complex.DeveloperSlug
		if g.Developer != nil {
			dev = g.Developer.Name
		}
		b := g.Stats.Ranges[domain.TagPrice]
		fmt.Fprintf(w, "%s\t%s\t%d\t%s\t%s\t%s\n", g.Complex.Name, dev, g.Stats.TotalUnits,
			fmtBound(b.Min), fmtBound(b.Max), g.Complex.City)
	}
}

func fmtBound(f *float64) string {
	if f == nil {
		return "-"
	}
	return strconv.FormatFloat(*f, 'f', -1, 64)
}
