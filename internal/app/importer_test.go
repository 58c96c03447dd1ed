package app_test

import (
	"context"
	"strings"
	"sync"
	"testing"

	"realty_catalog/internal/app"
	"realty_catalog/internal/domain"
	"realty_catalog/internal/storage/memory"
)

type memJournal struct {
	mu       sync.Mutex
	started  []domain.ImportRun
	finished []domain.ImportRun
	skips    map[int]string
}

func (j *memJournal) StartRun(_ context.Context, run domain.ImportRun) error {
	j.mu.Lock()
	defer j.mu.Unlock()
	j.started = append(j.started, run)
	return nil
}

func (j *memJournal) RecordSkip(_ context.Context, _ string, row int, _, reason string) error {
	j.mu.Lock()
	defer j.mu.Unlock()
	if j.skips == nil {
		j.skips = map[int]string{}
	}
	j.skips[row] = reason
	return nil
}

func (j *memJournal) FinishRun(_ context.Context, run domain.ImportRun) error {
	j.mu.Lock()
	defer j.mu.Unlock()
	j.finished = append(j.finished, run)
	return nil
}

const sampleCSV = "\ufeffdeveloper,complex,price,area,rooms,city\n" +
	"lsr,gorizont,5000000,45,2,Sochi\n" +
	"lsr,gorizont,7000000,\"60,5\",3,Sochi\n" +
	",orphan,1,1,1,Nowhere\n" +
	"stroygrad,oazis,4000000,38,1,Adler\n"

func importCSV(t *testing.T, svc *app.ImportService, src string) domain.ImportRun {
	t.Helper()
	recs, err := app.ReadCSV(strings.NewReader(src))
	if err != nil {
		t.Fatal(err)
	}
	run, err := svc.Import(context.Background(), "csv_import", recs)
	if err != nil {
		t.Fatal(err)
	}
	return run
}

func TestImport_RerunIsIdempotent(t *testing.T) {
	store := memory.New()
	journal := &memJournal{}
	inval := &countingInvalidator{}
	svc := app.NewImportService(store, app.NewHierarchyService(store), journal, inval, 4)

	first := importCSV(t, svc, sampleCSV)
	if first.Created != 3 || first.Updated != 0 || first.Skipped != 1 {
		t.Fatalf("first run: %+v", first)
	}
	second := importCSV(t, svc, sampleCSV)
	if second.Created != 0 || second.Updated != 3 || second.Skipped != 1 {
		t.Fatalf("second run: %+v", second)
	}

	page, err := store.ListProperties(context.Background(), domain.ListingQuery{})
	if err != nil {
		t.Fatal(err)
	}
	if page.Total != 3 {
		t.Fatalf("want 3 properties after two runs, got %d", page.Total)
	}
	for _, p := range page.Properties {
		if p.DeveloperID == "" || p.ComplexID == "" || p.Source != "csv_import" || p.UpdatedBy != "import" {
			t.Fatalf("imported property: %+v", p)
		}
	}

	devs, _ := store.ListDevelopers(context.Background())
	if len(devs) != 2 {
		t.Fatalf("developers: %+v", devs)
	}
	if len(journal.started) != 2 || len(journal.finished) != 2 {
		t.Fatalf("journal runs: %d started, %d finished", len(journal.started), len(journal.finished))
	}
	if reason := journal.skips[3]; !strings.Contains(reason, "developer") {
		t.Fatalf("row 3 skip reason: %q", reason)
	}
	if inval.count() != 2 {
		t.Fatalf("invalidations = %d", inval.count())
	}
}

func TestImport_ComputedIdentity(t *testing.T) {
	store := memory.New()
	svc := app.NewImportService(store, app.NewHierarchyService(store), nil, nil, 1)
	importCSV(t, svc, "developer,complex,price,area\nlsr,gorizont,5000000,45\n")

	page, _ := store.ListProperties(context.Background(), domain.ListingQuery{})
	if page.Total != 1 {
		t.Fatalf("total = %d", page.Total)
	}
	p := page.Properties[0]
	if p.ExternalID != "lsr_gorizont_5000000_45" {
		t.Fatalf("externalId = %q", p.ExternalID)
	}
	if p.Title != "lsr gorizont" {
		t.Fatalf("title = %q", p.Title)
	}
}

func TestImport_JSONRecords(t *testing.T) {
	store := memory.New()
	svc := app.NewImportService(store, app.NewHierarchyService(store), nil, nil, 2)
	recs, err := app.ReadJSON(strings.NewReader(`{"properties":[
		{"externalId":"a1","source":"feed","developer":{"slug":"lsr"},"complexSlug":"gorizont",
		 "tags":{"price":5000000,"view":"sea"},"images":[{"url":"x.jpg"},"y.jpg"]},
		{"externalId":"a2","source":"feed","developer_slug":"lsr","complex":"gorizont","price":"6 100 000"}
	]}`))
	if err != nil {
		t.Fatal(err)
	}
	run, err := svc.Import(context.Background(), "json_import", recs)
	if err != nil {
		t.Fatal(err)
	}
	if run.Created != 2 || run.Skipped != 0 {
		t.Fatalf("run: %+v", run)
	}

	page, _ := store.ListProperties(context.Background(), domain.ListingQuery{Sort: domain.SortSpec{Key: domain.SortPrice}})
	first, second := page.Properties[0], page.Properties[1]
	if first.Source != "feed" || first.MainImage != "x.jpg" || len(first.Images) != 2 {
		t.Fatalf("first: %+v", first)
	}
	if v, _ := second.Tags.Number("price"); v != 6100000 {
		t.Fatalf("flat price column: %v", second.Tags)
	}
}

func TestImport_CancelledContextAborts(t *testing.T) {
	store := memory.New()
	svc := app.NewImportService(store, app.NewHierarchyService(store), nil, nil, 1)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	recs, _ := app.ReadCSV(strings.NewReader(sampleCSV))
	if _, err := svc.Import(ctx, "csv_import", recs); err == nil {
		t.Fatalf("cancelled import should report the context error")
	}
}
