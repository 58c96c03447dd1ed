package app_test

import (
	"strings"
	"testing"

	"realty_catalog/internal/app"
)

func TestReadRecords_ByExtension(t *testing.T) {
	csvRecs, err := app.ReadRecords("feed.CSV", strings.NewReader("developer, complex ,price\nlsr,gorizont,\n"))
	if err != nil {
		t.Fatal(err)
	}
	if len(csvRecs) != 1 || csvRecs[0]["complex"] != "gorizont" {
		t.Fatalf("csv: %+v", csvRecs)
	}
	if _, ok := csvRecs[0]["price"]; ok {
		t.Fatalf("empty cells must be omitted")
	}

	nd, err := app.ReadRecords("feed.ndjson", strings.NewReader(`{"developer":"lsr"}
{"developer":"pik"}
[{"developer":"etalon"}, 7]`))
	if err != nil {
		t.Fatal(err)
	}
	if len(nd) != 3 || nd[2]["developer"] != "etalon" {
		t.Fatalf("ndjson: %+v", nd)
	}
}

func TestReadJSON_Errors(t *testing.T) {
	if _, err := app.ReadJSON(strings.NewReader(`"just a string"`)); err == nil {
		t.Fatal("scalar top-level value should fail")
	}
	if _, err := app.ReadJSON(strings.NewReader(`{"broken":`)); err == nil {
		t.Fatal("truncated json should fail")
	}
	recs, err := app.ReadJSON(strings.NewReader(`{"items":[{"a":1}]}`))
	if err != nil || len(recs) != 1 {
		t.Fatalf("items wrapper: %v %v", recs, err)
	}
}

func TestReadCSV_Empty(t *testing.T) {
	recs, err := app.ReadCSV(strings.NewReader(""))
	if err != nil || recs != nil {
		t.Fatalf("empty input: %v %v", recs, err)
	}
}
