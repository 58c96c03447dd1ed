package httpserver_test

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	httpserver "realty_catalog/internal/adapters/http_server"
	"realty_catalog/internal/app"
	"realty_catalog/internal/domain"
	"realty_catalog/internal/storage/memory"
)

func newServer(t *testing.T) *httptest.Server {
	t.Helper()
	store := memory.New()
	q := app.NewQueryService(store, nil, 0)
	p := app.NewPropertyService(store, app.NewHierarchyService(store), q)

	srv := httpserver.New()
	srv.MountHandlers(&httpserver.Handlers{Q: q, P: p})
	ts := httptest.NewServer(srv.Mux())
	t.Cleanup(ts.Close)
	return ts
}

func do(t *testing.T, method, url, body string, hdr map[string]string) *http.Response {
	t.Helper()
	req, err := http.NewRequest(method, url, strings.NewReader(body))
	if err != nil {
		t.Fatal(err)
	}
	for k, v := range hdr {
		req.Header.Set(k, v)
	}
	res, err := http.DefaultClient.Do(req)
	if err != nil {
		t.Fatalf("%s %s: %v", method, url, err)
	}
	t.Cleanup(func() { _ = res.Body.Close() })
	return res
}

func decode[T any](t *testing.T, res *http.Response) T {
	t.Helper()
	var v T
	if err := json.NewDecoder(res.Body).Decode(&v); err != nil {
		t.Fatalf("decode: %v", err)
	}
	return v
}

func create(t *testing.T, base, body string) domain.Property {
	t.Helper()
	res := do(t, http.MethodPost, base+"/api/properties", body, nil)
	if res.StatusCode != http.StatusCreated {
		t.Fatalf("create status %d", res.StatusCode)
	}
	return decode[domain.Property](t, res)
}

func TestHealthz(t *testing.T) {
	ts := newServer(t)
	if res := do(t, http.MethodGet, ts.URL+"/healthz", "", nil); res.StatusCode != http.StatusOK {
		t.Fatalf("healthz %d", res.StatusCode)
	}
}

func TestCreateListAndETag(t *testing.T) {
	ts := newServer(t)
	p := create(t, ts.URL, `{"title":"A","developer":"dev_a","complex":"bay",
		"tags":{"price":"5000000","area":45,"rooms":2,"city":"Sochi"}}`)
	if p.UpdatedBy != domain.DefaultActor || p.Status != domain.StatusActive {
		t.Fatalf("audit defaults: %+v", p)
	}
	if price, ok := p.Tags.Number(domain.TagPrice); !ok || price != 5000000 {
		t.Fatalf("price should be normalized to a number: %v", p.Tags)
	}
	create(t, ts.URL, `{"title":"B","developer":"dev_a","complex":"bay","tags":{"price":7000000,"rooms":"3"}}`)

	res := do(t, http.MethodGet, ts.URL+"/api/properties?priceMax=6000000", "", nil)
	if res.StatusCode != http.StatusOK {
		t.Fatalf("list %d", res.StatusCode)
	}
	etag := res.Header.Get("ETag")
	if !strings.HasPrefix(etag, `W/"`) {
		t.Fatalf("weak etag expected, got %q", etag)
	}
	page := decode[domain.PropertyPage](t, res)
	if page.Total != 1 || page.Properties[0].Title != "A" {
		t.Fatalf("page = %+v", page)
	}

	res = do(t, http.MethodGet, ts.URL+"/api/properties?priceMax=6000000", "", map[string]string{"If-None-Match": etag})
	if res.StatusCode != http.StatusNotModified {
		t.Fatalf("expected 304, got %d", res.StatusCode)
	}
}

func TestDiscoveryEndpoints(t *testing.T) {
	ts := newServer(t)
	create(t, ts.URL, `{"title":"A","developer":"d","complex":"c","tags":{"price":100,"rooms":"1"}}`)
	create(t, ts.URL, `{"title":"B","developer":"d","complex":"c","tags":{"price":300,"rooms":"2"}}`)
	create(t, ts.URL, `{"title":"C","developer":"e","complex":"f","tags":{"price":900,"rooms":"2"}}`)

	ranges := decode[map[string]domain.Bounds](t, do(t, http.MethodGet, ts.URL+"/api/properties/ranges?developer=d", "", nil))
	b := ranges[domain.TagPrice]
	if b.Min == nil || *b.Min != 100 || b.Max == nil || *b.Max != 300 {
		t.Fatalf("scoped price range = %+v", b)
	}
	if a := ranges[domain.TagArea]; a.Min != nil || a.Max != nil {
		t.Fatalf("area has no data, want null bounds: %+v", a)
	}

	opts := decode[map[string][]domain.TagValue](t, do(t, http.MethodGet, ts.URL+"/api/properties/filter-options", "", nil))
	if rooms := opts[domain.TagRooms]; len(rooms) != 2 {
		t.Fatalf("rooms options = %v", rooms)
	}

	groups := decode[domain.GroupPage](t, do(t, http.MethodGet, ts.URL+"/api/complexes?sort=price-desc", "", nil))
	if groups.Total != 2 || groups.Complexes[0].Complex.Slug != "f" {
		t.Fatalf("groups = %+v", groups)
	}

	res := do(t, http.MethodGet, ts.URL+"/api/complexes/details?developer=d&complex=c", "", nil)
	if res.StatusCode != http.StatusOK {
		t.Fatalf("details %d", res.StatusCode)
	}
	detail := decode[domain.ComplexDetail](t, res)
	if detail.Stats.TotalUnits != 2 || detail.Developer.Slug != "d" {
		t.Fatalf("detail = %+v", detail)
	}

	if res := do(t, http.MethodGet, ts.URL+"/api/complexes/details?developer=d", "", nil); res.StatusCode != http.StatusBadRequest {
		t.Fatalf("missing complex should be 400, got %d", res.StatusCode)
	}
	if res := do(t, http.MethodGet, ts.URL+"/api/developers/nobody", "", nil); res.StatusCode != http.StatusNotFound {
		t.Fatalf("unknown developer should be 404, got %d", res.StatusCode)
	}
}

func TestUpdateDeleteAndErrors(t *testing.T) {
	ts := newServer(t)
	p := create(t, ts.URL, `{"title":"A","developer":"d","complex":"c","source":"feed","externalId":"1","tags":{"price":100}}`)

	res := do(t, http.MethodPost, ts.URL+"/api/properties", `{"title":"dup","developer":"d","complex":"c","source":"feed","externalId":"1"}`, nil)
	if res.StatusCode != http.StatusConflict {
		t.Fatalf("duplicate identity should be 409, got %d", res.StatusCode)
	}
	if ct := res.Header.Get("Content-Type"); ct != "application/problem+json" {
		t.Fatalf("problem content type, got %q", ct)
	}

	res = do(t, http.MethodPut, ts.URL+"/api/properties/"+p.ID, `{"title":"A2","updatedBy":"editor"}`, nil)
	if res.StatusCode != http.StatusOK {
		t.Fatalf("update %d", res.StatusCode)
	}
	upd := decode[domain.Property](t, res)
	if upd.Title != "A2" || upd.UpdatedBy != "editor" || upd.DeveloperSlug != "d" {
		t.Fatalf("update = %+v", upd)
	}

	if res := do(t, http.MethodPut, ts.URL+"/api/properties/not-an-id", `{}`, nil); res.StatusCode != http.StatusBadRequest {
		t.Fatalf("malformed id should be 400, got %d", res.StatusCode)
	}
	if res := do(t, http.MethodPut, ts.URL+"/api/properties/000000000000000000000000", `{}`, nil); res.StatusCode != http.StatusNotFound {
		t.Fatalf("missing id should be 404, got %d", res.StatusCode)
	}
	if res := do(t, http.MethodPost, ts.URL+"/api/properties", `{`, nil); res.StatusCode != http.StatusBadRequest {
		t.Fatalf("bad body should be 400, got %d", res.StatusCode)
	}

	if res := do(t, http.MethodDelete, ts.URL+"/api/properties/"+p.ID, "", nil); res.StatusCode != http.StatusOK {
		t.Fatalf("delete %d", res.StatusCode)
	}
	page := decode[domain.PropertyPage](t, do(t, http.MethodGet, ts.URL+"/api/properties", "", nil))
	if page.Total != 0 {
		t.Fatalf("removed property still listed: %+v", page)
	}
	got := decode[domain.Property](t, do(t, http.MethodGet, ts.URL+"/api/properties/"+p.ID, "", nil))
	if got.Status != domain.StatusRemoved {
		t.Fatalf("removed property must stay readable by id: %+v", got)
	}
}

func TestNonFiniteTagsAreDroppedOnWrite(t *testing.T) {
	ts := newServer(t)
	p := create(t, ts.URL, `{"title":"A","developer":"lsr","complex":"gorizont",
		"tags":{"price":"Infinity","area":"NaN","floor":"-Inf","rooms":"2"}}`)
	for _, attr := range []string{"price", "area", "floor"} {
		if _, ok := p.Tags[attr]; ok {
			t.Fatalf("%s should be dropped: %v", attr, p.Tags)
		}
	}

	for _, path := range []string{
		"/api/properties",
		"/api/properties?priceMax=NaN&priceMin=Inf",
		"/api/properties/ranges",
		"/api/complexes",
		"/api/complexes/details?developer=lsr&complex=gorizont",
	} {
		if res := do(t, http.MethodGet, ts.URL+path, "", nil); res.StatusCode != http.StatusOK {
			t.Fatalf("GET %s: %d", path, res.StatusCode)
		}
	}
}
