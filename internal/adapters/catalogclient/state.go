package catalogclient

import (
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"net/url"
	"os"
	"path/filepath"
	"strconv"

	"realty_catalog/internal/domain"
)

// QueryState is the client's browsing position: filters, sort and the page
// window. Methods return modified copies; a QueryState is never shared
// mutably. Filter and sort changes reset Skip to zero.
type QueryState struct {
	Ranges    map[string]domain.Range `json:"ranges,omitempty"`
	Sets      map[string][]string     `json:"sets,omitempty"`
	Developer string                  `json:"developer,omitempty"`
	Complex   string                  `json:"complex,omitempty"`
	Sort      string                  `json:"sort,omitempty"`

	// The page window is not persisted.
	Skip  int `json:"-"`
	Limit int `json:"-"`
}

func (s QueryState) clone() QueryState {
	out := s
	if s.Ranges != nil {
		out.Ranges = make(map[string]domain.Range, len(s.Ranges))
		for k, v := range s.Ranges {
			out.Ranges[k] = v
		}
	}
	if s.Sets != nil {
		out.Sets = make(map[string][]string, len(s.Sets))
		for k, v := range s.Sets {
			out.Sets[k] = append([]string(nil), v...)
		}
	}
	return out
}

// WithRange sets or clears (both nil) a bound pair on a ranged attribute.
func (s QueryState) WithRange(attr string, min, max *float64) QueryState {
	out := s.clone()
	out.Skip = 0
	r := domain.Range{Min: min, Max: max}
	if r.IsZero() {
		delete(out.Ranges, attr)
		return out
	}
	if out.Ranges == nil {
		out.Ranges = map[string]domain.Range{}
	}
	out.Ranges[attr] = r
	return out
}

// WithValues replaces the accepted values of a categorical attribute; no
// values clears the constraint.
func (s QueryState) WithValues(attr string, vals ...string) QueryState {
	out := s.clone()
	out.Skip = 0
	var keep []string
	for _, v := range vals {
		if v != "" {
			keep = append(keep, v)
		}
	}
	if len(keep) == 0 {
		delete(out.Sets, attr)
		return out
	}
	if out.Sets == nil {
		out.Sets = map[string][]string{}
	}
	out.Sets[attr] = keep
	return out
}

func (s QueryState) WithScope(developer, complex string) QueryState {
	out := s.clone()
	out.Skip = 0
	out.Developer, out.Complex = developer, complex
	return out
}

func (s QueryState) WithSort(token string) QueryState {
	out := s.clone()
	out.Skip = 0
	out.Sort = token
	return out
}

// Reset clears every filter and the sort but keeps the page size.
func (s QueryState) Reset() QueryState {
	return QueryState{Limit: s.Limit}
}

func (s QueryState) pageSize() int {
	if s.Limit <= 0 {
		return domain.DefaultLimit
	}
	return s.Limit
}

// Values encodes the state as the query parameters the read API accepts.
func (s QueryState) Values() url.Values {
	v := url.Values{}
	for attr, r := range s.Ranges {
		if r.Min != nil {
			v[attr+"Min"] = []string{strconv.FormatFloat(*r.Min, 'f', -1, 64)}
		}
		if r.Max != nil {
			v[attr+"Max"] = []string{strconv.FormatFloat(*r.Max, 'f', -1, 64)}
		}
	}
	for attr, vals := range s.Sets {
		if len(vals) > 0 {
			v[attr] = append([]string(nil), vals...)
		}
	}
	if s.Developer != "" {
		v["developer"] = []string{s.Developer}
	}
	if s.Complex != "" {
		v["complex"] = []string{s.Complex}
	}
	if s.Sort != "" {
		v["sort"] = []string{s.Sort}
	}
	v["limit"] = []string{strconv.Itoa(s.pageSize())}
	if s.Skip > 0 {
		v["skip"] = []string{strconv.Itoa(s.Skip)}
	}
	return v
}

// Key identifies the filter+sort combination, ignoring the page window.
func (s QueryState) Key() string {
	vals := s.Values()
	vals.Del("skip")
	vals.Del("limit")
	return vals.Encode()
}

// LoadState reads persisted filters and sort. A missing file yields the
// zero state.
func LoadState(path string) (QueryState, error) {
	var st QueryState
	b, err := os.ReadFile(path)
	if errors.Is(err, fs.ErrNotExist) {
		return st, nil
	}
	if err != nil {
		return st, err
	}
	if err := json.Unmarshal(b, &st); err != nil {
		return QueryState{}, fmt.Errorf("state file %s: %w", path, err)
	}
	return st, nil
}

// Save writes filters and sort atomically (temp file + rename).
func (s QueryState) Save(path string) error {
	b, err := json.MarshalIndent(s, "", "  ")
	if err != nil {
		return err
	}
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return err
	}
	tmp, err := os.CreateTemp(dir, ".state-*")
	if err != nil {
		return err
	}
	defer os.Remove(tmp.Name())
	if _, err := tmp.Write(b); err != nil {
		tmp.Close()
		return err
	}
	if err := tmp.Close(); err != nil {
		return err
	}
	return os.Rename(tmp.Name(), path)
}
