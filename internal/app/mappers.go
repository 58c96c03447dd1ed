package app

import (
	"fmt"
	"strings"

	"realty_catalog/internal/domain"
)

/********** alias registries (single source of truth) **********/

var recordAliases = map[string][]string{
	"developer":   {"developerSlug", "developer_slug", "developer", "developer.slug"},
	"complex":     {"complexSlug", "complex_slug", "complex", "complex.slug"},
	"title":       {"title", "name", "tags.title"},
	"description": {"description", "desc", "text"},
	"external_id": {"externalId", "external_id", "externalID"},
	"source":      {"source", "origin"},
	"main_image":  {"mainImage", "main_image", "cover"},
}

// tagColumns are flat record keys copied into tags.
var tagColumns = []string{
	domain.TagPrice, domain.TagArea, domain.TagFloor, domain.TagRooms, domain.TagCity,
	domain.TagType, domain.TagView, domain.TagFinishing, domain.TagPayment,
	domain.TagDelivery, domain.TagSeaDistance,
}

/********** tiny helpers **********/

// lookupAny: safe nested lookup with dot paths on maps.
func lookupAny(m map[string]any, path string) any {
	if v, ok := m[path]; ok {
		return v
	}
	cur := any(m)
	for _, part := range strings.Split(path, ".") {
		obj, ok := cur.(map[string]any)
		if !ok {
			return nil
		}
		v, ok := obj[part]
		if !ok {
			return nil
		}
		cur = v
	}
	return cur
}

// lookupText returns the value at path rendered as text, or "".
func lookupText(m map[string]any, path string) string {
	switch v := lookupAny(m, path).(type) {
	case nil:
		return ""
	case string:
		return strings.TrimSpace(v)
	case map[string]any, []any:
		return ""
	default:
		return domain.TagFromAny(v).String()
	}
}

// firstNonEmptyAlias: first non-empty text for a named alias set.
func firstNonEmptyAlias(m map[string]any, key string) string {
	for _, p := range recordAliases[key] {
		if s := lookupText(m, p); s != "" {
			return s
		}
	}
	return ""
}

func deref(p *string) string {
	if p == nil {
		return ""
	}
	return *p
}

// sliceStrings accepts []any of strings or {url/src}, or a comma-separated string.
func sliceStrings(m map[string]any, paths ...string) []string {
	for _, k := range paths {
		switch raw := lookupAny(m, k).(type) {
		case []any:
			out := make([]string, 0, len(raw))
			for _, it := range raw {
				switch t := it.(type) {
				case string:
					if t = strings.TrimSpace(t); t != "" {
						out = append(out, t)
					}
				case map[string]any:
					if u, ok := t["url"].(string); ok && u != "" {
						out = append(out, u)
					} else if u, ok := t["src"].(string); ok && u != "" {
						out = append(out, u)
					}
				}
			}
			if len(out) > 0 {
				return out
			}
		case []string:
			if len(raw) > 0 {
				return raw
			}
		case string:
			var out []string
			for _, part := range strings.Split(raw, ",") {
				if p := strings.TrimSpace(part); p != "" {
					out = append(out, p)
				}
			}
			if len(out) > 0 {
				return out
			}
		}
	}
	return nil
}

/********** record mapper **********/

type importDraft struct {
	prop          domain.Property
	developerSlug string
	complexSlug   string
}

// mapRecord turns one tabular or JSON record into a property draft. The
// identity defaults to developer_complex_price_area when the record has none.
func mapRecord(rec map[string]any, defaultSource string) (importDraft, error) {
	dev := firstNonEmptyAlias(rec, "developer")
	cx := firstNonEmptyAlias(rec, "complex")
	if dev == "" || cx == "" {
		return importDraft{}, fmt.Errorf("missing developer or complex: %w", domain.ErrInvalid)
	}

	tags := domain.Tags{}
	if nested, ok := rec["tags"].(map[string]any); ok {
		for k, v := range nested {
			tags[k] = domain.TagFromAny(v)
		}
	}
	for _, col := range tagColumns {
		if s := lookupText(rec, col); s != "" {
			tags[col] = domain.TagFromAny(lookupAny(rec, col))
		}
	}

	extID := firstNonEmptyAlias(rec, "external_id")
	if extID == "" {
		extID = fmt.Sprintf("%s_%s_%s_%s", dev, cx, tags[domain.TagPrice].String(), tags[domain.TagArea].String())
	}
	source := firstNonEmptyAlias(rec, "source")
	if source == "" {
		source = defaultSource
	}
	title := firstNonEmptyAlias(rec, "title")
	if title == "" {
		title = dev + " " + cx
	}

	p := domain.Property{
		Title:       title,
		Description: firstNonEmptyAlias(rec, "description"),
		Tags:        tags.Normalize(),
		Images:      sliceStrings(rec, "images", "photos"),
		MainImage:   firstNonEmptyAlias(rec, "main_image"),
		Source:      source,
		ExternalID:  extID,
		Status:      domain.StatusActive,
	}
	if p.MainImage == "" && len(p.Images) > 0 {
		p.MainImage = p.Images[0]
	}
	return importDraft{prop: p, developerSlug: dev, complexSlug: cx}, nil
}
