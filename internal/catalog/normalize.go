package catalog

import (
	"bytes"
	"encoding/json"
	"net/url"
	"path"
	"strconv"
	"strings"

	"starcatalog/searchservice/internal/domain"
)

// ExtractID returns the last non-empty path segment of rawURL, or "" when there is none.
func ExtractID(rawURL string) string {
	rawURL = strings.TrimSpace(rawURL)
	if rawURL == "" {
		return ""
	}
	parsed, err := url.Parse(rawURL)
	if err != nil {
		return ""
	}
	trimmed := strings.TrimRight(parsed.Path, "/")
	if trimmed == "" {
		return ""
	}
	return path.Base(trimmed)
}

// text is a JSON scalar read as a string. Numbers keep their literal form. Null,
// objects and arrays leave it unset so callers fall through to the next candidate.
type text struct {
	value string
	set   bool
}

func (t *text) UnmarshalJSON(data []byte) error {
	data = bytes.TrimSpace(data)
	if len(data) == 0 {
		return nil
	}
	switch data[0] {
	case '"':
		var s string
		if err := json.Unmarshal(data, &s); err == nil {
			*t = text{value: s, set: true}
		}
	case 't', 'f':
		if b, err := strconv.ParseBool(string(data)); err == nil {
			*t = text{value: strconv.FormatBool(b), set: true}
		}
	case 'n', '{', '[':
	default:
		var n json.Number
		if err := json.Unmarshal(data, &n); err == nil {
			*t = text{value: n.String(), set: true}
		}
	}
	return nil
}

// urlList keeps the string elements of a JSON array and ignores everything else.
type urlList []string

func (l *urlList) UnmarshalJSON(data []byte) error {
	var items []json.RawMessage
	if err := json.Unmarshal(data, &items); err != nil {
		return nil
	}
	urls := make([]string, 0, len(items))
	for _, item := range items {
		var value string
		if err := json.Unmarshal(item, &value); err == nil {
			urls = append(urls, value)
		}
	}
	*l = urls
	return nil
}

// object decodes entityFields only when the value is a JSON object.
type object struct {
	fields entityFields
	ok     bool
}

func (o *object) UnmarshalJSON(data []byte) error {
	data = bytes.TrimSpace(data)
	if len(data) == 0 || data[0] != '{' {
		return nil
	}
	if err := json.Unmarshal(data, &o.fields); err != nil {
		return nil
	}
	o.ok = true
	return nil
}

// entityFields never fails to decode from an object: every field tolerates a
// mismatched JSON kind and stays unset instead.
type entityFields struct {
	UID          text    `json:"uid"`
	Name         text    `json:"name"`
	Title        text    `json:"title"`
	URL          text    `json:"url"`
	BirthYear    text    `json:"birth_year"`
	Gender       text    `json:"gender"`
	EyeColor     text    `json:"eye_color"`
	HairColor    text    `json:"hair_color"`
	Height       text    `json:"height"`
	Mass         text    `json:"mass"`
	Director     text    `json:"director"`
	OpeningCrawl text    `json:"opening_crawl"`
	Films        urlList `json:"films"`
	Characters   urlList `json:"characters"`
	Properties   *object `json:"properties"`
}

type wrappedResult struct {
	UID        text    `json:"uid"`
	Properties *object `json:"properties"`
}

type entityShape int

const (
	shapeUnknown entityShape = iota
	shapeFlat
	shapeWrapped
)

type entity struct {
	shape  entityShape
	fields entityFields
}

// decodeEntity reads the {"result":{"properties":{...}}} shape first, then the flat
// object shape, and otherwise yields an entity with every field absent.
func decodeEntity(raw json.RawMessage) entity {
	var envelope struct {
		Result json.RawMessage `json:"result"`
	}
	if err := json.Unmarshal(raw, &envelope); err == nil && len(envelope.Result) > 0 {
		var result wrappedResult
		if json.Unmarshal(envelope.Result, &result) == nil && result.Properties != nil && result.Properties.ok {
			fields := result.Properties.fields
			if !fields.UID.set {
				fields.UID = result.UID
			}
			return entity{shape: shapeWrapped, fields: fields}
		}
	}
	var flat entityFields
	if err := json.Unmarshal(raw, &flat); err == nil {
		return entity{shape: shapeFlat, fields: flat}
	}
	return entity{shape: shapeUnknown}
}

func (e entity) nested() entityFields {
	if e.fields.Properties == nil || !e.fields.Properties.ok {
		return entityFields{}
	}
	return e.fields.Properties.fields
}

func (e entity) relatedURLs(kind domain.ResourceKind) []string {
	var urls urlList
	if kind == domain.ResourceFilms {
		urls = e.fields.Characters
	} else {
		urls = e.fields.Films
	}
	if urls == nil {
		return []string{}
	}
	return []string(urls)
}

func first(values ...text) (string, bool) {
	for _, value := range values {
		if value.set {
			return value.value, true
		}
	}
	return "", false
}

func firstOr(fallback string, values ...text) string {
	if value, ok := first(values...); ok {
		return value
	}
	return fallback
}

// NormalizeListItem maps one entry of a collection page to a SearchListItem.
func NormalizeListItem(kind domain.ResourceKind, raw json.RawMessage) domain.SearchListItem {
	decoded := decodeEntity(raw)
	flat := decoded.fields
	nested := decoded.nested()

	var label string
	var subtitle text
	if kind == domain.ResourceFilms {
		label = firstOr(domain.UnknownLabel, flat.Title, nested.Title)
		subtitle = nested.Director
	} else {
		label = firstOr(domain.UnknownLabel, flat.Name, nested.Name)
		subtitle = nested.BirthYear
	}

	id, ok := first(flat.UID)
	if !ok {
		id = ExtractID(firstOr("", flat.URL, nested.URL))
	}

	item := domain.SearchListItem{
		ID:    id,
		Kind:  kind,
		Label: label,
	}
	if subtitle.set {
		value := subtitle.value
		item.Subtitle = &value
	}
	return item
}

func relatedID(requestedURL string, fields entityFields) string {
	return ExtractID(firstOr(requestedURL, fields.URL))
}

// NormalizeMovieRef maps a fetched film payload to a MovieRef. The ref is always
// produced, with "Unknown" standing in for a missing title.
func NormalizeMovieRef(requestedURL string, raw json.RawMessage) domain.MovieRef {
	fields := decodeEntity(raw).fields
	return domain.MovieRef{
		ID:    relatedID(requestedURL, fields),
		Title: firstOr(domain.UnknownLabel, fields.Title),
	}
}

func NormalizeCharacterRef(requestedURL string, raw json.RawMessage) domain.CharacterRef {
	fields := decodeEntity(raw).fields
	return domain.CharacterRef{
		ID:   relatedID(requestedURL, fields),
		Name: firstOr(domain.UnknownLabel, fields.Name),
	}
}

func NormalizePersonDetail(id string, raw json.RawMessage, movies []domain.MovieRef) domain.PersonDetail {
	fields := decodeEntity(raw).fields
	if movies == nil {
		movies = []domain.MovieRef{}
	}
	return domain.PersonDetail{
		ID:        id,
		Name:      firstOr(domain.UnknownLabel, fields.Name),
		BirthYear: firstOr("", fields.BirthYear),
		Gender:    firstOr("", fields.Gender),
		EyeColor:  firstOr("", fields.EyeColor),
		HairColor: firstOr("", fields.HairColor),
		Height:    firstOr("", fields.Height),
		Mass:      firstOr("", fields.Mass),
		Movies:    movies,
	}
}

func NormalizeFilmDetail(id string, raw json.RawMessage, characters []domain.CharacterRef) domain.FilmDetail {
	fields := decodeEntity(raw).fields
	if characters == nil {
		characters = []domain.CharacterRef{}
	}
	return domain.FilmDetail{
		ID:         id,
		Title:      firstOr(domain.UnknownLabel, fields.Title),
		Summary:    firstOr("", fields.OpeningCrawl),
		Characters: characters,
	}
}

// isEmptyPayload reports a 2xx body that carries no entity at all.
func isEmptyPayload(raw json.RawMessage) bool {
	switch string(bytes.TrimSpace(raw)) {
	case "", "null", "{}", "[]":
		return true
	default:
		return false
	}
}
