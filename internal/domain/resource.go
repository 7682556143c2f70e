package domain

// ResourceKind selects the upstream collection and the normalization rules.
type ResourceKind string

const (
	ResourcePeople ResourceKind = "people"
	ResourceFilms  ResourceKind = "films"
)

// ParseResourceKind accepts exactly "people" or "films".
func ParseResourceKind(raw string) (ResourceKind, error) {
	switch ResourceKind(raw) {
	case ResourcePeople:
		return ResourcePeople, nil
	case ResourceFilms:
		return ResourceFilms, nil
	default:
		return "", ErrInvalidResource
	}
}

func (k ResourceKind) Valid() bool {
	return k == ResourcePeople || k == ResourceFilms
}

// QueryKey is the upstream search parameter for the collection.
func (k ResourceKind) QueryKey() string {
	if k == ResourceFilms {
		return "title"
	}
	return "name"
}

// RelatedField names the array of related-entity URLs on a detail payload.
func (k ResourceKind) RelatedField() string {
	if k == ResourceFilms {
		return "characters"
	}
	return "films"
}
