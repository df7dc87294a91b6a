package harvest

import (
	"net/url"
	"path"
	"strings"
)

// Link is a single catalog entry: the primary archive URL and the
// identifier derived from it.
type Link struct {
	URL string
	ID  string
}

// NewLink builds a Link from an absolute archive URL.
// Returns EINVALID if no identifier can be derived from the URL.
func NewLink(rawURL string) (Link, error) {
	id, err := IdentifierFromURL(rawURL)
	if err != nil {
		return Link{}, err
	}
	return Link{URL: rawURL, ID: id}, nil
}

// IdentifierFromURL derives the resource identifier from an archive URL.
// The identifier is the path segment preceding the filename, so
// https://host/files/1/2/3/123/123.zip yields "123". A URL whose path
// holds only a filename yields the filename without its extension.
func IdentifierFromURL(rawURL string) (string, error) {
	u, err := url.Parse(rawURL)
	if err != nil {
		return "", Errorf(EINVALID, "invalid archive URL %q: %v", rawURL, err)
	}

	var segments []string
	for _, s := range strings.Split(u.Path, "/") {
		if s != "" {
			segments = append(segments, s)
		}
	}

	switch len(segments) {
	case 0:
		return "", Errorf(EINVALID, "no identifier in archive URL %q", rawURL)
	case 1:
		name := segments[0]
		if stem := strings.TrimSuffix(name, path.Ext(name)); stem != "" {
			return stem, nil
		}
		return "", Errorf(EINVALID, "no identifier in archive URL %q", rawURL)
	default:
		return segments[len(segments)-2], nil
	}
}

// ArchiveFileName returns the staging file name for an identifier.
func ArchiveFileName(id string) string {
	return id + ".zip"
}

// DocumentFileName returns the output file name for an identifier.
func DocumentFileName(id string) string {
	return id + ".txt"
}
