package zip

import (
	stdzip "archive/zip"
	"fmt"
	"io"
	"strings"

	"github.com/fwojciec/harvest"
)

// Ensure Extractor implements harvest.ArchiveExtractor at compile time.
var _ harvest.ArchiveExtractor = (*Extractor)(nil)

// Extractor reads text payload members straight out of an archive without
// unpacking it to disk.
type Extractor struct {
	suffix string
}

// NewExtractor creates a new Extractor.
func NewExtractor(opts ...Option) *Extractor {
	o := buildOptions(opts)
	return &Extractor{suffix: o.suffix}
}

// Extract returns every payload member in archive order. Invalid UTF-8
// sequences are dropped from the decoded text.
func (e *Extractor) Extract(path string) ([]harvest.Member, error) {
	r, err := stdzip.OpenReader(path)
	if err != nil {
		return nil, harvest.Errorf(harvest.EINVALID, "open archive %s: %v", path, err)
	}
	defer r.Close()

	var members []harvest.Member
	for _, f := range payloadMembers(r.File, e.suffix) {
		text, err := readMember(f)
		if err != nil {
			return nil, harvest.Errorf(harvest.EINVALID, "read archive %s: %v", path, err)
		}
		members = append(members, harvest.Member{Name: f.Name, Text: text})
	}
	return members, nil
}

func readMember(f *stdzip.File) (string, error) {
	rc, err := f.Open()
	if err != nil {
		return "", fmt.Errorf("open %s: %w", f.Name, err)
	}
	defer rc.Close()

	data, err := io.ReadAll(rc)
	if err != nil {
		return "", fmt.Errorf("read %s: %w", f.Name, err)
	}
	return strings.ToValidUTF8(string(data), ""), nil
}
