// Package zip provides archive validation and payload extraction for
// zip archives.
package zip

import (
	stdzip "archive/zip"
	"fmt"
	"io"
	"strings"

	"github.com/fwojciec/harvest"
)

// DefaultPayloadSuffix is the member name suffix that marks text payload.
const DefaultPayloadSuffix = ".txt"

// Ensure Validator implements harvest.ArchiveValidator at compile time.
var _ harvest.ArchiveValidator = (*Validator)(nil)

// Validator checks that an archive is readable and carries a non-empty
// text payload.
type Validator struct {
	suffix string
}

// Option configures a Validator or Extractor.
type Option func(*options)

type options struct {
	suffix string
}

// WithPayloadSuffix sets the member name suffix identifying text payload.
// Defaults to DefaultPayloadSuffix.
func WithPayloadSuffix(suffix string) Option {
	return func(o *options) {
		o.suffix = suffix
	}
}

func buildOptions(opts []Option) options {
	o := options{suffix: DefaultPayloadSuffix}
	for _, opt := range opts {
		opt(&o)
	}
	return o
}

// NewValidator creates a new Validator.
func NewValidator(opts ...Option) *Validator {
	o := buildOptions(opts)
	return &Validator{suffix: o.suffix}
}

// Validate inspects the archive at path. Checks run in order and stop at
// the first failure: every member must decompress with a matching
// checksum, at least one member must be payload, and no payload member
// may be empty.
func (v *Validator) Validate(path string) harvest.ValidationResult {
	r, err := stdzip.OpenReader(path)
	if err != nil {
		return invalid(harvest.ReasonCorrupt)
	}
	defer r.Close()

	for _, f := range r.File {
		if err := verifyMember(f); err != nil {
			return invalid(harvest.ReasonCorrupt)
		}
	}

	payload := payloadMembers(r.File, v.suffix)
	if len(payload) == 0 {
		return invalid(harvest.ReasonNoPayload)
	}

	for _, f := range payload {
		if f.UncompressedSize64 == 0 {
			return invalid(harvest.ReasonEmptyPayload)
		}
	}

	return harvest.ValidationResult{Valid: true}
}

func invalid(reason string) harvest.ValidationResult {
	return harvest.ValidationResult{Reason: reason}
}

// verifyMember reads a member to the end so archive/zip checks its CRC-32.
func verifyMember(f *stdzip.File) error {
	if f.FileInfo().IsDir() {
		return nil
	}
	rc, err := f.Open()
	if err != nil {
		return fmt.Errorf("open %s: %w", f.Name, err)
	}
	defer rc.Close()
	if _, err := io.Copy(io.Discard, rc); err != nil {
		return fmt.Errorf("read %s: %w", f.Name, err)
	}
	return nil
}

// payloadMembers returns the regular files whose name ends with suffix.
func payloadMembers(files []*stdzip.File, suffix string) []*stdzip.File {
	var payload []*stdzip.File
	for _, f := range files {
		if f.FileInfo().IsDir() {
			continue
		}
		if strings.HasSuffix(f.Name, suffix) {
			payload = append(payload, f)
		}
	}
	return payload
}
