// Package harvest provides a concurrent, resumable bulk harvester for
// paginated catalogs of zip archives. It walks the catalog page by page,
// downloads every archive with mirror fallback and retries, validates and
// extracts the text payload, strips source boilerplate, and writes one
// normalized text document per identifier.
//
// This package contains domain types and interfaces following Ben Johnson's
// Standard Package Layout. Implementations live in subdirectories named
// after their primary dependency (e.g., http/, goquery/, sqlite/, zip/).
package harvest
