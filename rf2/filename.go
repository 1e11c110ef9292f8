// Package rf2 implements C1 (the RF2 filename classifier) and C2 (the RF2
// row parser), turning release files into snomed.Concept/Description/
// Relationship/ReferenceSetItem records (spec.md §4.1). Those record types
// live in package snomed and mirror the release file columns; package store
// persists them unchanged.
package rf2

import (
	"fmt"
	"regexp"
)

// Kind identifies which core component family, or the reference-set family,
// a release filename names.
type Kind int

const (
	KindUnknown Kind = iota
	KindConcept
	KindDescription
	KindRelationship
	KindStatedRelationship
	KindTextDefinition
	KindRefset
)

func (k Kind) String() string {
	switch k {
	case KindConcept:
		return "Concept"
	case KindDescription:
		return "Description"
	case KindRelationship:
		return "Relationship"
	case KindStatedRelationship:
		return "StatedRelationship"
	case KindTextDefinition:
		return "TextDefinition"
	case KindRefset:
		return "Refset"
	default:
		return "Unknown"
	}
}

// FileInfo is the decoded form of an RF2 release filename:
// [FileType]_[ContentType]_[ContentSubType]_[CountryNamespace]_[VersionDate].[FileExtension]
type FileInfo struct {
	Kind Kind
	// Pattern holds the c|i|s characters preceding "Refset" in a reference
	// set filename (e.g. "ci" for a two-extra-column map refset); empty for
	// core component files.
	Pattern string
	// ReleaseType is Full, Snapshot, or Delta.
	ReleaseType string
	// Namespace is the country/namespace component (e.g. "INT").
	Namespace string
	// VersionDate is the YYYYMMDD component.
	VersionDate string
}

var (
	coreFilenameRE = regexp.MustCompile(
		`^x?sct2_([A-Za-z]+?)_(Full|Snapshot|Delta)(?:-[A-Za-z]+)?_([A-Za-z0-9]+)_(\d{8})\.txt$`)
	refsetFilenameRE = regexp.MustCompile(
		`^x?der2_([cis]*)Refset_[A-Za-z]*?(Full|Snapshot|Delta)(?:-[A-Za-z]+)?_([A-Za-z0-9]+)_(\d{8})\.txt$`)
)

// ParseFilename decodes an RF2 release filename. Only snapshot-shaped names
// are expected in practice (full imports only ever ingest snapshot files,
// per RF2 convention), but Full and Delta are decoded the same way.
func ParseFilename(name string) (FileInfo, error) {
	if m := coreFilenameRE.FindStringSubmatch(name); m != nil {
		kind, err := coreKind(m[1])
		if err != nil {
			return FileInfo{}, fmt.Errorf("parse filename %q: %w", name, err)
		}
		return FileInfo{
			Kind:        kind,
			ReleaseType: m[2],
			Namespace:   m[3],
			VersionDate: m[4],
		}, nil
	}
	if m := refsetFilenameRE.FindStringSubmatch(name); m != nil {
		return FileInfo{
			Kind:        KindRefset,
			Pattern:     m[1],
			ReleaseType: m[2],
			Namespace:   m[3],
			VersionDate: m[4],
		}, nil
	}
	return FileInfo{}, fmt.Errorf("filename %q does not match any recognized RF2 pattern", name)
}

func coreKind(entity string) (Kind, error) {
	switch entity {
	case "Concept":
		return KindConcept, nil
	case "Description":
		return KindDescription, nil
	case "Relationship":
		return KindRelationship, nil
	case "StatedRelationship":
		return KindStatedRelationship, nil
	case "TextDefinition":
		return KindTextDefinition, nil
	default:
		return KindUnknown, fmt.Errorf("unrecognized core entity %q", entity)
	}
}

// Rank orders file kinds so that ingestion processes concepts before
// descriptions/relationships, and those before refsets (spec.md §4.1). All
// refset files share one rank; FileTask.subRank puts RefsetDescriptor files
// ahead of the other refset files, since reification needs a refset's
// descriptor already stored.
func (k Kind) Rank() int {
	switch k {
	case KindConcept:
		return 0
	case KindDescription, KindTextDefinition:
		return 1
	case KindRelationship, KindStatedRelationship:
		return 1
	case KindRefset:
		return 2
	default:
		return 3
	}
}
