package rf2

import (
	"fmt"
	"strconv"
	"strings"
	"time"

	"google.golang.org/protobuf/types/known/timestamppb"

	"github.com/tporcham/hermes/snomed"
)

// ConceptColumns, DescriptionColumns, and RelationshipColumns are the fixed
// RF2 header layouts for the three core component files (spec.md §3).
var (
	ConceptColumns      = []string{"id", "effectiveTime", "active", "moduleId", "definitionStatusId"}
	DescriptionColumns  = []string{"id", "effectiveTime", "active", "moduleId", "conceptId", "languageCode", "typeId", "term", "caseSignificanceId"}
	RelationshipColumns = []string{"id", "effectiveTime", "active", "moduleId", "sourceId", "destinationId", "relationshipGroup", "typeId", "characteristicTypeId", "modifierId"}
	RefsetHeaderColumns = []string{"id", "effectiveTime", "active", "moduleId", "refsetId", "referencedComponentId"}
)

// ParseError records a row that could not be parsed at all (bad shape,
// non-numeric c/i field, bad date) — recoverable; the caller continues with
// the remaining rows in the batch (spec.md §7).
type ParseError struct {
	Line int
	Err  error
}

func (e *ParseError) Error() string { return fmt.Sprintf("line %d: %v", e.Line, e.Err) }
func (e *ParseError) Unwrap() error { return e.Err }

// ValidationError records a row whose SCTID failed Verhoeff validation.
// Ingestion is lenient: the row is still admitted (spec.md §4.1, §7).
type ValidationError struct {
	Line int
	ID   int64
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("line %d: identifier %d failed Verhoeff validation", e.Line, e.ID)
}

// SplitHeader splits a tab-delimited header line and validates it against want.
func SplitHeader(line string, want []string) error {
	got := strings.Split(strings.TrimRight(line, "\r\n"), "\t")
	if len(got) < len(want) {
		return fmt.Errorf("header has %d columns, want at least %d", len(got), len(want))
	}
	for i, w := range want {
		if got[i] != w {
			return fmt.Errorf("header column %d is %q, want %q", i, got[i], w)
		}
	}
	return nil
}

func splitRow(line string) []string {
	return strings.Split(strings.TrimRight(line, "\r\n"), "\t")
}

func parseDate(s string) (*timestamppb.Timestamp, error) {
	t, err := time.Parse("20060102", s)
	if err != nil {
		return nil, fmt.Errorf("parse date %q: %w", s, err)
	}
	return timestamppb.New(t), nil
}

func parseBool(s string) (bool, error) {
	switch s {
	case "1":
		return true, nil
	case "0":
		return false, nil
	default:
		return false, fmt.Errorf("invalid boolean %q", s)
	}
}

func parseInt(s string) (int64, error) {
	n, err := strconv.ParseInt(s, 10, 64)
	if err != nil {
		return 0, fmt.Errorf("invalid integer %q: %w", s, err)
	}
	return n, nil
}

// ParseConcept parses one Concept row. A failed Verhoeff check is reported
// via the returned *ValidationError alongside the (still valid) concept;
// callers admit the row regardless (spec.md §4.1).
func ParseConcept(line int, row string) (*snomed.Concept, *ValidationError, error) {
	f := splitRow(row)
	if len(f) < 5 {
		return nil, nil, &ParseError{Line: line, Err: fmt.Errorf("expected 5 columns, got %d", len(f))}
	}
	id, err := parseInt(f[0])
	if err != nil {
		return nil, nil, &ParseError{Line: line, Err: err}
	}
	et, err := parseDate(f[1])
	if err != nil {
		return nil, nil, &ParseError{Line: line, Err: err}
	}
	active, err := parseBool(f[2])
	if err != nil {
		return nil, nil, &ParseError{Line: line, Err: err}
	}
	moduleID, err := parseInt(f[3])
	if err != nil {
		return nil, nil, &ParseError{Line: line, Err: err}
	}
	defStatus, err := parseInt(f[4])
	if err != nil {
		return nil, nil, &ParseError{Line: line, Err: err}
	}
	c := &snomed.Concept{ID: id, EffectiveTime: et, Active: active, ModuleID: moduleID, DefinitionStatusID: defStatus}
	var verr *ValidationError
	if !snomed.Identifier(id).IsValid() {
		verr = &ValidationError{Line: line, ID: id}
	}
	return c, verr, nil
}

// ParseDescription parses one Description row.
func ParseDescription(line int, row string) (*snomed.Description, *ValidationError, error) {
	f := splitRow(row)
	if len(f) < 9 {
		return nil, nil, &ParseError{Line: line, Err: fmt.Errorf("expected 9 columns, got %d", len(f))}
	}
	id, err := parseInt(f[0])
	if err != nil {
		return nil, nil, &ParseError{Line: line, Err: err}
	}
	et, err := parseDate(f[1])
	if err != nil {
		return nil, nil, &ParseError{Line: line, Err: err}
	}
	active, err := parseBool(f[2])
	if err != nil {
		return nil, nil, &ParseError{Line: line, Err: err}
	}
	moduleID, err := parseInt(f[3])
	if err != nil {
		return nil, nil, &ParseError{Line: line, Err: err}
	}
	conceptID, err := parseInt(f[4])
	if err != nil {
		return nil, nil, &ParseError{Line: line, Err: err}
	}
	typeID, err := parseInt(f[6])
	if err != nil {
		return nil, nil, &ParseError{Line: line, Err: err}
	}
	caseSig, err := parseInt(f[8])
	if err != nil {
		return nil, nil, &ParseError{Line: line, Err: err}
	}
	d := &snomed.Description{
		ID: id, EffectiveTime: et, Active: active, ModuleID: moduleID,
		ConceptID: conceptID, LanguageCode: f[5], TypeID: typeID, Term: f[7], CaseSignificanceID: caseSig,
	}
	var verr *ValidationError
	if !snomed.Identifier(id).IsValid() {
		verr = &ValidationError{Line: line, ID: id}
	}
	return d, verr, nil
}

// ParseRelationship parses one Relationship row (also used for
// StatedRelationship files, which share the column layout).
func ParseRelationship(line int, row string) (*snomed.Relationship, *ValidationError, error) {
	f := splitRow(row)
	if len(f) < 10 {
		return nil, nil, &ParseError{Line: line, Err: fmt.Errorf("expected 10 columns, got %d", len(f))}
	}
	vals := make([]int64, 0, 9)
	for i, idx := range []int{0, 3, 4, 5, 6, 7, 8, 9} {
		_ = i
		n, err := parseInt(f[idx])
		if err != nil {
			return nil, nil, &ParseError{Line: line, Err: err}
		}
		vals = append(vals, n)
	}
	et, err := parseDate(f[1])
	if err != nil {
		return nil, nil, &ParseError{Line: line, Err: err}
	}
	active, err := parseBool(f[2])
	if err != nil {
		return nil, nil, &ParseError{Line: line, Err: err}
	}
	r := &snomed.Relationship{
		ID: vals[0], EffectiveTime: et, Active: active, ModuleID: vals[1],
		SourceID: vals[2], DestinationID: vals[3], RelationshipGroup: vals[4],
		TypeID: vals[5], CharacteristicTypeID: vals[6], ModifierID: vals[7],
	}
	var verr *ValidationError
	if !snomed.Identifier(r.ID).IsValid() {
		verr = &ValidationError{Line: line, ID: r.ID}
	}
	return r, verr, nil
}

// GenericRefsetRow is the C2 intermediate form of a reference-set row: the
// six shared header fields plus the dynamic field vector described by the
// filename's pattern string. Reify (refset.go) turns this into a concrete
// snomed.ReferenceSetItem.
type GenericRefsetRow struct {
	Header  snomed.ReferenceSetItemHeader
	Pattern string
	Fields  []string
}

// ParseRefsetRow parses the six shared header columns of a reference-set row
// and captures the remaining len(pattern) columns verbatim for Reify to
// interpret according to the refset's concrete kind.
func ParseRefsetRow(line int, row, pattern string) (*GenericRefsetRow, *ValidationError, error) {
	f := splitRow(row)
	if len(f) < 6+len(pattern) {
		return nil, nil, &ParseError{Line: line, Err: fmt.Errorf("expected at least %d columns, got %d", 6+len(pattern), len(f))}
	}
	et, err := parseDate(f[1])
	if err != nil {
		return nil, nil, &ParseError{Line: line, Err: err}
	}
	active, err := parseBool(f[2])
	if err != nil {
		return nil, nil, &ParseError{Line: line, Err: err}
	}
	moduleID, err := parseInt(f[3])
	if err != nil {
		return nil, nil, &ParseError{Line: line, Err: err}
	}
	refsetID, err := parseInt(f[4])
	if err != nil {
		return nil, nil, &ParseError{Line: line, Err: err}
	}
	componentID, err := parseInt(f[5])
	if err != nil {
		return nil, nil, &ParseError{Line: line, Err: err}
	}
	row2 := &GenericRefsetRow{
		Header: snomed.ReferenceSetItemHeader{
			ID: f[0], EffectiveTime: et, Active: active, ModuleID: moduleID,
			RefsetID: refsetID, ReferencedComponentID: componentID,
		},
		Pattern: pattern,
		Fields:  f[6 : 6+len(pattern)],
	}
	// reference set item ids are UUIDs, not SCTIDs: no Verhoeff check applies.
	return row2, nil, nil
}
