package rf2

import (
	"testing"

	"github.com/tporcham/hermes/snomed"
)

func TestParseFilename(t *testing.T) {
	cases := []struct {
		name        string
		wantKind    Kind
		wantPattern string
	}{
		{"sct2_Concept_Snapshot_INT_20190731.txt", KindConcept, ""},
		{"sct2_Description_Snapshot-en_INT_20190731.txt", KindDescription, ""},
		{"sct2_StatedRelationship_Snapshot_INT_20190731.txt", KindStatedRelationship, ""},
		{"der2_cRefset_AttributeValueSnapshot_INT_20190731.txt", KindRefset, "c"},
		{"der2_cRefset_LanguageSnapshot-en_INT_20190731.txt", KindRefset, "c"},
		{"der2_ciRefset_ComplexMapSnapshot_INT_20190731.txt", KindRefset, "ci"},
		{"der2_Refset_SimpleSnapshot_INT_20190731.txt", KindRefset, ""},
	}
	for _, c := range cases {
		info, err := ParseFilename(c.name)
		if err != nil {
			t.Fatalf("ParseFilename(%q): %v", c.name, err)
		}
		if info.Kind != c.wantKind {
			t.Errorf("ParseFilename(%q).Kind = %v, want %v", c.name, info.Kind, c.wantKind)
		}
		if info.Pattern != c.wantPattern {
			t.Errorf("ParseFilename(%q).Pattern = %q, want %q", c.name, info.Pattern, c.wantPattern)
		}
		if info.VersionDate != "20190731" {
			t.Errorf("ParseFilename(%q).VersionDate = %q, want 20190731", c.name, info.VersionDate)
		}
	}
}

func TestParseFilenameRejectsGarbage(t *testing.T) {
	if _, err := ParseFilename("not_a_release_file.txt"); err == nil {
		t.Fatal("expected an error for an unrecognized filename")
	}
}

func TestParseConcept(t *testing.T) {
	row := "24700007\t20170731\t1\t900000000000207008\t900000000000074008"
	c, verr, err := ParseConcept(1, row)
	if err != nil {
		t.Fatal(err)
	}
	if verr != nil {
		t.Fatalf("unexpected validation error: %v", verr)
	}
	if c.ID != 24700007 || !c.Active || c.DefinitionStatusID != snomed.Primitive {
		t.Fatalf("unexpected concept: %+v", c)
	}
}

func TestParseConceptLeniencyOnBadCheckDigit(t *testing.T) {
	row := "24700001\t20170731\t1\t900000000000207008\t900000000000074008"
	c, verr, err := ParseConcept(1, row)
	if err != nil {
		t.Fatal(err)
	}
	if verr == nil {
		t.Fatal("expected a validation error for a bad check digit")
	}
	if c == nil || c.ID != 24700001 {
		t.Fatal("row with bad check digit must still be admitted")
	}
}

func TestParseDescription(t *testing.T) {
	row := "41398015\t20170731\t1\t900000000000207008\t24700007\ten\t900000000000013009\tMultiple sclerosis\t900000000000448009"
	d, _, err := ParseDescription(1, row)
	if err != nil {
		t.Fatal(err)
	}
	if d.ConceptID != 24700007 || d.Term != "Multiple sclerosis" || !d.IsSynonym() {
		t.Fatalf("unexpected description: %+v", d)
	}
	if got := d.FoldedTerm(); got != "multiple sclerosis" {
		t.Errorf("FoldedTerm() = %q, want fully-lowercased term", got)
	}
}

func TestParseRelationship(t *testing.T) {
	row := "1\t20170731\t1\t900000000000207008\t24700007\t6118003\t0\t116680003\t900000000000011006\t900000000000451002"
	r, _, err := ParseRelationship(1, row)
	if err != nil {
		t.Fatal(err)
	}
	if r.SourceID != 24700007 || r.DestinationID != 6118003 || !r.IsIsA() {
		t.Fatalf("unexpected relationship: %+v", r)
	}
}

func TestParseAndReifyLanguageRefsetRow(t *testing.T) {
	row := "00000000-0000-0000-0000-000000000001\t20170731\t1\t900000000000207008\t900000000000508004\t41398015\t900000000000548007"
	generic, _, err := ParseRefsetRow(1, row, "c")
	if err != nil {
		t.Fatal(err)
	}
	kind := Classify([]int64{449608002, 900000000000511003})
	if kind != snomed.KindLanguage {
		t.Fatalf("Classify() = %v, want Language", kind)
	}
	item, err := Reify(generic, kind)
	if err != nil {
		t.Fatal(err)
	}
	lang, ok := item.(*snomed.LanguageReferenceSet)
	if !ok {
		t.Fatalf("Reify() returned %T, want *snomed.LanguageReferenceSet", item)
	}
	if !lang.IsPreferred() {
		t.Fatalf("expected a preferred acceptability, got %d", lang.AcceptabilityID)
	}
	if lang.ReferencedComponentID != 41398015 {
		t.Fatalf("unexpected referenced component id: %d", lang.ReferencedComponentID)
	}
}

func TestClassifyFallsBackToSimple(t *testing.T) {
	if k := Classify(nil); k != snomed.KindSimple {
		t.Errorf("Classify(nil) = %v, want Simple", k)
	}
	if k := Classify([]int64{1, 2, 3}); k != snomed.KindSimple {
		t.Errorf("Classify(unrecognized) = %v, want Simple", k)
	}
}
