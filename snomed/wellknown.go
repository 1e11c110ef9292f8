package snomed

// Well-known SNOMED CT identifiers referenced throughout the core
// (spec.md §6). These are concept ids unless noted.
const (
	// IsA is the subsumption relationship type.
	IsA int64 = 116680003
	// Root is the top-level concept of the hierarchy.
	Root int64 = 138875005

	// FullySpecifiedName and Synonym are description type ids.
	FullySpecifiedName int64 = 900000000000003001
	Synonym            int64 = 900000000000013009
	Definition         int64 = 900000000000550004

	// Preferred and Acceptable are language-refset acceptability ids.
	Preferred  int64 = 900000000000548007
	Acceptable int64 = 900000000000549004

	// Case significance ids (spec.md §4.2).
	EntireTermCaseSensitive       int64 = 900000000000017005
	EntireTermCaseInsensitive     int64 = 900000000000448009
	InitialCharacterCaseSensitive int64 = 900000000000020002

	// Definition status ids.
	Primitive int64 = 900000000000074008
	Defined   int64 = 900000000000073002

	// Reference set root and shape concepts. Refset classification does not
	// consult the shape ids; a refset with no RefsetDescriptor entry is
	// classified as simple.
	RefsetRoot             int64 = 900000000000455006
	RefsetDescriptorRefset int64 = 900000000000456007
	SimpleRefset           int64 = 446609009
	LanguageRefset         int64 = 900000000000506000
	SimpleMapRefset        int64 = 900000000000496009
	ComplexMapRefset       int64 = 447250001
	ExtendedMapRefset      int64 = 609331003

	// Historical association refsets.
	ReplacedByRefset         int64 = 900000000000526001
	SameAsRefset             int64 = 900000000000527005
	PossiblyEquivalentTo     int64 = 900000000000523009
	MovedToRefset            int64 = 900000000000524003
	CTV3MapRefset            int64 = 900000000000497000
	GBLanguageRefset         int64 = 900000000000508004
	USLanguageRefset         int64 = 900000000000509007

	// Attribute and qualifier-value ids used by refinement/laterality lookup.
	BodyStructure        int64 = 123037004
	FindingSite          int64 = 363698007
	ProcedureSiteDirect  int64 = 405813007
	AssociatedMorphology int64 = 116676008
	Laterality           int64 = 272741003
	Side                 int64 = 182353008
	// LateralisableReferenceSet marks body structures for which a laterality
	// refinement makes sense.
	LateralisableReferenceSet int64 = 723264001
)
