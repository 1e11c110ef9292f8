// Package comprehend extracts clinical entities from free text via Amazon
// Comprehend Medical and resolves each one against a terminology.Service,
// a supplementary operation beyond the core SNOMED CT substrate. Grounded
// verbatim-in-shape on terminology/comprehend.go, split into its own
// package (taking a *terminology.Service rather than being a method on the
// facade) so it stays an optional add-on depending on an external cloud
// API rather than a load-bearing part of the core.
package comprehend

import (
	"strings"

	"github.com/aws/aws-sdk-go/aws"
	"github.com/aws/aws-sdk-go/aws/credentials"
	"github.com/aws/aws-sdk-go/aws/session"
	"github.com/aws/aws-sdk-go/service/comprehendmedical"

	"github.com/tporcham/hermes/terminology"
)

// typeRootMap gives the root SNOMED concept id appropriate to each
// Comprehend Medical category/type pairing, used to restrict the
// candidate-concept search to a plausible subhierarchy.
var typeRootMap = map[string]int64{
	"MEDICATION-GENERIC_NAME":            373873005, // pharmaceutical / biologic product
	"MEDICAL_CONDITION-DX_NAME":          404684003, // clinical finding
	"TEST_TREATMENT_PROCEDURE-TEST_NAME": 103693007, // diagnostic procedure
	"ANATOMY-SYSTEM_ORGAN_SITE":          123037004, // body structure
}

// Entity is one clinical entity Comprehend Medical found in the source
// text, with candidate SNOMED CT concepts resolved against the
// terminology service.
type Entity struct {
	Text      string
	Score     float64
	Negated   bool
	Concepts  []terminology.ConceptReference
	BestMatch int64 // 0 if no candidate concept was found
}

// Extract calls Amazon Comprehend Medical's DetectEntities on text, then
// resolves each detected entity against svc, preferring an exact
// case-insensitive term match and falling back to every candidate hit
// otherwise. region and locale configure the AWS region used for the
// Comprehend Medical call and the locale used to pick each concept's
// preferred term.
func Extract(svc *terminology.Service, text, region, locale string) ([]Entity, error) {
	sess, err := session.NewSession(&aws.Config{
		Region:      aws.String(region),
		Credentials: credentials.NewEnvCredentials(),
	})
	if err != nil {
		return nil, err
	}
	client := comprehendmedical.New(sess)
	input := comprehendmedical.DetectEntitiesInput{}
	input.SetText(text)
	result, err := client.DetectEntities(&input)
	if err != nil {
		return nil, err
	}

	entities := make([]Entity, 0, len(result.Entities))
	for _, detected := range result.Entities {
		key := aws.StringValue(detected.Category) + "-" + aws.StringValue(detected.Type)
		var roots []int64
		if root, ok := typeRootMap[key]; ok {
			roots = []int64{root}
		}

		entity := Entity{
			Text:  aws.StringValue(detected.Text),
			Score: aws.Float64Value(detected.Score),
		}
		for _, trait := range detected.Traits {
			if aws.StringValue(trait.Name) == "NEGATION" {
				entity.Negated = true
			}
		}

		hits, err := svc.Search(terminology.SearchRequest{
			Text:    entity.Text,
			Roots:   roots,
			MaxHits: 5,
			Locale:  locale,
		})
		if err != nil {
			return nil, err
		}

		var exact []terminology.ConceptReference
		var any []terminology.ConceptReference
		for _, hit := range hits {
			ref := terminology.ConceptReference{ConceptID: hit.ConceptID, Term: hit.PreferredTerm}
			any = append(any, ref)
			if strings.EqualFold(hit.Term, entity.Text) {
				exact = append(exact, ref)
			}
		}
		concepts := exact
		if len(concepts) == 0 {
			concepts = any
		}
		entity.Concepts = concepts
		if len(concepts) > 0 {
			entity.BestMatch = concepts[0].ConceptID
		}
		entities = append(entities, entity)
	}
	return entities, nil
}
