package variant

// Validate checks the document invariants that must hold once migrations
// have run. It returns nil for documents without variants, otherwise a
// *ValidationError listing every problem in document order.
func Validate(doc *Document) error {
	if !HasVariants(doc) {
		return nil
	}

	var problems []Problem
	seen := make(map[string]struct{}, len(doc.Variants))
	defaults := 0

	for _, v := range doc.Variants {
		if _, dup := seen[v.ID]; dup {
			problems = append(problems, Problem{Kind: ProblemDuplicateID, VariantID: v.ID})
		}
		seen[v.ID] = struct{}{}

		if v.Price.IsNegative() {
			problems = append(problems, Problem{Kind: ProblemNegativePrice, VariantID: v.ID})
		}
		if v.Stock < 0 {
			problems = append(problems, Problem{Kind: ProblemNegativeStock, VariantID: v.ID})
		}
		if v.IsDefault {
			defaults++
		}
	}

	switch {
	case defaults == 0:
		problems = append(problems, Problem{Kind: ProblemMissingDefault})
	case defaults > 1:
		problems = append(problems, Problem{Kind: ProblemMultipleDefaults})
	}

	if len(problems) == 0 {
		return nil
	}
	return &ValidationError{Problems: problems}
}
