package replicate

// defaultPageSize bounds a single page when no override applies.
const defaultPageSize = 100_000

// entityRecordLimits caps page sizes for entity types known to carry
// oversized per-record content.
var entityRecordLimits = map[string]int{
	"LearningPlanEvidences": 5000,
	"ReviewResponses":       5000,
	"Users":                 1000,
}

// PageSizeFor returns the page size for an entity: an explicit override
// wins, then the built-in limits table, then the default cap.
func PageSizeFor(entity string, override int) int {
	if override > 0 {
		return override
	}
	if limit, ok := entityRecordLimits[entity]; ok {
		return limit
	}
	return defaultPageSize
}
