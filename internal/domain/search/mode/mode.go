package mode

// Mode is the search strategy.
type Mode string

// Search mode constants.
const (
	// Hybrid fuses the text ranking with the vector ranking.
	Hybrid   Mode = "hybrid"
	Semantic Mode = "semantic"
	Keyword  Mode = "keyword"
)

// IsValid checks if the mode is one of the supported values.
func (m Mode) IsValid() bool {
	return m == Hybrid || m == Semantic || m == Keyword
}

// Resolve picks the mode from which rankings a query produces.
func Resolve(hasText, hasVector bool) Mode {
	switch {
	case hasText && hasVector:
		return Hybrid
	case hasVector:
		return Semantic
	default:
		return Keyword
	}
}
