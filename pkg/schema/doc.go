// Package schema validates Compositions before they are played.
//
// Every defect that would make a run meaningless is a configuration error and
// is reported up front, aggregated, instead of surfacing at match time:
//
//	if err := schema.ValidateComposition(comp); err != nil {
//	    for _, e := range schema.ValidationErrors(err) {
//	        fmt.Println(e)
//	    }
//	}
//
// Checks include dangling or duplicate account aliases, duplicate stanza ids,
// unknown stanza/match/assertion types, malformed regex and xpath expressions,
// and cues without an explicit positive timeout.
package schema
