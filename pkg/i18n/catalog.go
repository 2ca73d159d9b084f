// Package i18n holds the message catalog the deadlock classifier draws on
// to generate human-readable explanations and recommendations. It mirrors
// the teacher's TranslationSet-of-strings shape, but carries a single
// English catalog rather than a dynamically-loaded, locale-detected set:
// a deadlock report read by an on-call engineer has no real audience for
// localized operator advice, so the locale-loading machinery (JSON files on
// disk, jibber_jabber OS-locale detection, mergo-merged overrides) was
// dropped rather than adapted. See DESIGN.md for the full reasoning.
package i18n

// Catalog holds the templates used to render cycle explanations and
// top-level recommendations. Fields are plain Sprintf-style format strings
// rather than Go templates, since the values being interpolated are always
// plain PID/resource-id lists, not arbitrary structs.
type Catalog struct {
	CycleDefiniteHeader  string
	CyclePotentialHeader string
	WaitsForResource     string
	HeldByProcess        string
	NoDeadlockDetected   string

	RecommendTerminate     string
	RecommendInspectLocks  string
	RecommendInspectPipes  string
	RecommendNoActionTaken string
}

// NewCatalog returns the (only, English) message catalog.
func NewCatalog() *Catalog {
	return &Catalog{
		CycleDefiniteHeader:  "DEFINITE deadlock: processes %v are stuck in a cycle over resources %v",
		CyclePotentialHeader: "POTENTIAL deadlock: processes %v form a cycle over resources %v, but at least one resource has spare instances",
		WaitsForResource:     "process %d waits for resource %d",
		HeldByProcess:        "resource %d is held by process %d",
		NoDeadlockDetected:   "no circular wait detected among %d scanned processes",

		RecommendTerminate:     "terminate one of the following processes to break the cycle: %v",
		RecommendInspectLocks:  "inspect file locks held by processes %v for a stuck advisory lock",
		RecommendInspectPipes:  "inspect pipe endpoints held by processes %v for a reader/writer stuck on a full or empty pipe",
		RecommendNoActionTaken: "no action required",
	}
}
