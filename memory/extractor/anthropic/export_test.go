package anthropic

// ParseCandidates exposes the response parser to the external tests.
var ParseCandidates = parseCandidates
