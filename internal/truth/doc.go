// Package truth produces the truthScore attached to search responses.
//
// A Scorer turns text into a score from 0 (false) to 100 (true).
// RandomScorer is a placeholder that returns a uniform random score.
// AnalyzerScorer asks a remote classification service, which answers with
// one of the predictions "True", "Mixed" or "False".
package truth
