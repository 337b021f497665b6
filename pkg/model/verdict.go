// Copyright © 2026 Classware Labs - All Rights Reserved.
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.

package model

// Verdict is a judge outcome. The zero value is invalid.
type Verdict string

// Verdicts in ascending severity. Aggregation over a set of verdicts
// takes the maximum under this order.
const (
	VerdictAC  Verdict = "AC"
	VerdictWA  Verdict = "WA"
	VerdictTLE Verdict = "TLE"
	VerdictMLE Verdict = "MLE"
	VerdictRE  Verdict = "RE"
	VerdictCE  Verdict = "CE"
	VerdictOLE Verdict = "OLE"
	VerdictIE  Verdict = "IE"
	VerdictFN  Verdict = "FN"
)

var verdictRank = map[Verdict]int{
	VerdictAC:  0,
	VerdictWA:  1,
	VerdictTLE: 2,
	VerdictMLE: 3,
	VerdictRE:  4,
	VerdictCE:  5,
	VerdictOLE: 6,
	VerdictIE:  7,
	VerdictFN:  8,
}

// Valid reports whether v is a known verdict.
func (v Verdict) Valid() bool {
	_, ok := verdictRank[v]
	return ok
}

// ValidForTestcase reports whether v may appear on a per-testcase judge
// result. FN exists only at submission level; the worker never emits it.
func (v Verdict) ValidForTestcase() bool {
	return v.Valid() && v != VerdictFN
}

// Rank returns v's position in the severity order. Unknown verdicts rank
// below AC so they never win an aggregation.
func (v Verdict) Rank() int {
	r, ok := verdictRank[v]
	if !ok {
		return -1
	}
	return r
}

// WorseThan reports whether v is strictly more severe than o.
func (v Verdict) WorseThan(o Verdict) bool {
	return v.Rank() > o.Rank()
}

// MaxVerdict returns the more severe of a and b.
func MaxVerdict(a, b Verdict) Verdict {
	if b.WorseThan(a) {
		return b
	}
	return a
}

// AggregateVerdicts folds a set of verdicts to the most severe one.
// ok is false when the set is empty or contains only unknown values.
func AggregateVerdicts(verdicts []Verdict) (agg Verdict, ok bool) {
	for _, v := range verdicts {
		if !v.Valid() {
			continue
		}
		if !ok || v.WorseThan(agg) {
			agg = v
			ok = true
		}
	}
	return agg, ok
}
