// Copyright © 2026 Classware Labs - All Rights Reserved.
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.

package model

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestVerdictOrder(t *testing.T) {
	ascending := []Verdict{
		VerdictAC, VerdictWA, VerdictTLE, VerdictMLE,
		VerdictRE, VerdictCE, VerdictOLE, VerdictIE, VerdictFN,
	}
	for i := 1; i < len(ascending); i++ {
		assert.True(t, ascending[i].WorseThan(ascending[i-1]),
			"%s should be worse than %s", ascending[i], ascending[i-1])
		assert.False(t, ascending[i-1].WorseThan(ascending[i]))
	}
}

func TestVerdictValidity(t *testing.T) {
	assert.True(t, VerdictAC.Valid())
	assert.True(t, VerdictFN.Valid())
	assert.False(t, Verdict("").Valid())
	assert.False(t, Verdict("PASS").Valid())

	// FN is a submission-level verdict only.
	assert.True(t, VerdictIE.ValidForTestcase())
	assert.False(t, VerdictFN.ValidForTestcase())
}

func TestMaxVerdict(t *testing.T) {
	assert.Equal(t, VerdictWA, MaxVerdict(VerdictAC, VerdictWA))
	assert.Equal(t, VerdictWA, MaxVerdict(VerdictWA, VerdictAC))
	assert.Equal(t, VerdictFN, MaxVerdict(VerdictFN, VerdictIE))
	assert.Equal(t, VerdictAC, MaxVerdict(VerdictAC, VerdictAC))
}

func TestAggregateVerdicts(t *testing.T) {
	agg, ok := AggregateVerdicts([]Verdict{VerdictAC, VerdictTLE, VerdictWA})
	require.True(t, ok)
	assert.Equal(t, VerdictTLE, agg)

	// Aggregation is idempotent.
	again, ok := AggregateVerdicts([]Verdict{agg, agg})
	require.True(t, ok)
	assert.Equal(t, agg, again)

	// Commutative.
	rev, ok := AggregateVerdicts([]Verdict{VerdictWA, VerdictTLE, VerdictAC})
	require.True(t, ok)
	assert.Equal(t, agg, rev)

	// Associative: fold in two halves, then combine.
	left, _ := AggregateVerdicts([]Verdict{VerdictAC, VerdictTLE})
	right, _ := AggregateVerdicts([]Verdict{VerdictWA})
	assert.Equal(t, agg, MaxVerdict(left, right))
}

func TestAggregateVerdictsEmpty(t *testing.T) {
	_, ok := AggregateVerdicts(nil)
	assert.False(t, ok)

	_, ok = AggregateVerdicts([]Verdict{Verdict("bogus")})
	assert.False(t, ok)
}
