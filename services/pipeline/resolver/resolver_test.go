// Copyright (C) 2025 Loomworks AI (eng@loomworks.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

package resolver

import (
	"math/rand"
	"reflect"
	"testing"
)

func TestOrder_SimpleChain(t *testing.T) {
	items := []Item{
		{ID: "c", DependsOn: []string{"b"}},
		{ID: "a"},
		{ID: "b", DependsOn: []string{"a"}},
	}

	order, warnings := Order(items)

	if len(warnings) != 0 {
		t.Errorf("warnings = %v, want none", warnings)
	}
	want := []string{"a", "b", "c"}
	if !reflect.DeepEqual(order, want) {
		t.Errorf("Order() = %v, want %v", order, want)
	}
}

func TestOrder_TieBreakAscending(t *testing.T) {
	items := []Item{
		{ID: "zeta"},
		{ID: "alpha"},
		{ID: "mid"},
	}

	order, _ := Order(items)

	want := []string{"alpha", "mid", "zeta"}
	if !reflect.DeepEqual(order, want) {
		t.Errorf("Order() = %v, want ascending %v", order, want)
	}
}

func TestOrder_Deterministic(t *testing.T) {
	items := []Item{
		{ID: "u1"},
		{ID: "u2", DependsOn: []string{"u1"}},
		{ID: "u3", DependsOn: []string{"u1"}},
		{ID: "u4", DependsOn: []string{"u2", "u3"}},
		{ID: "u5"},
		{ID: "u6", DependsOn: []string{"u5", "u4"}},
	}

	first, _ := Order(items)
	if !IsValidOrder(items, first) {
		t.Fatalf("Order() = %v is not a valid topological order", first)
	}

	// Shuffle the input; the output must be byte-identical.
	rng := rand.New(rand.NewSource(42))
	for i := 0; i < 25; i++ {
		shuffled := make([]Item, len(items))
		copy(shuffled, items)
		rng.Shuffle(len(shuffled), func(a, b int) {
			shuffled[a], shuffled[b] = shuffled[b], shuffled[a]
		})
		again, _ := Order(shuffled)
		if !reflect.DeepEqual(first, again) {
			t.Fatalf("ordering not deterministic: %v vs %v", first, again)
		}
	}
}

func TestOrder_TwoNodeCycle(t *testing.T) {
	items := []Item{
		{ID: "u.clean"},
		{ID: "u.b", DependsOn: []string{"u.a"}},
		{ID: "u.a", DependsOn: []string{"u.b"}},
	}

	order, warnings := Order(items)

	if len(warnings) != 1 {
		t.Fatalf("warnings = %v, want exactly 1 cycle warning", warnings)
	}
	if !reflect.DeepEqual(warnings[0].Members, []string{"u.a", "u.b"}) {
		t.Errorf("cycle members = %v, want [u.a u.b]", warnings[0].Members)
	}

	// Resolvable items first, cyclic remainder appended ascending.
	want := []string{"u.clean", "u.a", "u.b"}
	if !reflect.DeepEqual(order, want) {
		t.Errorf("Order() = %v, want %v", order, want)
	}
}

func TestOrder_CycleDownstreamStillResolved(t *testing.T) {
	// d depends on the cycle, so it lands in the remainder too.
	items := []Item{
		{ID: "a", DependsOn: []string{"b"}},
		{ID: "b", DependsOn: []string{"a"}},
		{ID: "d", DependsOn: []string{"a"}},
		{ID: "c"},
	}

	order, warnings := Order(items)

	if len(warnings) != 1 {
		t.Fatalf("warnings = %v, want exactly 1", warnings)
	}
	want := []string{"c", "a", "b", "d"}
	if !reflect.DeepEqual(order, want) {
		t.Errorf("Order() = %v, want %v", order, want)
	}
}

func TestOrder_UnknownAndSelfDependenciesIgnored(t *testing.T) {
	items := []Item{
		{ID: "a", DependsOn: []string{"ghost", "a"}},
		{ID: "b", DependsOn: []string{"a"}},
	}

	order, warnings := Order(items)

	if len(warnings) != 0 {
		t.Errorf("warnings = %v, want none (unknown deps are the loader's concern)", warnings)
	}
	want := []string{"a", "b"}
	if !reflect.DeepEqual(order, want) {
		t.Errorf("Order() = %v, want %v", order, want)
	}
}

func TestOrder_Empty(t *testing.T) {
	order, warnings := Order(nil)
	if len(order) != 0 || len(warnings) != 0 {
		t.Errorf("Order(nil) = %v, %v, want empty", order, warnings)
	}
}

func TestIsValidOrder(t *testing.T) {
	items := []Item{
		{ID: "a"},
		{ID: "b", DependsOn: []string{"a"}},
	}

	if !IsValidOrder(items, []string{"a", "b"}) {
		t.Error("IsValidOrder should accept a valid order")
	}
	if IsValidOrder(items, []string{"b", "a"}) {
		t.Error("IsValidOrder should reject dependency inversion")
	}
	if IsValidOrder(items, []string{"a"}) {
		t.Error("IsValidOrder should reject incomplete orders")
	}
	if IsValidOrder(items, []string{"a", "a"}) {
		t.Error("IsValidOrder should reject duplicates")
	}
}
