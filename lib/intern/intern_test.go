// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package intern

import "testing"

func TestStructuralSharing(t *testing.T) {
	scope := NewScope()
	first := scope.GetOrInsert("$event1")
	second := scope.GetOrInsert("$event1")
	if first != second {
		t.Error("equal strings produced distinct handles")
	}
	if !first.Equal(second) {
		t.Error("Equal() = false for same handle")
	}
	if first.RefCount() != 2 {
		t.Errorf("RefCount() = %d, want 2", first.RefCount())
	}
	if scope.Len() != 1 {
		t.Errorf("Len() = %d, want 1", scope.Len())
	}
}

func TestReleaseKeepsEntryAlive(t *testing.T) {
	scope := NewScope()
	first := scope.GetOrInsert("@alice:example.com")
	second := scope.GetOrInsert("@alice:example.com")
	second.Release()
	if first.RefCount() != 1 {
		t.Errorf("RefCount() = %d, want 1", first.RefCount())
	}
	// The string stays interned: a later lookup finds the same handle.
	found, ok := scope.Lookup("@alice:example.com")
	if !ok || found != first {
		t.Error("entry evicted while a reference remained")
	}
}

func TestReleaseBelowZeroPanics(t *testing.T) {
	scope := NewScope()
	handle := scope.GetOrInsert("x")
	handle.Release()
	defer func() {
		if recover() == nil {
			t.Error("release below zero did not panic")
		}
	}()
	handle.Release()
}

func TestOrderingMatchesStrings(t *testing.T) {
	scope := NewScope()
	a := scope.GetOrInsert("A")
	b := scope.GetOrInsert("B")
	if a.Compare(b) >= 0 {
		t.Errorf(`Compare("A", "B") = %d, want negative`, a.Compare(b))
	}
	if b.Compare(a) <= 0 {
		t.Errorf(`Compare("B", "A") = %d, want positive`, b.Compare(a))
	}
	if a.Compare(a) != 0 {
		t.Errorf("Compare with itself = %d, want 0", a.Compare(a))
	}
}

func TestCrossScopeOrderingAgrees(t *testing.T) {
	// Two scopes interning the same strings in different orders must
	// agree on handle ordering, since ordering is content-defined.
	left, right := NewScope(), NewScope()
	leftA, leftB := left.GetOrInsert("A"), left.GetOrInsert("B")
	rightB, rightA := right.GetOrInsert("B"), right.GetOrInsert("A")

	if leftA.Compare(leftB) != rightA.Compare(rightB) {
		t.Error("scopes disagree on ordering of A vs B")
	}
	if !leftA.Equal(rightA) {
		t.Error("cross-scope handles with equal content not Equal")
	}
	if leftA == rightA {
		t.Error("distinct scopes shared a handle")
	}
}

func TestLookupWithoutInsert(t *testing.T) {
	scope := NewScope()
	if _, ok := scope.Lookup("absent"); ok {
		t.Error("Lookup invented a handle")
	}
	inserted := scope.GetOrInsert("present")
	found, ok := scope.Lookup("present")
	if !ok || found != inserted {
		t.Error("Lookup missed an interned string")
	}
	if found.RefCount() != 1 {
		t.Errorf("Lookup changed RefCount to %d", found.RefCount())
	}
}
