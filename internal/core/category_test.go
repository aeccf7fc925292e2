package core

import "testing"

func TestAddCategory(t *testing.T) {
	cats := append([]string(nil), DefaultCategories...)

	out, ok := AddCategory(cats, "Pets")
	if !ok || len(out) != 10 {
		t.Fatalf("add failed: ok=%v len=%d", ok, len(out))
	}
	// Result is sorted; input untouched.
	for i := 1; i < len(out); i++ {
		if out[i-1] > out[i] {
			t.Fatalf("not sorted: %v", out)
		}
	}
	if len(cats) != 9 {
		t.Fatalf("input mutated: %d", len(cats))
	}

	// Case-insensitive duplicate: adding "Saúde" then "saúde" yields one
	// category total.
	if _, ok := AddCategory(out, "saúde"); ok {
		t.Fatalf("case-insensitive duplicate accepted")
	}
	if _, ok := AddCategory(out, "PETS"); ok {
		t.Fatalf("case-insensitive duplicate accepted")
	}

	if _, ok := AddCategory(out, "   "); ok {
		t.Fatalf("blank name accepted")
	}
	if got, ok := AddCategory(out, "  Viagem  "); !ok {
		t.Fatalf("trimmed add failed")
	} else {
		found := false
		for _, c := range got {
			if c == "Viagem" {
				found = true
			}
		}
		if !found {
			t.Fatalf("name not trimmed before insert: %v", got)
		}
	}
}

func TestDeleteCategoryProtectsEveryDefault(t *testing.T) {
	cats := append([]string(nil), DefaultCategories...)
	for _, name := range DefaultCategories {
		res, out := DeleteCategory(cats, nil, name)
		if res.OK {
			t.Fatalf("%s: default category deleted", name)
		}
		if res.Message != MsgProtectedCategory {
			t.Fatalf("%s: message %q", name, res.Message)
		}
		if len(out) != len(cats) {
			t.Fatalf("%s: set changed on failure", name)
		}
	}
	// Case-insensitive protection too.
	if res, _ := DeleteCategory(cats, nil, "moradia"); res.OK {
		t.Fatalf("lowercased default deleted")
	}
}

func TestDeleteCategoryInUse(t *testing.T) {
	cats, _ := AddCategory(DefaultCategories, "Pets")
	expenses := []Expense{
		expense("vet", 15_000, "pets", 10, "2024-01", "2024-12"), // lowercase reference
	}

	res, out := DeleteCategory(cats, expenses, "Pets")
	if res.OK || res.Message != MsgCategoryInUse {
		t.Fatalf("expected in-use failure, got %+v", res)
	}
	if len(out) != len(cats) {
		t.Fatalf("set changed on failure")
	}

	// After the referencing expense is gone, deletion succeeds.
	res, out = DeleteCategory(cats, nil, "Pets")
	if !res.OK || res.Message != MsgCategoryDeleted {
		t.Fatalf("expected success, got %+v", res)
	}
	for _, c := range out {
		if c == "Pets" {
			t.Fatalf("category still present: %v", out)
		}
	}

	// Which other categories exist is irrelevant to the in-use check.
	res, _ = DeleteCategory(cats, expenses, "Pets")
	if res.OK {
		t.Fatalf("in-use check should not depend on unused categories")
	}
}
