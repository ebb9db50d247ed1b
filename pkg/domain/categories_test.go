package domain

import "testing"

func TestIsSubCategory(t *testing.T) {
	tests := []struct {
		category string
		sub      string
		want     bool
	}{
		{"Books", "Textbooks", true},
		{"Books", "Laptops", false},
		{"Electronics", "Laptops", true},
		{"Stationery", "Pens & Pencils", true},
		{"books", "Textbooks", false},
		{"Vehicles", "Cars", false},
		{"Books", "", false},
	}
	for _, tc := range tests {
		if got := IsSubCategory(tc.category, tc.sub); got != tc.want {
			t.Fatalf("IsSubCategory(%q, %q) = %v, want %v", tc.category, tc.sub, got, tc.want)
		}
	}
}

func TestCategoriesReturnsCopy(t *testing.T) {
	cats := Categories()
	if len(cats) != 8 {
		t.Fatalf("expected 8 categories, got %d", len(cats))
	}
	cats[0].SubCategories[0] = "mutated"
	if Categories()[0].SubCategories[0] == "mutated" {
		t.Fatalf("taxonomy must not be mutable through Categories()")
	}
}

func TestUserComplete(t *testing.T) {
	u := User{Email: "a@iiit.ac.in"}
	if u.Complete() {
		t.Fatalf("new user should be incomplete")
	}
	u.FirstName, u.LastName, u.ContactNumber = "A", "B", "9876543210"
	if !u.Complete() {
		t.Fatalf("filled profile should be complete")
	}
}
