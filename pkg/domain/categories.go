package domain

import "slices"

// Category is one top-level catalog category and its allowed subcategories.
type Category struct {
	Name          string   `json:"name"`
	SubCategories []string `json:"subCategories"`
}

var categories = []Category{
	{Name: "Electronics", SubCategories: []string{"Mobile Phones", "Laptops", "Cameras", "Tablets", "Headphones", "Smart Watches", "Speakers", "Accessories"}},
	{Name: "Furniture", SubCategories: []string{"Beds", "Sofas", "Chairs", "Tables", "Desks", "Wardrobes", "Shelves", "Drawers"}},
	{Name: "Clothing", SubCategories: []string{"Men", "Women", "Kids", "T-Shirts", "Jeans", "Jackets", "Shoes"}},
	{Name: "Books", SubCategories: []string{"Textbooks", "Novels", "Reference", "Comics", "Magazines", "Entrance Prep"}},
	{Name: "Appliances", SubCategories: []string{"Kitchen Appliances", "Washing Machines", "Refrigerators", "Microwaves", "Fans", "Heaters"}},
	{Name: "Sports", SubCategories: []string{"Cricket", "Football", "Badminton", "Gym Equipment", "Bicycles"}},
	{Name: "Stationery", SubCategories: []string{"Notebooks", "Pens & Pencils", "Calculators", "Drawing Supplies", "Folders"}},
	{Name: "Miscellaneous", SubCategories: []string{"Bags", "Watches", "Musical Instruments", "Games", "Others"}},
}

// Categories returns a copy of the fixed taxonomy in display order.
func Categories() []Category {
	out := make([]Category, 0, len(categories))
	for _, c := range categories {
		out = append(out, Category{Name: c.Name, SubCategories: slices.Clone(c.SubCategories)})
	}
	return out
}

// IsCategory reports whether name is a known top-level category.
func IsCategory(name string) bool {
	_, ok := findCategory(name)
	return ok
}

// IsSubCategory reports whether sub is allowed under category.
func IsSubCategory(category, sub string) bool {
	c, ok := findCategory(category)
	if !ok {
		return false
	}
	return slices.Contains(c.SubCategories, sub)
}

func findCategory(name string) (Category, bool) {
	for _, c := range categories {
		if c.Name == name {
			return c, true
		}
	}
	return Category{}, false
}
