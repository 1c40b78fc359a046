package core

import "fmt"

// GST type categories offered on document headers.
const (
	CategoryLocalPurchase      = "Local Purchase"
	CategoryInterStatePurchase = "Inter-State Purchase"
	CategoryImports            = "Imports"
	CategoryLocalSales         = "Local Sales"
	CategoryInterStateSales    = "Inter-State Sales"
	CategoryExports            = "Exports"
)

type gstCategory struct {
	name       string
	side       Side
	interstate bool
}

// gstCategories is the complete jurisdiction table. Local routes to CGST+SGST,
// everything else to IGST. Order is the dropdown order.
var gstCategories = []gstCategory{
	{CategoryLocalPurchase, SidePurchase, false},
	{CategoryInterStatePurchase, SidePurchase, true},
	{CategoryImports, SidePurchase, true},
	{CategoryLocalSales, SideSales, false},
	{CategoryInterStateSales, SideSales, true},
	{CategoryExports, SideSales, true},
}

func findCategory(name string) (gstCategory, bool) {
	for _, c := range gstCategories {
		if c.name == name {
			return c, true
		}
	}
	return gstCategory{}, false
}

// IsInterstate maps a GST category to its tax routing.
func IsInterstate(category string) (bool, error) {
	c, ok := findCategory(category)
	if !ok {
		return false, &ConfigurationError{Details: fmt.Sprintf("unrecognized GST category %q", category)}
	}
	return c.interstate, nil
}

// CategoriesFor returns the categories of one trading side in table order.
// An empty side returns all of them.
func CategoriesFor(side Side) []string {
	out := make([]string, 0, len(gstCategories))
	for _, c := range gstCategories {
		if side == "" || c.side == side {
			out = append(out, c.name)
		}
	}
	return out
}

// interstateFor resolves category for a document of the given side. A category
// belonging to the other side is rejected just like an unknown one.
func interstateFor(side Side, category string) (bool, error) {
	c, ok := findCategory(category)
	if !ok {
		return false, &ConfigurationError{Details: fmt.Sprintf("unrecognized GST category %q", category)}
	}
	if c.side != side {
		return false, &ConfigurationError{Details: fmt.Sprintf("GST category %q is not valid for %s documents", category, side)}
	}
	return c.interstate, nil
}

// SuggestCategory picks the default category for a party: same state is
// local, a different state is inter-state, and a party without a state (a
// foreign one) is an import or export. The user may still override it.
func SuggestCategory(side Side, companyState, partyState string) string {
	switch {
	case partyState == "" && side == SidePurchase:
		return CategoryImports
	case partyState == "":
		return CategoryExports
	case partyState == companyState && side == SidePurchase:
		return CategoryLocalPurchase
	case partyState == companyState:
		return CategoryLocalSales
	case side == SidePurchase:
		return CategoryInterStatePurchase
	default:
		return CategoryInterStateSales
	}
}
