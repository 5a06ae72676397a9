package product

import "strings"

const DefaultTag = "#other"

// SuggestTag returns a tag for a product name that arrived without one:
// exact match first, then the first keyword contained in the name.
func SuggestTag(name string) string {
	n := strings.ToLower(strings.TrimSpace(name))
	if n == "" {
		return DefaultTag
	}
	if tag, ok := exactTags[n]; ok {
		return tag
	}
	for _, kw := range keywordTags {
		if strings.Contains(n, kw.keyword) {
			return kw.tag
		}
	}
	return DefaultTag
}

// NormalizeTag trims the tag, lower-cases it and makes sure it starts with
// a single '#'. An empty tag becomes the suggestion for name.
func NormalizeTag(tag, name string) string {
	t := strings.ToLower(strings.TrimSpace(tag))
	t = strings.TrimLeft(t, "#")
	t = strings.Join(strings.Fields(t), "-")
	if t == "" {
		return SuggestTag(name)
	}
	return "#" + t
}

var exactTags = map[string]string{
	"apples":   "#produce",
	"bananas":  "#produce",
	"lemons":   "#produce",
	"onions":   "#produce",
	"potatoes": "#produce",
	"tomatoes": "#produce",
	"garlic":   "#produce",
	"milk":     "#dairy",
	"eggs":     "#dairy",
	"butter":   "#dairy",
	"yogurt":   "#dairy",
	"bread":    "#bakery",
	"bagels":   "#bakery",
	"rice":     "#pantry",
	"pasta":    "#pantry",
	"flour":    "#pantry",
	"sugar":    "#pantry",
	"salt":     "#pantry",
	"coffee":   "#pantry",
	"tea":      "#pantry",
	"chicken":  "#meat",
	"beef":     "#meat",
	"bacon":    "#meat",
	"salmon":   "#meat",
	"shampoo":  "#household",
	"soap":     "#household",
	"sponges":  "#household",
}

// Ordered so that longer, more specific keywords win.
var keywordTags = []struct {
	keyword string
	tag     string
}{
	{"toilet paper", "#household"},
	{"paper towel", "#household"},
	{"dish soap", "#household"},
	{"detergent", "#household"},
	{"ice cream", "#frozen"},
	{"frozen", "#frozen"},
	{"cheese", "#dairy"},
	{"cream", "#dairy"},
	{"milk", "#dairy"},
	{"juice", "#drinks"},
	{"water", "#drinks"},
	{"soda", "#drinks"},
	{"beer", "#drinks"},
	{"wine", "#drinks"},
	{"oil", "#pantry"},
	{"sauce", "#pantry"},
	{"beans", "#pantry"},
	{"cereal", "#pantry"},
	{"bread", "#bakery"},
	{"chicken", "#meat"},
	{"fish", "#meat"},
	{"apple", "#produce"},
	{"berries", "#produce"},
	{"lettuce", "#produce"},
}
