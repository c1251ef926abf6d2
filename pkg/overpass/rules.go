package overpass

// Tags are the OSM key/value tags of an element.
type Tags map[string]string

type rule struct {
	category Category
	match    func(Tags) bool
}

func tagIn(key string, values ...string) func(Tags) bool {
	return func(t Tags) bool {
		v, ok := t[key]
		if !ok {
			return false
		}
		for _, want := range values {
			if v == want {
				return true
			}
		}
		return false
	}
}

func tagSet(key string) func(Tags) bool {
	return func(t Tags) bool { return t[key] != "" }
}

func anyOf(fns ...func(Tags) bool) func(Tags) bool {
	return func(t Tags) bool {
		for _, fn := range fns {
			if fn(t) {
				return true
			}
		}
		return false
	}
}

// rules is evaluated in order; the first match wins. A hospital tagged with
// public_transport is still a doctor.
var rules = []rule{
	{CategorySchool, tagIn("amenity", "school", "kindergarten")},
	{CategoryGrocery, tagIn("shop", "supermarket", "grocery", "convenience")},
	{CategoryDoctor, tagIn("amenity", "doctors", "clinic", "hospital")},
	{CategoryPharmacy, tagIn("amenity", "pharmacy")},
	{CategoryPublicTransport, anyOf(tagSet("public_transport"), tagIn("highway", "bus_stop"), tagSet("railway"), tagSet("station"))},
	{CategoryRestaurant, tagIn("amenity", "restaurant", "cafe")},
	{CategoryPark, tagIn("leisure", "park", "playground")},
	{CategoryBank, tagIn("amenity", "bank", "atm")},
}

// Categorize returns the category for tags, or "" when no rule matches.
func Categorize(tags Tags) Category {
	for _, r := range rules {
		if r.match(tags) {
			return r.category
		}
	}
	return ""
}

type label struct {
	key, value, name string
}

// defaultLabels names unnamed elements. An empty value matches any non-empty tag.
var defaultLabels = []label{
	{"amenity", "school", "School"},
	{"amenity", "kindergarten", "Kindergarten"},
	{"shop", "supermarket", "Supermarket"},
	{"shop", "grocery", "Grocery Store"},
	{"shop", "convenience", "Grocery Store"},
	{"amenity", "doctors", "Doctor"},
	{"amenity", "clinic", "Clinic"},
	{"amenity", "hospital", "Hospital"},
	{"amenity", "pharmacy", "Pharmacy"},
	{"highway", "bus_stop", "Bus Stop"},
	{"railway", "station", "Train Station"},
	{"railway", "tram_stop", "Tram Stop"},
	{"station", "subway", "Subway Station"},
	{"public_transport", "", "Public Transport Stop"},
	{"amenity", "restaurant", "Restaurant"},
	{"amenity", "cafe", "Café"},
	{"leisure", "park", "Park"},
	{"leisure", "playground", "Playground"},
	{"amenity", "bank", "Bank"},
	{"amenity", "atm", "ATM"},
}

// Name picks name, operator or brand, falling back to a label derived from tags.
func Name(tags Tags) string {
	for _, k := range []string{"name", "operator", "brand"} {
		if v := tags[k]; v != "" {
			return v
		}
	}
	for _, l := range defaultLabels {
		v := tags[l.key]
		if v == "" {
			continue
		}
		if l.value == "" || v == l.value {
			return l.name
		}
	}
	return "Unknown"
}

// Type returns the most specific raw tag value describing the element.
func Type(tags Tags) string {
	for _, k := range []string{"amenity", "shop", "leisure", "railway", "highway", "public_transport"} {
		if v := tags[k]; v != "" {
			return v
		}
	}
	return "unknown"
}
