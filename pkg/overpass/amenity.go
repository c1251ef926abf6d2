package overpass

import (
	"math"
	"sort"
	"time"
)

// Category is the bucket an amenity is grouped into.
type Category string

const (
	CategorySchool          Category = "school"
	CategoryGrocery         Category = "grocery"
	CategoryDoctor          Category = "doctor"
	CategoryPharmacy        Category = "pharmacy"
	CategoryPublicTransport Category = "public_transport"
	CategoryRestaurant      Category = "restaurant"
	CategoryPark            Category = "park"
	CategoryBank            Category = "bank"
)

// Categories lists every category in display order.
var Categories = []Category{
	CategorySchool,
	CategoryGrocery,
	CategoryDoctor,
	CategoryPharmacy,
	CategoryPublicTransport,
	CategoryRestaurant,
	CategoryPark,
	CategoryBank,
}

// Cap returns how many amenities of category c are kept.
func (c Category) Cap() int {
	switch c {
	case CategoryPublicTransport, CategoryRestaurant:
		return 10
	default:
		return 5
	}
}

// Amenity is a single point of interest near the origin.
type Amenity struct {
	Type     string   `json:"type"`
	Name     string   `json:"name"`
	Lat      float64  `json:"lat"`
	Lon      float64  `json:"lon"`
	Distance int      `json:"distance"` // meters from origin
	Category Category `json:"category"`
}

// Point is a WGS84 coordinate.
type Point struct {
	Lat float64 `json:"lat"`
	Lon float64 `json:"lon"`
}

// Result groups nearby amenities by category. Each list is sorted by
// distance and truncated to the category cap.
type Result struct {
	Origin          Point     `json:"origin"`
	Schools         []Amenity `json:"schools"`
	GroceryStores   []Amenity `json:"grocery_stores"`
	Doctors         []Amenity `json:"doctors"`
	Pharmacies      []Amenity `json:"pharmacies"`
	PublicTransport []Amenity `json:"public_transport"`
	Restaurants     []Amenity `json:"restaurants"`
	Parks           []Amenity `json:"parks"`
	Banks           []Amenity `json:"banks"`
	FetchedAt       time.Time `json:"fetched_at"`
}

// List returns the slice holding category c.
func (r *Result) List(c Category) []Amenity {
	if p := r.slot(c); p != nil {
		return *p
	}
	return nil
}

func (r *Result) slot(c Category) *[]Amenity {
	switch c {
	case CategorySchool:
		return &r.Schools
	case CategoryGrocery:
		return &r.GroceryStores
	case CategoryDoctor:
		return &r.Doctors
	case CategoryPharmacy:
		return &r.Pharmacies
	case CategoryPublicTransport:
		return &r.PublicTransport
	case CategoryRestaurant:
		return &r.Restaurants
	case CategoryPark:
		return &r.Parks
	case CategoryBank:
		return &r.Banks
	}
	return nil
}

// Total counts amenities across all categories.
func (r *Result) Total() int {
	n := 0
	for _, c := range Categories {
		n += len(r.List(c))
	}
	return n
}

// Summary holds the distance in meters to the nearest amenity of each
// headline category; nil when none was found.
type Summary struct {
	NearestSchool    *int `json:"nearest_school"`
	NearestGrocery   *int `json:"nearest_grocery"`
	NearestDoctor    *int `json:"nearest_doctor"`
	NearestPharmacy  *int `json:"nearest_pharmacy"`
	NearestTransport *int `json:"nearest_transport"`
	NearestPark      *int `json:"nearest_park"`
}

// Summary reports the nearest distance per headline category.
func (r *Result) Summary() Summary {
	nearest := func(c Category) *int {
		list := r.List(c)
		if len(list) == 0 {
			return nil
		}
		d := list[0].Distance
		return &d
	}
	return Summary{
		NearestSchool:    nearest(CategorySchool),
		NearestGrocery:   nearest(CategoryGrocery),
		NearestDoctor:    nearest(CategoryDoctor),
		NearestPharmacy:  nearest(CategoryPharmacy),
		NearestTransport: nearest(CategoryPublicTransport),
		NearestPark:      nearest(CategoryPark),
	}
}

const earthRadiusMeters = 6371000

// Distance returns the great-circle distance between two coordinates in
// meters, rounded to the nearest meter.
func Distance(lat1, lon1, lat2, lon2 float64) int {
	phi1 := lat1 * math.Pi / 180
	phi2 := lat2 * math.Pi / 180
	dPhi := (lat2 - lat1) * math.Pi / 180
	dLambda := (lon2 - lon1) * math.Pi / 180

	a := math.Sin(dPhi/2)*math.Sin(dPhi/2) +
		math.Cos(phi1)*math.Cos(phi2)*math.Sin(dLambda/2)*math.Sin(dLambda/2)
	c := 2 * math.Atan2(math.Sqrt(a), math.Sqrt(1-a))
	return int(math.Round(earthRadiusMeters * c))
}

// Group buckets amenities by category, sorts each bucket by distance and
// applies the per-category cap. Amenities with an unknown category are dropped.
func Group(origin Point, items []Amenity, fetchedAt time.Time) *Result {
	r := &Result{Origin: origin, FetchedAt: fetchedAt}
	for _, c := range Categories {
		*r.slot(c) = []Amenity{}
	}
	for _, a := range items {
		p := r.slot(a.Category)
		if p == nil {
			continue
		}
		*p = append(*p, a)
	}
	for _, c := range Categories {
		p := r.slot(c)
		sort.SliceStable(*p, func(i, j int) bool { return (*p)[i].Distance < (*p)[j].Distance })
		if len(*p) > c.Cap() {
			*p = (*p)[:c.Cap()]
		}
	}
	return r
}
