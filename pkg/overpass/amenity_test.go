package overpass

import (
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestDistance(t *testing.T) {
	tests := []struct {
		name      string
		lat1      float64
		lon1      float64
		lat2      float64
		lon2      float64
		want      int
		tolerance int
	}{
		{"identical", 52.52, 13.405, 52.52, 13.405, 0, 0},
		{"one degree longitude at equator", 0, 0, 0, 1, 111195, 1},
		{"london to paris", 51.5074, -0.1278, 48.8566, 2.3522, 343556, 1000},
		{"berlin to munich", 52.5200, 13.4050, 48.1351, 11.5820, 504000, 2000},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := Distance(tt.lat1, tt.lon1, tt.lat2, tt.lon2)
			assert.InDelta(t, tt.want, got, float64(tt.tolerance))
		})
	}
}

func TestDistance_Symmetric(t *testing.T) {
	assert.Equal(t,
		Distance(52.52, 13.405, 52.50, 13.30),
		Distance(52.50, 13.30, 52.52, 13.405),
	)
}

func TestGroup_SortedCappedDisjoint(t *testing.T) {
	var items []Amenity
	// 12 of each category with descending distances so sorting matters.
	for _, c := range Categories {
		for i := 0; i < 12; i++ {
			items = append(items, Amenity{
				Name:     fmt.Sprintf("%s-%d", c, i),
				Distance: 1000 - i*10,
				Category: c,
			})
		}
	}
	items = append(items, Amenity{Name: "orphan", Distance: 1, Category: "zoo"})

	r := Group(Point{Lat: 52.5, Lon: 13.4}, items, time.Now())

	seen := map[string]Category{}
	for _, c := range Categories {
		list := r.List(c)
		assert.Len(t, list, c.Cap(), "category %s", c)
		for i, a := range list {
			assert.Equal(t, c, a.Category)
			if i > 0 {
				assert.LessOrEqual(t, list[i-1].Distance, a.Distance)
			}
			prev, dup := seen[a.Name]
			assert.False(t, dup, "%s appears in %s and %s", a.Name, prev, c)
			seen[a.Name] = c
		}
	}
	assert.Equal(t, 10, len(r.PublicTransport))
	assert.Equal(t, 10, len(r.Restaurants))
	assert.Equal(t, 5, len(r.Schools))
	assert.Equal(t, 890, r.Schools[0].Distance)
	assert.NotContains(t, seen, "orphan")
}

func TestGroup_EmptyListsNotNil(t *testing.T) {
	r := Group(Point{}, nil, time.Now())
	for _, c := range Categories {
		assert.NotNil(t, r.List(c))
		assert.Empty(t, r.List(c))
	}
	assert.Equal(t, 0, r.Total())
}

func TestSummary(t *testing.T) {
	r := Group(Point{}, []Amenity{
		{Category: CategorySchool, Distance: 300},
		{Category: CategorySchool, Distance: 120},
		{Category: CategoryPark, Distance: 80},
	}, time.Now())

	s := r.Summary()
	if assert.NotNil(t, s.NearestSchool) {
		assert.Equal(t, 120, *s.NearestSchool)
	}
	if assert.NotNil(t, s.NearestPark) {
		assert.Equal(t, 80, *s.NearestPark)
	}
	assert.Nil(t, s.NearestDoctor)
	assert.Nil(t, s.NearestTransport)
}
