package model

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCityID_UnmarshalJSON(t *testing.T) {
	tests := []struct {
		name  string
		input string
		want  CityID
	}{
		{name: "number", input: `2643743`, want: 2643743},
		{name: "string", input: `"5128581"`, want: 5128581},
		{name: "float", input: `1000.0`, want: 1000},
		{name: "null", input: `null`, want: 0},
		{name: "empty string", input: `""`, want: 0},
		{name: "non numeric", input: `"london"`, want: 0},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var id CityID
			require.NoError(t, json.Unmarshal([]byte(tt.input), &id))
			assert.Equal(t, tt.want, id)
		})
	}
}

func TestCity_DecodesStringAndNumberIDs(t *testing.T) {
	var cities []City
	err := json.Unmarshal([]byte(`[{"id":"2643743","name":"London"},{"id":5128581,"name":"New York"}]`), &cities)
	require.NoError(t, err)

	assert.True(t, cities[0].Matches(IDKey(2643743)))
	assert.True(t, cities[1].Matches(ParseCityKey("5128581")))
}

func TestParseCityKey(t *testing.T) {
	assert.Equal(t, CityKey{ID: 2643743}, ParseCityKey("2643743"))
	assert.Equal(t, CityKey{Name: "London"}, ParseCityKey(" London "))
	assert.True(t, ParseCityKey("").IsZero())
	assert.Equal(t, "London", ParseCityKey("London").String())
	assert.Equal(t, "42", ParseCityKey("42").String())
}

func TestCity_Matches(t *testing.T) {
	known := City{ID: 2643743, Name: "London"}
	unknown := City{Name: "Springfield"}

	assert.True(t, known.Matches(IDKey(2643743)))
	assert.False(t, known.Matches(IDKey(1)))
	assert.False(t, known.Matches(NameKey("London")), "name keys only address cities without id")

	assert.True(t, unknown.Matches(NameKey("springfield")))
	assert.False(t, unknown.Matches(NameKey("")))
	assert.True(t, SameCity(unknown, City{Name: "SPRINGFIELD"}))
}

func TestCity_Clone(t *testing.T) {
	gust := 7.5
	c := City{ID: 1, Wind: Wind{Gust: &gust}, RawData: json.RawMessage(`{"id":1}`)}
	cp := c.Clone()

	*cp.Wind.Gust = 1
	cp.RawData[0] = '['

	assert.Equal(t, 7.5, *c.Wind.Gust)
	assert.Equal(t, `{"id":1}`, string(c.RawData))
}

func TestCity_HasRawData(t *testing.T) {
	assert.False(t, City{}.HasRawData())
	assert.False(t, City{RawData: json.RawMessage("null")}.HasRawData())
	assert.True(t, City{RawData: json.RawMessage(`{}`)}.HasRawData())
}
