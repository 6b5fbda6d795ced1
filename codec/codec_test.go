package codec

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type vehicle struct {
	Plate  string            `json:"plate"`
	Speed  float64           `json:"speed"`
	Tags   []string          `json:"tags"`
	Attrs  map[string]string `json:"attrs"`
	Parked bool              `json:"parked"`
}

func TestRoundTrip(t *testing.T) {
	v := vehicle{
		Plate: "B-CT 1980",
		Speed: 42.5,
		Tags:  []string{"fleet", "ev"},
		Attrs: map[string]string{"depot": "north"},
	}

	for _, c := range []Codec{JSON{}, GoJSON{}} {
		t.Run(c.Name(), func(t *testing.T) {
			data, err := c.Marshal(v)
			require.NoError(t, err)

			var got vehicle
			require.NoError(t, c.Unmarshal(data, &got))
			assert.Equal(t, v, got)
		})
	}
}

func TestInterchangeable(t *testing.T) {
	data := MustMarshal(JSON{}, map[string]int{"a": 1})

	var got map[string]int
	require.NoError(t, GoJSON{}.Unmarshal(data, &got))
	assert.Equal(t, map[string]int{"a": 1}, got)
}

func TestByName(t *testing.T) {
	c, ok := ByName("json")
	require.True(t, ok)
	assert.Equal(t, JSON{}, c)

	c, ok = ByName("go-json")
	require.True(t, ok)
	assert.Equal(t, GoJSON{}, c)

	_, ok = ByName("msgpack")
	assert.False(t, ok)

	assert.Equal(t, "go-json", Default.Name())
}

func TestAppend(t *testing.T) {
	out, err := GoJSON{}.Append([]byte("x="), 7)
	require.NoError(t, err)
	assert.Equal(t, "x=7", string(out))
}

func TestMustMarshalPanics(t *testing.T) {
	assert.Panics(t, func() { MustMarshal(nil, make(chan int)) })
}
