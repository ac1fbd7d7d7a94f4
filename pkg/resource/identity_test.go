package resource

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type tagged struct {
	Key  int    `json:"id"`
	ID   string `json:"legacy_id"`
	Name string `json:"name"`
}

type named struct {
	Id    int64
	Title string
}

type base struct {
	ID string `json:"id"`
}

type embedded struct {
	base
	Name string `json:"name"`
}

type Exported struct {
	ID string `json:"id"`
}

type promoted struct {
	Exported
	Name string `json:"name"`
}

func TestResolveIdentity_Struct(t *testing.T) {
	t.Run("json tag wins over field name", func(t *testing.T) {
		id, err := resolveIdentity[tagged, int](nil, nil)
		require.NoError(t, err)

		item := tagged{Key: 7, ID: "x"}
		assert.Equal(t, 7, id.get(item))

		require.NotNil(t, id.set)
		id.set(9, &item)
		assert.Equal(t, 9, item.Key)
	})

	t.Run("field named Id", func(t *testing.T) {
		id, err := resolveIdentity[named, int64](nil, nil)
		require.NoError(t, err)
		assert.Equal(t, int64(3), id.get(named{Id: 3}))
	})

	t.Run("promoted from exported embedded struct", func(t *testing.T) {
		id, err := resolveIdentity[promoted, string](nil, nil)
		require.NoError(t, err)

		item := promoted{Name: "n"}
		id.set("p1", &item)
		assert.Equal(t, "p1", item.Exported.ID)
		assert.Equal(t, "p1", id.get(item))
	})

	t.Run("promoted from unexported embedded struct", func(t *testing.T) {
		id, err := resolveIdentity[embedded, string](nil, nil)
		require.NoError(t, err)

		item := embedded{Name: "n"}
		id.set("e1", &item)
		assert.Equal(t, "e1", item.ID)
	})

	t.Run("pointer items", func(t *testing.T) {
		id, err := resolveIdentity[*base, string](nil, nil)
		require.NoError(t, err)

		assert.Equal(t, "", id.get(nil))
		item := &base{}
		id.set("b1", &item)
		assert.Equal(t, "b1", item.ID)
		assert.Equal(t, "b1", id.get(item))
	})

	t.Run("mismatched ID type", func(t *testing.T) {
		_, err := resolveIdentity[base, int](nil, nil)
		assert.ErrorIs(t, err, ErrNoIdentity)
	})

	t.Run("selector overrides reflection", func(t *testing.T) {
		id, err := resolveIdentity[tagged, string](func(item tagged) string { return item.Name }, nil)
		require.NoError(t, err)
		assert.Equal(t, "n", id.get(tagged{Key: 1, Name: "n"}))
		assert.Nil(t, id.set)
	})
}

func TestResolveIdentity_Map(t *testing.T) {
	id, err := resolveIdentity[map[string]any, any](nil, nil)
	require.NoError(t, err)

	assert.Equal(t, "1", id.get(map[string]any{"id": "1"}))
	assert.Nil(t, id.get(map[string]any{"name": "x"}))
	assert.Nil(t, id.get(nil))

	var item map[string]any
	id.set("2", &item)
	assert.Equal(t, map[string]any{"id": "2"}, item)

	_, err = resolveIdentity[map[int]string, string](nil, nil)
	assert.ErrorIs(t, err, ErrNoIdentity)
}

func TestResolveIdentity_Unsupported(t *testing.T) {
	_, err := resolveIdentity[string, string](nil, nil)
	assert.ErrorIs(t, err, ErrNoIdentity)

	id, err := resolveIdentity[string, string](func(s string) string { return s }, nil)
	require.NoError(t, err)
	assert.Equal(t, "v", id.get("v"))
}

func TestMergeFields(t *testing.T) {
	tests := []struct {
		name string
		prev todo
		next todo
		want todo
	}{
		{
			name: "omitted fields keep the previous value",
			prev: todo{ID: "1", Name: "a", Done: true},
			next: todo{ID: "1", Name: "b"},
			want: todo{ID: "1", Name: "b", Done: true},
		},
		{
			name: "present fields replace",
			prev: todo{ID: "1", Name: "a"},
			next: todo{ID: "1", Name: "a", Done: true},
			want: todo{ID: "1", Name: "a", Done: true},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, mergeFields(tt.prev, tt.next))
		})
	}

	t.Run("maps", func(t *testing.T) {
		got := mergeFields(
			map[string]any{"id": "1", "name": "a", "done": true},
			map[string]any{"id": "1", "name": "b"},
		)
		assert.Equal(t, map[string]any{"id": "1", "name": "b", "done": true}, got)
	})

	t.Run("non-object values are replaced", func(t *testing.T) {
		assert.Equal(t, "next", mergeFields("prev", "next"))
	})
}
