package orderedmap

import (
	"bytes"
	"sort"
	"testing"

	"github.com/brianvoe/gofakeit/v6"
	"github.com/stretchr/testify/require"
)

func TestAlphaGamma(t *testing.T) {
	m := New[string]()
	m.Insert("alpha", "1")
	m.Insert("gamma", "2")

	next, ok := m.NextKey("alpha")
	require.True(t, ok)
	require.Equal(t, "gamma", next)

	m.Remove("alpha")
	_, ok = m.Search("alpha")
	require.False(t, ok)

	next, ok = m.NextKey("")
	require.True(t, ok)
	require.Equal(t, "gamma", next)
}

func TestInsertOverrides(t *testing.T) {
	m := New[int]()
	m.Insert("k", 1)
	m.Insert("k", 2)

	v, ok := m.Search("k")
	require.True(t, ok)
	require.Equal(t, 2, v)
	require.Equal(t, 1, m.Len())
}

func TestRemoveReturnsValue(t *testing.T) {
	m := New[int]()
	m.Insert("k", 42)

	v, ok := m.Remove("k")
	require.True(t, ok)
	require.Equal(t, 42, v)

	_, ok = m.Remove("k")
	require.False(t, ok)
}

func TestNextKeyIsExclusive(t *testing.T) {
	m := New[int]()
	_, ok := m.NextKey("anything")
	require.False(t, ok)

	for i, k := range []string{"b", "d", "f"} {
		m.Insert(k, i)
	}

	cases := map[string]string{"": "b", "a": "b", "b": "d", "c": "d", "d": "f", "e": "f"}
	for from, want := range cases {
		got, ok := m.NextKey(from)
		require.True(t, ok, from)
		require.Equal(t, want, got, from)
	}

	_, ok = m.NextKey("f")
	require.False(t, ok)
	_, ok = m.NextKey("z")
	require.False(t, ok)

	v, ok := m.NextValue("b")
	require.True(t, ok)
	require.Equal(t, 1, v)
}

func TestByteOrder(t *testing.T) {
	m := New[int]()
	keys := []string{"a\x00", "a", "\xff", "B", "b", "ab"}
	for i, k := range keys {
		m.Insert(k, i)
	}

	var got []string
	for k, ok := m.NextKey(""); ok; k, ok = m.NextKey(k) {
		got = append(got, k)
	}
	require.Equal(t, []string{"B", "a", "a\x00", "ab", "b", "\xff"}, got)
}

func TestRandomOpsMatchModel(t *testing.T) {
	m := New[string]()
	model := make(map[string]string)

	for i := 0; i < 5000; i++ {
		key := gofakeit.LetterN(2)
		switch gofakeit.Number(0, 2) {
		case 0, 1:
			value := gofakeit.Word()
			m.Insert(key, value)
			model[key] = value
		case 2:
			m.Remove(key)
			delete(model, key)
		}

		v, ok := m.Search(key)
		want, wantOk := model[key]
		require.Equal(t, wantOk, ok)
		require.Equal(t, want, v)
	}
	require.Equal(t, len(model), m.Len())

	keys := make([]string, 0, len(model))
	for k := range model {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	var walked []string
	m.Ascend("", func(key string, value string) bool {
		require.Equal(t, model[key], value)
		walked = append(walked, key)
		return true
	})
	require.Equal(t, keys, walked)

	for i, k := range keys {
		next, ok := m.NextKey(k)
		if i == len(keys)-1 {
			require.False(t, ok)
		} else {
			require.True(t, ok)
			require.Greater(t, next, k)
			require.Equal(t, keys[i+1], next)
		}
	}
}

func TestCloneIsIndependent(t *testing.T) {
	m := New[int]()
	m.Insert("a", 1)

	c := m.Clone()
	c.Insert("b", 2)
	c.Remove("a")

	_, ok := m.Search("a")
	require.True(t, ok)
	_, ok = m.Search("b")
	require.False(t, ok)
	require.Equal(t, 1, c.Len())
}

func TestPrintAll(t *testing.T) {
	m := New[int]()
	m.Insert("b", 2)
	m.Insert("a", 1)

	var buf bytes.Buffer
	require.NoError(t, m.PrintAll(&buf))
	require.Equal(t, "\"a\": 1\n\"b\": 2\n", buf.String())

	m.Destruct()
	require.Equal(t, 0, m.Len())
	_, _, ok := m.First()
	require.False(t, ok)
}
