package codec

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type plan struct {
	Root     string         `cbor:"root"`
	Items    []string       `cbor:"items"`
	Versions map[string]int `cbor:"versions"`
}

func TestFingerprintIsStable(t *testing.T) {
	a := plan{Root: "site_default", Items: []string{"Python", "Ansible"}, Versions: map[string]int{"eng": 1, "site_default": 2, "kiosk": 3}}
	b := plan{Root: "site_default", Items: []string{"Python", "Ansible"}, Versions: map[string]int{"kiosk": 3, "site_default": 2, "eng": 1}}

	fa, err := Fingerprint(a)
	require.NoError(t, err)
	fb, err := Fingerprint(b)
	require.NoError(t, err)
	assert.Equal(t, fa, fb)
	assert.Len(t, fa, 64)

	reordered := a
	reordered.Items = []string{"Ansible", "Python"}
	fc, err := Fingerprint(reordered)
	require.NoError(t, err)
	assert.NotEqual(t, fa, fc)
}

func TestMarshalIsDeterministic(t *testing.T) {
	first, err := Marshal(map[string]string{"b": "2", "a": "1", "c": "3"})
	require.NoError(t, err)
	for range 10 {
		again, err := Marshal(map[string]string{"c": "3", "a": "1", "b": "2"})
		require.NoError(t, err)
		assert.Equal(t, first, again)
	}

	var decoded map[string]string
	require.NoError(t, Unmarshal(first, &decoded))
	assert.Equal(t, "2", decoded["b"])
}
