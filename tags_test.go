package gocollectd

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestTagsToMap(t *testing.T) {
	t.Parallel()
	tests := []struct {
		name     string
		tags     []string
		expected map[string]string
	}{
		{"empty tags", nil, map[string]string{}},
		{"1 tag is added", []string{"a:b"}, map[string]string{"a": "b"}},
		{"2 tags are added", []string{"a:b", "c:d"}, map[string]string{"a": "b", "c": "d"}},
		{"missing keys are handled", []string{"b", "c:d"}, map[string]string{"unknown": "b", "c": "d"}},
		{"conflicting keys are handled", []string{"a:b", "a:d"}, map[string]string{"a": "b__d"}},
		{"conflicts are sorted", []string{"a:c", "a:b"}, map[string]string{"a": "b__c"}},
		{"multiple colons are ok", []string{"a:b:c"}, map[string]string{"a": "b:c"}},
		{"invalid key characters are replaced", []string{"a.b-c:d"}, map[string]string{"a_b_c": "d"}},
		{"values are kept", []string{"a:b.c"}, map[string]string{"a": "b.c"}},
	}

	for _, tc := range tests {
		tc := tc
		t.Run(tc.name, func(t *testing.T) {
			t.Parallel()
			tags := Tags(tc.tags)
			assert.EqualValues(t, tc.expected, tags.ToMap())
		})
	}
}

func TestTagsValues(t *testing.T) {
	t.Parallel()
	assert.Equal(t, []string{"emitter", "bare", "b:c"}, Tags{"channel:emitter", "bare", "a:b:c"}.Values())
	assert.Equal(t, []string{}, Tags(nil).Values())
}

func TestTagsConcatDoesNotAlias(t *testing.T) {
	t.Parallel()
	base := make(Tags, 1, 10)
	base[0] = "a:b"
	x := base.Concat(Tags{"c:d"})
	y := base.Concat(Tags{"e:f"})
	assert.Equal(t, Tags{"a:b", "c:d"}, x)
	assert.Equal(t, Tags{"a:b", "e:f"}, y)
	assert.Nil(t, Tags(nil).Copy())
}
