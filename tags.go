package gocollectd

import (
	"sort"
	"strings"
)

// Tags qualify internal statistics.  A tag is either "key:value" or a bare "value".  Sinks that have no notion
// of tags fold the values into the metric path.
type Tags []string

const unset = "unknown"

// String returns a comma-separated string representation of the tags.
func (tags Tags) String() string {
	return strings.Join(tags, ",")
}

// Concat returns a new Tags with the additional ones added
func (tags Tags) Concat(additional Tags) Tags {
	t := make(Tags, 0, len(tags)+len(additional))
	t = append(t, tags...)
	t = append(t, additional...)
	return t
}

// Copy returns a copy of the Tags
func (tags Tags) Copy() Tags {
	if tags == nil {
		return nil
	}
	tagCopy := make(Tags, len(tags))
	copy(tagCopy, tags)
	return tagCopy
}

// Values returns the value of every tag, in order.
func (tags Tags) Values() []string {
	values := make([]string, len(tags))
	for i, tag := range tags {
		_, values[i] = parseTag(tag)
	}
	return values
}

// ToMap converts the tags into label pairs.
// - A tag without a key is stored under "unknown"
// - Repeated keys have their values sorted and joined with "__"
// - Characters other than letters, digits and '_' in keys are replaced with '_'
func (tags Tags) ToMap() map[string]string {
	flatpack := make(map[string][]string, len(tags))
	for _, tag := range tags {
		key, value := parseTag(tag)
		key = strings.Map(labelRune, key)
		flatpack[key] = append(flatpack[key], value)
	}

	tagsMap := make(map[string]string, len(flatpack))
	for key, values := range flatpack {
		if len(values) == 1 {
			tagsMap[key] = values[0]
			continue
		}
		sort.Strings(values)
		tagsMap[key] = strings.Join(values, `__`)
	}
	return tagsMap
}

func labelRune(r rune) rune {
	switch {
	case r >= 'a' && r <= 'z', r >= 'A' && r <= 'Z', r >= '0' && r <= '9', r == '_':
		return r
	}
	return '_'
}

func parseTag(tag string) (string, string) {
	tokens := strings.SplitN(tag, ":", 2)
	if len(tokens) == 2 {
		return tokens[0], tokens[1]
	}
	return unset, tokens[0]
}
