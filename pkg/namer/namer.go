package namer

import (
	"regexp"
	"strings"

	"github.com/spf13/viper"

	"github.com/atlassian/gocollectd"
)

var regInvalidChars = regexp.MustCompile(`[^a-zA-Z\d_-]`)

// Namer rewrites dot separated sample names before they are sent to the sinks.
type Namer struct {
	prefix          []string
	postfix         []string
	hostTrim        []string
	replaceChar     string
	stripDuplicates bool
}

// NewNamerFromViper creates a Namer from the name-* parameters.
func NewNamerFromViper(v *viper.Viper) *Namer {
	return NewNamer(
		v.GetString(gocollectd.ParamNamePrefix),
		v.GetStringSlice(gocollectd.ParamNamePrefixParts),
		v.GetString(gocollectd.ParamNamePostfix),
		v.GetStringSlice(gocollectd.ParamNamePostfixParts),
		v.GetString(gocollectd.ParamNameReplaceChar),
		v.GetBool(gocollectd.ParamNameStripDuplicates),
		v.GetStringSlice(gocollectd.ParamNameHostTrim),
	)
}

// NewNamer creates a Namer.  prefix and postfix may contain several dot separated components, they are placed
// inside prefixParts and postfixParts respectively.  hostTrim suffixes are matched against the first
// component of a name, with dots standing for the underscores the host name was written with.
func NewNamer(prefix string, prefixParts []string, postfix string, postfixParts []string, replaceChar string, stripDuplicates bool, hostTrim []string) *Namer {
	n := &Namer{
		replaceChar:     replaceChar,
		stripDuplicates: stripDuplicates,
	}
	n.prefix = appendParts(n.prefix, prefixParts...)
	n.prefix = appendParts(n.prefix, prefix)
	n.postfix = appendParts(n.postfix, postfix)
	n.postfix = appendParts(n.postfix, postfixParts...)
	for _, suffix := range hostTrim {
		suffix = strings.Replace(suffix, ".", "_", -1)
		if suffix != "" {
			n.hostTrim = append(n.hostTrim, suffix)
		}
	}
	return n
}

func appendParts(parts []string, names ...string) []string {
	for _, name := range names {
		for _, p := range strings.Split(name, ".") {
			if p != "" {
				parts = append(parts, p)
			}
		}
	}
	return parts
}

// Name returns the rewritten form of name.
func (n *Namer) Name(name string) string {
	parts := strings.Split(name, ".")
	if len(n.hostTrim) > 0 {
		host := parts[0]
		for _, suffix := range n.hostTrim {
			if len(host) > len(suffix) && strings.HasSuffix(host, suffix) {
				parts[0] = host[:len(host)-len(suffix)]
				break
			}
		}
	}

	all := make([]string, 0, len(n.prefix)+len(parts)+len(n.postfix))
	all = append(all, n.prefix...)
	all = append(all, parts...)
	all = append(all, n.postfix...)

	out := all[:0]
	for _, p := range all {
		p = regInvalidChars.ReplaceAllLiteralString(p, n.replaceChar)
		if p == "" {
			continue
		}
		if n.stripDuplicates && len(out) > 0 && out[len(out)-1] == p {
			continue
		}
		out = append(out, p)
	}
	return strings.Join(out, ".")
}

// Rename rewrites the names of samples in place.
func (n *Namer) Rename(samples []gocollectd.Sample) {
	for i := range samples {
		samples[i].Name = n.Name(samples[i].Name)
	}
}
