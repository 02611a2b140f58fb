// Package photo maps stored photo references to fetchable URLs and owns the
// upload, delete and replace rules for catch photos.
package photo

import (
	"net/url"
	"strings"
)

type Kind int

const (
	// None means the entry has no photo.
	None Kind = iota
	// Path is an object path inside the managed bucket.
	Path
	// External is an absolute URL outside the managed bucket. It is served
	// as-is and never deleted.
	External
)

func (k Kind) String() string {
	switch k {
	case Path:
		return "path"
	case External:
		return "external"
	default:
		return "none"
	}
}

// Ref is a parsed stored photo reference.
type Ref struct {
	kind  Kind
	value string
}

func PathRef(path string) Ref { return Ref{kind: Path, value: path} }

func (r Ref) Kind() Kind { return r.kind }

// Path returns the object path when r refers to the managed bucket.
func (r Ref) Path() (string, bool) {
	if r.kind != Path {
		return "", false
	}
	return r.value, true
}

// Stored returns the value persisted on the entry row.
func (r Ref) Stored() *string {
	if r.kind == None {
		return nil
	}
	v := r.value
	return &v
}

// ParseRef normalizes a stored value. Plain values are bucket paths; public or
// signed URLs of bucket are reduced to their path; any other http(s) URL is
// External. Unparseable URLs are External too, so they pass through untouched.
func ParseRef(stored *string, bucket string) Ref {
	if stored == nil || *stored == "" {
		return Ref{}
	}
	v := *stored
	if !strings.HasPrefix(v, "http://") && !strings.HasPrefix(v, "https://") {
		return Ref{kind: Path, value: v}
	}

	u, err := url.Parse(v)
	if err != nil {
		return Ref{kind: External, value: v}
	}
	for _, prefix := range []string{
		"/storage/v1/object/public/" + bucket + "/",
		"/storage/v1/object/sign/" + bucket + "/",
	} {
		escaped := u.EscapedPath()
		if !strings.HasPrefix(escaped, prefix) {
			continue
		}
		path, err := url.PathUnescape(strings.TrimPrefix(escaped, prefix))
		if err != nil || path == "" {
			return Ref{kind: External, value: v}
		}
		return Ref{kind: Path, value: path}
	}
	return Ref{kind: External, value: v}
}
