package http

// Headers is an insertion-ordered header collection with case-insensitive
// lookup. Add keeps duplicates so multi-value headers survive verbatim;
// Set replaces. Names and values are owned strings: anything parsed from a
// borrowed line buffer is copied at the point of storage.
type Headers struct {
	kvs []headerKV
}

type headerKV struct {
	name  string // stored lowercase
	value string
}

func (h *Headers) Len() int { return len(h.kvs) }

func (h *Headers) Reset() {
	for i := range h.kvs {
		h.kvs[i] = headerKV{}
	}
	h.kvs = h.kvs[:0]
}

// Add appends name/value, keeping earlier occurrences.
func (h *Headers) Add(name, value string) {
	h.kvs = append(h.kvs, headerKV{name: lowerString(name), value: value})
}

// Set replaces every occurrence of name with a single value.
func (h *Headers) Set(name, value string) {
	name = lowerString(name)
	found := false
	out := h.kvs[:0]
	for _, kv := range h.kvs {
		if kv.name == name {
			if found {
				continue
			}
			kv.value = value
			found = true
		}
		out = append(out, kv)
	}
	h.kvs = out
	if !found {
		h.kvs = append(h.kvs, headerKV{name: name, value: value})
	}
}

// Get returns the first value for name.
func (h *Headers) Get(name string) (string, bool) {
	name = lowerString(name)
	for _, kv := range h.kvs {
		if kv.name == name {
			return kv.value, true
		}
	}
	return "", false
}

// Values returns every value stored for name, in insertion order.
func (h *Headers) Values(name string) []string {
	name = lowerString(name)
	var out []string
	for _, kv := range h.kvs {
		if kv.name == name {
			out = append(out, kv.value)
		}
	}
	return out
}

// Visit calls fn for each header in insertion order.
func (h *Headers) Visit(fn func(name, value string)) {
	for _, kv := range h.kvs {
		fn(kv.name, kv.value)
	}
}

func lowerString(s string) string {
	for i := 0; i < len(s); i++ {
		if s[i] >= 'A' && s[i] <= 'Z' {
			b := []byte(s)
			toLowerASCII(b)
			return string(b)
		}
	}
	return s
}
