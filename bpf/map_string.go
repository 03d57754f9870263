package bpf

var mapTypeNames = map[MapType]string{
	MapTypeUnspec:        "unspec",
	MapTypeHash:          "hash",
	MapTypeArray:         "array",
	MapTypeProgArray:     "prog_array",
	MapTypePerCPUHash:    "percpu_hash",
	MapTypePerCPUArray:   "percpu_array",
	MapTypeLRUHash:       "lru_hash",
	MapTypeLRUPerCPUHash: "lru_percpu_hash",
	MapTypeLPMTrie:       "lpm_trie",
	MapTypeQueue:         "queue",
	MapTypeStack:         "stack",
	MapTypeRingBuf:       "ringbuf",
}

func (t MapType) String() string {
	if s, ok := mapTypeNames[t]; ok {
		return s
	}

	return "unknown"
}

// ParseMapType resolves a human-readable map kind name as used in
// mapctl spec files.
func ParseMapType(s string) (MapType, bool) {
	for t, name := range mapTypeNames {
		if name == s {
			return t, true
		}
	}

	return MapTypeUnspec, false
}
