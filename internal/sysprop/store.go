package sysprop

// Store provides read access to the system property space. Properties are
// flat dot-separated string keys ("ro.boot.bootdevice", "sys.keymaster.loaded")
// with string values; a missing property reads as the empty string.
//
// The gateway never writes properties: the boot chain and the keymaster HAL
// own them. Implementations must therefore tolerate properties appearing
// after construction (the readiness flag is flipped by another process while
// the gateway polls it).
type Store interface {
	// Get returns the value of the property, or "" if it is not set.
	Get(key string) string

	// GetDefault returns the value of the property, or def if it is not set.
	GetDefault(key, def string) string
}

// Static is an in-memory property store used by tests and by callers that
// inject a fixed property snapshot.
type Static map[string]string

func (s Static) Get(key string) string {
	return s[key]
}

func (s Static) GetDefault(key, def string) string {
	if v, ok := s[key]; ok {
		return v
	}
	return def
}
