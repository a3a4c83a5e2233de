package rate

// keyspace lays out limiter keys as <prefix>:rl:<kind>:<id> so they sit next
// to the revocation keys of the same deployment.
type keyspace struct {
	base string
}

func newKeyspace(prefix string) keyspace {
	if prefix == "" {
		return keyspace{base: "rl:"}
	}
	return keyspace{base: prefix + ":rl:"}
}

func (k keyspace) login(identifier string) string { return k.base + "login:" + identifier }

func (k keyspace) loginIP(ip string) string { return k.base + "ip:" + ip }

func (k keyspace) refresh(subjectID string) string { return k.base + "refresh:" + subjectID }

// localKeys is used by the in-process limiter, whose map is private.
var localKeys = newKeyspace("")
