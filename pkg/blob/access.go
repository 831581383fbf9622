// pkg/blob/access.go

package blob

// Access is who may read a container or object. Writes always stay with
// the owner.
type Access int

const (
	AccessPrivate Access = iota
	AccessPublicRead
)

func (a Access) String() string {
	if a == AccessPublicRead {
		return "public-read"
	}
	return "private"
}

// ParseAccess maps a mode name to an Access value.
func ParseAccess(s string) (Access, bool) {
	switch s {
	case "private":
		return AccessPrivate, true
	case "public-read":
		return AccessPublicRead, true
	}
	return AccessPrivate, false
}

// everyoneSID is the well known SID of the Everyone group.
const everyoneSID = "S-1-1-0"

// aclEntry is one access control entry in platform-neutral form. The
// helpers below manipulate entry lists without touching the filesystem
// so the translation logic is testable on every platform.
type aclEntry struct {
	SID  string
	Read bool
}

// grantRead returns entries with a read grant for sid, adding an entry
// when none exists.
func grantRead(entries []aclEntry, sid string) []aclEntry {
	for i, e := range entries {
		if e.SID == sid {
			entries[i].Read = true
			return entries
		}
	}
	return append(entries, aclEntry{SID: sid, Read: true})
}

// revokeRead returns entries without a read grant for sid.
func revokeRead(entries []aclEntry, sid string) []aclEntry {
	out := entries[:0]
	for _, e := range entries {
		if e.SID == sid {
			continue
		}
		out = append(out, e)
	}
	return out
}

// canRead reports whether entries grant read to sid.
func canRead(entries []aclEntry, sid string) bool {
	for _, e := range entries {
		if e.SID == sid && e.Read {
			return true
		}
	}
	return false
}

// accessOf translates an entry list back to an access mode.
func accessOf(entries []aclEntry) Access {
	if canRead(entries, everyoneSID) {
		return AccessPublicRead
	}
	return AccessPrivate
}

// applyAccess translates an access mode into the entry list change it
// implies.
func applyAccess(entries []aclEntry, access Access) []aclEntry {
	if access == AccessPublicRead {
		return grantRead(entries, everyoneSID)
	}
	return revokeRead(entries, everyoneSID)
}
