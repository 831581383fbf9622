// pkg/blob/access_windows.go

//go:build windows

package blob

import (
	"unsafe"

	"golang.org/x/sys/windows"
)

// On Windows the access model is a read grant for Everyone in the DACL:
// public-read adds it, private takes it away.

func setAccess(path string, access Access) error {
	everyone, err := windows.CreateWellKnownSid(windows.WinWorldSid)
	if err != nil {
		return err
	}
	sd, err := windows.GetNamedSecurityInfo(path, windows.SE_FILE_OBJECT,
		windows.DACL_SECURITY_INFORMATION)
	if err != nil {
		return err
	}
	old, _, err := sd.DACL()
	if err != nil {
		return err
	}
	mode := windows.REVOKE_ACCESS
	if access == AccessPublicRead {
		mode = windows.GRANT_ACCESS
	}
	entry := windows.EXPLICIT_ACCESS{
		AccessPermissions: windows.GENERIC_READ,
		AccessMode:        mode,
		Inheritance:       windows.SUB_CONTAINERS_AND_OBJECTS_INHERIT,
		Trustee: windows.TRUSTEE{
			TrusteeForm:  windows.TRUSTEE_IS_SID,
			TrusteeType:  windows.TRUSTEE_IS_WELL_KNOWN_GROUP,
			TrusteeValue: windows.TrusteeValueFromSID(everyone),
		},
	}
	dacl, err := windows.ACLFromEntries([]windows.EXPLICIT_ACCESS{entry}, old)
	if err != nil {
		return err
	}
	return windows.SetNamedSecurityInfo(path, windows.SE_FILE_OBJECT,
		windows.DACL_SECURITY_INFORMATION, nil, nil, dacl, nil)
}

func getAccess(path string) (Access, error) {
	sd, err := windows.GetNamedSecurityInfo(path, windows.SE_FILE_OBJECT,
		windows.DACL_SECURITY_INFORMATION)
	if err != nil {
		return AccessPrivate, err
	}
	dacl, _, err := sd.DACL()
	if err != nil {
		return AccessPrivate, err
	}
	if dacl == nil {
		// a nil DACL grants everything to everyone
		return AccessPublicRead, nil
	}
	return accessOf(daclEntries(dacl)), nil
}

// daclEntries flattens the allow ACEs of a DACL into the neutral form
// the shared helpers work on.
func daclEntries(dacl *windows.ACL) []aclEntry {
	const readMask = windows.GENERIC_READ | 0x0001 // FILE_READ_DATA
	var entries []aclEntry
	for i := uint32(0); ; i++ {
		var ace *windows.ACCESS_ALLOWED_ACE
		if err := windows.GetAce(dacl, i, &ace); err != nil {
			break
		}
		if ace.Header.AceType != windows.ACCESS_ALLOWED_ACE_TYPE {
			continue
		}
		sid := (*windows.SID)(unsafe.Pointer(&ace.SidStart))
		entries = append(entries, aclEntry{
			SID:  sid.String(),
			Read: ace.Mask&readMask != 0,
		})
	}
	return entries
}
