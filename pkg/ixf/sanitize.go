package ixf

// ErrNoVLANEntries is the feed-level error raised when no connection in
// the whole document carries a vlan_list entry.
const ErrNoVLANEntries = "No entries in any of the vlan_list lists, aborting."

// Sanitize normalizes known vendor quirks in place and flags documents
// that cannot be imported.
//
// The one quirk handled: some exchanges publish two separate vlan_list
// entries for the same VLAN, one carrying the IPv4 block and one the
// IPv6 block. When a connection's vlan_list has exactly two entries and
// between them exactly one ipv4 and one ipv6 block, they are merged into
// a single entry.
//
// When no vlan_list entry exists anywhere in the document, the document
// is flagged with ErrNoVLANEntries and the import aborts before parsing.
func Sanitize(doc *MemberExport) {
	vlanListFound := false

	for mi := range doc.MemberList {
		member := &doc.MemberList[mi]
		for ci := range member.ConnectionList {
			conn := &member.ConnectionList[ci]
			if len(conn.VLANList) == 0 {
				continue
			}
			vlanListFound = true

			if len(conn.VLANList) == 2 {
				a, b := &conn.VLANList[0], &conn.VLANList[1]
				v4Count := btoi(a.IPv4 != nil) + btoi(b.IPv4 != nil)
				v6Count := btoi(a.IPv6 != nil) + btoi(b.IPv6 != nil)

				if v4Count == 1 && v6Count == 1 {
					merged := *a
					if b.VLANID != nil {
						merged.VLANID = b.VLANID
					}
					if b.IPv4 != nil {
						merged.IPv4 = b.IPv4
					}
					if b.IPv6 != nil {
						merged.IPv6 = b.IPv6
					}
					conn.VLANList = []VLANEntry{merged}
				}
			}
		}
	}

	if !vlanListFound {
		doc.Error = ErrNoVLANEntries
	}
}

func btoi(b bool) int {
	if b {
		return 1
	}
	return 0
}
