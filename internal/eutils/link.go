package eutils

// Link names for the PubMed neighbor databases.
const (
	linkNameSimilar    = "pubmed_pubmed"
	linkNameReferences = "pubmed_pubmed_refs"
	linkNameCitedIn    = "pubmed_pubmed_citedin"
)

// SessionHandle is the opaque continuation token pair returned by a
// neighbor_history link call. It lets a later search call resume the
// server-side result set instead of carrying a literal query.
type SessionHandle struct {
	WebEnv   string
	QueryKey string
}

// Empty reports whether the handle cannot be used for continuation. An empty
// handle means the relation has no results, which is a normal outcome.
func (h SessionHandle) Empty() bool {
	return h.WebEnv == "" || h.QueryKey == ""
}

// neighborIDs extracts the identifier list for the given link name from a
// neighbor or neighbor_score response.
func neighborIDs(resp elinkResponse, linkName string) []string {
	for _, ls := range resp.LinkSets {
		for _, db := range ls.LinkSetDBs {
			if db.LinkName != linkName {
				continue
			}
			ids := make([]string, 0, len(db.Links))
			for _, link := range db.Links {
				if link.ID != "" {
					ids = append(ids, link.ID)
				}
			}
			return ids
		}
	}
	return nil
}

// sessionHandleFrom extracts the history handle from a neighbor_history
// response. Absent fields yield an empty handle.
func sessionHandleFrom(resp elinkResponse) SessionHandle {
	if len(resp.LinkSets) == 0 {
		return SessionHandle{}
	}
	ls := resp.LinkSets[0]
	handle := SessionHandle{WebEnv: ls.WebEnv}
	if len(ls.LinkSetDBHistories) > 0 {
		handle.QueryKey = ls.LinkSetDBHistories[0].QueryKey
	}
	return handle
}
