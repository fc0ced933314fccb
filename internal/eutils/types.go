package eutils

import (
	"encoding/json"
	"encoding/xml"
	"strconv"
)

// esearchResponse is the JSON envelope returned by esearch.fcgi.
type esearchResponse struct {
	Result esearchResult `json:"esearchresult"`
}

// esearchResult carries the hit count, the identifier page, and the history
// server handle. Count is a decimal string in the JSON payload.
type esearchResult struct {
	Count    string   `json:"count"`
	IDList   []string `json:"idlist"`
	WebEnv   string   `json:"webenv"`
	QueryKey string   `json:"querykey"`
}

// CountInt parses the string-typed hit count. A missing or unparseable count
// is treated as zero.
func (r esearchResult) CountInt() int {
	n, err := strconv.Atoi(r.Count)
	if err != nil {
		return 0
	}
	return n
}

// esummaryResponse is the JSON envelope returned by esummary.fcgi. The result
// object is keyed by PMID, with an extra "uids" entry listing the keys, so
// records are decoded lazily per identifier.
type esummaryResponse struct {
	Result map[string]json.RawMessage `json:"result"`
}

// summaryRecord is one document summary inside an esummary result.
type summaryRecord struct {
	UID             string          `json:"uid"`
	Title           string          `json:"title"`
	PubDate         string          `json:"pubdate"`
	Source          string          `json:"source"`
	FullJournalName string          `json:"fulljournalname"`
	Authors         []summaryAuthor `json:"authors"`
	ArticleIDs      []articleID     `json:"articleids"`
}

// summaryAuthor is one entry of a summary author list. Entries with an
// authtype other than "Author" (collective names, investigators) are skipped
// during extraction.
type summaryAuthor struct {
	Name     string `json:"name"`
	AuthType string `json:"authtype"`
}

// articleID is one external identifier attached to a summary record.
type articleID struct {
	IDType string `json:"idtype"`
	Value  string `json:"value"`
}

// elinkResponse is the JSON envelope returned by elink.fcgi. Depending on
// cmd, a link set carries direct neighbor lists (neighbor_score), a history
// server handle (neighbor_history), or provider URLs (llinks).
type elinkResponse struct {
	LinkSets []linkSet `json:"linksets"`
}

type linkSet struct {
	WebEnv             string             `json:"webenv"`
	LinkSetDBs         []linkSetDB        `json:"linksetdbs"`
	LinkSetDBHistories []linkSetDBHistory `json:"linksetdbhistory"`
	IDURLs             []idURLEntry       `json:"idurls"`
	IDURLList          []idURLEntry       `json:"idurllist"`
}

type linkSetDB struct {
	LinkName string     `json:"linkname"`
	Links    []linkItem `json:"links"`
}

type linkSetDBHistory struct {
	LinkName string `json:"linkname"`
	QueryKey string `json:"querykey"`
}

// linkItem is one neighbor entry. The API returns bare identifiers for plain
// neighbor lists and {id, score} objects for neighbor_score, so both shapes
// are accepted.
type linkItem struct {
	ID string
}

// UnmarshalJSON accepts a bare string, a bare number, or an {id, score}
// object for a link entry.
func (l *linkItem) UnmarshalJSON(data []byte) error {
	var id string
	if err := json.Unmarshal(data, &id); err == nil {
		l.ID = id
		return nil
	}
	var num json.Number
	if err := json.Unmarshal(data, &num); err == nil {
		l.ID = num.String()
		return nil
	}
	var obj struct {
		ID json.Number `json:"id"`
	}
	if err := json.Unmarshal(data, &obj); err != nil {
		return err
	}
	l.ID = obj.ID.String()
	return nil
}

// idURLEntry is one per-identifier URL group from an llinks response.
type idURLEntry struct {
	ID      string   `json:"id"`
	URL     flexURL  `json:"url"`
	ObjURLs []objURL `json:"objurls"`
}

type objURL struct {
	URL flexURL `json:"url"`
}

// flexURL is a provider URL that the API serializes either as a bare string
// or as a {value} object.
type flexURL struct {
	Value string
}

// UnmarshalJSON accepts both URL encodings.
func (u *flexURL) UnmarshalJSON(data []byte) error {
	var s string
	if err := json.Unmarshal(data, &s); err == nil {
		u.Value = s
		return nil
	}
	var obj struct {
		Value string `json:"value"`
	}
	if err := json.Unmarshal(data, &obj); err != nil {
		return err
	}
	u.Value = obj.Value
	return nil
}

// abstractSet mirrors the portion of the efetch PubMed XML carrying the
// abstract sections.
type abstractSet struct {
	XMLName   xml.Name       `xml:"PubmedArticleSet"`
	Abstracts []abstractText `xml:"PubmedArticle>MedlineCitation>Article>Abstract>AbstractText"`
}

// abstractText is one labeled or unlabeled abstract section.
type abstractText struct {
	Label string `xml:"Label,attr"`
	Value string `xml:",chardata"`
}

// pmcArticle mirrors the portion of the efetch PMC XML carrying body
// paragraphs. Paragraph text is flattened, dropping inline markup.
type pmcArticle struct {
	XMLName xml.Name  `xml:"pmc-articleset"`
	Bodies  []pmcBody `xml:"article>body"`
}

// pmcBody collects the text of every paragraph beneath an article body,
// regardless of section nesting.
type pmcBody struct {
	Paragraphs []string
}

// UnmarshalXML walks the body's token stream and flattens each <p> element
// into one paragraph string.
func (b *pmcBody) UnmarshalXML(d *xml.Decoder, start xml.StartElement) error {
	depth := 1
	for {
		tok, err := d.Token()
		if err != nil {
			return err
		}
		switch t := tok.(type) {
		case xml.StartElement:
			if t.Name.Local == "p" {
				text, err := flattenElement(d)
				if err != nil {
					return err
				}
				b.Paragraphs = append(b.Paragraphs, text)
			} else {
				depth++
			}
		case xml.EndElement:
			depth--
			if depth == 0 {
				return nil
			}
		}
	}
}

// flattenElement concatenates every character data node until the current
// element closes, ignoring nested tags.
func flattenElement(d *xml.Decoder) (string, error) {
	var out []byte
	depth := 1
	for {
		tok, err := d.Token()
		if err != nil {
			return "", err
		}
		switch t := tok.(type) {
		case xml.StartElement:
			depth++
		case xml.CharData:
			out = append(out, t...)
		case xml.EndElement:
			depth--
			if depth == 0 {
				return string(out), nil
			}
		}
	}
}
