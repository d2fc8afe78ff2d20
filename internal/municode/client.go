// Package municode reads building-code chapters from municipal code portals:
// the Municode Library JSON API and eCode360 search pages.
package municode

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/url"
	"strconv"
	"strings"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/sells-group/ahj-registry/internal/fetcher"
	"github.com/sells-group/ahj-registry/internal/htmldoc"
)

// Portal names, used as circuit breaker keys.
const (
	PortalMunicode = "municode"
	PortalEcode360 = "ecode360"
)

const (
	maxTOCDepth     = 4
	maxSnippets     = 5
	defaultMunicode = "https://library.municode.com"
	defaultEcode360 = "https://ecode360.com"
)

// buildingKeywords select the TOC node holding the adopted technical codes.
var buildingKeywords = []string{"building", "construction", "technical", "fire", "electrical"}

// ecodeSelectors match eCode360 search result snippets.
var ecodeSelectors = []htmldoc.Selector{
	{Class: "search-result"},
	{Class: "result-snippet"},
	{Tag: "article", Class: "result"},
}

// Match is a Municode client (a jurisdiction's code library).
type Match struct {
	Name     string
	State    string
	ClientID string
	URL      string
}

// Node is an entry in a code's table of contents.
type Node struct {
	ID       string
	Label    string
	Children []Node
}

// Option configures the Client.
type Option func(*Client)

// WithMunicodeBaseURL sets the Municode base URL (for testing).
func WithMunicodeBaseURL(u string) Option {
	return func(c *Client) { c.municodeBase = strings.TrimRight(u, "/") }
}

// WithEcode360BaseURL sets the eCode360 base URL (for testing).
func WithEcode360BaseURL(u string) Option {
	return func(c *Client) { c.ecodeBase = strings.TrimRight(u, "/") }
}

// Client queries the portals through a Fetcher, which owns pacing and
// retries. Pages that answer 403 or 404 read as empty results.
type Client struct {
	f            fetcher.Fetcher
	municodeBase string
	ecodeBase    string
}

// New creates a portal client.
func New(f fetcher.Fetcher, opts ...Option) *Client {
	c := &Client{f: f, municodeBase: defaultMunicode, ecodeBase: defaultEcode360}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// SearchClients looks up Municode clients for a jurisdiction, keeping only
// those in the given state.
func (c *Client) SearchClients(ctx context.Context, name, stateAbbr string) ([]Match, error) {
	q := url.Values{}
	q.Set("query", name+" "+stateAbbr)
	q.Set("count", "5")
	raw, err := c.getJSON(ctx, c.municodeBase+"/api/search/suggest?"+q.Encode())
	if err != nil || raw == nil {
		return nil, err
	}

	var items []suggestion
	if err := decodeList(raw, &items, "suggestions", "results"); err != nil {
		return nil, eris.Wrap(err, "municode: decode suggestions")
	}

	var out []Match
	for _, it := range items {
		state := first(it.State, it.StateCode)
		if !strings.Contains(strings.ToLower(state), strings.ToLower(stateAbbr)) {
			continue
		}
		out = append(out, Match{
			Name:     first(it.Name, it.Label, it.ClientName),
			State:    state,
			ClientID: first(string(it.ClientID), string(it.ID), string(it.NodeID)),
			URL:      it.URL,
		})
	}
	return out, nil
}

// LibraryURL is the human-facing code library URL for a match, falling back
// to the conventional /<state>/<slug> path.
func (c *Client) LibraryURL(m Match, name, stateAbbr string) string {
	if m.URL != "" {
		return m.URL
	}
	slug := strings.ReplaceAll(strings.ToLower(name), " ", "-")
	return fmt.Sprintf("%s/%s/%s", c.municodeBase, strings.ToLower(stateAbbr), slug)
}

// Children returns the child nodes of a TOC node (a client ID for the root).
func (c *Client) Children(ctx context.Context, nodeID string) ([]Node, error) {
	raw, err := c.getJSON(ctx, c.municodeBase+"/api/prodcontent/GetNodeChildren?nodeId="+url.QueryEscape(nodeID))
	if err != nil || raw == nil {
		return nil, err
	}
	var items []tocNode
	if err := decodeList(raw, &items, "nodes"); err != nil {
		return nil, eris.Wrap(err, "municode: decode toc")
	}
	return convertNodes(items), nil
}

// FindBuildingChapter walks a client's table of contents depth-first, at
// most four levels deep, for the first node whose label names a building
// keyword. Children missing from a listing are fetched lazily. It returns
// nil when nothing matches.
func (c *Client) FindBuildingChapter(ctx context.Context, clientID string) (*Node, error) {
	toc, err := c.Children(ctx, clientID)
	if err != nil {
		return nil, err
	}
	return c.walk(ctx, toc, 0)
}

func (c *Client) walk(ctx context.Context, nodes []Node, depth int) (*Node, error) {
	if depth > maxTOCDepth {
		return nil, nil
	}
	for _, n := range nodes {
		label := strings.ToLower(n.Label)
		for _, kw := range buildingKeywords {
			if strings.Contains(label, kw) {
				return &n, nil
			}
		}
		if len(n.Children) == 0 && n.ID != "" && depth < maxTOCDepth {
			children, err := c.Children(ctx, n.ID)
			if err != nil {
				return nil, err
			}
			n.Children = children
		}
		found, err := c.walk(ctx, n.Children, depth+1)
		if err != nil || found != nil {
			return found, err
		}
	}
	return nil, nil
}

// NodeContent returns the raw content (usually HTML) of a TOC node.
func (c *Client) NodeContent(ctx context.Context, nodeID string) (string, error) {
	raw, err := c.getJSON(ctx, c.municodeBase+"/api/prodcontent/GetNodeContent?nodeId="+url.QueryEscape(nodeID))
	if err != nil || raw == nil {
		return "", err
	}

	var s string
	if json.Unmarshal(raw, &s) == nil {
		return s, nil
	}
	var body struct {
		Content string `json:"content"`
		HTML    string `json:"html"`
		Text    string `json:"text"`
	}
	if err := json.Unmarshal(raw, &body); err != nil {
		return "", eris.Wrap(err, "municode: decode node content")
	}
	return first(body.Content, body.HTML, body.Text), nil
}

// SearchSnippets runs an in-library search and joins the first five result
// snippets with spaces.
func (c *Client) SearchSnippets(ctx context.Context, clientID, query string) (string, error) {
	q := url.Values{}
	q.Set("q", query)
	q.Set("clientId", clientID)
	raw, err := c.getJSON(ctx, c.municodeBase+"/api/search?"+q.Encode())
	if err != nil || raw == nil {
		return "", err
	}

	var hits []searchHit
	if err := decodeList(raw, &hits, "results"); err != nil {
		return "", eris.Wrap(err, "municode: decode search results")
	}
	if len(hits) > maxSnippets {
		hits = hits[:maxSnippets]
	}
	parts := make([]string, 0, len(hits))
	for _, h := range hits {
		if s := first(h.Snippet, h.Text, h.Content); s != "" {
			parts = append(parts, s)
		}
	}
	return strings.Join(parts, " "), nil
}

// EcodeLibraries searches eCode360 for a jurisdiction's code library.
func (c *Client) EcodeLibraries(ctx context.Context, name, stateAbbr string) ([]Match, error) {
	q := url.Values{}
	q.Set("q", name)
	q.Set("state", stateAbbr)
	raw, err := c.getJSON(ctx, c.ecodeBase+"/api/jurisdictions?"+q.Encode())
	if err != nil || raw == nil {
		return nil, err
	}
	var items []suggestion
	if err := decodeList(raw, &items, "results", "jurisdictions"); err != nil {
		return nil, eris.Wrap(err, "ecode360: decode jurisdictions")
	}
	out := make([]Match, 0, len(items))
	for _, it := range items {
		u := it.URL
		if u == "" && string(it.ID) != "" {
			u = c.ecodeBase + "/" + string(it.ID)
		}
		if u == "" {
			continue
		}
		out = append(out, Match{Name: first(it.Name, it.Label), State: first(it.State, it.StateCode), ClientID: string(it.ID), URL: u})
	}
	return out, nil
}

// EcodeSnippets searches within an eCode360 library and returns up to five
// result snippets separated by blank lines.
func (c *Client) EcodeSnippets(ctx context.Context, libraryURL, term string) (string, error) {
	doc, err := c.f.Fetch(ctx, strings.TrimRight(libraryURL, "/")+"/search?q="+url.QueryEscape(term))
	if err != nil {
		if fetcher.IsPermanent(err) {
			return "", nil
		}
		return "", err
	}
	snippets, err := htmldoc.Snippets(bytes.NewReader(doc.Body), ecodeSelectors, maxSnippets)
	if err != nil {
		return "", eris.Wrap(err, "ecode360: parse search page")
	}
	return strings.Join(snippets, "\n\n"), nil
}

// getJSON fetches a JSON document. A permanent failure yields (nil, nil).
func (c *Client) getJSON(ctx context.Context, u string) (json.RawMessage, error) {
	doc, err := c.f.Fetch(ctx, u)
	if err != nil {
		if fetcher.IsPermanent(err) {
			zap.L().Debug("portal resource missing",
				zap.String("component", "municode"),
				zap.String("url", u),
				zap.Int("status", fetcher.StatusCode(err)),
			)
			return nil, nil
		}
		return nil, err
	}
	body := bytes.TrimSpace(doc.Body)
	if len(body) == 0 || bytes.Equal(body, []byte("null")) {
		return nil, nil
	}
	return json.RawMessage(body), nil
}

// decodeList accepts either a bare JSON array or an object wrapping the
// array under one of keys.
func decodeList[T any](raw json.RawMessage, out *[]T, keys ...string) error {
	if len(raw) > 0 && raw[0] == '[' {
		return json.Unmarshal(raw, out)
	}
	var obj map[string]json.RawMessage
	if err := json.Unmarshal(raw, &obj); err != nil {
		return err
	}
	for _, k := range keys {
		if v, ok := obj[k]; ok {
			return json.Unmarshal(v, out)
		}
	}
	*out = nil
	return nil
}

// flexID decodes identifiers the API sends as either strings or numbers.
type flexID string

func (f *flexID) UnmarshalJSON(b []byte) error {
	if bytes.Equal(b, []byte("null")) {
		return nil
	}
	var s string
	if err := json.Unmarshal(b, &s); err == nil {
		*f = flexID(s)
		return nil
	}
	var n json.Number
	if err := json.Unmarshal(b, &n); err != nil {
		return err
	}
	if i, err := n.Int64(); err == nil {
		*f = flexID(strconv.FormatInt(i, 10))
		return nil
	}
	*f = flexID(n.String())
	return nil
}

type suggestion struct {
	Name       string `json:"name"`
	Label      string `json:"label"`
	ClientName string `json:"clientName"`
	State      string `json:"state"`
	StateCode  string `json:"stateCode"`
	ClientID   flexID `json:"clientId"`
	ID         flexID `json:"id"`
	NodeID     flexID `json:"nodeId"`
	URL        string `json:"url"`
}

type tocNode struct {
	ID       flexID    `json:"id"`
	Label    string    `json:"label"`
	Name     string    `json:"name"`
	Children []tocNode `json:"children"`
}

type searchHit struct {
	Snippet string `json:"snippet"`
	Text    string `json:"text"`
	Content string `json:"content"`
}

func convertNodes(in []tocNode) []Node {
	if len(in) == 0 {
		return nil
	}
	out := make([]Node, len(in))
	for i, n := range in {
		out[i] = Node{ID: string(n.ID), Label: first(n.Label, n.Name), Children: convertNodes(n.Children)}
	}
	return out
}

func first(vals ...string) string {
	for _, v := range vals {
		if v != "" {
			return v
		}
	}
	return ""
}
