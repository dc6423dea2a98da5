package directory

import (
	"io"
	"net/url"
	"strings"

	"github.com/rotisserie/eris"
	"golang.org/x/net/html"
	"golang.org/x/net/html/atom"

	"github.com/sells-group/roster-cli/internal/model"
)

// Layout identifies which profile page structure the members came from.
type Layout int

const (
	LayoutNotFound Layout = iota
	// LayoutActiveFounders: an <h3> reading "Active Founders" (or "Former
	// Founders") whose parent's next sibling holds the member cards.
	LayoutActiveFounders
	// LayoutCardSibling: a div.ycdc-card followed by a "Founders" header div
	// and then the card list.
	LayoutCardSibling
)

func (l Layout) String() string {
	switch l {
	case LayoutActiveFounders:
		return "active_founders"
	case LayoutCardSibling:
		return "card_sibling"
	default:
		return "not_found"
	}
}

// Parsed is the result of reading one profile page.
type Parsed struct {
	Layout  Layout
	Members []Member
}

// ParseMembers extracts the member cards from a profile page. A page in
// neither layout yields LayoutNotFound and no error.
func ParseMembers(r io.Reader) (*Parsed, error) {
	doc, err := html.Parse(r)
	if err != nil {
		return nil, eris.Wrap(err, "directory: parse html")
	}

	if list := activeFoundersList(doc); list != nil {
		return &Parsed{Layout: LayoutActiveFounders, Members: cards(list)}, nil
	}
	if list := cardSiblingList(doc); list != nil {
		return &Parsed{Layout: LayoutCardSibling, Members: cards(list)}, nil
	}
	return &Parsed{Layout: LayoutNotFound}, nil
}

func activeFoundersList(doc *html.Node) *html.Node {
	for _, h3 := range findAll(doc, func(n *html.Node) bool { return n.DataAtom == atom.H3 }) {
		text := strings.ToLower(textContent(h3))
		if !strings.Contains(text, "active founders") && !strings.Contains(text, "former founders") {
			continue
		}
		if h3.Parent == nil {
			return nil
		}
		return nextElementSibling(h3.Parent)
	}
	return nil
}

func cardSiblingList(doc *html.Node) *html.Node {
	matches := findAll(doc, func(n *html.Node) bool { return hasClass(n, "ycdc-card") })
	if len(matches) == 0 {
		return nil
	}
	header := nextElementSibling(matches[0])
	if header == nil || !strings.Contains(strings.ToLower(textContent(header)), "founders") {
		return nil
	}
	return nextElementSibling(header)
}

// cards reads every div under list shaped as
// div > (first child) > (last child: content) > [name, socials].
func cards(list *html.Node) []Member {
	var out []Member
	seen := make(map[Member]bool)
	for _, div := range findAll(list, func(n *html.Node) bool { return n != list && n.DataAtom == atom.Div }) {
		content := lastElementChild(firstElementChild(div))
		if content == nil {
			continue
		}
		nameNode := firstElementChild(content)
		if nameNode == nil {
			continue
		}
		name := strings.TrimSpace(textContent(nameNode))
		if name == "" {
			continue
		}

		m := Member{Name: name}
		if links := lastElementChild(content); links != nil {
			for _, a := range findAll(links, func(n *html.Node) bool { return n.DataAtom == atom.A }) {
				classifyLink(&m.Social, attr(a, "href"))
			}
		}
		if !seen[m] {
			seen[m] = true
			out = append(out, m)
		}
	}
	return out
}

// classifyLink files href under the matching social network. The last
// link for a network wins.
func classifyLink(s *model.SocialLinks, href string) {
	if href == "" {
		return
	}
	key := strings.ToLower(href)
	if u, err := url.Parse(href); err == nil && u.Host != "" {
		key = strings.ToLower(u.Host)
	}

	switch {
	case key == "x.com" || strings.HasSuffix(key, ".x.com") || strings.Contains(key, "twitter.com") ||
		strings.Contains(key, "x.com/"):
		s.Microblog = href
	case strings.Contains(key, "linkedin"):
		s.ProfessionalNetwork = href
	case strings.Contains(key, "github"):
		s.CodeHosting = href
	}
}

// html helpers

func findAll(root *html.Node, match func(*html.Node) bool) []*html.Node {
	var out []*html.Node
	var walk func(*html.Node)
	walk = func(n *html.Node) {
		if n.Type == html.ElementNode && match(n) {
			out = append(out, n)
		}
		for c := n.FirstChild; c != nil; c = c.NextSibling {
			walk(c)
		}
	}
	walk(root)
	return out
}

func textContent(n *html.Node) string {
	var b strings.Builder
	var walk func(*html.Node)
	walk = func(n *html.Node) {
		if n.Type == html.TextNode {
			b.WriteString(n.Data)
		}
		for c := n.FirstChild; c != nil; c = c.NextSibling {
			walk(c)
		}
	}
	walk(n)
	return b.String()
}

func firstElementChild(n *html.Node) *html.Node {
	if n == nil {
		return nil
	}
	for c := n.FirstChild; c != nil; c = c.NextSibling {
		if c.Type == html.ElementNode {
			return c
		}
	}
	return nil
}

func lastElementChild(n *html.Node) *html.Node {
	if n == nil {
		return nil
	}
	for c := n.LastChild; c != nil; c = c.PrevSibling {
		if c.Type == html.ElementNode {
			return c
		}
	}
	return nil
}

func nextElementSibling(n *html.Node) *html.Node {
	for s := n.NextSibling; s != nil; s = s.NextSibling {
		if s.Type == html.ElementNode {
			return s
		}
	}
	return nil
}

func attr(n *html.Node, key string) string {
	for _, a := range n.Attr {
		if a.Key == key {
			return a.Val
		}
	}
	return ""
}

func hasClass(n *html.Node, class string) bool {
	for _, c := range strings.Fields(attr(n, "class")) {
		if c == class {
			return true
		}
	}
	return false
}
