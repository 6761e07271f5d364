package render

import (
	"net/url"
	"sort"
	"strconv"
	"strings"

	"github.com/kalambet/folio/internal/profile"
)

const (
	metaDescriptionLen = 160
	homeProjects       = 4
	homeWork           = 3
)

// PageData is what a route hands to the dispatcher: the tenant's profile
// and, for detail pages, the {id} path parameter.
type PageData struct {
	Profile profile.Profile
	ID      string
}

// FindProject locates a project by its backend id or, failing that, by its
// 0-based position.
func FindProject(p profile.Profile, id string) (profile.ProjectEntry, int, bool) {
	i := find(len(p.Projects), id, func(i int) string { return p.Projects[i].ID })
	if i < 0 {
		return profile.ProjectEntry{}, -1, false
	}
	return p.Projects[i], i, true
}

// FindExperience locates a work entry the same way FindProject does.
func FindExperience(p profile.Profile, id string) (profile.Work, int, bool) {
	i := find(len(p.Work), id, func(i int) string { return p.Work[i].ID })
	if i < 0 {
		return profile.Work{}, -1, false
	}
	return p.Work[i], i, true
}

func find(n int, id string, idAt func(int) string) int {
	if id == "" {
		return -1
	}
	for i := range n {
		if idAt(i) == id {
			return i
		}
	}
	if i, err := strconv.Atoi(id); err == nil && i >= 0 && i < n {
		return i
	}
	return -1
}

type projectItem struct {
	profile.ProjectEntry
	Path string
}

type workItem struct {
	profile.Work
	Path     string
	EndLabel string
}

type socialLink struct {
	Name string
	URL  string
}

// view is the value every page template executes against.
type view struct {
	Variant         string
	Page            string
	Title           string
	MetaDescription string

	P        profile.Profile
	Projects []projectItem
	Work     []workItem
	Social   []socialLink
	GitHub   string

	// Home page previews; the More flags link to the full listing.
	HomeProjects []projectItem
	MoreProjects bool
	HomeWork     []workItem
	MoreWork     bool

	Project   *projectItem
	LiveLink  *profile.LinkRef
	MoreLinks []profile.LinkRef
	Related   []projectItem

	Experience *workItem
}

func newView(v Variant, page Page, data PageData) view {
	p := data.Profile
	vw := view{
		Variant:  v.ID(),
		Page:     page.String(),
		P:        p,
		Projects: projectItems(p.Projects),
		Work:     workItems(p.Work),
		Social:   navSocial(p.Contact.Social),
		GitHub:   githubUser(p.Contact.Social),
	}

	vw.HomeProjects, vw.MoreProjects = head(vw.Projects, homeProjects)
	vw.HomeWork, vw.MoreWork = head(vw.Work, homeWork)

	owner := p.Name
	if owner == "" {
		owner = p.Username
	}
	vw.Title = owner
	vw.MetaDescription = Excerpt(firstNonEmpty(p.Description, p.Summary, p.HeaderText), metaDescriptionLen)

	switch page {
	case PageProjects:
		vw.Title = "Projects · " + owner
	case PageExperiences:
		vw.Title = "Experience · " + owner
	case PageProject:
		if _, i, ok := FindProject(p, data.ID); ok {
			item := vw.Projects[i]
			vw.Project = &item
			vw.Title = item.Title + " · " + owner
			vw.MetaDescription = Excerpt(item.Description, metaDescriptionLen)
			vw.LiveLink, vw.MoreLinks = splitLiveLink(item.Links)
			vw.Related = related(vw.Projects, i, 2)
		}
	case PageExperience:
		if _, i, ok := FindExperience(p, data.ID); ok {
			item := vw.Work[i]
			vw.Experience = &item
			vw.Title = item.Title + " at " + item.Company + " · " + owner
			vw.MetaDescription = Excerpt(item.Description, metaDescriptionLen)
		}
	}
	return vw
}

func projectItems(entries []profile.ProjectEntry) []projectItem {
	out := make([]projectItem, len(entries))
	for i, e := range entries {
		out[i] = projectItem{ProjectEntry: e, Path: "/projects/" + pathID(e.ID, i)}
	}
	return out
}

func workItems(entries []profile.Work) []workItem {
	out := make([]workItem, len(entries))
	for i, e := range entries {
		end := "Present"
		if e.End != nil && *e.End != "" {
			end = *e.End
		}
		out[i] = workItem{Work: e, Path: "/experiences/" + pathID(e.ID, i), EndLabel: end}
	}
	return out
}

func head[T any](items []T, n int) ([]T, bool) {
	if len(items) <= n {
		return items, false
	}
	return items[:n], true
}

func pathID(id string, index int) string {
	if id != "" {
		return url.PathEscape(id)
	}
	return strconv.Itoa(index)
}

var liveKeywords = []string{"website", "live", "demo"}

// splitLiveLink picks the first link whose title names a deployed site and
// returns the rest as additional links.
func splitLiveLink(links []profile.LinkRef) (*profile.LinkRef, []profile.LinkRef) {
	live := -1
	for i, l := range links {
		title := strings.ToLower(l.LinkTitle)
		for _, kw := range liveKeywords {
			if strings.Contains(title, kw) {
				live = i
				break
			}
		}
		if live >= 0 {
			break
		}
	}
	if live < 0 {
		return nil, links
	}
	l := links[live]
	rest := make([]profile.LinkRef, 0, len(links)-1)
	rest = append(rest, links[:live]...)
	rest = append(rest, links[live+1:]...)
	return &l, rest
}

func related(items []projectItem, current, limit int) []projectItem {
	out := make([]projectItem, 0, limit)
	for i, it := range items {
		if len(out) == limit {
			break
		}
		if i == current || (it.ID != "" && it.ID == items[current].ID) {
			continue
		}
		out = append(out, it)
	}
	return out
}

// navSocial lists contact entries flagged for the navbar, ordered by
// platform key so output is stable.
func navSocial(social map[string]profile.Social) []socialLink {
	keys := make([]string, 0, len(social))
	for k, s := range social {
		if s.ShowInNav && s.URL != "" {
			keys = append(keys, k)
		}
	}
	sort.Strings(keys)

	out := make([]socialLink, 0, len(keys))
	for _, k := range keys {
		s := social[k]
		name := s.DisplayName
		if name == "" {
			name = k
		}
		out = append(out, socialLink{Name: name, URL: externalURL(s.URL)})
	}
	return out
}

// githubUser extracts the account name from the contact map's github entry.
func githubUser(social map[string]profile.Social) string {
	s, ok := social["github"]
	if !ok || s.URL == "" {
		return ""
	}
	raw := strings.TrimSpace(s.URL)
	if !strings.Contains(raw, "/") && !strings.Contains(raw, ".") {
		return strings.TrimPrefix(raw, "@")
	}
	u, err := url.Parse(externalURL(raw))
	if err != nil {
		return ""
	}
	if host := strings.ToLower(u.Hostname()); host != "github.com" && !strings.HasSuffix(host, ".github.com") {
		return ""
	}
	parts := strings.Split(strings.Trim(u.Path, "/"), "/")
	return parts[0]
}

// externalURL prefixes scheme-less links with https://.
func externalURL(u string) string {
	u = strings.TrimSpace(u)
	if u == "" {
		return ""
	}
	lower := strings.ToLower(u)
	for _, prefix := range []string{"http://", "https://", "mailto:", "tel:"} {
		if strings.HasPrefix(lower, prefix) {
			return u
		}
	}
	return "https://" + strings.TrimPrefix(u, "//")
}

func firstNonEmpty(values ...string) string {
	for _, v := range values {
		if v != "" {
			return v
		}
	}
	return ""
}
