package profile

import (
	"strconv"
	"strings"
	"time"
	"unicode/utf8"
)

// Normalize maps a backend record into a Profile. It never fails: absent
// or malformed fields fall back to empty values, and entries missing their
// display key (company, school, title) are dropped.
func Normalize(raw Raw) Profile {
	first := strings.TrimSpace(string(raw.FirstName))
	last := strings.TrimSpace(string(raw.LastName))

	return Profile{
		Username:  string(raw.UserName),
		Name:      strings.TrimSpace(string(raw.FirstName) + " " + string(raw.LastName)),
		FirstName: string(raw.FirstName),
		LastName:  string(raw.LastName),
		Initials:  strings.ToUpper(firstRune(first) + firstRune(last)),
		Email:     string(raw.Email),
		Phone:     string(raw.Phone),

		AvatarURL:    string(raw.ProfileImage),
		ProfileImage: string(raw.ProfileImage),
		HeaderImage:  string(raw.HeaderImage),

		Description: string(raw.HeaderText),
		HeaderText:  string(raw.HeaderText),
		Summary:     string(raw.Description),

		Navbar: []NavItem{},

		Skills:   skillNames(raw.Skillset),
		Skillset: orEmpty(raw.Skillset),

		Links:   orEmpty(raw.Links),
		Contact: contact(raw),

		Work:       work(raw.Experience),
		Experience: orEmpty(raw.Experience),

		Education:    education(raw.Education),
		EducationRaw: orEmpty(raw.Education),

		Projects:    projects(raw.Projects),
		ProjectsRaw: orEmpty(raw.Projects),

		Hackathons:   certificates(raw.Certificates),
		Certificates: orEmpty(raw.Certificates),

		TemplateID: templateID(raw.Template),
	}
}

func skillNames(items []SkillsetItem) []string {
	out := []string{}
	for _, s := range items {
		if s.Skill == nil || s.Skill.Name == "" {
			continue
		}
		out = append(out, string(s.Skill.Name))
	}
	return out
}

func work(items []Experience) []Work {
	out := []Work{}
	for _, e := range items {
		if e.CompanyName == "" {
			continue
		}
		var end *string
		if y := year(e.EndAt); y != "" {
			end = &y
		}
		out = append(out, Work{
			ID:          string(e.ID),
			Company:     string(e.CompanyName),
			Title:       string(e.Title),
			LogoURL:     string(e.LogoURL),
			Badges:      []string{},
			Start:       year(e.StartedAt),
			End:         end,
			Description: string(e.Description),
		})
	}
	return out
}

func education(items []Education) []EducationEntry {
	out := []EducationEntry{}
	for _, e := range items {
		if e.EduFrom == "" {
			continue
		}
		var degree string
		if e.Degree != nil {
			degree = string(e.Degree.Name)
		}
		out = append(out, EducationEntry{
			School:  string(e.EduFrom),
			Degree:  degree,
			Href:    string(e.EduFromLink),
			LogoURL: string(e.LogoURL),
			Start:   year(e.StartedAt),
			End:     year(e.EndAt),
		})
	}
	return out
}

func projects(items []Project) []ProjectEntry {
	out := []ProjectEntry{}
	for _, p := range items {
		if p.Title == "" {
			continue
		}

		links := []LinkRef{}
		if p.Link != "" {
			links = append(links, LinkRef{Type: "Website", Href: string(p.Link), LinkTitle: "Website"})
		}
		for _, l := range p.ProjectLinks {
			if l.LinkURL == "" {
				continue
			}
			typ := string(l.LinkTitle)
			if typ == "" {
				typ = "Website"
			}
			links = append(links, LinkRef{Type: typ, Href: string(l.LinkURL), LinkTitle: string(l.LinkTitle)})
		}

		end := year(p.EndAt)
		if end == "" {
			end = "Present"
		}

		out = append(out, ProjectEntry{
			ID:           string(p.ID),
			Title:        string(p.Title),
			Description:  string(p.Description),
			Dates:        year(p.StartedAt) + " - " + end,
			Technologies: skillNames(p.ProjectSkillset),
			Image:        string(p.PreviewImageURL),
			Links:        links,
			Href:         string(p.Link),
			Role:         string(p.Role),
			Team:         string(p.Team),
			Status:       string(p.Status),
		})
	}
	return out
}

func certificates(items []Certificate) []CertificateEntry {
	out := []CertificateEntry{}
	for _, c := range items {
		if c.Title == "" {
			continue
		}

		links := []LinkRef{}
		if c.Link != "" {
			typ := string(c.LinkName)
			if typ == "" {
				typ = "Open Link"
			}
			links = append(links, LinkRef{Type: typ, Href: string(c.Link), LinkTitle: string(c.LinkName)})
		}

		dates := year(c.StartedAt)
		if end := year(c.EndAt); end != "" {
			dates += " - " + end
		}

		out = append(out, CertificateEntry{
			Title:       string(c.Title),
			Description: string(c.Description),
			Location:    string(c.Location),
			Dates:       dates,
			Image:       string(c.LogoURL),
			Links:       links,
		})
	}
	return out
}

// contact builds the social map. A repeated platform label overwrites the
// earlier entry.
func contact(raw Raw) Contact {
	c := Contact{Email: string(raw.Email), Social: map[string]Social{}}
	for _, l := range raw.Links {
		if l.LinkTitle == "" || l.LinkURL == "" {
			continue
		}
		c.Social[strings.ToLower(string(l.LinkTitle))] = Social{
			DisplayName: string(l.LinkTitle),
			URL:         string(l.LinkURL),
			ShowInNav:   true,
		}
	}
	return c
}

func templateID(ref TemplateRef) string {
	if id := ref.Selector(); id != "" {
		return id
	}
	return DefaultTemplateID
}

var timestampLayouts = []string{
	time.RFC3339Nano,
	"2006-01-02T15:04:05.999999999",
	"2006-01-02 15:04:05",
	"2006-01-02",
	"2006-01",
}

// year returns the calendar year of a stored timestamp in the local zone,
// or "" when the value is absent or unparsable. Values without an explicit
// offset are read as local time; all-digit values are Unix milliseconds.
func year(ts Text) string {
	s := strings.TrimSpace(string(ts))
	if s == "" {
		return ""
	}
	if ms, err := strconv.ParseInt(s, 10, 64); err == nil && len(s) > 4 {
		return strconv.Itoa(time.UnixMilli(ms).In(time.Local).Year())
	}
	for _, layout := range timestampLayouts {
		t, err := time.ParseInLocation(layout, s, time.Local)
		if err == nil {
			return strconv.Itoa(t.In(time.Local).Year())
		}
	}
	if len(s) == 4 {
		if y, err := strconv.Atoi(s); err == nil {
			return strconv.Itoa(y)
		}
	}
	return ""
}

func firstRune(s string) string {
	r, size := utf8.DecodeRuneInString(s)
	if size == 0 || r == utf8.RuneError {
		return ""
	}
	return string(r)
}

func orEmpty[T any](items []T) []T {
	if items == nil {
		return []T{}
	}
	return items
}
