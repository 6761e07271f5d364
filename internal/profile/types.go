package profile

// DefaultTemplateID is used when the backend record carries no template.
const DefaultTemplateID = "template-01"

// Profile is the UI-facing shape of a tenant record. Every string has a
// value and every collection is non-nil, so templates never branch on
// absence. The raw collections are carried alongside the normalized ones
// for templates that still read the backend shape.
type Profile struct {
	Username  string `json:"username"`
	Name      string `json:"name"`
	FirstName string `json:"firstName"`
	LastName  string `json:"lastName"`
	Initials  string `json:"initials"`
	Email     string `json:"email"`
	Phone     string `json:"phone"`

	AvatarURL    string `json:"avatarUrl"`
	ProfileImage string `json:"profileImage"`
	HeaderImage  string `json:"headerImage"`

	Description string `json:"description"`
	HeaderText  string `json:"headerText"`
	Summary     string `json:"summary"`

	URL          string `json:"url"`
	Location     string `json:"location"`
	LocationLink string `json:"locationLink"`

	Navbar []NavItem `json:"navbar"`

	Skills   []string       `json:"skills"`
	Skillset []SkillsetItem `json:"skillset"`

	Links   []Link  `json:"links"`
	Contact Contact `json:"contact"`

	Work       []Work       `json:"work"`
	Experience []Experience `json:"experience"`

	Education    []EducationEntry `json:"education"`
	EducationRaw []Education      `json:"educationRaw"`

	Projects    []ProjectEntry `json:"projects"`
	ProjectsRaw []Project      `json:"projectsRaw"`

	Hackathons   []CertificateEntry `json:"hackathons"`
	Certificates []Certificate      `json:"certificates"`

	TemplateID string `json:"templateId"`
}

type NavItem struct {
	Href  string `json:"href"`
	Label string `json:"label"`
}

type Work struct {
	ID          string   `json:"id"`
	Company     string   `json:"company"`
	Title       string   `json:"title"`
	Href        string   `json:"href"`
	LogoURL     string   `json:"logoUrl"`
	Badges      []string `json:"badges"`
	Start       string   `json:"start"`
	End         *string  `json:"end"`
	Description string   `json:"description"`
}

type EducationEntry struct {
	School  string `json:"school"`
	Degree  string `json:"degree"`
	Href    string `json:"href"`
	LogoURL string `json:"logoUrl"`
	Start   string `json:"start"`
	End     string `json:"end"`
}

// LinkRef is a labelled outbound link on a project or certificate.
type LinkRef struct {
	Type      string `json:"type"`
	Href      string `json:"href"`
	LinkTitle string `json:"linkTitle"`
}

type ProjectEntry struct {
	ID           string    `json:"id"`
	Title        string    `json:"title"`
	Description  string    `json:"description"`
	Dates        string    `json:"dates"`
	Technologies []string  `json:"technologies"`
	Image        string    `json:"image"`
	Video        string    `json:"video"`
	Links        []LinkRef `json:"links"`
	Href         string    `json:"href"`
	Role         string    `json:"role"`
	Team         string    `json:"team"`
	Status       string    `json:"status"`
}

type CertificateEntry struct {
	Title       string    `json:"title"`
	Description string    `json:"description"`
	Location    string    `json:"location"`
	Dates       string    `json:"dates"`
	Image       string    `json:"image"`
	Links       []LinkRef `json:"links"`
}

type Contact struct {
	Email  string            `json:"email"`
	Social map[string]Social `json:"social"`
}

// Social is one entry of the contact map, keyed by lowercased platform.
type Social struct {
	DisplayName string `json:"name"`
	URL         string `json:"url"`
	ShowInNav   bool   `json:"navbar"`
}
