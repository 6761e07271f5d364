package profile

import (
	"bytes"
	"encoding/json"
	"strconv"
)

// Raw is the tenant record as the backend returns it under the "data"
// envelope field. No field is guaranteed to be present, and scalar fields
// tolerate numbers and booleans where strings are expected.
type Raw struct {
	ID           Text               `json:"id,omitempty"`
	UserName     Text               `json:"userName,omitempty"`
	FirstName    Text               `json:"firstName,omitempty"`
	LastName     Text               `json:"lastName,omitempty"`
	Email        Text               `json:"email,omitempty"`
	Phone        Text               `json:"phone,omitempty"`
	ProfileImage Text               `json:"profileImage,omitempty"`
	HeaderImage  Text               `json:"headerImage,omitempty"`
	HeaderText   Text               `json:"headerText,omitempty"`
	Description  Text               `json:"description,omitempty"`
	Skillset     List[SkillsetItem] `json:"skillset,omitempty"`
	Experience   List[Experience]   `json:"experience,omitempty"`
	Education    List[Education]    `json:"education,omitempty"`
	Projects     List[Project]      `json:"projects,omitempty"`
	Certificates List[Certificate]  `json:"certificates,omitempty"`
	Links        List[Link]         `json:"links,omitempty"`
	Template     TemplateRef        `json:"template,omitempty"`
}

type SkillsetItem struct {
	Skill       *Skill `json:"skill,omitempty"`
	Icon        Text   `json:"icon,omitempty"`
	Color       Text   `json:"color,omitempty"`
	IsCoreSkill Flag   `json:"isCoreSkill,omitempty"`
}

type Skill struct {
	ID   Text `json:"id,omitempty"`
	Name Text `json:"name,omitempty"`
}

// UnmarshalJSON keeps the enclosing skillset entry when "skill" is not an
// object; the skill decodes as unnamed instead.
func (s *Skill) UnmarshalJSON(data []byte) error {
	type plain Skill
	var p plain
	decodeObject(data, &p)
	*s = Skill(p)
	return nil
}

type Experience struct {
	ID          Text `json:"id,omitempty"`
	CompanyName Text `json:"companyName,omitempty"`
	Title       Text `json:"title,omitempty"`
	LogoURL     Text `json:"logoURL,omitempty"`
	Location    Text `json:"location,omitempty"`
	StartedAt   Text `json:"startedAt,omitempty"`
	EndAt       Text `json:"endAt,omitempty"`
	Description Text `json:"description,omitempty"`
}

type Degree struct {
	ID   Text `json:"id,omitempty"`
	Name Text `json:"name,omitempty"`
}

func (d *Degree) UnmarshalJSON(data []byte) error {
	type plain Degree
	var p plain
	decodeObject(data, &p)
	*d = Degree(p)
	return nil
}

type Education struct {
	ID          Text    `json:"id,omitempty"`
	EduFrom     Text    `json:"eduFrom,omitempty"`
	EduFromLink Text    `json:"eduFromLink,omitempty"`
	Degree      *Degree `json:"degree,omitempty"`
	LogoURL     Text    `json:"logoURL,omitempty"`
	StartedAt   Text    `json:"startedAt,omitempty"`
	EndAt       Text    `json:"endAt,omitempty"`
	Description Text    `json:"description,omitempty"`
}

type ProjectLink struct {
	ID        Text `json:"id,omitempty"`
	LinkTitle Text `json:"linkTitle,omitempty"`
	LinkURL   Text `json:"linkUrl,omitempty"`
}

type Project struct {
	ID              Text               `json:"id,omitempty"`
	Title           Text               `json:"title,omitempty"`
	Description     Text               `json:"description,omitempty"`
	Link            Text               `json:"link,omitempty"`
	PreviewImageURL Text               `json:"previewImageUrl,omitempty"`
	StartedAt       Text               `json:"startedAt,omitempty"`
	EndAt           Text               `json:"endAt,omitempty"`
	Role            Text               `json:"role,omitempty"`
	Team            Text               `json:"team,omitempty"`
	Status          Text               `json:"status,omitempty"`
	ProjectLinks    List[ProjectLink]  `json:"projectLinks,omitempty"`
	ProjectSkillset List[SkillsetItem] `json:"projectSkillset,omitempty"`
}

type Certificate struct {
	ID          Text `json:"id,omitempty"`
	Title       Text `json:"title,omitempty"`
	Description Text `json:"description,omitempty"`
	Location    Text `json:"location,omitempty"`
	LogoURL     Text `json:"logoURL,omitempty"`
	StartedAt   Text `json:"startedAt,omitempty"`
	EndAt       Text `json:"endAt,omitempty"`
	Link        Text `json:"link,omitempty"`
	LinkName    Text `json:"linkName,omitempty"`
}

type Link struct {
	ID        Text `json:"id,omitempty"`
	LinkTitle Text `json:"linkTitle,omitempty"`
	LinkURL   Text `json:"linkUrl,omitempty"`
}

// TemplateRef selects the presentation template. The backend sends either
// a bare identifier ("template-03") or an object ({"id": 3, "name": "template-03"}).
type TemplateRef struct {
	ID   Text `json:"id,omitempty"`
	Name Text `json:"name,omitempty"`
}

func (t *TemplateRef) UnmarshalJSON(data []byte) error {
	data = bytes.TrimSpace(data)
	if len(data) > 0 && data[0] == '{' {
		type plain TemplateRef
		var p plain
		if err := json.Unmarshal(data, &p); err != nil {
			*t = TemplateRef{}
			return nil
		}
		*t = TemplateRef(p)
		return nil
	}
	var name Text
	_ = name.UnmarshalJSON(data)
	*t = TemplateRef{Name: name}
	return nil
}

// Selector returns the template identifier, preferring the name.
func (t TemplateRef) Selector() string {
	if t.Name != "" {
		return string(t.Name)
	}
	return string(t.ID)
}

// decodeObject fills v when data is a JSON object and leaves it zero otherwise.
func decodeObject[T any](data []byte, v *T) {
	var zero T
	*v = zero
	data = bytes.TrimSpace(data)
	if len(data) == 0 || data[0] != '{' {
		return
	}
	if err := json.Unmarshal(data, v); err != nil {
		*v = zero
	}
}

// Text is a string that also accepts JSON numbers and booleans. Null,
// objects and arrays decode to the empty string.
type Text string

func (s *Text) UnmarshalJSON(data []byte) error {
	data = bytes.TrimSpace(data)
	if len(data) == 0 {
		*s = ""
		return nil
	}
	switch data[0] {
	case '"':
		var v string
		if err := json.Unmarshal(data, &v); err != nil {
			*s = ""
			return nil
		}
		*s = Text(v)
	case 't', 'f':
		*s = Text(string(data))
	case '-', '0', '1', '2', '3', '4', '5', '6', '7', '8', '9':
		var n json.Number
		if err := json.Unmarshal(data, &n); err != nil {
			*s = ""
			return nil
		}
		*s = Text(n.String())
	default:
		*s = ""
	}
	return nil
}

func (s Text) String() string { return string(s) }

// Flag is a bool that also accepts "true"/"false" strings and 0/1.
type Flag bool

func (f *Flag) UnmarshalJSON(data []byte) error {
	var t Text
	_ = t.UnmarshalJSON(data)
	b, err := strconv.ParseBool(string(t))
	*f = Flag(err == nil && b)
	return nil
}

// List decodes a JSON array element by element, dropping elements that do
// not fit T. Anything other than an array decodes to an empty list.
type List[T any] []T

func (l *List[T]) UnmarshalJSON(data []byte) error {
	var items []json.RawMessage
	if err := json.Unmarshal(data, &items); err != nil {
		*l = nil
		return nil
	}
	out := make(List[T], 0, len(items))
	for _, item := range items {
		var v T
		if err := json.Unmarshal(item, &v); err != nil {
			continue
		}
		out = append(out, v)
	}
	*l = out
	return nil
}
