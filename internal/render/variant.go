package render

// Variant is a closed set of page layouts a tenant can select.
type Variant int

const (
	VariantUnknown Variant = iota
	Template01
	Template03
)

// Variants lists the known layouts in display order.
var Variants = []Variant{Template01, Template03}

// ParseVariant maps a template identifier to a Variant. Unrecognized
// identifiers, including the empty string, yield VariantUnknown.
func ParseVariant(id string) Variant {
	switch id {
	case "template-01":
		return Template01
	case "template-03":
		return Template03
	default:
		return VariantUnknown
	}
}

// ID returns the identifier the backend uses for v.
func (v Variant) ID() string {
	switch v {
	case Template01:
		return "template-01"
	case Template03:
		return "template-03"
	default:
		return ""
	}
}

func (v Variant) String() string {
	if id := v.ID(); id != "" {
		return id
	}
	return "unknown"
}

// Page is one of the routes every variant renders.
type Page int

const (
	PageHome Page = iota
	PageProjects
	PageProject
	PageExperiences
	PageExperience

	pageCount
)

func (p Page) String() string {
	switch p {
	case PageHome:
		return "home"
	case PageProjects:
		return "projects"
	case PageProject:
		return "project"
	case PageExperiences:
		return "experiences"
	case PageExperience:
		return "experience"
	default:
		return "unknown"
	}
}
