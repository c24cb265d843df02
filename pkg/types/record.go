package types

// ProfileRecord is the structured form of one researcher's genealogy page as
// produced by the extraction collaborator.
type ProfileRecord struct {
	Code         string       `json:"code" yaml:"code"`
	Name         string       `json:"name" yaml:"name"`
	Advisors     []AdvisorRef `json:"advisors,omitempty" yaml:"advisors,omitempty"`
	Students     []StudentRef `json:"students,omitempty" yaml:"students,omitempty"`
	GraduateInfo []Graduation `json:"graduate_info,omitempty" yaml:"graduate_info,omitempty"`
}

// AdvisorRef points at an advisor listed on a profile. An empty Code means the
// page named the advisor without linking to a profile.
type AdvisorRef struct {
	Code string `json:"code" yaml:"code"`
	Name string `json:"name,omitempty" yaml:"name,omitempty"`
}

// Resolved reports whether the reference carries a real researcher code.
func (r AdvisorRef) Resolved() bool {
	return r.Code != ""
}

// StudentRef is a student listed on an advisor's page, with the student's own
// graduation year and institution.
type StudentRef struct {
	Code        string `json:"code" yaml:"code"`
	Name        string `json:"name,omitempty" yaml:"name,omitempty"`
	Year        string `json:"year,omitempty" yaml:"year,omitempty"`
	Institution string `json:"institution,omitempty" yaml:"institution,omitempty"`
}

// Resolved reports whether the reference carries a real researcher code.
func (r StudentRef) Resolved() bool {
	return r.Code != ""
}

// Graduation is a researcher's own graduation entry.
type Graduation struct {
	Institution string `json:"institution,omitempty" yaml:"institution,omitempty"`
	Year        string `json:"year,omitempty" yaml:"year,omitempty"`
}

// Graduation returns the first graduation entry of the profile. Scraped pages
// occasionally list several; only the first one is meaningful.
func (p ProfileRecord) Graduation() (Graduation, bool) {
	if len(p.GraduateInfo) == 0 {
		return Graduation{}, false
	}
	return p.GraduateInfo[0], true
}
