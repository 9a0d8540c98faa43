// Package profile holds the résumé record the assistant answers from.
// The record is compiled into the binary and never changes at runtime.
package profile

import (
	_ "embed"
	"encoding/json"
	"fmt"
)

//go:embed profile.json
var defaultJSON []byte

type Socials struct {
	Email    string `json:"email"`
	LinkedIn string `json:"linkedin"`
	GitHub   string `json:"github"`
	X        string `json:"x"`
}

type SkillGroup struct {
	Category string   `json:"category"`
	Items    []string `json:"items"`
}

type Experience struct {
	Company     string `json:"company"`
	Role        string `json:"role"`
	Duration    string `json:"duration"`
	Type        string `json:"type"`
	Description string `json:"description"`
}

type Project struct {
	Title       string   `json:"title"`
	Subtitle    string   `json:"subtitle"`
	Description string   `json:"description"`
	Tags        []string `json:"tags"`
	Link        string   `json:"link"`
}

type Education struct {
	School string `json:"school"`
	Degree string `json:"degree"`
	Year   string `json:"year"`
	Grade  string `json:"grade"`
}

type Profile struct {
	Name           string       `json:"name"`
	Role           string       `json:"role"`
	Summary        string       `json:"summary"`
	Socials        Socials      `json:"socials"`
	Skills         []SkillGroup `json:"skills"`
	Experience     []Experience `json:"experience"`
	Projects       []Project    `json:"projects"`
	Education      []Education  `json:"education"`
	Certifications []string     `json:"certifications"`
}

// Default returns a fresh copy of the embedded profile.
func Default() Profile {
	p, err := Parse(defaultJSON)
	if err != nil {
		panic(fmt.Sprintf("embedded profile is invalid: %v", err))
	}
	return p
}

func Parse(data []byte) (Profile, error) {
	var p Profile
	if err := json.Unmarshal(data, &p); err != nil {
		return Profile{}, fmt.Errorf("decode profile: %w", err)
	}
	if p.Name == "" {
		return Profile{}, fmt.Errorf("profile has no name")
	}
	return p, nil
}

// JSON is the compact encoding handed to the model as context.
func (p Profile) JSON() string {
	b, err := json.Marshal(p)
	if err != nil {
		// plain strings and slices only
		panic(err)
	}
	return string(b)
}

// AllSkills flattens the skill groups in order, as shown by the ticker.
func (p Profile) AllSkills() []string {
	var out []string
	for _, g := range p.Skills {
		out = append(out, g.Items...)
	}
	return out
}

func (p Profile) Project(idx int) (Project, bool) {
	if idx < 0 || idx >= len(p.Projects) {
		return Project{}, false
	}
	return p.Projects[idx], true
}

// FirstName is used in greetings and prompts.
func (p Profile) FirstName() string {
	for i, r := range p.Name {
		if r == ' ' {
			return p.Name[:i]
		}
	}
	return p.Name
}
