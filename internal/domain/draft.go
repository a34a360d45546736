package domain

import "slices"

// Section is one titled block of article HTML.
type Section struct {
	Title    string `json:"title"`
	HTMLBody string `json:"htmlBody"`
}

// QA is a question/answer pair used for FAQ and "People also ask" blocks.
type QA struct {
	Question string `json:"question"`
	Answer   string `json:"answer"`
}

// ContentDraft is the generator output the pipeline validates and fixes.
type ContentDraft struct {
	PrimaryKeyword  string            `json:"primaryKeyword"`
	Headline        string            `json:"headline"`
	MetaTitle       string            `json:"metaTitle"`
	MetaDescription string            `json:"metaDescription"`
	Intro           string            `json:"intro,omitempty"`
	Sections        []Section         `json:"sections"`
	KeyTakeaways    []string          `json:"keyTakeaways,omitempty"`
	FAQ             []QA              `json:"faq,omitempty"`
	PAA             []QA              `json:"paa,omitempty"`
	Sources         []CandidateSource `json:"sources"`
	CitationsUsed   []int             `json:"citationsUsed,omitempty"`
}

// Clone returns a deep copy so fixes never alias the caller's slices.
func (d ContentDraft) Clone() ContentDraft {
	out := d
	out.Sections = slices.Clone(d.Sections)
	out.KeyTakeaways = slices.Clone(d.KeyTakeaways)
	out.FAQ = slices.Clone(d.FAQ)
	out.PAA = slices.Clone(d.PAA)
	out.Sources = slices.Clone(d.Sources)
	out.CitationsUsed = slices.Clone(d.CitationsUsed)
	return out
}
