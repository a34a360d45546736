package quality

// Thresholds holds the tunable limits of the rule set.
type Thresholds struct {
	MetaTitleMax       int `yaml:"metaTitleMax"`
	MetaTitleMin       int `yaml:"metaTitleMin"`
	MetaDescriptionMax int `yaml:"metaDescriptionMax"`
	MetaDescriptionMin int `yaml:"metaDescriptionMin"`

	MinSections     int `yaml:"minSections"`
	SectionsMin     int `yaml:"sectionsMin"`
	SectionsMax     int `yaml:"sectionsMax"`
	SectionTitleMax int `yaml:"sectionTitleMax"`
	ListSectionsMin int `yaml:"listSectionsMin"`
	ListSectionsMax int `yaml:"listSectionsMax"`

	WordsMin      int `yaml:"wordsMin"`
	WordsMax      int `yaml:"wordsMax"`
	IntroWordsMin int `yaml:"introWordsMin"`
	IntroWordsMax int `yaml:"introWordsMax"`

	KeywordMin int `yaml:"keywordMin"`

	TakeawaysMin int `yaml:"takeawaysMin"`
	TakeawaysMax int `yaml:"takeawaysMax"`
	FAQMin       int `yaml:"faqMin"`
	FAQMax       int `yaml:"faqMax"`
	PAAMin       int `yaml:"paaMin"`
	PAAMax       int `yaml:"paaMax"`

	SourcesMin        int `yaml:"sourcesMin"`
	SourcesMax        int `yaml:"sourcesMax"`
	SourcesPerHostMax int `yaml:"sourcesPerHostMax"`
	SourceTitleMin    int `yaml:"sourceTitleMin"`
}

// DefaultThresholds returns the standard limits.
func DefaultThresholds() Thresholds {
	return Thresholds{
		MetaTitleMax:       55,
		MetaTitleMin:       30,
		MetaDescriptionMax: 130,
		MetaDescriptionMin: 50,
		MinSections:        2,
		SectionsMin:        2,
		SectionsMax:        9,
		SectionTitleMax:    100,
		ListSectionsMin:    2,
		ListSectionsMax:    4,
		WordsMin:           1200,
		WordsMax:           1800,
		IntroWordsMin:      80,
		IntroWordsMax:      120,
		KeywordMin:         3,
		TakeawaysMin:       2,
		TakeawaysMax:       3,
		FAQMin:             3,
		FAQMax:             6,
		PAAMin:             2,
		PAAMax:             4,
		SourcesMin:         8,
		SourcesMax:         20,
		SourcesPerHostMax:  3,
		SourceTitleMin:     5,
	}
}

// Options configures the engine.
type Options struct {
	Thresholds        Thresholds
	CompanyDomain     string
	CompetitorDomains []string
	// InternalLinks, when set, lists the company URLs sections may link to.
	InternalLinks []string
}
