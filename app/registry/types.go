package registry

// Source describes one upstream awesome list to harvest.
type Source struct {
	// ID is the GitHub repository in "owner/name" form. It is the stable
	// identity of the source across runs.
	ID string `yaml:"id"`

	// Name is the human-readable list title.
	Name string `yaml:"name"`

	// Popularity is a rough star-count hint used for ordering; it does not
	// affect processing semantics.
	Popularity int `yaml:"popularity"`
}

// Selection is the run-selection surface: an optional substring filter over
// source ids and/or a numeric start/count range. When either is active the
// snapshot writer runs in merge mode.
type Selection struct {
	Filter string
	Start  int
	Count  int
}

// Active reports whether the selection restricts the run to a subset.
func (s Selection) Active() bool {
	return s.Filter != "" || s.Start > 0 || s.Count > 0
}
