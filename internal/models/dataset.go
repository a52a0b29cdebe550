package models

// Dataset is the complete persisted state: every person, every geocache and
// every found record. Import replaces the stored dataset with one of these;
// export produces one.
type Dataset struct {
	Persons   []*Person
	Geocaches []*Geocache
	Found     []FoundGeocache
}

// Validate validates every person and geocache in the dataset.
func (d *Dataset) Validate() error {
	for _, p := range d.Persons {
		if err := p.Validate(); err != nil {
			return err
		}
	}
	for _, g := range d.Geocaches {
		if err := g.Validate(); err != nil {
			return err
		}
	}
	return nil
}
