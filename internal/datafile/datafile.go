// Package datafile reads and writes the flat text export of a dataset.
//
// The file is a sequence of blocks separated by blank lines. Fields are
// separated by '|'; surrounding spaces are ignored when reading and a single
// space is written on each side. A block describes one person:
//
//	Anna | Andersson | Sweden | Göteborg | Ekelundsgatan | 8 | 57.7 | 11.97
//	3 | 57.70 | 11.96 | Lugnande musik | Lyssna och njut!
//	4 | 57.71 | 11.95 | Pennor | Ta en
//	Found: 5, 6
//
// The first line is the person (first name, last name, country, city, street
// name, street number, latitude, longitude). Each following five-field line
// is a geocache placed by that person (id, latitude, longitude, contents,
// message). The optional Found line lists the ids of geocaches the person has
// found; ids may refer to geocaches in any block. A block without a person
// line holds unowned geocaches and has no Found line.
//
// Decimal numbers always use '.' as separator.
package datafile

import (
	"bufio"
	"fmt"
	"io"
	"strconv"
	"strings"

	"github.com/mmynk/geocaching/internal/models"
)

const (
	separator   = "|"
	foundPrefix = "Found:"

	personFields   = 8
	geocacheFields = 5
)

// ParseError reports a problem at a line of the input.
type ParseError struct {
	Line int
	Err  error
}

func (e *ParseError) Error() string {
	return fmt.Sprintf("line %d: %v", e.Line, e.Err)
}

func (e *ParseError) Unwrap() error {
	return e.Err
}

type pendingFound struct {
	line   int
	record models.FoundGeocache
}

type parser struct {
	ds        *models.Dataset
	geocaches map[int64]*models.Geocache
	found     []pendingFound

	lineNo int

	// per block
	person    *models.Person
	lines     int
	foundSeen bool
}

// Parse reads a dataset. Persons get IDs 1..n in file order; geocaches keep
// the IDs written in the file.
func Parse(r io.Reader) (*models.Dataset, error) {
	p := &parser{
		ds:        &models.Dataset{},
		geocaches: make(map[int64]*models.Geocache),
	}

	scanner := bufio.NewScanner(r)
	for scanner.Scan() {
		p.lineNo++
		line := strings.TrimSpace(scanner.Text())
		if p.lineNo == 1 {
			line = strings.TrimPrefix(line, "\ufeff")
		}
		if err := p.line(line); err != nil {
			return nil, &ParseError{Line: p.lineNo, Err: err}
		}
	}
	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("failed to read data file: %w", err)
	}

	for _, f := range p.found {
		if _, ok := p.geocaches[f.record.GeocacheID]; !ok {
			return nil, &ParseError{Line: f.line, Err: fmt.Errorf("found geocache %d does not exist", f.record.GeocacheID)}
		}
		p.ds.Found = append(p.ds.Found, f.record)
	}

	return p.ds, nil
}

func (p *parser) line(line string) error {
	if line == "" {
		p.person = nil
		p.lines = 0
		p.foundSeen = false
		return nil
	}
	if p.foundSeen {
		return fmt.Errorf("the Found line must end its block")
	}
	defer func() { p.lines++ }()

	// A Found line never contains the separator, so a person whose first
	// name starts with "Found:" still reads as a person.
	if strings.HasPrefix(line, foundPrefix) && !strings.Contains(line, separator) {
		return p.foundLine(strings.TrimPrefix(line, foundPrefix))
	}

	fields := strings.Split(line, separator)
	for i := range fields {
		fields[i] = strings.TrimSpace(fields[i])
	}

	switch len(fields) {
	case personFields:
		if p.lines > 0 {
			return fmt.Errorf("a person line must start a block")
		}
		return p.personLine(fields)
	case geocacheFields:
		return p.geocacheLine(fields)
	default:
		return fmt.Errorf("expected %d (person) or %d (geocache) fields, got %d", personFields, geocacheFields, len(fields))
	}
}

func (p *parser) personLine(fields []string) error {
	streetNumber, err := strconv.Atoi(fields[5])
	if err != nil {
		return fmt.Errorf("invalid street number %q", fields[5])
	}
	coord, err := parseCoordinate(fields[6], fields[7])
	if err != nil {
		return err
	}

	person := &models.Person{
		ID:        int64(len(p.ds.Persons) + 1),
		FirstName: fields[0],
		LastName:  fields[1],
		Address: models.Address{
			Country:      fields[2],
			City:         fields[3],
			StreetName:   fields[4],
			StreetNumber: streetNumber,
		},
		Coordinate: coord,
	}
	if err := person.Validate(); err != nil {
		return err
	}

	p.ds.Persons = append(p.ds.Persons, person)
	p.person = person
	return nil
}

func (p *parser) geocacheLine(fields []string) error {
	id, err := parseID(fields[0])
	if err != nil {
		return err
	}
	if _, dup := p.geocaches[id]; dup {
		return fmt.Errorf("duplicate geocache id %d", id)
	}
	coord, err := parseCoordinate(fields[1], fields[2])
	if err != nil {
		return err
	}

	geocache := &models.Geocache{
		ID:         id,
		Coordinate: coord,
		Contents:   fields[3],
		Message:    fields[4],
	}
	if p.person != nil {
		geocache.OwnerID = models.OwnerRef(p.person.ID)
		p.person.Geocaches = append(p.person.Geocaches, geocache)
	}
	if err := geocache.Validate(); err != nil {
		return err
	}

	p.ds.Geocaches = append(p.ds.Geocaches, geocache)
	p.geocaches[id] = geocache
	return nil
}

func (p *parser) foundLine(list string) error {
	if p.person == nil {
		return fmt.Errorf("a Found line needs a person at the start of its block")
	}
	p.foundSeen = true

	list = strings.TrimSpace(list)
	if list == "" {
		return nil
	}

	seen := make(map[int64]bool)
	for _, field := range strings.Split(list, ",") {
		id, err := parseID(strings.TrimSpace(field))
		if err != nil {
			return err
		}
		if seen[id] {
			return fmt.Errorf("geocache %d listed twice as found", id)
		}
		seen[id] = true

		record := models.FoundGeocache{PersonID: p.person.ID, GeocacheID: id}
		p.person.Found = append(p.person.Found, record)
		p.found = append(p.found, pendingFound{line: p.lineNo, record: record})
	}

	return nil
}

func parseID(s string) (int64, error) {
	id, err := strconv.ParseInt(s, 10, 64)
	if err != nil || id <= 0 {
		return 0, fmt.Errorf("invalid geocache id %q", s)
	}
	return id, nil
}

func parseCoordinate(lat, lon string) (models.Coordinate, error) {
	latitude, err := strconv.ParseFloat(lat, 64)
	if err != nil {
		return models.Coordinate{}, fmt.Errorf("invalid latitude %q", lat)
	}
	longitude, err := strconv.ParseFloat(lon, 64)
	if err != nil {
		return models.Coordinate{}, fmt.Errorf("invalid longitude %q", lon)
	}
	return models.Coordinate{Latitude: latitude, Longitude: longitude}, nil
}
