package datafile

import (
	"bufio"
	"fmt"
	"io"
	"strconv"
	"strings"

	"github.com/mmynk/geocaching/internal/models"
)

// Write writes ds in the format read by Parse: one block per person in the
// order of ds.Persons, followed by a block of unowned geocaches.
func Write(w io.Writer, ds *models.Dataset) error {
	placed := make(map[int64][]*models.Geocache)
	var unowned []*models.Geocache
	for _, g := range ds.Geocaches {
		if g.OwnerID == nil {
			unowned = append(unowned, g)
			continue
		}
		placed[*g.OwnerID] = append(placed[*g.OwnerID], g)
	}

	found := make(map[int64][]string)
	for _, f := range ds.Found {
		found[f.PersonID] = append(found[f.PersonID], strconv.FormatInt(f.GeocacheID, 10))
	}

	known := make(map[int64]bool, len(ds.Persons))
	for _, p := range ds.Persons {
		known[p.ID] = true
	}
	for ownerID := range placed {
		if !known[ownerID] {
			return fmt.Errorf("geocache owner %d is not in the dataset", ownerID)
		}
	}

	bw := bufio.NewWriter(w)
	blocks := 0
	startBlock := func() {
		if blocks > 0 {
			bw.WriteString("\n")
		}
		blocks++
	}

	for _, p := range ds.Persons {
		startBlock()
		line, err := joinFields(
			p.FirstName, p.LastName,
			p.Address.Country, p.Address.City, p.Address.StreetName, strconv.Itoa(p.Address.StreetNumber),
			formatFloat(p.Coordinate.Latitude), formatFloat(p.Coordinate.Longitude),
		)
		if err != nil {
			return fmt.Errorf("person %d: %w", p.ID, err)
		}
		bw.WriteString(line + "\n")

		for _, g := range placed[p.ID] {
			if err := writeGeocache(bw, g); err != nil {
				return err
			}
		}

		bw.WriteString(foundPrefix)
		if ids := found[p.ID]; len(ids) > 0 {
			bw.WriteString(" " + strings.Join(ids, ", "))
		}
		bw.WriteString("\n")
	}

	if len(unowned) > 0 {
		startBlock()
		for _, g := range unowned {
			if err := writeGeocache(bw, g); err != nil {
				return err
			}
		}
	}

	if err := bw.Flush(); err != nil {
		return fmt.Errorf("failed to write data file: %w", err)
	}
	return nil
}

func writeGeocache(bw *bufio.Writer, g *models.Geocache) error {
	line, err := joinFields(
		strconv.FormatInt(g.ID, 10),
		formatFloat(g.Coordinate.Latitude), formatFloat(g.Coordinate.Longitude),
		g.Contents, g.Message,
	)
	if err != nil {
		return fmt.Errorf("geocache %d: %w", g.ID, err)
	}
	_, err = bw.WriteString(line + "\n")
	return err
}

// joinFields rejects values that would not survive a round trip.
func joinFields(fields ...string) (string, error) {
	for _, f := range fields {
		if strings.ContainsAny(f, separator+"\r\n") {
			return "", fmt.Errorf("field %q contains a separator or line break", f)
		}
		if f != strings.TrimSpace(f) {
			return "", fmt.Errorf("field %q has surrounding spaces", f)
		}
	}
	return strings.Join(fields, " "+separator+" "), nil
}

func formatFloat(v float64) string {
	return strconv.FormatFloat(v, 'f', -1, 64)
}
