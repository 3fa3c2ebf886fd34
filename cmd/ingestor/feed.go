package main

import (
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"math"
	"strconv"
	"strings"

	"github.com/samirrijal/casahunt/internal/core/domain"
)

// Manifest lists the listing exports to import.
type Manifest struct {
	Source string      `json:"source"`
	Feeds  []FeedEntry `json:"feeds"`
}

// FeedEntry is one CSV export, fetched over HTTP or read from disk.
type FeedEntry struct {
	Name string `json:"name"`
	Slug string `json:"slug"`
	URL  string `json:"url"`
}

// parseListingsCSV reads a listing export. Required columns are title and
// address; price_eur, price_cents, latitude and longitude are optional.
// Rows with a half-filled or out-of-range coordinate pair are imported
// without coordinates so they go through geocoding.
func parseListingsCSV(r io.Reader) ([]domain.Listing, int, error) {
	cr := csv.NewReader(r)
	cr.FieldsPerRecord = -1
	cr.TrimLeadingSpace = true

	header, err := cr.Read()
	if err != nil {
		return nil, 0, fmt.Errorf("read header: %w", err)
	}
	idx := make(map[string]int, len(header))
	for i, h := range header {
		idx[strings.ToLower(strings.TrimSpace(strings.TrimPrefix(h, "\ufeff")))] = i
	}
	if _, ok := idx["title"]; !ok {
		return nil, 0, errors.New("missing title column")
	}
	if _, ok := idx["address"]; !ok {
		return nil, 0, errors.New("missing address column")
	}

	get := func(rec []string, col string) string {
		i, ok := idx[col]
		if !ok || i >= len(rec) {
			return ""
		}
		return strings.TrimSpace(rec[i])
	}

	var (
		out     []domain.Listing
		skipped int
	)
	for {
		rec, err := cr.Read()
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, skipped, fmt.Errorf("read row: %w", err)
		}

		l := domain.Listing{Title: get(rec, "title"), Address: get(rec, "address")}
		if l.Title == "" {
			skipped++
			continue
		}
		l.PriceCents = parsePrice(get(rec, "price_cents"), get(rec, "price_eur"))
		l.Latitude, l.Longitude = parseCoordinates(get(rec, "latitude"), get(rec, "longitude"))
		if l.Latitude == nil && l.Address == "" {
			skipped++
			continue
		}
		out = append(out, l)
	}
	return out, skipped, nil
}

func parsePrice(cents, eur string) int64 {
	if v, err := strconv.ParseInt(cents, 10, 64); err == nil && v >= 0 {
		return v
	}
	if v, err := strconv.ParseFloat(strings.ReplaceAll(eur, ",", "."), 64); err == nil && v >= 0 {
		return int64(math.Round(v * 100))
	}
	return 0
}

func parseCoordinates(latStr, lonStr string) (*float64, *float64) {
	lat, err1 := strconv.ParseFloat(latStr, 64)
	lon, err2 := strconv.ParseFloat(lonStr, 64)
	if err1 != nil || err2 != nil {
		return nil, nil
	}
	if lat < -90 || lat > 90 || lon < -180 || lon > 180 {
		return nil, nil
	}
	return &lat, &lon
}
