package platform

import (
	"regexp"
	"strconv"
	"strings"

	"github.com/nstogner/butler/pkg/domain"
)

var (
	numberRe = regexp.MustCompile(`\d[\d,]*`)
	ratingRe = regexp.MustCompile(`\d+(\.\d+)?`)
)

// parsePrice reads the first whole number in text, e.g. "₹1,299 for two".
func parsePrice(text string) (int, bool) {
	m := numberRe.FindString(text)
	if m == "" {
		return 0, false
	}
	n, err := strconv.Atoi(strings.ReplaceAll(m, ",", ""))
	if err != nil {
		return 0, false
	}
	return n, true
}

// parseRating reads a 0 to 5 rating, e.g. "4.3 (1k+)".
func parseRating(text string) (float64, bool) {
	m := ratingRe.FindString(text)
	if m == "" {
		return 0, false
	}
	r, err := strconv.ParseFloat(m, 64)
	if err != nil || r < 0 || r > 5 {
		return 0, false
	}
	return r, true
}

func parseListings(platform domain.PlatformID, rows []map[string]string) []domain.Listing {
	listings := make([]domain.Listing, 0, len(rows))
	for _, row := range rows {
		name := strings.TrimSpace(row["name"])
		if name == "" {
			continue
		}
		l := domain.Listing{
			Name:        name,
			Cuisine:     strings.TrimSpace(row["cuisine"]),
			DeliveryETA: strings.TrimSpace(row["eta"]),
			Platform:    platform,
		}
		if p, ok := parsePrice(row["price"]); ok {
			l.Price = &p
		}
		if r, ok := parseRating(row["rating"]); ok {
			l.Rating = &r
		}
		listings = append(listings, l)
	}
	return listings
}

func parseReviews(rows []map[string]string) []domain.Review {
	reviews := make([]domain.Review, 0, len(rows))
	for _, row := range rows {
		text := strings.TrimSpace(row["text"])
		if text == "" {
			continue
		}
		r, _ := parseRating(row["rating"])
		reviews = append(reviews, domain.Review{
			Rating: r,
			Text:   text,
			Author: strings.TrimSpace(row["author"]),
		})
	}
	return reviews
}

func parseMenu(rows []map[string]string) []domain.MenuEntry {
	entries := make([]domain.MenuEntry, 0, len(rows))
	for _, row := range rows {
		name := strings.TrimSpace(row["name"])
		if name == "" {
			continue
		}
		e := domain.MenuEntry{
			Name:        name,
			Description: strings.TrimSpace(row["description"]),
		}
		e.Price, _ = parsePrice(row["price"])
		e.Rating, _ = parseRating(row["rating"])
		if v := strings.ToLower(strings.TrimSpace(row["veg"])); v != "" {
			veg := !strings.Contains(v, "non")
			e.Veg = &veg
		}
		entries = append(entries, e)
	}
	return entries
}
