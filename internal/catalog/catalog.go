// Package catalog loads the static airport and aircraft data.
package catalog

import (
	"encoding/csv"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"strconv"
	"strings"

	"airline_scheduler/internal/models"
)

var ErrMissingColumn = errors.New("airports csv: missing column")

// Airports indexes airports by ident, IATA and ICAO code.
type Airports struct {
	list    []models.Airport
	byIdent map[string]models.Airport
}

func NewAirports(list []models.Airport) *Airports {
	a := &Airports{list: list, byIdent: make(map[string]models.Airport, len(list)*2)}
	for _, ap := range list {
		for _, code := range []string{ap.Ident, ap.IATA, ap.ICAO} {
			if code == "" {
				continue
			}
			code = strings.ToUpper(code)
			if _, taken := a.byIdent[code]; !taken {
				a.byIdent[code] = ap
			}
		}
	}
	return a
}

func (a *Airports) All() []models.Airport { return a.list }

func (a *Airports) Len() int { return len(a.list) }

// Lookup finds an airport by any of its codes.
func (a *Airports) Lookup(code string) (models.Airport, bool) {
	ap, ok := a.byIdent[strings.ToUpper(strings.TrimSpace(code))]
	return ap, ok
}

// Filter keeps airports of the given size class: large, medium (large and
// medium) or small. Anything else returns every airport.
func (a *Airports) Filter(tier string) []models.Airport {
	tier = strings.ToLower(tier)
	keep := func(t string) bool {
		switch tier {
		case "large":
			return t == "large_airport"
		case "medium":
			return t == "large_airport" || t == "medium_airport"
		case "small":
			return t == "small_airport"
		default:
			return true
		}
	}
	out := make([]models.Airport, 0, len(a.list))
	for _, ap := range a.list {
		if keep(ap.Type) {
			out = append(out, ap)
		}
	}
	return out
}

// LoadAirportsCSV reads an OurAirports-layout file.
func LoadAirportsCSV(path string) (*Airports, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()
	list, err := ParseAirports(f)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	return NewAirports(list), nil
}

// ParseAirports skips closed airports, heliports and seaplane bases.
func ParseAirports(r io.Reader) ([]models.Airport, error) {
	reader := csv.NewReader(r)
	reader.FieldsPerRecord = -1
	headers, err := reader.Read()
	if err != nil {
		return nil, err
	}
	idx := func(name string) int {
		for i, h := range headers {
			if strings.TrimSpace(h) == name {
				return i
			}
		}
		return -1
	}
	cols := map[string]int{}
	for _, name := range []string{"id", "ident", "type", "name", "latitude_deg", "longitude_deg"} {
		i := idx(name)
		if i < 0 {
			return nil, fmt.Errorf("%w %q", ErrMissingColumn, name)
		}
		cols[name] = i
	}
	for _, name := range []string{"iso_country", "iso_region", "municipality", "iata_code", "icao_code"} {
		cols[name] = idx(name)
	}
	field := func(rec []string, name string) string {
		i := cols[name]
		if i < 0 || i >= len(rec) {
			return ""
		}
		return rec[i]
	}

	var airports []models.Airport
	for {
		rec, err := reader.Read()
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, err
		}

		t := field(rec, "type")
		if t == "closed" || t == "heliport" || t == "seaplane_base" {
			continue
		}

		lat, err := strconv.ParseFloat(field(rec, "latitude_deg"), 64)
		if err != nil {
			continue
		}
		lon, err := strconv.ParseFloat(field(rec, "longitude_deg"), 64)
		if err != nil {
			continue
		}

		airports = append(airports, models.Airport{
			ID:           field(rec, "id"),
			Ident:        field(rec, "ident"),
			Type:         t,
			Name:         field(rec, "name"),
			Latitude:     lat,
			Longitude:    lon,
			Country:      field(rec, "iso_country"),
			Region:       field(rec, "iso_region"),
			City:         field(rec, "municipality"),
			IATA:         field(rec, "iata_code"),
			ICAO:         field(rec, "icao_code"),
			LandingFee:   landingFeeForType(t),
			PassengerFee: passengerFeeForType(t),
		})
	}
	return airports, nil
}

func landingFeeForType(t string) float64 {
	switch t {
	case "large_airport":
		return 3500
	case "medium_airport":
		return 2000
	case "small_airport":
		return 800
	default:
		return 500
	}
}

func passengerFeeForType(t string) float64 {
	switch t {
	case "large_airport":
		return 18
	case "medium_airport":
		return 12
	case "small_airport":
		return 6
	default:
		return 4
	}
}

// LoadAircraftJSON reads the aircraft template database.
func LoadAircraftJSON(path string) ([]models.Aircraft, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	var aircraft []models.Aircraft
	if err := json.Unmarshal(data, &aircraft); err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	return aircraft, nil
}
