// Package contracts generates weekly route offers, expires them and turns
// accepted offers into committed schedules.
package contracts

import (
	"encoding/binary"
	"fmt"
	"math/rand/v2"
	"strings"

	"github.com/google/uuid"
	"lukechampine.com/blake3"

	"airline_scheduler/internal/clock"
	"airline_scheduler/internal/geo"
	"airline_scheduler/internal/models"
)

// minimum route length worth offering
const minDistanceKm = 150

// contract ids live in their own namespace so the same seed always yields
// the same ids
var idNamespace = uuid.NewSHA1(uuid.NameSpaceOID, []byte("airline_scheduler/contracts"))

type GeneratorOptions struct {
	WorldSeed     string
	OffersPerHub  int
	LifetimeDays  int
	MinWeeks      int
	MaxWeeks      int
	MaxAttempts   int
	DemandScaling map[string]float64 // airport type -> demand multiplier
}

// Generator produces offers that depend only on the world seed, the hub and
// the day they are generated on.
type Generator struct {
	opts         GeneratorOptions
	hubs         []models.Airport
	destinations []models.Airport
}

func NewGenerator(opts GeneratorOptions, hubs, destinations []models.Airport) *Generator {
	if opts.OffersPerHub <= 0 {
		opts.OffersPerHub = 12
	}
	if opts.LifetimeDays <= 0 {
		opts.LifetimeDays = 2
	}
	if opts.MinWeeks <= 0 {
		opts.MinWeeks = 2
	}
	if opts.MaxWeeks < opts.MinWeeks {
		opts.MaxWeeks = opts.MinWeeks
	}
	if opts.MaxAttempts <= 0 {
		opts.MaxAttempts = opts.OffersPerHub * 8
	}
	if opts.DemandScaling == nil {
		opts.DemandScaling = map[string]float64{
			"large_airport":  1,
			"medium_airport": 0.6,
			"small_airport":  0.3,
		}
	}
	return &Generator{opts: opts, hubs: hubs, destinations: destinations}
}

func (g *Generator) Hubs() []models.Airport { return g.hubs }

// seed derives a PCG source from blake3(worldSeed|hub|day).
func (g *Generator) seed(hub string, day int64) *rand.Rand {
	var buf [8]byte
	binary.LittleEndian.PutUint64(buf[:], uint64(day))
	data := append([]byte(g.opts.WorldSeed+"|"+strings.ToUpper(hub)+"|"), buf[:]...)
	sum := blake3.Sum256(data)
	return rand.New(rand.NewPCG(binary.LittleEndian.Uint64(sum[:8]), binary.LittleEndian.Uint64(sum[8:16])))
}

// Generate returns the offers for the game day containing now. Calling it
// twice for the same day yields identical contracts.
func (g *Generator) Generate(now clock.Playtime) []models.Contract {
	day := clock.DayIndex(now)
	created := clock.DayStart(now)
	expires := created + clock.Playtime(g.opts.LifetimeDays)*clock.MinutesPerDay

	var out []models.Contract
	for _, hub := range g.hubs {
		rng := g.seed(hub.Ident, day)
		seen := make(map[string]bool)
		for attempt := 0; attempt < g.opts.MaxAttempts && len(seen) < g.opts.OffersPerHub; attempt++ {
			if len(g.destinations) == 0 {
				break
			}
			dest := g.destinations[rng.IntN(len(g.destinations))]
			if strings.EqualFold(dest.Ident, hub.Ident) || seen[dest.Ident] {
				continue
			}
			dist := geo.Distance(hub.Point(), dest.Point())
			if dist < minDistanceKm {
				continue
			}
			seen[dest.Ident] = true

			weeks := g.opts.MinWeeks + rng.IntN(g.opts.MaxWeeks-g.opts.MinWeeks+1)
			c := models.Contract{
				ID:            uuid.NewSHA1(idNamespace, fmt.Appendf(nil, "%s|%s|%s|%d", g.opts.WorldSeed, hub.Ident, dest.Ident, day)).String(),
				Origin:        hub.Ident,
				Destination:   dest.Ident,
				DistanceKm:    dist,
				Day:           clock.Day(rng.IntN(clock.DaysPerWeek)),
				Departure:     clock.TimeOfDay(rng.IntN(clock.MinutesPerDay/5) * 5),
				Demand:        g.demand(rng, dist, dest.Type),
				DurationWeeks: weeks,
				Reputation:    dist/250 + weeks*2,
				CreatedAt:     created,
				ExpiresAt:     expires,
			}
			out = append(out, c)
		}
	}
	return out
}

func (g *Generator) demand(rng *rand.Rand, distanceKm int, airportType string) models.Seats {
	scale, ok := g.opts.DemandScaling[airportType]
	if !ok {
		scale = 0.2
	}
	d := models.Seats{Economy: 80 + rng.IntN(160)}
	if distanceKm > 1500 {
		d.Business = 10 + rng.IntN(30)
	} else {
		d.Business = rng.IntN(12)
	}
	if distanceKm > 4000 {
		d.First = 4 + rng.IntN(12)
	}
	for _, class := range models.CabinClasses {
		d.Set(class, int(float64(d.Get(class))*scale))
	}
	return d
}
