package main

import (
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"log"
	"os"
	"strings"
	"time"

	sexa "github.com/soniakeys/sexagesimal"
	"github.com/soniakeys/unit"

	"github.com/rs/zerolog"
	"github.com/thurmanmarka/fujiglide"
	"github.com/thurmanmarka/fujiglide/internal/align"
	"github.com/thurmanmarka/fujiglide/internal/model"
	"github.com/thurmanmarka/fujiglide/internal/settings"
	"github.com/thurmanmarka/fujiglide/internal/store"
	"github.com/thurmanmarka/fujiglide/internal/timeutil"
)

func main() {
	log.SetFlags(0)

	// No args or first arg starts with "-": geometry mode (default).
	if len(os.Args) < 2 || strings.HasPrefix(os.Args[1], "-") {
		runGeometry(os.Args[1:])
		return
	}

	switch os.Args[1] {
	case "align":
		runAlign(os.Args[2:])
	case "phase":
		runPhase(os.Args[2:])
	default:
		fmt.Fprintf(os.Stderr, "unknown subcommand %q\n\n", os.Args[1])
		usage()
		os.Exit(1)
	}
}

func usage() {
	fmt.Fprintf(os.Stderr, `fujiglide – Diamond/Pearl Fuji inspection

Usage:
  fujiglide [flags]            # summit geometry for an observer (default mode)
  fujiglide align [flags]      # Diamond/Pearl alignments for one date
  fujiglide phase [flags]      # Moon phase / illumination

Default mode flags (geometry):
  -lat float
        latitude in degrees (north positive)
  -lon float
        longitude in degrees (east positive)
  -elev float
        site elevation in metres
  -json
        output result as JSON

For the other modes:
  fujiglide align -h
  fujiglide phase -h
`)
}

// ---------------------
// Geometry (default) mode
// ---------------------

func runGeometry(args []string) {
	fs := flag.NewFlagSet("fujiglide", flag.ExitOnError)

	lat := fs.Float64("lat", 0, "latitude in degrees (north positive)")
	lon := fs.Float64("lon", 0, "longitude in degrees (east positive)")
	elev := fs.Float64("elev", 0, "site elevation in metres")
	jsonOut := fs.Bool("json", false, "output result as JSON")

	if err := fs.Parse(args); err != nil {
		log.Fatalf("failed to parse flags: %v", err)
	}

	obs := fujiglide.Coordinates{Lat: *lat, Lon: *lon, Elevation: *elev}

	bearing, err := fujiglide.BearingToFuji(obs)
	if err != nil {
		log.Fatalf("invalid observer: %v", err)
	}
	distance, _ := fujiglide.DistanceToFuji(obs)
	appElev, _ := fujiglide.ApparentElevationToFuji(obs, settings.Defaults().ObserverEyeHeightM)

	if *jsonOut {
		out := map[string]any{
			"fuji_bearing_deg":            bearing,
			"fuji_distance_m":             distance,
			"fuji_apparent_elevation_deg": appElev,
		}
		enc := json.NewEncoder(os.Stdout)
		enc.SetIndent("", "  ")
		if err := enc.Encode(out); err != nil {
			log.Fatalf("encode: %v", err)
		}
		return
	}

	fmt.Printf("Bearing to summit:  %.2s\n", sexa.FmtAngle(unit.AngleFromDeg(bearing)))
	fmt.Printf("Distance:           %.1f km\n", distance/1000)
	fmt.Printf("Apparent elevation: %.2s\n", sexa.FmtAngle(unit.AngleFromDeg(appElev)))
}

// ---------------------
// Alignment mode
// ---------------------

func runAlign(args []string) {
	fs := flag.NewFlagSet("fujiglide align", flag.ExitOnError)

	lat := fs.Float64("lat", 0, "latitude in degrees (north positive)")
	lon := fs.Float64("lon", 0, "longitude in degrees (east positive)")
	elev := fs.Float64("elev", 0, "site elevation in metres")
	dateS := fs.String("date", "", "civil date in YYYY-MM-DD (JST; defaults to today)")
	jsonOut := fs.Bool("json", false, "output result as JSON")

	if err := fs.Parse(args); err != nil {
		log.Fatalf("failed to parse flags: %v", err)
	}

	var date time.Time
	if *dateS == "" {
		date = timeutil.CivilDateJST(time.Now())
	} else {
		var err error
		date, err = time.ParseInLocation("2006-01-02", *dateS, timeutil.JST)
		if err != nil {
			log.Fatalf("invalid -date %q: %v", *dateS, err)
		}
	}

	obs := fujiglide.Coordinates{Lat: *lat, Lon: *lon, Elevation: *elev}
	if err := obs.Validate(); err != nil {
		log.Fatalf("invalid observer: %v", err)
	}
	snap := settings.Defaults()

	b, e, d := store.DeriveGeometry(*lat, *lon, *elev, snap.ObserverEyeHeightM)
	loc := &model.Location{
		ID:                       0,
		Latitude:                 *lat,
		Longitude:                *lon,
		Elevation:                *elev,
		FujiBearingDeg:           b,
		FujiApparentElevationDeg: e,
		FujiDistanceM:            d,
	}

	finder := align.NewFinder(align.Kernel{}, zerolog.Nop())
	cands, err := finder.Search(context.Background(), loc, date, snap)
	if err != nil {
		log.Fatalf("search failed: %v", err)
	}

	if *jsonOut {
		enc := json.NewEncoder(os.Stdout)
		enc.SetIndent("", "  ")
		if err := enc.Encode(cands); err != nil {
			log.Fatalf("encode: %v", err)
		}
		return
	}

	fmt.Printf("Observer: lat %.5f lon %.5f elev %.0fm / summit bearing %.2f°, distance %.1f km, apparent elevation %.2f°\n",
		*lat, *lon, *elev, b, d/1000, e)
	if len(cands) == 0 {
		fmt.Printf("No Diamond/Pearl alignment on %s.\n", date.Format("2006-01-02"))
		return
	}
	for _, c := range cands {
		line := fmt.Sprintf("%-16s %s  az %.2s  alt %.2s  quality %.2f (%s)",
			c.Kind,
			c.Time.In(timeutil.JST).Format("15:04 MST"),
			sexa.FmtAngle(unit.AngleFromDeg(c.AzimuthDeg)),
			sexa.FmtAngle(unit.AngleFromDeg(c.AltitudeDeg)),
			c.QualityScore, c.AccuracyTier)
		if c.Kind.IsPearl() {
			line += fmt.Sprintf("  moon %.0f%% lit", c.MoonIllumination*100)
		}
		fmt.Println(line)
	}
}

// ---------------------
// Phase mode
// ---------------------

func runPhase(args []string) {
	fs := flag.NewFlagSet("fujiglide phase", flag.ExitOnError)

	dateS := fs.String("date", "", "date in YYYY-MM-DD (JST; defaults to now)")
	jsonOut := fs.Bool("json", false, "output result as JSON")

	if err := fs.Parse(args); err != nil {
		log.Fatalf("failed to parse flags: %v", err)
	}

	t := time.Now()
	if *dateS != "" {
		var err error
		t, err = time.ParseInLocation("2006-01-02", *dateS, timeutil.JST)
		if err != nil {
			log.Fatalf("invalid -date %q: %v", *dateS, err)
		}
	}

	mp := fujiglide.MoonPhaseAt(t)

	if *jsonOut {
		enc := json.NewEncoder(os.Stdout)
		enc.SetIndent("", "  ")
		if err := enc.Encode(mp); err != nil {
			log.Fatalf("encode: %v", err)
		}
		return
	}

	fmt.Printf("Moon at %s: %s, %.0f%% illuminated (phase %.2f)\n",
		t.In(timeutil.JST).Format(time.RFC3339), mp.Name, mp.Fraction*100, mp.Phase)
}
