package weather

import (
	"fmt"

	"github.com/i474232898/sg-weather/internal/common"
)

// Areas is the fixed set of 2-hour forecast area names.
var Areas = []string{
	"Ang Mo Kio", "Bedok", "Bishan", "Boon Lay", "Bukit Batok", "Bukit Merah",
	"Bukit Panjang", "Bukit Timah", "Central Water Catchment", "Changi",
	"Choa Chu Kang", "Clementi", "City", "Geylang", "Hougang", "Jalan Bahar",
	"Jurong East", "Jurong Island", "Jurong West", "Kallang", "Lim Chu Kang",
	"Mandai", "Marine Parade", "Novena", "Pasir Ris", "Paya Lebar", "Pioneer",
	"Pulau Tekong", "Pulau Ubin", "Punggol", "Queenstown", "Seletar",
	"Sembawang", "Sengkang", "Sentosa", "Serangoon", "Southern Islands",
	"Sungei Kadut", "Tampines", "Tanglin", "Tengah", "Toa Payoh", "Tuas",
	"Western Islands", "Western Water Catchment", "Woodlands", "Yishun",
}

// Regions is the fixed set of 24-hour forecast regions, keyed the way the
// upstream documents key them.
var Regions = []string{"west", "east", "central", "south", "north"}

// Station is a known NEA observation station.
type Station struct {
	ID       string
	Name     string
	Location Location
	// Rain marks stations reported by the rain dataset.
	Rain bool
}

// Stations is the catalog of NEA stations, keyed by the ids used in the
// data.gov.sg realtime documents. Rain marks the rainfall gauges that are
// always reported, even when a cycle's document omits them. Stations that
// upstream declares in metadata.stations but the catalog lacks are still
// accepted; see StationFromMetadata.
var Stations = []Station{
	{"S06", "Paya Lebar", Location{1.3524, 103.9007}, false},
	{"S07", "Lornie Road", Location{1.341, 103.834}, true},
	{"S08", "Upper Thomson Road", Location{1.3701, 103.8271}, true},
	{"S11", "Choa Chu Kang Road", Location{1.3746, 103.6938}, true},
	{"S24", "Upper Changi Road North", Location{1.3678, 103.9826}, true},
	{"S29", "Pasir Ris Drive 12", Location{1.387, 103.935}, true},
	{"S33", "Jurong Pier Road", Location{1.3081, 103.71}, true},
	{"S35", "Old Toh Tuck Road", Location{1.3329, 103.7556}, true},
	{"S36", "Upper Serangoon Road", Location{1.3382, 103.8673}, true},
	{"S40", "Mandai Lake Road", Location{1.4044, 103.78962}, true},
	{"S43", "Kim Chuan Road", Location{1.3399, 103.8878}, true},
	{"S44", "Nanyang Avenue", Location{1.34583, 103.68166}, true},
	{"S50", "Clementi Road", Location{1.3337, 103.7768}, true},
	{"S60", "Sentosa", Location{1.25, 103.8279}, true},
	{"S61", "Chai Chee Street", Location{1.323, 103.9217}, true},
	{"S64", "Bukit Panjang Road", Location{1.3824, 103.7603}, true},
	{"S66", "Kranji Way", Location{1.4387, 103.7363}, true},
	{"S69", "Upper Peirce Reservoir Park", Location{1.37, 103.805}, true},
	{"S71", "Kent Ridge Road", Location{1.2923, 103.7815}, true},
	{"S77", "Alexandra Road", Location{1.2937, 103.8125}, true},
	{"S78", "Poole Road", Location{1.30703, 103.89067}, true},
	{"S79", "Somerset Road", Location{1.3004, 103.8372}, true},
	{"S81", "Punggol Central", Location{1.4029, 103.9092}, true},
	{"S82", "Tuas West Road", Location{1.3214, 103.6232}, true},
	{"S84", "Simei Avenue", Location{1.3437, 103.9444}, true},
	{"S88", "Toa Payoh North", Location{1.3427, 103.8482}, true},
	{"S89", "Tuas Road", Location{1.31985, 103.66162}, true},
	{"S90", "Bukit Timah Road", Location{1.3191, 103.8191}, true},
	{"S94", "Pasir Ris Street 51", Location{1.3662, 103.9528}, true},
	{"S100", "Woodlands Road", Location{1.4172, 103.74855}, true},
	{"S102", "Semakau Landfill", Location{1.189, 103.768}, false},
	{"S104", "Woodlands Avenue 9", Location{1.44387, 103.78538}, true},
	{"S106", "Pulau Ubin", Location{1.4168, 103.9673}, true},
	{"S107", "East Coast Parkway", Location{1.3135, 103.9625}, true},
	{"S108", "Marina Gardens Drive", Location{1.2799, 103.8703}, true},
	{"S109", "Ang Mo Kio Avenue 5", Location{1.3764, 103.8492}, true},
	{"S111", "Scotts Road", Location{1.31055, 103.8365}, true},
	{"S112", "Lim Chu Kang Road", Location{1.43854, 103.70131}, true},
	{"S113", "Marine Parade Road", Location{1.30648, 103.9104}, true},
	{"S114", "Choa Chu Kang Avenue 4", Location{1.38, 103.73}, true},
	{"S115", "Tuas South Avenue 3", Location{1.29377, 103.61843}, true},
	{"S116", "West Coast Highway", Location{1.281, 103.754}, true},
	{"S117", "Banyan Road", Location{1.256, 103.679}, true},
	{"S118", "Handy Road", Location{1.2994, 103.8461}, true},
	{"S119", "Nicoll Highway", Location{1.30105, 103.8666}, true},
	{"S121", "Old Choa Chu Kang Road", Location{1.37288, 103.72244}, true},
	{"S122", "Sembawang Road", Location{1.41731, 103.8249}, true},
}


var (
	areaKeys    = make(map[string]string, len(Areas))
	regionKeys  = make(map[string]string, len(Regions))
	stationByID = make(map[string]Station, len(Stations))
)

func init() {
	for _, a := range Areas {
		areaKeys[common.NormalizeKey(a)] = a
	}
	for _, r := range Regions {
		regionKeys[common.NormalizeKey(r)] = r
	}
	for _, s := range Stations {
		stationByID[common.NormalizeKey(s.ID)] = s
	}
}

// CanonicalArea maps an upstream area name onto the catalog spelling.
func CanonicalArea(name string) (string, error) {
	if a, ok := areaKeys[common.NormalizeKey(name)]; ok {
		return a, nil
	}
	return "", fmt.Errorf("%w: area %q", ErrUnknownIdentifier, name)
}

// CanonicalRegion maps an upstream region name onto the catalog key.
func CanonicalRegion(name string) (string, error) {
	if r, ok := regionKeys[common.NormalizeKey(name)]; ok {
		return r, nil
	}
	return "", fmt.Errorf("%w: region %q", ErrUnknownIdentifier, name)
}

// LookupStation resolves an upstream station id.
func LookupStation(id string) (Station, error) {
	if s, ok := stationByID[common.NormalizeKey(id)]; ok {
		return s, nil
	}
	return Station{}, fmt.Errorf("%w: station %q", ErrUnknownIdentifier, id)
}

// RainStations returns the stations always present in the rain dataset.
func RainStations() []Station {
	var out []Station
	for _, s := range Stations {
		if s.Rain {
			out = append(out, s)
		}
	}
	return out
}

// StationFromMetadata returns the catalog entry for id, or a station built
// from the upstream metadata when the catalog does not know it yet. ok is
// false when neither source knows the id.
func StationFromMetadata(id string, upstream map[string]Station) (Station, bool) {
	if st, err := LookupStation(id); err == nil {
		return st, true
	}
	st, ok := upstream[common.NormalizeKey(id)]
	return st, ok
}

// RegionDisplayName is the entity name used for a region sensor.
func RegionDisplayName(region string) string {
	if region == "" {
		return ""
	}
	title := string(region[0]-'a'+'A') + region[1:]
	if region == "central" {
		return "Weather in " + title + " Singapore"
	}
	return "Weather in " + title + "ern Singapore"
}
