package routing

// Profile is an OpenRouteService routing profile.
type Profile string

const (
	ProfileDriving Profile = "driving-car"
	ProfileWalking Profile = "foot-walking"
	ProfileCycling Profile = "cycling-regular"
)

// profiles maps transport types to provider profiles. Ferries and hitched
// rides follow road-equivalent paths. Train and Other are absent on purpose:
// they always use the straight line.
var profiles = map[TransportType]Profile{
	Hitchhiking: ProfileDriving,
	Car:         ProfileDriving,
	Bus:         ProfileDriving,
	Ferry:       ProfileDriving,
	Walk:        ProfileWalking,
	Bike:        ProfileCycling,
}

// ProfileFor returns the provider profile for t. Unrecognized values map to
// the driving profile.
func ProfileFor(t TransportType) Profile {
	if p, ok := profiles[t]; ok {
		return p
	}
	return ProfileDriving
}

// StraightLineOnly reports whether t is never sent to the provider.
func StraightLineOnly(t TransportType) bool {
	return t == Train || t == Other
}
