package models

// Specialties is the fixed set of trade categories a specialist can offer
// and a client can request.
var Specialties = []string{
	"Civil Engineer",
	"Architect",
	"Mason",
	"Blacksmith",
	"Glass Specialist",
	"Plumber",
	"Painter",
	"Aluminum Frame Specialist",
	"Carpenter",
	"Tiler",
	"Waterproofing Specialist",
	"Electrician",
	"Stone Cladding Specialist",
	"HVAC Technician",
}

// DistrictsByGovernorate maps each governorate to its valid districts.
// A user's district must belong to their governorate.
var DistrictsByGovernorate = map[string][]string{
	"Beirut":         {"Beirut"},
	"Mount Lebanon":  {"Baabda", "Aley", "Chouf", "Keserwan", "Metn", "Jbeil"},
	"North":          {"Tripoli", "Akkar", "Bcharre", "Koura", "Miniyeh-Danniyeh", "Zgharta", "Batroun"},
	"Akkar":          {"Akkar"},
	"Beqaa":          {"Zahle", "West Beqaa", "Rashaya"},
	"Baalbek-Hermel": {"Baalbek", "Hermel"},
	"South":          {"Saida", "Tyre", "Jezzine"},
	"Nabatieh":       {"Nabatieh", "Marjeyoun", "Hasbaya", "Bint Jbeil"},
}

func ValidSpecialty(name string) bool {
	for _, s := range Specialties {
		if s == name {
			return true
		}
	}
	return false
}

func ValidGovernorate(name string) bool {
	_, ok := DistrictsByGovernorate[name]
	return ok
}

// ValidDistrict reports whether district belongs to governorate.
func ValidDistrict(governorate, district string) bool {
	for _, d := range DistrictsByGovernorate[governorate] {
		if d == district {
			return true
		}
	}
	return false
}
