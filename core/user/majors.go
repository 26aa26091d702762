package user

import "sort"

// MajorNone is the major of users outside any study program (lecturers, admins).
const MajorNone = "NON"

// Majors maps study program codes to their names.
var Majors = map[string]string{
	// technology & science
	"AIR": "Artificial Intelligence and Robotics",
	"DBT": "Digital Business Technology",
	"EBT": "Energy Business Technology",
	"FBT": "Food Business Technology",
	"PDI": "Product Design Innovation",
	"BMT": "Business Mathematics",

	// business & management
	"ACC": "Accounting",
	"BRD": "Branding",
	"BUS": "Business",
	"BEC": "Business Economics",
	"EVT": "Event",
	"FNB": "Finance and Banking",
	"FTE": "Financial Technology",
	"HOS": "Hospitality Business",
	"IBL": "International Business Law",

	MajorNone: "N/A",
}

func IsValidMajor(code string) bool {
	_, ok := Majors[code]
	return ok
}

// MajorCodes returns the sorted major codes.
func MajorCodes() []string {
	codes := make([]string, 0, len(Majors))
	for code := range Majors {
		codes = append(codes, code)
	}
	sort.Strings(codes)
	return codes
}
