package core

import "strings"

// countryCodes maps country names and common variants to ISO 3166-1
// alpha-2 codes.
var countryCodes = map[string]string{
	"afghanistan":                "AF",
	"argentina":                  "AR",
	"australia":                  "AU",
	"austria":                    "AT",
	"bangladesh":                 "BD",
	"belgium":                    "BE",
	"brazil":                     "BR",
	"bulgaria":                   "BG",
	"canada":                     "CA",
	"chile":                      "CL",
	"china":                      "CN",
	"people's republic of china": "CN",
	"prc":                        "CN",
	"colombia":                   "CO",
	"croatia":                    "HR",
	"czech republic":             "CZ",
	"czechia":                    "CZ",
	"denmark":                    "DK",
	"egypt":                      "EG",
	"estonia":                    "EE",
	"ethiopia":                   "ET",
	"finland":                    "FI",
	"france":                     "FR",
	"germany":                    "DE",
	"deutschland":                "DE",
	"ghana":                      "GH",
	"greece":                     "GR",
	"hong kong":                  "HK",
	"hungary":                    "HU",
	"iceland":                    "IS",
	"india":                      "IN",
	"indonesia":                  "ID",
	"iran":                       "IR",
	"iraq":                       "IQ",
	"ireland":                    "IE",
	"israel":                     "IL",
	"italy":                      "IT",
	"japan":                      "JP",
	"jordan":                     "JO",
	"kenya":                      "KE",
	"south korea":                "KR",
	"korea":                      "KR",
	"republic of korea":          "KR",
	"latvia":                     "LV",
	"lebanon":                    "LB",
	"lithuania":                  "LT",
	"luxembourg":                 "LU",
	"macau":                      "MO",
	"malaysia":                   "MY",
	"mexico":                     "MX",
	"morocco":                    "MA",
	"netherlands":                "NL",
	"the netherlands":            "NL",
	"holland":                    "NL",
	"new zealand":                "NZ",
	"nigeria":                    "NG",
	"norway":                     "NO",
	"pakistan":                   "PK",
	"peru":                       "PE",
	"philippines":                "PH",
	"poland":                     "PL",
	"portugal":                   "PT",
	"qatar":                      "QA",
	"romania":                    "RO",
	"russia":                     "RU",
	"russian federation":         "RU",
	"saudi arabia":               "SA",
	"serbia":                     "RS",
	"singapore":                  "SG",
	"slovakia":                   "SK",
	"slovenia":                   "SI",
	"south africa":               "ZA",
	"spain":                      "ES",
	"sri lanka":                  "LK",
	"sweden":                     "SE",
	"switzerland":                "CH",
	"taiwan":                     "TW",
	"thailand":                   "TH",
	"turkey":                     "TR",
	"turkiye":                    "TR",
	"uganda":                     "UG",
	"ukraine":                    "UA",
	"united arab emirates":       "AE",
	"uae":                        "AE",
	"united kingdom":             "GB",
	"uk":                         "GB",
	"great britain":              "GB",
	"england":                    "GB",
	"scotland":                   "GB",
	"wales":                      "GB",
	"united states":              "US",
	"united states of america":   "US",
	"usa":                        "US",
	"u.s.a.":                     "US",
	"u.s.":                       "US",
	"america":                    "US",
	"vietnam":                    "VN",
	"viet nam":                   "VN",
}

// NormalizeCountry converts a country name to its ISO alpha-2 code.
// Two-letter codes are upper-cased; anything unrecognised is returned as-is.
func NormalizeCountry(s string) string {
	s = CollapseSpaces(s)
	if code, ok := countryCodes[strings.ToLower(s)]; ok {
		return code
	}
	if len(s) == 2 {
		upper := strings.ToUpper(s)
		for _, code := range countryCodes {
			if code == upper {
				return code
			}
		}
	}
	return s
}
