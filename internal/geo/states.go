package geo

// stateEntry is one row of the built-in state reference table
type stateEntry struct {
	fips    string
	code    string
	name    string
	aliases []string
}

// AllStateCodes lists every USPS code in the reference table in stable order
func AllStateCodes() []string {
	codes := make([]string, len(stateTable))
	for i, entry := range stateTable {
		codes[i] = entry.code
	}
	return codes
}

// stateTable covers the 50 states plus DC with the federal FIPS codes
var stateTable = []stateEntry{
	{"01", "AL", "Alabama", nil},
	{"02", "AK", "Alaska", nil},
	{"04", "AZ", "Arizona", nil},
	{"05", "AR", "Arkansas", nil},
	{"06", "CA", "California", []string{"calif", "cali"}},
	{"08", "CO", "Colorado", nil},
	{"09", "CT", "Connecticut", []string{"conn"}},
	{"10", "DE", "Delaware", nil},
	{"11", "DC", "District of Columbia", []string{"washington dc", "washington d c", "dc"}},
	{"12", "FL", "Florida", []string{"fla"}},
	{"13", "GA", "Georgia", nil},
	{"15", "HI", "Hawaii", nil},
	{"16", "ID", "Idaho", nil},
	{"17", "IL", "Illinois", nil},
	{"18", "IN", "Indiana", nil},
	{"19", "IA", "Iowa", nil},
	{"20", "KS", "Kansas", nil},
	{"21", "KY", "Kentucky", nil},
	{"22", "LA", "Louisiana", nil},
	{"23", "ME", "Maine", nil},
	{"24", "MD", "Maryland", nil},
	{"25", "MA", "Massachusetts", []string{"mass"}},
	{"26", "MI", "Michigan", nil},
	{"27", "MN", "Minnesota", nil},
	{"28", "MS", "Mississippi", nil},
	{"29", "MO", "Missouri", nil},
	{"30", "MT", "Montana", nil},
	{"31", "NE", "Nebraska", nil},
	{"32", "NV", "Nevada", nil},
	{"33", "NH", "New Hampshire", nil},
	{"34", "NJ", "New Jersey", nil},
	{"35", "NM", "New Mexico", nil},
	{"36", "NY", "New York", nil},
	{"37", "NC", "North Carolina", nil},
	{"38", "ND", "North Dakota", nil},
	{"39", "OH", "Ohio", nil},
	{"40", "OK", "Oklahoma", nil},
	{"41", "OR", "Oregon", nil},
	{"42", "PA", "Pennsylvania", []string{"penn"}},
	{"44", "RI", "Rhode Island", nil},
	{"45", "SC", "South Carolina", nil},
	{"46", "SD", "South Dakota", nil},
	{"47", "TN", "Tennessee", nil},
	{"48", "TX", "Texas", nil},
	{"49", "UT", "Utah", nil},
	{"50", "VT", "Vermont", nil},
	{"51", "VA", "Virginia", nil},
	{"53", "WA", "Washington", []string{"wash"}},
	{"54", "WV", "West Virginia", nil},
	{"55", "WI", "Wisconsin", nil},
	{"56", "WY", "Wyoming", nil},
}
