package filter

// DefaultWhitelist is used when the configuration does not set whitelist_keywords.
var DefaultWhitelist = []string{
	"GPSC", "GSSSB", "Talati", "TET", "HTAT", "TAT", "Clerk", "PSI",
	"Police", "Constable", "Gujarat", "OJAS", "High Court", "HC", "LRD",
	"Bharti", "Exam",
}

// DefaultBlacklist is used when the configuration does not set blacklist_keywords.
var DefaultBlacklist = []string{
	"University", "Apprentice", "Apprenticeship", "Contract", "Outsourcing",
	"District Project Coordinator", "Project Coordinator", "Project",
	"Contractual", "Operator", "Walk-in Interview", "Rozgaar Bharti Melo",
	"Consultant", "CSIR", "CSMCRI", "Samagra Shiksha", "College", "Hospital",
	"IRMA", "TB", "GMERS", "GNLU", "Shikshan Sahayak", "Nagarpalika",
	"Part-Time", "Technician", "Paper",
}
