// Package domain models the records moved by the backup pipeline and the
// pure functions that derive cleaned records from raw ones.
//
// # Data Sources
//
// Two source tables are filled by upstream collaborators before a run:
//
//	entradas      user-submitted form entries (name, city, weather label,
//	              optional description and image reference)
//	weather_data  persisted OpenWeatherMap lookups, one row per saved lookup
//
// The pipeline only reads them. Column names follow the source schema
// (nombre, ciudad, clima, ...); Go field names are English.
//
// # Entry Cleaning
//
// Applied in order by [CleanEntry]:
//
//	1. trim name, city, weather label, description, image reference
//	2. name and city are title-cased, the weather label is capitalized
//	3. runs of whitespace in the description collapse to one space
//	4. a name or city longer than 100 characters drops the record
//
// Absent optional fields become empty strings.
//
// # Weather Classification
//
// Three labels are derived by [Thresholds]:
//
//	Wind (m/s):         <1 Calm | <5 Breeze | <15 Moderate | else Strong
//	Temperature (mean): <10 Cold | <25 Mild | else Hot
//	Visibility (m):     >=10000 High | >=4000 Medium | else Low
//
// Boundary values belong to the upper bucket for wind and temperature and to
// the higher-visibility bucket for visibility. A record missing any field the
// cleaned record needs is rejected with a [*FieldError].
//
// # Idempotence
//
// Backup and cleaned tables are keyed by the full column tuple of the record
// written to them. Cleaned records are a pure function of the raw record, so
// re-running over unchanged sources produces the same tuples and inserts
// nothing new.
package domain
