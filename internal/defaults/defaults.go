// Package defaults provides embedded copies of the example config and
// profile rosters for the aviary init subcommand.
package defaults

import _ "embed"

//go:generate sh -c "cp ../../examples/aviary.example.yaml . && cp ../../examples/profiles.example.csv . && cp ../../examples/profiles.example.json ."

//go:embed aviary.example.yaml
var ConfigYAML []byte

//go:embed profiles.example.csv
var ProfilesCSV []byte

//go:embed profiles.example.json
var ProfilesJSON []byte
