// Package profiles loads agent population files. Two formats exist:
// a CSV roster with seeded follow lists and post history, and a JSON
// roster of personas with demographic fields. Both load into the same
// Profile type, so agent construction does not care which one fed it.
package profiles

import (
	"encoding/csv"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"strconv"
	"strings"
)

// Profile describes one simulated account before sign-up.
type Profile struct {
	Username string
	Name     string
	Bio      string
	Persona  string

	// Demographics, present in JSON rosters only.
	MBTI    string
	Gender  string
	Age     string
	Country string

	// Seed state, present in CSV rosters only.
	Following     []int64
	PreviousPosts []string
	NumFollowing  int64
	NumFollowers  int64
}

// csv column names
const (
	colUsername   = "username"
	colName       = "name"
	colBio        = "description"
	colPersona    = "user_char"
	colFollowing  = "following_agentid_list"
	colPrevious   = "previous_tweets"
	colFollowing2 = "following_count"
	colFollowers2 = "followers_count"
)

// LoadCSV reads a CSV roster. Required columns: username, name,
// description, user_char, following_agentid_list, previous_tweets.
// following_count and followers_count are optional and default to the
// seeded follow lists. Unknown columns are ignored.
func LoadCSV(path string) ([]Profile, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open roster: %w", err)
	}
	defer f.Close()
	return ReadCSV(f)
}

// ReadCSV parses a CSV roster from r. See LoadCSV.
func ReadCSV(r io.Reader) ([]Profile, error) {
	cr := csv.NewReader(r)
	cr.FieldsPerRecord = -1

	header, err := cr.Read()
	if err != nil {
		return nil, fmt.Errorf("read header: %w", err)
	}
	cols := make(map[string]int, len(header))
	for i, name := range header {
		cols[strings.TrimSpace(name)] = i
	}
	for _, required := range []string{colUsername, colName, colBio, colPersona, colFollowing, colPrevious} {
		if _, ok := cols[required]; !ok {
			return nil, fmt.Errorf("roster missing column %q", required)
		}
	}

	field := func(record []string, name string) string {
		i, ok := cols[name]
		if !ok || i >= len(record) {
			return ""
		}
		return record[i]
	}

	var out []Profile
	for row := 1; ; row++ {
		record, err := cr.Read()
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("row %d: %w", row, err)
		}

		following, err := parseIntList(field(record, colFollowing))
		if err != nil {
			return nil, fmt.Errorf("row %d: %s: %w", row, colFollowing, err)
		}
		previous, err := parseStringList(field(record, colPrevious))
		if err != nil {
			return nil, fmt.Errorf("row %d: %s: %w", row, colPrevious, err)
		}

		p := Profile{
			Username:      field(record, colUsername),
			Name:          field(record, colName),
			Bio:           field(record, colBio),
			Persona:       field(record, colPersona),
			Following:     following,
			PreviousPosts: previous,
			NumFollowing:  int64(len(following)),
		}
		if v := strings.TrimSpace(field(record, colFollowing2)); v != "" {
			if n, err := strconv.ParseInt(v, 10, 64); err == nil {
				p.NumFollowing = n
			}
		}
		if v := strings.TrimSpace(field(record, colFollowers2)); v != "" {
			if n, err := strconv.ParseInt(v, 10, 64); err == nil {
				p.NumFollowers = n
			}
		}
		out = append(out, p)
	}
	return out, nil
}

// jsonProfile is the wire shape of one JSON roster entry. Age appears
// as either a number or a string in published rosters.
type jsonProfile struct {
	Username string `json:"username"`
	RealName string `json:"realname"`
	Bio      string `json:"bio"`
	Persona  string `json:"persona"`
	MBTI     string `json:"mbti"`
	Gender   string `json:"gender"`
	Age      any    `json:"age"`
	Country  string `json:"country"`
}

// LoadJSON reads a JSON roster: an array of persona objects.
func LoadJSON(path string) ([]Profile, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open roster: %w", err)
	}
	defer f.Close()
	return ReadJSON(f)
}

// ReadJSON parses a JSON roster from r. See LoadJSON.
func ReadJSON(r io.Reader) ([]Profile, error) {
	var raw []jsonProfile
	if err := json.NewDecoder(r).Decode(&raw); err != nil {
		return nil, fmt.Errorf("decode roster: %w", err)
	}

	out := make([]Profile, 0, len(raw))
	for _, jp := range raw {
		out = append(out, Profile{
			Username: jp.Username,
			Name:     jp.RealName,
			Bio:      jp.Bio,
			Persona:  jp.Persona,
			MBTI:     jp.MBTI,
			Gender:   jp.Gender,
			Age:      formatAge(jp.Age),
			Country:  jp.Country,
		})
	}
	return out, nil
}

func formatAge(v any) string {
	switch age := v.(type) {
	case nil:
		return ""
	case string:
		return age
	case float64:
		return strconv.FormatFloat(age, 'f', -1, 64)
	default:
		return fmt.Sprintf("%v", age)
	}
}

// parseIntList parses a list literal of agent ids, e.g. "[0, 3, 5]".
// Empty input and bare integers mean no seeded follows.
func parseIntList(s string) ([]int64, error) {
	s = strings.TrimSpace(s)
	if s == "" || s == "[]" {
		return nil, nil
	}
	if !strings.HasPrefix(s, "[") {
		if _, err := strconv.ParseInt(s, 10, 64); err == nil {
			return nil, nil
		}
		return nil, fmt.Errorf("not a list literal")
	}
	if !strings.HasSuffix(s, "]") {
		return nil, fmt.Errorf("unterminated list literal")
	}

	inner := strings.TrimSpace(s[1 : len(s)-1])
	if inner == "" {
		return nil, nil
	}
	parts := strings.Split(inner, ",")
	out := make([]int64, 0, len(parts))
	for _, part := range parts {
		n, err := strconv.ParseInt(strings.TrimSpace(part), 10, 64)
		if err != nil {
			return nil, fmt.Errorf("bad id %q", strings.TrimSpace(part))
		}
		out = append(out, n)
	}
	return out, nil
}

// parseStringList parses a list literal of quoted strings. Rosters are
// exported from Python, so elements may use single or double quotes
// with backslash escapes.
func parseStringList(s string) ([]string, error) {
	s = strings.TrimSpace(s)
	if s == "" || s == "[]" {
		return nil, nil
	}
	if !strings.HasPrefix(s, "[") {
		return nil, fmt.Errorf("not a list literal")
	}
	if !strings.HasSuffix(s, "]") {
		return nil, fmt.Errorf("unterminated list literal")
	}

	inner := s[1 : len(s)-1]
	var out []string
	i := 0
	for i < len(inner) {
		switch inner[i] {
		case ' ', '\t', '\n', '\r', ',':
			i++
			continue
		case '\'', '"':
		default:
			return nil, fmt.Errorf("unexpected character %q", inner[i])
		}

		quote := inner[i]
		i++
		var b strings.Builder
		closed := false
		for i < len(inner) {
			c := inner[i]
			if c == '\\' && i+1 < len(inner) {
				switch next := inner[i+1]; next {
				case 'n':
					b.WriteByte('\n')
				case 't':
					b.WriteByte('\t')
				case 'r':
					b.WriteByte('\r')
				default:
					b.WriteByte(next)
				}
				i += 2
				continue
			}
			if c == quote {
				closed = true
				i++
				break
			}
			b.WriteByte(c)
			i++
		}
		if !closed {
			return nil, fmt.Errorf("unterminated string")
		}
		out = append(out, b.String())
	}
	return out, nil
}
