package migration

import (
	"io/fs"
	"sort"
	"strconv"
	"strings"
	"unicode/utf8"
)

// Migration filenames are checked by parseFilename rather than a compiled
// regexp: a version of ASCII digits, an underscore, a non-empty name, and a
// ".sql" suffix.

// Discover reads dir (via fsys) and returns its migrations sorted ascending
// by version, with filename as a tie-break (ties themselves are rejected as
// DuplicateVersionError, so the tie-break never actually surfaces).
//
// Non-regular-file entries are ignored. A missing directory is reported as
// an IOError: unlike a generator that tolerates an absent migrations folder,
// an audited migration run must fail loudly when misconfigured rather than
// silently report "nothing to do".
func Discover(fsys fs.FS, dir string) ([]Migration, error) {
	entries, err := fs.ReadDir(fsys, dir)
	if err != nil {
		return nil, IOError{Path: dir, Message: err.Error()}
	}

	type candidate struct {
		version  int64
		name     string
		filename string
	}

	var candidates []candidate
	for _, entry := range entries {
		if !entry.Type().IsRegular() {
			continue
		}
		filename := entry.Name()
		version, name, err := parseFilename(filename)
		if err != nil {
			return nil, err
		}
		candidates = append(candidates, candidate{version: version, name: name, filename: filename})
	}

	if len(candidates) == 0 {
		return nil, EmptyMigrationsDirError{Dir: dir}
	}

	sort.Slice(candidates, func(i, j int) bool {
		if candidates[i].version != candidates[j].version {
			return candidates[i].version < candidates[j].version
		}
		return candidates[i].filename < candidates[j].filename
	})

	seen := make(map[int64]string, len(candidates))
	out := make([]Migration, 0, len(candidates))
	for _, c := range candidates {
		if first, ok := seen[c.version]; ok {
			return nil, DuplicateVersionError{Version: c.version, First: first, Second: c.filename}
		}
		seen[c.version] = c.filename

		path := dir + "/" + c.filename
		raw, err := fs.ReadFile(fsys, path)
		if err != nil {
			return nil, IOError{Path: path, Message: err.Error()}
		}
		if !utf8.Valid(raw) {
			return nil, IOError{Path: path, Message: "file is not valid UTF-8"}
		}

		out = append(out, Migration{
			Version:  c.version,
			Name:     c.name,
			Filename: c.filename,
			Checksum: Checksum(raw),
			SQL:      string(raw),
		})
	}

	return out, nil
}

func parseFilename(filename string) (int64, string, error) {
	if !strings.HasSuffix(filename, ".sql") {
		return 0, "", InvalidFilenameError{Filename: filename, Reason: "file extension must be .sql"}
	}

	base := strings.TrimSuffix(filename, ".sql")
	sep := strings.IndexByte(base, '_')
	if sep <= 0 {
		return 0, "", InvalidFilenameError{Filename: filename, Reason: "expected format <version>_<name>.sql"}
	}

	versionStr, name := base[:sep], base[sep+1:]
	if name == "" {
		return 0, "", InvalidFilenameError{Filename: filename, Reason: "name segment must not be empty"}
	}
	for _, r := range versionStr {
		if r < '0' || r > '9' {
			return 0, "", InvalidFilenameError{Filename: filename, Reason: "version must be a positive integer"}
		}
	}

	version, err := strconv.ParseInt(versionStr, 10, 64)
	if err != nil || version <= 0 {
		return 0, "", InvalidFilenameError{Filename: filename, Reason: "version must be a positive integer"}
	}

	return version, name, nil
}
