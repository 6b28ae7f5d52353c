package migration

import "fmt"

// Migration is a single discovered SQL migration file.
type Migration struct {
	// Version is the positive, unique-per-run integer parsed from the filename.
	Version int64
	// Name is the portion of the filename after the version separator.
	Name string
	// Filename is the original basename, e.g. "0001_create_users.sql".
	Filename string
	// Checksum is the lowercase hex SHA-256 of the file's raw bytes.
	Checksum string
	// SQL is the full, UTF-8 decoded file contents.
	SQL string
}

// String renders the migration as "<version>_<name>" for logging.
func (m Migration) String() string {
	return fmt.Sprintf("%d_%s", m.Version, m.Name)
}

// AppliedRecord is the subset of a durable vellum_migrations row needed for
// drift detection: the version and the checksum recorded at apply time.
type AppliedRecord struct {
	Version  int64
	Checksum string
}
