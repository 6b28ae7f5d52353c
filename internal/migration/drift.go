package migration

// DetectDrift compares the filesystem migration set against applied
// records from the database. Every applied version must have a matching
// on-disk file with an identical checksum; files with versions absent from
// applied are pending and legal. There is no ordering requirement beyond
// this pairwise check.
func DetectDrift(filesystem []Migration, applied []AppliedRecord) error {
	byVersion := make(map[int64]Migration, len(filesystem))
	for _, m := range filesystem {
		byVersion[m.Version] = m
	}

	for _, a := range applied {
		fsm, ok := byVersion[a.Version]
		if !ok {
			return MissingMigrationFileError{Version: a.Version}
		}
		if fsm.Checksum != a.Checksum {
			return ChecksumMismatchError{Version: a.Version, Expected: a.Checksum, Actual: fsm.Checksum}
		}
	}

	return nil
}
