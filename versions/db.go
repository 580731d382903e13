package versions

import (
	"database/sql"
	"errors"

	"github.com/jmoiron/sqlx"
)

type InstalledVersion struct {
	Version     string `db:"version" json:"version"`
	Executable  string `db:"executable" json:"executable"`
	ArchiveURL  string `db:"archive_url" json:"archiveUrl"`
	InstalledAt int64  `db:"installed_at" json:"installedAt"`
}

const installedVersionSchema = `
CREATE TABLE IF NOT EXISTS installed_version_v1 (
	version STRING PRIMARY KEY NOT NULL,
	executable STRING NOT NULL,
	archive_url STRING NOT NULL,
	installed_at INTEGER NOT NULL
);
`

const getInstalledVersionV1Sql = `
SELECT version, executable, archive_url, installed_at FROM installed_version_v1 WHERE version = $1;
`

const listInstalledVersionsV1Sql = `
SELECT version, executable, archive_url, installed_at FROM installed_version_v1 ORDER BY installed_at, version;
`

const upsertInstalledVersionV1Sql = `
INSERT OR REPLACE INTO installed_version_v1 (version, executable, archive_url, installed_at)
VALUES ($1, $2, $3, $4);
`

const deleteInstalledVersionV1Sql = `
DELETE FROM installed_version_v1 WHERE version = $1;
`

func VersionDBInit(db *sqlx.DB) error {
	_, err := db.Exec(installedVersionSchema)
	return err
}

// VersionDBGet returns nil without an error when the version is not indexed.
func VersionDBGet(db *sqlx.DB, version string) (*InstalledVersion, error) {
	var installed InstalledVersion
	err := db.Get(&installed, getInstalledVersionV1Sql, version)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &installed, nil
}

func VersionDBList(db *sqlx.DB) ([]InstalledVersion, error) {
	installed := []InstalledVersion{}
	err := db.Select(&installed, listInstalledVersionsV1Sql)
	return installed, err
}

func VersionDBUpsert(db *sqlx.DB, installed InstalledVersion) error {
	_, err := db.Exec(upsertInstalledVersionV1Sql, installed.Version, installed.Executable, installed.ArchiveURL, installed.InstalledAt)
	return err
}

func VersionDBDelete(db *sqlx.DB, version string) error {
	_, err := db.Exec(deleteInstalledVersionV1Sql, version)
	return err
}
