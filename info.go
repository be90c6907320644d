package cococonv

// Dataset level metadata: the COCO info block and the license list.

import (
	"fmt"
	"time"

	toml "github.com/pelletier/go-toml/v2"
)

// DatasetInfo describes the generated dataset. It can be loaded from a TOML file.
type DatasetInfo struct {
	Year        int       `toml:"year"` // Zero uses the year of generation.
	Version     string    `toml:"version"`
	Description string    `toml:"description"`
	URL         string    `toml:"url"`
	Contributor string    `toml:"contributor"`
	Licenses    []License `toml:"licenses"`
}

// DefaultDatasetInfo returns the metadata used when no info file is configured.
func DefaultDatasetInfo() DatasetInfo {
	return DatasetInfo{
		Version:     "1.0",
		Description: "Sample COCO Export",
		Licenses:    []License{{ID: 1, Name: "Open source"}},
	}
}

// LoadDatasetInfo reads the TOML file at path. Keys missing from the file keep their default.
func LoadDatasetInfo(path string) (DatasetInfo, error) {
	enc, err := readFile(path)
	if err != nil {
		return DatasetInfo{}, err
	}

	info := DefaultDatasetInfo()
	defaultLicenses := info.Licenses
	info.Licenses = nil
	if err := toml.Unmarshal(enc, &info); err != nil {
		return DatasetInfo{}, fmt.Errorf("failed to parse dataset info from %q: %v", path, err)
	}
	if len(info.Licenses) == 0 {
		info.Licenses = defaultLicenses
	}

	for _, l := range info.Licenses {
		if l.ID <= 0 {
			return DatasetInfo{}, fmt.Errorf("invalid license id %d in %q", l.ID, path)
		}
	}

	return info, nil
}

// Info returns the COCO info block for a dataset generated at now.
func (d DatasetInfo) Info(now time.Time) Info {
	year := d.Year
	if year == 0 {
		year = now.Year()
	}
	return Info{
		Year:        year,
		Version:     d.Version,
		Description: d.Description,
		Contributor: d.Contributor,
		URL:         d.URL,
		DateCreated: now.Format(dateCreatedLayout),
	}
}

// LicenseID is the license assigned to every image: the first listed license.
func (d DatasetInfo) LicenseID() int {
	if len(d.Licenses) == 0 {
		return 1
	}
	return d.Licenses[0].ID
}

// licenseList returns the licenses for the document, never nil.
func (d DatasetInfo) licenseList() []License {
	if len(d.Licenses) == 0 {
		return DefaultDatasetInfo().Licenses
	}
	licenses := make([]License, len(d.Licenses))
	copy(licenses, d.Licenses)
	return licenses
}
