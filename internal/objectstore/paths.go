package objectstore

import (
	"fmt"
	"strings"

	"github.com/oslokommune/okdata-data-uploader/internal/ingesterr"
)

// Dataset is the subset of the metadata service's dataset record this
// package needs to compute storage paths, per §3.
type Dataset struct {
	ID           string
	AccessRights string
	SourceType   string
	ParentID     string
}

var confidentialityByAccessRights = map[string]string{
	"public":     "green",
	"restricted": "yellow",
	"non-public": "red",
}

// Confidentiality derives the storage path color label from the dataset's
// current accessRights, per the GLOSSARY.
func Confidentiality(d Dataset) (string, error) {
	c, ok := confidentialityByAccessRights[d.AccessRights]
	if !ok {
		return "", fmt.Errorf("invalid accessRights %q", d.AccessRights)
	}
	return c, nil
}

// Stage is one of the two storage areas in §3.
type Stage string

const (
	StageRaw       Stage = "raw"
	StageProcessed Stage = "processed"
)

// EditionID splits a "datasetId/version/edition" identifier into its three
// parts. edition may be the literal "latest".
type EditionID struct {
	DatasetID string
	Version   string
	Edition   string
}

// ParseEditionID parses a slash-separated edition identifier, per §3.
// Returns InvalidDatasetEdition (format variant) when the string doesn't
// have exactly three non-empty, slash-separated parts.
func ParseEditionID(id string) (EditionID, error) {
	parts := strings.Split(id, "/")
	if len(parts) != 3 || parts[0] == "" || parts[1] == "" || parts[2] == "" {
		return EditionID{}, ingesterr.New(ingesterr.InvalidDatasetEdition, "Invalid dataset edition format")
	}
	return EditionID{DatasetID: parts[0], Version: parts[1], Edition: parts[2]}, nil
}

func (e EditionID) String() string {
	return fmt.Sprintf("%s/%s/%s", e.DatasetID, e.Version, e.Edition)
}

// Path computes the deterministic storage path for a dataset edition, per
// §3:
//
//	<stage>/<confidentiality>/[<parent_id>/]<datasetId>/version=<v>/(edition=<e>|latest)[/<filename>]
//
// The `latest` edition segment is kept literal, never prefixed with
// "edition=". filename may be empty, in which case no trailing segment is
// appended.
func Path(d Dataset, edition EditionID, stage Stage, filename string) (string, error) {
	confidentiality, err := Confidentiality(d)
	if err != nil {
		return "", err
	}

	segs := []string{string(stage), confidentiality}
	if d.ParentID != "" {
		segs = append(segs, d.ParentID)
	}
	segs = append(segs, edition.DatasetID, fmt.Sprintf("version=%s", edition.Version))

	if edition.Edition == "latest" {
		segs = append(segs, "latest")
	} else {
		segs = append(segs, fmt.Sprintf("edition=%s", edition.Edition))
	}

	path := strings.Join(segs, "/")
	if filename != "" {
		path = path + "/" + filename
	}
	return path, nil
}

// JoinPath appends filename to a directory-style path computed by Path.
func JoinPath(path, filename string) string {
	return strings.TrimSuffix(path, "/") + "/" + filename
}
