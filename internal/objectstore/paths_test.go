package objectstore

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/oslokommune/okdata-data-uploader/internal/ingesterr"
)

func TestConfidentialityMapping(t *testing.T) {
	c, err := Confidentiality(Dataset{AccessRights: "public"})
	require.NoError(t, err)
	assert.Equal(t, "green", c)

	_, err = Confidentiality(Dataset{AccessRights: "bogus"})
	assert.Error(t, err)
}

func TestParseEditionID(t *testing.T) {
	id, err := ParseEditionID("my-dataset/1/1")
	require.NoError(t, err)
	assert.Equal(t, EditionID{DatasetID: "my-dataset", Version: "1", Edition: "1"}, id)
	assert.Equal(t, "my-dataset/1/1", id.String())
}

func TestParseEditionIDInvalidFormat(t *testing.T) {
	_, err := ParseEditionID("my-dataset/1")
	require.Error(t, err)

	var ierr *ingesterr.Error
	require.ErrorAs(t, err, &ierr)
	assert.Equal(t, ingesterr.InvalidDatasetEdition, ierr.Kind)
}

func TestPathBuildsProcessedLatest(t *testing.T) {
	d := Dataset{ID: "my-dataset", AccessRights: "restricted"}
	edition := EditionID{DatasetID: "my-dataset", Version: "1", Edition: "latest"}

	path, err := Path(d, edition, StageProcessed, "")
	require.NoError(t, err)
	assert.Equal(t, "processed/yellow/my-dataset/version=1/latest", path)
}

func TestPathBuildsRawEditionWithParentAndFilename(t *testing.T) {
	d := Dataset{ID: "child", AccessRights: "public", ParentID: "parent-ds"}
	edition := EditionID{DatasetID: "child", Version: "2", Edition: "3"}

	path, err := Path(d, edition, StageRaw, "input.json")
	require.NoError(t, err)
	assert.Equal(t, "raw/green/parent-ds/child/version=2/edition=3/input.json", path)
}
