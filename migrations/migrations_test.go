package migrations

import (
	"io/fs"
	"strings"
	"testing"

	"github.com/golang-migrate/migrate/v4/source/iofs"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestEmbeddedMigrationsParse(t *testing.T) {
	src, err := iofs.New(FS, ".")
	require.NoError(t, err)
	defer src.Close()

	first, err := src.First()
	require.NoError(t, err)
	assert.Equal(t, uint(1), first)
}

func TestEveryUpHasDown(t *testing.T) {
	ups, err := fs.Glob(FS, "*.up.sql")
	require.NoError(t, err)
	require.NotEmpty(t, ups)

	for _, up := range ups {
		down := strings.TrimSuffix(up, ".up.sql") + ".down.sql"
		_, err := fs.Stat(FS, down)
		assert.NoError(t, err, down)
	}
}

func TestSchemaDeclaresLiveSlotIndex(t *testing.T) {
	b, err := fs.ReadFile(FS, "000001_init.up.sql")
	require.NoError(t, err)
	assert.Contains(t, string(b), "appointments_live_slot_idx")
	assert.Contains(t, string(b), "UNIQUE (doctor_id, slot_date, slot_time)")
}
