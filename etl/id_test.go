package etl

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestDeriveID(t *testing.T) {
	t.Run("deterministic across invocations", func(t *testing.T) {
		first := DeriveID("ARqhAx", "hidden", "campaign")
		second := DeriveID("ARqhAx", "hidden", "campaign")
		require.Equal(t, first, second)
	})

	t.Run("fixed length", func(t *testing.T) {
		inputs := [][]string{
			{""},
			{"ARqhAx", "hidden", "campaign"},
			{"a", "very", "long", "sequence", "of", "fragments", "with", "unicode", "héçk"},
		}
		for _, parts := range inputs {
			require.Len(t, DeriveID(parts...), 27)
		}
	})

	t.Run("distinct inputs yield distinct ids", func(t *testing.T) {
		ids := map[string]bool{}
		for _, parts := range [][]string{
			{"ARqhAx", "hidden", "campaign"},
			{"ARqhAx", "hidden", "source"},
			{"KPbhd6", "hidden", "campaign"},
			{"ARqhAx", "resp01", "campaign"},
		} {
			ids[DeriveID(parts...)] = true
		}
		require.Len(t, ids, 4)
	})

	t.Run("column safe alphabet", func(t *testing.T) {
		id := DeriveID("ARqhAx", "resp01", "fld01")
		require.Regexp(t, `^[A-Za-z0-9_-]+$`, id)
	})
}
