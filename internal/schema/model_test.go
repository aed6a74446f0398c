package schema

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/text/unicode/norm"
)

func TestHeaderOrderIsStable(t *testing.T) {
	t.Parallel()

	h := Header()
	require.Len(t, h, 47)

	// The first seven columns are the metadata block, in this exact order.
	assert.Equal(t, []string{
		BatchColumn, CastColumn, AcceptedColumn, DateColumn,
		Controller1Column, Controller2Column, Controller3Column,
	}, h[:7])

	assert.Equal(t, "Второй_сорт_раковины", h[7])
	assert.Equal(t, "Доработка_раковины", h[9])
	assert.Equal(t, "Доработка_смещение", h[25])
	assert.Equal(t, "Окончательный_брак_недолив", h[26])
	assert.Equal(t, "Окончательный_брак_трещины", h[46])
}

func TestCategoryCounts(t *testing.T) {
	t.Parallel()

	cases := []struct {
		cat  Category
		want int
	}{
		{Meta, 7},
		{SecondGrade, 2},
		{Rework, 17},
		{FinalScrap, 21},
	}
	for _, c := range cases {
		assert.Len(t, ByCategory(c.cat), c.want, c.cat.String())
	}
	assert.Equal(t, 40, DefectCount())
	assert.Len(t, DefectColumns(), 40)
}

func TestHiddenLegacyReworkFields(t *testing.T) {
	t.Parallel()

	var hiddenNames []string
	for _, c := range Columns() {
		if !c.Visible {
			hiddenNames = append(hiddenNames, c.Name)
		}
	}
	assert.Equal(t, []string{"Доработка_раковины", "Доработка_зарез"}, hiddenNames)

	// Hidden fields stay part of the derivation set.
	for _, name := range hiddenNames {
		id, ok := DefectByName(name)
		require.True(t, ok, name)
		assert.False(t, Defect(id).Visible)
	}

	for _, c := range VisibleColumns() {
		assert.True(t, c.Visible, c.Name)
	}
	assert.Len(t, VisibleColumns(), 45)
}

func TestDefectIDsFollowHeaderOrder(t *testing.T) {
	t.Parallel()

	h := Header()
	for i, c := range DefectColumns() {
		id := DefectID(i)
		require.True(t, id.Valid())
		assert.Equal(t, c.Name, id.Name())
		assert.Equal(t, h[7+i], c.Name)
	}
	assert.False(t, DefectID(-1).Valid())
	assert.False(t, DefectID(DefectCount()).Valid())
}

func TestLookupCanonicalizesNames(t *testing.T) {
	t.Parallel()

	// "й" decomposes to "и" + U+0306 under NFD.
	nfd := norm.NFD.String("Окончательный_брак_слом")
	require.NotEqual(t, "Окончательный_брак_слом", nfd)
	id, ok := DefectByName("  " + nfd + " ")
	require.True(t, ok)
	assert.Equal(t, "Окончательный_брак_слом", id.Name())

	_, ok = Position(norm.NFD.String(BatchColumn))
	assert.True(t, ok)

	_, ok = Lookup("does-not-exist")
	assert.False(t, ok)
}

func TestFingerprint(t *testing.T) {
	t.Parallel()

	assert.Equal(t, Fingerprint(), HeaderFingerprint(Header()))

	nfd := Header()
	for i := range nfd {
		nfd[i] = norm.NFD.String(nfd[i])
	}
	assert.Equal(t, Fingerprint(), HeaderFingerprint(nfd), "canonicalization must hide NFD differences")

	swapped := Header()
	swapped[7], swapped[8] = swapped[8], swapped[7]
	assert.NotEqual(t, Fingerprint(), HeaderFingerprint(swapped))
}

func TestRequiredFields(t *testing.T) {
	t.Parallel()

	assert.Equal(t, []string{BatchColumn, CastColumn}, RequiredFields())
	assert.Len(t, ControllerColumns(), MaxControllers)
}
