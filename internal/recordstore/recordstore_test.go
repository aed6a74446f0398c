package recordstore

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"kontrol/internal/record"
	"kontrol/internal/schema"
	"kontrol/internal/storage"
	_ "kontrol/internal/storage/all"
)

var day = time.Date(2025, time.March, 14, 9, 30, 0, 0, time.UTC)

func validRecord(t *testing.T, batch string, cast string, defects map[string]string) *record.InspectionRecord {
	t.Helper()
	r := record.New(day)
	require.NoError(t, r.SetBatch(batch))
	require.NoError(t, r.SetCast(cast))
	require.NoError(t, r.SetController(0, "Елхова"))
	for name, v := range defects {
		require.NoError(t, r.Apply(name, v))
	}
	require.NoError(t, record.NewValidator(nil).Validate(r))
	return r
}

func openRepo(t *testing.T, file string) storage.Repository {
	t.Helper()
	repo, err := storage.New(context.Background(), storage.Config{DSN: filepath.Join(t.TempDir(), file)})
	require.NoError(t, err)
	t.Cleanup(repo.Close)
	return repo
}

func readRows(t *testing.T, repo storage.Repository) [][]string {
	t.Helper()
	tbl, err := repo.Open(context.Background())
	require.NoError(t, err)
	defer tbl.Close()
	rows, err := tbl.Rows()
	require.NoError(t, err)
	return rows
}

var backends = []string{"control.xlsx", "control.csv", "control.db"}

func TestAppend_FirstRecordCreatesHeaderAndRow(t *testing.T) {
	t.Parallel()

	for _, file := range backends {
		file := file
		t.Run(file, func(t *testing.T) {
			t.Parallel()

			repo := openRepo(t, file)
			store := New(repo)

			rec := validRecord(t, "12/25", "100", map[string]string{
				"Второй_сорт_раковины": "2",
				"Второй_сорт_зарез":    "1",
			})
			row, err := store.Append(context.Background(), rec)
			require.NoError(t, err)
			assert.Equal(t, 2, row)

			rows := readRows(t, repo)
			require.Len(t, rows, 2)
			assert.Equal(t, schema.Header(), rows[0])

			data := rows[1]
			assert.Equal(t, "12/25", data[0])
			assert.Equal(t, "100", data[1])
			assert.Equal(t, "97", data[2])
			assert.Equal(t, "14.03.2025", data[3])
			assert.Equal(t, "Елхова", data[4])
			assert.Equal(t, "", data[5])
			pos, _ := schema.Position("Второй_сорт_раковины")
			assert.Equal(t, "2", data[pos])
			assert.Len(t, data, len(schema.Header()))
		})
	}
}

func TestAppend_NRecordsYieldNPlusOneRows(t *testing.T) {
	t.Parallel()

	for _, file := range backends {
		file := file
		t.Run(file, func(t *testing.T) {
			t.Parallel()

			repo := openRepo(t, file)
			store := New(repo)
			const n = 5
			for i := 1; i <= n; i++ {
				row, err := store.Append(context.Background(), validRecord(t, fmt.Sprintf("%d/25", i), "10", nil))
				require.NoError(t, err)
				assert.Equal(t, i+1, row)
			}

			rows := readRows(t, repo)
			require.Len(t, rows, n+1)
			for i := 1; i <= n; i++ {
				assert.Equal(t, fmt.Sprintf("%d/25", i), rows[i][0], "row %d overwritten or reordered", i+1)
				assert.Equal(t, "14.03.2025", rows[i][3])
			}
		})
	}
}

func TestReadExcluded_AbsentStoreIsEmpty(t *testing.T) {
	t.Parallel()

	store := New(openRepo(t, "control.xlsx"))
	got, err := store.ReadExcludedBatchIdentifiers(context.Background())
	require.NoError(t, err)
	assert.Empty(t, got)
}

func TestReadExcluded_IncludesAppendedBatch(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	store := New(openRepo(t, "control.xlsx"))

	_, err := store.Append(ctx, validRecord(t, "1/25", "5", nil))
	require.NoError(t, err)
	_, err = store.Append(ctx, validRecord(t, "2/25", "5", nil))
	require.NoError(t, err)

	got, err := store.ReadExcludedBatchIdentifiers(ctx)
	require.NoError(t, err)
	assert.Equal(t, map[string]struct{}{"1/25": {}, "2/25": {}}, got)
}

func TestAppend_RefusesRecordedBatch(t *testing.T) {
	t.Parallel()

	for _, file := range backends {
		file := file
		t.Run(file, func(t *testing.T) {
			t.Parallel()

			ctx := context.Background()
			repo := openRepo(t, file)
			store := New(repo)

			_, err := store.Append(ctx, validRecord(t, "A/25", "10", nil))
			require.NoError(t, err)

			// Same identifier after canonicalization.
			_, err = store.Append(ctx, validRecord(t, " A/25 ", "7", nil))
			require.ErrorIs(t, err, record.ErrBatchAlreadyRecorded)
			var vf *record.ValidationFailure
			require.True(t, errors.As(err, &vf))
			assert.Equal(t, schema.BatchColumn, vf.Field)
			assert.Equal(t, "A/25", vf.Value)

			rows := readRows(t, repo)
			require.Len(t, rows, 2)
			assert.Equal(t, "10", rows[1][1])
		})
	}
}

func TestAppend_RefusesDraft(t *testing.T) {
	t.Parallel()

	store := New(openRepo(t, "control.xlsx"))
	r := record.New(day)
	_, err := store.Append(context.Background(), r)
	assert.ErrorIs(t, err, ErrNotValidated)
}

func TestAppend_HeaderMismatch(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	path := filepath.Join(t.TempDir(), "control.csv")
	require.NoError(t, os.WriteFile(path, []byte("Номер_плавки,Другая_колонка\n1/25,3\n"), 0o644))
	repo, err := storage.New(ctx, storage.Config{DSN: path})
	require.NoError(t, err)

	_, err = New(repo).Append(ctx, validRecord(t, "2/25", "5", nil))
	require.ErrorIs(t, err, ErrSchemaMismatch)
	var pf *PersistenceFailure
	require.True(t, errors.As(err, &pf))
	assert.Equal(t, "check header", pf.Op)

	raw, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Equal(t, "Номер_плавки,Другая_колонка\n1/25,3\n", string(raw))
}

func TestAppend_ExistingEmptyStoreGetsHeader(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	path := filepath.Join(t.TempDir(), "control.csv")
	require.NoError(t, os.WriteFile(path, nil, 0o644))
	repo, err := storage.New(ctx, storage.Config{DSN: path})
	require.NoError(t, err)

	row, err := New(repo).Append(ctx, validRecord(t, "3/25", "1", nil))
	require.NoError(t, err)
	assert.Equal(t, 2, row)
	assert.Equal(t, schema.Header(), readRows(t, repo)[0])
}

// failingRepo wraps a real repository and fails Save.
type failingRepo struct {
	storage.Repository
	saveErr error
}

func (f *failingRepo) Open(ctx context.Context) (storage.Table, error) {
	t, err := f.Repository.Open(ctx)
	if err != nil {
		return nil, err
	}
	return &failingTable{Table: t, err: f.saveErr}, nil
}

func (f *failingRepo) Create(ctx context.Context) (storage.Table, error) {
	t, err := f.Repository.Create(ctx)
	if err != nil {
		return nil, err
	}
	return &failingTable{Table: t, err: f.saveErr}, nil
}

type failingTable struct {
	storage.Table
	err error
}

func (f *failingTable) Save(context.Context) error { return f.err }

func TestAppend_SaveFailureWritesNothing(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	repo := openRepo(t, "control.xlsx")
	_, err := New(repo).Append(ctx, validRecord(t, "1/25", "5", nil))
	require.NoError(t, err)

	locked := errors.New("file is locked by another program")
	_, err = New(&failingRepo{Repository: repo, saveErr: locked}).Append(ctx, validRecord(t, "2/25", "5", nil))
	require.ErrorIs(t, err, locked)
	var pf *PersistenceFailure
	require.True(t, errors.As(err, &pf))
	assert.Equal(t, "save", pf.Op)

	rows := readRows(t, repo)
	require.Len(t, rows, 2)
	assert.Equal(t, "1/25", rows[1][0])
}

func TestSerialize_Types(t *testing.T) {
	t.Parallel()

	rec := validRecord(t, "4/25", "20", map[string]string{"Доработка_зарез": "3"})
	vals := Serialize(rec)
	require.Len(t, vals, len(schema.Header()))

	assert.Equal(t, "4/25", vals[0])
	assert.Equal(t, 20, vals[1])
	assert.Equal(t, 17, vals[2])
	assert.Equal(t, time.Date(2025, time.March, 14, 0, 0, 0, 0, time.UTC), vals[3])
	assert.Equal(t, "Елхова", vals[4])
	assert.Nil(t, vals[5])
	assert.Nil(t, vals[6])
	pos, _ := schema.Position("Доработка_зарез")
	assert.Equal(t, 3, vals[pos])
	pos, _ = schema.Position("Окончательный_брак_слом")
	assert.Equal(t, 0, vals[pos])
}
