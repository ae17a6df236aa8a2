package files

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	kdb "github.com/opst/fieldarchive/pkg/db"
	kpgerr "github.com/opst/fieldarchive/pkg/db/postgres/errors"
	kpool "github.com/opst/fieldarchive/pkg/db/postgres/pool"
	"github.com/opst/fieldarchive/pkg/db/postgres/scanner"
	"github.com/opst/fieldarchive/pkg/domain"
	xe "github.com/opst/fieldarchive/pkg/errors"
	"github.com/opst/fieldarchive/pkg/grouping"
)

type pgFiles struct {
	pool kpool.Pool
}

func New(pool kpool.Pool) kdb.FileInterface {
	return &pgFiles{pool: pool}
}

// row of "data_file"
type fileRow struct {
	Id           string    `sql:"id"`
	Project      string    `sql:"project"`
	DeviceType   string    `sql:"device_type"`
	Path         string    `sql:"path"`
	RelativePath string    `sql:"relative_path"`
	Size         int64     `sql:"size"`
	RecordingDt  time.Time `sql:"recording_dt"`
	CreatedAt    time.Time `sql:"created_at"`
}

func (r fileRow) descriptor() domain.FileDescriptor {
	return domain.FileDescriptor{
		Id:           r.Id,
		Project:      r.Project,
		DeviceType:   r.DeviceType,
		Path:         r.Path,
		RelativePath: r.RelativePath,
		Size:         r.Size,
		RecordedAt:   r.RecordingDt,
		CreatedAt:    r.CreatedAt,
	}
}

// row of "data_file" with flags.
//
// scanner does not look into embedded structs, so columns are repeated here.
type fileStatusRow struct {
	Id           string    `sql:"id"`
	Project      string    `sql:"project"`
	DeviceType   string    `sql:"device_type"`
	Path         string    `sql:"path"`
	RelativePath string    `sql:"relative_path"`
	Size         int64     `sql:"size"`
	RecordingDt  time.Time `sql:"recording_dt"`
	CreatedAt    time.Time `sql:"created_at"`
	Archived     bool      `sql:"archived"`
	LocalStorage bool      `sql:"local_storage"`
	DoNotRemove  bool      `sql:"do_not_remove"`
	Artifact     *string   `sql:"artifact"`
}

func (r fileStatusRow) status() domain.FileStatus {
	st := domain.FileStatus{
		FileDescriptor: fileRow{
			Id: r.Id, Project: r.Project, DeviceType: r.DeviceType,
			Path: r.Path, RelativePath: r.RelativePath, Size: r.Size,
			RecordingDt: r.RecordingDt, CreatedAt: r.CreatedAt,
		}.descriptor(),
		Archived:     r.Archived,
		LocalStorage: r.LocalStorage,
		DoNotRemove:  r.DoNotRemove,
	}
	if r.Artifact != nil {
		st.Artifact = *r.Artifact
	}
	return st
}

func (f *pgFiles) Register(ctx context.Context, files []domain.FileDescriptor) (int, error) {
	registered := 0
	err := kpool.InTx(ctx, f.pool, func(tx kpool.Tx) error {
		for _, file := range files {
			createdAt := file.CreatedAt
			if createdAt.IsZero() {
				createdAt = time.Now()
			}
			ct, err := tx.Exec(
				ctx,
				`
				insert into "data_file"
					("id", "project", "device_type", "path", "relative_path", "size", "recording_dt", "created_at")
				values ($1, $2, $3, $4, $5, $6, $7, $8)
				on conflict ("id") do nothing
				`,
				file.Id, file.Project, file.DeviceType, file.Path, file.RelativePath,
				file.Size, file.RecordedAt, createdAt,
			)
			if err != nil {
				return xe.Wrap(err)
			}
			registered += int(ct.RowsAffected())
		}
		return nil
	})
	if err != nil {
		return 0, err
	}
	return registered, nil
}

func (f *pgFiles) Keys(ctx context.Context) ([]domain.GroupKey, error) {
	conn, err := f.pool.Acquire(ctx)
	if err != nil {
		return nil, xe.Wrap(err)
	}
	defer conn.Release()

	type keyRow struct {
		Project    string `sql:"project"`
		DeviceType string `sql:"device_type"`
	}
	rows, err := scanner.New[keyRow]().QueryAll(
		ctx, conn,
		`
		select distinct "project", "device_type" from "data_file"
		where not "archived" and "artifact" is null and "claim" is null
		order by "project", "device_type"
		`,
	)
	if err != nil {
		return nil, xe.Wrap(err)
	}

	keys := make([]domain.GroupKey, len(rows))
	for nth, r := range rows {
		keys[nth] = domain.GroupKey{Project: r.Project, DeviceType: r.DeviceType}
	}
	return keys, nil
}

func (f *pgFiles) Claim(ctx context.Context, key domain.GroupKey) (kdb.Claim, error) {
	token := uuid.NewString()
	claim := kdb.Claim{Token: token, Key: key, Files: []domain.FileDescriptor{}}

	err := kpool.InTx(ctx, f.pool, func(tx kpool.Tx) error {
		rows, err := scanner.New[fileRow]().QueryAll(
			ctx, tx,
			`
			with "target" as (
				select "id" from "data_file"
				where "project" = $1 and "device_type" = $2
					and not "archived" and "artifact" is null and "claim" is null
				for update skip locked
			)
			update "data_file" set "claim" = $3, "claimed_at" = now()
			where "id" in (select "id" from "target")
			returning
				"id", "project", "device_type", "path", "relative_path",
				"size", "recording_dt", "created_at"
			`,
			key.Project, key.DeviceType, token,
		)
		if err != nil {
			return xe.Wrap(err)
		}
		files := make([]domain.FileDescriptor, len(rows))
		for nth, r := range rows {
			files[nth] = r.descriptor()
		}
		claim.Files = grouping.SortForGrouping(files)
		return nil
	})
	if err != nil {
		return kdb.Claim{}, err
	}
	return claim, nil
}

func (f *pgFiles) Release(ctx context.Context, token string, ids []string) error {
	if len(ids) == 0 {
		return nil
	}
	conn, err := f.pool.Acquire(ctx)
	if err != nil {
		return xe.Wrap(err)
	}
	defer conn.Release()

	if _, err := conn.Exec(
		ctx,
		`
		update "data_file" set "claim" = null, "claimed_at" = null
		where "claim" = $1 and "id" = any($2)
		`,
		token, ids,
	); err != nil {
		return xe.Wrap(err)
	}
	return nil
}

func (f *pgFiles) ReleaseStale(ctx context.Context, olderThan time.Duration) (int, error) {
	conn, err := f.pool.Acquire(ctx)
	if err != nil {
		return 0, xe.Wrap(err)
	}
	defer conn.Release()

	ct, err := conn.Exec(
		ctx,
		`
		update "data_file" set "claim" = null, "claimed_at" = null
		where "claim" is not null
			and "claimed_at" < now() - make_interval(secs => $1)
		`,
		olderThan.Seconds(),
	)
	if err != nil {
		return 0, xe.Wrap(err)
	}
	return int(ct.RowsAffected()), nil
}

func (f *pgFiles) Get(ctx context.Context, ids []string) ([]domain.FileStatus, error) {
	conn, err := f.pool.Acquire(ctx)
	if err != nil {
		return nil, xe.Wrap(err)
	}
	defer conn.Release()

	rows, err := scanner.New[fileStatusRow]().QueryAll(
		ctx, conn,
		`
		select
			"id", "project", "device_type", "path", "relative_path",
			"size", "recording_dt", "created_at",
			"archived", "local_storage", "do_not_remove", "artifact"
		from "data_file"
		where "id" = any($1)
		order by "id"
		`,
		ids,
	)
	if err != nil {
		return nil, xe.Wrap(err)
	}

	found := map[string]struct{}{}
	statuses := make([]domain.FileStatus, len(rows))
	for nth, r := range rows {
		statuses[nth] = r.status()
		found[r.Id] = struct{}{}
	}
	for _, id := range ids {
		if _, ok := found[id]; !ok {
			return nil, xe.Wrap(kpgerr.Missing{Table: "data_file", Identity: fmt.Sprintf("id=%s", id)})
		}
	}
	return statuses, nil
}
