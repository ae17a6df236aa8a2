package artifacts

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/jackc/pgtype"
	"github.com/jackc/pgx/v4"
	kdb "github.com/opst/fieldarchive/pkg/db"
	kpgerr "github.com/opst/fieldarchive/pkg/db/postgres/errors"
	kpool "github.com/opst/fieldarchive/pkg/db/postgres/pool"
	"github.com/opst/fieldarchive/pkg/db/postgres/scanner"
	"github.com/opst/fieldarchive/pkg/domain"
	xe "github.com/opst/fieldarchive/pkg/errors"
)

type pgArtifacts struct {
	pool kpool.Pool
}

func New(pool kpool.Pool) kdb.ArtifactInterface {
	return &pgArtifacts{pool: pool}
}

const artifactColumns = `
	"name", "endpoint", "project", "device_type", "local_path", "remote_path",
	"size", "file_count", "uploading", "uploading_since", "archived",
	"local_storage", "placeholder", "created_at"
`

// row of "artifact"
type artifactRow struct {
	Name           string             `sql:"name"`
	Endpoint       string             `sql:"endpoint"`
	Project        string             `sql:"project"`
	DeviceType     string             `sql:"device_type"`
	LocalPath      string             `sql:"local_path"`
	RemotePath     string             `sql:"remote_path"`
	Size           int64              `sql:"size"`
	FileCount      int32              `sql:"file_count"`
	Uploading      bool               `sql:"uploading"`
	UploadingSince pgtype.Timestamptz `sql:"uploading_since"`
	Archived       bool               `sql:"archived"`
	LocalStorage   bool               `sql:"local_storage"`
	Placeholder    bool               `sql:"placeholder"`
	CreatedAt      time.Time          `sql:"created_at"`
}

func (r artifactRow) artifact() domain.Artifact {
	a := domain.Artifact{
		Name:         r.Name,
		Endpoint:     r.Endpoint,
		Project:      r.Project,
		DeviceType:   r.DeviceType,
		LocalPath:    r.LocalPath,
		RemotePath:   r.RemotePath,
		Size:         r.Size,
		FileCount:    int(r.FileCount),
		Uploading:    r.Uploading,
		Archived:     r.Archived,
		LocalStorage: r.LocalStorage,
		Placeholder:  r.Placeholder,
		CreatedAt:    r.CreatedAt,
	}
	if r.UploadingSince.Status == pgtype.Present {
		since := r.UploadingSince.Time
		a.UploadingSince = &since
	}
	return a
}

type memberRow struct {
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
}

func (r memberRow) status(artifact string) domain.FileStatus {
	return domain.FileStatus{
		FileDescriptor: domain.FileDescriptor{
			Id:           r.Id,
			Project:      r.Project,
			DeviceType:   r.DeviceType,
			Path:         r.Path,
			RelativePath: r.RelativePath,
			Size:         r.Size,
			RecordedAt:   r.RecordingDt,
			CreatedAt:    r.CreatedAt,
		},
		Archived:     r.Archived,
		LocalStorage: r.LocalStorage,
		DoNotRemove:  r.DoNotRemove,
		Artifact:     artifact,
	}
}

func missing(name string) error {
	return kpgerr.Missing{Table: "artifact", Identity: fmt.Sprintf("name=%s", name)}
}

func conflict(name string, reason string) error {
	return kpgerr.Conflict{Table: "artifact", Identity: fmt.Sprintf("name=%s", name), Reason: reason}
}

func (a *pgArtifacts) Register(ctx context.Context, artifact domain.Artifact, claimToken string) error {
	return kpool.InTx(ctx, a.pool, func(tx kpool.Tx) error {
		createdAt := artifact.CreatedAt
		if createdAt.IsZero() {
			createdAt = time.Now()
		}
		if _, err := tx.Exec(
			ctx,
			`
			insert into "artifact"
				("name", "endpoint", "project", "device_type", "local_path",
				 "size", "file_count", "local_storage", "created_at")
			values ($1, $2, $3, $4, $5, $6, $7, true, $8)
			`,
			artifact.Name, artifact.Endpoint, artifact.Project, artifact.DeviceType,
			artifact.LocalPath, artifact.Size, len(artifact.Members), createdAt,
		); err != nil {
			if kpgerr.IsUniqueViolation(err) {
				return xe.Wrap(conflict(artifact.Name, "name is already used"))
			}
			return xe.Wrap(err)
		}

		for position, m := range artifact.Members {
			ct, err := tx.Exec(
				ctx,
				`
				update "data_file"
				set "artifact" = $1, "claim" = null, "claimed_at" = null
				where "id" = $2 and "claim" = $3 and "artifact" is null
				`,
				artifact.Name, m.Id, claimToken,
			)
			if err != nil {
				return xe.Wrap(err)
			}
			if ct.RowsAffected() != 1 {
				return xe.Wrap(conflict(
					artifact.Name, fmt.Sprintf("file %s is not claimed by %s", m.Id, claimToken),
				))
			}

			if _, err := tx.Exec(
				ctx,
				`insert into "artifact_member" ("artifact", "file_id", "position") values ($1, $2, $3)`,
				artifact.Name, m.Id, position,
			); err != nil {
				return xe.Wrap(err)
			}
		}
		return nil
	})
}

func (a *pgArtifacts) Get(ctx context.Context, name string) (domain.Artifact, error) {
	conn, err := a.pool.Acquire(ctx)
	if err != nil {
		return domain.Artifact{}, xe.Wrap(err)
	}
	defer conn.Release()

	rows, err := scanner.New[artifactRow]().QueryAll(
		ctx, conn,
		`select `+artifactColumns+` from "artifact" where "name" = $1`,
		name,
	)
	if err != nil {
		return domain.Artifact{}, xe.Wrap(err)
	}
	if len(rows) == 0 {
		return domain.Artifact{}, xe.Wrap(missing(name))
	}
	artifact := rows[0].artifact()

	members, err := scanner.New[memberRow]().QueryAll(
		ctx, conn,
		`
		select
			f."id", f."project", f."device_type", f."path", f."relative_path",
			f."size", f."recording_dt", f."created_at",
			f."archived", f."local_storage", f."do_not_remove"
		from "artifact_member" as m
		inner join "data_file" as f on f."id" = m."file_id"
		where m."artifact" = $1
		order by m."position"
		`,
		name,
	)
	if err != nil {
		return domain.Artifact{}, xe.Wrap(err)
	}
	artifact.Members = make([]domain.FileStatus, len(members))
	for nth, m := range members {
		artifact.Members[nth] = m.status(name)
	}
	return artifact, nil
}

func (a *pgArtifacts) Find(ctx context.Context, query kdb.ArtifactQuery) ([]domain.Artifact, error) {
	conds := []string{}
	params := []any{}
	param := func(v any) string {
		params = append(params, v)
		return fmt.Sprintf("$%d", len(params))
	}

	switch query.State {
	case "":
	case domain.Pending:
		conds = append(conds, `not "uploading" and not "archived"`)
	case domain.Uploading:
		conds = append(conds, `"uploading"`)
	case domain.Archived:
		conds = append(conds, `"archived" and not "placeholder"`)
	case domain.Placeholder:
		conds = append(conds, `"placeholder"`)
	default:
		return nil, xe.Wrap(fmt.Errorf("%w: %s", domain.ErrUnknownArtifactState, query.State))
	}
	if query.Endpoint != "" {
		conds = append(conds, `"endpoint" = `+param(query.Endpoint))
	}
	if query.Project != "" {
		conds = append(conds, `"project" = `+param(query.Project))
	}
	if query.DeviceType != "" {
		conds = append(conds, `"device_type" = `+param(query.DeviceType))
	}

	where := ""
	if 0 < len(conds) {
		where = "where " + strings.Join(conds, " and ")
	}

	conn, err := a.pool.Acquire(ctx)
	if err != nil {
		return nil, xe.Wrap(err)
	}
	defer conn.Release()

	rows, err := scanner.New[artifactRow]().QueryAll(
		ctx, conn,
		`select `+artifactColumns+` from "artifact" `+where+` order by "created_at", "name"`,
		params...,
	)
	if err != nil {
		return nil, xe.Wrap(err)
	}
	artifacts := make([]domain.Artifact, len(rows))
	for nth, r := range rows {
		artifacts[nth] = r.artifact()
	}
	return artifacts, nil
}

// explain why the update did not affect the artifact.
func (a *pgArtifacts) explain(ctx context.Context, q kpool.Queryer, name string, reason string) error {
	var exists bool
	if err := q.QueryRow(
		ctx, `select exists (select 1 from "artifact" where "name" = $1)`, name,
	).Scan(&exists); err != nil {
		return xe.Wrap(err)
	}
	if !exists {
		return xe.Wrap(missing(name))
	}
	return xe.Wrap(conflict(name, reason))
}

func (a *pgArtifacts) Lock(ctx context.Context, name string) error {
	conn, err := a.pool.Acquire(ctx)
	if err != nil {
		return xe.Wrap(err)
	}
	defer conn.Release()

	ct, err := conn.Exec(
		ctx,
		`
		update "artifact" set "uploading" = true, "uploading_since" = now()
		where "name" = $1 and not "uploading" and not "archived"
		`,
		name,
	)
	if err != nil {
		return xe.Wrap(err)
	}
	if ct.RowsAffected() == 0 {
		return a.explain(ctx, conn, name, "uploading or archived already")
	}
	return nil
}

func (a *pgArtifacts) Unlock(ctx context.Context, name string) error {
	conn, err := a.pool.Acquire(ctx)
	if err != nil {
		return xe.Wrap(err)
	}
	defer conn.Release()

	ct, err := conn.Exec(
		ctx,
		`update "artifact" set "uploading" = false, "uploading_since" = null where "name" = $1`,
		name,
	)
	if err != nil {
		return xe.Wrap(err)
	}
	if ct.RowsAffected() == 0 {
		return xe.Wrap(missing(name))
	}
	return nil
}

func (a *pgArtifacts) Complete(ctx context.Context, name string, remotePath string) error {
	return kpool.InTx(ctx, a.pool, func(tx kpool.Tx) error {
		ct, err := tx.Exec(
			ctx,
			`
			update "artifact"
			set "archived" = true, "uploading" = false, "uploading_since" = null,
				"local_storage" = false, "remote_path" = $2
			where "name" = $1 and "uploading"
			`,
			name, remotePath,
		)
		if err != nil {
			return xe.Wrap(err)
		}
		if ct.RowsAffected() == 0 {
			return a.explain(ctx, tx, name, "not locked for upload")
		}

		if _, err := tx.Exec(
			ctx,
			`update "data_file" set "archived" = true where "artifact" = $1`,
			name,
		); err != nil {
			return xe.Wrap(err)
		}
		return nil
	})
}

func (a *pgArtifacts) ReleaseStaleLocks(ctx context.Context, olderThan time.Duration) ([]string, error) {
	conn, err := a.pool.Acquire(ctx)
	if err != nil {
		return nil, xe.Wrap(err)
	}
	defer conn.Release()

	names, err := scanner.New[string]().QueryAll(
		ctx, conn,
		`
		update "artifact" set "uploading" = false, "uploading_since" = null
		where "uploading" and "uploading_since" < now() - make_interval(secs => $1)
		returning "name"
		`,
		olderThan.Seconds(),
	)
	if err != nil {
		return nil, xe.Wrap(err)
	}
	return names, nil
}

func (a *pgArtifacts) RepairMembers(ctx context.Context) ([]string, error) {
	conn, err := a.pool.Acquire(ctx)
	if err != nil {
		return nil, xe.Wrap(err)
	}
	defer conn.Release()

	names, err := scanner.New[string]().QueryAll(
		ctx, conn,
		`
		with "repaired" as (
			update "data_file" as f set "archived" = true
			from "artifact" as a
			where f."artifact" = a."name" and a."archived" and not f."archived"
			returning a."name" as "name"
		)
		select distinct "name" from "repaired" order by "name"
		`,
	)
	if err != nil {
		return nil, xe.Wrap(err)
	}
	return names, nil
}

func (a *pgArtifacts) Demote(ctx context.Context, name string) error {
	conn, err := a.pool.Acquire(ctx)
	if err != nil {
		return xe.Wrap(err)
	}
	defer conn.Release()

	ct, err := conn.Exec(
		ctx,
		`
		update "artifact" set "placeholder" = true, "local_storage" = false
		where "name" = $1 and "archived"
		`,
		name,
	)
	if err != nil {
		return xe.Wrap(err)
	}
	if ct.RowsAffected() == 0 {
		return a.explain(ctx, conn, name, "not archived")
	}
	return nil
}

func (a *pgArtifacts) SetLocalStorage(ctx context.Context, name string, local bool) error {
	conn, err := a.pool.Acquire(ctx)
	if err != nil {
		return xe.Wrap(err)
	}
	defer conn.Release()

	ct, err := conn.Exec(
		ctx,
		`update "artifact" set "local_storage" = $2 where "name" = $1`,
		name, local,
	)
	if err != nil {
		return xe.Wrap(err)
	}
	if ct.RowsAffected() == 0 {
		return xe.Wrap(missing(name))
	}
	return nil
}

func (a *pgArtifacts) Remove(ctx context.Context, name string, withFiles bool, apply func() error) error {
	return kpool.InTx(ctx, a.pool, func(tx kpool.Tx) error {
		var uploading bool
		if err := tx.QueryRow(
			ctx,
			`select "uploading" from "artifact" where "name" = $1 for update`,
			name,
		).Scan(&uploading); err != nil {
			if errors.Is(err, pgx.ErrNoRows) {
				return xe.Wrap(missing(name))
			}
			return xe.Wrap(err)
		}
		if uploading {
			return xe.Wrap(conflict(name, "being uploaded"))
		}

		// all members are locked, so holds wait for this transaction.
		members, err := scanner.New[struct {
			Id          string `sql:"id"`
			DoNotRemove bool   `sql:"do_not_remove"`
		}]().QueryAll(
			ctx, tx,
			`
			select f."id", f."do_not_remove" from "data_file" as f
			inner join "artifact_member" as m on m."file_id" = f."id"
			where m."artifact" = $1
			order by f."id"
			for update of f
			`,
			name,
		)
		if err != nil {
			return xe.Wrap(err)
		}
		held := []string{}
		for _, m := range members {
			if m.DoNotRemove {
				held = append(held, m.Id)
			}
		}
		if 0 < len(held) {
			return &domain.DeletionRefused{
				Artifact: name,
				Reason:   "member files are held",
				HeldBy:   held,
			}
		}

		if apply != nil {
			if err := apply(); err != nil {
				return err
			}
		}

		if withFiles {
			if _, err := tx.Exec(
				ctx,
				`
				delete from "data_file"
				where "id" in (select "file_id" from "artifact_member" where "artifact" = $1)
				`,
				name,
			); err != nil {
				return xe.Wrap(err)
			}
		} else {
			if _, err := tx.Exec(
				ctx,
				`update "data_file" set "artifact" = null, "archived" = false where "artifact" = $1`,
				name,
			); err != nil {
				return xe.Wrap(err)
			}
		}

		if _, err := tx.Exec(ctx, `delete from "artifact" where "name" = $1`, name); err != nil {
			return xe.Wrap(err)
		}
		return nil
	})
}
