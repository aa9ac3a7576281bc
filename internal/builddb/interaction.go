package builddb

import (
	"context"
	"database/sql"
	"errors"
	"time"

	"l10nsched/internal/properties"
)

// Interaction is the write surface available inside RunInteraction.
// Enqueue calls exist only here; there is no way to create buildsets
// outside an interaction scope.
type Interaction interface {
	// SourceStampID returns the id for ss, inserting it if new.
	// The same (branch, revision) pair always maps to the same row.
	SourceStampID(ss SourceStamp) (int64, error)

	// CreateBuildSet inserts one buildset with its properties and one
	// build request per builder.
	CreateBuildSet(sourceStampID int64, reason string, props *properties.Set, builders []string) (EnqueueResult, error)
}

type txInteraction struct {
	ctx context.Context
	tx  *sql.Tx
}

func (t *txInteraction) SourceStampID(ss SourceStamp) (int64, error) {
	var id int64
	err := t.tx.QueryRowContext(t.ctx,
		`SELECT id FROM sourcestamps WHERE branch = ? AND revision = ?`,
		ss.Branch, ss.Revision).Scan(&id)
	if err == nil {
		return id, nil
	}
	if !errors.Is(err, sql.ErrNoRows) {
		return 0, err
	}

	res, err := t.tx.ExecContext(t.ctx,
		`INSERT INTO sourcestamps(branch, revision, created_at) VALUES(?,?,?)`,
		ss.Branch, ss.Revision, time.Now().UTC().Format(time.RFC3339Nano))
	if err != nil {
		return 0, err
	}
	return res.LastInsertId()
}

func (t *txInteraction) CreateBuildSet(sourceStampID int64, reason string, props *properties.Set, builders []string) (EnqueueResult, error) {
	now := time.Now().UTC().Format(time.RFC3339Nano)

	res, err := t.tx.ExecContext(t.ctx,
		`INSERT INTO buildsets(sourcestamp_id, reason, submitted_at) VALUES(?,?,?)`,
		sourceStampID, reason, now)
	if err != nil {
		return EnqueueResult{}, err
	}
	bsid, err := res.LastInsertId()
	if err != nil {
		return EnqueueResult{}, err
	}

	if props != nil {
		for _, name := range props.Keys() {
			vj, err := props.ValueJSON(name)
			if err != nil {
				return EnqueueResult{}, err
			}
			p, _ := props.Lookup(name)
			_, err = t.tx.ExecContext(t.ctx,
				`INSERT INTO buildset_properties(buildset_id, name, value_json, source) VALUES(?,?,?,?)`,
				bsid, name, vj, p.Source)
			if err != nil {
				return EnqueueResult{}, err
			}
		}
	}

	out := EnqueueResult{BuildSetID: bsid, SourceStampID: sourceStampID}
	for _, builder := range builders {
		res, err := t.tx.ExecContext(t.ctx,
			`INSERT INTO build_requests(buildset_id, builder, submitted_at) VALUES(?,?,?)`,
			bsid, builder, now)
		if err != nil {
			return EnqueueResult{}, err
		}
		rid, err := res.LastInsertId()
		if err != nil {
			return EnqueueResult{}, err
		}
		out.BuildRequestIDs = append(out.BuildRequestIDs, rid)
	}
	return out, nil
}
