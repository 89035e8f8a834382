package persist

import (
	"context"
	"fmt"

	"github.com/swgo/server/internal/object"
)

// ObjectRow is one persisted world object.
type ObjectRow struct {
	ID             int64
	Kind           string
	Template       string
	Planet         string
	X, Y, Z        float64
	ParentID       *int64
	InstanceKind   int16
	InstanceNumber int32
	LoadRange      *float64 // nil: ask the scripts
	Awareness      bool
}

type ObjectRepo struct {
	db *DB
}

func NewObjectRepo(db *DB) *ObjectRepo {
	return &ObjectRepo{db: db}
}

// LoadAll returns every world object, ordered by id.
func (r *ObjectRepo) LoadAll(ctx context.Context) ([]ObjectRow, error) {
	rows, err := r.db.Pool.Query(ctx,
		`SELECT id, kind, template, planet, x, y, z, parent_id,
		        instance_kind, instance_number, load_range, awareness
		 FROM world_objects ORDER BY id`,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var result []ObjectRow
	for rows.Next() {
		var o ObjectRow
		if err := rows.Scan(
			&o.ID, &o.Kind, &o.Template, &o.Planet, &o.X, &o.Y, &o.Z, &o.ParentID,
			&o.InstanceKind, &o.InstanceNumber, &o.LoadRange, &o.Awareness,
		); err != nil {
			return nil, err
		}
		result = append(result, o)
	}
	return result, rows.Err()
}

// Save inserts or updates one object.
func (r *ObjectRepo) Save(ctx context.Context, o ObjectRow) error {
	_, err := r.db.Pool.Exec(ctx,
		`INSERT INTO world_objects (id, kind, template, planet, x, y, z, parent_id,
		                            instance_kind, instance_number, load_range, awareness)
		 VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12)
		 ON CONFLICT (id) DO UPDATE SET
		    kind = EXCLUDED.kind, template = EXCLUDED.template, planet = EXCLUDED.planet,
		    x = EXCLUDED.x, y = EXCLUDED.y, z = EXCLUDED.z, parent_id = EXCLUDED.parent_id,
		    instance_kind = EXCLUDED.instance_kind, instance_number = EXCLUDED.instance_number,
		    load_range = EXCLUDED.load_range, awareness = EXCLUDED.awareness`,
		o.ID, o.Kind, o.Template, o.Planet, o.X, o.Y, o.Z, o.ParentID,
		o.InstanceKind, o.InstanceNumber, o.LoadRange, o.Awareness,
	)
	if err != nil {
		return fmt.Errorf("save object %d: %w", o.ID, err)
	}
	return nil
}

// Delete removes an object. Its contents keep their rows with a NULL parent.
func (r *ObjectRepo) Delete(ctx context.Context, id object.ID) error {
	if _, err := r.db.Pool.Exec(ctx, `DELETE FROM world_objects WHERE id = $1`, int64(id)); err != nil {
		return fmt.Errorf("delete object %d: %w", id, err)
	}
	return nil
}

// RowOf captures the persisted attributes of o.
func RowOf(o *object.Object) ObjectRow {
	p := o.Position()
	inst := o.Instance()
	lr := o.LoadRange()
	row := ObjectRow{
		ID:             int64(o.ID()),
		Kind:           o.Kind().String(),
		Template:       o.Template(),
		Planet:         string(o.Planet()),
		X:              p.X,
		Y:              p.Y,
		Z:              p.Z,
		InstanceKind:   int16(inst.Kind),
		InstanceNumber: inst.Number,
		LoadRange:      &lr,
		Awareness:      o.AwarenessEnabled(),
	}
	if pid, ok := o.Parent(); ok {
		v := int64(pid)
		row.ParentID = &v
	}
	return row
}
