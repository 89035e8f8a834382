package persist

import (
	"errors"
	"fmt"
	"sort"

	"go.uber.org/zap"

	"github.com/swgo/server/internal/object"
)

// Registrar is the part of the awareness engine replay needs.
type Registrar interface {
	Register(ent object.Entity) error
}

// DefaultRangeFunc supplies a load range for rows stored without one.
type DefaultRangeFunc func(row ObjectRow, kind object.Kind) float64

// OrderForReplay sorts rows so every container comes before its contents,
// ties broken by id. Rows whose parent is missing, or that sit on a parent
// cycle, are treated as top-level and returned in orphans.
func OrderForReplay(rows []ObjectRow) (ordered []ObjectRow, orphans []int64) {
	byID := make(map[int64]int, len(rows))
	for i, r := range rows {
		byID[r.ID] = i
	}

	const (
		unseen = iota
		visiting
		done
	)
	state := make([]uint8, len(rows))
	depth := make([]int, len(rows))
	broken := make(map[int64]bool)

	var walk func(i int) int
	walk = func(i int) int {
		switch state[i] {
		case done:
			return depth[i]
		case visiting:
			broken[rows[i].ID] = true
			return 0
		}
		state[i] = visiting
		d := 0
		if p := rows[i].ParentID; p != nil {
			if j, ok := byID[*p]; ok && *p != rows[i].ID {
				d = walk(j) + 1
			} else {
				broken[rows[i].ID] = true
			}
		}
		if broken[rows[i].ID] {
			d = 0
		}
		state[i] = done
		depth[i] = d
		return d
	}
	for i := range rows {
		walk(i)
	}

	idx := make([]int, len(rows))
	for i := range idx {
		idx[i] = i
	}
	sort.SliceStable(idx, func(a, b int) bool {
		da, db := depth[idx[a]], depth[idx[b]]
		if da != db {
			return da < db
		}
		return rows[idx[a]].ID < rows[idx[b]].ID
	})
	ordered = make([]ObjectRow, len(rows))
	for k, i := range idx {
		ordered[k] = rows[i]
		if broken[rows[i].ID] {
			ordered[k].ParentID = nil
			orphans = append(orphans, rows[i].ID)
		}
	}
	sort.Slice(orphans, func(a, b int) bool { return orphans[a] < orphans[b] })
	return ordered, orphans
}

// BuildObjects turns ordered rows into linked objects. Rows with an unknown
// kind are skipped and reported in the returned error.
func BuildObjects(ordered []ObjectRow, defaults DefaultRangeFunc) ([]*object.Object, error) {
	objs := make([]*object.Object, 0, len(ordered))
	byID := make(map[int64]*object.Object, len(ordered))
	var errs []error
	for _, r := range ordered {
		kind, err := object.ParseKind(r.Kind)
		if err != nil {
			errs = append(errs, fmt.Errorf("object %d: %w", r.ID, err))
			continue
		}
		o := object.New(object.ID(r.ID), kind)
		o.SetTemplate(r.Template)
		o.SetPosition(object.Planet(r.Planet), r.X, r.Y, r.Z)
		o.SetInstance(object.InstanceKind(r.InstanceKind), r.InstanceNumber)
		o.SetAwareness(r.Awareness)
		switch {
		case r.LoadRange != nil:
			o.SetPrefLoadRange(*r.LoadRange)
		case defaults != nil:
			o.SetPrefLoadRange(defaults(r, kind))
		}
		if r.ParentID != nil {
			if parent, ok := byID[*r.ParentID]; ok {
				parent.AddChild(o)
			}
		}
		byID[r.ID] = o
		objs = append(objs, o)
	}
	return objs, errors.Join(errs...)
}

// Replay registers every row with the engine, containers first. It returns
// the objects registered so the caller keeps the object graph alive.
func Replay(rows []ObjectRow, reg Registrar, defaults DefaultRangeFunc, log *zap.Logger) ([]*object.Object, error) {
	ordered, orphans := OrderForReplay(rows)
	for _, id := range orphans {
		log.Warn("world object has a missing or cyclic parent, loading it top-level", zap.Int64("id", id))
	}
	objs, err := BuildObjects(ordered, defaults)
	if err != nil {
		log.Warn("skipped world objects", zap.Error(err))
	}
	registered := objs[:0]
	for _, o := range objs {
		if err := reg.Register(o); err != nil {
			return registered, fmt.Errorf("replay object %d: %w", o.ID(), err)
		}
		registered = append(registered, o)
	}
	log.Info("world objects replayed",
		zap.Int("rows", len(rows)),
		zap.Int("registered", len(registered)),
	)
	return registered, nil
}
