package ir

import "strings"

// LocalID indexes a function's Locals slice.
type LocalID int32

// NoLocalID marks an absent local.
const NoLocalID LocalID = -1

// ProjKind enumerates projection steps off a place root.
type ProjKind uint8

const (
	// ProjDeref follows a reference to the referent's storage.
	ProjDeref ProjKind = iota
	// ProjField selects a named struct field.
	ProjField
	// ProjIndex selects an array element. Index values are not tracked:
	// two index projections are conservatively treated as possibly equal.
	ProjIndex
)

// Proj is one projection step.
type Proj struct {
	Kind      ProjKind
	FieldName string
	FieldIdx  int
	// Index is the static element index when the frontend knows it.
	// It carries no meaning for conflict detection and exists for dumps only.
	Index uint32
}

// Place is a rooted path describing memory: a local plus zero or more
// projections. Places compare structurally; see Relate.
type Place struct {
	Local LocalID
	Proj  []Proj
}

func (p Place) IsValid() bool {
	return p.Local != NoLocalID
}

// Root returns the place stripped of all projections.
func (p Place) Root() Place {
	return Place{Local: p.Local}
}

// Field extends the place with a named field projection.
func (p Place) Field(name string, idx int) Place {
	return p.extend(Proj{Kind: ProjField, FieldName: name, FieldIdx: idx})
}

// IndexAt extends the place with an index projection.
func (p Place) IndexAt(idx uint32) Place {
	return p.extend(Proj{Kind: ProjIndex, Index: idx})
}

// Deref extends the place through a reference.
func (p Place) Deref() Place {
	return p.extend(Proj{Kind: ProjDeref})
}

func (p Place) extend(step Proj) Place {
	proj := make([]Proj, 0, len(p.Proj)+1)
	proj = append(proj, p.Proj...)
	proj = append(proj, step)
	return Place{Local: p.Local, Proj: proj}
}

// PlaceOf builds a projection-free place for a local.
func PlaceOf(local LocalID) Place {
	return Place{Local: local}
}

// PathString renders the projection path ("" for the bare root).
func (p Place) PathString() string {
	if len(p.Proj) == 0 {
		return ""
	}
	var b strings.Builder
	for _, step := range p.Proj {
		switch step.Kind {
		case ProjDeref:
			b.WriteString(".*")
		case ProjField:
			b.WriteByte('.')
			b.WriteString(step.FieldName)
		case ProjIndex:
			b.WriteString("[_]")
		}
	}
	return b.String()
}
