package graphcrdt

import (
	"testing"

	"github.com/PsychoLlama/graph-crdt/clock"
	"github.com/PsychoLlama/graph-crdt/value"
)

func mustValue(t *testing.T, v any) value.Value {
	t.Helper()
	val, err := value.From(v)
	if err != nil {
		t.Fatalf("value.From: %v", err)
	}
	return val
}

func TestNewEntity_GeneratesUIDWhenOmitted(t *testing.T) {
	e := NewEntity("", WithUIDSource(uidSourceFor(t, "generated")))
	if e.UID() != "generated" {
		t.Fatalf("expected generated uid, got %q", e.UID())
	}
}

func TestNewEntity_KeepsExplicitUID(t *testing.T) {
	e := NewEntity("explicit")
	if e.UID() != "explicit" {
		t.Fatalf("expected explicit uid preserved, got %q", e.UID())
	}
}

func TestEntity_MetaValueStateDefaultsToAbsent(t *testing.T) {
	e := NewEntity("a")
	if !e.Meta("missing").IsAbsent() {
		t.Fatal("expected missing field to report Absent")
	}
	if e.State("missing") != clock.Absent {
		t.Fatalf("expected state 0, got %v", e.State("missing"))
	}
	if !e.Value("missing").IsNull() {
		t.Fatal("expected Null value for missing field")
	}
}

func TestEntity_ObjectKeyNeverReadableAsField(t *testing.T) {
	e := NewEntity("a")
	if !e.Meta(ObjectKey).IsAbsent() {
		t.Fatal("expected @object to report Absent via Meta")
	}
	if e.Object().UID != "a" {
		t.Fatalf("expected Object().UID == a, got %q", e.Object().UID)
	}
}

func TestEntity_SetMetadataAdvancesStateAndDiscardsArgumentState(t *testing.T) {
	e := NewEntity("a")
	if err := e.SetMetadata("name", FieldMeta{Value: mustValue(t, "Ada"), State: 99}); err != nil {
		t.Fatalf("SetMetadata: %v", err)
	}
	if e.State("name") != 1 {
		t.Fatalf("expected state 1 after first write, got %v", e.State("name"))
	}

	if err := e.SetMetadata("name", FieldMeta{Value: mustValue(t, "Grace")}); err != nil {
		t.Fatalf("SetMetadata: %v", err)
	}
	if e.State("name") != 2 {
		t.Fatalf("expected state 2 after second write, got %v", e.State("name"))
	}
	name, _ := e.Value("name").StringVal()
	if name != "Grace" {
		t.Fatalf("expected Grace, got %q", name)
	}
}

func TestEntity_SetMetadataRejectsObjectKey(t *testing.T) {
	e := NewEntity("a")
	if err := e.SetMetadata(ObjectKey, FieldMeta{}); err == nil {
		t.Fatal("expected error writing to @object")
	}
}

func TestEntity_SetMetadataDoesNotAliasCaller(t *testing.T) {
	e := NewEntity("a")
	extras := map[string]value.Value{"prev": mustValue(t, "x")}
	meta := FieldMeta{Value: mustValue(t, 1.0), Extras: extras}
	if err := e.SetMetadata("n", meta); err != nil {
		t.Fatalf("SetMetadata: %v", err)
	}
	extras["prev"] = mustValue(t, "mutated")

	stored := e.Meta("n")
	prev, _ := stored.Extras["prev"].StringVal()
	if prev != "x" {
		t.Fatalf("expected stored extras unaffected by caller mutation, got %q", prev)
	}
}

func TestEntity_SnapshotExcludesAbsentAndObjectKey(t *testing.T) {
	e := NewEntity("a")
	e.SetMetadata("name", FieldMeta{Value: mustValue(t, "Ada")})

	snap := e.Snapshot()
	if len(snap) != 1 {
		t.Fatalf("expected exactly one field in snapshot, got %v", snap)
	}
	if _, ok := snap[ObjectKey]; ok {
		t.Fatal("expected @object excluded from snapshot")
	}
}

func TestEntity_Overlap(t *testing.T) {
	a := NewEntity("a")
	a.SetMetadata("x", FieldMeta{Value: mustValue(t, 1.0)})
	a.SetMetadata("y", FieldMeta{Value: mustValue(t, 2.0)})

	b := NewEntity("b")
	b.SetMetadata("x", FieldMeta{Value: mustValue(t, 99.0)})

	overlap, err := a.Overlap(b)
	if err != nil {
		t.Fatalf("Overlap: %v", err)
	}
	snap := overlap.Snapshot()
	if len(snap) != 1 {
		t.Fatalf("expected exactly one overlapping field, got %v", snap)
	}
	xv, _ := snap["x"].NumberVal()
	if xv != 1.0 {
		t.Fatalf("expected overlap metadata taken from receiver (1.0), got %v", xv)
	}
}

func TestEntity_Rebase_E6(t *testing.T) {
	target := NewEntity("t")
	target.fields["x"] = FieldMeta{Value: mustValue(t, 1.0), State: 5}

	self := NewEntity("s")
	self.fields["x"] = FieldMeta{Value: mustValue(t, 2.0), State: 1}

	rebased, err := self.Rebase(target)
	if err != nil {
		t.Fatalf("Rebase: %v", err)
	}
	if rebased.State("x") != 6 {
		t.Fatalf("expected state 6, got %v", rebased.State("x"))
	}
	xv, _ := rebased.Value("x").NumberVal()
	if xv != 2.0 {
		t.Fatalf("expected value 2, got %v", xv)
	}
}

func TestEntity_Delta_NewField(t *testing.T) {
	self := NewEntity("n")
	incoming := NewEntity("n")
	incoming.fields["name"] = FieldMeta{Value: mustValue(t, "Ada"), State: 1}

	upd, hist, err := self.Delta(incoming)
	if err != nil {
		t.Fatalf("Delta: %v", err)
	}
	if _, ok := upd.fields["name"]; !ok {
		t.Fatal("expected name in update delta")
	}
	if len(hist.fields) != 0 {
		t.Fatalf("expected empty history, got %v", hist.fields)
	}
}

func TestEntity_Delta_StaleUpdate(t *testing.T) {
	self := NewEntity("n")
	self.fields["x"] = FieldMeta{Value: mustValue(t, "new"), State: 2}

	incoming := NewEntity("n")
	incoming.fields["x"] = FieldMeta{Value: mustValue(t, "old"), State: 1}

	upd, hist, err := self.Delta(incoming)
	if err != nil {
		t.Fatalf("Delta: %v", err)
	}
	if len(upd.fields) != 0 {
		t.Fatalf("expected empty update, got %v", upd.fields)
	}
	if _, ok := hist.fields["x"]; !ok {
		t.Fatal("expected x in history delta")
	}
}

func TestEntity_Delta_ConflictLoser(t *testing.T) {
	self := NewEntity("n")
	self.fields["x"] = FieldMeta{Value: mustValue(t, "b"), State: 1}

	incoming := NewEntity("n")
	incoming.fields["x"] = FieldMeta{Value: mustValue(t, "a"), State: 1}

	upd, hist, err := self.Delta(incoming)
	if err != nil {
		t.Fatalf("Delta: %v", err)
	}
	if len(upd.fields) != 0 || len(hist.fields) != 0 {
		t.Fatalf("expected no delta at all, got update=%v history=%v", upd.fields, hist.fields)
	}
}

func TestEntity_Delta_ConflictWinner(t *testing.T) {
	self := NewEntity("n")
	self.fields["x"] = FieldMeta{Value: mustValue(t, "a"), State: 1}

	incoming := NewEntity("n")
	incoming.fields["x"] = FieldMeta{Value: mustValue(t, "b"), State: 1}

	upd, hist, err := self.Delta(incoming)
	if err != nil {
		t.Fatalf("Delta: %v", err)
	}
	if _, ok := upd.fields["x"]; !ok {
		t.Fatal("expected x in update delta")
	}
	if _, ok := hist.fields["x"]; !ok {
		t.Fatal("expected x in history delta")
	}
}

func TestEntity_Clone_IsIndependent(t *testing.T) {
	e := NewEntity("a")
	e.SetMetadata("x", FieldMeta{Value: mustValue(t, 1.0)})

	cloned, err := e.Clone()
	if err != nil {
		t.Fatalf("Clone: %v", err)
	}
	cloned.SetMetadata("x", FieldMeta{Value: mustValue(t, 2.0)})

	xv, _ := e.Value("x").NumberVal()
	if xv != 1.0 {
		t.Fatalf("expected original entity unaffected by clone mutation, got %v", xv)
	}
}

// uidSourceFor returns a uid.Source that always yields id, used to pin
// down an otherwise-random generated uid for assertions.
func uidSourceFor(t *testing.T, id string) fixedSource {
	t.Helper()
	return fixedSource{id: id}
}

type fixedSource struct{ id string }

func (f fixedSource) NewUID() string { return f.id }
